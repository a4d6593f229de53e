package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/ArowuTest/edunotify-backend/internal/handlers"
	"github.com/ArowuTest/edunotify-backend/internal/metrics"
	"github.com/ArowuTest/edunotify-backend/internal/models"
	"github.com/ArowuTest/edunotify-backend/internal/repositories/memory"
	"github.com/ArowuTest/edunotify-backend/internal/services"
	"github.com/ArowuTest/edunotify-backend/pkg/jwt"
	"github.com/ArowuTest/edunotify-backend/pkg/smsgateway"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tenant = "school-a"

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type testApp struct {
	router        *gin.Engine
	auth          *services.AuthService
	tokens        *jwt.TokenService
	adminToken    string
	operatorToken string
}

func newTestApp(t *testing.T, checks map[string]HealthCheck) *testApp {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	tokens := jwt.NewTokenService("test-secret", time.Hour)
	registry := smsgateway.DefaultRegistry(smsgateway.DemoConfig{SuccessRate: 1}, time.Second)
	m := metrics.New()
	adapter := smsgateway.NewAdapter(
		smsgateway.WithTimeout(time.Second),
		smsgateway.WithObserver(m),
		smsgateway.WithLogger(logrus.NewEntry(log)),
	)

	templates := services.NewTemplateService(memory.NewTemplateRepository(), nil, log)
	ledger := memory.NewDeliveryRepository()
	gateway := services.NewGatewayService(memory.NewGatewaySettingsRepository(), registry, adapter, smsgateway.BackendDemo, log)
	dispatcher := services.NewDispatchService(templates, ledger, gateway, adapter,
		services.DispatchConfig{Concurrency: 4, MaxRetries: 3}, log, services.WithMetrics(m))
	recipients := services.NewRecipientService(memory.NewStudentDirectory(), templates, dispatcher)
	auth := services.NewAuthService(memory.NewOperatorRepository(), tokens)

	app := &testApp{
		router: SetupRouter(HandlerDependencies{
			AuthHandler:     handlers.NewAuthHandler(auth),
			TemplateHandler: handlers.NewTemplateHandler(templates),
			DispatchHandler: handlers.NewDispatchHandler(dispatcher, recipients),
			DeliveryHandler: handlers.NewDeliveryHandler(services.NewDeliveryService(ledger)),
			GatewayHandler:  handlers.NewGatewayHandler(gateway),
			Tokens:          tokens,
			Log:             log,
			Metrics:         m.Handler(),
			HealthChecks:    checks,
		}),
		auth:   auth,
		tokens: tokens,
	}

	var err error
	app.adminToken, err = tokens.Issue("op-admin", "Priya Nair", tenant, models.RoleAdmin)
	require.NoError(t, err)
	app.operatorToken, err = tokens.Issue("op-clerk", "Kiran Rao", tenant, models.RoleOperator)
	require.NoError(t, err)
	return app
}

func (a *testApp) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func TestHealth(t *testing.T) {
	app := newTestApp(t, map[string]HealthCheck{
		"mongodb": func(context.Context) error { return nil },
	})
	w := app.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	down := newTestApp(t, map[string]HealthCheck{
		"redis": func(context.Context) error { return errors.New("connection refused") },
	})
	w = down.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	app := newTestApp(t, nil)
	w := app.do(t, http.MethodGet, "/api/v1/templates", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTemplateLifecycle(t *testing.T) {
	app := newTestApp(t, nil)

	w := app.do(t, http.MethodPost, "/api/v1/templates/seed", app.operatorToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = app.do(t, http.MethodPost, "/api/v1/templates/seed", app.adminToken, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var seeded struct {
		Count int `json:"count"`
	}
	decode(t, w, &seeded)
	assert.Equal(t, 4, seeded.Count)

	w = app.do(t, http.MethodPost, "/api/v1/templates/seed", app.adminToken, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = app.do(t, http.MethodGet, "/api/v1/templates?category=attendance", app.operatorToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page struct {
		Items []models.Template `json:"items"`
		Total int64             `json:"total"`
		Page  int               `json:"page"`
		Limit int               `json:"limit"`
	}
	decode(t, w, &page)
	assert.EqualValues(t, 1, page.Total)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, services.DefaultPageSize, page.Limit)
	require.Len(t, page.Items, 1)
	assert.Equal(t, services.CodeAbsentAlert, page.Items[0].Code)

	w = app.do(t, http.MethodGet, "/api/v1/templates/GENERAL_ANNOUNCEMENT/preview?school_name=Green+Valley&message=Closed+tomorrow", app.operatorToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var preview struct {
		Message string `json:"message"`
	}
	decode(t, w, &preview)
	assert.Equal(t, "Green Valley: Closed tomorrow", preview.Message)

	w = app.do(t, http.MethodPost, "/api/v1/templates", app.operatorToken, map[string]interface{}{
		"code":      "PTM_REMINDER",
		"name":      "PTM",
		"category":  "event",
		"body":      "PTM on {{date}}",
		"variables": []map[string]string{{"name": "date", "description": "Meeting date", "example": "12 July"}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created models.Template
	decode(t, w, &created)
	assert.Equal(t, "PTM on 12 July", created.Sample)

	w = app.do(t, http.MethodPost, "/api/v1/templates", app.operatorToken, map[string]interface{}{
		"code": "PTM_REMINDER", "name": "PTM", "category": "event", "body": "again",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = app.do(t, http.MethodPost, "/api/v1/templates", app.operatorToken, map[string]interface{}{
		"code": "NO_BODY", "category": "event",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"field":"body"`)

	w = app.do(t, http.MethodPut, "/api/v1/templates/PTM_REMINDER", app.operatorToken, map[string]interface{}{"isActive": false})
	require.Equal(t, http.StatusOK, w.Code)

	w = app.do(t, http.MethodPost, "/api/v1/notifications/dispatch", app.operatorToken, map[string]interface{}{
		"templateCode": "PTM_REMINDER",
		"recipients":   []map[string]string{{"phone": "9876500011"}},
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = app.do(t, http.MethodDelete, "/api/v1/templates/PTM_REMINDER", app.operatorToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = app.do(t, http.MethodGet, "/api/v1/templates/PTM_REMINDER", app.operatorToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDispatchAndLedger(t *testing.T) {
	app := newTestApp(t, nil)
	w := app.do(t, http.MethodPost, "/api/v1/templates/seed", app.adminToken, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	w = app.do(t, http.MethodPost, "/api/v1/notifications/dispatch", app.operatorToken, map[string]interface{}{
		"templateCode": "MISSING",
		"recipients":   []map[string]string{{"phone": "9876500011"}},
	})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = app.do(t, http.MethodPost, "/api/v1/notifications/dispatch", app.operatorToken, map[string]interface{}{
		"templateCode": services.CodeGeneralAnnouncement,
		"sharedData":   map[string]string{"school_name": "Green Valley", "message": "Sports day on Friday"},
		"recipients": []map[string]string{
			{"phone": "9876500011", "name": "Mr. Menon"},
			{"phone": "+91 98765 00012", "name": "Mrs. Iyer"},
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var batch models.BatchResult
	decode(t, w, &batch)
	assert.Equal(t, 2, batch.Total)
	assert.Equal(t, 2, batch.SuccessCount)
	require.Len(t, batch.Sent, 2)
	assert.Equal(t, "Green Valley: Sports day on Friday", batch.Sent[0].Message)

	w = app.do(t, http.MethodGet, "/api/v1/deliveries?status=sent&batchId="+batch.BatchID, app.operatorToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page struct {
		Items []models.DeliveryLog `json:"items"`
		Total int64                `json:"total"`
	}
	decode(t, w, &page)
	assert.EqualValues(t, 2, page.Total)

	w = app.do(t, http.MethodGet, "/api/v1/deliveries/statistics", app.operatorToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats models.DeliveryStatistics
	decode(t, w, &stats)
	assert.EqualValues(t, 2, stats.Total)
	assert.EqualValues(t, 2, stats.Successful)

	id := batch.Sent[0].DeliveryID
	w = app.do(t, http.MethodGet, "/api/v1/deliveries/"+id, app.operatorToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = app.do(t, http.MethodPost, "/api/v1/deliveries/"+id+"/delivered", app.operatorToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = app.do(t, http.MethodPost, "/api/v1/deliveries/"+id+"/delivered", app.adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var entry models.DeliveryLog
	decode(t, w, &entry)
	assert.Equal(t, models.StatusDelivered, entry.Status)
	assert.NotNil(t, entry.DeliveredTime)

	w = app.do(t, http.MethodPost, "/api/v1/deliveries/"+id+"/cancel", app.operatorToken, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = app.do(t, http.MethodGet, "/api/v1/deliveries/does-not-exist", app.operatorToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = app.do(t, http.MethodGet, "/api/v1/deliveries?from=yesterday", app.operatorToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = app.do(t, http.MethodPost, "/api/v1/notifications/retry", app.operatorToken, map[string]interface{}{
		"deliveryIds": []string{id},
	})
	require.Equal(t, http.StatusOK, w.Code)
	var retry models.BatchResult
	decode(t, w, &retry)
	assert.Equal(t, 0, retry.Total)
	require.Len(t, retry.Skipped, 1)
	assert.Equal(t, "status is delivered", retry.Skipped[0].Reason)

	w = app.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "edunotify_")
}

func TestGatewaySettings(t *testing.T) {
	app := newTestApp(t, nil)

	w := app.do(t, http.MethodGet, "/api/v1/gateway", app.operatorToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var current struct {
		Settings models.GatewaySettings `json:"settings"`
		Backends []string               `json:"backends"`
	}
	decode(t, w, &current)
	assert.True(t, current.Settings.IsDefault)
	assert.Equal(t, smsgateway.BackendDemo, current.Settings.Backend)
	assert.Contains(t, current.Backends, smsgateway.BackendTwilio)

	w = app.do(t, http.MethodPut, "/api/v1/gateway", app.operatorToken, map[string]interface{}{"backend": "demo"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = app.do(t, http.MethodPut, "/api/v1/gateway", app.adminToken, map[string]interface{}{"backend": "carrier-pigeon"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = app.do(t, http.MethodPut, "/api/v1/gateway", app.adminToken, map[string]interface{}{
		"backend":     "DEMO",
		"credentials": map[string]string{"successRate": "1", "delayMillis": "12345"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var saved models.GatewaySettings
	decode(t, w, &saved)
	assert.Equal(t, smsgateway.BackendDemo, saved.Backend)
	assert.Equal(t, "*2345", saved.Credentials["delayMillis"])

	w = app.do(t, http.MethodPost, "/api/v1/gateway/test", app.adminToken, map[string]interface{}{"backend": "demo"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = app.do(t, http.MethodPost, "/api/v1/gateway/test", app.adminToken, map[string]interface{}{
		"backend":     "demo",
		"credentials": map[string]string{"successRate": "1", "delayMillis": "0"},
		"testPhone":   "9876500011",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var result smsgateway.SendResult
	decode(t, w, &result)
	assert.True(t, result.OK)
}

func TestLoginAndRegister(t *testing.T) {
	app := newTestApp(t, nil)
	_, err := app.auth.CreateOperator(context.Background(), tenant, models.RegisterRequest{
		Name: "Priya Nair", Email: "Priya@GreenValley.edu", Password: "s3cret!", Role: models.RoleAdmin,
	})
	require.NoError(t, err)

	w := app.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "priya@greenvalley.edu", "password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = app.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = app.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "priya@greenvalley.edu", "password": "s3cret!",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var login models.LoginResponse
	decode(t, w, &login)
	require.NotEmpty(t, login.Token)
	claims, err := app.tokens.Parse(login.Token)
	require.NoError(t, err)
	assert.Equal(t, tenant, claims.TenantID)

	register := map[string]string{"name": "Kiran Rao", "email": "kiran@greenvalley.edu", "password": "s3cret!"}
	w = app.do(t, http.MethodPost, "/api/v1/auth/register", app.operatorToken, register)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = app.do(t, http.MethodPost, "/api/v1/auth/register", login.Token, register)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var op models.Operator
	decode(t, w, &op)
	assert.Equal(t, models.RoleOperator, op.Role)
	assert.Equal(t, tenant, op.TenantID)

	w = app.do(t, http.MethodPost, "/api/v1/auth/register", login.Token, register)
	assert.Equal(t, http.StatusConflict, w.Code)
}
