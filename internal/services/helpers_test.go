package services

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ArowuTest/edunotify-backend/internal/events"
	"github.com/ArowuTest/edunotify-backend/internal/models"
	"github.com/ArowuTest/edunotify-backend/internal/repositories/memory"
	"github.com/ArowuTest/edunotify-backend/pkg/smsgateway"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

var testIdentity = models.Identity{
	OperatorID:   "op-1",
	OperatorName: "Priya Nair",
	TenantID:     "school-a",
	Role:         models.RoleAdmin,
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// staticResolver always dispatches through backend
type staticResolver struct {
	mu      sync.Mutex
	backend smsgateway.Backend
}

func (r *staticResolver) BackendFor(context.Context, string) (smsgateway.Backend, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.backend, nil
}

func (r *staticResolver) set(b smsgateway.Backend) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backend = b
}

// recordingBackend accepts everything and remembers the numbers it was given
type recordingBackend struct {
	mu     sync.Mutex
	phones []string
}

func (b *recordingBackend) Name() string { return "recording" }

func (b *recordingBackend) Send(_ context.Context, phone, _ string) (smsgateway.SendResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.phones = append(b.phones, phone)
	return smsgateway.SendResult{OK: true, ProviderMessageID: "rec-" + phone, Cost: 0.25}, nil
}

func (b *recordingBackend) calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.phones...)
}

type capturingPublisher struct {
	mu     sync.Mutex
	events []events.BatchCompleted
}

func (p *capturingPublisher) PublishBatchCompleted(_ context.Context, evt events.BatchCompleted) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return nil
}

func (p *capturingPublisher) Close() error { return nil }

// brokenLedger refuses every new entry
type brokenLedger struct {
	*memory.DeliveryRepository
}

func (brokenLedger) Create(context.Context, *models.DeliveryLog) error {
	return errors.New("ledger unavailable")
}

// cancellingLedger cancels every entry just before it would be marked sent,
// as an operator cancelling a pending delivery mid-send would
type cancellingLedger struct {
	*memory.DeliveryRepository
}

func (l cancellingLedger) MarkSent(ctx context.Context, tenantID, id string, response map[string]interface{}, cost float64, at time.Time) error {
	if err := l.DeliveryRepository.MarkCancelled(ctx, tenantID, id, at); err != nil {
		return err
	}
	return l.DeliveryRepository.MarkSent(ctx, tenantID, id, response, cost, at)
}

// countingBackend counts calls and the peak number of calls in flight.
// Numbers in failing are rejected; numbers in hanging block until the call
// context ends.
type countingBackend struct {
	delay   time.Duration
	failing map[string]bool
	hanging map[string]bool

	calls    int64
	inFlight int64
	maxSeen  int64
}

func (b *countingBackend) Name() string { return "counting" }

func (b *countingBackend) Send(ctx context.Context, phone, _ string) (smsgateway.SendResult, error) {
	atomic.AddInt64(&b.calls, 1)
	n := atomic.AddInt64(&b.inFlight, 1)
	defer atomic.AddInt64(&b.inFlight, -1)
	for {
		seen := atomic.LoadInt64(&b.maxSeen)
		if n <= seen || atomic.CompareAndSwapInt64(&b.maxSeen, seen, n) {
			break
		}
	}

	if b.hanging[phone] {
		<-ctx.Done()
		return smsgateway.SendResult{}, ctx.Err()
	}
	if b.delay > 0 {
		time.Sleep(b.delay)
	}
	if b.failing[phone] {
		return smsgateway.SendResult{Error: "rejected by provider"}, nil
	}
	return smsgateway.SendResult{OK: true, ProviderMessageID: "cnt-" + phone}, nil
}

func (b *countingBackend) total() int64 { return atomic.LoadInt64(&b.calls) }

func (b *countingBackend) peak() int64 { return atomic.LoadInt64(&b.maxSeen) }

func demoBackend(failing ...string) *smsgateway.DemoBackend {
	return smsgateway.NewDemoBackend(smsgateway.DemoConfig{SuccessRate: 1}, smsgateway.WithForcedFailures(failing...))
}

type harness struct {
	templateRepo *memory.TemplateRepository
	ledger       *memory.DeliveryRepository
	resolver     *staticResolver
	publisher    *capturingPublisher
	templates    *TemplateService
	dispatcher   *DispatchService
}

func newHarness(t *testing.T, backend smsgateway.Backend) *harness {
	t.Helper()
	log := quietLogger()
	h := &harness{
		templateRepo: memory.NewTemplateRepository(),
		ledger:       memory.NewDeliveryRepository(),
		resolver:     &staticResolver{backend: backend},
		publisher:    &capturingPublisher{},
	}
	h.templates = NewTemplateService(h.templateRepo, nil, log)
	adapter := smsgateway.NewAdapter(smsgateway.WithTimeout(time.Second), smsgateway.WithLogger(logrus.NewEntry(log)))
	h.dispatcher = NewDispatchService(h.templates, h.ledger, h.resolver, adapter,
		DispatchConfig{Concurrency: 4, MaxRetries: 3}, log, WithPublisher(h.publisher))
	return h
}

func (h *harness) seed(t *testing.T) {
	t.Helper()
	_, err := h.templates.SeedDefaults(context.Background(), testIdentity)
	require.NoError(t, err)
}

func (h *harness) usage(t *testing.T, code string) int64 {
	t.Helper()
	tpl, err := h.templateRepo.FindByCode(context.Background(), testIdentity.TenantID, code)
	require.NoError(t, err)
	return tpl.UsageCount
}

func (h *harness) entry(t *testing.T, id string) *models.DeliveryLog {
	t.Helper()
	e, err := h.ledger.FindByID(context.Background(), testIdentity.TenantID, id)
	require.NoError(t, err)
	return e
}
