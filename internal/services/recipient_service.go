package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/ArowuTest/edunotify-backend/internal/models"
	"github.com/ArowuTest/edunotify-backend/internal/repositories"
	"github.com/google/uuid"
)

// RecipientService resolves recipient sets from school records and hands
// them to the dispatcher
type RecipientService struct {
	directory  repositories.StudentDirectory
	templates  *TemplateService
	dispatcher *DispatchService
}

// NewRecipientService creates a RecipientService
func NewRecipientService(directory repositories.StudentDirectory, templates *TemplateService, dispatcher *DispatchService) *RecipientService {
	return &RecipientService{directory: directory, templates: templates, dispatcher: dispatcher}
}

// NotifyAbsentees messages the guardians of every student absent on req.Date
func (s *RecipientService) NotifyAbsentees(ctx context.Context, id models.Identity, req models.AbsenteeRequest) (*models.BatchResult, error) {
	if _, err := time.Parse("2006-01-02", req.Date); err != nil {
		return nil, models.NewValidationError("date", "must be formatted YYYY-MM-DD")
	}
	code := req.TemplateCode
	if code == "" {
		code = CodeAbsentAlert
	}
	if _, err := s.templates.Resolve(ctx, id.TenantID, code); err != nil {
		return nil, err
	}

	students, err := s.directory.FindAbsentees(ctx, id.TenantID, req.Date, req.ClassID)
	if err != nil {
		return nil, fmt.Errorf("failed to find absentees: %w", err)
	}
	return s.dispatch(ctx, id, code, req.SharedData, students, func(st *models.Student) map[string]interface{} {
		return map[string]interface{}{"date": req.Date}
	})
}

// NotifyFeeDefaulters messages the guardians of every student owing at least req.MinimumBalance
func (s *RecipientService) NotifyFeeDefaulters(ctx context.Context, id models.Identity, req models.FeeBalanceRequest) (*models.BatchResult, error) {
	if req.MinimumBalance < 0 {
		return nil, models.NewValidationError("minimumBalance", "must not be negative")
	}
	code := req.TemplateCode
	if code == "" {
		code = CodeFeeBalanceAlert
	}
	if _, err := s.templates.Resolve(ctx, id.TenantID, code); err != nil {
		return nil, err
	}

	students, err := s.directory.FindFeeDefaulters(ctx, id.TenantID, req.MinimumBalance, req.ClassID)
	if err != nil {
		return nil, fmt.Errorf("failed to find fee defaulters: %w", err)
	}
	return s.dispatch(ctx, id, code, req.SharedData, students, func(st *models.Student) map[string]interface{} {
		return map[string]interface{}{"balance": strconv.FormatFloat(st.FeeBalance, 'f', 2, 64)}
	})
}

// dispatch sends code to the guardian of each student. An empty set sends
// nothing and returns an empty result.
func (s *RecipientService) dispatch(ctx context.Context, id models.Identity, code string, shared map[string]interface{}, students []*models.Student, extra func(*models.Student) map[string]interface{}) (*models.BatchResult, error) {
	if len(students) == 0 {
		result := models.NewBatchResult(uuid.NewString(), code)
		result.Finalize()
		return result, nil
	}

	recipients := make([]models.Recipient, 0, len(students))
	for _, st := range students {
		name := st.GuardianName
		if name == "" {
			name = st.Name
		}
		data := map[string]interface{}{
			"student_name":  st.Name,
			"class_name":    st.ClassName,
			"guardian_name": name,
			"roll_number":   st.RollNumber,
		}
		for k, v := range extra(st) {
			data[k] = v
		}
		recipients = append(recipients, models.Recipient{
			Phone:        st.GuardianPhone,
			Name:         name,
			Kind:         models.KindParent,
			SubjectID:    st.ID.Hex(),
			SubjectLabel: st.Name,
			GroupID:      st.ClassID,
			GroupLabel:   st.ClassName,
			Data:         data,
		})
	}

	return s.dispatcher.Dispatch(ctx, id, models.DispatchRequest{
		TemplateCode: code,
		SharedData:   shared,
		Recipients:   recipients,
	})
}
