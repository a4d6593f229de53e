package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ArowuTest/edunotify-backend/internal/events"
	"github.com/ArowuTest/edunotify-backend/internal/metrics"
	"github.com/ArowuTest/edunotify-backend/internal/models"
	"github.com/ArowuTest/edunotify-backend/internal/repositories"
	"github.com/ArowuTest/edunotify-backend/pkg/smsgateway"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// DispatchConfig bounds batch sends
type DispatchConfig struct {
	Concurrency int
	MaxRetries  int
}

// DispatchService sends one template to many recipients and records every
// attempt in the delivery ledger
type DispatchService struct {
	templates *TemplateService
	ledger    repositories.DeliveryRepository
	backends  BackendResolver
	sender    Sender
	publisher events.Publisher
	metrics   *metrics.Dispatch
	cfg       DispatchConfig
	log       *logrus.Entry
	now       func() time.Time
}

// DispatchOption customizes a DispatchService
type DispatchOption func(*DispatchService)

// WithPublisher emits a BatchCompleted event after every batch
func WithPublisher(p events.Publisher) DispatchOption {
	return func(s *DispatchService) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithMetrics records batch counters
func WithMetrics(m *metrics.Dispatch) DispatchOption {
	return func(s *DispatchService) { s.metrics = m }
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) DispatchOption {
	return func(s *DispatchService) { s.now = now }
}

// NewDispatchService creates a DispatchService
func NewDispatchService(
	templates *TemplateService,
	ledger repositories.DeliveryRepository,
	backends BackendResolver,
	sender Sender,
	cfg DispatchConfig,
	log *logrus.Logger,
	opts ...DispatchOption,
) *DispatchService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = models.DefaultMaxRetries
	}
	s := &DispatchService{
		templates: templates,
		ledger:    ledger,
		backends:  backends,
		sender:    sender,
		publisher: events.NoopPublisher{},
		cfg:       cfg,
		log:       log.WithField("component", "dispatch"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// job is one message of a batch, already rendered
type job struct {
	deliveryID   string
	recipient    models.Recipient
	message      string
	templateCode string
	category     models.TemplateCategory
	priority     models.TemplatePriority
	retryOf      string
	retryCount   int
}

type jobOutcome struct {
	deliveryID string
	ok         bool
	err        string
	warning    string
}

// Dispatch renders req.TemplateCode for every recipient and sends the
// results. Individual send failures never fail the batch: the returned
// result lists each recipient exactly once, under sent or failed.
func (s *DispatchService) Dispatch(ctx context.Context, id models.Identity, req models.DispatchRequest) (*models.BatchResult, error) {
	if req.TemplateCode == "" {
		return nil, models.NewValidationError("templateCode", "is required")
	}
	if len(req.Recipients) == 0 {
		return nil, models.NewValidationError("recipients", "at least one recipient is required")
	}
	for i, r := range req.Recipients {
		if r.Kind != "" && !r.Kind.Valid() {
			return nil, models.NewValidationError(fmt.Sprintf("recipients[%d].kind", i), "must be one of student, parent, teacher, staff")
		}
	}

	tpl, err := s.templates.Resolve(ctx, id.TenantID, req.TemplateCode)
	if err != nil {
		return nil, err
	}
	if !tpl.IsActive {
		return nil, fmt.Errorf("%w: %s", ErrTemplateInactive, tpl.Code)
	}
	backend, err := s.backends.BackendFor(ctx, id.TenantID)
	if err != nil {
		return nil, err
	}

	jobs := make([]job, len(req.Recipients))
	for i, r := range req.Recipients {
		if r.Kind == "" {
			r.Kind = models.KindParent
		}
		jobs[i] = job{
			recipient:    r,
			message:      Render(tpl, MergeData(req.SharedData, r.Data)),
			templateCode: tpl.Code,
			category:     tpl.Category,
			priority:     tpl.Priority,
		}
	}

	result := models.NewBatchResult(uuid.NewString(), tpl.Code)
	s.run(ctx, id, backend, result, jobs)
	return result, nil
}

// RetryFailed re-sends the stored message of each failed entry still under
// its retry cap as a new ledger entry. Each failed entry is retried at most
// once; the cap then applies along the chain of retries. Other ids are
// reported as skipped.
func (s *DispatchService) RetryFailed(ctx context.Context, id models.Identity, deliveryIDs []string) (*models.BatchResult, error) {
	ids := dedupe(deliveryIDs)
	if len(ids) == 0 {
		return nil, models.NewValidationError("deliveryIds", "at least one delivery id is required")
	}

	entries, err := s.ledger.FindByIDs(ctx, id.TenantID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load deliveries: %w", err)
	}
	byID := make(map[string]*models.DeliveryLog, len(entries))
	for _, e := range entries {
		byID[e.ID] = e
	}

	result := models.NewBatchResult(uuid.NewString(), "")
	var candidates []*models.DeliveryLog
	for _, deliveryID := range ids {
		e, ok := byID[deliveryID]
		switch {
		case !ok:
			result.Skipped = append(result.Skipped, models.SkippedItem{DeliveryID: deliveryID, Reason: "not found"})
		case e.Status != models.StatusFailed:
			result.Skipped = append(result.Skipped, models.SkippedItem{DeliveryID: deliveryID, Reason: "status is " + string(e.Status)})
		case e.RetriedBy != "":
			result.Skipped = append(result.Skipped, models.SkippedItem{DeliveryID: deliveryID, Reason: "already retried"})
		case !e.CanRetry():
			result.Skipped = append(result.Skipped, models.SkippedItem{DeliveryID: deliveryID, Reason: "retry limit reached"})
		default:
			candidates = append(candidates, e)
		}
	}
	if len(candidates) == 0 {
		result.Finalize()
		return result, nil
	}

	// Resolve the backend before claiming so a configuration error leaves
	// every entry retryable
	backend, err := s.backends.BackendFor(ctx, id.TenantID)
	if err != nil {
		return nil, err
	}

	var jobs []job
	for _, e := range candidates {
		retryID := uuid.NewString()
		if reason := s.claimRetry(ctx, id.TenantID, e.ID, retryID); reason != "" {
			result.Skipped = append(result.Skipped, models.SkippedItem{DeliveryID: e.ID, Reason: reason})
			continue
		}
		jobs = append(jobs, job{
			deliveryID: retryID,
			recipient: models.Recipient{
				Phone:        e.Phone,
				Name:         e.DisplayName,
				Kind:         e.RecipientKind,
				SubjectID:    e.SubjectID,
				SubjectLabel: e.SubjectLabel,
				GroupID:      e.GroupID,
				GroupLabel:   e.GroupLabel,
			},
			message:      e.Message,
			templateCode: e.TemplateCode,
			category:     e.Category,
			priority:     e.Priority,
			retryOf:      e.ID,
			retryCount:   e.RetryCount,
		})
	}
	if len(jobs) == 0 {
		result.Finalize()
		return result, nil
	}

	result.TemplateCode = commonTemplate(jobs)
	s.run(ctx, id, backend, result, jobs)
	return result, nil
}

// claimRetry reserves the single retry of a failed entry and returns a skip
// reason when another request got there first
func (s *DispatchService) claimRetry(ctx context.Context, tenantID, deliveryID, retryID string) string {
	err := s.ledger.ClaimRetry(ctx, tenantID, deliveryID, retryID, s.now())
	switch {
	case err == nil:
		return ""
	case errors.Is(err, models.ErrAlreadyRetried):
		return "already retried"
	case errors.Is(err, models.ErrInvalidTransition):
		return "retry limit reached"
	case errors.Is(err, repositories.ErrNotFound):
		return "not found"
	}
	s.log.WithError(err).WithField("delivery_id", deliveryID).Error("Failed to claim retry")
	return "failed to claim retry: " + err.Error()
}

// run sends every job through a bounded pool and fills result in job order.
// The batch outlives the caller's context so a dropped request cannot leave
// entries pending.
func (s *DispatchService) run(ctx context.Context, id models.Identity, backend smsgateway.Backend, result *models.BatchResult, jobs []job) {
	ctx = context.WithoutCancel(ctx)
	started := s.now()
	outcomes := make([]jobOutcome, len(jobs))

	g := new(errgroup.Group)
	g.SetLimit(s.cfg.Concurrency)
	for i := range jobs {
		i := i
		g.Go(func() error {
			outcomes[i] = s.deliver(ctx, id, backend, result.BatchID, jobs[i])
			return nil
		})
	}
	_ = g.Wait()

	for i, o := range outcomes {
		r := jobs[i].recipient
		if o.ok {
			result.Sent = append(result.Sent, models.SentItem{
				Phone:      r.Phone,
				Name:       r.Name,
				Message:    jobs[i].message,
				DeliveryID: o.deliveryID,
				Warning:    o.warning,
			})
			continue
		}
		result.Failed = append(result.Failed, models.FailedItem{
			Phone:      r.Phone,
			Name:       r.Name,
			Error:      o.err,
			DeliveryID: o.deliveryID,
		})
	}
	result.Finalize()

	s.metrics.BatchCompleted(result.TemplateCode)
	s.log.WithFields(logrus.Fields{
		"tenant_id":     id.TenantID,
		"batch_id":      result.BatchID,
		"template_code": result.TemplateCode,
		"backend":       backend.Name(),
		"total":         result.Total,
		"sent":          result.SuccessCount,
		"failed":        result.FailureCount,
		"duration":      s.now().Sub(started).String(),
	}).Info("Batch dispatched")

	evt := events.BatchCompleted{
		TenantID:     id.TenantID,
		BatchID:      result.BatchID,
		TemplateCode: result.TemplateCode,
		Backend:      backend.Name(),
		SentBy:       id.OperatorID,
		Total:        result.Total,
		SuccessCount: result.SuccessCount,
		FailureCount: result.FailureCount,
		CompletedAt:  s.now(),
	}
	if err := s.publisher.PublishBatchCompleted(ctx, evt); err != nil {
		s.log.WithError(err).WithField("batch_id", result.BatchID).Warn("Failed to publish batch event")
	}
}

// deliver records a pending entry, sends, then records the outcome. The
// template's usage counter is bumped once per recipient whatever happens.
func (s *DispatchService) deliver(ctx context.Context, id models.Identity, backend smsgateway.Backend, batchID string, j job) jobOutcome {
	defer s.countUsage(ctx, id.TenantID, j.templateCode)

	phone := j.recipient.Phone
	if normalized, err := smsgateway.NormalizePhone(phone); err == nil {
		phone = normalized
	}
	if j.deliveryID == "" {
		j.deliveryID = uuid.NewString()
	}
	now := s.now()
	entry := &models.DeliveryLog{
		ID:            j.deliveryID,
		TenantID:      id.TenantID,
		BatchID:       batchID,
		TemplateCode:  j.templateCode,
		Message:       j.message,
		Phone:         phone,
		DisplayName:   j.recipient.Name,
		RecipientKind: j.recipient.Kind,
		SubjectID:     j.recipient.SubjectID,
		SubjectLabel:  j.recipient.SubjectLabel,
		GroupID:       j.recipient.GroupID,
		GroupLabel:    j.recipient.GroupLabel,
		SentBy:        id.OperatorID,
		SentByName:    id.OperatorName,
		Status:        models.StatusPending,
		Gateway:       backend.Name(),
		Category:      j.category,
		Priority:      j.priority,
		ScheduledTime: &now,
		RetryCount:    j.retryCount,
		MaxRetries:    s.cfg.MaxRetries,
		RetryOf:       j.retryOf,
	}
	log := s.log.WithFields(logrus.Fields{"batch_id": batchID, "delivery_id": entry.ID})

	if err := s.ledger.Create(ctx, entry); err != nil {
		log.WithError(err).Error("Failed to record delivery, send skipped")
		return jobOutcome{err: "failed to record delivery: " + err.Error()}
	}

	res := s.sender.Send(ctx, backend, j.recipient.Phone, j.message)
	at := s.now()
	if res.OK {
		out := jobOutcome{deliveryID: entry.ID, ok: true}
		if err := s.ledger.MarkSent(ctx, id.TenantID, entry.ID, res.GatewayResponse(), res.Cost, at); err != nil {
			log.WithError(err).Error("Failed to mark delivery sent")
			out.warning = s.ledgerMismatch(ctx, id.TenantID, entry.ID, err)
		}
		return out
	}
	if err := s.ledger.MarkFailed(ctx, id.TenantID, entry.ID, res.Error, res.GatewayResponse(), at); err != nil {
		log.WithError(err).Error("Failed to mark delivery failed")
	}
	return jobOutcome{deliveryID: entry.ID, err: res.Error}
}

// ledgerMismatch describes a message that went out while its ledger entry
// could not be moved to sent, typically because it was cancelled mid-send
func (s *DispatchService) ledgerMismatch(ctx context.Context, tenantID, deliveryID string, err error) string {
	if errors.Is(err, models.ErrInvalidTransition) {
		if cur, ferr := s.ledger.FindByID(ctx, tenantID, deliveryID); ferr == nil {
			return "message sent but delivery is " + string(cur.Status)
		}
	}
	return "message sent but ledger update failed: " + err.Error()
}

func (s *DispatchService) countUsage(ctx context.Context, tenantID, code string) {
	err := s.templates.IncrementUsage(ctx, tenantID, code, 1)
	if err == nil || errors.Is(err, ErrTemplateNotFound) {
		return
	}
	s.log.WithError(err).WithField("template_code", code).Warn("Failed to count template usage")
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func commonTemplate(jobs []job) string {
	code := jobs[0].templateCode
	for _, j := range jobs[1:] {
		if j.templateCode != code {
			return ""
		}
	}
	return code
}
