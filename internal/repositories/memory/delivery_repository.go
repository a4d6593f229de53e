package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ArowuTest/edunotify-backend/internal/models"
	"github.com/ArowuTest/edunotify-backend/internal/repositories"
)

var _ repositories.DeliveryRepository = (*DeliveryRepository)(nil)

// DeliveryRepository is an in-process delivery ledger
type DeliveryRepository struct {
	mu      sync.RWMutex
	entries map[string]*models.DeliveryLog
	order   map[string]uint64
	seq     uint64
}

// NewDeliveryRepository creates an empty ledger
func NewDeliveryRepository() *DeliveryRepository {
	return &DeliveryRepository{
		entries: make(map[string]*models.DeliveryLog),
		order:   make(map[string]uint64),
	}
}

// Create appends a pending entry
func (r *DeliveryRepository) Create(ctx context.Context, entry *models.DeliveryLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[entry.ID]; ok {
		return repositories.ErrDuplicate
	}
	now := time.Now()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now
	if entry.GatewayResponse == nil {
		entry.GatewayResponse = map[string]interface{}{}
	}
	r.seq++
	r.order[entry.ID] = r.seq
	r.entries[entry.ID] = entry.Clone()
	return nil
}

// FindByID returns one entry of the tenant
func (r *DeliveryRepository) FindByID(ctx context.Context, tenantID, id string) (*models.DeliveryLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	if !ok || e.TenantID != tenantID {
		return nil, repositories.ErrNotFound
	}
	return e.Clone(), nil
}

// FindByIDs returns the entries that exist, in the order of ids
func (r *DeliveryRepository) FindByIDs(ctx context.Context, tenantID string, ids []string) ([]*models.DeliveryLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.DeliveryLog, 0, len(ids))
	for _, id := range ids {
		if e, ok := r.entries[id]; ok && e.TenantID == tenantID {
			out = append(out, e.Clone())
		}
	}
	return out, nil
}

// FindAll lists matching entries newest first
func (r *DeliveryRepository) FindAll(ctx context.Context, filter models.DeliveryFilter, page, limit int) ([]*models.DeliveryLog, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := r.matchLocked(filter)
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return r.order[a.ID] > r.order[b.ID]
	})

	out := []*models.DeliveryLog{}
	for _, e := range paginate(matched, page, limit) {
		out = append(out, e.Clone())
	}
	return out, int64(len(matched)), nil
}

// Statistics aggregates matching entries in one pass
func (r *DeliveryRepository) Statistics(ctx context.Context, filter models.DeliveryFilter) (*models.DeliveryStatistics, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := &models.DeliveryStatistics{}
	for _, e := range r.entries {
		if matchDelivery(filter, e) {
			stats.Add(e)
		}
	}
	return stats, nil
}

// MarkSent moves a pending entry to sent and merges the gateway response
func (r *DeliveryRepository) MarkSent(ctx context.Context, tenantID, id string, response map[string]interface{}, cost float64, at time.Time) error {
	return r.transition(tenantID, id, models.StatusSent, func(e *models.DeliveryLog) {
		e.SentTime = &at
		e.Cost = cost
		e.MergeResponse(response)
	})
}

// MarkDelivered moves a sent entry to delivered
func (r *DeliveryRepository) MarkDelivered(ctx context.Context, tenantID, id string, at time.Time) error {
	return r.transition(tenantID, id, models.StatusDelivered, func(e *models.DeliveryLog) {
		e.DeliveredTime = &at
	})
}

// MarkFailed moves a pending entry to failed and bumps its retry count
func (r *DeliveryRepository) MarkFailed(ctx context.Context, tenantID, id, errMsg string, response map[string]interface{}, at time.Time) error {
	return r.transition(tenantID, id, models.StatusFailed, func(e *models.DeliveryLog) {
		e.ErrorMessage = errMsg
		e.RetryCount++
		e.MergeResponse(response)
	})
}

// MarkCancelled moves a pending entry to cancelled
func (r *DeliveryRepository) MarkCancelled(ctx context.Context, tenantID, id string, at time.Time) error {
	return r.transition(tenantID, id, models.StatusCancelled, func(*models.DeliveryLog) {})
}

// ClaimRetry marks a failed entry as retried by retryID
func (r *DeliveryRepository) ClaimRetry(ctx context.Context, tenantID, id, retryID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok || e.TenantID != tenantID {
		return repositories.ErrNotFound
	}
	if e.RetriedBy != "" {
		return models.ErrAlreadyRetried
	}
	if !e.CanRetry() {
		return models.ErrInvalidTransition
	}
	e.RetriedBy = retryID
	e.UpdatedAt = at
	return nil
}

func (r *DeliveryRepository) transition(tenantID, id string, to models.DeliveryStatus, apply func(*models.DeliveryLog)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok || e.TenantID != tenantID {
		return repositories.ErrNotFound
	}
	if !models.CanTransition(e.Status, to) {
		return models.ErrInvalidTransition
	}
	apply(e)
	e.Status = to
	e.UpdatedAt = time.Now()
	return nil
}

func (r *DeliveryRepository) matchLocked(filter models.DeliveryFilter) []*models.DeliveryLog {
	var matched []*models.DeliveryLog
	for _, e := range r.entries {
		if matchDelivery(filter, e) {
			matched = append(matched, e)
		}
	}
	return matched
}

func matchDelivery(f models.DeliveryFilter, e *models.DeliveryLog) bool {
	switch {
	case e.TenantID != f.TenantID:
		return false
	case f.Status != "" && e.Status != f.Status:
		return false
	case f.Category != "" && e.Category != f.Category:
		return false
	case f.SubjectID != "" && e.SubjectID != f.SubjectID:
		return false
	case f.BatchID != "" && e.BatchID != f.BatchID:
		return false
	case f.TemplateCode != "" && e.TemplateCode != f.TemplateCode:
		return false
	case f.From != nil && e.CreatedAt.Before(*f.From):
		return false
	case f.To != nil && e.CreatedAt.After(*f.To):
		return false
	}
	return true
}
