package services

import (
	"context"
	"fmt"
	"time"

	"github.com/ArowuTest/edunotify-backend/internal/models"
	"github.com/ArowuTest/edunotify-backend/internal/repositories"
)

// DeliveryService answers ledger queries and applies manual status changes
type DeliveryService struct {
	ledger repositories.DeliveryRepository
	now    func() time.Time
}

// NewDeliveryService creates a DeliveryService
func NewDeliveryService(ledger repositories.DeliveryRepository) *DeliveryService {
	return &DeliveryService{ledger: ledger, now: time.Now}
}

// List returns one page of the tenant's entries, newest first
func (s *DeliveryService) List(ctx context.Context, tenantID string, filter models.DeliveryFilter, page, limit int) ([]*models.DeliveryLog, int64, error) {
	if err := checkFilter(filter); err != nil {
		return nil, 0, err
	}
	filter.TenantID = tenantID
	page, limit = normalizePage(page, limit)
	items, total, err := s.ledger.FindAll(ctx, filter, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list deliveries: %w", err)
	}
	return items, total, nil
}

// Get returns one entry of the tenant
func (s *DeliveryService) Get(ctx context.Context, tenantID, id string) (*models.DeliveryLog, error) {
	entry, err := s.ledger.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, fmt.Errorf("delivery %s: %w", id, err)
	}
	return entry, nil
}

// Statistics aggregates the tenant's entries matching filter
func (s *DeliveryService) Statistics(ctx context.Context, tenantID string, filter models.DeliveryFilter) (*models.DeliveryStatistics, error) {
	if err := checkFilter(filter); err != nil {
		return nil, err
	}
	filter.TenantID = tenantID
	stats, err := s.ledger.Statistics(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to compute statistics: %w", err)
	}
	return stats, nil
}

// MarkDelivered records a delivery confirmation for a sent entry
func (s *DeliveryService) MarkDelivered(ctx context.Context, tenantID, id string) (*models.DeliveryLog, error) {
	if err := s.ledger.MarkDelivered(ctx, tenantID, id, s.now()); err != nil {
		return nil, fmt.Errorf("delivery %s: %w", id, err)
	}
	return s.Get(ctx, tenantID, id)
}

// Cancel withdraws a pending entry
func (s *DeliveryService) Cancel(ctx context.Context, tenantID, id string) (*models.DeliveryLog, error) {
	if err := s.ledger.MarkCancelled(ctx, tenantID, id, s.now()); err != nil {
		return nil, fmt.Errorf("delivery %s: %w", id, err)
	}
	return s.Get(ctx, tenantID, id)
}

func checkFilter(f models.DeliveryFilter) error {
	if f.Status != "" && !f.Status.Valid() {
		return models.NewValidationError("status", "must be one of pending, sent, delivered, failed, cancelled")
	}
	if f.Category != "" && !f.Category.Valid() {
		return models.NewValidationError("category", "is not a known category")
	}
	if f.From != nil && f.To != nil && f.From.After(*f.To) {
		return models.NewValidationError("from", "must not be after to")
	}
	return nil
}
