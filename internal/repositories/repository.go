package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/ArowuTest/edunotify-backend/internal/models"
)

var (
	// ErrNotFound is returned when no record matches the tenant-scoped lookup
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique key already exists for the tenant
	ErrDuplicate = errors.New("record already exists")
)

// TemplateRepository defines the interface for template data operations.
// Soft-deleted templates are invisible to every method.
type TemplateRepository interface {
	Create(ctx context.Context, template *models.Template) error
	CreateMany(ctx context.Context, templates []*models.Template) error
	FindByCode(ctx context.Context, tenantID, code string) (*models.Template, error)
	FindAll(ctx context.Context, filter models.TemplateFilter, page, limit int) ([]*models.Template, int64, error)
	Update(ctx context.Context, template *models.Template) error
	SoftDelete(ctx context.Context, tenantID, code, deletedBy string) error
	// IncrementUsage atomically adds delta to the usage counter
	IncrementUsage(ctx context.Context, tenantID, code string, delta int64) error
	CountByTenant(ctx context.Context, tenantID string) (int64, error)
}

// DeliveryRepository is the delivery ledger. Entries are appended by Create and
// afterwards only move through the status transitions below. A transition that
// the current status does not allow returns models.ErrInvalidTransition.
type DeliveryRepository interface {
	Create(ctx context.Context, entry *models.DeliveryLog) error
	FindByID(ctx context.Context, tenantID, id string) (*models.DeliveryLog, error)
	FindByIDs(ctx context.Context, tenantID string, ids []string) ([]*models.DeliveryLog, error)
	FindAll(ctx context.Context, filter models.DeliveryFilter, page, limit int) ([]*models.DeliveryLog, int64, error)
	Statistics(ctx context.Context, filter models.DeliveryFilter) (*models.DeliveryStatistics, error)

	MarkSent(ctx context.Context, tenantID, id string, response map[string]interface{}, cost float64, at time.Time) error
	MarkDelivered(ctx context.Context, tenantID, id string, at time.Time) error
	// MarkFailed records errMsg and increments retryCount
	MarkFailed(ctx context.Context, tenantID, id, errMsg string, response map[string]interface{}, at time.Time) error
	MarkCancelled(ctx context.Context, tenantID, id string, at time.Time) error
	// ClaimRetry records retryID as the one retry of a failed entry. It
	// succeeds at most once per entry and only below the entry's retry cap;
	// otherwise it returns models.ErrAlreadyRetried or models.ErrInvalidTransition.
	ClaimRetry(ctx context.Context, tenantID, id, retryID string, at time.Time) error
}

// GatewaySettingsRepository stores the SMS backend configured per tenant
type GatewaySettingsRepository interface {
	FindByTenant(ctx context.Context, tenantID string) (*models.GatewaySettings, error)
	Upsert(ctx context.Context, settings *models.GatewaySettings) error
}

// OperatorRepository defines the interface for operator accounts
type OperatorRepository interface {
	Create(ctx context.Context, operator *models.Operator) error
	FindByEmail(ctx context.Context, email string) (*models.Operator, error)
}

// StudentDirectory resolves recipient sets from school records
type StudentDirectory interface {
	// FindAbsentees returns active students marked absent on date (YYYY-MM-DD)
	FindAbsentees(ctx context.Context, tenantID, date, classID string) ([]*models.Student, error)
	// FindFeeDefaulters returns active students whose balance is at least minBalance
	FindFeeDefaulters(ctx context.Context, tenantID string, minBalance float64, classID string) ([]*models.Student, error)
}

// DirectoryWriter loads school records into the student directory
type DirectoryWriter interface {
	// UpsertStudent inserts or replaces the student keyed by tenant, class
	// and roll number, and sets student.ID to the stored id
	UpsertStudent(ctx context.Context, student *models.Student) error
	// RecordAttendance inserts or replaces the student's record for the date
	RecordAttendance(ctx context.Context, record *models.AttendanceRecord) error
	FindStudent(ctx context.Context, tenantID, classID, rollNumber string) (*models.Student, error)
}
