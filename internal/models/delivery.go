package models

import "time"

// DeliveryStatus is the state of a single ledger entry
type DeliveryStatus string

const (
	StatusPending   DeliveryStatus = "pending"
	StatusSent      DeliveryStatus = "sent"
	StatusDelivered DeliveryStatus = "delivered"
	StatusFailed    DeliveryStatus = "failed"
	StatusCancelled DeliveryStatus = "cancelled"
)

// Valid reports whether s is a known status
func (s DeliveryStatus) Valid() bool {
	switch s {
	case StatusPending, StatusSent, StatusDelivered, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// CanTransition reports whether an entry in status from may move to status to.
// failed, delivered and cancelled are terminal.
func CanTransition(from, to DeliveryStatus) bool {
	switch from {
	case StatusPending:
		return to == StatusSent || to == StatusFailed || to == StatusCancelled
	case StatusSent:
		return to == StatusDelivered
	}
	return false
}

// RecipientKind says who a message was addressed to
type RecipientKind string

const (
	KindStudent RecipientKind = "student"
	KindParent  RecipientKind = "parent"
	KindTeacher RecipientKind = "teacher"
	KindStaff   RecipientKind = "staff"
)

// Valid reports whether k is a known recipient kind
func (k RecipientKind) Valid() bool {
	switch k {
	case KindStudent, KindParent, KindTeacher, KindStaff:
		return true
	}
	return false
}

// DefaultMaxRetries caps how often a failed entry may be re-sent
const DefaultMaxRetries = 3

// DeliveryLog is one ledger entry: a single attempt to send a single rendered
// message to a single recipient. The template code and rendered message are
// copied onto the entry so it stays accurate after the template changes.
type DeliveryLog struct {
	ID           string `bson:"_id" json:"id"`
	TenantID     string `bson:"tenantId" json:"tenantId"`
	BatchID      string `bson:"batchId" json:"batchId"`
	TemplateCode string `bson:"templateCode" json:"templateCode"`
	Message      string `bson:"message" json:"message"`

	Phone         string        `bson:"phone" json:"phone"`
	DisplayName   string        `bson:"displayName" json:"displayName"`
	RecipientKind RecipientKind `bson:"recipientKind" json:"recipientKind"`
	SubjectID     string        `bson:"subjectId,omitempty" json:"subjectId,omitempty"`
	SubjectLabel  string        `bson:"subjectLabel,omitempty" json:"subjectLabel,omitempty"`
	GroupID       string        `bson:"groupId,omitempty" json:"groupId,omitempty"`
	GroupLabel    string        `bson:"groupLabel,omitempty" json:"groupLabel,omitempty"`

	SentBy     string `bson:"sentBy" json:"sentBy"`
	SentByName string `bson:"sentByName" json:"sentByName"`

	Status          DeliveryStatus         `bson:"status" json:"status"`
	Gateway         string                 `bson:"gateway" json:"gateway"`
	GatewayResponse map[string]interface{} `bson:"gatewayResponse" json:"gatewayResponse"`
	Cost            float64                `bson:"cost" json:"cost"`

	Category TemplateCategory `bson:"category" json:"category"`
	Priority TemplatePriority `bson:"priority" json:"priority"`

	ScheduledTime *time.Time `bson:"scheduledTime,omitempty" json:"scheduledTime,omitempty"`
	SentTime      *time.Time `bson:"sentTime,omitempty" json:"sentTime,omitempty"`
	DeliveredTime *time.Time `bson:"deliveredTime,omitempty" json:"deliveredTime,omitempty"`

	ErrorMessage string `bson:"errorMessage,omitempty" json:"errorMessage,omitempty"`
	RetryCount   int    `bson:"retryCount" json:"retryCount"`
	MaxRetries   int    `bson:"maxRetries" json:"maxRetries"`
	RetryOf      string `bson:"retryOf,omitempty" json:"retryOf,omitempty"`
	RetriedBy    string `bson:"retriedBy,omitempty" json:"retriedBy,omitempty"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// CanRetry reports whether the entry is failed, has not been retried yet and
// is still below its retry cap
func (d *DeliveryLog) CanRetry() bool {
	return d.Status == StatusFailed && d.RetriedBy == "" && d.RetryCount < d.MaxRetries
}

// Clone returns a deep copy of the entry
func (d *DeliveryLog) Clone() *DeliveryLog {
	if d == nil {
		return nil
	}
	c := *d
	if d.GatewayResponse != nil {
		c.GatewayResponse = make(map[string]interface{}, len(d.GatewayResponse))
		for k, v := range d.GatewayResponse {
			c.GatewayResponse[k] = v
		}
	}
	c.ScheduledTime = cloneTime(d.ScheduledTime)
	c.SentTime = cloneTime(d.SentTime)
	c.DeliveredTime = cloneTime(d.DeliveredTime)
	return &c
}

// MergeResponse copies every non-nil value of resp into d.GatewayResponse
func (d *DeliveryLog) MergeResponse(resp map[string]interface{}) {
	if len(resp) == 0 {
		return
	}
	if d.GatewayResponse == nil {
		d.GatewayResponse = make(map[string]interface{}, len(resp))
	}
	for k, v := range resp {
		if v == nil {
			continue
		}
		d.GatewayResponse[k] = v
	}
}

// DeliveryFilter narrows ledger queries. Every query is scoped to TenantID.
// From and To bound createdAt inclusively.
type DeliveryFilter struct {
	TenantID     string
	Status       DeliveryStatus
	Category     TemplateCategory
	SubjectID    string
	BatchID      string
	TemplateCode string
	From         *time.Time
	To           *time.Time
}

// DeliveryStatistics aggregates a filtered set of ledger entries
type DeliveryStatistics struct {
	Total      int64   `json:"total" bson:"total"`
	Successful int64   `json:"successful" bson:"successful"`
	Delivered  int64   `json:"delivered" bson:"delivered"`
	Failed     int64   `json:"failed" bson:"failed"`
	Pending    int64   `json:"pending" bson:"pending"`
	Cancelled  int64   `json:"cancelled" bson:"cancelled"`
	TotalCost  float64 `json:"totalCost" bson:"totalCost"`
}

// Add folds one entry into the statistics
func (s *DeliveryStatistics) Add(d *DeliveryLog) {
	s.Total++
	switch d.Status {
	case StatusSent:
		s.Successful++
	case StatusDelivered:
		s.Successful++
		s.Delivered++
	case StatusFailed:
		s.Failed++
	case StatusPending:
		s.Pending++
	case StatusCancelled:
		s.Cancelled++
	}
	s.TotalCost += d.Cost
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
