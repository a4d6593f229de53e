package models

// Identity is the authenticated operator on whose behalf a request runs
type Identity struct {
	OperatorID   string `json:"operatorId"`
	OperatorName string `json:"operatorName"`
	TenantID     string `json:"tenantId"`
	Role         string `json:"role"`
}

// Recipient is one resolved addressee of a batch
type Recipient struct {
	Phone        string                 `json:"phone" binding:"required"`
	Name         string                 `json:"name"`
	Kind         RecipientKind          `json:"kind"`
	SubjectID    string                 `json:"subjectId,omitempty"`
	SubjectLabel string                 `json:"subjectLabel,omitempty"`
	GroupID      string                 `json:"groupId,omitempty"`
	GroupLabel   string                 `json:"groupLabel,omitempty"`
	Data         map[string]interface{} `json:"data,omitempty"`
}

// DispatchRequest sends one template to many recipients
type DispatchRequest struct {
	TemplateCode string                 `json:"templateCode" binding:"required"`
	SharedData   map[string]interface{} `json:"sharedData"`
	Recipients   []Recipient            `json:"recipients"`
}

// SentItem is a recipient whose message the gateway accepted. Warning is set
// when the ledger entry could not be moved to sent afterwards.
type SentItem struct {
	Phone      string `json:"phone"`
	Name       string `json:"name"`
	Message    string `json:"message"`
	DeliveryID string `json:"deliveryId"`
	Warning    string `json:"warning,omitempty"`
}

// FailedItem is a recipient whose message failed
type FailedItem struct {
	Phone      string `json:"phone"`
	Name       string `json:"name"`
	Error      string `json:"error"`
	DeliveryID string `json:"deliveryId,omitempty"`
}

// SkippedItem is a retry request that was not attempted
type SkippedItem struct {
	DeliveryID string `json:"deliveryId"`
	Reason     string `json:"reason"`
}

// BatchResult reports the outcome of one batch. It is never persisted.
type BatchResult struct {
	BatchID      string        `json:"batchId"`
	TemplateCode string        `json:"templateCode"`
	Sent         []SentItem    `json:"sent"`
	Failed       []FailedItem  `json:"failed"`
	Skipped      []SkippedItem `json:"skipped,omitempty"`
	Total        int           `json:"total"`
	SuccessCount int           `json:"successCount"`
	FailureCount int           `json:"failureCount"`
}

// NewBatchResult returns an empty result with non-nil lists so it encodes as []
func NewBatchResult(batchID, templateCode string) *BatchResult {
	return &BatchResult{
		BatchID:      batchID,
		TemplateCode: templateCode,
		Sent:         []SentItem{},
		Failed:       []FailedItem{},
	}
}

// Finalize recomputes the derived counters
func (b *BatchResult) Finalize() {
	b.SuccessCount = len(b.Sent)
	b.FailureCount = len(b.Failed)
	b.Total = b.SuccessCount + b.FailureCount
}

// AbsenteeRequest asks for guardians of students absent on Date to be notified
type AbsenteeRequest struct {
	Date         string                 `json:"date" binding:"required"`
	ClassID      string                 `json:"classId"`
	TemplateCode string                 `json:"templateCode"`
	SharedData   map[string]interface{} `json:"sharedData"`
}

// FeeBalanceRequest asks for guardians of students owing at least MinimumBalance to be notified
type FeeBalanceRequest struct {
	MinimumBalance float64                `json:"minimumBalance"`
	ClassID        string                 `json:"classId"`
	TemplateCode   string                 `json:"templateCode"`
	SharedData     map[string]interface{} `json:"sharedData"`
}

// RetryRequest re-sends failed ledger entries
type RetryRequest struct {
	DeliveryIDs []string `json:"deliveryIds" binding:"required"`
}
