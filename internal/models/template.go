package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TemplateCategory groups templates by the kind of event they announce
type TemplateCategory string

const (
	CategoryAttendance TemplateCategory = "attendance"
	CategoryFees       TemplateCategory = "fees"
	CategoryExam       TemplateCategory = "exam"
	CategoryGeneral    TemplateCategory = "general"
	CategoryEmergency  TemplateCategory = "emergency"
	CategoryEvent      TemplateCategory = "event"
)

// Valid reports whether c is one of the known categories
func (c TemplateCategory) Valid() bool {
	switch c {
	case CategoryAttendance, CategoryFees, CategoryExam, CategoryGeneral, CategoryEmergency, CategoryEvent:
		return true
	}
	return false
}

// TemplatePriority is copied onto every delivery rendered from the template
type TemplatePriority string

const (
	PriorityLow    TemplatePriority = "low"
	PriorityMedium TemplatePriority = "medium"
	PriorityHigh   TemplatePriority = "high"
	PriorityUrgent TemplatePriority = "urgent"
)

// Valid reports whether p is one of the known priorities
func (p TemplatePriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// TemplateVariable declares one {{name}} placeholder of a template body
type TemplateVariable struct {
	Name        string `bson:"name" json:"name"`
	Description string `bson:"description" json:"description"`
	Example     string `bson:"example,omitempty" json:"example,omitempty"`
}

// Template represents a reusable SMS message pattern
type Template struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	TenantID   string             `bson:"tenantId" json:"tenantId"`
	Code       string             `bson:"code" json:"code"`
	Name       string             `bson:"name" json:"name"`
	Category   TemplateCategory   `bson:"category" json:"category"`
	Priority   TemplatePriority   `bson:"priority" json:"priority"`
	Body       string             `bson:"body" json:"body"`
	Variables  []TemplateVariable `bson:"variables" json:"variables"`
	Sample     string             `bson:"sample" json:"sample"`
	UsageCount int64              `bson:"usageCount" json:"usageCount"`
	IsActive   bool               `bson:"isActive" json:"isActive"`
	IsDeleted  bool               `bson:"isDeleted" json:"-"`
	DeletedAt  *time.Time         `bson:"deletedAt,omitempty" json:"-"`
	CreatedBy  string             `bson:"createdBy" json:"createdBy"`
	UpdatedBy  string             `bson:"updatedBy,omitempty" json:"updatedBy,omitempty"`
	CreatedAt  time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Validate checks the fields an operator must supply. Priority is optional
// and defaulted by the caller.
func (t *Template) Validate() error {
	if t.Code == "" {
		return NewValidationError("code", "is required")
	}
	if t.Category == "" {
		return NewValidationError("category", "is required")
	}
	if !t.Category.Valid() {
		return NewValidationError("category", "must be one of attendance, fees, exam, general, emergency, event")
	}
	if t.Priority != "" && !t.Priority.Valid() {
		return NewValidationError("priority", "must be one of low, medium, high, urgent")
	}
	if t.Body == "" {
		return NewValidationError("body", "is required")
	}

	seen := make(map[string]struct{}, len(t.Variables))
	for i, v := range t.Variables {
		if v.Name == "" {
			return NewValidationError(variableField(i, "name"), "is required")
		}
		if v.Description == "" {
			return NewValidationError(variableField(i, "description"), "is required")
		}
		if _, dup := seen[v.Name]; dup {
			return NewValidationError(variableField(i, "name"), "duplicate variable "+v.Name)
		}
		seen[v.Name] = struct{}{}
	}
	return nil
}

// Clone returns a deep copy safe to hand to another goroutine
func (t *Template) Clone() *Template {
	if t == nil {
		return nil
	}
	c := *t
	if t.Variables != nil {
		c.Variables = append([]TemplateVariable(nil), t.Variables...)
	}
	if t.DeletedAt != nil {
		at := *t.DeletedAt
		c.DeletedAt = &at
	}
	return &c
}

// TemplateInput is the body of a create request. IsActive defaults to true.
type TemplateInput struct {
	Code      string             `json:"code"`
	Name      string             `json:"name"`
	Category  TemplateCategory   `json:"category"`
	Priority  TemplatePriority   `json:"priority"`
	Body      string             `json:"body"`
	Variables []TemplateVariable `json:"variables"`
	IsActive  *bool              `json:"isActive"`
}

// Template converts the input into a new template for tenantID
func (in TemplateInput) Template(tenantID string) *Template {
	t := &Template{
		TenantID:  tenantID,
		Code:      in.Code,
		Name:      in.Name,
		Category:  in.Category,
		Priority:  in.Priority,
		Body:      in.Body,
		Variables: append([]TemplateVariable{}, in.Variables...),
		IsActive:  true,
	}
	if in.IsActive != nil {
		t.IsActive = *in.IsActive
	}
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	return t
}

// TemplatePatch carries the editable fields of a template. Code is immutable.
type TemplatePatch struct {
	Name      *string             `json:"name"`
	Category  *TemplateCategory   `json:"category"`
	Priority  *TemplatePriority   `json:"priority"`
	Body      *string             `json:"body"`
	Variables *[]TemplateVariable `json:"variables"`
	IsActive  *bool               `json:"isActive"`
}

// Apply copies every non-nil patch field onto t
func (p TemplatePatch) Apply(t *Template) {
	if p.Name != nil {
		t.Name = *p.Name
	}
	if p.Category != nil {
		t.Category = *p.Category
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.Body != nil {
		t.Body = *p.Body
	}
	if p.Variables != nil {
		t.Variables = append([]TemplateVariable(nil), (*p.Variables)...)
	}
	if p.IsActive != nil {
		t.IsActive = *p.IsActive
	}
}

// TemplateFilter narrows template listings
type TemplateFilter struct {
	TenantID string
	Category TemplateCategory
	Active   *bool
	Search   string
}

func variableField(i int, name string) string {
	return "variables[" + itoa(i) + "]." + name
}
