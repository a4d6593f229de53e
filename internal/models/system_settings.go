package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// GatewaySettings holds the SMS backend a tenant dispatches through
type GatewaySettings struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	TenantID    string             `bson:"tenantId" json:"tenantId"`
	Backend     string             `bson:"backend" json:"backend"`
	Credentials map[string]string  `bson:"credentials" json:"credentials"`
	IsDefault   bool               `bson:"-" json:"isDefault"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
	UpdatedBy   string             `bson:"updatedBy" json:"updatedBy"`
}

// Masked returns a copy whose credential values keep only their last 4 characters
func (s *GatewaySettings) Masked() *GatewaySettings {
	c := *s
	c.Credentials = make(map[string]string, len(s.Credentials))
	for k, v := range s.Credentials {
		c.Credentials[k] = maskSecret(v)
	}
	return &c
}

// GatewayConfigRequest configures or tests a backend
type GatewayConfigRequest struct {
	Backend     string            `json:"backend" binding:"required"`
	Credentials map[string]string `json:"credentials"`
	TestPhone   string            `json:"testPhone"`
}

func maskSecret(v string) string {
	if len(v) <= 4 {
		return strings.Repeat("*", len(v))
	}
	return strings.Repeat("*", len(v)-4) + v[len(v)-4:]
}
