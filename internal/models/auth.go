package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Operator roles
const (
	RoleAdmin    = "admin"
	RoleOperator = "operator"
)

// LoginRequest defines the structure for login requests
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RegisterRequest defines the structure for registration requests
type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Role     string `json:"role"`
}

// Operator is a school staff account allowed to send notifications for one tenant
type Operator struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	TenantID  string             `bson:"tenantId" json:"tenantId"`
	Name      string             `bson:"name" json:"name"`
	Email     string             `bson:"email" json:"email"`
	Password  string             `bson:"password" json:"-"` // bcrypt hash
	Role      string             `bson:"role" json:"role"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Identity returns the identity carried in tokens issued to o
func (o *Operator) Identity() Identity {
	return Identity{
		OperatorID:   o.ID.Hex(),
		OperatorName: o.Name,
		TenantID:     o.TenantID,
		Role:         o.Role,
	}
}

// LoginResponse is returned on successful login
type LoginResponse struct {
	Token    string    `json:"token"`
	Operator *Operator `json:"operator"`
}
