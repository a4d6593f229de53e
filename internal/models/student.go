package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Student is the directory record recipient resolution reads from
type Student struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	TenantID      string             `bson:"tenantId" json:"tenantId"`
	Name          string             `bson:"name" json:"name"`
	RollNumber    string             `bson:"rollNumber" json:"rollNumber"`
	ClassID       string             `bson:"classId" json:"classId"`
	ClassName     string             `bson:"className" json:"className"`
	GuardianName  string             `bson:"guardianName" json:"guardianName"`
	GuardianPhone string             `bson:"guardianPhone" json:"guardianPhone"`
	FeeBalance    float64            `bson:"feeBalance" json:"feeBalance"`
	IsActive      bool               `bson:"isActive" json:"isActive"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
}

// AttendanceStatus values recorded per student per day
const (
	AttendancePresent = "present"
	AttendanceAbsent  = "absent"
	AttendanceLate    = "late"
)

// AttendanceRecord marks one student on one date (YYYY-MM-DD)
type AttendanceRecord struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	TenantID  string             `bson:"tenantId" json:"tenantId"`
	StudentID primitive.ObjectID `bson:"studentId" json:"studentId"`
	ClassID   string             `bson:"classId" json:"classId"`
	Date      string             `bson:"date" json:"date"`
	Status    string             `bson:"status" json:"status"`
}
