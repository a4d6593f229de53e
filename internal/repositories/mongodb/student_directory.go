package mongodb

import (
	"context"
	"errors"
	"time"

	"github.com/ArowuTest/edunotify-backend/internal/models"
	"github.com/ArowuTest/edunotify-backend/internal/repositories"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	_ repositories.StudentDirectory = (*StudentDirectory)(nil)
	_ repositories.DirectoryWriter  = (*StudentDirectory)(nil)
)

// StudentDirectory reads and loads the students and attendance collections
type StudentDirectory struct {
	students   *mongo.Collection
	attendance *mongo.Collection
}

// NewStudentDirectory creates a new StudentDirectory
func NewStudentDirectory(db *mongo.Database) *StudentDirectory {
	return &StudentDirectory{
		students:   db.Collection(StudentsCollection),
		attendance: db.Collection(AttendanceCollection),
	}
}

var studentOrder = options.Find().SetSort(bson.D{{Key: "classId", Value: 1}, {Key: "rollNumber", Value: 1}})

// FindAbsentees collects the absent student ids for the date, then loads
// those students with a single $in query.
func (d *StudentDirectory) FindAbsentees(ctx context.Context, tenantID, date, classID string) ([]*models.Student, error) {
	query := bson.M{"tenantId": tenantID, "date": date, "status": models.AttendanceAbsent}
	if classID != "" {
		query["classId"] = classID
	}
	ids, err := d.attendance.Distinct(ctx, "studentId", query)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []*models.Student{}, nil
	}

	studentIDs := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if oid, ok := id.(primitive.ObjectID); ok {
			studentIDs = append(studentIDs, oid)
		}
	}
	return d.find(ctx, bson.M{
		"tenantId": tenantID,
		"_id":      bson.M{"$in": studentIDs},
		"isActive": true,
	})
}

// FindFeeDefaulters finds active students whose fee balance is at least minBalance
func (d *StudentDirectory) FindFeeDefaulters(ctx context.Context, tenantID string, minBalance float64, classID string) ([]*models.Student, error) {
	query := bson.M{
		"tenantId":   tenantID,
		"isActive":   true,
		"feeBalance": bson.M{"$gte": minBalance},
	}
	if classID != "" {
		query["classId"] = classID
	}
	return d.find(ctx, query)
}

func (d *StudentDirectory) find(ctx context.Context, query bson.M) ([]*models.Student, error) {
	cursor, err := d.students.Find(ctx, query, studentOrder)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	students := []*models.Student{}
	if err := cursor.All(ctx, &students); err != nil {
		return nil, err
	}
	return students, nil
}

// UpsertStudent matches on tenant, class and roll number. createdAt is only
// set on insert.
func (d *StudentDirectory) UpsertStudent(ctx context.Context, student *models.Student) error {
	filter := bson.M{
		"tenantId":   student.TenantID,
		"classId":    student.ClassID,
		"rollNumber": student.RollNumber,
	}
	update := bson.M{
		"$set": bson.M{
			"name":          student.Name,
			"className":     student.ClassName,
			"guardianName":  student.GuardianName,
			"guardianPhone": student.GuardianPhone,
			"feeBalance":    student.FeeBalance,
			"isActive":      student.IsActive,
		},
		"$setOnInsert": bson.M{"createdAt": time.Now()},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	return d.students.FindOneAndUpdate(ctx, filter, update, opts).Decode(student)
}

// RecordAttendance keeps one record per student per date
func (d *StudentDirectory) RecordAttendance(ctx context.Context, record *models.AttendanceRecord) error {
	filter := bson.M{
		"tenantId":  record.TenantID,
		"studentId": record.StudentID,
		"date":      record.Date,
	}
	update := bson.M{"$set": bson.M{"classId": record.ClassID, "status": record.Status}}
	_, err := d.attendance.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return err
}

// FindStudent looks a student up by class and roll number
func (d *StudentDirectory) FindStudent(ctx context.Context, tenantID, classID, rollNumber string) (*models.Student, error) {
	var student models.Student
	err := d.students.FindOne(ctx, bson.M{
		"tenantId":   tenantID,
		"classId":    classID,
		"rollNumber": rollNumber,
	}).Decode(&student)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, repositories.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &student, nil
}
