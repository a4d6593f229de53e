package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ArowuTest/edunotify-backend/internal/models"
	"github.com/ArowuTest/edunotify-backend/internal/repositories"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	_ repositories.StudentDirectory = (*StudentDirectory)(nil)
	_ repositories.DirectoryWriter  = (*StudentDirectory)(nil)
)

// StudentDirectory is a fixture-friendly student and attendance store
type StudentDirectory struct {
	mu         sync.RWMutex
	students   []*models.Student
	attendance []models.AttendanceRecord
}

// NewStudentDirectory creates an empty directory
func NewStudentDirectory() *StudentDirectory {
	return &StudentDirectory{}
}

// AddStudent registers a student and returns its id
func (d *StudentDirectory) AddStudent(s models.Student) primitive.ObjectID {
	d.mu.Lock()
	defer d.mu.Unlock()

	if s.ID.IsZero() {
		s.ID = primitive.NewObjectID()
	}
	d.students = append(d.students, &s)
	return s.ID
}

// MarkAttendance records a student's status for a date
func (d *StudentDirectory) MarkAttendance(rec models.AttendanceRecord) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if rec.ID.IsZero() {
		rec.ID = primitive.NewObjectID()
	}
	d.attendance = append(d.attendance, rec)
}

// FindAbsentees returns active students absent on date, ordered by roll number
func (d *StudentDirectory) FindAbsentees(ctx context.Context, tenantID, date, classID string) ([]*models.Student, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	absent := make(map[primitive.ObjectID]struct{})
	for _, a := range d.attendance {
		if a.TenantID != tenantID || a.Date != date || a.Status != models.AttendanceAbsent {
			continue
		}
		if classID != "" && a.ClassID != classID {
			continue
		}
		absent[a.StudentID] = struct{}{}
	}

	var out []*models.Student
	for _, s := range d.students {
		if _, ok := absent[s.ID]; ok && s.TenantID == tenantID && s.IsActive {
			c := *s
			out = append(out, &c)
		}
	}
	sortStudents(out)
	return out, nil
}

// FindFeeDefaulters returns active students owing at least minBalance
func (d *StudentDirectory) FindFeeDefaulters(ctx context.Context, tenantID string, minBalance float64, classID string) ([]*models.Student, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []*models.Student
	for _, s := range d.students {
		if s.TenantID != tenantID || !s.IsActive || s.FeeBalance < minBalance {
			continue
		}
		if classID != "" && s.ClassID != classID {
			continue
		}
		c := *s
		out = append(out, &c)
	}
	sortStudents(out)
	return out, nil
}

func sortStudents(s []*models.Student) {
	sort.SliceStable(s, func(i, j int) bool {
		if s[i].ClassID != s[j].ClassID {
			return s[i].ClassID < s[j].ClassID
		}
		return s[i].RollNumber < s[j].RollNumber
	})
}

// UpsertStudent replaces the student with the same class and roll number,
// keeping its id and creation time
func (d *StudentDirectory) UpsertStudent(ctx context.Context, student *models.Student) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, s := range d.students {
		if s.TenantID == student.TenantID && s.ClassID == student.ClassID && s.RollNumber == student.RollNumber {
			student.ID = s.ID
			student.CreatedAt = s.CreatedAt
			*s = *student
			return nil
		}
	}
	student.ID = primitive.NewObjectID()
	student.CreatedAt = time.Now()
	c := *student
	d.students = append(d.students, &c)
	return nil
}

// RecordAttendance replaces any earlier record for the student and date
func (d *StudentDirectory) RecordAttendance(ctx context.Context, record *models.AttendanceRecord) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i, a := range d.attendance {
		if a.TenantID == record.TenantID && a.StudentID == record.StudentID && a.Date == record.Date {
			record.ID = a.ID
			d.attendance[i] = *record
			return nil
		}
	}
	if record.ID.IsZero() {
		record.ID = primitive.NewObjectID()
	}
	d.attendance = append(d.attendance, *record)
	return nil
}

// FindStudent looks a student up by class and roll number
func (d *StudentDirectory) FindStudent(ctx context.Context, tenantID, classID, rollNumber string) (*models.Student, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, s := range d.students {
		if s.TenantID == tenantID && s.ClassID == classID && s.RollNumber == rollNumber {
			c := *s
			return &c, nil
		}
	}
	return nil, repositories.ErrNotFound
}
