// Package importer loads school records from CSV exports into the student
// directory that absentee and fee-balance notifications resolve against.
package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/ArowuTest/edunotify-backend/internal/models"
	"github.com/ArowuTest/edunotify-backend/internal/repositories"
	"github.com/ArowuTest/edunotify-backend/pkg/smsgateway"
	"github.com/sirupsen/logrus"
)

// Accepted header spellings per column, compared case-insensitively
var (
	rollColumns     = []string{"Roll Number", "Roll No", "Roll", "RollNumber"}
	nameColumns     = []string{"Name", "Student Name", "Student"}
	classIDColumns  = []string{"Class ID", "ClassId", "Class Code", "Section ID"}
	classColumns    = []string{"Class", "Class Name", "Section"}
	guardianColumns = []string{"Guardian", "Guardian Name", "Parent Name", "Parent"}
	phoneColumns    = []string{"Guardian Phone", "Parent Phone", "Phone", "Mobile", "Phone Number"}
	balanceColumns  = []string{"Fee Balance", "Balance", "Fees Due", "Outstanding"}
	activeColumns   = []string{"Active", "Is Active", "Enrolled"}
	statusColumns   = []string{"Status", "Attendance"}
	dateColumns     = []string{"Date", "Attendance Date"}
)

// Result summarizes one import run
type Result struct {
	TotalRows int      `json:"totalRows"`
	Imported  int      `json:"imported"`
	Errors    []string `json:"errors"`
}

func (r *Result) fail(row int, format string, args ...interface{}) {
	r.Errors = append(r.Errors, fmt.Sprintf("Row %d: %s", row, fmt.Sprintf(format, args...)))
}

// CSVImporter loads students and attendance for one tenant at a time
type CSVImporter struct {
	directory repositories.DirectoryWriter
	log       *logrus.Logger
}

// NewCSVImporter creates a new CSVImporter
func NewCSVImporter(directory repositories.DirectoryWriter, log *logrus.Logger) *CSVImporter {
	return &CSVImporter{directory: directory, log: log}
}

// ImportStudents upserts one student per row. Rows that cannot be parsed are
// reported in the result and skipped; a store error aborts the import.
func (i *CSVImporter) ImportStudents(ctx context.Context, tenantID string, r io.Reader) (*Result, error) {
	reader, header, err := open(r)
	if err != nil {
		return nil, err
	}

	rollIdx := findColumnIndex(header, rollColumns)
	nameIdx := findColumnIndex(header, nameColumns)
	classIDIdx := findColumnIndex(header, classIDColumns)
	classIdx := findColumnIndex(header, classColumns)
	guardianIdx := findColumnIndex(header, guardianColumns)
	phoneIdx := findColumnIndex(header, phoneColumns)
	balanceIdx := findColumnIndex(header, balanceColumns)
	activeIdx := findColumnIndex(header, activeColumns)

	switch {
	case rollIdx == -1:
		return nil, errors.New("roll number column not found in CSV")
	case nameIdx == -1:
		return nil, errors.New("name column not found in CSV")
	case classIDIdx == -1 && classIdx == -1:
		return nil, errors.New("class column not found in CSV")
	case phoneIdx == -1:
		return nil, errors.New("guardian phone column not found in CSV")
	}

	result := &Result{Errors: []string{}}
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		result.TotalRows++
		if err != nil {
			result.fail(result.TotalRows, "unreadable: %v", err)
			continue
		}

		student := models.Student{
			TenantID:     tenantID,
			RollNumber:   field(row, rollIdx),
			Name:         field(row, nameIdx),
			ClassID:      field(row, classIDIdx),
			ClassName:    field(row, classIdx),
			GuardianName: field(row, guardianIdx),
			IsActive:     true,
		}
		if student.ClassID == "" {
			student.ClassID = student.ClassName
		}
		if student.ClassName == "" {
			student.ClassName = student.ClassID
		}
		if student.RollNumber == "" || student.Name == "" || student.ClassID == "" {
			result.fail(result.TotalRows, "roll number, name and class are required")
			continue
		}

		phone, err := smsgateway.NormalizePhone(field(row, phoneIdx))
		if err != nil {
			result.fail(result.TotalRows, "invalid guardian phone %q", field(row, phoneIdx))
			continue
		}
		student.GuardianPhone = phone

		if v := field(row, balanceIdx); v != "" {
			balance, err := parseAmount(v)
			if err != nil {
				result.fail(result.TotalRows, "invalid fee balance %q", v)
				continue
			}
			student.FeeBalance = balance
		}
		if v := field(row, activeIdx); v != "" {
			student.IsActive = parseYes(v)
		}

		if err := i.directory.UpsertStudent(ctx, &student); err != nil {
			return result, fmt.Errorf("row %d: failed to store student: %w", result.TotalRows, err)
		}
		result.Imported++
	}

	i.log.WithFields(logrus.Fields{
		"tenant_id": tenantID,
		"rows":      result.TotalRows,
		"imported":  result.Imported,
		"rejected":  len(result.Errors),
	}).Info("Students imported")
	return result, nil
}

// ImportAttendance records one status per row. A Date column overrides
// date, which may be empty when every row carries its own.
func (i *CSVImporter) ImportAttendance(ctx context.Context, tenantID, date string, r io.Reader) (*Result, error) {
	defaultDate := ""
	if date != "" {
		d, err := parseDate(date)
		if err != nil {
			return nil, models.NewValidationError("date", err.Error())
		}
		defaultDate = d.Format("2006-01-02")
	}

	reader, header, err := open(r)
	if err != nil {
		return nil, err
	}

	rollIdx := findColumnIndex(header, rollColumns)
	classIDIdx := findColumnIndex(header, classIDColumns)
	if classIDIdx == -1 {
		classIDIdx = findColumnIndex(header, classColumns)
	}
	statusIdx := findColumnIndex(header, statusColumns)
	dateIdx := findColumnIndex(header, dateColumns)

	switch {
	case rollIdx == -1:
		return nil, errors.New("roll number column not found in CSV")
	case classIDIdx == -1:
		return nil, errors.New("class column not found in CSV")
	case statusIdx == -1:
		return nil, errors.New("status column not found in CSV")
	case dateIdx == -1 && defaultDate == "":
		return nil, models.NewValidationError("date", "is required when the CSV has no date column")
	}

	result := &Result{Errors: []string{}}
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		result.TotalRows++
		if err != nil {
			result.fail(result.TotalRows, "unreadable: %v", err)
			continue
		}

		day := defaultDate
		if v := field(row, dateIdx); v != "" {
			d, err := parseDate(v)
			if err != nil {
				result.fail(result.TotalRows, "invalid date %q", v)
				continue
			}
			day = d.Format("2006-01-02")
		}
		if day == "" {
			result.fail(result.TotalRows, "date is required")
			continue
		}

		status, ok := attendanceStatus(field(row, statusIdx))
		if !ok {
			result.fail(result.TotalRows, "unknown attendance status %q", field(row, statusIdx))
			continue
		}

		classID, roll := field(row, classIDIdx), field(row, rollIdx)
		student, err := i.directory.FindStudent(ctx, tenantID, classID, roll)
		if errors.Is(err, repositories.ErrNotFound) {
			result.fail(result.TotalRows, "no student with roll number %s in class %s", roll, classID)
			continue
		}
		if err != nil {
			return result, fmt.Errorf("row %d: failed to find student: %w", result.TotalRows, err)
		}

		record := &models.AttendanceRecord{
			TenantID:  tenantID,
			StudentID: student.ID,
			ClassID:   student.ClassID,
			Date:      day,
			Status:    status,
		}
		if err := i.directory.RecordAttendance(ctx, record); err != nil {
			return result, fmt.Errorf("row %d: failed to record attendance: %w", result.TotalRows, err)
		}
		result.Imported++
	}

	i.log.WithFields(logrus.Fields{
		"tenant_id": tenantID,
		"rows":      result.TotalRows,
		"imported":  result.Imported,
		"rejected":  len(result.Errors),
	}).Info("Attendance imported")
	return result, nil
}

func open(r io.Reader) (*csv.Reader, []string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read header: %w", err)
	}
	return reader, header, nil
}

// findColumnIndex finds the index of a column in the header
func findColumnIndex(header []string, possibleNames []string) int {
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		for _, name := range possibleNames {
			if strings.ToLower(name) == h {
				return i
			}
		}
	}
	return -1
}

func field(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// parseAmount accepts grouping commas and a leading rupee marker
func parseAmount(v string) (float64, error) {
	v = strings.TrimSpace(v)
	for _, prefix := range []string{"Rs.", "Rs", "INR", "₹"} {
		v = strings.TrimSpace(strings.TrimPrefix(v, prefix))
	}
	amount, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", ""), 64)
	if err != nil {
		return 0, err
	}
	if amount < 0 {
		return 0, errors.New("negative amount")
	}
	return amount, nil
}

func parseYes(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "yes", "y", "true", "1", "active":
		return true
	}
	return false
}

func attendanceStatus(v string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "a", "ab", "absent":
		return models.AttendanceAbsent, true
	case "p", "present":
		return models.AttendancePresent, true
	case "l", "late":
		return models.AttendanceLate, true
	}
	return "", false
}

// parseDate parses a date string in various formats. Slashed dates are
// day first.
func parseDate(dateStr string) (time.Time, error) {
	dateStr = strings.TrimSpace(dateStr)

	formats := []string{
		"2006-01-02",
		"02/01/2006",
		"02-01-2006",
		"2 Jan 2006",
		"Jan 2, 2006",
	}
	for _, format := range formats {
		date, err := time.Parse(format, dateStr)
		if err == nil {
			return date, nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse date: %s", dateStr)
}
