package importer

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/ArowuTest/edunotify-backend/internal/models"
	"github.com/ArowuTest/edunotify-backend/internal/repositories/memory"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tenant = "school-a"

const studentsCSV = `Roll No,Student Name,Class ID,Class,Parent Name,Parent Phone,Fee Balance,Active
01,Asha Menon,7B,7-B,Mr. Menon,+91 98765 00011,"4,500",yes
02,Ravi Iyer,7B,7-B,,098765 00012,Rs. 0,yes
03,Zoya Ali,7B,7-B,Mrs. Ali,12345,100,yes
04,Neel Shah,7B,7-B,Mr. Shah,9876500014,lots,yes
05,Old Student,7B,7-B,Mr. Das,9876500015,0,no
`

func newImporter() (*CSVImporter, *memory.StudentDirectory) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	dir := memory.NewStudentDirectory()
	return NewCSVImporter(dir, log), dir
}

func TestImportStudents(t *testing.T) {
	imp, dir := newImporter()
	ctx := context.Background()

	result, err := imp.ImportStudents(ctx, tenant, strings.NewReader(studentsCSV))
	require.NoError(t, err)
	assert.Equal(t, 5, result.TotalRows)
	assert.Equal(t, 3, result.Imported)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "Row 3: invalid guardian phone")
	assert.Contains(t, result.Errors[1], "Row 4: invalid fee balance")

	asha, err := dir.FindStudent(ctx, tenant, "7B", "01")
	require.NoError(t, err)
	assert.Equal(t, "9876500011", asha.GuardianPhone)
	assert.Equal(t, 4500.0, asha.FeeBalance)
	assert.Equal(t, "7-B", asha.ClassName)
	assert.True(t, asha.IsActive)

	old, err := dir.FindStudent(ctx, tenant, "7B", "05")
	require.NoError(t, err)
	assert.False(t, old.IsActive)

	defaulters, err := dir.FindFeeDefaulters(ctx, tenant, 1, "")
	require.NoError(t, err)
	require.Len(t, defaulters, 1)
	assert.Equal(t, "Asha Menon", defaulters[0].Name)
}

func TestImportStudents_UpsertKeepsID(t *testing.T) {
	imp, dir := newImporter()
	ctx := context.Background()

	_, err := imp.ImportStudents(ctx, tenant, strings.NewReader("Roll,Name,Class,Phone,Balance\n01,Asha Menon,7-B,9876500011,4500\n"))
	require.NoError(t, err)
	first, err := dir.FindStudent(ctx, tenant, "7-B", "01")
	require.NoError(t, err)

	_, err = imp.ImportStudents(ctx, tenant, strings.NewReader("Roll,Name,Class,Phone,Balance\n01,Asha Menon,7-B,9876500011,0\n"))
	require.NoError(t, err)
	second, err := dir.FindStudent(ctx, tenant, "7-B", "01")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 0.0, second.FeeBalance)
	assert.Equal(t, "7-B", second.ClassID, "class name doubles as class id")
}

func TestImportStudents_MissingColumn(t *testing.T) {
	imp, _ := newImporter()
	_, err := imp.ImportStudents(context.Background(), tenant, strings.NewReader("Roll,Name,Class\n01,Asha,7B\n"))
	assert.EqualError(t, err, "guardian phone column not found in CSV")
}

func TestImportAttendance(t *testing.T) {
	imp, dir := newImporter()
	ctx := context.Background()
	_, err := imp.ImportStudents(ctx, tenant, strings.NewReader(studentsCSV))
	require.NoError(t, err)

	attendance := `Roll No,Class ID,Status,Date
01,7B,A,
02,7B,absent,04/06/2024
05,7B,P,
09,7B,A,
01,7B,sick,
`
	result, err := imp.ImportAttendance(ctx, tenant, "2024-06-03", strings.NewReader(attendance))
	require.NoError(t, err)
	assert.Equal(t, 5, result.TotalRows)
	assert.Equal(t, 3, result.Imported)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "no student with roll number 09 in class 7B")
	assert.Contains(t, result.Errors[1], `unknown attendance status "sick"`)

	absent, err := dir.FindAbsentees(ctx, tenant, "2024-06-03", "")
	require.NoError(t, err)
	require.Len(t, absent, 1)
	assert.Equal(t, "Asha Menon", absent[0].Name)

	absent, err = dir.FindAbsentees(ctx, tenant, "2024-06-04", "7B")
	require.NoError(t, err)
	require.Len(t, absent, 1)
	assert.Equal(t, "Ravi Iyer", absent[0].Name)

	// A correction for the same day replaces the earlier mark
	_, err = imp.ImportAttendance(ctx, tenant, "03/06/2024", strings.NewReader("Roll,Class ID,Status\n01,7B,present\n"))
	require.NoError(t, err)
	absent, err = dir.FindAbsentees(ctx, tenant, "2024-06-03", "")
	require.NoError(t, err)
	assert.Empty(t, absent)
}

func TestImportAttendance_NeedsDate(t *testing.T) {
	imp, _ := newImporter()
	_, err := imp.ImportAttendance(context.Background(), tenant, "", strings.NewReader("Roll,Class,Status\n01,7B,A\n"))
	assert.True(t, models.IsValidationError(err))

	_, err = imp.ImportAttendance(context.Background(), tenant, "June 3rd", strings.NewReader("Roll,Class,Status\n"))
	assert.True(t, models.IsValidationError(err))
}

func TestParseAmount(t *testing.T) {
	tests := map[string]float64{
		"4500":      4500,
		"4,500.50":  4500.5,
		"Rs. 1,200": 1200,
		"₹ 300":     300,
		"INR 75.25": 75.25,
	}
	for in, want := range tests {
		got, err := parseAmount(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := parseAmount("-10")
	assert.Error(t, err)
}
