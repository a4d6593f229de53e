package services

import "github.com/ArowuTest/edunotify-backend/internal/models"

// Codes of the built-in templates
const (
	CodeAbsentAlert         = "ABSENT_ALERT"
	CodeFeeBalanceAlert     = "FEE_BALANCE_ALERT"
	CodeExamScheduleAlert   = "EXAM_SCHEDULE_ALERT"
	CodeGeneralAnnouncement = "GENERAL_ANNOUNCEMENT"
)

// DefaultTemplates returns the seed catalogue for a tenant
func DefaultTemplates(tenantID, createdBy string) []*models.Template {
	schoolName := models.TemplateVariable{Name: "school_name", Description: "Name of the school", Example: "Green Valley School"}
	guardian := models.TemplateVariable{Name: "guardian_name", Description: "Parent or guardian name", Example: "Mr. Sharma"}
	student := models.TemplateVariable{Name: "student_name", Description: "Student full name", Example: "Aarav Sharma"}
	class := models.TemplateVariable{Name: "class_name", Description: "Class and section", Example: "7-B"}

	catalogue := []*models.Template{
		{
			Code:     CodeAbsentAlert,
			Name:     "Absence alert",
			Category: models.CategoryAttendance,
			Priority: models.PriorityHigh,
			Body:     "Dear {{guardian_name}}, {{student_name}} of class {{class_name}} was absent on {{date}}. Please contact {{school_name}} if this is unexpected.",
			Variables: []models.TemplateVariable{
				guardian, student, class,
				{Name: "date", Description: "Date of absence", Example: "2024-06-03"},
				schoolName,
			},
		},
		{
			Code:     CodeFeeBalanceAlert,
			Name:     "Fee balance reminder",
			Category: models.CategoryFees,
			Priority: models.PriorityMedium,
			Body:     "Dear {{guardian_name}}, a fee balance of Rs. {{balance}} is pending for {{student_name}} ({{class_name}}). Kindly pay by {{due_date}}. - {{school_name}}",
			Variables: []models.TemplateVariable{
				guardian,
				{Name: "balance", Description: "Outstanding amount", Example: "4500.00"},
				student, class,
				{Name: "due_date", Description: "Payment deadline", Example: "15 June"},
				schoolName,
			},
		},
		{
			Code:     CodeExamScheduleAlert,
			Name:     "Exam schedule",
			Category: models.CategoryExam,
			Priority: models.PriorityMedium,
			Body:     "Dear Parent, {{exam_name}} for class {{class_name}} begins on {{start_date}}. {{details}} - {{school_name}}",
			Variables: []models.TemplateVariable{
				{Name: "exam_name", Description: "Name of the examination", Example: "Half-yearly examination"},
				class,
				{Name: "start_date", Description: "First exam date", Example: "10 September"},
				{Name: "details", Description: "Extra instructions", Example: "Timetable is on the school notice board."},
				schoolName,
			},
		},
		{
			Code:     CodeGeneralAnnouncement,
			Name:     "General announcement",
			Category: models.CategoryGeneral,
			Priority: models.PriorityLow,
			Body:     "{{school_name}}: {{message}}",
			Variables: []models.TemplateVariable{
				schoolName,
				{Name: "message", Description: "Announcement text", Example: "School remains closed tomorrow due to heavy rain."},
			},
		},
	}

	for _, t := range catalogue {
		t.TenantID = tenantID
		t.CreatedBy = createdBy
		t.IsActive = true
		t.Sample = Sample(t)
	}
	return catalogue
}
