package notify

import "time"

// Kind identifies the notification an Intent asks for.
type Kind string

const (
	KindApproval      Kind = "approval"
	KindWeekRejection Kind = "week_rejection"
)

// ProblematicDay is an entry the supervisor flagged alongside a rejection.
type ProblematicDay struct {
	EntryID uint   `json:"entry_id"`
	Note    string `json:"note,omitempty"`
}

// Intent is an outbound notification waiting for delivery.
type Intent struct {
	Kind            Kind             `json:"kind"`
	EmployeeID      uint             `json:"employee_id"`
	EntryID         uint             `json:"entry_id,omitempty"`
	EntryIDs        []uint           `json:"entry_ids,omitempty"`
	TaskID          uint             `json:"task_id"`
	TaskTitle       string           `json:"task_title"`
	ProjectID       uint             `json:"project_id,omitempty"`
	Reason          string           `json:"reason,omitempty"`
	Week            int              `json:"week,omitempty"`
	Year            int              `json:"year,omitempty"`
	ProblematicDays []ProblematicDay `json:"problematic_days,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
}

// Approval builds the intent telling an employee one entry was confirmed.
func Approval(employeeID, entryID, taskID uint, taskTitle string) Intent {
	return Intent{
		Kind:       KindApproval,
		EmployeeID: employeeID,
		EntryID:    entryID,
		TaskID:     taskID,
		TaskTitle:  taskTitle,
		CreatedAt:  time.Now().UTC(),
	}
}

// WeekRejection builds the consolidated intent for the rejected entries of one task week.
func WeekRejection(employeeID uint, entryIDs []uint, taskID uint, reason, taskTitle string, week, year int, projectID uint, problematic []ProblematicDay) Intent {
	return Intent{
		Kind:            KindWeekRejection,
		EmployeeID:      employeeID,
		EntryIDs:        entryIDs,
		TaskID:          taskID,
		TaskTitle:       taskTitle,
		ProjectID:       projectID,
		Reason:          reason,
		Week:            week,
		Year:            year,
		ProblematicDays: problematic,
		CreatedAt:       time.Now().UTC(),
	}
}
