package domain

import "time"

// ConfirmationStatus is the supervisor-facing lifecycle of a work entry.
// Values include ConfirmationPending, ConfirmationConfirmed, and ConfirmationRejected.
type ConfirmationStatus string

const (
	ConfirmationPending   ConfirmationStatus = "pending"
	ConfirmationConfirmed ConfirmationStatus = "confirmed"
	ConfirmationRejected  ConfirmationStatus = "rejected"
)

// Valid reports whether s is one of the known confirmation statuses.
func (s ConfirmationStatus) Valid() bool {
	switch s {
	case ConfirmationPending, ConfirmationConfirmed, ConfirmationRejected:
		return true
	}
	return false
}

// DefaultEntryStatus is the entry status used when neither the request nor the
// stored row carries one.
const DefaultEntryStatus = "pending"

// WorkEntry is a single day of recorded work for one employee on one task.
// Once ConfirmationStatus is confirmed the row is immutable for the confirmation pipeline.
type WorkEntry struct {
	ID                 uint               `gorm:"primaryKey" json:"id"`
	EmployeeID         *uint              `gorm:"index" json:"employee_id"`
	Employee           *User              `gorm:"foreignKey:EmployeeID" json:"employee,omitempty"`
	TaskID             *uint              `gorm:"index" json:"task_id"`
	Task               *Task              `gorm:"foreignKey:TaskID" json:"task,omitempty"`
	WorkDate           Date               `gorm:"type:date;not null;index" json:"work_date"`
	StartTime          *time.Time         `json:"start_time,omitempty"`
	EndTime            *time.Time         `json:"end_time,omitempty"`
	PauseMinutes       int                `gorm:"default:0" json:"pause_minutes"`
	ConfirmationStatus ConfirmationStatus `gorm:"type:text;index;default:pending" json:"confirmation_status"`
	RejectionReason    *string            `gorm:"type:text" json:"rejection_reason,omitempty"`
	Status             string             `gorm:"type:text;default:pending" json:"status"`
	IsDraft            bool               `gorm:"default:false" json:"is_draft"`
	TimesheetID        *uint              `gorm:"index" json:"timesheet_id,omitempty"`
	Distance           *float64           `json:"distance,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// TableName returns the database table name for WorkEntry.
func (WorkEntry) TableName() string {
	return "work_entries"
}

// WorkedHours returns the net hours of the entry: end minus start minus the pause,
// never negative. Entries without both timestamps count as zero.
func (e *WorkEntry) WorkedHours() float64 {
	if e.StartTime == nil || e.EndTime == nil {
		return 0
	}
	return WorkedHours(*e.StartTime, *e.EndTime, e.PauseMinutes)
}

// WorkedHours computes max(0, (end - start) - pause) in hours.
func WorkedHours(start, end time.Time, pauseMinutes int) float64 {
	net := end.Sub(start) - time.Duration(pauseMinutes)*time.Minute
	if net < 0 {
		return 0
	}
	return net.Hours()
}
