package domain

import "time"

// Signature is a supervisor's captured signature image kept in object storage.
// Only an active signature of the requesting supervisor may be embedded.
type Signature struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	SupervisorID uint      `gorm:"not null;index" json:"supervisor_id"`
	URL          string    `gorm:"type:text;not null" json:"url"`
	IsActive     bool      `gorm:"default:true;index" json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName returns the database table name for Signature.
func (Signature) TableName() string {
	return "signatures"
}

// TimesheetDocument is the generated weekly document for one task.
// It is written once by the generation pipeline and never updated.
type TimesheetDocument struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	TaskID     uint      `gorm:"not null;index:idx_timesheets_group" json:"task_id"`
	WeekNumber int       `gorm:"not null;index:idx_timesheets_group" json:"week_number"`
	Year       int       `gorm:"not null;index:idx_timesheets_group" json:"year"`
	URL        string    `gorm:"type:text;not null" json:"url"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName returns the database table name for TimesheetDocument.
func (TimesheetDocument) TableName() string {
	return "timesheet_documents"
}
