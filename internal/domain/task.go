package domain

import "time"

// UserRole distinguishes employees from supervisors.
type UserRole string

const (
	RoleEmployee   UserRole = "employee"
	RoleSupervisor UserRole = "supervisor"
)

// User is an employee or a supervisor.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"type:text;not null" json:"name"`
	Email     string    `gorm:"type:text" json:"email,omitempty"`
	Role      UserRole  `gorm:"type:text;default:employee" json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string {
	return "users"
}

// Customer is the party a project is delivered to.
type Customer struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"type:text;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Customer.
func (Customer) TableName() string {
	return "customers"
}

// Project groups tasks for one customer.
type Project struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Title      string    `gorm:"type:text;not null" json:"title"`
	CustomerID *uint     `gorm:"index" json:"customer_id,omitempty"`
	Customer   *Customer `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName returns the database table name for Project.
func (Project) TableName() string {
	return "projects"
}

// Task is a unit of project work. SupervisorID is the authorization anchor for
// confirming entries booked on the task.
type Task struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	SupervisorID uint      `gorm:"not null;index" json:"supervisor_id"`
	Supervisor   *User     `gorm:"foreignKey:SupervisorID" json:"supervisor,omitempty"`
	ProjectID    *uint     `gorm:"index" json:"project_id,omitempty"`
	Project      *Project  `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
	Title        string    `gorm:"type:text;not null" json:"title"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName returns the database table name for Task.
func (Task) TableName() string {
	return "tasks"
}
