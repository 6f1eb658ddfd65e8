// Package models defines the GORM models for the UNIMAK defect-tracking schema.
// The same models migrate on PostgreSQL, MySQL, SQL Server, SQLite and Oracle
// through GORM's dialect abstraction.
package models

import (
	"time"
)

// User roles
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is a registered account
type User struct {
	ID           uint      `gorm:"column:id;primaryKey;autoIncrement"`
	Username     string    `gorm:"column:username;type:varchar(150);not null;uniqueIndex"`
	PasswordHash string    `gorm:"column:password_hash;type:varchar(255);not null"`
	Language     string    `gorm:"column:language;type:varchar(8);not null;default:en"`
	Role         string    `gorm:"column:role;type:varchar(16);not null;default:user"`
	CreatedAt    time.Time `gorm:"column:created_at;not null;autoCreateTime"`
}

// TableName specifies the table name for User
func (User) TableName() string {
	return "users"
}

// IsAdmin reports whether the user may reach the admin pages
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Manager is the project manager a project is assigned to
type Manager struct {
	ID          uint   `gorm:"column:id;primaryKey;autoIncrement"`
	ManagerName string `gorm:"column:manager_name;type:varchar(255);not null;uniqueIndex"`
}

// TableName specifies the table name for Manager
func (Manager) TableName() string {
	return "managers"
}

// Customer is the buyer of a project
type Customer struct {
	ID              uint   `gorm:"column:id;primaryKey;autoIncrement"`
	CustomerName    string `gorm:"column:customer_name;type:varchar(255);not null;uniqueIndex"`
	CustomerCountry string `gorm:"column:customer_country;type:varchar(128);not null"`
}

// TableName specifies the table name for Customer
func (Customer) TableName() string {
	return "customers"
}

// Engineer owns one or more groups
type Engineer struct {
	ID           uint   `gorm:"column:id;primaryKey;autoIncrement"`
	EngineerName string `gorm:"column:engineer_name;type:varchar(255);not null;uniqueIndex"`
}

// TableName specifies the table name for Engineer
func (Engineer) TableName() string {
	return "engineers"
}

// Project is a machine order
type Project struct {
	ID            uint      `gorm:"column:id;primaryKey;autoIncrement"`
	ProjectNumber string    `gorm:"column:project_number;type:varchar(64);not null;uniqueIndex"`
	ProjectName   string    `gorm:"column:project_name;type:varchar(255);not null"`
	Quantity      int       `gorm:"column:quantity;not null"`
	MachineType   *string   `gorm:"column:machine_type;type:varchar(255)"`
	ManagerID     uint      `gorm:"column:manager_id;not null;index"`
	CustomerID    uint      `gorm:"column:customer_id;not null;index"`
	CreatedAt     time.Time `gorm:"column:created_at;not null;autoCreateTime"`

	Manager  *Manager  `gorm:"foreignKey:ManagerID"`
	Customer *Customer `gorm:"foreignKey:CustomerID"`
}

// TableName specifies the table name for Project
func (Project) TableName() string {
	return "projects"
}

// Group is a sub-assembly of a project. GROUP is reserved in SQL, hence the table name.
type Group struct {
	ID          uint     `gorm:"column:id;primaryKey;autoIncrement"`
	ProjectID   uint     `gorm:"column:project_id;not null;index"`
	EngineerID  *uint    `gorm:"column:engineer_id;index"`
	GroupNumber string   `gorm:"column:group_number;type:varchar(64);not null"`
	GroupName   string   `gorm:"column:group_name;type:varchar(255);not null"`
	Weight      *float64 `gorm:"column:weight"`
	Size        *string  `gorm:"column:size;type:varchar(128)"`
	Material    *string  `gorm:"column:material;type:varchar(255)"`

	Project  *Project  `gorm:"foreignKey:ProjectID"`
	Engineer *Engineer `gorm:"foreignKey:EngineerID"`
}

// TableName specifies the table name for Group
func (Group) TableName() string {
	return "project_groups"
}

// Component is a physical part within a group
type Component struct {
	ID            uint     `gorm:"column:id;primaryKey;autoIncrement"`
	GroupID       uint     `gorm:"column:group_id;not null;index"`
	PositionNo    *string  `gorm:"column:position_no;type:varchar(64)"`
	ComponentNo   string   `gorm:"column:component_no;type:varchar(128);not null"`
	ComponentName string   `gorm:"column:component_name;type:varchar(255);not null"`
	UnitQuantity  *int     `gorm:"column:unit_quantity"`
	TotalQuantity *int     `gorm:"column:total_quantity"`
	Weight        *float64 `gorm:"column:weight"`
	Description   *string  `gorm:"column:description;type:varchar(1024)"`
	Size          *string  `gorm:"column:size;type:varchar(128)"`
	Materials     *string  `gorm:"column:materials;type:varchar(255)"`
	MachineType   *string  `gorm:"column:machine_type;type:varchar(255)"`
	Notes         *string  `gorm:"column:notes;type:varchar(1024)"`
	WorkingArea   *string  `gorm:"column:working_area;type:varchar(255)"`

	Group *Group `gorm:"foreignKey:GroupID"`
}

// TableName specifies the table name for Component
func (Component) TableName() string {
	return "components"
}

// Problem is one DF report
type Problem struct {
	ID                 uint       `gorm:"column:id;primaryKey;autoIncrement"`
	ProjectID          uint       `gorm:"column:project_id;not null;index"`
	GroupID            uint       `gorm:"column:group_id;not null;index"`
	RecorderID         uint       `gorm:"column:recorder_id;not null;index"`
	DFNumber           string     `gorm:"column:df_number;type:varchar(64);not null;uniqueIndex"`
	PlannedClosingDate *time.Time `gorm:"column:planned_closing_date"`
	CreatedAt          time.Time  `gorm:"column:created_at;not null;autoCreateTime;index"`

	Project  *Project `gorm:"foreignKey:ProjectID"`
	Group    *Group   `gorm:"foreignKey:GroupID"`
	Recorder *User    `gorm:"foreignKey:RecorderID"`
}

// TableName specifies the table name for Problem
func (Problem) TableName() string {
	return "problems"
}

// ProblemComponent is the per-component detail of a problem
type ProblemComponent struct {
	ID          uint    `gorm:"column:id;primaryKey;autoIncrement"`
	ProblemID   uint    `gorm:"column:problem_id;not null;index"`
	ComponentID uint    `gorm:"column:component_id;not null;index"`
	Reason      *string `gorm:"column:reason;type:varchar(64)"`
	Department  *string `gorm:"column:department;type:varchar(64)"`
	Action      *string `gorm:"column:action;type:varchar(64)"`
	Priority    *string `gorm:"column:priority;type:varchar(16)"`
	Description *string `gorm:"column:description;type:varchar(2048)"`

	Problem   *Problem   `gorm:"foreignKey:ProblemID"`
	Component *Component `gorm:"foreignKey:ComponentID"`
}

// TableName specifies the table name for ProblemComponent
func (ProblemComponent) TableName() string {
	return "problem_components"
}

// ProblemStep is one entry in the remediation history of a problem component
type ProblemStep struct {
	ID                 uint       `gorm:"column:id;primaryKey;autoIncrement"`
	ProblemID          uint       `gorm:"column:problem_id;not null;index"`
	ComponentID        *uint      `gorm:"column:component_id;index"`
	StepNumber         int        `gorm:"column:step_number;not null"`
	DFFilename         string     `gorm:"column:df_filename;type:varchar(128);not null"`
	Status             StepStatus `gorm:"column:status;type:varchar(32);not null"`
	Action             *string    `gorm:"column:action;type:varchar(1024)"`
	PlannedClosingDate *time.Time `gorm:"column:planned_closing_date"`
	CreatedAt          time.Time  `gorm:"column:created_at;not null;autoCreateTime"`

	Problem   *Problem   `gorm:"foreignKey:ProblemID"`
	Component *Component `gorm:"foreignKey:ComponentID"`
}

// TableName specifies the table name for ProblemStep
func (ProblemStep) TableName() string {
	return "problem_steps"
}

// AllModels returns every model in migration order
func AllModels() []any {
	return []any{
		&User{},
		&Manager{},
		&Customer{},
		&Engineer{},
		&Project{},
		&Group{},
		&Component{},
		&Problem{},
		&ProblemComponent{},
		&ProblemStep{},
	}
}
