package api

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/unimak/dftrack/api/models"
	"github.com/unimak/dftrack/internal/slogging"
)

// ProjectInput carries the editable fields of a project
type ProjectInput struct {
	Number      string
	Name        string
	Quantity    int
	MachineType *string
	ManagerID   uint
	CustomerID  uint
}

// GroupInput carries the fields of a new group
type GroupInput struct {
	ProjectID  uint
	EngineerID *uint
	Number     string
	Name       string
	Weight     *float64
	Size       *string
	Material   *string
}

// ComponentInput carries the fields of a new component
type ComponentInput struct {
	GroupID       uint
	PositionNo    *string
	ComponentNo   string
	ComponentName string
	UnitQuantity  *int
	TotalQuantity *int
	Weight        *float64
	Description   *string
	Size          *string
	Materials     *string
	MachineType   *string
	Notes         *string
	WorkingArea   *string
}

// ProjectListItem is a project row of the admin projects page
type ProjectListItem struct {
	ID             uint    `gorm:"column:id"`
	ProjectNumber  string  `gorm:"column:project_number"`
	ProjectName    string  `gorm:"column:project_name"`
	Quantity       int     `gorm:"column:quantity"`
	MachineType    *string `gorm:"column:machine_type"`
	ManagerID      uint    `gorm:"column:manager_id"`
	ManagerName    string  `gorm:"column:manager_name"`
	CustomerID     uint    `gorm:"column:customer_id"`
	CustomerName   string  `gorm:"column:customer_name"`
	GroupCount     int64   `gorm:"column:group_count"`
	ComponentCount int64   `gorm:"column:component_count"`
}

// ProjectStoreInterface defines the store interface for projects and their catalog
type ProjectStoreInterface interface {
	List(ctx context.Context) ([]ProjectListItem, error)
	Get(ctx context.Context, id uint) (*models.Project, error)
	Create(ctx context.Context, in ProjectInput) (*models.Project, error)
	Update(ctx context.Context, id uint, in ProjectInput) (*models.Project, error)
	Delete(ctx context.Context, id uint) error
	HasProblems(ctx context.Context, projectID uint) (bool, error)

	ListGroups(ctx context.Context, projectID uint) ([]models.Group, error)
	CreateGroup(ctx context.Context, in GroupInput) (*models.Group, error)
	ListComponents(ctx context.Context, groupID uint) ([]models.Component, error)
	CreateComponent(ctx context.Context, in ComponentInput) (*models.Component, error)

	ListManagers(ctx context.Context) ([]models.Manager, error)
	CreateManager(ctx context.Context, name string) (*models.Manager, error)
	ListCustomers(ctx context.Context) ([]models.Customer, error)
	CreateCustomer(ctx context.Context, name, country string) (*models.Customer, error)
	ListEngineers(ctx context.Context) ([]models.Engineer, error)
	CreateEngineer(ctx context.Context, name string) (*models.Engineer, error)
}

// GormProjectStore implements ProjectStoreInterface using GORM
type GormProjectStore struct {
	db *gorm.DB
}

// NewGormProjectStore creates a new GORM-backed project store
func NewGormProjectStore(db *gorm.DB) *GormProjectStore {
	return &GormProjectStore{db: db}
}

func (s *GormProjectStore) exists(ctx context.Context, model any, id uint) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *GormProjectStore) validateProject(ctx context.Context, in *ProjectInput, selfID uint) error {
	logger := slogging.Get()

	in.Number = strings.TrimSpace(in.Number)
	in.Name = SanitizeText(in.Name)
	in.MachineType = sanitizeOptional(in.MachineType)
	if in.Number == "" {
		return InvalidInputError("project number is required")
	}
	if in.Name == "" {
		return InvalidInputError("project name is required")
	}
	if in.Quantity <= 0 {
		return InvalidInputError("quantity must be greater than zero")
	}

	ok, err := s.exists(ctx, &models.Manager{}, in.ManagerID)
	if err != nil {
		logger.Error("failed to check manager existence: %v", err)
		return ServerError(genericErrorMessage)
	}
	if !ok {
		return InvalidInputError(fmt.Sprintf("manager not found: %d", in.ManagerID))
	}
	ok, err = s.exists(ctx, &models.Customer{}, in.CustomerID)
	if err != nil {
		logger.Error("failed to check customer existence: %v", err)
		return ServerError(genericErrorMessage)
	}
	if !ok {
		return InvalidInputError(fmt.Sprintf("customer not found: %d", in.CustomerID))
	}

	var dup int64
	if err := s.db.WithContext(ctx).Model(&models.Project{}).
		Where("project_number = ? AND id <> ?", in.Number, selfID).
		Count(&dup).Error; err != nil {
		logger.Error("failed to check project number: %v", err)
		return ServerError(genericErrorMessage)
	}
	if dup > 0 {
		return InvalidInputError(fmt.Sprintf("project number already exists: %s", in.Number))
	}
	return nil
}

// List returns every project with manager, customer and catalog counts
func (s *GormProjectStore) List(ctx context.Context) ([]ProjectListItem, error) {
	var items []ProjectListItem
	err := s.db.WithContext(ctx).
		Table("projects p").
		Select(`p.id AS id, p.project_number AS project_number, p.project_name AS project_name,
			p.quantity AS quantity, p.machine_type AS machine_type,
			p.manager_id AS manager_id, m.manager_name AS manager_name,
			p.customer_id AS customer_id, cu.customer_name AS customer_name,
			(SELECT COUNT(*) FROM project_groups g WHERE g.project_id = p.id) AS group_count,
			(SELECT COUNT(*) FROM components c JOIN project_groups g2 ON g2.id = c.group_id WHERE g2.project_id = p.id) AS component_count`).
		Joins("JOIN managers m ON m.id = p.manager_id").
		Joins("JOIN customers cu ON cu.id = p.customer_id").
		Order("p.project_number").
		Scan(&items).Error
	if err != nil {
		slogging.Get().Error("failed to list projects: %v", err)
		return nil, ServerError(genericErrorMessage)
	}
	return items, nil
}

// Get retrieves a project by ID with its manager and customer
func (s *GormProjectStore) Get(ctx context.Context, id uint) (*models.Project, error) {
	var project models.Project
	err := s.db.WithContext(ctx).Preload("Manager").Preload("Customer").First(&project, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFoundError(fmt.Sprintf("project not found: %d", id))
		}
		slogging.Get().Error("failed to get project %d: %v", id, err)
		return nil, ServerError(genericErrorMessage)
	}
	return &project, nil
}

// Create creates a new project
func (s *GormProjectStore) Create(ctx context.Context, in ProjectInput) (*models.Project, error) {
	logger := slogging.Get()

	if err := s.validateProject(ctx, &in, 0); err != nil {
		return nil, err
	}

	project := models.Project{
		ProjectNumber: in.Number,
		ProjectName:   in.Name,
		Quantity:      in.Quantity,
		MachineType:   in.MachineType,
		ManagerID:     in.ManagerID,
		CustomerID:    in.CustomerID,
	}
	if err := s.db.WithContext(ctx).Create(&project).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, InvalidInputError(fmt.Sprintf("project number already exists: %s", in.Number))
		}
		logger.Error("failed to create project: %v", err)
		return nil, ServerError(genericErrorMessage)
	}

	logger.Info("project created: id=%d, number=%s", project.ID, project.ProjectNumber)
	return &project, nil
}

// Update replaces the editable fields of a project
func (s *GormProjectStore) Update(ctx context.Context, id uint, in ProjectInput) (*models.Project, error) {
	logger := slogging.Get()

	var project models.Project
	if err := s.db.WithContext(ctx).First(&project, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFoundError(fmt.Sprintf("project not found: %d", id))
		}
		logger.Error("failed to load project %d: %v", id, err)
		return nil, ServerError(genericErrorMessage)
	}
	if err := s.validateProject(ctx, &in, id); err != nil {
		return nil, err
	}

	project.ProjectNumber = in.Number
	project.ProjectName = in.Name
	project.Quantity = in.Quantity
	project.MachineType = in.MachineType
	project.ManagerID = in.ManagerID
	project.CustomerID = in.CustomerID
	if err := s.db.WithContext(ctx).Save(&project).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, InvalidInputError(fmt.Sprintf("project number already exists: %s", in.Number))
		}
		logger.Error("failed to update project %d: %v", id, err)
		return nil, ServerError(genericErrorMessage)
	}

	logger.Info("project updated: id=%d, number=%s", project.ID, project.ProjectNumber)
	return &project, nil
}

// HasProblems checks whether any problem references the project
func (s *GormProjectStore) HasProblems(ctx context.Context, projectID uint) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Problem{}).
		Where("project_id = ?", projectID).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Delete deletes a project with its groups and components. Projects with
// problems are kept and a conflict is returned.
func (s *GormProjectStore) Delete(ctx context.Context, id uint) error {
	logger := slogging.Get()

	ok, err := s.exists(ctx, &models.Project{}, id)
	if err != nil {
		logger.Error("failed to check project %d: %v", id, err)
		return ServerError(genericErrorMessage)
	}
	if !ok {
		return NotFoundError(fmt.Sprintf("project not found: %d", id))
	}

	hasProblems, err := s.HasProblems(ctx, id)
	if err != nil {
		logger.Error("failed to check problem references of project %d: %v", id, err)
		return ServerError(genericErrorMessage)
	}
	if hasProblems {
		return ConflictError("cannot delete project: it has associated problems")
	}

	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return ServerError(genericErrorMessage)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	groupIDs := tx.Model(&models.Group{}).Select("id").Where("project_id = ?", id)
	if err := tx.Where("group_id IN (?)", groupIDs).Delete(&models.Component{}).Error; err != nil {
		tx.Rollback()
		logger.Error("failed to delete components of project %d: %v", id, err)
		return ServerError(genericErrorMessage)
	}
	if err := tx.Where("project_id = ?", id).Delete(&models.Group{}).Error; err != nil {
		tx.Rollback()
		logger.Error("failed to delete groups of project %d: %v", id, err)
		return ServerError(genericErrorMessage)
	}
	if err := tx.Delete(&models.Project{}, id).Error; err != nil {
		tx.Rollback()
		if isForeignKeyConstraintError(err) {
			return ConflictError("cannot delete project: it has associated problems")
		}
		logger.Error("failed to delete project %d: %v", id, err)
		return ServerError(genericErrorMessage)
	}

	if err := tx.Commit().Error; err != nil {
		return ServerError(genericErrorMessage)
	}

	logger.Info("project deleted: id=%d", id)
	return nil
}

// ListGroups returns the groups of a project ordered by group number
func (s *GormProjectStore) ListGroups(ctx context.Context, projectID uint) ([]models.Group, error) {
	var groups []models.Group
	if err := s.db.WithContext(ctx).Preload("Engineer").
		Where("project_id = ?", projectID).Order("group_number, id").
		Find(&groups).Error; err != nil {
		slogging.Get().Error("failed to list groups of project %d: %v", projectID, err)
		return nil, ServerError(genericErrorMessage)
	}
	return groups, nil
}

// CreateGroup adds a group to a project
func (s *GormProjectStore) CreateGroup(ctx context.Context, in GroupInput) (*models.Group, error) {
	logger := slogging.Get()

	in.Number = strings.TrimSpace(in.Number)
	in.Name = SanitizeText(in.Name)
	if in.Number == "" || in.Name == "" {
		return nil, InvalidInputError("group number and name are required")
	}
	ok, err := s.exists(ctx, &models.Project{}, in.ProjectID)
	if err != nil {
		return nil, ServerError(genericErrorMessage)
	}
	if !ok {
		return nil, InvalidInputError(fmt.Sprintf("project not found: %d", in.ProjectID))
	}
	if in.EngineerID != nil {
		ok, err := s.exists(ctx, &models.Engineer{}, *in.EngineerID)
		if err != nil {
			return nil, ServerError(genericErrorMessage)
		}
		if !ok {
			return nil, InvalidInputError(fmt.Sprintf("engineer not found: %d", *in.EngineerID))
		}
	}

	group := models.Group{
		ProjectID:   in.ProjectID,
		EngineerID:  in.EngineerID,
		GroupNumber: in.Number,
		GroupName:   in.Name,
		Weight:      in.Weight,
		Size:        sanitizeOptional(in.Size),
		Material:    sanitizeOptional(in.Material),
	}
	if err := s.db.WithContext(ctx).Create(&group).Error; err != nil {
		logger.Error("failed to create group: %v", err)
		return nil, ServerError(genericErrorMessage)
	}

	logger.Info("group created: id=%d, project_id=%d, number=%s", group.ID, group.ProjectID, group.GroupNumber)
	return &group, nil
}

// ListComponents returns the components of a group
func (s *GormProjectStore) ListComponents(ctx context.Context, groupID uint) ([]models.Component, error) {
	var components []models.Component
	if err := s.db.WithContext(ctx).
		Where("group_id = ?", groupID).Order("component_no, id").
		Find(&components).Error; err != nil {
		slogging.Get().Error("failed to list components of group %d: %v", groupID, err)
		return nil, ServerError(genericErrorMessage)
	}
	return components, nil
}

// CreateComponent adds a component to a group
func (s *GormProjectStore) CreateComponent(ctx context.Context, in ComponentInput) (*models.Component, error) {
	logger := slogging.Get()

	component, err := newComponent(in)
	if err != nil {
		return nil, err
	}
	ok, err := s.exists(ctx, &models.Group{}, in.GroupID)
	if err != nil {
		return nil, ServerError(genericErrorMessage)
	}
	if !ok {
		return nil, InvalidInputError(fmt.Sprintf("group not found: %d", in.GroupID))
	}

	if err := s.db.WithContext(ctx).Create(component).Error; err != nil {
		logger.Error("failed to create component: %v", err)
		return nil, ServerError(genericErrorMessage)
	}

	logger.Info("component created: id=%d, group_id=%d, number=%s", component.ID, component.GroupID, component.ComponentNo)
	return component, nil
}

// newComponent validates a component input and builds the model
func newComponent(in ComponentInput) (*models.Component, error) {
	no := strings.TrimSpace(in.ComponentNo)
	name := SanitizeText(in.ComponentName)
	if no == "" || name == "" {
		return nil, InvalidInputError("component number and name are required")
	}
	if in.UnitQuantity != nil && *in.UnitQuantity < 0 {
		return nil, InvalidInputError("unit quantity cannot be negative")
	}
	if in.TotalQuantity != nil && *in.TotalQuantity < 0 {
		return nil, InvalidInputError("total quantity cannot be negative")
	}
	return &models.Component{
		GroupID:       in.GroupID,
		PositionNo:    sanitizeOptional(in.PositionNo),
		ComponentNo:   no,
		ComponentName: name,
		UnitQuantity:  in.UnitQuantity,
		TotalQuantity: in.TotalQuantity,
		Weight:        in.Weight,
		Description:   sanitizeOptional(in.Description),
		Size:          sanitizeOptional(in.Size),
		Materials:     sanitizeOptional(in.Materials),
		MachineType:   sanitizeOptional(in.MachineType),
		Notes:         sanitizeOptional(in.Notes),
		WorkingArea:   sanitizeOptional(in.WorkingArea),
	}, nil
}

// ListManagers returns managers ordered by name
func (s *GormProjectStore) ListManagers(ctx context.Context) ([]models.Manager, error) {
	var managers []models.Manager
	if err := s.db.WithContext(ctx).Order("manager_name").Find(&managers).Error; err != nil {
		return nil, ServerError(genericErrorMessage)
	}
	return managers, nil
}

// CreateManager adds a manager with a unique name
func (s *GormProjectStore) CreateManager(ctx context.Context, name string) (*models.Manager, error) {
	name = SanitizeText(name)
	if name == "" {
		return nil, InvalidInputError("manager name is required")
	}
	manager := models.Manager{ManagerName: name}
	if err := s.createNamed(ctx, &manager, "manager", name); err != nil {
		return nil, err
	}
	return &manager, nil
}

// ListCustomers returns customers ordered by name
func (s *GormProjectStore) ListCustomers(ctx context.Context) ([]models.Customer, error) {
	var customers []models.Customer
	if err := s.db.WithContext(ctx).Order("customer_name").Find(&customers).Error; err != nil {
		return nil, ServerError(genericErrorMessage)
	}
	return customers, nil
}

// CreateCustomer adds a customer with a unique name
func (s *GormProjectStore) CreateCustomer(ctx context.Context, name, country string) (*models.Customer, error) {
	name = SanitizeText(name)
	country = SanitizeText(country)
	if name == "" || country == "" {
		return nil, InvalidInputError("customer name and country are required")
	}
	customer := models.Customer{CustomerName: name, CustomerCountry: country}
	if err := s.createNamed(ctx, &customer, "customer", name); err != nil {
		return nil, err
	}
	return &customer, nil
}

// ListEngineers returns engineers ordered by name
func (s *GormProjectStore) ListEngineers(ctx context.Context) ([]models.Engineer, error) {
	var engineers []models.Engineer
	if err := s.db.WithContext(ctx).Order("engineer_name").Find(&engineers).Error; err != nil {
		return nil, ServerError(genericErrorMessage)
	}
	return engineers, nil
}

// CreateEngineer adds an engineer with a unique name
func (s *GormProjectStore) CreateEngineer(ctx context.Context, name string) (*models.Engineer, error) {
	name = SanitizeText(name)
	if name == "" {
		return nil, InvalidInputError("engineer name is required")
	}
	engineer := models.Engineer{EngineerName: name}
	if err := s.createNamed(ctx, &engineer, "engineer", name); err != nil {
		return nil, err
	}
	return &engineer, nil
}

func (s *GormProjectStore) createNamed(ctx context.Context, record any, kind, name string) error {
	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		if isUniqueConstraintError(err) {
			return InvalidInputError(fmt.Sprintf("%s already exists: %s", kind, name))
		}
		slogging.Get().Error("failed to create %s: %v", kind, err)
		return ServerError(genericErrorMessage)
	}
	slogging.Get().Info("%s created: %s", kind, name)
	return nil
}
