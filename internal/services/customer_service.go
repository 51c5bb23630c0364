// internal/services/customer_service.go
package services

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/njcabinets/sales-backend/internal/models"
	"github.com/njcabinets/sales-backend/internal/utils"
)

type CustomerService struct {
	db *gorm.DB
}

type CreateCustomerRequest struct {
	Name    string `json:"name" validate:"required,max=255"`
	Email   string `json:"email" validate:"required,email"`
	Mobile  string `json:"mobile,omitempty" validate:"max=50"`
	Address string `json:"address,omitempty"`
}

type UpdateCustomerRequest struct {
	Name    *string `json:"name,omitempty" validate:"omitempty,max=255"`
	Mobile  *string `json:"mobile,omitempty" validate:"omitempty,max=50"`
	Address *string `json:"address,omitempty"`
}

func NewCustomerService(db *gorm.DB) *CustomerService {
	return &CustomerService{db: db}
}

// FindOrCreateByEmail backs the proposal flow: saving a proposal with a name
// and email but no customer id reuses the existing customer or creates one.
func (s *CustomerService) FindOrCreateByEmail(tx *gorm.DB, name, email string, ownerGroupID *uuid.UUID) (*models.Customer, error) {
	if tx == nil {
		tx = s.db
	}

	var customer models.Customer
	err := tx.Where("email = ?", email).First(&customer).Error
	if err == nil {
		return &customer, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("database error: %w", err)
	}

	customer = models.Customer{
		Name:         name,
		Email:        email,
		OwnerGroupID: ownerGroupID,
	}
	if err := tx.Create(&customer).Error; err != nil {
		return nil, fmt.Errorf("failed to create customer: %w", err)
	}
	return &customer, nil
}

func (s *CustomerService) CreateCustomer(req *CreateCustomerRequest, ownerGroupID *uuid.UUID) (*models.Customer, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	customer := &models.Customer{
		Name:         req.Name,
		Email:        req.Email,
		Mobile:       req.Mobile,
		Address:      req.Address,
		OwnerGroupID: ownerGroupID,
	}

	if err := s.db.Create(customer).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: customer with email %s already exists", ErrConflict, req.Email)
		}
		return nil, fmt.Errorf("failed to create customer: %w", err)
	}

	return customer, nil
}

func (s *CustomerService) GetCustomer(id uuid.UUID) (*models.Customer, error) {
	var customer models.Customer
	if err := s.db.First(&customer, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: customer %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &customer, nil
}

func (s *CustomerService) ListCustomers(params utils.PaginationParams) ([]models.Customer, int64, error) {
	query := s.db.Model(&models.Customer{})

	if params.Search != "" {
		query = query.Where("name ILIKE ? OR email ILIKE ?", "%"+params.Search+"%", "%"+params.Search+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count customers: %w", err)
	}

	allowedSortFields := []string{"created_at", "name", "email"}
	query = utils.ApplySort(query, params, allowedSortFields)
	query = utils.ApplyPagination(query, params)

	var customers []models.Customer
	if err := query.Find(&customers).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch customers: %w", err)
	}

	return customers, total, nil
}

func (s *CustomerService) UpdateCustomer(id uuid.UUID, req *UpdateCustomerRequest) (*models.Customer, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	var customer models.Customer
	if err := s.db.First(&customer, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: customer %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	if req.Name != nil {
		customer.Name = *req.Name
	}
	if req.Mobile != nil {
		customer.Mobile = *req.Mobile
	}
	if req.Address != nil {
		customer.Address = *req.Address
	}

	if err := s.db.Save(&customer).Error; err != nil {
		return nil, fmt.Errorf("failed to update customer: %w", err)
	}

	return &customer, nil
}

func (s *CustomerService) DeleteCustomer(id uuid.UUID) error {
	res := s.db.Delete(&models.Customer{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete customer: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: customer %s", ErrNotFound, id)
	}
	return nil
}
