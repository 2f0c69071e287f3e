package services

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"bus_tracker/internal/apperrors"
	"bus_tracker/internal/models"
	"bus_tracker/internal/repository"
)

type OperatorInput struct {
	Name               *string
	RegistrationNumber *string
	LicenseNumber      *string
	LicenseIssueDate   *time.Time
	LicenseExpiryDate  *time.Time
	ContactEmail       *string
	ContactPhone       *string
	Address            *string
	IsActive           *bool
}

type OperatorListParams struct {
	ListParams
	IsActive *bool
}

type OperatorPage struct {
	Operators  []models.Operator `json:"operators"`
	Pagination Pagination        `json:"pagination"`
}

type OperatorService struct {
	operators repository.OperatorRepository
	buses     repository.BusRepository
	users     repository.UserRepository
	log       logrus.FieldLogger
}

func NewOperatorService(operators repository.OperatorRepository, buses repository.BusRepository,
	users repository.UserRepository, log logrus.FieldLogger) *OperatorService {
	return &OperatorService{operators: operators, buses: buses, users: users, log: log}
}

// validate checks the input against current, the stored operator, or nil on
// create. The licence window is judged on the dates the operator would end up with.
func (in OperatorInput) validate(current *models.Operator) error {
	create := current == nil
	var errs apperrors.FieldErrors
	requiredText(&errs, "name", in.Name, create)
	requiredText(&errs, "registrationNumber", in.RegistrationNumber, create)
	requiredText(&errs, "licenseNumber", in.LicenseNumber, create)
	if create {
		if in.LicenseIssueDate == nil {
			errs.Add("licenseIssueDate", "is required")
		}
		if in.LicenseExpiryDate == nil {
			errs.Add("licenseExpiryDate", "is required")
		}
	}

	issue, expiry := in.LicenseIssueDate, in.LicenseExpiryDate
	if current != nil {
		if issue == nil {
			issue = &current.LicenseIssueDate
		}
		if expiry == nil {
			expiry = &current.LicenseExpiryDate
		}
	}
	if issue != nil && expiry != nil && !issue.Before(*expiry) {
		errs.Add("licenseExpiryDate", "must be after licenseIssueDate")
	}
	return errs.Err()
}

func (in OperatorInput) apply(op *models.Operator) {
	if in.Name != nil {
		op.Name = strings.TrimSpace(*in.Name)
	}
	if in.RegistrationNumber != nil {
		op.RegistrationNumber = strings.TrimSpace(*in.RegistrationNumber)
	}
	if in.LicenseNumber != nil {
		op.LicenseNumber = strings.TrimSpace(*in.LicenseNumber)
	}
	if in.LicenseIssueDate != nil {
		op.LicenseIssueDate = *in.LicenseIssueDate
	}
	if in.LicenseExpiryDate != nil {
		op.LicenseExpiryDate = *in.LicenseExpiryDate
	}
	if in.ContactEmail != nil {
		op.ContactEmail = strings.TrimSpace(*in.ContactEmail)
	}
	if in.ContactPhone != nil {
		op.ContactPhone = strings.TrimSpace(*in.ContactPhone)
	}
	if in.Address != nil {
		op.Address = *in.Address
	}
	if in.IsActive != nil {
		op.IsActive = *in.IsActive
	}
}

func (s *OperatorService) Create(ctx context.Context, in OperatorInput) (*models.Operator, error) {
	if err := in.validate(nil); err != nil {
		return nil, err
	}
	op := &models.Operator{IsActive: true}
	in.apply(op)
	if err := s.operators.Create(ctx, op); err != nil {
		return nil, err
	}
	s.log.WithField("operator_id", op.ID).Info("operator created")
	return op, nil
}

// Update applies the supplied fields. Switching isActive off deactivates the
// operator's buses and users as well; switching it back on restores nothing.
func (s *OperatorService) Update(ctx context.Context, id uint, in OperatorInput) (*models.Operator, error) {
	op, err := s.operators.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := in.validate(op); err != nil {
		return nil, err
	}

	wasActive := op.IsActive
	in.apply(op)

	deactivate := wasActive && !op.IsActive
	if err := s.operators.Update(ctx, op, deactivate); err != nil {
		return nil, err
	}
	if deactivate {
		s.log.WithField("operator_id", id).Warn("operator deactivated; buses and users deactivated")
	}
	return op, nil
}

func (s *OperatorService) Get(ctx context.Context, id uint) (*models.Operator, error) {
	return s.operators.FindByID(ctx, id)
}

func (s *OperatorService) List(ctx context.Context, p OperatorListParams) (*OperatorPage, error) {
	pg, err := p.page()
	if err != nil {
		return nil, err
	}
	ops, total, err := s.operators.List(ctx, repository.OperatorFilter{
		Search:   p.search(),
		IsActive: p.IsActive,
		Page:     pg,
	})
	if err != nil {
		return nil, err
	}
	if ops == nil {
		ops = []models.Operator{}
	}
	return &OperatorPage{Operators: ops, Pagination: newPagination(total, pg.Number, pg.Size, len(ops))}, nil
}

// Delete removes an operator that owns no buses and employs no users.
func (s *OperatorService) Delete(ctx context.Context, id uint) error {
	if _, err := s.operators.FindByID(ctx, id); err != nil {
		return err
	}
	buses, err := s.buses.CountByOperator(ctx, id)
	if err != nil {
		return err
	}
	if buses > 0 {
		return apperrors.Conflict("operator still owns buses and cannot be deleted")
	}
	users, err := s.users.CountByOperator(ctx, id)
	if err != nil {
		return err
	}
	if users > 0 {
		return apperrors.Conflict("operator still has users and cannot be deleted")
	}
	return s.operators.Delete(ctx, id)
}
