package services

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"bus_tracker/internal/apperrors"
	"bus_tracker/internal/auth"
	"bus_tracker/internal/models"
	"bus_tracker/internal/policy"
	"bus_tracker/internal/repository"
)

const (
	minPasswordLength = 6
	minUsernameLength = 3
	maxUsernameLength = 50
)

// UserInput carries admin create/update fields. A pointer to 0 in OperatorID
// or AssignedBusID clears that assignment.
type UserInput struct {
	Username      *string
	Email         *string
	Password      *string
	Role          *string
	OperatorID    *uint
	AssignedBusID *uint
	IsActive      *bool
}

type UserListParams struct {
	ListParams
	Role       string
	OperatorID *uint
	IsActive   *bool
}

type UserPage struct {
	Users      []models.User `json:"users"`
	Pagination Pagination    `json:"pagination"`
}

var emailValidator = validator.New()

type UserService struct {
	users     repository.UserRepository
	tokens    repository.TokenRepository
	operators repository.OperatorRepository
	buses     repository.BusRepository
	log       logrus.FieldLogger
}

func NewUserService(users repository.UserRepository, tokens repository.TokenRepository,
	operators repository.OperatorRepository, buses repository.BusRepository, log logrus.FieldLogger) *UserService {
	return &UserService{users: users, tokens: tokens, operators: operators, buses: buses, log: log}
}

func validateUsername(v string, errs *apperrors.FieldErrors) {
	if n := len(v); n < minUsernameLength || n > maxUsernameLength {
		errs.Add("username", "must be between 3 and 50 characters")
	}
}

func validateEmail(v string, errs *apperrors.FieldErrors) {
	if emailValidator.Var(v, "required,email") != nil {
		errs.Add("email", "must be a valid email address")
	}
}

func validatePassword(field, v string, errs *apperrors.FieldErrors) {
	if len(v) < minPasswordLength {
		errs.Add(field, "must be at least 6 characters")
	}
}

// normalizeIdentity trims the username and lower-cases the email in place.
func (in *UserInput) normalizeIdentity() {
	if in.Username != nil {
		v := strings.TrimSpace(*in.Username)
		in.Username = &v
	}
	if in.Email != nil {
		v := strings.ToLower(strings.TrimSpace(*in.Email))
		in.Email = &v
	}
}

func (in UserInput) validate(create bool) error {
	var errs apperrors.FieldErrors
	if in.Username != nil {
		validateUsername(*in.Username, &errs)
	} else if create {
		errs.Add("username", "is required")
	}
	if in.Email != nil {
		validateEmail(*in.Email, &errs)
	} else if create {
		errs.Add("email", "is required")
	}
	if in.Password != nil {
		validatePassword("password", *in.Password, &errs)
	} else if create {
		errs.Add("password", "is required")
	}
	if in.Role != nil && !models.Role(*in.Role).Valid() {
		errs.Add("role", "must be one of admin, operator, driver, user")
	}
	return errs.Err()
}

// applyAssignments resolves the operator and bus fields for the user's role.
// Explicitly supplied fields the role does not allow are errors; stale ones
// left over from a previous role are dropped.
func (s *UserService) applyAssignments(ctx context.Context, u *models.User, in UserInput) error {
	var errs apperrors.FieldErrors

	if in.OperatorID != nil {
		u.OperatorID = nonZero(*in.OperatorID)
	}
	if in.AssignedBusID != nil {
		u.AssignedBusID = nonZero(*in.AssignedBusID)
	}

	allowOperator := u.Role == models.RoleOperator || u.Role == models.RoleDriver
	allowBus := u.Role == models.RoleDriver || u.Role == models.RoleUser

	if u.OperatorID != nil && !allowOperator {
		if in.OperatorID != nil {
			errs.Add("operatorId", "is only allowed for operator and driver roles")
		}
		u.OperatorID = nil
	}
	if u.AssignedBusID != nil && !allowBus {
		if in.AssignedBusID != nil {
			errs.Add("assignedBusId", "is only allowed for driver and user roles")
		}
		u.AssignedBusID = nil
	}
	if u.Role == models.RoleOperator && u.OperatorID == nil {
		errs.Add("operatorId", "is required for the operator role")
	}
	if err := errs.Err(); err != nil {
		return err
	}

	if u.OperatorID != nil && in.OperatorID != nil {
		if _, err := s.operators.FindByID(ctx, *u.OperatorID); err != nil {
			if apperrors.Is(err, apperrors.KindNotFound) {
				errs.Add("operatorId", "operator does not exist")
			} else {
				return err
			}
		}
	}
	if u.AssignedBusID != nil && (in.AssignedBusID != nil || in.OperatorID != nil) {
		bus, err := s.buses.FindByID(ctx, *u.AssignedBusID)
		switch {
		case apperrors.Is(err, apperrors.KindNotFound):
			errs.Add("assignedBusId", "bus does not exist")
		case err != nil:
			return err
		case u.Role == models.RoleDriver && u.OperatorID != nil &&
			(bus.OperatorID == nil || *bus.OperatorID != *u.OperatorID):
			errs.Add("assignedBusId", "bus does not belong to the driver's operator")
		}
	}
	return errs.Err()
}

func nonZero(id uint) *uint {
	if id == 0 {
		return nil
	}
	return &id
}

func (s *UserService) Create(ctx context.Context, in UserInput) (*models.User, error) {
	in.normalizeIdentity()
	if err := in.validate(true); err != nil {
		return nil, err
	}

	u := &models.User{
		Username: *in.Username,
		Email:    *in.Email,
		Role:     models.RoleUser,
		IsActive: true,
	}
	if in.Role != nil {
		u.Role = models.Role(*in.Role)
	}
	if in.IsActive != nil {
		u.IsActive = *in.IsActive
	}
	if err := s.applyAssignments(ctx, u, in); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(*in.Password)
	if err != nil {
		return nil, apperrors.Internal("could not hash password", err)
	}
	u.PasswordHash = hash

	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"user_id": u.ID, "role": u.Role}).Info("user created")
	return u, nil
}

// Update applies admin changes to a user. A password change or deactivation
// revokes the user's refresh tokens.
func (s *UserService) Update(ctx context.Context, actor policy.Actor, id uint, in UserInput) (*models.User, error) {
	in.normalizeIdentity()
	if err := in.validate(false); err != nil {
		return nil, err
	}

	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if actor != nil && actor.ID() == id {
		if in.IsActive != nil && !*in.IsActive {
			return nil, apperrors.Validation("validation failed",
				apperrors.FieldError{Field: "isActive", Message: "you cannot deactivate your own account"})
		}
		if in.Role != nil && models.Role(*in.Role) != u.Role {
			return nil, apperrors.Validation("validation failed",
				apperrors.FieldError{Field: "role", Message: "you cannot change your own role"})
		}
	}

	if in.Username != nil {
		u.Username = *in.Username
	}
	if in.Email != nil {
		u.Email = *in.Email
	}
	if in.Role != nil {
		u.Role = models.Role(*in.Role)
	}
	wasActive := u.IsActive
	if in.IsActive != nil {
		u.IsActive = *in.IsActive
	}
	if err := s.applyAssignments(ctx, u, in); err != nil {
		return nil, err
	}
	if in.Password != nil {
		hash, err := auth.HashPassword(*in.Password)
		if err != nil {
			return nil, apperrors.Internal("could not hash password", err)
		}
		u.PasswordHash = hash
	}

	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}

	if in.Password != nil || (wasActive && !u.IsActive) {
		if err := s.tokens.RevokeAll(ctx, u.ID); err != nil {
			return nil, err
		}
		s.log.WithField("user_id", u.ID).Info("refresh tokens revoked")
	}
	return u, nil
}

func (s *UserService) Get(ctx context.Context, id uint) (*models.User, error) {
	return s.users.FindByID(ctx, id)
}

func (s *UserService) List(ctx context.Context, p UserListParams) (*UserPage, error) {
	pg, err := p.page()
	if err != nil {
		return nil, err
	}
	filter := repository.UserFilter{
		Search:     p.search(),
		OperatorID: p.OperatorID,
		IsActive:   p.IsActive,
		Page:       pg,
	}
	if p.Role != "" {
		filter.Role = models.Role(p.Role)
		if !filter.Role.Valid() {
			return nil, apperrors.Validation("validation failed",
				apperrors.FieldError{Field: "role", Message: "must be one of admin, operator, driver, user"})
		}
	}

	users, total, err := s.users.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []models.User{}
	}
	return &UserPage{Users: users, Pagination: newPagination(total, pg.Number, pg.Size, len(users))}, nil
}

// Delete removes a user and their refresh tokens. Admins cannot delete themselves.
func (s *UserService) Delete(ctx context.Context, actor policy.Actor, id uint) error {
	if actor != nil && actor.ID() == id {
		return apperrors.Validation("you cannot delete your own account")
	}
	if err := s.users.Delete(ctx, id); err != nil {
		return err
	}
	s.log.WithField("user_id", id).Info("user deleted")
	return nil
}
