package services

import (
	"context"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"bus_tracker/internal/apperrors"
	"bus_tracker/internal/models"
	"bus_tracker/internal/policy"
	"bus_tracker/internal/repository"
)

// BusInput carries create/update fields; nil means not supplied.
type BusInput struct {
	BusNumber  *string
	RouteID    *uint
	OperatorID *uint
	Capacity   *int
	BusType    *string
	Status     *string
}

type BusListParams struct {
	ListParams
	Status     string
	RouteID    *uint
	OperatorID *uint
}

type BusPage struct {
	Buses      []models.Bus `json:"buses"`
	Pagination Pagination   `json:"pagination"`
}

type BusService struct {
	buses     repository.BusRepository
	routes    repository.RouteRepository
	operators repository.OperatorRepository
	log       logrus.FieldLogger
	randN     func(n int) int
	now       func() time.Time
}

func NewBusService(buses repository.BusRepository, routes repository.RouteRepository,
	operators repository.OperatorRepository, log logrus.FieldLogger) *BusService {
	return &BusService{
		buses:     buses,
		routes:    routes,
		operators: operators,
		log:       log,
		randN:     rand.IntN,
		now:       time.Now,
	}
}

func (in BusInput) validate(create bool, errs *apperrors.FieldErrors) {
	if in.BusNumber != nil && strings.TrimSpace(*in.BusNumber) == "" {
		errs.Add("busNumber", "must not be empty")
	} else if create && in.BusNumber == nil {
		errs.Add("busNumber", "is required")
	}
	if create && in.RouteID == nil {
		errs.Add("routeId", "is required")
	}
	if in.Capacity != nil {
		if *in.Capacity < 1 || *in.Capacity > 100 {
			errs.Add("capacity", "must be between 1 and 100")
		}
	} else if create {
		errs.Add("capacity", "is required")
	}
	if in.BusType != nil {
		if !models.ValidBusType(*in.BusType) {
			errs.Add("busType", "must be one of "+strings.Join(models.BusTypes, ", "))
		}
	} else if create {
		errs.Add("busType", "is required")
	}
	if in.Status != nil && !models.BusStatus(*in.Status).Valid() {
		errs.Add("status", "must be one of active, inactive, maintenance")
	}
}

// checkReferences turns missing or unusable route/operator ids into field errors.
func (s *BusService) checkReferences(ctx context.Context, in BusInput, errs *apperrors.FieldErrors) (*models.Route, *models.Operator, error) {
	var (
		route *models.Route
		op    *models.Operator
		err   error
	)
	if in.RouteID != nil {
		route, err = s.routes.FindByID(ctx, *in.RouteID)
		switch {
		case apperrors.Is(err, apperrors.KindNotFound):
			errs.Add("routeId", "route does not exist")
		case err != nil:
			return nil, nil, err
		case !route.IsActive:
			errs.Add("routeId", "route is not active")
		}
	}
	if in.OperatorID != nil {
		op, err = s.operators.FindByID(ctx, *in.OperatorID)
		switch {
		case apperrors.Is(err, apperrors.KindNotFound):
			errs.Add("operatorId", "operator does not exist")
		case err != nil:
			return nil, nil, err
		}
	}
	return route, op, nil
}

// Create registers a bus and assigns it a generated busId.
func (s *BusService) Create(ctx context.Context, in BusInput) (*models.Bus, error) {
	var errs apperrors.FieldErrors
	in.validate(true, &errs)
	if err := errs.Err(); err != nil {
		return nil, err
	}

	number := strings.TrimSpace(*in.BusNumber)
	exists, err := s.buses.ExistsByNumber(ctx, number, 0)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperrors.Duplicate("busNumber", number)
	}

	route, op, err := s.checkReferences(ctx, in, &errs)
	if err != nil {
		return nil, err
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	code, err := s.generateBusCode(ctx)
	if err != nil {
		return nil, err
	}

	bus := &models.Bus{
		BusNumber:  number,
		BusCode:    code,
		RouteID:    *in.RouteID,
		OperatorID: in.OperatorID,
		Capacity:   *in.Capacity,
		BusType:    *in.BusType,
		Status:     models.BusStatusActive,
	}
	if in.Status != nil {
		bus.Status = models.BusStatus(*in.Status)
	}
	if err := s.buses.Create(ctx, bus); err != nil {
		return nil, err
	}
	bus.Route, bus.Operator = route, op

	s.log.WithFields(logrus.Fields{"bus_id": bus.ID, "bus_code": bus.BusCode}).Info("bus created")
	return bus, nil
}

// Update applies the supplied fields. A nil OperatorID leaves the operator unchanged.
func (s *BusService) Update(ctx context.Context, id uint, in BusInput) (*models.Bus, error) {
	var errs apperrors.FieldErrors
	in.validate(false, &errs)
	if err := errs.Err(); err != nil {
		return nil, err
	}

	bus, err := s.buses.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.BusNumber != nil {
		number := strings.TrimSpace(*in.BusNumber)
		if number != bus.BusNumber {
			exists, err := s.buses.ExistsByNumber(ctx, number, id)
			if err != nil {
				return nil, err
			}
			if exists {
				return nil, apperrors.Duplicate("busNumber", number)
			}
		}
		bus.BusNumber = number
	}

	check := in
	if in.RouteID != nil && *in.RouteID == bus.RouteID {
		check.RouteID = nil
	}
	route, op, err := s.checkReferences(ctx, check, &errs)
	if err != nil {
		return nil, err
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	previousOperatorID := bus.OperatorID
	if in.RouteID != nil {
		bus.RouteID = *in.RouteID
		if route != nil {
			bus.Route = route
		}
	}
	if in.OperatorID != nil {
		bus.OperatorID = in.OperatorID
		bus.Operator = op
	}
	if in.Capacity != nil {
		bus.Capacity = *in.Capacity
	}
	if in.BusType != nil {
		bus.BusType = *in.BusType
	}
	if in.Status != nil {
		bus.Status = models.BusStatus(*in.Status)
	}

	if err := s.buses.Update(ctx, bus, previousOperatorID); err != nil {
		return nil, err
	}
	return bus, nil
}

// UpdateStatus changes a bus's status for an actor allowed to update it.
func (s *BusService) UpdateStatus(ctx context.Context, actor policy.Actor, id uint, status string) (*models.Bus, error) {
	st := models.BusStatus(status)
	if !st.Valid() {
		return nil, apperrors.Validation("validation failed",
			apperrors.FieldError{Field: "status", Message: "must be one of active, inactive, maintenance"})
	}

	bus, err := s.buses.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(actor, policy.ActionUpdate, policy.BusResource(bus)); err != nil {
		return nil, err
	}
	if err := s.buses.UpdateStatus(ctx, id, st); err != nil {
		return nil, err
	}
	bus.Status = st
	return bus, nil
}

// Delete removes a bus together with its location history.
func (s *BusService) Delete(ctx context.Context, id uint) error {
	bus, err := s.buses.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.buses.Delete(ctx, bus); err != nil {
		return err
	}
	s.log.WithField("bus_id", id).Info("bus deleted")
	return nil
}

// Get returns one bus; the bus directory is public.
func (s *BusService) Get(ctx context.Context, id uint) (*models.Bus, error) {
	return s.buses.FindByID(ctx, id)
}

// List pages through buses. Operator staff see their own fleet and bus-scoped
// actors their own bus; everyone else sees the public directory.
func (s *BusService) List(ctx context.Context, actor policy.Actor, p BusListParams) (*BusPage, error) {
	pg, err := p.page()
	if err != nil {
		return nil, err
	}
	filter := repository.BusFilter{
		Search:     p.search(),
		RouteID:    p.RouteID,
		OperatorID: p.OperatorID,
		Page:       pg,
	}
	if p.Status != "" {
		filter.Status = models.BusStatus(p.Status)
		if !filter.Status.Valid() {
			return nil, apperrors.Validation("validation failed",
				apperrors.FieldError{Field: "status", Message: "must be one of active, inactive, maintenance"})
		}
	}

	if sc := policy.ScopeFor(actor); !sc.Denied {
		if sc.OperatorID != nil {
			filter.OperatorID = sc.OperatorID
		}
		if sc.BusID != nil {
			filter.BusID = sc.BusID
		}
	}

	buses, total, err := s.buses.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if buses == nil {
		buses = []models.Bus{}
	}
	return &BusPage{Buses: buses, Pagination: newPagination(total, pg.Number, pg.Size, len(buses))}, nil
}
