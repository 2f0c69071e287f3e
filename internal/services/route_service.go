package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"bus_tracker/internal/apperrors"
	"bus_tracker/internal/models"
	"bus_tracker/internal/repository"
)

// RouteInput carries create/update fields. A nil Waypoints leaves the stops
// untouched; a non-nil slice replaces them. A nil Path is not supplied, a
// JSON null clears it.
type RouteInput struct {
	RouteNumber       *string
	Name              *string
	Origin            *string
	Destination       *string
	Distance          *float64
	EstimatedDuration *int
	IsActive          *bool
	Waypoints         *[]models.Waypoint
	Path              json.RawMessage
}

type RouteListParams struct {
	ListParams
	IsActive *bool
}

type RoutePage struct {
	Routes     []models.Route `json:"routes"`
	Pagination Pagination     `json:"pagination"`
}

type RouteService struct {
	routes repository.RouteRepository
	buses  repository.BusRepository
	log    logrus.FieldLogger
}

func NewRouteService(routes repository.RouteRepository, buses repository.BusRepository, log logrus.FieldLogger) *RouteService {
	return &RouteService{routes: routes, buses: buses, log: log}
}

func requiredText(errs *apperrors.FieldErrors, field string, v *string, create bool) {
	if v == nil {
		if create {
			errs.Add(field, "is required")
		}
		return
	}
	if strings.TrimSpace(*v) == "" {
		errs.Add(field, "must not be empty")
	}
}

func (in RouteInput) validate(create bool) error {
	var errs apperrors.FieldErrors
	requiredText(&errs, "routeNumber", in.RouteNumber, create)
	requiredText(&errs, "origin", in.Origin, create)
	requiredText(&errs, "destination", in.Destination, create)

	if in.Distance != nil {
		if !(*in.Distance > 0) {
			errs.Add("distance", "must be greater than 0")
		}
	} else if create {
		errs.Add("distance", "is required")
	}
	if in.EstimatedDuration != nil {
		if *in.EstimatedDuration <= 0 {
			errs.Add("estimatedDuration", "must be greater than 0")
		}
	} else if create {
		errs.Add("estimatedDuration", "is required")
	}
	if in.Waypoints != nil {
		validateWaypoints(*in.Waypoints, &errs)
	}
	return errs.Err()
}

func validateWaypoints(wps []models.Waypoint, errs *apperrors.FieldErrors) {
	explicit := false
	for _, wp := range wps {
		if wp.Sequence != 0 {
			explicit = true
			break
		}
	}

	seen := make(map[int]bool, len(wps))
	for i, wp := range wps {
		field := fmt.Sprintf("waypoints[%d]", i)
		if strings.TrimSpace(wp.Name) == "" {
			errs.Add(field+".name", "is required")
		}
		if !wp.Point.Valid() {
			errs.Add(field+".location", "coordinates are out of range")
		}
		if wp.EstimatedMinutes < 0 {
			errs.Add(field+".estimatedTime", "must not be negative")
		}
		if explicit {
			if wp.Sequence < 1 {
				errs.Add(field+".sequence", "must be a positive integer")
			} else if seen[wp.Sequence] {
				errs.Add(field+".sequence", "must be unique")
			}
			seen[wp.Sequence] = true
		}
	}
}

// orderWaypoints numbers stops by position unless sequences were supplied, in
// which case it sorts by them.
func orderWaypoints(wps []models.Waypoint) []models.Waypoint {
	out := make([]models.Waypoint, len(wps))
	copy(out, wps)
	explicit := false
	for _, wp := range out {
		if wp.Sequence != 0 {
			explicit = true
			break
		}
	}
	for i := range out {
		out[i].ID = 0
		out[i].RouteID = 0
		out[i].Name = strings.TrimSpace(out[i].Name)
		if !explicit {
			out[i].Sequence = i + 1
		}
	}
	if explicit {
		sort.SliceStable(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	}
	return out
}

func pathError(err error) error {
	return apperrors.Validation("validation failed", apperrors.FieldError{Field: "path", Message: err.Error()})
}

func (s *RouteService) Create(ctx context.Context, in RouteInput) (*models.Route, error) {
	if err := in.validate(true); err != nil {
		return nil, err
	}

	route := &models.Route{
		RouteNumber:       strings.TrimSpace(*in.RouteNumber),
		Origin:            strings.TrimSpace(*in.Origin),
		Destination:       strings.TrimSpace(*in.Destination),
		Distance:          *in.Distance,
		EstimatedDuration: *in.EstimatedDuration,
		IsActive:          true,
		Waypoints:         []models.Waypoint{},
	}
	if in.Name != nil {
		route.Name = strings.TrimSpace(*in.Name)
	}
	if route.Name == "" {
		route.Name = route.Origin + " - " + route.Destination
	}
	if in.IsActive != nil {
		route.IsActive = *in.IsActive
	}
	if in.Waypoints != nil {
		route.Waypoints = orderWaypoints(*in.Waypoints)
	}
	if err := route.SetPath(in.Path); err != nil {
		return nil, pathError(err)
	}

	if err := s.routes.Create(ctx, route); err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"route_id": route.ID, "route_number": route.RouteNumber}).Info("route created")
	return route, nil
}

func (s *RouteService) Update(ctx context.Context, id uint, in RouteInput) (*models.Route, error) {
	if err := in.validate(false); err != nil {
		return nil, err
	}

	route, err := s.routes.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.RouteNumber != nil {
		route.RouteNumber = strings.TrimSpace(*in.RouteNumber)
	}
	if in.Name != nil {
		route.Name = strings.TrimSpace(*in.Name)
	}
	if in.Origin != nil {
		route.Origin = strings.TrimSpace(*in.Origin)
	}
	if in.Destination != nil {
		route.Destination = strings.TrimSpace(*in.Destination)
	}
	if in.Distance != nil {
		route.Distance = *in.Distance
	}
	if in.EstimatedDuration != nil {
		route.EstimatedDuration = *in.EstimatedDuration
	}
	if in.IsActive != nil {
		route.IsActive = *in.IsActive
	}
	if in.Path != nil {
		if err := route.SetPath(in.Path); err != nil {
			return nil, pathError(err)
		}
	}
	replace := in.Waypoints != nil
	if replace {
		route.Waypoints = orderWaypoints(*in.Waypoints)
	}

	if err := s.routes.Update(ctx, route, replace); err != nil {
		return nil, err
	}
	return route, nil
}

// Get returns a route with its ordered waypoints.
func (s *RouteService) Get(ctx context.Context, id uint) (*models.Route, error) {
	return s.routes.FindByID(ctx, id)
}

func (s *RouteService) List(ctx context.Context, p RouteListParams) (*RoutePage, error) {
	pg, err := p.page()
	if err != nil {
		return nil, err
	}
	routes, total, err := s.routes.List(ctx, repository.RouteFilter{
		Search:   p.search(),
		IsActive: p.IsActive,
		Page:     pg,
	})
	if err != nil {
		return nil, err
	}
	if routes == nil {
		routes = []models.Route{}
	}
	return &RoutePage{Routes: routes, Pagination: newPagination(total, pg.Number, pg.Size, len(routes))}, nil
}

// Delete removes a route that no bus references.
func (s *RouteService) Delete(ctx context.Context, id uint) error {
	if _, err := s.routes.FindByID(ctx, id); err != nil {
		return err
	}
	n, err := s.buses.CountByRoute(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return apperrors.Conflict(fmt.Sprintf("route is assigned to %d bus(es) and cannot be deleted", n))
	}
	if err := s.routes.Delete(ctx, id); err != nil {
		return err
	}
	s.log.WithField("route_id", id).Info("route deleted")
	return nil
}
