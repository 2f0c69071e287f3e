package controllers

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"bus_tracker/internal/middleware"
	"bus_tracker/internal/response"
	"bus_tracker/internal/services"
)

// flexTime accepts either an RFC 3339 timestamp or a YYYY-MM-DD date.
type flexTime time.Time

func (t *flexTime) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	for _, layout := range []string{time.RFC3339, dateLayout} {
		if parsed, err := time.Parse(layout, s); err == nil {
			*t = flexTime(parsed.UTC())
			return nil
		}
	}
	return fmt.Errorf("invalid date %q: use YYYY-MM-DD or RFC 3339", s)
}

func (t *flexTime) ptr() *time.Time {
	if t == nil {
		return nil
	}
	v := time.Time(*t)
	return &v
}

type userInput struct {
	Username      *string `json:"username"`
	Email         *string `json:"email"`
	Password      *string `json:"password"`
	Role          *string `json:"role"`
	OperatorID    *uint   `json:"operatorId"`
	AssignedBusID *uint   `json:"assignedBusId"`
	IsActive      *bool   `json:"isActive"`
}

func (in userInput) toService() services.UserInput {
	return services.UserInput{
		Username:      in.Username,
		Email:         in.Email,
		Password:      in.Password,
		Role:          in.Role,
		OperatorID:    in.OperatorID,
		AssignedBusID: in.AssignedBusID,
		IsActive:      in.IsActive,
	}
}

type operatorInput struct {
	Name               *string   `json:"name"`
	RegistrationNumber *string   `json:"registrationNumber"`
	LicenseNumber      *string   `json:"licenseNumber"`
	LicenseIssueDate   *flexTime `json:"licenseIssueDate"`
	LicenseExpiryDate  *flexTime `json:"licenseExpiryDate"`
	ContactEmail       *string   `json:"contactEmail"`
	ContactPhone       *string   `json:"contactPhone"`
	Address            *string   `json:"address"`
	IsActive           *bool     `json:"isActive"`
}

func (in operatorInput) toService() services.OperatorInput {
	return services.OperatorInput{
		Name:               in.Name,
		RegistrationNumber: in.RegistrationNumber,
		LicenseNumber:      in.LicenseNumber,
		LicenseIssueDate:   in.LicenseIssueDate.ptr(),
		LicenseExpiryDate:  in.LicenseExpiryDate.ptr(),
		ContactEmail:       in.ContactEmail,
		ContactPhone:       in.ContactPhone,
		Address:            in.Address,
		IsActive:           in.IsActive,
	}
}

// AdminController serves user and bus-operator administration.
type AdminController struct {
	users     *services.UserService
	operators *services.OperatorService
	log       logrus.FieldLogger
}

func NewAdminController(users *services.UserService, operators *services.OperatorService, log logrus.FieldLogger) *AdminController {
	return &AdminController{users: users, operators: operators, log: log}
}

func (ac *AdminController) ListUsers(c *gin.Context) {
	q := newQueryParser(c)
	role, _ := q.raw("role")
	params := services.UserListParams{
		ListParams: q.listParams(),
		Role:       role,
		OperatorID: q.uintPtr("operatorId"),
		IsActive:   q.boolPtr("isActive"),
	}
	if err := q.err(); err != nil {
		response.Error(c, ac.log, err)
		return
	}

	page, err := ac.users.List(c.Request.Context(), params)
	if err != nil {
		response.Error(c, ac.log, err)
		return
	}
	response.OK(c, "", page)
}

func (ac *AdminController) GetUser(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, ac.log, err)
		return
	}
	user, err := ac.users.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, ac.log, err)
		return
	}
	response.OK(c, "", user)
}

func (ac *AdminController) CreateUser(c *gin.Context) {
	var input userInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, ac.log, response.BindError(err))
		return
	}
	user, err := ac.users.Create(c.Request.Context(), input.toService())
	if err != nil {
		response.Error(c, ac.log, err)
		return
	}
	ac.log.WithFields(logrus.Fields{"user_id": user.ID, "role": user.Role}).Info("user created")
	response.Created(c, "user created", user)
}

func (ac *AdminController) UpdateUser(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, ac.log, err)
		return
	}
	var input userInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, ac.log, response.BindError(err))
		return
	}
	user, err := ac.users.Update(c.Request.Context(), middleware.CurrentActor(c), id, input.toService())
	if err != nil {
		response.Error(c, ac.log, err)
		return
	}
	response.OK(c, "user updated", user)
}

func (ac *AdminController) DeleteUser(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, ac.log, err)
		return
	}
	if err := ac.users.Delete(c.Request.Context(), middleware.CurrentActor(c), id); err != nil {
		response.Error(c, ac.log, err)
		return
	}
	ac.log.WithField("user_id", id).Info("user deleted")
	response.OK(c, "user deleted", nil)
}

func (ac *AdminController) ListOperators(c *gin.Context) {
	q := newQueryParser(c)
	params := services.OperatorListParams{
		ListParams: q.listParams(),
		IsActive:   q.boolPtr("isActive"),
	}
	if err := q.err(); err != nil {
		response.Error(c, ac.log, err)
		return
	}

	page, err := ac.operators.List(c.Request.Context(), params)
	if err != nil {
		response.Error(c, ac.log, err)
		return
	}
	response.OK(c, "", page)
}

func (ac *AdminController) GetOperator(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, ac.log, err)
		return
	}
	op, err := ac.operators.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, ac.log, err)
		return
	}
	response.OK(c, "", op)
}

func (ac *AdminController) CreateOperator(c *gin.Context) {
	var input operatorInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, ac.log, response.BindError(err))
		return
	}
	op, err := ac.operators.Create(c.Request.Context(), input.toService())
	if err != nil {
		response.Error(c, ac.log, err)
		return
	}
	ac.log.WithField("operator_id", op.ID).Info("bus operator created")
	response.Created(c, "bus operator created", op)
}

func (ac *AdminController) UpdateOperator(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, ac.log, err)
		return
	}
	var input operatorInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, ac.log, response.BindError(err))
		return
	}
	op, err := ac.operators.Update(c.Request.Context(), id, input.toService())
	if err != nil {
		response.Error(c, ac.log, err)
		return
	}
	response.OK(c, "bus operator updated", op)
}

func (ac *AdminController) DeleteOperator(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, ac.log, err)
		return
	}
	if err := ac.operators.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, ac.log, err)
		return
	}
	ac.log.WithField("operator_id", id).Info("bus operator deleted")
	response.OK(c, "bus operator deleted", nil)
}
