package controllers

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"bus_tracker/internal/apperrors"
	"bus_tracker/internal/middleware"
	"bus_tracker/internal/response"
	"bus_tracker/internal/services"
)

type registerInput struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// loginInput accepts the identifier as login, username or email.
type loginInput struct {
	Login    string `json:"login"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password" binding:"required"`
}

func (in loginInput) identifier() string {
	for _, v := range []string{in.Login, in.Username, in.Email} {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

type refreshInput struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type logoutInput struct {
	RefreshToken string `json:"refreshToken"`
}

type profileInput struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
}

type passwordInput struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required"`
}

type AuthController struct {
	auth *services.AuthService
	log  logrus.FieldLogger
}

func NewAuthController(auth *services.AuthService, log logrus.FieldLogger) *AuthController {
	return &AuthController{auth: auth, log: log}
}

func (ac *AuthController) Register(c *gin.Context) {
	var input registerInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, ac.log, response.BindError(err))
		return
	}

	result, err := ac.auth.Register(c.Request.Context(), services.RegisterInput{
		Username: input.Username,
		Email:    input.Email,
		Password: input.Password,
	})
	if err != nil {
		response.Error(c, ac.log, err)
		return
	}
	response.Created(c, "registration successful", result)
}

func (ac *AuthController) Login(c *gin.Context) {
	var input loginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, ac.log, response.BindError(err))
		return
	}
	login := input.identifier()
	if login == "" {
		response.Error(c, ac.log, apperrors.Validation("validation failed",
			apperrors.FieldError{Field: "login", Message: "username or email is required"}))
		return
	}

	result, err := ac.auth.Login(c.Request.Context(), login, input.Password)
	if err != nil {
		ac.log.WithField("login", login).Info("login failed")
		response.Error(c, ac.log, err)
		return
	}
	response.OK(c, "login successful", result)
}

func (ac *AuthController) Refresh(c *gin.Context) {
	var input refreshInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, ac.log, response.BindError(err))
		return
	}

	pair, err := ac.auth.Refresh(c.Request.Context(), input.RefreshToken)
	if err != nil {
		response.Error(c, ac.log, err)
		return
	}
	response.OK(c, "token refreshed", pair)
}

// Logout accepts an empty body; without a refresh token it only acknowledges.
func (ac *AuthController) Logout(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	var input logoutInput
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&input); err != nil {
			response.Error(c, ac.log, response.BindError(err))
			return
		}
	}

	if err := ac.auth.Logout(c.Request.Context(), user.ID, input.RefreshToken); err != nil {
		response.Error(c, ac.log, err)
		return
	}
	response.OK(c, "logged out", nil)
}

func (ac *AuthController) Me(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	me, err := ac.auth.Me(c.Request.Context(), user.ID)
	if err != nil {
		response.Error(c, ac.log, err)
		return
	}
	response.OK(c, "", me)
}

func (ac *AuthController) UpdateProfile(c *gin.Context) {
	var input profileInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, ac.log, response.BindError(err))
		return
	}

	user, _ := middleware.CurrentUser(c)
	updated, err := ac.auth.UpdateProfile(c.Request.Context(), user.ID, services.ProfileInput{
		Username: input.Username,
		Email:    input.Email,
	})
	if err != nil {
		response.Error(c, ac.log, err)
		return
	}
	response.OK(c, "profile updated", updated)
}

func (ac *AuthController) ChangePassword(c *gin.Context) {
	var input passwordInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, ac.log, response.BindError(err))
		return
	}

	user, _ := middleware.CurrentUser(c)
	if err := ac.auth.ChangePassword(c.Request.Context(), user.ID, input.CurrentPassword, input.NewPassword); err != nil {
		response.Error(c, ac.log, err)
		return
	}
	response.OK(c, "password changed; please log in again", nil)
}
