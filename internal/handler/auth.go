package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/cvewatch/cve-dashboard/internal/repository"
	"github.com/cvewatch/cve-dashboard/internal/session"
	"github.com/cvewatch/cve-dashboard/internal/utils"
)

// AuthHandler serves signup, login, logout and the session check.
type AuthHandler struct {
	Users      *repository.UserRepo
	Sessions   *session.Manager
	BcryptCost int
	Log        *zap.Logger
}

func NewAuthHandler(u *repository.UserRepo, s *session.Manager, bcryptCost int, log *zap.Logger) *AuthHandler {
	return &AuthHandler{Users: u, Sessions: s, BcryptCost: bcryptCost, Log: log}
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func bindCredentials(c echo.Context) (credentials, bool) {
	var req credentials
	if err := c.Bind(&req); err != nil {
		return req, false
	}
	req.Email = strings.TrimSpace(req.Email)
	return req, req.Email != "" && req.Password != ""
}

// Signup creates an ANALYST account and logs it in.
func (h *AuthHandler) Signup(c echo.Context) error {
	req, ok := bindCredentials(c)
	if !ok {
		return jsonError(c, http.StatusBadRequest, "Email and password required")
	}
	ctx, cancel := dbContext(c)
	defer cancel()

	id, err := h.Users.Create(ctx, req.Email, req.Password, h.BcryptCost)
	switch {
	case errors.Is(err, repository.ErrEmailExists):
		return jsonError(c, http.StatusBadRequest, "User already exists")
	case errors.Is(err, bcrypt.ErrPasswordTooLong):
		return jsonError(c, http.StatusBadRequest, "Password too long")
	case err != nil:
		return serverError(c, h.Log, "signup failed", err)
	}

	if err := h.Sessions.Start(c, session.Data{UserID: id, Email: req.Email}); err != nil {
		return serverError(c, h.Log, "starting session failed", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "email": req.Email})
}

// Login verifies the credentials and starts a new session.
func (h *AuthHandler) Login(c echo.Context) error {
	req, ok := bindCredentials(c)
	if !ok {
		return jsonError(c, http.StatusBadRequest, "Email and password required")
	}
	ctx, cancel := dbContext(c)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if errors.Is(err, repository.ErrNotFound) {
		utils.BurnPasswordCheck(req.Password)
		return jsonError(c, http.StatusUnauthorized, "Invalid credentials")
	}
	if err != nil {
		return serverError(c, h.Log, "login lookup failed", err)
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return jsonError(c, http.StatusUnauthorized, "Invalid credentials")
	}

	if err := h.Sessions.Start(c, session.Data{UserID: u.ID, Email: u.Email}); err != nil {
		return serverError(c, h.Log, "starting session failed", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "email": u.Email})
}

// Logout always succeeds; store failures are only logged.
func (h *AuthHandler) Logout(c echo.Context) error {
	if err := h.Sessions.Clear(c); err != nil {
		h.Log.Warn("clearing session failed", zap.Error(err))
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

func (h *AuthHandler) CheckSession(c echo.Context) error {
	d, err := h.Sessions.Load(c)
	if errors.Is(err, session.ErrNoSession) {
		return c.JSON(http.StatusOK, echo.Map{"logged_in": false})
	}
	if err != nil {
		return serverError(c, h.Log, "session lookup failed", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"logged_in": true, "email": d.Email})
}
