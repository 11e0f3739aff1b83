package http

import (
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"time"

	"github.com/swaggo/swag"

	"github.com/custodia-labs/restormel-core/internal/core/domain"
	"github.com/custodia-labs/restormel-core/internal/core/ports/driving"
)

// maxBodyBytes caps request bodies read by handlers
const maxBodyBytes = 1 << 20

// readyTimeout bounds each dependency check in /ready
const readyTimeout = 2 * time.Second

// ErrorResponse represents an API error response
// @Description API error response
type ErrorResponse struct {
	Error string `json:"error" example:"invalid request body"`
}

// StatusResponse represents a simple status response
// @Description Simple status response
type StatusResponse struct {
	Status string `json:"status" example:"ok"`
}

// ReadyResponse reports the state of each dependency
// @Description Readiness response with per-dependency checks
type ReadyResponse struct {
	Status string            `json:"status" example:"ready"`
	Checks map[string]string `json:"checks"`
}

// VersionResponse represents the API version response
// @Description API version response
type VersionResponse struct {
	Version string `json:"version" example:"1.0.0"`
}

// ChangePasswordResponse carries exactly one of success or error
// @Description Password change outcome
type ChangePasswordResponse struct {
	Success string `json:"success,omitempty" example:"Password updated successfully"`
	Error   string `json:"error,omitempty" example:"Current password is incorrect"`
}

// Health endpoints

// handleHealth godoc
// @Summary      Health check
// @Description  Returns the health status of the API
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Router       /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// handleReady godoc
// @Summary      Readiness check
// @Description  Pings PostgreSQL and, when configured, Redis
// @Tags         Health
// @Produce      json
// @Success      200  {object}  ReadyResponse
// @Failure      503  {object}  ReadyResponse
// @Router       /ready [get]
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	resp := ReadyResponse{Status: "ready", Checks: map[string]string{}}

	check := func(name string, p Pinger) {
		if p == nil {
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			s.logger.Warn("readiness check failed", "dependency", name, "error", err)
			resp.Checks[name] = "unavailable"
			resp.Status = "not ready"
			return
		}
		resp.Checks[name] = "ok"
	}

	check("postgres", s.db)
	check("redis", s.redisClient)

	status := http.StatusOK
	if resp.Status != "ready" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// handleVersion godoc
// @Summary      Get API version
// @Description  Returns the current API version
// @Tags         Health
// @Produce      json
// @Success      200  {object}  VersionResponse
// @Router       /version [get]
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, VersionResponse{Version: s.version})
}

// handleSwaggerDoc serves the registered OpenAPI document
func (s *Server) handleSwaggerDoc(w http.ResponseWriter, r *http.Request) {
	doc, err := swag.ReadDoc()
	if err != nil {
		writeError(w, http.StatusNotFound, "api documentation not available")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(doc))
}

// Auth endpoints

// handleLogin godoc
// @Summary      User login
// @Description  Authenticate with email and password to receive a JWT token
// @Tags         Authentication
// @Accept       json
// @Produce      json
// @Param        request  body      domain.LoginRequest  true  "Login credentials"
// @Success      200      {object}  domain.LoginResponse
// @Failure      400      {object}  ErrorResponse  "Invalid request body"
// @Failure      401      {object}  ErrorResponse  "Invalid credentials or account disabled"
// @Failure      500      {object}  ErrorResponse  "Internal server error"
// @Router       /auth/login [post]
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.UserAgent = r.UserAgent()
	req.IPAddress = clientIP(r)

	resp, err := s.authService.Authenticate(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, "email and password are required")
		case errors.Is(err, domain.ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, "invalid credentials")
		case errors.Is(err, domain.ErrUnauthorized):
			writeError(w, http.StatusUnauthorized, "account disabled")
		default:
			s.logger.Error("authentication failed", "error", err)
			writeError(w, http.StatusInternalServerError, "authentication failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleLogout godoc
// @Summary      Logout user
// @Description  Invalidate the current session token
// @Tags         Authentication
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  StatusResponse
// @Router       /auth/logout [post]
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := extractBearerToken(r)
	if token != "" {
		if err := s.authService.Logout(r.Context(), token); err != nil {
			s.logger.Warn("logout failed", "error", err)
		}
	}
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// handleLogoutAll godoc
// @Summary      Logout everywhere
// @Description  Invalidate every session of the current user
// @Tags         Authentication
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  StatusResponse
// @Failure      401  {object}  ErrorResponse  "Unauthorized"
// @Failure      500  {object}  ErrorResponse  "Internal server error"
// @Router       /auth/logout-all [post]
func (s *Server) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := s.authService.LogoutAll(r.Context(), authCtx.UserID); err != nil {
		s.logger.Error("logout all failed", "user_id", authCtx.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to revoke sessions")
		return
	}

	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// Setup endpoint (no auth required, one-time use)

// handleSetup godoc
// @Summary      Initial setup
// @Description  Create the initial admin user. This endpoint can only be called once when no users exist.
// @Tags         Setup
// @Accept       json
// @Produce      json
// @Param        request  body      driving.SetupRequest  true  "Admin user details"
// @Success      201      {object}  driving.SetupResponse
// @Failure      400      {object}  ErrorResponse  "Invalid input"
// @Failure      403      {object}  ErrorResponse  "Setup already complete"
// @Failure      500      {object}  ErrorResponse  "Setup failed"
// @Router       /setup [post]
func (s *Server) handleSetup(w http.ResponseWriter, r *http.Request) {
	var req driving.SetupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := s.userService.Setup(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, "email, password, and name are required")
		case errors.Is(err, domain.ErrForbidden):
			writeError(w, http.StatusForbidden, "setup already complete")
		default:
			s.logger.Error("setup failed", "error", err)
			writeError(w, http.StatusInternalServerError, "setup failed")
		}
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

// User endpoints

// handleGetMe godoc
// @Summary      Get current user
// @Description  Get the currently authenticated user's profile
// @Tags         Users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  domain.UserSummary
// @Failure      401  {object}  ErrorResponse  "Unauthorized"
// @Failure      404  {object}  ErrorResponse  "User not found"
// @Router       /me [get]
func (s *Server) handleGetMe(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := s.userService.Get(r.Context(), authCtx.UserID)
	if err != nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	writeJSON(w, http.StatusOK, user.ToSummary())
}

// handleChangePassword godoc
// @Summary      Change password
// @Description  Change the caller's password. JSON bodies use current_password, new_password and confirm_password. Form bodies use currentPassword, newPassword and confirmPassword.
// @Tags         Users
// @Accept       json
// @Accept       x-www-form-urlencoded
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      domain.ChangePasswordRequest  true  "Current and new password"
// @Success      200      {object}  ChangePasswordResponse
// @Failure      400      {object}  ChangePasswordResponse  "Invalid input or current password is incorrect"
// @Failure      401      {object}  ChangePasswordResponse  "Unauthorized"
// @Failure      500      {object}  ChangePasswordResponse  "Unable to update password"
// @Router       /me/password [post]
func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	req, err := decodeChangePassword(w, r)
	if err != nil {
		// An unreadable body from an anonymous caller is still unauthorized
		result := domain.Failed(domain.ResultInvalid, domain.MsgInvalidInput)
		if SessionProvider.ResolveSession(r.Context()) == nil {
			result = domain.Failed(domain.ResultUnauthorized, domain.MsgUnauthorized)
		}
		writeJSON(w, changePasswordStatus(result), result)
		return
	}

	result := s.credentialService.ChangePassword(r.Context(), req)
	writeJSON(w, changePasswordStatus(result), result)
}

// handleListUsers godoc
// @Summary      List all users
// @Description  Get a list of all users (admin only)
// @Tags         Users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   domain.UserSummary
// @Failure      401  {object}  ErrorResponse  "Unauthorized"
// @Failure      403  {object}  ErrorResponse  "Forbidden - admin only"
// @Failure      500  {object}  ErrorResponse  "Internal server error"
// @Router       /users [get]
func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.userService.List(r.Context())
	if err != nil {
		s.logger.Error("list users failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list users")
		return
	}

	summaries := make([]*domain.UserSummary, len(users))
	for i, u := range users {
		summaries[i] = u.ToSummary()
	}

	writeJSON(w, http.StatusOK, summaries)
}

// handleCreateUser godoc
// @Summary      Create user
// @Description  Create a new user (admin only)
// @Tags         Users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      driving.CreateUserRequest  true  "User details"
// @Success      201      {object}  domain.UserSummary
// @Failure      400      {object}  ErrorResponse  "Invalid input"
// @Failure      401      {object}  ErrorResponse  "Unauthorized"
// @Failure      403      {object}  ErrorResponse  "Forbidden - admin only"
// @Failure      409      {object}  ErrorResponse  "User already exists"
// @Failure      500      {object}  ErrorResponse  "Internal server error"
// @Router       /users [post]
func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req driving.CreateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := s.userService.Create(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrAlreadyExists):
			writeError(w, http.StatusConflict, "user already exists")
		case errors.Is(err, domain.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, "invalid input")
		default:
			s.logger.Error("create user failed", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to create user")
		}
		return
	}

	writeJSON(w, http.StatusCreated, user.ToSummary())
}

// Helpers

// changePasswordStatus maps a result kind to its HTTP status
func changePasswordStatus(result domain.ChangePasswordResult) int {
	switch result.Kind() {
	case domain.ResultSuccess:
		return http.StatusOK
	case domain.ResultUnauthorized:
		return http.StatusUnauthorized
	case domain.ResultInvalid, domain.ResultCredentialMismatch:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// decodeChangePassword reads a JSON or form-encoded password change body
func decodeChangePassword(w http.ResponseWriter, r *http.Request) (domain.ChangePasswordRequest, error) {
	var req domain.ChangePasswordRequest

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		if mediaType == "multipart/form-data" {
			if err := r.ParseMultipartForm(maxBodyBytes); err != nil {
				return req, err
			}
		} else if err := r.ParseForm(); err != nil {
			return req, err
		}
		req.CurrentPassword = r.PostFormValue("currentPassword")
		req.NewPassword = r.PostFormValue("newPassword")
		req.ConfirmPassword = r.PostFormValue("confirmPassword")
		return req, nil
	default:
		err := decodeJSON(w, r, &req)
		return req, err
	}
}

// decodeJSON decodes a size-limited JSON body into v
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

// clientIP returns the best-effort client address
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		for i := 0; i < len(fwd); i++ {
			if fwd[i] == ',' {
				return fwd[:i]
			}
		}
		return fwd
	}
	return r.RemoteAddr
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
