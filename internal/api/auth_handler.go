package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/shardkit/proxy/pkg/security"
)

// UserStore is the auth handler's user-lookup contract.
type UserStore interface {
	GetUser(username string) (*security.User, error)
	Authenticate(username, password string) (*security.User, error)
	AddUser(user *security.User) error
	GetAdminCount() (int, error)
}

// AuthHandler issues and validates admin API sessions.
type AuthHandler struct {
	authManager *security.AuthManager
	userStore   UserStore
	logger      *zap.Logger
}

// NewAuthHandler creates a new auth handler backed by an in-memory
// user store seeded with the default admin/operator/viewer accounts.
func NewAuthHandler(authManager *security.AuthManager, logger *zap.Logger) (*AuthHandler, error) {
	return &AuthHandler{
		authManager: authManager,
		userStore:   security.NewUserStore(),
		logger:      logger,
	}, nil
}

// LoginRequest represents a login request
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse represents a login response
type LoginResponse struct {
	Token    string   `json:"token"`
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
}

func (h *AuthHandler) writeJSONError(w http.ResponseWriter, code int, errorCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]string{
			"code":    errorCode,
			"message": message,
		},
	})
}

// Login handles login requests.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSONError(w, http.StatusBadRequest, "BAD_REQUEST", "Invalid request body")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" {
		h.writeJSONError(w, http.StatusBadRequest, "BAD_REQUEST", "Username is required")
		return
	}
	if len(req.Password) == 0 {
		h.writeJSONError(w, http.StatusBadRequest, "BAD_REQUEST", "Password is required")
		return
	}

	user, err := h.userStore.Authenticate(req.Username, req.Password)
	if err != nil {
		h.logger.Warn("authentication failed", zap.String("username", req.Username), zap.Error(err))
		h.writeJSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid credentials")
		return
	}

	token, err := h.authManager.GenerateToken(user.Username, user.Roles)
	if err != nil {
		h.logger.Error("failed to generate token", zap.Error(err))
		h.writeJSONError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to generate token")
		return
	}

	h.logger.Info("successful login", zap.String("username", user.Username), zap.Strings("roles", user.Roles))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(LoginResponse{Token: token, Username: user.Username, Roles: user.Roles})
}

// CreateUserRequest represents a request to add an operator account.
type CreateUserRequest struct {
	Username string   `json:"username"`
	Password string   `json:"password"`
	Roles    []string `json:"roles"`
}

// CreateUser lets an admin add a new operator/viewer account.
func (h *AuthHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSONError(w, http.StatusBadRequest, "BAD_REQUEST", "Invalid request body")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" {
		h.writeJSONError(w, http.StatusBadRequest, "BAD_REQUEST", "Username is required")
		return
	}
	if err := security.ValidatePasswordStrength(req.Password); err != nil {
		h.writeJSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	if len(req.Roles) == 0 {
		req.Roles = []string{"viewer"}
	}

	passwordHash, err := security.HashPassword(req.Password)
	if err != nil {
		h.logger.Error("failed to hash password", zap.Error(err))
		h.writeJSONError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to process password")
		return
	}

	user := &security.User{Username: req.Username, PasswordHash: passwordHash, Roles: req.Roles, Active: true}
	if err := h.userStore.AddUser(user); err != nil {
		h.writeJSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	h.logger.Info("user created", zap.String("username", user.Username), zap.Strings("roles", user.Roles))
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{"username": user.Username})
}

// SetupAuthRoutes sets up authentication routes
func SetupAuthRoutes(router *mux.Router, handler *AuthHandler) {
	router.HandleFunc("/api/v1/auth/login", handler.Login).Methods("POST", "OPTIONS")
	router.HandleFunc("/api/v1/auth/users", handler.CreateUser).Methods("POST", "OPTIONS")
}
