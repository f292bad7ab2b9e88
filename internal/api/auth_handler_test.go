package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	apierrors "github.com/shardkit/proxy/internal/errors"
	"github.com/shardkit/proxy/pkg/security"
)

type mockUserStore struct {
	users          map[string]*security.User
	adminCount     int
	authenticateFn func(username, password string) (*security.User, error)
}

func newMockUserStore() *mockUserStore {
	return &mockUserStore{users: make(map[string]*security.User)}
}

func (m *mockUserStore) GetUser(username string) (*security.User, error) {
	if u, ok := m.users[username]; ok {
		return u, nil
	}
	return nil, apierrors.ErrNotFound
}

func (m *mockUserStore) Authenticate(username, password string) (*security.User, error) {
	if m.authenticateFn != nil {
		return m.authenticateFn(username, password)
	}
	return nil, apierrors.ErrNotFound
}

func (m *mockUserStore) AddUser(user *security.User) error {
	if _, ok := m.users[user.Username]; ok {
		return errors.New("user already exists")
	}
	m.users[user.Username] = user
	return nil
}

func (m *mockUserStore) GetAdminCount() (int, error) {
	return m.adminCount, nil
}

func newTestAuthHandler(store UserStore) *AuthHandler {
	return &AuthHandler{
		authManager: security.NewAuthManager("test-secret"),
		userStore:   store,
		logger:      zap.NewNop(),
	}
}

func TestAuthHandler_Login(t *testing.T) {
	tests := []struct {
		name       string
		body       LoginRequest
		authFn     func(username, password string) (*security.User, error)
		wantStatus int
		wantErrMsg string
	}{
		{
			name: "successful login",
			body: LoginRequest{Username: "admin", Password: "admin123"},
			authFn: func(username, password string) (*security.User, error) {
				return &security.User{Username: "admin", Roles: []string{"admin"}, Active: true}, nil
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "invalid credentials",
			body: LoginRequest{Username: "admin", Password: "wrong"},
			authFn: func(username, password string) (*security.User, error) {
				return nil, apierrors.ErrUnauthorized
			},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "missing username",
			body:       LoginRequest{Password: "admin123"},
			wantStatus: http.StatusBadRequest,
			wantErrMsg: "Username is required",
		},
		{
			name:       "missing password",
			body:       LoginRequest{Username: "admin"},
			wantStatus: http.StatusBadRequest,
			wantErrMsg: "Password is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMockUserStore()
			store.authenticateFn = tt.authFn
			handler := newTestAuthHandler(store)

			payload, _ := json.Marshal(tt.body)
			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
			rec := httptest.NewRecorder()

			handler.Login(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("got status %d, want %d (body=%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantErrMsg != "" && !bytes.Contains(rec.Body.Bytes(), []byte(tt.wantErrMsg)) {
				t.Fatalf("expected body to contain %q, got %s", tt.wantErrMsg, rec.Body.String())
			}
		})
	}
}

func TestAuthHandler_CreateUser(t *testing.T) {
	tests := []struct {
		name       string
		body       CreateUserRequest
		wantStatus int
		wantErrMsg string
	}{
		{
			name:       "successful create",
			body:       CreateUserRequest{Username: "newop", Password: "longenough1", Roles: []string{"operator"}},
			wantStatus: http.StatusCreated,
		},
		{
			name:       "missing username",
			body:       CreateUserRequest{Password: "longenough1"},
			wantStatus: http.StatusBadRequest,
			wantErrMsg: "Username is required",
		},
		{
			name:       "weak password",
			body:       CreateUserRequest{Username: "newop", Password: "short"},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMockUserStore()
			handler := newTestAuthHandler(store)

			payload, _ := json.Marshal(tt.body)
			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/users", bytes.NewReader(payload))
			rec := httptest.NewRecorder()

			handler.CreateUser(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("got status %d, want %d (body=%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantErrMsg != "" && !bytes.Contains(rec.Body.Bytes(), []byte(tt.wantErrMsg)) {
				t.Fatalf("expected body to contain %q, got %s", tt.wantErrMsg, rec.Body.String())
			}
		})
	}
}
