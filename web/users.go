package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/artpar/tablekit/ports"
	"github.com/artpar/tablekit/row"
	"github.com/artpar/tablekit/session"
	"github.com/artpar/tablekit/table"
)

// UsersService is the registration name for the user service.
const UsersService = "users"

// UsersTable is the member name of the backing table.
const UsersTable = "users"

// ErrBadCredentials is returned when authentication fails.
var ErrBadCredentials = errors.New("bad credentials")

// UserService manages accounts on top of the users table. It is a
// session service: unconnected when built, cloned onto a scope by Bind.
type UserService struct {
	db     *session.Database
	hasher ports.Hasher
	ids    ports.IDGenerator
}

// NewUserService builds the service blueprint.
func NewUserService(hasher ports.Hasher, ids ports.IDGenerator) *UserService {
	return &UserService{hasher: hasher, ids: ids}
}

// Bind returns an independent copy attached to the scope.
func (s *UserService) Bind(db *session.Database) any {
	clone := *s
	clone.db = db
	return &clone
}

func (s *UserService) users() (*table.Dynamic, error) {
	if s.db == nil {
		return nil, fmt.Errorf("user service not bound to a scope")
	}
	return session.Get[*table.Dynamic](s.db, UsersTable)
}

// Register creates an account and returns the stored user row without
// the password hash.
func (s *UserService) Register(ctx context.Context, email, password string) (row.Row, error) {
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", row.ErrValueMissing)
	}
	users, err := s.users()
	if err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	stored, err := users.Insert(ctx, row.Row{
		"public_id":     s.ids.New(),
		"email":         email,
		"password_hash": string(hash),
		"active":        true,
	})
	if err != nil {
		return nil, err
	}
	delete(stored, "password_hash")
	return stored, nil
}

// Authenticate checks credentials and returns the user row without the
// password hash.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (row.Row, error) {
	users, err := s.users()
	if err != nil {
		return nil, err
	}
	matches, err := users.SelectBy(ctx, row.Row{"email": email})
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, ErrBadCredentials
	}
	user := matches[0]
	hash, _ := user["password_hash"].(string)
	if !s.hasher.Compare([]byte(hash), password) {
		return nil, ErrBadCredentials
	}
	delete(user, "password_hash")
	return user, nil
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) userService(w http.ResponseWriter) (*UserService, bool) {
	svc, err := session.GetService[*UserService](h.sys, UsersService)
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return svc, true
}

// Register handles account creation.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var creds credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "decode body: " + err.Error()})
		return
	}
	svc, ok := h.userService(w)
	if !ok {
		return
	}
	user, err := svc.Register(r.Context(), creds.Email, creds.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// Login handles authentication.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var creds credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "decode body: " + err.Error()})
		return
	}
	svc, ok := h.userService(w)
	if !ok {
		return
	}
	user, err := svc.Authenticate(r.Context(), creds.Email, creds.Password)
	if err != nil {
		if errors.Is(err, ErrBadCredentials) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "bad credentials"})
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
