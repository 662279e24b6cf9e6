// Package auth implements the credential store: the registered user list
// and the single persisted session.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"kakeibo/internal/core"
	"kakeibo/internal/kv"
)

// MinPasswordLength is the shortest password Register accepts, in UTF-16
// code units.
const MinPasswordLength = 6

var (
	ErrMissingFields          = errors.New("all fields are required")
	ErrMissingCredentials     = errors.New("email and password are required")
	ErrPasswordMismatch       = errors.New("passwords do not match")
	ErrPasswordTooShort       = errors.New("password too short")
	ErrEmailAlreadyRegistered = errors.New("email already registered")
	// ErrInvalidCredentials does not say whether the email or the password was wrong.
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrNotAuthenticated   = errors.New("not authenticated")
)

// Store manages users and the current session on top of a kv.Store.
type Store struct {
	kv   kv.Store
	cost int
	// mu serialises read-modify-write of the user list.
	mu sync.Mutex

	dummyOnce   sync.Once
	dummyDigest []byte
}

type Option func(*Store)

// WithBcryptCost overrides bcrypt.DefaultCost.
func WithBcryptCost(cost int) Option {
	return func(s *Store) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			s.cost = cost
		}
	}
}

func NewStore(store kv.Store, opts ...Option) *Store {
	s := &Store{kv: store, cost: bcrypt.DefaultCost}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates a user and makes it the current session.
// A failed registration leaves the stored user list untouched.
func (s *Store) Register(ctx context.Context, name, email, password, confirmPassword string) (core.Session, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)

	if name == "" || email == "" || password == "" {
		return core.Session{}, ErrMissingFields
	}
	if password != confirmPassword {
		return core.Session{}, ErrPasswordMismatch
	}
	if PasswordLength(password) < MinPasswordLength {
		return core.Session{}, ErrPasswordTooShort
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.users(ctx)
	if err != nil {
		return core.Session{}, err
	}
	if _, found := findByEmail(users, email); found {
		return core.Session{}, ErrEmailAlreadyRegistered
	}

	digest, err := HashPassword(password, s.cost)
	if err != nil {
		return core.Session{}, err
	}
	user := core.User{
		ID:             core.NewID(),
		Name:           name,
		Email:          email,
		PasswordDigest: digest,
	}
	if err := kv.SetJSON(ctx, s.kv, kv.KeyUsers, append(users, user)); err != nil {
		return core.Session{}, fmt.Errorf("save users: %w", err)
	}

	slog.InfoContext(ctx, "User registered", "user_id", user.ID)
	return s.startSession(ctx, user)
}

// Login authenticates by exact email match and replaces the current session.
func (s *Store) Login(ctx context.Context, email, password string) (core.Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return core.Session{}, ErrMissingCredentials
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.users(ctx)
	if err != nil {
		return core.Session{}, err
	}
	i, found := findByEmail(users, email)
	if !found {
		// Burn comparable time so unknown emails are not distinguishable.
		_ = bcrypt.CompareHashAndPassword(s.dummy(), bcryptInput(password))
		return core.Session{}, ErrInvalidCredentials
	}
	match, legacy := CheckPassword(users[i].PasswordDigest, password)
	if !match {
		slog.WarnContext(ctx, "Login failed", "user_id", users[i].ID)
		return core.Session{}, ErrInvalidCredentials
	}

	if legacy {
		if err := s.upgradeDigest(ctx, users, i, password); err != nil {
			// The login itself is valid; the upgrade is retried next time.
			slog.ErrorContext(ctx, "Failed to upgrade legacy password digest", "user_id", users[i].ID, "error", err)
		}
	}

	return s.startSession(ctx, users[i])
}

// Logout clears the current session.
func (s *Store) Logout(ctx context.Context) error {
	if err := s.kv.Remove(ctx, kv.KeyCurrentUser); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// Current returns the persisted session, if any.
func (s *Store) Current(ctx context.Context) (core.Session, bool, error) {
	sess, ok, err := kv.GetJSON[*core.Session](ctx, s.kv, kv.KeyCurrentUser)
	if err != nil {
		return core.Session{}, false, fmt.Errorf("load session: %w", err)
	}
	if !ok || sess == nil || sess.ID == "" {
		return core.Session{}, false, nil
	}
	return *sess, true, nil
}

func (s *Store) IsAuthenticated(ctx context.Context) bool {
	_, ok, err := s.Current(ctx)
	return err == nil && ok
}

// Users returns the stored users. Absent storage is an empty list.
func (s *Store) Users(ctx context.Context) ([]core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users(ctx)
}

func (s *Store) users(ctx context.Context) ([]core.User, error) {
	users, _, err := kv.GetJSON[[]core.User](ctx, s.kv, kv.KeyUsers)
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	return users, nil
}

func (s *Store) startSession(ctx context.Context, u core.User) (core.Session, error) {
	sess := u.Session()
	if err := kv.SetJSON(ctx, s.kv, kv.KeyCurrentUser, sess); err != nil {
		return core.Session{}, fmt.Errorf("save session: %w", err)
	}
	return sess, nil
}

func (s *Store) upgradeDigest(ctx context.Context, users []core.User, i int, password string) error {
	digest, err := HashPassword(password, s.cost)
	if err != nil {
		return err
	}
	users[i].PasswordDigest = digest
	if err := kv.SetJSON(ctx, s.kv, kv.KeyUsers, users); err != nil {
		return fmt.Errorf("save users: %w", err)
	}
	slog.InfoContext(ctx, "Upgraded legacy password digest", "user_id", users[i].ID)
	return nil
}

func findByEmail(users []core.User, email string) (int, bool) {
	for i, u := range users {
		if u.Email == email {
			return i, true
		}
	}
	return -1, false
}

// dummy returns a digest at the store's cost, compared against on unknown emails.
func (s *Store) dummy() []byte {
	s.dummyOnce.Do(func() {
		s.dummyDigest, _ = bcrypt.GenerateFromPassword([]byte(core.NewID()), s.cost)
	})
	return s.dummyDigest
}
