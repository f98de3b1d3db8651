package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"taskboard/internal/model"
	"taskboard/internal/repository"
	"taskboard/internal/session"
	"taskboard/pkg/metrics"
	"taskboard/pkg/util"
)

const (
	minPasswordLength = 6
	// bcrypt only accepts 72 bytes of input
	maxPasswordBytes = 72
)

// Session is what the transport layer binds to cookies.
type Session struct {
	Token     string
	UserID    string
	ExpiresAt time.Time
}

type Service struct {
	users    repository.UserRepository
	sessions session.Registry
	secret   string
	ttl      time.Duration
	logger   *zap.Logger

	now   func() time.Time
	newID func() string
}

func NewService(users repository.UserRepository, sessions session.Registry, secret string, ttl time.Duration, logger *zap.Logger) *Service {
	return &Service{
		users:    users,
		sessions: sessions,
		secret:   secret,
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

func (s *Service) SessionTTL() time.Duration { return s.ttl }

// Register creates a new user.
func (s *Service) Register(ctx context.Context, name, email, password string) (user *model.PublicUser, err error) {
	defer func() { metrics.IncrementAuthAttempt("signup", err) }()

	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" || email == "" || password == "" {
		return nil, fmt.Errorf("%w: name, email, and password are required", model.ErrValidation)
	}
	if !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: email address is invalid", model.ErrValidation)
	}
	if len(password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", model.ErrValidation, minPasswordLength)
	}
	if len(password) > maxPasswordBytes {
		return nil, fmt.Errorf("%w: password must be at most %d bytes", model.ErrValidation, maxPasswordBytes)
	}

	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, model.ErrUserNotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, model.ErrDuplicateEmail
	}

	hash, err := util.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &model.User{
		ID:           s.newID(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	}
	// the store re-checks uniqueness under its own lock or constraint
	if err := s.users.CreateUser(ctx, u); err != nil {
		return nil, err
	}

	s.logger.Info("User registered", zap.String("user_id", u.ID))
	pub := u.Public()
	return &pub, nil
}

// Login checks user credentials. Unknown email and wrong password return the
// same ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, email, password string) (user *model.PublicUser, err error) {
	defer func() { metrics.IncrementAuthAttempt("login", err) }()

	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", model.ErrValidation)
	}

	u, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, model.ErrUserNotFound) {
		util.BurnPasswordCheck(password)
		return nil, model.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if !util.CheckPassword(password, u.PasswordHash) {
		return nil, model.ErrInvalidCredentials
	}

	pub := u.Public()
	return &pub, nil
}

// IssueSession signs a token for userID and records its id so that it can be
// revoked later.
func (s *Service) IssueSession(ctx context.Context, userID string) (*Session, error) {
	now := s.now()
	sessionID := s.newID()
	token, err := util.GenerateSessionToken(userID, sessionID, s.secret, s.ttl, now)
	if err != nil {
		return nil, fmt.Errorf("sign session: %w", err)
	}
	if err := s.sessions.Save(ctx, sessionID, userID, s.ttl); err != nil {
		return nil, fmt.Errorf("record session: %w", err)
	}
	return &Session{
		Token:     token,
		UserID:    userID,
		ExpiresAt: now.Add(s.ttl),
	}, nil
}

// Authenticate resolves a session token to its user. The token must carry a
// valid signature, be unexpired and still be registered. When userIDCookie
// is non-empty it must name the same user.
func (s *Service) Authenticate(ctx context.Context, token, userIDCookie string) (string, error) {
	if token == "" {
		return "", model.ErrUnauthenticated
	}
	claims, err := util.ParseSessionToken(token, s.secret)
	if err != nil {
		return "", model.ErrUnauthenticated
	}

	owner, err := s.sessions.Lookup(ctx, claims.SessionID())
	if errors.Is(err, session.ErrUnknownSession) {
		return "", model.ErrUnauthenticated
	}
	if err != nil {
		return "", err
	}
	if owner != claims.UserID() {
		return "", model.ErrUnauthenticated
	}
	if userIDCookie != "" && userIDCookie != claims.UserID() {
		return "", model.ErrUnauthenticated
	}
	return claims.UserID(), nil
}

// Logout revokes the session behind token. Invalid tokens are ignored so that
// logging out is always safe to repeat.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	claims, err := util.ParseSessionToken(token, s.secret)
	if err != nil {
		return nil
	}
	if err := s.sessions.Revoke(ctx, claims.SessionID()); err != nil {
		return err
	}
	metrics.IncrementSessionRevocation()
	s.logger.Info("Session revoked", zap.String("user_id", claims.UserID()))
	return nil
}

// Me returns the sanitized record for an authenticated user.
func (s *Service) Me(ctx context.Context, userID string) (*model.PublicUser, error) {
	u, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, model.ErrUserNotFound) {
		return nil, model.ErrUnauthenticated
	}
	if err != nil {
		return nil, err
	}
	pub := u.Public()
	return &pub, nil
}
