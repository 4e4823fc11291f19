package service

import (
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/oadeyemi/clinic-messenger/internal/config"
	"github.com/oadeyemi/clinic-messenger/internal/models"
	"github.com/oadeyemi/clinic-messenger/internal/pincode"
	"github.com/oadeyemi/clinic-messenger/internal/repository"
)

// ErrInvalidPin is returned by RegisterUser when the PIN is not six digits.
var ErrInvalidPin = errors.New("pin must be exactly 6 digits")

var pinFormatRe = regexp.MustCompile(`^\d{6}$`)

type authService struct {
	cfg    *config.AuthConfig
	repo   repository.Repository
	hasher *pincode.Hasher
	logger *zap.Logger

	mu             sync.RWMutex
	currentSession *models.AuthSession
}

func NewAuthService(
	cfg *config.AuthConfig,
	repo repository.Repository,
	logger *zap.Logger,
) AuthService {
	return &authService{
		cfg:    cfg,
		repo:   repo,
		hasher: pincode.NewHasher(cfg.PBKDFIterations, cfg.SaltLengthBytes),
		logger: logger,
	}
}

// Login verifies the PIN against every active user's stored hash. The
// lockout window is checked first and lazily cleared when it has elapsed;
// failed attempts are persisted so the counter survives restarts.
//
// Verification costs one PBKDF2 derivation per active user per attempt.
// Tolerable only because clinic staff rosters are small.
func (s *authService) Login(pin, deviceKey string) (*LoginResult, error) {
	now := time.Now()

	state, err := s.repo.Lockout().Get()
	if err != nil {
		return nil, fmt.Errorf("failed to load lockout state: %w", err)
	}

	if state.Locked(now) {
		until := state.LockoutUntil.Time
		s.logger.Warn("Login rejected: locked out", zap.Time("lockoutUntil", until))
		return &LoginResult{Outcome: LoginLockedOut, LockedUntil: &until}, nil
	}

	// Window elapsed: reset before counting this attempt.
	if state.LockoutUntil.Valid {
		state.FailedAttempts = 0
		state.LockoutUntil = sql.NullTime{}
	}

	if !pinFormatRe.MatchString(pin) {
		if err := s.recordFailure(state, now); err != nil {
			return nil, err
		}
		return &LoginResult{Outcome: LoginInvalidFormat}, nil
	}

	users, err := s.repo.User().GetActiveUsers()
	if err != nil {
		return nil, fmt.Errorf("failed to load users: %w", err)
	}

	for _, user := range users {
		if !s.hasher.Verify(pin, user.PinHash, user.PinSalt) {
			continue
		}

		session, err := s.createSession(user, deviceKey, now)
		if err != nil {
			return nil, err
		}

		if err := s.repo.Lockout().Save(0, nil); err != nil {
			return nil, fmt.Errorf("failed to reset lockout state: %w", err)
		}

		s.logger.Info("Login succeeded",
			zap.String("userID", user.ID.String()),
			zap.String("sessionID", session.ID.String()))

		return &LoginResult{Outcome: LoginOK, Session: session}, nil
	}

	if err := s.recordFailure(state, now); err != nil {
		return nil, err
	}
	return &LoginResult{Outcome: LoginInvalidCredentials}, nil
}

// recordFailure increments the persisted counter and opens the lockout
// window once the threshold is reached.
func (s *authService) recordFailure(state *models.LockoutState, now time.Time) error {
	attempts := state.FailedAttempts + 1

	var until *time.Time
	if attempts >= s.cfg.MaxFailedLogins {
		t := now.Add(s.cfg.LockoutDuration())
		until = &t
		s.logger.Warn("Login lockout engaged",
			zap.Int("failedAttempts", attempts),
			zap.Time("lockoutUntil", t))
	}

	if err := s.repo.Lockout().Save(attempts, until); err != nil {
		return fmt.Errorf("failed to persist lockout state: %w", err)
	}

	return nil
}

func (s *authService) createSession(user *models.User, deviceKey string, now time.Time) (*models.AuthSession, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session id: %w", err)
	}

	session := &models.AuthSession{
		ID:         id,
		UserID:     user.ID,
		DeviceKey:  deviceKey,
		CreatedAt:  now,
		LastSeenAt: now,
	}

	if err := s.repo.Session().CreateSession(session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.mu.Lock()
	s.currentSession = session
	s.mu.Unlock()

	return session, nil
}

// Logout deletes the session row and clears the current session if it was
// the one logged out.
func (s *authService) Logout(sessionID uuid.UUID) error {
	if err := s.repo.Session().DeleteSession(sessionID); err != nil {
		return err
	}

	s.mu.Lock()
	if s.currentSession != nil && s.currentSession.ID == sessionID {
		s.currentSession = nil
	}
	s.mu.Unlock()

	s.logger.Info("Logged out", zap.String("sessionID", sessionID.String()))
	return nil
}

// Touch advances the session's last-seen timestamp. The in-memory current
// session is kept in step so CurrentSession reflects the persisted row.
func (s *authService) Touch(sessionID uuid.UUID) error {
	now := time.Now()

	if err := s.repo.Session().TouchSession(sessionID, now); err != nil {
		return err
	}

	s.mu.Lock()
	if s.currentSession != nil && s.currentSession.ID == sessionID {
		s.currentSession.LastSeenAt = now
	}
	s.mu.Unlock()

	return nil
}

// CurrentSession returns the most recent session created by this process,
// or nil.
func (s *authService) CurrentSession() *models.AuthSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentSession
}

// RegisterUser derives a salted PIN hash and creates an active user.
func (s *authService) RegisterUser(name, pin string) (*models.User, error) {
	if !pinFormatRe.MatchString(pin) {
		return nil, ErrInvalidPin
	}

	salt, err := s.hasher.NewSalt()
	if err != nil {
		return nil, err
	}

	hash, err := s.hasher.DeriveHash(pin, salt)
	if err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate user id: %w", err)
	}

	user := &models.User{
		ID:       id,
		Name:     name,
		PinHash:  hash,
		PinSalt:  salt,
		IsActive: true,
	}

	if err := s.repo.User().CreateUser(user); err != nil {
		return nil, err
	}

	s.logger.Info("User registered", zap.String("userID", id.String()))
	return user, nil
}
