package auth

import (
	"errors"
	"log"
	"time"

	"github.com/velkrow/metalvault/internal/repository"
)

// Service drives the setup-once/login/lockout flow against the stored
// admin credential.
type Service struct {
	admins *repository.AdminRepository
	secret []byte
}

func NewService(admins *repository.AdminRepository, secret []byte) *Service {
	return &Service{admins: admins, secret: secret}
}

// Configured reports whether the one-time setup has run.
func (s *Service) Configured() (bool, error) {
	_, err := s.admins.Get()
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Setup stores the initial admin password. Runs exactly once.
func (s *Service) Setup(password string) error {
	if err := ValidatePassword(password); err != nil {
		return err
	}
	if configured, err := s.Configured(); err != nil {
		return err
	} else if configured {
		return ErrAlreadySetup
	}
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	if _, err := s.admins.Create(hash); err != nil {
		return err
	}
	log.Println("[auth] admin password configured")
	return nil
}

// Login verifies the password and returns a session token. Failures count
// toward the lockout; a locked account rejects even correct passwords
// until the window expires.
func (s *Service) Login(password string) (string, error) {
	admin, err := s.admins.Get()
	if errors.Is(err, repository.ErrNotFound) {
		return "", ErrNotSetup
	}
	if err != nil {
		return "", err
	}

	if admin.LockedUntil != nil && admin.LockedUntil.After(time.Now()) {
		return "", ErrLocked
	}

	if !CheckPassword(admin.PasswordHash, password) {
		if err := s.admins.RecordFailure(admin.ID, MaxFailedAttempts, LockoutDuration); err != nil {
			log.Printf("[auth] failed to record login failure: %v", err)
		}
		return "", ErrInvalidCredentials
	}

	if err := s.admins.RecordSuccess(admin.ID); err != nil {
		log.Printf("[auth] failed to record login success: %v", err)
	}
	return GenerateToken(s.secret)
}

// ChangePassword swaps the credential after verifying the current one.
func (s *Service) ChangePassword(current, next string) error {
	if err := ValidatePassword(next); err != nil {
		return err
	}
	admin, err := s.admins.Get()
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotSetup
	}
	if err != nil {
		return err
	}
	if !CheckPassword(admin.PasswordHash, current) {
		return ErrInvalidCredentials
	}
	hash, err := HashPassword(next)
	if err != nil {
		return err
	}
	return s.admins.UpdatePassword(admin.ID, hash)
}

// Validate checks a bearer token issued by Login.
func (s *Service) Validate(token string) error {
	return ValidateToken(s.secret, token)
}
