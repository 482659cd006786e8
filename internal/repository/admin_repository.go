package repository

import (
	"database/sql"
	"time"

	"github.com/velkrow/metalvault/internal/models"
)

type AdminRepository struct {
	db *sql.DB
}

func NewAdminRepository(db *sql.DB) *AdminRepository {
	return &AdminRepository{db: db}
}

// Get returns the single admin credential row, or ErrNotFound when setup
// has not run yet.
func (r *AdminRepository) Get() (*models.AdminAuth, error) {
	a := &models.AdminAuth{}
	err := r.db.QueryRow(`
		SELECT id, password_hash, created_at, last_login, failed_attempts, locked_until
		FROM admin_auth ORDER BY id LIMIT 1`,
	).Scan(&a.ID, &a.PasswordHash, &a.CreatedAt, &a.LastLogin, &a.FailedAttempts, &a.LockedUntil)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *AdminRepository) Create(passwordHash string) (*models.AdminAuth, error) {
	a := &models.AdminAuth{PasswordHash: passwordHash}
	err := r.db.QueryRow(`
		INSERT INTO admin_auth (password_hash) VALUES ($1)
		RETURNING id, created_at`, passwordHash,
	).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// RecordFailure bumps the failed-attempt counter and applies a lockout when
// the threshold is crossed.
func (r *AdminRepository) RecordFailure(id int64, maxAttempts int, lockFor time.Duration) error {
	_, err := r.db.Exec(`
		UPDATE admin_auth SET
			failed_attempts = failed_attempts + 1,
			locked_until = CASE
				WHEN failed_attempts + 1 >= $2 THEN NOW() + $3 * INTERVAL '1 second'
				ELSE locked_until
			END
		WHERE id = $1`, id, maxAttempts, int(lockFor.Seconds()))
	return err
}

// RecordSuccess resets the counter and stamps last_login.
func (r *AdminRepository) RecordSuccess(id int64) error {
	_, err := r.db.Exec(`
		UPDATE admin_auth SET
			failed_attempts = 0,
			locked_until = NULL,
			last_login = NOW()
		WHERE id = $1`, id)
	return err
}

func (r *AdminRepository) UpdatePassword(id int64, passwordHash string) error {
	res, err := r.db.Exec(`
		UPDATE admin_auth SET password_hash = $2, failed_attempts = 0, locked_until = NULL
		WHERE id = $1`, id, passwordHash)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
