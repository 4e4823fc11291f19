package repository

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/oadeyemi/clinic-messenger/internal/models"
)

type userRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) UserRepository {
	return &userRepository{
		db: db,
	}
}

// GetActiveUsers retrieves all users able to log in. Login verification
// iterates this list, so the cost of an attempt grows with the staff roster;
// clinic deployments are small enough for that to hold.
func (r *userRepository) GetActiveUsers() ([]*models.User, error) {
	query := `
		SELECT id, name, pin_hash, pin_salt, is_active, created_at
		FROM users
		WHERE is_active = TRUE
		ORDER BY created_at ASC
	`

	var users []*models.User
	if err := r.db.Select(&users, query); err != nil {
		return nil, fmt.Errorf("failed to get active users: %w", err)
	}

	return users, nil
}

// CreateUser inserts a new user with an already derived PIN hash.
func (r *userRepository) CreateUser(user *models.User) error {
	query := `
		INSERT INTO users (id, name, pin_hash, pin_salt, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	user.CreatedAt = time.Now()

	_, err := r.db.Exec(query, user.ID, user.Name, user.PinHash, user.PinSalt, user.IsActive, user.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}
