package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// repositoryImpl is the concrete implementation of Repository interface.
type repositoryImpl struct {
	db       *sqlx.DB
	outbox   OutboxRepository
	template TemplateRepository
	user     UserRepository
	session  SessionRepository
	lockout  LockoutRepository
}

// NewRepository creates a new repository instance.
func NewRepository(db *sqlx.DB) Repository {
	return &repositoryImpl{
		db:       db,
		outbox:   NewOutboxRepository(db),
		template: NewTemplateRepository(db),
		user:     NewUserRepository(db),
		session:  NewSessionRepository(db),
		lockout:  NewLockoutRepository(db),
	}
}

// Outbox returns the outbound message repository.
func (r *repositoryImpl) Outbox() OutboxRepository {
	return r.outbox
}

// Template returns the message template repository.
func (r *repositoryImpl) Template() TemplateRepository {
	return r.template
}

// User returns the user repository.
func (r *repositoryImpl) User() UserRepository {
	return r.user
}

// Session returns the auth session repository.
func (r *repositoryImpl) Session() SessionRepository {
	return r.session
}

// Lockout returns the login lockout repository.
func (r *repositoryImpl) Lockout() LockoutRepository {
	return r.lockout
}

// Ping checks if the database connection is healthy.
func (r *repositoryImpl) Ping() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	return r.db.PingContext(ctx)
}
