package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/oadeyemi/clinic-messenger/internal/models"
)

type templateRepository struct {
	db *sqlx.DB
}

func NewTemplateRepository(db *sqlx.DB) TemplateRepository {
	return &templateRepository{
		db: db,
	}
}

// Get retrieves a template by its composite key.
func (r *templateRepository) Get(key, locale string, channel models.Channel) (*models.MessageTemplate, error) {
	query := `
		SELECT key, locale, channel, body, max_length, created_at
		FROM message_templates
		WHERE key = $1 AND locale = $2 AND channel = $3
	`

	var tmpl models.MessageTemplate
	err := r.db.Get(&tmpl, query, key, locale, channel)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get template: %w", err)
	}

	return &tmpl, nil
}

// Count returns the number of seeded templates.
func (r *templateRepository) Count() (int64, error) {
	var count int64
	if err := r.db.Get(&count, `SELECT COUNT(*) FROM message_templates`); err != nil {
		return 0, fmt.Errorf("failed to count templates: %w", err)
	}
	return count, nil
}
