package postgres

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/pkg/errors"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

// SettingsRepository stores the RateConfig singleton in the settings table.
type SettingsRepository struct {
	db *sql.DB
}

// NewSettingsRepository creates a new PostgreSQL settings repository.
func NewSettingsRepository(db *sql.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

var _ repository.SettingsRepository = (*SettingsRepository)(nil)

// Get returns the stored RateConfig.
func (r *SettingsRepository) Get(ctx context.Context) (*domain.RateConfig, error) {
	var raw []byte
	err := r.db.QueryRowContext(ctx, `SELECT config FROM settings WHERE id = 1`).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, errors.Wrap(err, "get settings")
	}

	var cfg domain.RateConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, errors.Wrap(err, "decode settings")
	}
	return &cfg, nil
}

// Put replaces the stored RateConfig.
func (r *SettingsRepository) Put(ctx context.Context, cfg *domain.RateConfig) error {
	encoded, err := json.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "encode settings")
	}
	_, err = r.db.ExecContext(ctx, `INSERT INTO settings (id, config, updated_at) VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE SET config = EXCLUDED.config, updated_at = EXCLUDED.updated_at`,
		string(encoded), cfg.UpdatedAt)
	return errors.Wrap(err, "put settings")
}
