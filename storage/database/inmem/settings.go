package inmemdb

import (
	"context"

	"github.com/soptable/portal/core/settings"
)

type settingsRepository struct {
	db *settingsTable
}

var _ settings.Repository = (*settingsRepository)(nil)

func NewSettingsRepository(db *DB) settings.Repository {
	return &settingsRepository{db: db.settings}
}

func (repo *settingsRepository) GetSetting(_ context.Context, key string) (string, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	v, ok := repo.db.values[key]
	if !ok {
		return "", settings.ErrNotFound
	}
	return v, nil
}

func (repo *settingsRepository) PutSetting(_ context.Context, key, value string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.values[key] = value
	return nil
}

func (repo *settingsRepository) AppendRoleMenuLog(_ context.Context, entry settings.LogEntry) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.log = append(repo.db.log, entry)
	return nil
}

func (repo *settingsRepository) QueryRoleMenuLog(_ context.Context, limit int) ([]settings.LogEntry, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	entries := make([]settings.LogEntry, 0, limit)
	for i := len(repo.db.log) - 1; i >= 0 && len(entries) < limit; i-- {
		entries = append(entries, repo.db.log[i])
	}
	return entries, nil
}
