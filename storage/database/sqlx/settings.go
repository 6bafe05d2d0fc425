package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/soptable/portal/core"
	"github.com/soptable/portal/core/settings"
)

type settingsRepository struct {
	db core.DB
}

var _ settings.Repository = (*settingsRepository)(nil)

func NewSettingsRepository(db core.DB) settings.Repository {
	return &settingsRepository{db: db}
}

func (repo *settingsRepository) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := repo.db.GetContext(ctx, &value, repo.db.Rebind("SELECT value FROM settings WHERE key = ?"), key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", settings.ErrNotFound
		}
		return "", errors.Wrapf(err, "getting setting %s", key)
	}
	return value, nil
}

func (repo *settingsRepository) PutSetting(ctx context.Context, key, value string) error {
	q := `INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
	if _, err := repo.db.ExecContext(ctx, repo.db.Rebind(q), key, value, time.Now().UTC()); err != nil {
		return errors.Wrapf(err, "saving setting %s", key)
	}
	return nil
}

func (repo *settingsRepository) AppendRoleMenuLog(ctx context.Context, entry settings.LogEntry) error {
	changes, err := json.Marshal(entry.Changes)
	if err != nil {
		return errors.Wrap(err, "encoding role menu changes")
	}
	q := "INSERT INTO role_menu_log (changed_at, changes) VALUES (?, ?)"
	if _, err = repo.db.ExecContext(ctx, repo.db.Rebind(q), entry.Time.UTC(), string(changes)); err != nil {
		return errors.Wrap(err, "appending role menu log")
	}
	return nil
}

func (repo *settingsRepository) QueryRoleMenuLog(ctx context.Context, limit int) ([]settings.LogEntry, error) {
	var rows []struct {
		ChangedAt time.Time `db:"changed_at"`
		Changes   string    `db:"changes"`
	}
	q := "SELECT changed_at, changes FROM role_menu_log ORDER BY id DESC LIMIT ?"
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), limit); err != nil {
		return nil, errors.Wrap(err, "querying role menu log")
	}

	entries := make([]settings.LogEntry, 0, len(rows))
	for _, row := range rows {
		entry := settings.LogEntry{Time: row.ChangedAt.UTC()}
		if err := json.Unmarshal([]byte(row.Changes), &entry.Changes); err != nil {
			return nil, errors.Wrap(err, "decoding role menu changes")
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
