package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ericfisherdev/gitwatch/internal/domain/model"
	"github.com/ericfisherdev/gitwatch/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ConfigStore = (*ConfigRepo)(nil)

// ConfigRepo is the SQLite implementation of the ConfigStore port interface.
// Each tracking entry is one row; the branch/watermark maps are JSON columns
// since nothing queries inside them.
type ConfigRepo struct {
	db *DB
}

// NewConfigRepo creates a new ConfigRepo backed by the given DB.
func NewConfigRepo(db *DB) *ConfigRepo {
	return &ConfigRepo{db: db}
}

// Load reads the full tracking configuration. An empty table yields an empty
// configuration, not an error.
func (r *ConfigRepo) Load(ctx context.Context) (model.TrackingConfig, error) {
	const query = `
		SELECT tenant_id, owner, repo, channel_id, is_org, org_repos, watermarks
		FROM tracking_entries
		ORDER BY tenant_id, position`

	config := model.NewTrackingConfig()

	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return config, fmt.Errorf("load tracking config: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			tenantID      string
			entry         model.TrackingEntry
			orgReposJSON  string
			watermarkJSON string
		)

		if err := rows.Scan(&tenantID, &entry.Owner, &entry.Repo, &entry.ChannelID, &entry.IsOrg, &orgReposJSON, &watermarkJSON); err != nil {
			return config, fmt.Errorf("scan tracking entry: %w", err)
		}

		if err := json.Unmarshal([]byte(orgReposJSON), &entry.OrgRepos); err != nil {
			return config, fmt.Errorf("parse org_repos for %s: %w", entry.Owner, err)
		}
		if err := json.Unmarshal([]byte(watermarkJSON), &entry.Watermarks); err != nil {
			return config, fmt.Errorf("parse watermarks for %s: %w", entry.Owner, err)
		}
		if entry.Watermarks == nil {
			entry.Watermarks = make(map[string]model.RepoWatermark)
		}

		config.Tenants[tenantID] = append(config.Tenants[tenantID], entry)
	}

	if err := rows.Err(); err != nil {
		return config, fmt.Errorf("iterate tracking entries: %w", err)
	}

	return config, nil
}

// Save replaces the persisted configuration with the given one in a single
// transaction, preserving per-tenant entry order via the position column.
func (r *ConfigRepo) Save(ctx context.Context, config model.TrackingConfig) error {
	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM tracking_entries`); err != nil {
		return fmt.Errorf("clear tracking entries: %w", err)
	}

	const insert = `
		INSERT INTO tracking_entries (tenant_id, position, owner, repo, channel_id, is_org, org_repos, watermarks)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	for tenantID, entries := range config.Tenants {
		for position, entry := range entries {
			orgRepos := entry.OrgRepos
			if orgRepos == nil {
				orgRepos = []string{}
			}
			orgReposJSON, err := json.Marshal(orgRepos)
			if err != nil {
				return fmt.Errorf("encode org_repos for %s: %w", entry.Owner, err)
			}

			watermarks := entry.Watermarks
			if watermarks == nil {
				watermarks = map[string]model.RepoWatermark{}
			}
			watermarkJSON, err := json.Marshal(watermarks)
			if err != nil {
				return fmt.Errorf("encode watermarks for %s: %w", entry.Owner, err)
			}

			if _, err := tx.ExecContext(ctx, insert,
				tenantID, position, entry.Owner, entry.Repo, entry.ChannelID, entry.IsOrg,
				string(orgReposJSON), string(watermarkJSON),
			); err != nil {
				return fmt.Errorf("insert tracking entry %s: %w", entry.Owner, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}

	return nil
}
