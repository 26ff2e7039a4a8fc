package tenant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements CredentialStore and AssociationStore over the shared
// account database. The schema mirrors what the account service manages:
// users own saved channels and databases, and associations join them.
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT NOT NULL UNIQUE,
	slack_team_id TEXT,
	slack_token TEXT,
	notion_token TEXT,
	github_token TEXT
);
CREATE TABLE IF NOT EXISTS slack_channels (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	slack_channel_id TEXT NOT NULL,
	channel_name TEXT NOT NULL,
	is_private INTEGER NOT NULL DEFAULT 0,
	is_active INTEGER NOT NULL DEFAULT 1,
	UNIQUE(user_id, slack_channel_id)
);
CREATE TABLE IF NOT EXISTS notion_databases (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	notion_database_id TEXT NOT NULL,
	database_name TEXT NOT NULL,
	database_url TEXT,
	is_active INTEGER NOT NULL DEFAULT 1,
	UNIQUE(user_id, notion_database_id)
);
CREATE TABLE IF NOT EXISTS notion_slack_associations (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	notion_database_id INTEGER NOT NULL REFERENCES notion_databases(id) ON DELETE CASCADE,
	slack_channel_id INTEGER NOT NULL REFERENCES slack_channels(id) ON DELETE CASCADE,
	auto_sync INTEGER NOT NULL DEFAULT 1,
	notes TEXT,
	UNIQUE(notion_database_id, slack_channel_id)
);
CREATE INDEX IF NOT EXISTS idx_users_team ON users(slack_team_id);
CREATE INDEX IF NOT EXISTS idx_channels_external ON slack_channels(slack_channel_id);
`

// NewSQLiteStore opens (or creates) the account database at path and applies
// the schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// modernc sqlite serializes writes; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// DB exposes the handle for related stores and tests.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// FindUserByTeamID implements CredentialStore.
func (s *SQLiteStore) FindUserByTeamID(ctx context.Context, teamID string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, username, COALESCE(slack_team_id, '') FROM users WHERE slack_team_id = ?`, teamID)

	var u User
	if err := row.Scan(&u.ID, &u.Username, &u.SlackTeamID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find user by team: %w", err)
	}
	return &u, nil
}

// GetCredentials implements CredentialStore.
func (s *SQLiteStore) GetCredentials(ctx context.Context, userID int64) (*Credentials, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(slack_token, ''), COALESCE(notion_token, ''), COALESCE(github_token, '')
		 FROM users WHERE id = ?`, userID)

	var c Credentials
	if err := row.Scan(&c.SlackToken, &c.NotionToken, &c.GitHubToken); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get credentials: %w", err)
	}
	return &c, nil
}

// DatabasesLinkedToChannel implements AssociationStore.
func (s *SQLiteStore) DatabasesLinkedToChannel(ctx context.Context, externalChannelID string, userID int64) ([]LinkedDatabase, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, d.id, d.notion_database_id, d.database_name,
		       COALESCE(d.database_url, ''), a.auto_sync, COALESCE(a.notes, '')
		FROM notion_slack_associations a
		JOIN slack_channels c ON c.id = a.slack_channel_id
		JOIN notion_databases d ON d.id = a.notion_database_id
		WHERE c.slack_channel_id = ? AND c.user_id = ?
		  AND c.is_active = 1 AND d.is_active = 1
		ORDER BY a.id`,
		externalChannelID, userID)
	if err != nil {
		return nil, fmt.Errorf("query associations: %w", err)
	}
	defer rows.Close()

	var links []LinkedDatabase
	for rows.Next() {
		var l LinkedDatabase
		if err := rows.Scan(&l.AssociationID, &l.InternalDBID, &l.ExternalDBID,
			&l.DatabaseName, &l.DatabaseURL, &l.AutoSync, &l.Notes); err != nil {
			return nil, fmt.Errorf("scan association: %w", err)
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

// ChannelMetadata implements AssociationStore.
func (s *SQLiteStore) ChannelMetadata(ctx context.Context, externalChannelID string, userID int64) (*ChannelMeta, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT channel_name FROM slack_channels
		 WHERE slack_channel_id = ? AND user_id = ? AND is_active = 1`,
		externalChannelID, userID)

	var m ChannelMeta
	if err := row.Scan(&m.Name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("channel metadata: %w", err)
	}
	return &m, nil
}

// SeedUser inserts or updates a user with credentials. Used by provisioning
// and tests; the webhook path never writes.
func (s *SQLiteStore) SeedUser(ctx context.Context, u *User, c *Credentials) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, slack_team_id, slack_token, notion_token, github_token)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(username) DO UPDATE SET
			slack_team_id = excluded.slack_team_id,
			slack_token = excluded.slack_token,
			notion_token = excluded.notion_token,
			github_token = excluded.github_token`,
		u.Username, u.SlackTeamID, c.SlackToken, c.NotionToken, c.GitHubToken)
	if err != nil {
		return 0, fmt.Errorf("seed user: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil && id > 0 {
		return id, nil
	}
	row := s.db.QueryRowContext(ctx, `SELECT id FROM users WHERE username = ?`, u.Username)
	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, fmt.Errorf("seed user id: %w", err)
	}
	return id, nil
}

// SeedAssociation saves a channel, a database and the association between
// them in one call. Used by provisioning and tests.
func (s *SQLiteStore) SeedAssociation(ctx context.Context, userID int64, channelID, channelName, dbID, dbName, dbURL string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO slack_channels (user_id, slack_channel_id, channel_name)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id, slack_channel_id) DO UPDATE SET channel_name = excluded.channel_name`,
		userID, channelID, channelName); err != nil {
		return fmt.Errorf("seed channel: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO notion_databases (user_id, notion_database_id, database_name, database_url)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, notion_database_id) DO UPDATE SET
			database_name = excluded.database_name,
			database_url = excluded.database_url`,
		userID, dbID, dbName, dbURL); err != nil {
		return fmt.Errorf("seed database: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO notion_slack_associations (notion_database_id, slack_channel_id)
		SELECT d.id, c.id
		FROM notion_databases d, slack_channels c
		WHERE d.user_id = ? AND d.notion_database_id = ?
		  AND c.user_id = ? AND c.slack_channel_id = ?
		ON CONFLICT(notion_database_id, slack_channel_id) DO NOTHING`,
		userID, dbID, userID, channelID); err != nil {
		return fmt.Errorf("seed association: %w", err)
	}
	return tx.Commit()
}
