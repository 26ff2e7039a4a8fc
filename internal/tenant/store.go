// Package tenant resolves inbound Slack traffic to the owning user and to the
// Notion databases that user has linked to the channel. The webhook pipeline
// only reads from these stores; account management lives in a separate service.
package tenant

import (
	"context"
	"errors"
)

var (
	// ErrNotFound indicates the user, channel or association does not exist.
	ErrNotFound = errors.New("not found")
)

// User is a tenant account. The Slack team id is the reverse-lookup key the
// webhook uses to attribute events.
type User struct {
	ID          int64
	Username    string
	SlackTeamID string
}

// Credentials holds the per-user provider tokens bound into orchestrator
// sessions and enrichment calls. Any field may be empty.
type Credentials struct {
	SlackToken  string
	NotionToken string
	GitHubToken string
}

// LinkedDatabase describes one Notion database associated with a Slack channel.
type LinkedDatabase struct {
	AssociationID int64
	InternalDBID  int64
	ExternalDBID  string
	DatabaseName  string
	DatabaseURL   string
	AutoSync      bool
	Notes         string
}

// ChannelMeta is the locally stored metadata for a saved Slack channel.
type ChannelMeta struct {
	Name string
}

// CredentialStore resolves users and their provider tokens.
type CredentialStore interface {
	// FindUserByTeamID resolves the tenant owning a Slack workspace.
	// Returns ErrNotFound when no user has claimed the team.
	FindUserByTeamID(ctx context.Context, teamID string) (*User, error)

	// GetCredentials returns the provider tokens for a user.
	GetCredentials(ctx context.Context, userID int64) (*Credentials, error)
}

// AssociationStore resolves channel→database links.
type AssociationStore interface {
	// DatabasesLinkedToChannel returns the Notion databases the user has
	// associated with the external Slack channel id. An unknown or unlinked
	// channel yields an empty slice, not an error.
	DatabasesLinkedToChannel(ctx context.Context, externalChannelID string, userID int64) ([]LinkedDatabase, error)

	// ChannelMetadata returns locally saved metadata for the channel.
	// Returns ErrNotFound when the channel was never saved.
	ChannelMetadata(ctx context.Context, externalChannelID string, userID int64) (*ChannelMeta, error)
}
