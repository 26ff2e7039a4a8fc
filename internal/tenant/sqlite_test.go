package tenant

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "tenant.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestFindUserByTeamID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.SeedUser(ctx, &User{Username: "ana", SlackTeamID: "T123"}, &Credentials{
		SlackToken:  "xoxb-abc",
		NotionToken: "ntn_abc",
		GitHubToken: "ghp_abc",
	})
	if err != nil {
		t.Fatalf("SeedUser: %v", err)
	}

	user, err := store.FindUserByTeamID(ctx, "T123")
	if err != nil {
		t.Fatalf("FindUserByTeamID: %v", err)
	}
	if user.ID != id || user.Username != "ana" {
		t.Errorf("got user %+v", user)
	}

	if _, err := store.FindUserByTeamID(ctx, "T999"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown team: got %v, want ErrNotFound", err)
	}
}

func TestGetCredentials(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.SeedUser(ctx, &User{Username: "ana", SlackTeamID: "T123"}, &Credentials{
		SlackToken:  "xoxb-abc",
		NotionToken: "ntn_abc",
	})
	if err != nil {
		t.Fatalf("SeedUser: %v", err)
	}

	creds, err := store.GetCredentials(ctx, id)
	if err != nil {
		t.Fatalf("GetCredentials: %v", err)
	}
	if creds.SlackToken != "xoxb-abc" || creds.NotionToken != "ntn_abc" {
		t.Errorf("got creds %+v", creds)
	}
	if creds.GitHubToken != "" {
		t.Errorf("missing token should be empty, got %q", creds.GitHubToken)
	}

	if _, err := store.GetCredentials(ctx, 9999); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown user: got %v, want ErrNotFound", err)
	}
}

func TestDatabasesLinkedToChannel(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.SeedUser(ctx, &User{Username: "ana", SlackTeamID: "T123"}, &Credentials{})
	if err != nil {
		t.Fatalf("SeedUser: %v", err)
	}
	if err := store.SeedAssociation(ctx, id, "C1", "backend", "db-ext-1", "Decisions", "https://notion.so/db1"); err != nil {
		t.Fatalf("SeedAssociation: %v", err)
	}
	if err := store.SeedAssociation(ctx, id, "C1", "backend", "db-ext-2", "Architecture", ""); err != nil {
		t.Fatalf("SeedAssociation: %v", err)
	}

	links, err := store.DatabasesLinkedToChannel(ctx, "C1", id)
	if err != nil {
		t.Fatalf("DatabasesLinkedToChannel: %v", err)
	}
	if len(links) != 2 {
		t.Fatalf("got %d links, want 2", len(links))
	}
	if links[0].ExternalDBID != "db-ext-1" || links[0].DatabaseName != "Decisions" {
		t.Errorf("first link = %+v", links[0])
	}
	if !links[0].AutoSync {
		t.Errorf("auto_sync should default to true")
	}

	// Unlinked channel yields empty, not error.
	links, err = store.DatabasesLinkedToChannel(ctx, "C_unlinked", id)
	if err != nil {
		t.Fatalf("unlinked channel: %v", err)
	}
	if len(links) != 0 {
		t.Errorf("unlinked channel returned %d links", len(links))
	}

	// Another user's association is invisible.
	links, err = store.DatabasesLinkedToChannel(ctx, "C1", id+1)
	if err != nil {
		t.Fatalf("other user: %v", err)
	}
	if len(links) != 0 {
		t.Errorf("cross-tenant leak: %d links", len(links))
	}
}

func TestChannelMetadata(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.SeedUser(ctx, &User{Username: "ana", SlackTeamID: "T1"}, &Credentials{})
	if err != nil {
		t.Fatalf("SeedUser: %v", err)
	}
	if err := store.SeedAssociation(ctx, id, "C1", "backend", "db-1", "Decisions", ""); err != nil {
		t.Fatalf("SeedAssociation: %v", err)
	}

	meta, err := store.ChannelMetadata(ctx, "C1", id)
	if err != nil {
		t.Fatalf("ChannelMetadata: %v", err)
	}
	if meta.Name != "backend" {
		t.Errorf("name = %q", meta.Name)
	}

	if _, err := store.ChannelMetadata(ctx, "C_unknown", id); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown channel: got %v, want ErrNotFound", err)
	}
}

func TestSeedUserUpsert(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id1, err := store.SeedUser(ctx, &User{Username: "ana", SlackTeamID: "T1"}, &Credentials{SlackToken: "a"})
	if err != nil {
		t.Fatalf("SeedUser: %v", err)
	}
	_, err = store.SeedUser(ctx, &User{Username: "ana", SlackTeamID: "T2"}, &Credentials{SlackToken: "b"})
	if err != nil {
		t.Fatalf("SeedUser upsert: %v", err)
	}

	user, err := store.FindUserByTeamID(ctx, "T2")
	if err != nil {
		t.Fatalf("FindUserByTeamID after upsert: %v", err)
	}
	if user.ID != id1 {
		t.Errorf("upsert created a new row: %d != %d", user.ID, id1)
	}
	creds, err := store.GetCredentials(ctx, id1)
	if err != nil {
		t.Fatal(err)
	}
	if creds.SlackToken != "b" {
		t.Errorf("token not updated: %q", creds.SlackToken)
	}
}
