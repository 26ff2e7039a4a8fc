package tenant

import (
	"context"
	"strconv"
	"sync"
)

// MemoryStore is an in-memory CredentialStore/AssociationStore for tests.
type MemoryStore struct {
	mu          sync.RWMutex
	users       map[int64]*User
	creds       map[int64]*Credentials
	byTeam      map[string]int64
	links       map[string][]LinkedDatabase // key: channelID + "/" + userID
	channelName map[string]string
	nextID      int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:       make(map[int64]*User),
		creds:       make(map[int64]*Credentials),
		byTeam:      make(map[string]int64),
		links:       make(map[string][]LinkedDatabase),
		channelName: make(map[string]string),
		nextID:      1,
	}
}

func linkKey(channelID string, userID int64) string {
	return channelID + "/" + strconv.FormatInt(userID, 10)
}

// AddUser registers a user with credentials and returns the assigned id.
func (m *MemoryStore) AddUser(username, teamID string, creds Credentials) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	m.users[id] = &User{ID: id, Username: username, SlackTeamID: teamID}
	m.creds[id] = &creds
	if teamID != "" {
		m.byTeam[teamID] = id
	}
	return id
}

// LinkChannel associates a database with a channel for a user.
func (m *MemoryStore) LinkChannel(userID int64, channelID, channelName string, db LinkedDatabase) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := linkKey(channelID, userID)
	m.links[key] = append(m.links[key], db)
	m.channelName[key] = channelName
}

// FindUserByTeamID implements CredentialStore.
func (m *MemoryStore) FindUserByTeamID(_ context.Context, teamID string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byTeam[teamID]
	if !ok {
		return nil, ErrNotFound
	}
	u := *m.users[id]
	return &u, nil
}

// GetCredentials implements CredentialStore.
func (m *MemoryStore) GetCredentials(_ context.Context, userID int64) (*Credentials, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.creds[userID]
	if !ok {
		return nil, ErrNotFound
	}
	cc := *c
	return &cc, nil
}

// DatabasesLinkedToChannel implements AssociationStore.
func (m *MemoryStore) DatabasesLinkedToChannel(_ context.Context, externalChannelID string, userID int64) ([]LinkedDatabase, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	links := m.links[linkKey(externalChannelID, userID)]
	out := make([]LinkedDatabase, len(links))
	copy(out, links)
	return out, nil
}

// ChannelMetadata implements AssociationStore.
func (m *MemoryStore) ChannelMetadata(_ context.Context, externalChannelID string, userID int64) (*ChannelMeta, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	name, ok := m.channelName[linkKey(externalChannelID, userID)]
	if !ok {
		return nil, ErrNotFound
	}
	return &ChannelMeta{Name: name}, nil
}
