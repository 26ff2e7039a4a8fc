// Package slackapi wraps the Slack Web API calls the pipeline needs:
// conversation listing, channel info, sender profiles and message permalinks.
// Tokens are per-tenant, so the client is constructed per token through an
// injectable factory.
package slackapi

import (
	"context"
	"net/http"
	"time"

	"github.com/slack-go/slack"
)

// API is the subset of the Slack client used here.
// It allows mock injection during testing.
type API interface {
	GetConversationsContext(ctx context.Context, params *slack.GetConversationsParameters) ([]slack.Channel, string, error)
	GetConversationInfoContext(ctx context.Context, input *slack.GetConversationInfoInput) (*slack.Channel, error)
	GetUserProfileContext(ctx context.Context, params *slack.GetUserProfileParameters) (*slack.UserProfile, error)
	GetPermalinkContext(ctx context.Context, params *slack.PermalinkParameters) (string, error)
}

var _ API = (*slack.Client)(nil)

// Channel is the provider-neutral channel summary returned to callers.
type Channel struct {
	ID         string `json:"slack_channel_id"`
	Name       string `json:"channel_name"`
	IsPrivate  bool   `json:"is_private"`
	IsMember   bool   `json:"is_member"`
	NumMembers int    `json:"num_members"`
	Topic      string `json:"topic"`
	Purpose    string `json:"purpose"`
}

// Profile is the sender enrichment attached to batch messages.
type Profile struct {
	Name  string `json:"name"`
	Role  string `json:"role"`
	Image string `json:"image,omitempty"`
}

// Client performs Slack Web API calls with per-call tokens.
type Client struct {
	// factory builds an API for a token. Overridable in tests.
	factory func(token string) API
}

// NewClient creates a Slack client with the default slack-go backend.
func NewClient() *Client {
	httpClient := &http.Client{Timeout: 30 * time.Second}
	return &Client{
		factory: func(token string) API {
			return slack.New(token, slack.OptionHTTPClient(httpClient))
		},
	}
}

// NewClientWithAPI creates a client backed by a fixed API. Used by tests.
func NewClientWithAPI(api API) *Client {
	return &Client{factory: func(string) API { return api }}
}

// ListChannels returns all non-archived channels visible to the token,
// following cursor pagination. Private channels are included when
// includePrivate is set.
func (c *Client) ListChannels(ctx context.Context, token string, includePrivate bool) ([]Channel, error) {
	if token == "" {
		return nil, ErrAuthInvalid
	}

	api := c.factory(token)
	types := []string{"public_channel"}
	if includePrivate {
		types = append(types, "private_channel")
	}

	var all []Channel
	cursor := ""
	for {
		channels, next, err := api.GetConversationsContext(ctx, &slack.GetConversationsParameters{
			Types:           types,
			ExcludeArchived: true,
			Limit:           200,
			Cursor:          cursor,
		})
		if err != nil {
			return nil, mapError(err)
		}

		for _, ch := range channels {
			all = append(all, Channel{
				ID:         ch.ID,
				Name:       ch.Name,
				IsPrivate:  ch.IsPrivate,
				IsMember:   ch.IsMember,
				NumMembers: ch.NumMembers,
				Topic:      ch.Topic.Value,
				Purpose:    ch.Purpose.Value,
			})
		}

		if next == "" {
			break
		}
		cursor = next
	}
	return all, nil
}

// ChannelInfo returns details for a single channel.
func (c *Client) ChannelInfo(ctx context.Context, token, channelID string) (*Channel, error) {
	if token == "" {
		return nil, ErrAuthInvalid
	}

	ch, err := c.factory(token).GetConversationInfoContext(ctx, &slack.GetConversationInfoInput{
		ChannelID: channelID,
	})
	if err != nil {
		return nil, mapError(err)
	}

	return &Channel{
		ID:         ch.ID,
		Name:       ch.Name,
		IsPrivate:  ch.IsPrivate,
		IsMember:   ch.IsMember,
		NumMembers: ch.NumMembers,
		Topic:      ch.Topic.Value,
		Purpose:    ch.Purpose.Value,
	}, nil
}

// UserProfile returns the sender's display profile. The title field doubles
// as the role shown to the orchestrator.
func (c *Client) UserProfile(ctx context.Context, token, userID string) (*Profile, error) {
	if token == "" {
		return nil, ErrAuthInvalid
	}

	profile, err := c.factory(token).GetUserProfileContext(ctx, &slack.GetUserProfileParameters{
		UserID: userID,
	})
	if err != nil {
		return nil, mapError(err)
	}

	return &Profile{
		Name:  profile.RealName,
		Role:  profile.Title,
		Image: profile.Image192,
	}, nil
}

// MessagePermalink returns the permalink for a message timestamp.
func (c *Client) MessagePermalink(ctx context.Context, token, channelID, ts string) (string, error) {
	if token == "" {
		return "", ErrAuthInvalid
	}

	link, err := c.factory(token).GetPermalinkContext(ctx, &slack.PermalinkParameters{
		Channel: channelID,
		Ts:      ts,
	})
	if err != nil {
		return "", mapError(err)
	}
	return link, nil
}
