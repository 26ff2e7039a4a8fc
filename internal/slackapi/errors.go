package slackapi

import (
	"errors"
	"fmt"
	"strings"

	"github.com/slack-go/slack"
)

// Sentinel errors for the Slack failure classes callers branch on.
var (
	// ErrAuthInvalid covers missing, revoked or malformed tokens.
	ErrAuthInvalid = errors.New("slack: invalid auth")
	// ErrNotFound covers unknown channels, users or messages.
	ErrNotFound = errors.New("slack: not found")
	// ErrTransport covers network and rate-limit failures.
	ErrTransport = errors.New("slack: transport error")
)

// mapError converts slack-go errors into the package sentinels, keeping the
// original message for logs.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	var rle *slack.RateLimitedError
	if errors.As(err, &rle) {
		return fmt.Errorf("%w: rate limited, retry after %s", ErrTransport, rle.RetryAfter)
	}

	// Web API errors surface as their api error string.
	msg := err.Error()
	switch {
	case strings.Contains(msg, "invalid_auth"),
		strings.Contains(msg, "not_authed"),
		strings.Contains(msg, "token_revoked"),
		strings.Contains(msg, "token_expired"),
		strings.Contains(msg, "account_inactive"),
		strings.Contains(msg, "missing_scope"):
		return fmt.Errorf("%w: %s", ErrAuthInvalid, msg)
	case strings.Contains(msg, "channel_not_found"),
		strings.Contains(msg, "user_not_found"),
		strings.Contains(msg, "message_not_found"),
		strings.Contains(msg, "users_not_found"):
		return fmt.Errorf("%w: %s", ErrNotFound, msg)
	default:
		return fmt.Errorf("%w: %s", ErrTransport, msg)
	}
}
