package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/infera-ai/infera/internal/coalesce"
	"github.com/infera-ai/infera/internal/record"
)

// webhookEnvelope is the subset of the provider event payload the pipeline
// consumes.
type webhookEnvelope struct {
	Challenge string `json:"challenge"`
	Type      string `json:"type"`
	TeamID    string `json:"team_id"`
	EventID   string `json:"event_id"`
	EventTime int64  `json:"event_time"`
	Event     struct {
		Type        string `json:"type"`
		Subtype     string `json:"subtype"`
		BotID       string `json:"bot_id"`
		Channel     string `json:"channel"`
		User        string `json:"user"`
		Text        string `json:"text"`
		Ts          string `json:"ts"`
		ChannelType string `json:"channel_type"`
	} `json:"event"`
}

func (s *Server) countWebhook(outcome string) {
	if s.metrics != nil {
		s.metrics.WebhookEvents.WithLabelValues(outcome).Inc()
	}
}

// handleWebhook processes provider events. The provider retries on non-2xx,
// so every outcome short of a dead server acks with 200; failures ride along
// in the body.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"ok": false, "error": "method not allowed"})
		return
	}
	ctx := r.Context()

	var payload webhookEnvelope
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.logger.Warn(ctx, "webhook body not parseable", "error", err)
		s.countWebhook("malformed")
		writeJSON(w, http.StatusOK, map[string]any{"error": "invalid json"})
		return
	}

	// URL verification handshake: echo the challenge, mutate nothing.
	if payload.Challenge != "" {
		s.countWebhook("challenge")
		writeJSON(w, http.StatusOK, map[string]any{"challenge": payload.Challenge})
		return
	}

	if payload.Type != "event_callback" {
		s.countWebhook("ignored")
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "error": "unsupported"})
		return
	}

	event := payload.Event
	if event.Type != "message" || event.Subtype == "message_deleted" || event.BotID != "" {
		s.countWebhook("ignored")
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "message": "event ignored"})
		return
	}

	// Reverse lookup: which tenant owns this workspace.
	user, err := s.creds.FindUserByTeamID(ctx, payload.TeamID)
	if err != nil {
		s.logger.Info(ctx, "no tenant for team", "team_id", payload.TeamID)
		s.countWebhook("no_user")
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "error": "user not found"})
		return
	}

	// Channels opt in through database associations. Unlinked channels are
	// acked without enrichment or queueing.
	links, err := s.assocs.DatabasesLinkedToChannel(ctx, event.Channel, user.ID)
	if err != nil || len(links) == 0 {
		s.countWebhook("no_links")
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "error": "channel has no linked databases"})
		return
	}

	channelName := "unknown"
	if meta, err := s.assocs.ChannelMetadata(ctx, event.Channel, user.ID); err == nil && meta.Name != "" {
		channelName = meta.Name
	}

	msg := &coalesce.Message{
		UserID:    event.User,
		Text:      event.Text,
		Timestamp: event.Ts,
	}

	// Enrichment is best-effort: a revoked token or a deleted user must not
	// block the pipeline.
	if creds, err := s.creds.GetCredentials(ctx, user.ID); err == nil && creds.SlackToken != "" {
		if profile, err := s.slack.UserProfile(ctx, creds.SlackToken, event.User); err == nil {
			msg.SenderName = profile.Name
			msg.SenderRole = profile.Role
		} else {
			s.logger.Debug(ctx, "profile enrichment failed", "user", event.User, "error", err)
		}
		if link, err := s.slack.MessagePermalink(ctx, creds.SlackToken, event.Channel, event.Ts); err == nil {
			msg.Permalink = link
		} else {
			s.logger.Debug(ctx, "permalink enrichment failed", "channel", event.Channel, "error", err)
		}
	}

	result := s.classifier.Classify(ctx, event.Text)
	msg.Label = result.Label
	msg.Confidence = result.Confidence
	if s.metrics != nil {
		s.metrics.Classifications.WithLabelValues(result.Label).Inc()
	}

	rec := record.NewClassification(event.Text, result.Label, result.Confidence)
	rec.UserID = user.ID
	rec.ChannelID = event.Channel
	rec.ChannelName = channelName
	s.putClassification(ctx, rec)

	s.coalescer.Append(event.Channel, channelName, user.ID, msg)
	s.countWebhook("enqueued")

	s.logger.Info(ctx, "message queued for analysis",
		"team_id", payload.TeamID,
		"channel_id", event.Channel,
		"channel_name", channelName,
		"classification", result.Label,
	)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "message": "queued"})
}
