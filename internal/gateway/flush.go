package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/infera-ai/infera/internal/coalesce"
	"github.com/infera-ai/infera/internal/orchestrator"
	"github.com/infera-ai/infera/internal/record"
)

// composeInput renders a batch as the orchestrator input: one block per
// message with the sender triple and permalink, in arrival order.
func composeInput(batch *coalesce.Batch) string {
	blocks := make([]string, 0, len(batch.Messages))
	for _, m := range batch.Messages {
		name := m.SenderName
		if name == "" {
			name = m.UserID
		}
		var b strings.Builder
		if m.SenderRole != "" {
			fmt.Fprintf(&b, "Message from %s (%s):\n", name, m.SenderRole)
		} else {
			fmt.Fprintf(&b, "Message from %s:\n", name)
		}
		b.WriteString(m.Text)
		if m.Permalink != "" {
			fmt.Fprintf(&b, "\nLink: %s", m.Permalink)
		}
		blocks = append(blocks, b.String())
	}
	return strings.Join(blocks, "\n\n")
}

// processBatch is the coalescer flush callback. It runs on the timer
// goroutine, so any panic or error must stay contained: the batch is already
// detached and its classification records were written at intake.
func (s *Server) processBatch(batch *coalesce.Batch, trigger string) {
	ctx, cancel := context.WithTimeout(context.Background(), sessionTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error(ctx, "batch analysis panicked",
				"channel_id", batch.ChannelID,
				"panic", fmt.Sprint(r),
			)
		}
	}()

	creds, err := s.creds.GetCredentials(ctx, batch.TenantID)
	if err != nil {
		s.logger.Error(ctx, "credentials unavailable, dropping batch",
			"tenant_id", batch.TenantID,
			"channel_id", batch.ChannelID,
			"error", err,
		)
		return
	}

	orch := s.factory.NewForUser(*creds)
	input := composeInput(batch)

	s.logger.Info(ctx, "starting batch analysis",
		"channel_id", batch.ChannelID,
		"channel_name", batch.ChannelName,
		"messages", len(batch.Messages),
		"trigger", trigger,
		"mcp_servers", orch.Servers(),
	)

	s.runAnalysis(ctx, orch, input, orchestrator.DefaultInstructions)
}

// runAnalysis executes one orchestrator session and persists the analysis
// record when the session actually used tools.
func (s *Server) runAnalysis(ctx context.Context, orch *orchestrator.Orchestrator, input, instructions string) {
	result, err := orch.ChatWithInstructions(ctx, input, instructions)
	if err != nil {
		s.logger.Error(ctx, "orchestrator session failed", "error", err)
		return
	}

	if result.Stats.Total == 0 {
		s.logger.Info(ctx, "session used no tools, skipping analysis record")
		return
	}

	rec := record.NewAnalysis(
		input,
		result.Content,
		result.Stats.Total,
		result.Stats.Successful,
		result.Stats.Failed,
		result.Stats.SuccessRate,
	)
	s.putAnalysis(ctx, rec)
}

func (s *Server) putClassification(ctx context.Context, rec *record.Classification) {
	ok := s.records.PutClassification(ctx, rec)
	s.countSinkWrite("classification", ok)
	if !ok {
		s.logger.Warn(ctx, "classification record not persisted", "message_id", rec.MessageID)
	}
}

func (s *Server) putAnalysis(ctx context.Context, rec *record.Analysis) {
	ok := s.records.PutAnalysis(ctx, rec)
	s.countSinkWrite("analysis", ok)
	if !ok {
		s.logger.Warn(ctx, "analysis record not persisted", "message_id", rec.MessageID)
	}
}

func (s *Server) countSinkWrite(kind string, ok bool) {
	if s.metrics == nil {
		return
	}
	status := "ok"
	if !ok {
		status = "error"
	}
	s.metrics.SinkWrites.WithLabelValues(kind, status).Inc()
}
