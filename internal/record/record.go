// Package record persists classification and analysis artifacts to the
// append-only analysis log. Writes are best-effort by contract: a sink outage
// must never fail the webhook pipeline, so both operations report success as
// a bool and the caller only logs the failure.
package record

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Classification is one classifier verdict for a single message.
type Classification struct {
	MessageID       string `dynamodbav:"messageId" json:"messageId"`
	OriginalMessage string `dynamodbav:"originalMessage" json:"originalMessage"`
	Classification  string `dynamodbav:"classification" json:"classification"`
	Confidence      string `dynamodbav:"confidence" json:"confidence"`
	Datetime        string `dynamodbav:"datetime" json:"datetime"`

	// UserID is the owning tenant resolved by team-id reverse lookup,
	// not the Slack sender.
	UserID      int64  `dynamodbav:"userId,omitempty" json:"userId,omitempty"`
	ChannelID   string `dynamodbav:"channelId,omitempty" json:"channelId,omitempty"`
	ChannelName string `dynamodbav:"channelName,omitempty" json:"channelName,omitempty"`
}

// Analysis is the outcome of one orchestrator session over a batch input.
type Analysis struct {
	MessageID       string  `dynamodbav:"messageId" json:"messageId"`
	OriginalMessage string  `dynamodbav:"originalMessage" json:"originalMessage"`
	AIResponse      string  `dynamodbav:"aiResponse" json:"aiResponse"`
	ToolsUsed       int     `dynamodbav:"toolsUsed" json:"toolsUsed"`
	ToolsSuccessful int     `dynamodbav:"toolsSuccessful" json:"toolsSuccessful"`
	ToolsFailed     int     `dynamodbav:"toolsFailed" json:"toolsFailed"`
	SuccessRate     float64 `dynamodbav:"successRate" json:"successRate"`
	Timestamp       string  `dynamodbav:"timestamp" json:"timestamp"`
}

// Store is the analysis log sink. Both writes are best-effort.
type Store interface {
	PutClassification(ctx context.Context, rec *Classification) bool
	PutAnalysis(ctx context.Context, rec *Analysis) bool
}

// NewClassification builds a classification record with a fresh message id.
// Confidence is stored as text, matching the historical table layout.
func NewClassification(message, label string, confidence float64) *Classification {
	return &Classification{
		MessageID:       uuid.NewString(),
		OriginalMessage: message,
		Classification:  label,
		Confidence:      fmt.Sprintf("%g", confidence),
		Datetime:        time.Now().UTC().Format(time.RFC3339),
	}
}

// NewAnalysis builds an analysis record keyed by a stable hash of the input,
// so re-running the same batch overwrites rather than duplicates.
func NewAnalysis(input, response string, used, successful, failed int, successRate float64) *Analysis {
	return &Analysis{
		MessageID:       AnalysisID(input),
		OriginalMessage: input,
		AIResponse:      response,
		ToolsUsed:       used,
		ToolsSuccessful: successful,
		ToolsFailed:     failed,
		SuccessRate:     successRate,
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
	}
}

// AnalysisID derives the stable record key for an analysis input.
func AnalysisID(input string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(input)))
	return "analysis_" + hex.EncodeToString(sum[:8])
}
