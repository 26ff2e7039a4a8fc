// Package classify wraps the external zero-shot classifier service. The
// classifier is advisory: any failure degrades to a neutral default so the
// webhook pipeline keeps moving.
package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"
)

// Labels returned by the classifier.
const (
	LabelDecision            = "DECISION"
	LabelExplanation         = "EXPLANATION"
	LabelQuestion            = "QUESTION"
	LabelGeneralConversation = "GENERAL_CONVERSATION"
	LabelNone                = "NONE"
)

// minTokens is the shortest message worth sending to the model. Anything
// shorter is labeled NONE locally.
const minTokens = 4

// Result is one classification verdict.
type Result struct {
	Label      string  `json:"classification"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason,omitempty"`
}

// neutral is the fallback when the service is unreachable or unconfigured.
func neutral() Result {
	return Result{Label: LabelGeneralConversation, Confidence: 0.5}
}

// Client calls the classifier service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a classifier client. An empty baseURL disables the remote
// call; Classify then always returns the neutral default (or the short-text
// shortcut).
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type analyzeRequest struct {
	Text string `json:"text"`
}

type analyzeResponse struct {
	Classification string  `json:"classification"`
	Confidence     float64 `json:"confidence"`
}

// Classify labels a message. It never returns an error: transport problems
// yield the neutral default and messages under four tokens are NONE.
func (c *Client) Classify(ctx context.Context, text string) Result {
	if len(strings.Fields(text)) < minTokens {
		return Result{Label: LabelNone, Confidence: 0.0, Reason: "too short"}
	}

	if c.baseURL == "" {
		return neutral()
	}

	body, err := json.Marshal(analyzeRequest{Text: text})
	if err != nil {
		return neutral()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze", bytes.NewReader(body))
	if err != nil {
		return neutral()
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return neutral()
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return neutral()
	}

	var parsed analyzeResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return neutral()
	}
	if parsed.Classification == "" {
		return neutral()
	}

	return Result{
		Label:      parsed.Classification,
		Confidence: round4(parsed.Confidence),
	}
}

// Enabled reports whether a remote classifier is configured.
func (c *Client) Enabled() bool {
	return c.baseURL != ""
}

func round4(f float64) float64 {
	return math.Round(f*10000) / 10000
}

// String implements fmt.Stringer for log lines.
func (r Result) String() string {
	return fmt.Sprintf("%s (%.4f)", r.Label, r.Confidence)
}
