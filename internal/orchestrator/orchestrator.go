// Package orchestrator drives LLM sessions over the OpenAI Responses API with
// remote MCP tool servers attached. Approval requests are granted
// automatically and tool calls are deduplicated by id across the approval
// loop, so the final stats count each execution once.
package orchestrator

import (
	"context"
	"math"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/responses"
	"github.com/openai/openai-go/v2/shared"

	"github.com/infera-ai/infera/internal/observability"
)

// defaultMaxApprovalIterations bounds the approval loop so a model that keeps
// requesting tools cannot spin forever.
const defaultMaxApprovalIterations = 50

// MCPServer describes one remote MCP server registration.
type MCPServer struct {
	Label         string
	Description   string
	URL           string
	Authorization string
	AllowedTools  []string
}

// ToolCall is one executed MCP tool call, deduplicated by ID.
type ToolCall struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ServerLabel string `json:"server_label"`
	Arguments   string `json:"arguments"`
	Success     bool   `json:"success"`
	Error       string `json:"error,omitempty"`
	Output      string `json:"output,omitempty"`
}

// Stats summarizes the tool calls of a session. SuccessRate is a percentage
// rounded to two decimals.
type Stats struct {
	Total       int     `json:"total"`
	Successful  int     `json:"successful"`
	Failed      int     `json:"failed"`
	SuccessRate float64 `json:"success_rate"`
}

// Result is the outcome of one Chat session.
type Result struct {
	Content            string     `json:"content"`
	ToolCalls          []ToolCall `json:"tool_calls"`
	Stats              Stats      `json:"tool_stats"`
	ResponseID         string     `json:"response_id,omitempty"`
	ApprovalIterations int        `json:"approval_iterations"`
	ApprovalsProcessed int        `json:"total_approvals_processed"`
}

// Orchestrator holds a configured OpenAI client plus the MCP servers for one
// tenant. Build one per user through the Factory.
type Orchestrator struct {
	client        openai.Client
	apiKey        string
	model         string
	instructions  string
	maxIterations int
	servers       []MCPServer

	logger  *observability.Logger
	metrics *observability.Metrics
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithInstructions sets the default system instructions.
func WithInstructions(instructions string) Option {
	return func(o *Orchestrator) { o.instructions = instructions }
}

// WithMaxApprovalIterations overrides the approval loop bound.
func WithMaxApprovalIterations(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxIterations = n
		}
	}
}

// WithBaseURL points the client at a different API endpoint. Tests use this
// with an httptest server.
func WithBaseURL(url string) Option {
	return func(o *Orchestrator) {
		o.client = openai.NewClient(o.clientOpts(option.WithBaseURL(url))...)
	}
}

// WithMetrics attaches Prometheus metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// clientOpts rebuilds the request options. The key is kept on the struct so
// WithBaseURL can reconstruct the client.
func (o *Orchestrator) clientOpts(extra ...option.RequestOption) []option.RequestOption {
	opts := []option.RequestOption{option.WithAPIKey(o.apiKey)}
	return append(opts, extra...)
}

// New creates an orchestrator for the given API key and model.
func New(apiKey, model string, logger *observability.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		apiKey:        apiKey,
		model:         model,
		instructions:  DefaultInstructions,
		maxIterations: defaultMaxApprovalIterations,
		logger:        logger,
	}
	o.client = openai.NewClient(o.clientOpts()...)
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// AddMCPServer registers a remote MCP server. All its tool calls will require
// approval, which Chat grants automatically.
func (o *Orchestrator) AddMCPServer(server MCPServer) {
	o.servers = append(o.servers, server)
}

// Servers returns the registered MCP server labels, for logging.
func (o *Orchestrator) Servers() []string {
	labels := make([]string, len(o.servers))
	for i, s := range o.servers {
		labels[i] = s.Label
	}
	return labels
}

func (o *Orchestrator) toolParams() []responses.ToolUnionParam {
	if len(o.servers) == 0 {
		return nil
	}
	tools := make([]responses.ToolUnionParam, 0, len(o.servers))
	for _, s := range o.servers {
		mcp := responses.ToolMcpParam{
			ServerLabel: s.Label,
			ServerURL:   openai.String(s.URL),
			RequireApproval: responses.ToolMcpRequireApprovalUnionParam{
				OfMcpToolApprovalSetting: openai.String("always"),
			},
		}
		if s.Description != "" {
			mcp.ServerDescription = openai.String(s.Description)
		}
		if s.Authorization != "" {
			mcp.Authorization = openai.String(s.Authorization)
		}
		if len(s.AllowedTools) > 0 {
			mcp.AllowedTools = responses.ToolMcpAllowedToolsUnionParam{
				OfMcpAllowedTools: s.AllowedTools,
			}
		}
		tools = append(tools, responses.ToolUnionParam{OfMcp: &mcp})
	}
	return tools
}

// extracted is what one Responses API response decomposes into.
type extracted struct {
	content   string
	toolCalls []ToolCall
	approvals []string // approval request ids
}

func extract(resp *responses.Response) extracted {
	var ex extracted
	for _, item := range resp.Output {
		switch item.Type {
		case "message":
			msg := item.AsMessage()
			for _, part := range msg.Content {
				if part.Type == "output_text" {
					ex.content = part.AsOutputText().Text
					break
				}
			}
		case "mcp_call":
			call := item.AsMcpCall()
			ex.toolCalls = append(ex.toolCalls, ToolCall{
				ID:          call.ID,
				Name:        call.Name,
				ServerLabel: call.ServerLabel,
				Arguments:   call.Arguments,
				Success:     call.Error == "",
				Error:       call.Error,
				Output:      call.Output,
			})
		case "mcp_approval_request":
			req := item.AsMcpApprovalRequest()
			ex.approvals = append(ex.approvals, req.ID)
		}
	}
	return ex
}

// Chat runs one session: send the input, approve every MCP approval request,
// and keep following up until the model stops asking for tools or the
// iteration bound is hit. Tool calls seen across iterations are merged by id.
func (o *Orchestrator) Chat(ctx context.Context, message string) (*Result, error) {
	return o.ChatWithInstructions(ctx, message, o.instructions)
}

// ChatWithInstructions is Chat with a per-call system prompt override.
func (o *Orchestrator) ChatWithInstructions(ctx context.Context, message, instructions string) (*Result, error) {
	start := time.Now()
	tools := o.toolParams()

	resp, err := o.client.Responses.New(ctx, responses.ResponseNewParams{
		Model:        shared.ResponsesModel(o.model),
		Instructions: openai.String(instructions),
		Tools:        tools,
		Input: responses.ResponseNewParamsInputUnion{
			OfString: openai.String(message),
		},
	})
	if err != nil {
		return nil, err
	}

	var (
		allCalls   []ToolCall
		seen       = map[string]bool{}
		iterations int
		approved   int
	)

	merge := func(calls []ToolCall) {
		for _, tc := range calls {
			if tc.ID != "" && seen[tc.ID] {
				continue
			}
			seen[tc.ID] = true
			allCalls = append(allCalls, tc)
		}
	}

	current := resp
	ex := extract(current)
	merge(ex.toolCalls)
	content := ex.content

	for len(ex.approvals) > 0 && iterations < o.maxIterations {
		iterations++
		approved += len(ex.approvals)

		o.logger.Info(ctx, "approving mcp tool calls",
			"count", len(ex.approvals),
			"iteration", iterations,
		)

		input := make(responses.ResponseInputParam, 0, len(ex.approvals))
		for _, id := range ex.approvals {
			input = append(input, responses.ResponseInputItemParamOfMcpApprovalResponse(id, true))
		}

		next, err := o.client.Responses.New(ctx, responses.ResponseNewParams{
			Model:              shared.ResponsesModel(o.model),
			Instructions:       openai.String(instructions),
			Tools:              tools,
			PreviousResponseID: openai.String(current.ID),
			Input: responses.ResponseNewParamsInputUnion{
				OfInputItemList: input,
			},
		})
		if err != nil {
			// The session already produced partial results. Keep them
			// rather than discarding the whole run.
			o.logger.Error(ctx, "approval follow-up failed", "error", err)
			break
		}

		current = next
		ex = extract(current)
		merge(ex.toolCalls)
		// A follow-up that only executes tool calls carries no message;
		// keep the last content the model actually produced.
		if ex.content != "" {
			content = ex.content
		}
	}

	result := &Result{
		Content:            content,
		ToolCalls:          allCalls,
		Stats:              computeStats(allCalls),
		ResponseID:         current.ID,
		ApprovalIterations: iterations,
		ApprovalsProcessed: approved,
	}

	o.observe(result, time.Since(start))
	o.logger.Info(ctx, "orchestrator session complete",
		"response_id", result.ResponseID,
		"tool_calls", result.Stats.Total,
		"successful", result.Stats.Successful,
		"approval_iterations", result.ApprovalIterations,
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return result, nil
}

func (o *Orchestrator) observe(result *Result, elapsed time.Duration) {
	if o.metrics == nil {
		return
	}
	o.metrics.SessionDuration.Observe(elapsed.Seconds())
	for _, tc := range result.ToolCalls {
		status := "success"
		if !tc.Success {
			status = "error"
		}
		o.metrics.ToolCalls.WithLabelValues(tc.ServerLabel, status).Inc()
	}
}

// computeStats aggregates tool call outcomes.
func computeStats(calls []ToolCall) Stats {
	s := Stats{Total: len(calls)}
	if s.Total == 0 {
		return s
	}
	for _, tc := range calls {
		if tc.Success {
			s.Successful++
		}
	}
	s.Failed = s.Total - s.Successful
	s.SuccessRate = math.Round(float64(s.Successful)/float64(s.Total)*100*100) / 100
	return s
}
