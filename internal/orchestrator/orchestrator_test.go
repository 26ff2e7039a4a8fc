package orchestrator

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/infera-ai/infera/internal/config"
	"github.com/infera-ai/infera/internal/observability"
	"github.com/infera-ai/infera/internal/tenant"
)

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.LogConfig{Level: "error", Format: "text", Output: io.Discard})
}

// cannedServer replies with the given response bodies in order and records
// each request body.
func cannedServer(t *testing.T, bodies []string) (*httptest.Server, *[]string) {
	t.Helper()
	var requests []string
	call := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		requests = append(requests, string(raw))
		if call >= len(bodies) {
			t.Errorf("unexpected request #%d to %s", call+1, r.URL.Path)
			http.Error(w, "no more canned responses", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, bodies[call])
		call++
	}))
	return srv, &requests
}

const respApprovals = `{
  "id": "resp_1",
  "object": "response",
  "status": "completed",
  "output": [
    {"type": "mcp_approval_request", "id": "apr_1", "name": "search_a_page_in_notion", "server_label": "Notion", "arguments": "{\"query\":\"auth\"}"},
    {"type": "mcp_approval_request", "id": "apr_2", "name": "search_code", "server_label": "GitHub", "arguments": "{\"q\":\"auth\"}"}
  ]
}`

const respCallsAndMoreApprovals = `{
  "id": "resp_2",
  "object": "response",
  "status": "completed",
  "output": [
    {"type": "mcp_call", "id": "call_1", "name": "search_a_page_in_notion", "server_label": "Notion", "arguments": "{}", "output": "found page"},
    {"type": "mcp_call", "id": "call_2", "name": "search_code", "server_label": "GitHub", "arguments": "{}", "error": "rate limited"},
    {"type": "mcp_approval_request", "id": "apr_3", "name": "create_page", "server_label": "Notion", "arguments": "{}"}
  ]
}`

const respFinal = `{
  "id": "resp_3",
  "object": "response",
  "status": "completed",
  "output": [
    {"type": "mcp_call", "id": "call_1", "name": "search_a_page_in_notion", "server_label": "Notion", "arguments": "{}", "output": "found page"},
    {"type": "mcp_call", "id": "call_2", "name": "search_code", "server_label": "GitHub", "arguments": "{}", "error": "rate limited"},
    {"type": "mcp_call", "id": "call_3", "name": "create_page", "server_label": "Notion", "arguments": "{}", "output": "page created"},
    {"type": "message", "id": "msg_1", "role": "assistant", "status": "completed",
     "content": [{"type": "output_text", "text": "Documentación creada en Notion.", "annotations": []}]}
  ]
}`

func TestChatApprovalLoopDeduplicatesToolCalls(t *testing.T) {
	srv, requests := cannedServer(t, []string{respApprovals, respCallsAndMoreApprovals, respFinal})
	defer srv.Close()

	o := New("test-key", "gpt-5-mini", testLogger(), WithBaseURL(srv.URL))
	o.AddMCPServer(MCPServer{Label: "Notion", URL: "https://mcp.example/notion", AllowedTools: notionTools})

	result, err := o.Chat(context.Background(), "decidimos migrar la cola a kafka")
	if err != nil {
		t.Fatal(err)
	}

	// call_1 and call_2 appear in two responses but count once each.
	if result.Stats.Total != 3 {
		t.Errorf("total = %d, want 3 unique tool calls", result.Stats.Total)
	}
	if result.Stats.Successful != 2 || result.Stats.Failed != 1 {
		t.Errorf("stats = %+v", result.Stats)
	}
	if result.Stats.SuccessRate != 66.67 {
		t.Errorf("success rate = %v, want 66.67", result.Stats.SuccessRate)
	}
	if result.Content != "Documentación creada en Notion." {
		t.Errorf("content = %q", result.Content)
	}
	if result.ApprovalIterations != 2 {
		t.Errorf("iterations = %d, want 2", result.ApprovalIterations)
	}
	if result.ApprovalsProcessed != 3 {
		t.Errorf("approvals = %d, want 3", result.ApprovalsProcessed)
	}
	if result.ResponseID != "resp_3" {
		t.Errorf("response id = %q", result.ResponseID)
	}

	if len(*requests) != 3 {
		t.Fatalf("made %d API calls, want 3", len(*requests))
	}
	second := (*requests)[1]
	if !strings.Contains(second, "mcp_approval_response") {
		t.Error("follow-up request missing approval responses")
	}
	if !strings.Contains(second, `"previous_response_id":"resp_1"`) {
		t.Errorf("follow-up not chained to resp_1: %s", second)
	}
	if !strings.Contains(second, `"apr_1"`) || !strings.Contains(second, `"apr_2"`) {
		t.Error("follow-up should approve both requests")
	}
}

func TestChatNoTools(t *testing.T) {
	srv, requests := cannedServer(t, []string{`{
  "id": "resp_1",
  "object": "response",
  "status": "completed",
  "output": [
    {"type": "message", "id": "msg_1", "role": "assistant", "status": "completed",
     "content": [{"type": "output_text", "text": "hola", "annotations": []}]}
  ]
}`})
	defer srv.Close()

	o := New("test-key", "gpt-5-mini", testLogger(), WithBaseURL(srv.URL))
	result, err := o.Chat(context.Background(), "hola")
	if err != nil {
		t.Fatal(err)
	}
	if result.Content != "hola" {
		t.Errorf("content = %q", result.Content)
	}
	if result.Stats.Total != 0 || result.Stats.SuccessRate != 0 {
		t.Errorf("stats = %+v, want zeroes", result.Stats)
	}
	if len(*requests) != 1 {
		t.Errorf("made %d calls, want 1", len(*requests))
	}

	var body map[string]any
	if err := json.Unmarshal([]byte((*requests)[0]), &body); err != nil {
		t.Fatal(err)
	}
	if body["model"] != "gpt-5-mini" {
		t.Errorf("model = %v", body["model"])
	}
	if _, hasTools := body["tools"]; hasTools {
		t.Error("request should omit tools when no servers registered")
	}
}

func TestChatKeepsContentWhenFollowUpHasNone(t *testing.T) {
	initial := `{
  "id": "resp_1",
  "object": "response",
  "status": "completed",
  "output": [
    {"type": "message", "id": "msg_1", "role": "assistant", "status": "completed",
     "content": [{"type": "output_text", "text": "Buscando la página en Notion.", "annotations": []}]},
    {"type": "mcp_approval_request", "id": "apr_1", "name": "search_a_page_in_notion", "server_label": "Notion", "arguments": "{}"}
  ]
}`
	followUp := `{
  "id": "resp_2",
  "object": "response",
  "status": "completed",
  "output": [
    {"type": "mcp_call", "id": "call_1", "name": "search_a_page_in_notion", "server_label": "Notion", "arguments": "{}", "output": "found page"}
  ]
}`
	srv, _ := cannedServer(t, []string{initial, followUp})
	defer srv.Close()

	o := New("test-key", "gpt-5-mini", testLogger(), WithBaseURL(srv.URL))
	o.AddMCPServer(MCPServer{Label: "Notion", URL: "https://mcp.example/notion"})

	result, err := o.Chat(context.Background(), "mensaje")
	if err != nil {
		t.Fatal(err)
	}
	if result.Content != "Buscando la página en Notion." {
		t.Errorf("content = %q, want the initial response text kept", result.Content)
	}
	if result.Stats.Total != 1 {
		t.Errorf("total = %d, want 1", result.Stats.Total)
	}
	if result.ResponseID != "resp_2" {
		t.Errorf("response id = %q", result.ResponseID)
	}
}

func TestChatKeepsPartialResultsOnFollowUpFailure(t *testing.T) {
	call := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		call++
		if call == 1 {
			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, respCallsAndMoreApprovals)
			return
		}
		http.Error(w, `{"error": {"message": "overloaded"}}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	o := New("test-key", "gpt-5-mini", testLogger(),
		WithBaseURL(srv.URL),
		WithMaxApprovalIterations(3),
	)

	result, err := o.Chat(context.Background(), "mensaje")
	if err != nil {
		t.Fatal("partial results should not surface as an error")
	}
	if result.Stats.Total != 2 {
		t.Errorf("total = %d, want the 2 calls from the first response", result.Stats.Total)
	}
}

func TestChatFirstCallFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"message": "invalid api key"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	o := New("bad-key", "gpt-5-mini", testLogger(), WithBaseURL(srv.URL))
	if _, err := o.Chat(context.Background(), "hola"); err == nil {
		t.Fatal("want error on failed first call")
	}
}

func TestChatRespectsIterationBound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Every response asks for another approval.
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, respApprovals)
	}))
	defer srv.Close()

	o := New("test-key", "gpt-5-mini", testLogger(),
		WithBaseURL(srv.URL),
		WithMaxApprovalIterations(2),
	)

	result, err := o.Chat(context.Background(), "mensaje")
	if err != nil {
		t.Fatal(err)
	}
	if result.ApprovalIterations != 2 {
		t.Errorf("iterations = %d, want the bound 2", result.ApprovalIterations)
	}
}

func TestFactoryRegistrations(t *testing.T) {
	cfg := config.Config{}
	cfg.LLM.Token = "sk-test"
	cfg.LLM.Model = "gpt-5-mini"
	cfg.LLM.MaxIterations = 50
	cfg.MCP.NotionURL = "https://mcp.example/notion"
	cfg.MCP.GitHubURL = "https://api.githubcopilot.com/mcp/"
	cfg.MCP.GitHubFileURL = "https://mcp.example/ghfile"

	factory := NewFactory(cfg, testLogger(), nil)

	full := factory.NewForUser(tenant.Credentials{
		NotionToken: "ntn_x",
		GitHubToken: "ghp_x",
	})
	if got := full.Servers(); len(got) != 3 {
		t.Fatalf("servers = %v, want Notion, GitHub, GitHubFile", got)
	}

	// Missing GitHub token skips both GitHub-backed servers.
	notionOnly := factory.NewForUser(tenant.Credentials{NotionToken: "ntn_x"})
	if got := notionOnly.Servers(); len(got) != 1 || got[0] != "Notion" {
		t.Errorf("servers = %v, want only Notion", got)
	}

	none := factory.NewForUser(tenant.Credentials{})
	if got := none.Servers(); len(got) != 0 {
		t.Errorf("servers = %v, want none", got)
	}
}

func TestComputeStatsRounding(t *testing.T) {
	calls := []ToolCall{
		{ID: "a", Success: true},
		{ID: "b", Success: true},
		{ID: "c", Success: false},
	}
	s := computeStats(calls)
	if s.SuccessRate != 66.67 {
		t.Errorf("rate = %v, want 66.67", s.SuccessRate)
	}
	if s := computeStats(nil); s.SuccessRate != 0 || s.Total != 0 {
		t.Errorf("empty stats = %+v", s)
	}
}
