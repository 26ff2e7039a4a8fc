package orchestrator

import (
	"github.com/infera-ai/infera/internal/config"
	"github.com/infera-ai/infera/internal/observability"
	"github.com/infera-ai/infera/internal/tenant"
)

// notionTools are the Notion MCP tools the agent may invoke.
var notionTools = []string{
	"get_notion_page_content",
	"create_page",
	"search_a_page_in_notion",
	"append_text_block",
	"append_title_block",
	"append_code_block",
	"update_block",
}

// githubTools cover repository and code search on the GitHub MCP server.
var githubTools = []string{"search_code", "search_repositories"}

// githubFileTools cover raw file retrieval on the companion server.
var githubFileTools = []string{"get_github_file_content"}

// Factory builds per-tenant orchestrators. MCP servers are registered with
// the tenant's own tokens; a server whose token is missing is skipped rather
// than registered broken.
type Factory struct {
	cfg     config.Config
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewFactory creates an orchestrator factory from the service config.
func NewFactory(cfg config.Config, logger *observability.Logger, metrics *observability.Metrics) *Factory {
	return &Factory{cfg: cfg, logger: logger, metrics: metrics}
}

// NewForUser builds an orchestrator carrying the user's MCP registrations.
func (f *Factory) NewForUser(creds tenant.Credentials) *Orchestrator {
	opts := []Option{
		WithMaxApprovalIterations(f.cfg.LLM.MaxIterations),
		WithMetrics(f.metrics),
	}
	if f.cfg.LLM.BaseURL != "" {
		opts = append(opts, WithBaseURL(f.cfg.LLM.BaseURL))
	}

	o := New(f.cfg.LLM.Token, f.cfg.LLM.Model, f.logger, opts...)

	if creds.NotionToken != "" {
		o.AddMCPServer(MCPServer{
			Label:         "Notion",
			Description:   "Realizar acciones en Notion",
			URL:           f.cfg.MCP.NotionURL,
			Authorization: creds.NotionToken,
			AllowedTools:  notionTools,
		})
	}
	if creds.GitHubToken != "" {
		o.AddMCPServer(MCPServer{
			Label:         "GitHub",
			Description:   "Realizar acciones en GitHub",
			URL:           f.cfg.MCP.GitHubURL,
			Authorization: creds.GitHubToken,
			AllowedTools:  githubTools,
		})
		o.AddMCPServer(MCPServer{
			Label:         "GitHubFile",
			Description:   "Obtener contenido de archivos en GitHub",
			URL:           f.cfg.MCP.GitHubFileURL,
			Authorization: creds.GitHubToken,
			AllowedTools:  githubFileTools,
		})
	}
	return o
}
