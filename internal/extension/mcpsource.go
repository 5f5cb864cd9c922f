package extension

import (
	"context"

	"github.com/agentcore-dev/runtime/internal/logging"
	"github.com/agentcore-dev/runtime/internal/mcp"
	"github.com/agentcore-dev/runtime/internal/tool"
	"github.com/agentcore-dev/runtime/pkg/types"
)

// ComposeMCPTools connects to every enabled MCP server declared in cfg and
// returns the tools it exposes, wrapped to satisfy tool.Tool. MCP servers
// are configuration, not .so modules, so they never go through Discover;
// this is the second of the two extension source kinds Compose accepts,
// feeding ComposeOptions.MCPTools. A server that fails to connect counts
// as one load error but never aborts the others — one flaky server
// should not take down every other registered tool.
//
// client is returned alongside the tools so the caller can Close it when
// the process (or the next Reload) retires this tool set.
func ComposeMCPTools(ctx context.Context, cfg map[string]types.MCPConfig) ([]tool.Tool, *mcp.Client, int) {
	if len(cfg) == 0 {
		return nil, nil, 0
	}

	client := mcp.NewClient()
	loadErrors := 0
	for name, sc := range cfg {
		enabled := sc.Enabled == nil || *sc.Enabled
		mc := &mcp.Config{
			Enabled:     enabled,
			Type:        mcp.TransportType(sc.Type),
			URL:         sc.URL,
			Headers:     sc.Headers,
			Command:     sc.Command,
			Environment: sc.Environment,
			Timeout:     sc.Timeout,
		}
		if err := client.AddServer(ctx, name, mc); err != nil {
			if enabled {
				loadErrors++
				logging.Warn().Err(err).Str("server", name).Msg("extension: mcp server connection failed")
			}
			continue
		}
	}

	var tools []tool.Tool
	for _, t := range client.Tools() {
		tools = append(tools, mcp.NewMCPToolWrapper(t, client))
	}
	return tools, client, loadErrors
}
