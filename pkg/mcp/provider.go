// Package mcp adapts a Model-Context-Protocol server (via
// github.com/mark3labs/mcp-go) into a Tool Registry provider: each tool
// the server advertises becomes one toolkernel.CallableTool whose Call
// is routed through the MCP client's CallTool RPC.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kadirpekel/coderkernel/pkg/kernelerr"
	"github.com/kadirpekel/coderkernel/pkg/toolkernel"
)

// ProviderID is the provider identifier attached to every tool this
// package adapts, for use with toolkernel.Registry's provider filter.
const ProviderID = "mcp"

// StdioConfig configures a subprocess-transport MCP server connection.
type StdioConfig struct {
	Command string
	Args    []string
	Env     map[string]string
}

// Provider owns one live MCP client connection and adapts its advertised
// tools into toolkernel.CallableTool instances.
type Provider struct {
	client *client.Client
}

// ConnectStdio starts cmd as a subprocess MCP server, performs the
// initialize handshake, and returns a ready Provider.
func ConnectStdio(ctx context.Context, cfg StdioConfig) (*Provider, error) {
	const op = "mcp.ConnectStdio"

	env := make([]string, 0, len(cfg.Env))
	for k, v := range cfg.Env {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}

	mcpClient, err := client.NewStdioMCPClient(cfg.Command, env, cfg.Args...)
	if err != nil {
		return nil, kernelerr.Wrap(op, kernelerr.Transport, err)
	}
	if err := mcpClient.Start(ctx); err != nil {
		return nil, kernelerr.Wrap(op, kernelerr.Transport, err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ClientInfo = mcp.Implementation{Name: "coderkernel", Version: "0.1.0"}
	initReq.Params.ProtocolVersion = "2024-11-05"
	if _, err := mcpClient.Initialize(ctx, initReq); err != nil {
		mcpClient.Close()
		return nil, kernelerr.Wrap(op, kernelerr.Protocol, err)
	}

	return &Provider{client: mcpClient}, nil
}

// Close shuts down the underlying MCP client connection.
func (p *Provider) Close() error { return p.client.Close() }

// DiscoverTools lists the server's advertised tools and adapts each into
// a toolkernel.CallableTool.
func (p *Provider) DiscoverTools(ctx context.Context) ([]toolkernel.CallableTool, error) {
	const op = "mcp.Provider.DiscoverTools"
	resp, err := p.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, kernelerr.Wrap(op, kernelerr.Transport, err)
	}

	tools := make([]toolkernel.CallableTool, 0, len(resp.Tools))
	for _, t := range resp.Tools {
		tools = append(tools, &remoteTool{
			client:      p.client,
			name:        t.Name,
			description: t.Description,
			schema:      convertSchema(t.InputSchema),
		})
	}
	return tools, nil
}

// RegisterAll discovers the provider's tools and registers each into reg
// under ProviderID, enabled by default with no required permissions
// beyond what the caller's permission engine enforces per-tool.
func (p *Provider) RegisterAll(ctx context.Context, reg *toolkernel.Registry) error {
	tools, err := p.DiscoverTools(ctx)
	if err != nil {
		return err
	}
	for _, t := range tools {
		if err := reg.Register(t, toolkernel.Metadata{ProviderID: ProviderID, Enabled: true}); err != nil {
			return err
		}
	}
	return nil
}

// remoteTool adapts one MCP-advertised tool into a toolkernel.CallableTool.
type remoteTool struct {
	client      *client.Client
	name        string
	description string
	schema      map[string]any
}

func (t *remoteTool) ID() string            { return t.name }
func (t *remoteTool) Description() string   { return t.description }
func (t *remoteTool) Schema() map[string]any { return t.schema }

func (t *remoteTool) Call(ctx context.Context, args map[string]any) (toolkernel.Result, error) {
	const op = "mcp.remoteTool.Call"
	req := mcp.CallToolRequest{}
	req.Params.Name = t.name
	req.Params.Arguments = args

	resp, err := t.client.CallTool(ctx, req)
	if err != nil {
		return toolkernel.Result{}, kernelerr.Wrap(op, kernelerr.Transport, err)
	}

	var texts []string
	for _, content := range resp.Content {
		if tc, ok := content.(mcp.TextContent); ok {
			texts = append(texts, tc.Text)
		}
	}

	if resp.IsError {
		msg := "unknown error"
		if len(texts) > 0 {
			msg = texts[0]
		}
		return toolkernel.Result{Error: msg}, nil
	}

	var content any
	switch len(texts) {
	case 0:
		content = nil
	case 1:
		content = texts[0]
	default:
		content = texts
	}
	return toolkernel.Result{Content: content}, nil
}

func convertSchema(schema mcp.ToolInputSchema) map[string]any {
	data, err := json.Marshal(schema)
	if err != nil {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}
