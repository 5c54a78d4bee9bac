// Package mcpserver exposes summarization as Model Context Protocol tools
// over stdio.
package mcpserver

import (
	"context"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog/log"
)

const (
	serverName    = "ai-reading-assistant"
	serverVersion = "0.1.0"
	// maxFileBytes bounds summarize_file reads.
	maxFileBytes = 4 << 20
)

// Summarizer produces summaries on behalf of a named source.
type Summarizer interface {
	Summarize(source, text string) string
}

// New builds an MCP server with the summarize and summarize_file tools.
func New(s Summarizer) *server.MCPServer {
	srv := server.NewMCPServer(serverName, serverVersion,
		server.WithToolCapabilities(false),
	)
	t := &tools{summarizer: s}

	srv.AddTool(mcp.NewTool("summarize",
		mcp.WithDescription("Summarize a block of text into its most representative sentences."),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("Text to summarize"),
		),
	), t.summarize)

	srv.AddTool(mcp.NewTool("summarize_file",
		mcp.WithDescription("Summarize a local text or markdown file."),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path to the file"),
		),
	), t.summarizeFile)

	return srv
}

// ServeStdio serves srv on stdin/stdout until the client disconnects.
func ServeStdio(srv *server.MCPServer) error {
	log.Info().Str("name", serverName).Msg("Serving MCP over stdio")
	return server.ServeStdio(srv)
}

type tools struct {
	summarizer Summarizer
}

func (t *tools) summarize(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(t.summarizer.Summarize("mcp", text)), nil
}

func (t *tools) summarizeFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("cannot read %s: %v", path, err)), nil
	}
	if info.IsDir() {
		return mcp.NewToolResultError(fmt.Sprintf("%s is a directory", path)), nil
	}
	if info.Size() > maxFileBytes {
		return mcp.NewToolResultError(fmt.Sprintf("%s is larger than %d bytes", path, maxFileBytes)), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("cannot read %s: %v", path, err)), nil
	}
	return mcp.NewToolResultText(t.summarizer.Summarize("mcp", string(data))), nil
}
