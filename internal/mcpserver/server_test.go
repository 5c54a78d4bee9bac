package mcpserver

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"ai-reading-assistant/internal/service/summarize"
)

func callRequest(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) != 1 {
		t.Fatalf("expected 1 content item, got %d", len(res.Content))
	}
	text, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", res.Content[0])
	}
	return text.Text
}

func TestSummarizeTool(t *testing.T) {
	tl := &tools{summarizer: summarize.NewService(nil)}

	tests := []struct {
		name    string
		args    map[string]any
		want    string
		wantErr bool
	}{
		{"text", map[string]any{"text": "Only one sentence here."}, "Only one sentence here.", false},
		{"empty", map[string]any{"text": ""}, summarize.NothingToSummarize, false},
		{"missing", map[string]any{}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := tl.summarize(context.Background(), callRequest(tt.args))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.IsError != tt.wantErr {
				t.Fatalf("expected IsError=%v, got %v", tt.wantErr, res.IsError)
			}
			if !tt.wantErr && resultText(t, res) != tt.want {
				t.Errorf("expected %q, got %q", tt.want, resultText(t, res))
			}
		})
	}
}

func TestSummarizeFileTool(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "page.txt")
	if err := os.WriteFile(path, []byte("A page of text. With two sentences."), 0o644); err != nil {
		t.Fatal(err)
	}

	tl := &tools{summarizer: summarize.NewService(nil)}

	tests := []struct {
		name    string
		path    string
		want    string
		wantErr bool
	}{
		{"file", path, "A page of text. With two sentences.", false},
		{"missing", filepath.Join(dir, "nope.txt"), "", true},
		{"directory", dir, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := tl.summarizeFile(context.Background(), callRequest(map[string]any{"path": tt.path}))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.IsError != tt.wantErr {
				t.Fatalf("expected IsError=%v, got %v", tt.wantErr, res.IsError)
			}
			if !tt.wantErr && resultText(t, res) != tt.want {
				t.Errorf("expected %q, got %q", tt.want, resultText(t, res))
			}
		})
	}
}

func TestNew(t *testing.T) {
	if New(summarize.NewService(nil)) == nil {
		t.Fatal("expected server")
	}
}
