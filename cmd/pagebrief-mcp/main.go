package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/use-agent/pagebrief/config"
	"github.com/use-agent/pagebrief/models"
	"github.com/use-agent/pagebrief/pipeline"
)

// summarizer is the part of *pipeline.Pipeline the tool needs.
type summarizer interface {
	Summarize(ctx context.Context, url string) ([]string, error)
}

func main() {
	cfg := config.Load()

	// stdout carries the MCP protocol; logs go to stderr.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	p, handle, err := pipeline.FromConfig(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, models.UserMessage(err))
		os.Exit(1)
	}
	if handle != nil {
		defer handle.Close()
	}

	s := server.NewMCPServer(
		"pagebrief",
		"2.0.0",
		server.WithToolCapabilities(false),
	)

	briefTool := mcp.NewTool("page_brief",
		mcp.WithDescription("Fetch a web page and return a short Markdown brief: title, canonical URL, language, meta description and keywords, Open Graph fields, headings overview, content preview, link counts with samples and image alt-text coverage."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The http or https URL of the page to summarise"),
		),
	)
	s.AddTool(briefTool, handlePageBrief(p))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "MCP server error: %v\n", err)
		if handle != nil {
			_ = handle.Close()
		}
		os.Exit(1)
	}
}

func handlePageBrief(p summarizer) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}

		lines, err := p.Summarize(ctx, url)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("[%s] %s", models.CodeOf(err), models.UserMessage(err))), nil
		}
		return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
	}
}
