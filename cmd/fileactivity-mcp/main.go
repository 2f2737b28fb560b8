// Command fileactivity-mcp exposes a running Manager's volume list and
// recent semantic events as MCP tools, so an agent can ask "what changed
// on disk recently" without scraping logs.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/nimblefs/fileactivity"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	mgr := fileactivity.NewManager(fileactivity.ManagerConfig{Logger: logger})
	flags := fileactivity.NotifyFileName | fileactivity.NotifyAttribute | fileactivity.NotifySecurity | fileactivity.NotifyFolder
	if err := mgr.Start(context.Background(), flags, true); err != nil {
		log.Fatalf("fileactivity-mcp: start manager: %s", err)
	}
	defer mgr.Stop()

	s := server.NewMCPServer("fileactivity", "0.1.0")

	s.AddTool(
		mcp.NewTool("list_volumes",
			mcp.WithDescription("List the filesystem volumes currently being watched")),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return mcp.NewToolResultText(fmt.Sprintf("%v", mgr.Volumes())), nil
		},
	)

	s.AddTool(
		mcp.NewTool("recent_events",
			mcp.WithDescription("List the most recently classified filesystem activity events")),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			events := mgr.RecentEvents()
			lines := make([]string, 0, len(events))
			for _, e := range events {
				lines = append(lines, e.String())
			}
			text := "no events observed yet"
			if len(lines) > 0 {
				text = joinLines(lines)
			}
			return mcp.NewToolResultText(text), nil
		},
	)

	if err := server.ServeStdio(s); err != nil {
		log.Fatalf("fileactivity-mcp: serve: %s", err)
	}
}

func joinLines(lines []string) string {
	out := lines[0]
	for _, l := range lines[1:] {
		out += "\n" + l
	}
	return out
}
