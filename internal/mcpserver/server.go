// Package mcpserver exposes the bot's control surface as Model Context
// Protocol tools so an agent can inspect and steer a running instance.
package mcpserver

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"chirpbot/internal/action"
	"chirpbot/internal/control"
	"chirpbot/internal/state"
)

// Operator is the subset of control.Service the tools drive.
type Operator interface {
	Status(ctx context.Context) control.Status
	SetMode(ctx context.Context, cricket bool) error
	PostNow(ctx context.Context, category string) action.Result
	Tweets(ctx context.Context, limit int) []state.TweetRecord
}

// NewServer creates an MCP server with every chirpbot tool registered.
func NewServer(version string, op Operator) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "chirpbot",
		Version: version,
	}, nil)
	registerTools(server, op)
	return server
}

func boolPtr(b bool) *bool { return &b }

func readOnlyAnnotations() *mcp.ToolAnnotations {
	return &mcp.ToolAnnotations{
		ReadOnlyHint:   true,
		IdempotentHint: true,
		OpenWorldHint:  boolPtr(false),
	}
}

func registerTools(server *mcp.Server, op Operator) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "status",
		Description: "Current mode, follow quota, follower totals, post cooldown and seconds until each action family fires.",
		Annotations: readOnlyAnnotations(),
	}, handleStatus(op))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "tweets",
		Description: "Recent published posts, newest first.",
		Annotations: readOnlyAnnotations(),
	}, handleTweets(op))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "set_mode",
		Description: "Switch cricket mode on or off. The change is persisted before the tool returns.",
		Annotations: &mcp.ToolAnnotations{
			IdempotentHint:  true,
			DestructiveHint: boolPtr(false),
			OpenWorldHint:   boolPtr(false),
		},
	}, handleSetMode(op))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "post_now",
		Description: "Generate and publish a post immediately, bypassing the cooldown. Skipped if a post is already in flight.",
		Annotations: &mcp.ToolAnnotations{
			DestructiveHint: boolPtr(false),
			OpenWorldHint:   boolPtr(true),
		},
	}, handlePostNow(op))
}
