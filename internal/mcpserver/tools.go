package mcpserver

import (
	"context"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"chirpbot/internal/action"
	"chirpbot/internal/control"
	"chirpbot/internal/state"
)

type StatusInput struct{}

type StatusOutput struct {
	Status control.Status `json:"status" jsonschema:"bot status snapshot"`
}

func handleStatus(op Operator) mcp.ToolHandlerFor[StatusInput, StatusOutput] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ StatusInput) (*mcp.CallToolResult, StatusOutput, error) {
		return nil, StatusOutput{Status: op.Status(ctx)}, nil
	}
}

type TweetsInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"maximum number of posts (default 10)"`
}

type TweetsOutput struct {
	Tweets []state.TweetRecord `json:"tweets" jsonschema:"posts, newest first"`
}

func handleTweets(op Operator) mcp.ToolHandlerFor[TweetsInput, TweetsOutput] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, in TweetsInput) (*mcp.CallToolResult, TweetsOutput, error) {
		limit := in.Limit
		if limit <= 0 {
			limit = 10
		}
		tw := op.Tweets(ctx, limit)
		if tw == nil {
			tw = []state.TweetRecord{}
		}
		return nil, TweetsOutput{Tweets: tw}, nil
	}
}

type SetModeInput struct {
	Cricket bool `json:"cricket" jsonschema:"true enables cricket mode"`
}

type SetModeOutput struct {
	Cricket bool `json:"cricket" jsonschema:"mode after the change"`
}

func handleSetMode(op Operator) mcp.ToolHandlerFor[SetModeInput, SetModeOutput] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, in SetModeInput) (*mcp.CallToolResult, SetModeOutput, error) {
		if err := op.SetMode(ctx, in.Cricket); err != nil {
			return nil, SetModeOutput{}, err
		}
		return nil, SetModeOutput{Cricket: in.Cricket}, nil
	}
}

type PostNowInput struct {
	Category string `json:"category,omitempty" jsonschema:"content category; picked by the current mode when empty"`
}

type PostNowOutput struct {
	Status action.Status      `json:"status" jsonschema:"success, skipped or failure"`
	Reason string             `json:"reason,omitempty" jsonschema:"why the post was skipped or failed"`
	Tweet  *state.TweetRecord `json:"tweet,omitempty" jsonschema:"the published post"`
}

func handlePostNow(op Operator) mcp.ToolHandlerFor[PostNowInput, PostNowOutput] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, in PostNowInput) (*mcp.CallToolResult, PostNowOutput, error) {
		res := op.PostNow(ctx, in.Category)
		out := PostNowOutput{Status: res.Status, Reason: res.Reason, Tweet: res.Tweet}
		if res.Status == action.StatusFailure {
			return nil, out, errors.New(res.Reason)
		}
		return nil, out, nil
	}
}
