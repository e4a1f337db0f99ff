package anthropic

import (
	"encoding/json"

	"github.com/jordanhubbard/cascadeflow/internal/providers"
)

type messagesResponse struct {
	StopReason string `json:"stop_reason"`
	Content    []struct {
		Type  string         `json:"type"`
		Text  string         `json:"text"`
		Name  string         `json:"name"`
		Input map[string]any `json:"input"`
	} `json:"content"`
}

// parseMessagesResponse extracts text content, tool calls, and the finish
// reason from a raw Anthropic Messages API response body.
func parseMessagesResponse(body []byte) (content string, toolCalls []providers.ToolCall, finishReason string) {
	var r messagesResponse
	if err := json.Unmarshal(body, &r); err != nil {
		return "", nil, ""
	}
	finishReason = r.StopReason
	for _, block := range r.Content {
		switch block.Type {
		case "text":
			content += block.Text
		case "tool_use":
			toolCalls = append(toolCalls, providers.ToolCall{Name: block.Name, Args: block.Input})
		}
	}
	return content, toolCalls, finishReason
}
