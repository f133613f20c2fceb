// Package chat talks to the TaskFlow AI assistant endpoint and keeps
// the conversation state for one client session.
package chat

import "time"

// Turn roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one message in the conversation. The timestamp is client
// generated; the server keeps its own record.
type Turn struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// ToolCall records an operation the backend agent executed while
// handling an utterance. The client only looks at the name; the
// arguments stay opaque.
type ToolCall struct {
	ToolName string `json:"tool_name"`
}

// SendRequest is the body of one chat turn. ConversationID is nil on
// the first turn; the server assigns one.
type SendRequest struct {
	ConversationID *int   `json:"conversation_id,omitempty"`
	Message        string `json:"message"`
}

// SendResponse is the agent's reply, including the manifest of tool
// calls it made as side effects.
type SendResponse struct {
	ConversationID int        `json:"conversation_id"`
	Response       string     `json:"response"`
	ToolCalls      []ToolCall `json:"tool_calls"`
}
