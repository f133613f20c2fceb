package chat

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Greeting is the seeded assistant turn shown before the first
// exchange.
const Greeting = `Hello! I'm your AI assistant. You can manage your tasks by typing natural language commands like "Add buy groceries" or "Show my tasks".`

// apology is the fixed assistant turn shown when a chat turn fails.
// A failed turn is a normal outcome, not an exception.
const apology = "Sorry, I'm having trouble connecting to the AI service right now. Please try again."

// mutatingTools are the agent tools that change task state server
// side. Seeing one in a response manifest means the local task cache
// is stale.
var mutatingTools = map[string]struct{}{
	"add_task":      {},
	"complete_task": {},
	"delete_task":   {},
	"update_task":   {},
}

// Sender abstracts the agent endpoint. Client implements it; tests
// script responses.
type Sender interface {
	Send(ctx context.Context, userID string, req SendRequest) (SendResponse, error)
}

// Recorder receives turns for local transcript storage. Best effort;
// the bridge ignores recording failures.
type Recorder interface {
	RecordTurn(turn Turn, toolNames []string)
}

// Bridge owns the conversation for one client session: the turn
// sequence, the server-assigned conversation id, and the decision to
// resynchronize the task cache after the agent mutates tasks. It
// never touches task state itself; the agent's tool execution is
// authoritative, and the cache is told to re-fetch.
type Bridge struct {
	sender  Sender
	userID  string
	refresh func()
	delay   time.Duration

	rec Recorder

	// after is time.AfterFunc unless a test swaps it out.
	after func(d time.Duration, fn func()) *time.Timer

	mu             sync.Mutex
	busy           bool
	conversationID *int
	turns          []Turn
	onChange       func()
}

// NewBridge creates a bridge for one user session. refresh is invoked
// (after delay) whenever a response manifest contains a task-mutating
// tool call; it is wired to the cache's fetch.
func NewBridge(sender Sender, userID string, delay time.Duration, refresh func()) *Bridge {
	b := &Bridge{
		sender:  sender,
		userID:  userID,
		refresh: refresh,
		delay:   delay,
		after:   time.AfterFunc,
	}
	b.turns = append(b.turns, Turn{Role: RoleAssistant, Content: Greeting, At: time.Now()})
	return b
}

// SetRecorder attaches a transcript recorder. The seeded greeting is
// not recorded; only exchanged turns are.
func (b *Bridge) SetRecorder(rec Recorder) {
	b.mu.Lock()
	b.rec = rec
	b.mu.Unlock()
}

// SetOnChange registers a callback invoked after every turn-sequence
// or busy-state change. Called without the bridge lock held.
func (b *Bridge) SetOnChange(fn func()) {
	b.mu.Lock()
	b.onChange = fn
	b.mu.Unlock()
}

// Turns returns a copy of the conversation so far.
func (b *Bridge) Turns() []Turn {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Turn, len(b.turns))
	copy(out, b.turns)
	return out
}

// Busy reports whether a turn is awaiting its response.
func (b *Bridge) Busy() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.busy
}

// ConversationID returns the server-assigned id once established.
func (b *Bridge) ConversationID() (int, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conversationID == nil {
		return 0, false
	}
	return *b.conversationID, true
}

// Send submits one utterance. Empty or whitespace-only input is
// rejected with no network call and no state change, as is a send
// while a previous turn is still in flight; both return ok=false.
// Otherwise the user turn is echoed immediately, the agent is called,
// and the returned turn is the assistant's reply, or the fixed apology
// if the call failed. Send never returns an error: a failed chat turn
// is shown, not raised.
func (b *Bridge) Send(ctx context.Context, text string) (reply Turn, ok bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Turn{}, false
	}

	b.mu.Lock()
	if b.busy {
		b.mu.Unlock()
		return Turn{}, false
	}
	b.busy = true
	userTurn := Turn{Role: RoleUser, Content: text, At: time.Now()}
	b.turns = append(b.turns, userTurn)
	convID := b.conversationID
	rec := b.rec
	b.mu.Unlock()
	b.notify()

	if rec != nil {
		rec.RecordTurn(userTurn, nil)
	}

	resp, err := b.sender.Send(ctx, b.userID, SendRequest{
		ConversationID: convID,
		Message:        text,
	})

	if err != nil {
		reply = Turn{Role: RoleAssistant, Content: apology, At: time.Now()}
		b.mu.Lock()
		b.busy = false
		b.turns = append(b.turns, reply)
		b.mu.Unlock()
		b.notify()
		if rec != nil {
			rec.RecordTurn(reply, nil)
		}
		return reply, true
	}

	reply = Turn{Role: RoleAssistant, Content: resp.Response, At: time.Now()}

	b.mu.Lock()
	b.busy = false
	if b.conversationID == nil && resp.ConversationID != 0 {
		id := resp.ConversationID
		b.conversationID = &id
	}
	b.turns = append(b.turns, reply)
	b.mu.Unlock()
	b.notify()

	toolNames := make([]string, 0, len(resp.ToolCalls))
	for _, call := range resp.ToolCalls {
		toolNames = append(toolNames, call.ToolName)
	}
	if rec != nil {
		rec.RecordTurn(reply, toolNames)
	}

	// The agent already wrote through to the server; wait out the
	// propagation lag, then resynchronize. The chat flow does not
	// block on the refresh.
	if b.refresh != nil && hasMutatingCall(resp.ToolCalls) {
		b.after(b.delay, b.refresh)
	}

	return reply, true
}

func hasMutatingCall(calls []ToolCall) bool {
	for _, call := range calls {
		if _, found := mutatingTools[call.ToolName]; found {
			return true
		}
	}
	return false
}

func (b *Bridge) notify() {
	b.mu.Lock()
	fn := b.onChange
	b.mu.Unlock()
	if fn != nil {
		fn()
	}
}
