package chat

import (
	"context"
	"errors"
	"testing"
	"time"
)

// scriptedSender replays queued responses in order.
type scriptedSender struct {
	responses []SendResponse
	errs      []error
	requests  []SendRequest
}

func (s *scriptedSender) queue(resp SendResponse) {
	s.responses = append(s.responses, resp)
	s.errs = append(s.errs, nil)
}

func (s *scriptedSender) queueErr(err error) {
	s.responses = append(s.responses, SendResponse{})
	s.errs = append(s.errs, err)
}

func (s *scriptedSender) Send(ctx context.Context, userID string, req SendRequest) (SendResponse, error) {
	idx := len(s.requests)
	s.requests = append(s.requests, req)
	if idx >= len(s.responses) {
		return SendResponse{}, errors.New("no scripted response")
	}
	return s.responses[idx], s.errs[idx]
}

// captureTimers replaces the bridge's timer with one that records
// scheduled callbacks instead of running them.
type captureTimers struct {
	delays []time.Duration
	fns    []func()
}

func (c *captureTimers) afterFunc(d time.Duration, fn func()) *time.Timer {
	c.delays = append(c.delays, d)
	c.fns = append(c.fns, fn)
	return time.NewTimer(time.Hour)
}

func newTestBridge(sender Sender, refresh func()) (*Bridge, *captureTimers) {
	b := NewBridge(sender, "user-1", 500*time.Millisecond, refresh)
	timers := &captureTimers{}
	b.after = timers.afterFunc
	return b, timers
}

func TestSendRejectsEmptyUtterance(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{name: "empty", text: ""},
		{name: "whitespace", text: "   \t\n"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sender := &scriptedSender{}
			b, _ := newTestBridge(sender, nil)
			before := len(b.Turns())

			if _, ok := b.Send(context.Background(), tc.text); ok {
				t.Fatal("empty utterance must not be submitted")
			}
			if len(sender.requests) != 0 {
				t.Fatal("empty utterance must not hit the network")
			}
			if len(b.Turns()) != before {
				t.Fatal("empty utterance must not change the turn sequence")
			}
		})
	}
}

func TestSendEchoesUserAndAppendsReply(t *testing.T) {
	sender := &scriptedSender{}
	sender.queue(SendResponse{ConversationID: 7, Response: "Done!"})

	b, _ := newTestBridge(sender, nil)
	reply, ok := b.Send(context.Background(), "complete task 1")
	if !ok {
		t.Fatal("expected submission")
	}
	if reply.Role != RoleAssistant || reply.Content != "Done!" {
		t.Fatalf("unexpected reply: %#v", reply)
	}

	turns := b.Turns()
	// greeting + user + assistant
	if len(turns) != 3 {
		t.Fatalf("unexpected turn count: %d", len(turns))
	}
	if turns[1].Role != RoleUser || turns[1].Content != "complete task 1" {
		t.Fatalf("user turn not echoed: %#v", turns[1])
	}
	if b.Busy() {
		t.Fatal("bridge stuck busy after reply")
	}
}

func TestConversationIDAdoptedOnceAndReused(t *testing.T) {
	sender := &scriptedSender{}
	sender.queue(SendResponse{ConversationID: 42, Response: "hi"})
	sender.queue(SendResponse{ConversationID: 42, Response: "again"})

	b, _ := newTestBridge(sender, nil)
	ctx := context.Background()

	if _, ok := b.ConversationID(); ok {
		t.Fatal("conversation id set before first turn")
	}

	b.Send(ctx, "first")
	if id, ok := b.ConversationID(); !ok || id != 42 {
		t.Fatalf("conversation id not adopted: %v %v", id, ok)
	}
	if sender.requests[0].ConversationID != nil {
		t.Fatal("first request must not carry a conversation id")
	}

	b.Send(ctx, "second")
	if got := sender.requests[1].ConversationID; got == nil || *got != 42 {
		t.Fatalf("second request did not reuse conversation id: %v", got)
	}
}

func TestMutatingToolCallSchedulesExactlyOneRefresh(t *testing.T) {
	var refreshes int
	sender := &scriptedSender{}
	sender.queue(SendResponse{
		ConversationID: 1,
		Response:       "Added buy groceries",
		ToolCalls: []ToolCall{
			{ToolName: "add_task"},
			{ToolName: "complete_task"},
		},
	})

	b, timers := newTestBridge(sender, func() { refreshes++ })
	b.Send(context.Background(), "Add buy groceries")

	if len(timers.fns) != 1 {
		t.Fatalf("expected exactly one scheduled refresh, got %d", len(timers.fns))
	}
	if timers.delays[0] != 500*time.Millisecond {
		t.Fatalf("unexpected refresh delay: %v", timers.delays[0])
	}
	if refreshes != 0 {
		t.Fatal("refresh ran before the delay elapsed")
	}

	timers.fns[0]()
	if refreshes != 1 {
		t.Fatalf("expected one refresh, got %d", refreshes)
	}
}

func TestNonMutatingToolCallsScheduleNoRefresh(t *testing.T) {
	tests := []struct {
		name  string
		calls []ToolCall
	}{
		{name: "no tool calls", calls: nil},
		{name: "read-only tools", calls: []ToolCall{{ToolName: "list_tasks"}, {ToolName: "get_task"}}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sender := &scriptedSender{}
			sender.queue(SendResponse{ConversationID: 1, Response: "ok", ToolCalls: tc.calls})

			b, timers := newTestBridge(sender, func() {})
			b.Send(context.Background(), "show my tasks")

			if len(timers.fns) != 0 {
				t.Fatalf("expected no scheduled refresh, got %d", len(timers.fns))
			}
		})
	}
}

func TestFailureAppendsApologyAndKeepsConversationID(t *testing.T) {
	sender := &scriptedSender{}
	sender.queue(SendResponse{ConversationID: 9, Response: "hello"})
	sender.queueErr(errors.New("connection refused"))

	b, timers := newTestBridge(sender, func() {})
	ctx := context.Background()

	b.Send(ctx, "first")
	reply, ok := b.Send(ctx, "second")
	if !ok {
		t.Fatal("failed turn still counts as submitted")
	}
	if reply.Role != RoleAssistant || reply.Content != apology {
		t.Fatalf("expected apology turn, got %#v", reply)
	}
	if id, ok := b.ConversationID(); !ok || id != 9 {
		t.Fatal("failure must not alter the conversation id")
	}
	if len(timers.fns) != 0 {
		t.Fatal("failure must not schedule a refresh")
	}
	if b.Busy() {
		t.Fatal("bridge stuck busy after failure")
	}
}

func TestSendWhileBusyIsRejected(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	sender := blockingSender{started: started, release: release}

	b := NewBridge(sender, "user-1", time.Millisecond, nil)
	done := make(chan struct{})
	go func() {
		b.Send(context.Background(), "slow turn")
		close(done)
	}()

	<-started
	if _, ok := b.Send(context.Background(), "eager second turn"); ok {
		t.Fatal("send while awaiting a response must be rejected")
	}
	close(release)
	<-done
}

type blockingSender struct {
	started chan struct{}
	release chan struct{}
}

func (s blockingSender) Send(ctx context.Context, userID string, req SendRequest) (SendResponse, error) {
	close(s.started)
	<-s.release
	return SendResponse{ConversationID: 1, Response: "ok"}, nil
}

func TestGreetingSeeded(t *testing.T) {
	b, _ := newTestBridge(&scriptedSender{}, nil)
	turns := b.Turns()
	if len(turns) != 1 || turns[0].Role != RoleAssistant || turns[0].Content != Greeting {
		t.Fatalf("expected seeded greeting, got %#v", turns)
	}
}
