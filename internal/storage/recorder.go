package storage

import (
	"taskflow/internal/chat"
)

// TurnRecorder adapts a TranscriptStore to the bridge's Recorder
// interface, bound to one transcript. Recording is best effort: a
// storage failure must never break the chat flow.
type TurnRecorder struct {
	store        *TranscriptStore
	transcriptID string
	convID       func() (int, bool)
	convSaved    bool
}

// NewTurnRecorder starts a transcript for the user and returns a
// recorder bound to it. convID reports the bridge's conversation id
// once established so it can be stamped onto the transcript row.
func NewTurnRecorder(store *TranscriptStore, userID string, convID func() (int, bool)) (*TurnRecorder, error) {
	id, err := store.CreateTranscript(userID)
	if err != nil {
		return nil, err
	}
	return &TurnRecorder{store: store, transcriptID: id, convID: convID}, nil
}

// RecordTurn implements chat.Recorder.
func (r *TurnRecorder) RecordTurn(turn chat.Turn, toolNames []string) {
	_ = r.store.AppendTurn(r.transcriptID, turn, toolNames)
	if !r.convSaved && r.convID != nil {
		if id, ok := r.convID(); ok {
			if r.store.SetConversationID(r.transcriptID, id) == nil {
				r.convSaved = true
			}
		}
	}
}
