// Package storage keeps local chat transcripts in SQLite so past
// assistant sessions can be reviewed with `taskflow history`. The
// server-side conversation id is recorded for reference only; a new
// client session always starts a fresh conversation.
package storage

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"taskflow/internal/chat"

	_ "modernc.org/sqlite"
)

// TranscriptMeta describes one recorded chat session.
type TranscriptMeta struct {
	ID             string `json:"id"`
	UserID         string `json:"user_id"`
	ConversationID int    `json:"conversation_id"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

// StoredTurn is a turn plus the tool manifest recorded with it.
type StoredTurn struct {
	chat.Turn
	ToolNames []string
}

// TranscriptStore persists transcripts in a WAL-mode SQLite file.
type TranscriptStore struct {
	db   *sql.DB
	path string
}

func NewTranscriptStore(dbPath string) (*TranscriptStore, error) {
	dbPath = strings.TrimSpace(dbPath)
	if dbPath == "" {
		return nil, fmt.Errorf("sqlite db path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Pragmas are per connection; a single connection keeps them in
	// effect. One local client does not need a pool anyway.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("exec %q: %w", p, err)
		}
	}

	store := &TranscriptStore{db: db, path: dbPath}
	if err := store.ensureSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return store, nil
}

func (s *TranscriptStore) ensureSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS transcripts (
		id              TEXT PRIMARY KEY,
		user_id         TEXT NOT NULL DEFAULT '',
		conversation_id INTEGER NOT NULL DEFAULT 0,
		created_at      TEXT NOT NULL,
		updated_at      TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS turns (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		transcript_id TEXT NOT NULL REFERENCES transcripts(id) ON DELETE CASCADE,
		seq           INTEGER NOT NULL,
		role          TEXT NOT NULL,
		content       TEXT NOT NULL DEFAULT '',
		tool_names    TEXT NOT NULL DEFAULT '[]',
		created_at    TEXT NOT NULL,
		UNIQUE(transcript_id, seq)
	);

	CREATE INDEX IF NOT EXISTS idx_turns_transcript ON turns(transcript_id, seq);
	CREATE INDEX IF NOT EXISTS idx_transcripts_user ON transcripts(user_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *TranscriptStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// NewTranscriptID generates a transcript id.
func NewTranscriptID() string {
	buf := make([]byte, 4)
	_, _ = rand.Read(buf)
	return fmt.Sprintf("chat_%d_%s", time.Now().UTC().Unix(), hex.EncodeToString(buf))
}

// CreateTranscript starts a transcript for the given user and returns
// its id.
func (s *TranscriptStore) CreateTranscript(userID string) (string, error) {
	id := NewTranscriptID()
	now := nowUTC()
	_, err := s.db.Exec(`
		INSERT INTO transcripts (id, user_id, conversation_id, created_at, updated_at)
		VALUES (?, ?, 0, ?, ?)`,
		id, userID, now, now,
	)
	if err != nil {
		return "", fmt.Errorf("insert transcript: %w", err)
	}
	return id, nil
}

// SetConversationID records the server-assigned conversation id once
// the first turn establishes it.
func (s *TranscriptStore) SetConversationID(transcriptID string, conversationID int) error {
	_, err := s.db.Exec(`
		UPDATE transcripts SET conversation_id=?, updated_at=? WHERE id=?`,
		conversationID, nowUTC(), transcriptID,
	)
	if err != nil {
		return fmt.Errorf("update conversation id: %w", err)
	}
	return nil
}

// AppendTurn adds one turn at the end of a transcript.
func (s *TranscriptStore) AppendTurn(transcriptID string, turn chat.Turn, toolNames []string) error {
	transcriptID = strings.TrimSpace(transcriptID)
	if transcriptID == "" {
		return fmt.Errorf("transcript id is empty")
	}

	toolJSON := "[]"
	if len(toolNames) > 0 {
		data, err := json.Marshal(toolNames)
		if err == nil {
			toolJSON = string(data)
		}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var nextSeq int
	row := tx.QueryRow("SELECT COALESCE(MAX(seq)+1, 0) FROM turns WHERE transcript_id=?", transcriptID)
	if err := row.Scan(&nextSeq); err != nil {
		return fmt.Errorf("next seq: %w", err)
	}

	now := nowUTC()
	at := turn.At
	if at.IsZero() {
		at = time.Now()
	}
	if _, err := tx.Exec(`
		INSERT INTO turns (transcript_id, seq, role, content, tool_names, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		transcriptID, nextSeq, turn.Role, turn.Content, toolJSON, at.UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("insert turn: %w", err)
	}

	if _, err := tx.Exec("UPDATE transcripts SET updated_at=? WHERE id=?", now, transcriptID); err != nil {
		return fmt.Errorf("update transcript timestamp: %w", err)
	}

	return tx.Commit()
}

// ListTranscripts returns the user's transcripts, newest first.
func (s *TranscriptStore) ListTranscripts(userID string) ([]TranscriptMeta, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, conversation_id, created_at, updated_at
		FROM transcripts WHERE user_id=? ORDER BY updated_at DESC, rowid DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list transcripts: %w", err)
	}
	defer rows.Close()

	var metas []TranscriptMeta
	for rows.Next() {
		var meta TranscriptMeta
		if err := rows.Scan(&meta.ID, &meta.UserID, &meta.ConversationID,
			&meta.CreatedAt, &meta.UpdatedAt); err != nil {
			continue
		}
		metas = append(metas, meta)
	}
	return metas, rows.Err()
}

// LoadTurns returns a transcript's turns in order.
func (s *TranscriptStore) LoadTurns(transcriptID string) ([]StoredTurn, error) {
	rows, err := s.db.Query(`
		SELECT role, content, tool_names, created_at
		FROM turns WHERE transcript_id=? ORDER BY seq`, transcriptID)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer rows.Close()

	var turns []StoredTurn
	for rows.Next() {
		var (
			st        StoredTurn
			toolJSON  string
			createdAt string
		)
		if err := rows.Scan(&st.Role, &st.Content, &toolJSON, &createdAt); err != nil {
			continue
		}
		if toolJSON != "" && toolJSON != "[]" {
			var names []string
			if err := json.Unmarshal([]byte(toolJSON), &names); err == nil {
				st.ToolNames = names
			}
		}
		if at, err := time.Parse(time.RFC3339, createdAt); err == nil {
			st.At = at
		}
		turns = append(turns, st)
	}
	return turns, rows.Err()
}

// DeleteTranscript removes a transcript and its turns.
func (s *TranscriptStore) DeleteTranscript(transcriptID string) error {
	_, err := s.db.Exec("DELETE FROM transcripts WHERE id=?", transcriptID)
	if err != nil {
		return fmt.Errorf("delete transcript: %w", err)
	}
	return nil
}

func nowUTC() string {
	return time.Now().UTC().Format(time.RFC3339)
}
