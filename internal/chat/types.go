package chat

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

var (
	// ErrInvalidTurn indicates a malformed chat turn: missing document id,
	// no messages, or a last message that is not user-authored text.
	ErrInvalidTurn = errors.New("invalid chat turn")

	// ErrGenerationFailed indicates the generation model failed before or
	// during streaming.
	ErrGenerationFailed = errors.New("answer generation failed")
)

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one entry in a chat turn's history.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Request is a chat turn: the prior conversation plus the new query,
// targeted at one document. Nothing here is persisted.
type Request struct {
	DocumentID string    `json:"documentId"`
	Messages   []Message `json:"messages"`
}

// Validate checks the turn shape. The last message must be user-authored
// and non-blank, since it is the retrieval query.
func (r Request) Validate() error {
	if strings.TrimSpace(r.DocumentID) == "" {
		return fmt.Errorf("%w: document id is required", ErrInvalidTurn)
	}
	if len(r.Messages) == 0 {
		return fmt.Errorf("%w: messages are required", ErrInvalidTurn)
	}
	last := r.Messages[len(r.Messages)-1]
	if last.Role != RoleUser {
		return fmt.Errorf("%w: last message must be user-authored", ErrInvalidTurn)
	}
	if strings.TrimSpace(last.Content) == "" {
		return fmt.Errorf("%w: message content is required", ErrInvalidTurn)
	}
	return nil
}

// Query returns the retrieval query for the turn: the trimmed content of
// the final user message.
func (r Request) Query() string {
	if len(r.Messages) == 0 {
		return ""
	}
	return strings.TrimSpace(r.Messages[len(r.Messages)-1].Content)
}

// Stage is a chat turn's position in its processing pipeline.
type Stage string

const (
	StageReceived         Stage = "received"
	StageRetrieving       Stage = "retrieving"
	StageContextAssembled Stage = "context_assembled"
	StageGenerating       Stage = "generating"
	StageCompleted        Stage = "completed"
	StageFailed           Stage = "failed"
	StageCancelled        Stage = "cancelled"
)

// Turn tracks one chat turn's progress through the pipeline. Returned to
// callers for logging and observability; turns are never persisted.
type Turn struct {
	// ID tags the turn in logs.
	ID string

	mu    sync.Mutex
	stage Stage
}

// Stage returns the turn's current pipeline stage.
func (t *Turn) Stage() Stage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stage
}

func (t *Turn) setStage(s Stage) {
	t.mu.Lock()
	t.stage = s
	t.mu.Unlock()
}
