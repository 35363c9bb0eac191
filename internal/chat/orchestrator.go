package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"

	"github.com/brightpath/lessond/internal/retrieval"
)

// Retriever supplies ranked chunks for the grounding context.
type Retriever interface {
	Search(ctx context.Context, docID, query string, limit int) ([]retrieval.Result, error)
}

// TitleLookup resolves a document's title for the grounding prompt.
type TitleLookup interface {
	GetTitle(ctx context.Context, id string) (string, error)
}

// Sink receives incremental answer text as it is generated.
type Sink func(ctx context.Context, chunk []byte) error

// Orchestrator runs retrieval-grounded chat turns.
type Orchestrator struct {
	retriever Retriever
	titles    TitleLookup
	model     llms.Model
	topK      int
	logger    *zap.Logger
}

// NewOrchestrator creates a chat orchestrator. topK bounds the number of
// chunks placed into the grounding context.
func NewOrchestrator(retriever Retriever, titles TitleLookup, model llms.Model, topK int, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		retriever: retriever,
		titles:    titles,
		model:     model,
		topK:      topK,
		logger:    logger,
	}
}

// Stream runs one chat turn: validate, retrieve grounding context, then
// stream a grounded answer into sink. It returns the Turn for
// observability together with the first error encountered.
//
// Retrieval failures (unknown document, provider outage) abort the turn
// before any generation call. A generation failure mid-stream terminates
// the stream and is returned wrapped in ErrGenerationFailed; no retry is
// attempted here. Cancelling ctx stops both stages promptly.
func (o *Orchestrator) Stream(ctx context.Context, req Request, sink Sink) (*Turn, error) {
	turn := &Turn{ID: uuid.NewString(), stage: StageReceived}
	logger := o.logger.With(
		zap.String("turn_id", turn.ID),
		zap.String("document_id", req.DocumentID),
	)

	if err := req.Validate(); err != nil {
		turn.setStage(StageFailed)
		return turn, err
	}

	// The title lookup doubles as the document-existence check, so an
	// unknown document fails fast with NotFound.
	title, err := o.titles.GetTitle(ctx, req.DocumentID)
	if err != nil {
		turn.setStage(o.failureStage(ctx))
		return turn, fmt.Errorf("resolving document: %w", err)
	}

	turn.setStage(StageRetrieving)
	start := time.Now()
	results, err := o.retriever.Search(ctx, req.DocumentID, req.Query(), o.topK)
	if err != nil {
		turn.setStage(o.failureStage(ctx))
		return turn, fmt.Errorf("retrieving context: %w", err)
	}

	// Context keeps the ranked order: the most similar chunk comes first,
	// where model attention is strongest.
	texts := make([]string, len(results))
	for i, r := range results {
		texts[i] = r.Text
	}
	contextBlock := strings.Join(texts, "\n\n")
	turn.setStage(StageContextAssembled)

	logger.Debug("context assembled",
		zap.Int("chunks", len(results)),
		zap.Duration("retrieval_duration", time.Since(start)),
	)

	messages := buildMessages(systemPrompt(title, contextBlock), req.Messages)

	turn.setStage(StageGenerating)
	_, err = o.model.GenerateContent(ctx, messages,
		llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
			return sink(ctx, chunk)
		}),
	)
	if err != nil {
		if ctx.Err() != nil {
			turn.setStage(StageCancelled)
			return turn, ctx.Err()
		}
		turn.setStage(StageFailed)
		return turn, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	turn.setStage(StageCompleted)
	logger.Info("chat turn completed", zap.Duration("duration", time.Since(start)))
	return turn, nil
}

// failureStage distinguishes caller cancellation from genuine failure.
func (o *Orchestrator) failureStage(ctx context.Context) Stage {
	if ctx.Err() != nil {
		return StageCancelled
	}
	return StageFailed
}

// systemPrompt binds the assistant to the document's title and the
// retrieved context: answer only from the context, decline politely when
// the answer is not in it, and reply in the question's language.
func systemPrompt(title, contextBlock string) string {
	var b strings.Builder
	b.WriteString("You are a helpful assistant guiding learners through a lesson.\n")
	b.WriteString(fmt.Sprintf("The current lesson is: %q\n\n", title))
	b.WriteString("Use only the following lesson context to answer questions:\n")
	b.WriteString(contextBlock)
	b.WriteString("\n\nAnswer clearly and simply. If the answer is not contained in the context, say so politely instead of guessing.\n")
	b.WriteString("Always respond in the same language as the question.")
	return b.String()
}

// buildMessages converts the turn history into model messages, prefixed by
// the grounding system prompt.
func buildMessages(system string, history []Message) []llms.MessageContent {
	messages := make([]llms.MessageContent, 0, len(history)+1)
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, system))
	for _, m := range history {
		switch m.Role {
		case RoleAssistant:
			messages = append(messages, llms.TextParts(llms.ChatMessageTypeAI, m.Content))
		case RoleSystem:
			messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, m.Content))
		default:
			messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, m.Content))
		}
	}
	return messages
}
