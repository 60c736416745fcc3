package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/novatos-ai/assistant/backend/internal/analysis/intent"
	"github.com/novatos-ai/assistant/backend/internal/knowledge"
	"github.com/novatos-ai/assistant/backend/internal/retrieval"
)

var (
	// ErrGenerationFailed marks a hard failure of the completion call. It
	// never carries partial output.
	ErrGenerationFailed = errors.New("generation failed")
	// ErrGeneratorUnavailable is wrapped by ErrGenerationFailed when no
	// generator was configured.
	ErrGeneratorUnavailable = errors.New("generator not configured")
)

const (
	DefaultTopK    = 3
	DefaultTimeout = 30 * time.Second

	// FallbackReply replaces completions too short to be useful.
	FallbackReply = "I'm not sure how to respond, could you rephrase?"

	minReplyRunes = 2
)

// OrchestratorConfig wires the orchestrator's collaborators.
type OrchestratorConfig struct {
	Generator    Generator
	Responses    Responses
	Chunks       []knowledge.Chunk
	SystemPrompt string
	TopK         int
	Timeout      time.Duration
	Logger       *zap.Logger
}

// Orchestrator turns a classified utterance into reply text: a canned reply
// for recognised intents, otherwise a retrieval-grounded completion. It keeps
// no conversation state between calls.
type Orchestrator struct {
	generator Generator
	responses Responses
	chunks    []knowledge.Chunk
	system    string
	topK      int
	timeout   time.Duration
	logger    *zap.Logger
}

// NewOrchestrator validates the canned replies and returns a ready orchestrator.
// A nil Generator is allowed; every retrieval request then fails with ErrGenerationFailed.
func NewOrchestrator(cfg OrchestratorConfig) (*Orchestrator, error) {
	if err := cfg.Responses.Validate(); err != nil {
		return nil, fmt.Errorf("invalid canned responses: %w", err)
	}

	topK := cfg.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Orchestrator{
		generator: cfg.Generator,
		responses: cfg.Responses,
		chunks:    cfg.Chunks,
		system:    cfg.SystemPrompt,
		topK:      topK,
		timeout:   timeout,
		logger:    logger,
	}, nil
}

// GenerationEnabled reports whether a generator is configured.
func (o *Orchestrator) GenerationEnabled() bool {
	return o.generator != nil
}

// Respond produces the reply for utterance classified as label.
func (o *Orchestrator) Respond(ctx context.Context, utterance string, label intent.Label) (string, error) {
	if label != intent.None {
		if reply, ok := o.responses[label]; ok {
			return reply, nil
		}
	}
	return o.generate(ctx, utterance)
}

func (o *Orchestrator) generate(ctx context.Context, utterance string) (string, error) {
	if o.generator == nil {
		return "", fmt.Errorf("%w: %w", ErrGenerationFailed, ErrGeneratorUnavailable)
	}

	chunks := retrieval.TopK(utterance, o.chunks, o.topK)
	req := Request{
		System:    o.system,
		Context:   BuildContext(chunks),
		Utterance: utterance,
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	started := time.Now()
	text, err := o.generator.Generate(ctx, req)
	if err != nil {
		o.logger.Warn("generation failed",
			zap.Error(err),
			zap.Int("context_chunks", len(chunks)),
			zap.Duration("elapsed", time.Since(started)),
		)
		return "", fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}

	reply := strings.TrimSpace(text)
	if utf8.RuneCountInString(reply) < minReplyRunes {
		o.logger.Info("degenerate completion replaced with fallback", zap.Int("length", len(reply)))
		return FallbackReply, nil
	}

	o.logger.Debug("generated reply",
		zap.Int("context_chunks", len(chunks)),
		zap.Int("length", len(reply)),
		zap.Duration("elapsed", time.Since(started)),
	)
	return reply, nil
}
