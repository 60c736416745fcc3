package ai

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
)

// Request is the input of a single completion.
type Request struct {
	System    string
	Context   string
	Utterance string
}

// Generator produces one textual completion for a request.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

const questionTemplate = `Context:
{context}

User Question: {query}

Please provide a helpful, accurate response based only on the context above:`

// EinoGenerator runs requests through a chat template + chat model chain.
type EinoGenerator struct {
	chain compose.Runnable[map[string]any, *schema.Message]
}

// NewEinoGenerator compiles the generation chain around chatModel.
func NewEinoGenerator(ctx context.Context, chatModel model.BaseChatModel) (*EinoGenerator, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("chat model is required")
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.UserMessage(questionTemplate),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile generation chain: %w", err)
	}

	return &EinoGenerator{chain: runnable}, nil
}

// Generate invokes the chain once and returns the completion text.
func (g *EinoGenerator) Generate(ctx context.Context, req Request) (string, error) {
	msg, err := g.chain.Invoke(ctx, map[string]any{
		"system":  req.System,
		"context": req.Context,
		"query":   req.Utterance,
	})
	if err != nil {
		return "", fmt.Errorf("failed to run generation chain: %w", err)
	}
	if msg == nil {
		return "", nil
	}
	return msg.Content, nil
}
