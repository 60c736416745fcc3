package ai

import (
	"fmt"
	"strings"

	"github.com/novatos-ai/assistant/backend/internal/knowledge"
	"github.com/novatos-ai/assistant/backend/internal/model/profile"
)

// BuildSystemPrompt frames the assistant's role and scope for the generator.
func BuildSystemPrompt(p profile.Profile) string {
	return fmt.Sprintf(`You are %s, the assistant for %s (%s).
Your scope: %s.
Use the provided context to answer the user's question. Only provide information based on the context provided.
If the question cannot be answered from the context, politely say you don't have that specific information and offer to help with something else.

Be %s. If someone asks about booking a demo or scheduling, mention they can book directly at %s.
For anything you cannot resolve, point the user to %s.`,
		p.Name,
		p.Company,
		p.Title,
		p.Scope,
		p.Tone,
		p.BookingURL,
		p.ContactEmail,
	)
}

// BuildContext joins chunk texts in the given order, separated by blank lines.
func BuildContext(chunks []knowledge.Chunk) string {
	parts := make([]string, 0, len(chunks))
	for _, ch := range chunks {
		parts = append(parts, strings.TrimSpace(ch.Text))
	}
	return strings.Join(parts, "\n\n")
}
