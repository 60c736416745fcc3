package ai

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/novatos-ai/assistant/backend/internal/analysis/intent"
	"github.com/novatos-ai/assistant/backend/internal/model/profile"
)

// Responses maps every non-none intent to its fixed reply.
type Responses map[intent.Label]string

// DefaultResponses returns the built-in replies for p.
func DefaultResponses(p profile.Profile) Responses {
	return Responses{
		intent.Greeting: fmt.Sprintf("Hello! Welcome to %s. I can tell you about our AI automation for dental clinics, walk you through our plans, or book a demo for you. What would you like to know?",
			p.Company),
		intent.Booking: fmt.Sprintf("I'd be happy to help you book a demo! I'm opening the booking form so you can pick a service, date and time. You can also book directly at %s.",
			p.BookingURL),
		intent.Pricing: "We offer three plans: Starter at $199/month, Professional at $499/month (our most popular), and Enterprise with custom pricing. Every plan comes with a 14-day free trial. Would you like details on a specific plan?",
		intent.Features: "Our platform includes an AI chatbot with RAG, 24/7 appointment booking with calendar integration, automated FAQ responses, lead collection with CRM integration, HIPAA-compliant security, and analytics & reporting. Which feature would you like to hear more about?",
		intent.Contact: fmt.Sprintf("You can reach our team at %s or %s. You can also book a call with us at %s.",
			p.ContactEmail, p.ContactPhone, p.BookingURL),
		intent.Acknowledgment: "You're welcome! Is there anything else I can help you with?",
	}
}

// Validate reports every intent without a usable reply and any entry keyed by
// an unknown intent.
func (r Responses) Validate() error {
	var errs []error
	for _, label := range intent.Labels() {
		if strings.TrimSpace(r[label]) == "" {
			errs = append(errs, fmt.Errorf("missing canned response for intent %q", label))
		}
	}
	known := make(map[intent.Label]struct{}, len(r))
	for _, label := range intent.Labels() {
		known[label] = struct{}{}
	}
	for label := range r {
		if _, ok := known[label]; !ok {
			errs = append(errs, fmt.Errorf("canned response for unsupported intent %q", label))
		}
	}
	return errors.Join(errs...)
}

// LoadResponses overlays the YAML mapping at path (intent name -> reply) on a
// copy of base. An empty path returns base unchanged.
func LoadResponses(path string, base Responses) (Responses, error) {
	out := make(Responses, len(base))
	for k, v := range base {
		out[k] = v
	}
	if path == "" {
		return out, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read responses file: %w", err)
	}

	var raw map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse responses file %s: %w", path, err)
	}

	for name, text := range raw {
		label, err := intent.Parse(name)
		if err != nil {
			return nil, fmt.Errorf("responses file %s: %w", path, err)
		}
		if label == intent.None {
			return nil, fmt.Errorf("responses file %s: intent %q cannot have a canned response", path, name)
		}
		out[label] = strings.TrimSpace(text)
	}
	return out, nil
}
