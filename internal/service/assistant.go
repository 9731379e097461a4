// Package service holds the dashboard's business logic that sits between
// the HTTP handlers and external systems: the chat assistant and the event
// publisher.
package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/cvewatch/cve-dashboard/internal/model"
)

// relatedLimit caps the alerts quoted to the model.
const relatedLimit = 5

type AlertMatcher interface {
	MatchText(ctx context.Context, text string, limit int) ([]model.RelatedCVE, error)
}

type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Reply is the assistant's answer plus the alerts used as context.
type Reply struct {
	Response    string             `json:"response"`
	RelatedCVEs []model.RelatedCVE `json:"related_cves"`
}

// Assistant answers free-text questions grounded on matching alerts.  It
// keeps no conversation history.
type Assistant struct {
	alerts     AlertMatcher
	gen        Generator
	configured bool
}

// NewAssistant returns an assistant; configured is false when no API key
// was provided, in which case every question fails with
// ErrAssistantNotConfigured.
func NewAssistant(alerts AlertMatcher, gen Generator, configured bool) *Assistant {
	return &Assistant{alerts: alerts, gen: gen, configured: configured}
}

func (a *Assistant) Ask(ctx context.Context, message string) (Reply, error) {
	if !a.configured {
		return Reply{}, ErrAssistantNotConfigured
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return Reply{}, ErrEmptyMessage
	}

	related, err := a.alerts.MatchText(ctx, message, relatedLimit)
	if err != nil {
		return Reply{}, fmt.Errorf("match alerts: %w", err)
	}
	text, err := a.gen.Generate(ctx, BuildPrompt(message, related))
	if err != nil {
		return Reply{}, err
	}
	return Reply{Response: text, RelatedCVEs: related}, nil
}

// BuildPrompt renders the single-turn prompt sent to the model.
func BuildPrompt(message string, related []model.RelatedCVE) string {
	var b strings.Builder
	b.WriteString("You are a cybersecurity AI assistant specializing in CVE/CISA vulnerability analysis.\n\n")
	if len(related) > 0 {
		b.WriteString("Relevant CVEs from the database:\n")
		for _, r := range related {
			fmt.Fprintf(&b, "- %s: %s (Vendor: %s, Severity: %s)\n", r.CVEID, r.Title, r.Vendor, r.Severity)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "User question: %s\n\nProvide a helpful, concise response.", message)
	return b.String()
}
