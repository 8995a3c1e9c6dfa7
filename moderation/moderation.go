package moderation

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/wishingwell/backend/openai"
)

// Moderator is the external moderation capability the gate consumes.
type Moderator interface {
	Moderate(ctx context.Context, input string) (*openai.ModerationResult, error)
	ModerationModel() string
}

// Gate decides whether submitted content may be stored. It fails closed: if
// the moderation service is unreachable the content is rejected, never
// silently accepted.
type Gate struct {
	moderator Moderator
	log       *zap.SugaredLogger
}

// NewGate wraps a moderator.
func NewGate(moderator Moderator, log *zap.SugaredLogger) *Gate {
	return &Gate{moderator: moderator, log: log}
}

// Check returns whether the content is accepted and, if not, the rejection
// reason.
func (g *Gate) Check(ctx context.Context, content string) (bool, string) {
	result, err := g.moderator.Moderate(ctx, content)
	if err != nil {
		g.log.Errorw("Moderation service error, rejecting content", "error", err)
		return false, fmt.Sprintf("Moderation service error: %v", err)
	}
	if result.Flagged {
		return false, fmt.Sprintf("Content flagged for: %s", strings.Join(result.Categories, ", "))
	}
	return true, ""
}

// Model reports the moderation model identifier for audit records.
func (g *Gate) Model() string {
	return g.moderator.ModerationModel()
}
