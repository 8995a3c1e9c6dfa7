package labeling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

const (
	maxKeywords = 10
	maxSamples  = 5
)

const systemPrompt = "You are a helpful assistant that labels topics concisely."

// Label is a generated topic name and description.
type Label struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// TextGenerator is the chat capability the generator consumes.
type TextGenerator interface {
	GenerateText(ctx context.Context, system, user string) (string, error)
}

// Generator produces human-readable topic labels from cluster keywords and
// sample documents. Callers supply their own fallback when it fails.
type Generator struct {
	gen TextGenerator
	log *zap.SugaredLogger
}

// NewGenerator wraps a text generator.
func NewGenerator(gen TextGenerator, log *zap.SugaredLogger) *Generator {
	return &Generator{gen: gen, log: log}
}

// Generate asks the model for a short name and one/two-sentence description.
// At most 10 keywords and 5 samples are used.
func (g *Generator) Generate(ctx context.Context, keywords, samples []string) (Label, error) {
	if len(keywords) > maxKeywords {
		keywords = keywords[:maxKeywords]
	}
	if len(samples) > maxSamples {
		samples = samples[:maxSamples]
	}

	raw, err := g.gen.GenerateText(ctx, systemPrompt, buildPrompt(keywords, samples))
	if err != nil {
		return Label{}, err
	}

	label, err := parseLabel(raw)
	if err != nil {
		g.log.Warnw("Malformed label response", "error", err, "response", raw)
		return Label{}, err
	}
	return label, nil
}

func buildPrompt(keywords, samples []string) string {
	var b strings.Builder
	b.WriteString("You are analyzing topics from a \"wishing well\" app where people submit wishes.\n\n")
	b.WriteString("Given the following information about a topic:\n")
	b.WriteString("- Top words: " + strings.Join(keywords, ", ") + "\n")
	b.WriteString("- Sample wishes from this topic:\n")
	for _, doc := range samples {
		b.WriteString("- " + doc + "\n")
	}
	b.WriteString("\nGenerate a concise, human-readable label and description for this topic.\n\n")
	b.WriteString("Return your response in this exact JSON format (no markdown, no explanation):\n")
	b.WriteString("{\n")
	b.WriteString("    \"name\": \"Short, catchy topic name (3-6 words)\",\n")
	b.WriteString("    \"description\": \"Brief description of what kinds of wishes belong here (1-2 sentences)\"\n")
	b.WriteString("}\n\n")
	b.WriteString("Examples of good names:\n")
	b.WriteString("- \"World Peace & Harmony\"\n")
	b.WriteString("- \"Financial Freedom\"\n")
	b.WriteString("- \"Health & Longevity\"\n")
	b.WriteString("- \"Travel & Adventure\"\n")
	b.WriteString("- \"Skills & Knowledge\"\n\n")
	b.WriteString("Make the name sound natural and appealing, like a category in a wish catalog.\n")
	return b.String()
}

// parseLabel decodes the model's JSON, tolerating markdown code fences.
func parseLabel(raw string) (Label, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSuffix(strings.TrimSpace(raw), "```")
		raw = strings.TrimSpace(raw)
	}

	var label Label
	if err := json.Unmarshal([]byte(raw), &label); err != nil {
		return Label{}, fmt.Errorf("invalid label JSON: %w", err)
	}
	if label.Name == "" {
		return Label{}, errors.New("label response missing name")
	}
	return label, nil
}

// Fallback builds a deterministic label straight from the keywords. Used
// when the generator is unavailable so a run never blocks on labeling.
func Fallback(keywords []string) Label {
	if len(keywords) > maxKeywords {
		keywords = keywords[:maxKeywords]
	}
	head := keywords
	if len(head) > 3 {
		head = head[:3]
	}
	return Label{
		Name:        "Topic: " + strings.Join(head, ", "),
		Description: "Keywords: " + strings.Join(keywords, ", "),
	}
}
