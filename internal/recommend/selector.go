package recommend

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/liber-ai/sommelier/internal/model"
	"github.com/liber-ai/sommelier/pkg/anthropic"
)

// RawSelection is the selection stage's untrusted output. Nothing in it is
// promoted to domain types until the validator has reconciled it against
// the catalog.
type RawSelection struct {
	Wines    []RawWine    `json:"wines"`
	Journeys []RawJourney `json:"journeys"`
}

// RawWine is one wine as the model returned it: id and name may be wrong,
// ranks may collide, best flags may be missing or duplicated.
type RawWine struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Rank   int    `json:"rank"`
	Reason string `json:"reason"`
	Best   bool   `json:"best"`
}

// RawJourney is one proposed journey, unverified.
type RawJourney struct {
	Name   string    `json:"name"`
	Reason string    `json:"reason"`
	Wines  []RawWine `json:"wines"`
}

// Empty reports whether the selection carries nothing usable.
func (s RawSelection) Empty() bool {
	return len(s.Wines) == 0 && len(s.Journeys) == 0
}

// selector runs the single structured-selection call against the model.
type selector struct {
	client      anthropic.Client
	model       string
	timeout     time.Duration
	temperature float64
	maxTokens   int64
}

// Select issues the selection call and parses its JSON. A transport error
// is returned to the caller; malformed output is not an error, it comes
// back as an empty RawSelection for the validator to handle.
func (s *selector) Select(ctx context.Context, system, prompt string, history []anthropic.Message) (RawSelection, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	temp := s.temperature
	msgs := append(history, anthropic.Message{Role: "user", Content: prompt})

	resp, err := s.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       s.model,
		MaxTokens:   s.maxTokens,
		System:      anthropic.BuildCachedSystemBlocks(system),
		Messages:    msgs,
		Temperature: &temp,
	})
	if err != nil {
		return RawSelection{}, eris.Wrap(err, "recommend: selection call")
	}
	resp.Usage.LogCost(s.model, "selection")

	var raw RawSelection
	cleaned := cleanJSON(extractText(resp))
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		zap.L().Warn("selection output unparseable",
			zap.String("model", s.model),
			zap.Error(err))
		return RawSelection{}, nil
	}
	return raw, nil
}

// resolveFeatured returns the venue's featured wines that survived the
// filter, at most two.
func resolveFeatured(venue *model.Venue, filtered []model.Wine) []model.Wine {
	byID := make(map[int64]model.Wine, len(filtered))
	for _, w := range filtered {
		byID[w.ID] = w
	}
	var out []model.Wine
	for _, id := range venue.FeaturedWines {
		if w, ok := byID[id]; ok {
			out = append(out, w)
			if len(out) == 2 {
				break
			}
		}
	}
	return out
}

// extractText concatenates all text content blocks.
func extractText(resp *anthropic.MessageResponse) string {
	if resp == nil {
		return ""
	}
	var sb strings.Builder
	for _, b := range resp.Content {
		if b.Type == "" || b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}
	return sb.String()
}

// cleanJSON strips markdown fences and extracts the JSON object.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}
	return strings.TrimSpace(text)
}
