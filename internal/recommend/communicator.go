package recommend

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/liber-ai/sommelier/internal/model"
	"github.com/liber-ai/sommelier/pkg/anthropic"
)

// communicator runs the prose call that turns a validated selection into
// the sommelier's reply.
type communicator struct {
	client    anthropic.Client
	model     string
	timeout   time.Duration
	maxTokens int64
}

// Communicate issues the prose call. The caller substitutes a template
// when the returned text is empty or the call errors.
func (c *communicator) Communicate(ctx context.Context, system, prompt string, history []anthropic.Message) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	msgs := append(history, anthropic.Message{Role: "user", Content: prompt})

	resp, err := c.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System:    anthropic.BuildCachedSystemBlocks(system),
		Messages:  msgs,
	})
	if err != nil {
		return "", eris.Wrap(err, "recommend: communication call")
	}
	resp.Usage.LogCost(c.model, "communication")

	return strings.TrimSpace(extractText(resp)), nil
}

// templateSingleMessage builds the deterministic reply for single mode:
// the best wine first as the primary recommendation, up to two
// alternatives, each with its reason verbatim.
func templateSingleMessage(ranked []model.RankedWine) string {
	if len(ranked) == 0 {
		return ""
	}

	var sb strings.Builder
	best := ranked[0]
	fmt.Fprintf(&sb, "My recommendation tonight is the %s at %.2f euro. %s",
		best.Wine.Name, best.Wine.Price, best.Reason)

	for i, r := range ranked[1:] {
		if i == 0 {
			sb.WriteString(" As alternatives, consider")
		}
		if i == 1 {
			sb.WriteString(", or")
		}
		fmt.Fprintf(&sb, " the %s at %.2f euro (%s)", r.Wine.Name, r.Wine.Price, strings.TrimRight(r.Reason, "."))
		if i == 1 {
			break
		}
	}
	if len(ranked) > 1 {
		sb.WriteString(".")
	}
	return sb.String()
}

// templateJourneyMessage builds the deterministic reply for journey mode:
// one block per journey, each wine with its price.
func templateJourneyMessage(journeys []model.Journey) string {
	if len(journeys) == 0 {
		return ""
	}

	var parts []string
	for i, j := range journeys {
		name := j.Name
		if name == "" {
			name = fmt.Sprintf("Journey %d", i+1)
		}
		var sb strings.Builder
		fmt.Fprintf(&sb, "%s: ", name)
		for k, w := range j.Wines {
			if k > 0 {
				sb.WriteString(", then ")
			}
			fmt.Fprintf(&sb, "the %s at %.2f euro", w.Name, w.Price)
		}
		sb.WriteString(".")
		if j.Reason != "" {
			sb.WriteString(" " + j.Reason)
		}
		parts = append(parts, sb.String())
	}
	return strings.Join(parts, "\n\n")
}

// templateOpeningMessage is the fallback welcome when the opening call
// fails. It recaps what we know and asks the requirements question.
func templateOpeningMessage(venue *model.Venue, style Style, cc model.ConversationContext) string {
	var sb strings.Builder
	if venue.WelcomeMessage != "" {
		sb.WriteString(venue.WelcomeMessage)
	} else {
		sb.WriteString(style.Intro)
	}
	if len(cc.Dishes) > 0 {
		fmt.Fprintf(&sb, " I see you have chosen %s.", dishLines(cc.Dishes))
	}
	sb.WriteString(" Before I suggest anything, do you have any special requirements or preferences for tonight's wine?")
	return sb.String()
}

// noWinesMessage is shown only when both recommendation paths came up
// empty for the stated constraints.
const noWinesMessage = "I'm sorry, we don't have wines matching your preferences at the moment. Would you like to loosen the budget or try a different color?"

// logFallback notes that the prose stage was substituted with a template.
func logFallback(stage string, err error) {
	if err != nil {
		zap.L().Warn("falling back to template message",
			zap.String("stage", stage),
			zap.Error(err))
		return
	}
	zap.L().Warn("empty model output, falling back to template message",
		zap.String("stage", stage))
}
