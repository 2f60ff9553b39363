package recommend

import (
	"fmt"
	"strings"

	"github.com/liber-ai/sommelier/internal/model"
	"github.com/liber-ai/sommelier/pkg/anthropic"
)

// catalogLines renders the filtered catalog for the selection prompt, one
// wine per line. Every filtered wine goes in, never a sample.
func catalogLines(wines []model.Wine) string {
	var sb strings.Builder
	for _, w := range wines {
		notes := w.TastingNotes
		if notes == "" {
			notes = w.Description
		}
		fmt.Fprintf(&sb, "%d|%s|%s|%.2f|%s|%s\n",
			w.ID, w.Name, w.Color, w.Price, w.GrapeVariety, notes)
	}
	return sb.String()
}

// dishLines summarizes what the table ordered.
func dishLines(dishes []model.Dish) string {
	if len(dishes) == 0 {
		return "not stated yet"
	}
	parts := make([]string, 0, len(dishes))
	for _, d := range dishes {
		s := d.Name
		if d.MainIngredient != "" {
			s += " (" + d.MainIngredient + ")"
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, "; ")
}

var pairingKeywords = []struct {
	hint  string
	words []string
}{
	{
		hint:  "fish and seafood call for lean whites or a delicate sparkling",
		words: []string{"fish", "pesce", "branzino", "orata", "tonno", "salmone", "seafood", "frutti di mare", "gamber", "calamari", "polpo"},
	},
	{
		hint:  "red meat wants a structured red with some tannin",
		words: []string{"beef", "manzo", "steak", "bistecca", "tagliata", "lamb", "agnello", "brasato", "cinghiale", "ossobuco"},
	},
	{
		hint:  "mushroom and truffle dishes are flattered by earthy reds",
		words: []string{"mushroom", "funghi", "porcini", "tartufo", "truffle"},
	},
	{
		hint:  "raw preparations need crisp acidity or bubbles",
		words: []string{"raw", "crudo", "tartare", "carpaccio", "ostrica", "oyster"},
	},
	{
		hint:  "dessert wines go with the dessert course only, never with savory dishes",
		words: []string{"dessert", "dolce", "tiramis", "torta", "cake", "gelato", "cheesecake"},
	},
}

// pairingHints derives coarse pairing guidance from the dish names, so the
// model leans the right way even when tasting notes are sparse.
func pairingHints(dishes []model.Dish) string {
	var hints []string
	for _, pk := range pairingKeywords {
		matched := false
		for _, d := range dishes {
			text := strings.ToLower(d.Name + " " + d.Category + " " + d.MainIngredient)
			for _, w := range pk.words {
				if strings.Contains(text, w) {
					matched = true
					break
				}
			}
			if matched {
				break
			}
		}
		if matched {
			hints = append(hints, pk.hint)
		}
	}
	return strings.Join(hints, ". ")
}

// historyMessages converts the last turns of the transcript into API
// messages, oldest first.
func historyMessages(msgs []model.Message) []anthropic.Message {
	out := make([]anthropic.Message, 0, len(msgs))
	for _, m := range msgs {
		role := "user"
		if m.Role == model.RoleAssistant {
			role = "assistant"
		}
		out = append(out, anthropic.Message{Role: role, Content: m.Content})
	}
	return out
}

const selectionSystemSingle = `You are the wine selection engine for a restaurant sommelier service.
You receive the venue's filtered wine catalog and the table's context, and you rank wines.
Respond with JSON only, no prose, no markdown fences.
Schema: {"wines": [{"id": <catalog id>, "name": "<catalog name>", "rank": <1..N>, "reason": "<one short sentence>", "best": <bool>}]}
Rules:
- Rank EVERY wine in the catalog from 1 (best fit) to N (worst fit). No omissions, no additions.
- Exactly one wine has "best": true, and it must be the rank-1 wine.
- Use only ids and names that appear in the catalog. Never invent a wine.
- Reasons reference the dishes and preferences, one sentence each.`

const selectionSystemJourney = `You are the wine selection engine for a restaurant sommelier service.
You receive the venue's filtered wine catalog and the table's context, and you compose tasting journeys.
Respond with JSON only, no prose, no markdown fences.
Schema: {"journeys": [{"name": "<short name>", "reason": "<one sentence>", "wines": [{"id": <catalog id>, "name": "<catalog name>", "reason": "<one short sentence>"}]}]}
Rules:
- Return 2 or 3 journeys. Each journey contains EXACTLY the requested number of wines.
- Order wines within a journey for drinking across the meal, lighter to fuller.
- Use only ids and names that appear in the catalog. Never invent a wine.`

// buildSelectionPrompt assembles the user message for the selection call.
func buildSelectionPrompt(venue *model.Venue, cc model.ConversationContext, wines []model.Wine, featured []model.Wine, userMsg string) string {
	prefs := cc.Preferences
	var sb strings.Builder

	fmt.Fprintf(&sb, "Venue: %s\n", venue.Name)
	fmt.Fprintf(&sb, "Dishes: %s\n", dishLines(cc.Dishes))
	fmt.Fprintf(&sb, "Guests: %d\n", prefs.Guests)
	fmt.Fprintf(&sb, "Preferences: color=%s, mode=%s, budget=%s\n", prefs.Color, prefs.Mode, describeBudget(prefs))
	if prefs.Mode == model.ModeJourney {
		fmt.Fprintf(&sb, "Journey size: exactly %d wines per journey\n", prefs.BottlesNeeded())
	}
	if hints := pairingHints(cc.Dishes); hints != "" {
		fmt.Fprintf(&sb, "Pairing guidance: %s\n", hints)
	}
	if len(featured) > 0 {
		ids := make([]string, 0, len(featured))
		for _, w := range featured {
			ids = append(ids, fmt.Sprintf("%d", w.ID))
		}
		fmt.Fprintf(&sb, "Featured wine ids: %s — prioritize these only if they fit the stated constraints.\n", strings.Join(ids, ", "))
	}
	fmt.Fprintf(&sb, "\nCatalog (id|name|color|price|grape|notes):\n%s", catalogLines(wines))
	if userMsg != "" {
		fmt.Fprintf(&sb, "\nGuest's latest message: %s\n", userMsg)
	}
	return sb.String()
}

func describeBudget(p model.Preferences) string {
	if p.BudgetAmount > 0 {
		return fmt.Sprintf("%.0f euro per bottle", p.BudgetAmount)
	}
	if p.Budget != "" {
		return string(p.Budget)
	}
	return "unstated"
}

// buildCommunicationSystem sets the sommelier persona for the prose call.
func buildCommunicationSystem(style Style) string {
	return fmt.Sprintf(`You are %s at a restaurant, speaking directly to the table.
Write plain prose only: no markdown, no lists, no headings.
Refer to wines by their exact catalog name and always state the price in euro.
Expand on the reasons you are given; do not merely repeat them.
Never mention a wine that is not in the selection you were handed.`, style.Voice)
}

// buildCommunicationPrompt renders the validated selection for the prose
// call. Single mode arrives already truncated to the top picks.
func buildCommunicationPrompt(cc model.ConversationContext, ranked []model.RankedWine, journeys []model.Journey, userMsg string) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Dishes: %s\nGuests: %d\n", dishLines(cc.Dishes), cc.Preferences.Guests)
	if hints := pairingHints(cc.Dishes); hints != "" {
		fmt.Fprintf(&sb, "Pairing guidance: %s\n", hints)
	}

	if len(journeys) > 0 {
		sb.WriteString("\nPresent these tasting journeys:\n")
		for i, j := range journeys {
			fmt.Fprintf(&sb, "Journey %d — %s (%s):\n", i+1, j.Name, j.Reason)
			for _, w := range j.Wines {
				fmt.Fprintf(&sb, "  %s, %.2f euro\n", w.Name, w.Price)
			}
		}
	} else {
		sb.WriteString("\nPresent these wines, best first:\n")
		for _, r := range ranked {
			label := "alternative"
			if r.Best {
				label = "primary recommendation"
			}
			fmt.Fprintf(&sb, "- %s, %.2f euro (%s): %s\n", r.Wine.Name, r.Wine.Price, label, r.Reason)
		}
	}

	if userMsg != "" {
		fmt.Fprintf(&sb, "\nGuest's latest message: %s\n", userMsg)
	}
	sb.WriteString("\nWrite the sommelier's reply now.")
	return sb.String()
}

// buildOpeningPrompt asks for a short welcome that recaps what we know and
// probes for special requirements. No wine may be named yet.
func buildOpeningPrompt(venue *model.Venue, style Style, cc model.ConversationContext) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are %s at %s.\n", style.Voice, venue.Name)
	fmt.Fprintf(&sb, "The table has just sat down. Dishes so far: %s. Guests: %d.\n",
		dishLines(cc.Dishes), cc.Preferences.Guests)
	sb.WriteString(`Write a short welcome (2-3 sentences, plain prose): greet them, briefly recap what you know about their table, and ask whether they have any special requirements or wine preferences.
Do NOT name, suggest, or hint at any specific wine yet.`)
	return sb.String()
}

// buildLegacyPrompt asks for a free-form recommendation in one call, used
// when the structured selection path is unavailable.
func buildLegacyPrompt(venue *model.Venue, style Style, cc model.ConversationContext, wines []model.Wine, userMsg string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are %s at %s, speaking directly to the table.\n", style.Voice, venue.Name)
	fmt.Fprintf(&sb, "Dishes: %s\nGuests: %d\n", dishLines(cc.Dishes), cc.Preferences.Guests)
	if hints := pairingHints(cc.Dishes); hints != "" {
		fmt.Fprintf(&sb, "Pairing guidance: %s\n", hints)
	}
	fmt.Fprintf(&sb, "\nWine list (name, color, price in euro):\n")
	for _, w := range wines {
		fmt.Fprintf(&sb, "- %s, %s, %.2f euro\n", w.Name, w.Color, w.Price)
	}
	if userMsg != "" {
		fmt.Fprintf(&sb, "\nGuest's latest message: %s\n", userMsg)
	}
	sb.WriteString(`
Recommend up to three wines from this list in plain prose. Use the exact names above and always state the price. Never mention a wine that is not on the list.`)
	return sb.String()
}
