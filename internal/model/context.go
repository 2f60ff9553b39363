package model

import "math"

// Phase is the coarse state of a conversation. Transitions are one-way:
// a session that has started recommending never returns to opening.
type Phase string

const (
	PhaseOpening      Phase = "opening"
	PhaseRecommending Phase = "recommending"
)

// BudgetBucket is a coarse per-bottle spend signal collected before the
// conversation. Aliases from the intake form map onto the three buckets.
type BudgetBucket string

const (
	BudgetBase    BudgetBucket = "base"
	BudgetSpinto  BudgetBucket = "spinto"
	BudgetNoLimit BudgetBucket = "nolimit"
)

// CanonicalBudget folds intake-form aliases onto a bucket. Unknown values
// fall through to nolimit so a bad alias never blocks the catalog.
func CanonicalBudget(s string) BudgetBucket {
	switch s {
	case "base", "low":
		return BudgetBase
	case "spinto", "medium":
		return BudgetSpinto
	default:
		return BudgetNoLimit
	}
}

// budgetTolerance lets a bottle slightly over the stated budget through.
const budgetTolerance = 1.15

// Preferences holds the pre-conversation intake answers.
type Preferences struct {
	Color        WineColor    `json:"color,omitempty"`
	Mode         ProposalMode `json:"mode,omitempty"`
	Budget       BudgetBucket `json:"budget,omitempty"`
	BudgetAmount float64      `json:"budget_amount,omitempty"` // euros per bottle; overrides Budget when > 0
	Guests       int          `json:"guests,omitempty"`
	BottleCount  int          `json:"bottle_count,omitempty"` // journey mode; derived from guests when 0
}

// Ceiling returns the per-bottle price ceiling, tolerance already applied,
// or 0 when the budget is unbounded.
func (p Preferences) Ceiling() float64 {
	if p.BudgetAmount > 0 {
		return p.BudgetAmount * budgetTolerance
	}
	switch p.Budget {
	case BudgetBase:
		return 20 * budgetTolerance
	case BudgetSpinto:
		return 40 * budgetTolerance
	default:
		return 0
	}
}

// BottlesNeeded sizes a journey from the party: one bottle pours six
// glasses, each guest drinks one glass per course over two courses.
// Fractions above one half round up.
func (p Preferences) BottlesNeeded() int {
	if p.BottleCount > 0 {
		return p.BottleCount
	}
	guests := p.Guests
	if guests <= 0 {
		guests = 2
	}
	total := float64(guests*2) / 6.0
	n := int(math.Floor(total))
	if total-float64(n) > 0.5 {
		n++
	}
	if n < 1 {
		n = 1
	}
	return n
}

// Dish is a menu item the party ordered, used for pairing hints.
type Dish struct {
	Name           string `json:"name"`
	Category       string `json:"category,omitempty"`
	MainIngredient string `json:"main_ingredient,omitempty"`
}

// ConversationContext is the per-session state the recommendation engine
// reads and advances. It is persisted as a JSON document on the session;
// the phase is stored, never re-inferred from the transcript.
type ConversationContext struct {
	Phase        Phase       `json:"phase"`
	Preferences  Preferences `json:"preferences"`
	Dishes       []Dish      `json:"dishes,omitempty"`
	MessageCount int         `json:"message_count"`
}
