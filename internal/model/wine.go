package model

// WineColor classifies a catalog item.
type WineColor string

const (
	ColorRed       WineColor = "red"
	ColorWhite     WineColor = "white"
	ColorRose      WineColor = "rose"
	ColorSparkling WineColor = "sparkling"
	ColorAny       WineColor = "any" // preference only, never stored on a wine
)

// Wine is one sellable catalog item, owned by a venue. During a
// recommendation request it is a read-only snapshot.
type Wine struct {
	ID           int64     `json:"id"`
	VenueID      int64     `json:"venue_id"`
	Name         string    `json:"name"`
	Color        WineColor `json:"color"`
	Price        float64   `json:"price"`
	Cost         float64   `json:"cost"`
	Available    bool      `json:"available"`
	Region       string    `json:"region,omitempty"`
	GrapeVariety string    `json:"grape_variety,omitempty"`
	Vintage      string    `json:"vintage,omitempty"`
	Description  string    `json:"description,omitempty"`
	TastingNotes string    `json:"tasting_notes,omitempty"`
}

// Margin returns the estimated per-bottle margin, floored at zero.
func (w Wine) Margin() float64 {
	m := w.Price - w.Cost
	if m < 0 {
		return 0
	}
	return m
}

// Venue is the restaurant the catalog belongs to.
type Venue struct {
	ID             int64   `json:"id"`
	Slug           string  `json:"slug"`
	Name           string  `json:"name"`
	SommelierStyle string  `json:"sommelier_style"`
	WelcomeMessage string  `json:"welcome_message,omitempty"`
	FeaturedWines  []int64 `json:"featured_wines,omitempty"` // at most 2 are honored
}

// RankedWine is one validated entry of a single-mode selection: a catalog
// wine promoted with the rank, rationale and best flag the model assigned.
type RankedWine struct {
	Wine   Wine   `json:"wine"`
	Rank   int    `json:"rank"`
	Reason string `json:"reason"`
	Best   bool   `json:"best"`
}

// Journey is an ephemeral group of wines meant to be tasted in sequence
// across a meal. It is persisted only as proposal rows sharing a journey
// index and batch id.
type Journey struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
	Wines  []Wine `json:"wines"`
}
