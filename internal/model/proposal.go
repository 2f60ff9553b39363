package model

import "time"

// ProposalMode records how a proposal batch was produced.
type ProposalMode string

const (
	ModeSingle  ProposalMode = "single"
	ModeJourney ProposalMode = "journey"
)

// Proposal is one wine offered to a guest, captured with the price and
// margin in effect at proposal time so later catalog edits do not rewrite
// history. Rows sharing a BatchID were offered in the same assistant turn.
type Proposal struct {
	ID           int64        `json:"id"`
	SessionID    int64        `json:"session_id"`
	MessageID    int64        `json:"message_id,omitempty"`
	WineID       int64        `json:"wine_id"`
	BatchID      string       `json:"batch_id"`
	Mode         ProposalMode `json:"mode"`
	Rank         int          `json:"rank"`
	JourneyIndex int          `json:"journey_index,omitempty"` // 1-based; 0 in single mode
	Price        float64      `json:"price"`
	Margin       float64      `json:"margin"`
	Reason       string       `json:"reason,omitempty"`
	Best         bool         `json:"best"`
	Selected     bool         `json:"selected"`
	SelectedAt   *time.Time   `json:"selected_at,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}

// Recommendation is the engine's answer for one guest turn: the reply
// text plus the structured selection behind it.
type Recommendation struct {
	Message     string       `json:"message"`
	Mode        ProposalMode `json:"mode"`
	Opening     bool         `json:"opening,omitempty"`
	Wines       []RankedWine `json:"wines,omitempty"`        // top 3 in single mode
	AllRankings []RankedWine `json:"all_rankings,omitempty"` // full validated ranking
	Journeys    []Journey    `json:"journeys,omitempty"`
	WineIDs     []int64      `json:"wine_ids,omitempty"`
	BatchID     string       `json:"batch_id,omitempty"`
}
