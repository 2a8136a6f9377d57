package models

// Bid price sources.
const (
	BidSourceInternal = "internal"
	BidSourceDSP      = "dsp"
)

// Bid is a priced claim on the impression, either the internal auction
// winner or an external DSP response supplied by the caller.
type Bid struct {
	Source     string  `json:"source"`
	Price      float64 `json:"price"`
	Seat       string  `json:"seat,omitempty"`
	Adm        string  `json:"adm,omitempty"`
	LineItemID string  `json:"line_item_id,omitempty"`
	CreativeID string  `json:"creative_id,omitempty"`
}
