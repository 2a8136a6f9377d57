package engine

import "github.com/SantoshMahanty/digital-ssp/internal/models"

// StepKind identifies the kind of a decision trace entry.
type StepKind string

const (
	StepFilter         StepKind = "filter"
	StepEligible       StepKind = "eligible"
	StepFloorComputed  StepKind = "floor_computed"
	StepBucketScanned  StepKind = "bucket_scanned"
	StepWinnerSelected StepKind = "winner_selected"
	StepNoFill         StepKind = "no_fill"
)

// FilterReason names the first targeting dimension (or the pacing gate)
// that excluded a line item.
type FilterReason string

const (
	ReasonInventoryMismatch FilterReason = "inventory_mismatch"
	ReasonKVMismatch        FilterReason = "kv_mismatch"
	ReasonGeoMismatch       FilterReason = "geo_mismatch"
	ReasonDeviceMismatch    FilterReason = "device_mismatch"
	ReasonNoCreativeSize    FilterReason = "no_compatible_creative"
	ReasonPacingConstraint  FilterReason = "pacing_constraint"
)

// Step is one entry in a decision trace. Only the fields relevant to the
// step kind are populated.
type Step struct {
	Kind       StepKind `json:"step"`
	LineItemID string   `json:"line_item_id,omitempty"`
	Reason     string   `json:"reason,omitempty"`
	Priority   int      `json:"priority,omitempty"`
	Candidates int      `json:"candidates,omitempty"`
	Price      float64  `json:"price,omitempty"`
	Floor      float64  `json:"floor,omitempty"`
	CreativeID string   `json:"creative_id,omitempty"`
	Note       string   `json:"note,omitempty"`
}

// DecisionTrace is the ordered, append-only log of one decision. It is
// created fresh per request, owned by the orchestrator for the lifetime
// of the call, and returned to the caller inside the Verdict. Retention
// beyond the call is the caller's concern.
type DecisionTrace struct {
	ReqID string `json:"req_id"`
	Steps []Step `json:"steps"`
}

// add appends a step. Nil-safe so components can trace unconditionally.
func (t *DecisionTrace) add(s Step) {
	if t == nil {
		return
	}
	t.Steps = append(t.Steps, s)
}

// AddFilter records a line item rejected before the auction.
func (t *DecisionTrace) AddFilter(lineItemID string, reason FilterReason) {
	t.add(Step{Kind: StepFilter, LineItemID: lineItemID, Reason: string(reason)})
}

// AddEligible records a line item that survived targeting and pacing.
// note carries pacing diagnostics such as a degenerate flight window.
func (t *DecisionTrace) AddEligible(li *models.LineItem, note string) {
	t.add(Step{Kind: StepEligible, LineItemID: li.ID, Priority: li.Priority, Price: li.CPM, Note: note})
}

// AddFloor records the computed floor. note distinguishes a deal override
// from the rule list.
func (t *DecisionTrace) AddFloor(floor float64, note string) {
	t.add(Step{Kind: StepFloorComputed, Floor: floor, Note: note})
}

// AddBucket records a priority bucket examined by the auction.
func (t *DecisionTrace) AddBucket(priority, candidates int) {
	t.add(Step{Kind: StepBucketScanned, Priority: priority, Candidates: candidates})
}

// AddWinner records the selected bid.
func (t *DecisionTrace) AddWinner(b *models.Bid) {
	t.add(Step{Kind: StepWinnerSelected, LineItemID: b.LineItemID, CreativeID: b.CreativeID, Price: b.Price, Note: b.Source})
}

// AddNoFill records the terminal no-fill outcome with its reason.
func (t *DecisionTrace) AddNoFill(reason NoFillReason, price, floor float64) {
	t.add(Step{Kind: StepNoFill, Reason: string(reason), Price: price, Floor: floor})
}
