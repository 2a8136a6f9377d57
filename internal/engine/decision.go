// Package engine contains the ad decision core: targeting evaluation,
// pacing gates, floor price computation and the priority-bucket auction,
// sequenced by Decide into a single verdict per request.
//
// The engine is pure computation over caller-supplied snapshots. It holds
// no state between calls, never mutates its inputs, and requires no
// locks: concurrent decisions are safe as long as each call gets its own
// request and line item snapshot. Delivered-impression counters are read
// from the snapshot at decision time; advancing them after a fill is the
// delivery-logging collaborator's job.
package engine

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/SantoshMahanty/digital-ssp/internal/models"
)

// NoFillReason tags the business outcome when no campaign fills the
// impression.
type NoFillReason string

const (
	// NoFillTargeting: no line item survived the targeting matcher.
	NoFillTargeting NoFillReason = "targeting"
	// NoFillPacing: line items matched targeting but all were pacing-blocked.
	NoFillPacing NoFillReason = "pacing"
	// NoFillFloor: an auction winner existed but priced below the floor.
	NoFillFloor NoFillReason = "floor"
)

// Verdict is the outcome of one decision: either a winning bid or a
// no-fill reason, always accompanied by the full trace.
type Verdict struct {
	Winner       *models.Bid    `json:"winner,omitempty"`
	NoFillReason NoFillReason   `json:"no_fill_reason,omitempty"`
	Trace        *DecisionTrace `json:"trace"`
}

// Filled reports whether the impression was won.
func (v *Verdict) Filled() bool {
	return v != nil && v.Winner != nil
}

// Options carries the per-decision collaborator inputs: the configured
// floor rule list (in caller-defined order), an optional private deal,
// external DSP bids gathered by the caller, and an optional tie-break
// policy for equal-priced candidates.
type Options struct {
	FloorRules   []models.FloorRule
	Deal         *models.Deal
	ExternalBids []models.Bid
	TieBreak     TieBreak
}

// Decide evaluates one ad request against a snapshot of line items and
// returns a verdict. The returned trace is non-empty for every verdict.
//
// Malformed inputs fail fast with ErrInvalidRequest or ErrInvalidLineItem;
// all no-fill conditions are recovered locally into the verdict and never
// surface as errors.
func Decide(req *models.AdRequest, lineItems []*models.LineItem, opts Options, now time.Time) (*Verdict, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	for _, li := range lineItems {
		if err := li.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidLineItem, err)
		}
	}

	trace := &DecisionTrace{ReqID: req.ID}

	var eligible []*models.LineItem
	targetingPassed := 0
	for _, li := range lineItems {
		ok, reason := MatchesTargeting(req, li)
		if !ok {
			trace.AddFilter(li.ID, reason)
			continue
		}
		targetingPassed++

		allowed, note := PacingAllows(li, now)
		if !allowed {
			trace.AddFilter(li.ID, ReasonPacingConstraint)
			continue
		}

		eligible = append(eligible, li)
		trace.AddEligible(li, note)
	}

	zap.L().Debug("candidates filtered",
		zap.String("req_id", req.ID),
		zap.Int("total", len(lineItems)),
		zap.Int("eligible", len(eligible)))

	if len(eligible) == 0 && len(opts.ExternalBids) == 0 {
		reason := NoFillTargeting
		if targetingPassed > 0 {
			reason = NoFillPacing
		}
		trace.AddNoFill(reason, 0, 0)
		return &Verdict{NoFillReason: reason, Trace: trace}, nil
	}

	floor := ComputeFloorWithDeal(req, opts.FloorRules, opts.Deal)
	floorNote := ""
	if opts.Deal != nil {
		floorNote = "deal_override"
	}
	trace.AddFloor(floor, floorNote)

	winner := RunAuction(req, eligible, floor, opts.ExternalBids, opts.TieBreak, trace)
	if winner == nil {
		return &Verdict{NoFillReason: NoFillFloor, Trace: trace}, nil
	}

	zap.L().Debug("request filled",
		zap.String("req_id", req.ID),
		zap.String("line_item_id", winner.LineItemID),
		zap.Float64("price", winner.Price))
	return &Verdict{Winner: winner, Trace: trace}, nil
}
