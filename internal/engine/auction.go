package engine

import (
	"sort"

	"go.uber.org/zap"

	"github.com/SantoshMahanty/digital-ssp/internal/models"
)

// TieBreak ranks two line items with equal CPM; it reports whether a
// should be preferred over b. When nil, the auction falls back to
// ascending line item ID so identical inputs always produce identical
// winners.
type TieBreak func(a, b *models.LineItem) bool

// RunAuction selects the winning bid among eligible line items and
// caller-supplied external DSP bids.
//
// Internal candidates are partitioned into priority buckets and buckets
// are consumed in descending tier order: the first non-empty bucket
// decides the winning tier, and lower tiers are never consulted no
// matter how they are priced. Within the winning bucket candidates sort
// by CPM descending with a deterministic tie-break.
//
// An external bid takes over only when its price strictly exceeds the
// internal winner's. Whatever wins must still clear the floor; a winner
// below floor ends the auction with no fallback to lower buckets.
func RunAuction(req *models.AdRequest, eligible []*models.LineItem, floor float64, externalBids []models.Bid, tieBreak TieBreak, trace *DecisionTrace) *models.Bid {
	internal := selectInternalBid(req, eligible, tieBreak, trace)

	winner := internal
	if best := bestExternalBid(externalBids); best != nil {
		if winner == nil || best.Price > winner.Price {
			winner = best
		}
	}

	if winner == nil {
		return nil
	}
	if winner.Price < floor {
		zap.L().Debug("auction winner below floor",
			zap.String("req_id", req.ID),
			zap.Float64("price", winner.Price),
			zap.Float64("floor", floor))
		trace.AddNoFill(NoFillFloor, winner.Price, floor)
		return nil
	}

	trace.AddWinner(winner)
	return winner
}

// selectInternalBid picks the top line item of the highest non-empty
// priority bucket and wraps it in an internal bid carrying its declared
// CPM and a size-compatible creative.
func selectInternalBid(req *models.AdRequest, eligible []*models.LineItem, tieBreak TieBreak, trace *DecisionTrace) *models.Bid {
	if len(eligible) == 0 {
		return nil
	}

	buckets := make(map[int][]*models.LineItem)
	for _, li := range eligible {
		buckets[li.Priority] = append(buckets[li.Priority], li)
	}

	priorities := make([]int, 0, len(buckets))
	for p := range buckets {
		priorities = append(priorities, p)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(priorities)))

	// The highest tier present wins outright; priority strictly dominates
	// price across tiers.
	top := buckets[priorities[0]]
	trace.AddBucket(priorities[0], len(top))

	sort.SliceStable(top, func(i, j int) bool {
		if top[i].CPM != top[j].CPM {
			return top[i].CPM > top[j].CPM
		}
		if tieBreak != nil {
			return tieBreak(top[i], top[j])
		}
		return top[i].ID < top[j].ID
	})

	winner := top[0]
	bid := &models.Bid{
		Source:     models.BidSourceInternal,
		Price:      winner.CPM,
		LineItemID: winner.ID,
	}
	if c := FirstCompatibleCreative(req, winner); c != nil {
		bid.CreativeID = c.ID
		bid.Adm = c.Adm
	}
	return bid
}

// bestExternalBid returns the highest-priced external bid, preferring the
// lower line item / seat ordering only through slice stability. Nil when
// no external demand was supplied.
func bestExternalBid(bids []models.Bid) *models.Bid {
	var best *models.Bid
	for i := range bids {
		if best == nil || bids[i].Price > best.Price {
			best = &bids[i]
		}
	}
	if best == nil {
		return nil
	}
	b := *best
	b.Source = models.BidSourceDSP
	return &b
}
