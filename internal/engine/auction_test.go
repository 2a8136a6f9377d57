package engine

import (
	"testing"

	"github.com/SantoshMahanty/digital-ssp/internal/models"
)

func auctionLineItem(id string, priority int, cpm float64) *models.LineItem {
	return &models.LineItem{
		ID:        id,
		Priority:  priority,
		CPM:       cpm,
		Creatives: []models.Creative{{ID: id + "-cr", Width: 728, Height: 90}},
	}
}

func auctionRequest() *models.AdRequest {
	return &models.AdRequest{
		ID:     "req-auction",
		AdUnit: "tech/home/hero",
		Sizes:  []models.Size{{W: 728, H: 90}},
		Geo:    "US",
		Device: models.DeviceDesktop,
	}
}

func TestAuctionPriorityDominatesPrice(t *testing.T) {
	a := auctionLineItem("li-a", 16, 15.0)
	b := auctionLineItem("li-b", 10, 50.0)

	trace := &DecisionTrace{ReqID: "req-auction"}
	winner := RunAuction(auctionRequest(), []*models.LineItem{b, a}, 5.0, nil, nil, trace)
	if winner == nil {
		t.Fatal("expected a winner")
	}
	if winner.LineItemID != "li-a" {
		t.Errorf("priority 16 must beat priority 10 regardless of price, got %s", winner.LineItemID)
	}
	if winner.Price != 15.0 {
		t.Errorf("winner carries its declared price, expected 15.0, got %.2f", winner.Price)
	}
	if winner.CreativeID != "li-a-cr" {
		t.Errorf("expected size-compatible creative li-a-cr, got %s", winner.CreativeID)
	}
}

func TestAuctionPriceWithinBucket(t *testing.T) {
	cheap := auctionLineItem("li-cheap", 8, 2.0)
	rich := auctionLineItem("li-rich", 8, 9.0)

	trace := &DecisionTrace{ReqID: "req-auction"}
	winner := RunAuction(auctionRequest(), []*models.LineItem{cheap, rich}, 0, nil, nil, trace)
	if winner == nil || winner.LineItemID != "li-rich" {
		t.Fatalf("expected highest CPM within the bucket to win, got %+v", winner)
	}
}

func TestAuctionDeterministicTieBreak(t *testing.T) {
	x := auctionLineItem("li-x", 8, 5.0)
	y := auctionLineItem("li-y", 8, 5.0)

	for i := 0; i < 10; i++ {
		trace := &DecisionTrace{ReqID: "req-auction"}
		winner := RunAuction(auctionRequest(), []*models.LineItem{y, x}, 0, nil, nil, trace)
		if winner == nil || winner.LineItemID != "li-x" {
			t.Fatalf("equal prices must tie-break by ascending id, got %+v", winner)
		}
	}
}

func TestAuctionCallerTieBreakIsAuthoritative(t *testing.T) {
	x := auctionLineItem("li-x", 8, 5.0)
	y := auctionLineItem("li-y", 8, 5.0)

	preferY := func(a, b *models.LineItem) bool { return a.ID == "li-y" }
	trace := &DecisionTrace{ReqID: "req-auction"}
	winner := RunAuction(auctionRequest(), []*models.LineItem{x, y}, 0, nil, preferY, trace)
	if winner == nil || winner.LineItemID != "li-y" {
		t.Fatalf("caller tie-break policy must override the id order, got %+v", winner)
	}
}

func TestAuctionFloorRejectionIsFinal(t *testing.T) {
	// The priority-16 winner prices below floor; the priority-10 bucket
	// holds a candidate above floor but must never be consulted.
	low := auctionLineItem("li-low", 16, 1.5)
	high := auctionLineItem("li-high", 10, 50.0)

	trace := &DecisionTrace{ReqID: "req-auction"}
	winner := RunAuction(auctionRequest(), []*models.LineItem{low, high}, 2.0, nil, nil, trace)
	if winner != nil {
		t.Fatalf("floor rejection must not fall through to lower buckets, got %+v", winner)
	}

	last := trace.Steps[len(trace.Steps)-1]
	if last.Kind != StepNoFill || last.Reason != string(NoFillFloor) {
		t.Errorf("expected trailing no_fill(floor) step, got %+v", last)
	}
	if last.Price != 1.5 || last.Floor != 2.0 {
		t.Errorf("no_fill step should carry price and floor, got %+v", last)
	}
}

func TestAuctionExternalBidComparison(t *testing.T) {
	internal := auctionLineItem("li-int", 10, 8.0)

	t.Run("strictly higher external bid wins", func(t *testing.T) {
		ext := []models.Bid{{Source: models.BidSourceDSP, Price: 9.0, Seat: "dsp-1"}}
		trace := &DecisionTrace{ReqID: "req-auction"}
		winner := RunAuction(auctionRequest(), []*models.LineItem{internal}, 0, ext, nil, trace)
		if winner == nil || winner.Source != models.BidSourceDSP {
			t.Fatalf("expected external winner, got %+v", winner)
		}
	})

	t.Run("equal external bid loses to internal", func(t *testing.T) {
		ext := []models.Bid{{Source: models.BidSourceDSP, Price: 8.0, Seat: "dsp-1"}}
		trace := &DecisionTrace{ReqID: "req-auction"}
		winner := RunAuction(auctionRequest(), []*models.LineItem{internal}, 0, ext, nil, trace)
		if winner == nil || winner.Source != models.BidSourceInternal {
			t.Fatalf("internal bid keeps ties, got %+v", winner)
		}
	})

	t.Run("external-only auction", func(t *testing.T) {
		ext := []models.Bid{
			{Source: models.BidSourceDSP, Price: 3.0, Seat: "dsp-1"},
			{Source: models.BidSourceDSP, Price: 7.0, Seat: "dsp-2"},
		}
		trace := &DecisionTrace{ReqID: "req-auction"}
		winner := RunAuction(auctionRequest(), nil, 0, ext, nil, trace)
		if winner == nil || winner.Seat != "dsp-2" {
			t.Fatalf("expected highest external bid, got %+v", winner)
		}
	})

	t.Run("external winner still gated by floor", func(t *testing.T) {
		ext := []models.Bid{{Source: models.BidSourceDSP, Price: 9.0, Seat: "dsp-1"}}
		trace := &DecisionTrace{ReqID: "req-auction"}
		winner := RunAuction(auctionRequest(), []*models.LineItem{internal}, 10.0, ext, nil, trace)
		if winner != nil {
			t.Fatalf("external bid below floor must no-fill, got %+v", winner)
		}
	})
}

func TestAuctionTracesBucketAndWinner(t *testing.T) {
	a := auctionLineItem("li-a", 16, 15.0)
	b := auctionLineItem("li-b", 16, 12.0)

	trace := &DecisionTrace{ReqID: "req-auction"}
	winner := RunAuction(auctionRequest(), []*models.LineItem{a, b}, 0, nil, nil, trace)
	if winner == nil {
		t.Fatal("expected a winner")
	}

	if len(trace.Steps) != 2 {
		t.Fatalf("expected bucket + winner steps, got %d: %+v", len(trace.Steps), trace.Steps)
	}
	if trace.Steps[0].Kind != StepBucketScanned || trace.Steps[0].Priority != 16 || trace.Steps[0].Candidates != 2 {
		t.Errorf("unexpected bucket step %+v", trace.Steps[0])
	}
	if trace.Steps[1].Kind != StepWinnerSelected || trace.Steps[1].LineItemID != "li-a" {
		t.Errorf("unexpected winner step %+v", trace.Steps[1])
	}
}
