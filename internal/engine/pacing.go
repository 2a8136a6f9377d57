package engine

import (
	"time"

	"github.com/SantoshMahanty/digital-ssp/internal/models"
)

// NoteDegenerateFlight flags an even-paced line item whose flight window
// is missing or zero-length. The engine allows serving in that case (the
// line item behaves like goal-less ASAP) but surfaces the note in the
// trace so operators can tell a misconfigured flight from an intentional
// one.
const NoteDegenerateFlight = "degenerate_flight_window"

// PacingAllows decides whether the line item's pacing policy permits
// serving at the given instant. DeliveredImps is a caller-supplied
// snapshot; the engine never advances counters itself, so concurrent
// decisions need no locking here.
//
// Line items without a booked goal are exempt from pacing entirely. Their
// place in the waterfall is enforced by priority buckets, not by this
// gate.
func PacingAllows(li *models.LineItem, now time.Time) (bool, string) {
	if li.BookedImps <= 0 {
		return true, ""
	}
	switch li.Pacing {
	case models.PacingASAP:
		return li.DeliveredImps < li.BookedImps, ""
	default:
		return evenPacingAllows(li, now)
	}
}

// evenPacingAllows compares delivered impressions against the count
// expected at this point of the flight. A non-negative shortfall
// (expected − delivered) means the line item is behind or on pace and may
// serve.
//
// With 100k booked over 10 days and checked at the halfway mark,
// expected is 50k, so 48k delivered serves and 52k delivered holds back.
func evenPacingAllows(li *models.LineItem, now time.Time) (bool, string) {
	if li.Start.IsZero() || li.End.IsZero() || !li.End.After(li.Start) {
		return true, NoteDegenerateFlight
	}

	total := li.End.Sub(li.Start).Seconds()
	elapsed := now.Sub(li.Start).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed > total {
		elapsed = total
	}

	expected := float64(li.BookedImps) * (elapsed / total)
	shortfall := expected - float64(li.DeliveredImps)
	return shortfall >= 0, ""
}
