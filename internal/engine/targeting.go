package engine

import "github.com/SantoshMahanty/digital-ssp/internal/models"

// MatchesTargeting evaluates whether a line item's targeting admits the
// request. Dimensions are checked in a fixed order (inventory,
// key-values, geo, device, creative size) and evaluation stops at the
// first failure so the returned reason names exactly one dimension. All
// five dimensions must pass; there are no OR semantics.
//
// The function is pure: the reason is reported for the decision trace
// only and never drives control flow in the caller beyond exclusion.
func MatchesTargeting(req *models.AdRequest, li *models.LineItem) (bool, FilterReason) {
	if !matchesAdUnit(req.AdUnit, li.Targeting.AdUnits) {
		return false, ReasonInventoryMismatch
	}
	if !MatchesKeyValues(req.KV, li.Targeting.KeyValues) {
		return false, ReasonKVMismatch
	}
	if !matchesMembership(req.Geo, li.Targeting.Geos) {
		return false, ReasonGeoMismatch
	}
	if !matchesMembership(req.Device, li.Targeting.Devices) {
		return false, ReasonDeviceMismatch
	}
	if FirstCompatibleCreative(req, li) == nil {
		return false, ReasonNoCreativeSize
	}
	return true, ""
}

// matchesAdUnit checks exact membership of the request's ad unit code in
// the allowed set. Hierarchy or wildcard resolution happens upstream; by
// the time a request reaches the engine its ad unit is a plain string.
func matchesAdUnit(adUnit string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, u := range allowed {
		if u == adUnit {
			return true
		}
	}
	return false
}

// MatchesKeyValues reports whether the request carries every key the line
// item targets, with a value from that key's allowed set. A missing key
// is a failure: there is no implicit wildcard. Line items with no
// key-value targeting always pass.
func MatchesKeyValues(reqKV map[string]string, targetKV map[string][]string) bool {
	if len(targetKV) == 0 {
		return true
	}
	for k, allowed := range targetKV {
		v, ok := reqKV[k]
		if !ok {
			return false
		}
		found := false
		for _, a := range allowed {
			if a == v {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// matchesMembership is the shared geo/device check: empty set means
// unrestricted.
func matchesMembership(value string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if a == value {
			return true
		}
	}
	return false
}

// FirstCompatibleCreative returns the first creative whose size exactly
// equals one of the requested sizes, or nil when none fits. The auction
// uses it to attach a renderable creative to the winning bid.
func FirstCompatibleCreative(req *models.AdRequest, li *models.LineItem) *models.Creative {
	for i := range li.Creatives {
		c := &li.Creatives[i]
		for _, s := range req.Sizes {
			if c.Width == s.W && c.Height == s.H {
				return c
			}
		}
	}
	return nil
}
