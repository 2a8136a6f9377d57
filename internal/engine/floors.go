package engine

import "github.com/SantoshMahanty/digital-ssp/internal/models"

// ComputeFloor derives the minimum acceptable CPM for a request from an
// ordered rule list. Rules are evaluated strictly in their configured
// order and the first rule whose filters all match wins immediately; no
// later rule is consulted even if it would carry a higher floor. With no
// matching rule and no catch-all the floor is zero.
func ComputeFloor(req *models.AdRequest, rules []models.FloorRule) float64 {
	for i := range rules {
		if floorRuleMatches(&rules[i], req) {
			return rules[i].Floor
		}
	}
	return 0
}

// ComputeFloorWithDeal applies the floor rule list unless a private deal
// is attached to the request, in which case the deal's floor overrides
// all rules.
func ComputeFloorWithDeal(req *models.AdRequest, rules []models.FloorRule, deal *models.Deal) float64 {
	if deal != nil {
		return deal.Floor
	}
	return ComputeFloor(req, rules)
}

// floorRuleMatches reports whether every filter set on the rule matches
// the request. Unset filters match anything.
func floorRuleMatches(rule *models.FloorRule, req *models.AdRequest) bool {
	if rule.Geo != "" && rule.Geo != req.Geo {
		return false
	}
	if rule.Device != "" && rule.Device != req.Device {
		return false
	}
	if rule.AdUnit != "" && rule.AdUnit != req.AdUnit {
		return false
	}
	if rule.Size != nil {
		match := false
		for _, s := range req.Sizes {
			if s.W == rule.Size.W && s.H == rule.Size.H {
				match = true
				break
			}
		}
		if !match {
			return false
		}
	}
	return true
}
