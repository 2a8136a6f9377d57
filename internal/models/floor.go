package models

// FloorRule maps a request context to a minimum acceptable CPM. All set
// filters must match; unset filters match any value. A rule with no
// filters is a catch-all.
//
// Rules are always handled as an ordered list: the first rule whose
// filters all match wins, so callers must place more specific rules
// before the catch-all. The evaluator never re-sorts by specificity.
type FloorRule struct {
	Geo    string  `json:"geo,omitempty"`
	Device string  `json:"device,omitempty"`
	AdUnit string  `json:"ad_unit,omitempty"`
	Size   *Size   `json:"size,omitempty"`
	Floor  float64 `json:"floor"`
}

// Deal is a private marketplace agreement. A deal attached to a request
// overrides the floor rule list with its own floor.
type Deal struct {
	ID    string  `json:"id"`
	Floor float64 `json:"floor"`
}
