package models

import "fmt"

// Device classes recognized by targeting. Requests carry exactly one of
// these; line items target a subset (empty = unrestricted).
const (
	DeviceDesktop = "desktop"
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceCTV     = "ctv"
)

// Size is a creative dimension in pixels.
type Size struct {
	W int `json:"w"`
	H int `json:"h"`
}

// Valid reports whether both dimensions are positive.
func (s Size) Valid() bool {
	return s.W > 0 && s.H > 0
}

// AdRequest is one bid opportunity. It is immutable once constructed and
// lives only for the duration of a single decision. The ad unit code is
// expected to be pre-normalized by the inventory resolution layer; the
// decision engine performs exact string matches only.
type AdRequest struct {
	ID        string            `json:"req_id"`
	AdUnit    string            `json:"ad_unit"`
	Sizes     []Size            `json:"sizes"`
	KV        map[string]string `json:"kv,omitempty"`
	Geo       string            `json:"geo"`
	Device    string            `json:"device"`
	UserID    string            `json:"user_id,omitempty"`
	ViewportW int               `json:"viewport_w,omitempty"`
}

// Validate checks the caller contract for a request. A failure here is a
// programming error on the caller side, not a no-fill outcome.
func (r *AdRequest) Validate() error {
	if r == nil {
		return fmt.Errorf("nil request")
	}
	if r.ID == "" {
		return fmt.Errorf("request id is required")
	}
	if r.AdUnit == "" {
		return fmt.Errorf("ad unit is required")
	}
	if len(r.Sizes) == 0 {
		return fmt.Errorf("at least one requested size is required")
	}
	for _, s := range r.Sizes {
		if !s.Valid() {
			return fmt.Errorf("degenerate size %dx%d", s.W, s.H)
		}
	}
	return nil
}
