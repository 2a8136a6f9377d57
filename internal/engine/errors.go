package engine

import "errors"

// ErrInvalidRequest marks a malformed ad request. This is a caller
// contract violation, distinct from the no-fill business outcome.
var ErrInvalidRequest = errors.New("invalid ad request")

// ErrInvalidLineItem marks a malformed line item snapshot.
var ErrInvalidLineItem = errors.New("invalid line item")
