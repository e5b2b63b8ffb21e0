package idgen

import (
	"fmt"

	"github.com/finclose/finclose/internal/clock"
	"github.com/google/uuid"
)

// NewFunc returns a new globally unique identifier as string. It is a
// variable so tests can stub it.
var NewFunc = func() string { return uuid.New().String() }

// New returns a new globally unique identifier.
func New() string { return NewFunc() }

// NewRequestID returns a time-ordered approval request identifier of the form
// REQ-YYYYMMDD-HHMMSS-xxxxxxxx. The timestamp prefix keeps ids sortable by
// creation time; the uuid suffix keeps them unique at sub-second rates.
func NewRequestID() string {
	now := clock.Now()
	return fmt.Sprintf("REQ-%s-%s", now.Format("20060102-150405"), New()[:8])
}
