// Package freight resolves delivery cost from tenant freight rules keyed by
// neighborhood name or postal-code (CEP) range.
package freight

import (
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrNoRule indicates no freight rule matched the location. Callers treat
// this as insufficient information to auto-quote, not a hard failure.
var ErrNoRule = errors.New("freight: no rule matches location")

// Rule is one tenant freight rule. Either Neighborhood or the CEP range pair
// is set, never both.
type Rule struct {
	ID              uuid.UUID
	Neighborhood    *string
	CEPRangeStart   *string
	CEPRangeEnd     *string
	BaseFreight     decimal.Decimal
	PerKgAdditional *decimal.Decimal
}
