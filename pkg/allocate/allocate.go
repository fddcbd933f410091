// Package allocate splits an order total across its line items in
// proportion to their prices, reduced to the smallest integer ratio.
//
// Prices are converted to cents and divided by their greatest common
// divisor, so [100.00, 200.00] becomes the ratio [1, 2]. Every share is
// rounded to the cent independently; the cents lost or gained by rounding
// stay unassigned unless WithRemainderToLargest is set.
package allocate

import (
	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)

	// maxCents caps a single price so ratio sums stay inside int64.
	maxCents = decimal.NewFromInt(1 << 52)
)

// Split is the outcome of allocating one order total.
type Split struct {
	Ratios  []int64
	Amounts []decimal.Decimal

	// Degenerate is set when no item had a positive price and the total
	// was split equally.
	Degenerate bool
}

// Remainder is the difference between total and the sum of the amounts.
func (s Split) Remainder(total decimal.Decimal) decimal.Decimal {
	sum := decimal.Zero
	for _, a := range s.Amounts {
		sum = sum.Add(a)
	}
	return total.Round(2).Sub(sum)
}

// Calculator allocates order totals.
type Calculator struct {
	remainderToLargest bool
}

// Option configures a Calculator.
type Option func(*Calculator)

// WithRemainderToLargest assigns the rounding remainder to the item with the
// largest ratio, the first one on ties, so the amounts sum to the total.
func WithRemainderToLargest() Option {
	return func(c *Calculator) {
		c.remainderToLargest = true
	}
}

// New returns a Calculator.
func New(opts ...Option) *Calculator {
	c := &Calculator{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Allocate splits total across prices with the default calculator and
// returns only the amounts.
func Allocate(total decimal.Decimal, prices []decimal.Decimal) []decimal.Decimal {
	return New().Split(total, prices).Amounts
}

// Split allocates total across prices. The result has one entry per price.
func (c *Calculator) Split(total decimal.Decimal, prices []decimal.Decimal) Split {
	if len(prices) == 0 {
		return Split{Ratios: []int64{}, Amounts: []decimal.Decimal{}}
	}

	ratios, degenerate := Ratios(prices)

	var totalRatio int64
	for _, r := range ratios {
		totalRatio += r
	}
	divisor := decimal.NewFromInt(totalRatio)

	amounts := make([]decimal.Decimal, len(ratios))
	for i, r := range ratios {
		amounts[i] = total.Mul(decimal.NewFromInt(r)).DivRound(divisor, 2)
	}

	split := Split{Ratios: ratios, Amounts: amounts, Degenerate: degenerate}
	if c.remainderToLargest {
		if rem := split.Remainder(total); !rem.IsZero() {
			i := largest(ratios)
			amounts[i] = amounts[i].Add(rem)
		}
	}
	return split
}

// Ratios reduces prices to integer ratios by the GCD of their cent values.
// Cent values are capped at 2^52. Items without a positive price get
// ratio 1. When no price is positive
// every ratio is 1 and degenerate is true.
func Ratios(prices []decimal.Decimal) (ratios []int64, degenerate bool) {
	cents := make([]int64, len(prices))
	var g int64
	for i, p := range prices {
		c := p.Mul(hundred).Round(0)
		if c.GreaterThan(maxCents) {
			c = maxCents
		}
		cents[i] = c.IntPart()
		if cents[i] > 0 {
			g = gcd(g, cents[i])
		}
	}

	ratios = make([]int64, len(prices))
	for i, c := range cents {
		if g == 0 || c <= 0 {
			ratios[i] = 1
			continue
		}
		ratios[i] = c / g
	}
	return ratios, g == 0
}

func gcd(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func largest(ratios []int64) int {
	best := 0
	for i, r := range ratios {
		if r > ratios[best] {
			best = i
		}
	}
	return best
}
