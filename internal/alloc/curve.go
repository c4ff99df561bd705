// Package alloc evaluates the piecewise-linear capital allocation curve
// used by the tether signal. Breakpoints map a kimchi premium to a
// target allocation percentage and a rebalance action.
package alloc

import (
	"sort"

	"github.com/arbcommand/arbcommand/internal/config"
)

// Action is the rebalance direction a curve segment recommends.
type Action string

const (
	ActionBuyKRW  Action = "buy_krw"
	ActionSellKRW Action = "sell_krw"
	ActionFlat    Action = "flat"
)

// Point is one breakpoint of the curve.
type Point struct {
	PremiumPct    float64
	AllocationPct float64
	Action        Action
}

// Advice is the evaluated recommendation at one premium.
type Advice struct {
	TargetAllocationPct    float64
	RecommendedNotionalUSD float64
	Action                 Action
}

// Curve is an ordered set of breakpoints. Allocation between breakpoints
// is linearly interpolated; outside the range it clamps to the nearest
// endpoint.
type Curve struct {
	points []Point
	equity float64
}

// NewCurve builds a curve from configuration, sorting breakpoints by
// premium. Equity scales the target percentage into a notional.
func NewCurve(points []config.CurvePoint, equityUSD float64) *Curve {
	ps := make([]Point, 0, len(points))
	for _, p := range points {
		ps = append(ps, Point{
			PremiumPct:    p.PremiumPct,
			AllocationPct: p.AllocationPct,
			Action:        Action(p.Action),
		})
	}
	sort.Slice(ps, func(i, j int) bool { return ps[i].PremiumPct < ps[j].PremiumPct })
	return &Curve{points: ps, equity: equityUSD}
}

// Empty reports whether the curve has no breakpoints.
func (c *Curve) Empty() bool { return len(c.points) == 0 }

// Evaluate returns the advice for the given premium. Between two
// breakpoints the allocation interpolates linearly and the action comes
// from the upper breakpoint; an exact breakpoint hit uses that
// breakpoint's action.
func (c *Curve) Evaluate(premiumPct float64) Advice {
	if len(c.points) == 0 {
		return Advice{Action: ActionFlat}
	}

	first, last := c.points[0], c.points[len(c.points)-1]
	if premiumPct <= first.PremiumPct {
		return c.advice(first.AllocationPct, first.Action)
	}
	if premiumPct >= last.PremiumPct {
		return c.advice(last.AllocationPct, last.Action)
	}

	for i := 1; i < len(c.points); i++ {
		lo, hi := c.points[i-1], c.points[i]
		if premiumPct > hi.PremiumPct {
			continue
		}
		if premiumPct == hi.PremiumPct {
			return c.advice(hi.AllocationPct, hi.Action)
		}
		span := hi.PremiumPct - lo.PremiumPct
		frac := (premiumPct - lo.PremiumPct) / span
		alloc := lo.AllocationPct + frac*(hi.AllocationPct-lo.AllocationPct)
		return c.advice(alloc, hi.Action)
	}
	return c.advice(last.AllocationPct, last.Action)
}

func (c *Curve) advice(allocPct float64, action Action) Advice {
	return Advice{
		TargetAllocationPct:    allocPct,
		RecommendedNotionalUSD: c.equity * allocPct / 100,
		Action:                 action,
	}
}
