package trade

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/iMOD07/AlpacaTradingBot/internal/signal"
)

var (
	decOne     = decimal.NewFromInt(1)
	decHundred = decimal.NewFromInt(100)
)

// Plan is the derived order sizing for one signal. It is recomputed fresh
// per signal and never mutated.
type Plan struct {
	Quantity   int
	TakeProfit decimal.Decimal
	StopLoss   decimal.Decimal
}

// Sizer turns a signal into a Plan from a fixed dollar budget and a
// take-profit percentage.
type Sizer struct {
	budget decimal.Decimal
	tpPct  decimal.Decimal
}

func NewSizer(budgetUSD, takeProfitPct decimal.Decimal) (*Sizer, error) {
	if budgetUSD.Sign() <= 0 {
		return nil, fmt.Errorf("sizing budget must be > 0")
	}
	if takeProfitPct.Sign() <= 0 {
		return nil, fmt.Errorf("take-profit percent must be > 0")
	}
	return &Sizer{budget: budgetUSD, tpPct: takeProfitPct}, nil
}

func (s *Sizer) TakeProfitPct() decimal.Decimal { return s.tpPct }

// BuildPlan sizes the position. Quantity is the ceiling of budget/trigger
// so the budget is never under-deployed by truncation; the take-profit is
// rounded half-up to cents at the point of computation.
func (s *Sizer) BuildPlan(sig *signal.TradeSignal) (Plan, error) {
	if sig == nil || sig.Trigger.Sign() <= 0 {
		return Plan{}, fmt.Errorf("signal trigger must be > 0")
	}
	qty := s.budget.Div(sig.Trigger).Ceil().IntPart()
	return Plan{
		Quantity:   int(qty),
		TakeProfit: ComputeTakeProfit(sig.Trigger, s.tpPct).Round(2),
		StopLoss:   sig.Stop,
	}, nil
}

// ComputeTakeProfit keeps full precision; rounding happens at the plan
// boundary or broker-side normalization, both idempotent when reapplied.
func ComputeTakeProfit(price, pct decimal.Decimal) decimal.Decimal {
	return price.Mul(decOne.Add(pct.Div(decHundred)))
}
