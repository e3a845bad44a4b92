package usecase

import (
	"time"

	"PairPull/internal/domain/models"
	"PairPull/internal/stats"
)

// ExitContext is what an exit rule sees on each monitoring step.
type ExitContext struct {
	Trade   models.Trade
	Verdict models.FitnessVerdict
	Price1  float64
	Price2  float64
	Spread  []float64
	Now     time.Time

	// UnrealizedPnLPct is the mark-to-market P&L of the position, percent.
	UnrealizedPnLPct float64
}

// ExitRule is a pluggable guard condition evaluated alongside the always-on
// z-score exit. Rules are predicates only; closing mechanics stay in the
// state machine.
type ExitRule interface {
	Name() string
	ShouldExit(ctx ExitContext) bool
}

// TakeProfitStopLoss closes a trade on a fixed percentage gain or loss.
type TakeProfitStopLoss struct {
	TakeProfitPct float64
	StopLossPct   float64
}

func (r TakeProfitStopLoss) Name() string { return "take_profit_stop_loss" }

func (r TakeProfitStopLoss) ShouldExit(ctx ExitContext) bool {
	if r.TakeProfitPct > 0 && ctx.UnrealizedPnLPct >= r.TakeProfitPct {
		return true
	}
	if r.StopLossPct > 0 && ctx.UnrealizedPnLPct <= -r.StopLossPct {
		return true
	}
	return false
}

// TimeStop closes a trade that has run longer than a multiple of the
// pair's half-life. Pairs with an infinite half-life never time out here;
// they were not admitted on a time-stop basis in the first place.
type TimeStop struct {
	HalfLifeMultiple float64
}

func (r TimeStop) Name() string { return "time_stop" }

func (r TimeStop) ShouldExit(ctx ExitContext) bool {
	if r.HalfLifeMultiple <= 0 || ctx.Verdict.HalfLife.Infinite {
		return false
	}
	limit := time.Duration(ctx.Verdict.HalfLife.Days*r.HalfLifeMultiple*24) * time.Hour
	return ctx.Now.Sub(ctx.Trade.EntryTime) > limit
}

// RegimeShift closes a trade when the spread stops behaving mean-reverting:
// its Hurst exponent crosses MaxHurst, signalling a trending regime.
type RegimeShift struct {
	MaxHurst float64
}

func (r RegimeShift) Name() string { return "regime_shift" }

func (r RegimeShift) ShouldExit(ctx ExitContext) bool {
	if r.MaxHurst <= 0 || len(ctx.Spread) == 0 {
		return false
	}
	h, err := stats.HurstExponent(ctx.Spread)
	if err != nil {
		// Not enough data to judge the regime; never force an exit on a
		// data gap.
		return false
	}
	return h > r.MaxHurst
}
