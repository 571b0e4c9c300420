// Package signal turns closed price series into directional events: the
// price/SMA cross that opens positions, the longer-window trend filter,
// and the ATR-derived stop distance.
package signal

import (
	"math"

	"github.com/rustyeddy/igtrader/indicators"
)

// Signal is the directional cross event for one cycle.
type Signal int

const (
	None Signal = iota
	CrossUp
	CrossDown
)

func (s Signal) String() string {
	switch s {
	case CrossUp:
		return "XUP"
	case CrossDown:
		return "XDOWN"
	default:
		return "NONE"
	}
}

// Trend is the longer-window classification used to filter cross signals.
type Trend int

const (
	TrendNone Trend = iota
	TrendUp
	TrendDown
)

func (t Trend) String() string {
	switch t {
	case TrendUp:
		return "UP"
	case TrendDown:
		return "DOWN"
	default:
		return "NONE"
	}
}

// Agrees reports whether a cross signal points the same way as the trend.
func (t Trend) Agrees(s Signal) bool {
	return (t == TrendUp && s == CrossUp) || (t == TrendDown && s == CrossDown)
}

// Meta carries the operands behind a signal, for reports and logs.
type Meta struct {
	PrevPrice    float64
	CurrentPrice float64
	PrevSMA      float64
	CurrentSMA   float64
}

// CrossSMA checks whether the price crossed its SMA between the last two
// samples. Prices run oldest to newest and need at least window+1 values;
// shorter series mean no signal, not an error. All four operands must be
// present and non-zero for a cross to fire.
func CrossSMA(prices []float64, window int) (Signal, Meta) {
	sma := indicators.SMA(prices, window)
	if len(prices) < 2 || len(sma) < 2 {
		return None, Meta{}
	}

	meta := Meta{
		PrevPrice:    prices[len(prices)-2],
		CurrentPrice: prices[len(prices)-1],
		PrevSMA:      sma[len(sma)-2],
		CurrentSMA:   sma[len(sma)-1],
	}

	if !valid(meta.PrevPrice) || !valid(meta.CurrentPrice) || !valid(meta.PrevSMA) || !valid(meta.CurrentSMA) {
		return None, meta
	}

	switch {
	case meta.PrevPrice <= meta.PrevSMA && meta.CurrentPrice > meta.CurrentSMA:
		return CrossUp, meta
	case meta.PrevPrice >= meta.PrevSMA && meta.CurrentPrice < meta.CurrentSMA:
		return CrossDown, meta
	}
	return None, meta
}

// TrendSMA classifies the trend against a longer SMA window: up when the
// current price sits at or above the SMA, down otherwise, none when the
// series is too short.
func TrendSMA(prices []float64, window int) (Trend, Meta) {
	sma := indicators.SMA(prices, window)
	if len(prices) == 0 || len(sma) == 0 {
		return TrendNone, Meta{}
	}

	meta := Meta{
		CurrentPrice: prices[len(prices)-1],
		CurrentSMA:   sma[len(sma)-1],
	}
	if !valid(meta.CurrentSMA) {
		return TrendNone, meta
	}

	if meta.CurrentPrice >= meta.CurrentSMA {
		return TrendUp, meta
	}
	return TrendDown, meta
}

func valid(v float64) bool {
	return v != 0 && !math.IsNaN(v)
}
