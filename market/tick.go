package market

import "time"

// Tick is a single bid/ask observation for an epic.
type Tick struct {
	Epic string
	Time time.Time
	Bid  float64
	Ask  float64
}

func (t Tick) Mid() float64 {
	return t.Bid + (t.Ask-t.Bid)/2
}

func (t Tick) Spread() float64 {
	return t.Ask - t.Bid
}
