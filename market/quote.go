package market

import "time"

// Quote is one closed OHLC bar for an epic at a given resolution.
// Both bid and ask legs are kept; indicator math runs on the mid.
type Quote struct {
	Epic       string
	Resolution Resolution
	Time       time.Time

	BidOpen  float64
	BidHigh  float64
	BidLow   float64
	BidClose float64

	AskOpen  float64
	AskHigh  float64
	AskLow   float64
	AskClose float64

	Volume int
}

func mid(bid, ask float64) float64 {
	return bid + (ask-bid)/2
}

func (q Quote) MidOpen() float64  { return mid(q.BidOpen, q.AskOpen) }
func (q Quote) MidHigh() float64  { return mid(q.BidHigh, q.AskHigh) }
func (q Quote) MidLow() float64   { return mid(q.BidLow, q.AskLow) }
func (q Quote) MidClose() float64 { return mid(q.BidClose, q.AskClose) }
