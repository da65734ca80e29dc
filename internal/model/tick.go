package model

// TickSide classifies the aggressor of a trade.
type TickSide uint8

const (
	SideAuction TickSide = 0
	SideBuy     TickSide = 1
	SideSell    TickSide = 2
)

func (s TickSide) String() string {
	switch s {
	case SideBuy:
		return "buy"
	case SideSell:
		return "sell"
	default:
		return "auction"
	}
}

// Tick is a single trade event. Ticks are append-only per symbol per
// trading day.
type Tick struct {
	Datetime Datetime `json:"datetime"`
	Price    Price    `json:"price"`
	Volume   int64    `json:"volume"`
	Side     TickSide `json:"side"`
}

// DayIndexEntry maps a calendar day to the offset of its first tick in
// the symbol's tick series.
type DayIndexEntry struct {
	Date  Date  `json:"date"`
	Start int64 `json:"start"`
}
