package model

import "fmt"

// PriceScale is the fixed-point denominator for Price values.
const PriceScale = 1000

// Price is a fixed-point price in thousandths. Integer arithmetic avoids
// the rounding drift float aggregation accumulates over long series.
type Price int64

// PriceFromFloat converts a float price to fixed point.
func PriceFromFloat(f float64) Price {
	if f >= 0 {
		return Price(f*PriceScale + 0.5)
	}
	return Price(f*PriceScale - 0.5)
}

// Float64 converts p back to a float price.
func (p Price) Float64() float64 { return float64(p) / PriceScale }

// Period identifies a bar granularity. Day and one-minute bars are
// stored; every other period is a derived view over one of those two.
type Period string

const (
	PeriodDay  Period = "day"
	PeriodMin1 Period = "min1"

	PeriodWeek     Period = "week"
	PeriodMonth    Period = "month"
	PeriodQuarter  Period = "quarter"
	PeriodHalfYear Period = "halfyear"
	PeriodYear     Period = "year"

	PeriodMin15 Period = "min15"
	PeriodMin30 Period = "min30"
	PeriodMin60 Period = "min60"
	PeriodHour2 Period = "hour2"
)

// BasePeriods are the granularities actually persisted.
var BasePeriods = []Period{PeriodDay, PeriodMin1}

var derivedBase = map[Period]Period{
	PeriodWeek:     PeriodDay,
	PeriodMonth:    PeriodDay,
	PeriodQuarter:  PeriodDay,
	PeriodHalfYear: PeriodDay,
	PeriodYear:     PeriodDay,
	PeriodMin15:    PeriodMin1,
	PeriodMin30:    PeriodMin1,
	PeriodMin60:    PeriodMin1,
	PeriodHour2:    PeriodMin1,
}

var intradayMinutes = map[Period]int{
	PeriodMin15: 15,
	PeriodMin30: 30,
	PeriodMin60: 60,
	PeriodHour2: 120,
}

// IsBase reports whether p is a stored granularity.
func (p Period) IsBase() bool { return p == PeriodDay || p == PeriodMin1 }

// Base returns the stored granularity p is derived from, or p itself.
func (p Period) Base() Period {
	if b, ok := derivedBase[p]; ok {
		return b
	}
	return p
}

// Minutes returns the span of an intraday derived period, or 0 for
// calendar periods.
func (p Period) Minutes() int { return intradayMinutes[p] }

// ParsePeriod validates a period name from an external caller.
func ParsePeriod(s string) (Period, error) {
	p := Period(s)
	if p.IsBase() {
		return p, nil
	}
	if _, ok := derivedBase[p]; ok {
		return p, nil
	}
	return "", fmt.Errorf("unknown period %q", s)
}

// Bar is one OHLCV aggregate. Within a series the most recent bar of the
// still-open period is mutable; everything earlier is immutable.
type Bar struct {
	Datetime Datetime `json:"datetime" db:"datetime"`
	Open     Price    `json:"open" db:"open"`
	High     Price    `json:"high" db:"high"`
	Low      Price    `json:"low" db:"low"`
	Close    Price    `json:"close" db:"close"`
	Volume   int64    `json:"volume" db:"volume"`
	Amount   int64    `json:"amount" db:"amount"`
}

// Merge folds b2 into b as a live-bar amendment: the open stands, the
// close follows, extremes extend, volume and amount accumulate.
func (b *Bar) Merge(b2 Bar) {
	if b2.High > b.High {
		b.High = b2.High
	}
	if b2.Low < b.Low {
		b.Low = b2.Low
	}
	b.Close = b2.Close
	b.Volume += b2.Volume
	b.Amount += b2.Amount
}

// IndexEntry maps a derived-period start to the offset of its first base
// bar. The derived bar is recomputed from the bracketed base bars; it is
// never stored.
type IndexEntry struct {
	Datetime Datetime `json:"datetime"`
	Start    int64    `json:"start"`
}
