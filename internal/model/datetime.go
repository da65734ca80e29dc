package model

import "time"

// Date is a calendar day encoded as YYYYMMDD.
type Date uint32

// Datetime is a minute-resolution timestamp encoded as YYYYMMDDHHMM.
// Day-period bars carry YYYYMMDD0000. The integer encoding keeps bar
// files and index entries free of timezone and epoch concerns.
type Datetime uint64

// NewDatetime builds a Datetime from calendar components.
func NewDatetime(year, month, day, hour, minute int) Datetime {
	return Datetime(uint64(year)*1e8 + uint64(month)*1e6 + uint64(day)*1e4 +
		uint64(hour)*100 + uint64(minute))
}

// DatetimeFromTime truncates t to the minute.
func DatetimeFromTime(t time.Time) Datetime {
	return NewDatetime(t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute())
}

// Date returns the calendar-day component.
func (d Datetime) Date() Date { return Date(d / 1e4) }

// Year returns the year component.
func (d Datetime) Year() int { return int(d / 1e8) }

// Month returns the month component.
func (d Datetime) Month() int { return int(d/1e6) % 100 }

// Day returns the day-of-month component.
func (d Datetime) Day() int { return int(d/1e4) % 100 }

// Hour returns the hour component.
func (d Datetime) Hour() int { return int(d/100) % 100 }

// Minute returns the minute component.
func (d Datetime) Minute() int { return int(d) % 100 }

// MinuteOfDay returns minutes since midnight.
func (d Datetime) MinuteOfDay() int { return d.Hour()*60 + d.Minute() }

// IsZero reports whether d is the zero Datetime.
func (d Datetime) IsZero() bool { return d == 0 }

// Time converts d to a time.Time in the given location.
func (d Datetime) Time(loc *time.Location) time.Time {
	return time.Date(d.Year(), time.Month(d.Month()), d.Day(), d.Hour(), d.Minute(), 0, 0, loc)
}

// Datetime converts a Date to the midnight Datetime of that day.
func (d Date) Datetime() Datetime { return Datetime(d) * 1e4 }

// Time converts d to a time.Time in the given location.
func (d Date) Time(loc *time.Location) time.Time { return d.Datetime().Time(loc) }

// PeriodStart returns the canonical start stamp of the calendar period
// containing d: the Monday of the week, the first day of the month,
// quarter, half-year or year. Intraday periods bracket by base-bar
// position instead and are not accepted here.
func (d Datetime) PeriodStart(p Period) Datetime {
	y, m := d.Year(), d.Month()
	switch p {
	case PeriodWeek:
		t := d.Time(time.UTC)
		offset := (int(t.Weekday()) + 6) % 7 // Monday-based
		monday := t.AddDate(0, 0, -offset)
		return NewDatetime(monday.Year(), int(monday.Month()), monday.Day(), 0, 0)
	case PeriodMonth:
		return NewDatetime(y, m, 1, 0, 0)
	case PeriodQuarter:
		return NewDatetime(y, ((m-1)/3)*3+1, 1, 0, 0)
	case PeriodHalfYear:
		if m <= 6 {
			return NewDatetime(y, 1, 1, 0, 0)
		}
		return NewDatetime(y, 7, 1, 0, 0)
	case PeriodYear:
		return NewDatetime(y, 1, 1, 0, 0)
	}
	return d
}
