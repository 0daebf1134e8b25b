package spec

import "time"

// DateTime is the seven byte recording time carried by every directory record.
//
// ECMA-119 (5th ed.) §9.1.5
type DateTime struct {
	YearsSince1900            uint8
	Month                     uint8
	Day                       uint8
	Hour                      uint8
	Minute                    uint8
	Second                    uint8
	GMTOffsetIn15MinIntervals int8
}

// NewDateTime records t in its own time zone, to the second.
func NewDateTime(t time.Time) DateTime {
	_, offset := t.Zone()

	return DateTime{
		YearsSince1900:            uint8(t.Year() - 1900),
		Month:                     uint8(t.Month()),
		Day:                       uint8(t.Day()),
		Hour:                      uint8(t.Hour()),
		Minute:                    uint8(t.Minute()),
		Second:                    uint8(t.Second()),
		GMTOffsetIn15MinIntervals: int8(offset / (15 * 60)),
	}
}

// Time converts the recorded time. A zeroed field, as written by some mastering tools, yields the zero time.
func (d DateTime) Time() time.Time {
	if d == (DateTime{}) {
		return time.Time{}
	}

	return time.Date(
		int(d.YearsSince1900)+1900,
		time.Month(d.Month),
		int(d.Day),
		int(d.Hour),
		int(d.Minute),
		int(d.Second),
		0,
		time.FixedZone("", int(d.GMTOffsetIn15MinIntervals)*15*60),
	)
}

// LongDateTime is the digit representation of a time used by the volume descriptor. Only its layout matters here.
//
// ECMA-119 (5th ed.) §9.4.27.2
type LongDateTime struct {
	YearDigits                [4]uint8
	MonthDigits               [2]uint8
	DayDigits                 [2]uint8
	HourDigits                [2]uint8
	MinuteDigits              [2]uint8
	SecondDigits              [2]uint8
	CentisecondsDigits        [2]uint8
	GMTOffsetIn15MinIntervals uint8
}

// UnsetLongDateTime is how a volume descriptor records that a time is not specified: sixteen '0' digits and a zero
// offset.
var UnsetLongDateTime = LongDateTime{
	YearDigits:         [4]uint8{'0', '0', '0', '0'},
	MonthDigits:        [2]uint8{'0', '0'},
	DayDigits:          [2]uint8{'0', '0'},
	HourDigits:         [2]uint8{'0', '0'},
	MinuteDigits:       [2]uint8{'0', '0'},
	SecondDigits:       [2]uint8{'0', '0'},
	CentisecondsDigits: [2]uint8{'0', '0'},
}
