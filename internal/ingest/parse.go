package ingest

import (
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/tealeg/xlsx/v2"
)

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"01/02/2006",
	"1/2/2006",
	"01/02/06",
	"1/2/06",
	"01-02-06",
	"20060102",
	"Jan 2, 2006",
	"January 2, 2006",
	"02-Jan-2006",
}

// ParseDate parses the date formats found in award and procurement
// extracts, including Excel serial day numbers. The result is truncated to
// a UTC calendar date. An empty string yields nil.
func ParseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			d := calendarDate(t)
			return &d, nil
		}
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial > 0 && serial < 2958466 {
		d := calendarDate(xlsx.TimeFromExcelTime(serial, false))
		return &d, nil
	}
	return nil, eris.Errorf("ingest: unrecognized date %q", s)
}

func calendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseAmount parses a currency amount such as "$1,250.00" or "(300)".
// An empty string yields zero.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = s[1 : len(s)-1]
	}
	s = strings.NewReplacer("$", "", ",", "", " ", "").Replace(s)
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, eris.Wrapf(err, "ingest: parse amount %q", s)
	}
	if neg {
		d = d.Neg()
	}
	return d, nil
}
