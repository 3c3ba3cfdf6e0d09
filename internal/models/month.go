package models

import (
	"fmt"
	"strings"
)

type Month int

const (
	January Month = iota + 1
	February
	March
	April
	May
	June
	July
	August
	September
	October
	November
	December
)

var monthNames = [...]string{
	"", "January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

// AllMonths lists the planning year in calendar order.
func AllMonths() []Month {
	months := make([]Month, 0, 12)
	for m := January; m <= December; m++ {
		months = append(months, m)
	}
	return months
}

func (m Month) Valid() bool {
	return m >= January && m <= December
}

func (m Month) Name() string {
	if !m.Valid() {
		return fmt.Sprintf("Month(%d)", int(m))
	}
	return monthNames[m]
}

func (m Month) Short() string {
	if !m.Valid() {
		return "???"
	}
	return monthNames[m][:3]
}

func (m Month) String() string {
	return m.Name()
}

// Quarter is fixed by calendar position: months 1-3 are Q1, 10-12 are Q4.
func (m Month) Quarter() Quarter {
	if !m.Valid() {
		return ""
	}
	return quarters[(int(m)-1)/3]
}

func (m Month) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("invalid month %d", int(m))
	}
	return []byte(m.Name()), nil
}

func (m *Month) UnmarshalText(text []byte) error {
	parsed, err := ParseMonth(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ParseMonth accepts full or three-letter month names, case-insensitively.
func ParseMonth(s string) (Month, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == "" {
		return 0, fmt.Errorf("empty month")
	}
	for m := January; m <= December; m++ {
		name := strings.ToLower(monthNames[m])
		if v == name || v == name[:3] {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown month %q", s)
}

type Quarter string

const (
	Q1 Quarter = "Q1"
	Q2 Quarter = "Q2"
	Q3 Quarter = "Q3"
	Q4 Quarter = "Q4"
)

var quarters = [...]Quarter{Q1, Q2, Q3, Q4}

func (q Quarter) Valid() bool {
	switch q {
	case Q1, Q2, Q3, Q4:
		return true
	}
	return false
}

func (q Quarter) Half() Half {
	switch q {
	case Q1, Q2:
		return H1
	case Q3, Q4:
		return H2
	}
	return ""
}

type Half string

const (
	H1 Half = "H1"
	H2 Half = "H2"
)

func (h Half) Label() string {
	switch h {
	case H1:
		return "First Half"
	case H2:
		return "Second Half"
	}
	return string(h)
}

// Period selects either one quarter or the whole year.
type Period string

const PeriodAll Period = "all"

func ParsePeriod(s string) (Period, error) {
	v := strings.TrimSpace(s)
	if v == "" || strings.EqualFold(v, string(PeriodAll)) {
		return PeriodAll, nil
	}
	q := Quarter(strings.ToUpper(v))
	if !q.Valid() {
		return "", fmt.Errorf("unknown period %q", s)
	}
	return Period(q), nil
}

func (p Period) Includes(m Month) bool {
	if p == PeriodAll || p == "" {
		return true
	}
	return Period(m.Quarter()) == p
}

// Halves returns the half-years touched by the period, in order.
func (p Period) Halves() []Half {
	if p == PeriodAll || p == "" {
		return []Half{H1, H2}
	}
	return []Half{Quarter(p).Half()}
}

func (p Period) Label() string {
	if p == PeriodAll || p == "" {
		return "Full Year"
	}
	return string(p)
}
