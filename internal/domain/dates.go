package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

// DateLayout is the todo.txt date format.
const DateLayout = "2006-01-02"

// maxIntervalCount bounds the count of an interval so the result stays
// within four-digit years.
const maxIntervalCount = 99999

var intervalPattern = regexp.MustCompile(`^(\d+)([dwmyb]?)$`)

var (
	naturalOnce   sync.Once
	naturalParser *when.Parser
)

// IsDate reports whether s is a valid YYYY-MM-DD date.
func IsDate(s string) bool {
	if len(s) != len(DateLayout) {
		return false
	}
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

// Today returns the current local date in DateLayout.
func Today() string {
	return time.Now().Format(DateLayout)
}

// IsInterval reports whether s is a recurrence or defer interval such as
// "3d", "2w", "1m", "1y" or "5b" (business days), optionally prefixed by "+".
func IsInterval(s string) bool {
	if len(s) > 0 && s[0] == '+' {
		s = s[1:]
	}
	return intervalPattern.MatchString(s)
}

// AddInterval adds an interval to a YYYY-MM-DD date. A bare number is
// counted in days. Counts above maxIntervalCount, or results past year
// 9999, return ErrInvalidInterval.
func AddInterval(date, interval string) (string, error) {
	base, err := time.Parse(DateLayout, date)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	m := intervalPattern.FindStringSubmatch(interval)
	if m == nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidInterval, interval)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n > maxIntervalCount {
		return "", fmt.Errorf("%w: %q", ErrInvalidInterval, interval)
	}

	switch m[2] {
	case "", "d":
		base = base.AddDate(0, 0, n)
	case "w":
		base = base.AddDate(0, 0, 7*n)
	case "m":
		base = base.AddDate(0, n, 0)
	case "y":
		base = base.AddDate(n, 0, 0)
	case "b":
		base = addBusinessDays(base, n)
	}
	if base.Year() > 9999 {
		return "", fmt.Errorf("%w: %q from %s", ErrInvalidInterval, interval, date)
	}
	return base.Format(DateLayout), nil
}

// addBusinessDays skips Saturdays and Sundays. Whole weeks are added at
// once, so the cost does not grow with n.
func addBusinessDays(t time.Time, n int) time.Time {
	if n <= 0 {
		return t
	}
	// counting from a weekend day is counting from the Friday before it
	switch t.Weekday() {
	case time.Saturday:
		t = t.AddDate(0, 0, -1)
	case time.Sunday:
		t = t.AddDate(0, 0, -2)
	}

	t = t.AddDate(0, 0, 7*(n/5))
	for rest := n % 5; rest > 0; {
		t = t.AddDate(0, 0, 1)
		if !isWeekend(t) {
			rest--
		}
	}
	return t
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// ParseNaturalDate interprets expressions like "tomorrow" or "next friday"
// relative to today.
func ParseNaturalDate(expr, today string) (string, error) {
	base, err := time.Parse(DateLayout, today)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidDate, today)
	}

	naturalOnce.Do(func() {
		naturalParser = when.New(nil)
		naturalParser.Add(en.All...)
		naturalParser.Add(common.All...)
	})

	res, err := naturalParser.Parse(expr, base)
	if err != nil || res == nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidDeferSpec, expr)
	}
	return res.Time.Format(DateLayout), nil
}
