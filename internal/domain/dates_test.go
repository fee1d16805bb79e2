package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddInterval_BusinessDays(t *testing.T) {
	t.Parallel()

	// 2024-05-10 is a Friday.
	tests := []struct {
		name string
		date string
		n    string
		want string
	}{
		{"zero", "2024-05-10", "0b", "2024-05-10"},
		{"friday plus one", "2024-05-10", "1b", "2024-05-13"},
		{"wednesday plus two", "2024-05-08", "2b", "2024-05-10"},
		{"wednesday plus three", "2024-05-08", "3b", "2024-05-13"},
		{"friday plus a week", "2024-05-10", "5b", "2024-05-17"},
		{"monday plus six", "2024-05-06", "6b", "2024-05-14"},
		{"saturday plus one", "2024-05-11", "1b", "2024-05-13"},
		{"sunday plus one", "2024-05-12", "1b", "2024-05-13"},
		{"sunday plus five", "2024-05-12", "5b", "2024-05-17"},
		{"thursday plus twelve", "2024-05-09", "12b", "2024-05-27"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AddInterval(tt.date, tt.n)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, stepBusinessDays(t, tt.date, tt.n), got)
		})
	}
}

// stepBusinessDays counts business days one at a time.
func stepBusinessDays(t *testing.T, date, interval string) string {
	t.Helper()

	d, err := time.Parse(DateLayout, date)
	require.NoError(t, err)
	m := intervalPattern.FindStringSubmatch(interval)
	require.NotNil(t, m)

	n := 0
	for _, c := range m[1] {
		n = n*10 + int(c-'0')
	}
	for n > 0 {
		d = d.AddDate(0, 0, 1)
		if !isWeekend(d) {
			n--
		}
	}
	return d.Format(DateLayout)
}

func TestAddInterval_Oversized(t *testing.T) {
	t.Parallel()

	done := make(chan struct{})
	go func() {
		defer close(done)

		for _, interval := range []string{"9000000000b", "9000000000d", "99999999999999999999999y", "100000w"} {
			_, err := AddInterval("2024-05-10", interval)
			assert.ErrorIs(t, err, ErrInvalidInterval, interval)
		}

		// within the count limit but past year 9999
		_, err := AddInterval("2024-05-10", "8000y")
		assert.ErrorIs(t, err, ErrInvalidInterval)

		got, err := AddInterval("2024-05-10", "99999b")
		require.NoError(t, err)
		assert.Equal(t, "2407-08-30", got)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("AddInterval did not return for an oversized interval")
	}
}

func TestTask_DeferOversizedInterval(t *testing.T) {
	t.Parallel()

	task, err := ParseTask("pay rent due:2024-05-01")
	require.NoError(t, err)

	err = task.Defer("+9000000000b", "2024-05-10", DateDue)
	assert.ErrorIs(t, err, ErrInvalidDeferSpec)
	assert.ErrorIs(t, err, ErrInvalidInterval)
	assert.Equal(t, "pay rent due:2024-05-01", task.ToLine())
}
