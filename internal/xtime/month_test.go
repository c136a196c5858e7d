package xtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMonth(t *testing.T) {
	got, err := ParseMonth("2024-04", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC), got)

	_, err = ParseMonth("April 2024", time.UTC)
	assert.Error(t, err)
}

func TestMonthRange(t *testing.T) {
	start, end := MonthRange(time.Date(2024, time.December, 17, 13, 4, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2024, time.December, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC), end)
}

func TestLastMonths(t *testing.T) {
	months := LastMonths(time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC), 4)
	keys := make([]string, 0, len(months))
	for _, m := range months {
		keys = append(keys, MonthKey(m))
	}
	assert.Equal(t, []string{"2023-11", "2023-12", "2024-01", "2024-02"}, keys)
}
