package xquery

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/topi314/campus-events/internal/xstrconv"
)

func ParseTime(query url.Values, name string, defaultValue time.Time) time.Time {
	value := query.Get(name)
	if value == "" {
		return defaultValue
	}

	parsed, err := time.Parse(time.DateOnly, value)
	if err != nil {
		parsed, err = time.Parse(time.RFC3339, value)
		if err != nil {
			return defaultValue
		}
	}
	return parsed
}

func ParseBool(query url.Values, name string, defaultValue bool) bool {
	value := query.Get(name)
	if value == "" {
		return defaultValue
	}

	parsed, err := xstrconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// ParseInt clamps the parsed value into [minValue, maxValue].
func ParseInt(query url.Values, name string, defaultValue int, minValue int, maxValue int) int {
	value := query.Get(name)
	if value == "" {
		return defaultValue
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return min(max(parsed, minValue), maxValue)
}

func ParseString(query url.Values, name string, defaultValue string) string {
	value := strings.TrimSpace(query.Get(name))
	if value == "" {
		return defaultValue
	}
	return value
}

// ParseStringSlice accepts both repeated parameters and comma separated values.
func ParseStringSlice(query url.Values, name string, defaultValue []string) []string {
	values := query[name]
	if len(values) == 0 {
		return defaultValue
	}

	var result []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			result = append(result, part)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
