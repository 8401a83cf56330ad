package command

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	tick       = 100 * time.Nanosecond
	day        = 24 * time.Hour
	maxDays    = int64(math.MaxInt64 / int64(day))
	ticksWidth = 7
)

var (
	clockTimespanRe   = regexp.MustCompile(`^(-)?(?:(\d+)\.)?(\d{1,2}):(\d{1,2})(?::(\d{1,2})(?:\.(\d{1,7}))?)?$`)
	daysTimespanRe    = regexp.MustCompile(`^(-)?(\d+)$`)
	literalTimespanRe = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*(d|h|m|s|ms)$`)
)

// ParseTimespan parses the .NET TimeSpan form used in policy payloads
// ("36500.00:00:00", "01:30:00", "7") or a Kusto timespan literal ("7d", "12h").
func ParseTimespan(value string) (time.Duration, error) {
	text := strings.TrimSpace(value)
	if text == "" {
		return 0, fmt.Errorf("empty timespan")
	}
	if m := daysTimespanRe.FindStringSubmatch(text); m != nil {
		days, err := strconv.ParseInt(m[2], 10, 64)
		if err != nil || days > maxDays {
			return 0, fmt.Errorf("timespan %q out of range", value)
		}
		d := time.Duration(days) * day
		if m[1] == "-" {
			d = -d
		}
		return d, nil
	}
	if m := clockTimespanRe.FindStringSubmatch(text); m != nil {
		return parseClockTimespan(value, m)
	}
	if m := literalTimespanRe.FindStringSubmatch(strings.ToLower(text)); m != nil {
		return parseLiteralTimespan(value, m[1], m[2])
	}
	return 0, fmt.Errorf("invalid timespan %q", value)
}

func parseClockTimespan(value string, m []string) (time.Duration, error) {
	var days int64
	if m[2] != "" {
		parsed, err := strconv.ParseInt(m[2], 10, 64)
		if err != nil || parsed > maxDays {
			return 0, fmt.Errorf("timespan %q out of range", value)
		}
		days = parsed
	}
	hours, _ := strconv.Atoi(m[3])
	minutes, _ := strconv.Atoi(m[4])
	seconds := 0
	if m[5] != "" {
		seconds, _ = strconv.Atoi(m[5])
	}
	if hours > 23 || minutes > 59 || seconds > 59 {
		return 0, fmt.Errorf("timespan %q out of range", value)
	}
	var ticks int64
	if m[6] != "" {
		fraction := m[6] + strings.Repeat("0", ticksWidth-len(m[6]))
		ticks, _ = strconv.ParseInt(fraction, 10, 64)
	}
	d := time.Duration(days)*day +
		time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds)*time.Second +
		time.Duration(ticks)*tick
	if d < 0 {
		return 0, fmt.Errorf("timespan %q out of range", value)
	}
	if m[1] == "-" {
		d = -d
	}
	return d, nil
}

func parseLiteralTimespan(value, amount, unit string) (time.Duration, error) {
	number, err := strconv.ParseFloat(amount, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid timespan %q: %w", value, err)
	}
	var scale time.Duration
	switch unit {
	case "d":
		scale = day
	case "h":
		scale = time.Hour
	case "m":
		scale = time.Minute
	case "s":
		scale = time.Second
	default:
		scale = time.Millisecond
	}
	total := number * float64(scale)
	if total > float64(math.MaxInt64) {
		return 0, fmt.Errorf("timespan %q out of range", value)
	}
	return time.Duration(total).Truncate(tick), nil
}

// FormatTimespan renders a duration in .NET TimeSpan form, the inverse of
// ParseTimespan at 100ns resolution.
func FormatTimespan(d time.Duration) string {
	var b strings.Builder
	if d < 0 {
		b.WriteByte('-')
		d = -d
	}
	days := d / day
	rest := d % day
	hours := rest / time.Hour
	rest %= time.Hour
	minutes := rest / time.Minute
	rest %= time.Minute
	seconds := rest / time.Second
	ticks := (rest % time.Second) / tick

	if days > 0 {
		b.WriteString(strconv.FormatInt(int64(days), 10))
		b.WriteByte('.')
	}
	fmt.Fprintf(&b, "%02d:%02d:%02d", hours, minutes, seconds)
	if ticks > 0 {
		fmt.Fprintf(&b, ".%07d", ticks)
	}
	return b.String()
}
