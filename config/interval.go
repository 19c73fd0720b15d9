package config

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

/*
Retention durations are configured as calendar-style interval strings, as in
"interval 30 days" or "interval 1 week 12 hours". The leading "interval"
keyword is optional. Units are fixed-length only: months and years are
rejected since their duration depends on the date.
*/

////////////////////////////////////////////////////////////////////////////////

var intervalOptions = []participle.Option{ // nolint:gochecknoglobals
	participle.Lexer(
		lexer.MustSimple([]lexer.SimpleRule{
			{Name: "Word", Pattern: `[a-z]+`},
			{Name: "Integer", Pattern: `[0-9]+`},
			{Name: "whitespace", Pattern: `\s+`},
		}),
	),
}

var intervalParser = participle.MustBuild[intervalExpr](intervalOptions...) // nolint:gochecknoglobals

type intervalExpr struct {
	Keyword bool           `@"interval"?`
	Terms   []intervalTerm `@@+`
}

type intervalTerm struct {
	Quantity int64  `@Integer`
	Unit     string `@Word`
}

var units = map[string]time.Duration{ // nolint:gochecknoglobals
	"nanosecond":  time.Nanosecond,
	"microsecond": time.Microsecond,
	"millisecond": time.Millisecond,
	"second":      time.Second,
	"minute":      time.Minute,
	"hour":        time.Hour,
	"day":         24 * time.Hour,
	"week":        7 * 24 * time.Hour,
}

// InvalidIntervalError is returned when an interval string cannot be parsed.
type InvalidIntervalError struct {
	Input  string
	Reason string
}

func (e InvalidIntervalError) Error() string {
	return fmt.Sprintf("invalid interval %q: %s", e.Input, e.Reason)
}

func (e InvalidIntervalError) Is(target error) bool {
	_, ok := target.(InvalidIntervalError)
	return ok
}

// ParseInterval parses an interval string into a duration.
func ParseInterval(s string) (time.Duration, error) {
	expr, err := intervalParser.ParseString("", strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return 0, InvalidIntervalError{Input: s, Reason: err.Error()}
	}
	var total time.Duration
	for _, term := range expr.Terms {
		unit, ok := units[strings.TrimSuffix(term.Unit, "s")]
		if !ok {
			return 0, InvalidIntervalError{Input: s, Reason: fmt.Sprintf("unsupported unit %q", term.Unit)}
		}
		if term.Quantity > int64(math.MaxInt64/unit) {
			return 0, InvalidIntervalError{Input: s, Reason: "interval overflows"}
		}
		d := time.Duration(term.Quantity) * unit
		if total > math.MaxInt64-d {
			return 0, InvalidIntervalError{Input: s, Reason: "interval overflows"}
		}
		total += d
	}
	return total, nil
}

// FormatInterval renders a duration as an interval string that ParseInterval
// accepts, using the largest units that divide it exactly.
func FormatInterval(d time.Duration) string {
	if d == 0 {
		return "interval 0 seconds"
	}
	order := []string{"week", "day", "hour", "minute", "second", "millisecond", "microsecond", "nanosecond"}
	parts := []string{"interval"}
	remaining := d
	for _, name := range order {
		unit := units[name]
		n := remaining / unit
		if n == 0 {
			continue
		}
		remaining -= n * unit
		if n == 1 {
			parts = append(parts, fmt.Sprintf("1 %s", name))
		} else {
			parts = append(parts, fmt.Sprintf("%d %ss", int64(n), name))
		}
	}
	return strings.Join(parts, " ")
}
