package ratelimit

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var durationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)retry.?after\D*(\d+)`),
	regexp.MustCompile(`(?i)try again in\s*(\d+)`),
	regexp.MustCompile(`(?i)wait\s*(\d+)\s*second`),
	regexp.MustCompile(`(?i)(\d+)\s*seconds?\s*(?:before|until)`),
}

var absoluteResetRe = regexp.MustCompile(`(?i)resets?\s+(\d{1,2})(?::(\d{2}))?\s*(am|pm)`)

const retryAfterBuffer = 30

// extractRetryAfter looks for a duration-pattern match first, then an
// absolute wall-clock reset time. When either matches, a 30-second buffer is
// added so the wait reliably outlasts the provider's own replenishment
// window (spec.md §4.3). Returns 0 if neither matches.
func extractRetryAfter(text string) int {
	for _, re := range durationPatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if n, err := strconv.Atoi(m[1]); err == nil {
			return n + retryAfterBuffer
		}
	}

	if seconds, ok := ParseAbsoluteResetTime(text, time.Now()); ok {
		return seconds + retryAfterBuffer
	}

	return 0
}

// ParseAbsoluteResetTime finds a "resets HH(:MM)?am/pm" phrase in text and
// returns the number of seconds from now until the next occurrence of that
// wall-clock time in now's location. 12am is 00:00 and 12pm is 12:00. A time
// not yet reached today resolves to today; a time already past resolves to
// tomorrow. The result is clamped to at least 1 second.
func ParseAbsoluteResetTime(text string, now time.Time) (seconds int, ok bool) {
	m := absoluteResetRe.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}

	hour, err := strconv.Atoi(m[1])
	if err != nil || hour < 1 || hour > 12 {
		return 0, false
	}
	minute := 0
	if m[2] != "" {
		minute, err = strconv.Atoi(m[2])
		if err != nil || minute < 0 || minute > 59 {
			return 0, false
		}
	}
	meridiem := m[3]

	h24 := hour % 12
	if strings.EqualFold(meridiem, "pm") {
		h24 += 12
	}

	target := time.Date(now.Year(), now.Month(), now.Day(), h24, minute, 0, 0, now.Location())
	if !target.After(now) {
		target = target.Add(24 * time.Hour)
	}

	diff := int(target.Sub(now).Seconds())
	if diff < 1 {
		diff = 1
	}
	return diff, true
}

// ComputeBackoff implements spec.md §4.3's exponential backoff:
// min(60 * 2^attempt, maxWait). Used for transient-error retries and for
// rate-limit retries where no retry-after text was extracted.
func ComputeBackoff(attempt, maxWait int) int {
	wait := int(60 * math.Pow(2, float64(attempt)))
	if wait > maxWait {
		return maxWait
	}
	return wait
}
