package availability

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/medsched/agenda-api/internal/model"
)

// timeToMinutes parses a zero-padded "HH:MM" value into minutes since
// midnight. Returns -1 for anything it cannot parse.
func timeToMinutes(s string) int {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return -1
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil {
		return -1
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil {
		return -1
	}
	if hours < 0 || hours > 23 || minutes < 0 || minutes > 59 {
		return -1
	}
	return hours*60 + minutes
}

// minutesToTime renders minutes since midnight as zero-padded "HH:MM",
// which sorts correctly as a plain string.
func minutesToTime(total int) string {
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

// GenerateSlots expands one work-schedule rule into the ordered slot
// start times it covers. A slot is only emitted when the entire duration
// fits before the rule's end time; there is no partial trailing slot.
// Degenerate rules (non-positive duration, inverted or unparseable
// range) yield an empty set rather than an error, so callers treat "no
// availability" uniformly.
func GenerateSlots(rule *model.WorkScheduleRule) []string {
	start := timeToMinutes(rule.StartTime)
	end := timeToMinutes(rule.EndTime)
	duration := rule.SlotDurationMinutes

	if start < 0 || end < 0 || duration <= 0 {
		return nil
	}

	var slots []string
	for current := start; current+duration <= end; current += duration {
		slots = append(slots, minutesToTime(current))
	}
	return slots
}
