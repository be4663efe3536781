// ABOUTME: Value formatting helpers for composed logs
// ABOUTME: Durations in English, offset-aware moment-style dates and call leg journeys
package compose

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/harperreed/callbridge/models"
)

// DefaultDateFormat is used when the user has not configured a date pattern.
const DefaultDateFormat = "YYYY-MM-DD hh:mm:ss A"

// SecondsToHoursMinutesSeconds renders a duration such as "1 hour, 1 minute, 1 second".
func SecondsToHoursMinutesSeconds(seconds int) string {
	if seconds < 0 {
		seconds = -seconds
	}
	hours := seconds / 3600
	minutes := seconds % 3600 / 60
	secs := seconds % 60

	var parts []string
	if hours > 0 {
		parts = append(parts, plural(hours, "hour"))
	}
	if minutes > 0 {
		parts = append(parts, plural(minutes, "minute"))
	}
	if secs > 0 {
		parts = append(parts, plural(secs, "second"))
	}
	if len(parts) == 0 {
		return "0 seconds"
	}
	return strings.Join(parts, ", ")
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// FormatDuration renders numeric durations, including numeric strings, in
// English. Anything else is passed through unchanged; nil renders as empty.
func FormatDuration(v any) string {
	switch d := v.(type) {
	case nil:
		return ""
	case int:
		return SecondsToHoursMinutesSeconds(d)
	case *int:
		if d == nil {
			return ""
		}
		return SecondsToHoursMinutesSeconds(*d)
	case int32:
		return SecondsToHoursMinutesSeconds(int(d))
	case int64:
		return SecondsToHoursMinutesSeconds(int(d))
	case float64:
		return SecondsToHoursMinutesSeconds(int(math.Round(d)))
	case json.Number:
		if n, err := d.Int64(); err == nil {
			return SecondsToHoursMinutesSeconds(int(n))
		}
		return d.String()
	case time.Duration:
		return SecondsToHoursMinutesSeconds(int(d / time.Second))
	case string:
		trimmed := strings.TrimSpace(d)
		if n, err := strconv.Atoi(trimmed); err == nil {
			return SecondsToHoursMinutesSeconds(n)
		}
		if f, err := strconv.ParseFloat(trimmed, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			return SecondsToHoursMinutesSeconds(int(math.Round(f)))
		}
		return d
	default:
		return fmt.Sprint(v)
	}
}

var offsetPattern = regexp.MustCompile(`^([+-])?(\d{1,2}):(\d{2})$`)

// TimezoneLocation converts a user timezone offset into a fixed zone. The
// offset is either a "+HH:MM" string or a number, read as hours when its
// magnitude is below 16 and as minutes otherwise. Unparseable offsets are UTC.
func TimezoneLocation(offset any) *time.Location {
	minutes, ok := offsetMinutes(offset)
	if !ok || minutes == 0 {
		return time.UTC
	}
	return time.FixedZone("", minutes*60)
}

func offsetMinutes(offset any) (int, bool) {
	switch v := offset.(type) {
	case nil:
		return 0, false
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0, false
		}
		if m := offsetPattern.FindStringSubmatch(s); m != nil {
			h, _ := strconv.Atoi(m[2])
			mm, _ := strconv.Atoi(m[3])
			total := h*60 + mm
			if m[1] == "-" {
				total = -total
			}
			return total, true
		}
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return numericOffset(n), true
	case int:
		return numericOffset(float64(v)), true
	case int64:
		return numericOffset(float64(v)), true
	case float64:
		return numericOffset(v), true
	case json.Number:
		n, err := v.Float64()
		if err != nil {
			return 0, false
		}
		return numericOffset(n), true
	}
	return 0, false
}

func numericOffset(n float64) int {
	if math.Abs(n) < 16 {
		return int(math.Round(n * 60))
	}
	return int(math.Round(n))
}

// FormatDateTime renders t in the zone of offset using a moment-style pattern.
func FormatDateTime(t time.Time, offset any, pattern string) string {
	if pattern == "" {
		pattern = DefaultDateFormat
	}
	return formatMoment(t.In(TimezoneLocation(offset)), pattern)
}

var momentTokens = []string{
	"YYYY", "YY", "MMMM", "MMM", "MM", "M", "DD", "D", "dddd", "ddd",
	"HH", "H", "hh", "h", "mm", "m", "ss", "s", "A", "a", "ZZ", "Z",
}

func formatMoment(t time.Time, pattern string) string {
	var b strings.Builder
	for i := 0; i < len(pattern); {
		if pattern[i] == '[' {
			if end := strings.IndexByte(pattern[i:], ']'); end > 0 {
				b.WriteString(pattern[i+1 : i+end])
				i += end + 1
				continue
			}
		}
		matched := false
		for _, tok := range momentTokens {
			if strings.HasPrefix(pattern[i:], tok) {
				b.WriteString(momentToken(t, tok))
				i += len(tok)
				matched = true
				break
			}
		}
		if !matched {
			b.WriteByte(pattern[i])
			i++
		}
	}
	return b.String()
}

func momentToken(t time.Time, tok string) string {
	hour12 := t.Hour() % 12
	if hour12 == 0 {
		hour12 = 12
	}
	switch tok {
	case "YYYY":
		return fmt.Sprintf("%04d", t.Year())
	case "YY":
		return fmt.Sprintf("%02d", t.Year()%100)
	case "MMMM":
		return t.Month().String()
	case "MMM":
		return t.Month().String()[:3]
	case "MM":
		return fmt.Sprintf("%02d", int(t.Month()))
	case "M":
		return strconv.Itoa(int(t.Month()))
	case "DD":
		return fmt.Sprintf("%02d", t.Day())
	case "D":
		return strconv.Itoa(t.Day())
	case "dddd":
		return t.Weekday().String()
	case "ddd":
		return t.Weekday().String()[:3]
	case "HH":
		return fmt.Sprintf("%02d", t.Hour())
	case "H":
		return strconv.Itoa(t.Hour())
	case "hh":
		return fmt.Sprintf("%02d", hour12)
	case "h":
		return strconv.Itoa(hour12)
	case "mm":
		return fmt.Sprintf("%02d", t.Minute())
	case "m":
		return strconv.Itoa(t.Minute())
	case "ss":
		return fmt.Sprintf("%02d", t.Second())
	case "s":
		return strconv.Itoa(t.Second())
	case "A":
		if t.Hour() < 12 {
			return "AM"
		}
		return "PM"
	case "a":
		if t.Hour() < 12 {
			return "am"
		}
		return "pm"
	case "ZZ":
		return t.Format("-0700")
	case "Z":
		return t.Format("-07:00")
	}
	return tok
}

// PartyDescriptor renders a call party as "Name, number, ext N", dropping the
// parts that are missing.
func PartyDescriptor(p models.CallParty) string {
	var number string
	switch {
	case p.PhoneNumber != "" && p.ExtensionNumber != "":
		number = p.PhoneNumber + ", ext " + p.ExtensionNumber
	case p.PhoneNumber != "":
		number = p.PhoneNumber
	case p.ExtensionNumber != "":
		number = "ext " + p.ExtensionNumber
	}
	switch {
	case p.Name != "" && number != "":
		return p.Name + ", " + number
	case p.Name != "":
		return p.Name
	}
	return number
}

// CallJourney renders the legs of a call in order, one line per leg.
func CallJourney(legs []models.CallLeg) string {
	lines := make([]string, 0, len(legs))
	for i, leg := range legs {
		if i == 0 {
			if leg.Direction == models.DirectionOutbound {
				lines = append(lines, "Made call from "+PartyDescriptor(leg.From))
			} else {
				lines = append(lines, "Received call at "+PartyDescriptor(leg.To))
			}
			continue
		}
		lines = append(lines, fmt.Sprintf("Transferred to %s, duration: %s",
			PartyDescriptor(leg.To), plural(leg.Duration, "second")))
	}
	return strings.Join(lines, "\n")
}
