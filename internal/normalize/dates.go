package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// frenchMonths translates French month names (accented and bare) to their
// English equivalents before parsing.
var frenchMonths = strings.NewReplacer(
	"janvier", "january",
	"février", "february",
	"fevrier", "february",
	"mars", "march",
	"avril", "april",
	"mai", "may",
	"juin", "june",
	"juillet", "july",
	"août", "august",
	"aout", "august",
	"septembre", "september",
	"octobre", "october",
	"novembre", "november",
	"décembre", "december",
	"decembre", "december",
)

var (
	frenchWeekdayRe  = regexp.MustCompile(`\b(lundi|mardi|mercredi|jeudi|vendredi|samedi|dimanche)\b,?`)
	englishWeekdayRe = regexp.MustCompile(`\b(monday|tuesday|wednesday|thursday|friday|saturday|sunday)\b,?`)
)

var monthByName = map[string]time.Month{
	"january": time.January, "jan": time.January,
	"february": time.February, "feb": time.February,
	"march": time.March, "mar": time.March,
	"april": time.April, "apr": time.April,
	"may":  time.May,
	"june": time.June, "jun": time.June,
	"july": time.July, "jul": time.July,
	"august": time.August, "aug": time.August,
	"september": time.September, "sep": time.September, "sept": time.September,
	"october": time.October, "oct": time.October,
	"november": time.November, "nov": time.November,
	"december": time.December, "dec": time.December,
}

// NormalizeDate converts a raw, possibly French, date string to
// YYYY-MM-DD. Day-first readings are preferred over month-first ones for
// ambiguous numeric dates. Unparseable input yields the empty string. The
// function is idempotent: an already-normalized date passes through
// unchanged.
func NormalizeDate(raw string) string {
	value := cleanText(raw)
	if value == "" {
		return ""
	}

	normalized := strings.ToLower(value)
	normalized = frenchMonths.Replace(normalized)
	normalized = frenchWeekdayRe.ReplaceAllString(normalized, "")
	normalized = englishWeekdayRe.ReplaceAllString(normalized, "")
	normalized = cleanText(normalized)

	t, ok := parseDayFirst(normalized)
	if !ok {
		t, ok = parseMonthFirst(normalized)
	}
	if !ok {
		return ""
	}
	return t.Format("2006-01-02")
}

func parseDayFirst(s string) (time.Time, bool) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, true
	}
	if t, ok := parseTextual(s); ok {
		return t, true
	}
	for _, layout := range []string{"02/01/2006", "2/1/2006", "02-01-2006", "2-1-2006", "02.01.2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func parseMonthFirst(s string) (time.Time, bool) {
	for _, layout := range []string{"01/02/2006", "1/2/2006", "01-02-2006", "1-2-2006", "01.02.2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseTextual handles dates with a spelled-out English month in any
// position ("3 march 2021", "march 3, 2021"). A four-digit year is
// required; the remaining number is the day.
func parseTextual(s string) (time.Time, bool) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == ',' || r == '.'
	})

	var month time.Month
	day, year := 0, 0
	for _, f := range fields {
		if month == 0 {
			if m, ok := monthByName[f]; ok {
				month = m
				continue
			}
		}
		n, err := strconv.Atoi(f)
		if err != nil {
			continue
		}
		switch {
		case n >= 1000:
			year = n
		case day == 0:
			day = n
		}
	}
	if month == 0 || year == 0 || day < 1 || day > 31 {
		return time.Time{}, false
	}

	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || t.Month() != month {
		return time.Time{}, false
	}
	return t, true
}
