package transforms

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/ncruces/go-strftime"
)

/*
 * Date transformations.
 *
 * Source datasets declare date formats in strftime notation; layouts are
 * translated to Go reference layouts via go-strftime before parsing.
 *
 * Two-digit year handling: Go (like C) pivots 69-99 to 19xx and 00-68 to
 * 20xx, which is wrong for birth dates of people born before 1969. Functions
 * taking an epoch parameter move the pivot: any parsed year at or past the
 * epoch is shifted back a century. Only formats containing %y are shifted,
 * so fully-specified years are never rewritten.
 */

const isoFormat = "%Y-%m-%d"

func parseDate(value, format string) (time.Time, error) {
	layout, err := strftime.Layout(format)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad date format %q: %w", format, err)
	}
	t, err := time.Parse(layout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("could not convert date %q from format %q", value, format)
	}
	return t, nil
}

// FormatDate renders t using a strftime format string.
func FormatDate(t time.Time, format string) (string, error) {
	layout, err := strftime.Layout(format)
	if err != nil {
		return "", fmt.Errorf("bad date format %q: %w", format, err)
	}
	return t.Format(layout), nil
}

// ReformatDate re-renders a date string from one strftime format to another.
func ReformatDate(value, sourceFormat, targetFormat string) (string, error) {
	t, err := parseDate(value, sourceFormat)
	if err != nil {
		return "", err
	}
	return FormatDate(t, targetFormat)
}

// adjustForEpoch moves two-digit years at or past the epoch back a century.
func adjustForEpoch(t time.Time, epoch float64, format string) time.Time {
	if float64(t.Year()) >= epoch && containsTwoDigitYear(format) {
		return time.Date(t.Year()-100, t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, t.Location())
	}
	return t
}

func containsTwoDigitYear(format string) bool {
	for i := 0; i+1 < len(format); i++ {
		if format[i] == '%' && format[i+1] == 'y' {
			return true
		}
	}
	return false
}

// correctOldDate reparses a date with the epoch pivot applied and returns it
// in ISO format.
func correctOldDate(value any, params ...any) (any, error) {
	if isEmpty(value) {
		return nil, nil
	}
	epoch, _ := paramFloat(params, 0)
	format := paramString(params, 1, isoFormat)
	t, err := parseDate(stringify(value), format)
	if err != nil {
		return nil, err
	}
	t = adjustForEpoch(t, epoch, format)
	return t.Format("2006-01-02"), nil
}

// yearsElapsed computes the years between two dates, using the epoch pivot
// for the start date. Useful for deriving ages from birth dates.
func yearsElapsed(value any, params ...any) (any, error) {
	currentdate := paramString(params, 0, "")
	if isEmpty(value) || currentdate == "" {
		return nil, nil
	}
	epoch, _ := paramFloat(params, 1)
	bdFormat := paramString(params, 2, isoFormat)
	cdFormat := paramString(params, 3, isoFormat)

	bd, err := parseDate(stringify(value), bdFormat)
	if err != nil {
		return nil, err
	}
	bd = adjustForEpoch(bd, epoch, bdFormat)
	cd, err := parseDate(currentdate, cdFormat)
	if err != nil {
		return nil, err
	}
	days := cd.Sub(bd).Hours() / 24
	return days / 365.25, nil
}

// durationDays returns the days between value and the first parameter, both
// in ISO format. Month-based durations are ambiguous; days are not.
func durationDays(value any, params ...any) (any, error) {
	currentdate := paramString(params, 0, "")
	if isEmpty(value) || currentdate == "" {
		return nil, nil
	}
	sd, err := parseDate(stringify(value), isoFormat)
	if err != nil {
		return nil, err
	}
	cd, err := parseDate(currentdate, isoFormat)
	if err != nil {
		return nil, err
	}
	return int64(cd.Sub(sd).Hours() / 24), nil
}

// startDate subtracts a duration in days from an end date.
func startDate(value any, params ...any) (any, error) {
	if len(params) < 1 || isEmpty(value) || isEmpty(params[0]) {
		return nil, nil
	}
	ed, err := parseDate(stringify(value), isoFormat)
	if err != nil {
		return nil, err
	}
	duration, ok := toFloat(params[0])
	if !ok {
		return nil, fmt.Errorf("startDate: bad duration %v", params[0])
	}
	sd := ed.Add(-time.Duration(duration * 24 * float64(time.Hour)))
	return sd.Format("2006-01-02"), nil
}

// endDate adds a duration in days to a start date.
func endDate(value any, params ...any) (any, error) {
	if len(params) < 1 || isEmpty(value) || isEmpty(params[0]) {
		return nil, nil
	}
	format := paramString(params, 1, isoFormat)
	sd, err := parseDate(stringify(value), format)
	if err != nil {
		return nil, err
	}
	duration, ok := toFloat(params[0])
	if !ok {
		return nil, fmt.Errorf("endDate: bad duration %v", params[0])
	}
	ed := sd.Add(time.Duration(duration * 24 * float64(time.Hour)))
	return ed.Format("2006-01-02"), nil
}

// makeDate builds an ISO date from year, month and day components.
func makeDate(value any, params ...any) (any, error) {
	if len(params) < 2 || isEmpty(value) || isEmpty(params[0]) || isEmpty(params[1]) {
		return nil, nil
	}
	year, ok1 := toInt(value)
	month, ok2 := toInt(params[0])
	day, ok3 := toInt(params[1])
	if !ok1 || !ok2 || !ok3 {
		return nil, fmt.Errorf("could not construct date from: year=%v, month=%v, day=%v", value, params[0], params[1])
	}
	t := time.Date(int(year), time.Month(month), int(day), 0, 0, 0, 0, time.UTC)
	// Go normalizes out-of-range components instead of failing; reject any
	// date that did not survive the round trip.
	if t.Year() != int(year) || t.Month() != time.Month(month) || t.Day() != int(day) {
		return nil, fmt.Errorf("could not construct date from: year=%v, month=%v, day=%v", value, params[0], params[1])
	}
	return t.Format("2006-01-02"), nil
}

// makeDateTime combines a date and an HH:MM time in a named timezone.
func makeDateTime(value any, params ...any) (any, error) {
	if isEmpty(value) {
		return nil, nil
	}
	time24 := paramString(params, 0, "")
	format := paramString(params, 1, isoFormat)
	zone := paramString(params, 2, "UTC")

	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("makeDateTime: unknown timezone %q", zone)
	}
	d, err := parseDate(stringify(value), format)
	if err != nil {
		return nil, err
	}
	if time24 == "" {
		return d.Format("2006-01-02"), nil
	}
	t, err := time.Parse("15:04", time24)
	if err != nil {
		return nil, fmt.Errorf("makeDateTime: bad time %q", time24)
	}
	dt := time.Date(d.Year(), d.Month(), d.Day(), t.Hour(), t.Minute(), 0, 0, loc)
	return dt.Format("2006-01-02T15:04:05-07:00"), nil
}

// makeDateTimeFromSeconds combines a date with a time given as elapsed
// seconds since the start of the day.
func makeDateTimeFromSeconds(value any, params ...any) (any, error) {
	if isEmpty(value) {
		return nil, nil
	}
	format := paramString(params, 1, isoFormat)
	zone := paramString(params, 2, "UTC")

	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("makeDateTimeFromSeconds: unknown timezone %q", zone)
	}
	d, err := parseDate(stringify(value), format)
	if err != nil {
		return nil, err
	}
	if len(params) < 1 || isEmpty(params[0]) {
		return d.Format("2006-01-02"), nil
	}
	secs, ok := toInt(params[0])
	if !ok {
		return nil, fmt.Errorf("makeDateTimeFromSeconds: bad seconds %v", params[0])
	}
	hour := int(secs) / 3600
	minute := (int(secs) % 3600) / 60
	dt := time.Date(d.Year(), d.Month(), d.Day(), hour, minute, 0, 0, loc)
	return dt.Format("2006-01-02T15:04:05-07:00"), nil
}

// splitDate extracts the year, month or day component of a date.
func splitDate(value any, params ...any) (any, error) {
	if isEmpty(value) {
		return nil, nil
	}
	option := paramString(params, 0, "")
	epoch, _ := paramFloat(params, 1)
	format := paramString(params, 2, isoFormat)

	t, err := parseDate(stringify(value), format)
	if err != nil {
		return nil, err
	}
	t = adjustForEpoch(t, epoch, format)
	switch option {
	case "year":
		return int64(t.Year()), nil
	case "month":
		return int64(t.Month()), nil
	case "day":
		return int64(t.Day()), nil
	default:
		return nil, fmt.Errorf("splitDate: invalid option %q", option)
	}
}

// startYear derives the year a duration ago from a reference date, e.g. a
// birth year from an age and an observation date.
func startYear(value any, params ...any) (any, error) {
	t, duration, ok, err := startOffset(value, params)
	if err != nil || !ok {
		return nil, err
	}
	durationType := paramString(params, 3, "years")
	switch durationType {
	case "years":
		return int64(t.Year()) - int64(math.Floor(duration)), nil
	case "months":
		return int64(addMonths(t, -int(math.Floor(duration))).Year()), nil
	case "days":
		return int64(t.Add(-time.Duration(duration * 24 * float64(time.Hour))).Year()), nil
	default:
		return nil, fmt.Errorf("startYear: invalid duration type %q", durationType)
	}
}

// startMonth is startYear's month counterpart; a duration in whole years
// cannot shift the month, so only months and days apply.
func startMonth(value any, params ...any) (any, error) {
	t, duration, ok, err := startOffset(value, params)
	if err != nil || !ok {
		return nil, err
	}
	durationType := paramString(params, 3, "years")
	switch durationType {
	case "months":
		return int64(addMonths(t, -int(math.Floor(duration))).Month()), nil
	case "days":
		return int64(t.Add(-time.Duration(duration * 24 * float64(time.Hour))).Month()), nil
	default:
		return nil, nil
	}
}

// startOffset parses the shared (duration, currentdate, epoch, dateformat,
// duration_type, provide_month_day) parameter convention of startYear and
// startMonth. The reference date may be a list searched for its first
// non-empty entry.
func startOffset(value any, params []any) (time.Time, float64, bool, error) {
	var current any
	if len(params) > 0 {
		current = params[0]
	}
	if list, ok := current.([]any); ok {
		current = nil
		for _, v := range list {
			if !isEmpty(v) {
				current = v
				break
			}
		}
	}
	if isEmpty(value) || isEmpty(current) {
		return time.Time{}, 0, false, nil
	}
	duration, ok := toFloat(value)
	if !ok {
		return time.Time{}, 0, false, fmt.Errorf("bad duration %v", value)
	}
	epoch, _ := paramFloat(params, 1)
	format := paramString(params, 2, isoFormat)

	if len(params) > 4 {
		if md, ok := params[4].([]any); ok && len(md) == 2 {
			iso, err := makeDate(current, md[0], md[1])
			if err != nil || iso == nil {
				return time.Time{}, 0, false, err
			}
			t, err := parseDate(iso.(string), isoFormat)
			return t, duration, err == nil, err
		}
	}
	t, err := parseDate(stringify(current), format)
	if err != nil {
		return time.Time{}, 0, false, err
	}
	return adjustForEpoch(t, epoch, format), duration, true, nil
}

// addMonths shifts t by a number of months, clamping the day to the target
// month's length rather than normalizing past it.
func addMonths(t time.Time, months int) time.Time {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	first = first.AddDate(0, months, 0)
	day := t.Day()
	if last := first.AddDate(0, 1, -1).Day(); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, t.Location())
}

func toInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if n == math.Trunc(n) {
			return int64(n), true
		}
		return 0, false
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	default:
		return 0, false
	}
}
