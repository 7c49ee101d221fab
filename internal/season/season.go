// Package season handles "YYYY-YY" season labels used to scope every
// artifact directory, object key and warehouse slice.
package season

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// ErrInvalidSeason is returned for labels that are not "YYYY-YY" with
// consecutive years.
var ErrInvalidSeason = errors.New("season must be in format 'YYYY-YY'")

var seasonPattern = regexp.MustCompile(`^\d{4}-\d{2}$`)

// rolloverMonth is the first calendar month of a new season.
const rolloverMonth = time.August

// Validate reports whether s is a well-formed season label.
func Validate(s string) error {
	_, _, err := Parse(s)
	return err
}

// Parse splits "2024-25" into (2024, 2025).
func Parse(s string) (start, end int, err error) {
	if !seasonPattern.MatchString(s) {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidSeason, s)
	}
	start, _ = strconv.Atoi(s[:4])
	short, _ := strconv.Atoi(s[5:])
	if (start+1)%100 != short {
		return 0, 0, fmt.Errorf("%w: %q does not span consecutive years", ErrInvalidSeason, s)
	}
	return start, start + 1, nil
}

// Format builds the label for the season starting in startYear.
func Format(startYear int) string {
	return fmt.Sprintf("%04d-%02d", startYear, (startYear+1)%100)
}

// Previous returns the season before s.
func Previous(s string) (string, error) {
	start, _, err := Parse(s)
	if err != nil {
		return "", err
	}
	return Format(start - 1), nil
}

// Next returns the season after s.
func Next(s string) (string, error) {
	start, _, err := Parse(s)
	if err != nil {
		return "", err
	}
	return Format(start + 1), nil
}

// Current returns the season in progress at now. Seasons roll over in August.
func Current(now time.Time) string {
	year := now.Year()
	if now.Month() >= rolloverMonth {
		return Format(year)
	}
	return Format(year - 1)
}

// FBRefSeason converts "2024-25" into FBRef's "2024-2025".
func FBRefSeason(s string) (string, error) {
	start, end, err := Parse(s)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d-%d", start, end), nil
}

// Before reports whether season a starts strictly before season b.
func Before(a, b string) (bool, error) {
	sa, _, err := Parse(a)
	if err != nil {
		return false, err
	}
	sb, _, err := Parse(b)
	if err != nil {
		return false, err
	}
	return sa < sb, nil
}
