// Package normalize maps backend field shapes to domain models and back, so
// nothing above the repository sees backend names or encodings.
package normalize

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"hospops/internal/models"
)

const (
	DateTimeLayout = "2006-01-02T15:04:05"
	DateLayout     = "2006-01-02"
)

const (
	flagYes = "Y"
	flagNo  = "N"
)

// StatusFromFlag maps the backend isActive flag. Anything other than "Y" is
// treated as inactive.
func StatusFromFlag(flag string) models.RecordStatus {
	if strings.EqualFold(strings.TrimSpace(flag), flagYes) {
		return models.StatusActive
	}
	return models.StatusInactive
}

// FlagFromStatus is the inverse of StatusFromFlag; an unset status is active.
func FlagFromStatus(s models.RecordStatus) string {
	if s == models.StatusInactive {
		return flagNo
	}
	return flagYes
}

func genderFromWire(g string) models.Gender {
	switch strings.ToUpper(strings.TrimSpace(g)) {
	case "M", "MALE":
		return models.GenderMale
	case "F", "FEMALE":
		return models.GenderFemale
	}
	return models.GenderUnknown
}

func genderToWire(g models.Gender) string {
	switch g {
	case models.GenderMale:
		return "M"
	case models.GenderFemale:
		return "F"
	}
	return ""
}

// ParseTime reads a backend datetime. Empty input yields nil. Date-only and
// RFC3339 values are accepted as well.
func ParseTime(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{DateTimeLayout, time.RFC3339Nano, "2006-01-02 15:04:05", DateLayout} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("unrecognized time %q", s)
}

// FormatTime renders t in the backend datetime layout; nil renders "".
func FormatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.In(time.Local).Format(DateTimeLayout)
}

// FormatDate renders t as a backend date.
func FormatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.In(time.Local).Format(DateLayout)
}

var floorPattern = regexp.MustCompile(`^(\d+)층$`)

const basementWord = "지하"

// ParseLocation splits the composite backend location. The first token is
// the building; a remainder "<n>층" gives floor n and a remainder containing
// "지하" gives the basement sentinel. Anything else leaves the floor empty.
// The original text is always kept in Raw.
func ParseLocation(s string) models.Location {
	loc := models.Location{Raw: s}
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return loc
	}
	loc.BuildingNo = fields[0]
	rest := strings.Join(fields[1:], " ")
	switch {
	case rest == "":
	case floorPattern.MatchString(rest):
		loc.FloorNo = floorPattern.FindStringSubmatch(rest)[1]
	case strings.Contains(rest, basementWord):
		loc.FloorNo = models.BasementFloor
	}
	return loc
}

// FormatLocation rebuilds the composite string. Raw is returned unchanged
// only when it describes the same building and had no floor either, so free
// text outside the grammar survives a round trip while a cleared floor does
// not come back.
func FormatLocation(loc models.Location) string {
	building := strings.TrimSpace(loc.BuildingNo)
	if building == "" {
		return loc.Raw
	}
	switch loc.FloorNo {
	case models.BasementFloor:
		return building + " " + basementWord
	case "":
		if raw := ParseLocation(loc.Raw); loc.Raw != "" && raw.BuildingNo == building && raw.FloorNo == "" {
			return loc.Raw
		}
		return building
	}
	return building + " " + loc.FloorNo + "층"
}
