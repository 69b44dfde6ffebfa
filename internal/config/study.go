package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/i474232898/climate-zones/internal/climate"
)

// Study is the set of zones and years every flow works on.
type Study struct {
	Zones        []climate.Zone `yaml:"zones" validate:"required,min=1,dive"`
	FirstYear    int            `yaml:"first_year" validate:"gte=1940"`
	LastYear     int            `yaml:"last_year" validate:"gtefield=FirstYear"`
	ArchiveStart string         `yaml:"archive_start" validate:"required,datetime=2006-01-02"`
	ArchiveEnd   string         `yaml:"archive_end" validate:"required,datetime=2006-01-02"`
	Highlights   []int          `yaml:"highlights" validate:"max=2,dive,gte=1940"`
}

// DefaultStudy is used when no zones file exists.
func DefaultStudy() Study {
	return Study{
		Zones: []climate.Zone{
			{Label: "Worse_Zone_1", Latitude: 56.0, Longitude: 15.8},
			{Label: "Worse_Zone_2", Latitude: 57.7, Longitude: 18.4},
			{Label: "Better_Zone_1", Latitude: 56.7, Longitude: 16.5},
			{Label: "Better_Zone_2", Latitude: 57.2, Longitude: 17.0},
		},
		FirstYear:    2016,
		LastYear:     2024,
		ArchiveStart: "2016-01-01",
		ArchiveEnd:   "2024-12-31",
		Highlights:   []int{2016, 2024},
	}
}

// LoadStudy reads a YAML zones file. A missing file yields DefaultStudy;
// fields left out of the file keep their default values.
func LoadStudy(path string) (Study, error) {
	study := DefaultStudy()

	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return study, nil
	}
	if err != nil {
		return Study{}, fmt.Errorf("read zones file %s: %w", path, err)
	}

	var file Study
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return Study{}, fmt.Errorf("parse zones file %s: %w", path, err)
	}
	if len(file.Zones) > 0 {
		study.Zones = file.Zones
	}
	if file.FirstYear != 0 {
		study.FirstYear = file.FirstYear
	}
	if file.LastYear != 0 {
		study.LastYear = file.LastYear
	}
	if file.ArchiveStart != "" {
		study.ArchiveStart = file.ArchiveStart
	}
	if file.ArchiveEnd != "" {
		study.ArchiveEnd = file.ArchiveEnd
	}
	if file.Highlights != nil {
		study.Highlights = file.Highlights
	}

	if err := study.Validate(); err != nil {
		return Study{}, fmt.Errorf("zones file %s: %w", path, err)
	}
	return study, nil
}

// Validate checks field rules, label uniqueness and the archive window.
func (s Study) Validate() error {
	if err := validate.Struct(s); err != nil {
		return err
	}

	seen := make(map[string]bool, len(s.Zones))
	for _, z := range s.Zones {
		if seen[z.Label] {
			return fmt.Errorf("duplicate zone label %q", z.Label)
		}
		seen[z.Label] = true
	}

	start, end, err := s.ArchiveRange()
	if err != nil {
		return err
	}
	if end.Before(start) {
		return fmt.Errorf("archive_end %s is before archive_start %s", s.ArchiveEnd, s.ArchiveStart)
	}
	return nil
}

// Years lists FirstYear..LastYear.
func (s Study) Years() []int {
	var years []int
	for y := s.FirstYear; y <= s.LastYear; y++ {
		years = append(years, y)
	}
	return years
}

// ArchiveRange parses the archive window.
func (s Study) ArchiveRange() (time.Time, time.Time, error) {
	start, err := time.Parse(climate.DateLayout, s.ArchiveStart)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("archive_start: %w", err)
	}
	end, err := time.Parse(climate.DateLayout, s.ArchiveEnd)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("archive_end: %w", err)
	}
	return start, end, nil
}

// Zone looks a zone up by label.
func (s Study) Zone(label string) (climate.Zone, bool) {
	for _, z := range s.Zones {
		if z.Label == label {
			return z, true
		}
	}
	return climate.Zone{}, false
}
