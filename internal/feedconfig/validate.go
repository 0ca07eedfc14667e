package feedconfig

import (
	"fmt"
	"regexp"
	"time"
)

// ValidationError is a configuration violation. Any single violation
// aborts startup; the engine never runs with a partially valid registry.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var hhmmRe = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

func validateHHMM(value string) error {
	if !hhmmRe.MatchString(value) {
		return fmt.Errorf("must be HH:MM (24h), got %q", value)
	}
	return nil
}

// Validate checks every constraint on the decoded file.
func Validate(f *File) error {
	if len(f.Feeds) == 0 {
		return ValidationError{"feeds", "at least one feed must be configured"}
	}

	seen := make(map[string]bool, len(f.Feeds))
	for i, feed := range f.Feeds {
		field := fmt.Sprintf("feeds[%d]", i)

		if feed.Name == "" {
			return ValidationError{field + ".name", "required"}
		}
		if seen[feed.Name] {
			return ValidationError{field + ".name", fmt.Sprintf("duplicate feed name %q", feed.Name)}
		}
		seen[feed.Name] = true

		if feed.SourceTable == "" {
			return ValidationError{field + ".source_table", "required"}
		}
		if feed.DateColumn == "" {
			return ValidationError{field + ".date_column", "required"}
		}
		if err := validateHHMM(feed.ExpectedTime); err != nil {
			return ValidationError{field + ".expected_time", err.Error()}
		}
		if feed.ToleranceMinutes < 0 {
			return ValidationError{field + ".tolerance_minutes", "must be >= 0"}
		}
		if feed.MinRecords < 0 {
			return ValidationError{field + ".min_records", "must be >= 0"}
		}
		if feed.RetentionDays < 0 {
			return ValidationError{field + ".retention_days", "must be >= 0"}
		}
	}

	s := &f.Settings

	if s.CheckIntervalMinutes <= 0 {
		return ValidationError{"settings.check_interval_minutes", "must be > 0"}
	}
	if s.RetentionDays <= 0 {
		return ValidationError{"settings.retention_days", "must be > 0"}
	}

	if _, err := time.LoadLocation(s.Timezone); err != nil {
		return ValidationError{"settings.timezone", fmt.Sprintf("unknown timezone %q", s.Timezone)}
	}

	holidaySeen := make(map[string]bool, len(s.Holidays))
	for i, h := range s.Holidays {
		field := fmt.Sprintf("settings.holidays[%d]", i)
		if _, err := time.Parse("2006-01-02", h); err != nil {
			return ValidationError{field, fmt.Sprintf("must be YYYY-MM-DD, got %q", h)}
		}
		if holidaySeen[h] {
			return ValidationError{field, fmt.Sprintf("duplicate holiday %q", h)}
		}
		holidaySeen[h] = true
	}

	if err := validateHHMM(s.BusinessHours.Start); err != nil {
		return ValidationError{"settings.business_hours.start", err.Error()}
	}
	if err := validateHHMM(s.BusinessHours.End); err != nil {
		return ValidationError{"settings.business_hours.end", err.Error()}
	}
	start, _ := time.Parse("15:04", s.BusinessHours.Start)
	end, _ := time.Parse("15:04", s.BusinessHours.End)
	if !start.Before(end) {
		return ValidationError{"settings.business_hours", "start must be before end"}
	}

	if s.Alerts.Webhook.Enabled && s.Alerts.Webhook.URL == "" {
		return ValidationError{"settings.alerts.webhook.url", "required when webhook is enabled"}
	}
	if s.Alerts.Webhook.PerMinute < 0 {
		return ValidationError{"settings.alerts.webhook.per_minute", "must be >= 0"}
	}

	return nil
}
