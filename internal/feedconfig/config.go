package feedconfig

// File is the on-disk shape of the feeds YAML file. Unknown fields fail
// the decode, so typos surface at startup instead of as silently ignored
// configuration.
type File struct {
	Feeds    []FeedSpec     `yaml:"feeds"`
	Settings GlobalSettings `yaml:"settings"`
}

// FeedSpec is one feed entry as written in YAML. Durations are plain
// minutes/days here; the registry converts them to time.Duration.
type FeedSpec struct {
	Name             string `yaml:"name"`
	SourceTable      string `yaml:"source_table"`
	DateColumn       string `yaml:"date_column"`
	ArrivalColumn    string `yaml:"arrival_column"` // optional; enables lateness detection
	ExpectedTime     string `yaml:"expected_time"`  // "HH:MM", 24h
	ToleranceMinutes int    `yaml:"tolerance_minutes"`
	WeekendExpected  bool   `yaml:"weekend_expected"`
	MinRecords       int    `yaml:"min_records"`
	Connection       string `yaml:"connection"`     // empty = monitoring database
	RetentionDays    int    `yaml:"retention_days"` // 0 = settings default
	Enabled          *bool  `yaml:"enabled"`        // nil = true
}

// GlobalSettings applies to all feeds.
type GlobalSettings struct {
	CheckIntervalMinutes int           `yaml:"check_interval_minutes"`
	RetentionDays        int           `yaml:"retention_days"`
	Timezone             string        `yaml:"timezone"`
	Holidays             []string      `yaml:"holidays"` // YYYY-MM-DD
	BusinessHours        Window        `yaml:"business_hours"`
	Alerts               AlertSettings `yaml:"alerts"`
}

// Window is a time-of-day range.
type Window struct {
	Start string `yaml:"start"` // HH:MM
	End   string `yaml:"end"`   // HH:MM
}

// AlertSettings configures the dispatch channels.
type AlertSettings struct {
	Log     LogChannel     `yaml:"log"`
	Webhook WebhookChannel `yaml:"webhook"`
}

// LogChannel writes transition events to the structured log.
type LogChannel struct {
	Enabled *bool `yaml:"enabled"` // nil = true
}

// On reports whether the log channel is active; it defaults to on.
func (c LogChannel) On() bool {
	return c.Enabled == nil || *c.Enabled
}

// WebhookChannel posts Slack-compatible payloads to a webhook URL.
type WebhookChannel struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Channel string `yaml:"channel"`
	// NotifyRecoveries controls whether transitions back to received
	// (e.g. delayed -> received) are posted. They are always logged.
	NotifyRecoveries bool `yaml:"notify_recoveries"`
	// PerMinute caps outbound posts so a mass outage cannot flood the
	// channel. 0 means unlimited.
	PerMinute int `yaml:"per_minute"`
}

// Defaults mirrored from the global settings when the file omits them.
const (
	defaultCheckIntervalMinutes = 10
	defaultRetentionDays        = 365
	defaultTimezone             = "UTC"
	defaultBusinessStart        = "06:00"
	defaultBusinessEnd          = "20:00"
)

func applyDefaults(f *File) {
	if f.Settings.CheckIntervalMinutes == 0 {
		f.Settings.CheckIntervalMinutes = defaultCheckIntervalMinutes
	}
	if f.Settings.RetentionDays == 0 {
		f.Settings.RetentionDays = defaultRetentionDays
	}
	if f.Settings.Timezone == "" {
		f.Settings.Timezone = defaultTimezone
	}
	if f.Settings.BusinessHours.Start == "" {
		f.Settings.BusinessHours.Start = defaultBusinessStart
	}
	if f.Settings.BusinessHours.End == "" {
		f.Settings.BusinessHours.End = defaultBusinessEnd
	}
}
