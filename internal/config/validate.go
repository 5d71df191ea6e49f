package config

import (
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"
)

// Validate checks that all required fields are set and values are consistent.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return errors.New("data_dir is required")
	}
	if c.Fetch.MaxRetries < 0 {
		return fmt.Errorf("fetch.max_retries must be >= 0, got %d", c.Fetch.MaxRetries)
	}
	if c.OverlayTolerance < 0 {
		return fmt.Errorf("overlay_tolerance must be >= 0, got %g", c.OverlayTolerance)
	}
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return errors.New("telegram.bot_token and telegram.chat_id must be set together")
	}
	if len(c.Series) == 0 {
		return errors.New("at least one series is required")
	}

	names := make(map[string]bool)
	files := make(map[string]string)
	needsFRED := false
	for i, s := range c.Series {
		prefix := fmt.Sprintf("series[%d]", i)
		if s.Name != "" {
			prefix = fmt.Sprintf("series %q", s.Name)
		}
		if err := s.validate(prefix); err != nil {
			return err
		}
		if names[s.Name] {
			return fmt.Errorf("%s: duplicate series name", prefix)
		}
		names[s.Name] = true
		for _, f := range []string{s.File, s.YoYFile} {
			if f == "" {
				continue
			}
			if other, ok := files[f]; ok {
				return fmt.Errorf("%s: file %q already used by series %q", prefix, f, other)
			}
			files[f] = s.Name
		}
		if s.Source == SourceFRED {
			needsFRED = true
		}
	}
	if needsFRED && c.FRED.APIKey == "" {
		return errors.New("fred.api_key is required for FRED series (set FRED_API_KEY)")
	}
	return nil
}

func (s SeriesConfig) validate(prefix string) error {
	if s.Name == "" {
		return fmt.Errorf("%s: name is required", prefix)
	}
	if s.File == "" {
		return fmt.Errorf("%s: file is required", prefix)
	}
	switch s.Source {
	case SourceYahoo, SourceFRED, SourceCSV:
		if s.Symbol == "" {
			return fmt.Errorf("%s: symbol is required for source %q", prefix, s.Source)
		}
	case SourceMock:
	case SourceJSONPath:
		if s.URL == "" || s.Path == "" {
			return fmt.Errorf("%s: url and path are required for source %q", prefix, s.Source)
		}
	case "":
		return fmt.Errorf("%s: source is required", prefix)
	default:
		return fmt.Errorf("%s: unknown source %q", prefix, s.Source)
	}
	switch s.Merge {
	case MergeAppend, MergeOverlay:
	default:
		return fmt.Errorf("%s: merge must be %q or %q, got %q", prefix, MergeAppend, MergeOverlay, s.Merge)
	}
	if s.Range != nil && s.Range.Min > s.Range.Max {
		return fmt.Errorf("%s: range min %g exceeds max %g", prefix, s.Range.Min, s.Range.Max)
	}
	if _, err := s.StartDate(); err != nil {
		return fmt.Errorf("%s: start: %w", prefix, err)
	}
	if s.Cadence != "" {
		if _, err := cron.ParseStandard(s.Cadence); err != nil {
			return fmt.Errorf("%s: cadence: %w", prefix, err)
		}
	}
	return nil
}
