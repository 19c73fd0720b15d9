package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wkalt/tablelog/config"
)

const day = 24 * time.Hour

func TestParseInterval(t *testing.T) {
	cases := []struct {
		assertion string
		input     string
		expected  time.Duration
	}{
		{"days", "interval 30 days", 30 * day},
		{"singular week", "interval 1 week", 7 * day},
		{"without keyword", "12 hours", 12 * time.Hour},
		{"compound", "interval 1 week 2 days 3 hours", 9*day + 3*time.Hour},
		{"case insensitive", "INTERVAL 2 Minutes", 2 * time.Minute},
		{"surrounding whitespace", "  interval 5 seconds ", 5 * time.Second},
		{"milliseconds", "interval 250 milliseconds", 250 * time.Millisecond},
		{"zero", "interval 0 days", 0},
	}
	for _, c := range cases {
		t.Run(c.assertion, func(t *testing.T) {
			d, err := config.ParseInterval(c.input)
			require.NoError(t, err)
			assert.Equal(t, c.expected, d)
		})
	}

	invalid := []struct {
		assertion string
		input     string
	}{
		{"empty", ""},
		{"garbage", "thirty days"},
		{"keyword only", "interval"},
		{"missing unit", "interval 30"},
		{"months", "interval 1 month"},
		{"negative", "interval -1 days"},
		{"fraction", "interval 1.5 days"},
		{"overflow", "interval 9999999999999 weeks"},
	}
	for _, c := range invalid {
		t.Run(c.assertion, func(t *testing.T) {
			_, err := config.ParseInterval(c.input)
			require.ErrorIs(t, err, config.InvalidIntervalError{})
		})
	}
}

func TestFormatInterval(t *testing.T) {
	cases := []struct {
		input    time.Duration
		expected string
	}{
		{30 * day, "interval 4 weeks 2 days"},
		{7 * day, "interval 1 week"},
		{36 * time.Hour, "interval 1 day 12 hours"},
		{0, "interval 0 seconds"},
	}
	for _, c := range cases {
		t.Run(c.expected, func(t *testing.T) {
			s := config.FormatInterval(c.input)
			assert.Equal(t, c.expected, s)
			d, err := config.ParseInterval(s)
			require.NoError(t, err)
			assert.Equal(t, c.input, d)
		})
	}
}

func TestFromProperties(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		conf, err := config.FromProperties(nil)
		require.NoError(t, err)
		assert.Equal(t, config.TableConfig{
			CheckpointInterval:           10,
			LogRetentionDuration:         30 * day,
			DeletedFileRetentionDuration: 7 * day,
			EnableExpiredLogCleanup:      true,
		}, conf)
	})
	t.Run("overrides", func(t *testing.T) {
		conf, err := config.FromProperties(map[string]string{
			config.CheckpointIntervalKey:           "5",
			config.LogRetentionDurationKey:         "interval 2 days",
			config.DeletedFileRetentionDurationKey: "interval 1 hour",
			config.EnableExpiredLogCleanupKey:      "false",
			"unrelated.property":                   "x",
		})
		require.NoError(t, err)
		assert.Equal(t, config.TableConfig{
			CheckpointInterval:           5,
			LogRetentionDuration:         2 * day,
			DeletedFileRetentionDuration: time.Hour,
			EnableExpiredLogCleanup:      false,
		}, conf)
	})
	invalid := []struct {
		assertion string
		key       string
		value     string
	}{
		{"non-numeric interval", config.CheckpointIntervalKey, "ten"},
		{"zero interval", config.CheckpointIntervalKey, "0"},
		{"bad duration", config.LogRetentionDurationKey, "forever"},
		{"bad tombstone duration", config.DeletedFileRetentionDurationKey, "1 month"},
		{"bad bool", config.EnableExpiredLogCleanupKey, "maybe"},
	}
	for _, c := range invalid {
		t.Run(c.assertion, func(t *testing.T) {
			_, err := config.FromProperties(map[string]string{c.key: c.value})
			require.ErrorIs(t, err, config.InvalidPropertyError{})
			assert.Contains(t, err.Error(), c.key)
		})
	}
	t.Run("interval errors are preserved", func(t *testing.T) {
		_, err := config.FromProperties(map[string]string{config.LogRetentionDurationKey: "forever"})
		require.ErrorIs(t, err, config.InvalidIntervalError{})
	})
}
