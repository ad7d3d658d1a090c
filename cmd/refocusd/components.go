package main

import (
	"fmt"
	"time"

	"github.com/goodtune/refocus/internal/activity"
	"github.com/goodtune/refocus/internal/config"
	"github.com/goodtune/refocus/internal/stats"
	"github.com/goodtune/refocus/internal/storage"
	"github.com/goodtune/refocus/internal/storage/bolt"
	"github.com/goodtune/refocus/internal/storage/redis"
	"github.com/goodtune/refocus/internal/switches"
	"github.com/goodtune/refocus/internal/warning"
)

// Durations are validated by config.Load, so the fallbacks only apply to
// hand-built configurations.

func warningConfig(cfg *config.Config) warning.Config {
	def := warning.DefaultConfig()
	return warning.Config{
		AutoDismiss: config.Duration(cfg.Warnings.AutoDismiss, def.AutoDismiss),
		Cooldown:    config.Duration(cfg.Warnings.Cooldown, def.Cooldown),
	}
}

func activityConfig(cfg *config.Config) activity.Config {
	def := activity.DefaultConfig()
	return activity.Config{
		TimeThreshold:   config.Duration(cfg.Activity.TimeThreshold, def.TimeThreshold),
		TickInterval:    config.Duration(cfg.Activity.TickInterval, def.TickInterval),
		ScrollWindow:    config.Duration(cfg.Activity.ScrollWindow, def.ScrollWindow),
		ScrollThreshold: cfg.Activity.ScrollThreshold,
		SwitchWindow:    config.Duration(cfg.Switches.Window, def.SwitchWindow),
		Warning:         warningConfig(cfg),
	}
}

func switchesConfig(cfg *config.Config) switches.Config {
	def := switches.DefaultConfig()
	return switches.Config{
		Window:    config.Duration(cfg.Switches.Window, def.Window),
		Threshold: cfg.Switches.Threshold,
	}
}

// popupThresholds derives the popup's warning thresholds from the monitor
// thresholds so both always agree.
func popupThresholds(cfg *config.Config) stats.Thresholds {
	act := activityConfig(cfg)
	return stats.Thresholds{
		TimeSeconds:  int64(act.TimeThreshold / time.Second),
		TabSwitches:  int64(cfg.Switches.Threshold),
		ScrollMedium: int64(cfg.Popup.ScrollMedium),
		ScrollHigh:   int64(cfg.Activity.ScrollThreshold),
	}
}

func openStorage(cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Type {
	case "", "bolt":
		return bolt.Open(cfg.Path)
	case "redis":
		return redis.Open(cfg.Redis)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}
