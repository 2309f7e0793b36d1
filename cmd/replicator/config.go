package main

import (
	"net/url"

	"github.com/cockroachdb/rdb-replicate/internal/config"
	"github.com/pkg/errors"
)

// Config is the top-level wiring input: just the path to the INI task
// configuration file spec §6 describes. Everything else is derived
// from it.
type Config struct {
	TaskConfigPath string
}

// ProvideTask is called by Wire to load and validate the task
// configuration.
func ProvideTask(cfg Config) (*config.Task, error) {
	return config.Load(cfg.TaskConfigPath)
}

// ProvideSourceURL parses the [extractor] section's connection URL.
func ProvideSourceURL(task *config.Task) (*url.URL, error) {
	u, err := url.Parse(task.Extractor.URL)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing extractor url %q", task.Extractor.URL)
	}
	return u, nil
}

// ProvideSinkURL parses the [sinker] section's connection URL, when
// the sink type needs one (mysql/postgres).
func ProvideSinkURL(task *config.Task) (*url.URL, error) {
	if task.Sinker.URL == "" {
		return &url.URL{}, nil
	}
	u, err := url.Parse(task.Sinker.URL)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing sinker url %q", task.Sinker.URL)
	}
	return u, nil
}
