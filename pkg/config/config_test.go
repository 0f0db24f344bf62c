package config

import (
	"errors"
	"testing"
	"time"
)

type sampleConfig struct {
	ListenAddr string        `split_words:"true" default:":8080"`
	Workers    int           `split_words:"true" default:"4"`
	Timeout    time.Duration `split_words:"true" default:"2m"`
}

type checkedConfig struct {
	Workers int `split_words:"true" default:"0"`
}

var errNoWorkers = errors.New("workers must be positive")

func (c *checkedConfig) Validate() error {
	if c.Workers <= 0 {
		return errNoWorkers
	}
	return nil
}

func TestNewAppliesDefaultsAndEnv(t *testing.T) {
	t.Setenv("SAMPLE_WORKERS", "16")

	conf, err := New[sampleConfig]("SAMPLE")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if conf.ListenAddr != ":8080" || conf.Workers != 16 || conf.Timeout != 2*time.Minute {
		t.Fatalf("unexpected config: %#v", conf)
	}
}

func TestNewRunsValidate(t *testing.T) {
	t.Setenv("CHECKED_WORKERS", "0")

	if _, err := New[checkedConfig]("CHECKED"); !errors.Is(err, errNoWorkers) {
		t.Fatalf("expected validation error, got %v", err)
	}

	t.Setenv("CHECKED_WORKERS", "3")
	conf, err := New[checkedConfig]("CHECKED")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if conf.Workers != 3 {
		t.Fatalf("unexpected workers: %d", conf.Workers)
	}
}
