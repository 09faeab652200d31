package lib

/* config.go handles the run configuration file. Only run-time knobs live
here: the dimensioning constants (particles per cell, vector widths) are
compile-time constants owned by lib/cell, because the wire layout is derived
from the compiled record and cannot change at run time. */

import (
	"fmt"

	"gopkg.in/gcfg.v1"
)

// Config stores the processed contents of a treeforce configuration file.
type Config struct {
	Exchange ExchangeConfig
	Run      RunConfig
}

// ExchangeConfig configures the cross-rank cell exchange.
type ExchangeConfig struct {
	// Required
	Ranks int

	// Optional
	MaxHops       int
	Compress      bool
	CompressLevel int
}

// RunConfig configures the local force pass.
type RunConfig struct {
	// Optional
	Threads    int
	Generation int
}

// ReadConfig reads and validates a configuration file.
func ReadConfig(fname string) (*Config, error) {
	cfg := &Config{}
	err := gcfg.ReadFileInto(cfg, fname)
	if err != nil {
		return nil, err
	}

	if err := cfg.Exchange.CheckInit(); err != nil {
		return nil, err
	}
	if err := cfg.Run.CheckInit(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (ex *ExchangeConfig) CheckInit() error {
	if ex.Ranks < 1 {
		return fmt.Errorf(
			"Need to specify a positive rank count in the [exchange] "+
				"section, but got %d.", ex.Ranks,
		)
	}

	if ex.MaxHops == 0 {
		// A request chain longer than Ranks-1 must revisit a rank, so this
		// is the largest bound that can still terminate.
		ex.MaxHops = ex.Ranks - 1
	} else if ex.MaxHops < 0 {
		return fmt.Errorf(
			"MaxHops in the [exchange] section must be positive, but is %d.",
			ex.MaxHops,
		)
	}

	if ex.CompressLevel == 0 {
		ex.CompressLevel = 1
	} else if ex.CompressLevel < 0 || ex.CompressLevel > 19 {
		return fmt.Errorf(
			"CompressLevel in the [exchange] section must be in the range "+
				"[1, 19], but is %d.", ex.CompressLevel,
		)
	}

	return nil
}

func (run *RunConfig) CheckInit() error {
	if run.Threads == 0 {
		run.Threads = -1
	} else if run.Threads < -1 {
		return fmt.Errorf(
			"Threads in the [run] section must be positive or -1, but is %d.",
			run.Threads,
		)
	}

	if run.Generation < 0 {
		return fmt.Errorf(
			"Generation in the [run] section must be non-negative, but is %d.",
			run.Generation,
		)
	}

	return nil
}
