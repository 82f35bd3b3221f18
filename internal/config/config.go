package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

const (
	OutputText = "text"
	OutputJSON = "json"
)

type ScanConfig struct {
	Endpoint        string
	Transport       string
	ExpectedTxCount uint64
	Start           uint64
	End             uint64
	Timeout         time.Duration
	MaxConcurrency  uint
	MaxRetries      uint
	SkipFailed      bool
	ShowProgress    bool
	Live            bool
	BlockTime       uint
	Output          string
	MetricsAddr     string
}

// LoadScanConfig reads the scan configuration from a viper instance.
// Flags must already be bound.
func LoadScanConfig(v *viper.Viper) ScanConfig {
	return ScanConfig{
		Endpoint:        v.GetString("endpoint"),
		Transport:       v.GetString("transport"),
		ExpectedTxCount: v.GetUint64("expected"),
		Start:           v.GetUint64("start"),
		End:             v.GetUint64("end"),
		Timeout:         v.GetDuration("timeout"),
		MaxConcurrency:  v.GetUint("max-concurrency"),
		MaxRetries:      v.GetUint("max-retries"),
		SkipFailed:      v.GetBool("skip-failed"),
		ShowProgress:    v.GetBool("progress"),
		Live:            v.GetBool("live"),
		BlockTime:       v.GetUint("block-time"),
		Output:          v.GetString("output"),
		MetricsAddr:     v.GetString("metrics-addr"),
	}
}

func (c ScanConfig) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("endpoint is required")
	}

	if c.ExpectedTxCount == 0 {
		return fmt.Errorf("expected transaction count must be greater than 0")
	}

	if c.Start == 0 {
		return fmt.Errorf("start height must be at least 1")
	}

	if c.End > 0 && c.End < c.Start {
		return fmt.Errorf("end height %d is lower than start height %d", c.End, c.Start)
	}

	if c.MaxConcurrency < 1 {
		return fmt.Errorf("max concurrency must be greater than 0")
	}

	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be greater than 0")
	}

	if c.Live {
		if c.End > 0 {
			return fmt.Errorf("live mode cannot be combined with an end height")
		}
		if c.BlockTime < 1 {
			return fmt.Errorf("block time must be at least 1 second in live mode")
		}
	}

	switch c.Output {
	case OutputText, OutputJSON:
	default:
		return fmt.Errorf("unsupported output format %q", c.Output)
	}

	return nil
}
