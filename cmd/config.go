package cmd

import (
	"time"

	"github.com/pkg/errors"

	"github.com/evlabs/seqloader/seqload"
)

type Config struct {
	DatasetPath      string
	LabelMapPath     string
	Split            string
	BatchSize        int
	NumTBins         int
	DeltaTUs         int
	Channels         int
	Height           int
	Width            int
	ClassSelection   []string
	MinBoxDiagonal   float64
	MaxIncrPerPixel  float64
	Shuffle          bool
	Seed             int64
	Epochs           int
	OutputFormat     string
	OutputFile       string
	MetricsFile      string
	MetricsPushURL   string
	MemoryMonitoring bool
	MemoryFile       string
	InfluxDBConfig   InfluxDBConfig
}

func (c *Config) Validate() error {
	if c.DatasetPath == "" {
		return errors.Errorf("a dataset path must be provided")
	}

	if c.LabelMapPath == "" {
		return errors.Errorf("a label map path or URL must be provided")
	}

	switch c.Split {
	case "train", "val", "test":
	default:
		return errors.Errorf("unsupported split %q, must be one of [train, val, test]", c.Split)
	}

	switch c.OutputFormat {
	case "text", "":
		c.OutputFormat = "text"
	case "json":
	default:
		return errors.Errorf("unsupported output format %q, must be one of [text, json]",
			c.OutputFormat)
	}

	if c.Epochs <= 0 {
		return errors.Errorf("epochs must be larger than 0")
	}

	// Windowing parameters are re-checked by the loader; validating here
	// keeps flag mistakes out of the construction path.
	return c.loaderConfig().Validate()
}

func (c *Config) loaderConfig() seqload.Config {
	return seqload.Config{
		BatchSize:            c.BatchSize,
		NumTBins:             c.NumTBins,
		DeltaT:               time.Duration(c.DeltaTUs) * time.Microsecond,
		Channels:             c.Channels,
		Height:               c.Height,
		Width:                c.Width,
		ClassSelection:       c.ClassSelection,
		MinBoxDiagonal:       c.MinBoxDiagonal,
		ShuffleFilesPerEpoch: c.Shuffle,
		Seed:                 c.Seed,
	}
}
