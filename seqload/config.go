package seqload

import "time"

// Config is the windowing configuration shared by all splits of a dataset.
// It is validated once at construction; iteration never re-checks it.
type Config struct {
	// BatchSize is the number of concurrent recording slots per batch.
	BatchSize int
	// NumTBins is the number of time bins per chunk.
	NumTBins int
	// DeltaT is the duration of one time bin.
	DeltaT time.Duration
	// Channels, Height and Width fix the per-bin tensor shape.
	Channels int
	Height   int
	Width    int
	// ClassSelection lists the classes to train on; index = training id.
	ClassSelection []string
	// MinBoxDiagonal drops boxes with a smaller diagonal (pixels).
	MinBoxDiagonal float64
	// ShuffleFilesPerEpoch shuffles the file queue before each epoch.
	// Leave false for reproducible evaluation schedules.
	ShuffleFilesPerEpoch bool
	// Seed seeds the shuffle; epochs from the same seed replay the same
	// schedule.
	Seed int64
}

// Validate reports the first configuration error, wrapped with ErrConfig.
func (c Config) Validate() error {
	if c.BatchSize <= 0 {
		return configErrorf("batch size must be > 0, got %d", c.BatchSize)
	}
	if c.NumTBins <= 0 {
		return configErrorf("num tbins must be > 0, got %d", c.NumTBins)
	}
	if c.DeltaT <= 0 {
		return configErrorf("delta t must be > 0, got %v", c.DeltaT)
	}
	// Timestamps are integer microseconds; a finer DeltaT would truncate to
	// a zero-length window and the cursors could never advance.
	if c.DeltaT%time.Microsecond != 0 {
		return configErrorf("delta t must be a whole number of microseconds, got %v", c.DeltaT)
	}
	if c.Channels <= 0 || c.Height <= 0 || c.Width <= 0 {
		return configErrorf("tensor shape must be positive, got [%d %d %d]",
			c.Channels, c.Height, c.Width)
	}
	if len(c.ClassSelection) == 0 {
		return configErrorf("class selection must not be empty")
	}
	if c.MinBoxDiagonal < 0 {
		return configErrorf("min box diagonal must be >= 0, got %v", c.MinBoxDiagonal)
	}
	return nil
}

// ChunkShape returns the fixed per-slot tensor shape.
func (c Config) ChunkShape() ChunkShape {
	return ChunkShape{
		TBins:    c.NumTBins,
		Channels: c.Channels,
		Height:   c.Height,
		Width:    c.Width,
	}
}

// windowSpan is the duration one chunk covers, in microseconds.
func (c Config) windowSpan() int64 {
	return int64(c.NumTBins) * c.DeltaT.Microseconds()
}
