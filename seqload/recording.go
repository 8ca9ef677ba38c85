package seqload

// Recording is one recording's tensor and box-label store. The loader treats
// both reads as black boxes: Tensor must return a chunk of the configured
// fixed shape for the window [start, end), Boxes the raw annotations whose
// timestamps fall in the same window.
type Recording interface {
	// StartTime and EndTime bound the recorded data in microseconds.
	StartTime() int64
	EndTime() int64
	Tensor(start, end int64) (*TensorChunk, error)
	Boxes(start, end int64) ([]BoxLabel, error)
	Close() error
}

// RecordingOpener opens the recording stored at path. Each cursor owns the
// recording it opened and closes it when the cursor retires.
type RecordingOpener func(path string) (Recording, error)
