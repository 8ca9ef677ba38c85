package seqload

// Split names one of the three dataset partitions.
type Split string

const (
	TrainSplit Split = "train"
	ValSplit   Split = "val"
	TestSplit  Split = "test"
)

// DatasetSplitLoader wires one multiplexer per split with a shared windowing
// configuration. The splits are independent: no state is shared between
// them, and each Multiplexer call starts a fresh epoch.
type DatasetSplitLoader struct {
	cfg      Config
	windower *LabelWindower
	opener   RecordingOpener
	files    map[Split][]string
}

// NewDatasetSplitLoader validates the configuration, builds the class lookup
// from the label schema, and records the per-split file lists. Configuration
// problems surface here, before any file is touched.
func NewDatasetSplitLoader(cfg Config, schema map[string]int, train, val, test []string, opener RecordingOpener) (*DatasetSplitLoader, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opener == nil {
		return nil, configErrorf("recording opener must not be nil")
	}
	lookup, err := BuildClassLookup(schema, cfg.ClassSelection)
	if err != nil {
		return nil, err
	}
	windower, err := NewLabelWindower(lookup, cfg.MinBoxDiagonal, cfg.NumTBins)
	if err != nil {
		return nil, err
	}
	return &DatasetSplitLoader{
		cfg:      cfg,
		windower: windower,
		opener:   opener,
		files: map[Split][]string{
			TrainSplit: append([]string(nil), train...),
			ValSplit:   append([]string(nil), val...),
			TestSplit:  append([]string(nil), test...),
		},
	}, nil
}

// Multiplexer returns a fresh epoch over the given split. Evaluation splits
// keep the discovered file order; the train split shuffles only when the
// configuration asks for it.
func (l *DatasetSplitLoader) Multiplexer(split Split) (*StreamMultiplexer, error) {
	files, ok := l.files[split]
	if !ok {
		return nil, configErrorf("unknown split %q", split)
	}
	cfg := l.cfg
	if split != TrainSplit {
		cfg.ShuffleFilesPerEpoch = false
	}
	return NewStreamMultiplexer(cfg, l.windower, files, l.opener)
}

// NumFiles returns the number of recordings in a split.
func (l *DatasetSplitLoader) NumFiles(split Split) int {
	return len(l.files[split])
}
