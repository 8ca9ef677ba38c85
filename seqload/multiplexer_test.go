package seqload

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

// fakeStore hands out in-memory recordings with a fixed number of chunks per
// path and records every open.
type fakeStore struct {
	chunks    map[string]int
	failOpen  map[string]bool
	corrupt   map[string]bool
	opened    []string
	recording map[string]*fakeRecording
}

func newFakeStore(chunks map[string]int) *fakeStore {
	return &fakeStore{
		chunks:    chunks,
		failOpen:  map[string]bool{},
		corrupt:   map[string]bool{},
		recording: map[string]*fakeRecording{},
	}
}

func (s *fakeStore) open(path string) (Recording, error) {
	s.opened = append(s.opened, path)
	if s.failOpen[path] {
		return nil, errors.Errorf("%s: no such file", path)
	}
	rec := &fakeRecording{
		end:   int64(s.chunks[path]) * testSpan,
		shape: testShape,
		fill:  float32(len(s.opened)),
	}
	if s.corrupt[path] {
		rec.badShape = true
	}
	s.recording[path] = rec
	return rec, nil
}

func testMuxConfig(batchSize int) Config {
	return Config{
		BatchSize:      batchSize,
		NumTBins:       testShape.TBins,
		DeltaT:         10 * time.Microsecond,
		Channels:       testShape.Channels,
		Height:         testShape.Height,
		Width:          testShape.Width,
		ClassSelection: []string{"car"},
		Seed:           1,
	}
}

func newTestMux(t *testing.T, cfg Config, files []string, store *fakeStore) *StreamMultiplexer {
	t.Helper()
	windower := testWindower(t, 0, cfg.NumTBins)
	mux, err := NewStreamMultiplexer(cfg, windower, files, store.open)
	require.NoError(t, err)
	return mux
}

func drainEpoch(mux *StreamMultiplexer) []*Batch {
	var batches []*Batch
	for batch := mux.NextBatch(); batch != nil; batch = mux.NextBatch() {
		batches = append(batches, batch)
	}
	return batches
}

func TestMultiplexerSchedule(t *testing.T) {
	// five recordings of 3, 1, 2, 4 and 2 chunks, two slots
	files := []string{"a.h5", "b.h5", "c.h5", "d.h5", "e.h5"}
	store := newFakeStore(map[string]int{
		"a.h5": 3, "b.h5": 1, "c.h5": 2, "d.h5": 4, "e.h5": 2,
	})
	mux := newTestMux(t, testMuxConfig(2), files, store)

	batches := drainEpoch(mux)
	require.Len(t, batches, 7)

	// padding appears only once the file queue has drained
	wantPadding := [][]bool{
		{false, false},
		{false, false},
		{false, false},
		{false, false},
		{false, false},
		{false, true},
		{false, true},
	}
	for i, batch := range batches {
		require.Equal(t, wantPadding[i], batch.Padding, "step %d", i)
	}

	// every file is assigned exactly one slot lifetime, in queue order
	require.Equal(t, files, store.opened)

	stats := mux.Stats()
	require.Equal(t, 7, stats.Batches)
	require.Equal(t, 5, stats.FilesVisited)
	require.Equal(t, 2, stats.PaddedSlots)
	require.Equal(t, 0, stats.RetiredForError)

	// exhausted epoch keeps returning nil
	require.Nil(t, mux.NextBatch())
	require.Nil(t, mux.NextBatch())
}

func TestMultiplexerBatchShape(t *testing.T) {
	store := newFakeStore(map[string]int{"a.h5": 2, "b.h5": 1})
	mux := newTestMux(t, testMuxConfig(4), []string{"a.h5", "b.h5"}, store)

	batches := drainEpoch(mux)
	require.Len(t, batches, 2)

	for _, batch := range batches {
		require.Len(t, batch.Chunks, 4)
		require.Len(t, batch.Labels, 4)
		require.Len(t, batch.Padding, 4)
		require.Len(t, batch.Stack(), 4*testShape.Len())

		for i, padding := range batch.Padding {
			require.Equal(t, testShape, batch.Chunks[i].Shape)
			if !padding {
				continue
			}
			require.Empty(t, batch.Labels[i])
			for _, v := range batch.Chunks[i].Data {
				require.Zero(t, v)
			}
		}
	}

	require.Equal(t, 2, batches[0].RealSlots())
	require.Equal(t, 1, batches[1].RealSlots())
}

func TestMultiplexerVisitsEveryFileOnce(t *testing.T) {
	tests := []struct {
		name      string
		batchSize int
		files     int
	}{
		{"more files than slots", 2, 9},
		{"more slots than files", 8, 3},
		{"equal", 4, 4},
		{"single slot", 1, 5},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			chunks := map[string]int{}
			var files []string
			for i := 0; i < test.files; i++ {
				name := string(rune('a'+i)) + ".h5"
				files = append(files, name)
				chunks[name] = 1 + i%3
			}
			store := newFakeStore(chunks)
			mux := newTestMux(t, testMuxConfig(test.batchSize), files, store)
			drainEpoch(mux)

			require.ElementsMatch(t, files, store.opened)
			require.Len(t, store.opened, test.files)
		})
	}
}

func TestMultiplexerEpochDeterminism(t *testing.T) {
	files := []string{"a.h5", "b.h5", "c.h5", "d.h5"}
	chunks := map[string]int{"a.h5": 2, "b.h5": 3, "c.h5": 1, "d.h5": 2}

	store := newFakeStore(chunks)
	mux := newTestMux(t, testMuxConfig(2), files, store)
	first := len(drainEpoch(mux))
	firstOrder := append([]string(nil), store.opened...)

	mux.Reset()
	second := len(drainEpoch(mux))

	require.Equal(t, first, second)
	require.Equal(t, firstOrder, store.opened[:len(firstOrder)])
	require.Equal(t, firstOrder, store.opened[len(firstOrder):])
}

func TestMultiplexerSeededShuffle(t *testing.T) {
	files := []string{"a.h5", "b.h5", "c.h5", "d.h5", "e.h5", "f.h5"}
	chunks := map[string]int{}
	for _, f := range files {
		chunks[f] = 1
	}

	cfg := testMuxConfig(2)
	cfg.ShuffleFilesPerEpoch = true
	cfg.Seed = 42

	storeA := newFakeStore(chunks)
	drainEpoch(newTestMux(t, cfg, files, storeA))
	storeB := newFakeStore(chunks)
	drainEpoch(newTestMux(t, cfg, files, storeB))

	// same seed, same schedule; every file still visited exactly once
	require.Equal(t, storeA.opened, storeB.opened)
	require.ElementsMatch(t, files, storeA.opened)
}

func TestMultiplexerRetiresCorruptRecording(t *testing.T) {
	files := []string{"a.h5", "bad.h5", "c.h5"}
	store := newFakeStore(map[string]int{"a.h5": 2, "bad.h5": 3, "c.h5": 2})
	store.corrupt["bad.h5"] = true

	mux := newTestMux(t, testMuxConfig(2), files, store)
	batches := drainEpoch(mux)

	// the corrupt file pads its slot for one step and the epoch keeps going
	require.NotEmpty(t, batches)
	require.ElementsMatch(t, files, store.opened)
	require.Equal(t, 1, mux.Stats().RetiredForError)
	require.Equal(t, 1, store.recording["bad.h5"].closed)
}

func TestMultiplexerSkipsUnopenableFile(t *testing.T) {
	files := []string{"a.h5", "missing.h5", "c.h5"}
	store := newFakeStore(map[string]int{"a.h5": 2, "c.h5": 1})
	store.failOpen["missing.h5"] = true

	mux := newTestMux(t, testMuxConfig(2), files, store)
	batches := drainEpoch(mux)

	// the replacement is drawn in the same step, no slot goes idle
	require.Len(t, batches, 2)
	require.Equal(t, files, store.opened)
	require.Equal(t, 1, mux.Stats().RetiredForError)
	require.Equal(t, 2, mux.Stats().FilesVisited)
}

func TestMultiplexerConfigValidation(t *testing.T) {
	store := newFakeStore(map[string]int{})
	windower := testWindower(t, 0, 2)

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero batch size", func(c *Config) { c.BatchSize = 0 }},
		{"zero tbins", func(c *Config) { c.NumTBins = 0 }},
		{"zero delta t", func(c *Config) { c.DeltaT = 0 }},
		{"sub-microsecond delta t", func(c *Config) { c.DeltaT = 500 * time.Nanosecond }},
		{"fractional microsecond delta t", func(c *Config) { c.DeltaT = 1500 * time.Nanosecond }},
		{"negative min diagonal", func(c *Config) { c.MinBoxDiagonal = -1 }},
		{"no classes", func(c *Config) { c.ClassSelection = nil }},
		{"flat tensor", func(c *Config) { c.Height = 0 }},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := testMuxConfig(2)
			test.mutate(&cfg)
			_, err := NewStreamMultiplexer(cfg, windower, nil, store.open)
			require.Error(t, err)
			require.True(t, errors.Is(err, ErrConfig))
		})
	}
}
