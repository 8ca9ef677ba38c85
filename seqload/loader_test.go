package seqload

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestDatasetSplitLoader(t *testing.T) {
	schema := map[string]int{"car": 0, "truck": 1, "pedestrian": 2}
	chunks := map[string]int{
		"t1.h5": 2, "t2.h5": 1, "t3.h5": 3,
		"v1.h5": 2,
		"x1.h5": 1, "x2.h5": 1,
	}

	newLoader := func(t *testing.T, store *fakeStore, cfg Config) *DatasetSplitLoader {
		t.Helper()
		loader, err := NewDatasetSplitLoader(cfg, schema,
			[]string{"t1.h5", "t2.h5", "t3.h5"},
			[]string{"v1.h5"},
			[]string{"x1.h5", "x2.h5"},
			store.open)
		require.NoError(t, err)
		return loader
	}

	t.Run("splits are independent and restartable", func(t *testing.T) {
		store := newFakeStore(chunks)
		loader := newLoader(t, store, testMuxConfig(2))

		require.Equal(t, 3, loader.NumFiles(TrainSplit))
		require.Equal(t, 1, loader.NumFiles(ValSplit))
		require.Equal(t, 2, loader.NumFiles(TestSplit))

		train, err := loader.Multiplexer(TrainSplit)
		require.NoError(t, err)
		val, err := loader.Multiplexer(ValSplit)
		require.NoError(t, err)

		trainBatches := drainEpoch(train)
		valBatches := drainEpoch(val)
		require.NotEmpty(t, trainBatches)
		require.NotEmpty(t, valBatches)

		// a second epoch over the same split replays the full file list
		again, err := loader.Multiplexer(TrainSplit)
		require.NoError(t, err)
		require.Len(t, drainEpoch(again), len(trainBatches))
	})

	t.Run("evaluation splits never shuffle", func(t *testing.T) {
		cfg := testMuxConfig(1)
		cfg.ShuffleFilesPerEpoch = true
		cfg.Seed = 7

		for i := 0; i < 3; i++ {
			store := newFakeStore(chunks)
			loader := newLoader(t, store, cfg)
			mux, err := loader.Multiplexer(TestSplit)
			require.NoError(t, err)
			drainEpoch(mux)
			require.Equal(t, []string{"x1.h5", "x2.h5"}, store.opened)
		}
	})

	t.Run("unknown split is a config error", func(t *testing.T) {
		store := newFakeStore(chunks)
		loader := newLoader(t, store, testMuxConfig(2))
		_, err := loader.Multiplexer(Split("holdout"))
		require.True(t, errors.Is(err, ErrConfig))
	})

	t.Run("construction validates eagerly", func(t *testing.T) {
		store := newFakeStore(chunks)
		cfg := testMuxConfig(0)
		_, err := NewDatasetSplitLoader(cfg, schema, nil, nil, nil, store.open)
		require.True(t, errors.Is(err, ErrConfig))

		cfg = testMuxConfig(2)
		cfg.ClassSelection = []string{"bicycle"}
		_, err = NewDatasetSplitLoader(cfg, schema, nil, nil, nil, store.open)
		require.True(t, errors.Is(err, ErrConfig))

		_, err = NewDatasetSplitLoader(testMuxConfig(2), schema, nil, nil, nil, nil)
		require.True(t, errors.Is(err, ErrConfig))
	})
}
