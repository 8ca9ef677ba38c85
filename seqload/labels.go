package seqload

import (
	"math"
	"sort"
)

// BoxLabel is one bounding-box annotation. T is the event timestamp in
// microseconds. ClassID holds the raw schema id as read from the recording;
// after windowing it holds the remapped training id and TBin the index of
// the time bin inside the chunk the box belongs to.
type BoxLabel struct {
	T       int64
	X       float32
	Y       float32
	W       float32
	H       float32
	ClassID int
	TBin    int
}

// Diagonal returns the box diagonal length in pixels.
func (b BoxLabel) Diagonal() float64 {
	return math.Sqrt(float64(b.W)*float64(b.W) + float64(b.H)*float64(b.H))
}

// BoxLabelSet is the label subset of one tensor chunk, ordered by time-bin
// index. May be empty.
type BoxLabelSet []BoxLabel

// LabelWindower slices a raw label stream to a chunk window, buckets boxes
// into time bins, remaps class ids and drops boxes below the diagonal
// threshold. The configuration is fixed at construction; Select is a pure
// function of its arguments.
type LabelWindower struct {
	lookup         *ClassLookup
	minBoxDiagonal float64
	numTBins       int
}

// NewLabelWindower builds a windower. The diagonal threshold removes boxes
// too small for the network's effective receptive field; zero disables it.
func NewLabelWindower(lookup *ClassLookup, minBoxDiagonal float64, numTBins int) (*LabelWindower, error) {
	if lookup == nil {
		return nil, configErrorf("class lookup must not be nil")
	}
	if minBoxDiagonal < 0 {
		return nil, configErrorf("min box diagonal must be >= 0, got %v", minBoxDiagonal)
	}
	if numTBins <= 0 {
		return nil, configErrorf("num tbins must be > 0, got %d", numTBins)
	}
	return &LabelWindower{
		lookup:         lookup,
		minBoxDiagonal: minBoxDiagonal,
		numTBins:       numTBins,
	}, nil
}

// Select returns the boxes of raw falling in [windowStart, windowEnd),
// bucketed into numTBins equal bins, class-remapped and size-filtered.
// Survivors keep their input order within a bin.
func (w *LabelWindower) Select(raw []BoxLabel, windowStart, windowEnd int64) BoxLabelSet {
	if windowEnd <= windowStart {
		return nil
	}
	binWidth := (windowEnd - windowStart) / int64(w.numTBins)
	if binWidth <= 0 {
		return nil
	}

	var out BoxLabelSet
	for _, box := range raw {
		if box.T < windowStart || box.T >= windowEnd {
			continue
		}
		trainID, ok := w.lookup.Remap(box.ClassID)
		if !ok {
			continue
		}
		if box.Diagonal() < w.minBoxDiagonal {
			continue
		}
		tbin := int((box.T - windowStart) / binWidth)
		if tbin >= w.numTBins {
			// windows not evenly divisible leave a remainder in the last bin
			tbin = w.numTBins - 1
		}
		box.ClassID = trainID
		box.TBin = tbin
		out = append(out, box)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].TBin < out[j].TBin })
	return out
}
