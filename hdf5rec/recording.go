// Package hdf5rec reads precomputed event-camera recordings from HDF5 files.
//
// Each file carries one recording: a float32 dataset "data" of shape
// [total_tbins, channels, height, width] with one time bin per delta_t, and
// the box annotations as flat, time-sorted datasets labels_t, labels_x,
// labels_y, labels_w, labels_h and labels_class.
package hdf5rec

import (
	"time"

	"github.com/pkg/errors"
	"github.com/weaviate/hdf5"

	"github.com/evlabs/seqloader/seqload"
)

const dataDatasetName = "data"

// StoreConfig fixes how recordings are interpreted. DeltaT is the duration
// of one stored time bin; MaxIncrPerPixel, when positive, clamps tensor
// values the way the histogram preprocessing caps event counts per pixel.
type StoreConfig struct {
	DeltaT          time.Duration
	MaxIncrPerPixel float32
}

// Recording is one opened HDF5 recording. It satisfies seqload.Recording;
// the owning cursor closes it when the stream retires.
type Recording struct {
	file *hdf5.File
	data *hdf5.Dataset

	totalBins int64
	channels  int
	height    int
	width     int
	deltaT    int64
	byteSize  uint
	maxIncr   float32

	labels []seqload.BoxLabel
}

// Opener adapts Open to the loader's RecordingOpener contract.
func Opener(cfg StoreConfig) seqload.RecordingOpener {
	return func(path string) (seqload.Recording, error) {
		return Open(path, cfg)
	}
}

// Open opens the recording at path and loads its label datasets. Malformed
// files fail with a wrapped seqload.ErrDataCorruption so the multiplexer
// counts them as retired instead of aborting the epoch.
func Open(path string, cfg StoreConfig) (*Recording, error) {
	if cfg.DeltaT <= 0 {
		return nil, errors.Errorf("delta t must be > 0, got %v", cfg.DeltaT)
	}

	file, err := hdf5.OpenFile(path, hdf5.F_ACC_RDONLY)
	if err != nil {
		return nil, errors.Wrapf(seqload.ErrDataCorruption, "%s: opening file: %v", path, err)
	}

	dataset, err := file.OpenDataset(dataDatasetName)
	if err != nil {
		file.Close()
		return nil, errors.Wrapf(seqload.ErrDataCorruption, "%s: opening %q dataset: %v", path, dataDatasetName, err)
	}

	dataspace := dataset.Space()
	dims, _, _ := dataspace.SimpleExtentDims()
	dataspace.Close()
	if len(dims) != 4 {
		dataset.Close()
		file.Close()
		return nil, errors.Wrapf(seqload.ErrDataCorruption, "%s: expected 4 tensor dimensions, got %d", path, len(dims))
	}

	byteSize, err := datasetByteSize(dataset)
	if err != nil {
		dataset.Close()
		file.Close()
		return nil, errors.Wrapf(seqload.ErrDataCorruption, "%s: %v", path, err)
	}

	rec := &Recording{
		file:      file,
		data:      dataset,
		totalBins: int64(dims[0]),
		channels:  int(dims[1]),
		height:    int(dims[2]),
		width:     int(dims[3]),
		deltaT:    cfg.DeltaT.Microseconds(),
		byteSize:  byteSize,
		maxIncr:   cfg.MaxIncrPerPixel,
	}

	if rec.labels, err = readLabels(file); err != nil {
		rec.Close()
		return nil, errors.Wrapf(seqload.ErrDataCorruption, "%s: %v", path, err)
	}
	return rec, nil
}

// StartTime returns the recording start in microseconds. Precomputed files
// are rebased to zero.
func (r *Recording) StartTime() int64 {
	return 0
}

// EndTime returns the end of recorded data in microseconds.
func (r *Recording) EndTime() int64 {
	return r.totalBins * r.deltaT
}

// Tensor reads the bins covering [start, end) as one chunk via a hyperslab
// selection, widening float64 storage to float32 when needed.
func (r *Recording) Tensor(start, end int64) (*seqload.TensorChunk, error) {
	if start < 0 || end <= start || start%r.deltaT != 0 || (end-start)%r.deltaT != 0 {
		return nil, errors.Errorf("window [%d,%d) does not align to %dus bins", start, end, r.deltaT)
	}
	firstBin := start / r.deltaT
	nbins := (end - start) / r.deltaT
	if firstBin+nbins > r.totalBins {
		return nil, errors.Errorf("window [%d,%d) past recorded end %d", start, end, r.EndTime())
	}

	shape := seqload.ChunkShape{
		TBins:    int(nbins),
		Channels: r.channels,
		Height:   r.height,
		Width:    r.width,
	}
	count := []uint{uint(nbins), uint(r.channels), uint(r.height), uint(r.width)}
	offset := []uint{uint(firstBin), 0, 0, 0}

	filespace := r.data.Space()
	defer filespace.Close()
	if err := filespace.SelectHyperslab(offset, nil, count, nil); err != nil {
		return nil, errors.Errorf("selecting hyperslab at bin %d: %v", firstBin, err)
	}
	memspace, err := hdf5.CreateSimpleDataspace(count, count)
	if err != nil {
		return nil, errors.Errorf("creating memspace: %v", err)
	}
	defer memspace.Close()

	var data []float32
	switch r.byteSize {
	case 4:
		data = make([]float32, shape.Len())
		if err := r.data.ReadSubset(&data, memspace, filespace); err != nil {
			return nil, errors.Errorf("reading bins [%d,%d): %v", firstBin, firstBin+nbins, err)
		}
	case 8:
		wide := make([]float64, shape.Len())
		if err := r.data.ReadSubset(&wide, memspace, filespace); err != nil {
			return nil, errors.Errorf("reading bins [%d,%d): %v", firstBin, firstBin+nbins, err)
		}
		data = narrowChunk(wide)
	}

	if r.maxIncr > 0 {
		for i, v := range data {
			if v > r.maxIncr {
				data[i] = r.maxIncr
			}
		}
	}

	return &seqload.TensorChunk{Shape: shape, Start: start, Data: data}, nil
}

// Boxes returns the annotations with timestamps in [start, end). Labels are
// loaded once at open; the slice returned here is a fresh copy.
func (r *Recording) Boxes(start, end int64) ([]seqload.BoxLabel, error) {
	var out []seqload.BoxLabel
	for _, b := range r.labels {
		if b.T >= start && b.T < end {
			out = append(out, b)
		}
	}
	return out, nil
}

// Close releases the HDF5 handles. Safe to call more than once.
func (r *Recording) Close() error {
	if r.data != nil {
		r.data.Close()
		r.data = nil
	}
	if r.file != nil {
		r.file.Close()
		r.file = nil
	}
	return nil
}

func datasetByteSize(dataset *hdf5.Dataset) (uint, error) {
	datatype, err := dataset.Datatype()
	if err != nil {
		return 0, errors.Errorf("reading datatype: %v", err)
	}
	byteSize := datatype.Size()
	if byteSize != 4 && byteSize != 8 {
		return 0, errors.Errorf("unsupported element byte size %d", byteSize)
	}
	return byteSize, nil
}

func narrowChunk(in []float64) []float32 {
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = float32(v)
	}
	return out
}
