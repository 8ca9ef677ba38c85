package hdf5rec

import (
	"github.com/pkg/errors"
	"github.com/weaviate/hdf5"

	"github.com/evlabs/seqloader/seqload"
)

// Label datasets are flat parallel arrays, one entry per box, sorted by
// timestamp. A file with none of them is a recording without annotations.
const (
	labelTName     = "labels_t"
	labelXName     = "labels_x"
	labelYName     = "labels_y"
	labelWName     = "labels_w"
	labelHName     = "labels_h"
	labelClassName = "labels_class"
)

func readLabels(file *hdf5.File) ([]seqload.BoxLabel, error) {
	ts, err := readInt64Dataset(file, labelTName)
	if err != nil {
		if errors.Is(err, errDatasetMissing) {
			return nil, nil
		}
		return nil, err
	}

	xs, err := readFloat32Dataset(file, labelXName)
	if err != nil {
		return nil, err
	}
	ys, err := readFloat32Dataset(file, labelYName)
	if err != nil {
		return nil, err
	}
	ws, err := readFloat32Dataset(file, labelWName)
	if err != nil {
		return nil, err
	}
	hs, err := readFloat32Dataset(file, labelHName)
	if err != nil {
		return nil, err
	}
	classes, err := readInt64Dataset(file, labelClassName)
	if err != nil {
		return nil, err
	}

	n := len(ts)
	if len(xs) != n || len(ys) != n || len(ws) != n || len(hs) != n || len(classes) != n {
		return nil, errors.Errorf("label datasets disagree on length (t=%d x=%d y=%d w=%d h=%d class=%d)",
			n, len(xs), len(ys), len(ws), len(hs), len(classes))
	}

	labels := make([]seqload.BoxLabel, n)
	for i := 0; i < n; i++ {
		labels[i] = seqload.BoxLabel{
			T:       ts[i],
			X:       xs[i],
			Y:       ys[i],
			W:       ws[i],
			H:       hs[i],
			ClassID: int(classes[i]),
		}
	}
	return labels, nil
}

var errDatasetMissing = errors.New("dataset missing")

func openLabelDataset(file *hdf5.File, name string) (*hdf5.Dataset, uint, error) {
	dataset, err := file.OpenDataset(name)
	if err != nil {
		return nil, 0, errors.Wrapf(errDatasetMissing, "%s", name)
	}
	dataspace := dataset.Space()
	dims, _, _ := dataspace.SimpleExtentDims()
	dataspace.Close()
	if len(dims) != 1 {
		dataset.Close()
		return nil, 0, errors.Errorf("%s: expected 1 dimension, got %d", name, len(dims))
	}
	byteSize, err := datasetByteSize(dataset)
	if err != nil {
		dataset.Close()
		return nil, 0, errors.Errorf("%s: %v", name, err)
	}
	return dataset, byteSize, nil
}

func readInt64Dataset(file *hdf5.File, name string) ([]int64, error) {
	dataset, byteSize, err := openLabelDataset(file, name)
	if err != nil {
		return nil, err
	}
	defer dataset.Close()

	dataspace := dataset.Space()
	dims, _, _ := dataspace.SimpleExtentDims()
	dataspace.Close()
	elements := int(dims[0])

	out := make([]int64, elements)
	if byteSize == 4 {
		narrow := make([]int32, elements)
		if err := dataset.Read(&narrow); err != nil {
			return nil, errors.Errorf("%s: reading: %v", name, err)
		}
		for i := range out {
			out[i] = int64(narrow[i])
		}
	} else {
		if err := dataset.Read(&out); err != nil {
			return nil, errors.Errorf("%s: reading: %v", name, err)
		}
	}
	return out, nil
}

func readFloat32Dataset(file *hdf5.File, name string) ([]float32, error) {
	dataset, byteSize, err := openLabelDataset(file, name)
	if err != nil {
		return nil, err
	}
	defer dataset.Close()

	dataspace := dataset.Space()
	dims, _, _ := dataspace.SimpleExtentDims()
	dataspace.Close()
	elements := int(dims[0])

	if byteSize == 4 {
		out := make([]float32, elements)
		if err := dataset.Read(&out); err != nil {
			return nil, errors.Errorf("%s: reading: %v", name, err)
		}
		return out, nil
	}
	wide := make([]float64, elements)
	if err := dataset.Read(&wide); err != nil {
		return nil, errors.Errorf("%s: reading: %v", name, err)
	}
	return narrowChunk(wide), nil
}
