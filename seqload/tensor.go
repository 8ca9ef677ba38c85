package seqload

// ChunkShape is the fixed per-slot tensor shape [num_tbins, channels, height, width].
type ChunkShape struct {
	TBins    int
	Channels int
	Height   int
	Width    int
}

// Len returns the number of float32 elements in one chunk.
func (s ChunkShape) Len() int {
	return s.TBins * s.Channels * s.Height * s.Width
}

func (s ChunkShape) equal(o ChunkShape) bool {
	return s.TBins == o.TBins && s.Channels == o.Channels &&
		s.Height == o.Height && s.Width == o.Width
}

// TensorChunk is one fixed-shape tensor covering the time interval
// [Start, Start+TBins*deltaT) of a single recording. Data is laid out
// row-major as [tbin][channel][row][col].
type TensorChunk struct {
	Shape ChunkShape
	Start int64
	Data  []float32
}

// zeroChunk builds the padding chunk used for retired or unfilled slots.
func zeroChunk(shape ChunkShape, start int64) TensorChunk {
	return TensorChunk{
		Shape: shape,
		Start: start,
		Data:  make([]float32, shape.Len()),
	}
}

// Batch is the output of one multiplexer step. All three slices have
// exactly BatchSize entries; Padding[i] is true when slot i carries no real
// content this step (zero chunk, empty label set).
type Batch struct {
	Chunks  []TensorChunk
	Labels  []BoxLabelSet
	Padding []bool
	Step    int
}

// Stack copies the per-slot chunks into one contiguous
// [batch, tbins, channels, height, width] tensor. Padding slots contribute
// zeros, so the stacked shape is constant across the epoch.
func (b *Batch) Stack() []float32 {
	if len(b.Chunks) == 0 {
		return nil
	}
	per := b.Chunks[0].Shape.Len()
	out := make([]float32, per*len(b.Chunks))
	for i, c := range b.Chunks {
		copy(out[i*per:(i+1)*per], c.Data)
	}
	return out
}

// RealSlots returns the number of non-padding slots in the batch.
func (b *Batch) RealSlots() int {
	n := 0
	for _, p := range b.Padding {
		if !p {
			n++
		}
	}
	return n
}
