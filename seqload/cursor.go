package seqload

// StreamCursor walks one recording in fixed-duration windows. It owns the
// recording handle and closes it when it exhausts. Advance on an exhausted
// cursor keeps returning nothing; it never fails on repeated polling.
type StreamCursor struct {
	path      string
	rec       Recording
	windower  *LabelWindower
	shape     ChunkShape
	span      int64
	offset    int64
	end       int64
	exhausted bool
}

// NewStreamCursor wraps an opened recording. A recording shorter than one
// window starts out exhausted and contributes nothing.
func NewStreamCursor(path string, rec Recording, windower *LabelWindower, shape ChunkShape, span int64) *StreamCursor {
	c := &StreamCursor{
		path:     path,
		rec:      rec,
		windower: windower,
		shape:    shape,
		span:     span,
		offset:   rec.StartTime(),
		end:      rec.EndTime(),
	}
	if c.offset+c.span > c.end {
		c.retire()
	}
	return c
}

// Path returns the recording path the cursor was assigned.
func (c *StreamCursor) Path() string {
	return c.path
}

// Exhausted reports whether the cursor has delivered its final window.
func (c *StreamCursor) Exhausted() bool {
	return c.exhausted
}

// Advance produces the next chunk and its windowed label set. It returns
// (nil, nil, nil) once the recording is exhausted, and a wrapped
// ErrDataCorruption when the store returns malformed data; either way the
// underlying file handle is released.
func (c *StreamCursor) Advance() (*TensorChunk, BoxLabelSet, error) {
	if c.exhausted {
		return nil, nil, nil
	}

	start, end := c.offset, c.offset+c.span

	chunk, err := c.rec.Tensor(start, end)
	if err != nil {
		c.retire()
		return nil, nil, corruptionErrorf("%s: reading tensor window [%d,%d): %v", c.path, start, end, err)
	}
	if chunk == nil || !chunk.Shape.equal(c.shape) || len(chunk.Data) != c.shape.Len() {
		c.retire()
		return nil, nil, corruptionErrorf("%s: tensor window [%d,%d) has wrong shape", c.path, start, end)
	}

	raw, err := c.rec.Boxes(start, end)
	if err != nil {
		c.retire()
		return nil, nil, corruptionErrorf("%s: reading labels for window [%d,%d): %v", c.path, start, end, err)
	}
	labels := c.windower.Select(raw, start, end)

	chunk.Start = start
	c.offset = end
	// The recorded end is known upfront, so exhaustion is flagged on the
	// advance that consumed the final full window rather than on the next
	// poll. The multiplexer frees the slot without burning a padding step.
	if c.offset+c.span > c.end {
		c.retire()
	}
	return chunk, labels, nil
}

func (c *StreamCursor) retire() {
	if c.exhausted {
		return
	}
	c.exhausted = true
	if c.rec != nil {
		c.rec.Close()
		c.rec = nil
	}
}
