// Package seqload multiplexes many independently-lengthed event-camera
// recordings into a single stream of fixed-shape, time-windowed batches.
package seqload

import (
	"math/rand"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

type slotState int

const (
	slotEmpty slotState = iota
	slotActive
)

type slot struct {
	state  slotState
	cursor *StreamCursor
}

// MultiplexerStats counts what one epoch produced. Per-file errors surface
// here instead of aborting the epoch.
type MultiplexerStats struct {
	// Batches is the number of batches emitted so far this epoch.
	Batches int
	// FilesVisited counts files that were opened and assigned a cursor
	// slot. Files whose open failed are not included.
	FilesVisited int
	// PaddedSlots counts batch slots filled with zero padding.
	PaddedSlots int
	// RetiredForError counts files dropped for any error: open failures
	// (never visited) as well as cursors retired mid-stream, so a file
	// that opened and then corrupted appears in both FilesVisited and
	// RetiredForError.
	RetiredForError int
}

// StreamMultiplexer advances up to BatchSize recordings concurrently and
// stacks one chunk per slot into each batch. Exhausted slots pad for one
// step, then recycle onto the next unused file, so the batch shape stays
// constant across the whole epoch while every file is visited exactly once.
type StreamMultiplexer struct {
	cfg      Config
	files    []string
	opener   RecordingOpener
	windower *LabelWindower
	shape    ChunkShape
	span     int64

	queue []string
	slots []slot
	step  int
	done  bool
	rng   *rand.Rand
	stats MultiplexerStats
}

// NewStreamMultiplexer builds a multiplexer over files for one epoch. The
// windower is shared by all cursors; cfg must already be validated by the
// caller or is validated here.
func NewStreamMultiplexer(cfg Config, windower *LabelWindower, files []string, opener RecordingOpener) (*StreamMultiplexer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if windower == nil {
		return nil, configErrorf("label windower must not be nil")
	}
	if opener == nil {
		return nil, configErrorf("recording opener must not be nil")
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	m := &StreamMultiplexer{
		cfg:      cfg,
		files:    append([]string(nil), files...),
		opener:   opener,
		windower: windower,
		shape:    cfg.ChunkShape(),
		span:     cfg.windowSpan(),
		rng:      rand.New(rand.NewSource(seed)),
	}
	m.Reset()
	return m, nil
}

// Reset starts a fresh epoch: all slots empty, the file queue rebuilt from
// the full file list. Without shuffling, consecutive epochs replay the same
// slot-to-file schedule.
func (m *StreamMultiplexer) Reset() {
	m.Close()
	m.queue = append([]string(nil), m.files...)
	if m.cfg.ShuffleFilesPerEpoch {
		m.rng.Shuffle(len(m.queue), func(i, j int) {
			m.queue[i], m.queue[j] = m.queue[j], m.queue[i]
		})
	}
	m.slots = make([]slot, m.cfg.BatchSize)
	m.step = 0
	m.done = false
	m.stats = MultiplexerStats{}
}

// Close releases the file handles of all active cursors. Safe to call
// between steps when a consumer stops early.
func (m *StreamMultiplexer) Close() {
	for i := range m.slots {
		if m.slots[i].cursor != nil {
			m.slots[i].cursor.retire()
		}
		m.slots[i] = slot{}
	}
}

// Stats returns the counters of the epoch in progress.
func (m *StreamMultiplexer) Stats() MultiplexerStats {
	return m.stats
}

// NextBatch performs one multiplexer step and returns the next batch, or nil
// when the epoch is over (every slot idle and no unused file remains).
// Batches always carry exactly BatchSize slots; synthetic slots are flagged
// in the padding mask and hold a zero chunk and an empty label set.
func (m *StreamMultiplexer) NextBatch() *Batch {
	if m.done {
		return nil
	}

	// Queue pops stay on the calling goroutine; only cursor advances fan out.
	for i := range m.slots {
		if m.slots[i].state != slotEmpty {
			continue
		}
		for len(m.queue) > 0 {
			path := m.queue[0]
			m.queue = m.queue[1:]
			rec, err := m.opener(path)
			if err != nil {
				log.WithFields(log.Fields{"file": path, "error": err}).
					Warn("Skipping unreadable recording")
				m.stats.RetiredForError++
				continue
			}
			m.slots[i] = slot{
				state:  slotActive,
				cursor: NewStreamCursor(path, rec, m.windower, m.shape, m.span),
			}
			m.stats.FilesVisited++
			break
		}
	}

	active := 0
	for i := range m.slots {
		if m.slots[i].state == slotActive {
			active++
		}
	}
	if active == 0 {
		m.done = true
		return nil
	}

	type advanceResult struct {
		chunk  *TensorChunk
		labels BoxLabelSet
		err    error
	}
	results := make([]advanceResult, len(m.slots))
	var wg sync.WaitGroup
	for i := range m.slots {
		if m.slots[i].state != slotActive {
			continue
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			chunk, labels, err := m.slots[i].cursor.Advance()
			results[i] = advanceResult{chunk: chunk, labels: labels, err: err}
		}(i)
	}
	wg.Wait()

	batch := &Batch{
		Chunks:  make([]TensorChunk, len(m.slots)),
		Labels:  make([]BoxLabelSet, len(m.slots)),
		Padding: make([]bool, len(m.slots)),
		Step:    m.step,
	}
	for i := range m.slots {
		s := &m.slots[i]
		if s.state == slotEmpty {
			batch.Chunks[i] = zeroChunk(m.shape, 0)
			batch.Padding[i] = true
			m.stats.PaddedSlots++
			continue
		}
		r := results[i]
		switch {
		case r.err != nil:
			// Corrupt recording: drop the cursor, pad this step, refill
			// the slot from the queue on the next one.
			log.WithFields(log.Fields{"file": s.cursor.Path(), "error": r.err}).
				Warn("Retiring cursor after data error")
			m.stats.RetiredForError++
			*s = slot{}
			batch.Chunks[i] = zeroChunk(m.shape, 0)
			batch.Padding[i] = true
			m.stats.PaddedSlots++
		case r.chunk == nil:
			// Exhausted without delivering a chunk (recording shorter than
			// one window). Pads exactly one step, then the slot recycles.
			*s = slot{}
			batch.Chunks[i] = zeroChunk(m.shape, 0)
			batch.Padding[i] = true
			m.stats.PaddedSlots++
		default:
			batch.Chunks[i] = *r.chunk
			batch.Labels[i] = r.labels
			if s.cursor.Exhausted() {
				*s = slot{}
			}
		}
	}

	m.step++
	m.stats.Batches++
	return batch
}
