package store

import "github.com/dscherger/monotone-sub002/vocab"

// bufferedFile is one queued-but-not-yet-written file content. When
// hasBase is set, flushLocked stores it as a delta against baseID (honoring
// the configured delta direction policy) instead of a full blob.
type bufferedFile struct {
	data    []byte
	hasBase bool
	baseID  vocab.FileID
}

// fileBuffer queues new file content in memory rather than writing it to
// the files table immediately, flushing everything it holds when the
// buffer exceeds a byte threshold or when the enclosing transaction
// commits. A put superseding an already-queued id (same content hash,
// re-offered before the first write ever reached disk) simply overwrites
// the queued copy; a rollback before any flush discards the whole queue
// with nothing ever touching storage.
//
// Grounded on storage.go's FileSystemInterface (WriteBytes/Truncate): that
// interface buffers at the OS file-handle level, a thin layer over the
// filesystem's own page cache; this type generalizes the same "accumulate
// writes, flush as a unit" shape one level up, batching many small blobs
// into one set of SQL statements instead of one write per handle.
type fileBuffer struct {
	s         *Store
	threshold int
	size      int
	entries   map[vocab.FileID]bufferedFile
	order     []vocab.FileID
}

func newFileBuffer(s *Store, threshold int) *fileBuffer {
	return &fileBuffer{s: s, threshold: threshold, entries: make(map[vocab.FileID]bufferedFile)}
}

// get returns queued content for id, if any is still buffered.
func (b *fileBuffer) get(id vocab.FileID) ([]byte, bool) {
	e, ok := b.entries[id]
	return e.data, ok
}

// put queues data under id as a full blob, flushing the whole buffer first
// if adding it would cross the threshold.
func (b *fileBuffer) put(id vocab.FileID, data []byte) {
	b.queue(id, bufferedFile{data: data})
}

// putDelta queues data under id to be stored as a delta against baseID,
// flushing the whole buffer first if adding it would cross the threshold.
// A later put or putDelta for the same id (a delta superseding an
// unflushed full, or vice versa) simply overwrites the queued descriptor.
func (b *fileBuffer) putDelta(id, baseID vocab.FileID, data []byte) {
	b.queue(id, bufferedFile{data: data, hasBase: true, baseID: baseID})
}

func (b *fileBuffer) queue(id vocab.FileID, e bufferedFile) {
	if _, exists := b.entries[id]; exists {
		b.entries[id] = e
		return
	}
	if b.size+len(e.data) > b.threshold && len(b.entries) > 0 {
		if err := b.flushLocked(); err != nil {
			logger.Error().Err(err).Msg("failed to flush file buffer ahead of threshold")
		}
	}
	b.entries[id] = e
	b.order = append(b.order, id)
	b.size += len(e.data)
}

// loadBaseLocked returns the full content for id, preferring a still-
// queued buffer entry (content that hasn't reached storage yet) over
// reconstructing it from the files/file_deltas tables.
func (b *fileBuffer) loadBaseLocked(id vocab.FileID) ([]byte, bool) {
	if e, ok := b.entries[id]; ok {
		return e.data, true
	}
	data, err := fileStore{b.s}.LoadOrReconstruct(id)
	if err != nil {
		return nil, false
	}
	return data, true
}

// flushLocked writes every queued file and empties the buffer. Called
// both from Commit and, preemptively, from put/putDelta once the byte
// threshold is crossed — in either case the caller already holds s.mu.
//
// Under the DeltaReverse policy, a queued full entry that another queued
// entry uses as its delta base is skipped (the base id gets no full row
// at all, only a reverse delta) rather than written and immediately
// deleted again.
func (b *fileBuffer) flushLocked() error {
	superseded := make(map[vocab.FileID]bool)
	if policy, err := b.s.DeltaDirectionPolicy(); err != nil {
		return err
	} else if policy == DeltaReverse {
		for _, id := range b.order {
			if e := b.entries[id]; e.hasBase {
				if base, queued := b.entries[e.baseID]; queued && !base.hasBase {
					superseded[e.baseID] = true
				}
			}
		}
	}
	for _, id := range b.order {
		if superseded[id] {
			continue
		}
		e, ok := b.entries[id]
		if !ok {
			continue
		}
		if !e.hasBase {
			if err := b.s.insertFileFull(id, e.data); err != nil {
				return err
			}
			continue
		}
		baseData, ok := b.loadBaseLocked(e.baseID)
		if !ok {
			if err := b.s.insertFileFull(id, e.data); err != nil {
				return err
			}
			continue
		}
		policy, err := b.s.DeltaDirectionPolicy()
		if err != nil {
			return err
		}
		if err := b.s.putFileDeltaFrom(e.baseID, id, baseData, e.data); err != nil {
			return err
		}
		if policy == DeltaReverse {
			superseded[e.baseID] = true
		}
	}
	b.entries = make(map[vocab.FileID]bufferedFile)
	b.order = nil
	b.size = 0
	return nil
}

// discardLocked drops every queued write without touching storage,
// called from Rollback.
func (b *fileBuffer) discardLocked() {
	b.entries = make(map[vocab.FileID]bufferedFile)
	b.order = nil
	b.size = 0
}
