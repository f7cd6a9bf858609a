package store

import (
	"bytes"
	"database/sql"
	"sync"
	"time"

	"github.com/dscherger/monotone-sub002/errs"
	"github.com/dscherger/monotone-sub002/marking"
	"github.com/dscherger/monotone-sub002/rdelta"
	"github.com/dscherger/monotone-sub002/rdelta/bindelta"
	"github.com/dscherger/monotone-sub002/roster"
	"github.com/dscherger/monotone-sub002/vocab"
)

// defaultRosterCacheBudget estimates roster memory cost as node count ×
// this constant (bytes), matching garland.maintenance.go's
// "estimate leaf size, budget in bytes" approach generalized from leaf
// byte-length to node count.
const (
	defaultRosterCacheBudget   = 64 << 20 // 64 MiB equivalent
	estimatedBytesPerNode      = 256
)

// rosterCacheEntry is one roster held in memory, possibly dirty (written
// since the last flush, not yet reflected in the rosters/roster_deltas
// tables).
type rosterCacheEntry struct {
	roster       *roster.Roster
	marks        *marking.Map
	dirty        bool
	baseHint     vocab.RevisionID
	haveBaseHint bool
	accessTime   time.Time
}

// rosterCache is an LRU writeback cache over in-memory rosters, budgeted
// by estimated size rather than entry count. Grounded on
// garland.maintenance.go's collectLRUCandidates + IncrementalChill
// (access-time-ordered candidate list, evict until under budget),
// generalized from "chill rope leaves to cold storage" to "evict dirty
// rosters, writing each as a delta against its recorded base hint (or a
// full blob if none was given) before dropping it from memory."
type rosterCache struct {
	s      *Store
	mu     sync.Mutex
	budget int
	used   int
	dirtyThisTx []vocab.RevisionID
	entries     map[vocab.RevisionID]*rosterCacheEntry
}

func newRosterCache(s *Store, budget int) *rosterCache {
	return &rosterCache{s: s, budget: budget, entries: make(map[vocab.RevisionID]*rosterCacheEntry)}
}

// get returns a cached roster if present, bumping its access time. A
// reader always observes the latest version since the cache is consulted
// before the rosters/roster_deltas tables.
func (c *rosterCache) get(rid vocab.RevisionID) (*roster.Roster, *marking.Map, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[rid]
	if !ok {
		return nil, nil, false
	}
	e.accessTime = time.Now()
	return e.roster, e.marks, true
}

// putDirty records r/mm as the current (uncommitted) state for rid. When
// haveBase is true, baseRid is recorded as the preferred delta base when
// this entry is eventually flushed.
func (c *rosterCache) putDirty(rid vocab.RevisionID, r *roster.Roster, mm *marking.Map, baseRid vocab.RevisionID, haveBase bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, existed := c.entries[rid]; !existed {
		c.used += len(r.AllNodeIDs()) * estimatedBytesPerNode
	}
	c.entries[rid] = &rosterCacheEntry{
		roster: r, marks: mm, dirty: true,
		baseHint: baseRid, haveBaseHint: haveBase,
		accessTime: time.Now(),
	}
	c.dirtyThisTx = append(c.dirtyThisTx, rid)
	c.evictIfOverBudgetLocked()
}

// putClean caches a roster reconstructed from storage, without marking
// it dirty (nothing to write back).
func (c *rosterCache) putClean(rid vocab.RevisionID, r *roster.Roster, mm *marking.Map) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, existed := c.entries[rid]; existed {
		return
	}
	c.entries[rid] = &rosterCacheEntry{roster: r, marks: mm, accessTime: time.Now()}
	c.used += len(r.AllNodeIDs()) * estimatedBytesPerNode
	c.evictIfOverBudgetLocked()
}

func (c *rosterCache) evictIfOverBudgetLocked() {
	for c.used > c.budget && len(c.entries) > 0 {
		var oldest vocab.RevisionID
		var oldestTime time.Time
		first := true
		for rid, e := range c.entries {
			if first || e.accessTime.Before(oldestTime) {
				oldest = rid
				oldestTime = e.accessTime
				first = false
			}
		}
		e := c.entries[oldest]
		if e.dirty {
			if err := c.s.flushRosterEntry(oldest, e); err != nil {
				logger.Error().Err(err).Str("revision", oldest.String()).Msg("failed to flush dirty roster on eviction")
				return
			}
		}
		delete(c.entries, oldest)
		c.used -= len(e.roster.AllNodeIDs()) * estimatedBytesPerNode
	}
}

// flushLocked is called from Commit: every dirty entry is written back.
func (c *rosterCache) flushLocked() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, rid := range c.dirtyThisTx {
		e, ok := c.entries[rid]
		if !ok || !e.dirty {
			continue
		}
		if err := c.s.flushRosterEntry(rid, e); err != nil {
			return err
		}
		e.dirty = false
	}
	c.dirtyThisTx = nil
	return nil
}

// discardLocked is called from Rollback: every entry made dirty during
// this transaction is dropped (reverting to whatever was last flushed,
// or absent if it was never flushed).
func (c *rosterCache) discardLocked() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, rid := range c.dirtyThisTx {
		if e, ok := c.entries[rid]; ok {
			c.used -= len(e.roster.AllNodeIDs()) * estimatedBytesPerNode
			delete(c.entries, rid)
		}
	}
	c.dirtyThisTx = nil
}

func (s *Store) flushRosterEntry(rid vocab.RevisionID, e *rosterCacheEntry) error {
	var buf bytes.Buffer
	if err := e.roster.PrintTo(&buf, e.marks, true); err != nil {
		return errs.Wrap(errs.System, "serializing roster", err)
	}
	data := buf.Bytes()
	checksum := vocab.HashRevision(data).String() // content checksum, independent of rid as a key

	if e.haveBaseHint {
		if baseData, err := s.loadRosterBlobIfBase(e.baseHint); err == nil {
			delta := bindelta.Encode(baseData, data)
			return s.insertRosterDelta(rid, e.baseHint, false, checksum, delta)
		}
	}
	return s.insertRosterFull(rid, checksum, data)
}

func (s *Store) loadRosterBlobIfBase(rid vocab.RevisionID) ([]byte, error) {
	var gz []byte
	err := s.conn().QueryRow(`SELECT data FROM rosters WHERE revision_id = ?`, rid.String()).Scan(&gz)
	if err != nil {
		return nil, err
	}
	return gzipDecompress(gz)
}

func (s *Store) insertRosterFull(rid vocab.RevisionID, checksum string, data []byte) error {
	gz, err := gzipCompress(data)
	if err != nil {
		return errs.Wrap(errs.System, "compressing roster", err)
	}
	_, err = s.conn().Exec(`INSERT OR REPLACE INTO rosters(revision_id, checksum, data) VALUES (?, ?, ?)`, rid.String(), checksum, gz)
	if err != nil {
		return errs.Wrap(errs.Database, "writing roster blob", err)
	}
	return nil
}

func (s *Store) insertRosterDelta(rid, baseRid vocab.RevisionID, reverse bool, checksum string, delta []byte) error {
	gz, err := gzipCompress(delta)
	if err != nil {
		return errs.Wrap(errs.System, "compressing roster delta", err)
	}
	_, err = s.conn().Exec(
		`INSERT OR REPLACE INTO roster_deltas(revision_id, base_revision_id, reverse, checksum, data) VALUES (?, ?, ?, ?, ?)`,
		rid.String(), baseRid.String(), reverse, checksum, gz)
	if err != nil {
		return errs.Wrap(errs.Database, "writing roster delta", err)
	}
	return nil
}

// rosterStore adapts the rosters/roster_deltas tables to
// rdelta.Store[vocab.RevisionID].
type rosterStore struct{ s *Store }

func (rs rosterStore) IsBase(rid vocab.RevisionID) (bool, error) {
	var n int
	err := rs.s.conn().QueryRow(`SELECT COUNT(*) FROM rosters WHERE revision_id = ?`, rid.String()).Scan(&n)
	if err != nil {
		return false, errs.Wrap(errs.Database, "checking roster base", err)
	}
	return n > 0, nil
}

func (rs rosterStore) LoadBase(rid vocab.RevisionID) ([]byte, error) {
	return rs.s.loadRosterBlobIfBase(rid)
}

func (rs rosterStore) GetNext(rid vocab.RevisionID) (vocab.RevisionID, []byte, bool, error) {
	var baseStr, checksum string
	var gz []byte
	err := rs.s.conn().QueryRow(`SELECT base_revision_id, checksum, data FROM roster_deltas WHERE revision_id = ?`, rid.String()).
		Scan(&baseStr, &checksum, &gz)
	if err == sql.ErrNoRows {
		return vocab.RevisionID{}, nil, false, nil
	}
	if err != nil {
		return vocab.RevisionID{}, nil, false, errs.Wrap(errs.Database, "loading roster delta", err)
	}
	base, err := vocab.ParseRevisionID(baseStr)
	if err != nil {
		return vocab.RevisionID{}, nil, false, err
	}
	delta, err := gzipDecompress(gz)
	if err != nil {
		return vocab.RevisionID{}, nil, false, err
	}
	// delta is always encoded base->rid, so GetNext's "base,
	// forward-delta-from-base" contract holds directly.
	return base, delta, true, nil
}

// GetRoster reconstructs the roster and marking map stored for rid,
// consulting the writeback cache first so an uncommitted write in the
// current transaction is observed.
func (s *Store) GetRoster(rid vocab.RevisionID, ids *vocab.NodeIDSource) (*roster.Roster, *marking.Map, error) {
	if r, mm, ok := s.rosterCache.get(rid); ok {
		return r, mm, nil
	}
	data, err := rdelta.Reconstruct[vocab.RevisionID](rosterStore{s}, s.rosterVersionCache, bindelta.Apply, rid)
	if err != nil {
		return nil, nil, err
	}
	r, mm, err := roster.ParseFrom(bytes.NewReader(data), ids)
	if err != nil {
		return nil, nil, errs.Wrap(errs.Database, "parsing reconstructed roster", err)
	}
	s.rosterCache.putClean(rid, r, mm)
	return r, mm, nil
}

// PutRoster records the roster/marking state for rid, deferred to the
// writeback cache until commit. baseRid (when haveBase is true) is the
// preferred neighbor to store a delta against — typically this
// revision's single non-merge parent.
func (s *Store) PutRoster(rid vocab.RevisionID, r *roster.Roster, mm *marking.Map, baseRid vocab.RevisionID, haveBase bool) {
	s.rosterCache.putDirty(rid, r, mm, baseRid, haveBase)
}

func (s *Store) allRosterRevisionIDs() ([]vocab.RevisionID, error) {
	rows, err := s.conn().Query(`SELECT revision_id FROM rosters UNION SELECT revision_id FROM roster_deltas`)
	if err != nil {
		return nil, errs.Wrap(errs.Database, "listing roster revision ids", err)
	}
	defer rows.Close()
	var out []vocab.RevisionID
	for rows.Next() {
		var idStr string
		if err := rows.Scan(&idStr); err != nil {
			return nil, errs.Wrap(errs.Database, "scanning roster revision id", err)
		}
		rid, err := vocab.ParseRevisionID(idStr)
		if err != nil {
			return nil, err
		}
		out = append(out, rid)
	}
	return out, rows.Err()
}

func (s *Store) verifyRosterChain(rid vocab.RevisionID) error {
	data, err := rdelta.Reconstruct[vocab.RevisionID](rosterStore{s}, s.rosterVersionCache, bindelta.Apply, rid)
	if err != nil {
		return err
	}
	want, err := s.storedRosterChecksum(rid)
	if err != nil {
		return err
	}
	got := vocab.HashRevision(data).String()
	if want != "" && got != want {
		return errs.New(errs.Database, "store: roster chain for "+rid.String()+" does not match its stored checksum")
	}
	return nil
}

func (s *Store) storedRosterChecksum(rid vocab.RevisionID) (string, error) {
	var checksum string
	err := s.conn().QueryRow(`SELECT checksum FROM rosters WHERE revision_id = ?`, rid.String()).Scan(&checksum)
	if err == nil {
		return checksum, nil
	}
	if err != sql.ErrNoRows {
		return "", errs.Wrap(errs.Database, "reading roster checksum", err)
	}
	err = s.conn().QueryRow(`SELECT checksum FROM roster_deltas WHERE revision_id = ?`, rid.String()).Scan(&checksum)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", errs.Wrap(errs.Database, "reading roster delta checksum", err)
	}
	return checksum, nil
}
