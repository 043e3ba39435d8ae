package godb

import (
	"container/list"
	"sync"
)

// BufferPool caches pages read from disk, bounded to a fixed capacity, and
// is the sole mediator of page access: every read or write passes through
// GetPage, which acquires the necessary lock via the LockManager before
// serving or loading the page. Dirty tracking, WAL logging on flush, and
// NO-STEAL eviction are all the buffer pool's responsibility; DBFile only
// knows how to read and write raw pages.
//
// Lock ordering: bp.mu is never held while blocked inside LockManager.
// RequestLock (the only blocking call in the system) -- callers that need
// both locks acquire bp.mu first, then call into lm, matching the order
// documented on LockManager.
type BufferPool struct {
	mu       sync.Mutex
	pages    map[PageId]Page
	maxPages int

	// recency orders cached pages from least to most recently touched,
	// for LRU tie-breaking among clean eviction candidates.
	recency   *list.List
	recencyAt map[PageId]*list.Element

	// dirtiedFlushedByTx records, per transaction, which pages have been
	// flushed on its behalf -- used by crash recovery to know which
	// on-disk pages reflect which transaction's writes.
	dirtiedFlushedByTx map[TransactionID]map[PageId]struct{}

	lm      *LockManager
	logFile walLog
	catalog *Catalog
}

// walLog is the subset of *LogFile's interface the buffer pool and its
// recovery path depend on, kept narrow so tests can substitute a recording
// fake for the write-ahead-logging property (force strictly before page
// write) without standing up a real on-disk log.
type walLog interface {
	LogUpdate(tid TransactionID, before, after Page) error
	Force() error
	ReverseIterator() (func() (LogRecord, error), error)
	seek(offset int64, whence int) error
}

// NewBufferPool creates a BufferPool with the given capacity. catalog may
// be nil for tests that never call GetPageByID, InsertTuple or DeleteTuple,
// all of which fail without one.
func NewBufferPool(maxPages int, catalog *Catalog) (*BufferPool, error) {
	return &BufferPool{
		pages:              make(map[PageId]Page),
		maxPages:           maxPages,
		recency:            list.New(),
		recencyAt:          make(map[PageId]*list.Element),
		dirtiedFlushedByTx: make(map[TransactionID]map[PageId]struct{}),
		lm:                 NewLockManager(),
		catalog:            catalog,
	}, nil
}

// SetLogFile attaches the write-ahead log the flush protocol appends to.
// Left nil, flushing still writes pages but skips the log force (useful in
// tests of eviction/locking alone).
func (bp *BufferPool) SetLogFile(lf *LogFile) {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	bp.logFile = lf
}

// LogFile returns the buffer pool's attached write-ahead log, or nil.
func (bp *BufferPool) LogFile() walLog {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	return bp.logFile
}

// GetPage acquires perm on the page at pageNo in file for tid (blocking
// until granted or the transaction aborts), then returns the cached page,
// loading and installing it first if necessary. If the cache is full, one
// clean page is evicted first; if every cached page is dirty, returns a
// DbException.
func (bp *BufferPool) GetPage(file DBFile, pageNo int, tid TransactionID, perm RWPerm) (Page, error) {
	pid := file.pageKey(pageNo)

	if err := bp.lm.RequestLock(tid, pid, perm); err != nil {
		return nil, err
	}

	bp.mu.Lock()
	defer bp.mu.Unlock()

	if pg, ok := bp.pages[pid]; ok {
		bp.touchLocked(pid)
		return pg, nil
	}

	if len(bp.pages) >= bp.maxPages {
		if err := bp.evictLocked(); err != nil {
			return nil, err
		}
	}

	pg, err := file.readPage(pageNo)
	if err != nil {
		return nil, err
	}
	bp.pages[pid] = pg
	bp.touchLocked(pid)
	return pg, nil
}

// GetPageByID resolves pid's owning DBFile through the catalog and
// delegates to GetPage. This is the literal get_page(tid, pid, perm) entry
// point external callers use when they only have a PageId in hand.
func (bp *BufferPool) GetPageByID(tid TransactionID, pid PageId, perm RWPerm) (Page, error) {
	if bp.catalog == nil {
		return nil, GoDBError{NoSuchTableError, "buffer pool has no catalog"}
	}
	file, err := bp.catalog.GetDBFile(int(pid.TableID))
	if err != nil {
		return nil, err
	}
	return bp.GetPage(file, int(pid.PageNo), tid, perm)
}

// ReleasePage releases tid's lock on pid directly, bypassing the normal
// commit/abort flow. Unsafe mid-transaction; used only for specialized
// cases such as releasing index pages early during deadlock recovery.
func (bp *BufferPool) ReleasePage(tid TransactionID, pid PageId) {
	bp.lm.ReleaseLock(tid, pid)
}

// HoldsLock reports whether tid currently holds any lock on pid.
func (bp *BufferPool) HoldsLock(tid TransactionID, pid PageId) bool {
	return bp.lm.HoldsLock(tid, pid)
}

// TransactionComplete ends tid: every page currently cached and dirtied by
// tid is flushed (commit) or reloaded from disk (abort), and then every
// lock tid holds is released. A transaction that touched no page still
// results in a clean release of its (empty) lock set.
func (bp *BufferPool) TransactionComplete(tid TransactionID, commit bool) {
	bp.mu.Lock()
	var touched []PageId
	for pid, pg := range bp.pages {
		if dirty, owner := pg.isDirty(); dirty && owner == tid {
			touched = append(touched, pid)
		}
	}

	for _, pid := range touched {
		if commit {
			bp.flushPageLocked(pid)
			continue
		}
		pg := bp.pages[pid]
		fresh, err := pg.getFile().readPage(int(pid.PageNo))
		if err == nil {
			bp.pages[pid] = fresh
		}
	}
	delete(bp.dirtiedFlushedByTx, tid)
	bp.mu.Unlock()

	bp.lm.ReleaseAllPages(tid)
}

// InsertTuple inserts t into the table named by tableID, marking every page
// the insertion dirtied as dirtied by tid.
func (bp *BufferPool) InsertTuple(tid TransactionID, tableID int, t *Tuple) error {
	if bp.catalog == nil {
		return GoDBError{NoSuchTableError, "buffer pool has no catalog"}
	}
	file, err := bp.catalog.GetDBFile(tableID)
	if err != nil {
		return err
	}
	pages, err := file.insertTuple(t, tid)
	if err != nil {
		return err
	}
	bp.mu.Lock()
	defer bp.mu.Unlock()
	for _, pg := range pages {
		bp.markDirtyLocked(pg, tid)
	}
	return nil
}

// DeleteTuple deletes t, resolving its owning table from its Rid, marking
// the page it dirtied as dirtied by tid.
func (bp *BufferPool) DeleteTuple(tid TransactionID, t *Tuple) error {
	if t.Rid == nil {
		return GoDBError{TupleNotFoundError, "tuple has no rid, cannot delete"}
	}
	if bp.catalog == nil {
		return GoDBError{NoSuchTableError, "buffer pool has no catalog"}
	}
	file, err := bp.catalog.GetDBFile(t.Rid.tableID())
	if err != nil {
		return err
	}
	pg, err := file.deleteTuple(t, tid)
	if err != nil {
		return err
	}
	bp.mu.Lock()
	defer bp.mu.Unlock()
	bp.markDirtyLocked(pg, tid)
	return nil
}

// FlushAllPages flushes every cached dirty page, regardless of which
// transaction dirtied it. Only safe outside regular transaction flow
// (testing, shutdown): using it during an active transaction breaks
// NO-STEAL.
func (bp *BufferPool) FlushAllPages() {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	for pid := range bp.pages {
		bp.flushPageLocked(pid)
	}
}

// FlushPages flushes every cached page currently dirtied by tid.
func (bp *BufferPool) FlushPages(tid TransactionID) {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	for pid, pg := range bp.pages {
		if dirty, owner := pg.isDirty(); dirty && owner == tid {
			bp.flushPageLocked(pid)
		}
	}
}

// DiscardPage removes pid from the cache without flushing it, and drops
// its lock-manager bookkeeping. Used by the recovery path to drop
// rolled-back pages.
func (bp *BufferPool) DiscardPage(pid PageId) {
	bp.mu.Lock()
	bp.removeFromCacheLocked(pid)
	bp.mu.Unlock()

	bp.lm.RemovePage(pid)
}

// flushPageLocked implements the WAL flush protocol (§4.1.3). Must be
// called with bp.mu held.
func (bp *BufferPool) flushPageLocked(pid PageId) error {
	pg, ok := bp.pages[pid]
	if !ok {
		return nil
	}
	dirty, tid := pg.isDirty()
	if !dirty {
		return nil
	}

	if bp.dirtiedFlushedByTx[tid] == nil {
		bp.dirtiedFlushedByTx[tid] = make(map[PageId]struct{})
	}
	bp.dirtiedFlushedByTx[tid][pid] = struct{}{}

	if bp.logFile != nil {
		before := pg.getBeforeImage()
		if before != nil {
			if err := bp.logFile.LogUpdate(tid, before, pg); err != nil {
				return err
			}
			if err := bp.logFile.Force(); err != nil {
				return err
			}
		}
	}

	if err := pg.getFile().writePage(pg); err != nil {
		return err
	}
	pg.setDirty(0, false)
	return nil
}

// evictLocked picks the least-recently-touched clean page and flushes and
// removes it. Must be called with bp.mu held. Fails with a DbException if
// every cached page is dirty.
func (bp *BufferPool) evictLocked() error {
	for elem := bp.recency.Front(); elem != nil; elem = elem.Next() {
		pid := elem.Value.(PageId)
		pg, ok := bp.pages[pid]
		if !ok {
			continue
		}
		if dirty, _ := pg.isDirty(); dirty {
			continue
		}
		if err := bp.flushPageLocked(pid); err != nil {
			return DbException("eviction flush failed: " + err.Error())
		}
		bp.removeFromCacheLocked(pid)
		return nil
	}
	return DbException("all pages dirty -- cannot evict")
}

// markDirtyLocked marks pg dirty for tid. DBFile.insertTuple/deleteTuple
// mutate and return pg without holding bp.mu, so a concurrent GetPage's
// eviction can race in between and evict pg while it still reads as clean,
// dropping it from bp.pages. If that happened, re-install pg under its own
// PageId so the dirty state this transaction just introduced isn't silently
// lost to a later reload from disk. Must be called with bp.mu held.
func (bp *BufferPool) markDirtyLocked(pg Page, tid TransactionID) {
	pg.setDirty(tid, true)

	pid := pg.getID()
	if cached, ok := bp.pages[pid]; ok && cached == pg {
		bp.touchLocked(pid)
		return
	}

	if len(bp.pages) >= bp.maxPages {
		bp.evictLocked()
	}
	bp.pages[pid] = pg
	bp.touchLocked(pid)
}

func (bp *BufferPool) touchLocked(pid PageId) {
	if elem, ok := bp.recencyAt[pid]; ok {
		bp.recency.MoveToBack(elem)
		return
	}
	bp.recencyAt[pid] = bp.recency.PushBack(pid)
}

func (bp *BufferPool) removeFromCacheLocked(pid PageId) {
	delete(bp.pages, pid)
	if elem, ok := bp.recencyAt[pid]; ok {
		bp.recency.Remove(elem)
		delete(bp.recencyAt, pid)
	}
}
