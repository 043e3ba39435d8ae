package godb

import (
	"testing"
	"time"
)

func TestGrantLockUnlockedPage(t *testing.T) {
	lm := NewLockManager()
	pid := PageId{TableID: 1, PageNo: 0}
	tid := NewTID()

	if !lm.GrantLock(tid, pid, ReadPerm) {
		t.Fatal("expected read lock to be granted on an unlocked page")
	}
	if !lm.HoldsLock(tid, pid) {
		t.Error("HoldsLock should report the lock just granted")
	}
}

func TestMultipleReadersAllowed(t *testing.T) {
	lm := NewLockManager()
	pid := PageId{TableID: 1, PageNo: 0}
	t1, t2 := NewTID(), NewTID()

	if !lm.GrantLock(t1, pid, ReadPerm) {
		t.Fatal("t1 should get the read lock")
	}
	if !lm.GrantLock(t2, pid, ReadPerm) {
		t.Fatal("t2 should also get the read lock alongside t1")
	}
}

func TestWriteLockExclusive(t *testing.T) {
	lm := NewLockManager()
	pid := PageId{TableID: 1, PageNo: 0}
	t1, t2 := NewTID(), NewTID()

	if !lm.GrantLock(t1, pid, WritePerm) {
		t.Fatal("t1 should get the write lock")
	}
	if lm.GrantLock(t2, pid, ReadPerm) {
		t.Error("t2 should not get a read lock while t1 holds the write lock")
	}
	if lm.GrantLock(t2, pid, WritePerm) {
		t.Error("t2 should not get the write lock while t1 holds it")
	}
}

func TestWriteLockIdempotent(t *testing.T) {
	lm := NewLockManager()
	pid := PageId{TableID: 1, PageNo: 0}
	tid := NewTID()

	if !lm.GrantLock(tid, pid, WritePerm) {
		t.Fatal("first write grant should succeed")
	}
	if !lm.GrantLock(tid, pid, WritePerm) {
		t.Error("re-requesting the write lock tid already holds should succeed")
	}
}

func TestLockUpgrade(t *testing.T) {
	lm := NewLockManager()
	pid := PageId{TableID: 1, PageNo: 0}
	tid := NewTID()

	if !lm.GrantLock(tid, pid, ReadPerm) {
		t.Fatal("read grant should succeed")
	}
	if !lm.GrantLock(tid, pid, WritePerm) {
		t.Fatal("sole reader should be able to upgrade to a write lock")
	}
}

func TestLockUpgradeBlockedByOtherReader(t *testing.T) {
	lm := NewLockManager()
	pid := PageId{TableID: 1, PageNo: 0}
	t1, t2 := NewTID(), NewTID()

	lm.GrantLock(t1, pid, ReadPerm)
	lm.GrantLock(t2, pid, ReadPerm)

	if lm.GrantLock(t1, pid, WritePerm) {
		t.Error("upgrade should fail while another transaction also holds a read lock")
	}
}

func TestReleaseLockAllowsOthersIn(t *testing.T) {
	lm := NewLockManager()
	pid := PageId{TableID: 1, PageNo: 0}
	t1, t2 := NewTID(), NewTID()

	lm.GrantLock(t1, pid, WritePerm)
	lm.ReleaseLock(t1, pid)

	if lm.HoldsLock(t1, pid) {
		t.Error("t1 should no longer hold the lock after release")
	}
	if !lm.GrantLock(t2, pid, WritePerm) {
		t.Error("t2 should be able to acquire the write lock after t1 releases it")
	}
}

func TestReleaseAllPages(t *testing.T) {
	lm := NewLockManager()
	p1 := PageId{TableID: 1, PageNo: 0}
	p2 := PageId{TableID: 1, PageNo: 1}
	tid := NewTID()

	lm.GrantLock(tid, p1, ReadPerm)
	lm.GrantLock(tid, p2, WritePerm)

	lm.ReleaseAllPages(tid)

	if lm.HoldsLock(tid, p1) || lm.HoldsLock(tid, p2) {
		t.Error("ReleaseAllPages should drop every lock tid held")
	}
}

func TestRequestLockBlocksThenGrants(t *testing.T) {
	lm := NewLockManager()
	pid := PageId{TableID: 1, PageNo: 0}
	holder, waiter := NewTID(), NewTID()

	if err := lm.RequestLock(holder, pid, WritePerm); err != nil {
		t.Fatalf("holder should acquire immediately: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- lm.RequestLock(waiter, pid, ReadPerm)
	}()

	time.Sleep(20 * time.Millisecond)
	lm.ReleaseLock(holder, pid)

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("waiter should eventually acquire the lock, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("waiter never acquired the lock after the holder released it")
	}
}

func TestRequestLockReadTimeoutAborts(t *testing.T) {
	lm := NewLockManager()
	pid := PageId{TableID: 1, PageNo: 0}
	holder, waiter := NewTID(), NewTID()

	if err := lm.RequestLock(holder, pid, WritePerm); err != nil {
		t.Fatalf("holder should acquire immediately: %v", err)
	}

	err := lm.RequestLock(waiter, pid, ReadPerm)
	if err == nil {
		t.Fatal("expected the waiting reader to time out and abort")
	}
	if !IsTransactionAborted(err) {
		t.Errorf("expected a TransactionAborted error, got %v", err)
	}
}

func TestRequestLockForcedWriterPreemptsReaders(t *testing.T) {
	lm := NewLockManager()
	pid := PageId{TableID: 1, PageNo: 0}
	reader, writer := NewTID(), NewTID()

	if err := lm.RequestLock(reader, pid, ReadPerm); err != nil {
		t.Fatalf("reader should acquire immediately: %v", err)
	}

	err := lm.RequestLock(writer, pid, WritePerm)
	if err != nil {
		t.Fatalf("writer should eventually force its way in, got %v", err)
	}
	if !lm.HoldsLock(writer, pid) {
		t.Error("writer should hold the write lock after forcing")
	}
}

func TestRemovePageDropsBookkeeping(t *testing.T) {
	lm := NewLockManager()
	pid := PageId{TableID: 1, PageNo: 0}
	tid := NewTID()

	lm.GrantLock(tid, pid, WritePerm)
	lm.RemovePage(pid)

	if lm.HoldsLock(tid, pid) {
		t.Error("RemovePage should clear lock state for the page")
	}
}
