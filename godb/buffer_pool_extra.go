package godb

import (
	"fmt"
	"io"
	"log"
)

// Rollback undoes every change tid made, by reading the log in reverse and
// discarding or reverting any cached page the transaction's update records
// touched. Nothing in this package calls it; TransactionComplete aborts by
// reloading pages, and Recover runs its own undo pass.
func (bp *BufferPool) Rollback(tid TransactionID) error {
	bp.mu.Lock()
	lf := bp.logFile
	bp.mu.Unlock()
	if lf == nil {
		return fmt.Errorf("log file not initialized")
	}

	iter, err := lf.ReverseIterator()
	if err != nil {
		return err
	}

	for record, err := iter(); record != nil && err == nil; record, err = iter() {
		if record.Tid() != tid {
			continue
		}

		if record.Type() == BeginRecord {
			break
		}

		if record.Type() == UpdateRecord {
			switch b := record.(*UpdateLogRecord).Before.(type) {
			case *heapPage:
				bp.mu.Lock()
				bp.removeFromCacheLocked(b.getFile().pageKey(b.PageNo()))
				bp.mu.Unlock()
				if err := b.getFile().writePage(b); err != nil {
					return err
				}
			default:
				return fmt.Errorf("unexpected page type")
			}
		}
	}

	return lf.seek(0, io.SeekEnd)
}

// Recover replays the write-ahead log on startup: committed updates are
// redone, and updates belonging to transactions that never committed or
// aborted before the crash ("losers") are undone, with a synthetic abort
// record appended for each. Safe to call even when the log is empty.
func (bp *BufferPool) Recover(logFile *LogFile) error {
	bp.mu.Lock()
	bp.logFile = logFile
	bp.mu.Unlock()

	if err := logFile.seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek to start of file: %w", err)
	}

	losers := make(map[TransactionID]int64)
	iter := logFile.ForwardIterator()
	record, err := iter()
	for record != nil && err == nil {
		log.Printf("recovering record %+v\n", record)
		switch record.Type() {
		case BeginRecord:
			losers[record.Tid()] = record.Offset()
		case AbortRecord:
		case CommitRecord:
			delete(losers, record.Tid())
		case UpdateRecord:
			updateRecord := record.(*UpdateLogRecord)
			after := updateRecord.After.(*heapPage)
			pageKey := after.getFile().pageKey(after.PageNo())
			log.Printf("redo %v", pageKey)
			bp.mu.Lock()
			bp.removeFromCacheLocked(pageKey)
			bp.mu.Unlock()
			if err := after.getFile().writePage(after); err != nil {
				return err
			}
		}
		record, err = iter()
	}
	if err != nil {
		return err
	}

	iter2, err := logFile.ReverseIterator()
	if err != nil {
		return fmt.Errorf("failed to create rev iterator: %w", err)
	}
	record, err = iter2()
	for len(losers) > 0 && record != nil && err == nil {
		tid := record.Tid()
		_, isLoser := losers[tid]
		if isLoser {
			switch record.Type() {
			case UpdateRecord:
				updateRecord := record.(*UpdateLogRecord)
				page := updateRecord.Before.(*heapPage)
				pageKey := page.getFile().pageKey(page.PageNo())
				log.Printf("undo %v", pageKey)
				bp.mu.Lock()
				bp.removeFromCacheLocked(pageKey)
				bp.mu.Unlock()
				if err := page.getFile().writePage(page); err != nil {
					return err
				}
			case BeginRecord:
				offset := logFile.offset
				if err := logFile.seek(0, io.SeekEnd); err != nil {
					return err
				}
				logFile.LogAbort(tid)
				if err := logFile.Force(); err != nil {
					return err
				}
				if err := logFile.seek(offset, io.SeekStart); err != nil {
					return err
				}
				delete(losers, tid)
			}
		}
		record, err = iter2()
	}
	if err != nil {
		return fmt.Errorf("failed to read from reversed iterator: %w", err)
	}

	return logFile.seek(0, io.SeekEnd)
}
