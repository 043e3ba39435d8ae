package godb

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
)

// HeapFile is an unordered collection of tuples, laid out as a sequence of
// fixed-size heapPages in a single backing file. It is the only DBFile
// implementation in this package.
type HeapFile struct {
	td            *TupleDesc
	numPages      int
	backingFile   string
	lastEmptyPage int
	tableID       int
	bufPool       *BufferPool
	sync.Mutex
}

// NewHeapFile creates a HeapFile backed by fromFile, which may be empty or
// a previously created heap file, using bp to cache pages read from it.
func NewHeapFile(fromFile string, td *TupleDesc, bp *BufferPool) (*HeapFile, error) {
	f, err := os.OpenFile(fromFile, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	numPages := fi.Size() / int64(PageSize)
	return &HeapFile{
		td:            td,
		numPages:      int(numPages),
		backingFile:   fromFile,
		lastEmptyPage: -1,
		tableID:       -1,
		bufPool:       bp,
	}, nil
}

// ID returns the table identifier the catalog assigned this file.
func (f *HeapFile) ID() int {
	return f.tableID
}

// SetID is called once by Catalog.AddTable to bind this file to its table
// identifier; every PageId and recordID this file hands out after that
// carries it.
func (f *HeapFile) SetID(id int) {
	f.tableID = id
}

// BackingFile returns the name of the file this HeapFile is stored in.
func (f *HeapFile) BackingFile() string {
	return f.backingFile
}

// NumPages returns the number of pages currently in the heap file.
func (f *HeapFile) NumPages() int {
	return f.numPages
}

// LoadFromCSV populates the heap file from a CSV file. hasHeader skips the
// first line; sep is the field separator; skipLastField drops a trailing
// empty field some TPC-style datasets leave from a trailing separator.
// Each row is inserted and committed as its own transaction so the buffer
// pool never fills with pages from a single giant load.
func (f *HeapFile) LoadFromCSV(file *os.File, hasHeader bool, sep string, skipLastField bool) error {
	scanner := bufio.NewScanner(file)
	cnt := 0
	for scanner.Scan() {
		line := scanner.Text()
		fields := strings.Split(line, sep)
		if skipLastField {
			fields = fields[0 : len(fields)-1]
		}
		numFields := len(fields)
		cnt++

		desc := f.Descriptor()
		if desc == nil || desc.Fields == nil {
			return GoDBError{MalformedDataError, "Descriptor was nil"}
		}
		if numFields != len(desc.Fields) {
			return GoDBError{MalformedDataError, fmt.Sprintf("LoadFromCSV: line %d (%s) does not have expected number of fields (expected %d, got %d)", cnt, line, len(desc.Fields), numFields)}
		}
		if cnt == 1 && hasHeader {
			continue
		}

		var newFields []DBValue
		for fno, field := range fields {
			switch desc.Fields[fno].Ftype {
			case IntType:
				field = strings.TrimSpace(field)
				floatVal, err := strconv.ParseFloat(field, 64)
				if err != nil {
					return GoDBError{TypeMismatchError, fmt.Sprintf("LoadFromCSV: couldn't convert value %s to int, tuple %d", field, cnt)}
				}
				newFields = append(newFields, IntField{int64(floatVal)})
			case StringType:
				if len(field) > StringLength {
					field = field[0:StringLength]
				}
				newFields = append(newFields, StringField{field})
			}
		}

		newT := Tuple{*desc, newFields, nil}
		tid := NewTID()
		if err := f.bufPool.InsertTuple(tid, f.tableID, &newT); err != nil {
			return err
		}
		f.bufPool.TransactionComplete(tid, true)
	}
	return scanner.Err()
}

// readPage reads the pageNo'th page of the file directly from disk,
// bypassing the buffer pool entirely.
func (f *HeapFile) readPage(pageNo int) (Page, error) {
	file, err := os.OpenFile(f.backingFile, os.O_CREATE|os.O_RDONLY, 0644)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	b := make([]byte, PageSize)
	n, err := file.ReadAt(b, int64(pageNo)*int64(PageSize))
	if err != nil {
		return nil, err
	}
	if n != PageSize {
		return nil, GoDBError{MalformedDataError, "not enough bytes read in readPage"}
	}
	pg, err := newHeapPage(f.Descriptor(), pageNo, f)
	if err != nil {
		return nil, err
	}
	if err := pg.initFromBuffer(bytes.NewBuffer(b)); err != nil {
		return nil, err
	}
	return pg, nil
}

// insertTuple searches for a page with a free slot, starting from the
// last page known to have one, and inserts t there. If none has room, it
// allocates and flushes a fresh empty page to the end of the file first.
// Returns every page the insertion touched; the buffer pool -- not this
// method -- is responsible for marking them dirty.
func (f *HeapFile) insertTuple(t *Tuple, tid TransactionID) ([]Page, error) {
	start := 0
	if f.lastEmptyPage != -1 {
		start = f.lastEmptyPage
	}

	for p := start; p < f.numPages; p++ {
		pg, err := f.bufPool.GetPage(f, p, tid, ReadPerm)
		if err != nil {
			return nil, err
		}
		if pg.(*heapPage).getNumEmptySlots() == 0 {
			continue
		}

		pg, err = f.bufPool.GetPage(f, p, tid, WritePerm)
		if err != nil {
			return nil, err
		}
		heapp := pg.(*heapPage)
		if _, err := heapp.insertTuple(t); err != nil {
			if err == ErrPageFull {
				continue
			}
			return nil, err
		}
		f.lastEmptyPage = p
		return []Page{heapp}, nil
	}

	// No free slots anywhere: allocate a new page at the end of the file.
	heapp, err := newHeapPage(f.td, f.numPages, f)
	if err != nil {
		return nil, err
	}
	if err := f.flushPage(heapp); err != nil {
		return nil, err
	}
	p := f.numPages
	f.numPages++
	f.lastEmptyPage = p

	pg, err := f.bufPool.GetPage(f, p, tid, WritePerm)
	if err != nil {
		return nil, err
	}
	heapp = pg.(*heapPage)
	if _, err := heapp.insertTuple(t); err != nil {
		return nil, err
	}
	return []Page{heapp}, nil
}

// deleteTuple removes the tuple named by t.Rid, returning the page it
// dirtied. The caller (BufferPool.DeleteTuple) marks that page dirty.
func (f *HeapFile) deleteTuple(t *Tuple, tid TransactionID) (Page, error) {
	if t.Rid == nil {
		return nil, GoDBError{TupleNotFoundError, "provided tuple has nil rid, cannot delete"}
	}
	rid, ok := t.Rid.(heapFileRid)
	if !ok {
		return nil, GoDBError{TupleNotFoundError, "provided tuple is not a heap file tuple, based on rid"}
	}
	if rid.pageNo < 0 || rid.pageNo >= f.NumPages() {
		return nil, GoDBError{TupleNotFoundError, "provided tuple references a page that does not exist"}
	}

	pg, err := f.bufPool.GetPage(f, rid.pageNo, tid, WritePerm)
	if err != nil {
		return nil, err
	}
	hp, ok := pg.(*heapPage)
	if !ok {
		return nil, GoDBError{IncompatibleTypesError, "buffer pool returned non-heap page when heap page expected"}
	}
	if err := hp.deleteTuple(rid); err != nil {
		return nil, err
	}

	if rid.pageNo < f.lastEmptyPage || f.lastEmptyPage == -1 {
		f.lastEmptyPage = rid.pageNo
	}

	return hp, nil
}

// writePage forces p back to its offset in the backing file.
func (f *HeapFile) writePage(p Page) error {
	return f.flushPage(p)
}

func (f *HeapFile) flushPage(p Page) error {
	file, err := os.OpenFile(f.backingFile, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return err
	}
	defer file.Close()
	hp := p.(*heapPage)

	buf, err := hp.toBuffer()
	if err != nil {
		return err
	}
	_, err = file.WriteAt(buf.Bytes(), int64(hp.pageNo)*int64(PageSize))
	return err
}

// Descriptor returns the TupleDesc tuples in this file conform to.
func (f *HeapFile) Descriptor() *TupleDesc {
	return f.td
}

// Iterator returns a function yielding every tuple in the file in turn,
// nil when exhausted. Reads pages through the buffer pool so that locking
// and caching apply uniformly to scans.
func (f *HeapFile) Iterator(tid TransactionID) (func() (*Tuple, error), error) {
	nPages := f.NumPages()
	pgNo := 0
	var pgIter func() (*Tuple, error)
	return func() (*Tuple, error) {
		for {
			if pgIter == nil {
				if pgNo == nPages {
					return nil, nil
				}
				p, err := f.bufPool.GetPage(f, pgNo, tid, ReadPerm)
				if err != nil {
					return nil, err
				}
				pgIter = p.(*heapPage).tupleIter()
				pgNo++
			}
			next, err := pgIter()
			if err != nil {
				return nil, err
			}
			if next == nil {
				pgIter = nil
			} else {
				return &Tuple{*f.td, next.Fields, next.Rid}, nil
			}
		}
	}, nil
}

// pageKey returns the PageId for the pgNo'th page of this file.
func (f *HeapFile) pageKey(pgNo int) PageId {
	return PageId{TableID: int32(f.tableID), PageNo: int32(pgNo)}
}
