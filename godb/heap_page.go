package godb

import (
	"bytes"
	"encoding/binary"
)

/*
heapPage implements the Page interface for pages of a HeapFile. All tuples
on a heap page are fixed length, so given a TupleDesc it's possible to work
out how many tuple "slots" fit: each page begins with a header of two int32s
(slot count, used-slot count) followed by that many fixed-width tuple slots,
padded to PageSize.
*/
type heapPage struct {
	desc        TupleDesc
	numSlots    int32
	numUsed     int32
	dirtier     TransactionID
	isDirtyFlag bool
	beforeImage *heapPage
	tuples      []*Tuple
	pageNo      int
	file        *HeapFile
}

// newHeapPage constructs an empty heap page with as many slots as fit in
// PageSize given desc's per-tuple width.
func newHeapPage(desc *TupleDesc, pageNo int, f *HeapFile) (*heapPage, error) {
	var pg heapPage
	pg.desc = *desc
	pg.numSlots = int32((PageSize - 8) / desc.bytesPerTuple())
	pg.numUsed = 0
	pg.tuples = make([]*Tuple, pg.numSlots)
	pg.pageNo = pageNo
	pg.file = f
	pg.setBeforeImage()
	return &pg, nil
}

func (h *heapPage) getNumEmptySlots() int {
	return int(h.numSlots - h.numUsed)
}

func (h *heapPage) getNumSlots() int {
	return int(h.numSlots)
}

func (h *heapPage) PageNo() int {
	return h.pageNo
}

var ErrPageFull = GoDBError{PageFullError, "page is full"}

// insertTuple places t into a free slot on the page, setting t's Rid, or
// returns ErrPageFull if there are none.
func (h *heapPage) insertTuple(t *Tuple) (recordID, error) {
	for i := 0; i < int(h.numSlots); i++ {
		if h.tuples[i] == nil {
			h.tuples[i] = t
			h.numUsed++
			t.Rid = heapFileRid{table: h.file.ID(), pageNo: h.pageNo, slotNo: i}
			return t.Rid, nil
		}
	}
	return nil, ErrPageFull
}

// deleteTuple removes the tuple at rid's slot, or returns an error if the
// rid does not refer to a live tuple on this page.
func (h *heapPage) deleteTuple(rid recordID) error {
	heapRid, ok := rid.(heapFileRid)
	if !ok {
		return GoDBError{TupleNotFoundError, "supplied rid is not a heapFileRid"}
	}
	slot := heapRid.slotNo
	if slot < 0 || slot >= int(h.numSlots) {
		return GoDBError{TupleNotFoundError, "slot does not exist on delete"}
	}
	if h.tuples[slot] == nil {
		return GoDBError{TupleNotFoundError, "element already deleted"}
	}
	h.numUsed--
	h.tuples[slot] = nil
	return nil
}

func (h *heapPage) getID() PageId {
	return h.file.pageKey(h.pageNo)
}

// isDirty reports whether the page carries uncommitted modifications and,
// if so, names the transaction that made them.
func (h *heapPage) isDirty() (bool, TransactionID) {
	return h.isDirtyFlag, h.dirtier
}

// setDirty marks or clears the page's dirty bit. The first time a clean
// page transitions to dirty, its before-image is captured for WAL.
func (h *heapPage) setDirty(tid TransactionID, dirty bool) {
	if dirty && !h.isDirtyFlag {
		h.setBeforeImage()
	}
	h.isDirtyFlag = dirty
	if dirty {
		h.dirtier = tid
	} else {
		h.dirtier = 0
	}
}

func (p *heapPage) getFile() DBFile {
	return p.file
}

// getBeforeImage returns the page's content as of the start of its current
// dirtying transaction's modifications.
func (h *heapPage) getBeforeImage() Page {
	return h.beforeImage
}

// setBeforeImage snapshots the page's current content as its new
// before-image, by round-tripping it through toBuffer/initFromBuffer.
func (h *heapPage) setBeforeImage() {
	buf, err := h.toBuffer()
	if err != nil {
		return
	}
	snap := &heapPage{desc: h.desc, pageNo: h.pageNo, file: h.file}
	if err := snap.initFromBuffer(bytes.NewBuffer(buf.Bytes())); err != nil {
		return
	}
	h.beforeImage = snap
}

// toBuffer serializes the page's header and tuples, padded to PageSize.
func (h *heapPage) toBuffer() (*bytes.Buffer, error) {
	b := new(bytes.Buffer)

	if err := binary.Write(b, binary.LittleEndian, h.numSlots); err != nil {
		return nil, err
	}
	if err := binary.Write(b, binary.LittleEndian, h.numUsed); err != nil {
		return nil, err
	}

	for i := 0; i < len(h.tuples); i++ {
		t := h.tuples[i]
		if t != nil {
			if err := t.writeTo(b); err != nil {
				return nil, err
			}
		}
	}
	if b.Len() > PageSize {
		return nil, GoDBError{MalformedDataError, "buffer is greater than page size"}
	}
	b.Write(make([]byte, PageSize-b.Len()))

	return b, nil
}

// initFromBuffer populates the page's header and tuples from buf, as
// written by toBuffer.
func (h *heapPage) initFromBuffer(buf *bytes.Buffer) error {
	var numSlotsHeader, numUsedHeader int32
	if err := binary.Read(buf, binary.LittleEndian, &numSlotsHeader); err != nil {
		return err
	}
	if err := binary.Read(buf, binary.LittleEndian, &numUsedHeader); err != nil {
		return err
	}
	tups := make([]*Tuple, numSlotsHeader)
	for i := 0; i < int(numUsedHeader); i++ {
		t, err := readTupleFrom(buf, &h.desc)
		if err != nil {
			return err
		}
		t.Rid = heapFileRid{table: h.file.ID(), pageNo: h.pageNo, slotNo: i}
		tups[i] = t
	}
	h.numSlots = numSlotsHeader
	h.numUsed = numUsedHeader
	h.isDirtyFlag = false
	h.tuples = tups
	return nil
}

// tupleIter returns a function yielding each live tuple on the page in
// slot order, nil when exhausted.
func (p *heapPage) tupleIter() func() (*Tuple, error) {
	i := 0
	return func() (*Tuple, error) {
		for {
			if i >= len(p.tuples) {
				return nil, nil
			}
			t := p.tuples[i]
			i++
			if t != nil {
				return t, nil
			}
		}
	}
}
