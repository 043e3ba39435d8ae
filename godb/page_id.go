package godb

import (
	"bytes"
	"encoding/binary"
)

// PageId identifies a page by the table it belongs to and its offset within
// that table's file. It is the key used throughout the buffer pool and lock
// manager caches, so equality and hashing are both value-based over both
// fields (it is a plain struct of comparable fields, so Go's built-in
// comparison and its use as a map key already give us that for free).
type PageId struct {
	TableID int32
	PageNo  int32
}

// Hash returns a well-distributed, deterministic hash of the PageId. The
// constant matches the source specification: a prime near 2^20, which only
// needs to be coprime with common table-id and page-count magnitudes.
func (p PageId) Hash() int64 {
	return int64(p.TableID)*1048573 + int64(p.PageNo) + 31
}

// Encode serializes the PageId as two little-endian int32s.
func (p PageId) Encode() []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, p.TableID)
	binary.Write(buf, binary.LittleEndian, p.PageNo)
	return buf.Bytes()
}

// DecodePageId reconstructs a PageId from the bytes written by Encode.
func DecodePageId(data []byte) (PageId, error) {
	if len(data) < 8 {
		return PageId{}, GoDBError{MalformedDataError, "page id buffer too short"}
	}
	buf := bytes.NewReader(data)
	var pid PageId
	if err := binary.Read(buf, binary.LittleEndian, &pid.TableID); err != nil {
		return PageId{}, err
	}
	if err := binary.Read(buf, binary.LittleEndian, &pid.PageNo); err != nil {
		return PageId{}, err
	}
	return pid, nil
}
