package godb

// PageSize is the fixed size, in bytes, of every page GoDB reads or writes.
// Header inclusive.
const PageSize = 4096

// DefaultPages is the buffer pool capacity used when none is configured.
const DefaultPages = 50

// StringLength is the fixed on-disk width of a StringField, in bytes.
const StringLength = 32
