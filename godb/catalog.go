package godb

import "sync"

// Catalog maps table identifiers to the DBFile that backs them and to the
// table names used by the SQL front end. The source treats this as a
// process-wide singleton; here it is an explicit value constructed once at
// startup and passed into BufferPool, LogFile, and the query planner.
type Catalog struct {
	mu        sync.RWMutex
	files     map[int]DBFile
	byName    map[string]int
	nextID    int
}

// NewCatalog returns an empty Catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		files:  make(map[int]DBFile),
		byName: make(map[string]int),
		nextID: 0,
	}
}

// tableIdentified is implemented by DBFiles that need to learn the table
// identifier the catalog assigned them, so their PageIds and recordIDs can
// carry it. HeapFile is the only implementation.
type tableIdentified interface {
	SetID(id int)
}

// AddTable registers file under name, assigning it the next table
// identifier. If file implements SetID, it is told its new identifier.
// Returns the assigned identifier.
func (c *Catalog) AddTable(name string, file DBFile) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID
	c.nextID++
	c.files[id] = file
	c.byName[name] = id
	if ti, ok := file.(tableIdentified); ok {
		ti.SetID(id)
	}
	return id
}

// GetDBFile returns the DBFile registered under tableID.
func (c *Catalog) GetDBFile(tableID int) (DBFile, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	f, ok := c.files[tableID]
	if !ok {
		return nil, GoDBError{NoSuchTableError, "no table with that id"}
	}
	return f, nil
}

// GetDBFileByName resolves a table name to its DBFile.
func (c *Catalog) GetDBFileByName(name string) (DBFile, error) {
	c.mu.RLock()
	id, ok := c.byName[name]
	c.mu.RUnlock()
	if !ok {
		return nil, GoDBError{NoSuchTableError, "no table named " + name}
	}
	return c.GetDBFile(id)
}

// TableNames returns every registered table name.
func (c *Catalog) TableNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.byName))
	for name := range c.byName {
		names = append(names, name)
	}
	return names
}
