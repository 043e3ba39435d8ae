// Command pagepool is a minimal SQL front end over the godb storage engine:
// a buffer pool with page-granularity locking and write-ahead-logged
// recovery. It exists to exercise the engine end to end, not as a complete
// SQL implementation.
package main

import (
	"flag"
	"log"
	"os"
	"path/filepath"

	"github.com/tikkisean/pagepool/godb"
)

func main() {
	dataDir := flag.String("data", "pagepool-data", "directory holding table files and the write-ahead log")
	poolSize := flag.Int("pages", godb.DefaultPages, "buffer pool capacity, in pages")
	flag.Parse()

	if err := os.MkdirAll(*dataDir, 0755); err != nil {
		log.Fatalf("creating data directory: %v", err)
	}

	catalog := godb.NewCatalog()
	bp, err := godb.NewBufferPool(*poolSize, catalog)
	if err != nil {
		log.Fatalf("creating buffer pool: %v", err)
	}

	logFile, err := godb.NewLogFile(filepath.Join(*dataDir, "wal.log"), bp, catalog)
	if err != nil {
		log.Fatalf("opening write-ahead log: %v", err)
	}
	if err := bp.Recover(logFile); err != nil {
		log.Fatalf("recovering from write-ahead log: %v", err)
	}

	repl := NewRepl(*dataDir, catalog, bp)
	if err := repl.Run(); err != nil {
		log.Fatal(err)
	}
}
