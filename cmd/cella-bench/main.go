// Command cella-bench benchmarks the accumulator engines against a synthetic
// chain workload: blocks of transactions that create new cells and consume
// old ones, with periodic proof sampling to check the engine end to end.
package main

import (
	"flag"
	"log"
	"time"

	"github.com/Bren2010/cella/db"
)

var (
	configFile = flag.String("config", "", "Location of config file.")
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile | log.LUTC)
	flag.Parse()

	// Load config from disk.
	if *configFile == "" {
		log.Fatalf("No config file provided, see --help.")
	}
	config, err := ReadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config file: %v", err)
	}

	// Connect to the database.
	var ldb *db.LDB
	if config.DatabaseFile == "" {
		ldb, err = db.OpenMem()
	} else {
		ldb, err = db.Open(config.DatabaseFile)
	}
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer ldb.Close()

	if config.MetricsAddr != "" {
		go metrics(config.MetricsAddr)
	}

	w, err := newWorkload(config, ldb)
	if err != nil {
		log.Fatalf("Failed to initialize workload: %v", err)
	}

	log.Printf("Running %d blocks against the %s engine.", config.Blocks, config.Engine)
	start := time.Now()
	if err := w.run(); err != nil {
		log.Fatalf("Workload failed: %v", err)
	}
	elapsed := time.Since(start)

	log.Printf("Done: %d blocks, %d cells minted, %d still live, %v elapsed (%v/block).",
		config.Blocks, w.txCounter*uint64(config.OutputsPerTx), len(w.live),
		elapsed, elapsed/time.Duration(config.Blocks))
}
