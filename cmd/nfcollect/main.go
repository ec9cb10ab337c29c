// Command nfcollect ingests firewall log events from the kernel's
// netfilter NFLOG facility and commits them into an embedded SQLite store
// (spec.md §6).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/yunchih/nfcollect"
	"github.com/yunchih/nfcollect/internal/humansize"
	"github.com/yunchih/nfcollect/internal/logging"
)

const version = "1.0.0"

func main() {
	var (
		group       = flag.Uint("g", 0, "NFLOG group to bind (alias: --nflog_group)")
		groupLong   = flag.Uint("nflog_group", 0, "NFLOG group to bind")
		storage     = flag.String("d", "", "path to the SQLite storage file (alias: --storage)")
		storageLong = flag.String("storage", "", "path to the SQLite storage file")
		sizeStr     = flag.String("s", "", "storage budget, e.g. 64M, 1G (alias: --storage_size)")
		sizeLong    = flag.String("storage_size", "", "storage budget, e.g. 64M, 1G")
		compression = flag.String("c", "", "compression algorithm: lz4, zstd or zstandard; uncompressed when omitted (alias: --compression)")
		compLong    = flag.String("compression", "", "compression algorithm: lz4, zstd or zstandard; uncompressed when omitted")
		vacuum      = flag.Bool("V", false, "VACUUM the store on startup (alias: --vacuum)")
		vacuumLong  = flag.Bool("vacuum", false, "VACUUM the store on startup")
		showVersion = flag.Bool("v", false, "print version and exit")
	)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "nfcollect %s - capture firewall log events into a local store\n\n", version)
		fmt.Fprintf(os.Stderr, "Usage: %s -d /var/lib/nfcollect/store.db -g 0 [options]\n\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Println("nfcollect", version)
		return
	}

	logger := logging.NewLogger(logging.DefaultConfig())
	logging.SetDefault(logger)

	storagePath := firstNonEmpty(*storage, *storageLong)
	if storagePath == "" {
		fmt.Fprintln(os.Stderr, "error: -d/--storage is required")
		flag.Usage()
		os.Exit(2)
	}

	sizeBytes, err := humansize.Parse(firstNonEmpty(*sizeStr, *sizeLong))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}

	compressionType, err := nfcollect.ParseCompressionType(firstNonEmpty(*compression, *compLong))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}

	opts := nfcollect.Options{
		NFLOGGroup:  uint16(firstNonZero(*group, *groupLong)),
		StoragePath: storagePath,
		StorageSize: sizeBytes,
		Compression: compressionType,
		Vacuum:      *vacuum || *vacuumLong,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	collector, err := nfcollect.New(ctx, opts)
	if err != nil {
		logger.Error("failed to start collector", "err", err)
		os.Exit(1)
	}
	defer collector.Close()

	logger.Info("nfcollect starting",
		"storage", storagePath,
		"storage_size", humansize.Format(sizeBytes),
		"nflog_group", opts.NFLOGGroup,
		"compression", firstNonEmpty(*compression, *compLong))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	if err := collector.Run(ctx); err != nil {
		logger.Error("collector exited with error", "err", err)
		os.Exit(1)
	}
	logger.Info("nfcollect stopped")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstNonZero(values ...uint) uint {
	for _, v := range values {
		if v != 0 {
			return v
		}
	}
	return 0
}
