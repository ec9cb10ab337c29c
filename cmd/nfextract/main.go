// Command nfextract queries a store written by nfcollect and prints the
// matching entries (spec.md §6).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/yunchih/nfcollect"
)

const version = "1.0.0"

func main() {
	var (
		storageFile     = flag.String("d", "", "path to the SQLite storage file (alias: --storage_file)")
		storageFileLong = flag.String("storage_file", "", "path to the SQLite storage file")
		since           = flag.String("s", "", "start of the range, YYYY-MM-DD[ HH:MM[:SS]] (alias: --since)")
		sinceLong       = flag.String("since", "", "start of the range, YYYY-MM-DD[ HH:MM[:SS]]")
		until           = flag.String("u", "", "end of the range, YYYY-MM-DD[ HH:MM[:SS]] (alias: --until)")
		untilLong       = flag.String("until", "", "end of the range, YYYY-MM-DD[ HH:MM[:SS]]")
		showVersion     = flag.Bool("v", false, "print version and exit")
	)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "nfextract %s - query entries out of an nfcollect store\n\n", version)
		fmt.Fprintf(os.Stderr, "Usage: %s -d /var/lib/nfcollect/store.db [-s SINCE] [-u UNTIL]\n\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Println("nfextract", version)
		return
	}

	path := firstNonEmpty(*storageFile, *storageFileLong)
	if path == "" {
		fmt.Fprintln(os.Stderr, "error: -d/--storage_file is required")
		flag.Usage()
		os.Exit(2)
	}

	from, err := parseTimeFlag(firstNonEmpty(*since, *sinceLong), 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: invalid --since: %v\n", err)
		os.Exit(2)
	}
	until64, err := parseTimeFlag(firstNonEmpty(*until, *untilLong), time.Now().Unix())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: invalid --until: %v\n", err)
		os.Exit(2)
	}

	tr := nfcollect.Timerange{From: from, Until: until64}
	lastStamp := ""
	err = nfcollect.Extract(context.Background(), path, tr, 0, func(e nfcollect.Entry) error {
		stamp := time.Unix(e.Timestamp, 0).Format("2006-01-02 15:04:05")
		if stamp == lastStamp {
			stamp = ""
		} else {
			lastStamp = stamp
		}
		fmt.Printf("  %-18s:\tdaddr=%-16s\tproto=%s\tuid=%d\tsport=%d\tdport=%d\n",
			stamp, e.DaddrString(), e.Protocol, e.UID, e.Sport, e.Dport)
		return nil
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// dateFormats are tried in order against --since/--until, per spec.md §6.
var dateFormats = []string{
	"2006-01-02",
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
}

// parseTimeFlag accepts a date in one of dateFormats, or an empty string
// (returning def).
func parseTimeFlag(s string, def int64) (int64, error) {
	if s == "" {
		return def, nil
	}
	var firstErr error
	for _, layout := range dateFormats {
		t, err := time.ParseInLocation(layout, s, time.Local)
		if err == nil {
			return t.Unix(), nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return 0, firstErr
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
