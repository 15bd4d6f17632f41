// Command resourceform inspects a DEFLATE stream or a tar (ustar/GNU
// long-name/PAX) container from the command line, in the dumpFS style of
// the repo this module grew out of.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/elliotnunn/resourceform/archive"
	"github.com/elliotnunn/resourceform/tar"
)

func main() {
	glob := flag.String("glob", "", "only list entries matching this doublestar glob pattern")
	raw := flag.Bool("raw", false, "treat the input as a raw DEFLATE stream and write decompressed bytes to stdout")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: resourceform [-glob pattern] [-raw] <file>")
		os.Exit(2)
	}

	data, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		log.Fatalf("resourceform: %v", err)
	}

	if *raw {
		out, err := archive.Decompress(data)
		if err != nil {
			log.Fatalf("resourceform: %v", err)
		}
		os.Stdout.Write(out)
		return
	}

	container, err := archive.OpenContainer(data)
	if err != nil {
		log.Fatalf("resourceform: %v", err)
	}

	var entries []tar.EntryInfo
	if *glob != "" {
		entries, err = archive.WalkGlob(container.Payload, *glob)
	} else {
		entries, err = archive.Walk(container.Payload)
	}
	if err != nil {
		log.Fatalf("resourceform: %v", err)
	}

	dumpEntries(entries)
}

func dumpEntries(entries []tar.EntryInfo) {
	const tfmt = "2006-01-02T15:04:05"
	for _, e := range entries {
		fmt.Printf("%#v\n", e.Name)
		fmt.Printf("    size=%d mode=%#o mtime=%s type=%c\n",
			e.Size, e.Mode, time.Unix(e.Mtime, 0).UTC().Format(tfmt), e.TypeFlag)
	}
}
