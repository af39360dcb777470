// Copyright 2017, Kerby Shedden and the Muscato contributors.

// Command pgmatch is the pseudogenome-vs-pseudogenome matcher CLI: it
// finds long exact substrings shared between a source and a destination
// pseudogenome and rewrites the destination into literal runs plus
// copy-from-source directives, generalizing
// SimplePgMatcher::matchPgInPgFiles.
//
// Usage:
//
//	pgmatch [flags] srcPgPrefix destPgPrefix minMatchLength
//
// When srcPgPrefix == destPgPrefix, matching runs against the same
// pseudogenome and same-text collision resolution is applied.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/pkg/profile"

	"github.com/kshedden/pgmatcher/internal/pgselfmatch"
)

func main() {
	var (
		revCompl   = flag.Bool("r", false, "also match against the reverse complement of the destination pseudogenome")
		cpuProfile = flag.Bool("cpuprofile", false, "enable CPU profiling for this run")
	)
	flag.Parse()

	if *cpuProfile {
		defer profile.Start(profile.CPUProfile).Stop()
	}

	args := flag.Args()
	if len(args) != 3 {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] srcPgPrefix destPgPrefix minMatchLength\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}
	srcPrefix, destPrefix := args[0], args[1]
	minMatchLength, err := strconv.Atoi(args[2])
	if err != nil || minMatchLength <= 0 {
		fmt.Fprintf(os.Stderr, "%s: minMatchLength must be a positive integer\n", os.Args[0])
		os.Exit(1)
	}

	srcPg, err := os.ReadFile(srcPrefix + ".pg")
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[0], err)
		os.Exit(1)
	}

	sameText := srcPrefix == destPrefix
	var destPg []byte
	if sameText {
		destPg = srcPg
	} else {
		destPg, err = os.ReadFile(destPrefix + ".pg")
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[0], err)
			os.Exit(1)
		}
	}

	matches := pgselfmatch.ExactMatchPg(srcPg, destPg, minMatchLength, *revCompl)
	if sameText {
		pgselfmatch.ResolveSameTextCollisions(matches, *revCompl)
	}

	if err := writeRewrite(destPrefix, destPg, srcPg, matches, minMatchLength, *revCompl); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[0], err)
		os.Exit(1)
	}
}

func writeRewrite(destPrefix string, destPg, srcPg []byte, matches []pgselfmatch.TextMatch, minMatchLength int, revCompl bool) error {
	pgFid, err := os.Create(destPrefix + ".pg.temp")
	if err != nil {
		return err
	}
	defer pgFid.Close()
	pgW := bufio.NewWriter(pgFid)

	offFid, err := os.Create(destPrefix + "_map_off.pg.temp")
	if err != nil {
		return err
	}
	defer offFid.Close()
	offW := bufio.NewWriter(offFid)

	lenFid, err := os.Create(destPrefix + "_map_len.pg.temp")
	if err != nil {
		return err
	}
	defer lenFid.Close()
	lenW := bufio.NewWriter(lenFid)

	stats, err := pgselfmatch.Rewrite(pgW, offW, lenW, destPg, srcPg, matches, minMatchLength, revCompl)
	if err != nil {
		return err
	}
	for _, w := range []*bufio.Writer{pgW, offW, lenW} {
		if err := w.Flush(); err != nil {
			return err
		}
	}
	for _, f := range []*os.File{pgFid, offFid, lenFid} {
		if err := f.Close(); err != nil {
			return err
		}
	}
	for _, suffix := range []string{".pg", "_map_off.pg", "_map_len.pg"} {
		if err := os.Rename(destPrefix+suffix+".temp", destPrefix+suffix); err != nil {
			return err
		}
	}

	fmt.Printf("Final size of Pg: %d (removed: %d; %d chars in overlapped dest symbol)\n",
		int64(len(destPg))-stats.TotalMatched, stats.TotalMatched, stats.TotalOverlap)
	return nil
}
