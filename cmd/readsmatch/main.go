// Copyright 2017, Kerby Shedden and the Muscato contributors.

// Command readsmatch is the reads-matcher CLI: it maps a set of
// fixed-length reads against a pseudogenome and writes the
// separated-pseudogenome reads-list bundle under destPgFilePrefix.
//
// Usage:
//
//	readsmatch [flags] readsSrcFile pgFilePrefix outputDivisionFile destPgFilePrefix
//
// Reading a division file and a paired-reads file (the legacy 5-argument
// form) is accepted on the command line for compatibility with the
// reference tool's arity table, but FASTQ/division parsing is an
// out-of-scope external collaborator; readsSrcFile here is a plain
// newline-delimited list of fixed-length reads.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path"

	"github.com/google/uuid"
	"github.com/pkg/profile"

	"github.com/kshedden/pgmatcher/internal/codec"
	"github.com/kshedden/pgmatcher/internal/config"
	"github.com/kshedden/pgmatcher/internal/dna"
	"github.com/kshedden/pgmatcher/internal/hashmatch"
	"github.com/kshedden/pgmatcher/internal/readslist"
	"github.com/kshedden/pgmatcher/internal/readsmatcher"
)

func main() {
	var (
		targetMismatches = flag.Int("m", 0, "target max mismatches")
		maxMismatches    = flag.Int("M", 0, "allowed max mismatches (raised to -m if lower)")
		minMismatches    = flag.Int("n", 0, "expected min mismatches (early exit threshold)")
		prefixLen        = flag.Int("p", 0, "match prefix length; 0 means match the full read")
		revCompl         = flag.Bool("r", false, "also match reverse complement of Pg")
		_                = flag.Bool("c", false, "use complement of reads division")
		_                = flag.String("d", "", "reads division file")
		plainText        = flag.Bool("t", false, "plain-text numeric write mode (recorded in the config; columns are still written as binary)")
		verbose          = flag.Bool("i", false, "verbose matching info")
		absolutePos      = flag.Bool("a", false, "absolute read positions (vs offsets)")
		reverseOff       = flag.Bool("e", false, "mismatches as reverse offsets")
		maxReadLength    = flag.Int("L", 0, "truncate reads longer than this many bytes; 0 disables truncation")
		cpuProfile       = flag.Bool("cpuprofile", false, "enable CPU profiling for this run")
		compress         = flag.Bool("z", false, "write reads-list columns through the compression driver instead of as raw files")
		compressTag      = flag.Int("Z", int(codec.TagSnappy), "compression codec tag used by -z (0=snappy,1=lzma,2=lzma2,3=ppmd7)")
		mismatchDests    = flag.Int("zd", 0, "mismatch-offsets bucket limit used by -z; 0 keeps the config default")
	)
	flag.Parse()

	if *cpuProfile {
		defer profile.Start(profile.CPUProfile).Stop()
	}

	args := flag.Args()
	if len(args) != 4 && len(args) != 5 {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] readsSrcFile [pairSrcFile] pgFilePrefix outputDivisionFile destPgFilePrefix\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}
	readsSrcFile := args[0]
	pgFilePrefix := args[len(args)-3]
	destPgFilePrefix := args[len(args)-1]

	if *maxMismatches < *targetMismatches {
		fmt.Println("INFO: allowedMaxMismatches set to targetMaxMismatches.")
		*maxMismatches = *targetMismatches
	}

	reads, readLen, err := loadReads(readsSrcFile, *maxReadLength)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[0], err)
		os.Exit(1)
	}

	cfg := config.Default()
	cfg.ReadLength = readLen
	cfg.MinMismatches = *minMismatches
	cfg.MaxMismatches = *maxMismatches
	cfg.AllowedMaxMismatches = *maxMismatches
	cfg.RevComplPg = *revCompl
	if *prefixLen > 0 {
		cfg.MatchPrefixLength = *prefixLen
	}
	cfg.Write = config.WriteOptions{
		AbsolutePositions:       *absolutePos,
		ReverseOffsetMismatches: *reverseOff,
		PlainText:               *plainText,
		VerboseInfo:             *verbose,
	}
	if *mismatchDests > 0 {
		cfg.MismatchesCountDestsLimit = *mismatchDests
	}
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[0], err)
		os.Exit(1)
	}

	uid := uuid.New().String()
	if cfg.LogDir == "" {
		cfg.LogDir = "readsmatch_logs"
	}
	cfg.LogDir = path.Join(cfg.LogDir, uid)
	if err := os.MkdirAll(cfg.LogDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[0], err)
		os.Exit(1)
	}
	logFid, err := os.Create(path.Join(cfg.LogDir, "readsmatch.log"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[0], err)
		os.Exit(1)
	}
	defer logFid.Close()
	logger := log.New(logFid, "", log.Ltime)

	pgBytes, err := os.ReadFile(pgFilePrefix + ".pg")
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[0], err)
		os.Exit(1)
	}
	pg := dna.NewView(pgBytes)

	matchingLength := cfg.MatchingLength()
	k := uint8(cfg.MaxMismatches)

	var mr *readsmatcher.Matcher
	if k == 0 {
		exact := readsmatcher.ExactStrategy{}
		mr = readsmatcher.New(cfg, reads, exact, exact.WindowLen(matchingLength), hashmatch.Default, logger)
	} else {
		strat := readsmatcher.NewApproxStrategy(matchingLength, k, hashmatch.Interleaved)
		mr = readsmatcher.New(cfg, reads, strat, strat.WindowLen(), hashmatch.Interleaved, logger)
	}
	mr.Run(pg)

	var builder *readslist.Builder
	if *compress {
		builder = readslist.NewBufferedBuilder(cfg.Write)
	} else {
		builder, err = readslist.NewFileBuilder(destPgFilePrefix, cfg.Write)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[0], err)
			os.Exit(1)
		}
	}

	records := mr.Records()
	order := matchedOrderByPosition(records)
	for _, idx := range order {
		rec := records[idx]
		pgPart := pg.Forward()[rec.MatchPos : rec.MatchPos+uint64(matchingLength)]
		mismatches := readsmatcher.MismatchList(reads[idx], rec.IsRevComp, pgPart)
		if cfg.Write.ReverseOffsetMismatches {
			mismatches = readsmatcher.ReverseOffsets(mismatches, matchingLength)
		}
		entry := readslist.ReadEntry{
			Pos:        rec.MatchPos,
			OrigIndex:  idx,
			IsRevComp:  rec.IsRevComp,
			Mismatches: mismatches,
		}
		if err := builder.WriteReadEntry(entry); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[0], err)
			os.Exit(1)
		}
	}
	if *compress {
		if err := writeCompressedColumns(builder, destPgFilePrefix, cfg, codec.Tag(*compressTag)); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[0], err)
			os.Exit(1)
		}
	} else if err := builder.Build(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[0], err)
		os.Exit(1)
	}

	if builder.Count() != mr.MatchedReadsCount {
		fmt.Fprintf(os.Stderr, "%s: internal consistency error: wrote %d reads-list entries, matched %d reads\n",
			os.Args[0], builder.Count(), mr.MatchedReadsCount)
		os.Exit(1)
	}

	missedFid, err := os.Create(destPgFilePrefix + ".missed")
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[0], err)
		os.Exit(1)
	}
	defer missedFid.Close()
	if err := readsmatcher.WriteMissed(missedFid, reads, records); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[0], err)
		os.Exit(1)
	}

	if matchingLength < cfg.ReadLength {
		suffixFid, err := os.Create(destPgFilePrefix + ".suffix")
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[0], err)
			os.Exit(1)
		}
		defer suffixFid.Close()
		if err := readsmatcher.WriteSuffixes(suffixFid, reads, records, matchingLength); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[0], err)
			os.Exit(1)
		}
	}

	if cfg.Write.VerboseInfo {
		statsFid, err := os.Create(destPgFilePrefix + ".stats")
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[0], err)
			os.Exit(1)
		}
		defer statsFid.Close()
		if err := readsmatcher.WriteStats(statsFid, records); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[0], err)
			os.Exit(1)
		}
	}

	logger.Printf("done")
}

// writeCompressedColumns drives destPgFilePrefix's buffered columns through
// the compression driver, one ".z" file per enabled column. The
// mismatch-offsets column goes through the stratified transpose instead of
// a plain WriteColumn, using the mismatch-count column already held by b to
// find each read's row width.
func writeCompressedColumns(b *readslist.Builder, prefix string, cfg *config.Config, tag codec.Tag) error {
	plain := []readslist.Column{readslist.ColIdx, readslist.ColRC, readslist.ColMisCnt, readslist.ColMisSym}
	if cfg.Write.AbsolutePositions {
		plain = append(plain, readslist.ColPos)
	} else {
		plain = append(plain, readslist.ColOff)
	}
	for _, col := range plain {
		if err := writeCompressedColumn(prefix, col, b.Column(col), tag); err != nil {
			return err
		}
	}

	offsetsCol := readslist.ColMisPos
	if cfg.Write.ReverseOffsetMismatches {
		offsetsCol = readslist.ColMisRevOff
	}
	rows, err := codec.GroupMismatchOffsetRows(b.Column(offsetsCol), b.Column(readslist.ColMisCnt))
	if err != nil {
		return fmt.Errorf("group mismatch offsets: %w", err)
	}

	fid, err := os.Create(prefix + offsetsCol.Suffix() + ".z")
	if err != nil {
		return err
	}
	writeErr := codec.WriteMismatchOffsets(fid, rows, cfg.MismatchesCountDestsLimit, tag, 0)
	closeErr := fid.Close()
	if writeErr != nil {
		return writeErr
	}
	return closeErr
}

func writeCompressedColumn(prefix string, col readslist.Column, data []byte, tag codec.Tag) error {
	fid, err := os.Create(prefix + col.Suffix() + ".z")
	if err != nil {
		return err
	}
	writeErr := codec.WriteColumn(fid, data, tag, 0)
	closeErr := fid.Close()
	if writeErr != nil {
		return writeErr
	}
	return closeErr
}

// matchedOrderByPosition returns the indices of matched reads sorted by
// matchPos: the reads list is written in pseudogenome order.
func matchedOrderByPosition(records []readsmatcher.Record) []int {
	var order []int
	for i, r := range records {
		if r.Matched {
			order = append(order, i)
		}
	}
	for i := 1; i < len(order); i++ {
		for j := i; j > 0 && records[order[j-1]].MatchPos > records[order[j]].MatchPos; j-- {
			order[j-1], order[j] = order[j], order[j-1]
		}
	}
	return order
}

// loadReads reads one read per line from path, truncating any line longer
// than maxLen bytes (0 disables truncation), and returns the reads plus
// their common length. FASTQ parsing is out of scope; this is the
// plain-text stand-in the reads matcher actually consumes.
func loadReads(path string, maxLen int) ([][]byte, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open %s: %w", path, err)
	}

	var reads [][]byte
	start := 0
	for i := 0; i <= len(data); i++ {
		if i == len(data) || data[i] == '\n' {
			if i > start {
				line := make([]byte, i-start)
				copy(line, data[start:i])
				line = dna.Truncate(line, maxLen)
				dna.Normalize(line)
				reads = append(reads, line)
			}
			start = i + 1
		}
	}
	if len(reads) == 0 {
		return nil, 0, fmt.Errorf("%s: no reads found", path)
	}
	readLen := len(reads[0])
	for _, r := range reads {
		if len(r) != readLen {
			return nil, 0, fmt.Errorf("%s: reads must be fixed-length (expected %d, found %d)", path, readLen, len(r))
		}
	}
	return reads, readLen, nil
}
