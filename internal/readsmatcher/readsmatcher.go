// Copyright 2017, Kerby Shedden and the Muscato contributors.

// Package readsmatcher orchestrates registration of read-derived patterns,
// drives internal/hashmatch over a pseudogenome (and optionally its
// reverse complement), verifies each candidate hit, and maintains per-read
// best-match state.
//
// Exact and approximate matching share one Matcher type parameterized by a
// small strategy interface, generalizing the source's
// DefaultReadsMatcher/DefaultReadsExactMatcher/DefaultReadsApproxMatcher/
// InterleavedReadsApproxMatcher inheritance hierarchy into one record plus a
// swappable strategy value.
package readsmatcher

import (
	"fmt"
	"io"
	"log"

	"github.com/kshedden/pgmatcher/internal/config"
	"github.com/kshedden/pgmatcher/internal/dna"
	"github.com/kshedden/pgmatcher/internal/hashmatch"
)

// noMismatches is the sentinel VerifyHit returns when the mismatch count
// exceeds its bound. An unmatched Record is marked by Matched == false;
// its Mismatches field stays zero.
const noMismatches = 0xFF

// Record is the per-read match state: matchPos, isRevComp, and the best
// mismatch count found so far.
type Record struct {
	Matched    bool
	MatchPos   uint64
	IsRevComp  bool
	Mismatches uint8
}

// Mismatch is one (offset, substituted base) pair in a read's mismatch
// list, emitted by MismatchList.
type Mismatch struct {
	Offset int
	Base   byte
}

// Strategy supplies the three operations that vary between exact and
// approximate matching: registering patterns, verifying a candidate hit,
// and resolving the candidate alignment position a raw pattern id refers
// to.
type Strategy interface {
	// RegisterPatterns feeds every pattern derived from reads into hm.
	RegisterPatterns(hm *hashmatch.Matcher, reads [][]byte, matchingLength int, cfg *config.Config)

	// ResolveAlignment decodes a raw pattern id and hash-matcher text
	// position into a read index and a candidate alignment start. ok is
	// false when the candidate is out of bounds and must be discarded.
	ResolveAlignment(patID uint32, textPos uint64, matchingLength int, textLen int) (readIdx int, alignPos uint64, ok bool)

	// VerifyHit counts mismatches between the read at readIdx and
	// text[alignPos:alignPos+matchingLength], bounded by bound (the
	// current best for this read, or maxMismatches+1 when unmatched).
	// A return of noMismatches signals the bound was exceeded.
	VerifyHit(read []byte, text []byte, alignPos uint64, matchingLength int, bound uint8) uint8
}

// Matcher drives Strategy over a set of reads and a pseudogenome, holding
// the shared best-match table and match/multi-match/false-match counters.
type Matcher struct {
	cfg            *config.Config
	reads          [][]byte
	matchingLength int
	strategy       Strategy
	windowLen      int
	variant        hashmatch.Variant
	logger         *log.Logger

	records []Record

	MatchedReadsCount int
	MultiMatchCount   int
	FalseMatchCount   int
}

// New constructs a Matcher for reads under cfg, driven by strategy with a
// hashmatch window of windowLen using variant.
func New(cfg *config.Config, reads [][]byte, strategy Strategy, windowLen int, variant hashmatch.Variant, logger *log.Logger) *Matcher {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Matcher{
		cfg:            cfg,
		reads:          reads,
		matchingLength: cfg.MatchingLength(),
		strategy:       strategy,
		windowLen:      windowLen,
		variant:        variant,
		logger:         logger,
		records:        make([]Record, len(reads)),
	}
}

// Records returns the per-read match state, indexed by read index.
func (m *Matcher) Records() []Record { return m.records }

// Run scans pg's forward strand, and its reverse-complement view when
// cfg.RevComplPg is set, updating m.records in place: forward is scanned
// first, and a reverse-view hit only replaces an existing match when it is
// strictly better.
func (m *Matcher) Run(pg *dna.View) {
	m.logger.Printf("Feeding patterns...")
	m.scanStrand(pg.Forward(), false)

	if m.cfg.RevComplPg {
		m.logger.Printf("Matching reverse complement...")
		rev := pg.Reverse()
		m.scanStrand(rev, true)
		pg.DropReverse()
	}
	m.logger.Printf("Matched %d reads (%d multi-matches, %d false matches)",
		m.MatchedReadsCount, m.MultiMatchCount, m.FalseMatchCount)
}

func (m *Matcher) scanStrand(text []byte, isRevComp bool) {
	hm := hashmatch.New(m.windowLen, m.variant)
	m.strategy.RegisterPatterns(hm, m.reads, m.matchingLength, m.cfg)
	hm.IterateOver(text)

	for hm.MoveNext() {
		patID := hm.PatternIndex()
		textPos := hm.TextPosition()

		readIdx, alignPos, ok := m.strategy.ResolveAlignment(patID, textPos, m.matchingLength, len(text))
		if !ok {
			continue
		}

		rec := &m.records[readIdx]
		if m.cfg.MinMismatches > 0 && rec.Matched && rec.Mismatches <= uint8(m.cfg.MinMismatches) {
			continue // early exit: already good enough
		}

		fwdPos := alignPos
		if isRevComp {
			fwdPos = dna.FwdPosFromRev(alignPos, uint64(len(text)), uint64(m.matchingLength))
		}
		if rec.Matched && rec.MatchPos == fwdPos && rec.IsRevComp == isRevComp {
			continue // duplicate seed for an already-recorded alignment
		}

		bound := uint8(m.cfg.MaxMismatches) + 1
		if rec.Matched {
			bound = rec.Mismatches
		}
		mismatches := m.strategy.VerifyHit(m.reads[readIdx], text, alignPos, m.matchingLength, bound)

		m.apply(rec, mismatches, fwdPos, isRevComp)
	}
}

// apply classifies a verified candidate and updates rec: a strictly lower
// mismatch count replaces the recorded match, an equal count does not and
// is counted as a multi-match instead.
func (m *Matcher) apply(rec *Record, mismatches uint8, pos uint64, isRevComp bool) {
	if mismatches == noMismatches || mismatches > uint8(m.cfg.MaxMismatches) {
		m.FalseMatchCount++
		return
	}

	if !rec.Matched {
		rec.Matched = true
		rec.MatchPos = pos
		rec.IsRevComp = isRevComp
		rec.Mismatches = mismatches
		m.MatchedReadsCount++
		return
	}

	if mismatches < rec.Mismatches {
		rec.MatchPos = pos
		rec.IsRevComp = isRevComp
		rec.Mismatches = mismatches
	} else {
		m.MultiMatchCount++
	}
}

// MismatchList compares read (reverse-complemented iff isRevComp) against
// pgPart, the matchingLength-byte window at the read's recorded match
// position, and returns the ordered (offset, substituted base) pairs
// describing every differing position.
func MismatchList(read []byte, isRevComp bool, pgPart []byte) []Mismatch {
	r := read
	if isRevComp {
		r = dna.ReverseComplement(read)
	}
	var out []Mismatch
	for i := 0; i < len(pgPart) && i < len(r); i++ {
		if r[i] != pgPart[i] {
			out = append(out, Mismatch{Offset: i, Base: r[i]})
		}
	}
	return out
}

// ReverseOffsets converts a forward-offset mismatch list into reverse
// offsets from the end of the read, for the
// WriteOptions.ReverseOffsetMismatches output representation.
func ReverseOffsets(list []Mismatch, matchingLength int) []Mismatch {
	out := make([]Mismatch, len(list))
	for i, mm := range list {
		out[i] = Mismatch{Offset: matchingLength - 1 - mm.Offset, Base: mm.Base}
	}
	return out
}

// WriteMissed writes every unmatched read verbatim to w, one per line, in
// read-index order, generalizing muscato's writeNonMatch.
func WriteMissed(w io.Writer, reads [][]byte, records []Record) error {
	for i, r := range reads {
		if records[i].Matched {
			continue
		}
		if _, err := fmt.Fprintf(w, "%s\n", r); err != nil {
			return err
		}
	}
	return nil
}

// WriteSuffixes appends read[matchingLength:] to w for every matched read,
// in matched-read order.
func WriteSuffixes(w io.Writer, reads [][]byte, records []Record, matchingLength int) error {
	for i, rec := range records {
		if !rec.Matched || matchingLength >= len(reads[i]) {
			continue
		}
		if _, err := w.Write(reads[i][matchingLength:]); err != nil {
			return err
		}
		if _, err := w.Write([]byte("\n")); err != nil {
			return err
		}
	}
	return nil
}

// WriteStats writes one line per read: matched/unmatched, strand,
// mismatch count, generalizing muscato's readStats.
func WriteStats(w io.Writer, records []Record) error {
	for i, rec := range records {
		if !rec.Matched {
			if _, err := fmt.Fprintf(w, "%d\tunmatched\n", i); err != nil {
				return err
			}
			continue
		}
		strand := "fwd"
		if rec.IsRevComp {
			strand = "rev"
		}
		if _, err := fmt.Fprintf(w, "%d\tmatched\t%d\t%s\t%d\n", i, rec.MatchPos, strand, rec.Mismatches); err != nil {
			return err
		}
	}
	return nil
}
