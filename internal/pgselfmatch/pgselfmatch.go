// Copyright 2017, Kerby Shedden and the Muscato contributors.

// Package pgselfmatch finds long exact substrings shared between two
// pseudogenomes (or within one, matched against itself) and rewrites the
// target into literal runs plus copy-from-source directives, generalizing
// SimplePgMatcher.
package pgselfmatch

import (
	"encoding/binary"
	"errors"
	"io"
	"math"
	"sort"

	"github.com/kshedden/pgmatcher/internal/dna"
	"github.com/kshedden/pgmatcher/internal/hashmatch"
)

// Sentinel is the byte value the rewritten stream uses to mark "consume
// one entry from the offsets/lengths side channels". No DNA byte ever
// equals 128.
const Sentinel = 128

// TextMatch is a resolved substring match between a source and a
// destination pseudogenome.
type TextMatch struct {
	PosSrc  uint64
	PosDest uint64
	Length  uint64
}

func (m TextMatch) endSrc() uint64  { return m.PosSrc + m.Length }
func (m TextMatch) endDest() uint64 { return m.PosDest + m.Length }

// SeedMatches registers every minMatchLength-byte window of src as a
// pattern and scans dest for collisions, verifying and greedily extending
// each into a maximal exact match, then discarding exact duplicates
// produced when several seeds on the same diagonal extend to the same
// bounds.
func SeedMatches(src, dest []byte, minMatchLength int) []TextMatch {
	hm := hashmatch.New(minMatchLength, hashmatch.Default)
	for pos := 0; pos+minMatchLength <= len(src); pos++ {
		hm.AddPattern(src[pos:pos+minMatchLength], uint32(pos))
	}
	hm.IterateOver(dest)

	seen := make(map[TextMatch]bool)
	var out []TextMatch
	for hm.MoveNext() {
		srcPos := uint64(hm.PatternIndex())
		destPos := hm.TextPosition()

		if !equal(src[srcPos:srcPos+uint64(minMatchLength)], dest[destPos:destPos+uint64(minMatchLength)]) {
			continue
		}

		length := uint64(minMatchLength)
		for srcPos > 0 && destPos > 0 && src[srcPos-1] == dest[destPos-1] {
			srcPos--
			destPos--
			length++
		}
		for srcPos+length < uint64(len(src)) && destPos+length < uint64(len(dest)) && src[srcPos+length] == dest[destPos+length] {
			length++
		}

		m := TextMatch{PosSrc: srcPos, PosDest: destPos, Length: length}
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	return out
}

func equal(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ExactMatchPg runs SeedMatches between src and dest, optionally against
// dest's reverse complement, converting destination positions back to
// dest's own forward coordinates afterward.
func ExactMatchPg(src, dest []byte, minMatchLength int, revCompl bool) []TextMatch {
	target := dest
	if revCompl {
		target = dna.ReverseComplement(dest)
	}

	matches := SeedMatches(src, target, minMatchLength)

	if revCompl {
		destLen := uint64(len(target))
		for i := range matches {
			matches[i].PosDest = destLen - matches[i].endDest()
		}
	}
	return matches
}

// ResolveSameTextCollisions normalizes posSrc <= posDest for every match
// found when src and dest are the same pseudogenome, and shrinks a match
// whose source interval still overlaps its destination interval under
// reverse-complement matching.
func ResolveSameTextCollisions(matches []TextMatch, revCompl bool) {
	for i := range matches {
		m := &matches[i]
		if m.PosSrc > m.PosDest {
			m.PosSrc, m.PosDest = m.PosDest, m.PosSrc
		}
		if revCompl && m.endSrc() > m.PosDest {
			margin := (m.endSrc() - m.PosDest + 1) / 2
			m.Length -= margin
			m.PosDest += margin
		}
	}
}

// RewriteStats reports how much of dest was removed by the rewrite pass.
type RewriteStats struct {
	TotalMatched int64
	TotalOverlap int64
}

// ErrNotImplemented is returned by operations the original left as a TODO
// with undefined behavior; no semantics are invented for these.
var ErrNotImplemented = errors.New("pgselfmatch: not implemented in the reference design")

// WriteIntoPseudoGenome corresponds to the original's
// writeIntoPseudoGenome, marked TODO and never implemented upstream.
// Exposed here as an explicit unimplemented operation rather than a
// fabricated body.
func WriteIntoPseudoGenome(io.Writer, []TextMatch) error {
	return ErrNotImplemented
}

// Rewrite walks matches in posDest order, emitting literal runs of dest
// interleaved with Sentinel markers, and the corresponding source
// offset/length entries to mapOff/mapLen. The offset width (32- vs
// 64-bit) is chosen from the source length; lengths are written with a
// variable-length (LEB128, Go's binary.PutUvarint) encoding, the
// idiomatic analog of the original's writeUIntByteFrugal.
func Rewrite(literalOut, mapOff, mapLen io.Writer, dest, src []byte, matches []TextMatch, minMatchLength int, revCompl bool) (RewriteStats, error) {
	sorted := make([]TextMatch, len(matches))
	copy(sorted, matches)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].PosDest < sorted[j].PosDest })

	wideOffsets := uint64(len(src)) > math.MaxUint32

	var stats RewriteStats
	var pos uint64
	varintBuf := make([]byte, binary.MaxVarintLen64)
	offsetBuf := make([]byte, 8)

	for _, m := range sorted {
		if m.PosDest < pos {
			overflow := pos - m.PosDest
			if overflow > m.Length {
				stats.TotalOverlap += int64(m.Length)
				continue
			}
			stats.TotalOverlap += int64(overflow)
			m.Length -= overflow
			m.PosDest += overflow
			if !revCompl {
				m.PosSrc += overflow
			}
		}
		if m.Length < uint64(minMatchLength) {
			stats.TotalOverlap += int64(m.Length)
			continue
		}
		stats.TotalMatched += int64(m.Length)

		if _, err := literalOut.Write(dest[pos:m.PosDest]); err != nil {
			return stats, err
		}
		if _, err := literalOut.Write([]byte{Sentinel}); err != nil {
			return stats, err
		}

		if wideOffsets {
			binary.LittleEndian.PutUint64(offsetBuf, m.PosSrc)
			if _, err := mapOff.Write(offsetBuf); err != nil {
				return stats, err
			}
		} else {
			binary.LittleEndian.PutUint32(offsetBuf, uint32(m.PosSrc))
			if _, err := mapOff.Write(offsetBuf[:4]); err != nil {
				return stats, err
			}
		}

		n := binary.PutUvarint(varintBuf, m.Length-uint64(minMatchLength))
		if _, err := mapLen.Write(varintBuf[:n]); err != nil {
			return stats, err
		}

		pos = m.endDest()
	}

	if _, err := literalOut.Write(dest[pos:]); err != nil {
		return stats, err
	}
	return stats, nil
}
