// Copyright 2017, Kerby Shedden and the Muscato contributors.

package readsmatcher

import (
	"github.com/kshedden/pgmatcher/internal/config"
	"github.com/kshedden/pgmatcher/internal/dna"
	"github.com/kshedden/pgmatcher/internal/hashmatch"
)

// ExactStrategy implements exact-mode matching: one pattern per read, the
// whole matchingLength window, id == read index. Generalizes
// DefaultReadsExactMatcher / exactMatchConstantLengthPatterns.
type ExactStrategy struct{}

// WindowLen is the hashmatch window exact matching requires: the full
// matching length, since a single pattern per read is registered.
func (ExactStrategy) WindowLen(matchingLength int) int { return matchingLength }

func (ExactStrategy) RegisterPatterns(hm *hashmatch.Matcher, reads [][]byte, matchingLength int, cfg *config.Config) {
	for i, r := range reads {
		hm.AddPattern(r, uint32(i))
	}
}

func (ExactStrategy) ResolveAlignment(patID uint32, textPos uint64, matchingLength int, textLen int) (int, uint64, bool) {
	if int(textPos)+matchingLength > textLen {
		return 0, 0, false
	}
	return int(patID), textPos, true
}

func (ExactStrategy) VerifyHit(read []byte, text []byte, alignPos uint64, matchingLength int, bound uint8) uint8 {
	if !equalBytes(read[:matchingLength], text[alignPos:alignPos+uint64(matchingLength)]) {
		return noMismatches
	}
	return 0
}

func equalBytes(a, b []byte) bool {
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

// ApproxStrategy implements q-gram partition seeding for up to k
// mismatches, generalizing
// DefaultReadsApproxMatcher / InterleavedReadsApproxMatcher /
// approxMatchConstantLengthPatterns. MaxMismatches (k) and PartLength are
// fixed at construction since every registered pattern must share one
// hashmatch window length.
type ApproxStrategy struct {
	MaxMismatches uint8
	PartLength    int
	Variant       hashmatch.Variant
}

// NewApproxStrategy derives PartLength = matchingLength/(k+1), the same
// floor division matcher.cpp's approxMatchConstantLengthPatterns uses; the
// remainder past (k+1)*PartLength is covered during verification (which
// spans the full matchingLength) without being separately seeded.
func NewApproxStrategy(matchingLength int, maxMismatches uint8, variant hashmatch.Variant) ApproxStrategy {
	return ApproxStrategy{
		MaxMismatches: maxMismatches,
		PartLength:    matchingLength / (int(maxMismatches) + 1),
		Variant:       variant,
	}
}

func (s ApproxStrategy) WindowLen() int { return s.PartLength }

func (s ApproxStrategy) groupSize() uint32 { return uint32(s.MaxMismatches) + 1 }

// RegisterPatterns registers the k+1 blocks of every read, optionally
// skipping low-diversity blocks per Config.MinBlockDinuc. A skipped block
// contributes no seed, so a read whose only exactly-matching block was
// skipped is not found at that alignment. Under
// the Interleaved variant the k+1 blocks of one read are handed to the
// hash matcher as a single group (hashmatch.AddPatternGroup); under
// Default each block is registered independently. Both encode the same
// composite id, matching the resolution recorded in DESIGN.md.
func (s ApproxStrategy) RegisterPatterns(hm *hashmatch.Matcher, reads [][]byte, matchingLength int, cfg *config.Config) {
	gs := s.groupSize()
	var wk [25]int
	keep := func(block []byte) bool {
		return cfg.MinBlockDinuc <= 0 || dna.CountDinuc(block, wk[:]) >= cfg.MinBlockDinuc
	}

	for i, r := range reads {
		if s.Variant == hashmatch.Interleaved {
			var blocks [][]byte
			for j := uint32(0); j < gs; j++ {
				start := int(j) * s.PartLength
				block := r[start : start+s.PartLength]
				if keep(block) {
					blocks = append(blocks, block)
				}
			}
			if len(blocks) == int(gs) {
				hm.AddPatternGroup(blocks, uint32(i))
				continue
			}
			// A filtered-out block would shift the composite id
			// encoding AddPatternGroup assumes; fall back to
			// per-block registration with the exact ids it would
			// have produced so ResolveAlignment still decodes
			// correctly.
			for j := uint32(0); j < gs; j++ {
				start := int(j) * s.PartLength
				block := r[start : start+s.PartLength]
				if keep(block) {
					hm.AddPattern(block, uint32(i)*gs+j)
				}
			}
			continue
		}

		for j := uint32(0); j < gs; j++ {
			start := int(j) * s.PartLength
			block := r[start : start+s.PartLength]
			if keep(block) {
				hm.AddPattern(block, uint32(i)*gs+j)
			}
		}
	}
}

func (s ApproxStrategy) ResolveAlignment(patID uint32, textPos uint64, matchingLength int, textLen int) (int, uint64, bool) {
	gs := s.groupSize()
	readIdx, blockIdx := hashmatch.DecodeGroupID(patID, gs)

	shift := uint64(blockIdx) * uint64(s.PartLength)
	if shift > textPos {
		return 0, 0, false
	}
	alignPos := textPos - shift
	if int(alignPos)+matchingLength > textLen {
		return 0, 0, false
	}
	return int(readIdx), alignPos, true
}

func (s ApproxStrategy) VerifyHit(read []byte, text []byte, alignPos uint64, matchingLength int, bound uint8) uint8 {
	return dna.CountMismatches(read[:matchingLength], text[alignPos:alignPos+uint64(matchingLength)], matchingLength, bound)
}
