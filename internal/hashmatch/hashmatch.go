// Copyright 2017, Kerby Shedden and the Muscato contributors.

// Package hashmatch implements the constant-length-pattern, hash-based,
// multi-pattern-on-long-text matcher. Patterns of a fixed window length are
// registered under a caller-chosen id; IterateOver/MoveNext then streams
// every (text-position, pattern-id) pair whose rolling fingerprint collides
// with a registered pattern's fingerprint. No verification is performed
// here -- callers compare bytes themselves, exactly as the original
// ConstantLengthPatternsOnTextHashMatcher leaves false hits to its caller.
//
// The rolling fingerprint is a buzhash, the same construction muscato uses
// to sketch reads in muscato_screen.go. A bitarray occupancy map over the
// fingerprint space lets MoveNext skip text positions whose window cannot
// possibly match any registered pattern without touching the chain table,
// mirroring the Bloom-filter fast-reject muscato performs before trusting a
// k-mer match.
package hashmatch

import (
	"math/rand"

	"github.com/chmduquesne/rollinghash"
	"github.com/chmduquesne/rollinghash/buzhash32"
	"github.com/golang-collections/go-datastructures/bitarray"
)

// Variant selects the pattern-id encoding used by the matcher. Default
// registers patterns independently; Interleaved groups the k+1 seed
// positions of a single read under one registration call
// (AddPatternGroup). Both variants use the same fingerprint table; the
// Matcher only stores the variant and reports it through Variant().
type Variant int

const (
	Default Variant = iota
	Interleaved
)

// buzhashTable is the single base hash function shared by every Matcher.
// It is generated once, deterministically (seeded with a fixed source, the
// same way muscato's genTables never calls rand.Seed), so that fingerprints
// -- and therefore the set of reported collisions -- are reproducible
// across runs with identical inputs.
var buzhashTable = func() [256]uint32 {
	var t [256]uint32
	seen := make(map[uint32]bool, 256)
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 256; i++ {
		for {
			x := uint32(r.Int63())
			if !seen[x] {
				t[i] = x
				seen[x] = true
				break
			}
		}
	}
	return t
}()

func newHasher() rollinghash.Hash32 {
	return buzhash32.NewFromUint32Array(buzhashTable)
}

// Matcher is a fixed-window-length multi-pattern hash matcher over a text.
type Matcher struct {
	windowLen int
	variant   Variant

	table map[uint32][]uint32 // fingerprint -> registered pattern ids
	occ   bitarray.BitArray
	occN  uint64

	patHash  rollinghash.Hash32
	scanHash rollinghash.Hash32

	text    []byte
	pos     int
	primed  bool
	chain   []uint32
	chainAt int

	curTextPos uint64
	curPatID   uint32
}

// New constructs a matcher for patterns of windowLen bytes.
func New(windowLen int, variant Variant) *Matcher {
	return &Matcher{
		windowLen: windowLen,
		variant:   variant,
		table:     make(map[uint32][]uint32),
		patHash:   newHasher(),
		scanHash:  newHasher(),
	}
}

func (m *Matcher) fingerprint(h rollinghash.Hash32, ptr []byte) uint32 {
	h.Reset()
	// A write error from a rolling hash over an in-memory byte slice
	// cannot occur; muscato_screen.go's own callers treat it the same
	// way, checking but never expecting a failure path here.
	_, _ = h.Write(ptr)
	return h.Sum32()
}

// AddPattern registers the windowLen-byte pattern at ptr under id.
func (m *Matcher) AddPattern(ptr []byte, id uint32) {
	fp := m.fingerprint(m.patHash, ptr[:m.windowLen])
	m.table[fp] = append(m.table[fp], id)
}

// AddPatternGroup registers len(ptrs) patterns belonging to a single
// logical group (e.g. the k+1 q-gram blocks of one read) as a batch, for
// use with the Interleaved variant. Each pattern is assigned a composite
// id of group*uint32(len(ptrs))+idx; DecodeGroupID inverts the encoding.
func (m *Matcher) AddPatternGroup(ptrs [][]byte, group uint32) []uint32 {
	ids := make([]uint32, len(ptrs))
	groupSize := uint32(len(ptrs))
	for idx, ptr := range ptrs {
		id := group*groupSize + uint32(idx)
		m.AddPattern(ptr, id)
		ids[idx] = id
	}
	return ids
}

// DecodeGroupID inverts the composite id produced by AddPatternGroup.
func DecodeGroupID(id, groupSize uint32) (group, idx uint32) {
	return id / groupSize, id % groupSize
}

func nextPow2(n uint64) uint64 {
	p := uint64(64)
	for p < n {
		p <<= 1
	}
	return p
}

// IterateOver primes streaming over text. Repeated calls to MoveNext
// advance through every (textPos, patternID) collision.
func (m *Matcher) IterateOver(text []byte) {
	m.text = text
	m.pos = -1
	m.primed = false
	m.chain = nil
	m.chainAt = 0

	m.occN = nextPow2(uint64(len(m.table)) * 2)
	m.occ = bitarray.NewBitArray(m.occN)
	for fp := range m.table {
		// Errors from this bitarray implementation only occur for an
		// out-of-range index, which cannot happen since idx is
		// reduced modulo occN.
		_ = m.occ.SetBit(uint64(fp) % m.occN)
	}
}

// MoveNext advances to the next collision, returning false once the text
// has been exhausted.
func (m *Matcher) MoveNext() bool {
	if len(m.text) < m.windowLen {
		return false
	}

	for {
		if m.chainAt < len(m.chain) {
			m.curPatID = m.chain[m.chainAt]
			m.curTextPos = uint64(m.pos)
			m.chainAt++
			return true
		}

		if !m.advance() {
			return false
		}
	}
}

// advance moves the scan position forward by one and loads the chain of
// pattern ids (if any) whose fingerprint matches the window now in view.
func (m *Matcher) advance() bool {
	lastPos := len(m.text) - m.windowLen
	if !m.primed {
		if lastPos < 0 {
			return false
		}
		m.scanHash.Reset()
		_, _ = m.scanHash.Write(m.text[0:m.windowLen])
		m.pos = 0
		m.primed = true
	} else {
		if m.pos >= lastPos {
			return false
		}
		m.pos++
		m.scanHash.Roll(m.text[m.pos+m.windowLen-1])
	}

	fp := m.scanHash.Sum32()
	ok, _ := m.occ.GetBit(uint64(fp) % m.occN)
	if !ok {
		m.chain = nil
		m.chainAt = 0
		return true
	}
	m.chain = m.table[fp]
	m.chainAt = 0
	return true
}

// TextPosition returns the text position of the current collision.
func (m *Matcher) TextPosition() uint64 { return m.curTextPos }

// PatternIndex returns the pattern id of the current collision.
func (m *Matcher) PatternIndex() uint32 { return m.curPatID }

// Variant reports which pattern-id encoding this matcher was built with.
func (m *Matcher) Variant() Variant { return m.variant }

// WindowLen reports the configured pattern length.
func (m *Matcher) WindowLen() int { return m.windowLen }

// FillRate samples the occupancy bitmap and returns the fraction of
// sampled slots that are set, a diagnostic generalizing muscato_screen.go's
// estimateFullness (there run over per-window Bloom filters, here over the
// single occupancy bitmap primed by IterateOver).
func (m *Matcher) FillRate(sampleSize int) float64 {
	if m.occN == 0 || sampleSize <= 0 {
		return 0
	}
	r := rand.New(rand.NewSource(1))
	var c int
	for k := 0; k < sampleSize; k++ {
		i := uint64(r.Int63()) % m.occN
		if ok, _ := m.occ.GetBit(i); ok {
			c++
		}
	}
	return float64(c) / float64(sampleSize)
}
