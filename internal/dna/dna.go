// Copyright 2017, Kerby Shedden and the Muscato contributors.

// Package dna provides the small set of sequence-alphabet operations shared
// by the matcher packages: base complementing, reverse-complement views,
// dinucleotide diversity counting, and read normalization.
package dna

// Normalize replaces any byte outside the A/C/G/T/N alphabet with N, the
// way muscato_prep_reads folds unexpected bases to 'X' before a read is fed
// into the matcher. N is used here rather than X because N is itself a
// legal pseudogenome symbol.
func Normalize(seq []byte) {
	for i, c := range seq {
		switch c {
		case 'A', 'C', 'G', 'T', 'N':
		default:
			seq[i] = 'N'
		}
	}
}

// Truncate returns seq cut to at most maxLen bytes.
func Truncate(seq []byte, maxLen int) []byte {
	if maxLen > 0 && len(seq) > maxLen {
		return seq[:maxLen]
	}
	return seq
}

func complementBase(c byte) byte {
	switch c {
	case 'A':
		return 'T'
	case 'T':
		return 'A'
	case 'C':
		return 'G'
	case 'G':
		return 'C'
	default:
		return 'N'
	}
}

// ReverseComplement returns the reverse complement of seq as a new slice.
func ReverseComplement(seq []byte) []byte {
	n := len(seq)
	out := make([]byte, n)
	for i, c := range seq {
		out[n-1-i] = complementBase(c)
	}
	return out
}

// View exposes a pseudogenome and, lazily, its reverse-complement. The
// forward bytes are retained for the lifetime of the view; the
// reverse-complement buffer is built once on first use and then cached,
// since both matching passes (forward, then reverse) need random access to
// the full string, not a single streaming pass. While it is cached both
// strands are held in memory, until DropReverse releases it.
type View struct {
	fwd []byte
	rc  []byte
}

// NewView wraps a forward pseudogenome. The caller retains ownership of fwd;
// View does not copy it.
func NewView(fwd []byte) *View {
	return &View{fwd: fwd}
}

// Forward returns the forward-strand bytes.
func (v *View) Forward() []byte { return v.fwd }

// Len returns the length of the pseudogenome (same on both strands).
func (v *View) Len() int { return len(v.fwd) }

// Reverse returns the reverse-complement bytes, computing and caching them
// on first call.
func (v *View) Reverse() []byte {
	if v.rc == nil {
		v.rc = ReverseComplement(v.fwd)
	}
	return v.rc
}

// DropReverse releases the cached reverse-complement buffer. Callers that
// have finished the reverse-complement matching pass should call this
// before retaining the View for a long time, so the forward and reverse
// buffers are not both kept alive simultaneously when the pseudogenome is
// large.
func (v *View) DropReverse() { v.rc = nil }

// FwdPosFromRev converts a match position found by scanning the reverse
// view back into a forward-strand coordinate: pos_fwd = L - pos_rev -
// matchLen.
func FwdPosFromRev(revPos uint64, pgLen uint64, matchLen uint64) uint64 {
	return pgLen - revPos - matchLen
}

// CountDinuc returns the number of distinct dinucleotide subsequences
// (pairs of consecutive bases, including the ambiguity bucket for any
// non-ACGT byte) that appear in seq. wk is caller-provided scratch space of
// length 25 (5x5, reused across calls the way muscato's screening loop
// reuses its wk buffer to avoid an allocation per window). Grounded on
// utils/entropy.go.
func CountDinuc(seq []byte, wk []int) int {
	for i := range wk {
		wk[i] = 0
	}

	var last int
	var n int
	for i, x := range seq {
		var v int
		switch x {
		case 'A':
			v = 0
		case 'T':
			v = 1
		case 'G':
			v = 2
		case 'C':
			v = 3
		default:
			v = 4
		}

		if i > 0 {
			k := 5*last + v
			if wk[k] == 0 {
				n++
			}
			wk[k]++
		}
		last = v
	}

	return n
}

// CountMismatches compares pattern against text over length bytes,
// returning the number of differing positions, or math.MaxUint8 as soon as
// the count exceeds maxMismatches (early exit, grounded on
// DefaultReadsMatcher.cpp's countMismatches).
func CountMismatches(pattern, text []byte, length int, maxMismatches uint8) uint8 {
	var res uint8
	for i := 0; i < length; i++ {
		if pattern[i] != text[i] {
			if res >= maxMismatches {
				return 0xFF
			}
			res++
		}
	}
	return res
}
