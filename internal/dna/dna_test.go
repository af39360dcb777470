package dna

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	seq := []byte("ACGTNacgtx-")
	Normalize(seq)
	assert.Equal(t, "ACGTNNNNNNN", string(seq))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "ACG", string(Truncate([]byte("ACGTA"), 3)))
	assert.Equal(t, "ACGTA", string(Truncate([]byte("ACGTA"), 0)))
	assert.Equal(t, "ACGTA", string(Truncate([]byte("ACGTA"), 100)))
}

func TestReverseComplement(t *testing.T) {
	assert.Equal(t, "TACGN", string(ReverseComplement([]byte("NCGTA"))))
	assert.Equal(t, "", string(ReverseComplement(nil)))
}

func TestViewReverseCaching(t *testing.T) {
	v := NewView([]byte("ACGT"))
	require.Equal(t, 4, v.Len())
	rc1 := v.Reverse()
	assert.Equal(t, "ACGT", string(rc1))
	rc2 := v.Reverse()
	assert.Same(t, &rc1[0], &rc2[0])

	v.DropReverse()
	rc3 := v.Reverse()
	assert.Equal(t, "ACGT", string(rc3))
}

func TestFwdPosFromRev(t *testing.T) {
	// A pseudogenome of length 10, a match of length 4 found at revPos 2
	// on the reverse-complement strand starts at forward position
	// 10-2-4=4.
	assert.Equal(t, uint64(4), FwdPosFromRev(2, 10, 4))
}

func TestCountDinuc(t *testing.T) {
	var wk [25]int
	// "AAAA" has a single repeated dinucleotide AA.
	assert.Equal(t, 1, CountDinuc([]byte("AAAA"), wk[:]))
	// "ACGT" has three distinct dinucleotides: AC, CG, GT.
	assert.Equal(t, 3, CountDinuc([]byte("ACGT"), wk[:]))
	assert.Equal(t, 0, CountDinuc([]byte("A"), wk[:]))
}

func TestCountMismatches(t *testing.T) {
	a := []byte("ACGTACGT")
	b := []byte("ACGTACGT")
	assert.Equal(t, uint8(0), CountMismatches(a, b, len(a), 2))

	c := []byte("AGGTACGT")
	assert.Equal(t, uint8(1), CountMismatches(a, c, len(a), 2))

	d := []byte("AGGTAGGT")
	assert.Equal(t, uint8(2), CountMismatches(a, d, len(a), 2))

	// Exceeding maxMismatches returns the sentinel, not the exact count.
	e := []byte("TGGTAGGT")
	assert.Equal(t, uint8(0xFF), CountMismatches(a, e, len(a), 2))
}
