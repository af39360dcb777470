package hashmatch

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type hit struct {
	textPos uint64
	patID   uint32
}

func collectHits(m *Matcher, text []byte) []hit {
	m.IterateOver(text)
	var out []hit
	for m.MoveNext() {
		out = append(out, hit{m.TextPosition(), m.PatternIndex()})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].textPos != out[j].textPos {
			return out[i].textPos < out[j].textPos
		}
		return out[i].patID < out[j].patID
	})
	return out
}

func TestSinglePatternExactHit(t *testing.T) {
	m := New(4, Default)
	m.AddPattern([]byte("ACGT"), 7)

	text := []byte("TTTTACGTTTTT")
	hits := collectHits(m, text)
	require.Len(t, hits, 1)
	assert.Equal(t, uint64(4), hits[0].textPos)
	assert.Equal(t, uint32(7), hits[0].patID)
}

func TestMultiplePatternsSameWindow(t *testing.T) {
	m := New(4, Default)
	m.AddPattern([]byte("ACGT"), 1)
	m.AddPattern([]byte("ACGT"), 2)

	text := []byte("ACGT")
	hits := collectHits(m, text)
	require.Len(t, hits, 2)
	assert.ElementsMatch(t, []uint32{1, 2}, []uint32{hits[0].patID, hits[1].patID})
}

func TestNoMatchReportsNothing(t *testing.T) {
	m := New(4, Default)
	m.AddPattern([]byte("ACGT"), 0)

	text := []byte("TTTTTTTTTT")
	hits := collectHits(m, text)
	assert.Empty(t, hits)
}

func TestTextShorterThanWindow(t *testing.T) {
	m := New(10, Default)
	m.AddPattern([]byte("ACGTACGTAC"), 0)
	hits := collectHits(m, []byte("ACG"))
	assert.Empty(t, hits)
}

func TestAddPatternGroupRoundTrips(t *testing.T) {
	m := New(4, Interleaved)
	blocks := [][]byte{[]byte("AAAA"), []byte("CCCC"), []byte("GGGG")}
	ids := m.AddPatternGroup(blocks, 5)
	require.Len(t, ids, 3)

	for idx, id := range ids {
		group, blockIdx := DecodeGroupID(id, uint32(len(blocks)))
		assert.Equal(t, uint32(5), group)
		assert.Equal(t, uint32(idx), blockIdx)
	}
}

func TestWindowAtTextStartIsReported(t *testing.T) {
	// The first window of the text (position 0, before any Roll) is
	// checked against the registered patterns like every later one.
	m := New(4, Default)
	m.AddPattern([]byte("ACGT"), 0)
	m.IterateOver([]byte("ACGT"))
	require.True(t, m.MoveNext())
	assert.Equal(t, uint64(0), m.TextPosition())
}

func TestFillRateIsInRange(t *testing.T) {
	m := New(4, Default)
	for i := 0; i < 20; i++ {
		m.AddPattern([]byte{byte('A' + i%4), 'C', 'G', 'T'}, uint32(i))
	}
	m.IterateOver([]byte("ACGTACGTACGT"))
	rate := m.FillRate(1000)
	assert.GreaterOrEqual(t, rate, 0.0)
	assert.LessOrEqual(t, rate, 1.0)
}
