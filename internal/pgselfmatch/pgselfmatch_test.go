package pgselfmatch

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedMatchesFindsAndExtendsMaximalMatch(t *testing.T) {
	src := []byte("ACGTACGT")
	dest := []byte("XXACGTACGTYY")

	matches := SeedMatches(src, dest, 6)
	require.Len(t, matches, 1)
	assert.Equal(t, TextMatch{PosSrc: 0, PosDest: 2, Length: 8}, matches[0])
}

func TestSeedMatchesIgnoresSubMinimumOverlap(t *testing.T) {
	src := []byte("ACGTAC")
	dest := []byte("GGACGTGG")
	matches := SeedMatches(src, dest, 8)
	assert.Empty(t, matches)
}

func TestExactMatchPgReverseComplement(t *testing.T) {
	src := []byte("ACGTACGTAC")
	// The reverse complement of "GTACGTACGT" is "ACGTACGTAC".
	dest := []byte("TTGTACGTACGTTT")

	matches := ExactMatchPg(src, dest, 6, true)
	require.NotEmpty(t, matches)
	for _, m := range matches {
		assert.LessOrEqual(t, m.PosDest+m.Length, uint64(len(dest)))
	}
}

func TestResolveSameTextCollisionsNormalizesOrder(t *testing.T) {
	matches := []TextMatch{{PosSrc: 10, PosDest: 2, Length: 6}}
	ResolveSameTextCollisions(matches, false)
	assert.Equal(t, uint64(2), matches[0].PosSrc)
	assert.Equal(t, uint64(10), matches[0].PosDest)
}

func TestResolveSameTextCollisionsShrinksRevComplOverlap(t *testing.T) {
	matches := []TextMatch{{PosSrc: 0, PosDest: 4, Length: 10}}
	ResolveSameTextCollisions(matches, true)
	m := matches[0]
	assert.LessOrEqual(t, m.endSrc(), m.PosDest)
}

// E4: rewriting destPg against srcPg reproduces the original bytes once
// the sentinel is substituted back for the copied source span.
func TestRewriteProducesExpectedStreamsAndRoundTrips(t *testing.T) {
	src := []byte("ACGTACGT")
	dest := []byte("XXACGTACGTYY")
	const minMatchLength = 6

	matches := SeedMatches(src, dest, minMatchLength)
	require.Len(t, matches, 1)

	var literal, mapOff, mapLen bytes.Buffer
	stats, err := Rewrite(&literal, &mapOff, &mapLen, dest, src, matches, minMatchLength, false)
	require.NoError(t, err)

	assert.Equal(t, []byte{'X', 'X', Sentinel, 'Y', 'Y'}, literal.Bytes())
	assert.Equal(t, int64(8), stats.TotalMatched)
	assert.Equal(t, int64(0), stats.TotalOverlap)

	// _map_off stores posSrc as a 4-byte little-endian value (src is far
	// below the 32-bit length threshold).
	require.Len(t, mapOff.Bytes(), 4)
	assert.Equal(t, byte(0), mapOff.Bytes()[0])

	// _map_len stores length-minMatchLength = 8-6 = 2 as a varint.
	require.Len(t, mapLen.Bytes(), 1)
	assert.Equal(t, byte(2), mapLen.Bytes()[0])

	// Reconstructing dest: splice src[posSrc:posSrc+length] back in for
	// the sentinel.
	length := minMatchLength + int(mapLen.Bytes()[0])
	reconstructed := append([]byte{}, literal.Bytes()[:2]...)
	reconstructed = append(reconstructed, src[0:length]...)
	reconstructed = append(reconstructed, literal.Bytes()[3:]...)
	assert.Equal(t, dest, reconstructed)
}

func TestRewriteWithNoMatchesEmitsDestVerbatim(t *testing.T) {
	dest := []byte("NOOVERLAPHERE")
	var literal, mapOff, mapLen bytes.Buffer
	stats, err := Rewrite(&literal, &mapOff, &mapLen, dest, []byte("ZZZZZZZZZZ"), nil, 6, false)
	require.NoError(t, err)
	assert.Equal(t, dest, literal.Bytes())
	assert.Empty(t, mapOff.Bytes())
	assert.Empty(t, mapLen.Bytes())
	assert.Equal(t, int64(0), stats.TotalMatched)
}

func TestWriteIntoPseudoGenomeIsUnimplemented(t *testing.T) {
	err := WriteIntoPseudoGenome(nil, nil)
	assert.ErrorIs(t, err, ErrNotImplemented)
}
