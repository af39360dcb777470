package readslist

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kshedden/pgmatcher/internal/config"
	"github.com/kshedden/pgmatcher/internal/readsmatcher"
)

func TestColumnSuffixes(t *testing.T) {
	assert.Equal(t, ".pg", ColPg.Suffix())
	assert.Equal(t, "_rl_pos.pg", ColPos.Suffix())
	assert.Equal(t, "_rl_off.pg", ColOff.Suffix())
	assert.Equal(t, "_map_len.pg", ColMapLen.Suffix())
}

func TestBufferedBuilderWritesOffsetColumnByDefault(t *testing.T) {
	b := NewBufferedBuilder(config.WriteOptions{})

	require.NoError(t, b.WriteReadEntry(ReadEntry{Pos: 5, OrigIndex: 0, IsRevComp: false}))
	require.NoError(t, b.WriteReadEntry(ReadEntry{Pos: 12, OrigIndex: 1, IsRevComp: true,
		Mismatches: []readsmatcher.Mismatch{{Offset: 3, Base: 'G'}}}))
	require.NoError(t, b.Build())

	assert.Equal(t, 2, b.Count())

	off := b.Column(ColOff)
	require.Len(t, off, 16)
	assert.Equal(t, uint64(5), binary.LittleEndian.Uint64(off[0:8]))
	assert.Equal(t, uint64(7), binary.LittleEndian.Uint64(off[8:16]))

	assert.Nil(t, b.Column(ColPos))

	rc := b.Column(ColRC)
	assert.Equal(t, []byte{0, 1}, rc)

	misCnt := b.Column(ColMisCnt)
	assert.Equal(t, []byte{0, 1}, misCnt)

	misSym := b.Column(ColMisSym)
	assert.Equal(t, []byte{'G'}, misSym)

	misPos := b.Column(ColMisPos)
	require.Len(t, misPos, 4)
	assert.Equal(t, uint32(3), binary.LittleEndian.Uint32(misPos))
}

func TestBufferedBuilderAbsolutePositions(t *testing.T) {
	b := NewBufferedBuilder(config.WriteOptions{AbsolutePositions: true})
	require.NoError(t, b.WriteReadEntry(ReadEntry{Pos: 100, OrigIndex: 0}))
	require.NoError(t, b.Build())

	assert.Nil(t, b.Column(ColOff))
	pos := b.Column(ColPos)
	require.Len(t, pos, 8)
	assert.Equal(t, uint64(100), binary.LittleEndian.Uint64(pos))
}

func TestBufferedBuilderReverseOffsetMismatches(t *testing.T) {
	b := NewBufferedBuilder(config.WriteOptions{ReverseOffsetMismatches: true})
	require.NoError(t, b.WriteReadEntry(ReadEntry{
		Pos:        0,
		Mismatches: []readsmatcher.Mismatch{{Offset: 9, Base: 'A'}},
	}))
	require.NoError(t, b.Build())

	assert.Nil(t, b.Column(ColMisPos))
	revOff := b.Column(ColMisRevOff)
	require.Len(t, revOff, 4)
	assert.Equal(t, uint32(9), binary.LittleEndian.Uint32(revOff))
}

func TestFileBuilderRenamesIntoPlaceAtomically(t *testing.T) {
	dir := t.TempDir()
	prefix := filepath.Join(dir, "sample")

	b, err := NewFileBuilder(prefix, config.WriteOptions{})
	require.NoError(t, err)

	require.NoError(t, b.WriteReadEntry(ReadEntry{Pos: 1, OrigIndex: 0}))
	require.NoError(t, b.Build())

	for _, c := range []Column{ColOff, ColIdx, ColRC, ColMisCnt, ColMisSym, ColMisPos} {
		path := prefix + c.Suffix()
		_, err := os.Stat(path)
		assert.NoError(t, err, "expected %s to exist", path)
		_, err = os.Stat(path + ".temp")
		assert.True(t, os.IsNotExist(err), "expected no leftover %s.temp", path)
	}
}

func TestBuildToWritesBufferedColumnsToPrefix(t *testing.T) {
	dir := t.TempDir()
	prefix := filepath.Join(dir, "out")

	b := NewBufferedBuilder(config.WriteOptions{})
	require.NoError(t, b.WriteReadEntry(ReadEntry{Pos: 0, OrigIndex: 7}))
	require.NoError(t, b.BuildTo(prefix))

	data, err := os.ReadFile(prefix + ColIdx.Suffix())
	require.NoError(t, err)
	require.Len(t, data, 4)
	assert.Equal(t, uint32(7), binary.LittleEndian.Uint32(data))
}
