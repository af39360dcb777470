package codec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupAndFlattenMismatchOffsetRowsRoundTrip(t *testing.T) {
	rows := []MismatchOffsetRow{
		{5, 19},
		nil,
		{2},
		{1, 8, 30},
	}
	misCounts := []byte{2, 0, 1, 3}

	flat := FlattenMismatchOffsetRows(rows)
	got, err := GroupMismatchOffsetRows(flat, misCounts)
	require.NoError(t, err)

	require.Len(t, got, len(rows))
	for i := range rows {
		assert.Equal(t, rows[i], got[i])
	}
}

func TestGroupMismatchOffsetRowsDetectsShortColumn(t *testing.T) {
	misCounts := []byte{2}
	_, err := GroupMismatchOffsetRows([]byte{0, 0, 0, 0}, misCounts)
	assert.Error(t, err)
}

func TestGroupMismatchOffsetRowsDetectsTrailingBytes(t *testing.T) {
	misCounts := []byte{1}
	_, err := GroupMismatchOffsetRows(make([]byte, 8), misCounts)
	assert.Error(t, err)
}

func mismatchOffsetsRoundTrip(t *testing.T, rows []MismatchOffsetRow, misCounts []byte, maxDests int) []MismatchOffsetRow {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, WriteMismatchOffsets(&buf, rows, maxDests, TagSnappy, 0))
	out, err := ReadMismatchOffsets(&buf, misCounts)
	require.NoError(t, err)
	return out
}

func TestWriteReadMismatchOffsetsNoStratification(t *testing.T) {
	rows := []MismatchOffsetRow{
		{4},
		{1, 2},
		nil,
		{7, 8, 9},
	}
	misCounts := []byte{1, 2, 0, 3}

	out := mismatchOffsetsRoundTrip(t, rows, misCounts, 1)
	require.Len(t, out, len(rows))
	for i := range rows {
		assert.Equal(t, rows[i], out[i])
	}
}

func TestWriteReadMismatchOffsetsWithDedicatedBucketsAndCatchAll(t *testing.T) {
	rows := []MismatchOffsetRow{
		{1},
		{2, 3},
		{1},
		{9, 10, 11, 12},
		{2, 5},
		{1},
		{100, 101, 102, 103, 104},
	}
	misCounts := []byte{1, 2, 1, 4, 2, 1, 5}

	// maxDests=2 allows only one dedicated bucket (the smallest width, 1)
	// plus a catch-all for everything else.
	out := mismatchOffsetsRoundTrip(t, rows, misCounts, 2)
	require.Len(t, out, len(rows))
	for i := range rows {
		assert.Equal(t, rows[i], out[i], "row %d", i)
	}
}

func TestWriteReadMismatchOffsetsEveryWidthDedicated(t *testing.T) {
	rows := []MismatchOffsetRow{
		{1},
		{2, 3},
		{4, 5, 6},
		{1},
		{2, 9},
	}
	misCounts := []byte{1, 2, 3, 1, 2}

	out := mismatchOffsetsRoundTrip(t, rows, misCounts, 8)
	require.Len(t, out, len(rows))
	for i := range rows {
		assert.Equal(t, rows[i], out[i], "row %d", i)
	}
}

func TestWriteReadMismatchOffsetsEmpty(t *testing.T) {
	out := mismatchOffsetsRoundTrip(t, nil, nil, 4)
	assert.Empty(t, out)
}

func TestReadMismatchOffsetsDetectsExhaustedBucket(t *testing.T) {
	rows := []MismatchOffsetRow{{1, 2}}
	misCounts := []byte{2}

	var buf bytes.Buffer
	require.NoError(t, WriteMismatchOffsets(&buf, rows, 1, TagSnappy, 0))

	// A single width fits within maxDests=1, so the one row goes into a
	// dedicated width-2 bucket. Ask for one extra read that was never
	// written; that bucket runs dry before it can be satisfied.
	_, err := ReadMismatchOffsets(&buf, []byte{2, 2})
	assert.Error(t, err)
}
