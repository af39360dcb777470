// Copyright 2017, Kerby Shedden and the Muscato contributors.

package codec

import (
	"encoding/binary"
	"fmt"
	"io"
	"sort"
)

// MismatchOffsetRow is one matched read's mismatch offsets, in emission
// order. Its length is the read's mismatch count m.
type MismatchOffsetRow []uint32

// GroupMismatchOffsetRows splits the flat, little-endian-uint32-per-entry
// mismatch-offsets column back into one row per read, using misCounts (one
// byte per read, in the same order as the offsets were written) to find
// each row's width.
func GroupMismatchOffsetRows(offsets, misCounts []byte) ([]MismatchOffsetRow, error) {
	rows := make([]MismatchOffsetRow, len(misCounts))
	pos := 0
	for i, m := range misCounts {
		n := int(m)
		if n == 0 {
			continue
		}
		if pos+n*4 > len(offsets) {
			return nil, fmt.Errorf("codec: mismatch-offsets column is too short for the mismatch counts column (read %d needs %d more bytes)", i, pos+n*4-len(offsets))
		}
		row := make(MismatchOffsetRow, n)
		for j := 0; j < n; j++ {
			row[j] = binary.LittleEndian.Uint32(offsets[pos : pos+4])
			pos += 4
		}
		rows[i] = row
	}
	if pos != len(offsets) {
		return nil, fmt.Errorf("codec: mismatch-offsets column has %d trailing bytes unaccounted for by the mismatch counts column", len(offsets)-pos)
	}
	return rows, nil
}

// FlattenMismatchOffsetRows reassembles the flat, little-endian-uint32-per-
// entry column GroupMismatchOffsetRows splits apart.
func FlattenMismatchOffsetRows(rows []MismatchOffsetRow) []byte {
	var buf []byte
	var tmp [4]byte
	for _, row := range rows {
		for _, v := range row {
			binary.LittleEndian.PutUint32(tmp[:], v)
			buf = append(buf, tmp[:]...)
		}
	}
	return buf
}

// mismatchBucket is one partition of the mismatch-offsets column: either a
// uniform-width matrix of rows that all have exactly width mismatches
// (isCatchAll false, eligible for the column-major transpose), or the
// catch-all bucket (isCatchAll true) holding every row whose width did not
// get a dedicated bucket, in original relative order.
type mismatchBucket struct {
	isCatchAll bool
	width      int
	rows       []MismatchOffsetRow
}

// stratify partitions rows by width (a read's mismatch count) into at most
// maxDests buckets: the maxDests-1 smallest widths (the common case) each
// get a dedicated, uniform-width bucket, and every row whose width didn't
// make the cut falls into one trailing catch-all bucket. Rows of width 0
// carry no data and are dropped entirely. If every distinct width fits
// within maxDests, no catch-all bucket is produced.
func stratify(rows []MismatchOffsetRow, maxDests int) []mismatchBucket {
	if maxDests <= 0 {
		maxDests = 1
	}

	counts := make(map[int]int)
	for _, r := range rows {
		if len(r) > 0 {
			counts[len(r)]++
		}
	}
	widths := make([]int, 0, len(counts))
	for w := range counts {
		widths = append(widths, w)
	}
	sort.Ints(widths)

	dedicated := widths
	var catchAllWidths []int
	if len(widths) > maxDests {
		dedicatedCount := maxDests - 1
		if dedicatedCount < 0 {
			dedicatedCount = 0
		}
		dedicated = widths[:dedicatedCount]
		catchAllWidths = widths[dedicatedCount:]
	}

	isDedicated := make(map[int]bool, len(dedicated))
	buckets := make(map[int]*mismatchBucket, len(dedicated))
	for _, w := range dedicated {
		isDedicated[w] = true
		buckets[w] = &mismatchBucket{width: w}
	}

	var catchAll *mismatchBucket
	if len(catchAllWidths) > 0 {
		catchAll = &mismatchBucket{isCatchAll: true}
	}

	for _, r := range rows {
		w := len(r)
		if w == 0 {
			continue
		}
		if isDedicated[w] {
			buckets[w].rows = append(buckets[w].rows, r)
		} else {
			catchAll.rows = append(catchAll.rows, r)
		}
	}

	out := make([]mismatchBucket, 0, len(dedicated)+1)
	for _, w := range dedicated {
		out = append(out, *buckets[w])
	}
	if catchAll != nil {
		out = append(out, *catchAll)
	}
	return out
}

func rowMajorBytes(rows []MismatchOffsetRow, width int) []byte {
	buf := make([]byte, len(rows)*width*4)
	for r, row := range rows {
		for c, v := range row {
			off := (r*width + c) * 4
			binary.LittleEndian.PutUint32(buf[off:off+4], v)
		}
	}
	return buf
}

func columnMajorBytes(rows []MismatchOffsetRow, width int) []byte {
	rowCount := len(rows)
	buf := make([]byte, rowCount*width*4)
	for r, row := range rows {
		for c, v := range row {
			off := (c*rowCount + r) * 4
			binary.LittleEndian.PutUint32(buf[off:off+4], v)
		}
	}
	return buf
}

func rowsFromRowMajor(data []byte, width, rowCount int) []MismatchOffsetRow {
	rows := make([]MismatchOffsetRow, rowCount)
	for r := 0; r < rowCount; r++ {
		row := make(MismatchOffsetRow, width)
		for c := 0; c < width; c++ {
			off := (r*width + c) * 4
			row[c] = binary.LittleEndian.Uint32(data[off : off+4])
		}
		rows[r] = row
	}
	return rows
}

func rowsFromColumnMajor(data []byte, width, rowCount int) []MismatchOffsetRow {
	rows := make([]MismatchOffsetRow, rowCount)
	for r := range rows {
		rows[r] = make(MismatchOffsetRow, width)
	}
	for c := 0; c < width; c++ {
		for r := 0; r < rowCount; r++ {
			off := (c*rowCount + r) * 4
			rows[r][c] = binary.LittleEndian.Uint32(data[off : off+4])
		}
	}
	return rows
}

// WriteMismatchOffsets partitions rows by mismatch count into at most
// maxDests buckets (see stratify), optionally transposes each dedicated
// bucket's matrix into column-major order to expose columnar regularity
// across reads, and compresses each bucket independently with the codec
// named by tag/level.
func WriteMismatchOffsets(dst io.Writer, rows []MismatchOffsetRow, maxDests int, tag Tag, level int) error {
	buckets := stratify(rows, maxDests)

	if err := writeUint8(dst, uint8(len(buckets))); err != nil {
		return err
	}
	for _, b := range buckets {
		transposed := !b.isCatchAll && b.width > 1 && len(b.rows) > 1

		var payload []byte
		if b.isCatchAll {
			payload = FlattenMismatchOffsetRows(b.rows)
		} else if transposed {
			payload = columnMajorBytes(b.rows, b.width)
		} else {
			payload = rowMajorBytes(b.rows, b.width)
		}

		var catchAllByte, transposedByte uint8
		if b.isCatchAll {
			catchAllByte = 1
		}
		if transposed {
			transposedByte = 1
		}
		if err := writeUint8(dst, catchAllByte); err != nil {
			return err
		}
		if err := writeUint32(dst, uint32(b.width)); err != nil {
			return err
		}
		if err := writeUint32(dst, uint32(len(b.rows))); err != nil {
			return err
		}
		if err := writeUint8(dst, transposedByte); err != nil {
			return err
		}
		if err := WriteColumn(dst, payload, tag, level); err != nil {
			return err
		}
	}
	return nil
}

// ReadMismatchOffsets reverses WriteMismatchOffsets, reconstructing one row
// per entry in misCounts (in original read order) by consulting each
// read's recorded mismatch count to decide which bucket its row was
// written into.
func ReadMismatchOffsets(src io.Reader, misCounts []byte) ([]MismatchOffsetRow, error) {
	bucketCount, err := readUint8(src)
	if err != nil {
		return nil, err
	}

	dedicated := make(map[int][]MismatchOffsetRow)
	var catchAll []MismatchOffsetRow

	for i := 0; i < int(bucketCount); i++ {
		isCatchAll, err := readUint8(src)
		if err != nil {
			return nil, err
		}
		width32, err := readUint32(src)
		if err != nil {
			return nil, err
		}
		rowCount32, err := readUint32(src)
		if err != nil {
			return nil, err
		}
		transposed, err := readUint8(src)
		if err != nil {
			return nil, err
		}
		payload, err := ReadColumn(src)
		if err != nil {
			return nil, err
		}

		width, rowCount := int(width32), int(rowCount32)
		if isCatchAll != 0 {
			// WriteMismatchOffsets emits the catch-all bucket last, so
			// every dedicated width is already known here.
			var catchAllCounts []byte
			for _, m := range misCounts {
				if _, ok := dedicated[int(m)]; !ok {
					catchAllCounts = append(catchAllCounts, m)
				}
			}
			rows, err := rowsFromFlat(payload, catchAllCounts, rowCount)
			if err != nil {
				return nil, err
			}
			catchAll = rows
			continue
		}
		var rows []MismatchOffsetRow
		if transposed != 0 {
			rows = rowsFromColumnMajor(payload, width, rowCount)
		} else {
			rows = rowsFromRowMajor(payload, width, rowCount)
		}
		dedicated[width] = rows
	}

	cursors := make(map[int]int, len(dedicated))
	catchAllAt := 0
	out := make([]MismatchOffsetRow, len(misCounts))
	for i, m := range misCounts {
		w := int(m)
		if w == 0 {
			continue
		}
		if rows, ok := dedicated[w]; ok {
			if cursors[w] >= len(rows) {
				return nil, fmt.Errorf("codec: width-%d mismatch-offsets bucket exhausted before read %d", w, i)
			}
			out[i] = rows[cursors[w]]
			cursors[w]++
			continue
		}
		if catchAllAt >= len(catchAll) {
			return nil, fmt.Errorf("codec: catch-all bucket exhausted before read %d", i)
		}
		out[i] = catchAll[catchAllAt]
		catchAllAt++
	}
	return out, nil
}

// rowsFromFlat splits a catch-all bucket's flat byte payload into rows,
// using misCounts to find the width of each of the bucket's rowCount
// entries in turn. misCounts must hold only the widths of the catch-all
// rows, in read order; the caller (ReadMismatchOffsets) removes the widths
// that have a dedicated bucket before calling. Zero widths are skipped
// (width-0 reads never reach a bucket).
func rowsFromFlat(data []byte, misCounts []byte, rowCount int) ([]MismatchOffsetRow, error) {
	rows := make([]MismatchOffsetRow, 0, rowCount)
	pos := 0
	for _, m := range misCounts {
		if len(rows) == rowCount {
			break
		}
		n := int(m)
		if n == 0 {
			continue
		}
		if pos+n*4 > len(data) {
			return nil, fmt.Errorf("codec: catch-all mismatch-offsets bucket is shorter than its declared row count")
		}
		row := make(MismatchOffsetRow, n)
		for j := 0; j < n; j++ {
			row[j] = binary.LittleEndian.Uint32(data[pos : pos+4])
			pos += 4
		}
		rows = append(rows, row)
	}
	if len(rows) != rowCount {
		return nil, fmt.Errorf("codec: catch-all mismatch-offsets bucket declared %d rows, found %d", rowCount, len(rows))
	}
	return rows, nil
}

func writeUint8(w io.Writer, v uint8) error {
	_, err := w.Write([]byte{v})
	return err
}

func readUint8(r io.Reader) (uint8, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, fmt.Errorf("codec: read byte: %w", err)
	}
	return b[0], nil
}

func writeUint32(w io.Writer, v uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func readUint32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, fmt.Errorf("codec: read uint32: %w", err)
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}
