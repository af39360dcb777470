// Copyright 2017, Kerby Shedden and the Muscato contributors.

// Package readslist implements the separated-pseudogenome output builder:
// a multi-stream writer that serializes the matched reads list as parallel
// columns, either to files (renamed atomically into place) or to
// in-memory buffers feeding the compression driver, generalizing
// SeparatedPseudoGenomeOutputBuilder.
package readslist

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/kshedden/pgmatcher/internal/config"
	"github.com/kshedden/pgmatcher/internal/readsmatcher"
)

// Column identifies one of the parallel output streams.
type Column int

const (
	ColPg Column = iota
	ColProps
	ColPos
	ColOff
	ColIdx
	ColRC
	ColMisCnt
	ColMisSym
	ColMisPos
	ColMisRevOff
	ColMapOff
	ColMapLen
)

// Suffix returns the file suffix assigned to col.
func (c Column) Suffix() string {
	switch c {
	case ColPg:
		return ".pg"
	case ColProps:
		return "_prop.pg"
	case ColPos:
		return "_rl_pos.pg"
	case ColOff:
		return "_rl_off.pg"
	case ColIdx:
		return "_rl_idx.pg"
	case ColRC:
		return "_rl_rc.pg"
	case ColMisCnt:
		return "_rl_mis_cnt.pg"
	case ColMisSym:
		return "_rl_mis_sym.pg"
	case ColMisPos:
		return "_rl_mis_pos.pg"
	case ColMisRevOff:
		return "_rl_mis_roff.pg"
	case ColMapOff:
		return "_map_off.pg"
	case ColMapLen:
		return "_map_len.pg"
	default:
		return ""
	}
}

// buildOrder is the fixed order in which Build renames columns into place.
// Renames happen one at a time; if one fails, Build stops there, the
// columns before it are already under their final names and the rest stay
// under their .temp names.
var buildOrder = []Column{ColPg, ColProps, ColPos, ColOff, ColIdx, ColRC, ColMisCnt, ColMisSym, ColMisPos, ColMisRevOff, ColMapOff, ColMapLen}

// ColumnSink replaces the source's dual on-the-fly-file vs. in-memory
// plumbing with a single interface.
type ColumnSink interface {
	io.Writer
	// Bytes returns the sink's accumulated content for in-memory sinks,
	// or nil for file-backed sinks (whose content lives on disk).
	Bytes() []byte
	// Finish flushes and, for a file-backed sink, renames its temp file
	// into place. It is a no-op for in-memory sinks.
	Finish() error
}

// fileSink writes to path+".temp" and renames to path on Finish.
type fileSink struct {
	path string
	fid  *os.File
	w    *bufio.Writer
}

func newFileSink(path string) (*fileSink, error) {
	fid, err := os.Create(path + ".temp")
	if err != nil {
		return nil, fmt.Errorf("readslist: create %s.temp: %w", path, err)
	}
	return &fileSink{path: path, fid: fid, w: bufio.NewWriter(fid)}, nil
}

func (s *fileSink) Write(p []byte) (int, error) { return s.w.Write(p) }
func (s *fileSink) Bytes() []byte               { return nil }

func (s *fileSink) Finish() error {
	if err := s.w.Flush(); err != nil {
		return err
	}
	if err := s.fid.Close(); err != nil {
		return err
	}
	return os.Rename(s.path+".temp", s.path)
}

// bufferSink accumulates its column entirely in memory, feeding the
// compression driver directly ("buffered" mode).
type bufferSink struct {
	buf bytes.Buffer
}

func newBufferSink() *bufferSink                  { return &bufferSink{} }
func (s *bufferSink) Write(p []byte) (int, error) { return s.buf.Write(p) }
func (s *bufferSink) Bytes() []byte               { return s.buf.Bytes() }
func (s *bufferSink) Finish() error               { return nil }

// ReadEntry is one matched read's data, written in lockstep across every
// enabled column by WriteReadEntry.
type ReadEntry struct {
	Pos        uint64
	OrigIndex  int
	IsRevComp  bool
	Mismatches []readsmatcher.Mismatch
}

// Builder drives a homogeneous array of ColumnSinks indexed by Column, in
// place of the source's fixed ostream* fields.
type Builder struct {
	opts     config.WriteOptions
	sinks    map[Column]ColumnSink
	prefix   string
	onTheFly bool

	lastPos  uint64
	counter  int
}

// NewFileBuilder opens temp-file sinks for prefix, ready for on-the-fly
// writing.
func NewFileBuilder(prefix string, opts config.WriteOptions) (*Builder, error) {
	b := &Builder{opts: opts, sinks: make(map[Column]ColumnSink), prefix: prefix, onTheFly: true}
	for _, c := range b.enabledColumns() {
		s, err := newFileSink(prefix + c.Suffix())
		if err != nil {
			b.abort()
			return nil, err
		}
		b.sinks[c] = s
	}
	return b, nil
}

// NewBufferedBuilder holds every enabled column in memory ("buffered"
// mode).
func NewBufferedBuilder(opts config.WriteOptions) *Builder {
	b := &Builder{opts: opts, sinks: make(map[Column]ColumnSink)}
	for _, c := range b.enabledColumns() {
		b.sinks[c] = newBufferSink()
	}
	return b
}

func (b *Builder) enabledColumns() []Column {
	cols := []Column{ColIdx, ColRC, ColMisCnt, ColMisSym}
	if b.opts.AbsolutePositions {
		cols = append(cols, ColPos)
	} else {
		cols = append(cols, ColOff)
	}
	if b.opts.ReverseOffsetMismatches {
		cols = append(cols, ColMisRevOff)
	} else {
		cols = append(cols, ColMisPos)
	}
	return cols
}

func (b *Builder) abort() {
	for _, s := range b.sinks {
		if fs, ok := s.(*fileSink); ok {
			fs.fid.Close()
			os.Remove(fs.path + ".temp")
		}
	}
}

// WriteReadEntry writes e to every enabled column, in pseudogenome order.
func (b *Builder) WriteReadEntry(e ReadEntry) error {
	if b.opts.AbsolutePositions {
		if err := writeUint64(b.sinks[ColPos], e.Pos); err != nil {
			return err
		}
	} else {
		delta := e.Pos - b.lastPos
		if err := writeUint64(b.sinks[ColOff], delta); err != nil {
			return err
		}
		b.lastPos = e.Pos
	}

	if err := writeUint32(b.sinks[ColIdx], uint32(e.OrigIndex)); err != nil {
		return err
	}

	var rc byte
	if e.IsRevComp {
		rc = 1
	}
	if _, err := b.sinks[ColRC].Write([]byte{rc}); err != nil {
		return err
	}

	if _, err := b.sinks[ColMisCnt].Write([]byte{byte(len(e.Mismatches))}); err != nil {
		return err
	}

	misPosCol := b.sinks[ColMisPos]
	if b.opts.ReverseOffsetMismatches {
		misPosCol = b.sinks[ColMisRevOff]
	}
	for _, mm := range e.Mismatches {
		if _, err := b.sinks[ColMisSym].Write([]byte{mm.Base}); err != nil {
			return err
		}
		if err := writeUint32(misPosCol, uint32(mm.Offset)); err != nil {
			return err
		}
	}

	b.counter++
	return nil
}

// Count returns the number of read entries written so far.
func (b *Builder) Count() int { return b.counter }

// Build finalizes every column sink. For a file-backed builder this
// renames each temp file into place in buildOrder (see buildOrder for what
// a failed rename leaves behind); for a buffered builder it is a no-op beyond
// flushing (there is nothing to rename).
func (b *Builder) Build() error {
	for _, c := range buildOrder {
		s, ok := b.sinks[c]
		if !ok {
			continue
		}
		if err := s.Finish(); err != nil {
			return err
		}
	}
	return nil
}

// BuildTo writes every buffered column out to prefix+suffix files, for a
// buffered builder that was not told its prefix at construction time.
func (b *Builder) BuildTo(prefix string) error {
	for c, s := range b.sinks {
		data := s.Bytes()
		if data == nil {
			continue // file-backed sink; already on disk under its own prefix
		}
		if err := os.WriteFile(prefix+c.Suffix(), data, 0644); err != nil {
			return err
		}
	}
	return nil
}

// Column returns the raw bytes accumulated for col in a buffered builder,
// for callers (the compression driver) that want to compress a specific
// column without a full BuildTo pass.
func (b *Builder) Column(col Column) []byte {
	if s, ok := b.sinks[col]; ok {
		return s.Bytes()
	}
	return nil
}

func writeUint64(w io.Writer, v uint64) error {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func writeUint32(w io.Writer, v uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	_, err := w.Write(b[:])
	return err
}
