// Copyright 2017, Kerby Shedden and the Muscato contributors.

// Package codec drives the entropy back-end for the reads-list output
// columns: a per-column codec choice, a small binary header, and the
// stratified mismatch-offset transpose.
package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/golang/snappy"
	"github.com/ulikunitz/xz/lzma"
)

// Tag identifies the codec used for one compressed column, written as the
// uint8 codec tag in the column header.
type Tag uint8

const (
	TagSnappy Tag = iota
	TagLZMA
	TagLZMA2
	// TagPPMd7 is accepted for wire compatibility with the reference
	// codec table. No Go PPMd implementation exists anywhere in the
	// retrieval pack or is otherwise available; this tag is dispatched
	// to the LZMA2 backend (see ForTag, below), a substitution recorded
	// in DESIGN.md rather than silently made.
	TagPPMd7
)

// Codec compresses and decompresses a single column's bytes.
type Codec interface {
	Encode(dst io.Writer, src []byte) error
	Decode(dst io.Writer, src io.Reader) error
}

type snappyCodec struct{}

func (snappyCodec) Encode(dst io.Writer, src []byte) error {
	w := snappy.NewBufferedWriter(dst)
	if _, err := w.Write(src); err != nil {
		return err
	}
	return w.Close()
}

func (snappyCodec) Decode(dst io.Writer, src io.Reader) error {
	r := snappy.NewReader(src)
	_, err := io.Copy(dst, r)
	return err
}

type lzmaCodec struct{ preset int }

func (c lzmaCodec) Encode(dst io.Writer, src []byte) error {
	w, err := lzma.NewWriter(dst)
	if err != nil {
		return err
	}
	if _, err := w.Write(src); err != nil {
		return err
	}
	return w.Close()
}

func (lzmaCodec) Decode(dst io.Writer, src io.Reader) error {
	r, err := lzma.NewReader(src)
	if err != nil {
		return err
	}
	_, err = io.Copy(dst, r)
	return err
}

type lzma2Codec struct{ preset int }

func (c lzma2Codec) Encode(dst io.Writer, src []byte) error {
	cfg := lzma.Writer2Config{}
	w, err := cfg.NewWriter2(dst)
	if err != nil {
		return err
	}
	if _, err := w.Write(src); err != nil {
		return err
	}
	return w.Close()
}

func (lzma2Codec) Decode(dst io.Writer, src io.Reader) error {
	cfg := lzma.Reader2Config{}
	r, err := cfg.NewReader2(src)
	if err != nil {
		return err
	}
	_, err = io.Copy(dst, r)
	return err
}

// ForTag returns the Codec implementation backing tag. level is stored on
// the LZMA and LZMA2 codecs (PPMd7 stores level+3) but their Encode does
// not read it: every LZMA and LZMA2 stream is written with the library's
// default settings, whatever level is given.
func ForTag(tag Tag, level int) (Codec, error) {
	switch tag {
	case TagSnappy:
		return snappyCodec{}, nil
	case TagLZMA:
		return lzmaCodec{preset: level}, nil
	case TagLZMA2:
		return lzma2Codec{preset: level}, nil
	case TagPPMd7:
		return lzma2Codec{preset: level + 3}, nil
	default:
		return nil, fmt.Errorf("codec: unknown tag %d", tag)
	}
}

// Header is the per-column preamble: destination-length (uint64),
// source-length (uint64), codec tag (uint8).
type Header struct {
	DestLength uint64
	SrcLength  uint64
	Tag        Tag
}

// WriteColumn compresses src with the codec named by tag/level and writes
// Header followed by the compressed payload to dst.
func WriteColumn(dst io.Writer, src []byte, tag Tag, level int) error {
	c, err := ForTag(tag, level)
	if err != nil {
		return err
	}

	var payload bytes.Buffer
	if err := c.Encode(&payload, src); err != nil {
		return fmt.Errorf("codec: encode: %w", err)
	}

	h := Header{DestLength: uint64(payload.Len()), SrcLength: uint64(len(src)), Tag: tag}
	if err := writeHeader(dst, h); err != nil {
		return err
	}
	_, err = dst.Write(payload.Bytes())
	return err
}

// ReadColumn reads a Header and its payload from src, decompresses it, and
// returns the original column bytes. It returns an error (internal
// consistency failure) if the decompressed length does not match the
// header's recorded source length.
func ReadColumn(src io.Reader) ([]byte, error) {
	h, err := readHeader(src)
	if err != nil {
		return nil, err
	}

	c, err := ForTag(h.Tag, 0)
	if err != nil {
		return nil, err
	}

	payload := io.LimitReader(src, int64(h.DestLength))
	var out bytes.Buffer
	if err := c.Decode(&out, payload); err != nil {
		return nil, fmt.Errorf("codec: decode: %w", err)
	}
	if uint64(out.Len()) != h.SrcLength {
		return nil, fmt.Errorf("codec: decompressed length %d does not match recorded source length %d", out.Len(), h.SrcLength)
	}
	return out.Bytes(), nil
}

func writeHeader(w io.Writer, h Header) error {
	var buf [17]byte
	binary.LittleEndian.PutUint64(buf[0:8], h.DestLength)
	binary.LittleEndian.PutUint64(buf[8:16], h.SrcLength)
	buf[16] = byte(h.Tag)
	_, err := w.Write(buf[:])
	return err
}

func readHeader(r io.Reader) (Header, error) {
	var buf [17]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return Header{}, fmt.Errorf("codec: read header: %w", err)
	}
	return Header{
		DestLength: binary.LittleEndian.Uint64(buf[0:8]),
		SrcLength:  binary.LittleEndian.Uint64(buf[8:16]),
		Tag:        Tag(buf[16]),
	}, nil
}
