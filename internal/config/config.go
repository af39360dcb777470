// Copyright 2017, Kerby Shedden and the Muscato contributors.

// Package config holds the JSON-serializable configuration shared by the
// reads matcher, the pseudogenome self-matcher, and their CLI drivers,
// generalizing utils.Config from a single screening pass into the full set
// of matcher and output-builder options these tools expose.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// DisabledPrefixLength is the sentinel for Config.MatchPrefixLength meaning
// "match the whole read".
const DisabledPrefixLength = -1

// MatchMode names a first-accepted-match or best-of-candidates policy,
// generalizing utils.Config.MatchMode beyond the screening pass. Validate
// checks its value, but the reads matcher does not consult it: a match is
// always replaced only by one with strictly fewer mismatches.
type MatchMode string

const (
	MatchFirst MatchMode = "first"
	MatchBest  MatchMode = "best"
)

// Config is the configuration record threaded through constructors in
// place of the source's process-wide mutable flags
// (enableReadPositionRepresentation, enableRevOffsetMismatchesRepresentation,
// plainTextWriteMode all live here as WriteOptions fields instead).
type Config struct {
	// ReadLength is the fixed length of every read.
	ReadLength int

	// MatchPrefixLength is the effective matching length cap, or
	// DisabledPrefixLength to match the full read.
	MatchPrefixLength int

	// MinMismatches is the early-exit threshold: once a read is matched
	// at or below this many mismatches, further hits are ignored.
	MinMismatches int

	// MaxMismatches is the target number of mismatches a candidate match
	// may have and still be accepted.
	MaxMismatches int

	// AllowedMaxMismatches is raised to MaxMismatches by Validate if it is
	// positive and lower (flag -M); zero is left unchanged.
	AllowedMaxMismatches int

	// RevComplPg also matches against the reverse complement of Pg
	// (flag -r).
	RevComplPg bool

	// MinMatchLength is the minimum accepted length for a Pg-to-Pg
	// substring match.
	MinMatchLength int

	// MinBlockDinuc, when > 0, is the minimum CountDinuc score a q-gram
	// block must have to be registered as a seed pattern in approximate
	// matching. Zero disables the filter.
	MinBlockDinuc int

	// TempDir names a directory for temporary files, mirroring
	// utils.Config.TempDir. It is stored and saved only: no code in this
	// module reads it, and no directory is generated when it is blank.
	TempDir string

	// LogDir is the directory where phase log files are written,
	// mirroring utils.Config.LogDir.
	LogDir string

	// MatchMode is MatchFirst or MatchBest.
	MatchMode MatchMode

	// MismatchesCountDestsLimit caps the total number of per-mismatch-
	// count buckets, a trailing catch-all bucket included, that the
	// compression driver partitions the mismatch-offsets column into
	// before compressing it (1 at the fast level, up to 12 at higher
	// levels). 1 means no stratification: every offset is compressed as a
	// single stream.
	MismatchesCountDestsLimit int

	// Write holds the output-representation switches that replace the
	// source's global booleans.
	Write WriteOptions
}

// WriteOptions replaces the source's process-wide mutable booleans
// (enableReadPositionRepresentation, enableRevOffsetMismatchesRepresentation,
// plainTextWriteMode) with an explicit record passed to the output builder.
type WriteOptions struct {
	// AbsolutePositions writes absolute read positions instead of
	// delta offsets from the prior matched read (flag -a).
	AbsolutePositions bool

	// ReverseOffsetMismatches encodes mismatch positions as reverse
	// offsets from the end of the read rather than forward offsets
	// from the start (flag -e).
	ReverseOffsetMismatches bool

	// PlainText records the plain-text numeric write mode (flag -t). The
	// readslist builder does not consult it: every numeric column is
	// written as little-endian binary whether or not it is set.
	PlainText bool

	// VerboseInfo enables the per-read match diagnostic log (flag -i).
	VerboseInfo bool
}

// Default returns a Config with the field values the reference CLI assumes
// when a flag is omitted.
func Default() *Config {
	return &Config{
		MatchPrefixLength:         DisabledPrefixLength,
		MinMatchLength:            36,
		MatchMode:                 MatchFirst,
		AllowedMaxMismatches:      0,
		MismatchesCountDestsLimit: 1,
	}
}

// Read loads a Config from a JSON file, generalizing utils.ReadConfig to
// return an error instead of panicking on a missing or malformed file.
func Read(path string) (*Config, error) {
	fid, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer fid.Close()

	c := Default()
	dec := json.NewDecoder(fid)
	if err := dec.Decode(c); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return c, nil
}

// Save writes c to path as indented JSON, creating or truncating the file.
func Save(c *Config, path string) error {
	fid, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("config: create %s: %w", path, err)
	}
	defer fid.Close()

	enc := json.NewEncoder(fid)
	enc.SetIndent("", "  ")
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// Validate checks c for internally inconsistent settings. It returns the
// first violation found; callers should treat any non-nil result as fatal
// before work starts.
func Validate(c *Config) error {
	if c.ReadLength <= 0 {
		return fmt.Errorf("config: ReadLength must be positive, got %d", c.ReadLength)
	}
	if c.MinMismatches > c.MaxMismatches {
		return fmt.Errorf("config: MinMismatches (%d) > MaxMismatches (%d)", c.MinMismatches, c.MaxMismatches)
	}
	if c.MaxMismatches < 0 {
		return fmt.Errorf("config: MaxMismatches must be non-negative, got %d", c.MaxMismatches)
	}
	if c.AllowedMaxMismatches > 0 && c.AllowedMaxMismatches < c.MaxMismatches {
		c.AllowedMaxMismatches = c.MaxMismatches
	}
	if c.MatchPrefixLength != DisabledPrefixLength && c.MatchPrefixLength <= 0 {
		return fmt.Errorf("config: MatchPrefixLength must be positive or DisabledPrefixLength, got %d", c.MatchPrefixLength)
	}
	if c.MatchPrefixLength != DisabledPrefixLength && c.MatchPrefixLength > c.ReadLength {
		return fmt.Errorf("config: MatchPrefixLength (%d) exceeds ReadLength (%d)", c.MatchPrefixLength, c.ReadLength)
	}
	if c.MinMatchLength <= 0 {
		return fmt.Errorf("config: MinMatchLength must be positive, got %d", c.MinMatchLength)
	}
	if c.MismatchesCountDestsLimit <= 0 {
		return fmt.Errorf("config: MismatchesCountDestsLimit must be positive, got %d", c.MismatchesCountDestsLimit)
	}
	switch c.MatchMode {
	case "", MatchFirst, MatchBest:
	default:
		return fmt.Errorf("config: MatchMode must be %q or %q, got %q", MatchFirst, MatchBest, c.MatchMode)
	}
	return nil
}

// MatchingLength returns min(ReadLength, MatchPrefixLength), or ReadLength
// when the prefix length is disabled.
func (c *Config) MatchingLength() int {
	if c.MatchPrefixLength == DisabledPrefixLength {
		return c.ReadLength
	}
	if c.MatchPrefixLength < c.ReadLength {
		return c.MatchPrefixLength
	}
	return c.ReadLength
}
