// Copyright 2017, Kerby Shedden and the Muscato contributors.

// Command pgmatchgen generates a synthetic pseudogenome and a set of reads
// seeded into it with a controlled mismatch count, for exercising the
// reads matcher end-to-end, generalizing muscato_gendat.
//
// Fixture parameters can be supplied on the command line or via a TOML
// descriptor (the same format tests/tests.toml used for muscato's own
// integration-test fixtures).
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/kshedden/pgmatcher/internal/dna"
)

// Fixture describes one synthetic genome/read-set to generate.
type Fixture struct {
	PgLength      int
	NumReads      int
	ReadLength    int
	MaxMismatches int
	Seed          int64
	PgOut         string
	ReadsOut      string
}

func main() {
	var (
		fixtureFile   = flag.String("fixture", "", "TOML file describing one or more fixtures under a [[fixture]] array")
		pgLength      = flag.Int("PgLength", 10000, "length of the generated pseudogenome")
		numReads      = flag.Int("NumReads", 1000, "number of reads to generate")
		readLength    = flag.Int("ReadLength", 100, "length of each read")
		maxMismatches = flag.Int("MaxMismatches", 0, "number of mismatches to seed into each read")
		seed          = flag.Int64("Seed", 1, "random seed")
		pgOut         = flag.String("PgOut", "pg.pg", "pseudogenome output file")
		readsOut      = flag.String("ReadsOut", "reads.txt", "reads output file")
	)
	flag.Parse()

	var fixtures []Fixture
	if *fixtureFile != "" {
		var doc struct{ Fixture []Fixture }
		if _, err := toml.DecodeFile(*fixtureFile, &doc); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[0], err)
			os.Exit(1)
		}
		fixtures = doc.Fixture
	} else {
		fixtures = []Fixture{{
			PgLength:      *pgLength,
			NumReads:      *numReads,
			ReadLength:    *readLength,
			MaxMismatches: *maxMismatches,
			Seed:          *seed,
			PgOut:         *pgOut,
			ReadsOut:      *readsOut,
		}}
	}

	for _, f := range fixtures {
		if err := generate(f); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[0], err)
			os.Exit(1)
		}
	}
}

var bases = [4]byte{'A', 'C', 'G', 'T'}

func randomSeq(r *rand.Rand, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = bases[r.Intn(4)]
	}
	return out
}

// mutate flips exactly k distinct positions of seq to a different base,
// the controlled-mismatch-count counterpart of muscato_gendat's purely
// random read generation.
func mutate(r *rand.Rand, seq []byte, k int) []byte {
	out := make([]byte, len(seq))
	copy(out, seq)
	if k <= 0 || len(out) == 0 {
		return out
	}
	if k > len(out) {
		k = len(out)
	}
	positions := r.Perm(len(out))[:k]
	for _, p := range positions {
		orig := out[p]
		for {
			nb := bases[r.Intn(4)]
			if nb != orig {
				out[p] = nb
				break
			}
		}
	}
	return out
}

func generate(f Fixture) error {
	r := rand.New(rand.NewSource(f.Seed))

	pg := randomSeq(r, f.PgLength)
	if err := os.WriteFile(f.PgOut, pg, 0644); err != nil {
		return fmt.Errorf("write %s: %w", f.PgOut, err)
	}

	readsFid, err := os.Create(f.ReadsOut)
	if err != nil {
		return fmt.Errorf("create %s: %w", f.ReadsOut, err)
	}
	defer readsFid.Close()

	maxStart := f.PgLength - f.ReadLength
	if maxStart < 0 {
		return fmt.Errorf("ReadLength (%d) exceeds PgLength (%d)", f.ReadLength, f.PgLength)
	}

	for i := 0; i < f.NumReads; i++ {
		start := r.Intn(maxStart + 1)
		window := pg[start : start+f.ReadLength]
		read := mutate(r, window, f.MaxMismatches)
		if r.Intn(2) == 0 {
			read = dna.ReverseComplement(read)
		}
		if _, err := readsFid.Write(read); err != nil {
			return err
		}
		if _, err := readsFid.Write([]byte("\n")); err != nil {
			return err
		}
	}

	return nil
}
