// Package pdb locates, validates and trims PDB structure files.
package pdb

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"proteindomains.org/protdom/internal/data"
)

// Structure sources as recorded in the trimming summary.
const (
	SourceAlphaFold = "AlphaFold"
	SourceCustom    = "Custom PDB"
)

// Source labels a structure file by its naming convention.
func Source(path string) string {
	if strings.Contains(filepath.Base(path), "AF-") {
		return SourceAlphaFold
	}
	return SourceCustom
}

// ValidHeader reports whether the file starts like a PDB structure,
// either with coordinates or a header record.
func ValidHeader(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		return false
	}
	first := strings.TrimSpace(scanner.Text())
	return strings.HasPrefix(first, "ATOM") || strings.HasPrefix(first, "HEADER")
}

// Validate additionally requires at least one ATOM record, so headers
// without coordinates don't pass as usable structures.
func Validate(path string) bool {
	if !ValidHeader(path) {
		return false
	}

	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if strings.HasPrefix(scanner.Text(), "ATOM") {
			return true
		}
	}
	return false
}

// Trimmer cuts structures down to domain ranges.
type Trimmer struct {
	AcceptCustom bool
	Strict       bool
	logger       *zap.SugaredLogger
}

func NewTrimmer(acceptCustom, strict bool, logger *zap.SugaredLogger) *Trimmer {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Trimmer{
		AcceptCustom: acceptCustom,
		Strict:       strict,
		logger:       logger,
	}
}

// FindStructure locates the structure file for an accession. The
// AlphaFold naming convention AF-{acc}-F1.pdb is tried first; custom
// files are considered only when AcceptCustom is set. Strict custom
// matching requires the accession to be an underscore delimited token
// of the file stem, flexible matching accepts any file containing the
// accession in its name. Invalid files are skipped; with several valid
// matches the first one wins.
func (t *Trimmer) FindStructure(dir, accession string) (string, error) {
	alphafold := filepath.Join(dir, fmt.Sprintf("AF-%s-F1.pdb", accession))
	if _, err := os.Stat(alphafold); err == nil {
		if Validate(alphafold) {
			return alphafold, nil
		}
		t.logger.Warnw("AlphaFold structure exists but is invalid", "accession", accession, "path", alphafold)
	}

	if t.AcceptCustom {
		candidates, err := filepath.Glob(filepath.Join(dir, "*.pdb"))
		if err != nil {
			return "", err
		}

		var matches []string
		for _, candidate := range candidates {
			name := filepath.Base(candidate)
			var matched bool
			if t.Strict {
				stem := strings.TrimSuffix(name, filepath.Ext(name))
				for _, token := range strings.Split(stem, "_") {
					if token == accession {
						matched = true
						break
					}
				}
			} else {
				matched = strings.Contains(name, accession)
			}
			if !matched {
				continue
			}

			if !Validate(candidate) {
				t.logger.Warnw("matching structure is invalid", "accession", accession, "path", candidate)
				continue
			}
			matches = append(matches, candidate)
		}

		if len(matches) > 0 {
			if len(matches) > 1 {
				t.logger.Warnw("multiple matching structures, using first valid match",
					"accession", accession, "path", matches[0])
			}
			return matches[0], nil
		}
	}

	return "", data.ErrNoStructure
}

// TrimStats counts the coordinate records seen while trimming.
type TrimStats struct {
	TotalAtoms int
	KeptAtoms  int
}

// TrimFile writes the ATOM records of src whose residue sequence
// number lies within the domain range to dst, along with TER and END
// records. Residue numbers live in columns 23-26 of an ATOM record;
// records with an unparsable number are skipped. A range that selects
// no atoms at all is an error and leaves no output file behind.
func (t *Trimmer) TrimFile(src, dst string, r data.DomainRange) (TrimStats, error) {
	var stats TrimStats

	in, err := os.Open(src)
	if err != nil {
		return stats, err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return stats, err
	}

	writer := bufio.NewWriter(out)
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "ATOM"):
			stats.TotalAtoms++
			if len(line) < 26 {
				t.logger.Warnw("short ATOM record", "path", src)
				continue
			}
			residue, err := strconv.Atoi(strings.TrimSpace(line[22:26]))
			if err != nil {
				t.logger.Warnw("invalid residue number in ATOM record", "path", src)
				continue
			}
			if residue >= r.Start && residue <= r.End {
				fmt.Fprintln(writer, line)
				stats.KeptAtoms++
			}
		case strings.HasPrefix(line, "TER"), strings.HasPrefix(line, "END"):
			fmt.Fprintln(writer, line)
		}
	}

	if err := scanner.Err(); err != nil {
		out.Close()
		os.Remove(dst)
		return stats, err
	}
	if err := writer.Flush(); err != nil {
		out.Close()
		os.Remove(dst)
		return stats, err
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return stats, err
	}

	if stats.KeptAtoms == 0 {
		os.Remove(dst)
		return stats, fmt.Errorf("%s has %d atoms, none in range %s: %w",
			filepath.Base(src), stats.TotalAtoms, r, data.ErrNoAtomsInRange)
	}

	t.logger.Infow("trimmed structure", "src", filepath.Base(src),
		"range", r.String(), "kept_atoms", stats.KeptAtoms, "total_atoms", stats.TotalAtoms)
	return stats, nil
}
