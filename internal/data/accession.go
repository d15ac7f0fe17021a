package data

import (
	"bufio"
	"io"
	"regexp"
	"strings"
)

// accessionPattern is the official UniProtKB accession format,
// https://www.uniprot.org/help/accession_numbers
var accessionPattern = regexp.MustCompile(`^([OPQ][0-9][A-Z0-9]{3}[0-9]|[A-NR-Z][0-9]([A-Z][A-Z0-9]{2}[0-9]){1,2})$`)

// ValidAccession reports whether acc looks like a UniProtKB accession.
func ValidAccession(acc string) bool {
	return accessionPattern.MatchString(acc)
}

// ReadAccessions parses an accession list, one accession per line.
// Blank lines and '#' comment lines are skipped, duplicates are
// dropped keeping the first occurrence. Lines are not validated here;
// callers decide how to treat suspicious entries.
func ReadAccessions(r io.Reader) ([]string, error) {
	var accessions []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if seen[line] {
			continue
		}
		seen[line] = true
		accessions = append(accessions, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return accessions, nil
}

// SplitEntryList parses a list of InterPro entry identifiers that may
// be comma-separated, newline-separated, or both.
func SplitEntryList(raw string) []string {
	var entries []string
	seen := make(map[string]bool)

	for _, chunk := range strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == '\n' || r == '\r'
	}) {
		entry := strings.TrimSpace(chunk)
		if entry == "" || seen[entry] {
			continue
		}
		seen[entry] = true
		entries = append(entries, entry)
	}

	return entries
}
