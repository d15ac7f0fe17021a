package data

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
)

// rangePattern matches one line of a domain ranges file, e.g.
// "Q9XLZ3[217-398]".
var rangePattern = regexp.MustCompile(`^(\w+)\[(\d+)-(\d+)\]`)

// RangeSet groups the domain ranges recorded for one accession, in
// file order.
type RangeSet struct {
	Accession string
	Ranges    []DomainRange
}

// FormatRange renders the domain ranges file representation of a
// single domain.
func FormatRange(accession string, r DomainRange) string {
	return fmt.Sprintf("%s[%d-%d]", accession, r.Start, r.End)
}

// ReadRanges parses a domain ranges file as written by the InterPro
// stage. Lines that do not match the accession[start-end] shape are
// ignored, matching the tolerant behaviour users rely on to annotate
// these files by hand. An input without a single valid line is an
// error.
func ReadRanges(r io.Reader) ([]RangeSet, error) {
	var (
		sets  []RangeSet
		index = make(map[string]int)
	)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		match := rangePattern.FindStringSubmatch(scanner.Text())
		if match == nil {
			continue
		}

		start, err := strconv.Atoi(match[2])
		if err != nil {
			continue
		}
		end, err := strconv.Atoi(match[3])
		if err != nil {
			continue
		}

		accession := match[1]
		i, ok := index[accession]
		if !ok {
			i = len(sets)
			index[accession] = i
			sets = append(sets, RangeSet{Accession: accession})
		}
		sets[i].Ranges = append(sets[i].Ranges, DomainRange{Start: start, End: end})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if len(sets) == 0 {
		return nil, ErrNoRanges
	}

	return sets, nil
}
