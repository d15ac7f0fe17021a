// Package fasta contains minimal helpers to read and write FASTA
// formatted sequence data. It intentionally keeps parsing simple and
// conservative.
package fasta

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Record represents a single FASTA record, header without the leading
// '>' and the sequence with line breaks removed.
type Record struct {
	Header   string
	Sequence string
}

// Accession extracts the protein accession from a record header.
// UniProt style headers like "sp|Q9XLZ3|NAME_DICDI ..." yield the
// middle field, anything else yields the first whitespace separated
// word.
func (r Record) Accession() string {
	if parts := strings.Split(r.Header, "|"); len(parts) >= 2 {
		return parts[1]
	}
	fields := strings.Fields(r.Header)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// Parse reads all FASTA records from r. Lines beginning with '>'
// denote headers, sequence lines are concatenated. Content before the
// first header is ignored.
func Parse(r io.Reader) ([]Record, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var records []Record
	var current Record
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, ">") {
			if current.Header != "" {
				records = append(records, current)
			}
			current = Record{Header: strings.TrimSpace(line[1:])}
		} else {
			current.Sequence += strings.TrimSpace(line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if current.Header != "" {
		records = append(records, current)
	}

	return records, nil
}

// Index maps each record's accession to its sequence. Later duplicates
// of an accession are dropped.
func Index(records []Record) map[string]string {
	sequences := make(map[string]string, len(records))
	for _, record := range records {
		acc := record.Accession()
		if acc == "" {
			continue
		}
		if _, ok := sequences[acc]; ok {
			continue
		}
		sequences[acc] = record.Sequence
	}
	return sequences
}

// Write renders records with the sequence on a single line each.
func Write(w io.Writer, records []Record) error {
	for _, record := range records {
		if _, err := fmt.Fprintf(w, ">%s\n%s\n", record.Header, record.Sequence); err != nil {
			return err
		}
	}
	return nil
}
