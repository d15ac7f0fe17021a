package data

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFormatRange(t *testing.T) {
	got := FormatRange("Q9XLZ3", DomainRange{Start: 217, End: 398})
	if got != "Q9XLZ3[217-398]" {
		t.Errorf("expected %q, got %q", "Q9XLZ3[217-398]", got)
	}
}

func TestReadRanges(t *testing.T) {
	input := `Q9XLZ3[217-398]
P12345[2-78]
this line is a note
P12345[150-199]
Q9XLZ3[400-450]
`

	expected := []RangeSet{
		{
			Accession: "Q9XLZ3",
			Ranges:    []DomainRange{{Start: 217, End: 398}, {Start: 400, End: 450}},
		},
		{
			Accession: "P12345",
			Ranges:    []DomainRange{{Start: 2, End: 78}, {Start: 150, End: 199}},
		},
	}

	got, err := ReadRanges(strings.NewReader(input))
	if err != nil {
		t.Fatal(err)
	}
	if !cmp.Equal(expected, got) {
		t.Errorf("ReadRanges unexpected result:\n%s", cmp.Diff(expected, got))
	}
}

func TestReadRangesTrailingText(t *testing.T) {
	got, err := ReadRanges(strings.NewReader("P12345[2-78] # curated\n"))
	if err != nil {
		t.Fatal(err)
	}

	expected := []RangeSet{{Accession: "P12345", Ranges: []DomainRange{{Start: 2, End: 78}}}}
	if !cmp.Equal(expected, got) {
		t.Errorf("ReadRanges unexpected result:\n%s", cmp.Diff(expected, got))
	}
}

func TestReadRangesEmpty(t *testing.T) {
	_, err := ReadRanges(strings.NewReader("no ranges at all\n"))
	if !errors.Is(err, ErrNoRanges) {
		t.Errorf("expected ErrNoRanges, got %v", err)
	}
}
