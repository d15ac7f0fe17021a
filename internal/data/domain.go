package data

import (
	"fmt"
	"sort"
	"strings"
)

// DomainRange is a 1-based, inclusive residue interval on a protein
// sequence.
type DomainRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

func (r DomainRange) Len() int {
	return r.End - r.Start + 1
}

// Overlaps reports whether the two ranges share at least one residue.
func (r DomainRange) Overlaps(other DomainRange) bool {
	return !(r.End < other.Start || r.Start > other.End)
}

func (r DomainRange) String() string {
	return fmt.Sprintf("[%d-%d]", r.Start, r.End)
}

// Domain is a residue range attributed to the InterPro entry whose
// signature produced it.
type Domain struct {
	Entry string `json:"entry"`
	DomainRange
}

// ProteinDomains is the final domain selection for a single protein.
type ProteinDomains struct {
	Accession   string              `json:"-"`
	Domains     []Domain            `json:"domains"`
	EntryString string              `json:"entry_string"`
	EntryMap    map[string][]string `json:"entry_map"`
}

// SelectDomains reduces all candidate ranges reported for one protein
// to a non-overlapping set. Candidates are considered longest first; a
// candidate that overlaps an already kept range is dropped, so a long
// domain shadows any shorter signature hits inside it, also across
// entries. Ties on length keep the caller's order. The surviving
// domains are renumbered d1..dN by ascending start position.
func SelectDomains(accession string, candidates []Domain) ProteinDomains {
	ranked := make([]Domain, len(candidates))
	copy(ranked, candidates)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Len() > ranked[j].Len()
	})

	var selected []Domain
	for _, candidate := range ranked {
		overlap := false
		for _, kept := range selected {
			if candidate.Overlaps(kept.DomainRange) {
				overlap = true
				break
			}
		}
		if !overlap {
			selected = append(selected, candidate)
		}
	}

	// Selected ranges are pairwise disjoint, so start positions are
	// unique and this order is total.
	sort.Slice(selected, func(i, j int) bool {
		return selected[i].Start < selected[j].Start
	})

	result := ProteinDomains{
		Accession: accession,
		Domains:   selected,
		EntryMap:  make(map[string][]string, len(selected)),
	}

	var entryOrder []string
	rangesByEntry := make(map[string][]string, len(selected))
	for i, domain := range selected {
		label := fmt.Sprintf("d%d", i+1)
		if _, seen := result.EntryMap[domain.Entry]; !seen {
			entryOrder = append(entryOrder, domain.Entry)
		}
		result.EntryMap[domain.Entry] = append(result.EntryMap[domain.Entry], label)
		rangesByEntry[domain.Entry] = append(rangesByEntry[domain.Entry],
			fmt.Sprintf("%s:[%d,%d]", label, domain.Start, domain.End))
	}

	parts := make([]string, 0, len(entryOrder))
	for _, entry := range entryOrder {
		parts = append(parts, fmt.Sprintf("%s (%s)", entry, strings.Join(rangesByEntry[entry], ",")))
	}
	result.EntryString = strings.Join(parts, " + ")

	return result
}

// Entries returns the distinct entry identifiers that contributed at
// least one selected domain, ordered by first appearance.
func (p ProteinDomains) Entries() []string {
	var entries []string
	seen := make(map[string]bool, len(p.Domains))
	for _, domain := range p.Domains {
		if !seen[domain.Entry] {
			seen[domain.Entry] = true
			entries = append(entries, domain.Entry)
		}
	}
	return entries
}
