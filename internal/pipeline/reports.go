package pipeline

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"proteindomains.org/protdom/internal/data"
)

// Output file names under the run's output directory.
const (
	RangesFile       = "domain_ranges.txt"
	AnalysisFile     = "domain_analysis.tsv"
	ResultsFile      = "interpro_results.json"
	SequencesFile    = "domain_sequences.fasta"
	StructureDir     = "alphafold_structures"
	StructureSummary = "alphafold_summary.json"
	TrimmedDir       = "trimmed_structures"
	TrimmedSummary   = "trimming_summary.json"
)

// TrimmedStructure records one trimmed domain structure in the
// trimming summary.
type TrimmedStructure struct {
	Path   string `json:"path"`
	Source string `json:"source"`
}

func writeRangesFile(path string, proteins []data.ProteinDomains) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	for _, protein := range proteins {
		for _, domain := range protein.Domains {
			if _, err := fmt.Fprintln(f, data.FormatRange(protein.Accession, domain.DomainRange)); err != nil {
				f.Close()
				return err
			}
		}
	}
	return f.Close()
}

// writeAnalysisTSV renders the per-protein domain table. The header
// grows with the widest protein; rows with fewer domains are padded
// with N/A so every row has the same number of columns.
func writeAnalysisTSV(path string, proteins []data.ProteinDomains) error {
	maxDomains := 0
	for _, protein := range proteins {
		if len(protein.Domains) > maxDomains {
			maxDomains = len(protein.Domains)
		}
	}

	header := []string{"Protein Accession", "InterPro Entry"}
	for i := 1; i <= maxDomains; i++ {
		header = append(header, fmt.Sprintf("Start %d", i), fmt.Sprintf("End %d", i))
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}

	w := csv.NewWriter(f)
	w.Comma = '\t'

	if err := w.Write(header); err != nil {
		f.Close()
		return err
	}
	for _, protein := range proteins {
		row := []string{protein.Accession, protein.EntryString}
		for _, domain := range protein.Domains {
			row = append(row, strconv.Itoa(domain.Start), strconv.Itoa(domain.End))
		}
		for len(row) < len(header) {
			row = append(row, "N/A")
		}
		if err := w.Write(row); err != nil {
			f.Close()
			return err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeResultsJSON(path string, proteins []data.ProteinDomains) error {
	results := make(map[string]data.ProteinDomains, len(proteins))
	for _, protein := range proteins {
		results[protein.Accession] = protein
	}
	return writeJSON(path, results)
}

type structureSummary struct {
	TotalProcessed int               `json:"total_processed"`
	Structures     map[string]string `json:"structures"`
}

// writeStructureSummary records the downloaded models with paths
// relative to the output directory.
func writeStructureSummary(path, outputDir string, structures map[string]string) error {
	summary := structureSummary{
		TotalProcessed: len(structures),
		Structures:     make(map[string]string, len(structures)),
	}
	for accession, structurePath := range structures {
		rel, err := filepath.Rel(outputDir, structurePath)
		if err != nil {
			rel = structurePath
		}
		summary.Structures[accession] = rel
	}
	return writeJSON(path, summary)
}

type trimmingSummary struct {
	Version        string                      `json:"version"`
	Timestamp      string                      `json:"timestamp"`
	TotalProcessed int                         `json:"total_processed"`
	PDBSources     map[string]string           `json:"pdb_sources"`
	Trimmed        map[string]TrimmedStructure `json:"trimmed_structures"`
}

func writeTrimmingSummary(path string, trimmed map[string]TrimmedStructure, sources map[string]string) error {
	return writeJSON(path, trimmingSummary{
		Version:        "1.0",
		Timestamp:      time.Now().Format(time.RFC3339),
		TotalProcessed: len(trimmed),
		PDBSources:     sources,
		Trimmed:        trimmed,
	})
}

func writeJSON(path string, v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(out, '\n'), 0644)
}
