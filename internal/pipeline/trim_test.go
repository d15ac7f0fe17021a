package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"proteindomains.org/protdom/internal/data"
)

func writeTrimFixtures(t *testing.T, ranges string) (string, string) {
	t.Helper()
	sourceDir := t.TempDir()
	outputDir := t.TempDir()

	for _, name := range []string{"AF-Q9XLZ3-F1.pdb", "P12345_relaxed.pdb"} {
		if err := os.WriteFile(filepath.Join(sourceDir, name), []byte(testModel()), 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(outputDir, RangesFile), []byte(ranges), 0644); err != nil {
		t.Fatal(err)
	}
	return sourceDir, outputDir
}

func countAtoms(t *testing.T, path string) int {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	atoms := 0
	for _, line := range strings.Split(string(content), "\n") {
		if strings.HasPrefix(line, "ATOM") {
			atoms++
		}
	}
	return atoms
}

func TestTrimStandalone(t *testing.T) {
	sourceDir, outputDir := writeTrimFixtures(t, "Q9XLZ3[2-78]\nQ9XLZ3[80-140]\nP12345[5-50]\nO43175[1-20]\n")

	var lastMessage string
	results, err := Trim(context.Background(), &TrimConfig{
		RangesFile:   filepath.Join(outputDir, RangesFile),
		SourceDir:    sourceDir,
		OutputDir:    outputDir,
		AcceptCustom: true,
		Strict:       true,
		Progress: func(message string, percent float64) {
			lastMessage = message
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	expected := map[string]TrimmedStructure{
		"Q9XLZ3_domain1": {Path: filepath.Join(TrimmedDir, "Q9XLZ3_domain1_trimmed.pdb"), Source: "AlphaFold"},
		"Q9XLZ3_domain2": {Path: filepath.Join(TrimmedDir, "Q9XLZ3_domain2_trimmed.pdb"), Source: "AlphaFold"},
		"P12345_domain1": {Path: filepath.Join(TrimmedDir, "P12345_domain1_trimmed.pdb"), Source: "Custom PDB"},
	}
	if !cmp.Equal(expected, results) {
		t.Errorf("unexpected results:\n%s", cmp.Diff(expected, results))
	}

	atoms := countAtoms(t, filepath.Join(outputDir, TrimmedDir, "P12345_domain1_trimmed.pdb"))
	if atoms != 46 {
		t.Errorf("expected 46 atoms for P12345[5-50], got %d", atoms)
	}

	// The O43175 range counts towards the total even though its
	// structure is missing.
	if lastMessage != "trimmed 3/4 domains" {
		t.Errorf("unexpected final progress message %q", lastMessage)
	}

	content, err := os.ReadFile(filepath.Join(outputDir, TrimmedSummary))
	if err != nil {
		t.Fatal(err)
	}
	var summary struct {
		Version        string                      `json:"version"`
		Timestamp      string                      `json:"timestamp"`
		TotalProcessed int                         `json:"total_processed"`
		PDBSources     map[string]string           `json:"pdb_sources"`
		Trimmed        map[string]TrimmedStructure `json:"trimmed_structures"`
	}
	if err := json.Unmarshal(content, &summary); err != nil {
		t.Fatal(err)
	}
	if summary.Version != "1.0" {
		t.Errorf("unexpected summary version %q", summary.Version)
	}
	if summary.Timestamp == "" {
		t.Error("expected a summary timestamp")
	}
	if summary.TotalProcessed != 3 {
		t.Errorf("expected 3 processed domains, got %d", summary.TotalProcessed)
	}
	expectedSources := map[string]string{"Q9XLZ3": "AlphaFold", "P12345": "Custom PDB"}
	if !cmp.Equal(expectedSources, summary.PDBSources) {
		t.Errorf("unexpected sources:\n%s", cmp.Diff(expectedSources, summary.PDBSources))
	}
	if !cmp.Equal(expected, summary.Trimmed) {
		t.Errorf("unexpected summary structures:\n%s", cmp.Diff(expected, summary.Trimmed))
	}
}

func TestTrimStrictCustomMatching(t *testing.T) {
	sourceDir, outputDir := writeTrimFixtures(t, "P12[5-50]\n")

	// P12 is a substring of P12345_relaxed.pdb but not an underscore
	// delimited token, so strict matching must not pick it up.
	_, err := Trim(context.Background(), &TrimConfig{
		RangesFile:   filepath.Join(outputDir, RangesFile),
		SourceDir:    sourceDir,
		OutputDir:    outputDir,
		AcceptCustom: true,
		Strict:       true,
	})
	if !errors.Is(err, data.ErrNoStructuresFound) {
		t.Errorf("expected ErrNoStructuresFound, got %v", err)
	}

	results, err := Trim(context.Background(), &TrimConfig{
		RangesFile:   filepath.Join(outputDir, RangesFile),
		SourceDir:    sourceDir,
		OutputDir:    outputDir,
		AcceptCustom: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := results["P12_domain1"]; !ok {
		t.Errorf("expected flexible matching to trim P12_domain1, got %v", results)
	}
}

func TestTrimNoRanges(t *testing.T) {
	sourceDir, outputDir := writeTrimFixtures(t, "# nothing usable in here\n")

	_, err := Trim(context.Background(), &TrimConfig{
		RangesFile: filepath.Join(outputDir, RangesFile),
		SourceDir:  sourceDir,
		OutputDir:  outputDir,
	})
	if !errors.Is(err, data.ErrNoRanges) {
		t.Errorf("expected ErrNoRanges, got %v", err)
	}
}

func TestTrimNothingFound(t *testing.T) {
	sourceDir, outputDir := writeTrimFixtures(t, "O43175[1-20]\n")

	_, err := Trim(context.Background(), &TrimConfig{
		RangesFile: filepath.Join(outputDir, RangesFile),
		SourceDir:  sourceDir,
		OutputDir:  outputDir,
	})
	if !errors.Is(err, data.ErrNoStructuresFound) {
		t.Errorf("expected ErrNoStructuresFound, got %v", err)
	}
}

func TestTrimCanceled(t *testing.T) {
	sourceDir, outputDir := writeTrimFixtures(t, "Q9XLZ3[2-78]\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Trim(ctx, &TrimConfig{
		RangesFile: filepath.Join(outputDir, RangesFile),
		SourceDir:  sourceDir,
		OutputDir:  outputDir,
	})
	if !errors.Is(err, data.ErrRunCanceled) {
		t.Errorf("expected ErrRunCanceled, got %v", err)
	}
}
