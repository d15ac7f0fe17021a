// Package pipeline orchestrates the stages of a domain retrieval run:
// InterPro domain lookup, UniProt sequence retrieval, AlphaFold
// structure download and structure trimming.
package pipeline

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"proteindomains.org/protdom/internal/alphafold"
	"proteindomains.org/protdom/internal/data"
	"proteindomains.org/protdom/internal/fasta"
	"proteindomains.org/protdom/internal/interpro"
	"proteindomains.org/protdom/internal/uniprot"
	"proteindomains.org/protdom/internal/utils"
)

// Options select the stages of a run and their inputs. The InterPro
// stage always runs, everything else is optional.
type Options struct {
	OutputDir          string
	Entries            []string
	RetrieveFasta      bool
	DownloadStructures bool
	TrimStructures     bool
	AcceptCustomPDBs   bool
	StrictCustomPDBs   bool
	PDBSourceDir       string
}

// ProgressFunc receives progress updates, percent clamped to 0-100.
// The percentage restarts for every stage.
type ProgressFunc func(message string, percent float64)

// Pipeline wires the API clients together into runnable workflows.
type Pipeline struct {
	InterPro  *interpro.Client
	UniProt   *uniprot.Client
	AlphaFold *alphafold.Client

	logger   *zap.SugaredLogger
	progress ProgressFunc
}

func New(ip *interpro.Client, up *uniprot.Client, af *alphafold.Client, logger *zap.SugaredLogger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Pipeline{
		InterPro:  ip,
		UniProt:   up,
		AlphaFold: af,
		logger:    logger,
	}
}

// OnProgress registers a callback for progress updates. Passing nil
// disables reporting again.
func (p *Pipeline) OnProgress(fn ProgressFunc) {
	p.progress = fn
}

func (p *Pipeline) report(message string, percent float64) {
	percent = math.Max(0, math.Min(100, percent))
	p.logger.Infow(message, "progress", fmt.Sprintf("%.1f%%", percent))
	if p.progress != nil {
		p.progress(message, percent)
	}
}

// Summary counts what a run produced.
type Summary struct {
	Proteins    int
	WithDomains int
	Domains     int
	Sequences   int
	Structures  int
	Trimmed     int

	FastaEnabled    bool
	DownloadEnabled bool
	TrimEnabled     bool
}

func (s Summary) String() string {
	lines := []string{
		"=== Domain Retrieval Summary ===",
		fmt.Sprintf("Input: %d protein accessions", s.Proteins),
		fmt.Sprintf("Proteins with matching domains: %d (%d domains)", s.WithDomains, s.Domains),
	}
	if s.FastaEnabled {
		lines = append(lines, fmt.Sprintf("Domain sequences retrieved: %d", s.Sequences))
	}
	if s.DownloadEnabled {
		lines = append(lines,
			fmt.Sprintf("AlphaFold structures: %d downloaded", s.Structures),
			fmt.Sprintf("  - %d not available in the AlphaFold database", s.WithDomains-s.Structures))
	}
	if s.TrimEnabled {
		lines = append(lines, fmt.Sprintf("Domain-trimmed structures: %d", s.Trimmed))
	}
	lines = append(lines, "================================")
	return strings.Join(lines, "\n")
}

// Result carries everything a finished run produced.
type Result struct {
	Proteins   []data.ProteinDomains
	Structures map[string]string
	Trimmed    map[string]TrimmedStructure
	Summary    Summary
}

// Run executes the configured stages in order. The context cancels the
// run between stages and between accessions; a canceled run returns
// ErrRunCanceled or the context's error.
func (p *Pipeline) Run(ctx context.Context, accessions []string, opts Options) (*Result, error) {
	if len(accessions) == 0 {
		return nil, data.ErrNoAccessions
	}
	if len(opts.Entries) == 0 {
		return nil, data.ErrNoEntries
	}
	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, err
	}

	result := &Result{
		Summary: Summary{
			Proteins:        len(accessions),
			FastaEnabled:    opts.RetrieveFasta,
			DownloadEnabled: opts.DownloadStructures,
			TrimEnabled:     opts.TrimStructures,
		},
	}

	proteins, err := p.runInterPro(ctx, accessions, opts)
	if err != nil {
		return nil, err
	}
	result.Proteins = proteins
	result.Summary.WithDomains = len(proteins)
	for _, protein := range proteins {
		result.Summary.Domains += len(protein.Domains)
	}

	if err := canceled(ctx); err != nil {
		return nil, err
	}

	if opts.RetrieveFasta {
		count, err := p.runFasta(ctx, proteins, opts)
		if err != nil {
			return nil, err
		}
		result.Summary.Sequences = count
	}

	if err := canceled(ctx); err != nil {
		return nil, err
	}

	skipTrim := false
	if opts.DownloadStructures {
		structures, err := p.runAlphaFold(ctx, proteins, opts)
		if err != nil {
			return nil, err
		}
		result.Structures = structures
		result.Summary.Structures = len(structures)

		if len(structures) == 0 {
			p.logger.Warnw("no AlphaFold structures were downloaded")
			if opts.TrimStructures && opts.PDBSourceDir == "" {
				p.logger.Warnw("skipping structure trimming, no structures available")
				skipTrim = true
			}
		}
	}

	if err := canceled(ctx); err != nil {
		return nil, err
	}

	if opts.TrimStructures && !skipTrim {
		sourceDir, err := resolveSourceDir(opts)
		if err != nil {
			return nil, err
		}

		trimmed, err := Trim(ctx, &TrimConfig{
			RangesFile:   filepath.Join(opts.OutputDir, RangesFile),
			SourceDir:    sourceDir,
			OutputDir:    opts.OutputDir,
			AcceptCustom: opts.AcceptCustomPDBs,
			Strict:       opts.StrictCustomPDBs,
			Logger:       p.logger,
			Progress:     p.progress,
		})
		if err != nil {
			return nil, err
		}
		result.Trimmed = trimmed
		result.Summary.Trimmed = len(trimmed)
	}

	p.report("run complete", 100)
	return result, nil
}

// runInterPro queries domain annotations for every accession and
// writes the domain reports. Proteins without any matching domain are
// left out of the results.
func (p *Pipeline) runInterPro(ctx context.Context, accessions []string, opts Options) ([]data.ProteinDomains, error) {
	var proteins []data.ProteinDomains

	for i, accession := range accessions {
		if err := canceled(ctx); err != nil {
			return nil, err
		}
		p.report(fmt.Sprintf("processing %s", accession), float64(i+1)/float64(len(accessions))*100)

		if !data.ValidAccession(accession) {
			p.logger.Warnw("accession does not look like a UniProtKB accession", "accession", accession)
		}

		candidates, err := p.InterPro.FetchDomains(ctx, accession, opts.Entries)
		if err != nil {
			return nil, err
		}
		if len(candidates) == 0 {
			p.logger.Infow("no matching domains", "accession", accession)
			continue
		}

		protein := data.SelectDomains(accession, candidates)
		p.logger.Infow("selected domains", "accession", accession, "domains", protein.EntryString)
		proteins = append(proteins, protein)
	}

	var found []string
	for _, protein := range proteins {
		found = utils.Union(found, protein.Entries())
	}
	matched := utils.Intersect(opts.Entries, found)
	p.logger.Infow("entries with domain hits", "matched", len(matched), "requested", len(opts.Entries))
	if missing := utils.Difference(opts.Entries, found); len(missing) > 0 {
		p.logger.Warnw("requested entries without any hit", "entries", strings.Join(missing, ", "))
	}

	if err := writeRangesFile(filepath.Join(opts.OutputDir, RangesFile), proteins); err != nil {
		return nil, err
	}
	if err := writeAnalysisTSV(filepath.Join(opts.OutputDir, AnalysisFile), proteins); err != nil {
		return nil, err
	}
	if err := writeResultsJSON(filepath.Join(opts.OutputDir, ResultsFile), proteins); err != nil {
		return nil, err
	}

	p.logger.Infow("domain reports written", "output_dir", opts.OutputDir, "proteins", len(proteins))
	return proteins, nil
}

// runFasta resolves the full sequences of all proteins with domains
// and writes one FASTA record per selected domain.
func (p *Pipeline) runFasta(ctx context.Context, proteins []data.ProteinDomains, opts Options) (int, error) {
	if len(proteins) == 0 {
		return 0, data.ErrNoDomains
	}

	accessions := make([]string, 0, len(proteins))
	for _, protein := range proteins {
		accessions = append(accessions, protein.Accession)
	}

	p.report("submitting UniProt ID mapping job", 0)
	records, err := p.UniProt.FetchSequences(ctx, accessions)
	if err != nil {
		return 0, err
	}
	p.report("processing domain sequences", 60)

	sequences := fasta.Index(records)
	var domainRecords []fasta.Record
	for _, protein := range proteins {
		sequence, ok := sequences[protein.Accession]
		if !ok {
			p.logger.Warnw("no sequence found", "accession", protein.Accession)
			continue
		}

		for _, domain := range protein.Domains {
			if domain.Start < 1 || domain.End > len(sequence) {
				p.logger.Warnw("domain range outside sequence",
					"accession", protein.Accession, "range", domain.DomainRange.String(), "length", len(sequence))
				continue
			}
			domainRecords = append(domainRecords, fasta.Record{
				Header:   fmt.Sprintf("%s %s", data.FormatRange(protein.Accession, domain.DomainRange), domain.Entry),
				Sequence: sequence[domain.Start-1 : domain.End],
			})
		}
	}

	if len(domainRecords) == 0 {
		return 0, data.ErrNoSequences
	}

	p.report("saving domain sequences", 80)
	f, err := os.Create(filepath.Join(opts.OutputDir, SequencesFile))
	if err != nil {
		return 0, err
	}
	if err := fasta.Write(f, domainRecords); err != nil {
		f.Close()
		return 0, err
	}
	if err := f.Close(); err != nil {
		return 0, err
	}

	p.logger.Infow("domain sequences written", "sequences", len(domainRecords))
	return len(domainRecords), nil
}

// runAlphaFold downloads the predicted structures of all proteins with
// domains. Failures are per accession and never abort the stage.
func (p *Pipeline) runAlphaFold(ctx context.Context, proteins []data.ProteinDomains, opts Options) (map[string]string, error) {
	if len(proteins) == 0 {
		p.logger.Warnw("no proteins with domains, skipping structure download")
		return nil, nil
	}

	accessions := make([]string, 0, len(proteins))
	for _, protein := range proteins {
		accessions = append(accessions, protein.Accession)
	}

	p.report("downloading AlphaFold structures", 0)
	structures, err := p.AlphaFold.FetchStructures(ctx, accessions, filepath.Join(opts.OutputDir, StructureDir))
	if err != nil {
		return nil, err
	}

	if len(structures) > 0 {
		err = writeStructureSummary(filepath.Join(opts.OutputDir, StructureSummary), opts.OutputDir, structures)
		if err != nil {
			return nil, err
		}
	}

	p.report(fmt.Sprintf("downloaded %d of %d structures", len(structures), len(accessions)), 100)
	return structures, nil
}

// resolveSourceDir picks the directory trimming reads structures from:
// an explicit custom directory when custom PDBs are enabled, otherwise
// the run's own AlphaFold download directory.
func resolveSourceDir(opts Options) (string, error) {
	if opts.AcceptCustomPDBs && opts.PDBSourceDir != "" {
		if _, err := os.Stat(opts.PDBSourceDir); err != nil {
			return "", fmt.Errorf("PDB source directory not found: %s", opts.PDBSourceDir)
		}
		return opts.PDBSourceDir, nil
	}

	dir := filepath.Join(opts.OutputDir, StructureDir)
	if _, err := os.Stat(dir); err != nil {
		return "", fmt.Errorf("no structures available in %s", dir)
	}
	return dir, nil
}

func canceled(ctx context.Context) error {
	if ctx.Err() != nil {
		return data.ErrRunCanceled
	}
	return nil
}
