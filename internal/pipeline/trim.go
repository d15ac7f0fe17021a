package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"proteindomains.org/protdom/internal/data"
	"proteindomains.org/protdom/internal/pdb"
)

// TrimConfig describes a trimming pass over an existing structure
// directory, either as the last stage of a run or standalone.
type TrimConfig struct {
	RangesFile   string
	SourceDir    string
	OutputDir    string
	AcceptCustom bool
	Strict       bool
	Logger       *zap.SugaredLogger
	Progress     ProgressFunc
}

// Trim cuts each structure referenced by the domain ranges file down
// to its domain ranges. Domains are numbered in file order per
// accession, the trimmed copies land in the trimmed_structures
// directory. Missing structures and failing domains are logged and
// skipped; producing not a single trimmed structure is an error.
func Trim(ctx context.Context, config *TrimConfig) (map[string]TrimmedStructure, error) {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	f, err := os.Open(config.RangesFile)
	if err != nil {
		return nil, err
	}
	sets, err := data.ReadRanges(f)
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", config.RangesFile, err)
	}

	trimmedDir := filepath.Join(config.OutputDir, TrimmedDir)
	if err := os.MkdirAll(trimmedDir, 0755); err != nil {
		return nil, err
	}

	trimmer := pdb.NewTrimmer(config.AcceptCustom, config.Strict, logger)

	totalDomains := 0
	for _, set := range sets {
		totalDomains += len(set.Ranges)
	}

	results := make(map[string]TrimmedStructure)
	sources := make(map[string]string)
	processed := 0
	missing := 0

	for _, set := range sets {
		if ctx.Err() != nil {
			return nil, data.ErrRunCanceled
		}

		structure, err := trimmer.FindStructure(config.SourceDir, set.Accession)
		if errors.Is(err, data.ErrNoStructure) {
			missing++
			logger.Warnw("no structure file found", "accession", set.Accession)
			continue
		}
		if err != nil {
			return nil, err
		}

		source := pdb.Source(structure)
		sources[set.Accession] = source
		logger.Infow("trimming structure", "accession", set.Accession,
			"source", source, "file", filepath.Base(structure))

		for i, domainRange := range set.Ranges {
			id := fmt.Sprintf("%s_domain%d", set.Accession, i+1)
			dst := filepath.Join(trimmedDir, id+"_trimmed.pdb")

			if _, err := trimmer.TrimFile(structure, dst, domainRange); err != nil {
				logger.Errorw("trimming failed", "domain", id, "error", err)
				continue
			}

			rel, err := filepath.Rel(config.OutputDir, dst)
			if err != nil {
				rel = dst
			}
			results[id] = TrimmedStructure{Path: rel, Source: source}

			processed++
			if config.Progress != nil {
				config.Progress(fmt.Sprintf("trimmed %d/%d domains", processed, totalDomains),
					math.Min(100, float64(processed)/float64(totalDomains)*100))
			}
		}
	}

	if len(results) == 0 {
		return nil, data.ErrNoStructuresFound
	}

	logger.Infow("trimming finished", "structures_found", len(sources),
		"structures_missing", missing, "domains_trimmed", len(results))

	err = writeTrimmingSummary(filepath.Join(config.OutputDir, TrimmedSummary), results, sources)
	if err != nil {
		return nil, err
	}
	return results, nil
}
