/*
Copyright © 2024 Technical University of Denmark - written by Kai Blin <kblin@biosustain.dtu.dk>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"proteindomains.org/protdom/internal/data"
	"proteindomains.org/protdom/internal/pipeline"
)

var (
	trimRanges       string
	trimSource       string
	trimOutput       string
	trimAcceptCustom bool
	trimStrict       bool
)

// trimCmd represents the trim command
var trimCmd = &cobra.Command{
	Use:   "trim",
	Short: "Trim existing structures to retrieved domain ranges",
	Long: `Trim existing structures to retrieved domain ranges.

Cuts the PDB files in the structure directory down to the domain ranges
from an earlier run, without talking to any of the APIs. Useful to
re-trim after editing the ranges file or to trim structures obtained
elsewhere.`,
	Run: func(cmd *cobra.Command, args []string) {
		logger := setupLogging()
		defer logger.Sync()

		outputDir := trimOutput
		if outputDir == "" {
			outputDir = viper.GetString("output_dir")
		}
		rangesFile := trimRanges
		if rangesFile == "" {
			rangesFile = filepath.Join(outputDir, pipeline.RangesFile)
		}
		sourceDir := trimSource
		if sourceDir == "" {
			sourceDir = viper.GetString("pdb_source_dir")
		}
		if sourceDir == "" {
			sourceDir = filepath.Join(outputDir, pipeline.StructureDir)
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		trimmed, err := pipeline.Trim(ctx, &pipeline.TrimConfig{
			RangesFile:   rangesFile,
			SourceDir:    sourceDir,
			OutputDir:    outputDir,
			AcceptCustom: trimAcceptCustom || viper.GetBool("accept_custom_pdbs"),
			Strict:       trimStrict || viper.GetBool("custom_pdb_strict"),
			Logger:       logger,
			Progress: func(message string, percent float64) {
				logger.Infof("%3.0f%% %s", percent, message)
			},
		})
		if err != nil {
			if errors.Is(err, data.ErrRunCanceled) {
				logger.Warnw("trimming canceled")
				logger.Sync()
				os.Exit(1)
			}
			panic(fmt.Errorf("error trimming structures: %s", err))
		}

		fmt.Printf("Trimmed %d domain structures into %s\n", len(trimmed), filepath.Join(outputDir, pipeline.TrimmedDir))
	},
}

func init() {
	rootCmd.AddCommand(trimCmd)

	trimCmd.Flags().StringVar(&trimRanges, "ranges", "", "domain ranges file (default is <output>/domain_ranges.txt)")
	trimCmd.Flags().StringVarP(&trimOutput, "output", "o", "", "directory for the trimmed structures")
	trimCmd.Flags().StringVar(&trimSource, "pdb-source-dir", "", "directory with the structures to trim (default is <output>/alphafold_structures)")
	trimCmd.Flags().BoolVar(&trimAcceptCustom, "accept-custom-pdbs", false, "also trim custom PDB files from the structure directory")
	trimCmd.Flags().BoolVar(&trimStrict, "strict-custom-pdbs", false, "match custom PDB files by exact accession token")
}
