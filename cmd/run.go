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
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"proteindomains.org/protdom/internal/alphafold"
	"proteindomains.org/protdom/internal/data"
	"proteindomains.org/protdom/internal/interpro"
	"proteindomains.org/protdom/internal/mailer"
	"proteindomains.org/protdom/internal/pipeline"
	"proteindomains.org/protdom/internal/uniprot"
	"proteindomains.org/protdom/internal/utils"
)

var (
	entriesFile string
	notify      bool
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the domain retrieval pipeline",
	Long: `Run the domain retrieval pipeline.

Reads UniProtKB accessions from the input file, retrieves their domain
annotations from InterPro and writes the domain analysis, the domain
ranges and the raw results to the output directory. Optional stages
retrieve the domain sequences, download AlphaFold structures and trim
the structures to the selected domain ranges.`,
	Run: func(cmd *cobra.Command, args []string) {
		logger := setupLogging()
		defer logger.Sync()

		inputFile := viper.GetString("input_file")
		f, err := os.Open(inputFile)
		if err != nil {
			panic(fmt.Errorf("error opening input file: %s", err))
		}
		accessions, err := data.ReadAccessions(f)
		f.Close()
		if err != nil {
			panic(fmt.Errorf("error reading accessions from %s: %s", inputFile, err))
		}

		entries := data.SplitEntryList(viper.GetString("interpro_entries"))
		if entriesFile != "" {
			raw, err := os.ReadFile(entriesFile)
			if err != nil {
				panic(fmt.Errorf("error reading entry list %s: %s", entriesFile, err))
			}
			entries = utils.Unique(append(entries, data.SplitEntryList(string(raw))...))
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		p := pipeline.New(interproClient(logger), uniprotClient(logger), alphafoldClient(logger), logger)
		p.OnProgress(func(message string, percent float64) {
			logger.Infof("%3.0f%% %s", percent, message)
		})

		opts := pipeline.Options{
			OutputDir:          viper.GetString("output_dir"),
			Entries:            entries,
			RetrieveFasta:      viper.GetBool("enable_fasta_retrieval"),
			DownloadStructures: viper.GetBool("enable_af_download"),
			TrimStructures:     viper.GetBool("enable_pdb_trimming"),
			AcceptCustomPDBs:   viper.GetBool("accept_custom_pdbs"),
			StrictCustomPDBs:   viper.GetBool("custom_pdb_strict"),
			PDBSourceDir:       viper.GetString("pdb_source_dir"),
		}

		result, err := p.Run(ctx, accessions, opts)
		if err != nil {
			if errors.Is(err, data.ErrRunCanceled) {
				logger.Warnw("run canceled")
				logger.Sync()
				os.Exit(1)
			}
			panic(fmt.Errorf("error running pipeline: %s", err))
		}

		fmt.Println(result.Summary.String())

		if notify {
			sendRunMail(logger, inputFile, result.Summary)
		}
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("input", "i", "", "file with UniProtKB accessions, one per line")
	runCmd.Flags().StringP("output", "o", "", "directory for the result files")
	runCmd.Flags().StringP("entries", "e", "", "comma separated InterPro entries to retrieve domains for")
	runCmd.Flags().StringVar(&entriesFile, "entries-file", "", "file with InterPro entries, comma or newline separated")
	runCmd.Flags().Bool("fasta", false, "retrieve the domain sequences as FASTA")
	runCmd.Flags().Bool("alphafold", false, "download AlphaFold structure predictions")
	runCmd.Flags().Bool("trim", false, "trim structures to the selected domain ranges")
	runCmd.Flags().Bool("accept-custom-pdbs", false, "also trim custom PDB files from the structure directory")
	runCmd.Flags().Bool("strict-custom-pdbs", false, "match custom PDB files by exact accession token")
	runCmd.Flags().String("pdb-source-dir", "", "directory with existing structures to trim")
	runCmd.Flags().BoolVar(&notify, "notify", false, "mail the run summary to the configured mail.recipient")

	viper.BindPFlag("input_file", runCmd.Flags().Lookup("input"))
	viper.BindPFlag("output_dir", runCmd.Flags().Lookup("output"))
	viper.BindPFlag("interpro_entries", runCmd.Flags().Lookup("entries"))
	viper.BindPFlag("enable_fasta_retrieval", runCmd.Flags().Lookup("fasta"))
	viper.BindPFlag("enable_af_download", runCmd.Flags().Lookup("alphafold"))
	viper.BindPFlag("enable_pdb_trimming", runCmd.Flags().Lookup("trim"))
	viper.BindPFlag("accept_custom_pdbs", runCmd.Flags().Lookup("accept-custom-pdbs"))
	viper.BindPFlag("custom_pdb_strict", runCmd.Flags().Lookup("strict-custom-pdbs"))
	viper.BindPFlag("pdb_source_dir", runCmd.Flags().Lookup("pdb-source-dir"))
}

func interproClient(logger *zap.SugaredLogger) *interpro.Client {
	return interpro.New(&interpro.Config{
		URL:        viper.GetString("api.interpro_url"),
		PageSize:   viper.GetInt("api.page_size"),
		Timeout:    viper.GetDuration("api.request_timeout"),
		MaxRetries: viper.GetInt("api.max_retries"),
		RetryDelay: viper.GetDuration("api.retry_delay"),
		RateLimit:  viper.GetFloat64("api.rate_limit"),
		Logger:     logger,
	})
}

func uniprotClient(logger *zap.SugaredLogger) *uniprot.Client {
	return uniprot.New(&uniprot.Config{
		URL:          viper.GetString("api.uniprot_url"),
		Timeout:      viper.GetDuration("api.request_timeout"),
		PollInterval: viper.GetDuration("processing.poll_interval"),
		Logger:       logger,
	})
}

func alphafoldClient(logger *zap.SugaredLogger) *alphafold.Client {
	return alphafold.New(&alphafold.Config{
		URL:        viper.GetString("api.alphafold_url"),
		Timeout:    viper.GetDuration("api.request_timeout"),
		MaxRetries: viper.GetInt("api.max_retries"),
		RetryDelay: viper.GetDuration("api.retry_delay"),
		Workers:    viper.GetInt("processing.workers"),
		Logger:     logger,
	})
}

func sendRunMail(logger *zap.SugaredLogger, inputFile string, summary pipeline.Summary) {
	recipient := viper.GetString("mail.recipient")
	if recipient == "" {
		logger.Warnw("no mail.recipient configured, skipping the notification mail")
		return
	}

	conf := mailer.MailConfig{
		Host:     viper.GetString("mail.host"),
		Port:     viper.GetInt("mail.port"),
		Username: viper.GetString("mail.username"),
		Password: viper.GetString("mail.password"),
		Sender:   viper.GetString("mail.sender"),
	}
	m := mailer.New(&conf)

	notification := struct {
		Input   string
		Summary string
	}{
		Input:   inputFile,
		Summary: summary.String(),
	}
	if err := m.SendFromTemplate(recipient, "run_finished.tmpl", notification); err != nil {
		logger.Errorw("error sending notification mail", zap.Error(err))
	}
}
