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
	"database/sql"
	"fmt"
	"os"
	"strings"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"proteindomains.org/protdom/internal/alphafold"
	"proteindomains.org/protdom/internal/interpro"
	"proteindomains.org/protdom/internal/uniprot"
)

var (
	cfgFile string
	debug   bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "protdom",
	Short: "Retrieve protein domain annotations from InterPro",
	Long: `Retrieve protein domain annotations from InterPro.

protdom reads UniProtKB accessions, fetches their domain annotations
from the InterPro API and reduces them to the longest non-overlapping
domains per protein. Optional stages retrieve the domain sequences,
download AlphaFold structure predictions and trim the structures to
the selected domain ranges.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.json)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug output")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Search for a config.json in the working directory.
		viper.AddConfigPath(".")
		viper.SetConfigType("json")
		viper.SetConfigName("config")
	}

	setConfigDefaults()

	viper.SetEnvPrefix("protdom")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func setConfigDefaults() {
	viper.SetDefault("input_file", "proteins.txt")
	viper.SetDefault("output_dir", "output")
	viper.SetDefault("interpro_entries", "")
	viper.SetDefault("enable_fasta_retrieval", false)
	viper.SetDefault("enable_af_download", false)
	viper.SetDefault("enable_pdb_trimming", false)
	viper.SetDefault("accept_custom_pdbs", false)
	viper.SetDefault("custom_pdb_strict", false)
	viper.SetDefault("pdb_source_dir", "")

	viper.SetDefault("api.interpro_url", interpro.DefaultURL)
	viper.SetDefault("api.uniprot_url", uniprot.DefaultURL)
	viper.SetDefault("api.alphafold_url", alphafold.DefaultURL)
	viper.SetDefault("api.request_timeout", "30s")
	viper.SetDefault("api.max_retries", 3)
	viper.SetDefault("api.retry_delay", "5s")
	viper.SetDefault("api.page_size", 100)
	viper.SetDefault("api.rate_limit", 10.0)

	viper.SetDefault("processing.workers", 5)
	viper.SetDefault("processing.poll_interval", "5s")

	viper.SetDefault("server.address", "127.0.0.1")
	viper.SetDefault("server.port", 8000)
	viper.SetDefault("server.api_key_hash", "")

	viper.SetDefault("database.uri", "host=localhost port=5432 user=postgres dbname=protdom sslmode=disable")

	viper.SetDefault("mail.host", "")
	viper.SetDefault("mail.port", 25)
	viper.SetDefault("mail.username", "")
	viper.SetDefault("mail.password", "")
	viper.SetDefault("mail.sender", "")
	viper.SetDefault("mail.recipient", "")
}

func setupLogging() *zap.SugaredLogger {
	logger, err := zap.NewProduction()
	if debug {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		panic(fmt.Errorf("error setting up logging: %s", err))
	}
	return logger.Sugar()
}

// InitDb opens the database configured under database.uri.
func InitDb() (*sql.DB, error) {
	db, err := sql.Open("postgres", viper.GetString("database.uri"))
	if err != nil {
		return nil, err
	}
	if err = db.Ping(); err != nil {
		return nil, err
	}

	return db, nil
}
