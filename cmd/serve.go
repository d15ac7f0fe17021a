/*
Copyright © 2025 Technical University of Denmark - written by Kai Blin <kblin@biosustain.dtu.dk>

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
	"github.com/spf13/cobra"

	"proteindomains.org/protdom/internal/web"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the protdom HTTP API",
	Long: `Run the protdom HTTP API.

Domain retrieval jobs submitted over the API are stored in the
database and processed in the background. Job status, results and
cancellation are available over the same API.`,
	Run: func(cmd *cobra.Command, args []string) {
		web.Run(debug)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
