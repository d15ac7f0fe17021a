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
	"fmt"
	"strings"

	readpass "github.com/seehuhn/password"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

// apikeyCmd represents the apikey command
var apikeyCmd = &cobra.Command{
	Use:   "apikey",
	Short: "Generate an API key hash for the serve mode",
	Long: `Generate an API key hash for the serve mode.

Prompts for an API key without echoing it and prints the bcrypt hash
to configure as server.api_key_hash. With no hash configured the API
does not require authentication.`,
	Run: func(cmd *cobra.Command, args []string) {
		key := readKey()

		hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
		if err != nil {
			panic(fmt.Errorf("error hashing API key: %s", err))
		}
		fmt.Println(string(hash))
	},
}

func init() {
	rootCmd.AddCommand(apikeyCmd)
}

func readKey() string {
	for {
		key_bytes, err := readpass.Read("API key: ")
		if err != nil {
			panic(fmt.Errorf("error reading API key: %s", err))
		}
		key := string(key_bytes)
		if key == "" {
			fmt.Println("Empty API key")
			continue
		}

		key_bytes, err = readpass.Read("Repeat API key: ")
		if err != nil {
			panic(fmt.Errorf("error reading API key: %s", err))
		}
		if strings.Compare(key, string(key_bytes)) == 0 {
			return key
		}
		fmt.Println("API key mismatch")
	}
}
