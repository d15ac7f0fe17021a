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
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"
)

var migrationsDir string

// dbMigrateCmd represents the dbMigrate command
var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending job store migrations",
	Long: `Apply pending job store migrations.

Brings the database configured under database.uri up to the latest
schema version.`,
	Run: func(cmd *cobra.Command, args []string) {
		db, err := InitDb()
		if err != nil {
			panic(fmt.Errorf("error opening database: %s", err))
		}

		driver, err := postgres.WithInstance(db, &postgres.Config{})
		if err != nil {
			panic(fmt.Errorf("error setting up migrations: %s", err))
		}
		migration, err := migrate.NewWithDatabaseInstance("file://"+migrationsDir, "postgres", driver)
		if err != nil {
			panic(fmt.Errorf("error setting up migrations: %s", err))
		}

		err = migration.Up()
		if errors.Is(err, migrate.ErrNoChange) {
			fmt.Println("Database already up to date")
			return
		}
		if err != nil {
			panic(fmt.Errorf("error running migrations: %s", err))
		}
		fmt.Println("Database migrated")
	},
}

func init() {
	dbCmd.AddCommand(dbMigrateCmd)
	dbMigrateCmd.Flags().StringVar(&migrationsDir, "dir", "migrations", "directory containing the migration files")
}
