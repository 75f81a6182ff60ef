package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/veritasnet/atlas/pkg/config"
	"github.com/veritasnet/atlas/pkg/log"
	"github.com/veritasnet/atlas/pkg/migrate"
	"github.com/veritasnet/atlas/pkg/storage"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Migrate legacy filesystem collections into the database",
	Long: `Copy any legacy filesystem collections under the data directory into
the embedded database and clear the sources. The serve command runs the
same migration at startup; this standalone form exists for operators who
want to migrate and inspect before serving. Running it again is a no-op.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("db-dir") {
			cfg.DBDir, _ = cmd.Flags().GetString("db-dir")
		}

		log.Init(log.Config{Level: log.Level(cfg.LogLevel), JSONOutput: cfg.LogJSON})

		db, err := storage.OpenBolt(cfg.DBDir)
		if err != nil {
			return fmt.Errorf("failed to open database: %v", err)
		}
		defer db.Close()

		blobs, texts, err := migrate.Default(cfg.DBDir, db)
		if err != nil {
			return fmt.Errorf("failed to prepare migrations: %v", err)
		}
		if err := migrate.Run(cmd.Context(), blobs, texts); err != nil {
			return fmt.Errorf("migration failed: %v", err)
		}

		fmt.Println("✓ Migration complete")
		return nil
	},
}

func init() {
	migrateCmd.Flags().String("config", "", "Path to the YAML configuration file")
	migrateCmd.Flags().String("db-dir", ".db", "Data directory")
}
