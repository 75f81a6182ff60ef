package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/veritasnet/atlas/pkg/api"
	"github.com/veritasnet/atlas/pkg/config"
	"github.com/veritasnet/atlas/pkg/events"
	"github.com/veritasnet/atlas/pkg/log"
	"github.com/veritasnet/atlas/pkg/metrics"
	"github.com/veritasnet/atlas/pkg/migrate"
	"github.com/veritasnet/atlas/pkg/processor"
	"github.com/veritasnet/atlas/pkg/security"
	"github.com/veritasnet/atlas/pkg/storage"
)

// notaryCertPattern selects the certificate files the watcher reacts to.
const notaryCertPattern = "*.pem"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the network map service",
	Long: `Start the network map service: open the embedded database, migrate
any legacy filesystem collections, load or generate the signing key,
and serve the protocol and admin APIs until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("port") {
			cfg.Port, _ = cmd.Flags().GetInt("port")
		}
		if cmd.Flags().Changed("db-dir") {
			cfg.DBDir, _ = cmd.Flags().GetString("db-dir")
		}
		if cmd.Flags().Changed("notary-dir") {
			cfg.NotaryDir, _ = cmd.Flags().GetString("notary-dir")
		}
		if cmd.Flags().Changed("log-level") {
			cfg.LogLevel, _ = cmd.Flags().GetString("log-level")
		}

		log.Init(log.Config{
			Level:      log.Level(cfg.LogLevel),
			JSONOutput: cfg.LogJSON,
		})
		logger := log.WithComponent("serve")
		logger.Info().Str("version", Version).Int("port", cfg.Port).
			Str("db_dir", cfg.DBDir).Msg("starting network map service")

		if err := os.MkdirAll(cfg.DBDir, 0o700); err != nil {
			return fmt.Errorf("failed to create data directory: %v", err)
		}
		db, err := storage.OpenBolt(cfg.DBDir)
		if err != nil {
			return fmt.Errorf("failed to open database: %v", err)
		}
		defer db.Close()

		// Legacy filesystem collections move into the database before anything
		// reads them. A failed migration fails startup.
		blobs, texts, err := migrate.Default(cfg.DBDir, db)
		if err != nil {
			return fmt.Errorf("failed to prepare migrations: %v", err)
		}
		if err := migrate.Run(cmd.Context(), blobs, texts); err != nil {
			return fmt.Errorf("migration failed: %v", err)
		}

		cipher, err := security.NewCipherFromPassword(cfg.Password)
		if err != nil {
			return fmt.Errorf("failed to derive key cipher: %v", err)
		}
		keyStore := db.Texts(storage.CollectionText)
		authority, generated, err := security.LoadOrGenerate(keyStore, cipher, "Atlas Network Map Root")
		if err != nil {
			return fmt.Errorf("signing key unavailable (wrong admin password or corrupt record?): %v", err)
		}
		if generated {
			logger.Info().Msg("no stored signing key, generated a fresh one")
		}

		broker := events.NewBroker()
		broker.Start()
		defer broker.Stop()

		collector := metrics.NewCollector(broker)
		collector.Start()
		defer collector.Stop()

		stores := processor.Stores{
			NetworkParameters: db.Blobs(storage.CollectionNetworkParameters),
			NetworkMap:        db.Blobs(storage.CollectionNetworkMap),
			NodeInfos:         db.Blobs(storage.CollectionNodeInfo),
			ParametersUpdates: db.Texts(storage.CollectionParametersUpdate),
			Texts:             db.Texts(storage.CollectionText),
		}
		proc, err := processor.New(processor.Config{
			NotaryDir:        cfg.NotaryDir,
			NotaryPattern:    notaryCertPattern,
			WatchInterval:    cfg.NotaryScan.Std(),
			ParamUpdateDelay: cfg.ParamUpdateDelay.Std(),
			NetworkMapDelay:  cfg.NetworkMapDelay.Std(),
		}, stores, authority, broker)
		if err != nil {
			return err
		}
		if err := proc.Start(); err != nil {
			return fmt.Errorf("failed to start processor: %v", err)
		}
		defer proc.Stop()

		server := api.NewServer(proc, stores, authority, broker, api.Options{
			CacheTimeout: cfg.CacheTimeout.Std(),
			Username:     cfg.Username,
			Password:     cfg.Password,
			TLS:          cfg.TLS,
			TLSCertPath:  cfg.TLSCertPath,
			TLSKeyPath:   cfg.TLSKeyPath,
		})
		addr := fmt.Sprintf("%s:%d", cfg.Hostname, cfg.Port)
		errCh := make(chan error, 1)
		go func() {
			if err := server.Start(addr); err != nil {
				errCh <- err
			}
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-sigCh:
			logger.Info().Str("signal", sig.String()).Msg("shutting down")
		case err := <-errCh:
			return fmt.Errorf("http server error: %v", err)
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("http shutdown failed")
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().String("config", "", "Path to the YAML configuration file")
	serveCmd.Flags().Int("port", 8080, "HTTP listen port")
	serveCmd.Flags().String("db-dir", ".db", "Data directory")
	serveCmd.Flags().String("notary-dir", "notary-certificates", "Watched notary certificate directory")
	serveCmd.Flags().String("log-level", "info", "Log level (debug, info, warn, error)")
}
