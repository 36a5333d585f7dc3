package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nitesh/civictrack/internal/config"
	"github.com/nitesh/civictrack/internal/db"
	"github.com/nitesh/civictrack/internal/geocode"
	"github.com/nitesh/civictrack/internal/location"
	"github.com/nitesh/civictrack/internal/service"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "civictrack",
	Short: "Neighborhood civic issue tracker",
	Long:  "Report and browse civic issues, limited to those within a few kilometers of your saved location.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		if err := c.Validate(); err != nil {
			return err
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// openDB connects to the configured issue database.
func openDB(ctx context.Context) (*sqlx.DB, error) {
	return db.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL, db.DefaultOptions)
}

// newGeocoder returns nil when geocoding is not configured.
func newGeocoder() service.Geocoder {
	if cfg.Geocode.BaseURL == "" {
		return nil
	}
	hc := &http.Client{Timeout: time.Duration(cfg.Geocode.TimeoutSecs) * time.Second}
	return geocode.NewClient(cfg.Geocode.BaseURL, cfg.Geocode.UserAgent, hc, geocode.WithRateLimit(cfg.Geocode.RPS))
}

// localStore is the CLI's saved location file.
func localStore() (*location.FileStore, error) {
	path := cfg.Location.File
	if path == "" {
		p, err := location.DefaultFilePath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	return location.NewFileStore(path), nil
}

// single serves every session from one store, for single-user setups.
func single(s location.Store) location.Provider {
	return func(string) location.Store { return s }
}
