package cmd

import (
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/quantumalpha/replicator/config"
	"github.com/quantumalpha/replicator/follower"
	"github.com/quantumalpha/replicator/ledger"
	"github.com/quantumalpha/replicator/notify"
	"github.com/quantumalpha/replicator/poller"
	"github.com/quantumalpha/replicator/replicate"
	"github.com/quantumalpha/replicator/venue"
)

var rootCmd = &cobra.Command{
	Use:   "replicator",
	Short: "A master-to-follower trade replication engine",
	Long: `Replicator mirrors fills from a designated master brokerage account onto
follower accounts, each under its own risk configuration.

It provides tools for:
  - Polling venue trade books into a local ledger
  - Fanning master trades out to followers, with per-follower risk checks
  - Exit and modify synchronization across follower orders
  - Querying order mappings, trades, and audit events
  - Managing follower accounts and the master designation`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

var (
	cfgFile string
	verbose bool
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (YAML or JSON)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "development logging")
}

const (
	accountsKey = "replicator:accounts"
	masterKey   = "replicator:master"
)

func loadConfig() (*config.Config, error) {
	if cfgFile == "" {
		return config.Default(), nil
	}
	return config.LoadFromFile(cfgFile)
}

func newLogger() (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// deps is the wired service graph shared by the CLI commands.
type deps struct {
	cfg       *config.Config
	logger    *zap.Logger
	redis     *redis.Client
	store     *ledger.Store
	followers *follower.Redis
	venue     *venue.HTTPClient
	notifier  *notify.Notifier
	engine    *replicate.Engine
	poller    *poller.Poller
}

func buildDeps() (*deps, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := newLogger()
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	store, err := ledger.Open(cfg.Ledger.DBPath, logger)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	followers := follower.NewRedis(rdb, accountsKey, masterKey)

	var opts []venue.HTTPOption
	timeout, err := cfg.Venue.ParseTimeout()
	if err != nil {
		store.Close()
		return nil, err
	}
	if timeout > 0 {
		opts = append(opts, venue.WithTimeout(timeout))
	}
	if cfg.Venue.Retries > 0 {
		opts = append(opts, venue.WithRetry(cfg.Venue.Retries, 500*time.Millisecond))
	}
	vc := venue.NewHTTPClient(cfg.Venue.BaseURL, logger, opts...)

	notifier := notify.New(logger)
	engine := replicate.New(followers, vc, store, logger, cfg.Engine.Workers)
	p := poller.New(followers, vc, store, notifier, logger, cfg.Engine.Workers)

	return &deps{
		cfg:       cfg,
		logger:    logger,
		redis:     rdb,
		store:     store,
		followers: followers,
		venue:     vc,
		notifier:  notifier,
		engine:    engine,
		poller:    p,
	}, nil
}

func (d *deps) Close() {
	d.store.Close()
	d.redis.Close()
	_ = d.logger.Sync()
}
