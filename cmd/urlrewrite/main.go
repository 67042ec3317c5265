// cmd/urlrewrite/main.go
//
// URL rewrite engine – CLI entry point.
//
// Life-cycle
// ----------
//
//  1. Parse flags (cobra) and resolve the project root.
//
//  2. Start the daily rotating logger for the sub-command (tees to console
//     when running in a TTY).
//
//  3. Build a Vault client when VAULT_ADDR is set, then load the layered
//     config so `vault:` values resolve before validation.
//
//  4. Expose Prometheus /metrics when metrics.listen_addr is set.
//
//  5. Run the sub-command:
//
//     • import <bunch.yaml>  – derive url keys, build and reconcile rewrites.
//     • serve                – answer request paths from url_rewrite.
//
// Large comment blocks are framed by blank “//” lines; inline comments use
// a single “//”.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yanizio/adept-urlrewrite/internal/config"
	"github.com/yanizio/adept-urlrewrite/internal/database"
	"github.com/yanizio/adept-urlrewrite/internal/logger"
	"github.com/yanizio/adept-urlrewrite/internal/server"
	"github.com/yanizio/adept-urlrewrite/internal/vault"
)

// app carries what every sub-command needs after bootstrap.
type app struct {
	root  string
	debug bool

	log *zap.SugaredLogger
	cfg *config.Config
}

// runningInTTY returns true when stdout is a character device.
func runningInTTY() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "urlrewrite:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:           "urlrewrite",
		Short:         "Generate and serve catalog URL rewrites",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&a.root, "root", "", "project root holding conf/global.yaml (default: discovered)")
	cmd.PersistentFlags().BoolVar(&a.debug, "debug", false, "log at debug level")

	cmd.AddCommand(newImportCmd(a), newServeCmd(a))
	return cmd
}

// bootstrap installs the logger and loads the config for sub-command name.
func (a *app) bootstrap(ctx context.Context, name string) error {
	if a.root == "" {
		a.root = config.RootDir()
	}

	log, err := logger.New(a.root, name, runningInTTY(), a.debug)
	if err != nil {
		return fmt.Errorf("start logger: %w", err)
	}
	a.log = log

	//
	// ── Vault (optional) ────────────────────────────────────────────────
	//
	var (
		secrets config.SecretResolver
		vcli    *vault.Client
	)
	if os.Getenv("VAULT_ADDR") != "" {
		vcli, err = vault.New(ctx, log.Named("vault"), vault.DefaultCacheTTL)
		if err != nil {
			return err
		}
		secrets = vcli
	}

	cfg, err := config.LoadFrom(ctx, a.root, secrets)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if vcli != nil {
		vcli.SetCacheTTL(cfg.Vault.CacheTTL)
	}
	a.cfg = cfg
	return nil
}

// openDB builds the DSN and opens the catalog pool.
func (a *app) openDB(ctx context.Context) (*sqlx.DB, error) {
	dsn, err := database.BuildDSN(a.cfg.Database.DSN, a.cfg.Database.Password)
	if err != nil {
		return nil, err
	}
	db, err := database.OpenWithOptions(ctx, dsn, database.Options{
		MaxOpenConns:    a.cfg.Database.MaxOpenConns,
		MaxIdleConns:    a.cfg.Database.MaxIdleConns,
		ConnMaxLifetime: a.cfg.Database.ConnMaxLifetime,
		Retries:         a.cfg.Database.Retries,
		RetryBackoff:    a.cfg.Database.RetryBackoff,
	})
	if err != nil {
		return nil, fmt.Errorf("connect catalog DB: %w", err)
	}
	a.log.Infow("catalog DB online")
	return db, nil
}

// adminRouter returns the chi router behind metrics.listen_addr.
func adminRouter() chi.Router {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// startAdmin serves r on metrics.listen_addr until ctx ends.  Empty address
// disables the listener.
func (a *app) startAdmin(ctx context.Context, r chi.Router) {
	addr := a.cfg.Metrics.ListenAddr
	if addr == "" {
		return
	}
	go func() {
		a.log.Infow("admin listener online", "addr", addr)
		if err := server.Run(ctx, server.New(addr, r)); err != nil {
			a.log.Errorw("admin listener failed", "addr", addr, "err", err)
		}
	}()
}
