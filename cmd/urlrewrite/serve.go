// cmd/urlrewrite/serve.go
//
// `urlrewrite serve`
//
// Front door that answers request paths from url_rewrite.  Hits are
// rewritten to their target and forwarded to serve.upstream, redirects
// answer 301 or 302, and misses pass through unchanged.  Without an
// upstream the terminal handler reports the match in X-Rewrite-Target
// and answers 404 for misses, which is handy for smoke tests.
//
// The admin listener adds POST /tables/{store}/invalidate so an import job
// can drop a store's cached table right after it finishes.
package main

import (
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yanizio/adept-urlrewrite/internal/middleware"
	"github.com/yanizio/adept-urlrewrite/internal/persistence"
	"github.com/yanizio/adept-urlrewrite/internal/routing"
	"github.com/yanizio/adept-urlrewrite/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve request paths from url_rewrite",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if err := a.bootstrap(ctx, "serve"); err != nil {
				return err
			}

			db, err := a.openDB(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			sc := a.cfg.Serve
			tables := routing.NewTables(persistence.New(db, a.log), sc.TableTTL, sc.MaxTables, a.log)

			terminal, err := terminalHandler(sc.Upstream)
			if err != nil {
				return err
			}

			admin := adminRouter()
			admin.Post("/tables/{store}/invalidate", func(w http.ResponseWriter, r *http.Request) {
				tables.Invalidate(chi.URLParam(r, "store"))
				w.WriteHeader(http.StatusNoContent)
			})
			a.startAdmin(ctx, admin)

			a.log.Infow("front door online", "addr", sc.ListenAddr, "upstream", sc.Upstream)
			return server.Run(ctx, server.New(sc.ListenAddr, frontRouter(tables, routing.Options{
				StoreHeader:  sc.StoreHeader,
				DefaultStore: sc.StoreCode,
			}, terminal, a.log)))
		},
	}
}

// frontRouter wires the rewrite middleware in front of terminal.
func frontRouter(tables *routing.Tables, opts routing.Options, terminal http.Handler, log *zap.SugaredLogger) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.AccessLog(log))
	r.Use(chimw.Recoverer)
	r.Use(routing.Middleware(tables, opts))
	r.Handle("/*", terminal)
	return r
}

// terminalHandler proxies to upstream, or reports matches when it is empty.
func terminalHandler(upstream string) (http.Handler, error) {
	if upstream != "" {
		u, err := url.Parse(upstream)
		if err != nil {
			return nil, err
		}
		return httputil.NewSingleHostReverseProxy(u), nil
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := routing.FromContext(r.Context()); !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("X-Rewrite-Target", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}), nil
}
