// internal/routing/middleware.go
//
// Rewrite-serving middleware.
//
// Workflow
// --------
//   1. Pick the store view from the configured header, else the default code.
//   2. Look the request path up in that store's Table.
//   3. Redirect rows answer 301 or 302 with Location set to the target.
//      Plain rows replace r.URL.Path with the target and call next.
//      Misses call next untouched.
//
// The matched row travels in the request context; FromContext exposes it to
// the terminal handler.
//
// Notes
// -----
// • Table load failures are logged and treated as misses so a database
//   hiccup degrades to pass-through instead of 500s.
// • Oxford commas, two spaces after periods.

package routing

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/yanizio/adept-urlrewrite/internal/catalog"
	"github.com/yanizio/adept-urlrewrite/internal/metrics"
)

// Lookup results used as the "result" label of RewriteLookupsTotal.
const (
	ResultRewrite  = "rewrite"
	ResultRedirect = "redirect"
	ResultMiss     = "miss"
)

// Options configure Middleware.
type Options struct {
	StoreHeader  string // e.g. "X-Store-Code"; empty disables the header
	DefaultStore string
}

type ctxKey struct{}

// FromContext returns the rewrite matched for the current request.
func FromContext(ctx context.Context) (catalog.URLRewrite, bool) {
	rw, ok := ctx.Value(ctxKey{}).(catalog.URLRewrite)
	return rw, ok
}

// Middleware returns a Chi-compatible middleware that serves url_rewrite.
func Middleware(ts *Tables, opts Options) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			code := opts.DefaultStore
			if opts.StoreHeader != "" {
				if h := r.Header.Get(opts.StoreHeader); h != "" {
					code = h
				}
			}

			table, err := ts.Get(r.Context(), code)
			if err != nil {
				zap.L().Warn("rewrite table unavailable",
					zap.String("store", code), zap.Error(err))
				metrics.RewriteLookupsTotal.WithLabelValues(ResultMiss).Inc()
				next.ServeHTTP(w, r)
				return
			}

			rw, ok := table.Lookup(r.URL.Path)
			if !ok {
				metrics.RewriteLookupsTotal.WithLabelValues(ResultMiss).Inc()
				next.ServeHTTP(w, r)
				return
			}

			target := location(rw.TargetPath)
			if rw.IsRedirect() {
				metrics.RewriteLookupsTotal.WithLabelValues(ResultRedirect).Inc()
				if r.URL.RawQuery != "" && !strings.Contains(target, "?") {
					target += "?" + r.URL.RawQuery
				}
				http.Redirect(w, r, target, rw.RedirectType)
				return
			}

			metrics.RewriteLookupsTotal.WithLabelValues(ResultRewrite).Inc()
			original := r.URL.Path
			r.URL.Path = target
			r.URL.RawPath = ""
			r.RequestURI = r.URL.RequestURI()
			zap.L().Debug("url rewrite",
				zap.String("store", code),
				zap.String("from", original),
				zap.String("to", target))

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, rw)))
		})
	}
}

// location turns a stored target into a path or an absolute URL.
func location(target string) string {
	if strings.Contains(target, "://") {
		return target
	}
	return "/" + strings.TrimPrefix(target, "/")
}
