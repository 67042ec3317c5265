// internal/config/model.go
//
// Typed configuration model.
//
// Context
// -------
// These structs define the shape of the configuration tree that
// `internal/config/loader.go` builds from four overlay layers:
//
//   • built-in defaults                            – see defaults(),
//   • optional `conf/.env`                         – dotenv values,
//   • `conf/global.yaml`                           – primary static file,
//   • `URLREWRITE_`-prefixed environment overrides – highest precedence.
//
// Any value whose string begins with the prefix `vault:` is resolved
// through a SecretResolver *before* unmarshalling, so the model never
// stores Vault references, only plain strings.
//
// Notes
// -----
//   • Struct tags use `koanf:"…"`, not `yaml:"…"`.
//   • The `Paths` block is filled at runtime; YAML must not try to set it.
//   • Oxford commas, two spaces after periods.  No em-dash.

package config

import "time"

//
// Import section
//

// Import holds the switches of the URL pipeline.
type Import struct {
	ProductURLSuffix        string `koanf:"product_url_suffix"`
	SaveRewritesHistory     bool   `koanf:"save_rewrites_history"`
	UseCategoriesForURLPath bool   `koanf:"use_categories_for_url_path"`
	UpdateURLKeyFromName    bool   `koanf:"update_url_key_from_name"`
	Strict                  bool   `koanf:"strict"`
	UpdateMode              bool   `koanf:"update_mode"`
	MaxProbes               int    `koanf:"max_probes" validate:"gte=1"`
	// WriteURLKeys stores resolved url keys back into the varchar table.
	WriteURLKeys bool `koanf:"write_url_keys"`
	// Locale drives locale-specific slug rules, e.g. "de" for umlauts.
	Locale string `koanf:"locale" validate:"omitempty,bcp47_language_tag"`
	// ContinueOnFatal records fatal row failures and keeps going instead of
	// aborting the bunch.  Ignored when Strict is set.
	ContinueOnFatal bool `koanf:"continue_on_fatal"`
}

//
// Database section
//

// Database holds the catalog DSN and pool tunables.
//
// The DSN is kept in YAML so operators can tweak host, port, or flags
// without touching Vault.  Password, when set, replaces the DSN password and
// is normally a `vault:` reference.
type Database struct {
	DSN             string        `koanf:"dsn"               validate:"required"`
	Password        string        `koanf:"password"          validate:"vault_resolved"`
	MaxOpenConns    int           `koanf:"max_open_conns"    validate:"gte=1"`
	MaxIdleConns    int           `koanf:"max_idle_conns"    validate:"gte=0"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	Retries         int           `koanf:"retries"           validate:"gte=0"`
	RetryBackoff    time.Duration `koanf:"retry_backoff"`
}

//
// Metrics section
//

// Metrics configures the Prometheus listener.  Empty ListenAddr disables it.
type Metrics struct {
	ListenAddr string `koanf:"listen_addr" validate:"omitempty,hostname_port"`
}

//
// Serve section
//

// Serve configures the rewrite front door.
type Serve struct {
	ListenAddr string `koanf:"listen_addr" validate:"required,hostname_port"`
	// Upstream receives rewritten requests.  Empty means answer 404 for
	// misses and a bare 200 with X-Rewrite-Target for hits.
	Upstream    string        `koanf:"upstream"     validate:"omitempty,url"`
	StoreCode   string        `koanf:"store_code"   validate:"required"`
	StoreHeader string        `koanf:"store_header"`
	TableTTL    time.Duration `koanf:"table_ttl"`
	MaxTables   int           `koanf:"max_tables"   validate:"gte=1"`
}

//
// Vault section
//

// Vault tunes secret resolution.  Connection settings come from the usual
// VAULT_ADDR and VAULT_TOKEN variables.
type Vault struct {
	CacheTTL time.Duration `koanf:"cache_ttl"`
}

//
// Paths section (runtime only)
//

// Paths is resolved at runtime, never set in YAML or env.
type Paths struct {
	Root string // URLREWRITE_ROOT or discovered parent
}

//
// Root aggregate
//

// Config is the immutable aggregate returned by Load() and cached in an
// atomic.Pointer for lock-free reads.
type Config struct {
	Import   Import   `koanf:"import"`
	Database Database `koanf:"database"`
	Metrics  Metrics  `koanf:"metrics"`
	Serve    Serve    `koanf:"serve"`
	Vault    Vault    `koanf:"vault"`
	Paths    Paths    `koanf:"-"`
}

// defaults are loaded before any file or env layer.
func defaults() map[string]any {
	return map[string]any{
		"import.product_url_suffix":          ".html",
		"import.save_rewrites_history":       true,
		"import.use_categories_for_url_path": true,
		"import.update_url_key_from_name":    true,
		"import.strict":                      false,
		"import.continue_on_fatal":           false,
		"import.update_mode":                 true,
		"import.max_probes":                  1000,
		"import.write_url_keys":              false,
		"database.max_open_conns":            15,
		"database.max_idle_conns":            5,
		"database.conn_max_lifetime":         "30m",
		"database.retries":                   2,
		"database.retry_backoff":             "500ms",
		"serve.listen_addr":                  ":8080",
		"serve.store_code":                   "default",
		"serve.store_header":                 "X-Store-Code",
		"serve.table_ttl":                    "5m",
		"serve.max_tables":                   32,
		"vault.cache_ttl":                    "10m",
	}
}
