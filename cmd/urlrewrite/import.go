// cmd/urlrewrite/import.go
//
// `urlrewrite import <bunch.yaml>`
//
// Runs one bunch through the URL pipeline and prints the YAML status report
// to stdout, or to --report.  The first failed row aborts the run unless
// --continue-on-fatal is given.  The exit status is non-zero when the run
// aborted or any row failed.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"

	"github.com/yanizio/adept-urlrewrite/internal/category"
	"github.com/yanizio/adept-urlrewrite/internal/config"
	"github.com/yanizio/adept-urlrewrite/internal/importer"
	"github.com/yanizio/adept-urlrewrite/internal/persistence"
	"github.com/yanizio/adept-urlrewrite/internal/slug"
)

type importFlags struct {
	report  string
	strict          bool
	continueOnFatal bool
	addOnly         bool
}

func newImportCmd(a *app) *cobra.Command {
	var f importFlags

	cmd := &cobra.Command{
		Use:   "import <bunch.yaml>",
		Short: "Derive url keys and rewrites for a bunch of product rows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.bootstrap(ctx, "import"); err != nil {
				return err
			}
			if cmd.Flags().Changed("strict") {
				a.cfg.Import.Strict = f.strict
			}
			if cmd.Flags().Changed("continue-on-fatal") {
				a.cfg.Import.ContinueOnFatal = f.continueOnFatal
			}
			if cmd.Flags().Changed("add-only") {
				a.cfg.Import.UpdateMode = !f.addOnly
			}
			return runImport(ctx, a, args[0], f)
		},
	}

	cmd.Flags().StringVar(&f.report, "report", "", "write the YAML report to this file instead of stdout")
	cmd.Flags().BoolVar(&f.strict, "strict", false, "abort on the first row problem (overrides import.strict)")
	cmd.Flags().BoolVar(&f.continueOnFatal, "continue-on-fatal", false,
		"record failed rows and keep going (overrides import.continue_on_fatal, ignored with --strict)")
	cmd.Flags().BoolVar(&f.addOnly, "add-only", false, "insert rewrites without reconciling existing rows")
	return cmd
}

// processorOptions maps the import.* block onto importer.Options.
func processorOptions(c config.Import, entityTypeID int) importer.Options {
	opts := importer.DefaultOptions()
	opts.ProductURLSuffix = c.ProductURLSuffix
	opts.SaveRewritesHistory = c.SaveRewritesHistory
	opts.UseCategoriesForURLPath = c.UseCategoriesForURLPath
	opts.UpdateURLKeyFromName = c.UpdateURLKeyFromName
	opts.Strict = c.Strict
	opts.ContinueOnFatal = c.ContinueOnFatal
	opts.UpdateMode = c.UpdateMode
	opts.MaxProbes = c.MaxProbes
	if entityTypeID > 0 {
		opts.EntityTypeID = entityTypeID
	}
	return opts
}

// normalizer honours import.locale.
func normalizer(locale string) (*slug.Normalizer, error) {
	if locale == "" {
		return slug.New(), nil
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return nil, fmt.Errorf("import.locale: %w", err)
	}
	return slug.New(slug.WithLocale(tag)), nil
}

func runImport(ctx context.Context, a *app, path string, f importFlags) error {
	log := a.log

	rows, err := importer.LoadBunch(path)
	if err != nil {
		return err
	}
	log.Infow("bunch loaded", "file", path, "rows", len(rows))

	norm, err := normalizer(a.cfg.Import.Locale)
	if err != nil {
		return err
	}

	db, err := a.openDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	a.startAdmin(ctx, adminRouter())

	store := persistence.New(db, log)
	snap, err := category.LoadSnapshot(ctx, store)
	if err != nil {
		return err
	}
	typeID, err := store.EntityTypeID(ctx, persistence.EntityTypeProduct)
	if err != nil {
		return err
	}

	proc := importer.NewProcessor(importer.Deps{
		Products:   store,
		Values:     store,
		Rewrites:   store,
		Writer:     store,
		Relations:  store,
		Categories: snap,
		Roots:      snap,
		Stores:     snap,
		Normalizer: norm,
	}, processorOptions(a.cfg.Import, typeID), log)

	rep, runErr := proc.Run(ctx, rows)

	if runErr == nil && a.cfg.Import.WriteURLKeys {
		n, err := importer.WriteURLKeys(ctx, snap, store, typeID, rep.URLKeys)
		if err != nil {
			runErr = err
		}
		log.Infow("url keys written", "count", n)
	}

	if err := writeReport(rep, f.report); err != nil {
		return err
	}

	log.Infow("bunch done",
		"rows", rep.Rows,
		"failed", rep.Failed,
		"created", rep.Created,
		"updated", rep.Updated,
		"redirected", rep.Redirected,
		"warnings", len(rep.Warnings),
	)
	if runErr != nil {
		return runErr
	}
	if rep.Failed > 0 {
		return fmt.Errorf("%d of %d rows failed", rep.Failed, rep.Rows)
	}
	return nil
}

// writeReport encodes rep to path, or to stdout when path is empty.  A
// failed close is reported; on a full disk that is where the write shows.
func writeReport(rep *importer.Report, path string) (err error) {
	if path == "" {
		return rep.WriteYAML(os.Stdout)
	}
	fh, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := fh.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close report: %w", cerr)
		}
	}()
	return rep.WriteYAML(fh)
}
