// internal/importer/report.go
//
// Bunch runner and status report.
//
// Run processes rows in order.  A RowError aborts the bunch in strict mode;
// otherwise it is recorded and the next row runs.  Non-RowErrors (context
// cancellation) always abort.
package importer

import (
	"context"
	"errors"
	"io"

	"gopkg.in/yaml.v3"
)

// URLKeyUpdate is one url_key value to write back.
type URLKeyUpdate struct {
	SKU           string `yaml:"sku"`
	StoreViewCode string `yaml:"store_view_code"`
	EntityID      int64  `yaml:"entity_id"`
	URLKey        string `yaml:"url_key"`
}

// Failure is a RowError flattened for the report.
type Failure struct {
	File    string `yaml:"file,omitempty"`
	Line    int    `yaml:"line,omitempty"`
	SKU     string `yaml:"sku"`
	Column  string `yaml:"column,omitempty"`
	Message string `yaml:"message"`
}

// Report is the status of one bunch.
type Report struct {
	Rows       int            `yaml:"rows"`
	Succeeded  int            `yaml:"succeeded"`
	Failed     int            `yaml:"failed"`
	Created    int            `yaml:"created"`
	Updated    int            `yaml:"updated"`
	Unchanged  int            `yaml:"unchanged"`
	Redirected int            `yaml:"redirected"`
	Discarded  int            `yaml:"discarded"`
	URLKeys    []URLKeyUpdate `yaml:"url_keys,omitempty"`
	Warnings   []Warning      `yaml:"warnings,omitempty"`
	Failures   []Failure      `yaml:"failures,omitempty"`
}

// Add folds one row result into the report.
func (r *Report) Add(res Result) {
	r.Rows++
	r.Succeeded++
	if k, ok := res.Columns[ColumnURLKey]; ok {
		r.URLKeys = append(r.URLKeys, URLKeyUpdate{
			SKU:           res.SKU,
			StoreViewCode: res.StoreViewCode,
			EntityID:      res.Entity.EntityID,
			URLKey:        k,
		})
	}
	for _, sp := range res.Plans {
		if k, ok := res.Columns[ColumnURLKey]; ok && sp.URLKey != "" && sp.URLKey != k {
			r.URLKeys = append(r.URLKeys, URLKeyUpdate{
				SKU:           res.SKU,
				StoreViewCode: sp.StoreCode,
				EntityID:      res.Entity.EntityID,
				URLKey:        sp.URLKey,
			})
		}
		r.Created += len(sp.Plan.Create)
		r.Updated += len(sp.Plan.Update)
		r.Unchanged += len(sp.Plan.Unchanged)
		r.Redirected += len(sp.Plan.Redirects)
		r.Discarded += len(sp.Plan.Discarded)
	}
	r.Warnings = append(r.Warnings, res.Warnings...)
}

// Fail records a failed row.
func (r *Report) Fail(res Result, err *RowError) {
	r.Rows++
	r.Failed++
	r.Warnings = append(r.Warnings, res.Warnings...)
	r.Failures = append(r.Failures, Failure{
		File:    err.File,
		Line:    err.Line,
		SKU:     err.SKU,
		Column:  err.Column,
		Message: err.Err.Error(),
	})
}

// WriteYAML encodes the report.
func (r *Report) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return err
	}
	return enc.Close()
}

// Run processes rows and returns the report.  The error is the RowError
// that aborted the run, or a context error.  Only a non-strict run with
// ContinueOnFatal records the failure and moves on to the next row.
func (p *Processor) Run(ctx context.Context, rows []Row) (*Report, error) {
	rep := &Report{}
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		res, err := p.Process(ctx, row)
		if err == nil {
			rep.Add(res)
			continue
		}

		var rerr *RowError
		if !errors.As(err, &rerr) {
			return rep, err
		}
		rep.Fail(res, rerr)
		if p.opts.Strict || !p.opts.ContinueOnFatal ||
			errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return rep, err
		}
		p.log.Errorw("row failed", "err", err)
	}
	return rep, nil
}
