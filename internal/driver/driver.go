// Package driver wires the compiler passes — linker, desugarer, semantic
// analyzer, optimizer, IR emitter and schema emitter — into the single
// pipeline the CLI drives.
package driver

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/btouchard/catluac/internal/compiler/catalog"
	"github.com/btouchard/catluac/internal/compiler/desugar"
	"github.com/btouchard/catluac/internal/compiler/errors"
	"github.com/btouchard/catluac/internal/compiler/irgen"
	"github.com/btouchard/catluac/internal/compiler/linker"
	"github.com/btouchard/catluac/internal/compiler/optimizer"
	"github.com/btouchard/catluac/internal/compiler/schema"
	"github.com/btouchard/catluac/internal/compiler/semantic"
)

// Options controls how Run executes the pipeline.
type Options struct {
	OptLevel   int
	CatalogDSN string // passed to catalog.Load; "" uses catalog.DefaultDSN
	LintMode   bool   // buffer diagnostics instead of stopping at the first fatal pass
}

// Result carries everything a caller might want out of one run: the CWIR
// text (for --ir), the final scripts (for JSON emission), and every
// diagnostic collected across every pass.
type Result struct {
	RunID   string
	CWIR    string
	Scripts []schema.Script
	Diags   *errors.Diagnostics
}

// Run executes the full pipeline against rootPath and returns everything
// collected so far. In lint mode, it keeps going after a fatal pass so the
// diagnostics from every pass that could run are all present in the
// result; otherwise it stops at the first pass whose diagnostics contain a
// fatal error, so later passes never see a malformed tree.
func Run(rootPath string, opts Options) (*Result, error) {
	res := &Result{RunID: uuid.NewString(), Diags: errors.NewDiagnostics()}

	lk := linker.New(opts.LintMode)
	shards := lk.Link(rootPath)
	res.Diags.Merge(lk.Diags)
	if lk.Diags.HasErrors() && !opts.LintMode {
		return res, nil
	}

	shards = desugar.Shards(shards)

	an := semantic.New(opts.OptLevel)
	an.Run(shards)
	res.Diags.Merge(an.Diags)
	if an.Diags.HasErrors() && !opts.LintMode {
		return res, nil
	}

	opt := optimizer.New(opts.OptLevel)
	opt.Run(shards)
	res.Diags.Merge(opt.Diags)
	if opt.Diags.HasErrors() && !opts.LintMode {
		return res, nil
	}

	ir := irgen.New(an.FuncNames)
	res.CWIR = ir.Emit(shards)
	res.Diags.Merge(ir.Diags)
	if ir.Diags.HasErrors() && !opts.LintMode {
		return res, nil
	}

	cat, err := catalog.Load(opts.CatalogDSN)
	if err != nil {
		return res, fmt.Errorf("loading catalog: %w", err)
	}

	se := schema.New(cat, runSeed(res.RunID))
	res.Scripts = se.Emit(res.CWIR)
	res.Diags.Merge(se.Diags)

	return res, nil
}

// runSeed derives a deterministic-per-run (but not cross-run predictable)
// int64 seed from the run's uuid, so global-ID minting doesn't need its own
// entropy source.
func runSeed(runID string) int64 {
	id, err := uuid.Parse(runID)
	if err != nil {
		return 1
	}
	hi := id[0:8]
	var seed int64
	for _, b := range hi {
		seed = seed<<8 | int64(b)
	}
	if seed < 0 {
		seed = -seed
	}
	return seed
}

// JSON renders the result's scripts as the pretty-printed document the CLI
// writes out.
func (r *Result) JSON() ([]byte, error) {
	return json.MarshalIndent(r.Scripts, "", "  ")
}

// Summary renders the one-line, machine-greppable log line the CLI prints
// after a run: run id, input file, script/warning/error counts.
func (r *Result) Summary(file string) string {
	return fmt.Sprintf("compile run=%s file=%s scripts=%d warnings=%d errors=%d",
		r.RunID, file, len(r.Scripts), len(r.Diags.Warnings()), len(r.Diags.Errors()))
}
