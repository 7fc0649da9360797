// Package linker resolves a root source file's require directives into a
// flat, deduplicated, ordered list of shards.
package linker

import (
	"os"
	"path/filepath"

	"github.com/btouchard/catluac/internal/compiler/ast"
	"github.com/btouchard/catluac/internal/compiler/errors"
	"github.com/btouchard/catluac/internal/compiler/lexer"
	"github.com/btouchard/catluac/internal/compiler/parser"
)

// SourceExtension is the file extension appended to a require path that
// doesn't already carry one.
const SourceExtension = ".catlua"

// Linker walks require directives starting from a root file, parsing each
// file at most once (by absolute path) and flattening every shard it finds
// into one ordered list.
type Linker struct {
	lintMode bool
	visited  map[string]bool
	Diags    *errors.Diagnostics
}

// New creates a Linker. In lint mode, a missing required file is silently
// skipped instead of being a fatal error, so that lint diagnostics from the
// files that do exist can still flow.
func New(lintMode bool) *Linker {
	return &Linker{
		lintMode: lintMode,
		visited:  make(map[string]bool),
		Diags:    errors.NewDiagnostics(),
	}
}

// Link parses rootPath and recursively resolves every require it and its
// dependents name, returning the flattened shard list in discovery order.
func (lk *Linker) Link(rootPath string) []*ast.Shard {
	return lk.parseFile(rootPath)
}

func (lk *Linker) parseFile(path string) []*ast.Shard {
	abs, err := filepath.Abs(path)
	if err != nil {
		lk.Diags.Errorf("linker", 0, "cannot resolve path %q: %v", path, err)
		return nil
	}

	// Cycle/dedupe guard: a file already parsed contributes its shards
	// exactly once, at the point it was first reached.
	if lk.visited[abs] {
		return nil
	}
	lk.visited[abs] = true

	data, err := os.ReadFile(abs)
	if err != nil {
		if !lk.lintMode {
			lk.Diags.Errorf("linker", 0, "missing required file %q", path)
		}
		return nil
	}

	l := lexer.New(string(data))
	p := parser.New(l)
	shards := p.ParseFile(filepath.Dir(abs))
	if p.FatalErr() != nil {
		lk.Diags.Errorf("linker", 0, "%v in %s", p.FatalErr(), abs)
		return nil
	}
	lk.Diags.Merge(p.Diags)

	var out []*ast.Shard
	for _, shard := range shards {
		out = append(out, shard)
		dir := filepath.Dir(abs)
		for _, req := range shard.Requires {
			out = append(out, lk.parseFile(lk.resolveRequire(req, dir))...)
		}
	}
	return out
}

// resolveRequire tries the literal path first, then the literal path with
// SourceExtension appended.
func (lk *Linker) resolveRequire(req, dir string) string {
	literal := filepath.Join(dir, req)
	if fileExists(literal) {
		return literal
	}
	withExt := literal
	if filepath.Ext(literal) == "" {
		withExt = literal + SourceExtension
	}
	return withExt
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
