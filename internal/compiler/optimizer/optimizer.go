// Package optimizer removes statements that provably have no effect: unread
// local declarations and anything after a terminator.
package optimizer

import (
	"regexp"

	"github.com/btouchard/catluac/internal/compiler/ast"
	"github.com/btouchard/catluac/internal/compiler/errors"
)

const phase = "optimizer"

// interpRef matches a {name}, {l!name}, {g!name} or {o!name} reference
// inside a string literal.
var interpRef = regexp.MustCompile(`\{(?:[lgo]!)?([A-Za-z_][A-Za-z0-9_]*)`)

// Optimizer runs the read-counting and dead-code-elimination passes. It is
// a no-op below opt level 2.
type Optimizer struct {
	Diags    *errors.Diagnostics
	optLevel int
}

func New(optLevel int) *Optimizer {
	return &Optimizer{Diags: errors.NewDiagnostics(), optLevel: optLevel}
}

func (o *Optimizer) Run(shards []*ast.Shard) {
	if o.optLevel < 2 {
		return
	}
	for _, shard := range shards {
		for _, fn := range shard.FuncDefs {
			reads := countReads(fn.Body)
			fn.Body = o.eliminate(fn.Body, reads)
		}
		for _, ev := range shard.Events {
			reads := countReads(ev.Body)
			ev.Body = o.eliminate(ev.Body, reads)
		}
	}
}

// countReads increments a per-name counter for every VarRef read outside an
// assignment target and every {name}-shaped occurrence inside a string
// literal, across one function/event body.
func countReads(stmts []ast.Statement) map[string]int {
	reads := make(map[string]int)
	var walkBlock func([]ast.Statement)
	var walkExpr func(ast.Expression)

	walkExpr = func(e ast.Expression) {
		switch x := e.(type) {
		case *ast.VarRef:
			reads[x.Name]++
		case *ast.PropRef:
			walkExpr(x.Object)
		case *ast.IndexRef:
			walkExpr(x.Table)
			walkExpr(x.Index)
		case *ast.BinaryExpr:
			walkExpr(x.Left)
			walkExpr(x.Right)
		case *ast.UnaryExpr:
			walkExpr(x.Right)
		case *ast.CallStmt:
			walkExpr(x.Func)
			for _, a := range x.Args {
				walkExpr(a)
			}
		case *ast.StringLit:
			countInterpRefs(x.Value, reads)
		case *ast.InterpStringLit:
			countInterpRefs(x.Value, reads)
		}
	}

	walkBlock = func(stmts []ast.Statement) {
		for _, stmt := range stmts {
			switch s := stmt.(type) {
			case *ast.AssignStmt:
				for _, t := range s.Targets {
					if _, ok := t.(*ast.VarRef); !ok {
						walkExpr(t)
					}
				}
				walkExpr(s.Value)
			case *ast.CallStmt:
				walkExpr(s.Func)
				for _, a := range s.Args {
					walkExpr(a)
				}
				for _, t := range s.Targets {
					if _, ok := t.(*ast.VarRef); !ok {
						walkExpr(t)
					}
				}
			case *ast.IfStmt:
				walkExpr(s.Condition)
				walkBlock(s.TrueBody)
				for _, ei := range s.ElseIfs {
					walkExpr(ei.Condition)
					walkBlock(ei.Body)
				}
				walkBlock(s.FalseBody)
			case *ast.RepeatStmt:
				if s.Count != nil {
					walkExpr(s.Count)
				}
				walkBlock(s.Body)
			case *ast.ForStmt:
				walkExpr(s.Iterator)
				walkBlock(s.Body)
			case *ast.ReturnStmt:
				if s.Value != nil {
					walkExpr(s.Value)
				}
			case *ast.DeleteStmt:
				walkExpr(s.Target)
			}
		}
	}

	walkBlock(stmts)
	return reads
}

func countInterpRefs(s string, reads map[string]int) {
	for _, m := range interpRef.FindAllStringSubmatch(s, -1) {
		reads[m[1]]++
	}
}

// eliminate drops unread local declarations and truncates dead code after a
// terminator, recursing into every body-bearing statement.
func (o *Optimizer) eliminate(stmts []ast.Statement, reads map[string]int) []ast.Statement {
	out := make([]ast.Statement, 0, len(stmts))
	for i, stmt := range stmts {
		if isTerminator(stmt) {
			out = append(out, stmt)
			if rest := len(stmts) - i - 1; rest > 0 {
				o.Diags.Warnf(phase, stmt.StmtLine(), "%d statement(s) after %s are unreachable and were removed", rest, stmt.TokenLiteral())
			}
			return out
		}

		switch s := stmt.(type) {
		case *ast.AssignStmt:
			if isDeadLocal(s, reads) {
				continue
			}
			out = append(out, s)

		case *ast.IfStmt:
			s.TrueBody = o.eliminate(s.TrueBody, reads)
			for j := range s.ElseIfs {
				s.ElseIfs[j].Body = o.eliminate(s.ElseIfs[j].Body, reads)
			}
			s.FalseBody = o.eliminate(s.FalseBody, reads)
			out = append(out, s)

		case *ast.RepeatStmt:
			s.Body = o.eliminate(s.Body, reads)
			out = append(out, s)

		case *ast.ForStmt:
			s.Body = o.eliminate(s.Body, reads)
			out = append(out, s)

		default:
			out = append(out, stmt)
		}
	}
	return out
}

func isTerminator(stmt ast.Statement) bool {
	switch stmt.(type) {
	case *ast.ReturnStmt, *ast.BreakStmt:
		return true
	}
	return false
}

// isDeadLocal reports whether s is a single-target local declaration whose
// target has zero reads and whose value has no call in it. "Local" is read
// off the target VarRef's resolved prefix rather than the statement's own
// scope keyword, since semantic analysis resolves a bare `l!x = ...` (no
// "local" keyword) to a local just as surely as `local x = ...` does.
func isDeadLocal(s *ast.AssignStmt, reads map[string]int) bool {
	if len(s.Targets) != 1 {
		return false
	}
	ref, ok := s.Targets[0].(*ast.VarRef)
	if !ok || ref.Prefix != ast.PrefixLocal {
		return false
	}
	if reads[ref.Name] > 0 {
		return false
	}
	return !containsCall(s.Value)
}

func containsCall(e ast.Expression) bool {
	switch x := e.(type) {
	case *ast.CallStmt:
		return true
	case *ast.PropRef:
		return containsCall(x.Object)
	case *ast.IndexRef:
		return containsCall(x.Table) || containsCall(x.Index)
	case *ast.BinaryExpr:
		return containsCall(x.Left) || containsCall(x.Right)
	case *ast.UnaryExpr:
		return containsCall(x.Right)
	default:
		return false
	}
}
