// Package desugar rewrites one surface-level sugar form into its expanded
// form before semantic analysis runs.
package desugar

import "github.com/btouchard/catluac/internal/compiler/ast"

// Shards rewrites every function and event body in place and returns the
// same slice for chaining.
func Shards(shards []*ast.Shard) []*ast.Shard {
	for _, shard := range shards {
		for _, fn := range shard.FuncDefs {
			fn.Body = Block(fn.Body)
		}
		for _, ev := range shard.Events {
			ev.Body = Block(ev.Body)
		}
	}
	return shards
}

// Block applies the "x = a or b" rewrite recursively through every
// body-bearing statement: a single-target "=" assignment whose value is a
// top-level "or" expression becomes "x = a" followed by
// "if not x then x = b end".
func Block(stmts []ast.Statement) []ast.Statement {
	out := make([]ast.Statement, 0, len(stmts))
	for _, stmt := range stmts {
		switch s := stmt.(type) {
		case *ast.AssignStmt:
			if rewritten, ok := rewriteOrAssign(s); ok {
				out = append(out, rewritten...)
				continue
			}
			out = append(out, s)

		case *ast.IfStmt:
			s.TrueBody = Block(s.TrueBody)
			for i := range s.ElseIfs {
				s.ElseIfs[i].Body = Block(s.ElseIfs[i].Body)
			}
			s.FalseBody = Block(s.FalseBody)
			out = append(out, s)

		case *ast.RepeatStmt:
			s.Body = Block(s.Body)
			out = append(out, s)

		case *ast.ForStmt:
			s.Body = Block(s.Body)
			out = append(out, s)

		default:
			out = append(out, stmt)
		}
	}
	return out
}

func rewriteOrAssign(s *ast.AssignStmt) ([]ast.Statement, bool) {
	if s.Op != "=" || len(s.Targets) != 1 {
		return nil, false
	}
	bin, ok := s.Value.(*ast.BinaryExpr)
	if !ok || bin.Op != "or" {
		return nil, false
	}

	line := s.StmtLine()
	assignA := ast.NewAssignStmt(line, *s.StmtAnnotations(), s.Scope, s.Targets, bin.Left, "=")

	assignB := ast.NewAssignStmt(line, ast.Annotations{}, s.Scope, s.Targets, bin.Right, "=")
	guard := ast.NewIfStmt(line, ast.Annotations{})
	guard.Condition = ast.NewUnaryExpr(line, "not", s.Targets[0])
	guard.TrueBody = []ast.Statement{assignB}

	return []ast.Statement{assignA, guard}, true
}
