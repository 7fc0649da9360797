// Package irgen lowers an analyzed AST to CWIR, the textual opcode stream
// the Schema Emitter turns into the final JSON document.
package irgen

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/btouchard/catluac/internal/compiler/ast"
	"github.com/btouchard/catluac/internal/compiler/errors"
)

const phase = "irgen"

// CWIRVersion is the version line every stream opens with.
const CWIRVersion = "1.0"

// Emitter lowers a linked, desugared and analyzed shard list to CWIR text.
type Emitter struct {
	Diags     *errors.Diagnostics
	funcNames map[string]bool
}

// New creates an Emitter. funcNames is the user-function name set built by
// the semantic analyzer's pre-scan, consulted for call resolution.
func New(funcNames map[string]bool) *Emitter {
	return &Emitter{Diags: errors.NewDiagnostics(), funcNames: funcNames}
}

// writer accumulates CWIR lines and owns the per-function/event temporary
// counter.
type writer struct {
	lines []string
	tmp   int
}

func (w *writer) emit(format string, args ...any) {
	w.lines = append(w.lines, fmt.Sprintf(format, args...))
}

func (w *writer) newTmp() string {
	w.tmp++
	return fmt.Sprintf("__tmp%d", w.tmp)
}

func (w *writer) resetTmp() { w.tmp = 0 }

// captureBlock runs fn, collecting any lines it emits without committing
// them to w.lines, and returns them — used so a for-loop body's lines can
// be rewritten ({k}/{v} -> {l!index}/{l!value}) before being appended.
func (w *writer) captureBlock(fn func()) []string {
	start := len(w.lines)
	fn()
	captured := append([]string{}, w.lines[start:]...)
	w.lines = w.lines[:start]
	return captured
}

// Emit lowers every shard to one CWIR text stream.
func (e *Emitter) Emit(shards []*ast.Shard) string {
	w := &writer{}
	w.emit("CWIR_VERSION %s", CWIRVersion)
	for _, shard := range shards {
		w.emit("SCRIPT")
		if shard.Alias != "" {
			w.emit("SCRIPT_ALIAS %q", shard.Alias)
		}
		for _, fn := range shard.FuncDefs {
			e.emitFuncDef(w, fn)
		}
		for _, ev := range shard.Events {
			e.emitEvent(w, ev)
		}
		w.emit("END_SCRIPT")
	}
	return strings.Join(w.lines, "\n") + "\n"
}

func (e *Emitter) emitFuncDef(w *writer, fn *ast.FuncDef) {
	w.resetTmp()
	w.emit("EVENT FUNC_DEF %q [%s]", fn.Name, strings.Join(fn.Params, ", "))
	e.emitBlock(w, fn.Body)
	w.emit("END_EVENT")
}

// dottedEventOpcodes maps an object-dotted event suffix to its opcode;
// objPrefixedOpcode renders "OPCODE (obj)".
var dottedEventOpcodes = map[string]string{
	"MouseButton1Click": "PRESSED",
	"MouseEnter":        "MOUSE_ENTER",
	"MouseLeave":        "MOUSE_LEAVE",
}

// bareEventOpcodes maps a non-dotted event type directly to its opcode.
var bareEventOpcodes = map[string]string{
	"OnWebsiteLoaded": "LOADED",
}

func dispatchEvent(ev *ast.Event) string {
	if idx := strings.LastIndex(ev.EventType, "."); idx >= 0 {
		obj, suffix := ev.EventType[:idx], ev.EventType[idx+1:]
		if op, ok := dottedEventOpcodes[suffix]; ok {
			return fmt.Sprintf("%s (%s)", op, obj)
		}
		return fmt.Sprintf("CHANGED (%s)", obj)
	}
	if op, ok := bareEventOpcodes[ev.EventType]; ok {
		return op
	}
	return ev.EventType
}

func (e *Emitter) emitEvent(w *writer, ev *ast.Event) {
	w.resetTmp()
	w.emit("EVENT %s [%s]", dispatchEvent(ev), strings.Join(ev.Args, ", "))
	e.emitBlock(w, ev.Body)
	w.emit("END_EVENT")
}

func (e *Emitter) emitBlock(w *writer, stmts []ast.Statement) {
	for _, stmt := range stmts {
		e.emitStatement(w, stmt)
	}
}

func (e *Emitter) emitStatement(w *writer, stmt ast.Statement) {
	switch s := stmt.(type) {
	case *ast.CommentStmt:
		w.emit(";; %s", s.Value)

	case *ast.AssignStmt:
		e.emitAssign(w, s)

	case *ast.CallStmt:
		e.emitCall(w, s.Func, s.Args, s.Targets, s.IsBg, s.IsProtected)

	case *ast.IfStmt:
		e.emitIf(w, s)

	case *ast.RepeatStmt:
		if s.Forever {
			w.emit("REPEAT_FOREVER")
		} else {
			w.emit("REPEAT %s", e.value(w, s.Count))
		}
		e.emitBlock(w, s.Body)
		w.emit("END_REPEAT")

	case *ast.ForStmt:
		iter := s.Iterator
		if call, ok := iter.(*ast.CallStmt); ok && len(call.Args) == 1 {
			if ref, ok := call.Func.(*ast.VarRef); ok && (ref.Name == "pairs" || ref.Name == "ipairs") {
				iter = call.Args[0]
			}
		}
		w.emit("TABLE_ITER %s", e.value(w, iter))
		lines := w.captureBlock(func() { e.emitBlock(w, s.Body) })
		for i, line := range lines {
			line = strings.ReplaceAll(line, "{k}", "{l!index}")
			line = strings.ReplaceAll(line, "{v}", "{l!value}")
			lines[i] = line
		}
		w.lines = append(w.lines, lines...)
		w.emit("END_ITER")

	case *ast.ReturnStmt:
		if s.Value == nil {
			w.emit("RETURN")
		} else {
			w.emit("RETURN_VALUE %s", e.value(w, s.Value))
		}

	case *ast.BreakStmt:
		w.emit("BREAK")

	case *ast.DeleteStmt:
		w.emit("DELETE (%s)", e.value(w, s.Target))
	}
}

// value renders e as a direct operand: a number/string literal text, a
// prefixed variable name, or (for anything more complex) a freshly
// materialized temporary.
func (e *Emitter) value(w *writer, expr ast.Expression) string {
	switch x := expr.(type) {
	case *ast.NumberLit:
		return x.Value
	case *ast.StringLit:
		return strconv.Quote(x.Value)
	case *ast.InterpStringLit:
		return strconv.Quote(x.Value)
	case *ast.VarRef:
		return string(x.Prefix) + x.Name
	default:
		return e.toTemp(w, expr)
	}
}

// toTemp materializes an arbitrary expression into a fresh temporary and
// returns its name.
func (e *Emitter) toTemp(w *writer, expr ast.Expression) string {
	tmp := w.newTmp()
	e.lowerInto(w, tmp, expr)
	return tmp
}

// lowerInto emits the scaffolding that computes expr into target (an
// existing variable or temp name).
func (e *Emitter) lowerInto(w *writer, target string, expr ast.Expression) {
	switch x := expr.(type) {
	case *ast.NumberLit:
		w.emit("VAR_SET %s %s", target, x.Value)
	case *ast.StringLit:
		w.emit("VAR_SET %s %s", target, strconv.Quote(x.Value))
	case *ast.InterpStringLit:
		w.emit("VAR_SET %s %s", target, strconv.Quote(x.Value))
	case *ast.VarRef:
		w.emit("VAR_SET %s %s", target, string(x.Prefix)+x.Name)

	case *ast.BinaryExpr:
		e.lowerBinaryInto(w, target, x)

	case *ast.UnaryExpr:
		e.lowerUnaryInto(w, target, x)

	case *ast.PropRef:
		e.emitPropRead(w, target, x, "")

	case *ast.IndexRef:
		w.emit("TABLE_GET %s %s %s", e.value(w, x.Index), e.value(w, x.Table), target)

	case *ast.CallStmt:
		prefix := ast.PrefixNone
		if name := stripPrefix(target); name != target {
			prefix = ast.Prefix(target[:2])
		}
		e.emitCall(w, x.Func, x.Args, []ast.Expression{ast.NewVarRef(x.ExprLine(), stripPrefix(target), prefix)}, x.IsBg, x.IsProtected)

	default:
		w.emit("VAR_SET %s %s", target, e.value(w, expr))
	}
}

func stripPrefix(name string) string {
	if len(name) >= 2 && name[1] == '!' {
		return name[2:]
	}
	return name
}

func (e *Emitter) lowerBinaryInto(w *writer, target string, b *ast.BinaryExpr) {
	if b.Op == ".." {
		w.emit("STR_CONCAT %s %s %s", e.value(w, b.Left), e.value(w, b.Right), target)
		return
	}
	opcode, ok := arithOpcodes[b.Op]
	if !ok {
		w.emit("VAR_SET %s %s", target, e.value(w, b))
		return
	}
	// The left operand reuses target's tmp directly when it's itself a
	// compound expression (a chained "a + b + c" lowers into one tmp, not
	// one per nesting level plus a copy at each step); a literal or plain
	// variable still seeds target with VAR_SET.
	if isComplexExpr(b.Left) {
		e.lowerInto(w, target, b.Left)
	} else {
		w.emit("VAR_SET %s %s", target, e.value(w, b.Left))
	}
	w.emit("%s %s %s", opcode, target, e.value(w, b.Right))
}

// isComplexExpr reports whether expr needs scaffolding into a tmp rather
// than rendering directly as an operand (the same split value() makes).
func isComplexExpr(expr ast.Expression) bool {
	switch expr.(type) {
	case *ast.NumberLit, *ast.StringLit, *ast.InterpStringLit, *ast.VarRef:
		return false
	default:
		return true
	}
}

var arithOpcodes = map[string]string{
	"+": "VAR_INC",
	"-": "VAR_DEC",
	"*": "VAR_MUL",
	"/": "VAR_DIV",
	"^": "VAR_POW",
	"%": "VAR_MOD",
}

func (e *Emitter) lowerUnaryInto(w *writer, target string, u *ast.UnaryExpr) {
	switch u.Op {
	case "-":
		if lit, ok := u.Right.(*ast.NumberLit); ok {
			if n, err := strconv.ParseFloat(lit.Value, 64); err == nil {
				w.emit("VAR_SET %s %s", target, formatNumber(-n))
				return
			}
		}
		w.emit("VAR_SET %s 0", target)
		w.emit("VAR_DEC %s %s", target, e.value(w, u.Right))
	case "#":
		w.emit("TABLE_LEN %s %s", e.value(w, u.Right), target)
	case "not":
		w.emit("VAR_SET %s %s", target, e.value(w, u.Right))
	default:
		w.emit("VAR_SET %s %s", target, e.value(w, u.Right))
	}
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
