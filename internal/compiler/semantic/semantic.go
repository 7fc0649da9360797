// Package semantic resolves scope/prefix tags, tracks service aliases,
// folds constants, and reports the diagnostics a careful reading of the
// tree would catch before it's lowered to IR.
package semantic

import (
	"math"
	"strconv"

	"github.com/btouchard/catluac/internal/compiler/ast"
	"github.com/btouchard/catluac/internal/compiler/errors"
)

const phase = "semantic"

// ActionLimit is the host runtime's per-event action ceiling; an event body
// at or past it gets a warning, not a hard failure.
const ActionLimit = 121

// services is the static set of runtime-provided singletons. Assigning one
// to a local creates an alias; using the service's own name afterward is an
// error.
var services = map[string]bool{
	"UserInputService":  true,
	"Workspace":         true,
	"Players":           true,
	"Lighting":          true,
	"ReplicatedStorage": true,
	"Camera":            true,
	"TweenService":      true,
	"HttpService":       true,
	"RunService":        true,
	"SoundService":      true,
}

// builtins is the static set of names and library prefixes that never
// trigger an "undeclared name" warning on read.
var builtins = map[string]bool{
	"math": true, "string": true, "table": true,
	"pairs": true, "ipairs": true, "tostring": true, "tonumber": true,
	"wait": true, "print": true,
	"Vector3": true, "CFrame": true, "Color3": true, "Instance": true,
	"game": true, "nil": true, "self": true,
}

// Analyzer runs the alias-collection, scope-resolution, constant-folding and
// action-count passes over a linked, desugared shard list.
type Analyzer struct {
	Diags    *errors.Diagnostics
	optLevel int

	// FuncNames is the set of user-declared function names across every
	// shard, built by the pre-scan at the start of Run. The IR emitter
	// consults it to decide whether a call resolves to a user function.
	FuncNames map[string]bool

	// funcParamCounts mirrors FuncNames, recording each function's declared
	// parameter count so calls can be checked for excess arguments.
	funcParamCounts map[string]int
}

func New(optLevel int) *Analyzer {
	return &Analyzer{
		Diags:           errors.NewDiagnostics(),
		optLevel:        optLevel,
		FuncNames:       make(map[string]bool),
		funcParamCounts: make(map[string]int),
	}
}

// hiddenEventLocals returns the event-local variable names the host
// runtime pre-populates before an event body runs, keyed by event type.
// These never warn as "undeclared" even though no statement declares them.
func hiddenEventLocals(eventType string) []string {
	names := []string{}
	switch eventType {
	case "OnMessageReceived":
		names = append(names, "messageContent", "messageSenderId", "messageSenderName")
	case "OnCrossSiteMessageReceived":
		names = append(names, "messageContent", "messageSenderId", "messageSenderName", "sourceDomain")
	}
	if containsSubstr(eventType, "GetPropertyChangedSignal") {
		names = append(names, "propertyChanged")
	}
	return names
}

func containsSubstr(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}

// Run analyzes every shard's functions and events, mutating VarRef prefixes
// and folding constants in place.
func (a *Analyzer) Run(shards []*ast.Shard) {
	// Pre-scan: register every function's name across every shard before
	// walking any body, since a call may reference a function declared
	// later in this shard or in a different required shard. Duplicate
	// declarations warn; the parser already rejects more than 6 params.
	for _, shard := range shards {
		for _, fn := range shard.FuncDefs {
			if a.FuncNames[fn.Name] {
				a.Diags.Warnf(phase, fn.Line, "function %q is declared more than once", fn.Name)
			}
			a.FuncNames[fn.Name] = true
			a.funcParamCounts[fn.Name] = len(fn.Params)
		}
	}

	for _, shard := range shards {
		for _, fn := range shard.FuncDefs {
			sc := newScope()
			for _, p := range fn.Params {
				sc.locals[p] = true
			}
			fn.Body = a.walkBlock(fn.Body, sc, 0)
		}
		for _, ev := range shard.Events {
			sc := newScope()
			sc.aliasLine = a.collectAliases(ev)
			for _, p := range ev.Args {
				sc.locals[p] = true
			}
			for _, name := range hiddenEventLocals(ev.EventType) {
				sc.locals[name] = true
			}
			ev.Body = a.walkBlock(ev.Body, sc, 0)
			a.checkActionCount(ev)
		}
	}
}

// scope holds the three name sets and the keyword-declaration guard for one
// function/event body.
type scope struct {
	locals            map[string]bool
	objects           map[string]bool
	globals           map[string]bool
	declaredByKeyword map[string]bool
	aliasLine         map[string]int // service name -> line of its recording alias assignment
}

func newScope() *scope {
	return &scope{
		locals:            make(map[string]bool),
		objects:           make(map[string]bool),
		globals:           make(map[string]bool),
		declaredByKeyword: make(map[string]bool),
		aliasLine:         make(map[string]int),
	}
}

// collectAliases scans top-level event statements for "target = Service"
// and records the first line a service is aliased on.
func (a *Analyzer) collectAliases(ev *ast.Event) map[string]int {
	aliased := make(map[string]int)
	for _, stmt := range ev.Body {
		assign, ok := stmt.(*ast.AssignStmt)
		if !ok || assign.Op != "=" || len(assign.Targets) != 1 {
			continue
		}
		ref, ok := assign.Value.(*ast.VarRef)
		if !ok || !services[ref.Name] {
			continue
		}
		if line, seen := aliased[ref.Name]; seen {
			a.Diags.Warnf(phase, assign.StmtLine(), "service %q already aliased at line %d", ref.Name, line)
			continue
		}
		aliased[ref.Name] = assign.StmtLine()
	}
	return aliased
}

func (a *Analyzer) checkActionCount(ev *ast.Event) {
	n := countStatements(ev.Body)
	if n >= ActionLimit {
		line := ev.Line
		if len(ev.Body) > 0 {
			line = ev.Body[0].StmtLine()
		}
		a.Diags.Warnf(phase, line, "event %q has %d actions, at or past the host's %d-action limit", ev.EventType, n, ActionLimit-1)
	}
}

func countStatements(stmts []ast.Statement) int {
	n := len(stmts)
	for _, stmt := range stmts {
		switch s := stmt.(type) {
		case *ast.IfStmt:
			n += countStatements(s.TrueBody)
			for _, ei := range s.ElseIfs {
				n += countStatements(ei.Body)
			}
			n += countStatements(s.FalseBody)
		case *ast.RepeatStmt:
			n += countStatements(s.Body)
		case *ast.ForStmt:
			n += countStatements(s.Body)
		}
	}
	return n
}

func prefixToScope(p ast.Prefix) ast.Scope {
	switch p {
	case ast.PrefixLocal:
		return ast.ScopeLocal
	case ast.PrefixGlobal:
		return ast.ScopeGlobal
	case ast.PrefixObject:
		return ast.ScopeObject
	}
	return ast.ScopeNone
}

func scopeToPrefix(s ast.Scope) ast.Prefix {
	switch s {
	case ast.ScopeLocal:
		return ast.PrefixLocal
	case ast.ScopeGlobal:
		return ast.PrefixGlobal
	case ast.ScopeObject:
		return ast.PrefixObject
	}
	return ast.PrefixNone
}

func (a *Analyzer) walkBlock(stmts []ast.Statement, sc *scope, loopDepth int) []ast.Statement {
	for _, stmt := range stmts {
		a.walkStatement(stmt, sc, loopDepth)
	}
	return stmts
}

func (a *Analyzer) walkStatement(stmt ast.Statement, sc *scope, loopDepth int) {
	switch s := stmt.(type) {
	case *ast.AssignStmt:
		for i := range s.Targets {
			if ref, ok := s.Targets[i].(*ast.VarRef); ok {
				a.resolveTarget(sc, s.Scope, ref)
			} else {
				a.walkExprInPlace(&s.Targets[i], sc)
			}
		}
		a.walkExprInPlace(&s.Value, sc)

	case *ast.CallStmt:
		for i := range s.Targets {
			if ref, ok := s.Targets[i].(*ast.VarRef); ok {
				a.resolveTarget(sc, s.Scope, ref)
			}
		}
		a.walkExprInPlace(&s.Func, sc)
		for i := range s.Args {
			a.walkExprInPlace(&s.Args[i], sc)
		}
		a.checkArgCount(s)

	case *ast.IfStmt:
		a.walkExprInPlace(&s.Condition, sc)
		s.TrueBody = a.walkBlock(s.TrueBody, sc, loopDepth)
		for i := range s.ElseIfs {
			a.walkExprInPlace(&s.ElseIfs[i].Condition, sc)
			s.ElseIfs[i].Body = a.walkBlock(s.ElseIfs[i].Body, sc, loopDepth)
		}
		s.FalseBody = a.walkBlock(s.FalseBody, sc, loopDepth)

	case *ast.RepeatStmt:
		if s.Count != nil {
			a.walkExprInPlace(&s.Count, sc)
		}
		s.Body = a.walkBlock(s.Body, sc, loopDepth+1)

	case *ast.ForStmt:
		for _, v := range s.Vars {
			sc.locals[v] = true
		}
		a.walkExprInPlace(&s.Iterator, sc)
		s.Body = a.walkBlock(s.Body, sc, loopDepth+1)

	case *ast.ReturnStmt:
		if s.Value != nil {
			a.walkExprInPlace(&s.Value, sc)
		}

	case *ast.BreakStmt:
		if loopDepth == 0 {
			a.Diags.Warnf(phase, s.StmtLine(), "break outside a loop")
		}

	case *ast.DeleteStmt:
		a.walkExprInPlace(&s.Target, sc)
	}
}

// resolveTarget merges a statement's scope keyword with a VarRef target's
// explicit prefix, applies the redeclaration/bare-assignment rules, and
// sets the VarRef's final prefix.
func (a *Analyzer) resolveTarget(sc *scope, stmtScope ast.Scope, ref *ast.VarRef) {
	prefixScope := prefixToScope(ref.Prefix)
	active := stmtScope
	switch {
	case stmtScope == ast.ScopeNone:
		active = prefixScope
	case prefixScope != ast.ScopeNone && prefixScope != stmtScope:
		a.Diags.Warnf(phase, ref.ExprLine(), "scope keyword %q disagrees with prefix on %q; using the keyword", stmtScope, ref.Name)
		ref.Prefix = ast.PrefixNone
	}

	explicitKeyword := stmtScope != ast.ScopeNone

	if active == ast.ScopeNone {
		switch {
		case sc.locals[ref.Name]:
			a.Diags.Warnf(phase, ref.ExprLine(), "bare assignment to known local %q; use an explicit prefix", ref.Name)
			ref.Prefix = ast.PrefixLocal
		case sc.objects[ref.Name]:
			a.Diags.Warnf(phase, ref.ExprLine(), "bare assignment to known object %q; use an explicit prefix", ref.Name)
			ref.Prefix = ast.PrefixObject
		default:
			sc.globals[ref.Name] = true
			ref.Prefix = ast.PrefixGlobal
		}
		return
	}

	key := string(active) + ":" + ref.Name
	if explicitKeyword && sc.declaredByKeyword[key] {
		a.Diags.Errorf(phase, ref.ExprLine(), "%q re-declared with the %q scope keyword; use the prefix form to reassign", ref.Name, active)
	}
	if explicitKeyword {
		sc.declaredByKeyword[key] = true
	}

	switch active {
	case ast.ScopeLocal:
		sc.locals[ref.Name] = true
	case ast.ScopeGlobal:
		sc.globals[ref.Name] = true
	case ast.ScopeObject:
		sc.objects[ref.Name] = true
	}
	ref.Prefix = scopeToPrefix(active)
}

// walkExprInPlace walks an expression slot, resolving reads, checking
// service-alias use, and folding constants; it writes the (possibly
// replaced) expression back into slot.
func (a *Analyzer) walkExprInPlace(slot *ast.Expression, sc *scope) {
	*slot = a.walkExpr(*slot, sc)
}

func (a *Analyzer) walkExpr(e ast.Expression, sc *scope) ast.Expression {
	switch x := e.(type) {
	case *ast.VarRef:
		a.resolveRead(sc, x)
		return x

	case *ast.PropRef:
		x.Object = a.walkExpr(x.Object, sc)
		return x

	case *ast.IndexRef:
		x.Table = a.walkExpr(x.Table, sc)
		x.Index = a.walkExpr(x.Index, sc)
		return x

	case *ast.BinaryExpr:
		x.Left = a.walkExpr(x.Left, sc)
		x.Right = a.walkExpr(x.Right, sc)
		if a.optLevel >= 1 {
			if folded := foldBinary(x); folded != nil {
				return folded
			}
		}
		return x

	case *ast.UnaryExpr:
		x.Right = a.walkExpr(x.Right, sc)
		return x

	case *ast.CallStmt:
		x.Func = a.walkExpr(x.Func, sc)
		for i := range x.Args {
			x.Args[i] = a.walkExpr(x.Args[i], sc)
		}
		a.checkArgCount(x)
		return x

	default:
		return e
	}
}

func (a *Analyzer) resolveRead(sc *scope, ref *ast.VarRef) {
	if ref.Name == "" || builtins[ref.Name] {
		return
	}
	if services[ref.Name] {
		if line, aliased := sc.aliasLine[ref.Name]; aliased && ref.ExprLine() != line {
			a.Diags.Errorf(phase, ref.ExprLine(), "service %q was aliased at line %d; use the alias instead", ref.Name, line)
		}
		return
	}

	switch ref.Prefix {
	case ast.PrefixLocal:
		if !sc.locals[ref.Name] {
			a.Diags.Warnf(phase, ref.ExprLine(), "l! prefix on undeclared local %q", ref.Name)
		}
	case ast.PrefixObject:
		if !sc.objects[ref.Name] {
			a.Diags.Warnf(phase, ref.ExprLine(), "o! prefix on undeclared object %q", ref.Name)
		}
	case ast.PrefixGlobal:
		// no warning: globals may be provided by the host environment.
	case ast.PrefixNone:
		switch {
		case sc.locals[ref.Name]:
			ref.Prefix = ast.PrefixLocal
		case sc.objects[ref.Name]:
			ref.Prefix = ast.PrefixObject
		case sc.globals[ref.Name]:
			ref.Prefix = ast.PrefixGlobal
		case a.FuncNames[ref.Name]:
			// a call to a user-declared function, possibly defined later in
			// this shard or in a required one — not a variable read at all.
		default:
			a.Diags.Warnf(phase, ref.ExprLine(), "use of undeclared name %q", ref.Name)
			ref.Prefix = ast.PrefixGlobal
			sc.globals[ref.Name] = true
		}
	}
}

// checkArgCount warns when a call to a known user function passes more
// arguments than the function declares parameters for.
func (a *Analyzer) checkArgCount(call *ast.CallStmt) {
	ref, ok := call.Func.(*ast.VarRef)
	if !ok {
		return
	}
	want, known := a.funcParamCounts[ref.Name]
	if !known || len(call.Args) <= want {
		return
	}
	a.Diags.Warnf(phase, call.ExprLine(), "too many arguments passed to %q", ref.Name)
}

// foldBinary computes a BinaryExpr whose children are both NumberLit,
// returning the folded NumberLit or nil if it isn't foldable.
func foldBinary(b *ast.BinaryExpr) *ast.NumberLit {
	left, ok := b.Left.(*ast.NumberLit)
	if !ok {
		return nil
	}
	right, ok := b.Right.(*ast.NumberLit)
	if !ok {
		return nil
	}
	lv, err := strconv.ParseFloat(left.Value, 64)
	if err != nil {
		return nil
	}
	rv, err := strconv.ParseFloat(right.Value, 64)
	if err != nil {
		return nil
	}

	var result float64
	switch b.Op {
	case "+":
		result = lv + rv
	case "-":
		result = lv - rv
	case "*":
		result = lv * rv
	case "/":
		if rv == 0 {
			return nil
		}
		result = lv / rv
	case "^":
		result = math.Pow(lv, rv)
	case "%":
		if rv == 0 {
			return nil
		}
		result = math.Mod(lv, rv)
	default:
		return nil
	}
	return ast.NewNumberLit(b.ExprLine(), formatFolded(result))
}

// formatFolded renders a folded constant through the host arithmetic's own
// textual form: a whole-number result (the common case for +/-/* on integer
// literals, per the round-trip law) prints as a bare integer, matching what
// the host's number-to-string would produce; anything with a fractional
// part keeps its decimal digits.
func formatFolded(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
