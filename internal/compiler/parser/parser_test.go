package parser

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/btouchard/catluac/internal/compiler/ast"
	"github.com/btouchard/catluac/internal/compiler/lexer"
)

func parseFile(t *testing.T, src string) []*ast.Shard {
	t.Helper()
	l := lexer.New(src)
	p := New(l)
	shards := p.ParseFile("")
	if p.FatalErr() != nil {
		t.Fatalf("lexer error: %v", p.FatalErr())
	}
	if p.Diags.HasErrors() {
		t.Fatalf("parser errors: %s", p.Diags.String())
	}
	return shards
}

func TestParseSingleEventWithAssignment(t *testing.T) {
	shards := parseFile(t, `
OnMessageReceived(sender, text)
	local l!count = 0
	l!count = l!count + 1
end
`)
	if len(shards) != 1 {
		t.Fatalf("expected 1 shard, got %d", len(shards))
	}
	if len(shards[0].Events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(shards[0].Events))
	}
	ev := shards[0].Events[0]
	if ev.EventType != "OnMessageReceived" {
		t.Errorf("EventType = %q, want OnMessageReceived", ev.EventType)
	}
	if len(ev.Body) != 2 {
		t.Fatalf("expected 2 statements, got %d", len(ev.Body))
	}

	assign, ok := ev.Body[0].(*ast.AssignStmt)
	if !ok {
		t.Fatalf("body[0] is %T, want *ast.AssignStmt", ev.Body[0])
	}
	if assign.Scope != ast.ScopeLocal {
		t.Errorf("Scope = %q, want local", assign.Scope)
	}
}

func TestParseFuncDefAndCall(t *testing.T) {
	shards := parseFile(t, `
function heal(target, amount)
	return amount
end

OnMessageReceived(sender, text)
	local l!hp = heal(sender, 10)
end
`)
	if len(shards[0].FuncDefs) != 1 {
		t.Fatalf("expected 1 func def, got %d", len(shards[0].FuncDefs))
	}
	fn := shards[0].FuncDefs[0]
	if fn.Name != "heal" || len(fn.Params) != 2 {
		t.Errorf("FuncDef = %+v, want heal(target, amount)", fn)
	}

	ev := shards[0].Events[0]
	call, ok := ev.Body[0].(*ast.CallStmt)
	if !ok {
		t.Fatalf("ev.Body[0] is %T, want *ast.CallStmt (a call-valued assignment promotes to a CallStmt with Targets set)", ev.Body[0])
	}
	if len(call.Targets) != 1 {
		t.Fatalf("len(call.Targets) = %d, want 1", len(call.Targets))
	}
	target, ok := call.Targets[0].(*ast.VarRef)
	if !ok || target.Name != "hp" {
		t.Errorf("call.Targets[0] = %+v, want VarRef(hp)", call.Targets[0])
	}
	ref, ok := call.Func.(*ast.VarRef)
	if !ok || ref.Name != "heal" {
		t.Errorf("call.Func = %+v, want VarRef(heal)", call.Func)
	}
	if len(call.Args) != 2 {
		t.Errorf("len(call.Args) = %d, want 2", len(call.Args))
	}
}

func TestParseIfElseIfElse(t *testing.T) {
	shards := parseFile(t, `
OnMessageReceived(sender, text)
	if text == "a" then
		local l!x = 1
	elseif text == "b" then
		local l!x = 2
	else
		local l!x = 3
	end
end
`)
	ifStmt := shards[0].Events[0].Body[0].(*ast.IfStmt)
	if len(ifStmt.TrueBody) != 1 {
		t.Errorf("len(TrueBody) = %d, want 1", len(ifStmt.TrueBody))
	}
	if len(ifStmt.ElseIfs) != 1 {
		t.Fatalf("len(ElseIfs) = %d, want 1", len(ifStmt.ElseIfs))
	}
	if len(ifStmt.FalseBody) != 1 {
		t.Errorf("len(FalseBody) = %d, want 1", len(ifStmt.FalseBody))
	}
}

func TestParseRepeatForeverAndCount(t *testing.T) {
	shards := parseFile(t, `
OnMessageReceived(sender, text)
	repeat forever
		break
	end
	repeat 5
		break
	end
end
`)
	body := shards[0].Events[0].Body
	forever := body[0].(*ast.RepeatStmt)
	if !forever.Forever {
		t.Error("expected Forever = true")
	}
	count := body[1].(*ast.RepeatStmt)
	if count.Forever {
		t.Error("expected Forever = false")
	}
	if _, ok := count.Count.(*ast.NumberLit); !ok {
		t.Errorf("Count = %T, want *ast.NumberLit", count.Count)
	}
}

func TestParseForIn(t *testing.T) {
	shards := parseFile(t, `
OnMessageReceived(sender, text)
	for l!k, l!v in pairs(l!table) do
		break
	end
end
`)
	forStmt := shards[0].Events[0].Body[0].(*ast.ForStmt)
	if len(forStmt.Vars) != 2 {
		t.Fatalf("len(Vars) = %d, want 2", len(forStmt.Vars))
	}
	call, ok := forStmt.Iterator.(*ast.CallStmt)
	if !ok {
		t.Fatalf("Iterator = %T, want *ast.CallStmt", forStmt.Iterator)
	}
	ref := call.Func.(*ast.VarRef)
	if ref.Name != "pairs" {
		t.Errorf("Iterator func = %q, want pairs", ref.Name)
	}
}

func TestParseExpressionPrecedence(t *testing.T) {
	shards := parseFile(t, `
OnMessageReceived(sender, text)
	local l!x = 1 + 2 * 3
end
`)
	assign := shards[0].Events[0].Body[0].(*ast.AssignStmt)
	bin := assign.Value.(*ast.BinaryExpr)
	if bin.Op != "+" {
		t.Fatalf("top operator = %q, want +", bin.Op)
	}
	right := bin.Right.(*ast.BinaryExpr)
	if right.Op != "*" {
		t.Errorf("right operator = %q, want * (multiplication should bind tighter)", right.Op)
	}
}

func TestParseCaretRightAssociative(t *testing.T) {
	shards := parseFile(t, `
OnMessageReceived(sender, text)
	local l!x = 2 ^ 3 ^ 2
end
`)
	assign := shards[0].Events[0].Body[0].(*ast.AssignStmt)
	top := assign.Value.(*ast.BinaryExpr)
	if _, ok := top.Right.(*ast.BinaryExpr); !ok {
		t.Errorf("expected right-associative ^: Right = %T, want *ast.BinaryExpr", top.Right)
	}
}

func TestParseNotContains(t *testing.T) {
	shards := parseFile(t, `
OnMessageReceived(sender, text)
	if text not contains "spam" then
		break
	end
end
`)
	ifStmt := shards[0].Events[0].Body[0].(*ast.IfStmt)
	bin, ok := ifStmt.Condition.(*ast.BinaryExpr)
	if !ok || bin.Op != "not contains" {
		t.Fatalf("Condition = %+v, want BinaryExpr(not contains)", ifStmt.Condition)
	}
}

func TestParseMethodCallRewritesStringMethods(t *testing.T) {
	shards := parseFile(t, `
OnMessageReceived(sender, text)
	local l!up = text:upper()
	local l!obj = sender:GetPlayer()
end
`)
	body := shards[0].Events[0].Body

	upperCall := body[0].(*ast.CallStmt)
	prop, ok := upperCall.Func.(*ast.PropRef)
	if !ok || prop.Prop != "upper" {
		t.Fatalf("upperCall.Func = %+v, want PropRef(string.upper)", upperCall.Func)
	}
	base := prop.Object.(*ast.VarRef)
	if base.Name != "string" {
		t.Errorf("method base = %q, want string", base.Name)
	}
	if len(upperCall.Args) != 1 {
		t.Errorf("len(Args) = %d, want 1 (self)", len(upperCall.Args))
	}

	getPlayerCall := body[1].(*ast.CallStmt)
	ref, ok := getPlayerCall.Func.(*ast.VarRef)
	if !ok || ref.Name != "GetPlayer" {
		t.Fatalf("getPlayerCall.Func = %+v, want VarRef(GetPlayer)", getPlayerCall.Func)
	}
}

func TestParseRequireAndScriptAnnotations(t *testing.T) {
	shards := parseFile(t, `
require "utils.lua"

--@script_alias="main"
OnMessageReceived(sender, text)
	break
end

--@script

--@script_alias="second"
OnCrossSiteMessageReceived(sender, text, domain)
	break
end
`)
	if len(shards) != 2 {
		t.Fatalf("expected 2 shards, got %d", len(shards))
	}
	if shards[0].Alias != "main" {
		t.Errorf("shards[0].Alias = %q, want main", shards[0].Alias)
	}
	if len(shards[0].Requires) != 1 || shards[0].Requires[0] != "utils.lua" {
		t.Errorf("shards[0].Requires = %v, want [utils.lua]", shards[0].Requires)
	}
	if shards[1].Alias != "second" {
		t.Errorf("shards[1].Alias = %q, want second", shards[1].Alias)
	}
}

func TestParseAnnotationsMergeOntoStatement(t *testing.T) {
	shards := parseFile(t, `
OnMessageReceived(sender, text)
	--@builtin
	local l!x = foo()
end
`)
	call := shards[0].Events[0].Body[0].(*ast.CallStmt)
	if !call.StmtAnnotations().ForceBuiltin {
		t.Error("expected ForceBuiltin annotation to be merged onto the call statement")
	}
}

func TestParseBlockAnnotationPersistsUntilEnd(t *testing.T) {
	shards := parseFile(t, `
OnMessageReceived(sender, text)
	--#type="audio"
	local l!x = 1
	local l!y = 2
	--#end
	local l!z = 3
end
`)
	body := shards[0].Events[0].Body
	if body[0].(*ast.AssignStmt).StmtAnnotations().Type != "audio" {
		t.Error("expected first statement to carry the block annotation")
	}
	if body[1].(*ast.AssignStmt).StmtAnnotations().Type != "audio" {
		t.Error("expected second statement to still carry the block annotation")
	}
	if body[2].(*ast.AssignStmt).StmtAnnotations().Type != "" {
		t.Error("expected the block annotation to be cleared after --#end")
	}
}

func TestParseErrorRecoverySynchronizes(t *testing.T) {
	l := lexer.New(`
OnMessageReceived(sender, text)
	local l!x = )
	local l!y = 1
end
`)
	p := New(l)
	shards := p.ParseFile("")

	if !p.Diags.HasErrors() {
		t.Fatal("expected a parse error from the malformed statement")
	}
	body := shards[0].Events[0].Body
	if len(body) != 1 {
		t.Fatalf("expected recovery to keep the valid statement, got %d statements", len(body))
	}
	assign, ok := body[0].(*ast.AssignStmt)
	if !ok || assign.Value.(*ast.NumberLit).Value != "1" {
		t.Errorf("expected recovered statement 'local l!y = 1', got %+v", body[0])
	}
}

func TestParseBgAndProtectedCall(t *testing.T) {
	shards := parseFile(t, `
OnMessageReceived(sender, text)
	bg doSomething()
	local l!ok = protected risky()
end
`)
	body := shards[0].Events[0].Body
	call := body[0].(*ast.CallStmt)
	if !call.IsBg {
		t.Error("expected IsBg = true for 'bg doSomething()'")
	}

	// A call-valued assignment is promoted directly into a CallStmt
	// carrying its targets, not wrapped in an AssignStmt.
	protectedCall, ok := body[1].(*ast.CallStmt)
	if !ok {
		t.Fatalf("expected body[1] to be a *ast.CallStmt, got %T", body[1])
	}
	if !protectedCall.IsProtected {
		t.Error("expected IsProtected = true for 'protected risky()'")
	}
	if len(protectedCall.Targets) != 1 {
		t.Fatalf("expected 1 target, got %d", len(protectedCall.Targets))
	}
	target, ok := protectedCall.Targets[0].(*ast.VarRef)
	if !ok || target.Prefix != ast.PrefixLocal || target.Name != "ok" {
		t.Errorf("expected target l!ok, got %+v", protectedCall.Targets[0])
	}
}

func TestParseIfElseIfElseMatchesExpectedTree(t *testing.T) {
	shards := parseFile(t, `
OnWebsiteLoaded()
	if l!hp > 0 then
		local l!x = 1
	elseif l!hp == 0 then
		local l!y = 2
	else
		local l!z = 3
	end
end
`)
	got := shards[0].Events[0].Body[0]

	want := ast.NewIfStmt(3, ast.Annotations{})
	want.Condition = ast.NewBinaryExpr(3, ast.NewVarRef(3, "hp", ast.PrefixLocal), ">", ast.NewNumberLit(3, "0"))
	want.TrueBody = []ast.Statement{
		ast.NewAssignStmt(4, ast.Annotations{}, ast.ScopeLocal,
			[]ast.Expression{ast.NewVarRef(4, "x", ast.PrefixLocal)}, ast.NewNumberLit(4, "1"), "="),
	}
	want.ElseIfs = []ast.ElseIf{
		{
			Condition: ast.NewBinaryExpr(5, ast.NewVarRef(5, "hp", ast.PrefixLocal), "==", ast.NewNumberLit(5, "0")),
			Body: []ast.Statement{
				ast.NewAssignStmt(6, ast.Annotations{}, ast.ScopeLocal,
					[]ast.Expression{ast.NewVarRef(6, "y", ast.PrefixLocal)}, ast.NewNumberLit(6, "2"), "="),
			},
		},
	}
	want.FalseBody = []ast.Statement{
		ast.NewAssignStmt(8, ast.Annotations{}, ast.ScopeLocal,
			[]ast.Expression{ast.NewVarRef(8, "z", ast.PrefixLocal)}, ast.NewNumberLit(8, "3"), "="),
	}

	allow := cmp.AllowUnexported(ast.IfStmt{}, ast.AssignStmt{}, ast.BinaryExpr{}, ast.VarRef{}, ast.NumberLit{})
	if diff := cmp.Diff(want, got, allow); diff != "" {
		t.Errorf("parsed if/elseif/else tree mismatch (-want +got):\n%s", diff)
	}
}
