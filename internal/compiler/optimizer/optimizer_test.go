package optimizer

import (
	"testing"

	"github.com/btouchard/catluac/internal/compiler/ast"
	"github.com/btouchard/catluac/internal/compiler/lexer"
	"github.com/btouchard/catluac/internal/compiler/parser"
)

func optimize(t *testing.T, src string, optLevel int) ([]*ast.Shard, *Optimizer) {
	t.Helper()
	l := lexer.New(src)
	p := parser.New(l)
	shards := p.ParseFile("")
	if p.FatalErr() != nil {
		t.Fatalf("lexer error: %v", p.FatalErr())
	}
	if p.Diags.HasErrors() {
		t.Fatalf("parser errors: %s", p.Diags.String())
	}
	o := New(optLevel)
	o.Run(shards)
	return shards, o
}

func TestNoOpBelowOptLevelTwo(t *testing.T) {
	shards, _ := optimize(t, `
OnMessageReceived(sender, text)
	local l!unused = 1
end
`, 1)
	if len(shards[0].Events[0].Body) != 1 {
		t.Fatalf("expected the dead local to survive below opt level 2, got %d statements", len(shards[0].Events[0].Body))
	}
}

func TestDropsUnreadLocal(t *testing.T) {
	shards, _ := optimize(t, `
OnMessageReceived(sender, text)
	local l!unused = 1
	local l!used = 2
	print(l!used)
end
`, 2)
	body := shards[0].Events[0].Body
	if len(body) != 2 {
		t.Fatalf("expected the unread local to be dropped, got %d statements: %+v", len(body), body)
	}
	assign := body[0].(*ast.AssignStmt)
	ref := assign.Targets[0].(*ast.VarRef)
	if ref.Name != "used" {
		t.Errorf("surviving assign targets %q, want used", ref.Name)
	}
}

func TestKeepsUnreadLocalWithCallInValue(t *testing.T) {
	shards, _ := optimize(t, `
OnMessageReceived(sender, text)
	local l!unused = computeSomething()
end
`, 2)
	if len(shards[0].Events[0].Body) != 1 {
		t.Fatal("expected the local to survive because its value contains a call")
	}
}

func TestKeepsLocalReadOnlyInsideStringInterpolation(t *testing.T) {
	shards, _ := optimize(t, `
OnMessageReceived(sender, text)
	local l!name = "world"
	print("hello {l!name}")
end
`, 2)
	if len(shards[0].Events[0].Body) != 2 {
		t.Fatal("expected the local to survive because it's read inside string interpolation")
	}
}

func TestTruncatesStatementsAfterReturn(t *testing.T) {
	shards, o := optimize(t, `
function f()
	return 1
	local l!x = 2
end
`, 2)
	body := shards[0].FuncDefs[0].Body
	if len(body) != 1 {
		t.Fatalf("expected statements after return to be truncated, got %d", len(body))
	}
	if len(o.Diags.Warnings()) == 0 {
		t.Fatal("expected a diagnostic reporting unreachable statements removed")
	}
}

func TestTruncatesStatementsAfterBreakInsideLoop(t *testing.T) {
	shards, _ := optimize(t, `
OnMessageReceived(sender, text)
	repeat forever
		break
		local l!x = 1
	end
end
`, 2)
	repeatStmt := shards[0].Events[0].Body[0].(*ast.RepeatStmt)
	if len(repeatStmt.Body) != 1 {
		t.Fatalf("expected the repeat body to keep only the break, got %d statements", len(repeatStmt.Body))
	}
}
