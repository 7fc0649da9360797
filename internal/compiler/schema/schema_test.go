package schema

import (
	"strings"
	"testing"

	"github.com/btouchard/catluac/internal/compiler/catalog"
)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.Load("")
	if err != nil {
		t.Fatalf("catalog.Load: %v", err)
	}
	return cat
}

func TestCheckVersionAcceptsCurrent(t *testing.T) {
	e := New(testCatalog(t), 1)
	scripts := e.Emit("CWIR_VERSION 1.0\n")
	if e.Diags.HasErrors() {
		t.Fatalf("unexpected errors: %s", e.Diags.String())
	}
	if len(scripts) != 0 {
		t.Errorf("expected no scripts from an empty body, got %d", len(scripts))
	}
}

func TestCheckVersionRejectsMajorMismatch(t *testing.T) {
	e := New(testCatalog(t), 1)
	e.Emit("CWIR_VERSION 2.0\n")
	if !e.Diags.HasErrors() {
		t.Fatal("expected a fatal error on major version mismatch")
	}
}

func TestCheckVersionWarnsOnMinorAhead(t *testing.T) {
	e := New(testCatalog(t), 1)
	e.Emit("CWIR_VERSION 1.5\n")
	if e.Diags.HasErrors() {
		t.Fatalf("minor-ahead should warn, not error: %s", e.Diags.String())
	}
	if len(e.Diags.Warnings()) == 0 {
		t.Error("expected a warning on minor version ahead")
	}
}

func TestEmitSingleScriptSingleEventSingleAction(t *testing.T) {
	cwir := `CWIR_VERSION 1.0
SCRIPT
EVENT LOADED []
VAR_SET l!x 1
END_EVENT
END_SCRIPT
`
	e := New(testCatalog(t), 1)
	scripts := e.Emit(cwir)
	if e.Diags.HasErrors() {
		t.Fatalf("unexpected errors: %s", e.Diags.String())
	}
	if len(scripts) != 1 {
		t.Fatalf("len(scripts) = %d, want 1", len(scripts))
	}
	s := scripts[0]
	if s.Class != "script" || s.Enabled != "true" {
		t.Errorf("unexpected script shape: %+v", s)
	}
	if s.GlobalID == "" {
		t.Error("expected a non-empty script globalid")
	}
	if len(s.Content) != 1 {
		t.Fatalf("len(Content) = %d, want 1", len(s.Content))
	}
	ev := s.Content[0]
	if ev.X != canvasStartX || ev.Y != canvasStartY {
		t.Errorf("event position = (%d,%d), want (%d,%d)", ev.X, ev.Y, canvasStartX, canvasStartY)
	}
	if ev.Width != "350" {
		t.Errorf("event width = %q, want 350", ev.Width)
	}
	if len(ev.Text) == 0 || ev.Text[0] != "LOADED" {
		t.Errorf("event text = %v, want it to start with LOADED", ev.Text)
	}
	if len(ev.Actions) != 1 {
		t.Fatalf("len(Actions) = %d, want 1", len(ev.Actions))
	}
	act := ev.Actions[0]
	if len(act.Text) == 0 || act.Text[0] != "VAR_SET" {
		t.Errorf("action text = %v, want it to start with VAR_SET", act.Text)
	}
}

func TestEmitCanvasPositioningAdvancesAndResets(t *testing.T) {
	cwir := `CWIR_VERSION 1.0
SCRIPT
EVENT LOADED []
END_EVENT
EVENT LOADED []
END_EVENT
END_SCRIPT
SCRIPT
EVENT LOADED []
END_EVENT
END_SCRIPT
`
	e := New(testCatalog(t), 1)
	scripts := e.Emit(cwir)
	if e.Diags.HasErrors() {
		t.Fatalf("unexpected errors: %s", e.Diags.String())
	}
	if len(scripts) != 2 {
		t.Fatalf("len(scripts) = %d, want 2", len(scripts))
	}
	first := scripts[0]
	if first.Content[0].X != canvasStartX {
		t.Errorf("first event x = %d, want %d", first.Content[0].X, canvasStartX)
	}
	if first.Content[1].X != canvasStartX+canvasStepX {
		t.Errorf("second event x = %d, want %d", first.Content[1].X, canvasStartX+canvasStepX)
	}
	second := scripts[1]
	if second.Content[0].X != canvasStartX {
		t.Errorf("second script's first event x = %d, want reset to %d", second.Content[0].X, canvasStartX)
	}
}

func TestEmitNestedScriptIsFatal(t *testing.T) {
	cwir := `CWIR_VERSION 1.0
SCRIPT
SCRIPT
END_SCRIPT
END_SCRIPT
`
	e := New(testCatalog(t), 1)
	e.Emit(cwir)
	if !e.Diags.HasErrors() {
		t.Fatal("expected a fatal error on nested SCRIPT")
	}
}

func TestEmitOrphanCloserIsFatal(t *testing.T) {
	cwir := `CWIR_VERSION 1.0
SCRIPT
EVENT LOADED []
END_REPEAT
END_EVENT
END_SCRIPT
`
	e := New(testCatalog(t), 1)
	e.Emit(cwir)
	if !e.Diags.HasErrors() {
		t.Fatal("expected a fatal error on an orphan closer")
	}
}

// TestEmitMismatchedCloserIsFatal exercises a REPEAT opened then closed by
// END_IF: the closer must name both the expected and actual opcode.
func TestEmitMismatchedCloserIsFatal(t *testing.T) {
	cwir := `CWIR_VERSION 1.0
SCRIPT
EVENT LOADED []
REPEAT 3
END_IF
END_EVENT
END_SCRIPT
`
	e := New(testCatalog(t), 1)
	e.Emit(cwir)
	if !e.Diags.HasErrors() {
		t.Fatal("expected a fatal error on mismatched block closer")
	}
	msg := e.Diags.String()
	if !strings.Contains(msg, "REPEAT") || !strings.Contains(msg, "END_IF") {
		t.Errorf("expected mismatch error naming both REPEAT and END_IF, got: %s", msg)
	}
}

func TestEmitUnclosedBlockAtEOFIsFatal(t *testing.T) {
	cwir := `CWIR_VERSION 1.0
SCRIPT
EVENT LOADED []
REPEAT 3
END_EVENT
END_SCRIPT
`
	e := New(testCatalog(t), 1)
	e.Emit(cwir)
	if !e.Diags.HasErrors() {
		t.Fatal("expected a fatal error on an unclosed block at EOF")
	}
}

func TestEmitMissingArgumentIsFatal(t *testing.T) {
	cwir := `CWIR_VERSION 1.0
SCRIPT
EVENT LOADED []
VAR_SET l!x
END_EVENT
END_SCRIPT
`
	e := New(testCatalog(t), 1)
	e.Emit(cwir)
	if !e.Diags.HasErrors() {
		t.Fatal("expected a fatal error on a missing argument")
	}
}

func TestEmitExcessArgumentIsFatal(t *testing.T) {
	cwir := `CWIR_VERSION 1.0
SCRIPT
EVENT LOADED []
VAR_SET l!x 1 2
END_EVENT
END_SCRIPT
`
	e := New(testCatalog(t), 1)
	e.Emit(cwir)
	if !e.Diags.HasErrors() {
		t.Fatal("expected a fatal error on an excess argument")
	}
}

func TestEmitOpcodeOutsideEventIsFatal(t *testing.T) {
	cwir := `CWIR_VERSION 1.0
SCRIPT
VAR_SET l!x 1
END_SCRIPT
`
	e := New(testCatalog(t), 1)
	e.Emit(cwir)
	if !e.Diags.HasErrors() {
		t.Fatal("expected a fatal error for an opcode outside any EVENT")
	}
}

func TestMintIDProducesUniqueTwoCharacterIDs(t *testing.T) {
	e := New(testCatalog(t), 42)
	seen := make(map[string]bool)
	for i := 0; i < 500; i++ {
		id := e.mintID()
		if len(id) != 2 {
			t.Fatalf("mintID() = %q, want length 2", id)
		}
		if seen[id] {
			t.Fatalf("mintID() produced a duplicate: %q", id)
		}
		seen[id] = true
	}
}

func TestEmitFlagSingleScriptForbidsExplicitScript(t *testing.T) {
	cwir := `CWIR_VERSION 1.0
FLAG SINGLE_SCRIPT
EVENT LOADED []
END_EVENT
SCRIPT
END_SCRIPT
`
	e := New(testCatalog(t), 1)
	e.Emit(cwir)
	if !e.Diags.HasErrors() {
		t.Fatal("expected a fatal error: explicit SCRIPT after FLAG SINGLE_SCRIPT")
	}
}

func TestEmitImplicitSingleScriptWithNoExplicitWrapper(t *testing.T) {
	cwir := `CWIR_VERSION 1.0
EVENT LOADED []
VAR_SET l!x 1
END_EVENT
EVENT LOADED []
VAR_SET l!y 2
END_EVENT
`
	e := New(testCatalog(t), 1)
	scripts := e.Emit(cwir)
	if e.Diags.HasErrors() {
		t.Fatalf("unexpected errors: %s", e.Diags.String())
	}
	if len(scripts) != 1 {
		t.Fatalf("len(scripts) = %d, want 1 implicit script", len(scripts))
	}
	if len(scripts[0].Content) != 2 {
		t.Fatalf("len(Content) = %d, want 2 events collected into the implicit script", len(scripts[0].Content))
	}
}

func TestEmitFuncDefExtractsVariableOverrides(t *testing.T) {
	cwir := `CWIR_VERSION 1.0
SCRIPT
EVENT FUNC_DEF "heal" [target, amount]
RETURN_VALUE l!amount
END_EVENT
END_SCRIPT
`
	e := New(testCatalog(t), 1)
	scripts := e.Emit(cwir)
	if e.Diags.HasErrors() {
		t.Fatalf("unexpected errors: %s", e.Diags.String())
	}
	ev := scripts[0].Content[0]
	if len(ev.Text) != 3 {
		t.Fatalf("FUNC_DEF text = %v, want 3 elements (word, name, params)", ev.Text)
	}
	if ev.Text[0] != "FUNC_DEF" {
		t.Errorf("ev.Text[0] = %v, want FUNC_DEF", ev.Text[0])
	}
	if len(ev.VariableOverrides) != 2 {
		t.Fatalf("VariableOverrides = %v, want 2 entries re-projected from the params tuple", ev.VariableOverrides)
	}
	if ev.VariableOverrides[0].Value != "target" || ev.VariableOverrides[1].Value != "amount" {
		t.Errorf("VariableOverrides = %+v, want [target amount]", ev.VariableOverrides)
	}
}

func TestEmitNonFuncDefEventHasNoVariableOverrides(t *testing.T) {
	cwir := `CWIR_VERSION 1.0
SCRIPT
EVENT LOADED []
END_EVENT
END_SCRIPT
`
	e := New(testCatalog(t), 1)
	scripts := e.Emit(cwir)
	if e.Diags.HasErrors() {
		t.Fatalf("unexpected errors: %s", e.Diags.String())
	}
	if len(scripts[0].Content[0].VariableOverrides) != 0 {
		t.Errorf("VariableOverrides = %v, want none for a LOADED event", scripts[0].Content[0].VariableOverrides)
	}
}

func TestEmitDottedEventWithObjectReference(t *testing.T) {
	cwir := `CWIR_VERSION 1.0
SCRIPT
EVENT PRESSED (Button1) [sender]
VAR_SET l!x 1
END_EVENT
END_SCRIPT
`
	e := New(testCatalog(t), 1)
	scripts := e.Emit(cwir)
	if e.Diags.HasErrors() {
		t.Fatalf("unexpected errors: %s", e.Diags.String())
	}
	ev := scripts[0].Content[0]
	if ev.Text[0] != "PRESSED" {
		t.Errorf("ev.Text[0] = %v, want PRESSED", ev.Text[0])
	}
}

func TestEmitIfElseIfChainBalancesBlocks(t *testing.T) {
	cwir := `CWIR_VERSION 1.0
SCRIPT
EVENT LOADED []
IF_GT l!hp 0
VAR_SET l!x 1
ELSE
IF_EQ l!hp 0
VAR_SET l!y 2
ELSE
VAR_SET l!z 3
END_IF
END_IF
END_EVENT
END_SCRIPT
`
	e := New(testCatalog(t), 1)
	e.Emit(cwir)
	if e.Diags.HasErrors() {
		t.Fatalf("unexpected errors: %s", e.Diags.String())
	}
}

func TestEmitCommentLinesAreIgnored(t *testing.T) {
	cwir := `CWIR_VERSION 1.0
SCRIPT
;; a leading comment
EVENT LOADED []
;; inside the event
VAR_SET l!x 1
END_EVENT
END_SCRIPT
`
	e := New(testCatalog(t), 1)
	scripts := e.Emit(cwir)
	if e.Diags.HasErrors() {
		t.Fatalf("unexpected errors: %s", e.Diags.String())
	}
	if len(scripts[0].Content[0].Actions) != 1 {
		t.Fatalf("comments should not be emitted as actions")
	}
}

func TestEmitScriptAlias(t *testing.T) {
	cwir := `CWIR_VERSION 1.0
SCRIPT
SCRIPT_ALIAS "MyScript"
EVENT LOADED []
END_EVENT
END_SCRIPT
`
	e := New(testCatalog(t), 1)
	scripts := e.Emit(cwir)
	if e.Diags.HasErrors() {
		t.Fatalf("unexpected errors: %s", e.Diags.String())
	}
	if scripts[0].Alias != "MyScript" {
		t.Errorf("Alias = %q, want MyScript", scripts[0].Alias)
	}
}
