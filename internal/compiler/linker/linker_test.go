package linker

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
	return path
}

func TestLinkSingleFileNoRequires(t *testing.T) {
	dir := t.TempDir()
	root := writeFile(t, dir, "main.catlua", `
OnMessageReceived(sender, text)
	break
end
`)
	lk := New(false)
	shards := lk.Link(root)
	if lk.Diags.HasErrors() {
		t.Fatalf("unexpected errors: %s", lk.Diags.String())
	}
	if len(shards) != 1 {
		t.Fatalf("expected 1 shard, got %d", len(shards))
	}
}

func TestLinkResolvesRequireWithAppendedExtension(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "utils.catlua", `
function helper()
	return 1
end
`)
	root := writeFile(t, dir, "main.catlua", `
require "utils"

OnMessageReceived(sender, text)
	break
end
`)
	lk := New(false)
	shards := lk.Link(root)
	if lk.Diags.HasErrors() {
		t.Fatalf("unexpected errors: %s", lk.Diags.String())
	}

	var totalFuncs int
	for _, sh := range shards {
		totalFuncs += len(sh.FuncDefs)
	}
	if totalFuncs != 1 {
		t.Fatalf("expected helper() to be linked in, got %d func defs across %d shards", totalFuncs, len(shards))
	}
}

func TestLinkPrefersLiteralPathOverExtension(t *testing.T) {
	dir := t.TempDir()
	// Two candidates: a literal "utils.lua" and "utils.lua.catlua" — the
	// literal must win.
	writeFile(t, dir, "utils.lua", `
function fromLiteral()
	return 1
end
`)
	writeFile(t, dir, "utils.lua.catlua", `
function fromExtended()
	return 2
end
`)
	root := writeFile(t, dir, "main.catlua", `
require "utils.lua"

OnMessageReceived(sender, text)
	break
end
`)
	lk := New(false)
	shards := lk.Link(root)

	var names []string
	for _, sh := range shards {
		for _, fn := range sh.FuncDefs {
			names = append(names, fn.Name)
		}
	}
	if len(names) != 1 || names[0] != "fromLiteral" {
		t.Fatalf("expected only fromLiteral to be linked, got %v", names)
	}
}

func TestLinkDedupesCycles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.catlua", `
require "a"

function fromB()
	return 1
end
`)
	writeFile(t, dir, "a.catlua", `
require "b"

function fromA()
	return 1
end
`)
	root := writeFile(t, dir, "main.catlua", `
require "a"

OnMessageReceived(sender, text)
	break
end
`)
	lk := New(false)
	shards := lk.Link(root)

	counts := map[string]int{}
	for _, sh := range shards {
		for _, fn := range sh.FuncDefs {
			counts[fn.Name]++
		}
	}
	if counts["fromA"] != 1 || counts["fromB"] != 1 {
		t.Fatalf("expected each function exactly once despite the cycle, got %v", counts)
	}
}

func TestLinkMissingFileFatalInCompileMode(t *testing.T) {
	dir := t.TempDir()
	root := writeFile(t, dir, "main.catlua", `
require "nope"

OnMessageReceived(sender, text)
	break
end
`)
	lk := New(false)
	lk.Link(root)
	if !lk.Diags.HasErrors() {
		t.Fatal("expected a fatal error for a missing required file in compile mode")
	}
}

func TestLinkMissingFileSilentInLintMode(t *testing.T) {
	dir := t.TempDir()
	root := writeFile(t, dir, "main.catlua", `
require "nope"

OnMessageReceived(sender, text)
	break
end
`)
	lk := New(true)
	shards := lk.Link(root)
	if lk.Diags.HasErrors() {
		t.Fatalf("expected no errors in lint mode, got: %s", lk.Diags.String())
	}
	if len(shards) != 1 {
		t.Fatalf("expected the root file's shard to still link, got %d", len(shards))
	}
}
