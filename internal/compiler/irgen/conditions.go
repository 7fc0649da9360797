package irgen

import "github.com/btouchard/catluac/internal/compiler/ast"

// relationalOpcodes maps a binary comparison operator to its IF_* opcode.
var relationalOpcodes = map[string]string{
	"==":           "IF_EQ",
	"~=":           "IF_NEQ",
	">":            "IF_GT",
	">=":           "IF_GTE",
	"<":            "IF_LT",
	"<=":           "IF_LTE",
	"contains":     "IF_CONTAINS",
	"not contains": "IF_NOT_CONTAINS",
}

// negatedRelational is relationalOpcodes' negation partner table, used when
// lowering `not (a op b)`.
var negatedRelational = map[string]string{
	"==":           "IF_NEQ",
	"~=":           "IF_EQ",
	">":            "IF_LTE",
	">=":           "IF_LT",
	"<":            "IF_GTE",
	"<=":           "IF_GT",
	"contains":     "IF_NOT_CONTAINS",
	"not contains": "IF_CONTAINS",
}

var logicalOpcodes = map[string]string{
	"and": "IF_AND",
	"or":  "IF_OR",
	"nor": "IF_NOR",
	"xor": "IF_XOR",
}

func isNilRef(e ast.Expression) bool {
	ref, ok := e.(*ast.VarRef)
	return ok && ref.Prefix == ast.PrefixNone && ref.Name == "nil"
}

// emitIf lowers an if/elseif*/else chain as nested IF blocks: each elseif
// opens its own IF_* frame inside the previous one's ELSE arm, so it needs
// its own END_IF — one opener per IF_*/elseif condition, closed
// innermost-first.
func (e *Emitter) emitIf(w *writer, s *ast.IfStmt) {
	e.emitCondition(w, s.Condition)
	e.emitBlock(w, s.TrueBody)
	depth := 1
	for _, ei := range s.ElseIfs {
		w.emit("ELSE")
		e.emitCondition(w, ei.Condition)
		e.emitBlock(w, ei.Body)
		depth++
	}
	if len(s.FalseBody) > 0 {
		w.emit("ELSE")
		e.emitBlock(w, s.FalseBody)
	}
	for i := 0; i < depth; i++ {
		w.emit("END_IF")
	}
}

// emitCondition lowers an if/elseif condition to its opening IF_* opcode
// line(s). Existence checks (`== nil`/`~= nil`), relational and logical
// comparisons, string.find, input predicates (keyDown, mouse buttons) and
// hierarchy predicates (IsAncestorOf/IsDescendantOf) each get a dedicated
// opcode; anything else falls back to a plain existence check on the
// condition's materialized value.
func (e *Emitter) emitCondition(w *writer, cond ast.Expression) {
	switch c := cond.(type) {
	case *ast.BinaryExpr:
		if (c.Op == "==" || c.Op == "~=") && (isNilRef(c.Left) || isNilRef(c.Right)) {
			val := c.Left
			if isNilRef(c.Left) {
				val = c.Right
			}
			if c.Op == "==" {
				w.emit("IF_NOT_EXISTS %s", e.value(w, val))
			} else {
				w.emit("IF_EXISTS %s", e.value(w, val))
			}
			return
		}
		if opcode, ok := relationalOpcodes[c.Op]; ok {
			w.emit("%s %s %s", opcode, e.value(w, c.Left), e.value(w, c.Right))
			return
		}
		if opcode, ok := logicalOpcodes[c.Op]; ok {
			w.emit("%s %s %s", opcode, e.value(w, c.Left), e.value(w, c.Right))
			return
		}
		w.emit("IF_EXISTS %s", e.toTemp(w, c))

	case *ast.CallStmt:
		if e.emitConditionCall(w, c) {
			return
		}
		w.emit("IF_EXISTS %s", e.toTemp(w, c))

	case *ast.UnaryExpr:
		if c.Op == "not" {
			e.emitNegatedCondition(w, c.Right)
			return
		}
		w.emit("IF_EXISTS %s", e.value(w, c))

	default:
		w.emit("IF_EXISTS %s", e.value(w, cond))
	}
}

func (e *Emitter) emitNegatedCondition(w *writer, inner ast.Expression) {
	if bin, ok := inner.(*ast.BinaryExpr); ok {
		if (bin.Op == "==" || bin.Op == "~=") && (isNilRef(bin.Left) || isNilRef(bin.Right)) {
			val := bin.Left
			if isNilRef(bin.Left) {
				val = bin.Right
			}
			if bin.Op == "==" {
				w.emit("IF_EXISTS %s", e.value(w, val))
			} else {
				w.emit("IF_NOT_EXISTS %s", e.value(w, val))
			}
			return
		}
		if opcode, ok := negatedRelational[bin.Op]; ok {
			w.emit("%s %s %s", opcode, e.value(w, bin.Left), e.value(w, bin.Right))
			return
		}
	}
	w.emit("IF_NOT_EXISTS %s", e.toTemp(w, inner))
}

// emitConditionCall recognizes a call used directly as a condition: input
// predicates, hierarchy predicates, and string.find. Returns false when the
// call isn't one of these, so the caller falls back to a generic existence
// check on the call's result.
func (e *Emitter) emitConditionCall(w *writer, c *ast.CallStmt) bool {
	if ref, ok := c.Func.(*ast.VarRef); ok {
		switch ref.Name {
		case "keyDown":
			if len(c.Args) == 1 {
				w.emit("IF_KEY_DOWN %s", e.value(w, c.Args[0]))
				return true
			}
		case "leftMouseDown":
			w.emit("IF_MOUSE_LEFT")
			return true
		case "rightMouseDown":
			w.emit("IF_MOUSE_RIGHT")
			return true
		case "IsAncestorOf":
			if len(c.Args) == 2 {
				w.emit("HIERARCHY_IS_ANCESTOR %s %s", e.value(w, c.Args[0]), e.value(w, c.Args[1]))
				return true
			}
		case "IsDescendantOf":
			if len(c.Args) == 2 {
				w.emit("HIERARCHY_IS_DESCENDANT %s %s", e.value(w, c.Args[0]), e.value(w, c.Args[1]))
				return true
			}
		}
	}
	if prop, ok := c.Func.(*ast.PropRef); ok && prop.Prop == "find" {
		if obj, ok := prop.Object.(*ast.VarRef); ok && obj.Name == "string" && len(c.Args) == 2 {
			w.emit("IF_CONTAINS %s %s", e.value(w, c.Args[0]), e.value(w, c.Args[1]))
			return true
		}
	}
	return false
}
