package irgen

import (
	"strconv"
	"strings"

	"github.com/btouchard/catluac/internal/compiler/ast"
)

// compoundOpcodes maps a compound assignment operator to the in-place
// arithmetic opcode that mutates the target directly.
var compoundOpcodes = map[string]string{
	"+=": "VAR_INC",
	"-=": "VAR_DEC",
	"*=": "VAR_MUL",
	"/=": "VAR_DIV",
	"^=": "VAR_POW",
	"%=": "VAR_MOD",
}

func (e *Emitter) emitAssign(w *writer, s *ast.AssignStmt) {
	ann := *s.StmtAnnotations()

	if len(s.Targets) == 2 {
		if prop, ok := s.Value.(*ast.PropRef); ok {
			if obj, ok := prop.Object.(*ast.VarRef); ok && obj.Name == "Camera" && prop.Prop == "ViewportSize" {
				w.emit("INPUT_GET_VIEWPORT %s %s", e.targetName(w, s.Targets[0]), e.targetName(w, s.Targets[1]))
				return
			}
		}
	}

	if len(s.Targets) == 0 {
		return
	}
	e.emitSingleAssign(w, s.Targets[0], s.Value, s.Op, ann)
}

func (e *Emitter) targetName(w *writer, target ast.Expression) string {
	if ref, ok := target.(*ast.VarRef); ok {
		return string(ref.Prefix) + ref.Name
	}
	return e.value(w, target)
}

func (e *Emitter) emitSingleAssign(w *writer, target, value ast.Expression, op string, ann ast.Annotations) {
	switch t := target.(type) {
	case *ast.VarRef:
		name := string(t.Prefix) + t.Name
		if op != "=" {
			opcode, ok := compoundOpcodes[op]
			if !ok {
				opcode = "VAR_SET"
			}
			w.emit("%s %s %s", opcode, name, e.value(w, value))
			return
		}
		switch v := value.(type) {
		case *ast.PropRef:
			e.emitPropRead(w, name, v, ann.Type)
		case *ast.IndexRef:
			w.emit("TABLE_GET %s %s %s", e.value(w, v.Index), e.value(w, v.Table), name)
		case *ast.UnaryExpr:
			if v.Op == "#" {
				w.emit("TABLE_LEN %s %s", e.value(w, v.Right), name)
				return
			}
			e.lowerInto(w, name, value)
		default:
			e.lowerInto(w, name, value)
		}

	case *ast.PropRef:
		e.emitPropWrite(w, t, value, ann)

	case *ast.IndexRef:
		e.emitIndexWrite(w, t, value)
	}
}

// isLocalPlayerUserProp recognizes LocalPlayer.{Name,UserId,DisplayName}.
func isLocalPlayerUserProp(x *ast.PropRef) (string, bool) {
	obj, ok := x.Object.(*ast.VarRef)
	if !ok || obj.Name != "LocalPlayer" {
		return "", false
	}
	switch x.Prop {
	case "Name":
		return "USER_GET_NAME", true
	case "UserId":
		return "USER_GET_USERID", true
	case "DisplayName":
		return "USER_GET_DISPLAYNAME", true
	}
	return "", false
}

// emitPropRead lowers obj.prop read into target, picking the opcode from the
// object identity (LocalPlayer's user properties get dedicated opcodes),
// the carried annotation type (audio properties use AVAR_GET, input's .Text
// uses INPUT_GET_TEXT), falling back to the generic LOOK_GET_PROP.
func (e *Emitter) emitPropRead(w *writer, target string, x *ast.PropRef, annType string) {
	if opcode, ok := isLocalPlayerUserProp(x); ok {
		w.emit("%s %s %s", opcode, e.value(w, x.Object), target)
		return
	}
	if annType == "input" && x.Prop == "Text" {
		w.emit("INPUT_GET_TEXT %s %s", e.value(w, x.Object), target)
		return
	}
	if annType == "audio" {
		w.emit("AVAR_GET %s %s %s", strconv.Quote(x.Prop), e.value(w, x.Object), target)
		return
	}
	w.emit("LOOK_GET_PROP %s %s %s", strconv.Quote(x.Prop), e.value(w, x.Object), target)
}

func (e *Emitter) emitPropWrite(w *writer, t *ast.PropRef, value ast.Expression, ann ast.Annotations) {
	objArg := e.value(w, t.Object)
	propArg := strconv.Quote(t.Prop)
	valArg := e.value(w, value)
	if ann.Type == "audio" {
		w.emit("AVAR_SET %s %s %s", propArg, objArg, valArg)
		return
	}
	w.emit("LOOK_SET_PROP %s %s %s", propArg, objArg, valArg)
}

func (e *Emitter) emitIndexWrite(w *writer, t *ast.IndexRef, value ast.Expression) {
	entryArg := e.value(w, t.Index)
	tblArg := e.value(w, t.Table)
	if ref, ok := value.(*ast.VarRef); ok && ref.Prefix == ast.PrefixObject {
		w.emit("TABLE_SET_OBJ %s %s %s", entryArg, tblArg, e.value(w, value))
		return
	}
	w.emit("TABLE_SET %s %s %s", entryArg, tblArg, e.value(w, value))
}

// simpleCallDef is a direct name/opcode mapping with no resolution order
// beyond "this identifier always means this opcode".
type simpleCallDef struct {
	opcode    string
	hasOutput bool
}

var simpleCalls = map[string]simpleCallDef{
	"wait":           {"WAIT", false},
	"print":          {"LOG", false},
	"broadcast":      {"BROADCAST", false},
	"tween":          {"TWEEN", false},
	"IsAncestorOf":   {"HIERARCHY_IS_ANCESTOR", true},
	"IsDescendantOf": {"HIERARCHY_IS_DESCENDANT", true},
}

// librarySimpleCalls keys on "object.prop" for the dotted library calls
// (math.*, string.*) that lower to a single fixed opcode.
var librarySimpleCalls = map[string]simpleCallDef{
	"math.random": {"VAR_RANDOM", true},
	"math.round":  {"VAR_ROUND", true},
	"math.floor":  {"VAR_FLOOR", true},
	"math.ceil":   {"VAR_CEIL", true},
	"string.sub":  {"STR_SUB", true},
	"string.gsub": {"STR_REPLACE", true},
}

// methodSimpleCalls keys on the method called on a broadcast-capable object
// (insert/remove table methods also live here, since both are ":method(...)"
// calls resolved the same way: by method name alone, ignoring the receiver).
var methodSimpleCalls = map[string]simpleCallDef{
	"insert":            {"TABLE_INSERT", false},
	"remove":            {"TABLE_REMOVE", false},
	"broadcastNearby":   {"BROADCAST_NEARBY", false},
	"broadcastToOthers": {"BROADCAST_OTHERS", false},
}

func isMouseLocationCall(fn ast.Expression) bool {
	if ref, ok := fn.(*ast.VarRef); ok && ref.Name == "GetMouseLocation" {
		return true
	}
	if prop, ok := fn.(*ast.PropRef); ok {
		if obj, ok := prop.Object.(*ast.VarRef); ok && obj.Name == "UserInputService" && prop.Prop == "GetMousePosition" {
			return true
		}
	}
	return false
}

func callName(fn ast.Expression) string {
	switch f := fn.(type) {
	case *ast.VarRef:
		return f.Name
	case *ast.PropRef:
		return callName(f.Object) + "." + f.Prop
	default:
		return "?"
	}
}

func (e *Emitter) tupleOf(w *writer, args []ast.Expression) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = e.value(w, a)
	}
	return strings.Join(parts, ", ")
}

func (e *Emitter) emitSimpleCall(w *writer, def simpleCallDef, args []ast.Expression, out string) {
	argsText := make([]string, len(args))
	for i, a := range args {
		argsText[i] = e.value(w, a)
	}
	line := strings.Join(argsText, " ")
	if !def.hasOutput {
		if line == "" {
			w.emit("%s", def.opcode)
		} else {
			w.emit("%s %s", def.opcode, line)
		}
		return
	}
	if out == "" {
		out = w.newTmp()
	}
	if line == "" {
		w.emit("%s %s", def.opcode, out)
	} else {
		w.emit("%s %s %s", def.opcode, line, out)
	}
}

// emitCall lowers a call in resolution order: multi-output intrinsics, user
// functions (FUNC_RUN/_BG/_PROTECTED), the static simple-calls table,
// dotted library lowerings, bare method-name lowerings, then a FUNC_RUN
// fallback so nothing is silently dropped.
func (e *Emitter) emitCall(w *writer, fn ast.Expression, args []ast.Expression, targets []ast.Expression, isBg, isProtected bool) {
	out := ""
	if len(targets) > 0 {
		out = e.targetName(w, targets[0])
	}

	if len(targets) == 2 && isMouseLocationCall(fn) {
		w.emit("INPUT_GET_CURSOR %s %s", e.targetName(w, targets[0]), e.targetName(w, targets[1]))
		return
	}

	if ref, ok := fn.(*ast.VarRef); ok {
		if e.funcNames[ref.Name] {
			opcode := "FUNC_RUN"
			switch {
			case isBg:
				opcode = "FUNC_RUN_BG"
			case isProtected:
				opcode = "FUNC_RUN_PROTECTED"
			}
			if out != "" {
				w.emit("%s %s [%s] %s", opcode, strconv.Quote(ref.Name), e.tupleOf(w, args), out)
			} else {
				w.emit("%s %s [%s]", opcode, strconv.Quote(ref.Name), e.tupleOf(w, args))
			}
			return
		}
		if def, ok := simpleCalls[ref.Name]; ok {
			e.emitSimpleCall(w, def, args, out)
			return
		}
		if def, ok := methodSimpleCalls[ref.Name]; ok {
			e.emitSimpleCall(w, def, args, out)
			return
		}
	}

	if prop, ok := fn.(*ast.PropRef); ok {
		if obj, ok := prop.Object.(*ast.VarRef); ok {
			if def, ok := librarySimpleCalls[obj.Name+"."+prop.Prop]; ok {
				e.emitSimpleCall(w, def, args, out)
				return
			}
		}
		if def, ok := methodSimpleCalls[prop.Prop]; ok {
			allArgs := append([]ast.Expression{prop.Object}, args...)
			e.emitSimpleCall(w, def, allArgs, out)
			return
		}
	}

	name := callName(fn)
	if out != "" {
		w.emit("FUNC_RUN %s [%s] %s", strconv.Quote(name), e.tupleOf(w, args), out)
	} else {
		w.emit("FUNC_RUN %s [%s]", strconv.Quote(name), e.tupleOf(w, args))
	}
}
