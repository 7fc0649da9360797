// Package schema parses CWIR — the textual intermediate representation the
// IR Emitter produces — and lowers it into the final JSON document the
// host runtime loads: a list of scripts, each a positioned canvas of
// events built from catalog-described actions.
package schema

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"

	"github.com/btouchard/catluac/internal/compiler/catalog"
	"github.com/btouchard/catluac/internal/compiler/errors"
)

const phase = "schema"

// idCharset is the alphabet global IDs are minted from.
const idCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789!@#$^&*"

const (
	canvasStartX = 5000
	canvasStartY = 5000
	canvasStepX  = 400
)

// blockCloser maps a block-opener opcode to the closer opcode that must
// match it.
var blockCloser = map[string]string{
	"IF_NOT_EXISTS": "END_IF", "IF_EXISTS": "END_IF",
	"IF_EQ": "END_IF", "IF_NEQ": "END_IF",
	"IF_GT": "END_IF", "IF_GTE": "END_IF", "IF_LT": "END_IF", "IF_LTE": "END_IF",
	"IF_CONTAINS": "END_IF", "IF_NOT_CONTAINS": "END_IF",
	"IF_AND": "END_IF", "IF_OR": "END_IF", "IF_NOR": "END_IF", "IF_XOR": "END_IF",
	"IF_KEY_DOWN": "END_IF", "IF_MOUSE_LEFT": "END_IF", "IF_MOUSE_RIGHT": "END_IF",
	"HIERARCHY_IS_ANCESTOR": "END_IF", "HIERARCHY_IS_DESCENDANT": "END_IF",
	"REPEAT": "END_REPEAT", "REPEAT_FOREVER": "END_REPEAT",
	"TABLE_ITER": "END_ITER",
}

var closers = map[string]bool{"END_IF": true, "END_REPEAT": true, "END_ITER": true}

// Action is one lowered action within an event's content list.
type Action struct {
	ID       string `json:"id"`
	Text     []any  `json:"text"`
	GlobalID string `json:"globalid"`
}

// Event is one lowered, positioned event within a script.
type Event struct {
	ID                string   `json:"id"`
	Text              []any    `json:"text"`
	X                 int      `json:"x"`
	Y                 int      `json:"y"`
	Width             string   `json:"width"`
	GlobalID          string   `json:"globalid"`
	Actions           []Action `json:"actions"`
	VariableOverrides []param  `json:"variable_overrides,omitempty"`
}

// Script is one top-level output document entry.
type Script struct {
	Class    string  `json:"class"`
	GlobalID string  `json:"globalid"`
	Content  []Event `json:"content"`
	Enabled  string  `json:"enabled"`
	Alias    string  `json:"alias,omitempty"`
}

// param is a schema-described action/event slot rendered as a JSON object
// with an attached value, as opposed to a bare literal string.
type param struct {
	Value string `json:"value"`
}

// Emitter parses CWIR against a catalog and produces Scripts.
type Emitter struct {
	Diags   *errors.Diagnostics
	cat     *catalog.Catalog
	rng     *rand.Rand
	usedIDs map[string]bool
	nodeSeq int
}

// New creates an Emitter backed by cat. rngSeed is exposed for reproducible
// tests; production callers pass a non-deterministic seed.
func New(cat *catalog.Catalog, rngSeed int64) *Emitter {
	return &Emitter{
		Diags:   errors.NewDiagnostics(),
		cat:     cat,
		rng:     rand.New(rand.NewSource(rngSeed)),
		usedIDs: make(map[string]bool),
	}
}

// frame is one entry on the block-structure stack.
type frame struct {
	kind   string // "script", "event", or an opener opcode
	closer string
	line   int
}

// Emit parses cwir and returns the list of scripts it describes. Any fatal
// diagnostic means the result is incomplete; check e.Diags.HasErrors()
// first.
func (e *Emitter) Emit(cwir string) []Script {
	lines := strings.Split(cwir, "\n")
	if len(lines) == 0 {
		e.Diags.Errorf(phase, 0, "empty CWIR stream")
		return nil
	}

	lineNo := 0
	if !e.checkVersion(lines[0]) {
		return nil
	}
	lineNo++

	var (
		stack        []frame
		scripts      []Script
		cur          *Script
		curEvent     *Event
		singleScript bool
		sawExplicit  bool
		nextX        = canvasStartX
	)

	finishEvent := func() {
		if curEvent != nil && cur != nil {
			cur.Content = append(cur.Content, *curEvent)
			curEvent = nil
		}
	}
	finishScript := func() {
		finishEvent()
		if cur != nil {
			scripts = append(scripts, *cur)
			cur = nil
		}
	}

	for ; lineNo < len(lines); lineNo++ {
		raw := strings.TrimSpace(lines[lineNo])
		if raw == "" || strings.HasPrefix(raw, ";;") {
			continue
		}
		toks, err := tokenizeLine(raw)
		if err != nil {
			e.Diags.Errorf(phase, lineNo+1, "%v", err)
			continue
		}
		if len(toks) == 0 {
			continue
		}
		word := toks[0].text
		args := toks[1:]

		switch word {
		case "SCRIPT":
			if singleScript {
				e.Diags.Errorf(phase, lineNo+1, "explicit SCRIPT forbidden after FLAG SINGLE_SCRIPT")
				continue
			}
			if len(stack) > 0 {
				e.Diags.Errorf(phase, lineNo+1, "nested SCRIPT is not allowed")
				continue
			}
			sawExplicit = true
			stack = append(stack, frame{kind: "script", closer: "END_SCRIPT", line: lineNo + 1})
			s := Script{Class: "script", GlobalID: e.mintID(), Enabled: "true"}
			cur = &s
			nextX = canvasStartX

		case "SCRIPT_ALIAS":
			if cur == nil || len(stack) == 0 || stack[len(stack)-1].kind != "script" {
				e.Diags.Errorf(phase, lineNo+1, "SCRIPT_ALIAS outside a SCRIPT block")
				continue
			}
			if len(args) > 0 {
				cur.Alias = args[0].display()
			}

		case "END_SCRIPT":
			if len(stack) == 0 || stack[len(stack)-1].kind != "script" {
				e.reportMismatch(lineNo+1, word, stack)
				continue
			}
			stack = stack[:len(stack)-1]
			finishScript()

		case "FLAG":
			if len(args) > 0 && args[0].text == "SINGLE_SCRIPT" {
				if sawExplicit {
					e.Diags.Errorf(phase, lineNo+1, "FLAG SINGLE_SCRIPT must precede any explicit SCRIPT block")
					continue
				}
				singleScript = true
			}

		case "EVENT":
			if len(toks) < 2 {
				e.Diags.Errorf(phase, lineNo+1, "EVENT line missing a type word")
				continue
			}
			if cur == nil {
				if !singleScript {
					singleScript = true
				}
				s := Script{Class: "script", GlobalID: e.mintID(), Enabled: "true"}
				cur = &s
				nextX = canvasStartX
			}
			stack = append(stack, frame{kind: "event", closer: "END_EVENT", line: lineNo + 1})
			ev := Event{
				ID:                e.newNodeID(),
				Text:              e.renderEventText(toks[1].text, toks[1:], lineNo+1),
				X:                 nextX,
				Y:                 canvasStartY,
				Width:             "350",
				GlobalID:          e.mintID(),
				VariableOverrides: e.renderVariableOverrides(toks[1:]),
			}
			nextX += canvasStepX
			curEvent = &ev

		case "END_EVENT":
			if len(stack) == 0 || stack[len(stack)-1].kind != "event" {
				e.reportMismatch(lineNo+1, word, stack)
				continue
			}
			stack = stack[:len(stack)-1]
			finishEvent()

		default:
			if curEvent == nil {
				e.Diags.Errorf(phase, lineNo+1, "opcode %q outside an EVENT", word)
				continue
			}
			if closer, ok := blockCloser[word]; ok {
				stack = append(stack, frame{kind: word, closer: closer, line: lineNo + 1})
			} else if closers[word] {
				if len(stack) == 0 || stack[len(stack)-1].closer != word {
					e.reportMismatch(lineNo+1, word, stack)
					continue
				}
				stack = stack[:len(stack)-1]
			}
			action, ok := e.emitAction(word, toks, lineNo+1)
			if ok {
				curEvent.Actions = append(curEvent.Actions, action)
			}
		}
	}

	for _, f := range stack {
		e.Diags.Errorf(phase, f.line, "unclosed %s block (opened here, never closed by EOF)", f.kind)
	}
	finishScript()

	return scripts
}

func (e *Emitter) checkVersion(line string) bool {
	fields := strings.Fields(line)
	if len(fields) != 2 || fields[0] != "CWIR_VERSION" {
		e.Diags.Errorf(phase, 1, "expected CWIR_VERSION header, got %q", line)
		return false
	}
	parts := strings.SplitN(fields[1], ".", 2)
	if len(parts) != 2 {
		e.Diags.Errorf(phase, 1, "malformed CWIR version %q", fields[1])
		return false
	}
	maj, err1 := strconv.Atoi(parts[0])
	min, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		e.Diags.Errorf(phase, 1, "malformed CWIR version %q", fields[1])
		return false
	}
	wantMaj, wantMin := 1, 0
	if maj != wantMaj {
		e.Diags.Errorf(phase, 1, "CWIR major version %d is incompatible with %d", maj, wantMaj)
		return false
	}
	if min > wantMin {
		e.Diags.Warnf(phase, 1, "CWIR minor version %d is ahead of this emitter's %d", min, wantMin)
	}
	return true
}

func (e *Emitter) reportMismatch(line int, got string, stack []frame) {
	if len(stack) == 0 {
		e.Diags.Errorf(phase, line, "orphan closer %q with no open block", got)
		return
	}
	top := stack[len(stack)-1]
	e.Diags.Errorf(phase, line, "mismatched block closer: expected %q to close %q, got %q", top.closer, top.kind, got)
}

// renderEventText builds an event's header text, consuming args against
// the matching event schema when one exists (a dotted event's object
// reference, FUNC_DEF's params tuple, etc). See renderVariableOverrides
// for the separate re-projection FUNC_DEF also gets.
func (e *Emitter) renderEventText(word string, toks []token, line int) []any {
	var out []any
	out = append(out, word)
	schema, ok := e.cat.LookupEvent(toks[0].text)
	if !ok {
		for _, t := range toks[1:] {
			out = append(out, renderToken(t))
		}
		return out
	}
	args := toks[1:]
	for i, slot := range schema.Slots {
		if i >= len(args) {
			e.Diags.Errorf(phase, line, "event %q: missing argument %q", word, slot.Name)
			continue
		}
		out = append(out, renderSlot(slot, args[i]))
	}
	if len(args) > len(schema.Slots) {
		e.Diags.Errorf(phase, line, "event %q: excess arguments (expected %d, got %d)", word, len(schema.Slots), len(args))
	}
	return out
}

// emitAction looks up word's schema and consumes its slots from the
// tokenized line, producing the action's JSON text. Missing/excess
// arguments are fatal per the schema's fixed arity.
func (e *Emitter) emitAction(word string, toks []token, line int) (Action, bool) {
	schema, ok := e.cat.Lookup(word)
	if !ok {
		e.Diags.Errorf(phase, line, "unknown opcode %q", word)
		return Action{}, false
	}
	args := toks[1:]
	if len(args) < len(schema.Slots) {
		e.Diags.Errorf(phase, line, "opcode %q: missing argument(s): expected %d, got %d", word, len(schema.Slots), len(args))
		return Action{}, false
	}
	if len(args) > len(schema.Slots) {
		e.Diags.Errorf(phase, line, "opcode %q: excess argument(s): expected %d, got %d", word, len(schema.Slots), len(args))
		return Action{}, false
	}
	text := []any{word}
	for i, slot := range schema.Slots {
		text = append(text, renderSlot(slot, args[i]))
	}
	return Action{ID: e.newNodeID(), Text: text, GlobalID: e.mintID()}, true
}

// renderVariableOverrides re-projects an event's Tuple-flagged slot (FUNC_DEF's
// params) into the sibling variable_overrides field, for event schemas whose
// catalog entry sets HasVariableOverrides. toks is the EVENT line's type word
// followed by its arguments, the same slice renderEventText consumes.
func (e *Emitter) renderVariableOverrides(toks []token) []param {
	schema, ok := e.cat.LookupEvent(toks[0].text)
	if !ok || !schema.HasVariableOverrides {
		return nil
	}
	args := toks[1:]
	for i, slot := range schema.Slots {
		if !slot.Tuple || i >= len(args) {
			continue
		}
		overrides := make([]param, 0, len(args[i].tuple))
		for _, elem := range args[i].tuple {
			overrides = append(overrides, param{Value: renderToken(elem)})
		}
		return overrides
	}
	return nil
}

func renderSlot(slot catalog.Slot, t token) any {
	if slot.Tuple || slot.Object {
		return param{Value: t.display()}
	}
	return param{Value: renderToken(t)}
}

func renderToken(t token) string {
	if t.text == "EMPTY" {
		return ""
	}
	return t.display()
}

// mintID returns a fresh, document-unique 2-character global ID.
func (e *Emitter) mintID() string {
	for {
		id := string([]byte{
			idCharset[e.rng.Intn(len(idCharset))],
			idCharset[e.rng.Intn(len(idCharset))],
		})
		if !e.usedIDs[id] {
			e.usedIDs[id] = true
			return id
		}
	}
}

// newNodeID produces the small sequential "id" field distinct from the
// minted "globalid" — purely positional within a run, not required to be
// globally unique the way globalid is.
func (e *Emitter) newNodeID() string {
	e.nodeSeq++
	return fmt.Sprintf("n%d", e.nodeSeq)
}
