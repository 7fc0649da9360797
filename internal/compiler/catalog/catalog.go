// Package catalog loads the opcode/event schema the Schema Emitter lowers
// CWIR actions against, treating it as an external, SQLite-backed data
// table rather than a Go constant.
package catalog

import (
	"encoding/json"
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// DefaultDSN opens a throwaway shared in-memory database so a run with no
// configured catalog file still seeds and queries a real database.
const DefaultDSN = "file::memory:?cache=shared"

// Slot describes one argument position in an opcode's or event's text.
type Slot struct {
	Name   string
	Tuple  bool // true: the argument is a [...] tuple, tokenized recursively
	Object bool // true: the argument is a (...) object reference
}

// OpcodeEntry is the gorm-mapped row for one action opcode's schema.
type OpcodeEntry struct {
	Opcode    string `gorm:"primaryKey"`
	SlotsJSON string // JSON-encoded []Slot
	HasOutput bool
}

func (OpcodeEntry) TableName() string { return "opcode_entries" }

// EventEntry is the gorm-mapped row for one event type's schema.
type EventEntry struct {
	EventType            string `gorm:"primaryKey"`
	SlotsJSON            string // JSON-encoded []Slot
	HasVariableOverrides bool
}

func (EventEntry) TableName() string { return "event_entries" }

// OpcodeSchema is the in-memory, decoded form of an OpcodeEntry.
type OpcodeSchema struct {
	Opcode    string
	Slots     []Slot
	HasOutput bool
}

// EventSchema is the in-memory, decoded form of an EventEntry.
type EventSchema struct {
	EventType            string
	Slots                []Slot
	HasVariableOverrides bool
}

// Catalog is the queryable, in-memory form of the two schema tables.
type Catalog struct {
	Opcodes map[string]OpcodeSchema
	Events  map[string]EventSchema
}

// Load opens dsn (a sqlite DSN, typically a file path or DefaultDSN),
// auto-migrates the two schema tables, seeds them with the default
// catalog if empty, and returns the decoded in-memory form.
func Load(dsn string) (*Catalog, error) {
	if dsn == "" {
		dsn = DefaultDSN
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("opening catalog database %q: %w", dsn, err)
	}
	if err := db.AutoMigrate(&OpcodeEntry{}, &EventEntry{}); err != nil {
		return nil, fmt.Errorf("migrating catalog schema: %w", err)
	}

	var opcodeCount int64
	if err := db.Model(&OpcodeEntry{}).Count(&opcodeCount).Error; err != nil {
		return nil, fmt.Errorf("counting opcode entries: %w", err)
	}
	if opcodeCount == 0 {
		if err := seed(db); err != nil {
			return nil, fmt.Errorf("seeding default catalog: %w", err)
		}
	}

	var opcodeRows []OpcodeEntry
	if err := db.Find(&opcodeRows).Error; err != nil {
		return nil, fmt.Errorf("loading opcode entries: %w", err)
	}
	var eventRows []EventEntry
	if err := db.Find(&eventRows).Error; err != nil {
		return nil, fmt.Errorf("loading event entries: %w", err)
	}

	cat := &Catalog{Opcodes: make(map[string]OpcodeSchema), Events: make(map[string]EventSchema)}
	for _, row := range opcodeRows {
		var slots []Slot
		if err := json.Unmarshal([]byte(row.SlotsJSON), &slots); err != nil {
			return nil, fmt.Errorf("decoding slots for opcode %q: %w", row.Opcode, err)
		}
		cat.Opcodes[row.Opcode] = OpcodeSchema{Opcode: row.Opcode, Slots: slots, HasOutput: row.HasOutput}
	}
	for _, row := range eventRows {
		var slots []Slot
		if err := json.Unmarshal([]byte(row.SlotsJSON), &slots); err != nil {
			return nil, fmt.Errorf("decoding slots for event %q: %w", row.EventType, err)
		}
		cat.Events[row.EventType] = EventSchema{EventType: row.EventType, Slots: slots, HasVariableOverrides: row.HasVariableOverrides}
	}
	return cat, nil
}

// Lookup returns the schema for opcode, and whether it was found.
func (c *Catalog) Lookup(opcode string) (OpcodeSchema, bool) {
	s, ok := c.Opcodes[opcode]
	return s, ok
}

// LookupEvent returns the schema for an event type, and whether it was
// found. FUNC_DEF is always present (see seed).
func (c *Catalog) LookupEvent(eventType string) (EventSchema, bool) {
	s, ok := c.Events[eventType]
	return s, ok
}

func seed(db *gorm.DB) error {
	for _, def := range defaultOpcodes {
		slotsJSON, err := json.Marshal(def.slots)
		if err != nil {
			return err
		}
		row := OpcodeEntry{Opcode: def.opcode, SlotsJSON: string(slotsJSON), HasOutput: def.hasOutput}
		if err := db.Create(&row).Error; err != nil {
			return err
		}
	}
	for _, def := range defaultEvents {
		slotsJSON, err := json.Marshal(def.slots)
		if err != nil {
			return err
		}
		row := EventEntry{EventType: def.eventType, SlotsJSON: string(slotsJSON), HasVariableOverrides: def.hasVarOverrides}
		if err := db.Create(&row).Error; err != nil {
			return err
		}
	}
	return nil
}

type opcodeDef struct {
	opcode    string
	slots     []Slot
	hasOutput bool
}

type eventDef struct {
	eventType       string
	slots           []Slot
	hasVarOverrides bool
}

// defaultOpcodes is the built-in action catalog: every opcode the IR
// Emitter names across expression scaffolding, assignment lowering, calls
// and control flow.
var defaultOpcodes = []opcodeDef{
	{"VAR_SET", []Slot{{Name: "tmp"}, {Name: "value"}}, false},
	{"VAR_INC", []Slot{{Name: "tmp"}, {Name: "value"}}, false},
	{"VAR_DEC", []Slot{{Name: "tmp"}, {Name: "value"}}, false},
	{"VAR_MUL", []Slot{{Name: "tmp"}, {Name: "value"}}, false},
	{"VAR_DIV", []Slot{{Name: "tmp"}, {Name: "value"}}, false},
	{"VAR_POW", []Slot{{Name: "tmp"}, {Name: "value"}}, false},
	{"VAR_MOD", []Slot{{Name: "tmp"}, {Name: "value"}}, false},
	{"VAR_RANDOM", []Slot{{Name: "min"}, {Name: "max"}, {Name: "out"}}, true},
	{"VAR_ROUND", []Slot{{Name: "in"}, {Name: "out"}}, true},
	{"VAR_FLOOR", []Slot{{Name: "in"}, {Name: "out"}}, true},
	{"VAR_CEIL", []Slot{{Name: "in"}, {Name: "out"}}, true},
	{"STR_CONCAT", []Slot{{Name: "a"}, {Name: "b"}, {Name: "out"}}, true},
	{"STR_SUB", []Slot{{Name: "str"}, {Name: "start"}, {Name: "end"}, {Name: "out"}}, true},
	{"STR_REPLACE", []Slot{{Name: "str"}, {Name: "pattern"}, {Name: "repl"}, {Name: "out"}}, true},
	{"TABLE_GET", []Slot{{Name: "entry"}, {Name: "tbl"}, {Name: "out"}}, true},
	{"TABLE_SET", []Slot{{Name: "entry"}, {Name: "tbl"}, {Name: "value"}}, false},
	{"TABLE_SET_OBJ", []Slot{{Name: "entry"}, {Name: "tbl"}, {Name: "obj", Object: true}}, false},
	{"TABLE_LEN", []Slot{{Name: "tbl"}, {Name: "out"}}, true},
	{"TABLE_ITER", []Slot{{Name: "tbl"}}, false},
	{"TABLE_INSERT", []Slot{{Name: "tbl"}, {Name: "value"}}, false},
	{"TABLE_REMOVE", []Slot{{Name: "tbl"}, {Name: "index"}}, false},
	{"LOOK_GET_PROP", []Slot{{Name: "prop"}, {Name: "obj", Object: true}, {Name: "out"}}, true},
	{"LOOK_SET_PROP", []Slot{{Name: "prop"}, {Name: "obj", Object: true}, {Name: "value"}}, false},
	{"AVAR_GET", []Slot{{Name: "prop"}, {Name: "obj", Object: true}, {Name: "out"}}, true},
	{"AVAR_SET", []Slot{{Name: "prop"}, {Name: "obj", Object: true}, {Name: "value"}}, false},
	{"INPUT_GET_TEXT", []Slot{{Name: "obj", Object: true}, {Name: "out"}}, true},
	{"INPUT_GET_CURSOR", []Slot{{Name: "outX"}, {Name: "outY"}}, true},
	{"INPUT_GET_VIEWPORT", []Slot{{Name: "outX"}, {Name: "outY"}}, true},
	{"USER_GET_NAME", []Slot{{Name: "obj", Object: true}, {Name: "out"}}, true},
	{"USER_GET_USERID", []Slot{{Name: "obj", Object: true}, {Name: "out"}}, true},
	{"USER_GET_DISPLAYNAME", []Slot{{Name: "obj", Object: true}, {Name: "out"}}, true},
	{"FUNC_RUN", []Slot{{Name: "name"}, {Name: "args", Tuple: true}}, false},
	{"FUNC_RUN_BG", []Slot{{Name: "name"}, {Name: "args", Tuple: true}}, false},
	{"FUNC_RUN_PROTECTED", []Slot{{Name: "name"}, {Name: "args", Tuple: true}, {Name: "out"}}, true},
	{"BROADCAST", []Slot{{Name: "channel"}, {Name: "message"}}, false},
	{"BROADCAST_NEARBY", []Slot{{Name: "channel"}, {Name: "message"}, {Name: "radius"}}, false},
	{"BROADCAST_OTHERS", []Slot{{Name: "channel"}, {Name: "message"}}, false},
	{"TWEEN", []Slot{{Name: "obj", Object: true}, {Name: "props", Tuple: true}, {Name: "duration"}}, false},
	{"HIERARCHY_IS_ANCESTOR", []Slot{{Name: "obj", Object: true}, {Name: "other", Object: true}, {Name: "out"}}, true},
	{"HIERARCHY_IS_DESCENDANT", []Slot{{Name: "obj", Object: true}, {Name: "other", Object: true}, {Name: "out"}}, true},
	{"LOG", []Slot{{Name: "message"}}, false},
	{"WAIT", []Slot{{Name: "seconds"}}, false},
	{"DELETE", []Slot{{Name: "obj", Object: true}}, false},
	{"BREAK", nil, false},
	{"RETURN", nil, false},
	{"RETURN_VALUE", []Slot{{Name: "value"}}, false},

	{"IF_NOT_EXISTS", []Slot{{Name: "value"}}, false},
	{"IF_EXISTS", []Slot{{Name: "value"}}, false},
	{"IF_EQ", []Slot{{Name: "a"}, {Name: "b"}}, false},
	{"IF_NEQ", []Slot{{Name: "a"}, {Name: "b"}}, false},
	{"IF_GT", []Slot{{Name: "a"}, {Name: "b"}}, false},
	{"IF_GTE", []Slot{{Name: "a"}, {Name: "b"}}, false},
	{"IF_LT", []Slot{{Name: "a"}, {Name: "b"}}, false},
	{"IF_LTE", []Slot{{Name: "a"}, {Name: "b"}}, false},
	{"IF_CONTAINS", []Slot{{Name: "a"}, {Name: "b"}}, false},
	{"IF_NOT_CONTAINS", []Slot{{Name: "a"}, {Name: "b"}}, false},
	{"IF_AND", []Slot{{Name: "a"}, {Name: "b"}}, false},
	{"IF_OR", []Slot{{Name: "a"}, {Name: "b"}}, false},
	{"IF_NOR", []Slot{{Name: "a"}, {Name: "b"}}, false},
	{"IF_XOR", []Slot{{Name: "a"}, {Name: "b"}}, false},
	{"IF_KEY_DOWN", []Slot{{Name: "key"}}, false},
	{"IF_MOUSE_LEFT", nil, false},
	{"IF_MOUSE_RIGHT", nil, false},
	{"END_IF", nil, false},
	{"ELSE", nil, false},
	{"REPEAT", []Slot{{Name: "count"}}, false},
	{"REPEAT_FOREVER", nil, false},
	{"END_REPEAT", nil, false},
	{"END_ITER", nil, false},
}

// defaultEvents is the built-in event-dispatch catalog, keyed by the
// dispatch opcode word the IR emitter actually writes into CWIR (see
// irgen.dispatchEvent) rather than the source event type name — "PRESSED",
// not "MouseButton1Click". Every event line carries a trailing "args" tuple
// of its declared parameter names (see irgen.emitEvent), even when that
// tuple is empty, so every entry accounts for it.
var defaultEvents = []eventDef{
	{"PRESSED", []Slot{{Name: "obj", Object: true}, {Name: "args", Tuple: true}}, false},
	{"MOUSE_ENTER", []Slot{{Name: "obj", Object: true}, {Name: "args", Tuple: true}}, false},
	{"MOUSE_LEAVE", []Slot{{Name: "obj", Object: true}, {Name: "args", Tuple: true}}, false},
	{"LOADED", []Slot{{Name: "args", Tuple: true}}, false},
	{"OnMessageReceived", []Slot{{Name: "args", Tuple: true}}, false},
	{"OnCrossSiteMessageReceived", []Slot{{Name: "args", Tuple: true}}, false},
	{"CHANGED", []Slot{{Name: "obj", Object: true}, {Name: "args", Tuple: true}}, false},
	{"FUNC_DEF", []Slot{{Name: "name"}, {Name: "params", Tuple: true}}, true},
}
