// Package ast defines the tagged-union AST produced by the parser and
// mutated in place by the desugarer, semantic analyzer and optimizer.
package ast

// Node is the base interface implemented by every AST node.
type Node interface {
	TokenLiteral() string
}

// Annotations is the small, explicitly-named bag of annotation flags that
// later passes honor. Only a handful of keys are ever read, so this is a
// struct rather than a free-form map.
type Annotations struct {
	ForceBuiltin bool
	ForceCustom  bool
	Type         string // "audio" | "input" | "object" | ""
}

// Scope is the resolved or declared scope tag of an assignment target.
type Scope string

const (
	ScopeNone   Scope = ""
	ScopeLocal  Scope = "local"
	ScopeGlobal Scope = "global"
	ScopeObject Scope = "object"
)

// Prefix is the two-character VarRef scope tag.
type Prefix string

const (
	PrefixNone   Prefix = ""
	PrefixLocal  Prefix = "l!"
	PrefixGlobal Prefix = "g!"
	PrefixObject Prefix = "o!"
)

// Program is the root node: an ordered sequence of shards, after linking.
type Program struct {
	Shards []*Shard
}

func (p *Program) TokenLiteral() string { return "program" }

// Shard is a contiguous group of events/functions introduced by @script.
type Shard struct {
	Alias     string
	Requires  []string
	FuncDefs  []*FuncDef
	Events    []*Event
	Line      int
	SourceDir string // directory the shard's file lives in, for require resolution
}

func (s *Shard) TokenLiteral() string { return "shard" }

// FuncDef is a user function definition.
type FuncDef struct {
	Name        string
	Params      []string
	Body        []Statement
	Line        int
	Annotations Annotations
}

func (f *FuncDef) TokenLiteral() string { return "function" }

// Event is a top-level event handler declaration.
type Event struct {
	EventType   string
	Args        []string
	Body        []Statement
	Line        int
	Annotations Annotations
}

func (e *Event) TokenLiteral() string { return "event" }

// Statement is the interface implemented by every statement node.
type Statement interface {
	Node
	statementNode()
	StmtLine() int
	StmtAnnotations() *Annotations
}

// Expression is the interface implemented by every expression node.
type Expression interface {
	Node
	expressionNode()
	ExprLine() int
}

// base carries the fields common to every statement: source line and the
// annotation bag merged onto it by the parser.
type base struct {
	Line int
	Ann  Annotations
}

func (b *base) StmtLine() int                { return b.Line }
func (b *base) StmtAnnotations() *Annotations { return &b.Ann }

// ============ STATEMENTS ============

// newBase builds the common statement fields. Statement constructors are
// exported because base itself is not: callers outside this package build
// nodes through these rather than embedding base directly.
func newBase(line int, ann Annotations) base {
	return base{Line: line, Ann: ann}
}

// AssignStmt: scope? targets = value, or targets op= value.
type AssignStmt struct {
	base
	Scope   Scope
	Targets []Expression
	Value   Expression
	Op      string // "=", "+=", "-=", "*=", "/=", "^=", "%="
}

func NewAssignStmt(line int, ann Annotations, scope Scope, targets []Expression, value Expression, op string) *AssignStmt {
	return &AssignStmt{base: newBase(line, ann), Scope: scope, Targets: targets, Value: value, Op: op}
}

func (a *AssignStmt) TokenLiteral() string { return a.Op }
func (a *AssignStmt) statementNode()       {}

// ElseIf is one elseif arm of an IfStmt.
type ElseIf struct {
	Condition Expression
	Body      []Statement
}

// CallStmt: a call used as a standalone statement (possibly with targets,
// when it is the right-hand side of an assignment rewritten by the parser).
type CallStmt struct {
	base
	IsBg        bool
	Func        Expression
	Args        []Expression
	Targets     []Expression
	IsProtected bool
	Scope       Scope
}

func (c *CallStmt) TokenLiteral() string { return "call" }
func (c *CallStmt) statementNode()       {}
func (c *CallStmt) expressionNode()      {}
func (c *CallStmt) ExprLine() int        { return c.Line }

func NewCallStmt(line int, ann Annotations, fn Expression, args []Expression) *CallStmt {
	return &CallStmt{base: newBase(line, ann), Func: fn, Args: args}
}

// IfStmt: if cond then body {elseif cond then body} [else body] end.
type IfStmt struct {
	base
	Condition Expression
	TrueBody  []Statement
	ElseIfs   []ElseIf
	FalseBody []Statement
}

func (i *IfStmt) TokenLiteral() string { return "if" }
func (i *IfStmt) statementNode()       {}

func NewIfStmt(line int, ann Annotations) *IfStmt {
	return &IfStmt{base: newBase(line, ann)}
}

// RepeatStmt: repeat (forever|count) body end.
type RepeatStmt struct {
	base
	Count   Expression // nil when Forever
	Forever bool
	Body    []Statement
}

func (r *RepeatStmt) TokenLiteral() string { return "repeat" }
func (r *RepeatStmt) statementNode()       {}

func NewRepeatStmt(line int, ann Annotations) *RepeatStmt {
	return &RepeatStmt{base: newBase(line, ann)}
}

// ForStmt: for v1, v2 in (pairs|ipairs)(expr) do body end.
type ForStmt struct {
	base
	Vars     []string
	Iterator Expression
	Body     []Statement
}

func (f *ForStmt) TokenLiteral() string { return "for" }
func (f *ForStmt) statementNode()       {}

func NewForStmt(line int, ann Annotations) *ForStmt {
	return &ForStmt{base: newBase(line, ann)}
}

// ReturnStmt: return [value].
type ReturnStmt struct {
	base
	Value Expression // nil for bare return
}

func (r *ReturnStmt) TokenLiteral() string { return "return" }
func (r *ReturnStmt) statementNode()       {}

func NewReturnStmt(line int, ann Annotations, value Expression) *ReturnStmt {
	return &ReturnStmt{base: newBase(line, ann), Value: value}
}

// BreakStmt: break.
type BreakStmt struct {
	base
}

func (b *BreakStmt) TokenLiteral() string { return "break" }
func (b *BreakStmt) statementNode()       {}

func NewBreakStmt(line int, ann Annotations) *BreakStmt {
	return &BreakStmt{base: newBase(line, ann)}
}

// DeleteStmt: delete target.
type DeleteStmt struct {
	base
	Target Expression
}

func (d *DeleteStmt) TokenLiteral() string { return "delete" }
func (d *DeleteStmt) statementNode()       {}

func NewDeleteStmt(line int, ann Annotations, target Expression) *DeleteStmt {
	return &DeleteStmt{base: newBase(line, ann), Target: target}
}

// CommentStmt preserves a standalone comment as a statement so that block
// walks (DCE, read-counting) don't need special-casing around it.
type CommentStmt struct {
	base
	Value string
}

func (c *CommentStmt) TokenLiteral() string { return "comment" }
func (c *CommentStmt) statementNode()       {}

func NewCommentStmt(line int, ann Annotations, value string) *CommentStmt {
	return &CommentStmt{base: newBase(line, ann), Value: value}
}

// ============ EXPRESSIONS ============

type exprBase struct {
	Line int
}

func (e *exprBase) ExprLine() int { return e.Line }

func newExprBase(line int) exprBase { return exprBase{Line: line} }

// NumberLit: an integer or decimal literal, stored in its canonical textual
// form (see semantic.FoldConstants for the folding rule).
type NumberLit struct {
	exprBase
	Value string
}

func (n *NumberLit) TokenLiteral() string { return n.Value }
func (n *NumberLit) expressionNode()      {}

func NewNumberLit(line int, value string) *NumberLit {
	return &NumberLit{exprBase: newExprBase(line), Value: value}
}

// StringLit: a single/double-quoted literal, body stored without quotes.
type StringLit struct {
	exprBase
	Value string
}

func (s *StringLit) TokenLiteral() string { return s.Value }
func (s *StringLit) expressionNode()      {}

func NewStringLit(line int, value string) *StringLit {
	return &StringLit{exprBase: newExprBase(line), Value: value}
}

// InterpStringLit: a backtick-delimited interpolated literal.
type InterpStringLit struct {
	exprBase
	Value string
}

func (i *InterpStringLit) TokenLiteral() string { return i.Value }
func (i *InterpStringLit) expressionNode()      {}

func NewInterpStringLit(line int, value string) *InterpStringLit {
	return &InterpStringLit{exprBase: newExprBase(line), Value: value}
}

// TableLit: {} (only the empty table literal is supported by the grammar).
type TableLit struct {
	exprBase
}

func (t *TableLit) TokenLiteral() string { return "{}" }
func (t *TableLit) expressionNode()      {}

func NewTableLit(line int) *TableLit {
	return &TableLit{exprBase: newExprBase(line)}
}

// VarRef: name with optional resolved scope prefix.
type VarRef struct {
	exprBase
	Name   string
	Prefix Prefix
}

func (v *VarRef) TokenLiteral() string { return string(v.Prefix) + v.Name }
func (v *VarRef) expressionNode()      {}

func NewVarRef(line int, name string, prefix Prefix) *VarRef {
	return &VarRef{exprBase: newExprBase(line), Name: name, Prefix: prefix}
}

// PropRef: obj.prop.
type PropRef struct {
	exprBase
	Object Expression
	Prop   string
}

func (p *PropRef) TokenLiteral() string { return "." + p.Prop }
func (p *PropRef) expressionNode()      {}

func NewPropRef(line int, object Expression, prop string) *PropRef {
	return &PropRef{exprBase: newExprBase(line), Object: object, Prop: prop}
}

// IndexRef: table[index].
type IndexRef struct {
	exprBase
	Table Expression
	Index Expression
}

func (i *IndexRef) TokenLiteral() string { return "[]" }
func (i *IndexRef) expressionNode()      {}

func NewIndexRef(line int, table, index Expression) *IndexRef {
	return &IndexRef{exprBase: newExprBase(line), Table: table, Index: index}
}

// BinaryExpr: left op right.
type BinaryExpr struct {
	exprBase
	Left  Expression
	Op    string
	Right Expression
}

func (b *BinaryExpr) TokenLiteral() string { return b.Op }
func (b *BinaryExpr) expressionNode()      {}

func NewBinaryExpr(line int, left Expression, op string, right Expression) *BinaryExpr {
	return &BinaryExpr{exprBase: newExprBase(line), Left: left, Op: op, Right: right}
}

// UnaryExpr: op right (prefix -, #, not).
type UnaryExpr struct {
	exprBase
	Op    string
	Right Expression
}

func (u *UnaryExpr) TokenLiteral() string { return u.Op }
func (u *UnaryExpr) expressionNode()      {}

func NewUnaryExpr(line int, op string, right Expression) *UnaryExpr {
	return &UnaryExpr{exprBase: newExprBase(line), Op: op, Right: right}
}
