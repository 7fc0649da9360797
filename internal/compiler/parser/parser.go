// Package parser implements the hand-written recursive-descent parser of
// one-token lookahead, Pratt expression parsing, per-statement
// annotation merging, and error-recovery synchronization.
package parser

import (
	"strings"

	"github.com/btouchard/catluac/internal/compiler/ast"
	"github.com/btouchard/catluac/internal/compiler/errors"
	"github.com/btouchard/catluac/internal/compiler/lexer"
	"github.com/btouchard/catluac/internal/compiler/token"
)

// safeKeywords is the set of tokens synchronize() resumes at.
var safeKeywords = map[token.TokenType]bool{
	token.FUNCTION: true, token.LOCAL: true, token.GLOBAL: true, token.OBJECT: true,
	token.IF: true, token.FOR: true, token.REPEAT: true, token.END: true,
	token.RETURN: true, token.BREAK: true, token.DELETE: true,
}

type prefixParseFn func() ast.Expression
type infixParseFn func(ast.Expression) ast.Expression

// Parser turns one file's token stream into a list of shards.
type Parser struct {
	lex *lexer.Lexer

	curToken  token.Token
	peekToken token.Token

	Diags *errors.Diagnostics

	// fatalErr is set when the lexer hits an unrecognized character; lexer
	// errors are immediate and fatal, unlike parse errors.
	fatalErr error

	prefixParseFns map[token.TokenType]prefixParseFn
	infixParseFns  map[token.TokenType]infixParseFn

	pendingLine ast.Annotations // from the most recent --@, applies to the next statement only
	blockAnn    ast.Annotations // from an open --# ... --# end region
	inBlockAnn  bool

	shards   []*ast.Shard
	curShard *ast.Shard
}

// New creates a Parser over lex and primes the two-token lookahead.
func New(lex *lexer.Lexer) *Parser {
	p := &Parser{lex: lex, Diags: errors.NewDiagnostics()}

	p.prefixParseFns = map[token.TokenType]prefixParseFn{}
	p.infixParseFns = map[token.TokenType]infixParseFn{}
	p.prefixParseFns[token.NUMBER] = p.parseNumberLit
	p.prefixParseFns[token.STRING] = p.parseStringLit
	p.prefixParseFns[token.INTERP_STR] = p.parseInterpStringLit
	p.prefixParseFns[token.IDENT] = p.parseVarRef
	p.prefixParseFns[token.PAIRS] = p.parseVarRef
	p.prefixParseFns[token.IPAIRS] = p.parseVarRef
	p.prefixParseFns[token.NIL] = p.parseNilLit
	p.prefixParseFns[token.LBRACE] = p.parseTableLit
	p.prefixParseFns[token.MINUS] = p.parseUnaryExpr
	p.prefixParseFns[token.HASH] = p.parseUnaryExpr
	p.prefixParseFns[token.NOT] = p.parseUnaryExpr
	p.prefixParseFns[token.LPAREN] = p.parseGroupedExpr

	for _, t := range []token.TokenType{
		token.OR, token.NOR, token.XOR, token.AND,
		token.EQ, token.NOT_EQ, token.LT, token.LT_EQ, token.GT, token.GT_EQ, token.CONTAINS,
		token.CONCAT, token.PLUS, token.MINUS, token.ASTERISK, token.SLASH, token.PERCENT, token.CARET,
	} {
		p.infixParseFns[t] = p.parseBinaryExpr
	}
	p.infixParseFns[token.NOT] = p.parseNotContains

	p.next()
	p.next()
	return p
}

func (p *Parser) next() {
	p.curToken = p.peekToken
	if p.fatalErr != nil {
		return
	}
	tok, err := p.lex.NextToken()
	if err != nil {
		p.fatalErr = err
		p.peekToken = token.Token{Type: token.EOF}
		return
	}
	p.peekToken = tok
}

func (p *Parser) curIs(t token.TokenType) bool  { return p.curToken.Type == t }
func (p *Parser) peekIs(t token.TokenType) bool { return p.peekToken.Type == t }

func (p *Parser) expect(t token.TokenType) bool {
	if p.curIs(t) {
		p.next()
		return true
	}
	p.errorf("expected %s, got %s %q", t, p.curToken.Type, p.curToken.Literal)
	return false
}

func (p *Parser) errorf(format string, args ...any) {
	p.Diags.Errorf("parser", p.curToken.Pos.Line, format, args...)
}

// synchronize discards tokens until a safe keyword or EOF.
func (p *Parser) synchronize() {
	p.next()
	for !p.curIs(token.EOF) && !safeKeywords[p.curToken.Type] {
		p.next()
	}
}

// FatalErr returns the lexer's MISMATCH error, if one occurred.
func (p *Parser) FatalErr() error { return p.fatalErr }

// ParseFile parses an entire source file (one or more shards, separated by
// @script annotations) and returns the flattened shard list.
func (p *Parser) ParseFile(sourceDir string) []*ast.Shard {
	p.curShard = &ast.Shard{Line: p.curToken.Pos.Line, SourceDir: sourceDir}

	for !p.curIs(token.EOF) && p.fatalErr == nil {
		switch {
		case p.curIs(token.IDENT) && p.curToken.Literal == "require":
			p.parseRequire()

		case p.curIs(token.ANNOTATION):
			p.parseTopAnnotation()

		case p.curIs(token.COMMENT):
			p.next()

		case p.curIs(token.FUNCTION):
			if fn := p.parseFuncDef(); fn != nil {
				p.curShard.FuncDefs = append(p.curShard.FuncDefs, fn)
			}

		case p.curIs(token.IDENT):
			if ev := p.parseEvent(); ev != nil {
				p.curShard.Events = append(p.curShard.Events, ev)
			}

		default:
			p.errorf("unexpected top-level token %s %q", p.curToken.Type, p.curToken.Literal)
			p.synchronize()
		}
	}

	p.flushShard()
	return p.shards
}

func (p *Parser) flushShard() {
	if p.curShard == nil {
		return
	}
	if len(p.curShard.Requires) > 0 || len(p.curShard.FuncDefs) > 0 || len(p.curShard.Events) > 0 || p.curShard.Alias != "" {
		p.shards = append(p.shards, p.curShard)
	}
	p.curShard = nil
}

// parseRequire handles: require "file" or require("file")
func (p *Parser) parseRequire() {
	line := p.curToken.Pos.Line
	p.next() // consume 'require'
	paren := false
	if p.curIs(token.LPAREN) {
		paren = true
		p.next()
	}
	if !p.curIs(token.STRING) {
		p.errorf("require expects a string path")
		p.synchronize()
		return
	}
	path := p.curToken.Literal
	p.next()
	if paren {
		p.expect(token.RPAREN)
	}
	if p.curShard == nil {
		p.curShard = &ast.Shard{Line: line}
	}
	p.curShard.Requires = append(p.curShard.Requires, path)
}

// parseTopAnnotation handles @script and @script_alias="..." at file scope;
// any other top-level annotation is merged onto the next statement like a
// normal --@ annotation would be inside a block.
func (p *Parser) parseTopAnnotation() {
	kind, key, val := splitAnnotation(p.curToken.Literal)
	switch key {
	case "script":
		p.flushShard()
		p.curShard = &ast.Shard{Line: p.curToken.Pos.Line}
	case "script_alias":
		if p.curShard == nil {
			p.curShard = &ast.Shard{Line: p.curToken.Pos.Line}
		}
		p.curShard.Alias = val
	default:
		p.applyAnnotation(kind, key, val)
	}
	p.next()
}

// splitAnnotation parses an ANNOTATION token's literal ("@key" or "@key=\"v\""
// or "#key" or "#end") into (kind "@"|"#", key, value).
func splitAnnotation(lit string) (kind, key, val string) {
	if lit == "" {
		return "", "", ""
	}
	kind = lit[:1]
	rest := strings.TrimSpace(lit[1:])
	if eq := strings.IndexByte(rest, '='); eq >= 0 {
		key = strings.TrimSpace(rest[:eq])
		val = strings.Trim(strings.TrimSpace(rest[eq+1:]), `"`)
		return
	}
	key = rest
	return
}

func (p *Parser) applyAnnotation(kind, key, val string) {
	target := &p.pendingLine
	if kind == "#" {
		if key == "end" {
			p.inBlockAnn = false
			p.blockAnn = ast.Annotations{}
			return
		}
		target = &p.blockAnn
		p.inBlockAnn = true
	}
	switch key {
	case "builtin":
		target.ForceBuiltin = true
	case "custom":
		target.ForceCustom = true
	case "type":
		target.Type = val
	}
}

// mergedAnnotations combines the persistent block annotation with the
// one-shot line annotation, then clears the line annotation.
func (p *Parser) mergedAnnotations() ast.Annotations {
	merged := p.blockAnn
	if p.pendingLine.ForceBuiltin {
		merged.ForceBuiltin = true
	}
	if p.pendingLine.ForceCustom {
		merged.ForceCustom = true
	}
	if p.pendingLine.Type != "" {
		merged.Type = p.pendingLine.Type
	}
	p.pendingLine = ast.Annotations{}
	return merged
}

// parseDottedName reads Ident[.Ident...] and returns the dotted string.
func (p *Parser) parseDottedName() string {
	name := p.curToken.Literal
	p.next()
	for p.curIs(token.DOT) {
		p.next()
		if !p.curIs(token.IDENT) {
			p.errorf("expected identifier after '.'")
			break
		}
		name += "." + p.curToken.Literal
		p.next()
	}
	return name
}

func (p *Parser) parseFuncDef() *ast.FuncDef {
	line := p.curToken.Pos.Line
	p.next() // consume 'function'
	if !p.curIs(token.IDENT) {
		p.errorf("expected function name")
		p.synchronize()
		return nil
	}
	name := p.parseDottedName()

	if !p.expect(token.LPAREN) {
		p.synchronize()
		return nil
	}
	var params []string
	for !p.curIs(token.RPAREN) && !p.curIs(token.EOF) {
		if p.curIs(token.IDENT) {
			params = append(params, p.curToken.Literal)
			p.next()
		}
		if p.curIs(token.COMMA) {
			p.next()
		}
	}
	p.expect(token.RPAREN)

	if len(params) > 6 {
		p.errorf("function %s has more than 6 parameters", name)
	}

	body := p.parseBlock()
	p.expect(token.END)

	return &ast.FuncDef{Name: name, Params: params, Body: body, Line: line}
}

func (p *Parser) parseEvent() *ast.Event {
	line := p.curToken.Pos.Line
	name := p.parseDottedName()

	var args []string
	if p.curIs(token.LPAREN) {
		p.next()
		for !p.curIs(token.RPAREN) && !p.curIs(token.EOF) {
			if p.curIs(token.IDENT) || p.curIs(token.STRING) {
				args = append(args, p.curToken.Literal)
				p.next()
			}
			if p.curIs(token.COMMA) {
				p.next()
			}
		}
		p.expect(token.RPAREN)
	}

	body := p.parseBlock()
	p.expect(token.END)

	return &ast.Event{EventType: name, Args: args, Body: body, Line: line}
}

// parseBlock parses statements until end/else/elseif/EOF, recovering from
// per-statement parse errors via synchronize().
func (p *Parser) parseBlock() []ast.Statement {
	var stmts []ast.Statement
	for !p.blockEnd() {
		if p.curIs(token.ANNOTATION) {
			kind, key, val := splitAnnotation(p.curToken.Literal)
			p.applyAnnotation(kind, key, val)
			p.next()
			continue
		}
		before := len(p.Diags.Errors())
		stmt := p.parseStatement()
		if len(p.Diags.Errors()) > before {
			p.synchronize()
			continue
		}
		if stmt != nil {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}

func (p *Parser) blockEnd() bool {
	switch p.curToken.Type {
	case token.EOF, token.END, token.ELSE, token.ELSEIF:
		return true
	}
	return false
}

func (p *Parser) parseStatement() ast.Statement {
	ann := p.mergedAnnotations()
	line := p.curToken.Pos.Line

	switch p.curToken.Type {
	case token.COMMENT:
		v := p.curToken.Literal
		p.next()
		return ast.NewCommentStmt(line, ann, v)
	case token.IF:
		return p.parseIfStmt(ann)
	case token.REPEAT:
		return p.parseRepeatStmt(ann)
	case token.FOR:
		return p.parseForStmt(ann)
	case token.BREAK:
		p.next()
		return ast.NewBreakStmt(line, ann)
	case token.RETURN:
		p.next()
		var val ast.Expression
		if !p.blockEnd() && p.curToken.Pos.Line == line {
			val = p.parseExpression(lowest)
		}
		return ast.NewReturnStmt(line, ann, val)
	case token.DELETE:
		p.next()
		target := p.parseExpression(lowest)
		return ast.NewDeleteStmt(line, ann, target)
	default:
		return p.parseAssignOrCall(ann, line)
	}
}

// parseIfStmt: if cond then body {elseif cond then body} [else body] end.
func (p *Parser) parseIfStmt(ann ast.Annotations) ast.Statement {
	node := ast.NewIfStmt(p.curToken.Pos.Line, ann)
	p.next() // consume 'if'
	node.Condition = p.parseExpression(lowest)
	p.expect(token.THEN)
	node.TrueBody = p.parseBlock()

	for p.curIs(token.ELSEIF) {
		p.next()
		cond := p.parseExpression(lowest)
		p.expect(token.THEN)
		body := p.parseBlock()
		node.ElseIfs = append(node.ElseIfs, ast.ElseIf{Condition: cond, Body: body})
	}

	if p.curIs(token.ELSE) {
		p.next()
		node.FalseBody = p.parseBlock()
	}

	p.expect(token.END)
	return node
}

// parseRepeatStmt: repeat forever body end | repeat count body end.
func (p *Parser) parseRepeatStmt(ann ast.Annotations) ast.Statement {
	node := ast.NewRepeatStmt(p.curToken.Pos.Line, ann)
	p.next() // consume 'repeat'
	if p.curIs(token.FOREVER) {
		node.Forever = true
		p.next()
	} else {
		node.Count = p.parseExpression(lowest)
	}
	node.Body = p.parseBlock()
	p.expect(token.END)
	return node
}

// parseForStmt: for v1[, v2] in (pairs|ipairs)(expr) do body end.
func (p *Parser) parseForStmt(ann ast.Annotations) ast.Statement {
	node := ast.NewForStmt(p.curToken.Pos.Line, ann)
	p.next() // consume 'for'

	for {
		if p.curIs(token.IDENT) {
			node.Vars = append(node.Vars, p.curToken.Literal)
			p.next()
		}
		if p.curIs(token.COMMA) {
			p.next()
			continue
		}
		break
	}

	p.expect(token.IN)
	node.Iterator = p.parseExpression(lowest)
	p.expect(token.DO)
	node.Body = p.parseBlock()
	p.expect(token.END)
	return node
}

// parseAssignOrCall covers everything that isn't a keyword-led statement:
// optional scope keyword, optional bg/background, comma-separated targets,
// then one of: "= value", "op= value", or a bare call.
func (p *Parser) parseAssignOrCall(ann ast.Annotations, line int) ast.Statement {
	scope := ast.ScopeNone
	switch p.curToken.Type {
	case token.LOCAL:
		scope = ast.ScopeLocal
		p.next()
	case token.GLOBAL:
		scope = ast.ScopeGlobal
		p.next()
	case token.OBJECT:
		scope = ast.ScopeObject
		p.next()
	}

	isBg := false
	if p.curIs(token.BG) || p.curIs(token.BACKGROUND) {
		isBg = true
		p.next()
	}

	first := p.parseExpression(lowest)
	targets := []ast.Expression{first}
	for p.curIs(token.COMMA) {
		p.next()
		targets = append(targets, p.parseExpression(lowest))
	}

	switch {
	case p.curIs(token.ASSIGN):
		p.next()
		protected := false
		if p.curIs(token.PROTECTED) {
			protected = true
			p.next()
		}
		value := p.parseExpression(lowest)
		if call, ok := value.(*ast.CallStmt); ok {
			*call.StmtAnnotations() = ann
			call.Targets = targets
			call.IsProtected = protected
			call.Scope = scope
			call.IsBg = isBg
			return call
		}
		return ast.NewAssignStmt(line, ann, scope, targets, value, "=")

	case isCompoundAssign(p.curToken.Type):
		op := string(p.curToken.Type)
		p.next()
		if len(targets) != 1 {
			p.errorf("compound assignment requires a single target")
		}
		value := p.parseExpression(lowest)
		return ast.NewAssignStmt(line, ann, scope, targets, value, op)

	default:
		if len(targets) == 1 {
			if call, ok := first.(*ast.CallStmt); ok {
				*call.StmtAnnotations() = ann
				call.IsBg = isBg
				call.Scope = scope
				return call
			}
		}
		p.errorf("unexpected statement")
		return nil
	}
}

func isCompoundAssign(t token.TokenType) bool {
	switch t {
	case token.PLUS_EQ, token.MINUS_EQ, token.STAR_EQ, token.SLASH_EQ, token.CARET_EQ, token.PERCENT_EQ:
		return true
	}
	return false
}
