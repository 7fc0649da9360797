package parser

import (
	"github.com/btouchard/catluac/internal/compiler/ast"
	"github.com/btouchard/catluac/internal/compiler/token"
)

// Precedence tiers, lowest to tightest-binding.
const (
	lowest = iota
	orLevel
	andLevel
	relational
	concatLevel
	sumLevel
	productLevel
	unaryLevel
)

var precedences = map[token.TokenType]int{
	token.OR: orLevel, token.NOR: orLevel, token.XOR: orLevel,
	token.AND: andLevel,
	token.EQ: relational, token.NOT_EQ: relational, token.LT: relational, token.LT_EQ: relational,
	token.GT: relational, token.GT_EQ: relational, token.CONTAINS: relational, token.NOT: relational,
	token.CONCAT: concatLevel,
	token.PLUS: sumLevel, token.MINUS: sumLevel,
	token.ASTERISK: productLevel, token.SLASH: productLevel, token.PERCENT: productLevel,
	token.CARET: unaryLevel,
}

// stringMethods is the method-name set rewritten to string.method calls
// rather than free-function calls (the rest of the free-function universe
// resolves however the IR emitter's call-resolution order decides).
var stringMethods = map[string]bool{
	"lower": true, "upper": true, "sub": true, "gsub": true, "len": true, "split": true,
}

func (p *Parser) curPrecedence() int {
	if pr, ok := precedences[p.curToken.Type]; ok {
		return pr
	}
	return lowest
}

// parseExpression is the Pratt loop: a prefix parse, then postfix chaining
// (call/index/property/method), then repeated infix parses as long as the
// next operator binds tighter than precedence.
func (p *Parser) parseExpression(precedence int) ast.Expression {
	prefix := p.prefixParseFns[p.curToken.Type]
	if prefix == nil {
		p.errorf("unexpected token %s %q in expression", p.curToken.Type, p.curToken.Literal)
		return nil
	}
	left := prefix()
	left = p.parsePostfix(left)

	for precedence < p.curPrecedence() {
		infix := p.infixParseFns[p.curToken.Type]
		if infix == nil {
			break
		}
		left = infix(left)
		left = p.parsePostfix(left)
	}
	return left
}

// parsePostfix chains .ident, [expr], (args), and :method(args) onto an
// already-parsed primary, binding tighter than any binary operator.
func (p *Parser) parsePostfix(left ast.Expression) ast.Expression {
	for {
		switch p.curToken.Type {
		case token.DOT:
			line := p.curToken.Pos.Line
			p.next()
			if !p.curIs(token.IDENT) {
				p.errorf("expected identifier after '.'")
				return left
			}
			prop := p.curToken.Literal
			p.next()
			left = ast.NewPropRef(line, left, prop)

		case token.LBRACKET:
			line := p.curToken.Pos.Line
			p.next()
			idx := p.parseExpression(lowest)
			p.expect(token.RBRACKET)
			left = ast.NewIndexRef(line, left, idx)

		case token.LPAREN:
			line := p.curToken.Pos.Line
			args := p.parseArgs()
			left = ast.NewCallStmt(line, ast.Annotations{}, left, args)

		case token.COLON:
			line := p.curToken.Pos.Line
			p.next()
			if !p.curIs(token.IDENT) {
				p.errorf("expected method name after ':'")
				return left
			}
			method := p.curToken.Literal
			p.next()
			if !p.curIs(token.LPAREN) {
				p.errorf("expected '(' after method name %q", method)
				return left
			}
			args := append([]ast.Expression{left}, p.parseArgs()...)
			var fn ast.Expression
			if stringMethods[method] {
				fn = ast.NewPropRef(line, ast.NewVarRef(line, "string", ast.PrefixNone), method)
			} else {
				fn = ast.NewVarRef(line, method, ast.PrefixNone)
			}
			left = ast.NewCallStmt(line, ast.Annotations{}, fn, args)

		default:
			return left
		}
	}
}

func (p *Parser) parseArgs() []ast.Expression {
	p.next() // consume '('
	var args []ast.Expression
	for !p.curIs(token.RPAREN) && !p.curIs(token.EOF) {
		args = append(args, p.parseExpression(lowest))
		if p.curIs(token.COMMA) {
			p.next()
		}
	}
	p.expect(token.RPAREN)
	return args
}

func (p *Parser) parseNumberLit() ast.Expression {
	lit := p.curToken.Literal
	line := p.curToken.Pos.Line
	p.next()
	return ast.NewNumberLit(line, lit)
}

func (p *Parser) parseStringLit() ast.Expression {
	lit := p.curToken.Literal
	line := p.curToken.Pos.Line
	p.next()
	return ast.NewStringLit(line, lit)
}

func (p *Parser) parseInterpStringLit() ast.Expression {
	lit := p.curToken.Literal
	line := p.curToken.Pos.Line
	p.next()
	return ast.NewInterpStringLit(line, lit)
}

func (p *Parser) parseNilLit() ast.Expression {
	line := p.curToken.Pos.Line
	p.next()
	return ast.NewVarRef(line, "nil", ast.PrefixNone)
}

// parseTableLit accepts only the empty table constructor "{}".
func (p *Parser) parseTableLit() ast.Expression {
	line := p.curToken.Pos.Line
	p.next() // consume '{'
	if !p.expect(token.RBRACE) {
		return ast.NewTableLit(line)
	}
	return ast.NewTableLit(line)
}

// parseVarRef splits an optional l!/g!/o! prefix glued onto the identifier
// lexeme by the lexer.
func (p *Parser) parseVarRef() ast.Expression {
	lit := p.curToken.Literal
	line := p.curToken.Pos.Line
	p.next()

	prefix := ast.PrefixNone
	name := lit
	if len(lit) > 2 && lit[1] == '!' {
		switch lit[:2] {
		case "l!":
			prefix = ast.PrefixLocal
			name = lit[2:]
		case "g!":
			prefix = ast.PrefixGlobal
			name = lit[2:]
		case "o!":
			prefix = ast.PrefixObject
			name = lit[2:]
		}
	}
	return ast.NewVarRef(line, name, prefix)
}

func (p *Parser) parseGroupedExpr() ast.Expression {
	p.next() // consume '('
	expr := p.parseExpression(lowest)
	p.expect(token.RPAREN)
	return expr
}

func (p *Parser) parseUnaryExpr() ast.Expression {
	op := string(p.curToken.Type)
	line := p.curToken.Pos.Line
	p.next()
	right := p.parseExpression(unaryLevel)
	return ast.NewUnaryExpr(line, op, right)
}

func (p *Parser) parseBinaryExpr(left ast.Expression) ast.Expression {
	op := string(p.curToken.Type)
	prec := p.curPrecedence()
	line := p.curToken.Pos.Line
	p.next()
	nextPrec := prec
	if op == "^" {
		nextPrec = prec - 1 // right-associative
	}
	right := p.parseExpression(nextPrec)
	return ast.NewBinaryExpr(line, left, op, right)
}

// parseNotContains handles the two-token "not contains" composite operator.
func (p *Parser) parseNotContains(left ast.Expression) ast.Expression {
	line := p.curToken.Pos.Line
	p.next() // consume 'not'
	p.expect(token.CONTAINS)
	right := p.parseExpression(relational)
	return ast.NewBinaryExpr(line, left, "not contains", right)
}
