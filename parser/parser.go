// Package parser builds an [ast.Program] from a token stream using
// recursive descent for statements and Pratt (operator-precedence)
// parsing for expressions.
package parser

import (
	"strconv"

	"github.com/dr8co/ember/ast"
	"github.com/dr8co/ember/diag"
	"github.com/dr8co/ember/lexer"
	"github.com/dr8co/ember/span"
	"github.com/dr8co/ember/token"
)

// Precedence levels, lowest to highest, matching spec.md's table.
const (
	_ int = iota
	LOWEST
	ASSIGN      // = += -= ...
	TERNARY     // ?:
	LOGOR       // ||  ??
	LOGAND      // &&
	BITOR       // |
	BITXOR      // ^
	BITAND      // &
	EQUALS      // == != === !==
	LESSGREATER // < > <= >=
	SHIFT       // << >> >>>
	SUM         // + -
	PRODUCT     // * / %
	EXPONENT    // **
	PREFIX      // -x !x ++x --x typeof x
	CALL        // fn(x) obj.x obj[x]
)

var precedences = map[token.Type]int{
	token.ASSIGN:         ASSIGN,
	token.PLUS_ASSIGN:    ASSIGN,
	token.MINUS_ASSIGN:   ASSIGN,
	token.STAR_ASSIGN:    ASSIGN,
	token.SLASH_ASSIGN:   ASSIGN,
	token.PERCENT_ASSIGN: ASSIGN,
	token.POW_ASSIGN:     ASSIGN,
	token.SHL_ASSIGN:     ASSIGN,
	token.SHR_ASSIGN:     ASSIGN,
	token.USHR_ASSIGN:    ASSIGN,
	token.AMP_ASSIGN:     ASSIGN,
	token.PIPE_ASSIGN:    ASSIGN,
	token.XOR_ASSIGN:     ASSIGN,
	token.AND_ASSIGN:     ASSIGN,
	token.OR_ASSIGN:      ASSIGN,
	token.NULLISH_ASSIGN: ASSIGN,

	token.QUESTION: TERNARY,

	token.LOR:     LOGOR,
	token.NULLISH: LOGOR,
	token.LAND:    LOGAND,

	token.PIPE: BITOR,
	token.XOR:  BITXOR,
	token.AMP:  BITAND,

	token.EQ:        EQUALS,
	token.NOT_EQ:    EQUALS,
	token.STRICT_EQ: EQUALS,
	token.STRICT_NE: EQUALS,

	token.LT:  LESSGREATER,
	token.GT:  LESSGREATER,
	token.LTE: LESSGREATER,
	token.GTE: LESSGREATER,

	token.SHL:  SHIFT,
	token.SHR:  SHIFT,
	token.USHR: SHIFT,

	token.PLUS:  SUM,
	token.MINUS: SUM,

	token.ASTERISK: PRODUCT,
	token.SLASH:    PRODUCT,
	token.PERCENT:  PRODUCT,

	token.POW: EXPONENT,

	token.INCR: CALL,
	token.DECR: CALL,

	token.LPAREN:   CALL,
	token.LBRACKET: CALL,
	token.DOT:      CALL,
}

var assignmentOps = map[token.Type]bool{
	token.ASSIGN: true, token.PLUS_ASSIGN: true, token.MINUS_ASSIGN: true,
	token.STAR_ASSIGN: true, token.SLASH_ASSIGN: true, token.PERCENT_ASSIGN: true,
	token.POW_ASSIGN: true, token.SHL_ASSIGN: true, token.SHR_ASSIGN: true,
	token.USHR_ASSIGN: true, token.AMP_ASSIGN: true, token.PIPE_ASSIGN: true,
	token.XOR_ASSIGN: true, token.AND_ASSIGN: true, token.OR_ASSIGN: true,
	token.NULLISH_ASSIGN: true,
}

type (
	prefixParseFn func() ast.Expression
	infixParseFn  func(ast.Expression) ast.Expression
)

// Parser consumes a token stream from the lexer and produces an
// *ast.Program. Parse errors are recorded as [diag.Diagnostic]s rather
// than returned individually; the parser resynchronizes at the next
// statement boundary (a semicolon or closing brace) and keeps going,
// so a single syntax error does not hide the rest of the file's
// diagnostics.
type Parser struct {
	l *lexer.Lexer

	curToken  token.Token
	peekToken token.Token

	Diagnostics []diag.Diagnostic

	prefixParseFns map[token.Type]prefixParseFn
	infixParseFns  map[token.Type]infixParseFn
}

// New creates a Parser reading tokens from l.
func New(l *lexer.Lexer) *Parser {
	p := &Parser{l: l}

	p.prefixParseFns = map[token.Type]prefixParseFn{}
	p.registerPrefix(token.IDENT, p.parseIdentifier)
	p.registerPrefix(token.NUMBER, p.parseNumberLiteral)
	p.registerPrefix(token.STRING, p.parseStringLiteral)
	p.registerPrefix(token.TRUE, p.parseBoolean)
	p.registerPrefix(token.FALSE, p.parseBoolean)
	p.registerPrefix(token.NULL, p.parseNull)
	p.registerPrefix(token.UNDEFINED, p.parseUndefined)
	p.registerPrefix(token.THIS, p.parseThis)
	p.registerPrefix(token.BANG, p.parsePrefixExpression)
	p.registerPrefix(token.MINUS, p.parsePrefixExpression)
	p.registerPrefix(token.NOT, p.parsePrefixExpression)
	p.registerPrefix(token.TYPEOF, p.parsePrefixExpression)
	p.registerPrefix(token.VOID, p.parsePrefixExpression)
	p.registerPrefix(token.DELETE, p.parsePrefixExpression)
	p.registerPrefix(token.INCR, p.parsePrefixExpression)
	p.registerPrefix(token.DECR, p.parsePrefixExpression)
	p.registerPrefix(token.LPAREN, p.parseGroupedExpression)
	p.registerPrefix(token.IF, p.parseIfExpression)
	p.registerPrefix(token.FUNCTION, p.parseFunctionLiteral)
	p.registerPrefix(token.LBRACKET, p.parseArrayLiteral)
	p.registerPrefix(token.LBRACE, p.parseObjectLiteral)

	p.infixParseFns = map[token.Type]infixParseFn{}
	for t := range map[token.Type]bool{
		token.PLUS: true, token.MINUS: true, token.ASTERISK: true, token.SLASH: true,
		token.PERCENT: true, token.POW: true, token.EQ: true, token.NOT_EQ: true,
		token.STRICT_EQ: true, token.STRICT_NE: true, token.LT: true, token.GT: true,
		token.LTE: true, token.GTE: true, token.SHL: true, token.SHR: true, token.USHR: true,
		token.AMP: true, token.PIPE: true, token.XOR: true,
	} {
		p.registerInfix(t, p.parseInfixExpression)
	}
	p.registerInfix(token.LAND, p.parseLogicalExpression)
	p.registerInfix(token.LOR, p.parseLogicalExpression)
	p.registerInfix(token.NULLISH, p.parseLogicalExpression)
	for t := range assignmentOps {
		p.registerInfix(t, p.parseAssignmentExpression)
	}
	p.registerInfix(token.QUESTION, p.parseConditionalExpression)
	p.registerInfix(token.LPAREN, p.parseCallExpression)
	p.registerInfix(token.LBRACKET, p.parseIndexExpression)
	p.registerInfix(token.DOT, p.parseDotExpression)
	p.registerInfix(token.INCR, p.parsePostfixExpression)
	p.registerInfix(token.DECR, p.parsePostfixExpression)

	p.nextToken()
	p.nextToken()
	return p
}

func (p *Parser) registerPrefix(t token.Type, fn prefixParseFn) { p.prefixParseFns[t] = fn }
func (p *Parser) registerInfix(t token.Type, fn infixParseFn)   { p.infixParseFns[t] = fn }

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()
}

func (p *Parser) errorf(kind diag.Kind, sp span.Span, format string, args ...any) {
	p.Diagnostics = append(p.Diagnostics, *diag.New(diag.Parse, kind, sp, format, args...))
}

func (p *Parser) peekPrecedence() int {
	if pr, ok := precedences[p.peekToken.Type]; ok {
		return pr
	}
	return LOWEST
}

func (p *Parser) curPrecedence() int {
	if pr, ok := precedences[p.curToken.Type]; ok {
		return pr
	}
	return LOWEST
}

func (p *Parser) expectPeek(t token.Type) bool {
	if p.peekToken.Type == t {
		p.nextToken()
		return true
	}
	p.errorf(diag.ExpectedGot, p.peekToken.Span, "expected next token to be %s, got %s instead", t, p.peekToken.Type)
	return false
}

// ParseProgram parses the whole token stream into a Program, recording
// any diagnostics on p.Diagnostics.
func ParseProgram(l *lexer.Lexer) (*ast.Program, []diag.Diagnostic) {
	p := New(l)
	prog := &ast.Program{}
	start := p.curToken.Span
	for p.curToken.Type != token.EOF {
		stmt := p.parseStatement()
		if stmt != nil {
			prog.Statements = append(prog.Statements, stmt)
		}
		p.nextToken()
	}
	end := start
	if len(prog.Statements) > 0 {
		end = prog.Statements[len(prog.Statements)-1].Span()
	}
	prog.Sp = span.Merge(start, end)
	return prog, p.Diagnostics
}

// ---- statements ----

func (p *Parser) parseStatement() ast.Statement {
	switch p.curToken.Type {
	case token.LET:
		return p.parseLetStatement()
	case token.CONST:
		return p.parseConstStatement()
	case token.VAR:
		return p.parseVarStatement()
	case token.RETURN:
		return p.parseReturnStatement()
	case token.BREAK:
		return p.parseBreakStatement()
	case token.CONTINUE:
		return p.parseContinueStatement()
	case token.WHILE:
		return p.parseWhileStatement()
	case token.FOR:
		return p.parseForStatement()
	case token.LBRACE:
		return p.parseBlockStatement()
	case token.SEMICOLON:
		return nil
	default:
		return p.parseExpressionStatement()
	}
}

func (p *Parser) parseLetStatement() ast.Statement {
	start := p.curToken.Span
	if !p.expectPeek(token.IDENT) {
		p.resync()
		return nil
	}
	name := &ast.Identifier{Sp: p.curToken.Span, Value: p.curToken.Literal}

	var value ast.Expression
	if p.peekToken.Type == token.ASSIGN {
		p.nextToken()
		p.nextToken()
		value = p.parseExpression(LOWEST)
	}
	end := p.curToken.Span
	if p.peekToken.Type == token.SEMICOLON {
		p.nextToken()
		end = p.curToken.Span
	}
	return &ast.LetStatement{Sp: span.Merge(start, end), Name: name, Value: value}
}

func (p *Parser) parseConstStatement() ast.Statement {
	start := p.curToken.Span
	if !p.expectPeek(token.IDENT) {
		p.resync()
		return nil
	}
	name := &ast.Identifier{Sp: p.curToken.Span, Value: p.curToken.Literal}
	if !p.expectPeek(token.ASSIGN) {
		p.resync()
		return nil
	}
	p.nextToken()
	value := p.parseExpression(LOWEST)
	end := p.curToken.Span
	if p.peekToken.Type == token.SEMICOLON {
		p.nextToken()
		end = p.curToken.Span
	}
	return &ast.ConstStatement{Sp: span.Merge(start, end), Name: name, Value: value}
}

func (p *Parser) parseVarStatement() ast.Statement {
	start := p.curToken.Span
	if !p.expectPeek(token.IDENT) {
		p.resync()
		return nil
	}
	name := &ast.Identifier{Sp: p.curToken.Span, Value: p.curToken.Literal}
	var value ast.Expression
	if p.peekToken.Type == token.ASSIGN {
		p.nextToken()
		p.nextToken()
		value = p.parseExpression(LOWEST)
	}
	end := p.curToken.Span
	if p.peekToken.Type == token.SEMICOLON {
		p.nextToken()
		end = p.curToken.Span
	}
	return &ast.VarStatement{Sp: span.Merge(start, end), Name: name, Value: value}
}

func (p *Parser) parseReturnStatement() ast.Statement {
	start := p.curToken.Span
	end := start
	var value ast.Expression
	if p.peekToken.Type != token.SEMICOLON && p.peekToken.Type != token.RBRACE && p.peekToken.Type != token.EOF {
		p.nextToken()
		value = p.parseExpression(LOWEST)
		end = p.curToken.Span
	}
	if p.peekToken.Type == token.SEMICOLON {
		p.nextToken()
		end = p.curToken.Span
	}
	return &ast.ReturnStatement{Sp: span.Merge(start, end), ReturnValue: value}
}

func (p *Parser) parseBreakStatement() ast.Statement {
	sp := p.curToken.Span
	if p.peekToken.Type == token.SEMICOLON {
		p.nextToken()
		sp = span.Merge(sp, p.curToken.Span)
	}
	return &ast.BreakStatement{Sp: sp}
}

func (p *Parser) parseContinueStatement() ast.Statement {
	sp := p.curToken.Span
	if p.peekToken.Type == token.SEMICOLON {
		p.nextToken()
		sp = span.Merge(sp, p.curToken.Span)
	}
	return &ast.ContinueStatement{Sp: sp}
}

func (p *Parser) parseWhileStatement() ast.Statement {
	start := p.curToken.Span
	if !p.expectPeek(token.LPAREN) {
		p.resync()
		return nil
	}
	p.nextToken()
	cond := p.parseExpression(LOWEST)
	if !p.expectPeek(token.RPAREN) {
		p.resync()
		return nil
	}
	if !p.expectPeek(token.LBRACE) {
		p.resync()
		return nil
	}
	body := p.parseBlockStatement()
	return &ast.WhileStatement{Sp: span.Merge(start, body.Span()), Condition: cond, Body: body}
}

func (p *Parser) parseForStatement() ast.Statement {
	start := p.curToken.Span
	if !p.expectPeek(token.LPAREN) {
		p.resync()
		return nil
	}

	var initStmt ast.Statement
	p.nextToken()
	switch p.curToken.Type {
	case token.SEMICOLON:
		// no init clause
	case token.LET:
		initStmt = p.parseLetStatement()
	case token.VAR:
		initStmt = p.parseVarStatement()
	default:
		initStmt = p.parseExpressionStatement()
	}
	if p.curToken.Type != token.SEMICOLON {
		if !p.expectPeek(token.SEMICOLON) {
			p.resync()
			return nil
		}
	}

	var cond ast.Expression
	if p.peekToken.Type != token.SEMICOLON {
		p.nextToken()
		cond = p.parseExpression(LOWEST)
	}
	if !p.expectPeek(token.SEMICOLON) {
		p.resync()
		return nil
	}

	var update ast.Expression
	if p.peekToken.Type != token.RPAREN {
		p.nextToken()
		update = p.parseExpression(LOWEST)
	}
	if !p.expectPeek(token.RPAREN) {
		p.resync()
		return nil
	}
	if !p.expectPeek(token.LBRACE) {
		p.resync()
		return nil
	}
	body := p.parseBlockStatement()
	return &ast.ForStatement{
		Sp: span.Merge(start, body.Span()), Init: initStmt, Condition: cond, Update: update, Body: body,
	}
}

func (p *Parser) parseBlockStatement() *ast.BlockStatement {
	start := p.curToken.Span
	block := &ast.BlockStatement{Sp: start}
	p.nextToken()
	for p.curToken.Type != token.RBRACE && p.curToken.Type != token.EOF {
		stmt := p.parseStatement()
		if stmt != nil {
			block.Statements = append(block.Statements, stmt)
		}
		p.nextToken()
	}
	block.Sp = span.Merge(start, p.curToken.Span)
	return block
}

func (p *Parser) parseExpressionStatement() ast.Statement {
	start := p.curToken.Span
	expr := p.parseExpression(LOWEST)
	end := p.curToken.Span
	if p.peekToken.Type == token.SEMICOLON {
		p.nextToken()
		end = p.curToken.Span
	}
	return &ast.ExpressionStatement{Sp: span.Merge(start, end), Expression: expr}
}

// resync advances past tokens until a likely statement boundary
// (semicolon or closing brace) so a single parse error does not
// derail the rest of the file.
func (p *Parser) resync() {
	for p.curToken.Type != token.SEMICOLON && p.curToken.Type != token.RBRACE && p.curToken.Type != token.EOF {
		p.nextToken()
	}
}

// ---- expressions ----

func (p *Parser) parseExpression(precedence int) ast.Expression {
	prefix, ok := p.prefixParseFns[p.curToken.Type]
	if !ok {
		p.errorf(diag.UnexpectedToken, p.curToken.Span, "no prefix parse function for %s found", p.curToken.Type)
		return nil
	}
	left := prefix()

	for p.peekToken.Type != token.SEMICOLON && precedence < p.peekPrecedence() {
		infix, ok := p.infixParseFns[p.peekToken.Type]
		if !ok {
			return left
		}
		p.nextToken()
		left = infix(left)
	}
	return left
}

func (p *Parser) parseIdentifier() ast.Expression {
	return &ast.Identifier{Sp: p.curToken.Span, Value: p.curToken.Literal}
}

func (p *Parser) parseNumberLiteral() ast.Expression {
	sp := p.curToken.Span
	v, err := strconv.ParseFloat(p.curToken.Literal, 64)
	if err != nil {
		p.errorf(diag.InvalidNumber, sp, "could not parse %q as a number", p.curToken.Literal)
		return nil
	}
	return &ast.NumberLiteral{Sp: sp, Value: v}
}

func (p *Parser) parseStringLiteral() ast.Expression {
	return &ast.StringLiteral{Sp: p.curToken.Span, Value: p.curToken.Literal}
}

func (p *Parser) parseBoolean() ast.Expression {
	return &ast.BooleanLiteral{Sp: p.curToken.Span, Value: p.curToken.Type == token.TRUE}
}

func (p *Parser) parseNull() ast.Expression      { return &ast.NullLiteral{Sp: p.curToken.Span} }
func (p *Parser) parseUndefined() ast.Expression { return &ast.UndefinedLiteral{Sp: p.curToken.Span} }
func (p *Parser) parseThis() ast.Expression      { return &ast.ThisExpression{Sp: p.curToken.Span} }

func (p *Parser) parsePrefixExpression() ast.Expression {
	start := p.curToken.Span
	op := string(p.curToken.Type)
	if p.curToken.Type == token.TYPEOF || p.curToken.Type == token.VOID || p.curToken.Type == token.DELETE {
		op = p.curToken.Literal
	}
	p.nextToken()
	right := p.parseExpression(PREFIX)
	sp := start
	if right != nil {
		sp = span.Merge(start, right.Span())
	}
	return &ast.PrefixExpression{Sp: sp, Operator: op, Right: right}
}

func (p *Parser) parsePostfixExpression(left ast.Expression) ast.Expression {
	return &ast.PostfixExpression{
		Sp: span.Merge(left.Span(), p.curToken.Span), Operator: string(p.curToken.Type), Left: left,
	}
}

func (p *Parser) parseInfixExpression(left ast.Expression) ast.Expression {
	op := string(p.curToken.Type)
	precedence := p.curPrecedence()
	rightAssoc := p.curToken.Type == token.POW
	p.nextToken()
	adj := precedence
	if rightAssoc {
		adj--
	}
	right := p.parseExpression(adj)
	sp := left.Span()
	if right != nil {
		sp = span.Merge(left.Span(), right.Span())
	}
	return &ast.InfixExpression{Sp: sp, Left: left, Operator: op, Right: right}
}

func (p *Parser) parseLogicalExpression(left ast.Expression) ast.Expression {
	op := string(p.curToken.Type)
	precedence := p.curPrecedence()
	p.nextToken()
	right := p.parseExpression(precedence)
	sp := left.Span()
	if right != nil {
		sp = span.Merge(left.Span(), right.Span())
	}
	return &ast.LogicalExpression{Sp: sp, Left: left, Operator: op, Right: right}
}

func (p *Parser) parseAssignmentExpression(left ast.Expression) ast.Expression {
	switch left.(type) {
	case *ast.Identifier, *ast.MemberExpression:
	default:
		p.errorf(diag.InvalidLeftHandSide, left.Span(), "invalid assignment target")
	}
	op := string(p.curToken.Type)
	p.nextToken()
	// Assignment is right-associative.
	value := p.parseExpression(ASSIGN - 1)
	sp := left.Span()
	if value != nil {
		sp = span.Merge(left.Span(), value.Span())
	}
	return &ast.AssignmentExpression{Sp: sp, Operator: op, Target: left, Value: value}
}

func (p *Parser) parseConditionalExpression(left ast.Expression) ast.Expression {
	p.nextToken()
	cons := p.parseExpression(LOWEST)
	if !p.expectPeek(token.COLON) {
		p.resync()
		return nil
	}
	p.nextToken()
	// Conditional is right-associative.
	alt := p.parseExpression(TERNARY - 1)
	sp := left.Span()
	if alt != nil {
		sp = span.Merge(left.Span(), alt.Span())
	}
	return &ast.ConditionalExpression{Sp: sp, Condition: left, Consequent: cons, Alternative: alt}
}

func (p *Parser) parseGroupedExpression() ast.Expression {
	p.nextToken()
	expr := p.parseExpression(LOWEST)
	if !p.expectPeek(token.RPAREN) {
		return nil
	}
	return expr
}

func (p *Parser) parseIfExpression() ast.Expression {
	start := p.curToken.Span
	if !p.expectPeek(token.LPAREN) {
		p.resync()
		return nil
	}
	p.nextToken()
	cond := p.parseExpression(LOWEST)
	if !p.expectPeek(token.RPAREN) {
		p.resync()
		return nil
	}
	if !p.expectPeek(token.LBRACE) {
		p.resync()
		return nil
	}
	cons := p.parseBlockStatement()
	end := cons.Span()

	var alt ast.Statement
	if p.peekToken.Type == token.ELSE {
		p.nextToken()
		switch {
		case p.peekToken.Type == token.IF:
			p.nextToken()
			expr := p.parseIfExpression()
			end = expr.Span()
			alt = &ast.ExpressionStatement{Sp: expr.Span(), Expression: expr}
		case p.expectPeek(token.LBRACE):
			block := p.parseBlockStatement()
			end = block.Span()
			alt = block
		}
	}
	return &ast.IfExpression{Sp: span.Merge(start, end), Condition: cond, Consequence: cons, Alternative: alt}
}

func (p *Parser) parseFunctionLiteral() ast.Expression {
	start := p.curToken.Span
	fn := &ast.FunctionLiteral{Sp: start}

	if p.peekToken.Type == token.IDENT {
		p.nextToken()
		fn.Name = &ast.Identifier{Sp: p.curToken.Span, Value: p.curToken.Literal}
	}

	if !p.expectPeek(token.LPAREN) {
		p.resync()
		return nil
	}
	fn.Parameters = p.parseFunctionParameters()

	if !p.expectPeek(token.LBRACE) {
		p.resync()
		return nil
	}
	fn.Body = p.parseBlockStatement()
	fn.Sp = span.Merge(start, fn.Body.Span())
	return fn
}

func (p *Parser) parseFunctionParameters() []*ast.Identifier {
	var idents []*ast.Identifier
	if p.peekToken.Type == token.RPAREN {
		p.nextToken()
		return idents
	}
	p.nextToken()
	idents = append(idents, &ast.Identifier{Sp: p.curToken.Span, Value: p.curToken.Literal})
	for p.peekToken.Type == token.COMMA {
		p.nextToken()
		p.nextToken()
		idents = append(idents, &ast.Identifier{Sp: p.curToken.Span, Value: p.curToken.Literal})
	}
	if !p.expectPeek(token.RPAREN) {
		return nil
	}
	return idents
}

func (p *Parser) parseArrayLiteral() ast.Expression {
	start := p.curToken.Span
	elems := p.parseExpressionList(token.RBRACKET)
	return &ast.ArrayLiteral{Sp: span.Merge(start, p.curToken.Span), Elements: elems}
}

func (p *Parser) parseExpressionList(end token.Type) []ast.Expression {
	var list []ast.Expression
	if p.peekToken.Type == end {
		p.nextToken()
		return list
	}
	p.nextToken()
	list = append(list, p.parseExpression(LOWEST))
	for p.peekToken.Type == token.COMMA {
		p.nextToken()
		p.nextToken()
		list = append(list, p.parseExpression(LOWEST))
	}
	if !p.expectPeek(end) {
		return nil
	}
	return list
}

func (p *Parser) parseObjectLiteral() ast.Expression {
	start := p.curToken.Span
	obj := &ast.ObjectLiteral{Sp: start}

	for p.peekToken.Type != token.RBRACE {
		p.nextToken()
		var key ast.Expression
		switch p.curToken.Type {
		case token.STRING:
			key = &ast.StringLiteral{Sp: p.curToken.Span, Value: p.curToken.Literal}
		default:
			key = &ast.Identifier{Sp: p.curToken.Span, Value: p.curToken.Literal}
		}
		if !p.expectPeek(token.COLON) {
			return nil
		}
		p.nextToken()
		value := p.parseExpression(LOWEST)
		obj.Properties = append(obj.Properties, ast.ObjectProperty{Key: key, Value: value})

		if p.peekToken.Type != token.RBRACE && !p.expectPeek(token.COMMA) {
			return nil
		}
	}
	if !p.expectPeek(token.RBRACE) {
		return nil
	}
	obj.Sp = span.Merge(start, p.curToken.Span)
	return obj
}

func (p *Parser) parseCallExpression(fn ast.Expression) ast.Expression {
	args := p.parseExpressionList(token.RPAREN)
	return &ast.CallExpression{Sp: span.Merge(fn.Span(), p.curToken.Span), Callee: fn, Arguments: args}
}

func (p *Parser) parseIndexExpression(left ast.Expression) ast.Expression {
	p.nextToken()
	idx := p.parseExpression(LOWEST)
	if !p.expectPeek(token.RBRACKET) {
		return nil
	}
	return &ast.MemberExpression{
		Sp: span.Merge(left.Span(), p.curToken.Span), Object: left, Property: idx, Computed: true,
	}
}

func (p *Parser) parseDotExpression(left ast.Expression) ast.Expression {
	if !p.expectPeek(token.IDENT) {
		return nil
	}
	prop := &ast.Identifier{Sp: p.curToken.Span, Value: p.curToken.Literal}
	return &ast.MemberExpression{
		Sp: span.Merge(left.Span(), p.curToken.Span), Object: left, Property: prop, Computed: false,
	}
}
