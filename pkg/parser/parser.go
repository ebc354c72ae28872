// Package parser implements the deva language parser.
//
// The parser converts a stream of tokens (from pkg/lexer) into the
// decorated AST defined by pkg/ast, and builds the accompanying scope
// table as it goes (spec.md §6).
//
// Parser Architecture:
//
// The parser is a recursive-descent parser with Pratt-style operator
// precedence climbing for expressions:
//  1. Each grammar rule corresponds to a parsing function.
//  2. The parser looks one token ahead (peekTok) to decide what to parse.
//  3. parseExpression takes a minimum precedence and loops consuming
//     infix operators at or above it, recursing for higher-precedence
//     right-hand sides.
//
// Token Management:
//
// The parser maintains two tokens at all times:
//   - curTok: the current token being examined
//   - peekTok: the next token (one token lookahead)
//
// Grammar Overview (simplified):
//
//	Program      := Statement*
//	Statement    := LocalDecl | ConstDecl | FuncDef | ClassDef | Import
//	              | If | While | For | Break | Continue | Return
//	              | Block | ExprStatement
//	Expression   := Assignment
//	Assignment   := LogicalOr (("=" | "+=" | "-=" | "*=" | "/=" | "%=") Assignment)?
//	LogicalOr    := LogicalAnd ("||" LogicalAnd)*
//	LogicalAnd   := Equality ("&&" Equality)*
//	Equality     := Relational (("==" | "!=") Relational)*
//	Relational   := Additive (("<" | "<=" | ">" | ">=") Additive)*
//	Additive     := Multiplicative (("+" | "-") Multiplicative)*
//	Multiplicative := Unary (("*" | "/" | "%") Unary)*
//	Unary        := ("-" | "!") Unary | Postfix
//	Postfix      := Primary ("." Identifier | "[" Expression "]" | "(" Args ")")*
//	Primary      := Number | String | "true" | "false" | "null" | Identifier
//	              | "(" Expression ")" | "[" Args "]" | "{" MapEntries "}" | "new" Identifier "(" Args ")"
//
// Error Handling:
//
// The parser accumulates errors in the errors slice rather than stopping
// at the first error, so one pass can report several syntax errors.
package parser

import (
	"fmt"
	"strconv"

	"github.com/jcd-as/deva-sub000/pkg/ast"
	"github.com/jcd-as/deva-sub000/pkg/lexer"
)

// precedence levels, lowest to highest.
const (
	precLowest = iota
	precOr
	precAnd
	precEquality
	precRelational
	precAdditive
	precMultiplicative
	precUnary
	precPostfix
)

var binaryPrecedence = map[lexer.TokenType]int{
	lexer.TokenOr:      precOr,
	lexer.TokenAnd:     precAnd,
	lexer.TokenEq:      precEquality,
	lexer.TokenNeq:     precEquality,
	lexer.TokenLt:      precRelational,
	lexer.TokenLte:     precRelational,
	lexer.TokenGt:      precRelational,
	lexer.TokenGte:     precRelational,
	lexer.TokenPlus:    precAdditive,
	lexer.TokenMinus:   precAdditive,
	lexer.TokenStar:    precMultiplicative,
	lexer.TokenSlash:   precMultiplicative,
	lexer.TokenPercent: precMultiplicative,
}

var assignOps = map[lexer.TokenType]bool{
	lexer.TokenAssign: true, lexer.TokenPlusAssign: true, lexer.TokenMinusAssign: true,
	lexer.TokenStarAssign: true, lexer.TokenSlashAssign: true, lexer.TokenPercentAssign: true,
}

// Parser is stateful and single-use: create a new one per source file.
type Parser struct {
	l       *lexer.Lexer
	file    string
	curTok  lexer.Token
	peekTok lexer.Token
	errors  []string

	scopes      *ast.ScopeTable
	scopeStack  []int
	loopDepth   int
}

// New returns a parser over input, attributing every node to file.
func New(input, file string) *Parser {
	p := &Parser{l: lexer.New(input, file), file: file, scopes: ast.NewScopeTable()}
	p.scopeStack = []int{0}
	p.next()
	p.next()
	return p
}

func (p *Parser) next() {
	p.curTok = p.peekTok
	p.peekTok = p.l.NextToken()
}

func (p *Parser) curScope() int { return p.scopeStack[len(p.scopeStack)-1] }

func (p *Parser) pushScope() int {
	id := p.scopes.NewScope(p.curScope())
	p.scopeStack = append(p.scopeStack, id)
	return id
}

func (p *Parser) popScope() {
	p.scopeStack = p.scopeStack[:len(p.scopeStack)-1]
}

// errorf records a syntax error using spec.md §7's user-visible format
// (<file>:<line>: <kind>: <message>), kinded SyntaxError for the
// compile-time failure class.
func (p *Parser) errorf(format string, args ...interface{}) {
	p.errors = append(p.errors, fmt.Sprintf("%s:%d: SyntaxError: %s", p.file, p.curTok.Line, fmt.Sprintf(format, args...)))
}

func (p *Parser) expect(tt lexer.TokenType) bool {
	if p.curTok.Type == tt {
		p.next()
		return true
	}
	p.errorf("expected %s, got %s (%q)", tt, p.curTok.Type, p.curTok.Literal)
	return false
}

func (p *Parser) info() ast.NodeInfo {
	return ast.NodeInfo{File: p.file, Line: p.curTok.Line, Scope: p.curScope()}
}

// Errors returns the accumulated syntax errors, if any.
func (p *Parser) Errors() []string { return p.errors }

// Scopes returns the scope table built while parsing.
func (p *Parser) Scopes() *ast.ScopeTable { return p.scopes }

// Parse parses the whole input as one module and returns its Program node.
// Call Errors afterward to check for syntax errors.
func (p *Parser) Parse() (*ast.Program, error) {
	prog := &ast.Program{}
	for p.curTok.Type != lexer.TokenEOF {
		stmt := p.parseStatement()
		if stmt != nil {
			prog.Statements = append(prog.Statements, stmt)
		}
	}
	if len(p.errors) > 0 {
		// Lead with the first error in spec.md §7's <file>:<line>: <kind>:
		// <message> format; note any further ones after it rather than
		// before, so the user-visible prefix stays intact.
		msg := p.errors[0]
		if n := len(p.errors); n > 1 {
			msg = fmt.Sprintf("%s (and %d more parse error(s))", msg, n-1)
		}
		return prog, fmt.Errorf("%s", msg)
	}
	return prog, nil
}

func (p *Parser) parseStatement() ast.Statement {
	switch p.curTok.Type {
	case lexer.TokenLocal:
		return p.parseLocalDecl()
	case lexer.TokenConst:
		return p.parseConstDecl()
	case lexer.TokenDef:
		return p.parseFuncDef(false)
	case lexer.TokenClass:
		return p.parseClassDef()
	case lexer.TokenImport:
		return p.parseImport()
	case lexer.TokenIf:
		return p.parseIf()
	case lexer.TokenWhile:
		return p.parseWhile()
	case lexer.TokenFor:
		return p.parseFor()
	case lexer.TokenBreak:
		info := p.info()
		p.next()
		p.consumeSemicolon()
		if p.loopDepth == 0 {
			p.errorf("break outside of a loop")
		}
		return &ast.Break{NodeInfo: info}
	case lexer.TokenContinue:
		info := p.info()
		p.next()
		p.consumeSemicolon()
		if p.loopDepth == 0 {
			p.errorf("continue outside of a loop")
		}
		return &ast.Continue{NodeInfo: info}
	case lexer.TokenReturn:
		return p.parseReturn()
	case lexer.TokenLBrace:
		// "{" <key> ":" opens a map literal expression statement, not a block.
		saved := *p.l
		after := p.l.NextToken()
		*p.l = saved
		if after.Type == lexer.TokenColon {
			return p.parseExprStatement()
		}
		return p.parseBlock()
	default:
		return p.parseExprStatement()
	}
}

func (p *Parser) consumeSemicolon() {
	if p.curTok.Type == lexer.TokenSemicolon {
		p.next()
	}
}

func (p *Parser) parseLocalDecl() ast.Statement {
	info := p.info()
	p.next() // 'local'
	name := p.curTok.Literal
	p.expect(lexer.TokenIdentifier)
	var init ast.Expression
	if p.curTok.Type == lexer.TokenAssign {
		p.next()
		init = p.parseExpression(precLowest)
	}
	p.consumeSemicolon()
	p.scopes.Declare(info.Scope, name, ast.Symbol{Kind: ast.SymVariable, IsLocal: true})
	return &ast.LocalDecl{NodeInfo: info, Name: name, Init: init}
}

func (p *Parser) parseConstDecl() ast.Statement {
	info := p.info()
	p.next() // 'const'
	name := p.curTok.Literal
	p.expect(lexer.TokenIdentifier)
	p.expect(lexer.TokenAssign)
	init := p.parseExpression(precLowest)
	p.consumeSemicolon()
	p.scopes.Declare(info.Scope, name, ast.Symbol{Kind: ast.SymVariable, IsConst: true})
	return &ast.ConstDecl{NodeInfo: info, Name: name, Init: init}
}

func (p *Parser) parseImport() ast.Statement {
	info := p.info()
	p.next() // 'import'
	name := p.curTok.Literal
	p.expect(lexer.TokenIdentifier)
	p.consumeSemicolon()
	p.scopes.Declare(info.Scope, name, ast.Symbol{Kind: ast.SymVariable, IsExtern: true})
	return &ast.Import{NodeInfo: info, ModuleName: name}
}

func (p *Parser) parseFuncDef(isMethod bool) ast.Statement {
	info := p.info()
	p.next() // 'def'
	name := p.curTok.Literal
	p.expect(lexer.TokenIdentifier)
	p.scopes.Declare(info.Scope, name, ast.Symbol{Kind: ast.SymFunction})

	bodyScope := p.pushScope()
	p.expect(lexer.TokenLParen)
	var params []string
	var defaults []ast.Expression
	if isMethod {
		params = append(params, "self")
		defaults = append(defaults, nil)
		p.scopes.Declare(bodyScope, "self", ast.Symbol{Kind: ast.SymParameter, IsLocal: true})
	}
	for p.curTok.Type != lexer.TokenRParen && p.curTok.Type != lexer.TokenEOF {
		pname := p.curTok.Literal
		p.expect(lexer.TokenIdentifier)
		p.scopes.Declare(bodyScope, pname, ast.Symbol{Kind: ast.SymParameter, IsLocal: true})
		params = append(params, pname)
		var def ast.Expression
		if p.curTok.Type == lexer.TokenAssign {
			p.next()
			def = p.parseExpression(precLowest)
		}
		defaults = append(defaults, def)
		if p.curTok.Type == lexer.TokenComma {
			p.next()
		}
	}
	p.expect(lexer.TokenRParen)
	savedLoopDepth := p.loopDepth
	p.loopDepth = 0
	body := p.parseBlock()
	p.loopDepth = savedLoopDepth
	p.popScope()
	return &ast.FuncDef{NodeInfo: info, Name: name, Params: params, Defaults: defaults, Body: body, IsMethod: isMethod}
}

func (p *Parser) parseClassDef() ast.Statement {
	info := p.info()
	p.next() // 'class'
	name := p.curTok.Literal
	p.expect(lexer.TokenIdentifier)
	p.scopes.Declare(info.Scope, name, ast.Symbol{Kind: ast.SymClass})

	super := ""
	if p.curTok.Type == lexer.TokenColon {
		p.next()
		super = p.curTok.Literal
		p.expect(lexer.TokenIdentifier)
	}

	p.expect(lexer.TokenLBrace)
	var fields []string
	var methods []*ast.FuncDef
	for p.curTok.Type != lexer.TokenRBrace && p.curTok.Type != lexer.TokenEOF {
		switch p.curTok.Type {
		case lexer.TokenLocal:
			p.next()
			fields = append(fields, p.curTok.Literal)
			p.expect(lexer.TokenIdentifier)
			p.consumeSemicolon()
		case lexer.TokenDef:
			m := p.parseFuncDef(true).(*ast.FuncDef)
			methods = append(methods, m)
		default:
			p.errorf("unexpected token in class body: %s", p.curTok.Type)
			p.next()
		}
	}
	p.expect(lexer.TokenRBrace)
	return &ast.ClassDef{NodeInfo: info, Name: name, SuperClass: super, Fields: fields, Methods: methods}
}

func (p *Parser) parseIf() ast.Statement {
	info := p.info()
	p.next() // 'if'
	p.expect(lexer.TokenLParen)
	cond := p.parseExpression(precLowest)
	p.expect(lexer.TokenRParen)
	then := p.parseBlock()
	var els *ast.Block
	if p.curTok.Type == lexer.TokenElse {
		p.next()
		if p.curTok.Type == lexer.TokenIf {
			stmt := p.parseIf()
			els = &ast.Block{Statements: []ast.Statement{stmt}}
		} else {
			els = p.parseBlock()
		}
	}
	return &ast.If{NodeInfo: info, Cond: cond, Then: then, Else: els}
}

func (p *Parser) parseWhile() ast.Statement {
	info := p.info()
	p.next() // 'while'
	p.expect(lexer.TokenLParen)
	cond := p.parseExpression(precLowest)
	p.expect(lexer.TokenRParen)
	p.loopDepth++
	body := p.parseBlock()
	p.loopDepth--
	return &ast.While{NodeInfo: info, Cond: cond, Body: body}
}

func (p *Parser) parseFor() ast.Statement {
	info := p.info()
	p.next() // 'for'
	p.expect(lexer.TokenLParen)
	var vars []string
	vars = append(vars, p.curTok.Literal)
	p.expect(lexer.TokenIdentifier)
	if p.curTok.Type == lexer.TokenComma {
		p.next()
		vars = append(vars, p.curTok.Literal)
		p.expect(lexer.TokenIdentifier)
	}
	p.expect(lexer.TokenIn)
	iterable := p.parseExpression(precLowest)
	p.expect(lexer.TokenRParen)

	bodyScope := p.pushScope()
	for _, v := range vars {
		p.scopes.Declare(bodyScope, v, ast.Symbol{Kind: ast.SymVariable, IsLocal: true})
	}
	p.loopDepth++
	body := p.parseBlock()
	p.loopDepth--
	p.popScope()
	return &ast.For{NodeInfo: info, Vars: vars, Iterable: iterable, Body: body}
}

func (p *Parser) parseReturn() ast.Statement {
	info := p.info()
	p.next() // 'return'
	var val ast.Expression
	if p.curTok.Type != lexer.TokenSemicolon && p.curTok.Type != lexer.TokenRBrace {
		val = p.parseExpression(precLowest)
	}
	p.consumeSemicolon()
	return &ast.Return{NodeInfo: info, Value: val}
}

func (p *Parser) parseBlock() *ast.Block {
	info := p.info()
	p.expect(lexer.TokenLBrace)
	blk := &ast.Block{NodeInfo: info}
	for p.curTok.Type != lexer.TokenRBrace && p.curTok.Type != lexer.TokenEOF {
		stmt := p.parseStatement()
		if stmt != nil {
			blk.Statements = append(blk.Statements, stmt)
		}
	}
	p.expect(lexer.TokenRBrace)
	return blk
}

func (p *Parser) parseExprStatement() ast.Statement {
	info := p.info()
	expr := p.parseExpression(precLowest)
	p.consumeSemicolon()
	return &ast.ExprStatement{NodeInfo: info, Expr: expr}
}

// --- expressions ------------------------------------------------------

func (p *Parser) parseExpression(minPrec int) ast.Expression {
	left := p.parseUnary()

	if minPrec <= precLowest && assignOps[p.curTok.Type] {
		info := p.info()
		op := p.curTok.Literal
		p.next()
		right := p.parseExpression(precLowest)
		return &ast.Assignment{NodeInfo: info, Op: op, Target: left, Value: right}
	}

	for {
		prec, ok := binaryPrecedence[p.curTok.Type]
		if !ok || prec < minPrec {
			break
		}
		info := p.info()
		op := p.curTok.Literal
		p.next()
		right := p.parseExpression(prec + 1)
		left = &ast.BinaryExpr{NodeInfo: info, Op: op, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseUnary() ast.Expression {
	if p.curTok.Type == lexer.TokenMinus || p.curTok.Type == lexer.TokenNot {
		info := p.info()
		op := p.curTok.Literal
		p.next()
		operand := p.parseUnary()
		return &ast.UnaryExpr{NodeInfo: info, Op: op, Operand: operand}
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() ast.Expression {
	expr := p.parsePrimary()
	for {
		switch p.curTok.Type {
		case lexer.TokenDot:
			info := p.info()
			p.next()
			name := p.curTok.Literal
			p.expect(lexer.TokenIdentifier)
			expr = &ast.Dot{NodeInfo: info, Receiver: expr, Name: name}
		case lexer.TokenLBracket:
			info := p.info()
			p.next()
			key := p.parseExpression(precLowest)
			p.expect(lexer.TokenRBracket)
			expr = &ast.Index{NodeInfo: info, Receiver: expr, Key: key}
		case lexer.TokenLParen:
			info := p.info()
			args := p.parseArgs()
			expr = &ast.Call{NodeInfo: info, Callee: expr, Args: args}
		default:
			return expr
		}
	}
}

func (p *Parser) parseArgs() []ast.Expression {
	p.expect(lexer.TokenLParen)
	var args []ast.Expression
	for p.curTok.Type != lexer.TokenRParen && p.curTok.Type != lexer.TokenEOF {
		args = append(args, p.parseExpression(precLowest))
		if p.curTok.Type == lexer.TokenComma {
			p.next()
		}
	}
	p.expect(lexer.TokenRParen)
	return args
}

func (p *Parser) parsePrimary() ast.Expression {
	info := p.info()
	switch p.curTok.Type {
	case lexer.TokenNumber:
		lit := p.curTok.Literal
		p.next()
		n, err := strconv.ParseFloat(lit, 64)
		if err != nil {
			p.errorf("invalid number literal %q", lit)
		}
		return &ast.NumberLiteral{NodeInfo: info, Value: n}
	case lexer.TokenString:
		lit := p.curTok.Literal
		p.next()
		info.Sym = lit
		return &ast.StringLiteral{NodeInfo: info, Value: lit}
	case lexer.TokenTrue:
		p.next()
		return &ast.BooleanLiteral{NodeInfo: info, Value: true}
	case lexer.TokenFalse:
		p.next()
		return &ast.BooleanLiteral{NodeInfo: info, Value: false}
	case lexer.TokenNull:
		p.next()
		return &ast.NullLiteral{NodeInfo: info}
	case lexer.TokenIdentifier:
		name := p.curTok.Literal
		p.next()
		info.Sym = name
		return &ast.Identifier{NodeInfo: info, Name: name}
	case lexer.TokenLParen:
		p.next()
		expr := p.parseExpression(precLowest)
		p.expect(lexer.TokenRParen)
		return expr
	case lexer.TokenLBracket:
		p.next()
		var elems []ast.Expression
		for p.curTok.Type != lexer.TokenRBracket && p.curTok.Type != lexer.TokenEOF {
			elems = append(elems, p.parseExpression(precLowest))
			if p.curTok.Type == lexer.TokenComma {
				p.next()
			}
		}
		p.expect(lexer.TokenRBracket)
		return &ast.VectorLiteral{NodeInfo: info, Elements: elems}
	case lexer.TokenLBrace:
		p.next()
		var keys, vals []ast.Expression
		for p.curTok.Type != lexer.TokenRBrace && p.curTok.Type != lexer.TokenEOF {
			k := p.parseExpression(precLowest)
			p.expect(lexer.TokenColon)
			v := p.parseExpression(precLowest)
			keys = append(keys, k)
			vals = append(vals, v)
			if p.curTok.Type == lexer.TokenComma {
				p.next()
			}
		}
		p.expect(lexer.TokenRBrace)
		return &ast.MapLiteral{NodeInfo: info, Keys: keys, Values: vals}
	case lexer.TokenNew:
		p.next()
		name := p.curTok.Literal
		p.expect(lexer.TokenIdentifier)
		args := p.parseArgs()
		return &ast.New{NodeInfo: info, ClassName: name, Args: args}
	default:
		p.errorf("unexpected token %s (%q)", p.curTok.Type, p.curTok.Literal)
		p.next()
		return &ast.NullLiteral{NodeInfo: info}
	}
}
