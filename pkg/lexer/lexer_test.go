package lexer

import "testing"

func TestNextTokenDelimitersAndOperators(t *testing.T) {
	input := `( ) { } [ ] , ; : . + - * / % = += -= *= /= %= == != < <= > >= && || !`

	expected := []TokenType{
		TokenLParen, TokenRParen, TokenLBrace, TokenRBrace, TokenLBracket, TokenRBracket,
		TokenComma, TokenSemicolon, TokenColon, TokenDot,
		TokenPlus, TokenMinus, TokenStar, TokenSlash, TokenPercent,
		TokenAssign, TokenPlusAssign, TokenMinusAssign, TokenStarAssign, TokenSlashAssign, TokenPercentAssign,
		TokenEq, TokenNeq, TokenLt, TokenLte, TokenGt, TokenGte, TokenAnd, TokenOr, TokenNot,
		TokenEOF,
	}

	l := New(input, "test.dv")
	for i, want := range expected {
		tok := l.NextToken()
		if tok.Type != want {
			t.Fatalf("token %d: expected %s, got %s (%q)", i, want, tok.Type, tok.Literal)
		}
	}
}

func TestNextTokenKeywords(t *testing.T) {
	input := "def class local const import if else while for in break continue return new extern true false null"
	expected := []TokenType{
		TokenDef, TokenClass, TokenLocal, TokenConst, TokenImport, TokenIf, TokenElse,
		TokenWhile, TokenFor, TokenIn, TokenBreak, TokenContinue, TokenReturn, TokenNew,
		TokenExtern, TokenTrue, TokenFalse, TokenNull, TokenEOF,
	}
	l := New(input, "test.dv")
	for i, want := range expected {
		tok := l.NextToken()
		if tok.Type != want {
			t.Fatalf("token %d: expected %s, got %s", i, want, tok.Type)
		}
	}
}

func TestNextTokenNumbersAndStrings(t *testing.T) {
	input := `42 3.14 -5 -2.5 "hello" "escaped \"quote\" and \n newline"`
	l := New(input, "test.dv")

	want := []struct {
		typ TokenType
		lit string
	}{
		{TokenNumber, "42"},
		{TokenNumber, "3.14"},
		{TokenNumber, "-5"},
		{TokenNumber, "-2.5"},
		{TokenString, "hello"},
		{TokenString, "escaped \"quote\" and \n newline"},
	}
	for i, w := range want {
		tok := l.NextToken()
		if tok.Type != w.typ || tok.Literal != w.lit {
			t.Fatalf("token %d: expected {%s %q}, got {%s %q}", i, w.typ, w.lit, tok.Type, tok.Literal)
		}
	}
}

func TestNextTokenIdentifiers(t *testing.T) {
	input := "foo _bar baz2 x"
	l := New(input, "test.dv")
	for _, want := range []string{"foo", "_bar", "baz2", "x"} {
		tok := l.NextToken()
		if tok.Type != TokenIdentifier || tok.Literal != want {
			t.Fatalf("expected identifier %q, got {%s %q}", want, tok.Type, tok.Literal)
		}
	}
}

func TestNextTokenSkipsComments(t *testing.T) {
	input := "1 // line comment\n2 /* block\ncomment */ 3"
	l := New(input, "test.dv")
	for _, want := range []string{"1", "2", "3"} {
		tok := l.NextToken()
		if tok.Type != TokenNumber || tok.Literal != want {
			t.Fatalf("expected number %q, got {%s %q}", want, tok.Type, tok.Literal)
		}
	}
	if tok := l.NextToken(); tok.Type != TokenEOF {
		t.Fatalf("expected EOF, got %s", tok.Type)
	}
}

func TestNextTokenLineTracking(t *testing.T) {
	input := "1\n2\n3"
	l := New(input, "test.dv")
	for _, want := range []int{1, 2, 3} {
		tok := l.NextToken()
		if tok.Line != want {
			t.Fatalf("expected line %d, got %d", want, tok.Line)
		}
	}
}

func TestTokenizeReportsIllegalToken(t *testing.T) {
	l := New("1 @ 2", "test.dv")
	_, err := l.Tokenize()
	if err == nil {
		t.Fatal("expected an error for illegal token '@'")
	}
}

func TestMinusDisambiguatesNegativeNumberFromOperator(t *testing.T) {
	l := New("a - 1", "test.dv")
	tok := l.NextToken()
	if tok.Type != TokenIdentifier {
		t.Fatalf("expected identifier, got %s", tok.Type)
	}
	tok = l.NextToken()
	if tok.Type != TokenMinus {
		t.Fatalf("expected minus operator between identifier and number, got %s %q", tok.Type, tok.Literal)
	}
}
