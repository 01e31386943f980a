// Package lexer implements the lexical analyzer for the ember language.
//
// The lexer turns source text into a stream of [token.Token]s, tracking
// a precise [span.Span] for each one. It reads the input rune by rune
// (not byte by byte — identifiers may contain any Unicode letter),
// decodes string escapes as it goes, and recognizes the punctuator
// families of the language by maximal munch (longest match first).
//
// Lexical failures (an unterminated string, an invalid escape, a
// stray character) are recorded as [diag.Diagnostic]s on the Lexer
// rather than aborting the whole scan: tokenization continues after
// the offending region so the caller still gets whatever prefix of the
// token stream is recoverable.
package lexer

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dr8co/ember/diag"
	"github.com/dr8co/ember/span"
	"github.com/dr8co/ember/token"
)

// Lexer scans ember source text into tokens.
type Lexer struct {
	input string

	pos     int // byte offset of ch
	readPos int // byte offset of the rune after ch
	ch      rune
	width   int // byte width of ch

	lc *span.LineCounter

	// Diagnostics accumulates lexical errors encountered so far. It is
	// exported so a caller driving NextToken in a loop (as the parser
	// does) can inspect it once scanning finishes.
	Diagnostics []diag.Diagnostic
}

// New creates a Lexer over the given source text and reads its first
// character.
func New(input string) *Lexer {
	l := &Lexer{input: input, lc: span.NewLineCounter()}
	l.readChar()
	return l
}

func (l *Lexer) readChar() {
	if l.width != 0 {
		l.lc.AdvanceRune(l.ch)
	}
	if l.readPos >= len(l.input) {
		l.pos = len(l.input)
		l.ch = 0
		l.width = 0
		return
	}
	r, w := utf8.DecodeRuneInString(l.input[l.readPos:])
	l.pos = l.readPos
	l.ch = r
	l.width = w
	l.readPos += w
}

func (l *Lexer) peekChar() rune {
	if l.readPos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPos:])
	return r
}

func (l *Lexer) here() span.Span {
	line, col := l.lc.Position()
	return span.Span{Start: l.pos, End: l.pos, Line: line, Column: col}
}

func (l *Lexer) errorf(kind diag.Kind, sp span.Span, format string, args ...any) {
	l.Diagnostics = append(l.Diagnostics, *diag.New(diag.Lexical, kind, sp, format, args...))
}

// NextToken scans and returns the next token, advancing past it.
// Lexical errors record a diagnostic rather than panicking. A stray
// character or a broken string produces an ILLEGAL token; a malformed
// number still produces a NUMBER token, an unknown escape letter still
// produces a STRING token, and an unterminated block comment produces
// no token of its own. Scanning then resumes.
func (l *Lexer) NextToken() token.Token {
	l.skipWhitespaceAndComments()

	start := l.here()
	startPos := l.pos

	makeTok := func(t token.Type, lit string) token.Token {
		sp := start
		sp.End = l.pos
		return token.Token{Type: t, Literal: lit, Span: sp}
	}

	switch l.ch {
	case 0:
		return makeTok(token.EOF, "")
	case '"', '\'':
		quote := l.ch
		lit, ok, unterminated := l.readString(quote)
		if !ok {
			sp := start
			sp.End = l.pos
			if unterminated {
				l.errorf(diag.UnterminatedString, sp, "unterminated string literal")
			}
			return token.Token{Type: token.ILLEGAL, Literal: lit, Span: sp}
		}
		l.readChar() // consume closing quote
		return makeTok(token.STRING, lit)
	}

	if isIdentStart(l.ch) {
		ident := l.readIdentifier()
		return makeTok(token.LookupIdent(ident), ident)
	}
	if isDigit(l.ch) {
		lit, ok := l.readNumber()
		if !ok {
			sp := start
			sp.End = l.pos
			l.errorf(diag.InvalidNumber, sp, "invalid numeric literal %q", l.input[startPos:l.pos])
		}
		return makeTok(token.NUMBER, lit)
	}

	return l.readPunctuator(makeTok, start)
}

// Tokenize drains the lexer into a token slice (always ending in an
// EOF token) and returns any diagnostics recorded along the way. It is
// the `tokenize` driver entry point of spec.md §6.1.
func Tokenize(source string) ([]token.Token, []diag.Diagnostic) {
	l := New(source)
	var toks []token.Token
	for {
		tok := l.NextToken()
		toks = append(toks, tok)
		if tok.Type == token.EOF {
			break
		}
	}
	return toks, l.Diagnostics
}

func isIdentStart(r rune) bool {
	return r == '$' || r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return r == '$' || r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isHexDigit(r rune) bool {
	return isDigit(r) || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

func (l *Lexer) readIdentifier() string {
	start := l.pos
	for isIdentPart(l.ch) {
		l.readChar()
	}
	return l.input[start:l.pos]
}

// readNumber scans a decimal integer, a decimal with a fractional
// part, or a decimal with an exponent, per spec.md §4.1. It does not
// itself compute the float64 value — the parser does that with
// strconv.ParseFloat — it only validates and returns the literal text.
func (l *Lexer) readNumber() (string, bool) {
	start := l.pos
	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) {
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	if l.ch == 'e' || l.ch == 'E' {
		save := l.pos
		l.readChar()
		if l.ch == '+' || l.ch == '-' {
			l.readChar()
		}
		if !isDigit(l.ch) {
			// Not actually an exponent (e.g. "1e" with no digits):
			// the text scanned so far, 'e' included, is reported as
			// an invalid number.
			_ = save
			return l.input[start:l.pos], false
		}
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	return l.input[start:l.pos], true
}

// skipWhitespaceAndComments skips ordinary whitespace, `//` line
// comments, and flat (non-nesting) `/* ... */` block comments.
func (l *Lexer) skipWhitespaceAndComments() {
	for {
		switch {
		case l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' || l.ch == '\v' || l.ch == '\f':
			l.readChar()
		case l.ch == '/' && l.peekChar() == '/':
			l.readChar()
			l.readChar()
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
		case l.ch == '/' && l.peekChar() == '*':
			start := l.here()
			l.readChar()
			l.readChar()
			closed := false
			for l.ch != 0 {
				if l.ch == '*' && l.peekChar() == '/' {
					l.readChar()
					l.readChar()
					closed = true
					break
				}
				l.readChar()
			}
			if !closed {
				sp := start
				sp.End = l.pos
				l.errorf(diag.UnterminatedComment, sp, "unterminated block comment")
			}
		default:
			return
		}
	}
}

// readString decodes a single- or double-quoted string literal,
// starting at the opening quote (l.ch == quote). It returns the
// decoded content, whether the string was properly terminated, and
// whether the failure (if any) was specifically an unterminated
// string reaching a line terminator or EOF.
func (l *Lexer) readString(quote rune) (string, bool, bool) {
	var b strings.Builder
	l.readChar() // consume opening quote

	for {
		if l.ch == quote {
			return b.String(), true, false
		}
		if l.ch == 0 || l.ch == '\n' || l.ch == '\r' {
			return b.String(), false, true
		}
		if l.ch == '\\' {
			l.readChar()
			if !l.readEscape(&b) {
				return b.String(), false, false
			}
			continue
		}
		b.WriteRune(l.ch)
		l.readChar()
	}
}

// readEscape decodes a single escape sequence, with l.ch positioned at
// the character immediately after the backslash. It writes the
// decoded rune(s) to b and advances past the escape. It returns false
// (after recording a diagnostic) on a malformed \x or \u escape. An
// unknown escape letter also records a diagnostic, but decodes to the
// letter itself and returns true.
func (l *Lexer) readEscape(b *strings.Builder) bool {
	start := l.here()
	switch l.ch {
	case 'n':
		b.WriteByte('\n')
	case 'r':
		b.WriteByte('\r')
	case 't':
		b.WriteByte('\t')
	case '\\':
		b.WriteByte('\\')
	case '\'':
		b.WriteByte('\'')
	case '"':
		b.WriteByte('"')
	case '0':
		b.WriteByte(0)
	case 'b':
		b.WriteByte('\b')
	case 'f':
		b.WriteByte('\f')
	case 'v':
		b.WriteByte('\v')
	case 'x':
		l.readChar()
		hex := make([]rune, 0, 2)
		for len(hex) < 2 && isHexDigit(l.ch) {
			hex = append(hex, l.ch)
			l.readChar()
		}
		if len(hex) != 2 {
			sp := start
			sp.End = l.pos
			l.errorf(diag.InvalidEscape, sp, `invalid \x escape: want 2 hex digits`)
			return false
		}
		v := hexValue(hex)
		b.WriteRune(rune(v))
		return true
	case 'u':
		l.readChar()
		if l.ch == '{' {
			l.readChar()
			hex := make([]rune, 0, 6)
			for isHexDigit(l.ch) && len(hex) < 6 {
				hex = append(hex, l.ch)
				l.readChar()
			}
			if l.ch != '}' || len(hex) == 0 {
				sp := start
				sp.End = l.pos
				l.errorf(diag.InvalidEscape, sp, `invalid \u{...} escape`)
				return false
			}
			v := hexValue(hex)
			if v > utf8.MaxRune || !utf8.ValidRune(rune(v)) {
				sp := start
				sp.End = l.pos
				l.errorf(diag.InvalidEscape, sp, `\u{%x} is not a valid Unicode scalar value`, v)
				return false
			}
			b.WriteRune(rune(v))
			l.readChar() // consume '}'
			return true
		}
		hex := make([]rune, 0, 4)
		for len(hex) < 4 && isHexDigit(l.ch) {
			hex = append(hex, l.ch)
			l.readChar()
		}
		if len(hex) != 4 {
			sp := start
			sp.End = l.pos
			l.errorf(diag.InvalidEscape, sp, `invalid \u escape: want 4 hex digits`)
			return false
		}
		v := hexValue(hex)
		if !utf8.ValidRune(rune(v)) {
			// Lone surrogate halves are not valid scalar values; the
			// spec requires strings to be a valid scalar sequence, so
			// this is an error rather than a silently-substituted
			// replacement character.
			sp := start
			sp.End = l.pos
			l.errorf(diag.InvalidEscape, sp, `\u%04x is not a valid Unicode scalar value`, v)
			return false
		}
		b.WriteRune(rune(v))
		return true
	default:
		sp := start
		sp.End = l.pos
		l.errorf(diag.InvalidEscape, sp, `unknown escape sequence \%c`, l.ch)
		b.WriteRune(l.ch)
	}
	l.readChar()
	return true
}

func hexValue(digits []rune) int64 {
	var v int64
	for _, d := range digits {
		v <<= 4
		switch {
		case d >= '0' && d <= '9':
			v |= int64(d - '0')
		case d >= 'a' && d <= 'f':
			v |= int64(d-'a') + 10
		case d >= 'A' && d <= 'F':
			v |= int64(d-'A') + 10
		}
	}
	return v
}

// readPunctuator recognizes punctuators by maximal munch: longer
// families (===, >>>, compound assignments) are tried before their
// shorter prefixes.
func (l *Lexer) readPunctuator(makeTok func(token.Type, string) token.Token, start span.Span) token.Token {
	ch := l.ch
	two := string(ch) + string(l.peekChar())

	three := func() string {
		if l.readPos+1 <= len(l.input) {
			// crude 3-rune lookahead via byte slicing is unsafe for
			// multi-byte runes, but every 3-char punctuator in this
			// language is pure ASCII, so byte-wise peeking is safe.
		}
		if len(l.input) >= l.pos+3 {
			return l.input[l.pos : l.pos+3]
		}
		return ""
	}
	four := func() string {
		if len(l.input) >= l.pos+4 {
			return l.input[l.pos : l.pos+4]
		}
		return ""
	}

	advance := func(n int) {
		for i := 0; i < n; i++ {
			l.readChar()
		}
	}

	switch four() {
	case ">>>=":
		advance(4)
		return makeTok(token.USHR_ASSIGN, ">>>=")
	}

	switch three() {
	case "===":
		advance(3)
		return makeTok(token.STRICT_EQ, "===")
	case "!==":
		advance(3)
		return makeTok(token.STRICT_NE, "!==")
	case ">>>":
		advance(3)
		return makeTok(token.USHR, ">>>")
	case "**=":
		advance(3)
		return makeTok(token.POW_ASSIGN, "**=")
	case "<<=":
		advance(3)
		return makeTok(token.SHL_ASSIGN, "<<=")
	case ">>=":
		advance(3)
		return makeTok(token.SHR_ASSIGN, ">>=")
	case "&&=":
		advance(3)
		return makeTok(token.AND_ASSIGN, "&&=")
	case "||=":
		advance(3)
		return makeTok(token.OR_ASSIGN, "||=")
	case "??=":
		advance(3)
		return makeTok(token.NULLISH_ASSIGN, "??=")
	}

	switch two {
	case "==":
		advance(2)
		return makeTok(token.EQ, "==")
	case "!=":
		advance(2)
		return makeTok(token.NOT_EQ, "!=")
	case "<=":
		advance(2)
		return makeTok(token.LTE, "<=")
	case ">=":
		advance(2)
		return makeTok(token.GTE, ">=")
	case "&&":
		advance(2)
		return makeTok(token.LAND, "&&")
	case "||":
		advance(2)
		return makeTok(token.LOR, "||")
	case "??":
		advance(2)
		return makeTok(token.NULLISH, "??")
	case "**":
		advance(2)
		return makeTok(token.POW, "**")
	case "<<":
		advance(2)
		return makeTok(token.SHL, "<<")
	case ">>":
		advance(2)
		return makeTok(token.SHR, ">>")
	case "++":
		advance(2)
		return makeTok(token.INCR, "++")
	case "--":
		advance(2)
		return makeTok(token.DECR, "--")
	case "+=":
		advance(2)
		return makeTok(token.PLUS_ASSIGN, "+=")
	case "-=":
		advance(2)
		return makeTok(token.MINUS_ASSIGN, "-=")
	case "*=":
		advance(2)
		return makeTok(token.STAR_ASSIGN, "*=")
	case "/=":
		advance(2)
		return makeTok(token.SLASH_ASSIGN, "/=")
	case "%=":
		advance(2)
		return makeTok(token.PERCENT_ASSIGN, "%=")
	case "&=":
		advance(2)
		return makeTok(token.AMP_ASSIGN, "&=")
	case "|=":
		advance(2)
		return makeTok(token.PIPE_ASSIGN, "|=")
	case "^=":
		advance(2)
		return makeTok(token.XOR_ASSIGN, "^=")
	}

	single := map[rune]token.Type{
		'=': token.ASSIGN, '+': token.PLUS, '-': token.MINUS, '!': token.BANG,
		'*': token.ASTERISK, '/': token.SLASH, '%': token.PERCENT,
		'<': token.LT, '>': token.GT, '&': token.AMP, '|': token.PIPE,
		'^': token.XOR, '~': token.NOT,
		',': token.COMMA, ':': token.COLON, ';': token.SEMICOLON, '.': token.DOT,
		'?': token.QUESTION,
		'(': token.LPAREN, ')': token.RPAREN, '{': token.LBRACE, '}': token.RBRACE,
		'[': token.LBRACKET, ']': token.RBRACKET,
	}
	if t, ok := single[ch]; ok {
		advance(1)
		return makeTok(t, string(ch))
	}

	sp := start
	sp.End = l.pos + utf8.RuneLen(ch)
	l.errorf(diag.UnexpectedCharacter, sp, "unexpected character %q", ch)
	advance(1)
	return makeTok(token.ILLEGAL, string(ch))
}
