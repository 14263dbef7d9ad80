package labjack

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"unicode"
)

// Reply is one parsed line from the DAC unit.
type Reply interface {
	IsReply()
}

// Ack acknowledges a command, e.g. a completed immediate write or a loaded
// stream segment.
type Ack struct{}

func (a *Ack) String() string { return "ok" }

func (a *Ack) IsReply() {}

// Readback reports the currently held output code per DAC register, e.g.
// <DAC0:32768,DAC1:12000>.
type Readback struct {
	Channels map[string]int
}

func (r *Readback) IsReply() {}

// Done reports a finished stream and its measured duration in seconds, e.g.
// <done,T:1.234>.
type Done struct {
	Seconds float64
}

func (d *Done) IsReply() {}

type Token int

const (
	Newline Token = iota
	OpenAngle
	CloseAngle
	Colon
	Comma
	Identifier
	Number
)

var tokens = []string{
	Newline:    "NEWLINE",
	OpenAngle:  "<",
	CloseAngle: ">",
	Colon:      ":",
	Comma:      ",",
	Identifier: "IDENT",
	Number:     "NUMBER",
}

func (t Token) String() string { return tokens[t] }

type Lexer struct {
	pos int
	rdr *bufio.Reader
}

func NewLexer(r io.Reader) *Lexer {
	return &Lexer{rdr: bufio.NewReader(r)}
}

func (l *Lexer) Lex() (int, Token, string) {
	for {
		l.pos++
		r, _, err := l.rdr.ReadRune()
		if err != nil {
			return l.pos, Newline, Newline.String()
		}
		switch r {
		case '\n', '\r':
			return l.pos, Newline, Newline.String()
		case '<':
			return l.pos, OpenAngle, OpenAngle.String()
		case '>':
			return l.pos, CloseAngle, CloseAngle.String()
		case ':':
			return l.pos, Colon, Colon.String()
		case ',':
			return l.pos, Comma, Comma.String()
		default:
			startPos := l.pos
			if l.isNumberPart(r) {
				l.backup()
				return startPos, Number, l.lexNumber()
			}
			if unicode.IsLetter(r) {
				l.backup()
				return startPos, Identifier, l.lexIdent()
			}
		}
	}
}

func (l *Lexer) isNumberPart(r rune) bool {
	return unicode.IsDigit(r) || r == '.' || r == '-'
}

func (l *Lexer) lexNumber() string {
	var lit string
	for {
		r, _, err := l.rdr.ReadRune()
		if err != nil {
			return lit
		}
		if l.isNumberPart(r) {
			lit += string(r)
		} else {
			l.backup()
			return lit
		}
	}
}

// lexIdent consumes a register or keyword name. Register names carry a
// trailing index, so digits are legal after the first letter.
func (l *Lexer) lexIdent() string {
	var lit string
	for {
		r, _, err := l.rdr.ReadRune()
		if err != nil {
			return lit
		}
		if unicode.IsLetter(r) || (lit != "" && unicode.IsDigit(r)) {
			lit += string(r)
		} else {
			l.backup()
			return lit
		}
	}
}

func (l *Lexer) backup() {
	l.pos--
	if err := l.rdr.UnreadRune(); err != nil {
		panic(err)
	}
}

type Parser struct {
	lexer *Lexer
}

func NewParser(r io.Reader) *Parser {
	return &Parser{lexer: NewLexer(r)}
}

func (p *Parser) errorf(pos int, format string, args ...interface{}) error {
	return fmt.Errorf("%d: %s", pos, fmt.Sprintf(format, args...))
}

func (p *Parser) parseInt() (int, error) {
	pos, tok, lit := p.lexer.Lex()
	if tok == Colon {
		return p.parseInt()
	}
	if tok != Number {
		return 0, p.errorf(pos, "expected code, got %q", lit)
	}
	v, err := strconv.Atoi(lit)
	if err != nil {
		return 0, p.errorf(pos, "expected code, got %q", lit)
	}
	return v, nil
}

func (p *Parser) parseFloat() (float64, error) {
	pos, tok, lit := p.lexer.Lex()
	if tok == Colon {
		return p.parseFloat()
	}
	if tok != Number {
		return 0, p.errorf(pos, "expected float, got %q", lit)
	}
	v, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		return 0, p.errorf(pos, "expected float, got %q", lit)
	}
	return v, nil
}

// parseBody handles everything between the angle brackets.
func (p *Parser) parseBody() (Reply, error) {
	rb := &Readback{Channels: make(map[string]int)}
	for {
		pos, tok, lit := p.lexer.Lex()
		switch tok {
		case Identifier:
			switch lit {
			case "done":
				return p.parseDone()
			case "T":
				return nil, p.errorf(pos, "measured time outside done reply")
			default:
				code, err := p.parseInt()
				if err != nil {
					return nil, err
				}
				rb.Channels[lit] = code
			}
		case Comma:
			continue
		case CloseAngle:
			return rb, nil
		case Newline:
			return nil, p.errorf(pos, "unterminated readback")
		default:
			return nil, p.errorf(pos, "unexpected %q in readback", lit)
		}
	}
}

func (p *Parser) parseDone() (Reply, error) {
	for {
		pos, tok, lit := p.lexer.Lex()
		switch tok {
		case Comma:
			continue
		case Identifier:
			if lit != "T" {
				return nil, p.errorf(pos, "unexpected %q in done reply", lit)
			}
			t, err := p.parseFloat()
			if err != nil {
				return nil, err
			}
			// consume the closing bracket
			for {
				_, tok, _ := p.lexer.Lex()
				if tok == CloseAngle || tok == Newline {
					return &Done{Seconds: t}, nil
				}
			}
		case CloseAngle:
			return &Done{}, nil
		default:
			return nil, p.errorf(pos, "unexpected %q in done reply", lit)
		}
	}
}

var IllegalIdentifier = fmt.Errorf("illegal identifier")

// Parse consumes one line and returns the reply it carries.
func (p *Parser) Parse() (Reply, error) {
	for {
		pos, tok, lit := p.lexer.Lex()
		switch tok {
		case Newline:
			return nil, io.EOF
		case OpenAngle:
			return p.parseBody()
		case Identifier:
			if lit == "ok" {
				return &Ack{}, nil
			}
			return nil, IllegalIdentifier
		default:
			return nil, p.errorf(pos, "expected reply, got %q", lit)
		}
	}
}
