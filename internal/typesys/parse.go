package typesys

import "strings"

// Parse parses a C# type expression such as "IQueryable<Person>",
// "System.Func<T, bool>", "int?[]" or "(string, int)". It returns nil when s
// is not a type expression.
func Parse(s string) *Type {
	p := &parser{s: s}
	t := p.typ()
	p.space()
	if t == nil || p.i != len(p.s) {
		return nil
	}
	return t
}

type parser struct {
	s string
	i int
}

func (p *parser) space() {
	for p.i < len(p.s) && (p.s[p.i] == ' ' || p.s[p.i] == '\t' || p.s[p.i] == '\n' || p.s[p.i] == '\r') {
		p.i++
	}
}

func (p *parser) peek() byte {
	p.space()
	if p.i < len(p.s) {
		return p.s[p.i]
	}
	return 0
}

func (p *parser) ident() string {
	p.space()
	start := p.i
	for p.i < len(p.s) {
		c := p.s[p.i]
		if c == '_' || c == '@' || c >= 0x80 || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9') {
			p.i++
			continue
		}
		break
	}
	return strings.TrimPrefix(p.s[start:p.i], "@")
}

func (p *parser) typ() *Type {
	var t *Type
	if p.peek() == '(' {
		p.i++
		t = &Type{Name: Tuple}
		for {
			elem := p.typ()
			if elem == nil {
				return nil
			}
			// Tuple element names are dropped.
			if c := p.peek(); c != ',' && c != ')' {
				if p.ident() == "" {
					return nil
				}
			}
			t.Args = append(t.Args, elem)
			c := p.peek()
			p.i++
			if c == ')' {
				break
			}
			if c != ',' {
				return nil
			}
		}
	} else {
		t = p.named()
		if t == nil {
			return nil
		}
	}
	for {
		switch p.peek() {
		case '?':
			p.i++
			t.Nullable = true
			continue
		case '[':
			p.i++
			for p.peek() == ',' {
				p.i++
			}
			if p.peek() != ']' {
				return nil
			}
			p.i++
			t.Array++
			continue
		case '*':
			p.i++
			continue
		}
		return t
	}
}

// named parses a possibly qualified, possibly generic name. Only the last
// segment survives.
func (p *parser) named() *Type {
	var t *Type
	for {
		name := p.ident()
		if name == "" {
			return nil
		}
		t = &Type{Name: CanonicalName(name)}
		if p.peek() == '<' {
			p.i++
			if p.peek() == '>' {
				p.i++
			} else {
				for {
					arg := p.typ()
					if arg == nil {
						return nil
					}
					t.Args = append(t.Args, arg)
					c := p.peek()
					p.i++
					if c == '>' {
						break
					}
					if c != ',' {
						return nil
					}
				}
			}
		}
		switch {
		case p.peek() == '.':
			p.i++
		case strings.HasPrefix(p.s[p.i:], "::"):
			p.i += 2
		default:
			if t.Name == Nullable && len(t.Args) == 1 {
				inner := t.Args[0]
				inner.Nullable = true
				return inner
			}
			return t
		}
	}
}
