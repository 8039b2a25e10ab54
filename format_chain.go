package scenes

import "strings"

// FormatterSpec is one formatter of a chain with its arguments.
type FormatterSpec struct {
	Name string   `json:"name"`
	Args []string `json:"args"`
}

// FormatterChain is an ordered list of formatters.
type FormatterChain []FormatterSpec

// String renders the chain back to its textual form. Arguments containing
// separators are quoted.
func (c FormatterChain) String() string {
	parts := make([]string, 0, len(c))
	for _, spec := range c {
		segs := []string{quoteChainPart(spec.Name)}
		for _, arg := range spec.Args {
			segs = append(segs, quoteChainPart(arg))
		}
		parts = append(parts, strings.Join(segs, ":"))
	}
	return strings.Join(parts, ";")
}

func quoteChainPart(s string) string {
	if !strings.ContainsAny(s, ";:'\"") && strings.TrimSpace(s) == s {
		return s
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	return "'" + s + "'"
}

// ParseFormatterChain splits input into formatter specs. ';' separates specs
// and ':' separates a name from its arguments. Single or double quotes protect
// separators and surrounding whitespace; unquoted leading and trailing
// whitespace of every part is trimmed. Specs without a name are skipped along
// with their arguments. Only an unmatched quote is a *FormatterSyntaxError.
func ParseFormatterChain(input string) (FormatterChain, error) {
	var (
		chain FormatterChain
		parts []string
		cur   chainPart
		quote byte
		start int
	)

	flushPart := func() {
		parts = append(parts, cur.text())
		cur = chainPart{}
	}
	flushSpec := func() {
		flushPart()
		name := parts[0]
		args := parts[1:]
		parts = nil
		if name == "" {
			return
		}
		if args == nil {
			args = []string{}
		}
		chain = append(chain, FormatterSpec{Name: name, Args: args})
	}

	for i := 0; i < len(input); i++ {
		c := input[i]
		if quote != 0 {
			if c == quote {
				quote = 0
				continue
			}
			cur.writeQuoted(c)
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
			start = i
		case ':':
			flushPart()
		case ';':
			flushSpec()
		default:
			cur.writePlain(c)
		}
	}
	if quote != 0 {
		return nil, &FormatterSyntaxError{Input: input, Offset: start, Reason: "unmatched quote"}
	}
	flushSpec()
	return chain, nil
}

// chainPart accumulates one name or argument, remembering which bytes came
// from quotes so trimming never removes them.
type chainPart struct {
	buf  []byte
	keep []bool
}

func (p *chainPart) writePlain(c byte) {
	p.buf = append(p.buf, c)
	p.keep = append(p.keep, false)
}

func (p *chainPart) writeQuoted(c byte) {
	p.buf = append(p.buf, c)
	p.keep = append(p.keep, true)
}

func (p *chainPart) text() string {
	lo, hi := 0, len(p.buf)
	for lo < hi && !p.keep[lo] && isChainSpace(p.buf[lo]) {
		lo++
	}
	for hi > lo && !p.keep[hi-1] && isChainSpace(p.buf[hi-1]) {
		hi--
	}
	return string(p.buf[lo:hi])
}

func isChainSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
