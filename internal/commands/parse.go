package commands

import "strings"

// tokenize splits command text into tokens while supporting quotes.
//
//	/cmd a "b c" 'd e'
func tokenize(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	var (
		out   []string
		buf   strings.Builder
		inQ   bool
		qChar byte
		esc   bool
	)
	flush := func() {
		if buf.Len() > 0 {
			out = append(out, buf.String())
			buf.Reset()
		}
	}
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if esc {
			buf.WriteByte(ch)
			esc = false
			continue
		}
		if ch == '\\' {
			esc = true
			continue
		}
		if inQ {
			if ch == qChar {
				inQ = false
				continue
			}
			buf.WriteByte(ch)
			continue
		}
		switch ch {
		case '"', '\'':
			inQ = true
			qChar = ch
		case ' ', '\t', '\n', '\r':
			flush()
		default:
			buf.WriteByte(ch)
		}
	}
	flush()
	return out
}

// parseCommand extracts the command name from "/name" or "/name@bot".
// Commands addressed to another bot are ignored.
func parseCommand(text, botName string) (name string, args []string, ok bool) {
	toks := tokenize(text)
	if len(toks) == 0 || !strings.HasPrefix(toks[0], "/") {
		return "", nil, false
	}
	head := strings.TrimPrefix(toks[0], "/")
	if at := strings.IndexByte(head, '@'); at >= 0 {
		target := head[at+1:]
		head = head[:at]
		if botName != "" && !strings.EqualFold(target, botName) {
			return "", nil, false
		}
	}
	if head == "" {
		return "", nil, false
	}
	return strings.ToLower(head), toks[1:], true
}
