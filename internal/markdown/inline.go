package markdown

import (
	"html"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

var (
	reImage       = regexp.MustCompile(`!\[([^\]]*)\]\(\s*([^)\s]+)(?:\s+"([^"]*)")?\s*\)`)
	reLink        = regexp.MustCompile(`\[([^\]]+)\]\(\s*([^)\s]+)(?:\s+"([^"]*)")?\s*\)`)
	reTripleStar  = regexp.MustCompile(`\*\*\*(\S(?:.*?\S)?)\*\*\*`)
	reTripleUnder = regexp.MustCompile(`(^|\W)___(\S(?:.*?\S)?)___(\W|$)`)
	reBoldStar    = regexp.MustCompile(`\*\*(\S(?:.*?\S)?)\*\*`)
	reBoldUnder   = regexp.MustCompile(`(^|\W)__(\S(?:.*?\S)?)__(\W|$)`)
	reItalicStar  = regexp.MustCompile(`\*([^*\s](?:[^*]*[^*\s])?)\*`)
	reItalicUnder = regexp.MustCompile(`(^|\W)_([^_\s](?:[^_]*[^_\s])?)_(\W|$)`)
	reStrike      = regexp.MustCompile(`~~(\S(?:.*?\S)?)~~`)
	reMark        = regexp.MustCompile(`==(\S(?:.*?\S)?)==`)
	rePlaceholder = regexp.MustCompile("\x00(\\d+)\x00")
)

// maxRestorePasses bounds placeholder restoration; link text may hold code
// placeholders, so one pass is not always enough.
const maxRestorePasses = 8

// inliner resolves spans that must not be touched by later passes into
// placeholders of the form \x00N\x00. Input text never contains \x00.
type inliner struct {
	tokens []string
}

func (in *inliner) hold(s string) string {
	in.tokens = append(in.tokens, s)
	return "\x00" + strconv.Itoa(len(in.tokens)-1) + "\x00"
}

// inline renders one text run. Order: code spans, images and links are
// resolved to placeholders first; the rest is escaped and then emphasis,
// strikethrough and highlight are applied.
func inline(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")
	if strings.TrimSpace(s) == "" {
		return ""
	}
	in := &inliner{}
	s = in.codeSpans(s)
	s = in.images(s)
	s = in.links(s)
	s = in.spans(s)
	return in.restore(s)
}

func (in *inliner) codeSpans(s string) string {
	var b strings.Builder
	for {
		i := strings.IndexByte(s, '`')
		if i < 0 {
			b.WriteString(s)
			return b.String()
		}
		n := runLen(s[i:], '`')
		rest := s[i+n:]
		j := findRun(rest, n)
		if j < 0 {
			b.WriteString(s[:i+n])
			s = rest
			continue
		}
		code := rest[:j]
		if len(code) >= 2 && code[0] == ' ' && code[len(code)-1] == ' ' && strings.TrimSpace(code) != "" {
			code = code[1 : len(code)-1]
		}
		b.WriteString(s[:i])
		b.WriteString(in.hold("<code>" + html.EscapeString(code) + "</code>"))
		s = rest[j+n:]
	}
}

func runLen(s string, c byte) int {
	n := 0
	for n < len(s) && s[n] == c {
		n++
	}
	return n
}

// findRun returns the index of the first run of exactly n backticks in s.
func findRun(s string, n int) int {
	for i := 0; i < len(s); {
		if s[i] != '`' {
			i++
			continue
		}
		l := runLen(s[i:], '`')
		if l == n {
			return i
		}
		i += l
	}
	return -1
}

func (in *inliner) images(s string) string {
	return reImage.ReplaceAllStringFunc(s, func(m string) string {
		g := reImage.FindStringSubmatch(m)
		alt, src, title := g[1], g[2], g[3]
		if !safeURL(src) {
			return in.hold(html.EscapeString(alt))
		}
		tag := `<img src="` + html.EscapeString(src) + `" alt="` + html.EscapeString(alt) + `"`
		if title != "" {
			tag += ` title="` + html.EscapeString(title) + `"`
		}
		return in.hold(tag + `>`)
	})
}

func (in *inliner) links(s string) string {
	return reLink.ReplaceAllStringFunc(s, func(m string) string {
		g := reLink.FindStringSubmatch(m)
		text, href, title := in.spans(g[1]), g[2], g[3]
		if !safeURL(href) {
			return in.hold(text)
		}
		tag := `<a href="` + html.EscapeString(href) + `"`
		if title != "" {
			tag += ` title="` + html.EscapeString(title) + `"`
		}
		return in.hold(tag + ` target="_blank" rel="noopener noreferrer">` + text + `</a>`)
	})
}

// spans escapes s and applies the emphasis passes. Placeholders pass through
// unchanged.
func (in *inliner) spans(s string) string {
	s = html.EscapeString(s)
	s = reTripleStar.ReplaceAllString(s, "<strong><em>${1}</em></strong>")
	s = replaceBounded(reTripleUnder, s, "<strong><em>", "</em></strong>")
	s = reBoldStar.ReplaceAllString(s, "<strong>${1}</strong>")
	s = replaceBounded(reBoldUnder, s, "<strong>", "</strong>")
	s = reItalicStar.ReplaceAllString(s, "<em>${1}</em>")
	s = replaceBounded(reItalicUnder, s, "<em>", "</em>")
	s = reStrike.ReplaceAllString(s, "<del>${1}</del>")
	s = reMark.ReplaceAllString(s, "<mark>${1}</mark>")
	return s
}

// replaceBounded applies an underscore pattern whose first and last groups
// capture the surrounding non-word characters. Adjacent matches share a
// boundary character, so the pass repeats until nothing changes.
func replaceBounded(re *regexp.Regexp, s, open, close string) string {
	for i := 0; i < 4; i++ {
		next := re.ReplaceAllString(s, "${1}"+open+"${2}"+close+"${3}")
		if next == s {
			break
		}
		s = next
	}
	return s
}

func (in *inliner) restore(s string) string {
	for i := 0; i < maxRestorePasses && strings.IndexByte(s, 0) >= 0; i++ {
		s = rePlaceholder.ReplaceAllStringFunc(s, func(m string) string {
			n, err := strconv.Atoi(strings.Trim(m, "\x00"))
			if err != nil || n >= len(in.tokens) {
				return ""
			}
			return in.tokens[n]
		})
	}
	return strings.ReplaceAll(s, "\x00", "")
}

// safeURL allows http, https and mailto URLs and relative references.
// Character references are decoded first, as a browser does for attribute
// values.
func safeURL(raw string) bool {
	raw = strings.TrimSpace(html.UnescapeString(raw))
	if raw == "" || strings.IndexFunc(raw, isControl) >= 0 {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "", "http", "https", "mailto":
		return true
	}
	return false
}

func isControl(r rune) bool { return r < 0x20 || r == 0x7f }
