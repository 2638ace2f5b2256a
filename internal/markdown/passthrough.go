package markdown

import (
	"html"
	"regexp"
	"strings"
)

var (
	reTag   = regexp.MustCompile(`</?([a-zA-Z][a-zA-Z0-9]*)((?:\s+[^\s"'<>/=]+(?:\s*=\s*(?:"[^"]*"|'[^']*'|[^\s"'=<>` + "`" + `]+))?)*)\s*/?>`)
	reAttr  = regexp.MustCompile(`([^\s"'<>/=]+)(?:\s*=\s*("[^"]*"|'[^']*'|[^\s"'=<>` + "`" + `]+))?`)
	// reStyle admits a single text-align declaration.
	reStyle = regexp.MustCompile(`(?i)^\s*text-align\s*:\s*(?:left|center|right|justify)\s*;?\s*$`)
)

var allowedTags = map[string]bool{
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"p": true, "div": true, "span": true, "br": true, "hr": true,
	"table": true, "thead": true, "tbody": true, "tr": true, "th": true, "td": true,
	"ul": true, "ol": true, "li": true, "blockquote": true, "pre": true, "code": true,
	"strong": true, "em": true, "b": true, "i": true, "u": true, "del": true, "mark": true,
	"a": true, "img": true, "sup": true, "sub": true, "small": true,
}

// allowedAttrs leaves out id: chart containers are bound by id, and only the
// renderer assigns those.
var allowedAttrs = map[string]bool{
	"class": true, "title": true, "href": true, "src": true, "alt": true,
	"target": true, "rel": true, "start": true, "colspan": true, "rowspan": true,
	"style": true,
}

// allowedHTML reports whether line is already-rendered HTML that may be
// emitted verbatim: it must open with a tag, every tag and attribute must be
// allow-listed, URLs must pass safeURL and no stray '<' may remain.
func allowedHTML(line string) bool {
	locs := reTag.FindAllStringSubmatchIndex(line, -1)
	if len(locs) == 0 || locs[0][0] != 0 {
		return false
	}
	var rest strings.Builder
	prev := 0
	for _, loc := range locs {
		rest.WriteString(line[prev:loc[0]])
		prev = loc[1]
		if !allowedTags[strings.ToLower(line[loc[2]:loc[3]])] {
			return false
		}
		if !allowedAttributes(line[loc[4]:loc[5]]) {
			return false
		}
	}
	rest.WriteString(line[prev:])
	return !strings.Contains(rest.String(), "<")
}

func allowedAttributes(attrs string) bool {
	for _, m := range reAttr.FindAllStringSubmatch(attrs, -1) {
		name := strings.ToLower(m[1])
		if !allowedAttrs[name] {
			return false
		}
		value := strings.Trim(m[2], `"'`)
		switch name {
		case "href", "src":
			if !safeURL(value) {
				return false
			}
		case "style":
			if !reStyle.MatchString(html.UnescapeString(value)) {
				return false
			}
		}
	}
	return true
}
