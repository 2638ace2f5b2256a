package markdown

import (
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"
)

// maxQuoteDepth bounds blockquote recursion.
const maxQuoteDepth = 8

type blockState int

const (
	stateNormal blockState = iota
	stateCode
	stateTable
	stateQuote
	stateList
)

var (
	reHeader    = regexp.MustCompile(`^(#{1,6})\s+(.+?)(?:\s+#+)?\s*$`)
	reRule      = regexp.MustCompile(`^(?:(?:\*[ \t]*){3,}|(?:-[ \t]*){3,}|(?:_[ \t]*){3,})$`)
	reListItem  = regexp.MustCompile(`^([ \t]*)(?:([*+-])|(\d{1,9})[.)])(?:[ \t]+(.*))?$`)
	reSeparator = regexp.MustCompile(`^[\s|:-]*-[\s|:-]*$`)
	reChart     = regexp.MustCompile(`(?i)\[chart:\s*([a-z0-9_-]+)\s*\]`)
	reContainer = regexp.MustCompile(`^<div class="report-chart" id="[^"<>]*" data-chart-type="([a-z0-9_-]+)"></div>$`)
	reLang      = regexp.MustCompile(`^[A-Za-z0-9_+#.-]+`)
)

type listItem struct {
	indent  int
	ordered bool
	number  int
	text    string
}

type align string

// parser is the block-level state machine for one render (or one quote
// level). Output blocks are collected in out.
type parser struct {
	r     *Renderer
	doc   *Document
	depth int

	state  blockState
	lineNo int
	start  int // line number where the current block began

	code     []string
	codeLang string
	rows     []string
	quote    []string
	items    []listItem
	blanks   int

	out []string
}

func (p *parser) warn(line int, format string, args ...any) {
	p.doc.Warnings = append(p.doc.Warnings, Warning{Line: line, Message: fmt.Sprintf(format, args...)})
}

func (p *parser) emit(s string) {
	if s != "" {
		p.out = append(p.out, s)
	}
}

func (p *parser) run(lines []string, offset int) []string {
	for i, line := range lines {
		p.lineNo = offset + i + 1
		if p.continueBlock(line) {
			continue
		}
		p.normal(line)
	}
	p.flush()
	return p.out
}

// continueBlock feeds line to the open block. It reports whether the line was
// consumed; if not, the block has been closed and the line must be classified
// from the normal state.
func (p *parser) continueBlock(line string) bool {
	switch p.state {
	case stateCode:
		if isFence(line) {
			p.flushCode()
			return true
		}
		p.code = append(p.code, line)
		return true
	case stateTable:
		if !isBlank(line) && strings.Contains(line, "|") {
			p.rows = append(p.rows, line)
			return true
		}
	case stateQuote:
		if isQuote(line) {
			p.quote = append(p.quote, stripQuote(line))
			return true
		}
	case stateList:
		if isBlank(line) {
			p.blanks++
			return true
		}
		if !reRule.MatchString(strings.TrimSpace(line)) && !hasChart(line) {
			if it, ok := parseListItem(line); ok && !p.breaksList(it) {
				p.items = append(p.items, it)
				p.blanks = 0
				return true
			}
			if p.blanks == 0 && indentWidth(line) > p.items[0].indent && !startsBlock(line) {
				last := &p.items[len(p.items)-1]
				last.text = strings.TrimSpace(last.text + " " + strings.TrimSpace(line))
				return true
			}
		}
	default:
		return false
	}
	p.flush()
	return false
}

func (p *parser) normal(line string) {
	trimmed := strings.TrimSpace(line)
	switch {
	case trimmed == "":
	case isFence(line):
		p.begin(stateCode)
		p.codeLang = reLang.FindString(strings.TrimSpace(strings.TrimLeft(trimmed, "`")))
	case reContainer.MatchString(trimmed):
		// A container from an earlier render gets a fresh slot.
		p.chart(reContainer.FindStringSubmatch(trimmed)[1])
	case strings.HasPrefix(trimmed, "<") && allowedHTML(trimmed):
		p.emit(trimmed)
	case isQuote(line):
		p.begin(stateQuote)
		p.quote = append(p.quote, stripQuote(line))
	case hasChart(trimmed):
		p.chartLine(trimmed)
	case reRule.MatchString(trimmed):
		p.emit("<hr>")
	case reHeader.MatchString(trimmed):
		p.header(trimmed)
	default:
		if it, ok := parseListItem(line); ok {
			p.begin(stateList)
			p.items = append(p.items, it)
			return
		}
		if strings.Contains(trimmed, "|") {
			p.begin(stateTable)
			p.rows = append(p.rows, line)
			return
		}
		p.paragraph(trimmed)
	}
}

func (p *parser) begin(s blockState) {
	p.state = s
	p.start = p.lineNo
}

func (p *parser) paragraph(text string) {
	body := inline(text)
	if strings.TrimSpace(body) == "" {
		return
	}
	p.emit("<p>" + body + "</p>")
}

// flush closes whatever block is open.
func (p *parser) flush() {
	switch p.state {
	case stateCode:
		p.warn(p.start, "unterminated code fence")
		p.flushCode()
	case stateTable:
		p.flushTable()
	case stateQuote:
		p.flushQuote()
	case stateList:
		p.flushList()
	}
	p.state = stateNormal
}

func (p *parser) flushCode() {
	class := ""
	if p.codeLang != "" {
		class = ` class="language-` + html.EscapeString(p.codeLang) + `"`
	}
	p.emit("<pre><code" + class + ">" + html.EscapeString(strings.Join(p.code, "\n")) + "</code></pre>")
	p.code, p.codeLang = nil, ""
	p.state = stateNormal
}

func (p *parser) header(line string) {
	m := reHeader.FindStringSubmatch(line)
	n := len(m[1])
	p.emit(fmt.Sprintf("<h%d>%s</h%d>", n, inline(m[2]), n))
}

// chartLine handles a line holding chart markers outside code spans. The text
// around the markers keeps its header or list item markup and is emitted
// first, followed by one container per marker.
func (p *parser) chartLine(line string) {
	var kept, kinds []string
	prev := 0
	for _, loc := range chartMarkers(line) {
		if s := strings.TrimSpace(line[prev:loc[0]]); s != "" {
			kept = append(kept, s)
		}
		kinds = append(kinds, strings.ToLower(line[loc[2]:loc[3]]))
		prev = loc[1]
	}
	if s := strings.TrimSpace(line[prev:]); s != "" {
		kept = append(kept, s)
	}

	rest := strings.Join(kept, " ")
	switch {
	case strings.Trim(rest, "#") == "":
	case reHeader.MatchString(rest):
		p.header(rest)
	default:
		if it, ok := parseListItem(rest); ok {
			if it.text != "" {
				p.emit(renderList([]listItem{it}))
			}
			break
		}
		p.paragraph(rest)
	}
	for _, kind := range kinds {
		p.chart(kind)
	}
}

func (p *parser) chart(kind string) {
	slot := ChartSlot{ID: "chart-" + p.r.newID(), Type: kind}
	p.doc.Charts = append(p.doc.Charts, slot)
	p.emit(fmt.Sprintf(`<div class="report-chart" id="%s" data-chart-type="%s"></div>`,
		html.EscapeString(slot.ID), html.EscapeString(slot.Type)))
}

// chartMarkers returns the submatch indexes of the chart markers in line that
// lie outside inline code spans.
func chartMarkers(line string) [][]int {
	all := reChart.FindAllStringSubmatchIndex(line, -1)
	if len(all) == 0 {
		return nil
	}
	spans := codeSpanRanges(line)
	var out [][]int
	for _, loc := range all {
		inCode := false
		for _, r := range spans {
			if loc[0] >= r[0] && loc[0] < r[1] {
				inCode = true
				break
			}
		}
		if !inCode {
			out = append(out, loc)
		}
	}
	return out
}

func hasChart(line string) bool { return len(chartMarkers(line)) > 0 }

// codeSpanRanges returns the byte ranges of the code spans in s, matching
// backtick runs the way the inline pass does.
func codeSpanRanges(s string) [][2]int {
	var out [][2]int
	for off := 0; ; {
		i := strings.IndexByte(s[off:], '`')
		if i < 0 {
			return out
		}
		i += off
		n := runLen(s[i:], '`')
		j := findRun(s[i+n:], n)
		if j < 0 {
			off = i + n
			continue
		}
		end := i + n + j + n
		out = append(out, [2]int{i, end})
		off = end
	}
}

func (p *parser) flushQuote() {
	lines := p.quote
	p.quote = nil
	p.state = stateNormal
	if p.depth >= maxQuoteDepth {
		p.warn(p.start, "blockquote nesting too deep")
		for _, l := range lines {
			p.paragraph(strings.TrimSpace(l))
		}
		return
	}
	sub := &parser{r: p.r, doc: p.doc, depth: p.depth + 1}
	inner := sub.run(lines, p.start-1)
	if len(inner) == 0 {
		return
	}
	p.emit("<blockquote>" + strings.Join(inner, "\n") + "</blockquote>")
}

func (p *parser) flushTable() {
	rows := p.rows
	p.rows = nil
	p.state = stateNormal
	if len(rows) == 1 {
		p.warn(p.start, "single pipe line rendered as paragraph")
		p.paragraph(strings.TrimSpace(rows[0]))
		return
	}

	var aligns []align
	var header []string
	var body [][]string
	for i, row := range rows {
		if reSeparator.MatchString(row) {
			if aligns == nil {
				aligns = parseAligns(splitCells(row))
			}
			continue
		}
		cells := splitCells(row)
		if i == 0 {
			header = cells
			continue
		}
		body = append(body, cells)
	}

	var b strings.Builder
	b.WriteString("<table>")
	if header != nil {
		b.WriteString("<thead><tr>")
		writeCells(&b, "th", header, aligns)
		b.WriteString("</tr></thead>")
	}
	if len(body) > 0 {
		b.WriteString("<tbody>")
		for _, cells := range body {
			b.WriteString("<tr>")
			writeCells(&b, "td", cells, aligns)
			b.WriteString("</tr>")
		}
		b.WriteString("</tbody>")
	}
	b.WriteString("</table>")
	p.emit(b.String())
}

func writeCells(b *strings.Builder, tag string, cells []string, aligns []align) {
	for i, c := range cells {
		b.WriteString("<" + tag)
		if i < len(aligns) && aligns[i] != "" {
			b.WriteString(` style="text-align:` + string(aligns[i]) + `"`)
		}
		b.WriteString(">" + inline(c) + "</" + tag + ">")
	}
}

// splitCells splits a table row on pipes, dropping the empty cells produced
// by leading and trailing pipes.
func splitCells(row string) []string {
	row = strings.TrimSpace(row)
	parts := strings.Split(row, "|")
	if len(parts) > 0 && strings.HasPrefix(row, "|") {
		parts = parts[1:]
	}
	if len(parts) > 0 && strings.HasSuffix(row, "|") {
		parts = parts[:len(parts)-1]
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parseAligns(cells []string) []align {
	out := make([]align, len(cells))
	for i, c := range cells {
		left, right := strings.HasPrefix(c, ":"), strings.HasSuffix(c, ":")
		switch {
		case left && right:
			out[i] = "center"
		case right:
			out[i] = "right"
		case left:
			out[i] = "left"
		}
	}
	return out
}

func (p *parser) breaksList(it listItem) bool {
	first := p.items[0]
	return it.indent <= first.indent && it.ordered != first.ordered
}

func (p *parser) flushList() {
	items := p.items
	p.items, p.blanks = nil, 0
	p.state = stateNormal
	p.emit(renderList(items))
}

type listLevel struct {
	indent  int
	ordered bool
}

// renderList nests items by indentation. A deeper item opens a list inside
// the current <li>; a shallower one closes lists until its level is reached;
// a type change at the same level closes that list and opens the other kind.
func renderList(items []listItem) string {
	var b strings.Builder
	var stack []listLevel

	open := func(it listItem) {
		switch {
		case !it.ordered:
			b.WriteString("<ul>")
		case it.number != 1:
			fmt.Fprintf(&b, `<ol start="%d">`, it.number)
		default:
			b.WriteString("<ol>")
		}
		stack = append(stack, listLevel{indent: it.indent, ordered: it.ordered})
	}
	closeTop := func() {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		b.WriteString("</li>")
		if top.ordered {
			b.WriteString("</ol>")
		} else {
			b.WriteString("</ul>")
		}
	}

	for _, it := range items {
		switch {
		case len(stack) == 0 || it.indent > stack[len(stack)-1].indent:
			open(it)
		default:
			for len(stack) > 1 && it.indent < stack[len(stack)-1].indent {
				closeTop()
			}
			if stack[len(stack)-1].ordered != it.ordered {
				closeTop()
				open(it)
			} else {
				b.WriteString("</li>")
			}
		}
		b.WriteString("<li>" + inline(it.text))
	}
	for len(stack) > 0 {
		closeTop()
	}
	return b.String()
}

func parseListItem(line string) (listItem, bool) {
	m := reListItem.FindStringSubmatch(line)
	if m == nil {
		return listItem{}, false
	}
	it := listItem{indent: indentWidth(m[1]), text: strings.TrimSpace(m[4])}
	if m[3] != "" {
		it.ordered = true
		it.number, _ = strconv.Atoi(m[3])
	}
	return it, true
}

// indentWidth counts leading whitespace, a tab counting as four spaces.
func indentWidth(s string) int {
	n := 0
	for _, c := range s {
		switch c {
		case ' ':
			n++
		case '\t':
			n += 4
		default:
			return n
		}
	}
	return n
}

func isBlank(line string) bool { return strings.TrimSpace(line) == "" }

func isFence(line string) bool { return strings.HasPrefix(strings.TrimSpace(line), "```") }

func isQuote(line string) bool { return strings.HasPrefix(strings.TrimSpace(line), ">") }

func stripQuote(line string) string {
	s := strings.TrimPrefix(strings.TrimSpace(line), ">")
	return strings.TrimPrefix(s, " ")
}

// startsBlock reports whether line would open a block of its own, which ends
// lazy list continuation.
func startsBlock(line string) bool {
	t := strings.TrimSpace(line)
	return isFence(line) || isQuote(line) || strings.HasPrefix(t, "#") ||
		strings.HasPrefix(t, "<") || strings.Contains(t, "|") || hasChart(t)
}
