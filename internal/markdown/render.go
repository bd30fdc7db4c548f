// Package markdown renders the markdown subset used in system answers to HTML.
//
// Supported: pipe tables, #/##/### headings, "N. " and "- " list items, **bold**
// and plain paragraphs. Input is HTML-escaped first, so the output never carries
// markup that was not produced here.
package markdown

import (
	"html"
	"regexp"
	"strings"
)

const (
	classH1        = "text-xl font-bold mb-4 mt-6 dark:text-white"
	classH2        = "text-lg font-semibold mb-3 mt-5 dark:text-white"
	classH3        = "text-md font-semibold mb-2 mt-4 dark:text-white"
	classParagraph = "mb-4 dark:text-gray-300"
	classListItem  = "mb-1 dark:text-gray-300"
	classOrdered   = "list-decimal pl-5 mb-4"
	classUnordered = "list-disc pl-5 mb-4"
	classTableWrap = "overflow-x-auto my-4"
	classTable     = "min-w-full divide-y divide-gray-200 dark:divide-gray-700 border border-gray-200 dark:border-gray-700 rounded-lg"
	classTHead     = "bg-gray-50 dark:bg-gray-800"
	classTH        = "px-4 py-3 text-left text-xs font-medium text-gray-500 dark:text-gray-400 uppercase tracking-wider"
	classTBody     = "divide-y divide-gray-200 dark:divide-gray-700"
	classTR        = "hover:bg-gray-50 dark:hover:bg-gray-800"
	classTD        = "px-4 py-3 text-sm dark:text-gray-300"
)

var (
	orderedItem   = regexp.MustCompile(`^\d+\. `)
	separatorRow  = regexp.MustCompile(`^\|?[\s\-=:|]+\|?$`)
	separatorDash = regexp.MustCompile(`[-=]`)
	boldSpan      = regexp.MustCompile(`\*\*(.+?)\*\*`)
)

type listKind int

const (
	noList listKind = iota
	orderedList
	unorderedList
)

type renderer struct {
	out  []string
	list listKind
}

// Render converts text to HTML.
func Render(text string) string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	r := &renderer{}

	for i := 0; i < len(lines); i++ {
		line := lines[i]

		if isTableRow(line) && i+1 < len(lines) && isSeparator(lines[i+1]) {
			end := i + 2
			for end < len(lines) && isTableRow(lines[end]) {
				end++
			}
			r.closeList()
			r.out = append(r.out, renderTable(line, lines[i+2:end]))
			i = end - 1
			continue
		}

		r.line(line)
	}
	r.closeList()

	return strings.Join(r.out, "\n")
}

func (r *renderer) line(line string) {
	switch {
	case strings.TrimSpace(line) == "":
		r.closeList()
	case strings.HasPrefix(line, "### "):
		r.closeList()
		r.emit("h3", classH3, line[4:])
	case strings.HasPrefix(line, "## "):
		r.closeList()
		r.emit("h2", classH2, line[3:])
	case strings.HasPrefix(line, "# "):
		r.closeList()
		r.emit("h1", classH1, line[2:])
	case orderedItem.MatchString(line):
		r.openList(orderedList)
		r.emit("li", classListItem, line)
	case strings.HasPrefix(line, "- "):
		r.openList(unorderedList)
		r.emit("li", classListItem, line)
	default:
		r.closeList()
		r.emit("p", classParagraph, line)
	}
}

func (r *renderer) emit(tag, class, text string) {
	r.out = append(r.out, "<"+tag+` class="`+class+`">`+inline(text)+"</"+tag+">")
}

func (r *renderer) openList(kind listKind) {
	if r.list == kind {
		return
	}
	r.closeList()
	r.list = kind
	if kind == orderedList {
		r.out = append(r.out, `<ol class="`+classOrdered+`">`)
	} else {
		r.out = append(r.out, `<ul class="`+classUnordered+`">`)
	}
}

func (r *renderer) closeList() {
	switch r.list {
	case orderedList:
		r.out = append(r.out, "</ol>")
	case unorderedList:
		r.out = append(r.out, "</ul>")
	}
	r.list = noList
}

func isTableRow(line string) bool {
	t := strings.TrimSpace(line)
	return len(t) > 1 && strings.HasPrefix(t, "|") && strings.HasSuffix(t, "|")
}

func isSeparator(line string) bool {
	t := strings.TrimSpace(line)
	return isTableRow(t) && separatorRow.MatchString(t) && separatorDash.MatchString(t)
}

func cells(row string) []string {
	var out []string
	for _, c := range strings.Split(strings.TrimSpace(row), "|") {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

func renderTable(header string, rows []string) string {
	var b strings.Builder
	b.WriteString(`<div class="` + classTableWrap + `"><table class="` + classTable + `">`)
	b.WriteString(`<thead class="` + classTHead + `"><tr>`)
	for _, c := range cells(header) {
		b.WriteString(`<th class="` + classTH + `">` + inline(c) + "</th>")
	}
	b.WriteString(`</tr></thead><tbody class="` + classTBody + `">`)
	for _, row := range rows {
		if isSeparator(row) {
			continue
		}
		b.WriteString(`<tr class="` + classTR + `">`)
		for _, c := range cells(row) {
			b.WriteString(`<td class="` + classTD + `">` + inline(c) + "</td>")
		}
		b.WriteString("</tr>")
	}
	b.WriteString("</tbody></table></div>")
	return b.String()
}

func inline(text string) string {
	return boldSpan.ReplaceAllString(html.EscapeString(text), "<strong>$1</strong>")
}

// Escape renders user text: escaped, with line breaks kept.
func Escape(text string) string {
	return strings.ReplaceAll(html.EscapeString(text), "\n", "<br>")
}
