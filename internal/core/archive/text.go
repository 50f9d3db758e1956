package archive

import (
	"io"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// DefaultMaxContentChars bounds converted page text.
const DefaultMaxContentChars = 50000

// TruncationNotice is appended to truncated content.
const TruncationNotice = "\n\n[Content truncated due to length...]"

// droppedSelectors never contribute readable text. The Wayback toolbar is
// only present when the raw id_ form is not honoured.
const droppedSelectors = "head, script, style, noscript, template, svg, iframe, img, #wm-ipp-base, #wm-ipp, #donato"

var blockElements = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true,
	"dd": true, "div": true, "dl": true, "dt": true, "fieldset": true,
	"figcaption": true, "figure": true, "footer": true, "form": true,
	"header": true, "hr": true, "main": true, "nav": true, "ol": true,
	"p": true, "section": true, "table": true, "tr": true, "ul": true,
}

var blankLines = regexp.MustCompile(`\n{3,}`)

// HTMLToText converts an HTML document into readable plain text with
// markdown-style headings, list items and links.
func HTMLToText(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", err
	}
	doc.Find(droppedSelectors).Remove()

	w := &textWriter{}
	for _, n := range doc.Nodes {
		w.render(n)
	}
	return w.String(), nil
}

// Truncate cuts text to max characters and appends TruncationNotice.
func Truncate(text string, max int) (string, bool) {
	if max <= 0 || utf8.RuneCountInString(text) <= max {
		return text, false
	}
	runes := []rune(text)
	return string(runes[:max]) + TruncationNotice, true
}

type textWriter struct {
	b        strings.Builder
	newlines int
	inPre    bool
}

func (w *textWriter) String() string {
	lines := strings.Split(w.b.String(), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	out := blankLines.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return strings.TrimSpace(out)
}

func (w *textWriter) write(s string) {
	if s == "" {
		return
	}
	w.b.WriteString(s)
	w.newlines = 0
	if strings.HasSuffix(s, "\n") {
		w.newlines = 1
	}
}

func (w *textWriter) breakLine(n int) {
	if w.b.Len() == 0 {
		return
	}
	for w.newlines < n {
		w.b.WriteByte('\n')
		w.newlines++
	}
}

func (w *textWriter) render(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		w.text(n.Data)
		return
	case html.ElementNode:
	default:
		w.children(n)
		return
	}

	switch tag := n.Data; {
	case len(tag) == 2 && tag[0] == 'h' && tag[1] >= '1' && tag[1] <= '6':
		w.breakLine(2)
		w.write(strings.Repeat("#", int(tag[1]-'0')) + " ")
		w.children(n)
		w.breakLine(2)
	case tag == "br":
		w.b.WriteByte('\n')
		w.newlines++
	case tag == "li":
		w.breakLine(1)
		w.write("* ")
		w.children(n)
		w.breakLine(1)
	case tag == "a":
		w.link(n)
	case tag == "pre":
		w.breakLine(2)
		w.inPre = true
		w.children(n)
		w.inPre = false
		w.breakLine(2)
	case tag == "td" || tag == "th":
		w.children(n)
		w.write(" ")
	case blockElements[tag]:
		w.breakLine(2)
		w.children(n)
		w.breakLine(2)
	default:
		w.children(n)
	}
}

func (w *textWriter) children(n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.render(c)
	}
}

func (w *textWriter) text(data string) {
	if w.inPre {
		w.write(data)
		return
	}
	fields := strings.Fields(data)
	if len(fields) == 0 {
		if w.newlines == 0 && w.b.Len() > 0 && strings.ContainsAny(data, " \t\n") {
			w.write(" ")
		}
		return
	}
	s := strings.Join(fields, " ")
	if isSpace(data[0]) && w.newlines == 0 && w.b.Len() > 0 {
		s = " " + s
	}
	if isSpace(data[len(data)-1]) {
		s += " "
	}
	w.write(s)
}

func (w *textWriter) link(n *html.Node) {
	inner := &textWriter{inPre: w.inPre}
	inner.children(n)
	label := strings.Join(strings.Fields(inner.b.String()), " ")

	href := ""
	for _, attr := range n.Attr {
		if attr.Key == "href" {
			href = strings.TrimSpace(attr.Val)
		}
	}
	if label == "" {
		return
	}
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		w.write(label)
		return
	}
	w.write("[" + label + "](" + href + ")")
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
