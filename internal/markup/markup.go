// Package markup turns post raw into cooked HTML and extracts short excerpts
// from cooked HTML.
package markup

import (
	"html"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

var (
	emojiPattern = regexp.MustCompile(`:([a-z0-9_+\-]+):`)
	emojiCode    = regexp.MustCompile(`^:[a-z0-9_+\-]+:$`)

	cookPolicy    = newCookPolicy()
	excerptPolicy = newExcerptPolicy()
)

func newCookPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("class").Globally()
	p.AllowDataAttributes()
	p.AllowAttrs("href").OnElements("div")
	// UGC alt and title text may not contain colons, which emoji codes need
	p.AllowAttrs("alt", "title").Matching(emojiCode).OnElements("img")
	return p
}

func newExcerptPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowStandardURLs()
	p.AllowAttrs("src", "alt", "title", "class").OnElements("img")
	return p
}

// EmojiURL is the image path of a named emoji
func EmojiURL(name string) string {
	return "/images/emoji/" + name + ".png"
}

// Cook renders raw post text to sanitized HTML. Blank lines separate
// paragraphs, lines that start with a tag are passed through as HTML and
// :name: codes become emoji images.
func Cook(raw string) string {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")

	var b strings.Builder
	for _, block := range strings.Split(raw, "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		block = emojiPattern.ReplaceAllStringFunc(block, func(code string) string {
			name := strings.Trim(code, ":")
			return `<img src="` + EmojiURL(name) + `" title="` + code + `" class="emoji" alt="` + code + `">`
		})
		if strings.HasPrefix(block, "<") {
			b.WriteString(block)
		} else {
			b.WriteString("<p>")
			b.WriteString(strings.ReplaceAll(block, "\n", "<br>\n"))
			b.WriteString("</p>")
		}
		b.WriteString("\n")
	}
	return strings.TrimSpace(cookPolicy.Sanitize(b.String()))
}

// Excerpt returns up to maxLength characters of the text of cooked HTML.
// Emoji images are kept and count as their alt text. A truncated excerpt
// ends with an ellipsis entity.
func Excerpt(cooked string, maxLength int) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(cooked))
	if err != nil {
		return "", err
	}

	e := &excerpter{max: maxLength}
	e.walk(doc.Find("body"))

	out := excerptPolicy.Sanitize(e.b.String())
	if e.truncated {
		out += "&hellip;"
	}
	return out, nil
}

type excerpter struct {
	b         strings.Builder
	n, max    int
	truncated bool
	space     bool
}

func (e *excerpter) walk(s *goquery.Selection) {
	s.Contents().EachWithBreak(func(_ int, c *goquery.Selection) bool {
		switch name := goquery.NodeName(c); {
		case name == "#text":
			e.text(c.Text())
		case name == "img" && c.HasClass("emoji"):
			e.emoji(c)
		case name == "br":
			e.space = true
		case name == "p" || name == "div" || name == "li" || name == "blockquote":
			e.space = true
			e.walk(c)
			e.space = true
		case name == "#comment" || name == "script" || name == "style":
		default:
			e.walk(c)
		}
		return !e.truncated
	})
}

func (e *excerpter) text(s string) {
	if s == "" {
		return
	}
	if isSpace(rune(s[0])) {
		e.space = true
	}
	for i, field := range strings.FieldsFunc(s, isSpace) {
		if i > 0 {
			e.space = true
		}
		if !e.add(html.EscapeString(field), field) {
			return
		}
	}
	if isSpace(rune(s[len(s)-1])) {
		e.space = true
	}
}

func (e *excerpter) emoji(c *goquery.Selection) {
	alt, _ := c.Attr("alt")
	src, _ := c.Attr("src")
	tag := `<img src="` + html.EscapeString(src) + `" class="emoji" alt="` + html.EscapeString(alt) + `">`
	if utf8.RuneCountInString(alt)+e.n > e.max {
		e.truncated = true
		return
	}
	e.add(tag, alt)
}

// add appends out, counting the characters of plain. It cuts plain text that
// does not fit and reports whether there is room for more.
func (e *excerpter) add(out, plain string) bool {
	if e.space && e.n > 0 {
		if e.n+1 > e.max {
			e.truncated = true
			return false
		}
		e.b.WriteByte(' ')
		e.n++
	}
	e.space = false

	length := utf8.RuneCountInString(plain)
	if e.n+length <= e.max {
		e.b.WriteString(out)
		e.n += length
		return true
	}

	room := e.max - e.n
	if out == html.EscapeString(plain) && room > 0 {
		runes := []rune(plain)
		e.b.WriteString(html.EscapeString(string(runes[:room])))
		e.n += room
	}
	e.truncated = true
	return false
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\n' || r == '\t' || r == '\r'
}
