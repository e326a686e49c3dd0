package htmlutil

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// Parse builds a DOM tree from an HTML document.
func Parse(body []byte) (*html.Node, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// Matcher selects element nodes.
type Matcher func(*html.Node) bool

// Tag matches elements by tag name.
func Tag(name string) Matcher {
	return func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == name
	}
}

// HasClass matches elements whose class list contains class exactly.
func HasClass(class string) Matcher {
	return func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return false
		}
		for c := range strings.FieldsSeq(Attr(n, "class")) {
			if c == class {
				return true
			}
		}
		return false
	}
}

// ClassContains matches elements having any class token that contains sub, case-insensitively.
func ClassContains(sub string) Matcher {
	sub = strings.ToLower(sub)
	return func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return false
		}
		for c := range strings.FieldsSeq(strings.ToLower(Attr(n, "class"))) {
			if strings.Contains(c, sub) {
				return true
			}
		}
		return false
	}
}

// ID matches elements by id.
func ID(id string) Matcher {
	return AttrEquals("id", id)
}

// IDContains matches elements whose id contains sub, case-insensitively.
func IDContains(sub string) Matcher {
	sub = strings.ToLower(sub)
	return func(n *html.Node) bool {
		return n.Type == html.ElementNode && strings.Contains(strings.ToLower(Attr(n, "id")), sub)
	}
}

// AttrEquals matches elements whose attribute key equals val.
func AttrEquals(key, val string) Matcher {
	return func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return false
		}
		for _, a := range n.Attr {
			if a.Key == key && a.Val == val {
				return true
			}
		}
		return false
	}
}

// All matches when every matcher matches.
func All(ms ...Matcher) Matcher {
	return func(n *html.Node) bool {
		for _, m := range ms {
			if !m(n) {
				return false
			}
		}
		return true
	}
}

// AnyOf matches when at least one matcher matches.
func AnyOf(ms ...Matcher) Matcher {
	return func(n *html.Node) bool {
		for _, m := range ms {
			if m(n) {
				return true
			}
		}
		return false
	}
}

// Find returns the first descendant of root matching m in document order, or nil.
func Find(root *html.Node, m Matcher) *html.Node {
	if root == nil {
		return nil
	}
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if m(c) {
			return c
		}
		if found := Find(c, m); found != nil {
			return found
		}
	}
	return nil
}

// FindAll returns every descendant of root matching m in document order.
// Matches nested inside an earlier match are included.
func FindAll(root *html.Node, m Matcher) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if m(c) {
				out = append(out, c)
			}
			walk(c)
		}
	}
	if root != nil {
		walk(root)
	}
	return out
}

// Attr returns the value of the named attribute, or "".
func Attr(n *html.Node, key string) string {
	if n == nil {
		return ""
	}
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// Text returns the visible text under n with whitespace collapsed.
func Text(n *html.Node) string {
	if n == nil {
		return ""
	}
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		case html.ElementNode:
			if n.Data == "script" || n.Data == "style" || n.Data == "noscript" {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return CollapseSpace(sb.String())
}

// TextOf returns the text of the first descendant of root matching m.
func TextOf(root *html.Node, m Matcher) string {
	return Text(Find(root, m))
}
