package htmlutil

import "golang.org/x/net/html"

// Strategy extracts one value from a document. ok is false when the strategy found nothing.
type Strategy[T any] func(root *html.Node) (value T, ok bool)

// Chain is an ordered list of strategies for one field. The first strategy that
// yields a value wins; later strategies are not consulted.
type Chain[T any] []Strategy[T]

// First runs the chain against root.
func (c Chain[T]) First(root *html.Node) (T, bool) {
	for _, s := range c {
		if v, ok := s(root); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

// Or returns v when the chain finds nothing.
func (c Chain[T]) Or(root *html.Node, v T) T {
	if got, ok := c.First(root); ok {
		return got
	}
	return v
}

// TextStrategy yields the non-empty text of the first node matching m.
func TextStrategy(m Matcher) Strategy[string] {
	return func(root *html.Node) (string, bool) {
		s := TextOf(root, m)
		return s, s != ""
	}
}

// AttrStrategy yields the first non-empty attribute, in keys order, of the first node matching m.
func AttrStrategy(m Matcher, keys ...string) Strategy[string] {
	return func(root *html.Node) (string, bool) {
		n := Find(root, m)
		if n == nil {
			return "", false
		}
		for _, k := range keys {
			if v := Attr(n, k); v != "" {
				return v, true
			}
		}
		return "", false
	}
}

// NodeStrategy yields the first node matching m.
func NodeStrategy(m Matcher) Strategy[*html.Node] {
	return func(root *html.Node) (*html.Node, bool) {
		n := Find(root, m)
		return n, n != nil
	}
}
