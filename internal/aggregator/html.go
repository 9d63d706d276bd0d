// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package aggregator

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// flatten returns every node in n's subtree in document (preorder) order.
// BeautifulSoup's `.next_elements` walks the document the same way, which
// is exactly what the button-block extractor needs.
func flatten(n *html.Node) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		out = append(out, node)
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

func findAll(n *html.Node, match func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	for _, node := range flatten(n) {
		if match(node) {
			out = append(out, node)
		}
	}
	return out
}

func findFirst(n *html.Node, match func(*html.Node) bool) *html.Node {
	for _, node := range flatten(n) {
		if match(node) {
			return node
		}
	}
	return nil
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func hasClass(n *html.Node, class string) bool {
	v, ok := attr(n, "class")
	if !ok {
		return false
	}
	for _, c := range strings.Fields(v) {
		if c == class {
			return true
		}
	}
	return false
}

func isElem(n *html.Node, a atom.Atom) bool {
	return n.Type == html.ElementNode && n.DataAtom == a
}

// textPlain is BeautifulSoup's get_text(strip=True): every descendant text
// node concatenated, collapsed to single spaces, trimmed.
func textPlain(n *html.Node) string {
	var sb strings.Builder
	for _, node := range flatten(n) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
			sb.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}

// textNUL is get_text('\x00'): every descendant text node joined by a NUL
// byte instead of a space, used where the caller partitions on the first
// chunk (the group title sits before the first nested tag's text).
func textNUL(n *html.Node) string {
	var parts []string
	for _, node := range flatten(n) {
		if node.Type == html.TextNode {
			parts = append(parts, node.Data)
		}
	}
	return strings.Join(parts, "\x00")
}

// findTag returns the first descendant element of n with tag a.
func findTag(n *html.Node, a atom.Atom) *html.Node {
	return findFirst(n, func(node *html.Node) bool { return isElem(node, a) })
}

func findAllTag(n *html.Node, a atom.Atom) []*html.Node {
	return findAll(n, func(node *html.Node) bool { return isElem(node, a) })
}

// nextSiblingElements returns every node following n in document order
// within the same root, stopping (exclusive) at the first <hr>.
func nextSiblingElements(root, n *html.Node) []*html.Node {
	all := flatten(root)
	idx := -1
	for i, node := range all {
		if node == n {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	var out []*html.Node
	for _, node := range all[idx+1:] {
		if isElem(node, atom.Hr) {
			break
		}
		out = append(out, node)
	}
	return out
}
