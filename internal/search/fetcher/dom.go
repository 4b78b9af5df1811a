package fetcher

import (
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// matcher 节点匹配函数。
type matcher func(*html.Node) bool

func parseHTML(r io.Reader) (*html.Node, error) {
	return html.Parse(r)
}

func byTag(a atom.Atom) matcher {
	return func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.DataAtom == a
	}
}

func byClass(class string) matcher {
	return func(n *html.Node) bool {
		return n.Type == html.ElementNode && hasClass(n, class)
	}
}

func byTagClass(a atom.Atom, class string) matcher {
	return func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.DataAtom == a && hasClass(n, class)
	}
}

func byAttr(key, value string) matcher {
	return func(n *html.Node) bool {
		return n.Type == html.ElementNode && attr(n, key) == value
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

// findAll 深度优先返回所有匹配的后代节点（不含 n 本身）。
func findAll(n *html.Node, m matcher) []*html.Node {
	var out []*html.Node
	var visit func(*html.Node)
	visit = func(cur *html.Node) {
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			if m(c) {
				out = append(out, c)
			}
			visit(c)
		}
	}
	visit(n)
	return out
}

// findFirst 深度优先返回第一个匹配的后代节点。
func findFirst(n *html.Node, m matcher) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if m(c) {
			return c
		}
		if found := findFirst(c, m); found != nil {
			return found
		}
	}
	return nil
}

// textOf 拼接节点下的全部文本并折叠空白。
func textOf(n *html.Node) string {
	if n == nil {
		return ""
	}
	var b strings.Builder
	var visit func(*html.Node)
	visit = func(cur *html.Node) {
		if cur.Type == html.TextNode {
			b.WriteString(cur.Data)
			b.WriteByte(' ')
			return
		}
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

// removeAll 从树中摘除所有匹配的节点。
func removeAll(root *html.Node, m matcher) {
	for _, n := range findAll(root, m) {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
	}
}
