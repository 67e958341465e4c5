package parser

import (
	"strings"

	"golang.org/x/net/html"
)

var separatorReplacer = strings.NewReplacer("•", "", "·", "", "∙", "")

// joinTextNodes collects every non-blank text node below n, trimmed,
// in document order.
func joinTextNodes(n *html.Node, sep string) string {
	var parts []string

	var walk func(*html.Node)
	walk = func(cur *html.Node) {
		switch cur.Type {
		case html.TextNode:
			if t := strings.TrimSpace(cur.Data); t != "" {
				parts = append(parts, t)
			}
			return
		case html.CommentNode:
			return
		case html.ElementNode:
			if cur.Data == "script" || cur.Data == "style" {
				return
			}
		}
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)

	return strings.Join(parts, sep)
}

func nodeText(n *html.Node) string {
	var b strings.Builder

	var walk func(*html.Node)
	walk = func(cur *html.Node) {
		if cur.Type == html.TextNode {
			b.WriteString(cur.Data)
			return
		}
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)

	return b.String()
}

func attrValue(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// findSiblingWithAttr scans the direct children of ref's parent and returns
// the first element other than ref with the given tag that carries attr.
func findSiblingWithAttr(ref *html.Node, tag, attr string) *html.Node {
	if ref == nil || ref.Parent == nil {
		return nil
	}

	for c := ref.Parent.FirstChild; c != nil; c = c.NextSibling {
		if c == ref || c.Type != html.ElementNode || c.Data != tag {
			continue
		}
		if _, ok := attrValue(c, attr); ok {
			return c
		}
	}

	return nil
}

// stripSeparators removes bullet separators such as "•" and trims the rest.
func stripSeparators(s string) string {
	return strings.TrimSpace(separatorReplacer.Replace(s))
}
