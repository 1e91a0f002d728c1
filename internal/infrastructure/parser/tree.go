package parser

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"strings"
)

// maxTreeDepth bounds element nesting while building the tree so
// adversarial input cannot drive unbounded recursion downstream.
const maxTreeDepth = 256

// node is one element (or text span) of the raw markup tree. Text nodes
// have an empty name. Attribute and child order follow the input bytes,
// which keeps every later traversal deterministic.
type node struct {
	name  string
	attrs []xml.Attr
	kids  []*node
	text  string
}

// buildTree decodes data into a synthetic root node whose kids are the
// top-level elements. Any well-formedness violation surfaces as an
// error; unknown elements are kept as ordinary nodes for the caller to
// skip or descend into.
func buildTree(data []byte) (*node, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = true
	dec.Entity = xml.HTMLEntity

	root := &node{}
	stack := []*node{root}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if len(stack) > maxTreeDepth {
				return nil, fmt.Errorf("element nesting exceeds %d levels", maxTreeDepth)
			}
			child := &node{name: t.Name.Local, attrs: append([]xml.Attr(nil), t.Attr...)}
			parent := stack[len(stack)-1]
			parent.kids = append(parent.kids, child)
			stack = append(stack, child)
		case xml.EndElement:
			if len(stack) == 1 {
				return nil, fmt.Errorf("unexpected closing tag %s", t.Name.Local)
			}
			stack = stack[:len(stack)-1]
		case xml.CharData:
			// Whitespace-only spans are kept: between inline elements
			// they are the word separators.
			parent := stack[len(stack)-1]
			parent.kids = append(parent.kids, &node{text: string(t)})
		}
	}

	if len(stack) != 1 {
		return nil, fmt.Errorf("unclosed element %s", stack[len(stack)-1].name)
	}
	for _, k := range root.kids {
		if !k.isText() {
			return root, nil
		}
	}
	return nil, fmt.Errorf("no elements found")
}

// isText reports whether n is a character-data node.
func (n *node) isText() bool { return n.name == "" }

// attr returns the value of the named attribute, matching on the local
// name so xlink-prefixed attributes resolve too.
func (n *node) attr(name string) string {
	for _, a := range n.attrs {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

// child returns the first direct child element with the given name.
func (n *node) child(name string) *node {
	for _, k := range n.kids {
		if k.name == name {
			return k
		}
	}
	return nil
}

// children returns all direct child elements with the given name.
func (n *node) children(name string) []*node {
	var out []*node
	for _, k := range n.kids {
		if k.name == name {
			out = append(out, k)
		}
	}
	return out
}

// find returns the first descendant element with the given name in
// document order, or nil.
func (n *node) find(name string) *node {
	for _, k := range n.kids {
		if k.name == name {
			return k
		}
		if found := k.find(name); found != nil {
			return found
		}
	}
	return nil
}

// findAll collects every descendant element with the given name in
// document order. Matching elements are not descended into, so nested
// occurrences of container-like elements stay with their outermost hit.
func (n *node) findAll(name string) []*node {
	var out []*node
	for _, k := range n.kids {
		if k.name == name {
			out = append(out, k)
			continue
		}
		out = append(out, k.findAll(name)...)
	}
	return out
}

// innerText flattens all descendant character data with whitespace
// normalized to single spaces.
func (n *node) innerText() string {
	var sb strings.Builder
	n.collectText(&sb)
	return normalizeSpace(sb.String())
}

func (n *node) collectText(sb *strings.Builder) {
	if n.isText() {
		sb.WriteString(n.text)
		return
	}
	for _, k := range n.kids {
		k.collectText(sb)
	}
}

// rawMarkup re-serializes the subtree rooted at n, used to hand table
// bodies to an HTML-oriented consumer.
func (n *node) rawMarkup() string {
	var sb strings.Builder
	n.writeMarkup(&sb)
	return sb.String()
}

func (n *node) writeMarkup(sb *strings.Builder) {
	if n.isText() {
		sb.WriteString(html.EscapeString(n.text))
		return
	}
	sb.WriteByte('<')
	sb.WriteString(n.name)
	for _, a := range n.attrs {
		sb.WriteByte(' ')
		sb.WriteString(a.Name.Local)
		sb.WriteString(`="`)
		sb.WriteString(html.EscapeString(a.Value))
		sb.WriteByte('"')
	}
	sb.WriteByte('>')
	for _, k := range n.kids {
		k.writeMarkup(sb)
	}
	sb.WriteString("</")
	sb.WriteString(n.name)
	sb.WriteByte('>')
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
