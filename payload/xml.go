package payload

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"

	"github.com/datafield/courier/hook"
	"github.com/datafield/courier/submission"
)

// XMLBuilder serializes submissions as application/xml, pruning the tree to
// the hook's field subset while preserving the ancestor chain of every kept
// element so the document structure round-trips.
type XMLBuilder struct{}

// Build implements Builder.
func (XMLBuilder) Build(c *submission.Content, h *hook.Hook) ([]byte, string, error) {
	if len(h.SubsetFields) == 0 {
		return c.XML, hook.FormatXML.ContentType(), nil
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(c.XML); err != nil {
		return nil, "", fmt.Errorf("payload: parse submission XML: %w", err)
	}
	root := doc.Root()
	if root == nil {
		return nil, "", fmt.Errorf("payload: submission XML has no root element")
	}

	// Absolute paths of every element matching a configured field name.
	// The trailing separator keeps sibling groups with a shared name
	// prefix (group1 vs group10) from falsely matching each other.
	var matched []string
	for _, field := range h.SubsetFields {
		for _, el := range findByTag(root, field) {
			matched = append(matched, el.GetPath()+"/")
		}
	}

	prune(root, matched)

	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, "", fmt.Errorf("payload: serialize pruned XML: %w", err)
	}
	return out, hook.FormatXML.ContentType(), nil
}

// findByTag returns el and all descendants whose tag equals name.
func findByTag(el *etree.Element, name string) []*etree.Element {
	var result []*etree.Element
	if el.Tag == name {
		result = append(result, el)
	}
	for _, child := range el.ChildElements() {
		result = append(result, findByTag(child, name)...)
	}
	return result
}

// prune removes, in a single post-order pass, every element that is neither
// a matched element, a descendant of one, nor an ancestor of one.
func prune(el *etree.Element, matched []string) {
	for _, child := range el.ChildElements() {
		path := child.GetPath() + "/"
		if !keep(path, matched) {
			el.RemoveChild(child)
			continue
		}
		prune(child, matched)
	}
}

// keep reports whether the element at path is on the ancestor chain of a
// matched element, or is a matched element or one of its descendants.
func keep(path string, matched []string) bool {
	for _, m := range matched {
		if strings.HasPrefix(m, path) || strings.HasPrefix(path, m) {
			return true
		}
	}
	return false
}
