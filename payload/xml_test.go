package payload

import (
	"strings"
	"testing"

	"github.com/beevik/etree"

	"github.com/datafield/courier/hook"
	"github.com/datafield/courier/submission"
)

const sampleXML = `<submission>
  <q1>a</q1>
  <group1>
    <q2>b</q2>
    <q3>c</q3>
  </group1>
</submission>`

func buildXML(t *testing.T, fields []string) *etree.Document {
	t.Helper()
	c := &submission.Content{XML: []byte(sampleXML)}
	raw, contentType, err := XMLBuilder{}.Build(c, &hook.Hook{SubsetFields: fields})
	if err != nil {
		t.Fatal(err)
	}
	if contentType != "application/xml" {
		t.Fatalf("content type = %q", contentType)
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(raw); err != nil {
		t.Fatalf("output is not well-formed XML: %v", err)
	}
	return doc
}

func TestXMLBuilderNoSubsetPassesThrough(t *testing.T) {
	c := &submission.Content{XML: []byte(sampleXML)}
	raw, _, err := XMLBuilder{}.Build(c, &hook.Hook{})
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != sampleXML {
		t.Fatal("expected XML to pass through unchanged without a subset")
	}
}

func TestXMLBuilderSubsetKeepsAncestors(t *testing.T) {
	doc := buildXML(t, []string{"q3"})

	// q3 survives inside its group1 ancestor.
	if el := doc.FindElement("/submission/group1/q3"); el == nil || el.Text() != "c" {
		t.Fatal("expected /submission/group1/q3 to survive")
	}
	// The sibling q2 and the unrelated q1 are pruned.
	if doc.FindElement("/submission/group1/q2") != nil {
		t.Fatal("expected q2 to be pruned")
	}
	if doc.FindElement("/submission/q1") != nil {
		t.Fatal("expected q1 to be pruned")
	}
}

func TestXMLBuilderSubsetWholeGroup(t *testing.T) {
	doc := buildXML(t, []string{"group1"})

	// The whole group survives with its children.
	if doc.FindElement("/submission/group1/q2") == nil {
		t.Fatal("expected q2 to survive under a matched group")
	}
	if doc.FindElement("/submission/group1/q3") == nil {
		t.Fatal("expected q3 to survive under a matched group")
	}
	if doc.FindElement("/submission/q1") != nil {
		t.Fatal("expected q1 to be pruned")
	}
}

func TestXMLBuilderSiblingPrefixNotConfused(t *testing.T) {
	xml := `<submission><group1><q2>b</q2></group1><group10><q9>z</q9></group10></submission>`
	c := &submission.Content{XML: []byte(xml)}

	raw, _, err := XMLBuilder{}.Build(c, &hook.Hook{SubsetFields: []string{"group1"}})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(raw), "group10") {
		t.Fatal("group10 must not survive a group1 subset")
	}
	if !strings.Contains(string(raw), "<q2>") {
		t.Fatal("expected group1 content to survive")
	}
}

func TestXMLBuilderMalformedInput(t *testing.T) {
	c := &submission.Content{XML: []byte("<unclosed>")}
	if _, _, err := (XMLBuilder{}).Build(c, &hook.Hook{SubsetFields: []string{"q1"}}); err == nil {
		t.Fatal("expected error for malformed XML")
	}
}
