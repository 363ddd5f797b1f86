package ingestion

import (
	"testing"
)

func TestUnmarshalSalvagingCleanJSON(t *testing.T) {
	var out ExtractionResult
	err := unmarshalSalvaging(`{"nodes":[{"name":"Backprop"}],"links":[]}`, &out)
	if err != nil {
		t.Fatalf("unmarshalSalvaging: err=%v", err)
	}
	if len(out.Nodes) != 1 || out.Nodes[0].Name != "Backprop" {
		t.Fatalf("unmarshalSalvaging: %+v", out)
	}
}

func TestUnmarshalSalvagingStripsCodeFence(t *testing.T) {
	var out ExtractionResult
	raw := "```json\n{\"nodes\":[{\"name\":\"SGD\"}],\"links\":[]}\n```"
	if err := unmarshalSalvaging(raw, &out); err != nil {
		t.Fatalf("unmarshalSalvaging: err=%v", err)
	}
	if len(out.Nodes) != 1 || out.Nodes[0].Name != "SGD" {
		t.Fatalf("unmarshalSalvaging: %+v", out)
	}
}

func TestUnmarshalSalvagingRecoversEmbeddedObject(t *testing.T) {
	var out ExtractionResult
	raw := `Here is the extraction you asked for:
{"nodes":[{"name":"Attention"}],"links":[{"source":"Attention","target":"Transformer","predicate":"PART_OF","confidence":0.9}]}
Hope that helps!`
	if err := unmarshalSalvaging(raw, &out); err != nil {
		t.Fatalf("unmarshalSalvaging: err=%v", err)
	}
	if len(out.Nodes) != 1 || len(out.Links) != 1 {
		t.Fatalf("unmarshalSalvaging: %+v", out)
	}
}

func TestUnmarshalSalvagingBraceInsideString(t *testing.T) {
	var out ExtractionResult
	raw := `noise {"nodes":[{"name":"Set {a,b}","description":"braces } inside"}],"links":[]} trailing`
	if err := unmarshalSalvaging(raw, &out); err != nil {
		t.Fatalf("unmarshalSalvaging: err=%v", err)
	}
	if out.Nodes[0].Name != "Set {a,b}" {
		t.Fatalf("unmarshalSalvaging: %+v", out)
	}
}

func TestUnmarshalSalvagingFailsOnGarbage(t *testing.T) {
	var out ExtractionResult
	if err := unmarshalSalvaging("no json here at all", &out); err == nil {
		t.Fatalf("unmarshalSalvaging: expected error")
	}
}

func TestBalancedObjectsMultiple(t *testing.T) {
	got := balancedObjects(`{"a":1} junk {"b":2}`)
	if len(got) != 2 || got[0] != `{"a":1}` || got[1] != `{"b":2}` {
		t.Fatalf("balancedObjects: %v", got)
	}
}
