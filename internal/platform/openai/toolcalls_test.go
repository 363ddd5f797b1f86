package openai

import "testing"

func delta(idx int, id, name, args string) toolCallDelta {
	d := toolCallDelta{Index: idx, ID: id}
	d.Function.Name = name
	d.Function.Arguments = args
	return d
}

func TestToolCallAggregatorConcatenatesByIndex(t *testing.T) {
	agg := newToolCallAggregator()
	agg.Add(delta(0, "call_1", "search_graph", ""))
	agg.Add(delta(0, "", "", `{"query":`))
	agg.Add(delta(0, "", "", `"neural nets"}`))
	agg.Add(delta(1, "call_2", "fetch_claims", `{"ids":[]}`))

	got := agg.Completed()
	if len(got) != 2 {
		t.Fatalf("Completed: len=%d want=2", len(got))
	}
	if got[0].ID != "call_1" || got[0].Function.Name != "search_graph" {
		t.Fatalf("slot 0: %+v", got[0])
	}
	if got[0].Function.Arguments != `{"query":"neural nets"}` {
		t.Fatalf("slot 0 args: %q", got[0].Function.Arguments)
	}
	if got[1].ID != "call_2" {
		t.Fatalf("slot 1: %+v", got[1])
	}
}

func TestToolCallAggregatorDiscardsIncompleteSlots(t *testing.T) {
	agg := newToolCallAggregator()
	agg.Add(delta(0, "call_1", "", `{"a":1}`)) // name never arrives
	agg.Add(delta(1, "", "lookup", `{}`))      // id never arrives
	agg.Add(delta(2, "call_3", "ok", `{}`))

	got := agg.Completed()
	if len(got) != 1 || got[0].ID != "call_3" {
		t.Fatalf("Completed: %+v", got)
	}
}
