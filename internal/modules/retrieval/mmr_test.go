package retrieval

import (
	"reflect"
	"testing"
)

func TestSelectMMRSeedsWithHighestRelevance(t *testing.T) {
	items := []mmrItem{
		{Relevance: 0.2, Embedding: []float32{1, 0}},
		{Relevance: 0.9, Embedding: []float32{0, 1}},
		{Relevance: 0.5, Embedding: []float32{1, 1}},
	}
	got := selectMMR(items, 1, 0.7)
	if !reflect.DeepEqual(got, []int{1}) {
		t.Fatalf("selectMMR: got=%v want=[1]", got)
	}
}

func TestSelectMMROutputSortedAscending(t *testing.T) {
	items := []mmrItem{
		{Relevance: 0.3, Embedding: []float32{1, 0, 0}},
		{Relevance: 0.9, Embedding: []float32{0, 1, 0}},
		{Relevance: 0.8, Embedding: []float32{0, 0, 1}},
	}
	got := selectMMR(items, 3, 0.7)
	for i := 1; i < len(got); i++ {
		if got[i-1] >= got[i] {
			t.Fatalf("selectMMR: indices not ascending: %v", got)
		}
	}
}

func TestSelectMMRDeterministic(t *testing.T) {
	items := []mmrItem{
		{Relevance: 0.5, Embedding: []float32{1, 0}},
		{Relevance: 0.5, Embedding: []float32{0, 1}},
		{Relevance: 0.5, Embedding: []float32{1, 1}},
		{Relevance: 0.4, Embedding: []float32{0.5, 0.5}},
	}
	first := selectMMR(items, 3, 0.7)
	for i := 0; i < 10; i++ {
		if got := selectMMR(items, 3, 0.7); !reflect.DeepEqual(got, first) {
			t.Fatalf("selectMMR: run %d diverged: got=%v want=%v", i, got, first)
		}
	}
}

func TestSelectMMRExcludesInvalidAndFallsBack(t *testing.T) {
	// No item carries both a vector and positive relevance.
	items := []mmrItem{
		{Relevance: 0.9, Embedding: nil},
		{Relevance: 0, Embedding: []float32{1, 0}},
		{Relevance: 0.7, Embedding: nil},
	}
	got := selectMMR(items, 2, 0.7)
	if !reflect.DeepEqual(got, []int{0, 2}) {
		t.Fatalf("selectMMR fallback: got=%v want=[0 2]", got)
	}
}

func TestSelectMMRPrefersDiverseItems(t *testing.T) {
	// Item 1 nearly duplicates item 0; item 2 is orthogonal with lower
	// relevance and should win the second slot.
	items := []mmrItem{
		{Relevance: 0.9, Embedding: []float32{1, 0}},
		{Relevance: 0.85, Embedding: []float32{0.99, 0.01}},
		{Relevance: 0.6, Embedding: []float32{0, 1}},
	}
	got := selectMMR(items, 2, 0.7)
	if !reflect.DeepEqual(got, []int{0, 2}) {
		t.Fatalf("selectMMR diversity: got=%v want=[0 2]", got)
	}
}

func TestTopKByRelevanceTiesBreakBySmallerIndex(t *testing.T) {
	items := []mmrItem{
		{Relevance: 0.5},
		{Relevance: 0.5},
		{Relevance: 0.5},
	}
	got := topKByRelevance(items, 2)
	if !reflect.DeepEqual(got, []int{0, 1}) {
		t.Fatalf("topKByRelevance: got=%v want=[0 1]", got)
	}
}
