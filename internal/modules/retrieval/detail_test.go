package retrieval

import "testing"

func TestTruncateKeepsMultibyteRunes(t *testing.T) {
	got := truncate("héllo wörld", 6)
	if got != "héllo " {
		t.Fatalf("truncate: got=%q", got)
	}
	for _, r := range truncate("ααββγγδδ", 3) {
		if r == '�' {
			t.Fatalf("truncate split a rune")
		}
	}
	if got := truncate("短い文字列です", 4); got != "短い文字" {
		t.Fatalf("truncate: got=%q", got)
	}
	if got := truncate("abc", 10); got != "abc" {
		t.Fatalf("truncate: got=%q", got)
	}
}

func TestCapWithNeverWidens(t *testing.T) {
	if got := capWith(5, 0); got != 5 {
		t.Fatalf("capWith(5,0)=%d", got)
	}
	if got := capWith(5, 3); got != 3 {
		t.Fatalf("capWith(5,3)=%d", got)
	}
	if got := capWith(5, 8); got != 5 {
		t.Fatalf("capWith(5,8)=%d", got)
	}
}
