package ingestion

import "testing"

func TestParseSegmentsWellFormed(t *testing.T) {
	raw := `{"segments":[{"title":"Intro","covered_concepts":["ML"]},{"title":"Training"}]}`
	got, err := parseSegments(raw)
	if err != nil {
		t.Fatalf("parseSegments: err=%v", err)
	}
	if len(got) != 2 || got[0].Title != "Intro" || got[1].Title != "Training" {
		t.Fatalf("parseSegments: %+v", got)
	}
}

func TestParseSegmentsRecoversFromTruncation(t *testing.T) {
	// The reply is cut mid-way through the third segment object.
	raw := `{"segments":[{"title":"Intro","summary":"s1"},{"title":"Depth","analogies":["river"]},{"title":"Trunc","summ`
	got, err := parseSegments(raw)
	if err != nil {
		t.Fatalf("parseSegments: err=%v", err)
	}
	if len(got) != 2 {
		t.Fatalf("parseSegments: len=%d want=2 (%+v)", len(got), got)
	}
	if got[0].Title != "Intro" || got[1].Title != "Depth" {
		t.Fatalf("parseSegments: %+v", got)
	}
}

func TestParseSegmentsFailsWhenNothingRecoverable(t *testing.T) {
	if _, err := parseSegments("total garbage"); err == nil {
		t.Fatalf("parseSegments: expected error")
	}
}
