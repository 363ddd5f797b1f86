package ingestion

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/mindfold/mindfold-backend/internal/domain"
	apperrors "github.com/mindfold/mindfold-backend/internal/pkg/errors"
	"github.com/mindfold/mindfold-backend/internal/platform/logger"
)

// fakeWriter records everything the pipeline writes.
type fakeWriter struct {
	mu        sync.Mutex
	runs      map[string]domain.RunStatus
	concepts  map[string]domain.ConceptUpsert
	claims    []domain.Claim
	rels      []domain.Relationship
	chunkCnt  int
	artifacts int
}

func newFakeWriter() *fakeWriter {
	return &fakeWriter{
		runs:     map[string]domain.RunStatus{},
		concepts: map[string]domain.ConceptUpsert{},
	}
}

func (f *fakeWriter) CreateRun(_ context.Context, _ domain.Scope, run domain.IngestionRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs[run.RunID] = domain.RunRunning
	return nil
}

func (f *fakeWriter) FinishRun(_ context.Context, _ domain.Scope, runID string, status domain.RunStatus, _ map[string]int, _ []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs[runID] = status
	return nil
}

func (f *fakeWriter) UpsertArtifact(_ context.Context, _ domain.Scope, art domain.Artifact) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.artifacts++
	return art.ArtifactID, false, nil
}

func (f *fakeWriter) UpsertChunks(_ context.Context, _ domain.Scope, _, _ string, chunks []domain.SourceChunk) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chunkCnt += len(chunks)
	return len(chunks), nil
}

func (f *fakeWriter) UpsertConcepts(_ context.Context, scope domain.Scope, _ string, items []domain.ConceptUpsert) ([]domain.UpsertOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.UpsertOutcome, 0, len(items))
	for _, item := range items {
		key := strings.ToLower(item.Name)
		_, existed := f.concepts[key]
		f.concepts[key] = item
		out = append(out, domain.UpsertOutcome{
			NodeID:  "CONCEPT_" + key,
			Name:    item.Name,
			Created: !existed,
		})
	}
	return out, nil
}

func (f *fakeWriter) MergeRelationships(_ context.Context, _ domain.Scope, _ string, rels []domain.Relationship) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rels = append(f.rels, rels...)
	return len(rels), nil
}

func (f *fakeWriter) UpsertClaims(_ context.Context, _ domain.Scope, _ string, claims []domain.Claim) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.claims = append(f.claims, claims...)
	return len(claims), nil
}

// fakeSourceExtractor returns canned extractions. A non-nil gate blocks the
// concept pass until the channel closes, to hold a queue worker mid-job.
type fakeSourceExtractor struct {
	concepts *ExtractionResult
	perChunk []ExtractedClaim
	failAll  bool
	gate     chan struct{}
}

func (f *fakeSourceExtractor) ExtractConcepts(ctx context.Context, _, _ string) (*ExtractionResult, error) {
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.failAll {
		return nil, context.DeadlineExceeded
	}
	return f.concepts, nil
}

func (f *fakeSourceExtractor) ExtractClaims(_ context.Context, chunkText string, _ []string) ([]ExtractedClaim, error) {
	if f.failAll {
		return nil, context.DeadlineExceeded
	}
	out := make([]ExtractedClaim, len(f.perChunk))
	copy(out, f.perChunk)
	for i := range out {
		out[i].Text = out[i].Text + " " + chunkText[:10]
	}
	return out, nil
}

func (f *fakeSourceExtractor) ExtractSegments(_ context.Context, _ string, _ []string) ([]Segment, error) {
	return []Segment{{Title: "Intro"}}, nil
}

type fakePipelineEmbedder struct{}

func (fakePipelineEmbedder) Embed(_ context.Context, inputs []string) ([][]float32, error) {
	out := make([][]float32, len(inputs))
	for i := range inputs {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func pipelineLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("dev")
	if err != nil {
		t.Fatalf("logger.New: err=%v", err)
	}
	return log
}

func lectureInput(runID string) Input {
	return Input{
		SourceID:    "lecture-1",
		SourceLabel: "Intro to ML",
		Domain:      "machine learning",
		Text:        strings.Repeat("Machine learning is the study of statistical models. ", 60),
		RunID:       runID,
	}
}

func standardExtractor() *fakeSourceExtractor {
	return &fakeSourceExtractor{
		concepts: &ExtractionResult{
			Nodes: []ExtractedNode{
				{Name: "Machine Learning", Description: "field of study"},
				{Name: "Statistics"},
			},
			Links: []ExtractedLink{
				{Source: "Machine Learning", Target: "Statistics", Predicate: "DEPENDS_ON", Confidence: 0.95},
				{Source: "Machine Learning", Target: "Unknown Node", Predicate: "RELATED_TO", Confidence: 0.9},
			},
		},
		perChunk: []ExtractedClaim{
			{Text: "ml builds on statistics", Confidence: 0.8, Mentions: []string{"Machine Learning", "Statistics"}},
		},
	}
}

func TestPipelineRunCompletes(t *testing.T) {
	writer := newFakeWriter()
	p := NewPipeline(writer, standardExtractor(), fakePipelineEmbedder{}, pipelineLogger(t), 5)
	scope := domain.Scope{TenantID: "t1", GraphID: "g1", BranchID: "main"}

	res, err := p.Run(context.Background(), scope, lectureInput("run-1"))
	if err != nil {
		t.Fatalf("Run: err=%v", err)
	}
	if res.Status != domain.RunCompleted {
		t.Fatalf("Run: status=%s errors=%v", res.Status, res.Errors)
	}
	if len(res.NodesCreated) != 2 {
		t.Fatalf("Run: nodes_created=%v", res.NodesCreated)
	}
	// The link to an unknown endpoint is dropped, the valid one written.
	if len(writer.rels) != 1 || writer.rels[0].Predicate != "DEPENDS_ON" {
		t.Fatalf("Run: rels=%+v", writer.rels)
	}
	if writer.runs["run-1"] != domain.RunCompleted {
		t.Fatalf("Run: stored status=%s", writer.runs["run-1"])
	}
	if res.ClaimsCount == 0 || len(writer.claims) != res.ClaimsCount {
		t.Fatalf("Run: claims=%d stored=%d", res.ClaimsCount, len(writer.claims))
	}
}

func TestPipelineClaimsWrittenInChunkOrder(t *testing.T) {
	writer := newFakeWriter()
	p := NewPipeline(writer, standardExtractor(), fakePipelineEmbedder{}, pipelineLogger(t), 5)
	scope := domain.Scope{TenantID: "t1", GraphID: "g1", BranchID: "main"}

	in := lectureInput("run-2")
	in.Text = strings.Repeat("Sentence about statistics. ", 300)
	if _, err := p.Run(context.Background(), scope, in); err != nil {
		t.Fatalf("Run: err=%v", err)
	}
	var indices []string
	for _, cl := range writer.claims {
		indices = append(indices, cl.ChunkID)
	}
	sorted := append([]string(nil), indices...)
	// Chunk ids embed the ascending chunk index; writes must follow it.
	if !sortedAscending(writer.claims) {
		t.Fatalf("claims out of chunk order: %v", sorted)
	}
}

func sortedAscending(claims []domain.Claim) bool {
	last := -1
	for _, cl := range claims {
		idx := chunkIndexOf(cl.ChunkID)
		if idx < last {
			return false
		}
		last = idx
	}
	return true
}

func chunkIndexOf(chunkID string) int {
	parts := strings.Split(chunkID, "_")
	if len(parts) == 0 {
		return -1
	}
	n := 0
	for _, r := range parts[len(parts)-1] {
		if r < '0' || r > '9' {
			return -1
		}
		n = n*10 + int(r-'0')
	}
	return n
}

func TestPipelineClaimsCarryChunkEvidence(t *testing.T) {
	writer := newFakeWriter()
	p := NewPipeline(writer, standardExtractor(), fakePipelineEmbedder{}, pipelineLogger(t), 5)
	scope := domain.Scope{TenantID: "t1", GraphID: "g1", BranchID: "main"}

	if _, err := p.Run(context.Background(), scope, lectureInput("run-e")); err != nil {
		t.Fatalf("Run: err=%v", err)
	}
	if len(writer.claims) == 0 {
		t.Fatalf("no claims written")
	}
	for _, cl := range writer.claims {
		if cl.ChunkID == "" {
			t.Fatalf("claim %s missing chunk id", cl.ClaimID)
		}
		found := false
		for _, id := range cl.EvidenceIDs {
			if id == cl.ChunkID {
				found = true
			}
		}
		if !found {
			t.Fatalf("claim %s evidence %v missing chunk %s", cl.ClaimID, cl.EvidenceIDs, cl.ChunkID)
		}
	}
}

func TestChunkMetadataCarriesPageInfo(t *testing.T) {
	meta := chunkMetadata(Chunk{
		PageNumbers: []int{3, 4},
		PageRange:   "3-4",
		Metadata:    map[string]any{"date": "2020-05-01"},
	})
	if meta["date"] != "2020-05-01" {
		t.Fatalf("chunkMetadata: date=%v", meta["date"])
	}
	if meta["page_range"] != "3-4" {
		t.Fatalf("chunkMetadata: page_range=%v", meta["page_range"])
	}
	if _, ok := meta["page_numbers"]; !ok {
		t.Fatalf("chunkMetadata: page_numbers missing: %v", meta)
	}
	if got := chunkMetadata(Chunk{Text: "plain"}); got != nil {
		t.Fatalf("chunkMetadata: bare chunk produced %v", got)
	}
}

func TestPipelineSecondRunIsIdempotent(t *testing.T) {
	writer := newFakeWriter()
	p := NewPipeline(writer, standardExtractor(), fakePipelineEmbedder{}, pipelineLogger(t), 5)
	scope := domain.Scope{TenantID: "t1", GraphID: "g1", BranchID: "main"}

	first, err := p.Run(context.Background(), scope, lectureInput("run-a"))
	if err != nil {
		t.Fatalf("Run: err=%v", err)
	}
	firstClaims := claimIDs(writer.claims)
	writer.claims = nil

	second, err := p.Run(context.Background(), scope, lectureInput("run-b"))
	if err != nil {
		t.Fatalf("Run: err=%v", err)
	}
	if len(second.NodesCreated) != 0 {
		t.Fatalf("second run created nodes: %v", second.NodesCreated)
	}
	if !reflect.DeepEqual(second.NodesUpdated, append(append([]string{}, first.NodesCreated...), first.NodesUpdated...)) {
		t.Fatalf("second run updated=%v want=%v", second.NodesUpdated, first.NodesCreated)
	}
	if !reflect.DeepEqual(claimIDs(writer.claims), firstClaims) {
		t.Fatalf("claim ids diverged between runs")
	}
}

func claimIDs(claims []domain.Claim) []string {
	out := make([]string, 0, len(claims))
	for _, cl := range claims {
		out = append(out, cl.ClaimID)
	}
	return out
}

func TestPipelineTotalLLMFailureMarksRunFailed(t *testing.T) {
	writer := newFakeWriter()
	p := NewPipeline(writer, &fakeSourceExtractor{failAll: true}, fakePipelineEmbedder{}, pipelineLogger(t), 5)
	scope := domain.Scope{TenantID: "t1", GraphID: "g1", BranchID: "main"}

	res, err := p.Run(context.Background(), scope, lectureInput("run-f"))
	if err != nil {
		t.Fatalf("Run: err=%v", err)
	}
	if res.Status != domain.RunFailed {
		t.Fatalf("Run: status=%s want=FAILED", res.Status)
	}
	if len(res.Errors) == 0 {
		t.Fatalf("Run: errors empty")
	}
	if writer.runs["run-f"] != domain.RunFailed {
		t.Fatalf("Run: stored status=%s", writer.runs["run-f"])
	}
}

func TestQueueFailsFastWhenFull(t *testing.T) {
	writer := newFakeWriter()
	extractor := standardExtractor()
	extractor.gate = make(chan struct{})
	p := NewPipeline(writer, extractor, fakePipelineEmbedder{}, pipelineLogger(t), 1)
	q := NewQueue(p, pipelineLogger(t), 1, 1)
	scope := domain.Scope{TenantID: "t1", GraphID: "g1", BranchID: "main"}

	// With the single worker parked on the gate, at most two jobs can ever be
	// accepted: one in flight, one buffered. The third attempt must overflow.
	var overflowErr error
	for i := 0; i < 10 && overflowErr == nil; i++ {
		overflowErr = q.Enqueue(Job{Scope: scope, Input: lectureInput("run-q")})
	}
	if overflowErr == nil {
		t.Fatalf("Enqueue never reported a full queue")
	}
	if !errors.Is(overflowErr, apperrors.ErrQueueFull) {
		t.Fatalf("Enqueue: err=%v want ErrQueueFull", overflowErr)
	}
	close(extractor.gate)
	q.Close()
}
