package ingestion

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/mindfold/mindfold-backend/internal/domain"
	"github.com/mindfold/mindfold-backend/internal/platform/logger"
)

// GraphWriter is the slice of the graph store the pipeline writes through.
type GraphWriter interface {
	CreateRun(ctx context.Context, scope domain.Scope, run domain.IngestionRun) error
	FinishRun(ctx context.Context, scope domain.Scope, runID string, status domain.RunStatus, counts map[string]int, errs []string) error
	UpsertArtifact(ctx context.Context, scope domain.Scope, art domain.Artifact) (string, bool, error)
	UpsertChunks(ctx context.Context, scope domain.Scope, runID, artifactID string, chunks []domain.SourceChunk) (int, error)
	UpsertConcepts(ctx context.Context, scope domain.Scope, runID string, items []domain.ConceptUpsert) ([]domain.UpsertOutcome, error)
	MergeRelationships(ctx context.Context, scope domain.Scope, runID string, rels []domain.Relationship) (int, error)
	UpsertClaims(ctx context.Context, scope domain.Scope, runID string, claims []domain.Claim) (int, error)
}

// Embedder is the embedding slice of the model client.
type Embedder interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

// SourceExtractor is the model-call surface the pipeline drives.
type SourceExtractor interface {
	ExtractConcepts(ctx context.Context, sourceDomain, text string) (*ExtractionResult, error)
	ExtractClaims(ctx context.Context, chunkText string, conceptNames []string) ([]ExtractedClaim, error)
	ExtractSegments(ctx context.Context, text string, conceptNames []string) ([]Segment, error)
}

// Input describes one ingestion request.
type Input struct {
	SourceID    string
	SourceLabel string
	Domain      string
	Text        string
	Chunks      []Chunk // optional pre-computed chunks with page refs
	RunID       string
	Segmented   bool
}

// Result summarizes one ingestion run.
type Result struct {
	RunID        string           `json:"run_id"`
	ArtifactID   string           `json:"artifact_id"`
	NodesCreated []string         `json:"nodes_created"`
	NodesUpdated []string         `json:"nodes_updated"`
	LinksCreated int              `json:"links_created"`
	ClaimsCount  int              `json:"claims"`
	Segments     []Segment        `json:"segments,omitempty"`
	Counts       map[string]int   `json:"counts"`
	Errors       []string         `json:"errors,omitempty"`
	Status       domain.RunStatus `json:"status"`
}

const maxClaimWorkers = 5

// Pipeline runs ingestion: chunking, concept extraction, parallel claim
// extraction with a bounded worker pool, then serial graph writes in chunk
// order.
type Pipeline struct {
	graph     GraphWriter
	extractor SourceExtractor
	embedder  Embedder
	log       *logger.Logger
	workers   int
}

func NewPipeline(graph GraphWriter, extractor SourceExtractor, embedder Embedder, log *logger.Logger, workers int) *Pipeline {
	if workers <= 0 || workers > maxClaimWorkers {
		workers = maxClaimWorkers
	}
	return &Pipeline{
		graph:     graph,
		extractor: extractor,
		embedder:  embedder,
		log:       log.With("service", "IngestionPipeline"),
		workers:   workers,
	}
}

// chunkResult is one worker's output, reordered by chunk index before write.
type chunkResult struct {
	index  int
	claims []ExtractedClaim
	vecs   [][]float32
	err    error
}

// Run executes the pipeline. Per-chunk failures accumulate and never abort
// the run; the final status reflects how much survived.
func (p *Pipeline) Run(ctx context.Context, scope domain.Scope, in Input) (*Result, error) {
	res := &Result{
		RunID:        in.RunID,
		NodesCreated: []string{},
		NodesUpdated: []string{},
		Counts:       map[string]int{},
	}
	if err := p.graph.CreateRun(ctx, scope, domain.IngestionRun{
		RunID:       in.RunID,
		GraphID:     scope.GraphID,
		SourceType:  "lecture",
		SourceLabel: in.SourceLabel,
	}); err != nil {
		return nil, err
	}

	status, err := p.run(ctx, scope, in, res)
	res.Status = status
	if finishErr := p.graph.FinishRun(ctx, scope, in.RunID, status, res.Counts, res.Errors); finishErr != nil {
		p.log.Warn("finish run failed", "run_id", in.RunID, "error", finishErr)
	}
	if err != nil {
		return res, err
	}
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, scope domain.Scope, in Input, res *Result) (domain.RunStatus, error) {
	artifactID := "ART_" + shortHash(scope.GraphID+in.SourceID+domain.ContentHash(in.Text))
	artifactID, _, err := p.graph.UpsertArtifact(ctx, scope, domain.Artifact{
		ArtifactID:  artifactID,
		GraphID:     scope.GraphID,
		SourceID:    in.SourceID,
		Title:       in.SourceLabel,
		ContentHash: domain.ContentHash(in.Text),
	})
	if err != nil {
		res.Errors = append(res.Errors, err.Error())
		return domain.RunFailed, err
	}
	res.ArtifactID = artifactID

	chunks := in.Chunks
	if len(chunks) == 0 {
		chunks = SplitIntoChunks(in.Text, defaultChunkSize, defaultChunkOverlap)
	}
	sourceChunks := make([]domain.SourceChunk, 0, len(chunks))
	for _, ch := range chunks {
		sourceChunks = append(sourceChunks, domain.SourceChunk{
			ChunkID:    chunkID(scope.GraphID, in.SourceID, ch.Index),
			GraphID:    scope.GraphID,
			SourceID:   in.SourceID,
			ChunkIndex: ch.Index,
			Text:       ch.Text,
			Metadata:   chunkMetadata(ch),
		})
	}
	if n, err := p.graph.UpsertChunks(ctx, scope, in.RunID, artifactID, sourceChunks); err != nil {
		res.Errors = append(res.Errors, err.Error())
	} else {
		res.Counts["chunks"] = n
	}

	// Concept pass over the full text. Total LLM failure here still leaves
	// a valid (empty) run rather than an error.
	extraction, err := p.extractor.ExtractConcepts(ctx, in.Domain, in.Text)
	if err != nil {
		res.Errors = append(res.Errors, err.Error())
		return domain.RunFailed, nil
	}
	embeddings := p.embedConceptNames(ctx, extraction.Nodes, res)
	outcomes, err := p.graph.UpsertConcepts(ctx, scope, in.RunID, extraction.ToConceptUpserts(in.SourceLabel, embeddings))
	if err != nil {
		res.Errors = append(res.Errors, err.Error())
		return domain.RunFailed, nil
	}
	nodeIDByName := make(map[string]string, len(outcomes))
	conceptNames := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		nodeIDByName[strings.ToLower(o.Name)] = o.NodeID
		conceptNames = append(conceptNames, o.Name)
		if o.Created {
			res.NodesCreated = append(res.NodesCreated, o.NodeID)
		} else {
			res.NodesUpdated = append(res.NodesUpdated, o.NodeID)
		}
	}
	sort.Strings(res.NodesCreated)
	sort.Strings(res.NodesUpdated)
	res.Counts["nodes_created"] = len(res.NodesCreated)
	res.Counts["nodes_updated"] = len(res.NodesUpdated)

	// Relationships are deferred until every endpoint exists.
	rels := make([]domain.Relationship, 0, len(extraction.Links))
	for _, link := range extraction.Links {
		src := nodeIDByName[strings.ToLower(strings.TrimSpace(link.Source))]
		dst := nodeIDByName[strings.ToLower(strings.TrimSpace(link.Target))]
		if src == "" || dst == "" {
			continue
		}
		rels = append(rels, domain.Relationship{
			SourceID:   src,
			TargetID:   dst,
			Predicate:  link.Predicate,
			Confidence: link.Confidence,
			Method:     "llm_extraction",
			SourceRef:  in.SourceID,
			Rationale:  link.Rationale,
		})
	}
	links, err := p.graph.MergeRelationships(ctx, scope, in.RunID, rels)
	if err != nil {
		res.Errors = append(res.Errors, err.Error())
	}
	res.LinksCreated = links
	res.Counts["links"] = links

	// Parallel claim extraction, bounded pool, join before writes.
	results := p.extractChunkClaims(ctx, sourceChunks, conceptNames)
	claims := make([]domain.Claim, 0, len(results)*4)
	for _, cr := range results {
		if cr.err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("chunk %d: %v", cr.index, cr.err))
			continue
		}
		for i, ec := range cr.claims {
			var vec []float32
			if i < len(cr.vecs) {
				vec = cr.vecs[i]
			}
			mentionIDs := make([]string, 0, len(ec.Mentions))
			for _, name := range ec.Mentions {
				if id := nodeIDByName[strings.ToLower(strings.TrimSpace(name))]; id != "" {
					mentionIDs = append(mentionIDs, id)
				}
			}
			chID := chunkID(scope.GraphID, in.SourceID, cr.index)
			claims = append(claims, domain.Claim{
				ClaimID:        domain.ClaimID(scope.GraphID, in.SourceID, ec.Text),
				GraphID:        scope.GraphID,
				Text:           ec.Text,
				Confidence:     ec.Confidence,
				Method:         "llm_extraction",
				SourceID:       in.SourceID,
				ChunkID:        chID,
				Status:         domain.ClaimProposed,
				Embedding:      vec,
				MentionNodeIDs: mentionIDs,
				EvidenceIDs:    []string{chID},
			})
		}
	}
	written, err := p.graph.UpsertClaims(ctx, scope, in.RunID, claims)
	if err != nil {
		res.Errors = append(res.Errors, err.Error())
	}
	res.ClaimsCount = written
	res.Counts["claims"] = written

	if in.Segmented {
		segments, err := p.extractor.ExtractSegments(ctx, in.Text, conceptNames)
		if err != nil {
			res.Errors = append(res.Errors, err.Error())
		} else {
			res.Segments = segments
			res.Counts["segments"] = len(segments)
		}
	}

	if ctx.Err() != nil {
		return domain.RunFailed, ctx.Err()
	}
	switch {
	case len(res.Errors) == 0:
		return domain.RunCompleted, nil
	case len(res.NodesCreated)+len(res.NodesUpdated) == 0 && written == 0:
		return domain.RunFailed, nil
	default:
		return domain.RunPartial, nil
	}
}

// extractChunkClaims fans chunk work across the bounded pool and joins,
// returning results sorted by chunk index. The graph session is never shared
// with workers; all writes happen after the join.
func (p *Pipeline) extractChunkClaims(ctx context.Context, chunks []domain.SourceChunk, conceptNames []string) []chunkResult {
	var (
		mu      sync.Mutex
		results = make([]chunkResult, 0, len(chunks))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for _, ch := range chunks {
		ch := ch
		g.Go(func() error {
			cr := chunkResult{index: ch.ChunkIndex}
			claims, err := p.extractor.ExtractClaims(gctx, ch.Text, conceptNames)
			if err != nil {
				cr.err = err
			} else if len(claims) > 0 {
				cr.claims = claims
				texts := make([]string, len(claims))
				for i, cl := range claims {
					texts[i] = cl.Text
				}
				if vecs, err := p.embedder.Embed(gctx, texts); err != nil {
					// Embedding failure drops vectors, not claims.
					p.log.Warn("claim embedding failed", "chunk_index", ch.ChunkIndex, "error", err)
				} else {
					cr.vecs = vecs
				}
			}
			mu.Lock()
			results = append(results, cr)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	sort.Slice(results, func(a, b int) bool { return results[a].index < results[b].index })
	return results
}

func (p *Pipeline) embedConceptNames(ctx context.Context, nodes []ExtractedNode, res *Result) map[string][]float32 {
	if p.embedder == nil || len(nodes) == 0 {
		return nil
	}
	texts := make([]string, 0, len(nodes))
	for _, n := range nodes {
		label := n.Name
		if n.Description != "" {
			label = n.Name + ": " + n.Description
		}
		texts = append(texts, label)
	}
	vecs, err := p.embedder.Embed(ctx, texts)
	if err != nil {
		p.log.Warn("concept embedding failed", "error", err)
		return nil
	}
	out := make(map[string][]float32, len(nodes))
	for i, n := range nodes {
		if i < len(vecs) {
			out[n.Name] = vecs[i]
		}
	}
	return out
}

// chunkMetadata merges the caller's metadata with page refs captured during
// chunking. Nil when there is nothing to record.
func chunkMetadata(ch Chunk) map[string]any {
	if len(ch.Metadata) == 0 && len(ch.PageNumbers) == 0 && ch.PageRange == "" {
		return nil
	}
	meta := make(map[string]any, len(ch.Metadata)+2)
	for k, v := range ch.Metadata {
		meta[k] = v
	}
	if len(ch.PageNumbers) > 0 {
		meta["page_numbers"] = ch.PageNumbers
	}
	if ch.PageRange != "" {
		meta["page_range"] = ch.PageRange
	}
	return meta
}

func chunkID(graphID, sourceID string, index int) string {
	return fmt.Sprintf("CHUNK_%s_%d", shortHash(graphID+"\x00"+sourceID), index)
}

func shortHash(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])[:12]
}
