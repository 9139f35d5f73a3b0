package matching

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/spigell/job-matcher/internal/ai"
	"github.com/spigell/job-matcher/internal/logger"
	"github.com/spigell/job-matcher/internal/model"
)

// EmbeddingStore persists a candidate's embedding together with the fingerprint of the
// text it was computed from.
type EmbeddingStore interface {
	SaveCandidateEmbedding(ctx context.Context, candidateID string, vector []float32, fingerprint string) error
}

type cachedVector struct {
	fingerprint string
	vector      []float32
}

// EmbeddingCache is a read-through cache of embeddings keyed by candidate or job id.
// An entry is valid only while its fingerprint equals the fingerprint of the current text.
type EmbeddingCache struct {
	embedder ai.Embedder
	store    EmbeddingStore
	logger   *zap.Logger

	mu         sync.RWMutex
	candidates map[string]cachedVector
	jobs       map[string]cachedVector
}

// NewEmbeddingCache creates a cache. store may be nil, vectors are then kept in memory only.
func NewEmbeddingCache(embedder ai.Embedder, store EmbeddingStore, log *zap.Logger) *EmbeddingCache {
	return &EmbeddingCache{
		embedder:   embedder,
		store:      store,
		logger:     logger.WithFields(log),
		candidates: make(map[string]cachedVector),
		jobs:       make(map[string]cachedVector),
	}
}

// Embed returns the embedding of text. Empty text returns an empty vector without a call.
func (c *EmbeddingCache) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, nil
	}
	vector, err := c.embedder.Embed(ctx, text)
	if err != nil {
		return nil, ai.NewExternalServiceError("embedding", "embed", err)
	}
	return vector, nil
}

// Fresh reports whether the candidate carries a usable cached vector for its current text.
// A vector without a recorded fingerprint predates fingerprinting and is trusted.
func Fresh(c *model.CandidateProfile) bool {
	if c == nil || len(c.Embedding) == 0 {
		return false
	}
	if c.EmbeddingFingerprint == "" {
		return true
	}
	return c.EmbeddingFingerprint == Fingerprint(BuildProfileText(c))
}

// Ensure makes sure the candidate has a fresh embedding, computing and persisting it when
// missing or stale. It reports whether a new vector was computed.
func (c *EmbeddingCache) Ensure(ctx context.Context, cand *model.CandidateProfile) (bool, error) {
	if Fresh(cand) {
		c.remember(cand.ID, cachedVector{fingerprint: cand.EmbeddingFingerprint, vector: cand.Embedding})
		return false, nil
	}
	return c.compute(ctx, cand)
}

// Refresh drops any cached vector and recomputes it.
func (c *EmbeddingCache) Refresh(ctx context.Context, cand *model.CandidateProfile) error {
	c.Invalidate(cand.ID)
	cand.Embedding = nil
	cand.EmbeddingFingerprint = ""
	_, err := c.compute(ctx, cand)
	return err
}

// Invalidate forgets the in-process entry of a candidate.
func (c *EmbeddingCache) Invalidate(candidateID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.candidates, candidateID)
}

// CandidateVector returns the candidate's embedding, computing it on demand. Persisting a
// newly computed vector is best-effort.
func (c *EmbeddingCache) CandidateVector(ctx context.Context, cand *model.CandidateProfile) ([]float32, error) {
	text := BuildProfileText(cand)
	fingerprint := Fingerprint(text)

	if entry, ok := c.lookup(c.candidates, cand.ID); ok && entry.fingerprint == fingerprint {
		return entry.vector, nil
	}

	if Fresh(cand) {
		c.remember(cand.ID, cachedVector{fingerprint: fingerprint, vector: cand.Embedding})
		return cand.Embedding, nil
	}

	if _, err := c.compute(ctx, cand); err != nil {
		var saveErr *persistError
		if !errors.As(err, &saveErr) {
			return nil, err
		}
		c.logger.Warn("persisting candidate embedding failed",
			append(logger.MatchFields("", cand.ID), zap.Error(err))...,
		)
	}

	return cand.Embedding, nil
}

// JobVector returns the embedding of the posting's canonical text, memoized per job id.
func (c *EmbeddingCache) JobVector(ctx context.Context, job *model.JobPosting) ([]float32, error) {
	text := BuildJobText(job)
	fingerprint := Fingerprint(text)

	if entry, ok := c.lookup(c.jobs, job.ID); ok && entry.fingerprint == fingerprint {
		return entry.vector, nil
	}

	vector, err := c.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.jobs[job.ID] = cachedVector{fingerprint: fingerprint, vector: vector}
	c.mu.Unlock()

	return vector, nil
}

// persistError is a failed save of an already computed vector. The vector on the candidate
// is current.
type persistError struct {
	err error
}

func (e *persistError) Error() string { return "save embedding: " + e.err.Error() }

func (e *persistError) Unwrap() error { return e.err }

// compute embeds the profile text and stores it on cand. A persistence failure is returned
// as a persistError after cand has already been updated; any other error leaves cand untouched.
func (c *EmbeddingCache) compute(ctx context.Context, cand *model.CandidateProfile) (bool, error) {
	text := BuildProfileText(cand)
	if text == "" {
		return false, nil
	}

	vector, err := c.Embed(ctx, text)
	if err != nil {
		return false, err
	}

	fingerprint := Fingerprint(text)
	cand.Embedding = vector
	cand.EmbeddingFingerprint = fingerprint
	c.remember(cand.ID, cachedVector{fingerprint: fingerprint, vector: vector})

	if c.store == nil {
		return true, nil
	}
	if err := c.store.SaveCandidateEmbedding(ctx, cand.ID, vector, fingerprint); err != nil {
		return true, &persistError{err: err}
	}

	return true, nil
}

func (c *EmbeddingCache) lookup(entries map[string]cachedVector, id string) (cachedVector, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := entries[id]
	return entry, ok
}

func (c *EmbeddingCache) remember(id string, entry cachedVector) {
	if id == "" || len(entry.vector) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.candidates[id] = entry
}
