package routing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"policy-copilot/internal/domain"
)

const (
	anchorPayloadText = "text"
	anchorPayloadType = "type"

	// anchorScrollLimit bounds a ListAnchors call. The anchor set is a small
	// curated list, so a single page is enough.
	anchorScrollLimit = 100
)

// AnchorStore manages the anchor collection backing semantic routing. It
// keeps the collection healthy: a dimension mismatch with the current
// encoder triggers a rebuild, and an empty collection is reseeded with the
// default anchors.
type AnchorStore struct {
	index      domain.VectorIndex
	encoder    domain.DenseEncoder
	collection string
	logger     *slog.Logger

	mu           sync.Mutex
	ready        bool
	initializing bool
}

// ErrInitializeInFlight reports that another goroutine is already bringing
// the anchor collection up. Callers on the query path treat it like any
// other initialization failure and fail open.
var ErrInitializeInFlight = errors.New("anchor store initialization already in flight")

func NewAnchorStore(index domain.VectorIndex, encoder domain.DenseEncoder, collection string, logger *slog.Logger) *AnchorStore {
	return &AnchorStore{
		index:      index,
		encoder:    encoder,
		collection: collection,
		logger:     logger,
	}
}

// Initialize brings the anchor collection to a usable state. It is
// idempotent and safe to call concurrently. The index calls run outside the
// lock so a slow startup never stalls concurrent routing: a caller that
// finds another initialization in flight gets ErrInitializeInFlight at once
// instead of queueing behind it.
func (s *AnchorStore) Initialize(ctx context.Context) error {
	s.mu.Lock()
	if s.ready {
		s.mu.Unlock()
		return nil
	}
	if s.initializing {
		s.mu.Unlock()
		return ErrInitializeInFlight
	}
	s.initializing = true
	s.mu.Unlock()

	err := s.initialize(ctx)

	s.mu.Lock()
	s.initializing = false
	if err == nil {
		s.ready = true
	}
	s.mu.Unlock()
	return err
}

func (s *AnchorStore) initialize(ctx context.Context) error {
	info, err := s.index.CollectionInfo(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("failed to inspect anchor collection: %w", err)
	}

	wantDims := s.encoder.Dimensions()
	pointCount := info.PointCount

	if info.Exists && info.DenseSize != wantDims {
		// A stale collection from a previous encoder cannot serve queries
		// from the current one. Rebuild from scratch.
		s.logger.Warn("anchor_collection_dimension_mismatch",
			slog.String("collection", s.collection),
			slog.Int("found_dimensions", info.DenseSize),
			slog.Int("expected_dimensions", wantDims))
		if err := s.index.DeleteCollection(ctx, s.collection); err != nil {
			return fmt.Errorf("failed to drop stale anchor collection: %w", err)
		}
		info.Exists = false
		pointCount = 0
	}

	if !info.Exists {
		if err := s.index.CreateCollection(ctx, s.collection, wantDims, false); err != nil {
			return fmt.Errorf("failed to create anchor collection: %w", err)
		}
	}

	if pointCount == 0 {
		if err := s.populate(ctx); err != nil {
			return err
		}
	}

	s.logger.Info("anchor_store_initialized",
		slog.String("collection", s.collection),
		slog.Int("dimensions", wantDims))
	return nil
}

func (s *AnchorStore) populate(ctx context.Context) error {
	anchors := DefaultAnchors()
	points := make([]domain.Point, len(anchors))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, anchor := range anchors {
		g.Go(func() error {
			vector, err := s.encoder.Encode(gctx, anchor.Text)
			if err != nil {
				return fmt.Errorf("failed to encode anchor %q: %w", anchor.Text, err)
			}
			points[i] = domain.Point{
				ID:    uuid.NewString(),
				Dense: vector,
				Payload: map[string]any{
					anchorPayloadText: anchor.Text,
					anchorPayloadType: string(anchor.Type),
				},
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if err := s.index.Upsert(ctx, s.collection, points); err != nil {
		return fmt.Errorf("failed to seed anchor collection: %w", err)
	}

	s.logger.Info("anchor_collection_seeded",
		slog.String("collection", s.collection),
		slog.Int("anchor_count", len(points)))
	return nil
}

// AddAnchor encodes and stores a single anchor.
func (s *AnchorStore) AddAnchor(ctx context.Context, anchor domain.Anchor) error {
	vector, err := s.encoder.Encode(ctx, anchor.Text)
	if err != nil {
		return fmt.Errorf("failed to encode anchor %q: %w", anchor.Text, err)
	}

	point := domain.Point{
		ID:    uuid.NewString(),
		Dense: vector,
		Payload: map[string]any{
			anchorPayloadText: anchor.Text,
			anchorPayloadType: string(anchor.Type),
		},
	}
	if err := s.index.Upsert(ctx, s.collection, []domain.Point{point}); err != nil {
		return fmt.Errorf("failed to store anchor: %w", err)
	}

	s.logger.Info("anchor_added",
		slog.String("text", anchor.Text),
		slog.String("type", string(anchor.Type)))
	return nil
}

// ListAnchors enumerates the stored anchors.
func (s *AnchorStore) ListAnchors(ctx context.Context) ([]domain.Anchor, error) {
	points, err := s.index.Scroll(ctx, s.collection, anchorScrollLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list anchors: %w", err)
	}

	anchors := make([]domain.Anchor, 0, len(points))
	for _, p := range points {
		text, _ := p.Payload[anchorPayloadText].(string)
		typeStr, _ := p.Payload[anchorPayloadType].(string)
		anchorType, err := domain.ParseAnchorType(typeStr)
		if err != nil {
			// Skip malformed points rather than failing the listing.
			s.logger.Warn("anchor_payload_malformed", slog.String("point_id", p.ID))
			continue
		}
		anchors = append(anchors, domain.Anchor{Text: text, Type: anchorType})
	}
	return anchors, nil
}

// DeleteAnchor removes every anchor whose text exactly matches.
func (s *AnchorStore) DeleteAnchor(ctx context.Context, text string) error {
	if err := s.index.DeleteByField(ctx, s.collection, anchorPayloadText, text); err != nil {
		return fmt.Errorf("failed to delete anchor: %w", err)
	}
	s.logger.Info("anchor_deleted", slog.String("text", text))
	return nil
}

// Nearest returns the closest anchor's type and score for a query vector.
// found is false when the collection is empty.
func (s *AnchorStore) Nearest(ctx context.Context, vector []float32) (domain.AnchorType, float32, bool, error) {
	points, err := s.index.Query(ctx, s.collection, domain.VectorQuery{
		Dense:       vector,
		Limit:       1,
		WithPayload: true,
	})
	if err != nil {
		return "", 0, false, fmt.Errorf("anchor query failed: %w", err)
	}
	if len(points) == 0 {
		return "", 0, false, nil
	}

	typeStr, _ := points[0].Payload[anchorPayloadType].(string)
	anchorType, err := domain.ParseAnchorType(typeStr)
	if err != nil {
		return "", 0, false, fmt.Errorf("nearest anchor has malformed payload: %w", err)
	}
	return anchorType, points[0].Score, true, nil
}
