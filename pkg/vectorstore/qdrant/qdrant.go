// Package qdrant implements the vectorstore document port on a Qdrant
// server over gRPC. Collections are created on first write with cosine
// distance, and document ids are mapped to deterministic point UUIDs
// because Qdrant only accepts UUID or integer point ids.
package qdrant

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	qd "github.com/qdrant/go-client/qdrant"

	"github.com/filigree-ai/go-filigree/pkg/filigree"
	"github.com/filigree-ai/go-filigree/pkg/vectorstore"
)

// Payload keys reserved by the store. Metadata keys with the same names
// would be overwritten on read, so callers should avoid them.
const (
	payloadContentKey = "content"
	payloadDocIDKey   = "doc_id"
)

// Config holds Qdrant store configuration.
type Config struct {
	// Optional. Qdrant server host. Defaults to "localhost".
	Host string

	// Optional. Qdrant gRPC port. Defaults to 6334.
	Port int

	// Optional. API key for Qdrant Cloud.
	APIKey string

	// Optional. Vector dimension for created collections. Defaults to 768.
	Dimension int

	// Optional. Embedder for documents and queries without pre-computed
	// vectors.
	Embedder vectorstore.Embedder
}

// Store is a vectorstore.DocumentStore backed by Qdrant.
type Store struct {
	client    *qd.Client
	dimension int
	embedder  vectorstore.Embedder

	mu      sync.Mutex
	ensured map[string]bool
}

var _ vectorstore.DocumentStore = (*Store)(nil)

// New creates a Qdrant-backed store. Collections are created lazily on
// first write.
func New(cfg *Config) (*Store, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = 6334
	}
	dimension := cfg.Dimension
	if dimension <= 0 {
		dimension = 768
	}

	client, err := qd.NewClient(&qd.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	return &Store{
		client:    client,
		dimension: dimension,
		embedder:  cfg.Embedder,
		ensured:   make(map[string]bool),
	}, nil
}

// AddDocuments upserts documents as points. Re-adding a document id
// overwrites the previous point because point UUIDs are derived from the
// collection and document id.
func (s *Store) AddDocuments(ctx context.Context, collection string, docs []vectorstore.Document) error {
	if len(docs) == 0 {
		return nil
	}
	if err := s.ensureCollection(ctx, collection); err != nil {
		return err
	}

	vectors := make([][]float32, len(docs))
	var missing []int
	var texts []string
	for i, doc := range docs {
		if doc.ID == "" {
			return fmt.Errorf("document %d has no id", i)
		}
		if len(doc.Embedding) > 0 {
			vectors[i] = doc.Embedding
			continue
		}
		missing = append(missing, i)
		texts = append(texts, doc.Content)
	}
	if len(missing) > 0 {
		if s.embedder == nil {
			return fmt.Errorf("collection %s: no embedder configured for documents without embeddings", collection)
		}
		embedded, err := s.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed %d documents: %w", len(texts), err)
		}
		if len(embedded) != len(texts) {
			return fmt.Errorf("embedder returned %d vectors for %d documents", len(embedded), len(texts))
		}
		for j, i := range missing {
			vectors[i] = embedded[j]
		}
	}

	points := make([]*qd.PointStruct, len(docs))
	for i, doc := range docs {
		if len(vectors[i]) != s.dimension {
			return fmt.Errorf("%w: store expects %d, document %s has %d",
				filigree.ErrDimensionMismatch, s.dimension, doc.ID, len(vectors[i]))
		}
		points[i] = &qd.PointStruct{
			Id:      pointID(collection, doc.ID),
			Vectors: &qd.Vectors{VectorsOptions: &qd.Vectors_Vector{Vector: &qd.Vector{Data: vectors[i]}}},
			Payload: buildPayload(doc),
		}
	}

	waitUpsert := true
	_, err := s.client.Upsert(ctx, &qd.UpsertPoints{
		CollectionName: collection,
		Points:         points,
		Wait:           &waitUpsert,
	})
	if err != nil {
		return fmt.Errorf("upsert %d points into collection %s: %w", len(points), collection, err)
	}
	return nil
}

// QueryDocuments searches a collection and converts Qdrant similarity
// scores to cosine distances so results line up with the other backends.
func (s *Store) QueryDocuments(ctx context.Context, collection string, q vectorstore.Query) ([]vectorstore.DocumentHit, error) {
	exists, err := s.client.CollectionExists(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("check collection %s: %w", collection, err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", filigree.ErrCollectionNotFound, collection)
	}

	k := q.K
	if k <= 0 {
		k = 10
	}
	embedding := q.Embedding
	if len(embedding) == 0 {
		if q.Text == "" {
			return nil, fmt.Errorf("collection %s: query needs text or an embedding", collection)
		}
		if s.embedder == nil {
			return nil, fmt.Errorf("collection %s: no embedder configured for text queries", collection)
		}
		vecs, err := s.embedder.Embed(ctx, []string{q.Text})
		if err != nil {
			return nil, fmt.Errorf("embed query: %w", err)
		}
		if len(vecs) != 1 {
			return nil, fmt.Errorf("embedder returned %d vectors for one query", len(vecs))
		}
		embedding = vecs[0]
	}

	limit := uint64(k)
	request := &qd.QueryPoints{
		CollectionName: collection,
		Query:          qd.NewQuery(embedding...),
		WithPayload:    qd.NewWithPayload(true),
		Limit:          &limit,
	}
	if len(q.Filter) > 0 {
		request.Filter = buildFilter(q.Filter)
	}

	points, err := s.client.Query(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("query collection %s: %w", collection, err)
	}

	hits := make([]vectorstore.DocumentHit, 0, len(points))
	for _, point := range points {
		hits = append(hits, convertPoint(point))
	}
	return hits, nil
}

// Delete removes documents by id. Missing ids are not an error.
func (s *Store) Delete(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	pointIDs := make([]*qd.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = pointID(collection, id)
	}
	waitDelete := true
	_, err := s.client.Delete(ctx, &qd.DeletePoints{
		CollectionName: collection,
		Points: &qd.PointsSelector{
			PointsSelectorOneOf: &qd.PointsSelector_Points{
				Points: &qd.PointsIdsList{Ids: pointIDs},
			},
		},
		Wait: &waitDelete,
	})
	if err != nil {
		return fmt.Errorf("delete %d points from collection %s: %w", len(ids), collection, err)
	}
	return nil
}

// Health checks connectivity to the Qdrant server.
func (s *Store) Health(ctx context.Context) error {
	if _, err := s.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("qdrant health check failed: %w", err)
	}
	return nil
}

// Close closes the underlying gRPC connection.
func (s *Store) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// ensureCollection creates the collection with cosine distance if it does
// not exist yet.
func (s *Store) ensureCollection(ctx context.Context, collection string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ensured[collection] {
		return nil
	}

	exists, err := s.client.CollectionExists(ctx, collection)
	if err != nil {
		return fmt.Errorf("check collection %s: %w", collection, err)
	}
	if !exists {
		err = s.client.CreateCollection(ctx, &qd.CreateCollection{
			CollectionName: collection,
			VectorsConfig: qd.NewVectorsConfig(&qd.VectorParams{
				Size:     uint64(s.dimension),
				Distance: qd.Distance_Cosine,
			}),
			ShardNumber: qd.PtrOf(uint32(2)),
		})
		if err != nil {
			return fmt.Errorf("failed to create collection %s: %w", collection, err)
		}
	}

	s.ensured[collection] = true
	return nil
}

// pointID derives a stable UUID from the collection and document id.
func pointID(collection, docID string) *qd.PointId {
	id := uuid.NewSHA1(uuid.NameSpaceURL, []byte(collection+"/"+docID)).String()
	return &qd.PointId{PointIdOptions: &qd.PointId_Uuid{Uuid: id}}
}

// buildPayload flattens document content, id and metadata into a Qdrant
// payload.
func buildPayload(doc vectorstore.Document) map[string]*qd.Value {
	payload := make(map[string]*qd.Value, len(doc.Metadata)+2)
	payload[payloadContentKey] = qd.NewValueString(doc.Content)
	payload[payloadDocIDKey] = qd.NewValueString(doc.ID)
	for key, value := range doc.Metadata {
		switch v := value.(type) {
		case string:
			payload[key] = qd.NewValueString(v)
		case int:
			payload[key] = qd.NewValueInt(int64(v))
		case int64:
			payload[key] = qd.NewValueInt(v)
		case float64:
			payload[key] = qd.NewValueDouble(v)
		case bool:
			payload[key] = qd.NewValueBool(v)
		default:
			payload[key] = qd.NewValueString(fmt.Sprintf("%v", value))
		}
	}
	return payload
}

// buildFilter converts equality filters to Qdrant match conditions joined
// with AND logic.
func buildFilter(filters map[string]any) *qd.Filter {
	conditions := make([]*qd.Condition, 0, len(filters))
	for key, value := range filters {
		switch v := value.(type) {
		case string:
			conditions = append(conditions, qd.NewMatch(key, v))
		case int:
			conditions = append(conditions, qd.NewMatchInt(key, int64(v)))
		case int64:
			conditions = append(conditions, qd.NewMatchInt(key, v))
		case bool:
			conditions = append(conditions, qd.NewMatchBool(key, v))
		default:
			conditions = append(conditions, qd.NewMatch(key, fmt.Sprintf("%v", value)))
		}
	}
	return &qd.Filter{Must: conditions}
}

// convertPoint maps a scored point back to a document hit. The score is a
// cosine similarity, so distance is its complement.
func convertPoint(point *qd.ScoredPoint) vectorstore.DocumentHit {
	hit := vectorstore.DocumentHit{
		Distance: 1 - float64(point.Score),
	}
	if point.Id != nil {
		hit.ID = point.Id.String()
	}
	if point.Payload == nil {
		return hit
	}
	hit.Metadata = make(map[string]any, len(point.Payload))
	for key, value := range point.Payload {
		switch key {
		case payloadContentKey:
			hit.Content = value.GetStringValue()
			continue
		case payloadDocIDKey:
			hit.ID = value.GetStringValue()
			continue
		}
		switch kind := value.GetKind().(type) {
		case *qd.Value_StringValue:
			hit.Metadata[key] = kind.StringValue
		case *qd.Value_IntegerValue:
			hit.Metadata[key] = kind.IntegerValue
		case *qd.Value_DoubleValue:
			hit.Metadata[key] = kind.DoubleValue
		case *qd.Value_BoolValue:
			hit.Metadata[key] = kind.BoolValue
		}
	}
	if len(hit.Metadata) == 0 {
		hit.Metadata = nil
	}
	return hit
}
