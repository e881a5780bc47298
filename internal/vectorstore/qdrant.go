package vectorstore

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"codewiki/internal/domain"
)

// payloadIDField stores the original chunk ID in the point payload, since
// Qdrant point IDs must be a UUID or unsigned integer.
const payloadIDField = "_original_id"

// Qdrant is the optional persistent Store backend, used in place of Memory
// when a deployment needs the index to survive process restarts.
type Qdrant struct {
	client     *qdrant.Client
	collection string
	dimension  int
}

// NewQdrant connects to a Qdrant instance (gRPC, default port 6334) and
// ensures the named collection exists with the configured dimension and
// cosine distance metric.
func NewQdrant(dsn, collection string, dimension int) (*Qdrant, error) {
	if collection == "" {
		return nil, fmt.Errorf("qdrant collection name is required")
	}
	parsed, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse qdrant dsn: %w", err)
	}
	host := parsed.Hostname()
	if host == "" {
		host = "localhost"
	}
	port := parsed.Port()
	if port == "" {
		port = "6334"
	}
	portNum, err := strconv.Atoi(port)
	if err != nil {
		return nil, fmt.Errorf("invalid qdrant port: %w", err)
	}

	cfg := &qdrant.Config{Host: host, Port: portNum}
	if parsed.Scheme == "https" {
		cfg.UseTLS = true
	}
	if apiKey := parsed.Query().Get("api_key"); apiKey != "" {
		cfg.APIKey = apiKey
	}

	client, err := qdrant.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}

	q := &Qdrant{client: client, collection: collection, dimension: dimension}
	if err := q.ensureCollection(context.Background()); err != nil {
		client.Close()
		return nil, fmt.Errorf("ensure collection: %w", err)
	}
	return q, nil
}

func (q *Qdrant) ensureCollection(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("check collection exists: %w", err)
	}
	if exists {
		return nil
	}
	if q.dimension <= 0 {
		return fmt.Errorf("qdrant requires a positive dimension")
	}
	return q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(q.dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
}

func (q *Qdrant) Dimension() int { return q.dimension }

func (q *Qdrant) Close() error { return q.client.Close() }

func (q *Qdrant) Insert(ctx context.Context, chunk domain.Chunk) error {
	if len(chunk.Embedding) != q.dimension {
		return fmt.Errorf("chunk %s has embedding length %d, want %d", chunk.ID, len(chunk.Embedding), q.dimension)
	}

	pointUUID := chunk.ID
	if _, err := uuid.Parse(chunk.ID); err != nil {
		pointUUID = uuid.NewSHA1(uuid.NameSpaceOID, []byte(chunk.ID)).String()
	}

	payload := map[string]any{
		"content":     chunk.Content,
		"document_id": chunk.DocumentID,
		"chunk_index": chunk.ChunkIndex,
		"file_path":   chunk.FilePath,
		"language":    chunk.Language,
		"file_type":   string(chunk.FileType),
	}
	for k, v := range chunk.Metadata {
		payload[k] = v
	}
	if pointUUID != chunk.ID {
		payload[payloadIDField] = chunk.ID
	}

	vec := make([]float32, len(chunk.Embedding))
	copy(vec, chunk.Embedding)

	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewIDUUID(pointUUID),
			Vectors: qdrant.NewVectorsDense(vec),
			Payload: qdrant.NewValueMap(payload),
		}},
	})
	return err
}

func (q *Qdrant) IsEmpty() bool {
	count, err := q.client.Count(context.Background(), &qdrant.CountPoints{CollectionName: q.collection})
	if err != nil {
		return true
	}
	return count == 0
}

func (q *Qdrant) Len() int {
	count, err := q.client.Count(context.Background(), &qdrant.CountPoints{CollectionName: q.collection})
	if err != nil {
		return 0
	}
	return int(count)
}

func (q *Qdrant) Search(ctx context.Context, query []float32, topK int, threshold float32) ([]domain.ScoredChunk, error) {
	if topK <= 0 {
		return nil, nil
	}
	vec := make([]float32, len(query))
	copy(vec, query)
	limit := uint64(topK)

	hits, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQueryDense(vec),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant query: %w", err)
	}

	out := make([]domain.ScoredChunk, 0, len(hits))
	for _, hit := range hits {
		if float32(hit.Score) < threshold {
			continue
		}
		chunk := chunkFromPayload(hit)
		out = append(out, domain.ScoredChunk{Chunk: chunk, Score: float32(hit.Score)})
	}
	return out, nil
}

func chunkFromPayload(hit *qdrant.ScoredPoint) domain.Chunk {
	md := make(map[string]string)
	var id, content, documentID, filePath, language, fileType string
	chunkIndex := 0

	if hit.Payload != nil {
		for k, v := range hit.Payload {
			switch k {
			case payloadIDField:
				id = v.GetStringValue()
			case "content":
				content = v.GetStringValue()
			case "document_id":
				documentID = v.GetStringValue()
			case "file_path":
				filePath = v.GetStringValue()
			case "language":
				language = v.GetStringValue()
			case "file_type":
				fileType = v.GetStringValue()
			case "chunk_index":
				chunkIndex = int(v.GetIntegerValue())
			default:
				md[k] = v.GetStringValue()
			}
		}
	}
	if id == "" {
		id = hit.Id.GetUuid()
	}

	return domain.Chunk{
		ID:         id,
		Content:    content,
		DocumentID: documentID,
		ChunkIndex: chunkIndex,
		FilePath:   filePath,
		Language:   language,
		FileType:   domain.FileType(fileType),
		Metadata:   md,
	}
}

var _ Store = (*Qdrant)(nil)
var _ Store = (*Memory)(nil)
