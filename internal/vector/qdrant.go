package vector

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

// Embedder computes embedding vectors for texts. llm.Provider satisfies it.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// QdrantStore implements Store over the Qdrant gRPC API. Collections are
// created lazily on first upsert, sized from the first embedding returned.
type QdrantStore struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	embedder    Embedder

	mu    sync.Mutex
	known map[string]bool
}

// NewQdrant connects to a Qdrant instance.
func NewQdrant(host string, port int, embedder Embedder) (*QdrantStore, error) {
	addr := fmt.Sprintf("%s:%d", host, port)
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("qdrant connect: %w", err)
	}
	return &QdrantStore{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		embedder:    embedder,
		known:       make(map[string]bool),
	}, nil
}

// PointID derives a stable UUID for a chunk ID. Reprocessing a file writes
// to the same points instead of accumulating duplicates.
func PointID(chunkID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(chunkID)).String()
}

func (s *QdrantStore) Upsert(ctx context.Context, collection string, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding %d chunks: %w", len(chunks), err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}

	if err := s.ensureCollection(ctx, collection, len(vectors[0])); err != nil {
		return err
	}

	points := make([]*pb.PointStruct, len(chunks))
	for i, c := range chunks {
		payload := map[string]*pb.Value{
			"content":     {Kind: &pb.Value_StringValue{StringValue: c.Text}},
			"chunk_id":    {Kind: &pb.Value_StringValue{StringValue: c.ID}},
			"file_id":     {Kind: &pb.Value_StringValue{StringValue: c.FileID}},
			"user_id":     {Kind: &pb.Value_StringValue{StringValue: c.UserID}},
			"page_label":  {Kind: &pb.Value_StringValue{StringValue: c.PageLabel}},
			"page":        {Kind: &pb.Value_IntegerValue{IntegerValue: int64(c.Page)}},
			"chunk_index": {Kind: &pb.Value_IntegerValue{IntegerValue: int64(c.ChunkIndex)}},
		}
		points[i] = &pb.PointStruct{
			Id:      &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: PointID(c.ID)}},
			Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: vectors[i]}}},
			Payload: payload,
		}
	}

	_, err = s.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: collection,
		Points:         points,
	})
	return mapGRPCErr(err)
}

func (s *QdrantStore) Query(ctx context.Context, collection, text string, k int, f Filter) ([]Match, error) {
	vecs, err := s.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	resp, err := s.points.Search(ctx, &pb.SearchPoints{
		CollectionName: collection,
		Vector:         vecs[0],
		Limit:          uint64(k),
		Filter:         buildFilter(f),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, mapGRPCErr(err)
	}

	matches := make([]Match, len(resp.Result))
	for i, pt := range resp.Result {
		matches[i] = Match{
			Chunk: chunkFromPayload(pt.Payload),
			// Cosine score maps to distance so identical vectors land at 0.
			Distance: 1 - float64(pt.Score),
		}
	}
	return matches, nil
}

func (s *QdrantStore) Fetch(ctx context.Context, collection string, f Filter, limit int) ([]Chunk, error) {
	lim := uint32(limit)
	resp, err := s.points.Scroll(ctx, &pb.ScrollPoints{
		CollectionName: collection,
		Limit:          &lim,
		Filter:         buildFilter(f),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, mapGRPCErr(err)
	}

	chunks := make([]Chunk, len(resp.Result))
	for i, pt := range resp.Result {
		chunks[i] = chunkFromPayload(pt.Payload)
	}
	return chunks, nil
}

func (s *QdrantStore) Delete(ctx context.Context, collection string, f Filter) error {
	filter := buildFilter(f)
	if filter == nil {
		filter = &pb.Filter{}
	}
	_, err := s.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: collection,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Filter{Filter: filter},
		},
	})
	if status.Code(err) == codes.NotFound {
		return nil
	}
	return mapGRPCErr(err)
}

func (s *QdrantStore) Close() error {
	return s.conn.Close()
}

func (s *QdrantStore) ensureCollection(ctx context.Context, name string, dim int) error {
	s.mu.Lock()
	exists := s.known[name]
	s.mu.Unlock()
	if exists {
		return nil
	}

	_, err := s.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: name,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(dim),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		switch status.Code(err) {
		case codes.AlreadyExists, codes.InvalidArgument:
			// Collection exists; older Qdrant versions report the duplicate
			// as InvalidArgument.
		default:
			return mapGRPCErr(err)
		}
	}

	s.mu.Lock()
	s.known[name] = true
	s.mu.Unlock()
	return nil
}

func buildFilter(f Filter) *pb.Filter {
	var ids []string
	if f.FileID != "" {
		ids = append(ids, f.FileID)
	}
	ids = append(ids, f.FileIDs...)
	if len(ids) == 0 {
		return nil
	}
	return &pb.Filter{
		Must: []*pb.Condition{
			{
				ConditionOneOf: &pb.Condition_Field{
					Field: &pb.FieldCondition{
						Key: "file_id",
						Match: &pb.Match{
							MatchValue: &pb.Match_Keywords{
								Keywords: &pb.RepeatedStrings{Strings: ids},
							},
						},
					},
				},
			},
		},
	}
}

func chunkFromPayload(payload map[string]*pb.Value) Chunk {
	var c Chunk
	for k, v := range payload {
		switch k {
		case "content":
			c.Text = v.GetStringValue()
		case "chunk_id":
			c.ID = v.GetStringValue()
		case "file_id":
			c.FileID = v.GetStringValue()
		case "user_id":
			c.UserID = v.GetStringValue()
		case "page_label":
			c.PageLabel = v.GetStringValue()
		case "page":
			c.Page = int(v.GetIntegerValue())
		case "chunk_index":
			c.ChunkIndex = int(v.GetIntegerValue())
		}
	}
	return c
}

func mapGRPCErr(err error) error {
	if err == nil {
		return nil
	}
	if status.Code(err) == codes.Unavailable {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}

var _ Store = (*QdrantStore)(nil)
