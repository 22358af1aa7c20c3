// Package semantic persists knowledge-base chunk embeddings in Qdrant and
// serves per-knowledge-base similarity search over them.
package semantic

import (
	"context"
	"fmt"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

type pointsClient interface {
	Upsert(ctx context.Context, in *pb.UpsertPoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Delete(ctx context.Context, in *pb.DeletePoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Search(ctx context.Context, in *pb.SearchPoints, opts ...grpc.CallOption) (*pb.SearchResponse, error)
}

type collectionsClient interface {
	List(ctx context.Context, in *pb.ListCollectionsRequest, opts ...grpc.CallOption) (*pb.ListCollectionsResponse, error)
	Create(ctx context.Context, in *pb.CreateCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
	Delete(ctx context.Context, in *pb.DeleteCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
}

// VectorStore owns one Qdrant collection of knowledge-base chunks.
type VectorStore struct {
	conn        *grpc.ClientConn
	points      pointsClient
	collections collectionsClient
	collection  string
}

// New dials Qdrant's gRPC port at addr.
func New(addr, collection string) (*VectorStore, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("semantic: dial qdrant %s: %w", addr, err)
	}
	vs := NewWithClients(pb.NewPointsClient(conn), pb.NewCollectionsClient(conn), collection)
	vs.conn = conn
	return vs, nil
}

// NewWithClients builds a VectorStore on existing clients. Close is a no-op.
func NewWithClients(points pointsClient, collections collectionsClient, collection string) *VectorStore {
	return &VectorStore{points: points, collections: collections, collection: collection}
}

// Close closes the gRPC connection opened by New.
func (v *VectorStore) Close() error {
	if v.conn == nil {
		return nil
	}
	return v.conn.Close()
}

// EnsureCollection creates the collection with cosine distance and the given
// vector size unless it already exists.
func (v *VectorStore) EnsureCollection(ctx context.Context, dims int) error {
	list, err := v.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("semantic: list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == v.collection {
			return nil
		}
	}

	params := &pb.VectorParams{Size: uint64(dims), Distance: pb.Distance_Cosine}
	_, err = v.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: v.collection,
		VectorsConfig:  &pb.VectorsConfig{Config: &pb.VectorsConfig_Params{Params: params}},
	})
	if err != nil {
		return fmt.Errorf("semantic: create collection %s: %w", v.collection, err)
	}
	return nil
}

// DeleteCollection drops the collection and every point in it.
func (v *VectorStore) DeleteCollection(ctx context.Context) error {
	if _, err := v.collections.Delete(ctx, &pb.DeleteCollection{CollectionName: v.collection}); err != nil {
		return fmt.Errorf("semantic: delete collection %s: %w", v.collection, err)
	}
	return nil
}

// Upsert writes records and waits for Qdrant to apply them.
func (v *VectorStore) Upsert(ctx context.Context, records []VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	points := make([]*pb.PointStruct, len(records))
	for i, r := range records {
		points[i] = &pb.PointStruct{
			Id:      &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: r.ID}},
			Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: r.Embedding}}},
			Payload: map[string]*pb.Value{
				KeyKBID:       stringValue(r.KBID),
				KeyChunkIndex: {Kind: &pb.Value_IntegerValue{IntegerValue: int64(r.ChunkIndex)}},
				KeyContent:    stringValue(r.Content),
				KeyHash:       stringValue(r.Hash),
			},
		}
	}

	wait := true
	_, err := v.points.Upsert(ctx, &pb.UpsertPoints{CollectionName: v.collection, Wait: &wait, Points: points})
	if err != nil {
		return fmt.Errorf("semantic: upsert %d chunks: %w", len(records), err)
	}
	return nil
}

// DeleteByKB removes every chunk of one knowledge base.
func (v *VectorStore) DeleteByKB(ctx context.Context, kbID string) error {
	wait := true
	_, err := v.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: v.collection,
		Wait:           &wait,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Filter{Filter: kbFilter(kbID)},
		},
	})
	if err != nil {
		return fmt.Errorf("semantic: delete kb %s: %w", kbID, err)
	}
	return nil
}

// DeleteStale removes the chunks of one knowledge base that were written for
// content other than hash.
func (v *VectorStore) DeleteStale(ctx context.Context, kbID, hash string) error {
	filter := kbFilter(kbID)
	filter.MustNot = []*pb.Condition{keywordCondition(KeyHash, hash)}
	wait := true
	_, err := v.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: v.collection,
		Wait:           &wait,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Filter{Filter: filter},
		},
	})
	if err != nil {
		return fmt.Errorf("semantic: delete stale %s: %w", kbID, err)
	}
	return nil
}

// SearchKB returns the topK chunks of one knowledge base nearest to embedding.
func (v *VectorStore) SearchKB(ctx context.Context, kbID string, embedding []float32, topK int) ([]SearchResult, error) {
	return v.search(ctx, embedding, topK, kbFilter(kbID))
}

func (v *VectorStore) search(ctx context.Context, embedding []float32, topK int, filter *pb.Filter) ([]SearchResult, error) {
	resp, err := v.points.Search(ctx, &pb.SearchPoints{
		CollectionName: v.collection,
		Vector:         embedding,
		Limit:          uint64(topK),
		Filter:         filter,
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("semantic: search: %w", err)
	}

	out := make([]SearchResult, 0, len(resp.GetResult()))
	for _, p := range resp.GetResult() {
		pl := p.GetPayload()
		out = append(out, SearchResult{
			ID:         p.GetId().GetUuid(),
			Score:      p.GetScore(),
			KBID:       pl[KeyKBID].GetStringValue(),
			ChunkIndex: int(pl[KeyChunkIndex].GetIntegerValue()),
			Content:    pl[KeyContent].GetStringValue(),
			Hash:       pl[KeyHash].GetStringValue(),
		})
	}
	return out, nil
}

func stringValue(s string) *pb.Value {
	return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
}

func kbFilter(kbID string) *pb.Filter {
	return &pb.Filter{Must: []*pb.Condition{keywordCondition(KeyKBID, kbID)}}
}

func keywordCondition(key, value string) *pb.Condition {
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{Field: &pb.FieldCondition{
			Key:   key,
			Match: &pb.Match{MatchValue: &pb.Match_Keyword{Keyword: value}},
		}},
	}
}
