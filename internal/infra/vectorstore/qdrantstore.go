package vectorstore

import (
	"context"
	"fmt"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// QdrantStore implements Store against a standalone Qdrant instance, for
// installations that want a dedicated vector engine instead of pgvector.
type QdrantStore struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
}

func NewQdrantStore(addr string) (*QdrantStore, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("vectorstore: dial qdrant %s: %w", addr, err)
	}
	return &QdrantStore{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
	}, nil
}

func (s *QdrantStore) Close() error { return s.conn.Close() }

func (s *QdrantStore) IndexExists(ctx context.Context, collection string) (bool, error) {
	list, err := s.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return false, fmt.Errorf("IndexExists: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == collection {
			return true, nil
		}
	}
	return false, nil
}

func (s *QdrantStore) CreateIndex(ctx context.Context, collection string, dim int, metric string) error {
	distance := pb.Distance_Cosine
	if metric == "dot" {
		distance = pb.Distance_Dot
	} else if metric == "euclidean" {
		distance = pb.Distance_Euclid
	}

	_, err := s.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{Size: uint64(dim), Distance: distance},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("CreateIndex: %w", err)
	}
	return nil
}

func (s *QdrantStore) Upsert(ctx context.Context, collection string, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	points := make([]*pb.PointStruct, len(records))
	for i, r := range records {
		points[i] = &pb.PointStruct{
			Id:      &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: r.ID}},
			Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: r.Vector}}},
			Payload: toQdrantPayload(r.Metadata),
		}
	}
	wait := true
	_, err := s.points.Upsert(ctx, &pb.UpsertPoints{CollectionName: collection, Wait: &wait, Points: points})
	if err != nil {
		return fmt.Errorf("Upsert: %w", err)
	}
	return nil
}

func (s *QdrantStore) Search(ctx context.Context, collection string, query []float32, topK int, filter map[string]any) ([]SearchHit, error) {
	req := &pb.SearchPoints{
		CollectionName: collection,
		Vector:         query,
		Limit:          uint64(topK),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	}
	if len(filter) > 0 {
		must := make([]*pb.Condition, 0, len(filter))
		for k, v := range filter {
			must = append(must, &pb.Condition{
				ConditionOneOf: &pb.Condition_Field{
					Field: &pb.FieldCondition{Key: k, Match: &pb.Match{MatchValue: &pb.Match_Keyword{Keyword: fmt.Sprint(v)}}},
				},
			})
		}
		req.Filter = &pb.Filter{Must: must}
	}

	resp, err := s.points.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Search: %w", err)
	}
	hits := make([]SearchHit, len(resp.GetResult()))
	for i, r := range resp.GetResult() {
		hits[i] = SearchHit{
			ID:       r.GetId().GetUuid(),
			Score:    float64(r.GetScore()),
			Metadata: fromQdrantPayload(r.GetPayload()),
		}
	}
	return hits, nil
}

func (s *QdrantStore) Get(ctx context.Context, collection string, ids []string) ([]Record, error) {
	pointIDs := make([]*pb.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: id}}
	}
	withVectors := true
	withPayload := true
	resp, err := s.points.Get(ctx, &pb.GetPoints{
		CollectionName: collection,
		Ids:            pointIDs,
		WithVectors:    &pb.WithVectorsSelector{SelectorOptions: &pb.WithVectorsSelector_Enable{Enable: withVectors}},
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: withPayload}},
	})
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	records := make([]Record, len(resp.GetResult()))
	for i, p := range resp.GetResult() {
		records[i] = Record{
			ID:       p.GetId().GetUuid(),
			Vector:   p.GetVectors().GetVector().GetData(),
			Metadata: fromQdrantPayload(p.GetPayload()),
		}
	}
	return records, nil
}

func (s *QdrantStore) Count(ctx context.Context, collection string, filter map[string]any) (int64, error) {
	req := &pb.CountPoints{CollectionName: collection}
	if len(filter) > 0 {
		must := make([]*pb.Condition, 0, len(filter))
		for k, v := range filter {
			must = append(must, &pb.Condition{
				ConditionOneOf: &pb.Condition_Field{
					Field: &pb.FieldCondition{Key: k, Match: &pb.Match{MatchValue: &pb.Match_Keyword{Keyword: fmt.Sprint(v)}}},
				},
			})
		}
		req.Filter = &pb.Filter{Must: must}
	}
	resp, err := s.points.Count(ctx, req)
	if err != nil {
		return 0, fmt.Errorf("Count: %w", err)
	}
	return int64(resp.GetResult().GetCount()), nil
}

func toQdrantPayload(meta map[string]any) map[string]*pb.Value {
	payload := make(map[string]*pb.Value, len(meta))
	for k, v := range meta {
		switch tv := v.(type) {
		case string:
			payload[k] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: tv}}
		case int:
			payload[k] = &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: int64(tv)}}
		case int64:
			payload[k] = &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: tv}}
		case float64:
			payload[k] = &pb.Value{Kind: &pb.Value_DoubleValue{DoubleValue: tv}}
		case bool:
			payload[k] = &pb.Value{Kind: &pb.Value_BoolValue{BoolValue: tv}}
		default:
			payload[k] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: fmt.Sprint(tv)}}
		}
	}
	return payload
}

func fromQdrantPayload(payload map[string]*pb.Value) map[string]any {
	meta := make(map[string]any, len(payload))
	for k, v := range payload {
		switch kind := v.GetKind().(type) {
		case *pb.Value_StringValue:
			meta[k] = kind.StringValue
		case *pb.Value_IntegerValue:
			meta[k] = kind.IntegerValue
		case *pb.Value_DoubleValue:
			meta[k] = kind.DoubleValue
		case *pb.Value_BoolValue:
			meta[k] = kind.BoolValue
		}
	}
	return meta
}
