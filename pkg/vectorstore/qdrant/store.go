package qdrant

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/example/krishimitra/pkg/coreerrors"
	"github.com/example/krishimitra/pkg/vectorstore"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

// Store implements the vectorstore.Store interface for Qdrant.
//
// Collections are addressed through a stable alias rather than a raw
// collection name; Rebuild creates a new generation under the hood
// and atomically repoints the alias, so concurrent readers never
// observe a partially-rebuilt collection — every search sees either
// all-old or all-new contents, never in between.
type Store struct {
	client      pb.PointsClient
	collections pb.CollectionsClient
	conn        *grpc.ClientConn
	config      *vectorstore.Config

	mu   sync.Mutex
	dims map[string]int // alias name -> declared embedding dimension
	gen  map[string]int // alias name -> current generation (0 = pre-Rebuild raw collection)
}

// NewStore creates a new Qdrant vector store instance.
// address: Qdrant server address (e.g., "localhost:6334")
// config: Configuration options (can be nil for defaults)
func NewStore(address string, config *vectorstore.Config) (*Store, error) {
	if address == "" {
		return nil, errors.New("Qdrant address is required")
	}

	// Apply default config if not provided
	if config == nil {
		config = &vectorstore.Config{
			Type:              "qdrant",
			Address:           address,
			TimeoutSeconds:    30,
			DefaultCollection: "documents",
		}
	}

	// Create gRPC connection
	// Note: In production, use proper TLS credentials
	conn, err := grpc.NewClient(address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant: %w", err)
	}

	// Create clients
	pointsClient := pb.NewPointsClient(conn)
	collectionsClient := pb.NewCollectionsClient(conn)

	return &Store{
		client:      pointsClient,
		collections: collectionsClient,
		conn:        conn,
		config:      config,
		dims:        make(map[string]int),
		gen:         make(map[string]int),
	}, nil
}

// grpcErrKind maps a gRPC status code to the coreerrors taxonomy.
func grpcErrKind(err error) coreerrors.Kind {
	st, ok := status.FromError(err)
	if !ok {
		return coreerrors.UpstreamUnavailable
	}
	switch st.Code() {
	case codes.NotFound:
		return coreerrors.NotFound
	case codes.InvalidArgument, codes.FailedPrecondition, codes.OutOfRange:
		return coreerrors.InvalidArgument
	case codes.AlreadyExists:
		return coreerrors.DimensionConflict
	case codes.Canceled:
		return coreerrors.Cancelled
	case codes.ResourceExhausted:
		return coreerrors.UpstreamBusy
	case codes.DeadlineExceeded, codes.Unavailable:
		return coreerrors.UpstreamUnavailable
	default:
		return coreerrors.UpstreamUnavailable
	}
}

var _ vectorstore.Store = (*Store)(nil)

// generationName returns the underlying collection name backing alias
// n's current generation g.
func generationName(alias string, gen int) string {
	return fmt.Sprintf("%s__v%d", alias, gen)
}

// Insert adds documents to the vector store.
func (s *Store) Insert(ctx context.Context, req *vectorstore.InsertRequest) (*vectorstore.InsertResponse, error) {
	if req == nil {
		return nil, coreerrors.New(coreerrors.InvalidArgument, "qdrant.Insert", "insert request cannot be nil")
	}
	if len(req.Documents) == 0 {
		return nil, coreerrors.New(coreerrors.InvalidArgument, "qdrant.Insert", "no documents to insert")
	}

	collectionName := req.CollectionName
	if collectionName == "" {
		collectionName = s.config.DefaultCollection
	}

	s.mu.Lock()
	wantDim, haveDim := s.dims[collectionName]
	s.mu.Unlock()
	if haveDim {
		for _, doc := range req.Documents {
			if len(doc.Embedding) != wantDim {
				return nil, coreerrors.New(coreerrors.ShapeMismatch, "qdrant.Insert",
					fmt.Sprintf("document %q has embedding of length %d, collection %q expects %d", doc.ID, len(doc.Embedding), collectionName, wantDim))
			}
		}
	}

	// Convert documents to Qdrant points
	points := make([]*pb.PointStruct, 0, len(req.Documents))
	insertedIDs := make([]string, 0, len(req.Documents))

	for _, doc := range req.Documents {
		// Generate ID if not provided
		id := doc.ID
		if id == "" {
			id = uuid.New().String()
		}

		// Convert metadata to payload
		payload := make(map[string]*pb.Value)
		payload["content"] = &pb.Value{
			Kind: &pb.Value_StringValue{StringValue: doc.Content},
		}

		// Add all metadata fields
		for k, v := range doc.Metadata {
			payload[k] = convertToQdrantValue(v)
		}

		point := &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: id},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: doc.Embedding},
				},
			},
			Payload: payload,
		}

		points = append(points, point)
		insertedIDs = append(insertedIDs, id)
	}

	// Upsert points
	_, err := s.client.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: collectionName,
		Points:         points,
	})

	if err != nil {
		return nil, coreerrors.Wrap(grpcErrKind(err), "qdrant.Insert", err)
	}

	return &vectorstore.InsertResponse{
		InsertedIDs: insertedIDs,
		Errors:      []vectorstore.InsertError{},
	}, nil
}

// Search performs a vector similarity search.
func (s *Store) Search(ctx context.Context, req *vectorstore.SearchRequest) (*vectorstore.SearchResponse, error) {
	if req == nil {
		return nil, coreerrors.New(coreerrors.InvalidArgument, "qdrant.Search", "search request cannot be nil")
	}
	if len(req.Vector) == 0 {
		return nil, coreerrors.New(coreerrors.InvalidArgument, "qdrant.Search", "search vector cannot be empty")
	}
	if req.TopK <= 0 {
		return &vectorstore.SearchResponse{Documents: []vectorstore.Document{}}, nil
	}

	collectionName := req.CollectionName
	if collectionName == "" {
		collectionName = s.config.DefaultCollection
	}

	if s.config.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(s.config.TimeoutSeconds)*time.Second)
		defer cancel()
	}

	// Build search request
	searchReq := &pb.SearchPoints{
		CollectionName: collectionName,
		Vector:         req.Vector,
		Limit:          uint64(req.TopK),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
		ScoreThreshold: &req.MinScore,
	}

	// Add filter if provided
	if req.Filter != nil && len(req.Filter) > 0 {
		searchReq.Filter = convertToQdrantFilter(req.Filter)
	}

	// Execute search
	resp, err := s.client.Search(ctx, searchReq)
	if err != nil {
		return nil, coreerrors.Wrap(grpcErrKind(err), "qdrant.Search", err)
	}

	// Convert results
	documents := make([]vectorstore.Document, 0, len(resp.Result))
	for _, hit := range resp.Result {
		doc := vectorstore.Document{
			ID:       hit.Id.GetUuid(),
			Score:    hit.Score,
			Metadata: make(map[string]interface{}),
		}

		// Extract content and metadata from payload
		if hit.Payload != nil {
			if contentVal, ok := hit.Payload["content"]; ok {
				doc.Content = contentVal.GetStringValue()
			}

			// Convert all payload fields to metadata
			for k, v := range hit.Payload {
				if k != "content" {
					doc.Metadata[k] = convertFromQdrantValue(v)
				}
			}
		}

		documents = append(documents, doc)
	}

	return &vectorstore.SearchResponse{
		Documents:    documents,
		TotalResults: len(documents),
	}, nil
}

// Delete removes documents from the vector store.
func (s *Store) Delete(ctx context.Context, req *vectorstore.DeleteRequest) (*vectorstore.DeleteResponse, error) {
	if req == nil {
		return nil, coreerrors.New(coreerrors.InvalidArgument, "qdrant.Delete", "delete request cannot be nil")
	}

	collectionName := req.CollectionName
	if collectionName == "" {
		collectionName = s.config.DefaultCollection
	}

	var pointsSelector *pb.PointsSelector

	if len(req.IDs) > 0 {
		// Delete by IDs
		uuids := make([]string, len(req.IDs))
		copy(uuids, req.IDs)

		pointsSelector = &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Points{
				Points: &pb.PointsIdsList{
					Ids: convertToQdrantIDs(uuids),
				},
			},
		}
	} else if req.Filter != nil {
		// Delete by filter
		pointsSelector = &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Filter{
				Filter: convertToQdrantFilter(req.Filter),
			},
		}
	} else {
		return nil, coreerrors.New(coreerrors.InvalidArgument, "qdrant.Delete", "either IDs or Filter must be provided")
	}

	// Execute delete
	resp, err := s.client.Delete(ctx, &pb.DeletePoints{
		CollectionName: collectionName,
		Points:         pointsSelector,
	})

	if err != nil {
		return nil, coreerrors.Wrap(grpcErrKind(err), "qdrant.Delete", err)
	}

	return &vectorstore.DeleteResponse{
		DeletedCount: int(resp.Result.GetOperationId()),
	}, nil
}

// Get retrieves specific documents by ID.
func (s *Store) Get(ctx context.Context, collectionName string, ids []string) ([]vectorstore.Document, error) {
	if collectionName == "" {
		collectionName = s.config.DefaultCollection
	}
	if len(ids) == 0 {
		return []vectorstore.Document{}, nil
	}

	// Retrieve points
	resp, err := s.client.Get(ctx, &pb.GetPoints{
		CollectionName: collectionName,
		Ids:            convertToQdrantIDs(ids),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
		WithVectors:    &pb.WithVectorsSelector{SelectorOptions: &pb.WithVectorsSelector_Enable{Enable: true}},
	})

	if err != nil {
		return nil, coreerrors.Wrap(grpcErrKind(err), "qdrant.Get", err)
	}

	// Convert results
	documents := make([]vectorstore.Document, 0, len(resp.Result))
	for _, point := range resp.Result {
		doc := vectorstore.Document{
			ID:       point.Id.GetUuid(),
			Metadata: make(map[string]interface{}),
		}

		// Extract vector
		if vector := point.Vectors.GetVector(); vector != nil {
			doc.Embedding = vector.Data
		}

		// Extract content and metadata
		if point.Payload != nil {
			if contentVal, ok := point.Payload["content"]; ok {
				doc.Content = contentVal.GetStringValue()
			}

			for k, v := range point.Payload {
				if k != "content" {
					doc.Metadata[k] = convertFromQdrantValue(v)
				}
			}
		}

		documents = append(documents, doc)
	}

	return documents, nil
}

// CreateCollection creates a new collection/index with specified dimensions.
func (s *Store) CreateCollection(ctx context.Context, name string, dimension int, metadata map[string]interface{}) error {
	if name == "" {
		return coreerrors.New(coreerrors.InvalidArgument, "qdrant.CreateCollection", "collection name is required")
	}
	if dimension <= 0 {
		return coreerrors.New(coreerrors.InvalidArgument, "qdrant.CreateCollection", "dimension must be positive")
	}

	s.mu.Lock()
	existingDim, known := s.dims[name]
	s.mu.Unlock()
	if known && existingDim != dimension {
		return coreerrors.New(coreerrors.DimensionConflict, "qdrant.CreateCollection",
			fmt.Sprintf("collection %q already declared with dimension %d, cannot redeclare as %d", name, existingDim, dimension))
	}

	// name is always an alias, never a raw collection, so that the
	// first Rebuild for it can repoint the alias to a new generation
	// instead of colliding with a collection already occupying name in
	// Qdrant's shared collection/alias namespace. Generation 0 plays
	// the role Rebuild's later generations play.
	genZero := generationName(name, 0)
	_, err := s.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: genZero,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(dimension),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})

	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			info, infoErr := s.GetCollection(ctx, name)
			if infoErr == nil && info.VectorDimension != dimension {
				return coreerrors.New(coreerrors.DimensionConflict, "qdrant.CreateCollection",
					fmt.Sprintf("collection %q already exists with dimension %d, cannot redeclare as %d", name, info.VectorDimension, dimension))
			}
		} else {
			return coreerrors.Wrap(grpcErrKind(err), "qdrant.CreateCollection", err)
		}
	} else {
		if _, err := s.collections.UpdateAliases(ctx, &pb.ChangeAliases{
			Actions: []*pb.AliasOperations{{
				Action: &pb.AliasOperations_CreateAlias{
					CreateAlias: &pb.CreateAlias{CollectionName: genZero, AliasName: name},
				},
			}},
		}); err != nil {
			_, _ = s.collections.Delete(ctx, &pb.DeleteCollection{CollectionName: genZero})
			return coreerrors.Wrap(grpcErrKind(err), "qdrant.CreateCollection", fmt.Errorf("alias generation 0: %w", err))
		}
	}

	s.mu.Lock()
	s.dims[name] = dimension
	s.gen[name] = 0
	s.mu.Unlock()

	return nil
}

// DeleteCollection removes an entire collection/index.
func (s *Store) DeleteCollection(ctx context.Context, name string) error {
	if name == "" {
		return coreerrors.New(coreerrors.InvalidArgument, "qdrant.DeleteCollection", "collection name is required")
	}

	_, err := s.collections.Delete(ctx, &pb.DeleteCollection{
		CollectionName: name,
	})

	if err != nil {
		return coreerrors.Wrap(grpcErrKind(err), "qdrant.DeleteCollection", err)
	}

	s.mu.Lock()
	delete(s.dims, name)
	delete(s.gen, name)
	s.mu.Unlock()

	return nil
}

// ListCollections returns information about all collections.
func (s *Store) ListCollections(ctx context.Context) ([]vectorstore.CollectionInfo, error) {
	resp, err := s.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return nil, coreerrors.Wrap(grpcErrKind(err), "qdrant.ListCollections", err)
	}

	collections := make([]vectorstore.CollectionInfo, 0, len(resp.Collections))
	for _, col := range resp.Collections {
		collections = append(collections, vectorstore.CollectionInfo{
			Name:     col.Name,
			Metadata: make(map[string]interface{}),
		})
	}

	return collections, nil
}

// GetCollection returns information about a specific collection.
func (s *Store) GetCollection(ctx context.Context, name string) (*vectorstore.CollectionInfo, error) {
	if name == "" {
		return nil, coreerrors.New(coreerrors.InvalidArgument, "qdrant.GetCollection", "collection name is required")
	}

	resp, err := s.collections.Get(ctx, &pb.GetCollectionInfoRequest{
		CollectionName: name,
	})

	if err != nil {
		return nil, coreerrors.Wrap(grpcErrKind(err), "qdrant.GetCollection", err)
	}

	info := &vectorstore.CollectionInfo{
		Name:          name, // Use the requested name
		DocumentCount: int(*resp.Result.PointsCount),
		Metadata:      make(map[string]interface{}),
	}

	// Extract vector dimension
	if params := resp.Result.Config.Params.VectorsConfig.GetParams(); params != nil {
		info.VectorDimension = int(params.Size)
	}

	return info, nil
}

// Rebuild atomically replaces the collection behind alias name with a
// freshly populated generation. A new generation is created under
// generationName, filled with docs, and the alias is repointed to it
// in a single UpdateAliases call; readers resolving the alias either
// still see the old generation or already see the new one, never a
// collection half-filled with docs. The superseded generation is
// dropped once the swap succeeds.
func (s *Store) Rebuild(ctx context.Context, name string, docs []vectorstore.Document) error {
	if name == "" {
		return coreerrors.New(coreerrors.InvalidArgument, "qdrant.Rebuild", "collection name is required")
	}

	s.mu.Lock()
	dim, haveDim := s.dims[name]
	gen := s.gen[name]
	s.mu.Unlock()

	if !haveDim {
		info, err := s.GetCollection(ctx, name)
		if err != nil {
			return coreerrors.Wrap(coreerrors.NotFound, "qdrant.Rebuild", err)
		}
		dim = info.VectorDimension
	}

	nextGen := gen + 1
	newCollection := generationName(name, nextGen)

	if _, err := s.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: newCollection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{Size: uint64(dim), Distance: pb.Distance_Cosine},
			},
		},
	}); err != nil {
		return coreerrors.Wrap(grpcErrKind(err), "qdrant.Rebuild", fmt.Errorf("create generation %d: %w", nextGen, err))
	}

	// Insert's ShapeMismatch check keys off s.dims[CollectionName], but
	// that map only tracks the public alias, not the generation
	// collection being populated here. Register the generation's
	// dimension so the same pre-gRPC check Insert always runs for
	// ordinary callers also runs for Rebuild.
	s.mu.Lock()
	s.dims[newCollection] = dim
	s.mu.Unlock()

	if len(docs) > 0 {
		if _, err := s.Insert(ctx, &vectorstore.InsertRequest{Documents: docs, CollectionName: newCollection}); err != nil {
			_, _ = s.collections.Delete(ctx, &pb.DeleteCollection{CollectionName: newCollection})
			s.mu.Lock()
			delete(s.dims, newCollection)
			s.mu.Unlock()
			return fmt.Errorf("qdrant.Rebuild: populate generation %d: %w", nextGen, err)
		}
	}

	// name already resolves to some generation's alias by this point —
	// either CreateCollection established generation 0 under it, or an
	// earlier Rebuild did — so the old alias is always dropped in the
	// same batch that creates the new one, never only on gen>0.
	actions := []*pb.AliasOperations{
		{
			Action: &pb.AliasOperations_DeleteAlias{
				DeleteAlias: &pb.DeleteAlias{AliasName: name},
			},
		},
		{
			Action: &pb.AliasOperations_CreateAlias{
				CreateAlias: &pb.CreateAlias{CollectionName: newCollection, AliasName: name},
			},
		},
	}

	if _, err := s.collections.UpdateAliases(ctx, &pb.ChangeAliases{Actions: actions}); err != nil {
		_, _ = s.collections.Delete(ctx, &pb.DeleteCollection{CollectionName: newCollection})
		s.mu.Lock()
		delete(s.dims, newCollection)
		s.mu.Unlock()
		return coreerrors.Wrap(grpcErrKind(err), "qdrant.Rebuild", fmt.Errorf("swap alias to generation %d: %w", nextGen, err))
	}

	s.mu.Lock()
	s.gen[name] = nextGen
	s.dims[name] = dim
	delete(s.dims, newCollection)
	s.mu.Unlock()

	// Generation 0 is a real collection too (CreateCollection creates
	// it), so the superseded generation is always dropped, not just
	// for gen>0.
	// Best-effort: the alias swap already succeeded, so a failure here
	// only leaves a superseded generation around as garbage.
	_, _ = s.collections.Delete(ctx, &pb.DeleteCollection{CollectionName: generationName(name, gen)})

	return nil
}

// Close closes the connection to the vector store.
func (s *Store) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// Name returns the vector store implementation name.
func (s *Store) Name() string {
	return "qdrant"
}

// Helper functions for type conversion

func convertToQdrantValue(v interface{}) *pb.Value {
	switch val := v.(type) {
	case string:
		return &pb.Value{Kind: &pb.Value_StringValue{StringValue: val}}
	case int:
		return &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: int64(val)}}
	case int64:
		return &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: val}}
	case float64:
		return &pb.Value{Kind: &pb.Value_DoubleValue{DoubleValue: val}}
	case bool:
		return &pb.Value{Kind: &pb.Value_BoolValue{BoolValue: val}}
	default:
		// Default to string representation
		return &pb.Value{Kind: &pb.Value_StringValue{StringValue: fmt.Sprintf("%v", val)}}
	}
}

func convertFromQdrantValue(v *pb.Value) interface{} {
	if v == nil {
		return nil
	}

	switch kind := v.Kind.(type) {
	case *pb.Value_StringValue:
		return kind.StringValue
	case *pb.Value_IntegerValue:
		return kind.IntegerValue
	case *pb.Value_DoubleValue:
		return kind.DoubleValue
	case *pb.Value_BoolValue:
		return kind.BoolValue
	default:
		return nil
	}
}

func convertToQdrantIDs(ids []string) []*pb.PointId {
	result := make([]*pb.PointId, len(ids))
	for i, id := range ids {
		result[i] = &pb.PointId{
			PointIdOptions: &pb.PointId_Uuid{Uuid: id},
		}
	}
	return result
}

func convertToQdrantFilter(filter vectorstore.Filter) *pb.Filter {
	// Basic filter conversion - can be extended for more complex filters
	conditions := make([]*pb.Condition, 0, len(filter))

	for key, value := range filter {
		condition := &pb.Condition{
			ConditionOneOf: &pb.Condition_Field{
				Field: &pb.FieldCondition{
					Key: key,
					Match: &pb.Match{
						MatchValue: &pb.Match_Keyword{
							Keyword: fmt.Sprintf("%v", value),
						},
					},
				},
			},
		}
		conditions = append(conditions, condition)
	}

	return &pb.Filter{
		Must: conditions,
	}
}
