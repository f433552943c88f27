package vectorstore

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/fyrsmithlabs/docrag/internal/document"
	"github.com/fyrsmithlabs/docrag/internal/retrieval"
)

// maxSearchLimit bounds an unlimited search.
const maxSearchLimit = 10000

// QdrantConfig holds configuration for the Qdrant gRPC index.
type QdrantConfig struct {
	// Host is the Qdrant server hostname or IP address.
	// Default: "localhost"
	Host string

	// Port is the Qdrant gRPC port (NOT the HTTP REST port).
	// Default: 6334
	Port int

	// APIKey is the optional API key.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool

	// CollectionPrefix prefixes the per-dimension collections.
	// Default: "docrag_chunks"
	CollectionPrefix string

	// MaxRetries is the maximum number of retries for transient failures.
	// Default: 3
	MaxRetries int

	// RetryBackoff is the initial backoff, doubled on each retry.
	// Default: 1 second
	RetryBackoff time.Duration

	// MaxMessageSize is the maximum gRPC message size in bytes.
	// Default: 50MB
	MaxMessageSize int
}

// ApplyDefaults sets default values for unset fields.
func (c *QdrantConfig) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
	if c.CollectionPrefix == "" {
		c.CollectionPrefix = DefaultCollectionPrefix
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = time.Second
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = 50 * 1024 * 1024
	}
}

// Validate validates the configuration.
func (c QdrantConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: host required", ErrInvalidConfig)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: invalid port: %d", ErrInvalidConfig, c.Port)
	}
	if err := ValidateCollectionName(CollectionName(c.CollectionPrefix, 0)); err != nil {
		return fmt.Errorf("%w: collection prefix: %v", ErrInvalidConfig, err)
	}
	return nil
}

// qdrantAPI is the subset of *qdrant.Client used by the index.
type qdrantAPI interface {
	HealthCheck(ctx context.Context) (*qdrant.HealthCheckReply, error)
	ListCollections(ctx context.Context) ([]string, error)
	GetCollectionInfo(ctx context.Context, name string) (*qdrant.CollectionInfo, error)
	CreateCollection(ctx context.Context, req *qdrant.CreateCollection) error
	DeleteCollection(ctx context.Context, name string) error
	Upsert(ctx context.Context, req *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Query(ctx context.Context, req *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
	Delete(ctx context.Context, req *qdrant.DeletePoints) (*qdrant.UpdateResult, error)
	Close() error
}

// Qdrant is an Index backed by a Qdrant server.
type Qdrant struct {
	client qdrantAPI
	config QdrantConfig
	logger *zap.Logger

	// collections caches the names known to exist.
	collections sync.Map
}

// NewQdrant connects to Qdrant and performs a health check.
func NewQdrant(config QdrantConfig, logger *zap.Logger) (*Qdrant, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	if !config.UseTLS {
		logger.Warn("qdrant gRPC using plaintext (TLS disabled)", zap.String("host", config.Host))
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   config.Host,
		Port:   config.Port,
		APIKey: config.APIKey,
		UseTLS: config.UseTLS,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(config.MaxMessageSize),
				grpc.MaxCallSendMsgSize(config.MaxMessageSize),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	s := newQdrant(client, config, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.HealthCheck(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: health check: %v", ErrConnectionFailed, err)
	}

	logger.Info("qdrant index initialized",
		zap.String("host", config.Host),
		zap.Int("port", config.Port),
		zap.String("collection_prefix", config.CollectionPrefix),
	)
	return s, nil
}

func newQdrant(client qdrantAPI, config QdrantConfig, logger *zap.Logger) *Qdrant {
	return &Qdrant{client: client, config: config, logger: logger}
}

// IsTransientError reports whether a gRPC error is worth retrying.
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	st, ok := status.FromError(err)
	if !ok {
		return false
	}
	switch st.Code() {
	case grpccodes.Unavailable, grpccodes.DeadlineExceeded, grpccodes.Aborted, grpccodes.ResourceExhausted:
		return true
	default:
		return false
	}
}

func isNotFound(err error) bool {
	st, ok := status.FromError(err)
	return ok && st.Code() == grpccodes.NotFound
}

// retry runs operation with exponential backoff on transient errors.
func (s *Qdrant) retry(ctx context.Context, name string, operation func() error) error {
	backoff := s.config.RetryBackoff
	for attempt := 0; ; attempt++ {
		err := operation()
		if err == nil {
			return nil
		}
		if !IsTransientError(err) {
			return fmt.Errorf("%s failed (permanent): %w", name, err)
		}
		if attempt >= s.config.MaxRetries {
			return fmt.Errorf("%s failed after %d retries: %w", name, s.config.MaxRetries, err)
		}
		s.logger.Debug("retrying qdrant operation",
			zap.String("operation", name),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s canceled: %w", name, ctx.Err())
		case <-time.After(backoff):
			backoff *= 2
		}
	}
}

// exists reports whether the collection exists, consulting the cache first.
func (s *Qdrant) exists(ctx context.Context, name string) (bool, error) {
	if _, ok := s.collections.Load(name); ok {
		return true, nil
	}
	var found bool
	err := s.retry(ctx, "get_collection_info", func() error {
		info, err := s.client.GetCollectionInfo(ctx, name)
		if err != nil {
			if isNotFound(err) {
				found = false
				return nil
			}
			return err
		}
		found = info != nil
		return nil
	})
	if err != nil {
		return false, err
	}
	if found {
		s.collections.Store(name, true)
	}
	return found, nil
}

func (s *Qdrant) ensureCollection(ctx context.Context, dim int) (string, error) {
	name := CollectionName(s.config.CollectionPrefix, dim)
	ok, err := s.exists(ctx, name)
	if err != nil {
		return "", err
	}
	if ok {
		return name, nil
	}
	err = s.retry(ctx, "create_collection", func() error {
		return s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: name,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(dim),
				Distance: qdrant.Distance_Cosine,
			}),
		})
	})
	if err != nil {
		return "", fmt.Errorf("creating collection %s: %w", name, err)
	}
	s.collections.Store(name, true)
	return name, nil
}

// PointID maps a chunk id onto a stable Qdrant point id.
func PointID(chunkID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("docrag:"+chunkID)).String()
}

func stringValue(s string) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: s}}
}

func toPoint(c document.Chunk) *qdrant.PointStruct {
	return &qdrant.PointStruct{
		Id:      qdrant.NewIDUUID(PointID(c.ID)),
		Vectors: qdrant.NewVectors(c.Embedding...),
		Payload: map[string]*qdrant.Value{
			keyChunkID:    stringValue(c.ID),
			keyDocumentID: stringValue(c.DocumentID),
			keyIndex:      {Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(c.Index)}},
			keySource:     stringValue(c.Source),
			keyText:       stringValue(c.Text),
		},
	}
}

func fromPoint(p *qdrant.ScoredPoint) retrieval.Scored {
	var c document.Chunk
	for k, v := range p.GetPayload() {
		switch k {
		case keyChunkID:
			c.ID = v.GetStringValue()
		case keyDocumentID:
			c.DocumentID = v.GetStringValue()
		case keyIndex:
			c.Index = int(v.GetIntegerValue())
		case keySource:
			c.Source = v.GetStringValue()
		case keyText:
			c.Text = v.GetStringValue()
		}
	}
	return retrieval.Scored{Chunk: c, Score: float64(p.GetScore())}
}

func documentFilter(documentID string) *qdrant.Filter {
	return &qdrant.Filter{
		Must: []*qdrant.Condition{{
			ConditionOneOf: &qdrant.Condition_Field{
				Field: &qdrant.FieldCondition{
					Key:   keyDocumentID,
					Match: &qdrant.Match{MatchValue: &qdrant.Match_Keyword{Keyword: documentID}},
				},
			},
		}},
	}
}

// Add implements Index.
func (s *Qdrant) Add(ctx context.Context, chunks []document.Chunk) (err error) {
	ctx, span := tracer.Start(ctx, "Qdrant.Add")
	defer span.End()
	defer func(start time.Time) { observe(BackendQdrant, "add", start, err) }(time.Now())

	dims, groups := groupByDimension(chunks)
	for _, dim := range dims {
		name, err := s.ensureCollection(ctx, dim)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}

		points := make([]*qdrant.PointStruct, len(groups[dim]))
		for i, c := range groups[dim] {
			points[i] = toPoint(c)
		}
		err = s.retry(ctx, "upsert", func() error {
			_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
				CollectionName: name,
				Points:         points,
			})
			return err
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("upserting points to collection %s: %w", name, err)
		}
	}

	span.SetAttributes(attribute.Int("chunk_count", len(chunks)))
	span.SetStatus(codes.Ok, "success")
	return nil
}

// Search implements retrieval.Searcher.
func (s *Qdrant) Search(ctx context.Context, query []float32, k int) (_ []retrieval.Scored, err error) {
	ctx, span := tracer.Start(ctx, "Qdrant.Search")
	defer span.End()
	defer func(start time.Time) { observe(BackendQdrant, "search", start, err) }(time.Now())

	if len(query) == 0 {
		return nil, nil
	}
	name := CollectionName(s.config.CollectionPrefix, len(query))
	span.SetAttributes(attribute.String("collection", name), attribute.Int("k", k))

	ok, err := s.exists(ctx, name)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	if k <= 0 || k > maxSearchLimit {
		k = maxSearchLimit
	}

	var points []*qdrant.ScoredPoint
	err = s.retry(ctx, "search", func() error {
		res, err := s.client.Query(ctx, &qdrant.QueryPoints{
			CollectionName: name,
			Query:          qdrant.NewQuery(query...),
			Limit:          qdrant.PtrOf(uint64(k)),
			WithPayload:    qdrant.NewWithPayload(true),
		})
		if err != nil {
			return err
		}
		points = res
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("searching collection %s: %w", name, err)
	}

	out := make([]retrieval.Scored, len(points))
	for i, p := range points {
		out[i] = fromPoint(p)
	}
	retrieval.SortByScore(out)

	span.SetAttributes(attribute.Int("results_count", len(out)))
	span.SetStatus(codes.Ok, "success")
	return out, nil
}

func (s *Qdrant) ownCollections(ctx context.Context) ([]string, error) {
	var names []string
	err := s.retry(ctx, "list_collections", func() error {
		res, err := s.client.ListCollections(ctx)
		if err != nil {
			return err
		}
		names = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	prefix := s.config.CollectionPrefix + "_"
	out := names[:0]
	for _, n := range names {
		if strings.HasPrefix(n, prefix) {
			out = append(out, n)
		}
	}
	return out, nil
}

// DeleteDocument implements Index.
func (s *Qdrant) DeleteDocument(ctx context.Context, documentID string) (err error) {
	ctx, span := tracer.Start(ctx, "Qdrant.DeleteDocument")
	defer span.End()
	defer func(start time.Time) { observe(BackendQdrant, "delete", start, err) }(time.Now())

	names, err := s.ownCollections(ctx)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("listing collections: %w", err)
	}
	for _, name := range names {
		err := s.retry(ctx, "delete", func() error {
			_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
				CollectionName: name,
				Points: &qdrant.PointsSelector{
					PointsSelectorOneOf: &qdrant.PointsSelector_Filter{Filter: documentFilter(documentID)},
				},
			})
			return err
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("deleting document %s from %s: %w", documentID, name, err)
		}
	}
	span.SetStatus(codes.Ok, "success")
	return nil
}

// Reset implements Index.
func (s *Qdrant) Reset(ctx context.Context) error {
	names, err := s.ownCollections(ctx)
	if err != nil {
		return fmt.Errorf("listing collections: %w", err)
	}
	for _, name := range names {
		err := s.retry(ctx, "delete_collection", func() error {
			err := s.client.DeleteCollection(ctx, name)
			if isNotFound(err) {
				return nil
			}
			return err
		})
		if err != nil {
			return fmt.Errorf("deleting collection %s: %w", name, err)
		}
		s.collections.Delete(name)
	}
	return nil
}

// Close implements Index.
func (s *Qdrant) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}
