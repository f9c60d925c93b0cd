package source

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/huangsam/chartkit/internal/contract"
	"github.com/huangsam/chartkit/schema"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoSource reads records from one collection with an aggregation pipeline.
// Predicates and global filters are extended JSON filter documents,
// e.g. {"status": "paid"}.
type MongoSource struct {
	client     *mongo.Client
	collection *mongo.Collection
	cfg        contract.SourceConfig
}

var _ Source = &MongoSource{} // Compile-time check

// OpenMongoSource connects to the server of a MongoDB source and verifies the connection.
func OpenMongoSource(ctx context.Context, cfg contract.SourceConfig) (*MongoSource, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Connect))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	src := NewMongoSource(client.Database(cfg.Database).Collection(cfg.Table), cfg)
	src.client = client
	return src, nil
}

// NewMongoSource wraps an existing collection. The caller keeps ownership of its client.
func NewMongoSource(collection *mongo.Collection, cfg contract.SourceConfig) *MongoSource {
	return &MongoSource{collection: collection, cfg: cfg}
}

// Query implements the Source interface.
func (s *MongoSource) Query() contract.RecordQuery {
	return &mongoQuery{src: s}
}

// Close implements the Source interface.
func (s *MongoSource) Close() error {
	if s.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

type mongoQuery struct {
	src        *MongoSource
	orderBy    string
	ranges     []rangeFilter
	predicates []string
	includes   []string
	scope      schema.ScopeModifiers
}

func (q *mongoQuery) OrderBy(field string) { q.orderBy = field }

func (q *mongoQuery) FilterRange(field string, start, end time.Time) {
	q.ranges = append(q.ranges, rangeFilter{field: field, start: start, end: end})
}

func (q *mongoQuery) FilterPredicate(expr string) { q.predicates = append(q.predicates, expr) }

func (q *mongoQuery) IncludeRelationship(name string) {
	if !slices.Contains(q.includes, name) {
		q.includes = append(q.includes, name)
	}
}

func (q *mongoQuery) ApplyScopeModifiers(scope schema.ScopeModifiers) { q.scope = scope }

// Pipeline renders the aggregation pipeline: $match, then $lookup and
// $unwind per relationship, then $sort.
func (q *mongoQuery) Pipeline() (mongo.Pipeline, error) {
	cfg := q.src.cfg
	var filters bson.A

	for _, r := range q.ranges {
		bounds := bson.M{}
		if !r.start.IsZero() {
			bounds["$gte"] = r.start
		}
		if !r.end.IsZero() {
			bounds["$lt"] = r.end
		}
		if len(bounds) > 0 {
			filters = append(filters, bson.M{r.field: bounds})
		}
	}

	exprs := slices.Clone(q.predicates)
	for _, name := range slices.Sorted(maps.Keys(cfg.GlobalFilters)) {
		if !skipsGlobalFilter(q.scope, name) {
			exprs = append(exprs, cfg.GlobalFilters[name])
		}
	}
	for _, expr := range exprs {
		var doc bson.M
		if err := bson.UnmarshalExtJSON([]byte(expr), false, &doc); err != nil {
			return nil, fmt.Errorf("invalid filter document %q: %w", expr, err)
		}
		filters = append(filters, doc)
	}

	if cfg.SoftDeleteField != "" {
		switch {
		case q.scope.OnlyTrashed:
			filters = append(filters, bson.M{cfg.SoftDeleteField: bson.M{"$ne": nil}})
		case !q.scope.WithTrashed:
			filters = append(filters, bson.M{cfg.SoftDeleteField: nil})
		}
	} else if q.scope.OnlyTrashed {
		filters = append(filters, bson.M{"_id": bson.M{"$exists": false}})
	}

	pipeline := mongo.Pipeline{}
	if len(filters) > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$match", Value: bson.M{"$and": filters}}})
	}

	for _, name := range q.includes {
		rel, ok := cfg.Relationships[name]
		if !ok {
			return nil, fmt.Errorf("relationship %q is not configured for collection %s", name, cfg.Table)
		}
		pipeline = append(pipeline,
			bson.D{{Key: "$lookup", Value: bson.D{
				{Key: "from", Value: rel.Table},
				{Key: "localField", Value: rel.LocalKey},
				{Key: "foreignField", Value: rel.ForeignKey},
				{Key: "as", Value: name},
			}}},
			bson.D{{Key: "$unwind", Value: bson.D{
				{Key: "path", Value: "$" + name},
				{Key: "preserveNullAndEmptyArrays", Value: true},
			}}},
		)
	}

	if q.orderBy != "" {
		pipeline = append(pipeline, bson.D{{Key: "$sort", Value: bson.D{{Key: q.orderBy, Value: 1}}}})
	}
	return pipeline, nil
}

// Fetch implements the RecordQuery interface.
func (q *mongoQuery) Fetch(ctx context.Context) ([]contract.Record, error) {
	pipeline, err := q.Pipeline()
	if err != nil {
		return nil, err
	}
	cursor, err := q.src.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate %s: %w", q.src.cfg.Table, err)
	}
	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", q.src.cfg.Table, err)
	}

	records := make([]contract.Record, len(docs))
	for i, doc := range docs {
		records[i] = MapRecord(normalizeDocument(doc))
	}
	return records, nil
}

// normalizeDocument converts BSON values into plain Go values.
func normalizeDocument(doc map[string]any) map[string]any {
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case bson.M:
		return normalizeDocument(t)
	case map[string]any:
		return normalizeDocument(t)
	case bson.D:
		m := make(map[string]any, len(t))
		for _, e := range t {
			m[e.Key] = normalizeValue(e.Value)
		}
		return m
	case bson.A:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = normalizeValue(item)
		}
		return out
	case primitive.DateTime:
		return t.Time().UTC()
	case primitive.ObjectID:
		return t.Hex()
	case primitive.Decimal128:
		return t.String()
	case int32:
		return int64(t)
	default:
		return v
	}
}
