package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/x/mongo/driver/auth"
	"go.uber.org/zap"

	"github.com/spec-kit/bank-crm/internal/config"
	"github.com/spec-kit/bank-crm/internal/persistence"
)

const (
	mongoKeyField      = "_id"
	mongoRevisionField = "_rev"
)

// MongoConnector dials MongoDB. The bucket is the database and each collection
// lives at "<scope>.<collection>".
type MongoConnector struct {
	cfg    config.StoreConfig
	logger *zap.Logger
}

// NewMongoConnector builds a connector from store configuration.
func NewMongoConnector(cfg config.StoreConfig, logger *zap.Logger) *MongoConnector {
	return &MongoConnector{cfg: cfg, logger: logger}
}

func (c *MongoConnector) Name() string { return config.DriverMongo }

func (c *MongoConnector) Namespace() Namespace {
	return namespaceFromConfig(c.cfg)
}

func (c *MongoConnector) Connect(ctx context.Context) (Session, error) {
	client, err := persistence.NewMongo(ctx, c.cfg, c.logger)
	if err != nil {
		return nil, classifyMongo("connect", err, KindConnection)
	}
	ns := c.Namespace()
	db := client.Client.Database(ns.Bucket)
	return &mongoSession{
		client: client,
		collections: map[Collection]*mongo.Collection{
			Customers: db.Collection(ns.Scope + "." + ns.Customers),
			Tickets:   db.Collection(ns.Scope + "." + ns.Tickets),
		},
	}, nil
}

type mongoSession struct {
	client      *persistence.Mongo
	collections map[Collection]*mongo.Collection
}

func (s *mongoSession) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx); err != nil {
		return classifyMongo("ping", err, KindConnection)
	}
	return nil
}

func (s *mongoSession) Get(ctx context.Context, c Collection, key string) (*Document, error) {
	var raw bson.M
	if err := s.collections[c].FindOne(ctx, bson.M{mongoKeyField: key}).Decode(&raw); err != nil {
		return nil, classifyMongo("get", err, KindQuery)
	}
	return mongoDocument(raw), nil
}

func (s *mongoSession) Find(ctx context.Context, q Query) ([]Document, error) {
	filter := bson.D{}
	for _, f := range q.Filters {
		filter = append(filter, bson.E{Key: f.Field, Value: f.Value})
	}

	opts := options.Find()
	if q.SortField != "" {
		order := 1
		if q.SortDesc {
			order = -1
		}
		opts.SetSort(bson.D{{Key: q.SortField, Value: order}})
	}
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}

	cursor, err := s.collections[q.Collection].Find(ctx, filter, opts)
	if err != nil {
		return nil, classifyMongo("find", err, KindQuery)
	}
	var rows []bson.M
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, classifyMongo("find", err, KindQuery)
	}

	docs := make([]Document, 0, len(rows))
	for _, raw := range rows {
		docs = append(docs, *mongoDocument(raw))
	}
	return docs, nil
}

func (s *mongoSession) Count(ctx context.Context, c Collection) (int64, error) {
	n, err := s.collections[c].CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, classifyMongo("count", err, KindQuery)
	}
	return n, nil
}

func (s *mongoSession) Insert(ctx context.Context, c Collection, key string, body map[string]any) (*Document, error) {
	record := withMongoKeys(body, key, 1)
	if _, err := s.collections[c].InsertOne(ctx, record); err != nil {
		return nil, classifyMongo("insert", err, KindQuery)
	}
	return &Document{Key: key, Body: body, Revision: 1}, nil
}

func (s *mongoSession) Replace(ctx context.Context, c Collection, key string, body map[string]any, revision int64) (*Document, error) {
	filter := bson.M{mongoKeyField: key, mongoRevisionField: revision}
	if revision == 0 {
		filter[mongoRevisionField] = bson.M{"$exists": false}
	}
	next := revision + 1

	res, err := s.collections[c].ReplaceOne(ctx, filter, withMongoKeys(body, key, next))
	if err != nil {
		return nil, classifyMongo("replace", err, KindQuery)
	}
	if res.MatchedCount == 0 {
		n, err := s.collections[c].CountDocuments(ctx, bson.M{mongoKeyField: key})
		if err != nil {
			return nil, classifyMongo("replace", err, KindQuery)
		}
		if n == 0 {
			return nil, NewError("replace", KindNotFound, fmt.Errorf("%s/%s", c, key))
		}
		return nil, NewError("replace", KindConflict, fmt.Errorf("revision %d is stale", revision))
	}
	return &Document{Key: key, Body: body, Revision: next}, nil
}

func (s *mongoSession) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}

func withMongoKeys(body map[string]any, key string, revision int64) bson.M {
	record := make(bson.M, len(body)+2)
	for k, v := range body {
		record[k] = v
	}
	record[mongoKeyField] = key
	record[mongoRevisionField] = revision
	return record
}

func mongoDocument(raw bson.M) *Document {
	doc := &Document{}
	switch id := raw[mongoKeyField].(type) {
	case string:
		doc.Key = id
	case primitive.ObjectID:
		doc.Key = id.Hex()
	case nil:
	default:
		doc.Key = fmt.Sprint(id)
	}
	switch rev := raw[mongoRevisionField].(type) {
	case int32:
		doc.Revision = int64(rev)
	case int64:
		doc.Revision = rev
	case float64:
		doc.Revision = int64(rev)
	}
	delete(raw, mongoKeyField)
	delete(raw, mongoRevisionField)
	doc.Body, _ = normalizeBSON(raw).(map[string]any)
	return doc
}

// normalizeBSON converts driver container types into plain JSON-shaped values.
func normalizeBSON(v any) any {
	switch val := v.(type) {
	case primitive.M:
		return normalizeMap(val)
	case map[string]any:
		return normalizeMap(val)
	case primitive.D:
		out := make(map[string]any, len(val))
		for _, e := range val {
			out[e.Key] = normalizeBSON(e.Value)
		}
		return out
	case primitive.A:
		return normalizeSlice(val)
	case []any:
		return normalizeSlice(val)
	case primitive.DateTime:
		return val.Time().UTC().Format(time.RFC3339Nano)
	case primitive.ObjectID:
		return val.Hex()
	case primitive.Decimal128:
		return val.String()
	default:
		return val
	}
}

func normalizeMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, item := range m {
		out[k] = normalizeBSON(item)
	}
	return out
}

func normalizeSlice(s []any) []any {
	out := make([]any, len(s))
	for i, item := range s {
		out[i] = normalizeBSON(item)
	}
	return out
}

func classifyMongo(op string, err error, fallback ErrorKind) error {
	if err == nil {
		return nil
	}
	var authErr *auth.Error
	var cmdErr mongo.CommandError
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return NewError(op, KindNotFound, err)
	case mongo.IsDuplicateKeyError(err):
		return NewError(op, KindConflict, err)
	case errors.As(err, &authErr):
		return NewError(op, KindAuth, err)
	case errors.As(err, &cmdErr) && (cmdErr.Code == 13 || cmdErr.Code == 18):
		return NewError(op, KindAuth, err)
	case errors.Is(err, mongo.ErrClientDisconnected):
		return NewError(op, KindConnection, err)
	}
	if kind, ok := classifyContext(err); ok {
		return NewError(op, kind, err)
	}
	switch {
	case mongo.IsTimeout(err):
		return NewError(op, KindTimeout, err)
	case mongo.IsNetworkError(err):
		return NewError(op, KindConnection, err)
	}
	return NewError(op, fallback, err)
}

func namespaceFromConfig(cfg config.StoreConfig) Namespace {
	return Namespace{
		Bucket:    cfg.Bucket,
		Scope:     cfg.Scope,
		Customers: cfg.CustomersCollection,
		Tickets:   cfg.TicketsCollection,
	}
}
