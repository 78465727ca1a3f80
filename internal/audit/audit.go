package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Callback outcomes.
const (
	OutcomeSettled          = "settled"
	OutcomeReplayed         = "replayed"
	OutcomeInvalidSignature = "invalid_signature"
	OutcomeRejected         = "rejected"
)

// Entry is one gateway callback as received. Provider codes are stored raw.
type Entry struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Method     string             `bson:"method" json:"method"`
	OrderID    string             `bson:"order_id" json:"orderId"`
	Verified   bool               `bson:"verified" json:"verified"`
	ResultCode *int               `bson:"result_code,omitempty" json:"resultCode,omitempty"`
	Outcome    string             `bson:"outcome" json:"outcome"`
	Error      string             `bson:"error,omitempty" json:"error,omitempty"`
	Payload    map[string]string  `bson:"payload" json:"payload"`
	ReceivedAt time.Time          `bson:"received_at" json:"receivedAt"`
}

type Recorder interface {
	Record(ctx context.Context, entry Entry) error
	ListByOrderID(ctx context.Context, orderID string) ([]Entry, error)
}

// Connect opens a MongoDB client and pings it.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	log.Info().Msg("MongoDB connected")
	return client, nil
}

type MongoRecorder struct {
	coll *mongo.Collection
}

func NewMongoRecorder(client *mongo.Client, database, collection string) *MongoRecorder {
	return &MongoRecorder{coll: client.Database(database).Collection(collection)}
}

// EnsureIndexes creates the order_id lookup index.
func (r *MongoRecorder) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "order_id", Value: 1}, {Key: "received_at", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("create audit index: %w", err)
	}
	return nil
}

func (r *MongoRecorder) Record(ctx context.Context, entry Entry) error {
	if entry.ReceivedAt.IsZero() {
		entry.ReceivedAt = time.Now().UTC()
	}
	if _, err := r.coll.InsertOne(ctx, entry); err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (r *MongoRecorder) ListByOrderID(ctx context.Context, orderID string) ([]Entry, error) {
	cursor, err := r.coll.Find(ctx, bson.M{"order_id": orderID}, options.Find().SetSort(bson.D{{Key: "received_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find audit entries: %w", err)
	}
	defer cursor.Close(ctx)

	entries := make([]Entry, 0)
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("decode audit entries: %w", err)
	}
	return entries, nil
}

// NopRecorder drops entries. Used when no MongoDB is configured.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, Entry) error { return nil }

func (NopRecorder) ListByOrderID(context.Context, string) ([]Entry, error) { return []Entry{}, nil }

// Flatten renders an undecoded payload for storage. Non-scalar values are formatted with %v.
func Flatten(payload map[string]any) map[string]string {
	out := make(map[string]string, len(payload))
	for k, v := range payload {
		if v == nil {
			out[k] = ""
			continue
		}
		out[k] = fmt.Sprint(v)
	}
	return out
}

var (
	_ Recorder = (*MongoRecorder)(nil)
	_ Recorder = NopRecorder{}
)
