package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/syncpad/syncpad/internal/document"
)

// MongoMirror is the optional durable mirror of the in-memory store. Writes
// trail the in-memory state (eventual, not transactional); the mirror is
// never read back while the process is running.
type MongoMirror struct {
	col *mongo.Collection
}

func NewMongoMirror(col *mongo.Collection) *MongoMirror {
	// unique index on "id" so upserts stay one-document-per-id
	idxModel := mongo.IndexModel{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)}
	_, _ = col.Indexes().CreateOne(context.Background(), idxModel)
	return &MongoMirror{col: col}
}

// Save upserts the full document state under its id.
func (m *MongoMirror) Save(ctx context.Context, d *document.Document) error {
	opts := options.Replace().SetUpsert(true)
	_, err := m.col.ReplaceOne(ctx, bson.M{"id": d.ID}, d, opts)
	return err
}

// Delete removes the mirrored document. A missing document is not an error:
// the mirror may simply never have seen it.
func (m *MongoMirror) Delete(ctx context.Context, id string) error {
	_, err := m.col.DeleteOne(ctx, bson.M{"id": id})
	return err
}
