package membership

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	models "github.com/mayukomayuko7-bot/warakado-vision/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

type MongoDirectory struct {
	client *mongo.Client
	db     *mongo.Database
	online atomic.Bool
	logger *zap.Logger
}

// Подключение к MongoDB. Если рукопожатие не удалось, работаем в локальном режиме:
// клиент создается, но Online() возвращает false.
func NewMongoDirectory(ctx context.Context, uri string, database string, logger *zap.Logger) (*MongoDirectory, error) {
	if uri == "" {
		return nil, fmt.Errorf("env MEMBERSHIP_MONGO is not set")
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	d := &MongoDirectory{client: client, db: client.Database(database), logger: logger}

	err = client.Ping(ctx, nil)
	if err != nil {
		logger.Warn("Directory handshake failed, local-only mode",
			zap.String("service", "NewMongoDirectory"),
			zap.Error(err),
		)
		return d, nil
	}
	d.online.Store(true)
	return d, nil
}

func (d *MongoDirectory) Online() bool {
	return d.online.Load()
}

func (d *MongoDirectory) Close(ctx context.Context) error {
	return d.client.Disconnect(ctx)
}

func (d *MongoDirectory) FindOne(ctx context.Context, collection string, filter models.Filter) (models.Document, error) {
	raw, err := d.db.Collection(collection).FindOne(ctx, bson.M(filter)).Raw()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Document{}, models.ErrDocumentNotFound
	}
	if err != nil {
		return models.Document{}, err
	}
	return toDocument(collection, raw), nil
}

func (d *MongoDirectory) Insert(ctx context.Context, collection string, record any) (models.DocRef, error) {
	res, err := d.db.Collection(collection).InsertOne(ctx, record)
	if err != nil {
		return models.DocRef{}, err
	}
	ref := models.DocRef{Collection: collection}
	switch id := res.InsertedID.(type) {
	case primitive.ObjectID:
		ref.ID = id.Hex()
	default:
		ref.ID = fmt.Sprint(id)
	}
	return ref, nil
}

func (d *MongoDirectory) UpdateFields(ctx context.Context, ref models.DocRef, fields models.Fields) error {
	_, err := d.db.Collection(ref.Collection).UpdateOne(ctx, idFilter(ref), bson.M{"$set": bson.M(fields)})
	return err
}

// Атомарное приращение на стороне сервера ($inc)
func (d *MongoDirectory) Increment(ctx context.Context, ref models.DocRef, field string, delta int) error {
	_, err := d.db.Collection(ref.Collection).UpdateOne(ctx, idFilter(ref), bson.M{"$inc": bson.M{field: delta}})
	return err
}

// Подписка: полный упорядоченный снимок коллекции при каждом изменении (change stream)
func (d *MongoDirectory) Subscribe(ctx context.Context, collection string, orderField string, onChange func([]models.Document)) (func(), error) {
	ctx, cancel := context.WithCancel(ctx)
	coll := d.db.Collection(collection)

	docs, err := d.snapshot(ctx, coll, orderField)
	if err != nil {
		cancel()
		return nil, err
	}
	stream, err := coll.Watch(ctx, mongo.Pipeline{})
	if err != nil {
		cancel()
		return nil, err
	}
	onChange(docs)

	go func() {
		defer stream.Close(context.Background())
		for stream.Next(ctx) {
			docs, err := d.snapshot(ctx, coll, orderField)
			if err != nil {
				d.logger.Warn("Directory snapshot",
					zap.String("collection", collection),
					zap.Error(err),
				)
				continue
			}
			onChange(docs)
		}
		if err := stream.Err(); err != nil && ctx.Err() == nil {
			d.logger.Error("Directory change stream",
				zap.String("collection", collection),
				zap.Error(err),
			)
		}
	}()
	return cancel, nil
}

func (d *MongoDirectory) snapshot(ctx context.Context, coll *mongo.Collection, orderField string) ([]models.Document, error) {
	opts := options.Find().SetSort(bson.D{{Key: orderField, Value: -1}})
	cur, err := coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var docs []models.Document
	for cur.Next(ctx) {
		raw := make(bson.Raw, len(cur.Current))
		copy(raw, cur.Current)
		docs = append(docs, toDocument(coll.Name(), raw))
	}
	return docs, cur.Err()
}

func toDocument(collection string, raw bson.Raw) models.Document {
	ref := models.DocRef{Collection: collection}
	v := raw.Lookup("_id")
	if oid, ok := v.ObjectIDOK(); ok {
		ref.ID = oid.Hex()
	} else if s, ok := v.StringValueOK(); ok {
		ref.ID = s
	}
	return models.Document{Ref: ref, Raw: raw}
}

func idFilter(ref models.DocRef) bson.M {
	if oid, err := primitive.ObjectIDFromHex(ref.ID); err == nil {
		return bson.M{"_id": oid}
	}
	return bson.M{"_id": ref.ID}
}
