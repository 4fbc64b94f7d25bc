package repository

import (
	"context"
	"errors"
	"time"

	"secure_chat_service/internal/chat/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MessageRepository persistence of encrypted messages
type MessageRepository interface {
	// Create 寫入一筆訊息, 不可部分寫入
	Create(ctx context.Context, msg *domain.Message) error
	FindByID(ctx context.Context, id string) (*domain.Message, error)
	// FindByConversation newest first, strictly older than before when before is set
	FindByConversation(ctx context.Context, conversationID string, before time.Time, limit int) ([]domain.Message, error)
	// AdvanceStatus 只在目前狀態較低且 sender 不是 excludeSender 時更新
	AdvanceStatus(ctx context.Context, id string, status domain.MessageStatus, excludeSender string) (bool, error)
	// AdvanceStatusBatch returns the ids that actually moved
	AdvanceStatusBatch(ctx context.Context, conversationID string, ids []string, status domain.MessageStatus, excludeSender string) ([]string, error)
	DeleteByConversation(ctx context.Context, conversationID string) (int64, error)
	EnsureIndexes(ctx context.Context) error
}

type messageRepository struct {
	coll *mongo.Collection
}

// NewMongoMessageRepository create a MessageRepository
func NewMongoMessageRepository(db *mongo.Database) MessageRepository {
	return &messageRepository{
		coll: db.Collection("messages"),
	}
}

func (r *messageRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "ts", Value: -1}},
	})
	return err
}

func (r *messageRepository) Create(ctx context.Context, msg *domain.Message) error {
	_, err := r.coll.InsertOne(ctx, msg)
	return err
}

func (r *messageRepository) FindByID(ctx context.Context, id string) (*domain.Message, error) {
	var msg domain.Message
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&msg)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *messageRepository) FindByConversation(ctx context.Context, conversationID string, before time.Time, limit int) ([]domain.Message, error) {
	filter := bson.M{"conversation_id": conversationID}
	if !before.IsZero() {
		filter["ts"] = bson.M{"$lt": before}
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "ts", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))

	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	msgs := make([]domain.Message, 0, limit)
	if err := cur.All(ctx, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

func (r *messageRepository) AdvanceStatus(ctx context.Context, id string, status domain.MessageStatus, excludeSender string) (bool, error) {
	below := domain.StatusesBelow(status)
	if len(below) == 0 {
		return false, nil
	}

	filter := bson.M{
		"_id":          id,
		"status":       bson.M{"$in": below},
		"from_user_id": bson.M{"$ne": excludeSender},
	}
	res, err := r.coll.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"status": status}})
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

func (r *messageRepository) AdvanceStatusBatch(ctx context.Context, conversationID string, ids []string, status domain.MessageStatus, excludeSender string) ([]string, error) {
	below := domain.StatusesBelow(status)
	if len(ids) == 0 || len(below) == 0 {
		return nil, nil
	}

	filter := bson.M{
		"_id":             bson.M{"$in": ids},
		"conversation_id": conversationID,
		"status":          bson.M{"$in": below},
		"from_user_id":    bson.M{"$ne": excludeSender},
	}

	cur, err := r.coll.Find(ctx, filter, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, err
	}
	var docs []struct {
		ID string `bson:"_id"`
	}
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, nil
	}

	matched := make([]string, 0, len(docs))
	for _, d := range docs {
		matched = append(matched, d.ID)
	}

	// 條件中保留 status, 並發更新時仍不會降級
	filter["_id"] = bson.M{"$in": matched}
	if _, err := r.coll.UpdateMany(ctx, filter, bson.M{"$set": bson.M{"status": status}}); err != nil {
		return nil, err
	}
	return matched, nil
}

func (r *messageRepository) DeleteByConversation(ctx context.Context, conversationID string) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, bson.M{"conversation_id": conversationID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
