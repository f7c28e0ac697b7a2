package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/delivery-platform/delivery-rate-service/internal/domain"
)

// LineRepository persists DeliveryLine aggregates in MongoDB
type LineRepository struct {
	collection *mongo.Collection
}

// NewLineRepository creates a repository over the delivery_lines collection
func NewLineRepository(db *mongo.Database) *LineRepository {
	repo := &LineRepository{
		collection: db.Collection("delivery_lines"),
	}
	repo.ensureIndexes(context.Background())
	return repo
}

func (r *LineRepository) ensureIndexes(ctx context.Context) {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "lineId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "orderId", Value: 1}}},
		{Keys: bson.D{{Key: "priceLocked", Value: 1}}},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
	}
	r.collection.Indexes().CreateMany(ctx, indexes)
}

// Save upserts a delivery line by lineId
func (r *LineRepository) Save(ctx context.Context, line *domain.DeliveryLine) error {
	line.UpdatedAt = time.Now().UTC()

	opts := options.Update().SetUpsert(true)
	filter := bson.M{"lineId": line.LineID}
	update := bson.M{"$set": line}

	if _, err := r.collection.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("failed to save delivery line: %w", err)
	}

	return nil
}

// FindByID returns a line by its lineId, or nil when absent
func (r *LineRepository) FindByID(ctx context.Context, lineID string) (*domain.DeliveryLine, error) {
	var line domain.DeliveryLine
	err := r.collection.FindOne(ctx, bson.M{"lineId": lineID}).Decode(&line)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find delivery line: %w", err)
	}
	return &line, nil
}

// FindByOrderID returns all delivery lines of an order
func (r *LineRepository) FindByOrderID(ctx context.Context, orderID string) ([]*domain.DeliveryLine, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"orderId": orderID},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to find delivery lines: %w", err)
	}
	defer cursor.Close(ctx)

	var lines []*domain.DeliveryLine
	if err := cursor.All(ctx, &lines); err != nil {
		return nil, fmt.Errorf("failed to decode delivery lines: %w", err)
	}
	return lines, nil
}

// Delete removes a line by its lineId
func (r *LineRepository) Delete(ctx context.Context, lineID string) error {
	if _, err := r.collection.DeleteOne(ctx, bson.M{"lineId": lineID}); err != nil {
		return fmt.Errorf("failed to delete delivery line: %w", err)
	}
	return nil
}
