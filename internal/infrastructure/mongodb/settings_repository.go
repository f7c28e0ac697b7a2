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

// settingsDocID is the well-known id of the single settings document
const settingsDocID = "delivery-rate-settings"

type settingsDocument struct {
	ID        string            `bson:"_id"`
	Config    domain.RateConfig `bson:"config"`
	UpdatedAt time.Time         `bson:"updatedAt"`
}

// SettingsRepository stores the operator-tunable rate configuration in
// MongoDB. A missing document yields the documented defaults, so a
// fresh deployment works without any seeding step.
type SettingsRepository struct {
	collection *mongo.Collection
}

// NewSettingsRepository creates a repository over the settings collection
func NewSettingsRepository(db *mongo.Database) *SettingsRepository {
	return &SettingsRepository{
		collection: db.Collection("settings"),
	}
}

// GetRateConfig returns the stored configuration snapshot, falling
// back to defaults when none has been saved yet. Implements
// domain.SettingsProvider; every quote fetches a fresh snapshot.
func (r *SettingsRepository) GetRateConfig(ctx context.Context) (domain.RateConfig, error) {
	var doc settingsDocument
	err := r.collection.FindOne(ctx, bson.M{"_id": settingsDocID}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return domain.DefaultRateConfig(), nil
	}
	if err != nil {
		return domain.RateConfig{}, fmt.Errorf("failed to load rate config: %w", err)
	}

	if err := doc.Config.Validate(); err != nil {
		return domain.RateConfig{}, fmt.Errorf("stored rate config is invalid: %w", err)
	}

	return doc.Config, nil
}

// SaveRateConfig validates and stores a new configuration snapshot
func (r *SettingsRepository) SaveRateConfig(ctx context.Context, cfg domain.RateConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	doc := settingsDocument{
		ID:        settingsDocID,
		Config:    cfg,
		UpdatedAt: time.Now().UTC(),
	}

	opts := options.Replace().SetUpsert(true)
	if _, err := r.collection.ReplaceOne(ctx, bson.M{"_id": settingsDocID}, doc, opts); err != nil {
		return fmt.Errorf("failed to save rate config: %w", err)
	}
	return nil
}
