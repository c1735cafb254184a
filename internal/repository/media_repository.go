package repository

import (
	"context"
	"time"

	"github.com/fathima-sithara/dm-service/internal/media"
	"go.mongodb.org/mongo-driver/mongo"
)

type MediaRepository struct {
	col *mongo.Collection
}

func NewMediaRepository(col *mongo.Collection) *MediaRepository {
	return &MediaRepository{col: col}
}

func (r *MediaRepository) Insert(ctx context.Context, m *media.Media) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	_, err := r.col.InsertOne(ctx, m)
	return err
}
