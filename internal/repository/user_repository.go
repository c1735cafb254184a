package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fathima-sithara/dm-service/internal/domain"
	"github.com/fathima-sithara/dm-service/internal/errs"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// UserRepository reads the user-management collection. It never writes.
type UserRepository struct {
	col *mongo.Collection
}

func NewUserRepository(col *mongo.Collection) *UserRepository {
	return &UserRepository{col: col}
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var u domain.User
	err := r.col.FindOne(ctx, bson.M{"_id": idValue(id)}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("user %s: %w", id, errs.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: find user: %v", errs.ErrStore, err)
	}
	return &u, nil
}

// ListExcept returns every user but id, without the password field.
func (r *UserRepository) ListExcept(ctx context.Context, id string) ([]*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cur, err := r.col.Find(ctx, bson.M{"_id": bson.M{"$ne": idValue(id)}}, sidebarOptions())
	if err != nil {
		return nil, fmt.Errorf("%w: list users: %v", errs.ErrStore, err)
	}
	defer cur.Close(ctx)

	out := []*domain.User{}
	for cur.Next(ctx) {
		var u domain.User
		if err := cur.Decode(&u); err != nil {
			return nil, fmt.Errorf("%w: decode user: %v", errs.ErrStore, err)
		}
		out = append(out, &u)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("%w: cursor: %v", errs.ErrStore, err)
	}
	return out, nil
}

func sidebarOptions() *options.FindOptions {
	return options.Find().SetProjection(bson.M{"password": 0})
}

// idValue matches ids written as ObjectIDs by the user service as well as
// plain string ids.
func idValue(id string) any {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return oid
	}
	return id
}
