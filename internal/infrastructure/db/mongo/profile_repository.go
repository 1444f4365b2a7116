package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tutorlab/session-guard/internal/core/domain"
)

const profilesCollection = "profiles"

// ProfileRepository reads profile documents keyed by auth user id.
type ProfileRepository struct {
	coll *mongo.Collection
}

func NewProfileRepository(db *mongo.Database) *ProfileRepository {
	return &ProfileRepository{coll: db.Collection(profilesCollection)}
}

// mongoProfile tolerates a null or missing role, which means access revoked.
type mongoProfile struct {
	ID       string  `bson:"_id"`
	Role     *string `bson:"role"`
	Status   string  `bson:"status"`
	FullName string  `bson:"full_name,omitempty"`
}

func (r *ProfileRepository) FetchProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	var mp mongoProfile
	opts := options.FindOne().SetProjection(bson.M{"role": 1, "status": 1, "full_name": 1})
	if err := r.coll.FindOne(ctx, bson.M{"_id": userID}, opts).Decode(&mp); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrProfileNotFound
		}
		return nil, fmt.Errorf("find profile: %w", err)
	}
	return toProfile(mp), nil
}

func toProfile(mp mongoProfile) *domain.Profile {
	p := &domain.Profile{
		ID:       mp.ID,
		Status:   domain.ProfileStatus(mp.Status),
		FullName: mp.FullName,
	}
	if p.Status == "" {
		p.Status = domain.StatusActive
	}
	if mp.Role != nil {
		p.Role = domain.Role(*mp.Role)
	}
	return p
}
