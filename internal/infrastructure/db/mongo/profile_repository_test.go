package mongo

import (
	"context"
	"errors"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/tutorlab/session-guard/internal/core/domain"
)

func TestProfileRepository_FetchProfile(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	const ns = "tutoring.profiles"

	mt.Run("found", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{
			{Key: "_id", Value: "u1"},
			{Key: "role", Value: "teacher"},
			{Key: "status", Value: "active"},
			{Key: "full_name", Value: "Ada Lovelace"},
		}))

		p, err := NewProfileRepository(mt.DB).FetchProfile(context.Background(), "u1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.ID != "u1" || p.Role != domain.RoleTeacher || p.Status != domain.StatusActive || p.FullName != "Ada Lovelace" {
			t.Fatalf("unexpected profile: %+v", p)
		}
	})

	mt.Run("null role", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{
			{Key: "_id", Value: "u2"},
			{Key: "role", Value: nil},
		}))

		p, err := NewProfileRepository(mt.DB).FetchProfile(context.Background(), "u2")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.Role != domain.RoleNone || p.Status != domain.StatusActive {
			t.Fatalf("unexpected profile: %+v", p)
		}
	})

	mt.Run("missing", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		_, err := NewProfileRepository(mt.DB).FetchProfile(context.Background(), "gone")
		if !errors.Is(err, domain.ErrProfileNotFound) {
			t.Fatalf("expected ErrProfileNotFound, got %v", err)
		}
	})

	mt.Run("server error", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    11600,
			Message: "interrupted at shutdown",
			Name:    "InterruptedAtShutdown",
		}))

		_, err := NewProfileRepository(mt.DB).FetchProfile(context.Background(), "u1")
		if err == nil || errors.Is(err, domain.ErrProfileNotFound) {
			t.Fatalf("expected a transient error, got %v", err)
		}
	})
}
