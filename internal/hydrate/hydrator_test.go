package hydrate

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"

	"SkillXChange/internal/model"
)

type fakeProfiles struct {
	mu       sync.Mutex
	profiles map[model.ID]model.UserDetails
	failing  map[model.ID]bool
	calls    map[model.ID]int
}

func (f *fakeProfiles) ProfileByID(_ context.Context, id model.ID) (*model.UserDetails, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[model.ID]int)
	}
	f.calls[id]++
	if f.failing[id] {
		return nil, errors.New("profile service unavailable")
	}
	profile, ok := f.profiles[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return &profile, nil
}

func TestHydrateFillsDisplayFields(t *testing.T) {
	profiles := &fakeProfiles{
		profiles: map[model.ID]model.UserDetails{
			"2": {ID: "2", Name: "Bob Roe", Username: "bob", ProfileImage: "bob.png"},
		},
	}
	h := NewHydrator(profiles, zap.NewNop())

	conversations := []model.Conversation{{
		ID: "c1",
		Participants: []model.Participant{
			{UserID: "1"},
			{UserID: "2"},
		},
	}}

	hydrated := h.Hydrate(context.Background(), conversations, "1")

	other := hydrated[0].OtherParticipant("1")
	if other.Name != "Bob Roe" || other.Username != "bob" || other.Avatar != "bob.png" {
		t.Fatalf("participant not hydrated: %+v", other)
	}
	// the current user is never looked up
	if profiles.calls["1"] != 0 {
		t.Fatalf("current user was looked up %d times", profiles.calls["1"])
	}
}

func TestHydrateToleratesPartialFailure(t *testing.T) {
	profiles := &fakeProfiles{
		profiles: map[model.ID]model.UserDetails{
			"3": {ID: "3", Name: "Carol"},
		},
		failing: map[model.ID]bool{"2": true},
	}
	h := NewHydrator(profiles, zap.NewNop())

	conversations := []model.Conversation{
		{ID: "c1", Participants: []model.Participant{{UserID: "1"}, {UserID: "2"}}},
		{ID: "c2", Participants: []model.Participant{{UserID: "1"}, {UserID: "3"}}},
	}

	hydrated := h.Hydrate(context.Background(), conversations, "1")

	if got := hydrated[0].OtherParticipant("1"); got.Name != "" || got.UserID != "2" {
		t.Fatalf("failed lookup should leave bare user id, got %+v", got)
	}
	if got := hydrated[1].OtherParticipant("1"); got.Name != "Carol" {
		t.Fatalf("successful lookup should enrich, got %+v", got)
	}
}

func TestHydratePreservesIdentityAndOrder(t *testing.T) {
	profiles := &fakeProfiles{profiles: map[model.ID]model.UserDetails{}}
	h := NewHydrator(profiles, zap.NewNop())

	conversations := []model.Conversation{
		{ID: "c2", Participants: []model.Participant{{UserID: "9"}}},
		{ID: "c1", Participants: []model.Participant{{UserID: "8"}}},
	}

	hydrated := h.Hydrate(context.Background(), conversations, "1")

	if hydrated[0].ID != "c2" || hydrated[1].ID != "c1" {
		t.Fatalf("hydration changed order: %s, %s", hydrated[0].ID, hydrated[1].ID)
	}
}

func TestHydrateDeduplicatesLookups(t *testing.T) {
	profiles := &fakeProfiles{
		profiles: map[model.ID]model.UserDetails{"2": {ID: "2", Name: "Bob"}},
	}
	h := NewHydrator(profiles, zap.NewNop())

	conversations := []model.Conversation{
		{ID: "c1", Participants: []model.Participant{{UserID: "1"}, {UserID: "2"}}},
		{ID: "c2", Participants: []model.Participant{{UserID: "1"}, {UserID: "2"}}},
	}

	h.Hydrate(context.Background(), conversations, "1")

	if profiles.calls["2"] != 1 {
		t.Fatalf("expected one lookup for user 2, got %d", profiles.calls["2"])
	}
}
