package hydrate

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"SkillXChange/internal/model"
)

// ProfileFetcher is the slice of the user repository that hydration needs.
type ProfileFetcher interface {
	ProfileByID(ctx context.Context, id model.ID) (*model.UserDetails, error)
}

// Hydrator enriches conversation participants with display identity resolved
// through individual profile lookups. Enrichment is best-effort: a failed
// lookup leaves that participant with its bare user id and never aborts the
// batch.
type Hydrator struct {
	profiles ProfileFetcher
	logger   *zap.Logger
}

func NewHydrator(profiles ProfileFetcher, logger *zap.Logger) *Hydrator {
	return &Hydrator{profiles: profiles, logger: logger}
}

// Hydrate fills in participant display fields for every participant other
// than the current user. Lookups run concurrently, one per distinct user id.
// Conversation identity and ordering are never changed.
func (h *Hydrator) Hydrate(ctx context.Context, conversations []model.Conversation, currentUserID model.ID) []model.Conversation {
	ids := distinctParticipantIDs(conversations, currentUserID)
	if len(ids) == 0 {
		return conversations
	}

	var (
		mu       sync.Mutex
		profiles = make(map[model.ID]*model.UserDetails, len(ids))
		wg       sync.WaitGroup
	)

	for _, id := range ids {
		wg.Add(1)
		go func(id model.ID) {
			defer wg.Done()
			profile, err := h.profiles.ProfileByID(ctx, id)
			if err != nil {
				h.logger.Debug("profile lookup failed, participant left unresolved",
					zap.String("user_id", id.String()),
					zap.Error(err))
				return
			}
			mu.Lock()
			profiles[id] = profile
			mu.Unlock()
		}(id)
	}
	wg.Wait()

	hydrated := make([]model.Conversation, len(conversations))
	for i, conversation := range conversations {
		participants := make([]model.Participant, len(conversation.Participants))
		for j, p := range conversation.Participants {
			if profile, ok := profiles[p.UserID]; ok {
				p.Name = profile.Name
				p.Username = profile.Username
				p.Avatar = profile.ProfileImage
			}
			participants[j] = p
		}
		conversation.Participants = participants
		hydrated[i] = conversation
	}
	return hydrated
}

func distinctParticipantIDs(conversations []model.Conversation, currentUserID model.ID) []model.ID {
	seen := make(map[model.ID]struct{})
	var ids []model.ID
	for _, conversation := range conversations {
		for _, p := range conversation.Participants {
			if p.UserID == currentUserID || p.UserID.IsZero() {
				continue
			}
			if _, ok := seen[p.UserID]; ok {
				continue
			}
			seen[p.UserID] = struct{}{}
			ids = append(ids, p.UserID)
		}
	}
	return ids
}
