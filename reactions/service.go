package reactions

import (
	"context"
	"fmt"

	"github.com/whisperwall/whisperwall/aura"
)

type Outcome string

const (
	OutcomeAdded    Outcome = "added"
	OutcomeRemoved  Outcome = "removed"
	OutcomeSwitched Outcome = "switched"
)

type Service struct {
	reactionRepo Repository
	deltas       Deltas
}

func NewService(reactionRepo Repository) *Service {
	return &Service{
		reactionRepo: reactionRepo,
		deltas: Deltas{
			Like:    aura.DeltaLikeReceived,
			Dislike: aura.DeltaDislikeReceived,
		},
	}
}

// React toggles the viewer's reaction on a comment. The comment author's
// balance reflects the currently active reaction exactly once, even under
// concurrent reactions on the same comment.
func (svc *Service) React(ctx context.Context, commentID string, viewerID int64, kind Kind) (Outcome, error) {
	if !kind.IsValid() {
		return "", InvalidKindError{Kind: kind}
	}

	result, err := svc.reactionRepo.Toggle(ctx, commentID, viewerID, kind, svc.deltas)
	if err != nil {
		return "", fmt.Errorf("failed to toggle reaction: %w", err)
	}

	switch {
	case result.Current == nil:
		return OutcomeRemoved, nil
	case result.Previous == nil:
		return OutcomeAdded, nil
	default:
		return OutcomeSwitched, nil
	}
}
