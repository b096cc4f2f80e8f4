package reactions_test

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/whisperwall/whisperwall/reactions"
)

// fakeRepo mimics the storage contract: one row per (comment, user) and
// the author balance adjusted by the same toggle.
type fakeRepo struct {
	authorByComment map[string]int64
	rows            map[[2]string]reactions.Kind
	points          map[int64]int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		authorByComment: map[string]int64{},
		rows:            map[[2]string]reactions.Kind{},
		points:          map[int64]int{},
	}
}

func key(commentID string, userID int64) [2]string {
	return [2]string{commentID, strconv.FormatInt(userID, 10)}
}

func (repo *fakeRepo) Find(_ context.Context, commentID string, userID int64) (*reactions.Reaction, error) {
	kind, ok := repo.rows[key(commentID, userID)]
	if !ok {
		return nil, reactions.ReactionNotFoundError{CommentID: commentID, UserID: userID}
	}

	return &reactions.Reaction{CommentID: commentID, UserID: userID, Kind: kind, CreatedAt: time.Now()}, nil
}

func (repo *fakeRepo) Toggle(_ context.Context, commentID string, userID int64, kind reactions.Kind, deltas reactions.Deltas) (*reactions.ToggleResult, error) {
	authorID, ok := repo.authorByComment[commentID]
	if !ok {
		return nil, reactions.CommentNotFoundError{CommentID: commentID}
	}

	result := &reactions.ToggleResult{}

	if prev, ok := repo.rows[key(commentID, userID)]; ok {
		p := prev
		result.Previous = &p
		result.AuthorDelta -= deltas.For(prev)
	}

	if result.Previous != nil && *result.Previous == kind {
		delete(repo.rows, key(commentID, userID))
	} else {
		repo.rows[key(commentID, userID)] = kind
		k := kind
		result.Current = &k
		result.AuthorDelta += deltas.For(kind)
	}

	repo.points[authorID] += result.AuthorDelta

	return result, nil
}

func (repo *fakeRepo) CountByComments(_ context.Context, commentIDs []string) (map[string]reactions.KindCounts, error) {
	out := map[string]reactions.KindCounts{}

	for _, id := range commentIDs {
		counts := reactions.KindCounts{}

		for k, kind := range repo.rows {
			if k[0] != id {
				continue
			}

			if kind == reactions.KindLike {
				counts.Likes++
			} else {
				counts.Dislikes++
			}
		}

		out[id] = counts
	}

	return out, nil
}

const (
	commentID = "aaaa"
	authorID  = int64(42)
	viewerID  = int64(7)
)

func TestReact(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("first like is added and credits the author", func(t *testing.T) {
		t.Parallel()

		repo := newFakeRepo()
		repo.authorByComment[commentID] = authorID
		svc := reactions.NewService(repo)

		outcome, err := svc.React(ctx, commentID, viewerID, reactions.KindLike)
		require.NoError(t, err)

		assert.Equal(t, reactions.OutcomeAdded, outcome)
		assert.Equal(t, 3, repo.points[authorID])
	})

	t.Run("repeating the same kind toggles it off and reverses the delta", func(t *testing.T) {
		t.Parallel()

		repo := newFakeRepo()
		repo.authorByComment[commentID] = authorID
		svc := reactions.NewService(repo)

		_, err := svc.React(ctx, commentID, viewerID, reactions.KindLike)
		require.NoError(t, err)

		outcome, err := svc.React(ctx, commentID, viewerID, reactions.KindLike)
		require.NoError(t, err)

		assert.Equal(t, reactions.OutcomeRemoved, outcome)
		assert.Zero(t, repo.points[authorID])
		assert.Empty(t, repo.rows)
	})

	t.Run("the opposite kind flips without double counting", func(t *testing.T) {
		t.Parallel()

		repo := newFakeRepo()
		repo.authorByComment[commentID] = authorID
		svc := reactions.NewService(repo)

		_, err := svc.React(ctx, commentID, viewerID, reactions.KindLike)
		require.NoError(t, err)

		outcome, err := svc.React(ctx, commentID, viewerID, reactions.KindDislike)
		require.NoError(t, err)

		assert.Equal(t, reactions.OutcomeSwitched, outcome)
		assert.Equal(t, -3, repo.points[authorID])
		assert.Len(t, repo.rows, 1)
	})

	t.Run("any sequence leaves at most one row and an exact balance", func(t *testing.T) {
		t.Parallel()

		repo := newFakeRepo()
		repo.authorByComment[commentID] = authorID
		svc := reactions.NewService(repo)

		sequence := []reactions.Kind{
			reactions.KindLike, reactions.KindDislike, reactions.KindDislike,
			reactions.KindDislike, reactions.KindLike, reactions.KindLike,
		}

		for _, kind := range sequence {
			_, err := svc.React(ctx, commentID, viewerID, kind)
			require.NoError(t, err)
		}

		// like → flip to dislike → off → dislike → flip to like → off.
		assert.Empty(t, repo.rows)
		assert.Zero(t, repo.points[authorID])
	})

	t.Run("reacting on a deleted comment is a not-found outcome", func(t *testing.T) {
		t.Parallel()

		svc := reactions.NewService(newFakeRepo())

		_, err := svc.React(ctx, "ghost", viewerID, reactions.KindLike)

		var notFoundErr reactions.CommentNotFoundError
		require.ErrorAs(t, err, &notFoundErr)
	})

	t.Run("unknown kinds are rejected before touching storage", func(t *testing.T) {
		t.Parallel()

		svc := reactions.NewService(newFakeRepo())

		_, err := svc.React(ctx, commentID, viewerID, reactions.Kind("meh"))

		var invalidErr reactions.InvalidKindError
		require.ErrorAs(t, err, &invalidErr)
	})
}
