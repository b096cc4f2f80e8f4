package confessions_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/whisperwall/whisperwall/confessions"
)

type fakeConfessionRepo struct {
	byID map[string]*confessions.Confession
}

func newFakeConfessionRepo() *fakeConfessionRepo {
	return &fakeConfessionRepo{byID: make(map[string]*confessions.Confession)}
}

func (repo *fakeConfessionRepo) Insert(_ context.Context, confession *confessions.Confession) error {
	repo.byID[confession.ID] = confession
	return nil
}

func (repo *fakeConfessionRepo) Find(_ context.Context, id string) (*confessions.Confession, error) {
	confession, ok := repo.byID[id]
	if !ok {
		return nil, confessions.ConfessionNotFoundError{ID: id}
	}

	return confession, nil
}

func (repo *fakeConfessionRepo) MarkDecided(_ context.Context, id string, status confessions.Status, reason *string) (bool, error) {
	confession, ok := repo.byID[id]
	if !ok || confession.Status != confessions.StatusPending {
		return false, nil
	}

	confession.Status = status
	confession.RejectionReason = reason

	return true, nil
}

func (repo *fakeConfessionRepo) MarkPublished(_ context.Context, id string, messageID int64, _ int) (bool, error) {
	confession, ok := repo.byID[id]
	if !ok || confession.ChannelMessageID != nil {
		return false, nil
	}

	confession.ChannelMessageID = &messageID

	return true, nil
}

func (repo *fakeConfessionRepo) Delete(_ context.Context, id string) error {
	delete(repo.byID, id)
	return nil
}

func TestSubmit(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("valid confession is persisted as pending", func(t *testing.T) {
		t.Parallel()

		repo := newFakeConfessionRepo()
		svc := confessions.NewService(repo)

		confession, err := svc.Submit(ctx, 42, "I never learned to swim.", []string{"Other"})
		require.NoError(t, err)

		assert.NotEmpty(t, confession.ID)
		assert.Equal(t, confessions.StatusPending, confession.Status)
		assert.Nil(t, confession.ChannelMessageID)

		stored, err := repo.Find(ctx, confession.ID)
		require.NoError(t, err)
		assert.Equal(t, confession, stored)
	})

	t.Run("text shorter than ten characters is rejected", func(t *testing.T) {
		t.Parallel()

		svc := confessions.NewService(newFakeConfessionRepo())

		_, err := svc.Submit(ctx, 42, "too short", []string{"Other"})

		var tooShortErr confessions.TextTooShortError
		require.ErrorAs(t, err, &tooShortErr)
		assert.Equal(t, 9, tooShortErr.Length)
	})

	t.Run("surrounding whitespace does not count toward the minimum", func(t *testing.T) {
		t.Parallel()

		svc := confessions.NewService(newFakeConfessionRepo())

		_, err := svc.Submit(ctx, 42, "   short    \n\n", []string{"Other"})

		var tooShortErr confessions.TextTooShortError
		require.ErrorAs(t, err, &tooShortErr)
	})

	t.Run("banned terms are matched case-insensitively", func(t *testing.T) {
		t.Parallel()

		svc := confessions.NewService(newFakeConfessionRepo())

		_, err := svc.Submit(ctx, 42, "join now HTTPS://spam.example dot com", []string{"Other"})

		var prohibitedErr confessions.ProhibitedContentError
		require.ErrorAs(t, err, &prohibitedErr)
		assert.Equal(t, "https://", prohibitedErr.Term)
	})

	t.Run("at least one category is required", func(t *testing.T) {
		t.Parallel()

		svc := confessions.NewService(newFakeConfessionRepo())

		_, err := svc.Submit(ctx, 42, "a confession of adequate length", nil)

		var noCategoryErr confessions.NoCategoryError
		require.ErrorAs(t, err, &noCategoryErr)
	})

	t.Run("more than three categories is rejected", func(t *testing.T) {
		t.Parallel()

		svc := confessions.NewService(newFakeConfessionRepo())

		_, err := svc.Submit(ctx, 42, "a confession of adequate length",
			[]string{"Family", "School", "Crush", "Health"})

		var limitErr confessions.CategoryLimitError
		require.ErrorAs(t, err, &limitErr)
	})

	t.Run("unknown category label is rejected", func(t *testing.T) {
		t.Parallel()

		svc := confessions.NewService(newFakeConfessionRepo())

		_, err := svc.Submit(ctx, 42, "a confession of adequate length", []string{"Gossip"})

		var unknownErr confessions.UnknownCategoryError
		require.ErrorAs(t, err, &unknownErr)
		assert.Equal(t, "Gossip", unknownErr.Label)
	})
}
