package sqlite3_test

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/whisperwall/whisperwall/confessions"
	"github.com/whisperwall/whisperwall/db/sqlite3"
	"github.com/whisperwall/whisperwall/discuss"
	"github.com/whisperwall/whisperwall/gate"
	"github.com/whisperwall/whisperwall/reactions"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	ctx := context.Background()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())

	db, err := sqlite3.NewDB(ctx, dsn)
	require.NoError(t, err)

	t.Cleanup(func() { _ = db.Close() })

	err = sqlite3.MigrateUp(ctx, db)
	require.NoError(t, err)

	return db
}

func insertConfession(t *testing.T, repo *sqlite3.ConfessionRepository, authorID int64) *confessions.Confession {
	t.Helper()

	confession := &confessions.Confession{
		ID:         uuid.NewString(),
		AuthorID:   authorID,
		Text:       "something I never told anyone",
		Categories: []string{"Family", "Regret"},
		Status:     confessions.StatusPending,
		CreatedAt:  time.Now().UTC().Truncate(time.Second),
	}

	err := repo.Insert(context.Background(), confession)
	require.NoError(t, err)

	return confession
}

func insertComment(t *testing.T, repo *sqlite3.CommentRepository, confessionID string, authorID int64, at time.Time) *discuss.Comment {
	t.Helper()

	text := "a comment"

	comment := &discuss.Comment{
		ID:           uuid.NewString(),
		ConfessionID: confessionID,
		AuthorID:     authorID,
		Content:      &text,
		CreatedAt:    at,
	}

	err := repo.Insert(context.Background(), comment)
	require.NoError(t, err)

	return comment
}

func TestConfessionRepository(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("round trip", func(t *testing.T) {
		t.Parallel()

		db := newTestDB(t)
		repo := sqlite3.NewConfessionRepository(db)

		confession := insertConfession(t, repo, 42)

		found, err := repo.Find(ctx, confession.ID)
		require.NoError(t, err)

		assert.Equal(t, confession.ID, found.ID)
		assert.Equal(t, confession.Text, found.Text)
		assert.Equal(t, confession.Categories, found.Categories)
		assert.Equal(t, confessions.StatusPending, found.Status)
		assert.Nil(t, found.ChannelMessageID)
	})

	t.Run("find missing", func(t *testing.T) {
		t.Parallel()

		db := newTestDB(t)
		repo := sqlite3.NewConfessionRepository(db)

		_, err := repo.Find(ctx, uuid.NewString())
		require.ErrorAs(t, err, &confessions.ConfessionNotFoundError{})
	})

	t.Run("first decision wins", func(t *testing.T) {
		t.Parallel()

		db := newTestDB(t)
		repo := sqlite3.NewConfessionRepository(db)

		confession := insertConfession(t, repo, 42)

		decided, err := repo.MarkDecided(ctx, confession.ID, confessions.StatusApproved, nil)
		require.NoError(t, err)
		assert.True(t, decided)

		reason := "nope"

		decided, err = repo.MarkDecided(ctx, confession.ID, confessions.StatusRejected, &reason)
		require.NoError(t, err)
		assert.False(t, decided)

		found, err := repo.Find(ctx, confession.ID)
		require.NoError(t, err)
		assert.Equal(t, confessions.StatusApproved, found.Status)
		assert.Nil(t, found.RejectionReason)
	})

	t.Run("publish credits author exactly once", func(t *testing.T) {
		t.Parallel()

		db := newTestDB(t)
		repo := sqlite3.NewConfessionRepository(db)
		auraRepo := sqlite3.NewAuraRepository(db)

		confession := insertConfession(t, repo, 42)

		_, err := repo.MarkDecided(ctx, confession.ID, confessions.StatusApproved, nil)
		require.NoError(t, err)

		published, err := repo.MarkPublished(ctx, confession.ID, 900, 1)
		require.NoError(t, err)
		assert.True(t, published)

		published, err = repo.MarkPublished(ctx, confession.ID, 901, 1)
		require.NoError(t, err)
		assert.False(t, published)

		found, err := repo.Find(ctx, confession.ID)
		require.NoError(t, err)
		require.NotNil(t, found.ChannelMessageID)
		assert.Equal(t, int64(900), *found.ChannelMessageID)

		points, err := auraRepo.Balance(ctx, 42)
		require.NoError(t, err)
		assert.Equal(t, 1, points)
	})

	t.Run("delete cascades comments and reactions", func(t *testing.T) {
		t.Parallel()

		db := newTestDB(t)
		repo := sqlite3.NewConfessionRepository(db)
		commentRepo := sqlite3.NewCommentRepository(db)
		reactionRepo := sqlite3.NewReactionRepository(db)

		confession := insertConfession(t, repo, 42)
		comment := insertComment(t, commentRepo, confession.ID, 7, time.Now().UTC())

		_, err := reactionRepo.Toggle(ctx, comment.ID, 8, reactions.KindLike, reactions.Deltas{Like: 3, Dislike: -3})
		require.NoError(t, err)

		err = repo.Delete(ctx, confession.ID)
		require.NoError(t, err)

		_, err = repo.Find(ctx, confession.ID)
		require.ErrorAs(t, err, &confessions.ConfessionNotFoundError{})

		_, err = commentRepo.Find(ctx, comment.ID)
		require.ErrorAs(t, err, &discuss.CommentNotFoundError{})

		_, err = reactionRepo.Find(ctx, comment.ID, 8)
		require.ErrorAs(t, err, &reactions.ReactionNotFoundError{})
	})
}

func TestCommentRepository(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("list page keeps creation order", func(t *testing.T) {
		t.Parallel()

		db := newTestDB(t)
		confessionRepo := sqlite3.NewConfessionRepository(db)
		repo := sqlite3.NewCommentRepository(db)

		confession := insertConfession(t, confessionRepo, 42)

		base := time.Now().UTC().Truncate(time.Second)

		var ids []string
		for i := range 5 {
			comment := insertComment(t, repo, confession.ID, int64(i), base.Add(time.Duration(i)*time.Second))
			ids = append(ids, comment.ID)
		}

		page, err := repo.ListPage(ctx, confession.ID, 2, 2)
		require.NoError(t, err)
		require.Len(t, page, 2)
		assert.Equal(t, ids[2], page[0].ID)
		assert.Equal(t, ids[3], page[1].ID)

		total, err := repo.Count(ctx, confession.ID)
		require.NoError(t, err)
		assert.Equal(t, 5, total)

		ordinal, err := repo.Rank(ctx, confession.ID, ids[3])
		require.NoError(t, err)
		assert.Equal(t, 4, ordinal)
	})

	t.Run("insert rejects foreign parent", func(t *testing.T) {
		t.Parallel()

		db := newTestDB(t)
		confessionRepo := sqlite3.NewConfessionRepository(db)
		repo := sqlite3.NewCommentRepository(db)

		first := insertConfession(t, confessionRepo, 42)
		second := insertConfession(t, confessionRepo, 43)

		parent := insertComment(t, repo, first.ID, 7, time.Now().UTC())

		text := "reply"

		err := repo.Insert(ctx, &discuss.Comment{
			ID:           uuid.NewString(),
			ConfessionID: second.ID,
			AuthorID:     8,
			Content:      &text,
			ParentID:     &parent.ID,
			CreatedAt:    time.Now().UTC(),
		})
		require.ErrorAs(t, err, &discuss.ParentNotFoundError{})
	})

	t.Run("delete applies author penalty and keeps replies", func(t *testing.T) {
		t.Parallel()

		db := newTestDB(t)
		confessionRepo := sqlite3.NewConfessionRepository(db)
		repo := sqlite3.NewCommentRepository(db)
		auraRepo := sqlite3.NewAuraRepository(db)

		confession := insertConfession(t, confessionRepo, 42)

		parent := insertComment(t, repo, confession.ID, 7, time.Now().UTC())

		text := "reply"
		reply := &discuss.Comment{
			ID:           uuid.NewString(),
			ConfessionID: confession.ID,
			AuthorID:     8,
			Content:      &text,
			ParentID:     &parent.ID,
			CreatedAt:    time.Now().UTC(),
		}
		require.NoError(t, repo.Insert(ctx, reply))

		err := repo.Delete(ctx, parent.ID, -10)
		require.NoError(t, err)

		points, err := auraRepo.Balance(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, -10, points)

		found, err := repo.Find(ctx, reply.ID)
		require.NoError(t, err)
		require.NotNil(t, found.ParentID)
		assert.Equal(t, parent.ID, *found.ParentID)
	})
}

func TestReactionRepository_Toggle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	db := newTestDB(t)
	confessionRepo := sqlite3.NewConfessionRepository(db)
	commentRepo := sqlite3.NewCommentRepository(db)
	repo := sqlite3.NewReactionRepository(db)
	auraRepo := sqlite3.NewAuraRepository(db)

	confession := insertConfession(t, confessionRepo, 42)
	comment := insertComment(t, commentRepo, confession.ID, 7, time.Now().UTC())

	deltas := reactions.Deltas{Like: 3, Dislike: -3}

	result, err := repo.Toggle(ctx, comment.ID, 8, reactions.KindLike, deltas)
	require.NoError(t, err)
	assert.Nil(t, result.Previous)
	require.NotNil(t, result.Current)
	assert.Equal(t, reactions.KindLike, *result.Current)
	assert.Equal(t, 3, result.AuthorDelta)

	result, err = repo.Toggle(ctx, comment.ID, 8, reactions.KindDislike, deltas)
	require.NoError(t, err)
	require.NotNil(t, result.Previous)
	assert.Equal(t, reactions.KindLike, *result.Previous)
	require.NotNil(t, result.Current)
	assert.Equal(t, reactions.KindDislike, *result.Current)
	assert.Equal(t, -6, result.AuthorDelta)

	result, err = repo.Toggle(ctx, comment.ID, 8, reactions.KindDislike, deltas)
	require.NoError(t, err)
	assert.Nil(t, result.Current)
	assert.Equal(t, 3, result.AuthorDelta)

	points, err := auraRepo.Balance(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 0, points)

	counts, err := repo.CountByComments(ctx, []string{comment.ID})
	require.NoError(t, err)
	assert.Equal(t, reactions.KindCounts{}, counts[comment.ID])

	_, err = repo.Toggle(ctx, uuid.NewString(), 8, reactions.KindLike, deltas)
	require.ErrorAs(t, err, &reactions.CommentNotFoundError{})
}

func TestUserStatusRepository(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	db := newTestDB(t)
	repo := sqlite3.NewUserStatusRepository(db)

	_, err := repo.Find(ctx, 42)
	require.ErrorAs(t, err, &gate.UserStatusNotFoundError{})

	until := time.Now().UTC().Add(24 * time.Hour).Truncate(time.Second)

	err = repo.SetBlock(ctx, 42, &until, "spamming")
	require.NoError(t, err)

	status, err := repo.Find(ctx, 42)
	require.NoError(t, err)
	assert.True(t, status.Blocked)
	require.NotNil(t, status.BlockedUntil)
	assert.True(t, status.BlockedUntil.Equal(until))
	require.NotNil(t, status.BlockReason)
	assert.Equal(t, "spamming", *status.BlockReason)

	err = repo.ClearBlock(ctx, 42)
	require.NoError(t, err)

	status, err = repo.Find(ctx, 42)
	require.NoError(t, err)
	assert.False(t, status.Blocked)
	assert.Nil(t, status.BlockedUntil)
	assert.Nil(t, status.BlockReason)
}
