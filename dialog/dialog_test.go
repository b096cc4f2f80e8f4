package dialog_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/whisperwall/whisperwall/confessions"
	"github.com/whisperwall/whisperwall/dialog"
)

func TestSelectingCategories(t *testing.T) {
	t.Parallel()

	t.Run("toggle adds and removes a label", func(t *testing.T) {
		t.Parallel()

		s := dialog.SelectingCategories{}

		s, err := s.Toggle("Family")
		require.NoError(t, err)
		assert.Equal(t, []string{"Family"}, s.Chosen)

		s, err = s.Toggle("Family")
		require.NoError(t, err)
		assert.Empty(t, s.Chosen)
	})

	t.Run("fourth label is rejected without losing the selection", func(t *testing.T) {
		t.Parallel()

		s := dialog.SelectingCategories{Chosen: []string{"Family", "School", "Crush"}}

		next, err := s.Toggle("Health")

		var limitErr confessions.CategoryLimitError
		require.ErrorAs(t, err, &limitErr)
		assert.Equal(t, s.Chosen, next.Chosen)
	})

	t.Run("finalize requires at least one label", func(t *testing.T) {
		t.Parallel()

		_, err := dialog.SelectingCategories{}.Finalize()

		var noCategoryErr confessions.NoCategoryError
		require.ErrorAs(t, err, &noCategoryErr)

		awaiting, err := dialog.SelectingCategories{Chosen: []string{"Other"}}.Finalize()
		require.NoError(t, err)
		assert.Equal(t, []string{"Other"}, awaiting.Chosen)
	})
}

func TestManager(t *testing.T) {
	t.Parallel()

	t.Run("unknown user is idle", func(t *testing.T) {
		t.Parallel()

		m := dialog.NewManager(0)

		assert.Equal(t, dialog.Idle{}, m.Get(1))
	})

	t.Run("set then get round-trips the state", func(t *testing.T) {
		t.Parallel()

		m := dialog.NewManager(0)
		m.Set(1, dialog.AwaitingReply{CommentID: "c1"})

		assert.Equal(t, dialog.AwaitingReply{CommentID: "c1"}, m.Get(1))
	})

	t.Run("starting a new flow overwrites the previous one", func(t *testing.T) {
		t.Parallel()

		m := dialog.NewManager(0)
		m.Set(1, dialog.SelectingCategories{Chosen: []string{"Family"}})
		m.Set(1, dialog.AwaitingContact{})

		assert.Equal(t, dialog.AwaitingContact{}, m.Get(1))
	})

	t.Run("setting idle clears the entry", func(t *testing.T) {
		t.Parallel()

		m := dialog.NewManager(0)
		m.Set(1, dialog.AwaitingContact{})
		m.Set(1, dialog.Idle{})

		assert.Equal(t, dialog.Idle{}, m.Get(1))
	})

	t.Run("stale state expires on read", func(t *testing.T) {
		t.Parallel()

		m := dialog.NewManager(time.Nanosecond)
		m.Set(1, dialog.AwaitingContact{})

		time.Sleep(time.Millisecond)

		assert.Equal(t, dialog.Idle{}, m.Get(1))
	})
}
