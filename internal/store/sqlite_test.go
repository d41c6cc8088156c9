package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupStore creates a fresh database in a temp directory.
func setupStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateAndGetUser(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	user, err := s.CreateUser(ctx, "alice", "a@x.com", "hashed")
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)

	byEmail, err := s.GetUserByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	require.NotNil(t, byEmail)
	assert.Equal(t, user.ID, byEmail.ID)
	assert.Equal(t, "alice", byEmail.Name)

	byID, err := s.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, "a@x.com", byID.Email)

	missing, err := s.GetUserByEmail(ctx, "nobody@x.com")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestDuplicateEmailRejected(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	_, err := s.CreateUser(ctx, "alice", "a@x.com", "hashed")
	require.NoError(t, err)

	_, err = s.CreateUser(ctx, "alice again", "a@x.com", "hashed2")
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestSessionLifecycle(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	session, err := s.CreateSession(ctx, "user-1", "demo")
	require.NoError(t, err)
	assert.Equal(t, "demo", session.SessionName)

	// Empty name falls back to the default.
	unnamed, err := s.CreateSession(ctx, "user-1", "")
	require.NoError(t, err)
	assert.Equal(t, "new-chat", unnamed.SessionName)

	fetched, err := s.GetSessionByID(ctx, session.ID)
	require.NoError(t, err)
	require.NotNil(t, fetched)
	assert.Nil(t, fetched.CurrentPrompt)
	assert.Nil(t, fetched.ModelName)

	require.NoError(t, s.UpdateSessionState(ctx, session.ID, "be brief", "m1"))
	fetched, err = s.GetSessionByID(ctx, session.ID)
	require.NoError(t, err)
	require.NotNil(t, fetched.CurrentPrompt)
	assert.Equal(t, "be brief", *fetched.CurrentPrompt)
	require.NotNil(t, fetched.ModelName)
	assert.Equal(t, "m1", *fetched.ModelName)

	sessions, err := s.GetSessionsByUserID(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, sessions, 2)

	none, err := s.GetSessionByID(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestChatLifecycle(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	session, err := s.CreateSession(ctx, "user-1", "demo")
	require.NoError(t, err)

	first := &Chat{
		SessionID:        session.ID,
		UserMessage:      "hello",
		AssistantMessage: "hi there",
		ModelUsed:        "m1",
	}
	require.NoError(t, s.CreateChat(ctx, first))
	assert.NotEmpty(t, first.ID)

	second := &Chat{
		SessionID:        session.ID,
		UserMessage:      "and again",
		AssistantMessage: "hello again",
		ModelUsed:        "m1",
	}
	require.NoError(t, s.CreateChat(ctx, second))

	chats, err := s.GetChatsBySessionID(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, chats, 2)
	assert.Equal(t, "hello", chats[0].UserMessage)
	assert.Equal(t, "and again", chats[1].UserMessage)
	assert.Nil(t, chats[0].Rating)

	require.NoError(t, s.UpdateChatFeedback(ctx, first.ID, 1, "too verbose", "no_action_needed"))

	fetched, err := s.GetChatByID(ctx, first.ID)
	require.NoError(t, err)
	require.NotNil(t, fetched)
	require.NotNil(t, fetched.Rating)
	assert.Equal(t, 1, *fetched.Rating)
	require.NotNil(t, fetched.Feedback)
	assert.Equal(t, "too verbose", *fetched.Feedback)

	// Last write wins on repeated submissions.
	require.NoError(t, s.UpdateChatFeedback(ctx, first.ID, 5, "actually fine", "no_action_needed"))
	fetched, err = s.GetChatByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, *fetched.Rating)

	err = s.UpdateChatFeedback(ctx, "missing", 1, "x", "no_action_needed")
	assert.Error(t, err)
}

func TestGetOrCreatePromptFirstWriteWins(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	session, err := s.CreateSession(ctx, "user-1", "demo")
	require.NoError(t, err)

	prompt, err := s.GetOrCreatePrompt(ctx, session.ID, "be helpful")
	require.NoError(t, err)
	assert.Equal(t, "be helpful", prompt.BasePrompt)
	assert.Equal(t, "be helpful", prompt.CurrentPrompt)
	assert.Equal(t, 1, prompt.VersionNumber)
	assert.Empty(t, prompt.CalibratedPrompts)

	// A second call must return the existing row, not overwrite it.
	again, err := s.GetOrCreatePrompt(ctx, session.ID, "be terse")
	require.NoError(t, err)
	assert.Equal(t, prompt.ID, again.ID)
	assert.Equal(t, "be helpful", again.CurrentPrompt)
}

func TestApplyCalibratedPrompt(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	session, err := s.CreateSession(ctx, "user-1", "demo")
	require.NoError(t, err)

	_, err = s.GetOrCreatePrompt(ctx, session.ID, "be helpful")
	require.NoError(t, err)

	updated, err := s.ApplyCalibratedPrompt(ctx, session.ID, "be helpful and terse")
	require.NoError(t, err)
	assert.Equal(t, "be helpful and terse", updated.CurrentPrompt)
	assert.Equal(t, "be helpful", updated.BasePrompt)
	assert.Equal(t, 2, updated.VersionNumber)
	assert.Equal(t, []string{"be helpful"}, updated.CalibratedPrompts)

	updated, err = s.ApplyCalibratedPrompt(ctx, session.ID, "third version")
	require.NoError(t, err)
	assert.Equal(t, 3, updated.VersionNumber)
	assert.Equal(t, []string{"be helpful", "be helpful and terse"}, updated.CalibratedPrompts)

	_, err = s.ApplyCalibratedPrompt(ctx, "missing-session", "x")
	assert.Error(t, err)
}
