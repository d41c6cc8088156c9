package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
)

// ErrEmailTaken is returned by CreateUser when the email column's unique
// index rejects the insert.
var ErrEmailTaken = errors.New("email already registered")

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err = store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS users (
        id TEXT PRIMARY KEY, -- UUID
        name TEXT NOT NULL,
        email TEXT UNIQUE NOT NULL,
        password_hash TEXT NOT NULL,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );

    CREATE TABLE IF NOT EXISTS sessions (
        id TEXT PRIMARY KEY, -- UUID
        user_id TEXT NOT NULL,
        session_name TEXT NOT NULL DEFAULT 'new-chat',
        current_prompt TEXT,
        model_name TEXT,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );

    CREATE TABLE IF NOT EXISTS chats (
        id TEXT PRIMARY KEY, -- UUID
        session_id TEXT NOT NULL,
        user_message TEXT NOT NULL,
        assistant_message TEXT NOT NULL,
        model_used TEXT NOT NULL,
        prompt_version_id TEXT,
        rating INTEGER,
        feedback TEXT,
        action TEXT,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );

    CREATE TABLE IF NOT EXISTS prompts (
        id TEXT PRIMARY KEY, -- UUID
        session_id TEXT UNIQUE NOT NULL, -- one prompt row per session
        base_prompt TEXT NOT NULL,
        current_prompt TEXT NOT NULL,
        calibrated_prompts TEXT NOT NULL DEFAULT '[]', -- JSON array of superseded prompts
        version_number INTEGER NOT NULL DEFAULT 1,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );
    `
	_, err := s.db.Exec(schema)
	return err
}

// User methods

func (s *SQLiteStore) CreateUser(ctx context.Context, name, email, passwordHash string) (*User, error) {
	user := &User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO users (id, name, email, password_hash, created_at) VALUES (?, ?, ?, ?, ?)",
		user.ID, user.Name, user.Email, user.PasswordHash, user.CreatedAt)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	return user, nil
}

func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var user User
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, email, password_hash, created_at FROM users WHERE email = ?", email).
		Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // User not found
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &user, nil
}

func (s *SQLiteStore) GetUserByID(ctx context.Context, id string) (*User, error) {
	var user User
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, email, password_hash, created_at FROM users WHERE id = ?", id).
		Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}
	return &user, nil
}

// Session methods

func (s *SQLiteStore) CreateSession(ctx context.Context, userID, sessionName string) (*Session, error) {
	if sessionName == "" {
		sessionName = "new-chat"
	}
	session := &Session{
		ID:          uuid.NewString(),
		UserID:      userID,
		SessionName: sessionName,
		CreatedAt:   time.Now(),
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO sessions (id, user_id, session_name, created_at) VALUES (?, ?, ?, ?)",
		session.ID, session.UserID, session.SessionName, session.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert session: %w", err)
	}
	return session, nil
}

func (s *SQLiteStore) GetSessionByID(ctx context.Context, sessionID string) (*Session, error) {
	var session Session
	var currentPrompt, modelName sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT id, user_id, session_name, current_prompt, model_name, created_at FROM sessions WHERE id = ?", sessionID).
		Scan(&session.ID, &session.UserID, &session.SessionName, &currentPrompt, &modelName, &session.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if currentPrompt.Valid {
		session.CurrentPrompt = &currentPrompt.String
	}
	if modelName.Valid {
		session.ModelName = &modelName.String
	}
	return &session, nil
}

func (s *SQLiteStore) GetSessionsByUserID(ctx context.Context, userID string) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, user_id, session_name, current_prompt, model_name, created_at FROM sessions WHERE user_id = ? ORDER BY created_at DESC", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var session Session
		var currentPrompt, modelName sql.NullString
		if err := rows.Scan(&session.ID, &session.UserID, &session.SessionName, &currentPrompt, &modelName, &session.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		if currentPrompt.Valid {
			session.CurrentPrompt = &currentPrompt.String
		}
		if modelName.Valid {
			session.ModelName = &modelName.String
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// UpdateSessionState remembers the model and system prompt last used in a
// session.
func (s *SQLiteStore) UpdateSessionState(ctx context.Context, sessionID, currentPrompt, modelName string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE sessions SET current_prompt = ?, model_name = ? WHERE id = ?",
		currentPrompt, modelName, sessionID)
	if err != nil {
		return fmt.Errorf("failed to update session state: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("session not found, state not updated")
	}
	return nil
}

func (s *SQLiteStore) UpdateSessionPrompt(ctx context.Context, sessionID, currentPrompt string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE sessions SET current_prompt = ? WHERE id = ?", currentPrompt, sessionID)
	if err != nil {
		return fmt.Errorf("failed to update session prompt: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("session not found, prompt not updated")
	}
	return nil
}

// Chat methods

func (s *SQLiteStore) CreateChat(ctx context.Context, chat *Chat) error {
	chat.ID = uuid.NewString() // Ensure ID is set
	chat.CreatedAt = time.Now()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chats (id, session_id, user_message, assistant_message, model_used, prompt_version_id, rating, feedback, action, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		chat.ID, chat.SessionID, chat.UserMessage, chat.AssistantMessage, chat.ModelUsed,
		chat.PromptVersionID, chat.Rating, chat.Feedback, chat.Action, chat.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert chat: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetChatByID(ctx context.Context, chatID string) (*Chat, error) {
	var chat Chat
	var promptVersionID, feedback, action sql.NullString
	var rating sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, session_id, user_message, assistant_message, model_used, prompt_version_id, rating, feedback, action, created_at
         FROM chats WHERE id = ?`, chatID).
		Scan(&chat.ID, &chat.SessionID, &chat.UserMessage, &chat.AssistantMessage, &chat.ModelUsed,
			&promptVersionID, &rating, &feedback, &action, &chat.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get chat: %w", err)
	}
	applyChatNullables(&chat, promptVersionID, rating, feedback, action)
	return &chat, nil
}

func (s *SQLiteStore) GetChatsBySessionID(ctx context.Context, sessionID string) ([]Chat, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, user_message, assistant_message, model_used, prompt_version_id, rating, feedback, action, created_at
         FROM chats WHERE session_id = ? ORDER BY created_at ASC, rowid ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query chats: %w", err)
	}
	defer rows.Close()

	var chats []Chat
	for rows.Next() {
		var chat Chat
		var promptVersionID, feedback, action sql.NullString
		var rating sql.NullInt64
		if err := rows.Scan(&chat.ID, &chat.SessionID, &chat.UserMessage, &chat.AssistantMessage, &chat.ModelUsed,
			&promptVersionID, &rating, &feedback, &action, &chat.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chat row: %w", err)
		}
		applyChatNullables(&chat, promptVersionID, rating, feedback, action)
		chats = append(chats, chat)
	}
	return chats, rows.Err()
}

// UpdateChatFeedback overwrites rating, feedback and action unconditionally;
// repeated submissions are last-write-wins.
func (s *SQLiteStore) UpdateChatFeedback(ctx context.Context, chatID string, rating int, feedback, action string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE chats SET rating = ?, feedback = ?, action = ? WHERE id = ?",
		rating, feedback, action, chatID)
	if err != nil {
		return fmt.Errorf("failed to update chat feedback: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("chat not found, feedback not updated")
	}
	return nil
}

func applyChatNullables(chat *Chat, promptVersionID sql.NullString, rating sql.NullInt64, feedback, action sql.NullString) {
	if promptVersionID.Valid {
		chat.PromptVersionID = &promptVersionID.String
	}
	if rating.Valid {
		r := int(rating.Int64)
		chat.Rating = &r
	}
	if feedback.Valid {
		chat.Feedback = &feedback.String
	}
	if action.Valid {
		chat.Action = &action.String
	}
}

// Prompt methods

// GetOrCreatePrompt establishes the session's prompt row. The unique index
// on session_id makes this safe under concurrent first sends: the insert is
// a no-op for the loser and both callers read back the same row.
func (s *SQLiteStore) GetOrCreatePrompt(ctx context.Context, sessionID, basePrompt string) (*Prompt, error) {
	now := time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO prompts (id, session_id, base_prompt, current_prompt, calibrated_prompts, version_number, created_at, updated_at)
         VALUES (?, ?, ?, ?, '[]', 1, ?, ?)
         ON CONFLICT(session_id) DO NOTHING`,
		uuid.NewString(), sessionID, basePrompt, basePrompt, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to insert prompt: %w", err)
	}
	prompt, err := s.GetPromptBySessionID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if prompt == nil {
		return nil, fmt.Errorf("prompt missing after get-or-create for session %s", sessionID)
	}
	return prompt, nil
}

func (s *SQLiteStore) GetPromptBySessionID(ctx context.Context, sessionID string) (*Prompt, error) {
	var prompt Prompt
	var calibratedJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, session_id, base_prompt, current_prompt, calibrated_prompts, version_number, created_at, updated_at
         FROM prompts WHERE session_id = ?`, sessionID).
		Scan(&prompt.ID, &prompt.SessionID, &prompt.BasePrompt, &prompt.CurrentPrompt,
			&calibratedJSON, &prompt.VersionNumber, &prompt.CreatedAt, &prompt.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get prompt: %w", err)
	}
	if calibratedJSON != "" {
		if err := json.Unmarshal([]byte(calibratedJSON), &prompt.CalibratedPrompts); err != nil {
			return nil, fmt.Errorf("failed to unmarshal calibrated prompts for session %s: %w", sessionID, err)
		}
	}
	return &prompt, nil
}

// ApplyCalibratedPrompt replaces the session prompt's current text, appends
// the superseded text to the calibration history and bumps the version.
func (s *SQLiteStore) ApplyCalibratedPrompt(ctx context.Context, sessionID, calibratedPrompt string) (*Prompt, error) {
	prompt, err := s.GetPromptBySessionID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if prompt == nil {
		return nil, fmt.Errorf("no prompt row for session %s", sessionID)
	}

	prompt.CalibratedPrompts = append(prompt.CalibratedPrompts, prompt.CurrentPrompt)
	prompt.CurrentPrompt = calibratedPrompt
	prompt.VersionNumber++
	prompt.UpdatedAt = time.Now()

	calibratedJSON, err := json.Marshal(prompt.CalibratedPrompts)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal calibrated prompts: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		"UPDATE prompts SET current_prompt = ?, calibrated_prompts = ?, version_number = ?, updated_at = ? WHERE session_id = ?",
		prompt.CurrentPrompt, string(calibratedJSON), prompt.VersionNumber, prompt.UpdatedAt, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to update prompt: %w", err)
	}
	return prompt, nil
}
