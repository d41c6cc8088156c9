package store

import "time"

type User struct {
	ID           string    `json:"id"` // UUID
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Do not expose this in JSON responses
	CreatedAt    time.Time `json:"created_at"`
}

type Session struct {
	ID            string    `json:"id"` // UUID
	UserID        string    `json:"user_id"`
	SessionName   string    `json:"session_name"`
	CurrentPrompt *string   `json:"current_prompt"` // Nullable until a prompt is established
	ModelName     *string   `json:"model_name"`     // Latest model used in this session
	CreatedAt     time.Time `json:"created_at"`
}

// Chat is one recorded turn pair within a session. Rating, feedback and
// action stay null until feedback is submitted; subsequent submissions
// overwrite them (last write wins).
type Chat struct {
	ID               string    `json:"id"` // UUID
	SessionID        string    `json:"session_id"`
	UserMessage      string    `json:"user_message"`
	AssistantMessage string    `json:"assistant_message"`
	ModelUsed        string    `json:"model_used"`
	PromptVersionID  *string   `json:"prompt_version_id"`
	Rating           *int      `json:"rating"`
	Feedback         *string   `json:"feedback"`
	Action           *string   `json:"action"`
	CreatedAt        time.Time `json:"created_at"`
}

// Prompt holds the system prompt state of one session. CalibratedPrompts
// accumulates every superseded prompt, newest last.
type Prompt struct {
	ID                string    `json:"id"` // UUID
	SessionID         string    `json:"session_id"`
	BasePrompt        string    `json:"base_prompt"`
	CurrentPrompt     string    `json:"current_prompt"`
	CalibratedPrompts []string  `json:"calibrated_prompts"`
	VersionNumber     int       `json:"version_number"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}
