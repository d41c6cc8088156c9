package core

import "fmt"

// FeedbackAction is the follow-up a user requests when rating a response.
// Handling is exhaustive: code switching on a FeedbackAction must cover
// every constant below and reject anything else, so adding a variant is a
// compile-visible change rather than a silent no-op branch.
type FeedbackAction string

const (
	ActionCalibratePrompt FeedbackAction = "calibrate_prompt"
	ActionNoActionNeeded  FeedbackAction = "no_action_needed"
)

func ParseFeedbackAction(s string) (FeedbackAction, error) {
	switch FeedbackAction(s) {
	case ActionCalibratePrompt:
		return ActionCalibratePrompt, nil
	case ActionNoActionNeeded:
		return ActionNoActionNeeded, nil
	default:
		return "", fmt.Errorf("unknown feedback action: %q", s)
	}
}
