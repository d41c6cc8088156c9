package core

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// CalibrationGateway is the hosted chat-completion API used only for prompt
// calibration. Implemented by llm.AzureOpenAIClient and by test fakes.
type CalibrationGateway interface {
	Complete(ctx context.Context, systemMessage string) (string, error)
}

const calibratorInstruction = "You are a prompt calibration assistant. A user has rated an assistant " +
	"response produced under the system prompt given below and left feedback " +
	"explaining what was wrong. Rewrite the system prompt so that future " +
	"responses address the feedback while keeping the original intent. " +
	"Respond with a JSON object containing a single field " +
	"\"calibrated_system_prompt\" whose value is the rewritten prompt. " +
	"The rating, feedback and current system prompt follow. "

type calibratedOutput struct {
	CalibratedSystemPrompt string `json:"calibrated_system_prompt"`
}

// Calibrator derives a revised system prompt from a rated turn via one
// completion call against the hosted gateway. No retries, no caching.
type Calibrator struct {
	gateway CalibrationGateway
}

func NewCalibrator(gateway CalibrationGateway) *Calibrator {
	return &Calibrator{gateway: gateway}
}

// Calibrate builds the calibrator instruction by direct concatenation of the
// template with the literal rating, feedback text and current prompt. There
// is deliberately no delimiter between the three fields; ambiguous inputs
// can blur the boundaries, and that is the documented contract of this
// operation, not an accident.
func (c *Calibrator) Calibrate(ctx context.Context, rating int, feedback, basePrompt string) (string, error) {
	instruction := calibratorInstruction + strconv.Itoa(rating) + feedback + basePrompt

	raw, err := c.gateway.Complete(ctx, instruction)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	var out calibratedOutput
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &out); err != nil {
		return "", fmt.Errorf("%w: %v", ErrCalibrationParse, err)
	}
	if out.CalibratedSystemPrompt == "" {
		return "", fmt.Errorf("%w: missing calibrated_system_prompt field", ErrCalibrationParse)
	}
	return out.CalibratedSystemPrompt, nil
}
