package transport

import (
	"encoding/json"
	"fmt"
)

// Stream-json wire shapes. The agent emits one JSON object per line on
// stdout; answers travel back as one JSON object per line on stdin.

const (
	msgTypeResult          = "result"
	msgTypeControlRequest  = "control_request"
	msgTypeControlResponse = "control_response"

	controlSubtypeCanUseTool = "can_use_tool"
	questionToolName         = "AskUserQuestion"
)

type streamMessage struct {
	Type    string `json:"type"`
	Subtype string `json:"subtype,omitempty"`

	// Terminal result fields.
	IsError      bool         `json:"is_error,omitempty"`
	Result       string       `json:"result,omitempty"`
	SessionID    string       `json:"session_id,omitempty"`
	DurationMS   int64        `json:"duration_ms,omitempty"`
	TotalCostUSD float64      `json:"total_cost_usd,omitempty"`
	Usage        *streamUsage `json:"usage,omitempty"`

	// Control request fields.
	RequestID string          `json:"request_id,omitempty"`
	Request   *controlRequest `json:"request,omitempty"`
}

type streamUsage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

type controlRequest struct {
	Subtype  string          `json:"subtype"`
	ToolName string          `json:"tool_name"`
	Input    json.RawMessage `json:"input"`
}

type questionInput struct {
	Questions []questionPayload `json:"questions"`
}

type questionPayload struct {
	Question    string          `json:"question"`
	MultiSelect bool            `json:"multiSelect"`
	Options     []optionPayload `json:"options"`
}

type optionPayload struct {
	Label string `json:"label"`
}

// decodeQuestions turns a raw AskUserQuestion tool input into tagged
// Question values alongside the original payload (echoed back on allow).
func decodeQuestions(raw json.RawMessage) (questionInput, []Question, error) {
	var input questionInput
	if err := json.Unmarshal(raw, &input); err != nil {
		return questionInput{}, nil, fmt.Errorf("decode question input: %w", err)
	}
	questions := make([]Question, 0, len(input.Questions))
	for _, q := range input.Questions {
		questions = append(questions, q.toQuestion())
	}
	return input, questions, nil
}

func (q questionPayload) toQuestion() Question {
	options := make([]string, 0, len(q.Options))
	for _, o := range q.Options {
		options = append(options, o.Label)
	}
	kind := QuestionFreeText
	switch {
	case len(options) > 0 && q.MultiSelect:
		kind = QuestionMultiSelect
	case len(options) > 0:
		kind = QuestionSingleSelect
	}
	return Question{Kind: kind, Text: q.Question, Options: options}
}

type controlResponse struct {
	Type     string              `json:"type"`
	Response controlResponseBody `json:"response"`
}

type controlResponseBody struct {
	Subtype   string         `json:"subtype"`
	RequestID string         `json:"request_id"`
	Response  map[string]any `json:"response,omitempty"`
}

// allowResponse approves a tool call with no input changes.
func allowResponse(requestID string) controlResponse {
	return controlResponse{
		Type: msgTypeControlResponse,
		Response: controlResponseBody{
			Subtype:   "success",
			RequestID: requestID,
			Response:  map[string]any{"behavior": "allow"},
		},
	}
}

// answerResponse approves an AskUserQuestion call with the resolved answers
// injected, so the agent continues autonomously in the same process.
func answerResponse(requestID string, input questionInput, answers map[string]string) controlResponse {
	return controlResponse{
		Type: msgTypeControlResponse,
		Response: controlResponseBody{
			Subtype:   "success",
			RequestID: requestID,
			Response: map[string]any{
				"behavior": "allow",
				"updatedInput": map[string]any{
					"questions": input.Questions,
					"answers":   answers,
				},
			},
		},
	}
}
