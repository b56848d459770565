package evaluator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-go-golems/careertwin/pkg/conversation"
	"github.com/go-go-golems/careertwin/pkg/steps/ai/claude/api"
	"github.com/rs/zerolog/log"
)

const (
	DefaultModel     = "claude-3-7-sonnet-latest"
	DefaultMaxTokens = 300
	DefaultTimeout   = 60 * time.Second

	// maxRawFeedback bounds the feedback kept from an unparseable verdict.
	maxRawFeedback = 400
)

const Rubric = "You are an evaluator that decides whether a response is acceptable. " +
	"Judge helpfulness, professionalism, factuality with respect to the provided persona documents, and clarity. " +
	"Return JSON with: is_acceptable (true/false) and feedback (1-2 short sentences)."

// MessageSender is the part of the Anthropic client the judge needs.
type MessageSender interface {
	SendMessage(ctx context.Context, req *api.MessageRequest) (*api.MessageResponse, error)
}

// Judge asks a secondary model to grade replies against Rubric.
type Judge struct {
	client    MessageSender
	model     string
	maxTokens int
	timeout   time.Duration
}

var _ Evaluator = (*Judge)(nil)

type JudgeOption func(*Judge)

func WithModel(model string) JudgeOption {
	return func(j *Judge) { j.model = model }
}

func WithMaxTokens(n int) JudgeOption {
	return func(j *Judge) { j.maxTokens = n }
}

func WithTimeout(d time.Duration) JudgeOption {
	return func(j *Judge) { j.timeout = d }
}

func NewJudge(client MessageSender, options ...JudgeOption) *Judge {
	j := &Judge{
		client:    client,
		model:     DefaultModel,
		maxTokens: DefaultMaxTokens,
		timeout:   DefaultTimeout,
	}
	for _, o := range options {
		o(j)
	}
	return j
}

func (j *Judge) Evaluate(ctx context.Context, c Candidate) Evaluation {
	prompt, err := BuildPrompt(c)
	if err != nil {
		return degraded(err)
	}

	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	resp, err := j.client.SendMessage(ctx, &api.MessageRequest{
		Model:     j.model,
		MaxTokens: j.maxTokens,
		System:    Rubric,
		Messages:  []api.Message{api.NewUserMessage(prompt)},
	})
	if err != nil {
		log.Warn().Err(err).Msg("evaluator: judge call failed, accepting reply")
		return degraded(err)
	}

	ev := ParseVerdict(resp.Text())
	log.Debug().
		Bool("acceptable", ev.IsAcceptable).
		Str("status", string(ev.Status)).
		Str("feedback", ev.Feedback).
		Msg("evaluator: verdict")
	return ev
}

func degraded(err error) Evaluation {
	return Evaluation{IsAcceptable: true, Feedback: err.Error(), Status: StatusDegraded}
}

// historyEntry is the serialized form of a history message.
type historyEntry struct {
	Role       string                  `json:"role"`
	Content    string                  `json:"content"`
	ToolCalls  []conversation.ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string                  `json:"tool_call_id,omitempty"`
}

// BuildPrompt renders the user turn sent to the judge.
func BuildPrompt(c Candidate) (string, error) {
	entries := make([]historyEntry, 0, len(c.History))
	for _, m := range c.History {
		entries = append(entries, historyEntry{
			Role:       string(m.Role),
			Content:    m.Content,
			ToolCalls:  m.ToolCalls,
			ToolCallID: m.ToolCallID,
		})
	}

	convo, err := json.Marshal(entries)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(
		"Conversation so far (JSON array of messages):\n%s\n\nUser message: %s\n\nAgent reply: %s\n\nProvide only the JSON object.",
		convo, c.UserMessage, c.Reply,
	), nil
}

// ParseVerdict extracts the verdict from the judge's text. Missing fields
// default to acceptable with empty feedback; unparseable text is accepted
// with the text itself as feedback.
func ParseVerdict(text string) Evaluation {
	var raw struct {
		IsAcceptable *bool   `json:"is_acceptable"`
		Feedback     *string `json:"feedback"`
	}
	if err := json.Unmarshal([]byte(stripCodeFence(text)), &raw); err != nil {
		return Evaluation{
			IsAcceptable: true,
			Feedback:     truncate(strings.TrimSpace(text), maxRawFeedback),
			Status:       StatusDegraded,
		}
	}

	ev := Evaluation{IsAcceptable: true, Status: StatusJudged}
	if raw.IsAcceptable != nil {
		ev.IsAcceptable = *raw.IsAcceptable
	}
	if raw.Feedback != nil {
		ev.Feedback = *raw.Feedback
	}
	return ev
}

func stripCodeFence(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		// drop the info string, e.g. ```json
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
