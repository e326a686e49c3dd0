package score

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/codeGROOVE-dev/personamatch/pkg/embed"
	"github.com/codeGROOVE-dev/personamatch/pkg/llm"
	"github.com/codeGROOVE-dev/personamatch/pkg/persona"
)

// Rationales reported when the judge cannot produce a verdict.
const (
	ValidationError = "validation error"
	ServiceError    = "service error"
)

// MaxReasonLen bounds the judge rationale, in runes.
const MaxReasonLen = 500

// ErrInvalidVerdict marks a judge reply that could not be decoded.
var ErrInvalidVerdict = errors.New("invalid judge verdict")

// Verdict is the judge's answer.
type Verdict struct {
	Score  float64 `json:"score"  jsonschema:"minimum=0,maximum=1" jsonschema_description:"1 means definitely the same person and 0 definitely different"`
	Reason string  `json:"reason" jsonschema_description:"Short justification"`
}

// UnmarshalJSON accepts the score as a number or a quoted number.
func (v *Verdict) UnmarshalJSON(data []byte) error {
	var raw struct {
		Score  json.Number `json:"score"`
		Reason string      `json:"reason"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	v.Reason = raw.Reason
	v.Score = 0
	if raw.Score == "" {
		return nil
	}
	f, err := raw.Score.Float64()
	if err != nil {
		return fmt.Errorf("score %q: %w", raw.Score, err)
	}
	v.Score = f
	return nil
}

// Judge compares an enriched seed with a candidate using contextual reasoning.
// An error wrapping ErrInvalidVerdict means the reply was malformed; any other
// error means the call itself failed.
type Judge interface {
	Judge(ctx context.Context, seed persona.EnrichedRecord, cand persona.CandidateRecord) (Verdict, error)
}

// JudgeSystemPrompt is the system message sent with every judge request.
const JudgeSystemPrompt = "You are a HR verification AI that outputs JSON"

const judgeTemplate = `You are an expert at verifying if two professional profiles belong to the same person.
Analyze the following profiles and give a score between 0 and 1 (1=definitely same, 0=definitely different).
Consider job history, skills, education, and social links and most importantly the timezone, company industry and company size of the person.
Keep the reason under 500 characters.
Return JSON matching this schema:
%s

Profile 1:
%s

Profile 2:
%s
`

// JudgePrompt renders the user message for one comparison.
func JudgePrompt(seed persona.EnrichedRecord, cand persona.CandidateRecord) (string, error) {
	a, err := json.MarshalIndent(seed, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal seed: %w", err)
	}
	b, err := json.MarshalIndent(cand, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal candidate: %w", err)
	}
	return fmt.Sprintf(judgeTemplate, llm.Schema(Verdict{}), a, b), nil
}

// LLMJudge asks a chat model for a verdict.
type LLMJudge struct {
	chat    llm.Chatter
	lenient bool
}

// NewLLMJudge creates a judge. With lenient set, fenced or slightly malformed
// replies are repaired instead of rejected.
func NewLLMJudge(chat llm.Chatter, lenient bool) *LLMJudge {
	return &LLMJudge{chat: chat, lenient: lenient}
}

// Judge implements Judge.
func (j *LLMJudge) Judge(ctx context.Context, seed persona.EnrichedRecord, cand persona.CandidateRecord) (Verdict, error) {
	prompt, err := JudgePrompt(seed, cand)
	if err != nil {
		return Verdict{}, err
	}
	reply, err := j.chat.Chat(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: JudgeSystemPrompt},
		{Role: llm.RoleUser, Content: prompt},
	})
	if err != nil {
		return Verdict{}, fmt.Errorf("judge call: %w", err)
	}
	var v Verdict
	if err := llm.DecodeJSON(reply, &v, j.lenient); err != nil {
		return Verdict{}, fmt.Errorf("%w: %w", ErrInvalidVerdict, err)
	}
	return normalize(v), nil
}

func normalize(v Verdict) Verdict {
	v.Score = embed.Clamp01(v.Score)
	v.Reason = truncateRunes(strings.TrimSpace(v.Reason), MaxReasonLen)
	return v
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
