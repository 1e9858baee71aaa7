// Package answer turns retrieved evidence into a response. The generative
// path is best effort with a retry budget; the extractive path always works
// and is the fallback whenever the model is unavailable or disabled.
package answer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"opskb/internal/kb"
	"opskb/internal/kb/llm"
	"opskb/pkg/logger"
)

// NoEvidenceAnswer is the fixed response when retrieval found nothing.
const NoEvidenceAnswer = "I could not find relevant information in the knowledge base for this question. Try rephrasing it, or check that the right documents have been uploaded and processed."

const lowConfidenceNote = "Note: no strongly matching passages were found; the answer below is based on the closest available content."

// Result is a synthesized answer plus the provenance it was built from.
type Result struct {
	Text          string
	Citations     []kb.Citation
	Generative    bool // produced by the model, not extracted
	LowConfidence bool // built only from below-floor evidence
}

// Synthesizer builds answers from evidence. A nil model client makes every
// answer extractive.
type Synthesizer struct {
	model         llm.Client
	timeout       time.Duration
	maxRetries    int
	contextBudget int
	log           *logger.Logger
}

func New(model llm.Client, timeout time.Duration, maxRetries, contextBudget int, log *logger.Logger) *Synthesizer {
	return &Synthesizer{
		model:         model,
		timeout:       timeout,
		maxRetries:    maxRetries,
		contextBudget: contextBudget,
		log:           log,
	}
}

// Synthesize produces an answer for the question given the retrieved
// evidence and optional prior conversation turns.
func (s *Synthesizer) Synthesize(ctx context.Context, question string, evidence []kb.Evidence, history []llm.Message) (*Result, error) {
	if len(evidence) == 0 {
		return &Result{Text: NoEvidenceAnswer}, nil
	}

	lowConfidence := evidence[0].BelowFloor
	citations := make([]kb.Citation, len(evidence))
	for i, ev := range evidence {
		citations[i] = kb.CitationOf(ev)
	}

	if s.model != nil {
		text, err := s.generate(ctx, question, evidence, history)
		if err == nil {
			return &Result{
				Text:          decorate(text, lowConfidence),
				Citations:     citations,
				Generative:    true,
				LowConfidence: lowConfidence,
			}, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.log.WithError(err).Warn("generative answer failed, falling back to extractive")
	}

	return &Result{
		Text:          decorate(extractive(question, evidence), lowConfidence),
		Citations:     citations,
		LowConfidence: lowConfidence,
	}, nil
}

// generate calls the model with retries and exponential backoff. Each
// attempt gets its own timeout so one hung request cannot eat the budget.
func (s *Synthesizer) generate(ctx context.Context, question string, evidence []kb.Evidence, history []llm.Message) (string, error) {
	messages := s.buildMessages(question, evidence, history)

	var lastErr error
	backoff := 500 * time.Millisecond
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		attemptCtx, cancel := context.WithTimeout(ctx, s.timeout)
		text, err := s.model.Generate(attemptCtx, messages)
		cancel()
		if err == nil && strings.TrimSpace(text) != "" {
			return text, nil
		}
		if err == nil {
			err = fmt.Errorf("%w: model returned empty answer", kb.ErrGenerativeFailed)
		}
		lastErr = err
		s.log.WithError(err).WithField("attempt", attempt+1).Debug("generative attempt failed")
	}
	return "", fmt.Errorf("%w: %v", kb.ErrGenerativeFailed, lastErr)
}

func (s *Synthesizer) buildMessages(question string, evidence []kb.Evidence, history []llm.Message) []llm.Message {
	var b strings.Builder
	b.WriteString("You are a knowledge-base assistant. Answer the question using only the context passages below. If the context does not contain the answer, say so. Cite passages as [1], [2] and so on.\n\nContext:\n")

	used := 0
	for i, ev := range evidence {
		passage := fmt.Sprintf("[%d] (%s)\n%s\n\n", i+1, ev.DocumentName, ev.Text)
		if s.contextBudget > 0 && used+len(passage) > s.contextBudget {
			break
		}
		b.WriteString(passage)
		used += len(passage)
	}

	messages := []llm.Message{{Role: llm.RoleSystem, Content: b.String()}}
	messages = append(messages, history...)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: question})
	return messages
}

// extractive assembles an answer directly from the best passages. No model
// involved, so it cannot hallucinate and cannot fail.
func extractive(question string, evidence []kb.Evidence) string {
	var b strings.Builder
	b.WriteString("Here is what the knowledge base contains on this topic:\n\n")

	limit := len(evidence)
	if limit > 3 {
		limit = 3
	}
	for i := 0; i < limit; i++ {
		ev := evidence[i]
		fmt.Fprintf(&b, "From %s:\n%s\n\n", ev.DocumentName, snippet(ev.Text, 500))
	}
	return strings.TrimRight(b.String(), "\n")
}

func decorate(text string, lowConfidence bool) string {
	if !lowConfidence {
		return text
	}
	return lowConfidenceNote + "\n\n" + text
}

// snippet truncates on a rune boundary, trying to end at a sentence.
func snippet(text string, max int) string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) <= max {
		return string(runes)
	}
	cut := runes[:max]
	for i := len(cut) - 1; i > max/2; i-- {
		switch cut[i] {
		case '.', '!', '?', '。', '！', '？':
			return string(cut[:i+1])
		}
	}
	return string(cut) + "…"
}
