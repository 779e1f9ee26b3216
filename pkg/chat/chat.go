package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dtnitsch/school-kb/models"
	"github.com/dtnitsch/school-kb/pkg/caching"
	"github.com/dtnitsch/school-kb/pkg/knowledge"
	"github.com/dtnitsch/school-kb/pkg/llm"
	"github.com/dtnitsch/school-kb/pkg/metrics"
)

// ErrEmptyMessage is returned for a blank user message.
var ErrEmptyMessage = errors.New("empty message")

const systemPrompt = "You are a helpful school assistant. Detect if the user writes in English, Spanish, or Japanese " +
	"and reply in that language. Prefer matching-language entries from the provided context. " +
	"If no direct match exists, translate the best available answer. Keep responses concise."

// FormatContext renders entries as tagged blocks: "[EN]\nQ: ..\nA: .." for
// English and "[ES]\nP: ..\nR: .." style for the other languages.
func FormatContext(entries []models.KnowledgeEntry, lang models.Language) string {
	tag := "[" + strings.ToUpper(string(lang)) + "]"
	qLabel, aLabel := "P:", "R:"
	if lang == models.English {
		qLabel, aLabel = "Q:", "A:"
	}
	blocks := make([]string, 0, len(entries))
	for _, e := range entries {
		blocks = append(blocks, fmt.Sprintf("%s\n%s %s\n%s %s", tag, qLabel, e.Question, aLabel, e.Answer))
	}
	return strings.Join(blocks, "\n\n")
}

// Prompt is one system/user pair ready for a Completer.
type Prompt struct {
	System string
	User   string
}

// BuildPrompt assembles the prompt for msg. forced is an optional reply
// language; anything other than en/es/ja is ignored. hint is the fuzzy
// match, if any.
func BuildPrompt(entries map[models.Language][]models.KnowledgeEntry, msg, forced string, hint *models.KnowledgeEntry) Prompt {
	var blocks []string
	for _, lang := range models.Languages {
		if len(entries[lang]) > 0 {
			blocks = append(blocks, FormatContext(entries[lang], lang))
		}
	}

	var hintText string
	if hint != nil {
		hintText = fmt.Sprintf("\n\nLikely match:\nQ: %s\nA: %s", hint.Question, hint.Answer)
	}

	system := systemPrompt
	if lang, ok := models.ParseLanguage(forced); ok {
		system += fmt.Sprintf(" The user requested replies in %s regardless of input.", strings.ToUpper(string(lang)))
	}

	var user string
	if len(blocks) > 0 {
		user = fmt.Sprintf("Context:\n%s\n%s\n\nUser: %s", strings.Join(blocks, "\n\n"), hintText, msg)
	} else {
		user = fmt.Sprintf("%s\n\nUser: %s", hintText, msg)
	}
	return Prompt{System: system, User: user}
}

// Service answers chat messages from the cached knowledge base.
type Service struct {
	cache     *caching.Cache
	completer llm.Completer
	cutoff    float64
	logger    *slog.Logger
}

func NewService(cache *caching.Cache, completer llm.Completer, cutoff float64, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{cache: cache, completer: completer, cutoff: cutoff, logger: logger}
}

// Reply returns the model's answer to msg.
func (s *Service) Reply(ctx context.Context, msg, lang string) (string, error) {
	msg = strings.TrimSpace(msg)
	if msg == "" {
		return "", ErrEmptyMessage
	}
	if s.completer == nil {
		return "", llm.ErrNotConfigured
	}

	snap := s.cache.Context(ctx)
	var hint *models.KnowledgeEntry
	if best, ok := knowledge.Match(msg, knowledge.Candidates(snap.Entries), s.cutoff); ok {
		hint = &best
		metrics.MatchResults.WithLabelValues("hit").Inc()
	} else {
		metrics.MatchResults.WithLabelValues("miss").Inc()
	}

	p := BuildPrompt(snap.Entries, msg, lang, hint)
	reply, err := s.completer.Complete(ctx, p.System, p.User)
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	s.logger.Debug("Answered chat message", "lang", lang, "hint", hint != nil)
	return reply, nil
}
