// Package memory keeps conversation context bounded: the short-term
// compactor reranks older turns by relevance to the incoming message, and
// the long-term store keeps summaries of whatever falls out of the window.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/thadeucbr/assistentev4-sub000/internal/embeddings"
	"github.com/thadeucbr/assistentev4-sub000/internal/schema"
)

// Defaults for STMConfig.
const (
	MaxSTMMessages     = 10
	SummarizeThreshold = 7
	MaxSummaryChars    = 24000
)

const truncationMarker = "\n[...content truncated...]"

// STMConfig bounds the short-term window.
type STMConfig struct {
	// MaxMessages is the largest history Compact returns.
	MaxMessages int
	// SummarizeThreshold is how many of the newest messages are always
	// kept. Must be lower than MaxMessages.
	SummarizeThreshold int
	// MaxSummaryChars caps the text handed to the summarizer.
	MaxSummaryChars int
}

func DefaultSTMConfig() STMConfig {
	return STMConfig{
		MaxMessages:        MaxSTMMessages,
		SummarizeThreshold: SummarizeThreshold,
		MaxSummaryChars:    MaxSummaryChars,
	}
}

func (c *STMConfig) applyDefaults() {
	d := DefaultSTMConfig()
	if c.MaxMessages <= 0 {
		c.MaxMessages = d.MaxMessages
	}
	if c.SummarizeThreshold <= 0 {
		c.SummarizeThreshold = d.SummarizeThreshold
	}
	if c.MaxSummaryChars <= 0 {
		c.MaxSummaryChars = d.MaxSummaryChars
	}
}

// Validate reports an unusable configuration.
func (c STMConfig) Validate() error {
	if c.SummarizeThreshold >= c.MaxMessages {
		return fmt.Errorf("summarize threshold (%d) must be lower than max messages (%d)",
			c.SummarizeThreshold, c.MaxMessages)
	}
	return nil
}

// Compactor bounds the short-term history. When the history reaches
// MaxMessages it keeps the newest SummarizeThreshold messages plus the
// older messages most similar to the incoming query, and summarizes the
// rest into long-term memory.
type Compactor struct {
	cfg        STMConfig
	embedder   embeddings.Embedder
	summarizer schema.Summarizer
	sink       schema.LongTermSink
	spawner    schema.TaskSpawner
	logger     *slog.Logger
}

// NewCompactor validates cfg and builds a Compactor. sink and spawner may
// be nil; without a spawner summaries are stored inline.
func NewCompactor(
	cfg STMConfig,
	embedder embeddings.Embedder,
	summarizer schema.Summarizer,
	sink schema.LongTermSink,
	spawner schema.TaskSpawner,
	logger *slog.Logger,
) (*Compactor, error) {
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Compactor{
		cfg:        cfg,
		embedder:   embedder,
		summarizer: summarizer,
		sink:       sink,
		spawner:    spawner,
		logger:     logger,
	}, nil
}

// Compact returns the bounded window: the hot messages in original order
// followed by the kept warm messages in original order. Any embedding or
// summarization failure returns history unchanged.
func (c *Compactor) Compact(ctx context.Context, history schema.Messages, query, userID string) schema.Messages {
	n := history.Len()
	if n < c.cfg.MaxMessages {
		return history
	}

	split := n - c.cfg.SummarizeThreshold
	warm := history.Messages[:split]
	hot := history.Messages[split:]

	scores, err := c.score(ctx, warm, query)
	if err != nil {
		c.logger.Warn("stm: reranking failed, keeping history", "user", userID, "err", err)
		return history
	}

	order := make([]int, len(warm))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return scores[order[a]] > scores[order[b]] })

	keepN := min(c.cfg.MaxMessages-len(hot), len(warm))
	keep := make(map[int]bool, keepN)
	for _, i := range order[:keepN] {
		keep[i] = true
	}

	var kept, dropped []schema.Message
	for i, m := range warm {
		if keep[i] {
			kept = append(kept, m)
		} else {
			dropped = append(dropped, m)
		}
	}

	if text := c.summaryInput(dropped); text != "" {
		summary, err := c.summarizer.Summarize(ctx, text)
		if err != nil {
			c.logger.Warn("stm: summarization failed, keeping history", "user", userID, "err", err)
			return history
		}
		if summary = strings.TrimSpace(summary); summary != "" && c.sink != nil {
			c.store(ctx, userID, summary)
		}
	}

	c.logger.Debug("stm: compacted",
		"user", userID, "before", n, "hot", len(hot), "kept", len(kept), "summarized", len(dropped))

	out := schema.NewMessages(hot...)
	for _, m := range kept {
		out.Add(m)
	}
	return out
}

// store hands the summary to the sink in the background, or inline when
// no spawner was given.
func (c *Compactor) store(ctx context.Context, userID, summary string) {
	task := func(ctx context.Context) error {
		return c.sink.Store(ctx, userID, summary)
	}
	if c.spawner == nil {
		if err := task(ctx); err != nil {
			c.logger.Warn("stm: storing summary failed", "user", userID, "err", err)
		}
		return
	}
	c.spawner.Spawn("ltm-store", task)
}

// score embeds the query once and every textual user/assistant warm
// message. Messages without embeddable text score -Inf.
func (c *Compactor) score(ctx context.Context, warm []schema.Message, query string) ([]float64, error) {
	qvec, err := c.embedder.Generate(ctx, RedactBase64(query))
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	scores := make([]float64, len(warm))
	for i, m := range warm {
		scores[i] = math.Inf(-1)
		if m.Role != schema.RoleUser && m.Role != schema.RoleAssistant {
			continue
		}
		text, ok := m.Content.(string)
		if !ok || strings.TrimSpace(text) == "" {
			continue
		}
		vec, err := c.embedder.Generate(ctx, RedactBase64(text))
		if err != nil {
			return nil, fmt.Errorf("embed message %d: %w", i, err)
		}
		scores[i] = float64(embeddings.CosineSimilarity(qvec, vec))
	}
	return scores, nil
}

func (c *Compactor) summaryInput(dropped []schema.Message) string {
	var sb strings.Builder
	for _, m := range dropped {
		text := strings.TrimSpace(m.Text())
		if text == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(m.Role)
		sb.WriteString(": ")
		sb.WriteString(RedactBase64(text))
	}
	s := sb.String()
	if len(s) > c.cfg.MaxSummaryChars {
		cut := c.cfg.MaxSummaryChars
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut] + truncationMarker
	}
	return s
}

var base64Run = regexp.MustCompile(`[A-Za-z0-9+/]{200,}={0,2}`)

// RedactBase64 replaces long base64 runs (inline images, audio) with a
// short placeholder.
func RedactBase64(s string) string {
	if len(s) < 200 {
		return s
	}
	return base64Run.ReplaceAllStringFunc(s, func(run string) string {
		return fmt.Sprintf("[base64 truncated: %d chars]", len(run))
	})
}
