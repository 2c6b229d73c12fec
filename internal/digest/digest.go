// Package digest aggregates ticker mentions over a time window of stored
// messages and renders the ranked report.
package digest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/edgard/tickerdigest/internal/database"
	"github.com/edgard/tickerdigest/internal/ticker"
)

const (
	// Title is the first line of every report.
	Title = "Daily Telegram Ticker Digest"

	// NoMentionsReport is returned when the window has no symbol mentions.
	NoMentionsReport = Title + "\n\nNo ticker mentions found in the last 24 hours."

	// Window is how far back a daily digest reads.
	Window = 24 * time.Hour

	windowLayout = "2006-01-02 15:04"

	DefaultTopN       = 15
	DefaultMaxSamples = 3
	DefaultPreviewLen = 160
)

// MessageLister reads stored messages from a point in time onwards, oldest first.
type MessageLister interface {
	ListMessagesSince(ctx context.Context, since time.Time) ([]database.WindowMessage, error)
}

// Mention is the per-symbol aggregate of one digest run.
type Mention struct {
	Symbol  string
	Count   int
	Samples []string
}

// Aggregator builds digests from a MessageLister. It holds no state between calls.
type Aggregator struct {
	source     MessageLister
	extractor  *ticker.Extractor
	topN       int
	maxSamples int
	previewLen int
	location   *time.Location
	logger     *slog.Logger
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithExtractor sets the symbol extractor.
func WithExtractor(e *ticker.Extractor) Option {
	return func(a *Aggregator) {
		if e != nil {
			a.extractor = e
		}
	}
}

// WithTopN sets how many symbols the report lists.
func WithTopN(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.topN = n
		}
	}
}

// WithMaxSamples sets how many example texts are kept per symbol.
func WithMaxSamples(n int) Option {
	return func(a *Aggregator) {
		if n >= 0 {
			a.maxSamples = n
		}
	}
}

// WithPreviewLen sets the maximum sample length in runes.
func WithPreviewLen(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.previewLen = n
		}
	}
}

// WithLocation sets the time zone of the window line.
func WithLocation(loc *time.Location) Option {
	return func(a *Aggregator) {
		if loc != nil {
			a.location = loc
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Aggregator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// NewAggregator returns an Aggregator reading from source.
func NewAggregator(source MessageLister, opts ...Option) *Aggregator {
	a := &Aggregator{
		source:     source,
		extractor:  ticker.WithDefaults(),
		topN:       DefaultTopN,
		maxSamples: DefaultMaxSamples,
		previewLen: DefaultPreviewLen,
		location:   time.Local,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With("component", "digest")
	return a
}

// Compute counts symbol mentions in messages at or after since. Mentions are
// returned in the order each symbol was first seen.
func (a *Aggregator) Compute(ctx context.Context, since time.Time) ([]Mention, error) {
	rows, err := a.source.ListMessagesSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("list messages since %s: %w", since.Format(time.RFC3339), err)
	}

	index := make(map[string]int)
	var mentions []Mention

	for _, row := range rows {
		symbols := a.extractor.Extract(row.Text)
		if len(symbols) == 0 {
			continue
		}
		preview := Preview(row.Text, a.previewLen)

		for _, symbol := range symbols {
			i, seen := index[symbol]
			if !seen {
				i = len(mentions)
				index[symbol] = i
				mentions = append(mentions, Mention{Symbol: symbol})
			}
			m := &mentions[i]
			m.Count++
			if preview != "" && len(m.Samples) < a.maxSamples && !slices.Contains(m.Samples, preview) {
				m.Samples = append(m.Samples, preview)
			}
		}
	}

	a.logger.DebugContext(ctx, "Computed mentions", "rows", len(rows), "symbols", len(mentions))
	return mentions, nil
}

// Build computes mentions since since and renders the report for the window
// [since, now].
func (a *Aggregator) Build(ctx context.Context, since, now time.Time) (string, error) {
	mentions, err := a.Compute(ctx, since)
	if err != nil {
		return "", err
	}
	if len(mentions) == 0 {
		return NoMentionsReport, nil
	}
	return a.render(Rank(mentions, a.topN), since, now), nil
}

func (a *Aggregator) render(top []Mention, since, now time.Time) string {
	var b strings.Builder
	b.WriteString(Title)
	b.WriteString("\n")
	fmt.Fprintf(&b, "Window: %s - %s\n",
		since.In(a.location).Format(windowLayout),
		now.In(a.location).Format(windowLayout))
	b.WriteString("\n")

	for _, m := range top {
		fmt.Fprintf(&b, "$%s — %d mentions\n", m.Symbol, m.Count)
		for _, sample := range m.Samples {
			b.WriteString("  • ")
			b.WriteString(sample)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	return strings.TrimRightFunc(b.String(), unicode.IsSpace)
}

// Rank orders mentions by count, highest first, keeping the input order for
// equal counts, and returns at most n of them. The input is not modified.
func Rank(mentions []Mention, n int) []Mention {
	ranked := make([]Mention, len(mentions))
	copy(ranked, mentions)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Count > ranked[j].Count
	})
	if n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// Preview trims text, replaces line breaks with spaces, and truncates it to
// limit runes.
func Preview(text string, limit int) string {
	text = strings.TrimSpace(text)
	text = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(text)
	if limit > 0 {
		if runes := []rune(text); len(runes) > limit {
			text = string(runes[:limit])
		}
	}
	return text
}
