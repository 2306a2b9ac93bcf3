// Package search provides the deterministic, concurrency-safe FAQ matcher
// behind the support chatbot. An Index is immutable after construction and
// safe for concurrent use; callers swap in a new Index when FAQs change.
//
// Scoring is additive and purely lexical:
//
//   - +20 when the FAQ is tagged with the request context (page)
//   - per query word of three or more runes: +15 when the question contains
//     it, +10 for every keyword that contains it or is contained by it, +5
//     for every question word that contains it or is contained by it
//   - +25 once when any keyword contains the whole query or vice versa
//
// The best entry wins when its score is above the configured minimum.
package search

import (
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Entry is one answerable question.
type Entry struct {
	ID       string
	Question string
	Answer   string
	Keywords []string
	Category string
	Contexts []string
}

// Result is a ranked entry with its relevance score.
type Result struct {
	Entry Entry
	Score int
}

// Index is the minimal interface implemented by FAQ indices.
type Index interface {
	// Best returns the highest scoring entry for query, and false when no
	// entry clears the minimum score.
	Best(query, context string) (Result, bool)
	// TopK returns up to k entries with a positive score, best first.
	TopK(query, context string, k int) []Result
	// Len reports the number of indexed entries.
	Len() int
}

// ----------------------------------------------------------------------------
// Options

type Option func(*config)

type config struct {
	minScore int
}

func defaultConfig() config {
	return config{minScore: 10}
}

// WithMinScore sets the score an answer must exceed.
func WithMinScore(n int) Option {
	return func(c *config) {
		if n >= 0 {
			c.minScore = n
		}
	}
}

// ----------------------------------------------------------------------------
// Implementation

type doc struct {
	entry         Entry
	question      string
	questionWords []string
	keywords      []string
	contexts      map[string]struct{}
}

type index struct {
	cfg  config
	docs []doc
}

var lower = cases.Lower(language.Und)

// NewIndex builds an Index over entries. Entries without a question or an
// answer are skipped.
func NewIndex(entries []Entry, opts ...Option) Index {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	docs := make([]doc, 0, len(entries))
	for _, e := range entries {
		if strings.TrimSpace(e.Question) == "" || strings.TrimSpace(e.Answer) == "" {
			continue
		}
		q := lower.String(e.Question)
		d := doc{
			entry:         e,
			question:      q,
			questionWords: splitWords(q),
			contexts:      make(map[string]struct{}, len(e.Contexts)),
		}
		for _, k := range e.Keywords {
			if k = lower.String(strings.TrimSpace(k)); k != "" {
				d.keywords = append(d.keywords, k)
			}
		}
		for _, c := range e.Contexts {
			if c = lower.String(strings.TrimSpace(c)); c != "" {
				d.contexts[c] = struct{}{}
			}
		}
		docs = append(docs, d)
	}
	return &index{cfg: cfg, docs: docs}
}

func (i *index) Len() int { return len(i.docs) }

// Best implements Index. Ties go to the entry indexed first.
func (i *index) Best(query, context string) (Result, bool) {
	top := i.TopK(query, context, 1)
	if len(top) == 0 || top[0].Score <= i.cfg.minScore {
		return Result{}, false
	}
	return top[0], true
}

// TopK implements Index.
func (i *index) TopK(query, context string, k int) []Result {
	if len(i.docs) == 0 || strings.TrimSpace(query) == "" {
		return nil
	}
	if k <= 0 {
		k = 3
	}
	q := lower.String(strings.TrimSpace(query))
	if context == "" {
		context = InferContext(q)
	}
	context = lower.String(context)
	words := splitWords(q)

	out := make([]Result, 0, len(i.docs))
	for _, d := range i.docs {
		if s := score(q, words, context, d); s > 0 {
			out = append(out, Result{Entry: d.entry, Score: s})
		}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Score > out[b].Score })
	if k < len(out) {
		out = out[:k]
	}
	return out
}

func score(q string, words []string, context string, d doc) int {
	n := 0
	if context != "" {
		if _, ok := d.contexts[context]; ok {
			n += 20
		}
	}
	for _, w := range words {
		if utf8.RuneCountInString(w) < 3 {
			continue
		}
		if strings.Contains(d.question, w) {
			n += 15
		}
		for _, k := range d.keywords {
			if strings.Contains(k, w) || strings.Contains(w, k) {
				n += 10
			}
		}
		for _, qw := range d.questionWords {
			if strings.Contains(qw, w) || strings.Contains(w, qw) {
				n += 5
			}
		}
	}
	for _, k := range d.keywords {
		if strings.Contains(q, k) || strings.Contains(k, q) {
			n += 25
			break
		}
	}
	return n
}

// splitWords splits on single spaces, keeping punctuation attached.
func splitWords(s string) []string {
	parts := strings.Split(s, " ")
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// InferContext guesses the page a free-text query is about.
func InferContext(query string) string {
	q := lower.String(query)
	switch {
	case strings.Contains(q, "home"), strings.Contains(q, "residential"):
		return "home"
	case strings.Contains(q, "service"):
		return "services"
	case strings.Contains(q, "contact"), strings.Contains(q, "reach"):
		return "contact"
	case strings.Contains(q, "about"), strings.Contains(q, "company"):
		return "about"
	case strings.Contains(q, "faq"), strings.Contains(q, "question"):
		return "faq"
	}
	return ""
}
