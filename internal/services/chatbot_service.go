// Package services – ChatbotService
//
// This file implements ChatbotService, which answers POST /chat. Without a
// language model provider it answers greetings from a fixed list and other
// questions from the FAQ index, falling back to a generic invitation to
// contact the office. With a provider it forwards the conversation behind
// a system prompt; provider failures surface as ErrProviderUnavailable
// wrapping the provider's own error.
//
// The FAQ index is immutable and swapped atomically by Reload whenever
// FAQs change, so Reply never blocks on content edits.
package services

import (
	"context"
	"fmt"
	"math/rand/v2"
	"regexp"
	"strings"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/solar-support-backend/internal/domain"
	"github.com/tbourn/solar-support-backend/internal/llm"
	"github.com/tbourn/solar-support-backend/internal/repo"
	"github.com/tbourn/solar-support-backend/internal/search"
)

const (
	roleUser      = "user"
	roleAssistant = "assistant"
	roleSystem    = "system"
)

// ProviderApology is shown to the user when the provider fails.
const ProviderApology = "I apologize, but I'm having trouble processing your request right now. Please try again or contact our support team at (555) 123-4567."

// FallbackAnswer is returned when no FAQ is relevant enough.
const FallbackAnswer = "I'd be happy to help you with that! For specific information about our solar solutions in Guyana, please contact our office. You can also schedule a free consultation, and our team will assess your needs and provide a custom solution. What else would you like to know about solar energy?"

// Greetings are the replies to a greeting.
var Greetings = []string{
	"Hello! I'm your Green Power Solutions AI assistant. How can I help you today?",
	"Welcome to Green Power Solutions! I'm here to answer your solar energy questions.",
	"Hi there! I'm the Green Power Solutions AI assistant. What would you like to know about solar energy?",
	"Greetings! I'm here to help you learn about our solar solutions. What can I assist you with?",
}

const systemPrompt = `You are a helpful AI assistant for Green Power Solutions, a professional solar energy company in Guyana. You help customers with:
- Residential and commercial solar installations
- Solar panels and battery storage
- Financing options and rebates
- The installation process and timeline
- Maintenance and warranty information

Be professional, knowledgeable and helpful. Encourage users to schedule a free consultation for details specific to their needs.`

var greetingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(hi|hello|hey|greetings|good (morning|afternoon|evening))\b`),
	regexp.MustCompile(`(?i)^(what's up|how are you|howdy)\b`),
}

// ChatMessage is one turn of the conversation sent by the widget.
type ChatMessage struct {
	Role    string
	Content string
}

// Suggestion is the proactive prompt the widget shows for a page.
type Suggestion struct {
	Suggestion string `json:"suggestion"`
	Service    string `json:"service"`
	Message    string `json:"message"`
}

var suggestions = map[string]Suggestion{
	"/": {
		Suggestion: "I see you're interested in our solar solutions!",
		Service:    "general",
		Message:    "I'm interested in learning more about solar energy solutions for my property.",
	},
	"/services": {
		Suggestion: "Looking to explore our solar services?",
		Service:    "installation",
		Message:    "I'd like to know more about your solar installation services and packages.",
	},
	"/about": {
		Suggestion: "Want to learn more about Green Power Solutions?",
		Service:    "general",
		Message:    "I'd like to learn more about Green Power Solutions and your experience in Guyana.",
	},
	"/contact": {
		Suggestion: "Ready to start your solar journey?",
		Service:    "consultation",
		Message:    "I'm interested in scheduling a free solar assessment for my property.",
	},
	"/faq": {
		Suggestion: "Have a question not answered in our FAQ?",
		Service:    "general",
		Message:    "I have some questions about solar energy systems.",
	},
}

var defaultSuggestion = Suggestion{
	Suggestion: "How can we help you go solar?",
	Service:    "general",
	Message:    "I'm interested in your solar energy solutions.",
}

// ChatbotService answers chat widget conversations.
type ChatbotService struct {
	DB *gorm.DB

	// Provider, when set, answers instead of the FAQ index.
	Provider llm.Completer

	// MinScore is the FAQ relevance an answer must exceed.
	MinScore int

	// Pick chooses a greeting index in [0, n).
	Pick func(n int) int

	index atomic.Pointer[search.Index]
}

// NewChatbotService constructs a ChatbotService over the built-in FAQ set.
// Call Reload to index the FAQs stored in the database.
func NewChatbotService(db *gorm.DB, provider llm.Completer, minScore int) *ChatbotService {
	s := &ChatbotService{DB: db, Provider: provider, MinScore: minScore, Pick: rand.IntN}
	s.setIndex(search.Defaults())
	return s
}

func (s *ChatbotService) setIndex(entries []search.Entry) {
	idx := search.NewIndex(entries, search.WithMinScore(s.MinScore))
	s.index.Store(&idx)
}

// Reload rebuilds the FAQ index from the published FAQs. An empty table
// keeps the built-in set.
func (s *ChatbotService) Reload(ctx context.Context) error {
	tr := otel.Tracer("services/ChatbotService")
	ctx, span := tr.Start(ctx, "Reload")
	defer span.End()

	faqs, err := repo.ListFAQs(ctx, s.DB, repo.FAQFilter{PublishedOnly: true})
	if err != nil {
		span.RecordError(err)
		return err
	}
	span.SetAttributes(attribute.Int("faq.count", len(faqs)))
	if len(faqs) == 0 {
		s.setIndex(search.Defaults())
		return nil
	}
	s.setIndex(entriesFromFAQs(faqs))
	return nil
}

// Reply answers the last user message of msgs. pageContext is the page
// the widget is shown on, if known.
func (s *ChatbotService) Reply(ctx context.Context, msgs []ChatMessage, pageContext string) (string, error) {
	tr := otel.Tracer("services/ChatbotService")
	ctx, span := tr.Start(ctx, "Reply",
		trace.WithAttributes(
			attribute.Int("messages", len(msgs)),
			attribute.Bool("provider", s.Provider != nil),
		),
	)
	defer span.End()

	if len(msgs) == 0 {
		return "", ErrEmptyConversation
	}
	last := msgs[len(msgs)-1]
	if last.Role != roleUser {
		return "", ErrLastMessageNotUser
	}
	if strings.TrimSpace(last.Content) == "" {
		return "", ErrMissingField
	}

	if s.Provider == nil {
		return s.Answer(last.Content, pageContext), nil
	}

	conv := make([]llm.Message, 0, len(msgs)+1)
	conv = append(conv, llm.Message{Role: roleSystem, Content: systemPrompt})
	for _, m := range msgs {
		if m.Role != roleUser && m.Role != roleAssistant {
			continue
		}
		conv = append(conv, llm.Message{Role: m.Role, Content: m.Content})
	}
	reply, err := s.Provider.Complete(ctx, conv)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "provider failed")
		return "", fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	}
	return reply, nil
}

// Answer is the rule-based reply to a single question.
func (s *ChatbotService) Answer(query, pageContext string) string {
	q := strings.TrimSpace(query)
	for _, p := range greetingPatterns {
		if p.MatchString(q) {
			return Greetings[s.Pick(len(Greetings))]
		}
	}
	if idx := s.index.Load(); idx != nil {
		if res, ok := (*idx).Best(q, contextFromPage(pageContext)); ok {
			return res.Entry.Answer
		}
	}
	return FallbackAnswer
}

// Suggest returns the widget prompt for a page path.
func (s *ChatbotService) Suggest(page string) Suggestion {
	if sg, ok := suggestions[page]; ok {
		return sg
	}
	return defaultSuggestion
}

// contextFromPage turns "/services" into "services" and "/" into "home".
func contextFromPage(page string) string {
	p := strings.Trim(strings.TrimSpace(page), "/")
	if page != "" && p == "" {
		return "home"
	}
	return strings.ToLower(p)
}

func entriesFromFAQs(faqs []domain.FAQ) []search.Entry {
	out := make([]search.Entry, 0, len(faqs))
	for _, f := range faqs {
		e := search.Entry{
			ID:       f.ID,
			Question: f.Question,
			Answer:   f.Answer,
			Keywords: f.Keywords,
			Category: f.Category,
		}
		if f.Page != "" {
			e.Contexts = []string{f.Page}
		}
		out = append(out, e)
	}
	return out
}
