// Package prompt renders the budget-enforced context into the final
// model prompt. Assembly is pure: same inputs, same prompt.
package prompt

import (
	"strings"

	"github.com/mailmind/mailmind-go-sdk/core"
	"github.com/mailmind/mailmind-go-sdk/memory"
	"github.com/mailmind/mailmind-go-sdk/tokens"
)

// Section is one labeled region of the assembled prompt, with its token
// cost recorded for observability.
type Section struct {
	Name   string
	Text   string
	Tokens int
}

// Assembled is the final prompt, ready for the model call.
type Assembled struct {
	System      string
	UserMessage string
	Sections    []Section
	TotalTokens int
}

// Assembler renders prompts in a fixed section order: rules first, then
// the user profile, then the conversation summary, then recent history
// by recency, then related history by similarity.
type Assembler struct {
	counter tokens.Counter
}

// New creates an Assembler.
func New(counter tokens.Counter) *Assembler {
	return &Assembler{counter: counter}
}

const preamble = "You are an email assistant that drafts responses on behalf of the user.\n"

// FixedTokens returns the token cost of everything enforcement must
// never drop: the preamble, rules, instructions, the user profile, and
// the incoming email itself. Section tag markup is not counted; it is
// noise against the ceilings involved.
func (a *Assembler) FixedTokens(fixed memory.Fixed, email core.Email) int {
	return a.counter.Count(preamble) +
		a.counter.Count(renderRules(fixed.Rules)) +
		a.counter.Count(fixed.Rules.Instructions) +
		a.counter.Count(fixed.User.Text()) +
		a.counter.Count(userMessage(email))
}

func userMessage(email core.Email) string {
	return "Draft a response to this email:\n\n" + email.Text()
}

// Assemble renders the prompt. items is the enforced memory region in
// its enforced order: summary items first, then hot exchanges by
// recency, then warm matches by similarity.
func (a *Assembler) Assemble(fixed memory.Fixed, items []*memory.Item, email core.Email) Assembled {
	var (
		summaries []string
		hot       []string
		warm      []string
	)
	for _, it := range items {
		switch {
		case it.Kind == memory.KindSummary:
			summaries = append(summaries, it.Text)
		case it.Tier == memory.TierHot:
			hot = append(hot, it.Text)
		default:
			warm = append(warm, it.Text)
		}
	}

	sections := []Section{
		a.section("triage_rules", renderRules(fixed.Rules)),
		a.section("instructions", fixed.Rules.Instructions),
		a.section("user_profile", fixed.User.Text()),
	}
	if len(summaries) > 0 {
		sections = append(sections, a.section("conversation_summary", strings.Join(summaries, "\n\n")))
	}
	if len(hot) > 0 {
		sections = append(sections, a.section("recent_history", strings.Join(hot, "\n\n")))
	}
	if len(warm) > 0 {
		sections = append(sections, a.section("related_history", strings.Join(warm, "\n\n")))
	}

	var b strings.Builder
	b.WriteString(preamble)
	total := a.counter.Count(preamble)
	for _, s := range sections {
		total += s.Tokens
		if s.Text == "" {
			continue
		}
		b.WriteString("\n<")
		b.WriteString(s.Name)
		b.WriteString(">\n")
		b.WriteString(s.Text)
		b.WriteString("\n</")
		b.WriteString(s.Name)
		b.WriteString(">\n")
	}

	user := userMessage(email)

	return Assembled{
		System:      b.String(),
		UserMessage: user,
		Sections:    sections,
		TotalTokens: total + a.counter.Count(user),
	}
}

func (a *Assembler) section(name, text string) Section {
	return Section{Name: name, Text: text, Tokens: a.counter.Count(text)}
}

// renderRules lays out the three category rules in triage order.
func renderRules(rs core.RuleSet) string {
	return "Emails to ignore: " + rs.Ignore +
		"\nEmails to notify about: " + rs.Notify +
		"\nEmails to respond to: " + rs.Respond
}
