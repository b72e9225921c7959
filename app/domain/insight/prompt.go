package insight

import (
	"fmt"
	"strings"

	"solara.ai/insights-gateway/app/domain/generation"
	"solara.ai/insights-gateway/app/domain/subject"
)

const systemPrompt = `You are an astrologer writing for a consumer app.
Write in the language with BCP 47 tag %q.
Answer with a single JSON object and nothing else. Required keys: %s.`

type promptInput struct {
	policy   KindPolicy
	subject  *subject.Subject
	partner  *subject.Subject
	period   string
	language string
	spread   string
	question string
}

func buildPrompt(in promptInput) generation.Prompt {
	var b strings.Builder
	switch in.policy.Kind {
	case KindNatalNarrative:
		b.WriteString("Write a natal chart narrative.\n")
	case KindRelationshipBrief:
		fmt.Fprintf(&b, "Write a relationship brief for %s.\n", in.period)
	case KindTarotReading:
		fmt.Fprintf(&b, "Draw a %s tarot spread for %s and interpret it.\n", in.spread, in.period)
		fmt.Fprintf(&b, "Question: %s\n", in.question)
	default:
		fmt.Fprintf(&b, "Write the %s horoscope for the period %s.\n", in.policy.Timeframe, in.period)
	}
	writeSubject(&b, "Subject", in.subject)
	if in.partner != nil {
		writeSubject(&b, "Partner", in.partner)
	}
	return generation.Prompt{
		System:      fmt.Sprintf(systemPrompt, in.language, strings.Join(in.policy.RequiredFields, ", ")),
		User:        b.String(),
		MaxTokens:   in.policy.MaxTokens,
		Temperature: in.policy.Temperature,
		JSONMode:    true,
	}
}

func writeSubject(b *strings.Builder, label string, s *subject.Subject) {
	facts := s.BirthFacts()
	fmt.Fprintf(b, "%s: %s\n", label, displayName(s))
	if facts.Date != "" {
		fmt.Fprintf(b, "  born %s", facts.Date)
		if facts.Time != "" {
			fmt.Fprintf(b, " at %s", facts.Time)
		}
		if facts.Place != "" {
			fmt.Fprintf(b, " in %s", facts.Place)
		}
		b.WriteString("\n")
	}
	if facts.Latitude != nil && facts.Longitude != nil {
		fmt.Fprintf(b, "  coordinates %.4f, %.4f\n", *facts.Latitude, *facts.Longitude)
	}
}

func displayName(s *subject.Subject) string {
	if name := strings.TrimSpace(s.DisplayName); name != "" {
		return name
	}
	return "the reader"
}
