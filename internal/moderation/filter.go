// Package moderation classifies free-text content before it reaches command
// handlers. The bot pipeline only consumes the verdict: blocking content is
// rejected with a notice, flagged content passes through for later review.
// Redaction is not done here.
package moderation

import (
	"context"
	"strings"
)

// Severity is the moderation verdict for a piece of text.
type Severity int

const (
	// SeverityNone - контент чистый.
	SeverityNone Severity = iota
	// SeverityFlagged - подозрительный контент, пропускается, но помечается.
	SeverityFlagged
	// SeverityBlocking - запрещённый контент, сообщение отклоняется.
	SeverityBlocking
)

// String returns the string representation of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityNone:
		return "none"
	case SeverityFlagged:
		return "flagged"
	case SeverityBlocking:
		return "blocking"
	default:
		return "unknown"
	}
}

// Verdict is the result of classifying one text.
type Verdict struct {
	Severity Severity

	// Matches lists the terms that produced the verdict.
	Matches []string
}

// IsBlocking reports whether the content must be rejected.
func (v Verdict) IsBlocking() bool {
	return v.Severity == SeverityBlocking
}

// Classifier takes raw text and returns a severity verdict.
type Classifier interface {
	Classify(ctx context.Context, text string) (Verdict, error)
}

// ══════════════════════════════════════════════════════════════════════════════
// WORD LIST FILTER
// Simple substring-based implementation. Good enough for a first line of
// defence; a smarter model can replace it behind the same interface.
// ══════════════════════════════════════════════════════════════════════════════

// WordListFilter classifies text against blocking and flagged term lists.
type WordListFilter struct {
	blocking []string
	flagged  []string
}

// DefaultBlockingTerms are categories of goods forbidden on the marketplace.
var DefaultBlockingTerms = []string{
	"наркотик",
	"оружие",
	"травмат",
	"поддельн",
	"краден",
	"фальшив",
}

// DefaultFlaggedTerms mark likely scam patterns for review.
var DefaultFlaggedTerms = []string{
	"предоплата на карту",
	"гарантия 100%",
	"срочно переведи",
	"крипт",
}

// NewWordListFilter creates a filter with the given term lists.
// Empty lists fall back to the defaults.
func NewWordListFilter(blocking, flagged []string) *WordListFilter {
	if len(blocking) == 0 {
		blocking = DefaultBlockingTerms
	}
	if len(flagged) == 0 {
		flagged = DefaultFlaggedTerms
	}
	return &WordListFilter{
		blocking: lowerAll(blocking),
		flagged:  lowerAll(flagged),
	}
}

// Classify returns the verdict for the given text. Blocking terms win over
// flagged terms.
func (f *WordListFilter) Classify(ctx context.Context, text string) (Verdict, error) {
	lowered := strings.ToLower(text)

	if matches := findMatches(lowered, f.blocking); len(matches) > 0 {
		return Verdict{Severity: SeverityBlocking, Matches: matches}, nil
	}
	if matches := findMatches(lowered, f.flagged); len(matches) > 0 {
		return Verdict{Severity: SeverityFlagged, Matches: matches}, nil
	}
	return Verdict{Severity: SeverityNone}, nil
}

func findMatches(text string, terms []string) []string {
	var matches []string
	for _, term := range terms {
		if strings.Contains(text, term) {
			matches = append(matches, term)
		}
	}
	return matches
}

func lowerAll(terms []string) []string {
	out := make([]string, len(terms))
	for i, t := range terms {
		out[i] = strings.ToLower(t)
	}
	return out
}
