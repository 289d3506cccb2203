package domain

import "time"

// Fact is a knowledge-base entry used to answer customer questions.
// SourceTicketID back-references the escalation the fact was derived
// from, for provenance only. A fact whose ValidTo has passed is inert
// for search but never deleted.
type Fact struct {
	ID              string
	QuestionExample string
	AnswerText      string
	Embedding       []float32
	SourceTicketID  *string
	ValidTo         *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ValidAt reports whether the fact may be returned by search at the
// given instant.
func (f *Fact) ValidAt(now time.Time) bool {
	return f.ValidTo == nil || f.ValidTo.After(now)
}
