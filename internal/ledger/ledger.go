package ledger

import (
	"sync"

	"ielts-practice-engine/internal/domain"
)

// Progress summarizes how much of an attempt has been answered.
type Progress struct {
	Answered int `json:"answered"`
	Total    int `json:"total"`
	Percent  int `json:"percent"`
}

// Ledger holds the active attempt's answers keyed by question id.
// Writes are not validated against question constraints; scoring does that.
type Ledger struct {
	mu      sync.RWMutex
	answers map[string]domain.Answer
}

func New() *Ledger {
	return &Ledger{answers: make(map[string]domain.Answer)}
}

// SetAnswer replaces the answer for a question. An empty answer removes the entry.
func (l *Ledger) SetAnswer(questionID string, answer domain.Answer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.setLocked(questionID, answer)
}

func (l *Ledger) Answer(questionID string) (domain.Answer, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	a, ok := l.answers[questionID]
	return a, ok
}

// SelectChoice applies a choice click. Multiple-choice questions toggle the
// choice in or out of the selection; other types replace the prior selection.
func (l *Ledger) SelectChoice(q domain.Question, choiceID string) domain.Answer {
	l.mu.Lock()
	defer l.mu.Unlock()

	if q.Type != domain.MultipleChoice {
		answer := domain.ChoiceAnswer(choiceID)
		l.setLocked(q.ID, answer)
		return answer
	}

	prev := l.answers[q.ID]
	selected := make([]string, 0, len(prev.Choices)+1)
	removed := false
	for _, id := range prev.Choices {
		if id == choiceID {
			removed = true
			continue
		}
		selected = append(selected, id)
	}
	if !removed {
		selected = append(selected, choiceID)
	}
	answer := domain.ChoicesAnswer(selected...)
	l.setLocked(q.ID, answer)
	return answer
}

func (l *Ledger) SetText(questionID, text string) {
	l.SetAnswer(questionID, domain.TextAnswer(text))
}

// AnsweredCount counts entries with a non-empty value.
func (l *Ledger) AnsweredCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n := 0
	for _, a := range l.answers {
		if !a.Empty() {
			n++
		}
	}
	return n
}

func (l *Ledger) Progress(total int) Progress {
	answered := l.AnsweredCount()
	p := Progress{Answered: answered, Total: total}
	if total > 0 {
		p.Percent = answered * 100 / total
	}
	return p
}

// Snapshot returns a copy safe to read while the ledger keeps changing.
func (l *Ledger) Snapshot() map[string]domain.Answer {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]domain.Answer, len(l.answers))
	for id, a := range l.answers {
		a.Choices = append([]string(nil), a.Choices...)
		out[id] = a
	}
	return out
}

// Clear drops every answer; used by retry.
func (l *Ledger) Clear() {
	l.mu.Lock()
	l.answers = make(map[string]domain.Answer)
	l.mu.Unlock()
}

func (l *Ledger) setLocked(questionID string, answer domain.Answer) {
	if answer.Empty() {
		delete(l.answers, questionID)
		return
	}
	l.answers[questionID] = answer
}
