// Package ledger stores the committed exchanges of one conversation session.
package ledger

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rbright/talkthru/internal/language"
)

// ErrIncompleteExchange rejects records missing source or target text.
var ErrIncompleteExchange = errors.New("exchange requires source and target text")

// Exchange is one committed turn. Values are copied in and out of the ledger,
// so a stored record cannot be changed by its producer or readers.
type Exchange struct {
	ID          string        `json:"id"`
	Seq         int           `json:"seq"`
	Speaker     language.Role `json:"speaker"`
	SourceLang  string        `json:"source_lang"`
	TargetLang  string        `json:"target_lang"`
	SourceText  string        `json:"source_text"`
	TargetText  string        `json:"target_text"`
	Confidence  float64       `json:"confidence,omitempty"`
	CapturedAt  time.Time     `json:"captured_at"`
	CommittedAt time.Time     `json:"committed_at"`
}

// Ledger is an append-only, insertion-ordered list of exchanges.
type Ledger struct {
	mu      sync.RWMutex
	records []Exchange
	nextSeq int
	now     func() time.Time
}

func New() *Ledger {
	return &Ledger{now: time.Now}
}

// Append stores ex and returns the stored copy with Seq, ID and CommittedAt set.
func (l *Ledger) Append(ex Exchange) (Exchange, error) {
	if strings.TrimSpace(ex.SourceText) == "" || strings.TrimSpace(ex.TargetText) == "" {
		return Exchange{}, ErrIncompleteExchange
	}
	if !ex.Speaker.Valid() {
		return Exchange{}, fmt.Errorf("exchange speaker %q is not a session role", ex.Speaker)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.nextSeq++
	ex.Seq = l.nextSeq
	if ex.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			id = uuid.New()
		}
		ex.ID = id.String()
	}
	if ex.CommittedAt.IsZero() {
		ex.CommittedAt = l.clock()
	}
	if ex.CapturedAt.IsZero() {
		ex.CapturedAt = ex.CommittedAt
	}

	l.records = append(l.records, ex)
	return ex, nil
}

// Snapshot returns a copy of all records in commit order.
func (l *Ledger) Snapshot() []Exchange {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Exchange(nil), l.records...)
}

func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

func (l *Ledger) IsEmpty() bool {
	return l.Len() == 0
}

// Clear discards every record. Sequence numbers restart for the next session.
func (l *Ledger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = nil
	l.nextSeq = 0
}

func (l *Ledger) clock() time.Time {
	if l.now == nil {
		return time.Now()
	}
	return l.now()
}
