package main

import (
	"fmt"
	"strings"
	"time"
)

// Speaker identifies who authored a chat message relative to the business.
type Speaker int

const (
	SpeakerCustomer Speaker = iota
	SpeakerSeller
)

func (s Speaker) String() string {
	if s == SpeakerSeller {
		return "Vendedor"
	}
	return "Cliente"
}

type ChatMessage struct {
	ID        string
	Speaker   Speaker
	Text      string
	Timestamp time.Time
	HasAudio  bool
}

// ConversationWindow is a bounded, chronologically ordered slice of recent
// messages. It is rebuilt per evaluation and never persisted.
type ConversationWindow []ChatMessage

func (w ConversationWindow) LastMessage() (ChatMessage, bool) {
	if len(w) == 0 {
		return ChatMessage{}, false
	}
	return w[len(w)-1], true
}

// LastSellerMessage returns the most recent seller-authored message.
func (w ConversationWindow) LastSellerMessage() (ChatMessage, bool) {
	for i := len(w) - 1; i >= 0; i-- {
		if w[i].Speaker == SpeakerSeller {
			return w[i], true
		}
	}
	return ChatMessage{}, false
}

// HasContent reports whether any message in the window carries a non-empty body.
func (w ConversationWindow) HasContent() bool {
	for _, m := range w {
		if strings.TrimSpace(m.Text) != "" {
			return true
		}
	}
	return false
}

// Transcript renders the window as role-tagged lines, the format the
// classification contract expects.
func (w ConversationWindow) Transcript() string {
	lines := make([]string, 0, len(w))
	for _, m := range w {
		lines = append(lines, fmt.Sprintf("%s: %s", m.Speaker, m.Text))
	}
	return strings.Join(lines, "\n")
}

type SaleRecord struct {
	ID       int64
	Name     string
	Number   string
	Date     string // YYYY-MM-DD in the business timezone
	Address  string
	Quantity int
	TotalCLP int
}

// SaleVerdict is the classifier's raw opinion about a window. It is advisory:
// it must pass AcceptSale before it can reach the ledger.
type SaleVerdict struct {
	IsSale   bool
	Quantity int
	Location string
}

// Customer is a distinct (name, number) pair from the ledger.
type Customer struct {
	Name   string
	Number string
}

// Price of one refill in CLP. total_clp is always derived from this, never
// set independently.
const unitPriceCLP = 2000

// BusinessDate formats t as YYYY-MM-DD in the business timezone. All ledger
// dates go through this regardless of when the record is written.
func BusinessDate(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02")
}

// DaysAgoDate returns the business-timezone calendar day n days before today.
func DaysAgoDate(n int, loc *time.Location) string {
	return BusinessDate(time.Now().AddDate(0, 0, -n), loc)
}

// MonthStartDate returns the first day of the current business-timezone month.
func MonthStartDate(loc *time.Location) string {
	now := time.Now().In(loc)
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc).Format("2006-01-02")
}
