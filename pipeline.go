package main

import (
	"database/sql"
	"log"
	"strings"
	"time"
)

// Evaluation runs as an explicit ordered chain of stages. Each stage either
// proceeds, skips the message, or fails; the result names the stage that
// ended the chain so handlers and tests can tell the cases apart.
type evalStage string

const (
	stageTrigger  evalStage = "trigger"
	stageWindow   evalStage = "window"
	stageClassify evalStage = "classify"
	stageFilter   evalStage = "filter"
	stageAppend   evalStage = "append"
)

type evalOutcome int

const (
	outcomeSale evalOutcome = iota
	outcomeSkip
	outcomeError
)

type EvalResult struct {
	Outcome evalOutcome
	Stage   evalStage
	Reason  string
	Err     error
	Verdict SaleVerdict
	SaleID  int64
}

func skipAt(stage evalStage, reason string) EvalResult {
	return EvalResult{Outcome: outcomeSkip, Stage: stage, Reason: reason}
}

func errorAt(stage evalStage, err error) EvalResult {
	return EvalResult{Outcome: outcomeError, Stage: stage, Err: err}
}

// Pipeline holds the collaborators shared by message evaluation and the
// retroactive scanner.
type Pipeline struct {
	DB         *sql.DB
	Detector   *SaleDetector
	Cache      *TranscriptionCache
	WindowSize int
	Loc        *time.Location
}

// EvaluateMessage runs one incoming message through
// trigger -> window -> classify -> filter -> append. In manual mode the
// trigger pre-filter is bypassed and the seller-authored-trigger requirement
// is relaxed (a human asked for the check).
func (p *Pipeline) EvaluateMessage(chat chatReader, chatID string, contact Customer, trigger ChatMessage, manual bool) EvalResult {
	if !manual && !IsPotentialSale(strings.ToLower(trigger.Text)) {
		return skipAt(stageTrigger, "no trigger keyword or pattern")
	}

	window, err := BuildWindow(chat, chatID, trigger, p.WindowSize, p.Cache)
	if err != nil {
		return errorAt(stageWindow, err)
	}
	if !window.HasContent() {
		return skipAt(stageWindow, "window has no message bodies")
	}

	verdict := p.Detector.Detect(window.Transcript())

	accepted, reason := AcceptSale(verdict, window, trigger, manual)
	if !accepted {
		return EvalResult{Outcome: outcomeSkip, Stage: stageFilter, Reason: reason, Verdict: verdict}
	}

	id, err := p.appendSale(contact, verdict, "")
	if err != nil {
		return errorAt(stageAppend, err)
	}
	log.Printf("sale recorded id=%d customer=%s number=%s qty=%d", id, contact.Name, contact.Number, clampQuantity(verdict.Quantity))
	return EvalResult{Outcome: outcomeSale, Stage: stageAppend, Verdict: verdict, SaleID: id}
}

// appendSale writes an accepted verdict to the ledger. Quantity is clamped
// to at least 1 and the total is always derived from the unit price.
func (p *Pipeline) appendSale(contact Customer, verdict SaleVerdict, date string) (int64, error) {
	qty := clampQuantity(verdict.Quantity)
	return RegisterSale(p.DB, p.Loc, contact.Name, contact.Number, qty, qty*unitPriceCLP, verdict.Location, date)
}

func clampQuantity(q int) int {
	if q < 1 {
		return 1
	}
	return q
}
