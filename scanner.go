package main

import (
	"log"
	"math/rand"
	"time"
)

// ChatSummary identifies one conversation for the retroactive scanner. The
// caller pre-filters the list to chats with activity in the last 10 days.
type ChatSummary struct {
	ID      string
	Contact Customer
}

type ScanResult struct {
	Analyzed int
	Found    int
}

const (
	scanDelayMinSeconds = 2
	scanDelayMaxSeconds = 5
)

// scanPause waits a uniformly random 2-5 s to bound the request rate against
// the messaging platform. Overridable in tests.
var scanPause = func() {
	delay := time.Duration(scanDelayMinSeconds+rand.Intn(scanDelayMaxSeconds-scanDelayMinSeconds+1)) * time.Second
	time.Sleep(delay)
}

// ScanChats replays the classification pipeline over historical
// conversations in manual mode. Accepted sales are back-dated to the
// seller's last message timestamp, not the scan time, because classification
// happens well after the fact. Per-chat failures are logged and skipped;
// they never abort the batch.
func (p *Pipeline) ScanChats(chat chatReader, chats []ChatSummary, fetchLimit int) ScanResult {
	var result ScanResult
	for i, c := range chats {
		if i > 0 {
			scanPause()
		}

		found, err := p.scanChat(chat, c, fetchLimit)
		if err != nil {
			log.Printf("scan chat=%s error: %v", c.ID, err)
			continue
		}
		result.Analyzed++
		if found {
			result.Found++
		}
		log.Printf("scan chat=%s analyzed=%d found=%d", c.ID, result.Analyzed, result.Found)
	}
	return result
}

// scanChat evaluates one historical conversation. Reports whether a sale was
// recorded.
func (p *Pipeline) scanChat(chat chatReader, c ChatSummary, fetchLimit int) (bool, error) {
	window, err := fetchWindow(chat, c.ID, fetchLimit, p.Cache)
	if err != nil {
		return false, err
	}
	if !window.HasContent() {
		return false, nil
	}

	verdict := p.Detector.Detect(window.Transcript())

	accepted, _ := AcceptSale(verdict, window, ChatMessage{}, true)
	if !accepted {
		return false, nil
	}

	seller, ok := window.LastSellerMessage()
	if !ok {
		return false, nil
	}
	date := BusinessDate(seller.Timestamp, p.Loc)

	if _, err := p.appendSale(c.Contact, verdict, date); err != nil {
		return false, err
	}
	return true, nil
}
