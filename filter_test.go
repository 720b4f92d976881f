package main

import (
	"testing"
	"time"
)

func windowFrom(speakers ...Speaker) ConversationWindow {
	w := make(ConversationWindow, 0, len(speakers))
	for i, s := range speakers {
		w = append(w, ChatMessage{
			ID:        string(rune('a' + i)),
			Speaker:   s,
			Text:      "mensaje",
			Timestamp: time.Date(2026, 8, 1, 10, i, 0, 0, time.UTC),
		})
	}
	return w
}

func TestAcceptSaleRejectsCustomerLastRegardlessOfVerdict(t *testing.T) {
	window := windowFrom(SpeakerCustomer, SpeakerSeller, SpeakerCustomer)
	trigger := window[len(window)-1]

	for _, manual := range []bool{false, true} {
		ok, reason := AcceptSale(SaleVerdict{IsSale: true, Quantity: 2}, window, trigger, manual)
		if ok {
			t.Fatalf("expected reject for customer-last window (manual=%t)", manual)
		}
		if reason == "" {
			t.Fatal("expected a reject reason")
		}
	}
}

func TestAcceptSaleRejectsNoSaleVerdict(t *testing.T) {
	window := windowFrom(SpeakerCustomer, SpeakerSeller)
	ok, _ := AcceptSale(SaleVerdict{IsSale: false}, window, window[1], false)
	if ok {
		t.Fatal("expected reject for no-sale verdict")
	}
}

func TestAcceptSaleRejectsCustomerAuthoredAutomaticTrigger(t *testing.T) {
	window := windowFrom(SpeakerCustomer, SpeakerSeller)
	customerTrigger := window[0]

	ok, _ := AcceptSale(SaleVerdict{IsSale: true, Quantity: 1}, window, customerTrigger, false)
	if ok {
		t.Fatal("expected reject: customer-authored triggers never directly cause a write")
	}

	// Manual evaluations relax the trigger requirement.
	ok, _ = AcceptSale(SaleVerdict{IsSale: true, Quantity: 1}, window, customerTrigger, true)
	if !ok {
		t.Fatal("expected accept in manual mode with seller-last window")
	}
}

func TestAcceptSaleAcceptsSellerConfirmation(t *testing.T) {
	window := windowFrom(SpeakerCustomer, SpeakerSeller)
	sellerTrigger := window[1]

	ok, reason := AcceptSale(SaleVerdict{IsSale: true, Quantity: 1}, window, sellerTrigger, false)
	if !ok {
		t.Fatalf("expected accept, got reject: %s", reason)
	}
}

func TestAcceptSaleRejectsEmptyWindow(t *testing.T) {
	ok, _ := AcceptSale(SaleVerdict{IsSale: true}, ConversationWindow{}, ChatMessage{}, true)
	if ok {
		t.Fatal("expected reject for empty window")
	}
}
