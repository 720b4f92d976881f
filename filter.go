package main

// AcceptSale is the single authority gating ledger writes. The classifier's
// verdict is necessary but never sufficient: the window must end with a
// seller message, and for automatic evaluations the triggering message must
// itself be seller-authored (a customer message alone can never record a
// sale). Manual evaluations relax the trigger check because a human asked
// for them. Returns the reject reason for logging.
func AcceptSale(verdict SaleVerdict, window ConversationWindow, trigger ChatMessage, manual bool) (bool, string) {
	if !verdict.IsSale {
		return false, "verdict is no-sale"
	}
	last, ok := window.LastMessage()
	if !ok {
		return false, "empty window"
	}
	if last.Speaker != SpeakerSeller {
		return false, "last message is not from the seller"
	}
	if !manual && trigger.Speaker != SpeakerSeller {
		return false, "automatic trigger not authored by the seller"
	}
	return true, ""
}
