package main

// chatReader is the slice of the messaging platform the pipeline needs:
// the most recent messages of one conversation, oldest first.
type chatReader interface {
	FetchMessages(chatID string, limit int) ([]ChatMessage, error)
}

// fetchWindow pulls the recent history of one conversation and substitutes
// cached transcriptions for audio bodies.
func fetchWindow(chat chatReader, chatID string, n int, cache *TranscriptionCache) (ConversationWindow, error) {
	msgs, err := chat.FetchMessages(chatID, n)
	if err != nil {
		return nil, err
	}
	window := make(ConversationWindow, 0, len(msgs))
	for _, m := range msgs {
		if text, ok := cache.Get(m.ID); ok {
			m.Text = text
		}
		window = append(window, m)
	}
	return window, nil
}

// BuildWindow assembles the classification context for one incoming message.
// If the triggering message is not yet in the fetched history (a just-arrived
// audio, typically), it is appended synthetically as the last customer
// message; if it is present, its body is replaced with the trigger's text,
// which already carries any fresh transcription.
func BuildWindow(chat chatReader, chatID string, trigger ChatMessage, n int, cache *TranscriptionCache) (ConversationWindow, error) {
	window, err := fetchWindow(chat, chatID, n, cache)
	if err != nil {
		return nil, err
	}

	triggerPresent := false
	for i := range window {
		if window[i].ID != "" && window[i].ID == trigger.ID {
			triggerPresent = true
			if trigger.Text != "" {
				window[i].Text = trigger.Text
			}
		}
	}
	if !triggerPresent {
		t := trigger
		t.Speaker = SpeakerCustomer
		window = append(window, t)
	}
	return window, nil
}
