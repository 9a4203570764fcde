package chat

import (
	"sync"

	"livechat-client/internal/models"
	"livechat-client/internal/types"
)

// MessageLog is the in-memory log of the rendered conversation.
type MessageLog struct {
	mu      sync.RWMutex
	entries []models.Message
}

// Append adds m unless the last entry has the same sender, text and
// receiver. Only the immediate predecessor is checked.
func (l *MessageLog) Append(m models.Message) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n := len(l.entries); n > 0 && l.entries[n-1].SameContent(m) {
		return false
	}
	l.entries = append(l.entries, m)
	return true
}

func (l *MessageLog) Replace(entries []models.Message) {
	l.mu.Lock()
	l.entries = append([]models.Message(nil), entries...)
	l.mu.Unlock()
}

func (l *MessageLog) Snapshot() []models.Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]models.Message(nil), l.entries...)
}

func (l *MessageLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Chronological converts a newest-first history into view messages,
// oldest first.
func Chronological(self string, t Target, history []types.HistoryEntry) []models.Message {
	out := make([]models.Message, 0, len(history))
	for i := len(history) - 1; i >= 0; i-- {
		h := history[i]
		receiver := h.Receiver
		if receiver == "" {
			receiver = defaultReceiver(self, t, h.Sender)
		}
		out = append(out, models.Message{
			Sender:    h.Sender,
			Text:      h.Message,
			Direction: models.DirectionFor(h.Sender, self),
			Receiver:  receiver,
		})
	}
	return out
}

func defaultReceiver(self string, t Target, sender string) string {
	if t.State() != StatePrivate {
		return types.BroadcastTarget
	}
	if sender == self {
		return t.Peer()
	}
	return self
}
