package models

type Direction string

const (
	DirectionSent     Direction = "sent"
	DirectionReceived Direction = "received"
)

// Message is one rendered line of the active conversation.
type Message struct {
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	Direction Direction `json:"direction"`
	Receiver  string    `json:"receiver"`
}

// SameContent reports whether two lines carry the same sender, text and
// receiver. Direction is derived and not compared.
func (m Message) SameContent(o Message) bool {
	return m.Sender == o.Sender && m.Text == o.Text && m.Receiver == o.Receiver
}

func DirectionFor(sender, self string) Direction {
	if sender == self {
		return DirectionSent
	}
	return DirectionReceived
}
