package comm

// NATS topics used by the reader bridge.
const (
	TopicPairScan    = "rfid.cards"
	TopicCheckinScan = "rfid.checkin"
)

// Event types delivered to websocket subscribers.
const (
	EventCardUpdate  = "card_update"
	EventDelete      = "delete"
	EventRfidTimeout = "rfid_timeout"
)

// Event is a single frame fanned out to the gym_cards group.
type Event struct {
	Type string `json:"type"`
	Card any    `json:"card"`
}

// IDPayload is the card payload of delete and rfid_timeout events.
type IDPayload struct {
	ID int64 `json:"id"`
}

// ScanMessage is the correlation message published by the reader
// bridge, one per physical scan.
type ScanMessage struct {
	CardID string `json:"card_id"`
}
