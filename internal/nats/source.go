package nats

import (
	"github.com/nats-io/nats.go"
)

// Source adapts a NATS connection to the scan-source shape the pairing
// correlator listens on.
type Source struct {
	Conn *nats.Conn
}

func NewSource(conn *nats.Conn) *Source {
	return &Source{Conn: conn}
}

// Listen subscribes to topic and delivers raw message payloads until the
// returned cancel function is called. The channel is buffered; a burst
// beyond the buffer drops the extra scans rather than blocking NATS.
func (s *Source) Listen(topic string) (<-chan []byte, func(), error) {
	ch := make(chan []byte, 8)

	sub, err := s.Conn.Subscribe(topic, func(m *nats.Msg) {
		select {
		case ch <- m.Data:
		default:
		}
	})
	if err != nil {
		return nil, nil, err
	}

	cancel := func() {
		_ = sub.Unsubscribe()
	}

	return ch, cancel, nil
}
