package protocol

import "github.com/Iron-Ham/pairview/internal/errors"

// Gate admits frames from a single trusted origin.
type Gate struct {
	Origin string
}

// NewGate returns a gate trusting origin.
func NewGate(origin string) Gate {
	return Gate{Origin: origin}
}

// Open decodes data and returns the message only when it is well formed,
// of a known kind, and tagged with the gate's origin. Rejected frames are
// reported as ok=false with the reason in err; callers drop them silently.
func (g Gate) Open(data []byte) (msg Message, ok bool, err error) {
	origin, msg, err := Decode(data)
	if err != nil {
		return nil, false, err
	}
	if g.Origin == "" || origin != g.Origin {
		return nil, false, errors.ErrUntrustedOrigin
	}
	return msg, true, nil
}

// Seal encodes msg with the gate's origin.
func (g Gate) Seal(msg Message) ([]byte, error) {
	return Encode(g.Origin, msg)
}
