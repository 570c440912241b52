package protocol

import (
	"encoding/json"
	"fmt"
)

// Encode serializes a message into one text frame.
func Encode(msg Message) ([]byte, error) {
	if err := msg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncode, err)
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncode, err)
	}
	return data, nil
}

// Decode parses one text frame. Frames that are not a JSON object with
// exactly one known variant are rejected.
func Decode(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if err := msg.Validate(); err != nil {
		return Message{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return msg, nil
}
