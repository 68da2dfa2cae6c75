package session

import (
	"encoding/json"
	"errors"

	"github.com/Seednode/arcadebox/games/room"
)

var errNoPayload = errors.New("message has no payload")

func decode(msg room.Message, v any) error {
	if len(msg.Payload) == 0 {
		return errNoPayload
	}
	return json.Unmarshal(msg.Payload, v)
}
