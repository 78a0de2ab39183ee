package seventv

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Dispatch types consumed by the client.
const (
	TypeCosmeticCreate    = "cosmetic.create"
	TypeEntitlementCreate = "entitlement.create"
	TypeEntitlementDelete = "entitlement.delete"
	TypeEmoteSetCreate    = "emote_set.create"
	TypeEmoteSetUpdate    = "emote_set.update"
	TypeUserUpdate        = "user.update"
)

// ErrUnknownType is returned by Decode for dispatch types without a decoder.
var ErrUnknownType = errors.New("seventv: unknown dispatch type")

type objectBody struct {
	Object json.RawMessage `json:"object"`
}

// create dispatches wrap the new object; change dispatches are the change map.
func decodeObject[T any](body json.RawMessage) (any, error) {
	var wrap objectBody
	if err := json.Unmarshal(body, &wrap); err != nil {
		return nil, err
	}
	var v T
	if err := json.Unmarshal(wrap.Object, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func decodeChange[T any](body json.RawMessage) (any, error) {
	var v T
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, err
	}
	return v, nil
}

var decoders = map[string]func(json.RawMessage) (any, error){
	TypeCosmeticCreate:    decodeObject[CosmeticCreate],
	TypeEntitlementCreate: decodeObject[EntitlementCreate],
	TypeEntitlementDelete: decodeObject[EntitlementDelete],
	TypeEmoteSetCreate:    decodeObject[EmoteSetCreate],
	TypeEmoteSetUpdate:    decodeChange[EmoteSetUpdate],
	TypeUserUpdate:        decodeChange[UserUpdate],
}

// Decode parses a dispatch body into its typed payload.
func Decode(typ string, body json.RawMessage) (any, error) {
	dec, ok := decoders[typ]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, typ)
	}
	payload, err := dec(body)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", typ, err)
	}
	return payload, nil
}
