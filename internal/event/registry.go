package event

import (
	"encoding/json"
	"errors"
	"fmt"

	"storefront-backend/internal/model"
)

// ErrUnknownEventType marks a stored event whose type has no registered
// decoder. This is permanent: retrying will not make the type known.
var ErrUnknownEventType = errors.New("unknown event type")

type decodeFunc func([]byte) (model.DomainEvent, error)

// decoders maps an event-type tag to its concrete shape. The table is
// maintained by hand; adding an event type without a decoder breaks
// replay, which the registry test catches.
var decoders = map[string]decodeFunc{
	model.EventTypeOrderCreated: func(b []byte) (model.DomainEvent, error) {
		var e model.OrderCreated
		return &e, json.Unmarshal(b, &e)
	},
	model.EventTypeOrderStatusChanged: func(b []byte) (model.DomainEvent, error) {
		var e model.OrderStatusChanged
		return &e, json.Unmarshal(b, &e)
	},
	model.EventTypePaymentCreated: func(b []byte) (model.DomainEvent, error) {
		var e model.PaymentCreated
		return &e, json.Unmarshal(b, &e)
	},
	model.EventTypePaymentStatusChanged: func(b []byte) (model.DomainEvent, error) {
		var e model.PaymentStatusChanged
		return &e, json.Unmarshal(b, &e)
	},
	model.EventTypePaymentReserved: func(b []byte) (model.DomainEvent, error) {
		var e model.PaymentReserved
		return &e, json.Unmarshal(b, &e)
	},
	model.EventTypePaymentCaptured: func(b []byte) (model.DomainEvent, error) {
		var e model.PaymentCaptured
		return &e, json.Unmarshal(b, &e)
	},
	model.EventTypePaymentCancelled: func(b []byte) (model.DomainEvent, error) {
		var e model.PaymentCancelled
		return &e, json.Unmarshal(b, &e)
	},
	model.EventTypePaymentFailed: func(b []byte) (model.DomainEvent, error) {
		var e model.PaymentFailed
		return &e, json.Unmarshal(b, &e)
	},
}

func Encode(e model.DomainEvent) ([]byte, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("serialize %s event: %w", e.EventType(), err)
	}
	return payload, nil
}

func Decode(eventType string, payload []byte) (model.DomainEvent, error) {
	decode, ok := decoders[eventType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEventType, eventType)
	}
	e, err := decode(payload)
	if err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", eventType, err)
	}
	return e, nil
}
