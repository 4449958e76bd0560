// Package events defines the integration events the ordering service
// publishes on the event log.
//
// Every event is a flat JSON record. The partition key is the order id, so
// all events of one order land on the same partition and are consumed in
// publish order. Payload fields are only ever added; Version is bumped when
// a field changes meaning.
package events

import (
	"fmt"
	"time"

	"orderflow/internal/core/domain/model/order"
	"orderflow/internal/pkg/errs"
)

// Topics on the event log.
const (
	TopicOrderCreated   = "order-created"
	TopicOrderAccepted  = "order-accepted"
	TopicOrderRejected  = "order-rejected"
	TopicOrderReady     = "order-ready"
	TopicAgentAssigned  = "agent-assigned"
	TopicOrderPickedUp  = "order-pickedup"
	TopicOrderDelivered = "order-delivered"
)

// Version of every payload defined here.
const Version = 1

// Event is a payload ready to be published.
type Event interface {
	// Topic the event is published on.
	Topic() string
	// Key is the partition key.
	Key() string
	// EventType is the name clients see in the WebSocket message.
	EventType() string
}

// Topics lists every topic in lifecycle order.
func Topics() []string {
	return []string{
		TopicOrderCreated,
		TopicOrderAccepted,
		TopicOrderRejected,
		TopicOrderReady,
		TopicAgentAssigned,
		TopicOrderPickedUp,
		TopicOrderDelivered,
	}
}

var transitionTopics = map[order.Transition]string{
	order.Accept:      TopicOrderAccepted,
	order.Reject:      TopicOrderRejected,
	order.MarkReady:   TopicOrderReady,
	order.AssignAgent: TopicAgentAssigned,
	order.PickUp:      TopicOrderPickedUp,
	order.Deliver:     TopicOrderDelivered,
}

// TopicFor returns the topic a successful transition is published on.
func TopicFor(t order.Transition) (string, error) {
	topic, ok := transitionTopics[t]
	if !ok {
		return "", errs.NewValueIsInvalidErrorWithCause("transition", fmt.Errorf("no topic for %s", t))
	}
	return topic, nil
}

// Header is embedded in every payload. Embedding keeps the JSON flat.
type Header struct {
	Version    int       `json:"version"`
	OrderID    string    `json:"orderId"`
	CustomerID string    `json:"customerId"`
	PartnerID  string    `json:"partnerId"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Key returns the order id.
func (h Header) Key() string { return h.OrderID }

// Meta returns the header, giving consumers the audience ids of any payload.
func (h Header) Meta() Header { return h }

// PayloadVersion returns the version the payload was written with.
func (h Header) PayloadVersion() int { return h.Version }

func newHeader(o *order.Order, at time.Time) Header {
	return Header{
		Version:    Version,
		OrderID:    o.ID().String(),
		CustomerID: o.CustomerID().String(),
		PartnerID:  o.PartnerID().String(),
		OccurredAt: at.UTC(),
	}
}

// AgentRef names the agent carried by agent-aware payloads.
type AgentRef struct {
	AgentID   string `json:"agentId"`
	AgentName string `json:"agentName"`
}

func newAgentRef(o *order.Order) AgentRef {
	if id := o.AgentID(); id != nil {
		return AgentRef{AgentID: id.String(), AgentName: o.AgentName()}
	}
	return AgentRef{}
}

// NewOrderCreated builds the event for a freshly created order.
func NewOrderCreated(o *order.Order) OrderCreated {
	return OrderCreated{
		Header:          newHeader(o, o.CreatedAt()),
		Subtotal:        o.Subtotal().Amount(),
		DeliveryFee:     o.DeliveryFee().Amount(),
		Total:           o.Total().Amount(),
		DeliveryAddress: o.DeliveryAddress(),
	}
}

// ForTransition builds the event for t, which has just been applied to o.
// The order is read after the transition, so agent fields are populated for
// AssignAgent and later.
func ForTransition(o *order.Order, t order.Transition) (Event, error) {
	h := newHeader(o, o.UpdatedAt())

	switch t {
	case order.Accept:
		return OrderAccepted{
			Header:          h,
			DeliveryFee:     o.DeliveryFee().Amount(),
			Total:           o.Total().Amount(),
			DeliveryAddress: o.DeliveryAddress(),
		}, nil
	case order.Reject:
		return OrderRejected{Header: h, Reason: o.RejectReason()}, nil
	case order.MarkReady:
		e := OrderReady{Header: h}
		if o.HasAgent() {
			ref := newAgentRef(o)
			e.AgentID = ref.AgentID
		}
		return e, nil
	case order.AssignAgent:
		return AgentAssigned{Header: h, AgentRef: newAgentRef(o), DeliveryAddress: o.DeliveryAddress()}, nil
	case order.PickUp:
		return OrderPickedUp{Header: h, AgentRef: newAgentRef(o)}, nil
	case order.Deliver:
		return OrderDelivered{Header: h, AgentRef: newAgentRef(o), Total: o.Total().Amount()}, nil
	default:
		return nil, errs.NewValueIsInvalidErrorWithCause("transition", fmt.Errorf("no event for %s", t))
	}
}
