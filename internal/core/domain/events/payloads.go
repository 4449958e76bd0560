package events

// OrderCreated is published when a customer places an order.
type OrderCreated struct {
	Header
	Subtotal        int64  `json:"subtotal"`
	DeliveryFee     int64  `json:"deliveryFee"`
	Total           int64  `json:"total"`
	DeliveryAddress string `json:"deliveryAddress"`
}

func (OrderCreated) Topic() string     { return TopicOrderCreated }
func (OrderCreated) EventType() string { return "OrderCreated" }

// OrderAccepted is published when the partner accepts. Agents receive it as
// an available job, hence the fee and address.
type OrderAccepted struct {
	Header
	DeliveryFee     int64  `json:"deliveryFee"`
	Total           int64  `json:"total"`
	DeliveryAddress string `json:"deliveryAddress"`
}

func (OrderAccepted) Topic() string     { return TopicOrderAccepted }
func (OrderAccepted) EventType() string { return "OrderAccepted" }

// OrderRejected is published when the partner declines.
type OrderRejected struct {
	Header
	Reason string `json:"reason,omitempty"`
}

func (OrderRejected) Topic() string     { return TopicOrderRejected }
func (OrderRejected) EventType() string { return "OrderRejected" }

// OrderReady is published when the food is ready. AgentID is empty when no
// agent has taken the job yet.
type OrderReady struct {
	Header
	AgentID string `json:"agentId,omitempty"`
}

func (OrderReady) Topic() string     { return TopicOrderReady }
func (OrderReady) EventType() string { return "OrderReady" }

// AgentAssigned is published when an agent takes the job.
type AgentAssigned struct {
	Header
	AgentRef
	DeliveryAddress string `json:"deliveryAddress"`
}

func (AgentAssigned) Topic() string     { return TopicAgentAssigned }
func (AgentAssigned) EventType() string { return "AgentAssigned" }

// OrderPickedUp is published when the agent collects the food.
type OrderPickedUp struct {
	Header
	AgentRef
}

func (OrderPickedUp) Topic() string     { return TopicOrderPickedUp }
func (OrderPickedUp) EventType() string { return "OrderPickedUp" }

// OrderDelivered is published when the agent hands the food over.
type OrderDelivered struct {
	Header
	AgentRef
	Total int64 `json:"total"`
}

func (OrderDelivered) Topic() string     { return TopicOrderDelivered }
func (OrderDelivered) EventType() string { return "OrderDelivered" }

// JobTaken is pushed to the agents broadcast room when another agent took
// the job. It is derived from AgentAssigned and never published on the log.
type JobTaken struct {
	OrderID string `json:"orderId"`
	AgentID string `json:"agentId"`
}

func (JobTaken) EventType() string { return "JobTaken" }
