package model

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusPaid       OrderStatus = "paid"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// Actor identifies who is asking for a status change.
type Actor int

const (
	ActorGateway Actor = iota
	ActorSeller
	ActorBuyer
	ActorCoordinator
)

// transitions lists the allowed edges of the order lattice per actor.
var transitions = map[Actor]map[OrderStatus][]OrderStatus{
	ActorGateway: {
		OrderStatusPending: {OrderStatusPaid},
	},
	ActorSeller: {
		OrderStatusPaid:       {OrderStatusProcessing},
		OrderStatusProcessing: {OrderStatusShipped},
		OrderStatusShipped:    {OrderStatusDelivered},
	},
	ActorBuyer: {
		OrderStatusPaid:       {OrderStatusCompleted},
		OrderStatusProcessing: {OrderStatusCompleted},
		OrderStatusShipped:    {OrderStatusCompleted},
		OrderStatusDelivered:  {OrderStatusCompleted},
	},
	ActorCoordinator: {
		OrderStatusPending:    {OrderStatusCancelled},
		OrderStatusPaid:       {OrderStatusCancelled},
		OrderStatusProcessing: {OrderStatusCancelled},
		OrderStatusShipped:    {OrderStatusCancelled},
		OrderStatusDelivered:  {OrderStatusCancelled},
	},
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusPaid, OrderStatusProcessing, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCompleted, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// Completable reports whether a buyer may confirm completion from this status.
func (s OrderStatus) Completable() bool {
	return CanTransition(ActorBuyer, s, OrderStatusCompleted)
}

// Cancellable reports whether the order may still be cancelled.
func (s OrderStatus) Cancellable() bool {
	return CanTransition(ActorCoordinator, s, OrderStatusCancelled)
}

// CanTransition reports whether actor may move an order from -> to.
func CanTransition(actor Actor, from, to OrderStatus) bool {
	for _, next := range transitions[actor][from] {
		if next == to {
			return true
		}
	}
	return false
}

// SellerSettable reports whether a seller may ever request this status.
// Completion and cancellation belong to the buyer and the coordinator.
func SellerSettable(to OrderStatus) bool {
	switch to {
	case OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered:
		return true
	default:
		return false
	}
}
