package model

// All returns every persisted model, in migration order.
func All() []interface{} {
	return []interface{}{
		&Product{},
		&SellerAccount{},
		&Order{},
		&OrderItem{},
		&EscrowTransaction{},
		&Wallet{},
		&Reconciliation{},
		&Notification{},
	}
}
