package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// ErrNoRowsAffected is returned by conditional updates whose guard did not match any row.
var ErrNoRowsAffected = errors.New("no rows affected")

// Store bundles the repositories that settlement mutates together.
type Store struct {
	db              *gorm.DB
	Products        ProductRepository
	Orders          OrderRepository
	Escrows         EscrowRepository
	Wallets         WalletRepository
	SellerAccounts  SellerAccountRepository
	Reconciliations ReconciliationRepository
	Notifications   NotificationRepository
}

func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:              db,
		Products:        NewProductRepository(db),
		Orders:          NewOrderRepository(db),
		Escrows:         NewEscrowRepository(db),
		Wallets:         NewWalletRepository(db),
		SellerAccounts:  NewSellerAccountRepository(db),
		Reconciliations: NewReconciliationRepository(db),
		Notifications:   NewNotificationRepository(db),
	}
}

func (s *Store) DB() *gorm.DB {
	return s.db
}

// SetDB points every repository at db.
func (s *Store) SetDB(db *gorm.DB) {
	s.db = db
	s.Products.SetDB(db)
	s.Orders.SetDB(db)
	s.Escrows.SetDB(db)
	s.Wallets.SetDB(db)
	s.SellerAccounts.SetDB(db)
	s.Reconciliations.SetDB(db)
	s.Notifications.SetDB(db)
}

// Transaction runs fn against a Store bound to a single database transaction.
// Returning an error from fn rolls back every write made through tx.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
}

func affected(res *gorm.DB) error {
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNoRowsAffected
	}
	return nil
}
