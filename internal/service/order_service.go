package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shinyyama/escrow-backend/internal/model"
	"github.com/shinyyama/escrow-backend/internal/repository"
	"gorm.io/gorm"
)

// OrderService serves read-only order views to the order's buyer and seller.
type OrderService interface {
	Get(ctx context.Context, orderID uint64, uid string) (*model.Order, error)
	ListByBuyer(ctx context.Context, buyerUID string) ([]model.Order, error)
	ListBySeller(ctx context.Context, sellerUID string) ([]model.Order, error)
	GetEscrow(ctx context.Context, orderID uint64, uid string) (*model.EscrowTransaction, error)
}

type orderService struct {
	orderRepo  repository.OrderRepository
	escrowRepo repository.EscrowRepository
}

func NewOrderService(orderRepo repository.OrderRepository, escrowRepo repository.EscrowRepository) OrderService {
	return &orderService{orderRepo: orderRepo, escrowRepo: escrowRepo}
}

func (s *orderService) Get(ctx context.Context, orderID uint64, uid string) (*model.Order, error) {
	o, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: order %d", ErrNotFound, orderID)
		}
		return nil, err
	}
	if uid != o.BuyerUID && uid != o.SellerUID {
		return nil, ErrForbidden
	}
	return o, nil
}

func (s *orderService) ListByBuyer(ctx context.Context, buyerUID string) ([]model.Order, error) {
	if buyerUID == "" {
		return nil, fmt.Errorf("%w: buyer is required", ErrValidation)
	}
	return s.orderRepo.ListByBuyer(ctx, buyerUID)
}

func (s *orderService) ListBySeller(ctx context.Context, sellerUID string) ([]model.Order, error) {
	if sellerUID == "" {
		return nil, fmt.Errorf("%w: seller is required", ErrValidation)
	}
	return s.orderRepo.ListBySeller(ctx, sellerUID)
}

func (s *orderService) GetEscrow(ctx context.Context, orderID uint64, uid string) (*model.EscrowTransaction, error) {
	if _, err := s.Get(ctx, orderID, uid); err != nil {
		return nil, err
	}
	e, err := s.escrowRepo.FindByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: order %d has no escrow", ErrNotFound, orderID)
		}
		return nil, err
	}
	return e, nil
}
