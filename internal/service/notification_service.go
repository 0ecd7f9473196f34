package service

import (
	"context"
	"time"

	"github.com/shinyyama/escrow-backend/internal/model"
	"github.com/shinyyama/escrow-backend/internal/repository"
	"github.com/shinyyama/escrow-backend/internal/reqctx"
	"github.com/yanun0323/logs"
)

const (
	NotifyOrderPaid      = "order_paid"
	NotifyOrderStatus    = "order_status"
	NotifyOrderCompleted = "order_completed"
	NotifyOrderCancelled = "order_cancelled"
	NotifyPayout         = "payout"
)

const maxNotificationPage = 50

type NotificationService interface {
	Notify(ctx context.Context, userUID, typ, title, body string, orderID *uint64)
	List(ctx context.Context, q repository.NotificationQuery) (*NotificationPage, error)
	MarkAllRead(ctx context.Context, userUID string) (int64, error)
	MarkByOrder(ctx context.Context, userUID string, orderID uint64) error
}

// NotificationPage is one page of a user's feed. NextBefore is zero on the last page.
type NotificationPage struct {
	Items       []model.Notification
	UnreadCount int64
	NextBefore  uint64
}

type notificationService struct {
	repo repository.NotificationRepository
}

func NewNotificationService(repo repository.NotificationRepository) NotificationService {
	return &notificationService{repo: repo}
}

// Notify is best-effort; write errors are logged and dropped.
func (s *notificationService) Notify(ctx context.Context, userUID, typ, title, body string, orderID *uint64) {
	if userUID == "" || typ == "" {
		return
	}
	ctx, cancel := withShortDeadline(ctx)
	defer cancel()
	err := s.repo.Create(ctx, &model.Notification{
		UserUID: userUID,
		Type:    typ,
		Title:   title,
		Body:    body,
		OrderID: orderID,
	})
	if err != nil {
		logs.Errorf("notify %s to %s rid=%s, err: %+v", typ, userUID, reqctx.RID(ctx), err)
	}
}

func (s *notificationService) List(ctx context.Context, q repository.NotificationQuery) (*NotificationPage, error) {
	if q.UserUID == "" {
		return &NotificationPage{}, nil
	}
	if q.Limit <= 0 || q.Limit > maxNotificationPage {
		q.Limit = 20
	}
	want := q.Limit
	q.Limit++
	list, err := s.repo.Find(ctx, q)
	if err != nil {
		return nil, err
	}
	page := &NotificationPage{Items: list}
	if len(list) > want {
		page.Items = list[:want]
		page.NextBefore = page.Items[want-1].ID
	}
	if page.UnreadCount, err = s.repo.CountUnread(ctx, q.UserUID); err != nil {
		return nil, err
	}
	return page, nil
}

func (s *notificationService) MarkAllRead(ctx context.Context, userUID string) (int64, error) {
	if userUID == "" {
		return 0, nil
	}
	return s.repo.MarkRead(ctx, userUID, nil)
}

// MarkByOrder clears the badges of one order, typically when the user opens it.
func (s *notificationService) MarkByOrder(ctx context.Context, userUID string, orderID uint64) error {
	if userUID == "" || orderID == 0 {
		return nil
	}
	_, err := s.repo.MarkRead(ctx, userUID, &orderID)
	return err
}

func uint64Ptr(v uint64) *uint64 {
	return &v
}

// withShortDeadline bounds side writes so they cannot stall the main flow.
func withShortDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, 2*time.Second)
}
