package repository

import (
	"context"

	"github.com/shinyyama/escrow-backend/internal/model"
	"gorm.io/gorm"
)

// NotificationQuery selects a user's notifications newest first. BeforeID pages backwards.
type NotificationQuery struct {
	UserUID    string
	UnreadOnly bool
	OrderID    *uint64
	BeforeID   uint64
	Limit      int
}

type NotificationRepository interface {
	Create(ctx context.Context, n *model.Notification) error
	Find(ctx context.Context, q NotificationQuery) ([]model.Notification, error)
	CountUnread(ctx context.Context, userUID string) (int64, error)
	// MarkRead marks unread notifications read, only those of one order when orderID is set.
	MarkRead(ctx context.Context, userUID string, orderID *uint64) (int64, error)
	SetDB(db *gorm.DB)
}

type notificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(ctx context.Context, n *model.Notification) error {
	return r.db.WithContext(ctx).Create(n).Error
}

func (r *notificationRepository) Find(ctx context.Context, q NotificationQuery) ([]model.Notification, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	tx := r.unread(ctx, q.UserUID, q.UnreadOnly)
	if q.OrderID != nil {
		tx = tx.Where("order_id = ?", *q.OrderID)
	}
	if q.BeforeID > 0 {
		tx = tx.Where("id < ?", q.BeforeID)
	}
	var list []model.Notification
	if err := tx.Order("id DESC").Limit(limit).Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *notificationRepository) CountUnread(ctx context.Context, userUID string) (int64, error) {
	var cnt int64
	err := r.unread(ctx, userUID, true).Count(&cnt).Error
	return cnt, err
}

func (r *notificationRepository) MarkRead(ctx context.Context, userUID string, orderID *uint64) (int64, error) {
	tx := r.unread(ctx, userUID, true)
	if orderID != nil {
		tx = tx.Where("order_id = ?", *orderID)
	}
	res := tx.Update("read_at", r.db.NowFunc())
	return res.RowsAffected, res.Error
}

func (r *notificationRepository) unread(ctx context.Context, userUID string, only bool) *gorm.DB {
	tx := r.db.WithContext(ctx).Model(&model.Notification{}).Where("user_uid = ?", userUID)
	if only {
		tx = tx.Where("read_at IS NULL")
	}
	return tx
}

func (r *notificationRepository) SetDB(db *gorm.DB) {
	r.db = db
}
