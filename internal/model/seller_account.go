package model

import "time"

type OnboardingStatus string

const (
	OnboardingNotStarted OnboardingStatus = "not_started"
	OnboardingInProgress OnboardingStatus = "in_progress"
	OnboardingCompleted  OnboardingStatus = "completed"
)

// SellerAccount links a seller to their connected payout account at the payment processor.
type SellerAccount struct {
	SellerUID        string           `gorm:"column:seller_uid;primaryKey;size:128"`
	Email            string           `gorm:"column:email;size:255"`
	ConnectAccountID string           `gorm:"column:connect_account_id;size:255"`
	OnboardingStatus OnboardingStatus `gorm:"column:onboarding_status;size:32;not null;default:'not_started'"`
	UpdatedAt        time.Time        `gorm:"autoUpdateTime"`
	CreatedAt        time.Time        `gorm:"autoCreateTime"`
}

func (SellerAccount) TableName() string {
	return "seller_accounts"
}

func (a *SellerAccount) PayoutReady() bool {
	return a != nil && a.ConnectAccountID != ""
}
