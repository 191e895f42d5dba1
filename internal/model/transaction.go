package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "pending"
	PaymentAuthorized PaymentStatus = "authorized"
	PaymentCaptured   PaymentStatus = "captured"
	PaymentFailed     PaymentStatus = "failed"
	PaymentRefunded   PaymentStatus = "refunded"
)

// PaymentTransaction is append-only. A gateway payment id appears at most once
// per status, which is what makes re-delivered events detectable.
type PaymentTransaction struct {
	ID               uuid.UUID       `json:"id" gorm:"type:uuid;primaryKey"`
	UserID           uuid.UUID       `json:"user_id" gorm:"type:uuid;not null;index"`
	SubscriptionID   *uuid.UUID      `json:"subscription_id" gorm:"type:uuid;index"`
	Gateway          string          `json:"gateway" gorm:"type:varchar(20);not null"`
	GatewayPaymentID string          `json:"gateway_payment_id" gorm:"not null;uniqueIndex:ux_payment_transactions_once,priority:1"`
	GatewayOrderID   string          `json:"gateway_order_id"`
	GatewaySignature *string         `json:"-"`
	AmountPaid       decimal.Decimal `json:"amount_paid" gorm:"type:decimal(12,2);not null"`
	Currency         string          `json:"currency" gorm:"type:varchar(3);not null"`
	AmountPaidUSD    decimal.Decimal `json:"amount_paid_usd" gorm:"type:decimal(12,2);not null"`
	PaymentStatus    PaymentStatus   `json:"payment_status" gorm:"type:varchar(20);not null;uniqueIndex:ux_payment_transactions_once,priority:2"`
	PaymentMethod    string          `json:"payment_method"`
	ErrorCode        *string         `json:"error_code"`
	ErrorDescription *string         `json:"error_description"`
	TransactionDate  time.Time       `json:"transaction_date" gorm:"not null"`
	Metadata         datatypes.JSONMap `json:"metadata"`
	CreatedAt        time.Time       `json:"created_at"`
}

func (PaymentTransaction) TableName() string { return "payment_transactions" }
