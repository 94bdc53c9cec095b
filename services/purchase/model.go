package purchase

import (
	"time"

	"github.com/MarcGrol/coursebackend/services/catalogapi"
)

type CartItem struct {
	UID       string `gorm:"primaryKey"`
	UserUID   string
	CourseUID string
	AddedAt   time.Time
}

func cartItemUID(userUID string, courseUID string) string {
	return userUID + "_" + courseUID
}

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusSucceeded PaymentStatus = "succeeded"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// PaymentRecord tracks one course of one payment intent.
type PaymentRecord struct {
	UID             string `gorm:"primaryKey"`
	UserUID         string
	CourseUID       string
	PaymentIntentID string
	CustomerID      string
	AmountInCents   int64
	Currency        string
	Status          PaymentStatus
	CreatedAt       time.Time
	LastModified    *time.Time
}

func paymentRecordUID(paymentIntentID string, courseUID string) string {
	return paymentIntentID + "_" + courseUID
}

type CoursePurchase struct {
	UID              string `gorm:"primaryKey"`
	UserUID          string
	CourseUID        string
	PaymentIntentID  string
	PricePaidInCents int64
	AccessGrantedAt  time.Time
}

func coursePurchaseUID(userUID string, courseUID string) string {
	return userUID + "_" + courseUID
}

const invoiceStatusPaid = "paid"

// Invoice is keyed by payment intent id: one invoice per intent.
type Invoice struct {
	UID             string `gorm:"primaryKey"`
	InvoiceNumber   string
	UserUID         string
	PaymentIntentID string
	AmountInCents   int64
	TaxInCents      int64
	TotalInCents    int64
	Currency        string
	Status          string
	IssuedAt        time.Time
	PaidAt          time.Time
}

type addToCartRequest struct {
	UserUID   string `json:"user_id"`
	CourseUID string `json:"course_id"`
}

type removeFromCartRequest struct {
	UserUID   string `form:"user_id"`
	CourseUID string `form:"course_id"`
}

type CartEntry struct {
	CartItem
	Course *catalogapi.Course `json:",omitempty"`
}

type createIntentRequest struct {
	UserUID    string   `json:"user_id"`
	CourseUIDs []string `json:"course_ids"`
}

type IntentResponse struct {
	ClientSecret    string `json:"client_secret"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
	PaymentIntentID string `json:"payment_intent_id,omitempty"`
	Status          string `json:"status,omitempty"`
	Mock            bool   `json:"mock,omitempty"`
}

type ConfirmResponse struct {
	Success bool     `json:"success"`
	Mock    bool     `json:"mock,omitempty"`
	Message string   `json:"message"`
	Invoice *Invoice `json:"invoice,omitempty"`
}

type PaymentHistoryEntry struct {
	PaymentRecord
	CourseTitle string
}

type PurchaseEntry struct {
	CoursePurchase
	CourseTitle string
}

type accessResponse struct {
	HasAccess bool `json:"has_access"`
}

type confirmRequest struct {
	PaymentIntentID string `form:"payment_intent_id"`
}
