package model

import "time"

type PaymentMethod string

const (
	PaymentTMoney PaymentMethod = "tmoney"
	PaymentFlooz  PaymentMethod = "flooz"
	PaymentCard   PaymentMethod = "card"
	PaymentCash   PaymentMethod = "cash"
)

func (p PaymentMethod) Valid() bool {
	switch p {
	case PaymentTMoney, PaymentFlooz, PaymentCard, PaymentCash:
		return true
	}
	return false
}

// CatalogItem is a product of the public pharmacy shop.
type CatalogItem struct {
	ID                   int    `json:"id"`
	Name                 string `json:"name"`
	Category             string `json:"category"`
	Price                int64  `json:"price"`
	Stock                int    `json:"stock"`
	RequiresPrescription bool   `json:"reqPrescription,omitempty"`
	Image                string `json:"image,omitempty"`
}

type CartItem struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Price int64  `json:"price"`
	Qty   int    `json:"qty"`
}

type CartLine struct {
	ID  int `json:"id" binding:"required"`
	Qty int `json:"qty"`
}

type CheckoutRequest struct {
	Items           []CartLine    `json:"items" binding:"required,min=1,dive"`
	PaymentMethod   PaymentMethod `json:"paymentMethod" binding:"required,oneof=tmoney flooz card cash"`
	PrescriptionRef string        `json:"prescriptionRef"`
}

type Receipt struct {
	TransactionID string        `json:"transactionId"`
	Items         []CartItem    `json:"items"`
	Total         int64         `json:"total"`
	PaymentMethod PaymentMethod `json:"paymentMethod"`
	PaidAt        time.Time     `json:"paidAt"`
}
