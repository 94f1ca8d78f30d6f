package model

import "time"

const (
	DefaultMedicineCategory = "Général"
	RestockQuantity         = 10
	LowStockThreshold       = 20
)

// Medicine is one line of the pharmacy inventory. Prices are in FCFA.
type Medicine struct {
	ID         string    `json:"id" db:"id"`
	Name       string    `json:"name" db:"name"`
	Stock      int       `json:"stock" db:"stock"`
	Category   string    `json:"category" db:"category"`
	Price      int64     `json:"price" db:"price"`
	ExpiryDate string    `json:"expiryDate" db:"expiry_date"`
	UpdatedAt  time.Time `json:"-" db:"updated_at"`
}

func (m *Medicine) LowStock() bool {
	return m.Stock < LowStockThreshold
}

type CreateMedicineRequest struct {
	Name       string `json:"name" binding:"required"`
	Category   string `json:"category"`
	Price      int64  `json:"price" binding:"required,gt=0"`
	Stock      int    `json:"stock" binding:"gte=0"`
	ExpiryDate string `json:"expiryDate" binding:"omitempty,datetime=2006-01-02"`
}

// StockPrediction is one entry of the AI shortage forecast.
type StockPrediction struct {
	MedicineName string `json:"medicineName"`
	RiskLevel    string `json:"riskLevel"`
	Reason       string `json:"reason"`
}

// StockForecast carries the predictions or, when the advisor is not
// configured, a notice explaining why there are none.
type StockForecast struct {
	Predictions []StockPrediction `json:"predictions"`
	Notice      string            `json:"notice,omitempty"`
}
