package shop

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/jwalitptl/clinic-sync/internal/model"
	apperrors "github.com/jwalitptl/clinic-sync/pkg/errors"
	"github.com/jwalitptl/clinic-sync/pkg/logger"
)

// DefaultCatalog is the public shop assortment. Prices are in FCFA.
func DefaultCatalog() []model.CatalogItem {
	return []model.CatalogItem{
		{ID: 1, Name: "Doliprane 1000mg", Category: "Douleur & Fièvre", Price: 1200, Stock: 50, Image: "💊"},
		{ID: 2, Name: "Efferalgan Vit C", Category: "Douleur & Fièvre", Price: 1500, Stock: 30, Image: "🍋"},
		{ID: 3, Name: "Amoxicilline 1g", Category: "Antibiotique", Price: 3500, Stock: 20, RequiresPrescription: true, Image: "🦠"},
		{ID: 4, Name: "Spasfon Lyoc", Category: "Douleur", Price: 2800, Stock: 45, Image: "🌸"},
		{ID: 5, Name: "Bétadine Jaune", Category: "Antiseptique", Price: 1800, Stock: 15, Image: "🧴"},
		{ID: 6, Name: "Bandes Gazes", Category: "Premiers Secours", Price: 500, Stock: 100, Image: "🤕"},
		{ID: 7, Name: "Sirop Toux Sèche", Category: "Rhume", Price: 2200, Stock: 25, Image: "🍯"},
		{ID: 8, Name: "Vitamine C Upsa", Category: "Tonus", Price: 1900, Stock: 40, Image: "🍊"},
	}
}

type Service struct {
	mu      sync.Mutex
	order   []int
	catalog map[int]*model.CatalogItem
	logger  *logger.Logger
	txnID   func() string
	now     func() time.Time
}

func NewService(items []model.CatalogItem, log *logger.Logger) *Service {
	s := &Service{
		catalog: make(map[int]*model.CatalogItem, len(items)),
		logger:  log,
		txnID: func() string {
			return fmt.Sprintf("TXN-%d", rand.Intn(1000000))
		},
		now: time.Now,
	}
	for _, it := range items {
		it := it
		s.catalog[it.ID] = &it
		s.order = append(s.order, it.ID)
	}
	return s
}

// Catalog lists the items, optionally filtered by a case-insensitive
// category or name fragment.
func (s *Service) Catalog(query string) []model.CatalogItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]model.CatalogItem, 0, len(s.order))
	for _, id := range s.order {
		it := *s.catalog[id]
		if q != "" && !strings.Contains(strings.ToLower(it.Name), q) && !strings.Contains(strings.ToLower(it.Category), q) {
			continue
		}
		out = append(out, it)
	}
	return out
}

// Checkout prices the cart, checks stock and prescriptions, and decrements
// stock. Repeated lines for the same item are merged.
func (s *Service) Checkout(_ context.Context, req model.CheckoutRequest) (*model.Receipt, error) {
	if !req.PaymentMethod.Valid() {
		return nil, apperrors.BadRequest("Moyen de paiement invalide", nil)
	}
	if len(req.Items) == 0 {
		return nil, apperrors.BadRequest("Le panier est vide", nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var cart Cart
	for _, line := range req.Items {
		item, ok := s.catalog[line.ID]
		if !ok {
			return nil, apperrors.NotFound(fmt.Sprintf("product %d", line.ID), nil)
		}
		existing := cart.Qty(item.ID)
		cart.Add(*item)
		if line.Qty > 0 {
			cart.Update(item.ID, existing+line.Qty)
		}
	}

	for _, it := range cart.Items() {
		item := s.catalog[it.ID]
		if item.RequiresPrescription && strings.TrimSpace(req.PrescriptionRef) == "" {
			return nil, apperrors.BadRequest(fmt.Sprintf("Ordonnance requise pour %s", item.Name), nil)
		}
		if it.Qty > item.Stock {
			return nil, apperrors.Conflict(fmt.Sprintf("Stock insuffisant pour %s", item.Name), nil)
		}
	}

	for _, it := range cart.Items() {
		s.catalog[it.ID].Stock -= it.Qty
	}

	receipt := &model.Receipt{
		TransactionID: s.txnID(),
		Items:         cart.Items(),
		Total:         cart.Total(),
		PaymentMethod: req.PaymentMethod,
		PaidAt:        s.now(),
	}
	s.logger.Info("shop order paid", "transaction_id", receipt.TransactionID, "total", receipt.Total, "method", receipt.PaymentMethod)
	return receipt, nil
}
