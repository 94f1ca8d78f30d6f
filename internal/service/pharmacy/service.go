package pharmacy

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jwalitptl/clinic-sync/internal/model"
	"github.com/jwalitptl/clinic-sync/internal/repository"
	apperrors "github.com/jwalitptl/clinic-sync/pkg/errors"
	"github.com/jwalitptl/clinic-sync/pkg/logger"
)

// StockPredictor forecasts shortages from the current inventory.
type StockPredictor interface {
	PredictStockShortage(ctx context.Context, inventory []*model.Medicine) model.StockForecast
}

type Service struct {
	repo      repository.MedicineRepository
	predictor StockPredictor
	logger    *logger.Logger
	now       func() time.Time
}

func NewService(repo repository.MedicineRepository, predictor StockPredictor, log *logger.Logger) *Service {
	return &Service{repo: repo, predictor: predictor, logger: log, now: time.Now}
}

// List returns the inventory, filtered by name or category when query is set.
func (s *Service) List(ctx context.Context, query string) ([]*model.Medicine, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return all, nil
	}
	out := make([]*model.Medicine, 0, len(all))
	for _, m := range all {
		if strings.Contains(strings.ToLower(m.Name), q) || strings.Contains(strings.ToLower(m.Category), q) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *Service) Add(ctx context.Context, req model.CreateMedicineRequest) (*model.Medicine, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" || req.Price <= 0 {
		return nil, apperrors.BadRequest("Le nom et le prix sont obligatoires", nil)
	}

	m := &model.Medicine{
		Name:       name,
		Category:   strings.TrimSpace(req.Category),
		Price:      req.Price,
		Stock:      req.Stock,
		ExpiryDate: req.ExpiryDate,
	}
	if m.Category == "" {
		m.Category = model.DefaultMedicineCategory
	}
	if m.Stock < 0 {
		m.Stock = 0
	}
	if m.ExpiryDate == "" {
		m.ExpiryDate = s.now().Format("2006-01-02")
	}

	if err := s.repo.Create(ctx, m); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return nil, apperrors.Conflict("medicine already exists", err)
		}
		return nil, apperrors.Internal(err)
	}
	s.logger.Info("medicine added", "medicine_id", m.ID, "name", m.Name)
	return m, nil
}

// Restock adds the fixed restock quantity to one medicine.
func (s *Service) Restock(ctx context.Context, id string) (*model.Medicine, error) {
	m, err := s.repo.AdjustStock(ctx, id, model.RestockQuantity)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("medicine", err)
		}
		return nil, apperrors.Internal(err)
	}
	s.logger.Info("medicine restocked", "medicine_id", id, "stock", m.Stock)
	return m, nil
}

func (s *Service) LowStock(ctx context.Context) ([]*model.Medicine, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	out := make([]*model.Medicine, 0)
	for _, m := range all {
		if m.LowStock() {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *Service) Predictions(ctx context.Context) (model.StockForecast, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return model.StockForecast{}, apperrors.Internal(err)
	}
	return s.predictor.PredictStockShortage(ctx, all), nil
}
