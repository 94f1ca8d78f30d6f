package memory

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/jwalitptl/clinic-sync/internal/model"
	"github.com/jwalitptl/clinic-sync/internal/repository"
)

// SeedInventory is the demo pharmacy stock.
func SeedInventory() []*model.Medicine {
	return []*model.Medicine{
		{ID: "1", Name: "Amoxicilline 500mg", Stock: 120, Category: "Antibiotique", Price: 3500, ExpiryDate: "2024-12-01"},
		{ID: "2", Name: "Paracétamol 1000mg", Stock: 45, Category: "Antalgique", Price: 1200, ExpiryDate: "2025-06-15"},
		{ID: "3", Name: "Metformine 850mg", Stock: 12, Category: "Antidiabétique", Price: 4500, ExpiryDate: "2024-05-20"},
		{ID: "4", Name: "Ibuprofène 400mg", Stock: 200, Category: "Anti-inflammatoire", Price: 2100, ExpiryDate: "2025-01-10"},
		{ID: "5", Name: "Atorvastatine 20mg", Stock: 8, Category: "Cardiovasculaire", Price: 8900, ExpiryDate: "2024-08-30"},
	}
}

type medicineRepository struct {
	mu    sync.RWMutex
	order []string
	items map[string]*model.Medicine
}

func NewMedicineRepository(seed []*model.Medicine) repository.MedicineRepository {
	r := &medicineRepository{items: make(map[string]*model.Medicine)}
	for _, m := range seed {
		cp := *m
		r.items[cp.ID] = &cp
		r.order = append(r.order, cp.ID)
	}
	return r
}

func (r *medicineRepository) List(context.Context) ([]*model.Medicine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*model.Medicine, 0, len(r.order))
	for _, id := range r.order {
		cp := *r.items[id]
		out = append(out, &cp)
	}
	return out, nil
}

func (r *medicineRepository) Get(_ context.Context, id string) (*model.Medicine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (r *medicineRepository) Create(_ context.Context, m *model.Medicine) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m.ID == "" {
		m.ID = strconv.FormatInt(time.Now().UnixMilli(), 10)
	}
	if _, exists := r.items[m.ID]; exists {
		return repository.ErrAlreadyExists
	}
	m.UpdatedAt = time.Now()
	cp := *m
	r.items[m.ID] = &cp
	r.order = append(r.order, m.ID)
	return nil
}

func (r *medicineRepository) AdjustStock(_ context.Context, id string, delta int) (*model.Medicine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	m.Stock += delta
	if m.Stock < 0 {
		m.Stock = 0
	}
	m.UpdatedAt = time.Now()
	cp := *m
	return &cp, nil
}
