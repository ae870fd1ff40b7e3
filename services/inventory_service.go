package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"

	apperrors "github.com/aamamun24/FineMed-Server/common/errors"
	"github.com/aamamun24/FineMed-Server/models"
	awspkg "github.com/aamamun24/FineMed-Server/pkg/aws"
	"github.com/aamamun24/FineMed-Server/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StockDelta is a signed stock change: positive returns stock, negative
// reserves it.
type StockDelta struct {
	ProductID uuid.UUID
	Delta     int
}

// InventoryService is the only writer of available stock during order flows.
type InventoryService struct {
	repo     repository.InventoryRepository
	metrics  *awspkg.MetricsClient
	log      *zap.Logger
	lowStock int
	external bool
}

// NewInventoryService builds the ledger. external is set when counters live
// outside the products table, so catalog reads must overlay them.
func NewInventoryService(repo repository.InventoryRepository, metrics *awspkg.MetricsClient, log *zap.Logger, lowStock int, external bool) *InventoryService {
	return &InventoryService{repo: repo, metrics: metrics, log: log, lowStock: lowStock, external: external}
}

// Reserve takes quantity units of a product, failing with ErrOutOfStock when
// fewer are available.
func (s *InventoryService) Reserve(ctx context.Context, productID uuid.UUID, quantity int) (int, error) {
	if quantity <= 0 {
		return 0, apperrors.Validation("quantity must be positive")
	}
	left, err := s.repo.Reserve(ctx, productID, quantity)
	if err != nil {
		return 0, err
	}
	s.record(awspkg.MetricInventoryReserved, productID, quantity)
	if left < s.lowStock {
		s.log.Warn("product stock is low", zap.String("product_id", productID.String()), zap.Int("quantity", left))
		s.record(awspkg.MetricInventoryLow, productID, left)
	}
	return left, nil
}

// Release returns quantity units. There is no ceiling check.
func (s *InventoryService) Release(ctx context.Context, productID uuid.UUID, quantity int) (int, error) {
	if quantity <= 0 {
		return 0, apperrors.Validation("quantity must be positive")
	}
	left, err := s.repo.Release(ctx, productID, quantity)
	if err != nil {
		return 0, err
	}
	s.record(awspkg.MetricInventoryReleased, productID, quantity)
	return left, nil
}

// Adjust applies a signed delta. A negative delta is a guarded reservation.
func (s *InventoryService) Adjust(ctx context.Context, productID uuid.UUID, delta int) (int, error) {
	switch {
	case delta > 0:
		return s.Release(ctx, productID, delta)
	case delta < 0:
		return s.Reserve(ctx, productID, -delta)
	default:
		return s.repo.Available(ctx, productID)
	}
}

func (s *InventoryService) Available(ctx context.Context, productID uuid.UUID) (int, error) {
	return s.repo.Available(ctx, productID)
}

func (s *InventoryService) Quantities(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]int, error) {
	return s.repo.Quantities(ctx, ids)
}

// SetQuantity seeds or overwrites a product's stock from catalog management.
func (s *InventoryService) SetQuantity(ctx context.Context, productID uuid.UUID, quantity int) error {
	if quantity < 0 {
		return apperrors.Validation("quantity cannot be negative")
	}
	return s.repo.SetQuantity(ctx, productID, quantity)
}

// Overlay replaces product quantities with the ledger's when stock is kept
// outside the products table.
func (s *InventoryService) Overlay(ctx context.Context, products []models.Product) error {
	if !s.external || len(products) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(products))
	for i := range products {
		ids[i] = products[i].ID
	}
	qs, err := s.repo.Quantities(ctx, ids)
	if err != nil {
		return err
	}
	for i := range products {
		products[i].Quantity = qs[products[i].ID]
	}
	return nil
}

// ReserveAll reserves every line item. If any reservation fails, the ones
// already made are released before returning. The returned Reservation lets
// later steps undo the whole set.
func (s *InventoryService) ReserveAll(ctx context.Context, items []models.LineItem) (*Reservation, error) {
	deltas := make([]StockDelta, 0, len(items))
	for _, it := range items {
		if it.Quantity <= 0 {
			return nil, apperrors.Validation(fmt.Sprintf("quantity for product %s must be positive", it.ProductID))
		}
		deltas = append(deltas, StockDelta{ProductID: it.ProductID, Delta: -it.Quantity})
	}
	return s.ApplyAll(ctx, deltas)
}

// ApplyAll applies deltas in order and rolls back on the first failure.
// An out-of-stock failure is reported as InsufficientStock naming the product.
func (s *InventoryService) ApplyAll(ctx context.Context, deltas []StockDelta) (*Reservation, error) {
	r := &Reservation{svc: s}
	for _, d := range deltas {
		if d.Delta == 0 {
			continue
		}
		if _, err := s.Adjust(ctx, d.ProductID, d.Delta); err != nil {
			r.Rollback(ctx)
			if errors.Is(err, apperrors.ErrOutOfStock) {
				return nil, apperrors.InsufficientStock(d.ProductID.String())
			}
			return nil, err
		}
		r.applied = append(r.applied, d)
	}
	return r, nil
}

// ReleaseAll returns every line item's stock, continuing past failures.
func (s *InventoryService) ReleaseAll(ctx context.Context, items []models.LineItem) error {
	var errs []error
	for _, it := range items {
		if _, err := s.Release(ctx, it.ProductID, it.Quantity); err != nil {
			s.log.Error("failed to release stock",
				zap.String("product_id", it.ProductID.String()),
				zap.Int("quantity", it.Quantity),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("release %s: %w", it.ProductID, err))
		}
	}
	return errors.Join(errs...)
}

func (s *InventoryService) record(metric string, productID uuid.UUID, qty int) {
	s.metrics.CountAsync(metric, map[string]string{"ProductId": productID.String(), "Quantity": strconv.Itoa(qty)})
}

// Reservation tracks applied stock changes so they can be compensated.
type Reservation struct {
	svc     *InventoryService
	mu      sync.Mutex
	applied []StockDelta
	undone  bool
}

// Rollback reverses every applied change once. Failures are logged.
func (r *Reservation) Rollback(ctx context.Context) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.undone {
		return
	}
	r.undone = true

	for i := len(r.applied) - 1; i >= 0; i-- {
		d := r.applied[i]
		if _, err := r.svc.Adjust(ctx, d.ProductID, -d.Delta); err != nil {
			r.svc.log.Error("failed to roll back stock change",
				zap.String("product_id", d.ProductID.String()),
				zap.Int("delta", d.Delta),
				zap.Error(err))
		}
	}
}

// Deltas computes per-product old minus new quantities, releases first and
// then reservations, each group sorted by product id for a stable order.
func Deltas(oldItems, newItems []models.LineItem) []StockDelta {
	net := make(map[uuid.UUID]int)
	for _, it := range oldItems {
		net[it.ProductID] += it.Quantity
	}
	for _, it := range newItems {
		net[it.ProductID] -= it.Quantity
	}

	deltas := make([]StockDelta, 0, len(net))
	for id, d := range net {
		if d != 0 {
			deltas = append(deltas, StockDelta{ProductID: id, Delta: d})
		}
	}
	sort.Slice(deltas, func(i, j int) bool {
		if (deltas[i].Delta > 0) != (deltas[j].Delta > 0) {
			return deltas[i].Delta > 0
		}
		return deltas[i].ProductID.String() < deltas[j].ProductID.String()
	})
	return deltas
}

// External reports whether stock lives outside the products table.
func (s *InventoryService) External() bool {
	return s.external
}
