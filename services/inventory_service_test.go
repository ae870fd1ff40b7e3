package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	apperrors "github.com/aamamun24/FineMed-Server/common/errors"
	"github.com/aamamun24/FineMed-Server/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestReserve_DecrementsAndGuards(t *testing.T) {
	ledger := newFakeLedger()
	id := uuid.New()
	ledger.stock[id] = 5
	inv := newInventory(ledger)
	ctx := context.Background()

	left, err := inv.Reserve(ctx, id, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, left)

	_, err = inv.Reserve(ctx, id, 3)
	assert.ErrorIs(t, err, apperrors.ErrOutOfStock)
	assert.Equal(t, 2, ledger.get(id))

	_, err = inv.Reserve(ctx, uuid.New(), 1)
	assert.ErrorIs(t, err, apperrors.ErrProductNotFound)
}

func TestReserve_RejectsNonPositive(t *testing.T) {
	inv := newInventory(newFakeLedger())
	for _, q := range []int{0, -1} {
		_, err := inv.Reserve(context.Background(), uuid.New(), q)
		assert.Equal(t, apperrors.KindValidation, apperrors.From(err).Kind, "qty %d", q)
		_, err = inv.Release(context.Background(), uuid.New(), q)
		assert.Equal(t, apperrors.KindValidation, apperrors.From(err).Kind, "qty %d", q)
	}
}

func TestRelease_HasNoCeiling(t *testing.T) {
	ledger := newFakeLedger()
	id := uuid.New()
	ledger.stock[id] = 1
	inv := newInventory(ledger)

	left, err := inv.Release(context.Background(), id, 10)
	require.NoError(t, err)
	assert.Equal(t, 11, left)
}

func TestAdjust_SignSelectsOperation(t *testing.T) {
	ledger := newFakeLedger()
	id := uuid.New()
	ledger.stock[id] = 4
	inv := newInventory(ledger)
	ctx := context.Background()

	left, err := inv.Adjust(ctx, id, -3)
	require.NoError(t, err)
	assert.Equal(t, 1, left)

	left, err = inv.Adjust(ctx, id, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, left)

	left, err = inv.Adjust(ctx, id, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, left)
}

func TestSetQuantity_RejectsNegative(t *testing.T) {
	inv := newInventory(newFakeLedger())
	err := inv.SetQuantity(context.Background(), uuid.New(), -1)
	assert.Equal(t, apperrors.KindValidation, apperrors.From(err).Kind)
}

func TestReserveAll_RollsBackOnFailure(t *testing.T) {
	ledger := newFakeLedger()
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	ledger.stock[a] = 5
	ledger.stock[b] = 5
	ledger.stock[c] = 1
	inv := newInventory(ledger)

	_, err := inv.ReserveAll(context.Background(), []models.LineItem{
		{ProductID: a, Quantity: 2},
		{ProductID: b, Quantity: 3},
		{ProductID: c, Quantity: 2},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInsufficientStock)
	assert.Contains(t, err.Error(), c.String())

	assert.Equal(t, 5, ledger.get(a))
	assert.Equal(t, 5, ledger.get(b))
	assert.Equal(t, 1, ledger.get(c))
}

func TestReserveAll_MissingProductKeepsNotFound(t *testing.T) {
	ledger := newFakeLedger()
	a := uuid.New()
	ledger.stock[a] = 5
	inv := newInventory(ledger)

	_, err := inv.ReserveAll(context.Background(), []models.LineItem{
		{ProductID: a, Quantity: 1},
		{ProductID: uuid.New(), Quantity: 1},
	})
	assert.ErrorIs(t, err, apperrors.ErrProductNotFound)
	assert.Equal(t, 5, ledger.get(a))
}

func TestReservation_RollbackRunsOnce(t *testing.T) {
	ledger := newFakeLedger()
	a := uuid.New()
	ledger.stock[a] = 5
	inv := newInventory(ledger)

	r, err := inv.ReserveAll(context.Background(), []models.LineItem{{ProductID: a, Quantity: 4}})
	require.NoError(t, err)
	assert.Equal(t, 1, ledger.get(a))

	r.Rollback(context.Background())
	r.Rollback(context.Background())
	assert.Equal(t, 5, ledger.get(a))

	var nilRes *Reservation
	assert.NotPanics(t, func() { nilRes.Rollback(context.Background()) })
}

func TestReleaseAll_ContinuesPastFailures(t *testing.T) {
	ledger := newFakeLedger()
	a, b := uuid.New(), uuid.New()
	ledger.stock[a] = 0
	ledger.stock[b] = 0
	ledger.releaseErr[a] = errors.New("boom")
	inv := newInventory(ledger)

	err := inv.ReleaseAll(context.Background(), []models.LineItem{
		{ProductID: a, Quantity: 1},
		{ProductID: b, Quantity: 2},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), a.String())
	assert.Equal(t, 2, ledger.get(b))
}

func TestDeltas_ReleasesFirst(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	old := []models.LineItem{{ProductID: a, Quantity: 3}, {ProductID: b, Quantity: 1}}
	next := []models.LineItem{{ProductID: a, Quantity: 1}, {ProductID: b, Quantity: 1}, {ProductID: c, Quantity: 2}}

	got := Deltas(old, next)
	require.Len(t, got, 2)
	assert.Equal(t, StockDelta{ProductID: a, Delta: 2}, got[0])
	assert.Equal(t, StockDelta{ProductID: c, Delta: -2}, got[1])

	assert.Empty(t, Deltas(old, old))
}

func TestOverlay_OnlyForExternalLedger(t *testing.T) {
	ledger := newFakeLedger()
	id := uuid.New()
	ledger.stock[id] = 9
	products := []models.Product{{ID: id, Quantity: 1}}

	require.NoError(t, newInventory(ledger).Overlay(context.Background(), products))
	assert.Equal(t, 1, products[0].Quantity)

	ext := NewInventoryService(ledger, nil, zap.NewNop(), 5, true)
	require.NoError(t, ext.Overlay(context.Background(), products))
	assert.Equal(t, 9, products[0].Quantity)
	assert.True(t, ext.External())
}

func TestReserve_ConcurrentNeverOversells(t *testing.T) {
	ledger := newFakeLedger()
	id := uuid.New()
	ledger.stock[id] = 10
	inv := newInventory(ledger)

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := inv.Reserve(context.Background(), id, 1); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, ok)
	assert.Equal(t, 0, ledger.get(id))
}

func TestReserveAll_RejectsNonPositiveLines(t *testing.T) {
	ledger := newFakeLedger()
	a, b := uuid.New(), uuid.New()
	ledger.stock[a] = 10
	ledger.stock[b] = 10
	inv := newInventory(ledger)

	for _, q := range []int{0, -2} {
		r, err := inv.ReserveAll(context.Background(), []models.LineItem{{ProductID: a, Quantity: 1}, {ProductID: b, Quantity: q}})
		assert.Nil(t, r)
		assert.Equal(t, apperrors.KindValidation, apperrors.From(err).Kind, "qty %d", q)
	}
	assert.Equal(t, 10, ledger.get(a))
	assert.Equal(t, 10, ledger.get(b))
}
