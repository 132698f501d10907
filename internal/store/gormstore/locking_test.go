package gormstore

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"kasirinaja/backoffice/internal/domain"
	"kasirinaja/backoffice/internal/store"
)

func TestLockForUpdateOnPostgres(t *testing.T) {
	db, err := gorm.Open(postgres.New(postgres.Config{DSN: "host=127.0.0.1 user=dryrun dbname=dryrun sslmode=disable"}), &gorm.Config{
		DryRun:               true,
		DisableAutomaticPing: true,
	})
	require.NoError(t, err)

	query := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		var row inventoryRow
		return lockForUpdate(tx).Where("id = ?", "inv-1").Take(&row)
	})
	assert.Contains(t, query, "FOR UPDATE")
}

func TestLockForUpdateSkippedOnSQLite(t *testing.T) {
	s := newSQLiteStore(t)

	query := s.db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		var row inventoryRow
		return lockForUpdate(tx).Where("id = ?", "inv-1").Take(&row)
	})
	assert.NotContains(t, query, "FOR UPDATE")
}

func TestConcurrentMovesNeverOverdraw(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()
	product, added := seedProduct(t, s)

	const attempts = 15
	var (
		wg           sync.WaitGroup
		mu           sync.Mutex
		moved, short int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.ApplyInventoryMovement(ctx, domain.InventoryMovement{
				Type: domain.MovementMove, ProductID: product.ID, InventoryID: added.InventoryID,
				ToBranchID: "north-branch", Quantity: 1, ActorUserID: "user-admin",
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				moved++
			case errors.Is(err, store.ErrInsufficientStock):
				short++
			default:
				t.Errorf("unexpected move error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, moved)
	assert.Equal(t, attempts-10, short)

	inventories, err := s.ListInventories(ctx, product.ID)
	require.NoError(t, err)
	stock := map[string]int{}
	for _, inv := range inventories {
		stock[inv.BranchID] = inv.Stock
	}
	assert.Equal(t, 0, stock["main-branch"])
	assert.Equal(t, 10, stock["north-branch"])
}
