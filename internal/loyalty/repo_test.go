package loyalty

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/bawabati/bawabati-backend/pkg/db/models"
	"github.com/bawabati/bawabati-backend/pkg/enums"
)

func setupLoyaltyTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	table := `
CREATE TABLE loyalty_transactions (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  type TEXT NOT NULL,
  points INTEGER NOT NULL,
  order_id TEXT,
  lucky_box_id TEXT,
  description TEXT NOT NULL,
  created_at DATETIME
);`
	require.NoError(t, db.Exec(table).Error)
	return db
}

func repoLedgerEntry(userID uuid.UUID, points int64, createdAt time.Time) *models.LoyaltyTransaction {
	return &models.LoyaltyTransaction{
		ID:          uuid.New(),
		UserID:      userID,
		Type:        enums.LoyaltyTransactionEarn,
		Points:      points,
		Description: "order delivered",
		CreatedAt:   createdAt,
	}
}

func TestLoyaltyRepositoryListTransactionsPagination(t *testing.T) {
	db := setupLoyaltyTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	userID := uuid.New()
	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, repo.CreateTransaction(ctx, repoLedgerEntry(userID, int64(10+i), base.Add(time.Duration(i)*time.Minute))))
	}
	require.NoError(t, repo.CreateTransaction(ctx, repoLedgerEntry(uuid.New(), 5, base.Add(time.Hour))))

	page, cursor, err := repo.ListTransactions(ctx, listTransactionsParams{UserID: userID, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.NotNil(t, cursor)
	assert.True(t, page[0].CreatedAt.After(page[1].CreatedAt))

	rest, cursor, err := repo.ListTransactions(ctx, listTransactionsParams{UserID: userID, Limit: 2, Cursor: cursor})
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Nil(t, cursor)

	// No ledger entry is dropped or repeated across the page boundary.
	seen := map[uuid.UUID]bool{}
	for _, txn := range append(page, rest...) {
		assert.False(t, seen[txn.ID])
		seen[txn.ID] = true
	}
	assert.Len(t, seen, 3)
}
