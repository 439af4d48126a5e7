package model

import (
	"context"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"ht-server/common/constant"
)

const testSchema = `
CREATE TABLE settlement (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	round_id TEXT NOT NULL UNIQUE,
	user_id TEXT NOT NULL,
	operator_id TEXT NOT NULL,
	game_id TEXT NOT NULL,
	bet_on INTEGER NOT NULL,
	bet_amount TEXT NOT NULL,
	win_amount TEXT NOT NULL,
	multiplier TEXT NOT NULL,
	status TEXT NOT NULL,
	result INTEGER NOT NULL,
	debit_txn_id TEXT NOT NULL,
	credit_status TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE TABLE outbox (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	topic TEXT NOT NULL,
	biz_key TEXT NOT NULL,
	payload TEXT NOT NULL,
	status INTEGER NOT NULL,
	retry_count INTEGER NOT NULL,
	last_error TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);`

func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := sqlx.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Exec(testSchema)
	require.NoError(t, err)
	return db
}

func sampleSettlement(roundID, credit string) *Settlement {
	return &Settlement{
		RoundID:      roundID,
		UserID:       "u1",
		OperatorID:   "op1",
		GameID:       "g1",
		BetOn:        1,
		BetAmount:    decimal.NewFromInt(10),
		WinAmount:    decimal.RequireFromString("19.8"),
		Multiplier:   decimal.RequireFromString("1.98"),
		Status:       "win",
		Result:       1,
		DebitTxnID:   "tx-1",
		CreditStatus: credit,
	}
}

func TestInsertSettlementWritesOutbox(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	inserted, err := InsertSettlement(ctx, db, sampleSettlement("r1", constant.CreditDone), "bet_settled")
	require.NoError(t, err)
	assert.True(t, inserted)

	got, err := GetSettlement(ctx, db, "r1")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)
	assert.True(t, got.WinAmount.Equal(decimal.RequireFromString("19.8")))
	assert.True(t, got.Multiplier.Equal(decimal.RequireFromString("1.98")))
	assert.NotZero(t, got.CreatedAt)

	rows, err := ListOutboxPending(ctx, db, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "bet_settled", rows[0].Topic)
	assert.Equal(t, "r1", rows[0].BizKey)
	assert.Contains(t, rows[0].Payload, `"round_id":"r1"`)
}

func TestInsertSettlementDuplicateIsNoop(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	_, err := InsertSettlement(ctx, db, sampleSettlement("r1", constant.CreditDone), "bet_settled")
	require.NoError(t, err)

	inserted, err := InsertSettlement(ctx, db, sampleSettlement("r1", constant.CreditDone), "bet_settled")
	require.NoError(t, err)
	assert.False(t, inserted)

	rows, err := ListOutboxPending(ctx, db, 10)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestListCreditFailures(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	for _, s := range []*Settlement{
		sampleSettlement("r1", constant.CreditFailed),
		sampleSettlement("r2", constant.CreditDone),
		sampleSettlement("r3", constant.CreditFailed),
	} {
		_, err := InsertSettlement(ctx, db, s, "")
		require.NoError(t, err)
	}

	list, err := ListCreditFailures(ctx, db, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "r3", list[0].RoundID)
	assert.Equal(t, "r1", list[1].RoundID)

	list, err = ListCreditFailures(ctx, db, 1)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestOutboxLifecycle(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, CreateOutbox(ctx, db, "bet_settled", "r1", map[string]string{"a": "b"}))
	require.NoError(t, CreateOutbox(ctx, db, "bet_settled", "r2", map[string]string{"a": "c"}))

	rows, err := ListOutboxPending(ctx, db, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	require.NoError(t, MarkOutboxSent(ctx, db, rows[0].ID))
	for i := 0; i < constant.OutboxMaxRetries; i++ {
		require.NoError(t, MarkOutboxFailed(ctx, db, rows[1].ID, "boom"))
	}

	rows, err = ListOutboxPending(ctx, db, 10)
	require.NoError(t, err)
	assert.Empty(t, rows)

	var status int
	require.NoError(t, db.Get(&status, "SELECT status FROM outbox WHERE biz_key = ?", "r2"))
	assert.Equal(t, constant.OutboxFailed, status)
}

func TestIsDuplicateKey(t *testing.T) {
	assert.False(t, IsDuplicateKey(nil))
	assert.False(t, IsDuplicateKey(assert.AnError))
	assert.True(t, IsDuplicateKey(&mysql.MySQLError{Number: 1062, Message: "dup"}))
	assert.True(t, IsDuplicateKey(fmt.Errorf("insert: %w", &mysql.MySQLError{Number: 1062})))
}
