package session

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeNumericBalance(t *testing.T) {
	rec, err := Decode(`{"user_id":"u1","operator_id":"op","token":"t","game_id":"g","balance":100.55}`)
	require.NoError(t, err)
	assert.Equal(t, "u1", rec.UserID)
	assert.Equal(t, "op", rec.OperatorID)
	assert.True(t, rec.Balance.Equal(decimal.RequireFromString("100.55")))
}

func TestEncodeDecodeKeepsBalanceExact(t *testing.T) {
	in := &Record{UserID: "u1", OperatorID: "op", Token: "t", GameID: "g", Balance: decimal.RequireFromString("109.8")}
	raw, err := Encode(in)
	require.NoError(t, err)

	out, err := Decode(raw)
	require.NoError(t, err)
	assert.True(t, out.Balance.Equal(in.Balance))
	assert.Equal(t, in.Token, out.Token)
}

func TestDecodeGarbage(t *testing.T) {
	_, err := Decode("not-json")
	assert.Error(t, err)
}

func TestCloneIsIndependent(t *testing.T) {
	in := &Record{UserID: "u1", Balance: decimal.NewFromInt(5)}
	c := in.Clone()
	c.Balance = c.Balance.Sub(decimal.NewFromInt(1))
	assert.True(t, in.Balance.Equal(decimal.NewFromInt(5)))
}
