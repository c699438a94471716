package model

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlockBalancesCopyIsolation(t *testing.T) {
	addr := common.HexToAddress("0x1111111111111111111111111111111111111111")
	original := BlockBalances{
		100: {addr: decimal.NewFromInt(5)},
	}

	copied := original.Copy()
	copied[100][addr] = decimal.NewFromInt(99)
	copied[200] = Balances{addr: decimal.NewFromInt(1)}

	assert.True(t, original[100][addr].Equal(decimal.NewFromInt(5)))
	assert.NotContains(t, original, uint64(200))
}

func TestSnapshotRecordRoundTrip(t *testing.T) {
	addr := common.HexToAddress("0x1111111111111111111111111111111111111111")
	bals := Balances{addr: decimal.RequireFromString("12.345678")}

	record, err := NewSnapshotRecord("silo_test", 21349400, bals)
	require.NoError(t, err)
	assert.Equal(t, int64(21349400), record.BlockNumber)
	assert.Equal(t, 1, record.HolderCount)

	decoded, err := record.DecodeBalances()
	require.NoError(t, err)
	require.Contains(t, decoded, addr)
	assert.True(t, decoded[addr].Equal(bals[addr]))
}

func TestTransferEventKind(t *testing.T) {
	addr := common.HexToAddress("0x2222222222222222222222222222222222222222")
	assert.True(t, TransferEvent{From: NullAddress, To: addr}.IsMint())
	assert.True(t, TransferEvent{From: addr, To: NullAddress}.IsBurn())
	plain := TransferEvent{From: addr, To: addr}
	assert.False(t, plain.IsMint())
	assert.False(t, plain.IsBurn())
}
