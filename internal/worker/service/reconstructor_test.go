package service

import (
	"context"
	"math/big"
	"testing"

	"silo-snapshots/internal/worker/model"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	addrA = common.HexToAddress("0x1111111111111111111111111111111111111111")
	addrB = common.HexToAddress("0x2222222222222222222222222222222222222222")
	addrC = common.HexToAddress("0x3333333333333333333333333333333333333333")
)

func testMarket() model.Market {
	return model.Market{
		IntegrationID:     "silo_test",
		SiloAddress:       common.HexToAddress("0x0341C0C0ec423328621788d4854119B97f44E391"),
		NonBorrowableAddr: common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"),
		SharesDecimals:    18,
		StartBlock:        100,
	}
}

// fetchRange records one FetchTransfers call made against the fake source.
type fetchRange struct {
	from, to uint64
}

type fakeSource struct {
	transfers   []model.TransferEvent
	supplyIndex decimal.Decimal
	fetches     []fetchRange
	indexCalls  []uint64
}

func (f *fakeSource) FetchTransfers(_ context.Context, _ model.Market, fromBlock, toBlock uint64) ([]model.TransferEvent, error) {
	f.fetches = append(f.fetches, fetchRange{from: fromBlock, to: toBlock})
	var out []model.TransferEvent
	for _, t := range f.transfers {
		if t.BlockNumber >= fromBlock && t.BlockNumber <= toBlock {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeSource) SupplyIndexAt(_ context.Context, _ model.Market, block uint64) (decimal.Decimal, error) {
	f.indexCalls = append(f.indexCalls, block)
	return f.supplyIndex, nil
}

func shares(whole int64, frac string) *big.Int {
	d := decimal.NewFromInt(whole)
	if frac != "" {
		f, _ := decimal.NewFromString(frac)
		d = d.Add(f)
	}
	return d.Shift(18).BigInt()
}

func mint(to common.Address, value *big.Int, block uint64) model.TransferEvent {
	return model.TransferEvent{From: model.NullAddress, To: to, Value: value, BlockNumber: block}
}

func burn(from common.Address, value *big.Int, block uint64) model.TransferEvent {
	return model.TransferEvent{From: from, To: model.NullAddress, Value: value, BlockNumber: block}
}

func transfer(from, to common.Address, value *big.Int, block uint64) model.TransferEvent {
	return model.TransferEvent{From: from, To: to, Value: value, BlockNumber: block}
}

func newTestReconstructor(source ChainSource) *BalanceReconstructor {
	return NewBalanceReconstructor(testMarket(), source, zap.NewNop())
}

func TestEmptyBlocksShortCircuits(t *testing.T) {
	source := &fakeSource{supplyIndex: decimal.NewFromInt(1)}
	r := newTestReconstructor(source)

	result, err := r.GetBlockBalances(context.Background(), model.BlockBalances{}, nil)
	require.NoError(t, err)
	assert.Empty(t, result)
	// No chain collaborator may be touched.
	assert.Empty(t, source.fetches)
	assert.Empty(t, source.indexCalls)
}

func TestNoCacheNoEvents(t *testing.T) {
	source := &fakeSource{supplyIndex: decimal.NewFromInt(1)}
	r := newTestReconstructor(source)

	result, err := r.GetBlockBalances(context.Background(), model.BlockBalances{}, []uint64{150})
	require.NoError(t, err)
	require.Contains(t, result, uint64(150))
	assert.Empty(t, result[150])
}

func TestMintBoundaryExactlyOne(t *testing.T) {
	// 10^18 shares at index 1.0: the decimals scale cancels exactly.
	source := &fakeSource{
		supplyIndex: decimal.NewFromInt(1),
		transfers:   []model.TransferEvent{mint(addrA, shares(1, ""), 120)},
	}
	r := newTestReconstructor(source)

	result, err := r.GetBlockBalances(context.Background(), model.BlockBalances{}, []uint64{150})
	require.NoError(t, err)
	assert.True(t, result[150][addrA].Equal(decimal.NewFromInt(1)),
		"got %s", result[150][addrA])
}

func TestTransferMovesConvertedAmount(t *testing.T) {
	// 5*10^17 shares at index 2.0: sender loses 1.0, receiver gains 1.0.
	source := &fakeSource{
		supplyIndex: decimal.NewFromInt(2),
		transfers: []model.TransferEvent{
			transfer(addrA, addrB, shares(0, "0.5"), 130),
		},
	}
	r := newTestReconstructor(source)

	cached := model.BlockBalances{
		110: {addrA: decimal.NewFromInt(3)},
	}
	result, err := r.GetBlockBalances(context.Background(), cached, []uint64{150})
	require.NoError(t, err)

	bals := result[150]
	assert.True(t, bals[addrA].Equal(decimal.NewFromInt(2)), "sender: %s", bals[addrA])
	assert.True(t, bals[addrB].Equal(decimal.NewFromInt(1)), "receiver: %s", bals[addrB])
}

func TestBurnClampsToZero(t *testing.T) {
	// Burning more than held (rounding drift) must pin the balance at 0.
	source := &fakeSource{
		supplyIndex: decimal.NewFromInt(1),
		transfers: []model.TransferEvent{
			mint(addrA, shares(1, ""), 120),
			burn(addrA, shares(1, "0.000001"), 125),
		},
	}
	r := newTestReconstructor(source)

	result, err := r.GetBlockBalances(context.Background(), model.BlockBalances{}, []uint64{150})
	require.NoError(t, err)
	assert.True(t, result[150][addrA].Equal(decimal.Zero), "got %s", result[150][addrA])
	assert.False(t, result[150][addrA].IsNegative())
}

func TestMintBurnConservation(t *testing.T) {
	source := &fakeSource{
		supplyIndex: decimal.RequireFromString("1.25"),
		transfers: []model.TransferEvent{
			mint(addrA, shares(4, ""), 110),
			mint(addrB, shares(2, ""), 115),
			transfer(addrA, addrC, shares(1, ""), 120),
			burn(addrB, shares(0, "0.5"), 130),
		},
	}
	r := newTestReconstructor(source)

	result, err := r.GetBlockBalances(context.Background(), model.BlockBalances{}, []uint64{150})
	require.NoError(t, err)

	total := decimal.Zero
	for _, amount := range result[150] {
		assert.False(t, amount.IsNegative())
		total = total.Add(amount)
	}
	// minted (4+2)*1.25 minus burned 0.5*1.25
	expected := decimal.RequireFromString("6.875")
	assert.True(t, total.Equal(expected), "sum: %s", total)
}

func TestInputCacheNeverMutated(t *testing.T) {
	source := &fakeSource{
		supplyIndex: decimal.NewFromInt(1),
		transfers:   []model.TransferEvent{mint(addrA, shares(5, ""), 120)},
	}
	r := newTestReconstructor(source)

	cached := model.BlockBalances{
		110: {addrA: decimal.NewFromInt(7)},
	}
	first, err := r.GetBlockBalances(context.Background(), cached, []uint64{150})
	require.NoError(t, err)

	// The caller's cache still holds exactly one entry with the original amount.
	require.Len(t, cached, 1)
	assert.True(t, cached[110][addrA].Equal(decimal.NewFromInt(7)))

	second, err := r.GetBlockBalances(context.Background(), cached, []uint64{150})
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestBlockOrderIndependence(t *testing.T) {
	events := []model.TransferEvent{
		mint(addrA, shares(2, ""), 120),
		transfer(addrA, addrB, shares(1, ""), 160),
	}

	run := func(blocks []uint64) model.BlockBalances {
		source := &fakeSource{supplyIndex: decimal.NewFromInt(1), transfers: events}
		r := newTestReconstructor(source)
		result, err := r.GetBlockBalances(context.Background(), model.BlockBalances{}, blocks)
		require.NoError(t, err)
		return result
	}

	ascending := run([]uint64{150, 200})
	descending := run([]uint64{200, 150})
	assert.Equal(t, ascending, descending)

	// The later block is seeded from the earlier one in both runs.
	assert.True(t, ascending[200][addrA].Equal(decimal.NewFromInt(1)))
	assert.True(t, ascending[200][addrB].Equal(decimal.NewFromInt(1)))
}

func TestDuplicateBlocksProcessedOnce(t *testing.T) {
	source := &fakeSource{
		supplyIndex: decimal.NewFromInt(1),
		transfers:   []model.TransferEvent{mint(addrA, shares(1, ""), 120)},
	}
	r := newTestReconstructor(source)

	result, err := r.GetBlockBalances(context.Background(), model.BlockBalances{}, []uint64{150, 150})
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.True(t, result[150][addrA].Equal(decimal.NewFromInt(1)))
	// One supply-index call means one reconstruction pass.
	assert.Equal(t, []uint64{150}, source.indexCalls)
}

func TestPaginationWindows(t *testing.T) {
	source := &fakeSource{supplyIndex: decimal.NewFromInt(1)}
	market := testMarket()
	market.StartBlock = 0
	r := NewBalanceReconstructor(market, source, zap.NewNop())

	target := uint64(2*PaginationSize + 500)
	_, err := r.GetBlockBalances(context.Background(), model.BlockBalances{}, []uint64{target})
	require.NoError(t, err)

	expected := []fetchRange{
		{from: 0, to: PaginationSize},
		{from: PaginationSize + 1, to: 2*PaginationSize + 1},
		{from: 2*PaginationSize + 2, to: target},
	}
	assert.Equal(t, expected, source.fetches)
}

func TestCacheLookupStrictlyBelowTarget(t *testing.T) {
	// An exact-match cached block must not be reused; the nearest strictly
	// lower snapshot seeds the replay.
	source := &fakeSource{
		supplyIndex: decimal.NewFromInt(1),
		transfers:   []model.TransferEvent{mint(addrB, shares(1, ""), 145)},
	}
	r := newTestReconstructor(source)

	cached := model.BlockBalances{
		140: {addrA: decimal.NewFromInt(1)},
		150: {addrC: decimal.NewFromInt(9)},
	}
	result, err := r.GetBlockBalances(context.Background(), cached, []uint64{150})
	require.NoError(t, err)

	bals := result[150]
	assert.True(t, bals[addrA].Equal(decimal.NewFromInt(1)))
	assert.True(t, bals[addrB].Equal(decimal.NewFromInt(1)))
	_, hasC := bals[addrC]
	assert.False(t, hasC, "exact-match snapshot must not seed the replay")
	// Replay starts right above the cached block, not at market start.
	require.NotEmpty(t, source.fetches)
	assert.Equal(t, uint64(141), source.fetches[0].from)
}

func TestRoundingToSixDecimals(t *testing.T) {
	// 1 wei at index 1.0 rounds away entirely at 6 decimals.
	source := &fakeSource{
		supplyIndex: decimal.NewFromInt(1),
		transfers: []model.TransferEvent{
			mint(addrA, big.NewInt(1), 120),
			mint(addrB, shares(0, "0.1234567"), 121),
		},
	}
	r := newTestReconstructor(source)

	result, err := r.GetBlockBalances(context.Background(), model.BlockBalances{}, []uint64{150})
	require.NoError(t, err)
	assert.True(t, result[150][addrA].Equal(decimal.Zero), "dust: %s", result[150][addrA])
	assert.True(t, result[150][addrB].Equal(decimal.RequireFromString("0.123457")),
		"rounded: %s", result[150][addrB])
}
