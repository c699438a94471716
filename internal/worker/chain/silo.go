package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"silo-snapshots/internal/worker/model"
	"silo-snapshots/internal/worker/monitor"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const siloABIJSON = `[{"name":"convertToAssets","type":"function","stateMutability":"view","inputs":[{"name":"_shares","type":"uint256"}],"outputs":[{"name":"assets","type":"uint256"}]}]`

var siloABI = func() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(siloABIJSON))
	if err != nil {
		panic(fmt.Sprintf("parse silo abi: %v", err))
	}
	return parsed
}()

// SupplyIndexAt queries the silo for the number of assets one whole share
// converts to at the given block. The probe amount is 10^sharesDecimals
// shares; dividing the result by the same scale yields assets per share.
func (s *Source) SupplyIndexAt(ctx context.Context, market model.Market, block uint64) (decimal.Decimal, error) {
	probe := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(market.SharesDecimals)), nil)
	callData, err := siloABI.Pack("convertToAssets", probe)
	if err != nil {
		return decimal.Zero, fmt.Errorf("pack convertToAssets: %w", err)
	}

	silo := market.SiloAddress
	msg := ethereum.CallMsg{To: &silo, Data: callData}
	blockNumber := new(big.Int).SetUint64(block)

	var result []byte
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		if err = s.limiter.Wait(ctx); err != nil {
			return decimal.Zero, err
		}
		monitor.RPCRequests.WithLabelValues("eth_call").Inc()
		result, err = s.backend.CallContract(ctx, msg, blockNumber)
		if err == nil {
			break
		}
		monitor.RPCErrors.WithLabelValues("eth_call").Inc()
		s.tl.Warn("convertToAssets call failed, retrying",
			zap.String("silo", silo.Hex()),
			zap.Uint64("block", block),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
		time.Sleep(time.Duration(attempt+1) * 500 * time.Millisecond)
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("convertToAssets at block %d: %w", block, err)
	}
	if len(result) < 32 {
		return decimal.Zero, fmt.Errorf("convertToAssets returned %d bytes", len(result))
	}

	// Take the trailing 32 bytes as the uint256 result.
	assets := new(big.Int).SetBytes(result[len(result)-32:])
	return decimal.NewFromBigInt(assets, -int32(market.SharesDecimals)), nil
}

// Head returns the current chain head.
func (s *Source) Head(ctx context.Context) (uint64, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	monitor.RPCRequests.WithLabelValues("eth_blockNumber").Inc()
	head, err := s.backend.BlockNumber(ctx)
	if err != nil {
		monitor.RPCErrors.WithLabelValues("eth_blockNumber").Inc()
		return 0, err
	}
	return head, nil
}
