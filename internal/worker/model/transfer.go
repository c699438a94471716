package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// NullAddress marks mint (as sender) and burn (as receiver) in ERC-20
// Transfer semantics.
var NullAddress = common.Address{}

// TransferEvent is one decoded ERC-20 Transfer log. Value is the raw
// share amount, unscaled.
type TransferEvent struct {
	From        common.Address
	To          common.Address
	Value       *big.Int
	BlockNumber uint64
}

// IsMint reports whether the event creates shares out of the null address.
func (t TransferEvent) IsMint() bool {
	return t.From == NullAddress
}

// IsBurn reports whether the event sends shares to the null address.
func (t TransferEvent) IsBurn() bool {
	return t.To == NullAddress
}
