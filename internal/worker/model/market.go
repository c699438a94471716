package model

import (
	"github.com/ethereum/go-ethereum/common"
)

// Market describes one Silo lending market tracked by the service.
// Every market exposes two ERC-20 representations of the same deposit:
// the borrowable share token (the silo itself) and the protected,
// non-borrowable token. Transfers of both move holder positions.
type Market struct {
	IntegrationID     string
	SiloAddress       common.Address
	NonBorrowableAddr common.Address
	SharesDecimals    uint8
	// StartBlock is the deployment block of the market; reconstruction
	// never reaches below it.
	StartBlock uint64
}
