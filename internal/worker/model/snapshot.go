package model

import (
	"time"

	"github.com/bytedance/sonic"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Balances is one snapshot: asset amount held per address at a block.
type Balances map[common.Address]decimal.Decimal

// Copy returns an independent copy of the snapshot.
func (b Balances) Copy() Balances {
	out := make(Balances, len(b))
	for addr, amount := range b {
		out[addr] = amount
	}
	return out
}

// BlockBalances maps block height to the snapshot computed at that height.
type BlockBalances map[uint64]Balances

// Copy deep-copies the whole cache so the caller's map is never mutated.
func (c BlockBalances) Copy() BlockBalances {
	out := make(BlockBalances, len(c))
	for block, bals := range c {
		out[block] = bals.Copy()
	}
	return out
}

// SnapshotRecord is the persisted form of one snapshot. Balances are
// stored as a JSON object of checksummed address -> decimal string.
type SnapshotRecord struct {
	IntegrationID string          `gorm:"column:integration_id" json:"integration_id"`
	BlockNumber   int64           `gorm:"column:block_number" json:"block_number"`
	HolderCount   int             `gorm:"column:holder_count" json:"holder_count"`
	Balances      *datatypes.JSON `gorm:"column:balances" json:"balances"`
	UpdatedAt     string          `gorm:"column:updated_at" json:"updated_at"`
}

// TableName 指定 GORM 写入的表名为 snapshot
func (SnapshotRecord) TableName() string {
	return "snapshot"
}

func NewSnapshotRecord(integrationID string, block uint64, bals Balances) (SnapshotRecord, error) {
	encoded := make(map[string]string, len(bals))
	for addr, amount := range bals {
		encoded[addr.Hex()] = amount.String()
	}
	raw, err := sonic.Marshal(encoded)
	if err != nil {
		return SnapshotRecord{}, err
	}
	data := datatypes.JSON(raw)
	return SnapshotRecord{
		IntegrationID: integrationID,
		BlockNumber:   int64(block),
		HolderCount:   len(bals),
		Balances:      &data,
		UpdatedAt:     time.Now().Format("2006-01-02 15:04:05"),
	}, nil
}

// DecodeBalances rebuilds the in-memory snapshot from the stored JSON.
func (r SnapshotRecord) DecodeBalances() (Balances, error) {
	bals := make(Balances)
	if r.Balances == nil {
		return bals, nil
	}
	var encoded map[string]string
	if err := sonic.Unmarshal(*r.Balances, &encoded); err != nil {
		return nil, err
	}
	for addr, amount := range encoded {
		d, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, err
		}
		bals[common.HexToAddress(addr)] = d
	}
	return bals, nil
}

// SnapshotEvent is the message published to Kafka after a snapshot is
// computed.
type SnapshotEvent struct {
	IntegrationID string            `json:"integration_id"`
	BlockNumber   int64             `json:"block_number"`
	HolderCount   int               `json:"holder_count"`
	Balances      map[string]string `json:"balances"`
	EventTime     int64             `json:"event_time"`
}

func NewSnapshotEvent(record SnapshotRecord) SnapshotEvent {
	balances := make(map[string]string)
	if record.Balances != nil {
		_ = sonic.Unmarshal(*record.Balances, &balances)
	}
	return SnapshotEvent{
		IntegrationID: record.IntegrationID,
		BlockNumber:   record.BlockNumber,
		HolderCount:   record.HolderCount,
		Balances:      balances,
		EventTime:     time.Now().Unix(),
	}
}
