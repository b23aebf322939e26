package replay

import (
	"context"

	"github.com/bsv-blockchain/utxodump/model"
)

// Handler is called by the driver: OnStart once, OnBlock once per block in ascending
// height order, then OnComplete once after the last block.
type Handler interface {
	OnStart(ctx context.Context, height uint32) error
	OnBlock(ctx context.Context, block *model.Block) error
	OnComplete(ctx context.Context, height uint32) error
}
