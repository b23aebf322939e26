package model

import (
	"strconv"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
)

// Record is one exported unspent output.
type Record struct {
	TxID     string `bson:"txid" json:"txid" csv:"txid"`
	IndexOut uint32 `bson:"indexOut" json:"indexOut" csv:"indexOut"`
	Height   uint32 `bson:"height" json:"height" csv:"height"`
	Value    uint64 `bson:"value" json:"value" csv:"value"`
	Address  string `bson:"address" json:"address" csv:"address"`
	Coinbase bool   `bson:"coinbase" json:"coinbase" csv:"coinbase"`
}

func NewRecord(key Key, height uint32, value uint64, address string, coinbase bool) *Record {
	txID := key.TxID()

	return &Record{
		TxID:     txID.String(),
		IndexOut: key.Index(),
		Height:   height,
		Value:    value,
		Address:  address,
		Coinbase: coinbase,
	}
}

// ID is the record identity used by stores that upsert, "<txid>:<index>".
func (r *Record) ID() string {
	return r.TxID + ":" + strconv.FormatUint(uint64(r.IndexOut), 10)
}

func (r *Record) Key() (Key, error) {
	txID, err := chainhash.NewHashFromStr(r.TxID)
	if err != nil {
		return Key{}, err
	}

	return NewKey(txID, r.IndexOut), nil
}
