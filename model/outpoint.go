package model

import (
	"encoding/binary"
	"strconv"
	"strings"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/bsv-blockchain/utxodump/errors"
)

// KeySize is the length of an encoded outpoint: the txid followed by the output index.
const KeySize = chainhash.HashSize + 4

// Key identifies one transaction output. The layout is the 32-byte txid in internal
// byte order followed by the little-endian output index, so decoding never needs a
// delimiter.
type Key [KeySize]byte

func NewKey(txID *chainhash.Hash, index uint32) Key {
	var k Key

	copy(k[:chainhash.HashSize], txID[:])
	binary.LittleEndian.PutUint32(k[chainhash.HashSize:], index)

	return k
}

func NewKeyFromBytes(b []byte) (Key, error) {
	var k Key

	if len(b) != KeySize {
		return k, errors.NewInvalidArgumentError("outpoint key should be %d bytes long, got %d", KeySize, len(b))
	}

	copy(k[:], b)

	return k, nil
}

// NewKeyFromString parses the "<txid>:<index>" form produced by Key.String.
func NewKeyFromString(s string) (Key, error) {
	txIDStr, indexStr, found := strings.Cut(s, ":")
	if !found {
		return Key{}, errors.NewInvalidArgumentError("outpoint %q is missing the index separator", s)
	}

	txID, err := chainhash.NewHashFromStr(txIDStr)
	if err != nil || len(txIDStr) != 2*chainhash.HashSize {
		return Key{}, errors.NewInvalidArgumentError("outpoint %q has an invalid txid", s)
	}

	index, err := strconv.ParseUint(indexStr, 10, 32)
	if err != nil {
		return Key{}, errors.NewInvalidArgumentError("outpoint %q has an invalid index", s, err)
	}

	return NewKey(txID, uint32(index)), nil
}

func (k Key) Decode() (chainhash.Hash, uint32) {
	return k.TxID(), k.Index()
}

func (k Key) TxID() chainhash.Hash {
	var h chainhash.Hash

	copy(h[:], k[:chainhash.HashSize])

	return h
}

func (k Key) Index() uint32 {
	return binary.LittleEndian.Uint32(k[chainhash.HashSize:])
}

func (k Key) Bytes() []byte {
	return k[:]
}

func (k Key) String() string {
	txID := k.TxID()

	return txID.String() + ":" + strconv.FormatUint(uint64(k.Index()), 10)
}
