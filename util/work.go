package util

import (
	"encoding/binary"
	"math/big"
)

// CalculateWork returns prevWork plus the work of a block with the given difficulty
// bits, as they appear in the block header.
func CalculateWork(prevWork *big.Int, nBits [4]byte) *big.Int {
	work := new(big.Int)

	target := CalculateTarget(nBits)
	if target.Sign() > 0 {
		// Work done is proportional to 1/difficulty
		work.Div(new(big.Int).Lsh(big.NewInt(1), 256), target)
	}

	if prevWork != nil {
		work.Add(work, prevWork)
	}

	return work
}

// CalculateTarget expands the compact difficulty bits of a header. A negative target
// is returned as zero.
func CalculateTarget(nBits [4]byte) *big.Int {
	nb := binary.LittleEndian.Uint32(nBits[:])

	exponent := nb >> 24
	mantissa := nb & 0x007FFFFF

	if nb&0x00800000 != 0 {
		return new(big.Int)
	}

	if exponent <= 3 {
		mantissa >>= 8 * (3 - exponent)
		return big.NewInt(int64(mantissa))
	}

	target := big.NewInt(int64(mantissa))
	target.Lsh(target, uint(8*(exponent-3)))

	return target
}
