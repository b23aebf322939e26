package errors

import "strconv"

// ERR is the error code carried by every *Error.
type ERR int32

// nolint:revive,stylecheck
const (
	ERR_UNKNOWN                    ERR = 0
	ERR_INVALID_ARGUMENT           ERR = 1
	ERR_THRESHOLD_EXCEEDED         ERR = 2
	ERR_NOT_FOUND                  ERR = 3
	ERR_PROCESSING                 ERR = 4
	ERR_CONFIGURATION              ERR = 5
	ERR_CONTEXT                    ERR = 6
	ERR_CONTEXT_CANCELED           ERR = 7
	ERR_ERROR                      ERR = 9
	ERR_STATE                      ERR = 10
	ERR_BLOCK_NOT_FOUND            ERR = 20
	ERR_BLOCK_INVALID              ERR = 21
	ERR_BLOCK_ERROR                ERR = 22
	ERR_BLOCK_PARENT_NOT_FOUND     ERR = 23
	ERR_TX_INVALID                 ERR = 30
	ERR_TX_ERROR                   ERR = 31
	ERR_DATA_INTEGRITY             ERR = 40
	ERR_UTXO_COLLISION             ERR = 41
	ERR_EXPORT_INCOMPLETE          ERR = 42
	ERR_SERVICE_UNAVAILABLE        ERR = 50
	ERR_SERVICE_ERROR              ERR = 51
	ERR_STORAGE_UNAVAILABLE        ERR = 60
	ERR_STORAGE_NOT_STARTED        ERR = 61
	ERR_STORAGE_ERROR              ERR = 62
	ERR_STORAGE_PARTIAL_WRITE      ERR = 63
	ERR_NETWORK_ERROR              ERR = 70
	ERR_NETWORK_TIMEOUT            ERR = 71
	ERR_NETWORK_CONNECTION_REFUSED ERR = 72
)

var ERR_name = map[int32]string{
	0:  "UNKNOWN",
	1:  "INVALID_ARGUMENT",
	2:  "THRESHOLD_EXCEEDED",
	3:  "NOT_FOUND",
	4:  "PROCESSING",
	5:  "CONFIGURATION",
	6:  "CONTEXT",
	7:  "CONTEXT_CANCELED",
	9:  "ERROR",
	10: "STATE",
	20: "BLOCK_NOT_FOUND",
	21: "BLOCK_INVALID",
	22: "BLOCK_ERROR",
	23: "BLOCK_PARENT_NOT_FOUND",
	30: "TX_INVALID",
	31: "TX_ERROR",
	40: "DATA_INTEGRITY",
	41: "UTXO_COLLISION",
	42: "EXPORT_INCOMPLETE",
	50: "SERVICE_UNAVAILABLE",
	51: "SERVICE_ERROR",
	60: "STORAGE_UNAVAILABLE",
	61: "STORAGE_NOT_STARTED",
	62: "STORAGE_ERROR",
	63: "STORAGE_PARTIAL_WRITE",
	70: "NETWORK_ERROR",
	71: "NETWORK_TIMEOUT",
	72: "NETWORK_CONNECTION_REFUSED",
}

func (x ERR) String() string {
	if name, ok := ERR_name[int32(x)]; ok {
		return name
	}

	return strconv.Itoa(int(x))
}
