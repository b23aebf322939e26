package errors

var (
	ErrUnknown             = New(ERR_UNKNOWN, "unknown error")
	ErrInvalidArgument     = New(ERR_INVALID_ARGUMENT, "invalid argument")
	ErrThresholdExceeded   = New(ERR_THRESHOLD_EXCEEDED, "threshold exceeded")
	ErrNotFound            = New(ERR_NOT_FOUND, "not found")
	ErrProcessing          = New(ERR_PROCESSING, "error processing")
	ErrConfiguration       = New(ERR_CONFIGURATION, "configuration error")
	ErrContext             = New(ERR_CONTEXT, "context error")
	ErrContextCanceled     = New(ERR_CONTEXT_CANCELED, "context canceled")
	ErrError               = New(ERR_ERROR, "generic error")
	ErrState               = New(ERR_STATE, "invalid state transition")
	ErrBlockNotFound       = New(ERR_BLOCK_NOT_FOUND, "block not found")
	ErrBlockInvalid        = New(ERR_BLOCK_INVALID, "block invalid")
	ErrBlockError          = New(ERR_BLOCK_ERROR, "block error")
	ErrBlockParentNotFound = New(ERR_BLOCK_PARENT_NOT_FOUND, "block parent not found")
	ErrTxInvalid           = New(ERR_TX_INVALID, "tx invalid")
	ErrTxError             = New(ERR_TX_ERROR, "tx error")
	ErrDataIntegrity       = New(ERR_DATA_INTEGRITY, "data integrity violation")
	ErrUtxoCollision       = New(ERR_UTXO_COLLISION, "utxo key collision")
	ErrExportIncomplete    = New(ERR_EXPORT_INCOMPLETE, "export incomplete")
	ErrServiceUnavailable  = New(ERR_SERVICE_UNAVAILABLE, "service unavailable")
	ErrServiceError        = New(ERR_SERVICE_ERROR, "service error")
	ErrStorageUnavailable  = New(ERR_STORAGE_UNAVAILABLE, "storage unavailable")
	ErrStorageNotStarted   = New(ERR_STORAGE_NOT_STARTED, "storage not started")
	ErrStorageError        = New(ERR_STORAGE_ERROR, "storage error")
	ErrStoragePartialWrite = New(ERR_STORAGE_PARTIAL_WRITE, "storage partial write")
	ErrNetworkError        = New(ERR_NETWORK_ERROR, "network error")
	ErrNetworkTimeout      = New(ERR_NETWORK_TIMEOUT, "network timeout")
	ErrNetworkConnRefused  = New(ERR_NETWORK_CONNECTION_REFUSED, "network connection refused")
)

// errors initialization functions

func NewInvalidArgumentError(message string, params ...interface{}) error {
	return New(ERR_INVALID_ARGUMENT, message, params...)
}
func NewNotFoundError(message string, params ...interface{}) error {
	return New(ERR_NOT_FOUND, message, params...)
}
func NewProcessingError(message string, params ...interface{}) error {
	return New(ERR_PROCESSING, message, params...)
}
func NewConfigurationError(message string, params ...interface{}) error {
	return New(ERR_CONFIGURATION, message, params...)
}
func NewContextCanceledError(message string, params ...interface{}) error {
	return New(ERR_CONTEXT_CANCELED, message, params...)
}
func NewError(message string, params ...interface{}) error {
	return New(ERR_ERROR, message, params...)
}
func NewStateError(message string, params ...interface{}) error {
	return New(ERR_STATE, message, params...)
}
func NewBlockNotFoundError(message string, params ...interface{}) error {
	return New(ERR_BLOCK_NOT_FOUND, message, params...)
}
func NewBlockInvalidError(message string, params ...interface{}) error {
	return New(ERR_BLOCK_INVALID, message, params...)
}
func NewBlockParentNotFoundError(message string, params ...interface{}) error {
	return New(ERR_BLOCK_PARENT_NOT_FOUND, message, params...)
}
func NewDataIntegrityError(message string, params ...interface{}) error {
	return New(ERR_DATA_INTEGRITY, message, params...)
}
func NewStorageUnavailableError(message string, params ...interface{}) error {
	return New(ERR_STORAGE_UNAVAILABLE, message, params...)
}
func NewStorageNotStartedError(message string, params ...interface{}) error {
	return New(ERR_STORAGE_NOT_STARTED, message, params...)
}
func NewStorageError(message string, params ...interface{}) error {
	return New(ERR_STORAGE_ERROR, message, params...)
}
