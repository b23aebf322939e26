package errors

import (
	"encoding/json"
	"fmt"
)

// ErrDataI is an interface for error data that can be set, retrieved, and encoded.
type ErrDataI interface {
	EncodeErrorData() []byte
	Error() string
	GetData(key string) interface{}
	SetData(key string, value interface{})
}

// ErrData is a generic error data structure that implements the ErrDataI interface.
type ErrData map[string]interface{}

// Error returns a string representation of the error data.
func (e *ErrData) Error() string {
	return fmt.Sprintf(" %v", *e)
}

// SetData sets a key-value pair in the error data.
func (e *ErrData) SetData(key string, value interface{}) {
	if e == nil {
		return
	}

	(*e)[key] = value
}

// GetData retrieves the value associated with a key in the error data.
func (e *ErrData) GetData(key string) interface{} {
	if e == nil {
		return nil
	}

	return (*e)[key]
}

// EncodeErrorData encodes the error data to a byte slice using JSON encoding.
func (e *ErrData) EncodeErrorData() []byte {
	data, err := json.Marshal(e)
	if err != nil {
		return []byte{}
	}

	return data
}

// GetErrorData retrieves error data based on the error code and unmarshals it from a byte slice.
func GetErrorData(code ERR, dataBytes []byte) (ErrDataI, error) {
	var errData ErrDataI

	switch code {
	case ERR_UTXO_COLLISION:
		errData = &UtxoCollisionErrData{}
	case ERR_EXPORT_INCOMPLETE:
		errData = &ExportIncompleteErrData{}
	case ERR_STORAGE_PARTIAL_WRITE:
		errData = &PartialWriteErrData{}
	default:
		errData = &ErrData{}
	}

	if err := json.Unmarshal(dataBytes, errData); err != nil {
		return errData, err
	}

	return errData, nil
}

// UtxoCollisionErrData describes an insert over a live outpoint.
type UtxoCollisionErrData struct {
	Outpoint       string `json:"outpoint"`
	ExistingHeight uint32 `json:"existingHeight"`
	NewHeight      uint32 `json:"newHeight"`
}

func (e *UtxoCollisionErrData) Error() string {
	return fmt.Sprintf("outpoint %s created at height %d collides with output at height %d", e.Outpoint, e.ExistingHeight, e.NewHeight)
}

func (e *UtxoCollisionErrData) EncodeErrorData() []byte {
	data, err := json.Marshal(e)
	if err != nil {
		return []byte{}
	}

	return data
}

func (e *UtxoCollisionErrData) GetData(key string) interface{} {
	switch key {
	case "outpoint":
		return e.Outpoint
	case "existingHeight":
		return e.ExistingHeight
	case "newHeight":
		return e.NewHeight
	}

	return nil
}

func (e *UtxoCollisionErrData) SetData(_ string, _ interface{}) {}

// NewUtxoCollisionError returns an ERR_UTXO_COLLISION error for the given outpoint.
func NewUtxoCollisionError(outpoint string, existingHeight, newHeight uint32) error {
	data := &UtxoCollisionErrData{
		Outpoint:       outpoint,
		ExistingHeight: existingHeight,
		NewHeight:      newHeight,
	}

	return NewWithData(ERR_UTXO_COLLISION, "refusing to overwrite live utxo %s", data, outpoint)
}

// ExportIncompleteErrData lists the records that could not be persisted.
// FlushFailed is set when the sink could not persist what it had accepted, in
// which case Written counts records the sink accepted but may not have kept.
type ExportIncompleteErrData struct {
	Failed      uint64   `json:"failed"`
	Written     uint64   `json:"written"`
	Outpoints   []string `json:"outpoints"`
	Truncated   bool     `json:"truncated"`
	FlushFailed bool     `json:"flushFailed"`
	LastReason  string   `json:"lastReason"`
}

func (e *ExportIncompleteErrData) Error() string {
	s := fmt.Sprintf("%d record(s) failed, %d written, failed outpoints %v", e.Failed, e.Written, e.Outpoints)
	if e.Truncated {
		s += " (truncated)"
	}

	if e.FlushFailed {
		s += ", flush failed"
	}

	if e.LastReason != "" {
		s += ", last reason: " + e.LastReason
	}

	return s
}

func (e *ExportIncompleteErrData) EncodeErrorData() []byte {
	data, err := json.Marshal(e)
	if err != nil {
		return []byte{}
	}

	return data
}

func (e *ExportIncompleteErrData) GetData(key string) interface{} {
	switch key {
	case "failed":
		return e.Failed
	case "written":
		return e.Written
	case "outpoints":
		return e.Outpoints
	case "flushFailed":
		return e.FlushFailed
	}

	return nil
}

func (e *ExportIncompleteErrData) SetData(_ string, _ interface{}) {}

// NewExportIncompleteError returns an ERR_EXPORT_INCOMPLETE error carrying the failed
// outpoints. A non-nil cause is wrapped.
func NewExportIncompleteError(data *ExportIncompleteErrData, cause error) error {
	if data.FlushFailed {
		if cause != nil {
			return NewWithData(ERR_EXPORT_INCOMPLETE, "export incomplete: sink flush failed, %d record(s) failed before it", data, data.Failed, cause)
		}

		return NewWithData(ERR_EXPORT_INCOMPLETE, "export incomplete: sink flush failed, %d record(s) failed before it", data, data.Failed)
	}

	if cause != nil {
		return NewWithData(ERR_EXPORT_INCOMPLETE, "export incomplete: %d record(s) could not be persisted", data, data.Failed, cause)
	}

	return NewWithData(ERR_EXPORT_INCOMPLETE, "export incomplete: %d record(s) could not be persisted", data, data.Failed)
}

// PartialWriteErrData lists the IDs of the records a batch write did not persist.
// The other records of the batch were written.
type PartialWriteErrData struct {
	IDs []string `json:"ids"`
}

func (e *PartialWriteErrData) Error() string {
	return fmt.Sprintf("%d record(s) not written: %v", len(e.IDs), e.IDs)
}

func (e *PartialWriteErrData) EncodeErrorData() []byte {
	data, err := json.Marshal(e)
	if err != nil {
		return []byte{}
	}

	return data
}

func (e *PartialWriteErrData) GetData(key string) interface{} {
	if key == "ids" {
		return e.IDs
	}

	return nil
}

func (e *PartialWriteErrData) SetData(_ string, _ interface{}) {}

// NewPartialWriteError returns an ERR_STORAGE_PARTIAL_WRITE error naming the records
// of a batch that were not written.
func NewPartialWriteError(ids []string, batchLen int, cause error) error {
	data := &PartialWriteErrData{IDs: ids}

	if cause != nil {
		return NewWithData(ERR_STORAGE_PARTIAL_WRITE, "%d of %d record(s) not written", data, len(ids), batchLen, cause)
	}

	return NewWithData(ERR_STORAGE_PARTIAL_WRITE, "%d of %d record(s) not written", data, len(ids), batchLen)
}
