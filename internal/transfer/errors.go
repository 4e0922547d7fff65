package transfer

import (
	"errors"
	"fmt"
)

var (
	ErrConnectionFailed       = errors.New("connection failed")
	ErrChannelNotOpen         = errors.New("channel not open")
	ErrTransferCancelled      = errors.New("transfer cancelled")
	ErrDestinationUnavailable = errors.New("destination unavailable")
	ErrStreamingUnsupported   = errors.New("streaming destination unsupported")
	ErrWriteFailure           = errors.New("destination write failed")
	ErrSlotBusy               = errors.New("receive slot busy, retry later")
	ErrSenderAborted          = errors.New("sender stopped the stream")
	ErrUnknownTransfer        = errors.New("unknown transfer")
	ErrInvalidOffset          = errors.New("invalid offset")
	ErrInvalidState           = errors.New("invalid state for operation")
	ErrInvalidOptions         = errors.New("invalid transfer options")
	ErrInvalidFile            = errors.New("invalid file")
)

type TransferError struct {
	Op      string
	File    string
	Err     error
	Details string
}

func (e *TransferError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.File, e.Err)
	}
	if e.Details != "" {
		return fmt.Sprintf("%s: %v (%s)", e.Op, e.Err, e.Details)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

func NewError(op string, err error) *TransferError {
	return &TransferError{Op: op, Err: err}
}

func NewFileError(op, file string, err error) *TransferError {
	return &TransferError{Op: op, File: file, Err: err}
}

func WrapError(op string, err error, details string) *TransferError {
	return &TransferError{Op: op, Err: err, Details: details}
}
