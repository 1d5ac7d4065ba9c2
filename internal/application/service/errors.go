package service

import "errors"

var (
	// ErrLedgerDisabled is returned for run lookups when no ledger is configured
	ErrLedgerDisabled = errors.New("run ledger is not enabled")

	// ErrArchiveDisabled is returned for report downloads when no archive is configured
	ErrArchiveDisabled = errors.New("report archive is not enabled")
)
