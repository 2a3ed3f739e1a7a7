package events

import "time"

// OperationStart is emitted when the link accepts an operation for
// execution (after the ownership test passed).
type OperationStart struct {
	Query         string
	OperationName string
	OperationType string
}

// OperationFinish is emitted after a query or mutation produced its
// single result or failed.
type OperationFinish struct {
	Query         string
	OperationName string
	OperationType string
	Err           error
	Duration      time.Duration
}

// OperationRejected is emitted when an operation cannot be classified
// as a query, mutation or subscription. Execution does not proceed.
type OperationRejected struct {
	OperationType string
}
