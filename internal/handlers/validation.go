package handlers

import (
	"fmt"
	"time"
)

const (
	// MaxBatchSize is the maximum number of predictions allowed in a batch request.
	MaxBatchSize = 100

	// batchConcurrency bounds how many predictions in a batch run concurrently.
	batchConcurrency = 8

	// DateFormat is the expected date format for inline feature requests.
	DateFormat = "2006-01-02"
)

// ValidationError represents a validation error with a code for structured responses.
type ValidationError struct {
	Message string
	Code    string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// ValidateTxnID checks that a txn_id is positive.
func ValidateTxnID(txnID int64) *ValidationError {
	if txnID <= 0 {
		return &ValidationError{
			Message: "txn_id must be positive",
			Code:    CodeInvalidTxnID,
		}
	}
	return nil
}

// ValidateInlineFeatures checks that an inline feature payload carries enough
// to build a FeatureRow: a non-empty merchant or description, and a date in
// DateFormat if one is given.
func ValidateInlineFeatures(f *InlineFeatures) *ValidationError {
	if f.Merchant == "" && f.Description == "" {
		return &ValidationError{
			Message: "features.merchant or features.description is required",
			Code:    CodeMissingInput,
		}
	}
	if f.Date != "" {
		if _, err := time.Parse(DateFormat, f.Date); err != nil {
			return &ValidationError{
				Message: fmt.Sprintf("features.date must be in %s format", DateFormat),
				Code:    CodeMissingInput,
			}
		}
	}
	return nil
}

// ValidateBatchSize checks if the batch size is within the allowed limit.
func ValidateBatchSize(size int) *ValidationError {
	if size == 0 {
		return &ValidationError{
			Message: "items array is empty",
			Code:    "EMPTY_BATCH",
		}
	}
	if size > MaxBatchSize {
		return &ValidationError{
			Message: fmt.Sprintf("batch size exceeds maximum of %d", MaxBatchSize),
			Code:    CodeBatchTooLarge,
		}
	}
	return nil
}
