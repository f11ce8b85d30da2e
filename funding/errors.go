package funding

import "errors"

var (
	// ErrInvalidParams indicates one or more parameters are invalid.
	ErrInvalidParams = errors.New("funding: invalid parameters")

	// ErrInvalidTx indicates the raw transaction cannot be deserialized.
	ErrInvalidTx = errors.New("funding: invalid transaction")

	// ErrNoMatchingOutput indicates no output pays the funding address.
	ErrNoMatchingOutput = errors.New("funding: no matching output found")

	// ErrInsufficientPayment indicates the outputs to the funding address sum below the minimum.
	ErrInsufficientPayment = errors.New("funding: insufficient payment amount")

	// ErrReplayed indicates the funding transaction was already credited.
	ErrReplayed = errors.New("funding: transaction already credited")

	// ErrNoNode indicates a book was created without a node to confirm funding transactions.
	ErrNoNode = errors.New("funding: no node configured to confirm funding transactions")

	// ErrUnconfirmed indicates the node has not accepted the funding transaction.
	ErrUnconfirmed = errors.New("funding: transaction not accepted by the network")

	// ErrInvoiceExpired indicates the invoice has passed its expiry time.
	ErrInvoiceExpired = errors.New("funding: invoice expired")

	// ErrMissingHeaders indicates required x402 payment headers are missing.
	ErrMissingHeaders = errors.New("funding: missing payment headers")
)
