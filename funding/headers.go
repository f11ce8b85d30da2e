package funding

import (
	"fmt"
	"net/http"
	"strconv"
)

// x402 HTTP header names.
const (
	HeaderPrice        = "X-Price"
	HeaderPricePerByte = "X-Price-Per-Byte"
	HeaderFileSize     = "X-File-Size"
	HeaderContentID    = "X-Content-Id"
	HeaderPayTo        = "X-Pay-To"
	HeaderInvoiceID    = "X-Invoice-Id"
	HeaderExpiry       = "X-Expiry"
)

// PaymentHeaders holds the x402 HTTP headers.
type PaymentHeaders struct {
	Price        uint64
	PricePerByte uint64
	FileSize     uint64
	ContentID    string
	PayTo        string
	InvoiceID    string
	Expiry       int64
}

// SetPaymentHeaders sets x402 headers on an HTTP response.
// It does not write the status code; callers follow with a 402 body.
func SetPaymentHeaders(w http.ResponseWriter, headers *PaymentHeaders) {
	h := w.Header()
	h.Set(HeaderPrice, strconv.FormatUint(headers.Price, 10))
	h.Set(HeaderPricePerByte, strconv.FormatUint(headers.PricePerByte, 10))
	h.Set(HeaderFileSize, strconv.FormatUint(headers.FileSize, 10))
	h.Set(HeaderContentID, headers.ContentID)
	h.Set(HeaderPayTo, headers.PayTo)
	h.Set(HeaderInvoiceID, headers.InvoiceID)
	h.Set(HeaderExpiry, strconv.FormatInt(headers.Expiry, 10))
}

// PaymentHeadersFromInvoice creates PaymentHeaders from an Invoice.
func PaymentHeadersFromInvoice(inv *Invoice) *PaymentHeaders {
	return &PaymentHeaders{
		Price:        inv.Price,
		PricePerByte: inv.PricePerByte,
		FileSize:     inv.FileSize,
		ContentID:    inv.ContentID,
		PayTo:        inv.PaymentAddr,
		InvoiceID:    inv.ID,
		Expiry:       inv.Expiry,
	}
}

// ParsePaymentHeaders extracts x402 headers from an HTTP response.
func ParsePaymentHeaders(resp *http.Response) (*PaymentHeaders, error) {
	var (
		out PaymentHeaders
		err error
	)
	if out.Price, err = uintHeader(resp, HeaderPrice); err != nil {
		return nil, err
	}
	if out.PricePerByte, err = uintHeader(resp, HeaderPricePerByte); err != nil {
		return nil, err
	}
	if out.FileSize, err = uintHeader(resp, HeaderFileSize); err != nil {
		return nil, err
	}
	if out.ContentID, err = stringHeader(resp, HeaderContentID); err != nil {
		return nil, err
	}
	if out.PayTo, err = stringHeader(resp, HeaderPayTo); err != nil {
		return nil, err
	}
	if out.InvoiceID, err = stringHeader(resp, HeaderInvoiceID); err != nil {
		return nil, err
	}

	expiryStr, err := stringHeader(resp, HeaderExpiry)
	if err != nil {
		return nil, err
	}
	if out.Expiry, err = strconv.ParseInt(expiryStr, 10, 64); err != nil {
		return nil, fmt.Errorf("%w: invalid %s value: %w", ErrMissingHeaders, HeaderExpiry, err)
	}
	return &out, nil
}

func stringHeader(resp *http.Response, name string) (string, error) {
	v := resp.Header.Get(name)
	if v == "" {
		return "", fmt.Errorf("%w: %s header missing", ErrMissingHeaders, name)
	}
	return v, nil
}

func uintHeader(resp *http.Response, name string) (uint64, error) {
	s, err := stringHeader(resp, name)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s value: %w", ErrMissingHeaders, name, err)
	}
	return v, nil
}
