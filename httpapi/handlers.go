package httpapi

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"

	"github.com/bitfsorg/filepay-go/capability"
	"github.com/bitfsorg/filepay-go/funding"
	"github.com/bitfsorg/filepay-go/service"
)

type authorizeRequest struct {
	ContentID string `json:"contentId"`
	Principal string `json:"principal"`
}

type authorizeResponse struct {
	Token            string `json:"token"`
	ExpiresInSeconds int64  `json:"expiresInSeconds"`
}

func (s *Server) handleAuthorize(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req authorizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if req.Principal == "" {
		req.Principal = principal(r)
	}

	issued, inv, err := s.svc.Authorize(r.Context(), req.Principal, req.ContentID)
	if err != nil {
		if errors.Is(err, service.ErrPaymentRequired) && inv != nil {
			funding.SetPaymentHeaders(w, funding.PaymentHeadersFromInvoice(inv))
			writeJSON(w, http.StatusPaymentRequired, inv)
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, authorizeResponse{Token: issued.Token, ExpiresInSeconds: issued.ExpiresIn()})
}

func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	token, err := capability.ExtractBearerToken(r.Header.Get("Authorization"))
	if err != nil {
		w.Header().Set("WWW-Authenticate", `Bearer realm="filepay"`)
		writeError(w, err)
		return
	}
	cid := ps.ByName("cid")
	data, err := s.svc.Retrieve(r.Context(), token, cid)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("ETag", `"`+cid+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

type registerRequest struct {
	ContentID string            `json:"contentId"`
	Size      uint64            `json:"size"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	rec, err := s.svc.Register(principal(r), req.ContentID, req.Size, req.Metadata)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Location", "/v1/files/"+strconv.FormatUint(rec.ID, 10))
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleGetFile(w http.ResponseWriter, _ *http.Request, ps httprouter.Params) {
	id, ok := uintParam(ps, "id")
	if !ok {
		badRequest(w, "file id must be a number")
		return
	}
	rec, err := s.svc.Files.GetFile(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleGetByCID(w http.ResponseWriter, _ *http.Request, ps httprouter.Params) {
	rec, err := s.svc.Files.GetByContentID(ps.ByName("cid"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleListByUploader(w http.ResponseWriter, _ *http.Request, ps httprouter.Params) {
	recs, err := s.svc.Files.ListByUploader(ps.ByName("uploader"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

type amountRequest struct {
	Amount uint64 `json:"amount"`
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, ok := uintParam(ps, "id")
	if !ok {
		badRequest(w, "file id must be a number")
		return
	}
	var req amountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	rec, err := s.svc.Deposit(principal(r), id, req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleStoreContent(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, ok := uintParam(ps, "id")
	if !ok {
		badRequest(w, "file id must be a number")
		return
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUploadSize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{
				Error:  fmt.Sprintf("httpapi: upload exceeds %d bytes", tooLarge.Limit),
				Status: http.StatusRequestEntityTooLarge,
			})
			return
		}
		badRequest(w, "read body: "+err.Error())
		return
	}
	rec, err := s.svc.StoreContent(r.Context(), principal(r), id, data)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, ok := uintParam(ps, "id")
	if !ok {
		badRequest(w, "file id must be a number")
		return
	}
	rec, err := s.svc.Confirm(principal(r), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleRelease(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, ok := uintParam(ps, "id")
	if !ok {
		badRequest(w, "file id must be a number")
		return
	}
	rec, err := s.svc.Release(principal(r), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleRefund(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, ok := uintParam(ps, "id")
	if !ok {
		badRequest(w, "file id must be a number")
		return
	}
	rec, err := s.svc.Refund(principal(r), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleEmergencyRefund(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, ok := uintParam(ps, "id")
	if !ok {
		badRequest(w, "escrow id must be a number")
		return
	}
	rec, err := s.svc.EmergencyRefund(principal(r), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleGetEscrow(w http.ResponseWriter, _ *http.Request, ps httprouter.Params) {
	id, ok := uintParam(ps, "id")
	if !ok {
		badRequest(w, "file id must be a number")
		return
	}
	rec, err := s.svc.Escrow.GetEscrowByFile(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handlePaymentStatus(w http.ResponseWriter, _ *http.Request, ps httprouter.Params) {
	id, ok := uintParam(ps, "id")
	if !ok {
		badRequest(w, "file id must be a number")
		return
	}
	st, err := s.svc.Escrow.GetFilePaymentStatus(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

type totalsResponse struct {
	Escrowed uint64 `json:"escrowed"`
	Released uint64 `json:"released"`
	Refunded uint64 `json:"refunded"`
	Locked   uint64 `json:"locked"`
}

func (s *Server) handleTotals(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	t, err := s.svc.Escrow.Totals()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, totalsResponse{
		Escrowed: t.Escrowed,
		Released: t.Released,
		Refunded: t.Refunded,
		Locked:   t.Locked(),
	})
}

type priceResponse struct {
	Size        uint64 `json:"size"`
	RatePerByte uint64 `json:"ratePerByte"`
	Price       uint64 `json:"price"`
}

func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	size, err := strconv.ParseUint(r.URL.Query().Get("size"), 10, 64)
	if err != nil {
		badRequest(w, "size must be a number")
		return
	}
	rate, err := s.svc.Files.Rate()
	if err != nil {
		writeError(w, err)
		return
	}
	price, err := s.svc.Quote(size)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, priceResponse{Size: size, RatePerByte: rate, Price: price})
}

type rateRequest struct {
	RatePerByte uint64 `json:"ratePerByte"`
}

func (s *Server) handleSetRate(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req rateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if err := s.svc.SetRate(principal(r), req.RatePerByte); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

type fundRequest struct {
	RawTx string `json:"rawTx"` // hex
}

func (s *Server) handleFund(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req fundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	raw, err := hex.DecodeString(req.RawTx)
	if err != nil {
		badRequest(w, "rawTx must be hex")
		return
	}
	receipt, err := s.svc.Fund(r.Context(), ps.ByName("account"), &funding.Proof{RawTx: raw})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

type balanceResponse struct {
	Account string `json:"account"`
	Balance uint64 `json:"balance"`
}

func (s *Server) handleBalance(w http.ResponseWriter, _ *http.Request, ps httprouter.Params) {
	account := ps.ByName("account")
	bal, err := s.svc.Balance(account)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{Account: account, Balance: bal})
}
