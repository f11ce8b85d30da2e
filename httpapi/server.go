// Package httpapi is the HTTP surface of filepay. Callers identify
// themselves with the X-Principal header, which an upstream gateway has
// already authenticated; retrieval is gated by bearer capability tokens.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	logging "github.com/ipfs/go-log/v2"
	"github.com/julienschmidt/httprouter"

	"github.com/bitfsorg/filepay-go/service"
)

var log = logging.Logger("filepay/httpapi")

// Header names.
const (
	HeaderPrincipal = "X-Principal"
	HeaderRequestID = "X-Request-Id"
)

// maxUploadSize bounds PUT /v1/files/:id/content bodies.
var maxUploadSize int64 = 1 << 30

// Server routes HTTP requests to a service.Service.
type Server struct {
	svc     *service.Service
	router  *httprouter.Router
	metrics http.Handler
}

// New builds the router. metrics, when non-nil, is served at /metrics.
func New(svc *service.Service, metrics http.Handler) *Server {
	s := &Server{svc: svc, router: httprouter.New(), metrics: metrics}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router

	r.POST("/v1/authorize", s.handleAuthorize)
	r.GET("/v1/content/:cid", s.handleRetrieve)

	r.POST("/v1/files", s.handleRegister)
	r.GET("/v1/files/:id", s.handleGetFile)
	r.GET("/v1/files/:id/escrow", s.handleGetEscrow)
	r.GET("/v1/files/:id/payment-status", s.handlePaymentStatus)
	r.POST("/v1/files/:id/deposit", s.handleDeposit)
	r.PUT("/v1/files/:id/content", s.handleStoreContent)
	r.POST("/v1/files/:id/confirm", s.handleConfirm)
	r.POST("/v1/files/:id/release", s.handleRelease)
	r.POST("/v1/files/:id/refund", s.handleRefund)
	r.GET("/v1/by-cid/:cid", s.handleGetByCID)
	r.GET("/v1/uploaders/:uploader/files", s.handleListByUploader)

	r.POST("/v1/escrows/:id/emergency-refund", s.handleEmergencyRefund)
	r.GET("/v1/escrow/totals", s.handleTotals)

	r.GET("/v1/price", s.handlePrice)
	r.PUT("/v1/rate", s.handleSetRate)

	r.POST("/v1/accounts/:account/fund", s.handleFund)
	r.GET("/v1/accounts/:account/balance", s.handleBalance)

	if s.metrics != nil {
		r.Handler(http.MethodGet, "/metrics", s.metrics)
	}
}

// ServeHTTP stamps a request id and dispatches to the router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := r.Header.Get(HeaderRequestID)
	if _, err := uuid.Parse(id); err != nil {
		id = uuid.NewString()
	}
	w.Header().Set(HeaderRequestID, id)

	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	s.router.ServeHTTP(rec, r)
	log.Debugw("request",
		"id", id, "method", r.Method, "path", r.URL.Path,
		"status", rec.status, "took", time.Since(start))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		log.Warnw("request failed", "status", status, "err", err)
	}
	writeJSON(w, status, errorBody{Error: err.Error(), Status: status})
}

var errBadRequest = errors.New("httpapi: bad request")

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: errBadRequest.Error() + ": " + msg, Status: http.StatusBadRequest})
}

func principal(r *http.Request) string {
	return r.Header.Get(HeaderPrincipal)
}

func uintParam(ps httprouter.Params, name string) (uint64, bool) {
	n, err := strconv.ParseUint(ps.ByName(name), 10, 64)
	return n, err == nil
}
