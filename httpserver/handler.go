// Package httpserver exposes the trade-finance API over HTTP. Every business
// operation is gated by a role proof or session token resolved through the
// role-proof service; handlers translate taxonomy errors to status codes.
package httpserver

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tradelane/trade-finance-backend/interfaces"
	"github.com/tradelane/trade-finance-backend/metrics"
	"github.com/tradelane/trade-finance-backend/roleproof"
	"github.com/tradelane/trade-finance-backend/shipment"
)

// Header constants used in HTTP requests.
const (
	// RoleProofHeader carries the base64-encoded JSON role proof.
	RoleProofHeader = "X-Role-Proof"

	// CallerIDHeader carries the caller's platform-native identity.
	CallerIDHeader = "X-Caller-Id"

	// SessionTokenHeader carries a token from a prior authenticate call.
	SessionTokenHeader = "X-Session-Token"

	// maxBodySize is the maximum allowed request body size (10MB), sized for
	// document content uploads.
	maxBodySize = 10 * 1024 * 1024
)

// RequestError provides structured error information for HTTP responses.
type RequestError struct {
	// StatusCode is the HTTP status code to return.
	StatusCode int

	// Err is the underlying error.
	Err error
}

// Error returns the error message from the underlying error.
func (e *RequestError) Error() string {
	return e.Err.Error()
}

// statusFromError maps taxonomy sentinel errors to HTTP status codes.
func statusFromError(err error) int {
	switch {
	case errors.Is(err, interfaces.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, interfaces.ErrAuthorization):
		return http.StatusUnauthorized
	case errors.Is(err, interfaces.ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, interfaces.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, interfaces.ErrStateConflict):
		return http.StatusConflict
	case errors.Is(err, interfaces.ErrUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Handler processes HTTP requests for the trade-finance service.
type Handler struct {
	auth      *roleproof.Service
	shipments *shipment.Service
	storage   interfaces.StorageBackend
	metrics   *metrics.MetricsServer
	log       *slog.Logger
}

// NewHandler creates an HTTP request handler. storage may be nil when no
// document-content backend is configured; content upload and download then
// respond with 503.
func NewHandler(auth *roleproof.Service, shipments *shipment.Service, storage interfaces.StorageBackend, log *slog.Logger) *Handler {
	return &Handler{
		auth:      auth,
		shipments: shipments,
		storage:   storage,
		log:       log,
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var reqErr *RequestError
	status := statusFromError(err)
	if errors.As(err, &reqErr) {
		status = reqErr.StatusCode
	}
	http.Error(w, err.Error(), status)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("failed to encode response", "err", err)
	}
}

func decodeBody(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return &RequestError{StatusCode: http.StatusBadRequest, Err: fmt.Errorf("failed to read request body: %w", err)}
	}
	if err := json.Unmarshal(body, v); err != nil {
		return &RequestError{StatusCode: http.StatusBadRequest, Err: fmt.Errorf("invalid request body: %w", err)}
	}
	return nil
}

// credentials extracts the caller ID, role proof and session token headers.
func credentials(r *http.Request) (callerID string, proof *interfaces.RoleProof, sessionToken string, err error) {
	callerID = r.Header.Get(CallerIDHeader)
	sessionToken = r.Header.Get(SessionTokenHeader)

	if encoded := r.Header.Get(RoleProofHeader); encoded != "" {
		raw, decodeErr := base64.StdEncoding.DecodeString(encoded)
		if decodeErr != nil {
			return "", nil, "", &RequestError{StatusCode: http.StatusBadRequest, Err: fmt.Errorf("invalid role proof encoding: %w", decodeErr)}
		}
		proof = new(interfaces.RoleProof)
		if jsonErr := json.Unmarshal(raw, proof); jsonErr != nil {
			return "", nil, "", &RequestError{StatusCode: http.StatusBadRequest, Err: fmt.Errorf("invalid role proof format: %w", jsonErr)}
		}
	}
	return callerID, proof, sessionToken, nil
}

// authorize resolves the verified caller identity for a gated operation.
func (h *Handler) authorize(r *http.Request, minimumRole interfaces.Role) (interfaces.CallerIdentity, error) {
	callerID, proof, sessionToken, err := credentials(r)
	if err != nil {
		return interfaces.CallerIdentity{}, err
	}
	return h.auth.Authorize(r.Context(), callerID, proof, sessionToken, minimumRole)
}

// HandleAuthenticate validates a full role proof and issues a session token.
//
// URL format: POST /api/auth
// Required headers: X-Role-Proof, X-Caller-Id
func (h *Handler) HandleAuthenticate(w http.ResponseWriter, r *http.Request) {
	callerID, proof, _, err := credentials(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if proof == nil {
		h.writeError(w, &RequestError{StatusCode: http.StatusBadRequest, Err: fmt.Errorf("%w: missing role proof header", interfaces.ErrValidation)})
		return
	}

	identity, token, err := h.auth.Authenticate(r.Context(), callerID, proof)
	if err != nil {
		h.log.Warn("authentication failed", "caller", callerID, "err", err)
		if h.metrics != nil {
			h.metrics.AuthAttempts.WithLabelValues("rejected").Inc()
		}
		h.writeError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.AuthAttempts.WithLabelValues("accepted").Inc()
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"identity":     identity,
		"sessionToken": token,
	})
}

// HandleListShipments returns every shipment the caller's company is a party
// of.
//
// URL format: GET /api/shipments
func (h *Handler) HandleListShipments(w http.ResponseWriter, r *http.Request) {
	identity, err := h.authorize(r, interfaces.RoleViewer)
	if err != nil {
		h.writeError(w, err)
		return
	}

	shipments := h.shipments.Shipments(identity)
	if shipments == nil {
		shipments = []*interfaces.Shipment{}
	}
	h.writeJSON(w, http.StatusOK, shipments)
}

type createShipmentRequest struct {
	Supplier               interfaces.Address `json:"supplier"`
	Commissioner           interfaces.Address `json:"commissioner"`
	EscrowAddress          interfaces.Address `json:"escrowAddress"`
	SampleApprovalRequired bool               `json:"sampleApprovalRequired"`
}

// HandleCreateShipment registers a new shipment.
//
// URL format: POST /api/shipments
func (h *Handler) HandleCreateShipment(w http.ResponseWriter, r *http.Request) {
	identity, err := h.authorize(r, interfaces.RoleEditor)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var req createShipmentRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	sh, err := h.shipments.Create(req.Supplier, req.Commissioner, req.EscrowAddress, req.SampleApprovalRequired, identity)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.ShipmentsCreated.Inc()
	}
	h.writeJSON(w, http.StatusCreated, sh)
}

// HandleGetShipment returns a single shipment.
//
// URL format: GET /api/shipments/{id}
func (h *Handler) HandleGetShipment(w http.ResponseWriter, r *http.Request) {
	identity, err := h.authorize(r, interfaces.RoleViewer)
	if err != nil {
		h.writeError(w, err)
		return
	}

	sh, err := h.shipments.Shipment(chi.URLParam(r, "id"), identity)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, sh)
}

// HandleGetPhase returns the shipment's derived phase.
//
// URL format: GET /api/shipments/{id}/phase
func (h *Handler) HandleGetPhase(w http.ResponseWriter, r *http.Request) {
	identity, err := h.authorize(r, interfaces.RoleViewer)
	if err != nil {
		h.writeError(w, err)
		return
	}

	phase, err := h.shipments.Phase(chi.URLParam(r, "id"), identity)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"phase": phase})
}

// HandleGetDocuments returns the shipment's full document index.
//
// URL format: GET /api/shipments/{id}/documents
func (h *Handler) HandleGetDocuments(w http.ResponseWriter, r *http.Request) {
	identity, err := h.authorize(r, interfaces.RoleViewer)
	if err != nil {
		h.writeError(w, err)
		return
	}

	docs, err := h.shipments.Documents(chi.URLParam(r, "id"), identity)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, docs)
}

// HandleGetDocumentsByType returns the records of one document type.
//
// URL format: GET /api/shipments/{id}/documents/type/{document_type}
func (h *Handler) HandleGetDocumentsByType(w http.ResponseWriter, r *http.Request) {
	identity, err := h.authorize(r, interfaces.RoleViewer)
	if err != nil {
		h.writeError(w, err)
		return
	}

	docType, err := interfaces.ParseDocumentType(chi.URLParam(r, "document_type"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	docs, err := h.shipments.DocumentsByType(chi.URLParam(r, "id"), docType, identity)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if docs == nil {
		docs = []interfaces.DocumentInfo{}
	}
	h.writeJSON(w, http.StatusOK, docs)
}

// HandleSetDetails sets the numeric shipment fields.
//
// URL format: PUT /api/shipments/{id}/details
func (h *Handler) HandleSetDetails(w http.ResponseWriter, r *http.Request) {
	identity, err := h.authorize(r, interfaces.RoleEditor)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var details interfaces.ShipmentDetails
	if err := decodeBody(r, &details); err != nil {
		h.writeError(w, err)
		return
	}

	if err := h.shipments.SetDetails(chi.URLParam(r, "id"), details, identity); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type evaluationRequest struct {
	Status string `json:"status"`
}

// HandleEvaluate records a sample, details or quality evaluation decision.
//
// URL format: POST /api/shipments/{id}/evaluations/{subject}
// Subjects: sample, details, quality
func (h *Handler) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	identity, err := h.authorize(r, interfaces.RoleEditor)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var req evaluationRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	status, err := interfaces.ParseEvaluationStatus(req.Status)
	if err != nil {
		h.writeError(w, err)
		return
	}

	id := chi.URLParam(r, "id")
	subject := chi.URLParam(r, "subject")
	switch subject {
	case "sample":
		err = h.shipments.EvaluateSample(id, status, identity)
	case "details":
		err = h.shipments.EvaluateDetails(id, status, identity)
	case "quality":
		err = h.shipments.EvaluateQuality(id, status, identity)
	default:
		err = fmt.Errorf("%w: unknown evaluation subject %q", interfaces.ErrValidation, subject)
	}
	if err != nil {
		h.writeError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.Evaluations.WithLabelValues(subject).Inc()
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type depositRequest struct {
	Amount string `json:"amount"`
}

// HandleFunds runs an escrow operation against the shipment's ledger.
//
// URL format: POST /api/shipments/{id}/funds/{action}
// Actions: deposit (body: {"amount": "<decimal>"}), lock, unlock
func (h *Handler) HandleFunds(w http.ResponseWriter, r *http.Request) {
	identity, err := h.authorize(r, interfaces.RoleEditor)
	if err != nil {
		h.writeError(w, err)
		return
	}

	id := chi.URLParam(r, "id")
	action := chi.URLParam(r, "action")
	switch action {
	case "deposit":
		var req depositRequest
		if err := decodeBody(r, &req); err != nil {
			h.writeError(w, err)
			return
		}
		amount, ok := new(big.Int).SetString(req.Amount, 10)
		if !ok {
			h.writeError(w, fmt.Errorf("%w: invalid deposit amount %q", interfaces.ErrValidation, req.Amount))
			return
		}
		err = h.shipments.DepositFunds(r.Context(), id, amount, identity)
	case "lock":
		err = h.shipments.LockFunds(r.Context(), id, identity)
	case "unlock":
		err = h.shipments.UnlockFunds(r.Context(), id, identity)
	default:
		err = fmt.Errorf("%w: unknown funds action %q", interfaces.ErrValidation, action)
	}
	if err != nil {
		h.writeError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.EscrowOperations.WithLabelValues(action).Inc()
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type addDocumentRequest struct {
	DocumentType string `json:"documentType"`
	ExternalURL  string `json:"externalUrl"`

	// Content optionally carries raw document bytes, base64-encoded. When
	// present the content is stored in the configured backend and its
	// content address becomes the external URL.
	Content []byte `json:"content,omitempty"`
}

// storeContent persists raw document bytes and returns the content URL.
func (h *Handler) storeContent(r *http.Request, content []byte) (string, error) {
	if h.storage == nil {
		return "", &RequestError{StatusCode: http.StatusServiceUnavailable, Err: fmt.Errorf("no document-content storage configured")}
	}
	contentHash, err := h.storage.Store(r.Context(), content)
	if err != nil {
		return "", err
	}
	return "content://" + contentHash.String(), nil
}

// HandleAddDocument uploads a document record, optionally with raw content.
//
// URL format: POST /api/shipments/{id}/documents
func (h *Handler) HandleAddDocument(w http.ResponseWriter, r *http.Request) {
	identity, err := h.authorize(r, interfaces.RoleEditor)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var req addDocumentRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	docType, err := interfaces.ParseDocumentType(req.DocumentType)
	if err != nil {
		h.writeError(w, err)
		return
	}

	externalURL := req.ExternalURL
	if len(req.Content) > 0 {
		externalURL, err = h.storeContent(r, req.Content)
		if err != nil {
			h.writeError(w, err)
			return
		}
	}

	doc, err := h.shipments.AddDocument(chi.URLParam(r, "id"), docType, externalURL, identity)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.DocumentUploads.Inc()
	}
	h.writeJSON(w, http.StatusCreated, doc)
}

type updateDocumentRequest struct {
	ExternalURL string `json:"externalUrl"`
	Content     []byte `json:"content,omitempty"`
}

// HandleUpdateDocument replaces the content of a not yet approved document.
//
// URL format: PUT /api/shipments/{id}/documents/{document_id}
func (h *Handler) HandleUpdateDocument(w http.ResponseWriter, r *http.Request) {
	identity, err := h.authorize(r, interfaces.RoleEditor)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var req updateDocumentRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	externalURL := req.ExternalURL
	if len(req.Content) > 0 {
		externalURL, err = h.storeContent(r, req.Content)
		if err != nil {
			h.writeError(w, err)
			return
		}
	}

	doc, err := h.shipments.UpdateDocument(chi.URLParam(r, "id"), chi.URLParam(r, "document_id"), externalURL, identity)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.DocumentUploads.Inc()
	}
	h.writeJSON(w, http.StatusOK, doc)
}

// HandleEvaluateDocument records a document evaluation decision.
//
// URL format: POST /api/shipments/{id}/documents/{document_id}/evaluation
func (h *Handler) HandleEvaluateDocument(w http.ResponseWriter, r *http.Request) {
	identity, err := h.authorize(r, interfaces.RoleEditor)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var req evaluationRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	status, err := interfaces.ParseEvaluationStatus(req.Status)
	if err != nil {
		h.writeError(w, err)
		return
	}

	doc, err := h.shipments.EvaluateDocument(chi.URLParam(r, "id"), chi.URLParam(r, "document_id"), status, identity)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.Evaluations.WithLabelValues("document").Inc()
	}
	h.writeJSON(w, http.StatusOK, doc)
}

// HandleGetContent serves stored document content by content hash.
//
// URL format: GET /api/documents/content/{content_hash}
func (h *Handler) HandleGetContent(w http.ResponseWriter, r *http.Request) {
	if _, err := h.authorize(r, interfaces.RoleViewer); err != nil {
		h.writeError(w, err)
		return
	}
	if h.storage == nil {
		h.writeError(w, &RequestError{StatusCode: http.StatusServiceUnavailable, Err: fmt.Errorf("no document-content storage configured")})
		return
	}

	contentHash, err := interfaces.NewHashFromHex(chi.URLParam(r, "content_hash"))
	if err != nil {
		h.writeError(w, fmt.Errorf("%w: %v", interfaces.ErrValidation, err))
		return
	}

	content, err := h.storage.Fetch(r.Context(), contentHash)
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	w.Write(content)
}

// parsePhaseParam parses the {phase} URL parameter into one of the five
// document phases. The whole parameter must be a number; trailing garbage is
// rejected.
func parsePhaseParam(r *http.Request) (interfaces.Phase, error) {
	n, err := strconv.Atoi(chi.URLParam(r, "phase"))
	if err != nil || n < 1 || n > 5 {
		return 0, fmt.Errorf("%w: phase must be 1 through 5", interfaces.ErrValidation)
	}
	return interfaces.Phase(n), nil
}

// HandlePhaseDocuments returns the document types uploadable in a phase.
//
// URL format: GET /api/phases/{phase}/documents
func (h *Handler) HandlePhaseDocuments(w http.ResponseWriter, r *http.Request) {
	if _, err := h.authorize(r, interfaces.RoleViewer); err != nil {
		h.writeError(w, err)
		return
	}

	phase, err := parsePhaseParam(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	docs, _ := shipment.PhaseDocuments(phase)
	h.writeJSON(w, http.StatusOK, docs)
}

// HandlePhaseRequiredDocuments returns the document types whose approval
// gates a phase.
//
// URL format: GET /api/phases/{phase}/required-documents
func (h *Handler) HandlePhaseRequiredDocuments(w http.ResponseWriter, r *http.Request) {
	if _, err := h.authorize(r, interfaces.RoleViewer); err != nil {
		h.writeError(w, err)
		return
	}

	phase, err := parsePhaseParam(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	docs, _ := shipment.PhaseRequiredDocuments(phase)
	h.writeJSON(w, http.StatusOK, docs)
}
