// Package shipment implements the trade-document lifecycle engine: the
// shipment aggregate, its type-keyed document index, the derived phase
// computation and the document approval workflow. Every mutating operation
// takes the verified caller identity produced by the role-proof validator;
// several business rules are expressed in terms of that identity.
package shipment

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/tradelane/trade-finance-backend/interfaces"
)

// New creates a shipment aggregate with all numeric fields zeroed, every
// evaluation at NOT_EVALUATED and funds at NOT_LOCKED. There is no deletion
// operation; a shipment only ever moves forward through its lifecycle.
func New(supplier, commissioner, escrowAddress interfaces.Address, sampleApprovalRequired bool) *interfaces.Shipment {
	return &interfaces.Shipment{
		ID:                      uuid.NewString(),
		Supplier:                supplier,
		Commissioner:            commissioner,
		EscrowAddress:           escrowAddress,
		SampleEvaluationStatus:  interfaces.EvaluationNotEvaluated,
		DetailsEvaluationStatus: interfaces.EvaluationNotEvaluated,
		QualityEvaluationStatus: interfaces.EvaluationNotEvaluated,
		FundsStatus:             interfaces.FundsNotLocked,
		SampleApprovalRequired:  sampleApprovalRequired,
		Documents:               make(map[interfaces.DocumentType][]interfaces.DocumentInfo),
	}
}

// snapshot returns a deep copy of the shipment with a cloned document index.
// Anything handed out of the service is a snapshot, never the live aggregate,
// so readers outside the service mutex cannot observe concurrent mutation.
func snapshot(s *interfaces.Shipment) *interfaces.Shipment {
	out := *s
	out.Documents = make(map[interfaces.DocumentType][]interfaces.DocumentInfo, len(s.Documents))
	for docType, docs := range s.Documents {
		out.Documents[docType] = append([]interfaces.DocumentInfo(nil), docs...)
	}
	return &out
}

// Repository is an in-memory shipment store. Persistence primitives are an
// external concern; the engine only needs lookup and insertion.
type Repository struct {
	mutex     sync.RWMutex
	shipments map[string]*interfaces.Shipment
	order     []string
}

// NewRepository creates an empty repository.
func NewRepository() *Repository {
	return &Repository{shipments: make(map[string]*interfaces.Shipment)}
}

// Add stores a shipment.
func (r *Repository) Add(s *interfaces.Shipment) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if _, exists := r.shipments[s.ID]; !exists {
		r.order = append(r.order, s.ID)
	}
	r.shipments[s.ID] = s
}

// Get returns the shipment with the given id.
func (r *Repository) Get(id string) (*interfaces.Shipment, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	s, ok := r.shipments[id]
	if !ok {
		return nil, fmt.Errorf("%w: shipment %s", interfaces.ErrNotFound, id)
	}
	return s, nil
}

// All returns every stored shipment in insertion order.
func (r *Repository) All() []*interfaces.Shipment {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	res := make([]*interfaces.Shipment, 0, len(r.order))
	for _, id := range r.order {
		res = append(res, r.shipments[id])
	}
	return res
}

// findDocument locates a document record by id across all types in the
// index, returning the type and position it was found at.
func findDocument(s *interfaces.Shipment, documentID string) (interfaces.DocumentType, int, bool) {
	for docType, docs := range s.Documents {
		for i, doc := range docs {
			if doc.ID == documentID {
				return docType, i, true
			}
		}
	}
	return "", 0, false
}
