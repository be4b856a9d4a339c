package shipment

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"github.com/google/uuid"

	"github.com/tradelane/trade-finance-backend/interfaces"
)

// Service is the document approval workflow over the shipment aggregate.
// Operations execute message-at-a-time: purely local transitions run to
// completion under the service mutex, and operations that call the escrow
// ledger release the mutex for the call and re-validate their gates before
// mutating on resume. Retry policy belongs to the caller; the service never
// retries a failed collaborator call.
type Service struct {
	mu     sync.Mutex
	repo   *Repository
	ledger interfaces.EscrowLedger
	log    *slog.Logger
}

// NewService creates the lifecycle service.
func NewService(repo *Repository, ledger interfaces.EscrowLedger, log *slog.Logger) *Service {
	return &Service{repo: repo, ledger: ledger, log: log}
}

// interestedParty rejects callers whose verified company is neither the
// supplier nor the commissioner of the shipment.
func interestedParty(s *interfaces.Shipment, identity interfaces.CallerIdentity) error {
	if identity.CompanyAddress.Equal(s.Supplier) || identity.CompanyAddress.Equal(s.Commissioner) {
		return nil
	}
	return fmt.Errorf("%w: %s is not an interested party of shipment %s", interfaces.ErrAccessDenied, identity.CompanyAddress, s.ID)
}

// Create registers a new shipment between the caller's company and its
// counterparty. The caller must be one of the two parties.
func (s *Service) Create(supplier, commissioner, escrowAddress interfaces.Address, sampleApprovalRequired bool, identity interfaces.CallerIdentity) (*interfaces.Shipment, error) {
	if supplier.IsZero() || commissioner.IsZero() {
		return nil, fmt.Errorf("%w: supplier and commissioner are required", interfaces.ErrValidation)
	}

	sh := New(supplier, commissioner, escrowAddress, sampleApprovalRequired)
	if err := interestedParty(sh, identity); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.repo.Add(sh)

	s.log.Info("shipment created", "shipment", sh.ID, "supplier", supplier.String(), "commissioner", commissioner.String())
	return snapshot(sh), nil
}

// Shipments returns every shipment the caller's company is a party of.
func (s *Service) Shipments(identity interfaces.CallerIdentity) []*interfaces.Shipment {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res []*interfaces.Shipment
	for _, sh := range s.repo.All() {
		if interestedParty(sh, identity) == nil {
			res = append(res, snapshot(sh))
		}
	}
	return res
}

// Shipment returns a single shipment the caller is a party of.
func (s *Service) Shipment(id string, identity interfaces.CallerIdentity) (*interfaces.Shipment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sh, err := s.get(id, identity)
	if err != nil {
		return nil, err
	}
	return snapshot(sh), nil
}

// get looks up a shipment and applies the interested-party rule. Callers
// must hold the service mutex.
func (s *Service) get(id string, identity interfaces.CallerIdentity) (*interfaces.Shipment, error) {
	sh, err := s.repo.Get(id)
	if err != nil {
		return nil, err
	}
	if err := interestedParty(sh, identity); err != nil {
		return nil, err
	}
	return sh, nil
}

// Phase derives the shipment's current phase. The result is computed on
// demand and never cached.
func (s *Service) Phase(id string, identity interfaces.CallerIdentity) (interfaces.Phase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sh, err := s.get(id, identity)
	if err != nil {
		return 0, err
	}
	return DerivePhase(sh), nil
}

// Documents returns the full document index of a shipment.
func (s *Service) Documents(id string, identity interfaces.CallerIdentity) (map[interfaces.DocumentType][]interfaces.DocumentInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sh, err := s.get(id, identity)
	if err != nil {
		return nil, err
	}

	res := make(map[interfaces.DocumentType][]interfaces.DocumentInfo, len(sh.Documents))
	for docType, docs := range sh.Documents {
		res[docType] = append([]interfaces.DocumentInfo(nil), docs...)
	}
	return res, nil
}

// DocumentsByType returns the records for one document type.
func (s *Service) DocumentsByType(id string, docType interfaces.DocumentType, identity interfaces.CallerIdentity) ([]interfaces.DocumentInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sh, err := s.get(id, identity)
	if err != nil {
		return nil, err
	}
	return append([]interfaces.DocumentInfo(nil), sh.Documents[docType]...), nil
}

// AddDocument uploads a document. GENERIC documents accumulate append-only;
// every other type keeps a single active record that is replaced on upload
// and frozen once approved.
func (s *Service) AddDocument(id string, docType interfaces.DocumentType, externalURL string, identity interfaces.CallerIdentity) (interfaces.DocumentInfo, error) {
	if externalURL == "" {
		return interfaces.DocumentInfo{}, fmt.Errorf("%w: missing document url", interfaces.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sh, err := s.get(id, identity)
	if err != nil {
		return interfaces.DocumentInfo{}, err
	}

	doc := interfaces.DocumentInfo{
		ID:          uuid.NewString(),
		Type:        docType,
		ExternalURL: externalURL,
		Status:      interfaces.EvaluationNotEvaluated,
		UploadedBy:  identity.CompanyAddress,
	}

	if docType == interfaces.DocumentGeneric {
		sh.Documents[docType] = append(sh.Documents[docType], doc)
	} else {
		if existing := sh.Documents[docType]; len(existing) > 0 && existing[0].Status == interfaces.EvaluationApproved {
			return interfaces.DocumentInfo{}, fmt.Errorf("%w: document type %s already approved and immutable", interfaces.ErrStateConflict, docType)
		}
		sh.Documents[docType] = []interfaces.DocumentInfo{doc}
	}

	s.log.Info("document added", "shipment", sh.ID, "type", string(docType), "document", doc.ID)
	return doc, nil
}

// UpdateDocument replaces the URL and uploader of an existing, not yet
// approved document record.
func (s *Service) UpdateDocument(id, documentID, externalURL string, identity interfaces.CallerIdentity) (interfaces.DocumentInfo, error) {
	if externalURL == "" {
		return interfaces.DocumentInfo{}, fmt.Errorf("%w: missing document url", interfaces.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sh, err := s.get(id, identity)
	if err != nil {
		return interfaces.DocumentInfo{}, err
	}

	docType, i, found := findDocument(sh, documentID)
	if !found {
		return interfaces.DocumentInfo{}, fmt.Errorf("%w: document %s", interfaces.ErrNotFound, documentID)
	}
	if sh.Documents[docType][i].Status == interfaces.EvaluationApproved {
		return interfaces.DocumentInfo{}, fmt.Errorf("%w: document %s already approved and immutable", interfaces.ErrStateConflict, documentID)
	}

	sh.Documents[docType][i].ExternalURL = externalURL
	sh.Documents[docType][i].UploadedBy = identity.CompanyAddress
	return sh.Documents[docType][i], nil
}

// EvaluateDocument sets a document's evaluation status. The uploader cannot
// evaluate their own document, and an approved document cannot be
// re-evaluated.
func (s *Service) EvaluateDocument(id, documentID string, status interfaces.EvaluationStatus, identity interfaces.CallerIdentity) (interfaces.DocumentInfo, error) {
	if status == interfaces.EvaluationNotEvaluated {
		return interfaces.DocumentInfo{}, fmt.Errorf("%w: evaluation cannot reset to %s", interfaces.ErrValidation, status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sh, err := s.get(id, identity)
	if err != nil {
		return interfaces.DocumentInfo{}, err
	}

	docType, i, found := findDocument(sh, documentID)
	if !found {
		return interfaces.DocumentInfo{}, fmt.Errorf("%w: document %s", interfaces.ErrNotFound, documentID)
	}

	doc := sh.Documents[docType][i]
	if identity.CompanyAddress.Equal(doc.UploadedBy) {
		return interfaces.DocumentInfo{}, fmt.Errorf("%w: uploader cannot evaluate their own document", interfaces.ErrAccessDenied)
	}
	if doc.Status == interfaces.EvaluationApproved {
		return interfaces.DocumentInfo{}, fmt.Errorf("%w: document %s already approved", interfaces.ErrStateConflict, documentID)
	}

	sh.Documents[docType][i].Status = status
	s.log.Info("document evaluated", "shipment", sh.ID, "document", documentID, "status", string(status))
	return sh.Documents[docType][i], nil
}

// SetDetails sets the numeric shipment fields. Permitted only before the
// details gate has passed and while the details evaluation is not yet
// approved.
func (s *Service) SetDetails(id string, details interfaces.ShipmentDetails, identity interfaces.CallerIdentity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sh, err := s.get(id, identity)
	if err != nil {
		return err
	}

	if phase := DerivePhase(sh); phase > interfaces.Phase2 {
		return fmt.Errorf("%w: details can no longer be set in %s", interfaces.ErrStateConflict, phase)
	}
	if sh.DetailsEvaluationStatus == interfaces.EvaluationApproved {
		return fmt.Errorf("%w: details already approved", interfaces.ErrStateConflict)
	}

	sh.ShipmentNumber = details.ShipmentNumber
	sh.ExpirationDate = details.ExpirationDate
	sh.FixingDate = details.FixingDate
	sh.TargetExchange = details.TargetExchange
	sh.DifferentialApplied = details.DifferentialApplied
	sh.Price = details.Price
	sh.Quantity = details.Quantity
	sh.ContainersNumber = details.ContainersNumber
	sh.NetWeight = details.NetWeight
	sh.GrossWeight = details.GrossWeight
	sh.DetailsSet = true

	s.log.Info("shipment details set", "shipment", sh.ID, "number", details.ShipmentNumber)
	return nil
}

// EvaluateSample evaluates the pre-shipment sample. Settable only once away
// from NOT_EVALUATED, and only while the shipment is in phase 1.
func (s *Service) EvaluateSample(id string, status interfaces.EvaluationStatus, identity interfaces.CallerIdentity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sh, err := s.get(id, identity)
	if err != nil {
		return err
	}

	if phase := DerivePhase(sh); phase != interfaces.Phase1 {
		return fmt.Errorf("%w: sample evaluation requires %s, shipment is in %s", interfaces.ErrStateConflict, interfaces.Phase1, phase)
	}
	if sh.SampleEvaluationStatus != interfaces.EvaluationNotEvaluated {
		return fmt.Errorf("%w: sample already evaluated", interfaces.ErrStateConflict)
	}

	sh.SampleEvaluationStatus = status
	return nil
}

// EvaluateDetails evaluates the shipment details. Settable only once away
// from NOT_EVALUATED, and only after the details have been set.
func (s *Service) EvaluateDetails(id string, status interfaces.EvaluationStatus, identity interfaces.CallerIdentity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sh, err := s.get(id, identity)
	if err != nil {
		return err
	}

	if !sh.DetailsSet {
		return fmt.Errorf("%w: details not yet set", interfaces.ErrStateConflict)
	}
	if sh.DetailsEvaluationStatus != interfaces.EvaluationNotEvaluated {
		return fmt.Errorf("%w: details already evaluated", interfaces.ErrStateConflict)
	}

	sh.DetailsEvaluationStatus = status
	return nil
}

// EvaluateQuality evaluates the delivered goods. Settable only once away
// from NOT_EVALUATED, and only while the shipment is in phase 5. The
// outcome decides between CONFIRMED and ARBITRATION.
func (s *Service) EvaluateQuality(id string, status interfaces.EvaluationStatus, identity interfaces.CallerIdentity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sh, err := s.get(id, identity)
	if err != nil {
		return err
	}

	if phase := DerivePhase(sh); phase != interfaces.Phase5 {
		return fmt.Errorf("%w: quality evaluation requires %s, shipment is in %s", interfaces.ErrStateConflict, interfaces.Phase5, phase)
	}
	if sh.QualityEvaluationStatus != interfaces.EvaluationNotEvaluated {
		return fmt.Errorf("%w: quality already evaluated", interfaces.ErrStateConflict)
	}

	sh.QualityEvaluationStatus = status
	return nil
}

// requiredDeposit is the escrow balance that locks the shipment's funds:
// the agreed price across the full quantity.
func requiredDeposit(s *interfaces.Shipment) *big.Int {
	return new(big.Int).Mul(big.NewInt(s.Price), big.NewInt(s.Quantity))
}

// DepositFunds transfers amount into the shipment's escrow and transitions
// funds to LOCKED once the ledger reports a sufficient balance. Permitted
// only in phase 3 with unlocked funds. The ledger calls run outside the
// service mutex; the funds gate is re-validated before mutating.
func (s *Service) DepositFunds(ctx context.Context, id string, amount *big.Int, identity interfaces.CallerIdentity) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("%w: deposit amount must be positive", interfaces.ErrValidation)
	}

	s.mu.Lock()
	sh, err := s.get(id, identity)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if phase := DerivePhase(sh); phase != interfaces.Phase3 {
		s.mu.Unlock()
		return fmt.Errorf("%w: deposit requires %s, shipment is in %s", interfaces.ErrStateConflict, interfaces.Phase3, phase)
	}
	if sh.FundsStatus != interfaces.FundsNotLocked {
		s.mu.Unlock()
		return fmt.Errorf("%w: funds already %s", interfaces.ErrStateConflict, sh.FundsStatus)
	}
	escrowAddress := sh.EscrowAddress
	required := requiredDeposit(sh)
	s.mu.Unlock()

	if err := s.ledger.Deposit(ctx, escrowAddress, identity.CompanyAddress, amount); err != nil {
		return fmt.Errorf("%w: escrow deposit: %v", interfaces.ErrUnavailable, err)
	}

	deposited, err := s.ledger.DepositedAmount(ctx, escrowAddress)
	if err != nil {
		return fmt.Errorf("%w: escrow balance: %v", interfaces.ErrUnavailable, err)
	}
	if deposited.Cmp(required) < 0 {
		s.log.Info("escrow deposit below required balance", "shipment", id, "deposited", deposited.String(), "required", required.String())
		return nil
	}

	if err := s.ledger.Lock(ctx, escrowAddress); err != nil {
		return fmt.Errorf("%w: escrow lock: %v", interfaces.ErrUnavailable, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Another operation may have observed the shipment while the ledger
	// calls were in flight; re-check the gate before mutating.
	sh, err = s.get(id, identity)
	if err != nil {
		return err
	}
	if sh.FundsStatus != interfaces.FundsNotLocked {
		return fmt.Errorf("%w: funds already %s", interfaces.ErrStateConflict, sh.FundsStatus)
	}
	sh.FundsStatus = interfaces.FundsLocked

	s.log.Info("escrow funds locked", "shipment", id, "deposited", deposited.String())
	return nil
}

// LockFunds is the explicit administrative lock transition over the ledger.
func (s *Service) LockFunds(ctx context.Context, id string, identity interfaces.CallerIdentity) error {
	s.mu.Lock()
	sh, err := s.get(id, identity)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if sh.FundsStatus != interfaces.FundsNotLocked {
		s.mu.Unlock()
		return fmt.Errorf("%w: funds already %s", interfaces.ErrStateConflict, sh.FundsStatus)
	}
	escrowAddress := sh.EscrowAddress
	s.mu.Unlock()

	if err := s.ledger.Lock(ctx, escrowAddress); err != nil {
		return fmt.Errorf("%w: escrow lock: %v", interfaces.ErrUnavailable, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sh, err = s.get(id, identity)
	if err != nil {
		return err
	}
	if sh.FundsStatus != interfaces.FundsNotLocked {
		return fmt.Errorf("%w: funds already %s", interfaces.ErrStateConflict, sh.FundsStatus)
	}
	sh.FundsStatus = interfaces.FundsLocked
	return nil
}

// UnlockFunds is the explicit administrative release transition over the
// ledger. Funds move forward to RELEASED; there is no path back to
// NOT_LOCKED.
func (s *Service) UnlockFunds(ctx context.Context, id string, identity interfaces.CallerIdentity) error {
	s.mu.Lock()
	sh, err := s.get(id, identity)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if sh.FundsStatus != interfaces.FundsLocked {
		s.mu.Unlock()
		return fmt.Errorf("%w: funds are %s, not %s", interfaces.ErrStateConflict, sh.FundsStatus, interfaces.FundsLocked)
	}
	escrowAddress := sh.EscrowAddress
	s.mu.Unlock()

	if err := s.ledger.Release(ctx, escrowAddress); err != nil {
		return fmt.Errorf("%w: escrow release: %v", interfaces.ErrUnavailable, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sh, err = s.get(id, identity)
	if err != nil {
		return err
	}
	if sh.FundsStatus != interfaces.FundsLocked {
		return fmt.Errorf("%w: funds are %s, not %s", interfaces.ErrStateConflict, sh.FundsStatus, interfaces.FundsLocked)
	}
	sh.FundsStatus = interfaces.FundsReleased
	return nil
}
