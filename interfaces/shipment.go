package interfaces

import (
	"fmt"
	"time"
)

// EvaluationStatus is the tri-state outcome of an evaluation gate. Once an
// entity reaches EvaluationApproved it is immutable for that dimension.
type EvaluationStatus string

const (
	EvaluationNotEvaluated EvaluationStatus = "NOT_EVALUATED"
	EvaluationApproved     EvaluationStatus = "APPROVED"
	EvaluationNotApproved  EvaluationStatus = "NOT_APPROVED"
)

// ParseEvaluationStatus converts a string to an EvaluationStatus.
func ParseEvaluationStatus(s string) (EvaluationStatus, error) {
	switch EvaluationStatus(s) {
	case EvaluationNotEvaluated, EvaluationApproved, EvaluationNotApproved:
		return EvaluationStatus(s), nil
	}
	return "", fmt.Errorf("%w: unknown evaluation status %q", ErrValidation, s)
}

// FundsStatus tracks the escrow ledger position of a shipment. Transitions
// are intended to be monotonic forward only.
type FundsStatus string

const (
	FundsNotLocked FundsStatus = "NOT_LOCKED"
	FundsLocked    FundsStatus = "LOCKED"
	FundsReleased  FundsStatus = "RELEASED"
)

// DocumentType is the closed set of trade-document categories a shipment
// carries through its lifecycle. Every type except DocumentGeneric keeps at
// most one active record at a time; DocumentGeneric accumulates an
// append-only list.
type DocumentType string

const (
	DocumentServiceGuide                     DocumentType = "SERVICE_GUIDE"
	DocumentSensoryEvaluationAnalysisReport  DocumentType = "SENSORY_EVALUATION_ANALYSIS_REPORT"
	DocumentSubjectToApprovalOfSample        DocumentType = "SUBJECT_TO_APPROVAL_OF_SAMPLE"
	DocumentPreShipmentSample                DocumentType = "PRE_SHIPMENT_SAMPLE"
	DocumentShippingInstructions             DocumentType = "SHIPPING_INSTRUCTIONS"
	DocumentShippingNote                     DocumentType = "SHIPPING_NOTE"
	DocumentBookingConfirmation              DocumentType = "BOOKING_CONFIRMATION"
	DocumentCargoCollectionOrder             DocumentType = "CARGO_COLLECTION_ORDER"
	DocumentExportInvoice                    DocumentType = "EXPORT_INVOICE"
	DocumentTransportContract                DocumentType = "TRANSPORT_CONTRACT"
	DocumentToBeFreedSingleExportDeclaration DocumentType = "TO_BE_FREED_SINGLE_EXPORT_DECLARATION"
	DocumentExportConfirmation               DocumentType = "EXPORT_CONFIRMATION"
	DocumentFreedSingleExportDeclaration     DocumentType = "FREED_SINGLE_EXPORT_DECLARATION"
	DocumentContainerProofOfDelivery         DocumentType = "CONTAINER_PROOF_OF_DELIVERY"
	DocumentPhytosanitaryCertificate         DocumentType = "PHYTOSANITARY_CERTIFICATE"
	DocumentBillOfLading                     DocumentType = "BILL_OF_LADING"
	DocumentOriginSwissDeclaration           DocumentType = "ORIGIN_SWISS_DECLARATION"
	DocumentWeightCertificate                DocumentType = "WEIGHT_CERTIFICATE"
	DocumentOriginCertificateICO             DocumentType = "ORIGIN_CERTIFICATE_ICO"
	DocumentGeneric                          DocumentType = "GENERIC"
)

// AllDocumentTypes lists every known document type, generic included.
var AllDocumentTypes = []DocumentType{
	DocumentServiceGuide,
	DocumentSensoryEvaluationAnalysisReport,
	DocumentSubjectToApprovalOfSample,
	DocumentPreShipmentSample,
	DocumentShippingInstructions,
	DocumentShippingNote,
	DocumentBookingConfirmation,
	DocumentCargoCollectionOrder,
	DocumentExportInvoice,
	DocumentTransportContract,
	DocumentToBeFreedSingleExportDeclaration,
	DocumentExportConfirmation,
	DocumentFreedSingleExportDeclaration,
	DocumentContainerProofOfDelivery,
	DocumentPhytosanitaryCertificate,
	DocumentBillOfLading,
	DocumentOriginSwissDeclaration,
	DocumentWeightCertificate,
	DocumentOriginCertificateICO,
	DocumentGeneric,
}

// ParseDocumentType converts a string to a DocumentType.
func ParseDocumentType(s string) (DocumentType, error) {
	for _, dt := range AllDocumentTypes {
		if DocumentType(s) == dt {
			return dt, nil
		}
	}
	return "", fmt.Errorf("%w: unknown document type %q", ErrValidation, s)
}

// DocumentInfo is a single uploaded document record within a shipment's
// document index.
type DocumentInfo struct {
	ID          string           `json:"id"`
	Type        DocumentType     `json:"documentType"`
	ExternalURL string           `json:"externalUrl"`
	Status      EvaluationStatus `json:"evaluationStatus"`
	UploadedBy  Address          `json:"uploadedBy"`
}

// Phase is the shipment's derived position in the document/escrow lifecycle.
// It is recomputed from the shipment state on every query, never stored.
type Phase int

const (
	Phase1 Phase = iota + 1
	Phase2
	Phase3
	Phase4
	Phase5
	PhaseConfirmed
	PhaseArbitration
)

// String returns the canonical wire name of the phase.
func (p Phase) String() string {
	switch p {
	case Phase1:
		return "PHASE_1"
	case Phase2:
		return "PHASE_2"
	case Phase3:
		return "PHASE_3"
	case Phase4:
		return "PHASE_4"
	case Phase5:
		return "PHASE_5"
	case PhaseConfirmed:
		return "CONFIRMED"
	case PhaseArbitration:
		return "ARBITRATION"
	default:
		return fmt.Sprintf("PHASE(%d)", int(p))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Shipment is the lifecycle aggregate. All evaluation and funds statuses
// start at their initial variant and the numeric detail fields are zero
// until SetDetails runs. The current phase is never part of this struct.
type Shipment struct {
	ID                      string                          `json:"id"`
	Supplier                Address                         `json:"supplier"`
	Commissioner            Address                         `json:"commissioner"`
	EscrowAddress           Address                         `json:"escrowAddress,omitempty"`
	SampleEvaluationStatus  EvaluationStatus                `json:"sampleEvaluationStatus"`
	DetailsEvaluationStatus EvaluationStatus                `json:"detailsEvaluationStatus"`
	QualityEvaluationStatus EvaluationStatus                `json:"qualityEvaluationStatus"`
	FundsStatus             FundsStatus                     `json:"fundsStatus"`
	DetailsSet              bool                            `json:"detailsSet"`
	SampleApprovalRequired  bool                            `json:"sampleApprovalRequired"`
	ShipmentNumber          int64                           `json:"shipmentNumber"`
	ExpirationDate          time.Time                       `json:"expirationDate"`
	FixingDate              time.Time                       `json:"fixingDate"`
	TargetExchange          string                          `json:"targetExchange"`
	DifferentialApplied     int64                           `json:"differentialApplied"`
	Price                   int64                           `json:"price"`
	Quantity                int64                           `json:"quantity"`
	ContainersNumber        int64                           `json:"containersNumber"`
	NetWeight               int64                           `json:"netWeight"`
	GrossWeight             int64                           `json:"grossWeight"`
	Documents               map[DocumentType][]DocumentInfo `json:"documents"`
}

// ShipmentDetails carries the numeric shipment fields set in a single
// SetDetails call before the details evaluation gate.
type ShipmentDetails struct {
	ShipmentNumber      int64     `json:"shipmentNumber"`
	ExpirationDate      time.Time `json:"expirationDate"`
	FixingDate          time.Time `json:"fixingDate"`
	TargetExchange      string    `json:"targetExchange"`
	DifferentialApplied int64     `json:"differentialApplied"`
	Price               int64     `json:"price"`
	Quantity            int64     `json:"quantity"`
	ContainersNumber    int64     `json:"containersNumber"`
	NetWeight           int64     `json:"netWeight"`
	GrossWeight         int64     `json:"grossWeight"`
}
