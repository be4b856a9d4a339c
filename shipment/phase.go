package shipment

import "github.com/tradelane/trade-finance-backend/interfaces"

// DerivePhase computes the shipment's current lifecycle phase from its
// evaluation, funds and document state. The phase is never stored; it is
// recomputed on every query so a stale value can never contradict the gate
// checklist. Gates are evaluated strictly in order and the first unmet gate
// determines the result.
func DerivePhase(s *interfaces.Shipment) interfaces.Phase {
	// Gate 1: approved pre-shipment sample, plus the sample evaluation when
	// the shipment requires one.
	if !documentApproved(s, interfaces.DocumentPreShipmentSample) {
		return interfaces.Phase1
	}
	if s.SampleApprovalRequired && s.SampleEvaluationStatus != interfaces.EvaluationApproved {
		return interfaces.Phase1
	}

	// Gate 2: approved shipping instructions and note, approved details.
	if !documentApproved(s, interfaces.DocumentShippingInstructions) ||
		!documentApproved(s, interfaces.DocumentShippingNote) ||
		s.DetailsEvaluationStatus != interfaces.EvaluationApproved {
		return interfaces.Phase2
	}

	// Gate 3: approved booking confirmation, funds no longer unlocked.
	if !documentApproved(s, interfaces.DocumentBookingConfirmation) ||
		s.FundsStatus == interfaces.FundsNotLocked {
		return interfaces.Phase3
	}

	// Gate 4: approved export certification set.
	if !documentApproved(s, interfaces.DocumentPhytosanitaryCertificate) ||
		!documentApproved(s, interfaces.DocumentBillOfLading) ||
		!documentApproved(s, interfaces.DocumentOriginCertificateICO) {
		return interfaces.Phase4
	}

	// Gate 5: quality evaluated one way or the other.
	if s.QualityEvaluationStatus == interfaces.EvaluationNotEvaluated {
		return interfaces.Phase5
	}

	if s.QualityEvaluationStatus == interfaces.EvaluationApproved {
		return interfaces.PhaseConfirmed
	}
	return interfaces.PhaseArbitration
}

// documentApproved reports whether the index holds a non-empty record list
// for docType whose first record is approved.
func documentApproved(s *interfaces.Shipment, docType interfaces.DocumentType) bool {
	docs := s.Documents[docType]
	return len(docs) > 0 && docs[0].Status == interfaces.EvaluationApproved
}

// phaseDocuments lists the document types uploadable during each phase.
var phaseDocuments = map[interfaces.Phase][]interfaces.DocumentType{
	interfaces.Phase1: {
		interfaces.DocumentServiceGuide,
		interfaces.DocumentSensoryEvaluationAnalysisReport,
		interfaces.DocumentSubjectToApprovalOfSample,
		interfaces.DocumentPreShipmentSample,
	},
	interfaces.Phase2: {
		interfaces.DocumentShippingInstructions,
		interfaces.DocumentShippingNote,
	},
	interfaces.Phase3: {
		interfaces.DocumentBookingConfirmation,
	},
	interfaces.Phase4: {
		interfaces.DocumentCargoCollectionOrder,
		interfaces.DocumentExportInvoice,
		interfaces.DocumentTransportContract,
		interfaces.DocumentToBeFreedSingleExportDeclaration,
		interfaces.DocumentExportConfirmation,
		interfaces.DocumentFreedSingleExportDeclaration,
		interfaces.DocumentContainerProofOfDelivery,
		interfaces.DocumentPhytosanitaryCertificate,
		interfaces.DocumentBillOfLading,
		interfaces.DocumentOriginSwissDeclaration,
		interfaces.DocumentWeightCertificate,
		interfaces.DocumentOriginCertificateICO,
	},
	interfaces.Phase5: {},
}

// phaseRequiredDocuments lists the document types whose approval gates each
// phase transition.
var phaseRequiredDocuments = map[interfaces.Phase][]interfaces.DocumentType{
	interfaces.Phase1: {
		interfaces.DocumentPreShipmentSample,
	},
	interfaces.Phase2: {
		interfaces.DocumentShippingInstructions,
		interfaces.DocumentShippingNote,
	},
	interfaces.Phase3: {
		interfaces.DocumentBookingConfirmation,
	},
	interfaces.Phase4: {
		interfaces.DocumentPhytosanitaryCertificate,
		interfaces.DocumentBillOfLading,
		interfaces.DocumentOriginCertificateICO,
	},
	interfaces.Phase5: {},
}

// PhaseDocuments returns the static list of document types uploadable
// during the given phase. Only the five numbered phases carry documents.
func PhaseDocuments(p interfaces.Phase) ([]interfaces.DocumentType, bool) {
	docs, ok := phaseDocuments[p]
	return docs, ok
}

// PhaseRequiredDocuments returns the static list of document types required
// to leave the given phase.
func PhaseRequiredDocuments(p interfaces.Phase) ([]interfaces.DocumentType, bool) {
	docs, ok := phaseRequiredDocuments[p]
	return docs, ok
}
