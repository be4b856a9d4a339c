package shipment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradelane/trade-finance-backend/interfaces"
)

func testAddr(t *testing.T, b byte) interfaces.Address {
	t.Helper()
	addr, err := interfaces.NewAddressFromBytes(append(make([]byte, 19), b))
	require.NoError(t, err)
	return addr
}

func approvedDoc(docType interfaces.DocumentType, uploader interfaces.Address) interfaces.DocumentInfo {
	return interfaces.DocumentInfo{
		ID:          string(docType) + "-doc",
		Type:        docType,
		ExternalURL: "file:///docs/" + string(docType),
		Status:      interfaces.EvaluationApproved,
		UploadedBy:  uploader,
	}
}

func TestDerivePhaseFreshShipment(t *testing.T) {
	sh := New(testAddr(t, 1), testAddr(t, 2), testAddr(t, 3), false)
	assert.Equal(t, interfaces.Phase1, DerivePhase(sh))
}

func TestDerivePhaseWalksGatesInOrder(t *testing.T) {
	supplier := testAddr(t, 1)
	sh := New(supplier, testAddr(t, 2), testAddr(t, 3), true)

	// Gate 1 needs both the approved sample document and, since the
	// shipment requires it, the approved sample evaluation.
	sh.Documents[interfaces.DocumentPreShipmentSample] = []interfaces.DocumentInfo{approvedDoc(interfaces.DocumentPreShipmentSample, supplier)}
	assert.Equal(t, interfaces.Phase1, DerivePhase(sh))
	sh.SampleEvaluationStatus = interfaces.EvaluationApproved
	assert.Equal(t, interfaces.Phase2, DerivePhase(sh))

	// Gate 2: both shipping documents and the details evaluation.
	sh.Documents[interfaces.DocumentShippingInstructions] = []interfaces.DocumentInfo{approvedDoc(interfaces.DocumentShippingInstructions, supplier)}
	sh.Documents[interfaces.DocumentShippingNote] = []interfaces.DocumentInfo{approvedDoc(interfaces.DocumentShippingNote, supplier)}
	assert.Equal(t, interfaces.Phase2, DerivePhase(sh))
	sh.DetailsEvaluationStatus = interfaces.EvaluationApproved
	assert.Equal(t, interfaces.Phase3, DerivePhase(sh))

	// Gate 3: booking confirmation plus funds away from NOT_LOCKED.
	sh.Documents[interfaces.DocumentBookingConfirmation] = []interfaces.DocumentInfo{approvedDoc(interfaces.DocumentBookingConfirmation, supplier)}
	assert.Equal(t, interfaces.Phase3, DerivePhase(sh))
	sh.FundsStatus = interfaces.FundsLocked
	assert.Equal(t, interfaces.Phase4, DerivePhase(sh))

	// Gate 4: the export certification set.
	sh.Documents[interfaces.DocumentPhytosanitaryCertificate] = []interfaces.DocumentInfo{approvedDoc(interfaces.DocumentPhytosanitaryCertificate, supplier)}
	sh.Documents[interfaces.DocumentBillOfLading] = []interfaces.DocumentInfo{approvedDoc(interfaces.DocumentBillOfLading, supplier)}
	assert.Equal(t, interfaces.Phase4, DerivePhase(sh))
	sh.Documents[interfaces.DocumentOriginCertificateICO] = []interfaces.DocumentInfo{approvedDoc(interfaces.DocumentOriginCertificateICO, supplier)}
	assert.Equal(t, interfaces.Phase5, DerivePhase(sh))

	// Gate 5 and the terminal split on the quality outcome.
	sh.QualityEvaluationStatus = interfaces.EvaluationApproved
	assert.Equal(t, interfaces.PhaseConfirmed, DerivePhase(sh))
	sh.QualityEvaluationStatus = interfaces.EvaluationNotApproved
	assert.Equal(t, interfaces.PhaseArbitration, DerivePhase(sh))
}

func TestDerivePhaseSampleEvaluationNotRequired(t *testing.T) {
	supplier := testAddr(t, 1)
	sh := New(supplier, testAddr(t, 2), testAddr(t, 3), false)

	sh.Documents[interfaces.DocumentPreShipmentSample] = []interfaces.DocumentInfo{approvedDoc(interfaces.DocumentPreShipmentSample, supplier)}
	assert.Equal(t, interfaces.Phase2, DerivePhase(sh), "sample evaluation must not gate when not required")
}

func TestDerivePhaseFirstRecordDecides(t *testing.T) {
	supplier := testAddr(t, 1)
	sh := New(supplier, testAddr(t, 2), testAddr(t, 3), false)

	// A replaced, unapproved active record does not satisfy the gate even
	// if older data was approved elsewhere in the list.
	sh.Documents[interfaces.DocumentPreShipmentSample] = []interfaces.DocumentInfo{
		{ID: "active", Type: interfaces.DocumentPreShipmentSample, Status: interfaces.EvaluationNotEvaluated, UploadedBy: supplier},
	}
	assert.Equal(t, interfaces.Phase1, DerivePhase(sh))
}

func TestPhaseDocumentLists(t *testing.T) {
	docs, ok := PhaseDocuments(interfaces.Phase1)
	require.True(t, ok)
	assert.Contains(t, docs, interfaces.DocumentPreShipmentSample)

	required, ok := PhaseRequiredDocuments(interfaces.Phase4)
	require.True(t, ok)
	assert.ElementsMatch(t, []interfaces.DocumentType{
		interfaces.DocumentPhytosanitaryCertificate,
		interfaces.DocumentBillOfLading,
		interfaces.DocumentOriginCertificateICO,
	}, required)

	_, ok = PhaseRequiredDocuments(interfaces.PhaseConfirmed)
	assert.False(t, ok, "terminal phases carry no document lists")
}
