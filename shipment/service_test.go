package shipment

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradelane/trade-finance-backend/escrow"
	"github.com/tradelane/trade-finance-backend/interfaces"
)

type serviceFixture struct {
	service      *Service
	ledger       *escrow.MockLedger
	supplier     interfaces.CallerIdentity
	commissioner interfaces.CallerIdentity
	outsider     interfaces.CallerIdentity
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	ledger := escrow.NewMockLedger()
	return &serviceFixture{
		service:      NewService(NewRepository(), ledger, slog.Default()),
		ledger:       ledger,
		supplier:     interfaces.CallerIdentity{CompanyAddress: testAddr(t, 1), Role: interfaces.RoleSigner},
		commissioner: interfaces.CallerIdentity{CompanyAddress: testAddr(t, 2), Role: interfaces.RoleSigner},
		outsider:     interfaces.CallerIdentity{CompanyAddress: testAddr(t, 9), Role: interfaces.RoleSigner},
	}
}

func (f *serviceFixture) createShipment(t *testing.T, sampleApprovalRequired bool) *interfaces.Shipment {
	t.Helper()
	sh, err := f.service.Create(f.supplier.CompanyAddress, f.commissioner.CompanyAddress, testAddr(t, 3), sampleApprovalRequired, f.supplier)
	require.NoError(t, err)
	return sh
}

// addApproved uploads a document as the supplier and approves it as the
// commissioner, satisfying the separation-of-duties rule.
func (f *serviceFixture) addApproved(t *testing.T, id string, docType interfaces.DocumentType) {
	t.Helper()
	doc, err := f.service.AddDocument(id, docType, "file:///docs/"+string(docType), f.supplier)
	require.NoError(t, err)
	_, err = f.service.EvaluateDocument(id, doc.ID, interfaces.EvaluationApproved, f.commissioner)
	require.NoError(t, err)
}

func TestFreshShipmentIsPhase1(t *testing.T) {
	f := newServiceFixture(t)
	sh := f.createShipment(t, false)

	phase, err := f.service.Phase(sh.ID, f.supplier)
	require.NoError(t, err)
	assert.Equal(t, interfaces.Phase1, phase)
}

func TestLifecycleScenarioReachesPhase3(t *testing.T) {
	f := newServiceFixture(t)
	sh := f.createShipment(t, true)

	f.addApproved(t, sh.ID, interfaces.DocumentPreShipmentSample)
	require.NoError(t, f.service.EvaluateSample(sh.ID, interfaces.EvaluationApproved, f.commissioner))

	require.NoError(t, f.service.SetDetails(sh.ID, interfaces.ShipmentDetails{
		ShipmentNumber: 42,
		TargetExchange: "NYC",
		Price:          100,
		Quantity:       5,
		NetWeight:      9500,
		GrossWeight:    9800,
	}, f.supplier))
	require.NoError(t, f.service.EvaluateDetails(sh.ID, interfaces.EvaluationApproved, f.commissioner))

	f.addApproved(t, sh.ID, interfaces.DocumentShippingInstructions)
	f.addApproved(t, sh.ID, interfaces.DocumentShippingNote)

	phase, err := f.service.Phase(sh.ID, f.supplier)
	require.NoError(t, err)
	assert.Equal(t, interfaces.Phase3, phase)
}

func TestAddDocumentRoundTrip(t *testing.T) {
	f := newServiceFixture(t)
	sh := f.createShipment(t, false)

	doc, err := f.service.AddDocument(sh.ID, interfaces.DocumentExportInvoice, "file:///docs/invoice.pdf", f.supplier)
	require.NoError(t, err)

	docs, err := f.service.DocumentsByType(sh.ID, interfaces.DocumentExportInvoice, f.supplier)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, doc.ID, docs[0].ID)
	assert.Equal(t, interfaces.EvaluationNotEvaluated, docs[0].Status)
	assert.Equal(t, f.supplier.CompanyAddress, docs[0].UploadedBy)
}

func TestAddDocumentReplacesActiveRecord(t *testing.T) {
	f := newServiceFixture(t)
	sh := f.createShipment(t, false)

	first, err := f.service.AddDocument(sh.ID, interfaces.DocumentBillOfLading, "file:///docs/bol-1.pdf", f.supplier)
	require.NoError(t, err)
	second, err := f.service.AddDocument(sh.ID, interfaces.DocumentBillOfLading, "file:///docs/bol-2.pdf", f.supplier)
	require.NoError(t, err)

	docs, err := f.service.DocumentsByType(sh.ID, interfaces.DocumentBillOfLading, f.supplier)
	require.NoError(t, err)
	require.Len(t, docs, 1, "non-generic types keep a single active record")
	assert.Equal(t, second.ID, docs[0].ID)
	assert.NotEqual(t, first.ID, docs[0].ID)
}

func TestAddDocumentApprovedTypeIsImmutable(t *testing.T) {
	f := newServiceFixture(t)
	sh := f.createShipment(t, false)

	f.addApproved(t, sh.ID, interfaces.DocumentBillOfLading)

	_, err := f.service.AddDocument(sh.ID, interfaces.DocumentBillOfLading, "file:///docs/bol-2.pdf", f.supplier)
	assert.ErrorIs(t, err, interfaces.ErrStateConflict)
}

func TestGenericDocumentsAccumulate(t *testing.T) {
	f := newServiceFixture(t)
	sh := f.createShipment(t, false)

	for i := 0; i < 3; i++ {
		_, err := f.service.AddDocument(sh.ID, interfaces.DocumentGeneric, "file:///docs/misc.pdf", f.supplier)
		require.NoError(t, err)
	}

	docs, err := f.service.DocumentsByType(sh.ID, interfaces.DocumentGeneric, f.supplier)
	require.NoError(t, err)
	assert.Len(t, docs, 3)
}

func TestEvaluateDocumentSeparationOfDuties(t *testing.T) {
	f := newServiceFixture(t)
	sh := f.createShipment(t, false)

	doc, err := f.service.AddDocument(sh.ID, interfaces.DocumentExportInvoice, "file:///docs/invoice.pdf", f.supplier)
	require.NoError(t, err)

	_, err = f.service.EvaluateDocument(sh.ID, doc.ID, interfaces.EvaluationApproved, f.supplier)
	assert.ErrorIs(t, err, interfaces.ErrAccessDenied)

	_, err = f.service.EvaluateDocument(sh.ID, doc.ID, interfaces.EvaluationApproved, f.commissioner)
	assert.NoError(t, err)
}

func TestEvaluateDocumentApprovedIsFinal(t *testing.T) {
	f := newServiceFixture(t)
	sh := f.createShipment(t, false)

	doc, err := f.service.AddDocument(sh.ID, interfaces.DocumentExportInvoice, "file:///docs/invoice.pdf", f.supplier)
	require.NoError(t, err)
	_, err = f.service.EvaluateDocument(sh.ID, doc.ID, interfaces.EvaluationApproved, f.commissioner)
	require.NoError(t, err)

	_, err = f.service.EvaluateDocument(sh.ID, doc.ID, interfaces.EvaluationNotApproved, f.commissioner)
	assert.ErrorIs(t, err, interfaces.ErrStateConflict)
}

func TestUpdateDocument(t *testing.T) {
	f := newServiceFixture(t)
	sh := f.createShipment(t, false)

	doc, err := f.service.AddDocument(sh.ID, interfaces.DocumentExportInvoice, "file:///docs/invoice-v1.pdf", f.supplier)
	require.NoError(t, err)

	updated, err := f.service.UpdateDocument(sh.ID, doc.ID, "file:///docs/invoice-v2.pdf", f.commissioner)
	require.NoError(t, err)
	assert.Equal(t, "file:///docs/invoice-v2.pdf", updated.ExternalURL)
	assert.Equal(t, f.commissioner.CompanyAddress, updated.UploadedBy)

	_, err = f.service.UpdateDocument(sh.ID, "no-such-doc", "file:///x", f.supplier)
	assert.ErrorIs(t, err, interfaces.ErrNotFound)

	_, err = f.service.EvaluateDocument(sh.ID, doc.ID, interfaces.EvaluationApproved, f.supplier)
	require.NoError(t, err)
	_, err = f.service.UpdateDocument(sh.ID, doc.ID, "file:///docs/invoice-v3.pdf", f.supplier)
	assert.ErrorIs(t, err, interfaces.ErrStateConflict)
}

func TestEvaluateQualityOnlyOnce(t *testing.T) {
	f := newServiceFixture(t)
	sh := f.createShipment(t, false)
	advanceToPhase5(t, f, sh.ID)

	require.NoError(t, f.service.EvaluateQuality(sh.ID, interfaces.EvaluationNotApproved, f.commissioner))

	err := f.service.EvaluateQuality(sh.ID, interfaces.EvaluationApproved, f.commissioner)
	assert.ErrorIs(t, err, interfaces.ErrStateConflict)

	phase, err := f.service.Phase(sh.ID, f.supplier)
	require.NoError(t, err)
	assert.Equal(t, interfaces.PhaseArbitration, phase)
}

func TestEvaluateSampleRequiresPhase1(t *testing.T) {
	f := newServiceFixture(t)
	sh := f.createShipment(t, false)

	// Approving the sample document moves the shipment out of phase 1
	// since no sample evaluation is required.
	f.addApproved(t, sh.ID, interfaces.DocumentPreShipmentSample)

	err := f.service.EvaluateSample(sh.ID, interfaces.EvaluationApproved, f.commissioner)
	assert.ErrorIs(t, err, interfaces.ErrStateConflict)
}

func TestEvaluateDetailsRequiresDetailsSet(t *testing.T) {
	f := newServiceFixture(t)
	sh := f.createShipment(t, false)

	err := f.service.EvaluateDetails(sh.ID, interfaces.EvaluationApproved, f.commissioner)
	assert.ErrorIs(t, err, interfaces.ErrStateConflict)
}

func TestSetDetailsRejectedAfterApproval(t *testing.T) {
	f := newServiceFixture(t)
	sh := f.createShipment(t, false)

	require.NoError(t, f.service.SetDetails(sh.ID, interfaces.ShipmentDetails{Price: 10, Quantity: 1}, f.supplier))
	require.NoError(t, f.service.EvaluateDetails(sh.ID, interfaces.EvaluationApproved, f.commissioner))

	err := f.service.SetDetails(sh.ID, interfaces.ShipmentDetails{Price: 20, Quantity: 1}, f.supplier)
	assert.ErrorIs(t, err, interfaces.ErrStateConflict)
}

// advanceToPhase3 walks a shipment through the first two gates.
func advanceToPhase3(t *testing.T, f *serviceFixture, id string) {
	t.Helper()
	f.addApproved(t, id, interfaces.DocumentPreShipmentSample)
	require.NoError(t, f.service.SetDetails(id, interfaces.ShipmentDetails{Price: 100, Quantity: 5}, f.supplier))
	require.NoError(t, f.service.EvaluateDetails(id, interfaces.EvaluationApproved, f.commissioner))
	f.addApproved(t, id, interfaces.DocumentShippingInstructions)
	f.addApproved(t, id, interfaces.DocumentShippingNote)
}

// advanceToPhase5 walks a shipment through all document and funds gates.
func advanceToPhase5(t *testing.T, f *serviceFixture, id string) {
	t.Helper()
	advanceToPhase3(t, f, id)
	f.addApproved(t, id, interfaces.DocumentBookingConfirmation)
	require.NoError(t, f.service.DepositFunds(context.Background(), id, big.NewInt(500), f.commissioner))
	f.addApproved(t, id, interfaces.DocumentPhytosanitaryCertificate)
	f.addApproved(t, id, interfaces.DocumentBillOfLading)
	f.addApproved(t, id, interfaces.DocumentOriginCertificateICO)

	phase, err := f.service.Phase(id, f.supplier)
	require.NoError(t, err)
	require.Equal(t, interfaces.Phase5, phase)
}

func TestDepositFundsLocksAtRequiredBalance(t *testing.T) {
	f := newServiceFixture(t)
	sh := f.createShipment(t, false)
	advanceToPhase3(t, f, sh.ID)
	f.addApproved(t, sh.ID, interfaces.DocumentBookingConfirmation)

	// Below the required price*quantity balance the funds stay unlocked.
	require.NoError(t, f.service.DepositFunds(context.Background(), sh.ID, big.NewInt(100), f.commissioner))
	current, err := f.service.Shipment(sh.ID, f.supplier)
	require.NoError(t, err)
	assert.Equal(t, interfaces.FundsNotLocked, current.FundsStatus)

	// Topping up to the full amount locks.
	require.NoError(t, f.service.DepositFunds(context.Background(), sh.ID, big.NewInt(400), f.commissioner))
	current, err = f.service.Shipment(sh.ID, f.supplier)
	require.NoError(t, err)
	assert.Equal(t, interfaces.FundsLocked, current.FundsStatus)
	assert.True(t, f.ledger.Locked(current.EscrowAddress))

	// A further deposit conflicts with the locked state.
	err = f.service.DepositFunds(context.Background(), sh.ID, big.NewInt(1), f.commissioner)
	assert.ErrorIs(t, err, interfaces.ErrStateConflict)
}

func TestDepositFundsRequiresPhase3(t *testing.T) {
	f := newServiceFixture(t)
	sh := f.createShipment(t, false)

	err := f.service.DepositFunds(context.Background(), sh.ID, big.NewInt(100), f.commissioner)
	assert.ErrorIs(t, err, interfaces.ErrStateConflict)
}

func TestDepositFundsLedgerUnavailable(t *testing.T) {
	f := newServiceFixture(t)
	sh := f.createShipment(t, false)
	advanceToPhase3(t, f, sh.ID)
	f.addApproved(t, sh.ID, interfaces.DocumentBookingConfirmation)

	f.ledger.SetFailing(true)
	err := f.service.DepositFunds(context.Background(), sh.ID, big.NewInt(500), f.commissioner)
	assert.ErrorIs(t, err, interfaces.ErrUnavailable)

	// A failed ledger call must not move the funds status.
	current, getErr := f.service.Shipment(sh.ID, f.supplier)
	require.NoError(t, getErr)
	assert.Equal(t, interfaces.FundsNotLocked, current.FundsStatus)
}

func TestLockAndUnlockFunds(t *testing.T) {
	f := newServiceFixture(t)
	sh := f.createShipment(t, false)

	require.NoError(t, f.service.LockFunds(context.Background(), sh.ID, f.supplier))
	current, err := f.service.Shipment(sh.ID, f.supplier)
	require.NoError(t, err)
	assert.Equal(t, interfaces.FundsLocked, current.FundsStatus)

	err = f.service.LockFunds(context.Background(), sh.ID, f.supplier)
	assert.ErrorIs(t, err, interfaces.ErrStateConflict)

	require.NoError(t, f.service.UnlockFunds(context.Background(), sh.ID, f.supplier))
	current, err = f.service.Shipment(sh.ID, f.supplier)
	require.NoError(t, err)
	assert.Equal(t, interfaces.FundsReleased, current.FundsStatus)
	assert.True(t, f.ledger.Released(current.EscrowAddress))

	err = f.service.UnlockFunds(context.Background(), sh.ID, f.supplier)
	assert.ErrorIs(t, err, interfaces.ErrStateConflict)
}

func TestShipmentReturnsSnapshot(t *testing.T) {
	f := newServiceFixture(t)
	sh := f.createShipment(t, false)

	before, err := f.service.Shipment(sh.ID, f.supplier)
	require.NoError(t, err)

	_, err = f.service.AddDocument(sh.ID, interfaces.DocumentExportInvoice, "file:///docs/invoice.pdf", f.supplier)
	require.NoError(t, err)
	assert.Empty(t, before.Documents[interfaces.DocumentExportInvoice],
		"a returned shipment is a snapshot, not the live aggregate")

	// Mutating the snapshot must not leak back into the store.
	before.Documents[interfaces.DocumentGeneric] = []interfaces.DocumentInfo{{ID: "rogue"}}
	docs, err := f.service.DocumentsByType(sh.ID, interfaces.DocumentGeneric, f.supplier)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestShipmentEncodableDuringUploads(t *testing.T) {
	f := newServiceFixture(t)
	sh := f.createShipment(t, false)

	// Encoding a returned shipment must be safe while uploads mutate the
	// document index. The race detector flags any aliasing of the index.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			_, err := f.service.AddDocument(sh.ID, interfaces.DocumentGeneric, "file:///docs/misc.pdf", f.supplier)
			assert.NoError(t, err)
		}
	}()

	for i := 0; i < 100; i++ {
		current, err := f.service.Shipment(sh.ID, f.supplier)
		require.NoError(t, err)
		_, err = json.Marshal(current)
		require.NoError(t, err)
	}
	<-done

	listed := f.service.Shipments(f.supplier)
	require.Len(t, listed, 1)
	assert.Len(t, listed[0].Documents[interfaces.DocumentGeneric], 100)
}

func TestInterestedPartyFilter(t *testing.T) {
	f := newServiceFixture(t)
	sh := f.createShipment(t, false)

	_, err := f.service.Shipment(sh.ID, f.outsider)
	assert.ErrorIs(t, err, interfaces.ErrAccessDenied)

	assert.Empty(t, f.service.Shipments(f.outsider))
	assert.Len(t, f.service.Shipments(f.commissioner), 1)

	_, err = f.service.Shipment("no-such-shipment", f.supplier)
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
}

func TestCreateRequiresParticipation(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.service.Create(f.supplier.CompanyAddress, f.commissioner.CompanyAddress, testAddr(t, 3), false, f.outsider)
	assert.ErrorIs(t, err, interfaces.ErrAccessDenied)
	assert.True(t, errors.Is(err, interfaces.ErrAccessDenied))
}
