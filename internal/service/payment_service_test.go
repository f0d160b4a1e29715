package service

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/nurpe/condo-ledger/internal/model"
)

type paymentFixture struct {
	*fixture
	unit     *model.Unit
	resident model.Principal
	due      model.UnitDue
}

func newPaymentFixture(t *testing.T, dueDate time.Time) *paymentFixture {
	t.Helper()
	f := newFixture(t)
	b := f.building(t, false)
	u := f.unit(t, b.ID, "101", "100")
	p := f.period(t, b.ID, "85000", dueDate)
	dues, err := f.billing.AllocateToAllUnits(f.ctx, f.admin, p.ID)
	require.NoError(t, err)
	require.Len(t, dues, 1)
	return &paymentFixture{fixture: f, unit: u, resident: resident(u), due: dues[0]}
}

func (pf *paymentFixture) submit(t *testing.T) (*model.Payment, error) {
	t.Helper()
	return pf.payments.SubmitPayment(pf.ctx, pf.resident, SubmitPaymentInput{
		DueID:    pf.due.ID,
		Amount:   decimal.NewFromInt(85000),
		Method:   model.PaymentMethodTransfer,
		ProofURI: "proofs/" + uuid.NewString() + ".jpg",
	})
}

func (pf *paymentFixture) currentDue(t *testing.T) *model.UnitDue {
	t.Helper()
	due, err := pf.store.Billing.GetDue(pf.ctx, pf.due.ID)
	require.NoError(t, err)
	return due
}

func TestSubmitAndConfirm(t *testing.T) {
	pf := newPaymentFixture(t, time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC))

	payment, err := pf.submit(t)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPending, payment.Status)
	assert.Equal(t, model.DueStatusPending, pf.currentDue(t).Status)

	submitted := pf.events(t, payment.ID)
	require.Len(t, submitted, 1)
	assert.Equal(t, model.EventPaymentSubmitted, submitted[0].EventType)
	assert.Equal(t, model.RecipientBuildingAdmins, submitted[0].RecipientKind)

	due, err := pf.payments.ConfirmPayment(pf.ctx, pf.admin, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DueStatusPaid, due.Status)
	require.NotNil(t, due.PaidAt)
	assert.True(t, due.PaidAt.Equal(testNow))

	stored, err := pf.payments.GetPayment(pf.ctx, pf.admin, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusConfirmed, stored.Status)
	require.NotNil(t, stored.ReviewedBy)
	assert.Equal(t, pf.admin.UserID, *stored.ReviewedBy)
	require.NotNil(t, stored.PaidAt)

	// confirming again is a no-op
	pf.now = testNow.Add(time.Hour)
	again, err := pf.payments.ConfirmPayment(pf.ctx, pf.admin, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DueStatusPaid, again.Status)
	require.NotNil(t, again.PaidAt)
	assert.True(t, again.PaidAt.Equal(testNow))

	var confirmed int
	for _, e := range pf.events(t, payment.ID) {
		if e.EventType == model.EventPaymentConfirmed {
			confirmed++
		}
	}
	assert.Equal(t, 1, confirmed)

	_, err = pf.submit(t)
	assert.ErrorIs(t, err, ErrUnitAlreadyPaid)
}

func TestSecondPendingSubmissionRejected(t *testing.T) {
	pf := newPaymentFixture(t, time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC))

	first, err := pf.submit(t)
	require.NoError(t, err)

	_, err = pf.submit(t)
	assert.ErrorIs(t, err, ErrPendingPaymentExists)

	reason := "comprobante ilegible"
	rejected, err := pf.payments.RejectPayment(pf.ctx, pf.admin, first.ID, &reason)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusRejected, rejected.Status)
	require.NotNil(t, rejected.RejectionReason)
	assert.Equal(t, reason, *rejected.RejectionReason)
	assert.Equal(t, model.DueStatusPending, pf.currentDue(t).Status)

	second, err := pf.submit(t)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPending, second.Status)

	history, err := pf.payments.ListPayments(pf.ctx, pf.resident, pf.due.ID)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestReviewStateErrors(t *testing.T) {
	pf := newPaymentFixture(t, time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC))

	first, err := pf.submit(t)
	require.NoError(t, err)
	_, err = pf.payments.RejectPayment(pf.ctx, pf.admin, first.ID, nil)
	require.NoError(t, err)

	again, err := pf.payments.RejectPayment(pf.ctx, pf.admin, first.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusRejected, again.Status)
	assert.Len(t, pf.events(t, first.ID), 2, "submitted and a single rejected event")

	_, err = pf.payments.ConfirmPayment(pf.ctx, pf.admin, first.ID)
	assert.ErrorIs(t, err, ErrInvalidState)

	second, err := pf.submit(t)
	require.NoError(t, err)
	_, err = pf.payments.ConfirmPayment(pf.ctx, pf.admin, second.ID)
	require.NoError(t, err)

	_, err = pf.payments.RejectPayment(pf.ctx, pf.admin, second.ID, nil)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestReviewRequiresBuildingAdmin(t *testing.T) {
	pf := newPaymentFixture(t, time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC))
	payment, err := pf.submit(t)
	require.NoError(t, err)

	_, err = pf.payments.ConfirmPayment(pf.ctx, pf.resident, payment.ID)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	otherAdmin := model.Principal{UserID: uuid.New(), Role: model.RoleAdmin, BuildingIDs: []uuid.UUID{uuid.New()}}
	_, err = pf.payments.RejectPayment(pf.ctx, otherAdmin, payment.ID, nil)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	_, err = pf.payments.ConfirmPayment(pf.ctx, pf.admin, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSubmitValidation(t *testing.T) {
	pf := newPaymentFixture(t, time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC))
	neighbour := pf.unit
	other := pf.fixture.unit(t, neighbour.BuildingID, "102", "0")

	cases := []struct {
		name  string
		actor model.Principal
		input SubmitPaymentInput
		want  error
	}{
		{"zero amount", pf.resident, SubmitPaymentInput{DueID: pf.due.ID, Amount: decimal.Zero, ProofURI: "x"}, ErrInvalidInput},
		{"amount finer than column", pf.resident, SubmitPaymentInput{DueID: pf.due.ID, Amount: decimal.RequireFromString("1.00001"), ProofURI: "x"}, ErrInvalidInput},
		{"missing proof", pf.resident, SubmitPaymentInput{DueID: pf.due.ID, Amount: decimal.NewFromInt(1)}, ErrInvalidInput},
		{"bad method", pf.resident, SubmitPaymentInput{DueID: pf.due.ID, Amount: decimal.NewFromInt(1), ProofURI: "x", Method: "bitcoin"}, ErrInvalidInput},
		{"other unit", resident(other), SubmitPaymentInput{DueID: pf.due.ID, Amount: decimal.NewFromInt(1), ProofURI: "x"}, ErrPermissionDenied},
		{"unknown due", pf.resident, SubmitPaymentInput{DueID: uuid.New(), Amount: decimal.NewFromInt(1), ProofURI: "x"}, ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := pf.payments.SubmitPayment(pf.ctx, tc.actor, tc.input)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestManualPayment(t *testing.T) {
	pf := newPaymentFixture(t, time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC))

	_, err := pf.payments.RecordManualPayment(pf.ctx, pf.resident, ManualPaymentInput{
		DueID: pf.due.ID, Amount: decimal.NewFromInt(85000),
	})
	assert.ErrorIs(t, err, ErrPermissionDenied)

	payment, err := pf.payments.RecordManualPayment(pf.ctx, pf.admin, ManualPaymentInput{
		DueID:  pf.due.ID,
		Amount: decimal.NewFromInt(85000),
		Method: model.PaymentMethodCash,
	})
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusConfirmed, payment.Status)
	assert.Nil(t, payment.ProofURI)

	due := pf.currentDue(t)
	assert.Equal(t, model.DueStatusPaid, due.Status)
	require.NotNil(t, due.PaidAt)

	_, err = pf.payments.RecordManualPayment(pf.ctx, pf.admin, ManualPaymentInput{
		DueID: pf.due.ID, Amount: decimal.NewFromInt(85000),
	})
	assert.ErrorIs(t, err, ErrUnitAlreadyPaid)
}

func TestManualPaymentBlockedByPendingProof(t *testing.T) {
	pf := newPaymentFixture(t, time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC))
	_, err := pf.submit(t)
	require.NoError(t, err)

	_, err = pf.payments.RecordManualPayment(pf.ctx, pf.admin, ManualPaymentInput{
		DueID: pf.due.ID, Amount: decimal.NewFromInt(85000),
	})
	assert.ErrorIs(t, err, ErrPendingPaymentExists)
	assert.Equal(t, model.DueStatusPending, pf.currentDue(t).Status)
}

func TestMarkOverdue(t *testing.T) {
	pf := newPaymentFixture(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC))

	n, err := pf.payments.MarkOverdue(pf.ctx, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Zero(t, n, "due date itself is not overdue")

	n, err = pf.payments.MarkOverdue(pf.ctx, pf.now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, model.DueStatusOverdue, pf.currentDue(t).Status)

	n, err = pf.payments.MarkOverdue(pf.ctx, pf.now)
	require.NoError(t, err)
	assert.Zero(t, n)

	// an overdue due can still be settled
	payment, err := pf.submit(t)
	require.NoError(t, err)
	due, err := pf.payments.ConfirmPayment(pf.ctx, pf.admin, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DueStatusPaid, due.Status)

	n, err = pf.payments.MarkOverdue(pf.ctx, pf.now.Add(48*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, model.DueStatusPaid, pf.currentDue(t).Status)
}

func TestPendingPaymentUniqueIndex(t *testing.T) {
	pf := newPaymentFixture(t, time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC))

	newPending := func() model.Payment {
		proof := "proof.png"
		return model.Payment{
			ID:        uuid.New(),
			DueID:     pf.due.ID,
			Amount:    decimal.NewFromInt(85000),
			Method:    model.PaymentMethodTransfer,
			ProofURI:  &proof,
			Status:    model.PaymentStatusPending,
			CreatedBy: pf.resident.UserID,
			CreatedAt: testNow,
		}
	}

	require.NoError(t, pf.store.Payments.CreatePayment(pf.ctx, newPending()))
	err := pf.store.Payments.CreatePayment(pf.ctx, newPending())
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}

func TestListPendingPayments(t *testing.T) {
	pf := newPaymentFixture(t, time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC))
	payment, err := pf.submit(t)
	require.NoError(t, err)

	queue, err := pf.payments.ListPendingPayments(pf.ctx, pf.admin, pf.unit.BuildingID)
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.Equal(t, payment.ID, queue[0].ID)

	_, err = pf.payments.ListPendingPayments(pf.ctx, pf.resident, pf.unit.BuildingID)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	_, err = pf.payments.ConfirmPayment(pf.ctx, pf.admin, payment.ID)
	require.NoError(t, err)
	queue, err = pf.payments.ListPendingPayments(pf.ctx, pf.admin, pf.unit.BuildingID)
	require.NoError(t, err)
	assert.Empty(t, queue)
}

func TestConcurrentSubmissionsKeepOnePending(t *testing.T) {
	pf := newPaymentFixture(t, time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC))

	const n = 8
	errs := concurrently(n, func(int) error {
		_, err := pf.submit(t)
		return err
	})

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrPendingPaymentExists)
	}
	assert.Equal(t, 1, succeeded)

	queue, err := pf.payments.ListPendingPayments(pf.ctx, pf.admin, pf.unit.BuildingID)
	require.NoError(t, err)
	assert.Len(t, queue, 1)
	assert.Equal(t, int64(1), pf.countEvents(t, model.EventPaymentSubmitted))
}

func TestConfirmRejectsProofForSettledDue(t *testing.T) {
	pf := newPaymentFixture(t, time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC))
	payment, err := pf.submit(t)
	require.NoError(t, err)

	// settled without going through the proof
	affected, err := pf.store.Billing.MarkDuePaid(pf.ctx, pf.due.ID, testNow)
	require.NoError(t, err)
	require.Equal(t, int64(1), affected)

	_, err = pf.payments.ConfirmPayment(pf.ctx, pf.admin, payment.ID)
	assert.ErrorIs(t, err, ErrUnitAlreadyPaid)

	stored, err := pf.payments.GetPayment(pf.ctx, pf.admin, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusRejected, stored.Status)
	require.NotNil(t, stored.RejectionReason)
	assert.Equal(t, "due already paid", *stored.RejectionReason)

	queue, err := pf.payments.ListPendingPayments(pf.ctx, pf.admin, pf.unit.BuildingID)
	require.NoError(t, err)
	assert.Empty(t, queue)

	events := pf.events(t, payment.ID)
	require.Len(t, events, 2)
	assert.ElementsMatch(t,
		[]model.EventType{model.EventPaymentSubmitted, model.EventPaymentRejected},
		[]model.EventType{events[0].EventType, events[1].EventType})
}
