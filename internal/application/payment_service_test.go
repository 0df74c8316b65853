package application

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bookingDomain "github.com/resbook/service-booking/internal/domain/booking"
	paymentDomain "github.com/resbook/service-booking/internal/domain/payment"
	"github.com/resbook/service-booking/internal/domain/principal"
	"github.com/resbook/service-booking/internal/provider"
	"github.com/resbook/service-booking/pkg/domain"
	"github.com/resbook/service-booking/pkg/events"
)

func TestStartPayment_Success(t *testing.T) {
	f := newFixture()
	bk := f.draft(f.alice, f.addResource(true), 0, 1)

	dto, err := f.payments.StartPayment(context.Background(), f.alice, cardPayment(bk.ID, ""))
	require.NoError(t, err)

	assert.Equal(t, "SUCCESS", dto.Status)
	assert.Equal(t, "100.00", dto.Amount)
	assert.Equal(t, "USD", dto.Currency)

	stored := f.storedBooking(bk.ID)
	assert.Equal(t, bookingDomain.StatusConfirmed, stored.Status())
	require.NotNil(t, stored.PaidAt())
	require.NotNil(t, stored.PaidBy())
	assert.Equal(t, "alice@example.com", *stored.PaidBy())

	assert.Equal(t, []string{
		events.BookingCreated,
		events.PaymentStarted,
		events.PaymentSucceeded,
		events.BookingConfirmed,
	}, f.publisher.types())
}

func TestStartPayment_FinalizesAfterCallerCancels(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client := &scriptedClient{
		provider: paymentDomain.ProviderCard,
		ok:       true,
		onCharge: func(context.Context) { cancel() },
	}
	f := newFixture(client)
	bk := f.draft(f.alice, f.addResource(true), 0, 1)

	dto, err := f.payments.StartPayment(ctx, f.alice, cardPayment(bk.ID, ""))
	require.NoError(t, err)
	require.Error(t, ctx.Err())

	assert.Equal(t, "SUCCESS", dto.Status)
	assert.Equal(t, bookingDomain.StatusConfirmed, f.bookingStatus(bk.ID))
	assert.Equal(t, paymentDomain.StatusSuccess, f.paymentsFor(bk.ID)[0].Status())
}

func TestStartPayment_CancelledBeforeReserve(t *testing.T) {
	f := newFixture()
	bk := f.draft(f.alice, f.addResource(true), 0, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.payments.StartPayment(ctx, f.alice, cardPayment(bk.ID, ""))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, bookingDomain.StatusDraft, f.bookingStatus(bk.ID))
	assert.Empty(t, f.paymentsFor(bk.ID))
}

func TestStartPayment_Declined(t *testing.T) {
	f := newFixture()
	bk := f.draft(f.alice, f.addResource(true), 0, 1)

	dto, err := f.payments.StartPayment(context.Background(), f.alice, cardPayment(bk.ID, `{"forceFail":true}`))
	require.NoError(t, err)

	assert.Equal(t, "FAILED", dto.Status)
	assert.Equal(t, bookingDomain.StatusCanceled, f.bookingStatus(bk.ID))
	assert.Nil(t, f.storedBooking(bk.ID).PaidAt())
	assert.Contains(t, f.publisher.types(), events.PaymentFailed)
	assert.Contains(t, f.publisher.types(), events.BookingCancelled)
}

func TestStartPayment_PaypalDeclined(t *testing.T) {
	f := newFixture()
	bk := f.draft(f.alice, f.addResource(true), 0, 1)

	req := cardPayment(bk.ID, `{"note":"please fail"}`)
	req.Provider = "paypal"
	req.Type = "deferred"
	req.Currency = "eur"

	dto, err := f.payments.StartPayment(context.Background(), f.alice, req)
	require.NoError(t, err)
	assert.Equal(t, "FAILED", dto.Status)
	assert.Equal(t, "PAYPAL", dto.Provider)
	assert.Equal(t, "EUR", dto.Currency)
}

func TestStartPayment_ValidationLeavesStateUntouched(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*StartPaymentRequest)
		code   string
	}{
		{"unknown provider", func(r *StartPaymentRequest) { r.Provider = "BITCOIN" }, paymentDomain.CodeUnknownProvider},
		{"unregistered provider", func(r *StartPaymentRequest) { r.Provider = "PAYPAL" }, paymentDomain.CodeUnknownProvider},
		{"bad amount", func(r *StartPaymentRequest) { r.Amount = "10.001" }, paymentDomain.CodeInvalidAmount},
		{"negative amount", func(r *StartPaymentRequest) { r.Amount = "-5" }, paymentDomain.CodeInvalidAmount},
		{"bad currency", func(r *StartPaymentRequest) { r.Currency = "DOLLARS" }, paymentDomain.CodeInvalidCurrency},
		{"bad payload", func(r *StartPaymentRequest) { r.Payload = "{not json" }, paymentDomain.CodeInvalidPayload},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(provider.NewCardClient())
			bk := f.draft(f.alice, f.addResource(true), 0, 1)

			req := cardPayment(bk.ID, "")
			tt.mutate(&req)
			_, err := f.payments.StartPayment(context.Background(), f.alice, req)
			require.Error(t, err)
			assert.True(t, domain.HasCode(err, tt.code), err.Error())
			assert.Equal(t, domain.KindValidation, domain.KindOf(err))

			assert.Equal(t, bookingDomain.StatusDraft, f.bookingStatus(bk.ID))
			assert.Empty(t, f.paymentsFor(bk.ID))
		})
	}
}

func TestStartPayment_UnknownProviderNamesIt(t *testing.T) {
	f := newFixture(provider.NewCardClient())
	bk := f.draft(f.alice, f.addResource(true), 0, 1)

	req := cardPayment(bk.ID, "")
	req.Provider = "PAYPAL"
	_, err := f.payments.StartPayment(context.Background(), f.alice, req)
	assert.ErrorContains(t, err, "No client for provider: PAYPAL")
}

func TestStartPayment_AccessAndStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("stranger", func(t *testing.T) {
		f := newFixture()
		bk := f.draft(f.alice, f.addResource(true), 0, 1)

		_, err := f.payments.StartPayment(ctx, f.bob, cardPayment(bk.ID, ""))
		assert.True(t, domain.IsForbidden(err))
		assert.Equal(t, bookingDomain.StatusDraft, f.bookingStatus(bk.ID))
	})

	t.Run("admin pays for someone else", func(t *testing.T) {
		f := newFixture()
		bk := f.draft(f.alice, f.addResource(true), 0, 1)

		_, err := f.payments.StartPayment(ctx, f.admin, cardPayment(bk.ID, ""))
		require.NoError(t, err)
		assert.Equal(t, "admin@example.com", *f.storedBooking(bk.ID).PaidBy())
	})

	t.Run("not a draft", func(t *testing.T) {
		f := newFixture()
		bk := f.draft(f.alice, f.addResource(true), 0, 1)
		_, err := f.bookings.Cancel(ctx, f.alice, bk.ID)
		require.NoError(t, err)

		_, err = f.payments.StartPayment(ctx, f.alice, cardPayment(bk.ID, ""))
		require.Error(t, err)
		de, _ := domain.AsDomainError(err)
		assert.Equal(t, domain.CodeInvalidStatus, de.Code)
		assert.Equal(t, "DRAFT", de.Details["expected"])
		assert.Empty(t, f.paymentsFor(bk.ID))
	})

	t.Run("missing booking", func(t *testing.T) {
		f := newFixture()
		_, err := f.payments.StartPayment(ctx, f.alice, cardPayment(uuid.New(), ""))
		assert.True(t, domain.IsNotFound(err))
	})
}

func TestStartPayment_ProviderErrorLeavesPaymentInProgress(t *testing.T) {
	boom := errors.New("provider timeout")
	client := &scriptedClient{provider: paymentDomain.ProviderCard, err: boom}
	f := newFixture(client)
	bk := f.draft(f.alice, f.addResource(true), 0, 1)

	_, err := f.payments.StartPayment(context.Background(), f.alice, cardPayment(bk.ID, ""))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	assert.Equal(t, bookingDomain.StatusWaitingPayment, f.bookingStatus(bk.ID))
	pays := f.paymentsFor(bk.ID)
	require.Len(t, pays, 1)
	assert.Equal(t, paymentDomain.StatusNew, pays[0].Status())

	// Reconciliation finalizes it later as the system.
	dto, err := f.payments.FinalizePayment(context.Background(), principal.System("reconciler"), pays[0].ID(), true)
	require.NoError(t, err)
	assert.Equal(t, "SUCCESS", dto.Status)

	stored := f.storedBooking(bk.ID)
	assert.Equal(t, bookingDomain.StatusConfirmed, stored.Status())
	assert.Equal(t, "reconciler", *stored.PaidBy())
}

func TestFinalizePayment_MissingPaymentIsInternal(t *testing.T) {
	f := newFixture()
	_, err := f.payments.FinalizePayment(context.Background(), principal.System(""), uuid.New(), true)
	require.Error(t, err)
	assert.Equal(t, domain.KindInternal, domain.KindOf(err))
	assert.True(t, domain.HasCode(err, paymentDomain.CodePaymentNotFound))
}

func TestFinalizePayment_Twice(t *testing.T) {
	f := newFixture()
	bk := f.draft(f.alice, f.addResource(true), 0, 1)
	dto, err := f.payments.StartPayment(context.Background(), f.alice, cardPayment(bk.ID, ""))
	require.NoError(t, err)
	paidAt := *f.storedBooking(bk.ID).PaidAt()

	_, err = f.payments.FinalizePayment(context.Background(), principal.System(""), dto.ID, true)
	require.Error(t, err)
	_, err = f.payments.FinalizePayment(context.Background(), principal.System(""), dto.ID, false)
	require.Error(t, err)

	stored := f.storedBooking(bk.ID)
	assert.Equal(t, bookingDomain.StatusConfirmed, stored.Status())
	assert.True(t, paidAt.Equal(*stored.PaidAt()))
	assert.Equal(t, paymentDomain.StatusSuccess, f.paymentsFor(bk.ID)[0].Status())
}

func TestFinalizePayment_StrangerDenied(t *testing.T) {
	client := &scriptedClient{provider: paymentDomain.ProviderCard, err: errors.New("down")}
	f := newFixture(client)
	bk := f.draft(f.alice, f.addResource(true), 0, 1)
	_, err := f.payments.StartPayment(context.Background(), f.alice, cardPayment(bk.ID, ""))
	require.Error(t, err)
	pay := f.paymentsFor(bk.ID)[0]

	_, err = f.payments.FinalizePayment(context.Background(), f.bob, pay.ID(), true)
	assert.True(t, domain.IsForbidden(err))
	assert.Equal(t, bookingDomain.StatusWaitingPayment, f.bookingStatus(bk.ID))
}

// A booking canceled while the charge is in flight cannot be confirmed; the
// finalize transaction rolls back as a whole and the payment stays NEW.
func TestFinalizePayment_IsAtomic(t *testing.T) {
	client := &scriptedClient{provider: paymentDomain.ProviderCard, ok: true}
	f := newFixture(client)
	bk := f.draft(f.alice, f.addResource(true), 0, 1)
	client.onCharge = func(ctx context.Context) {
		_, err := f.bookings.Cancel(ctx, f.alice, bk.ID)
		require.NoError(t, err)
	}

	_, err := f.payments.StartPayment(context.Background(), f.alice, cardPayment(bk.ID, ""))
	require.Error(t, err)
	assert.Equal(t, domain.KindInvalidState, domain.KindOf(err))

	assert.Equal(t, bookingDomain.StatusCanceled, f.bookingStatus(bk.ID))
	pays := f.paymentsFor(bk.ID)
	require.Len(t, pays, 1)
	assert.Equal(t, paymentDomain.StatusNew, pays[0].Status())
	assert.Equal(t, int64(1), pays[0].Version())
}

func TestFinalizePayment_FailedLeavesCanceledBooking(t *testing.T) {
	client := &scriptedClient{provider: paymentDomain.ProviderCard, ok: false}
	f := newFixture(client)
	bk := f.draft(f.alice, f.addResource(true), 0, 1)
	client.onCharge = func(ctx context.Context) {
		_, err := f.bookings.Cancel(ctx, f.alice, bk.ID)
		require.NoError(t, err)
	}

	dto, err := f.payments.StartPayment(context.Background(), f.alice, cardPayment(bk.ID, ""))
	require.NoError(t, err)
	assert.Equal(t, "FAILED", dto.Status)
	assert.Equal(t, bookingDomain.StatusCanceled, f.bookingStatus(bk.ID))
}

func TestStartPayment_RacingAttemptsOnSameSlot(t *testing.T) {
	f := newFixture()
	res := f.addResource(true)
	const n = 8

	users := make([]principal.Principal, n)
	drafts := make([]*BookingDTO, n)
	for i := range users {
		users[i] = principal.New(uuid.New(), uuid.NewString()+"@example.com", false)
		f.addUser(users[i], "USER")
		// Overlapping but not identical intervals.
		drafts[i] = f.draft(users[i], res, i%2, 2)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for i := range drafts {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.payments.StartPayment(context.Background(), users[i], cardPayment(drafts[i].ID, ""))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case domain.HasCode(err, bookingDomain.CodeBookingConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, n-1, conflicts)

	var blocking int
	for _, d := range drafts {
		if f.bookingStatus(d.ID).Blocks() {
			blocking++
		}
		if f.bookingStatus(d.ID) == bookingDomain.StatusDraft {
			assert.Empty(t, f.paymentsFor(d.ID), "losing attempts leave no payment behind")
		}
	}
	assert.Equal(t, 1, blocking)
}

func TestPaymentListing(t *testing.T) {
	f := newFixture()
	res := f.addResource(true)
	ctx := context.Background()

	mine := f.draft(f.alice, res, 0, 1)
	theirs := f.draft(f.bob, res, 2, 1)
	_, err := f.payments.StartPayment(ctx, f.alice, cardPayment(mine.ID, ""))
	require.NoError(t, err)
	_, err = f.payments.StartPayment(ctx, f.bob, cardPayment(theirs.ID, `{"forceFail":true}`))
	require.NoError(t, err)

	list, err := f.payments.ListByBooking(ctx, f.alice, mine.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = f.payments.ListByBooking(ctx, f.alice, theirs.ID)
	assert.True(t, domain.IsForbidden(err))

	_, err = f.payments.ListByBooking(ctx, f.alice, uuid.New())
	assert.True(t, domain.IsNotFound(err))

	own, err := f.payments.ListMine(ctx, f.bob)
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, theirs.ID, own[0].BookingID)

	_, err = f.payments.ListAll(ctx, f.alice)
	assert.True(t, domain.IsForbidden(err))
	all, err := f.payments.ListAll(ctx, f.admin)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
