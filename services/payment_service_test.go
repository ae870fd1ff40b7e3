package services

import (
	"context"
	"errors"
	"testing"

	apperrors "github.com/aamamun24/FineMed-Server/common/errors"
	"github.com/aamamun24/FineMed-Server/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type paymentFixture struct {
	svc      *PaymentService
	orders   *fakeOrders
	gateway  *mockGateway
	dedup    *mockDedup
	notifier *mockNotifier
	events   *mockPublisher
}

func newPaymentFixture(t *testing.T) *paymentFixture {
	t.Helper()
	f := &paymentFixture{
		orders:   newFakeOrders(),
		gateway:  &mockGateway{},
		dedup:    &mockDedup{},
		notifier: &mockNotifier{},
		events:   &mockPublisher{},
	}
	f.notifier.On("Notify", mock.Anything, mock.Anything).Return(nil).Maybe()
	f.events.On("Publish", mock.Anything, mock.Anything).Return(nil).Maybe()
	f.svc = NewPaymentService(f.orders, f.gateway, f.dedup, f.events, f.notifier, nil, "https://finemed.test/", zap.NewNop())
	f.svc.async = runInline
	return f
}

func (f *paymentFixture) seed(t *testing.T, status models.OrderStatus, total string) *models.Order {
	t.Helper()
	o := &models.Order{
		UserEmail:     customerEmail,
		UserName:      "Rahim",
		TotalPrice:    mustDecimal(total),
		Currency:      "bdt",
		PaymentMethod: models.PaymentGateway,
		Status:        status,
		TransactionID: "FM-" + uuid.NewString()[:8],
		Items:         []models.OrderItem{{ProductID: uuid.New(), Quantity: 1, UnitPrice: mustDecimal(total)}},
	}
	require.NoError(t, f.orders.Create(context.Background(), o))
	return o
}

func TestOnPaymentSuccess(t *testing.T) {
	tests := []struct {
		from models.OrderStatus
		want models.OrderStatus
	}{
		{models.StatusPending, models.StatusPaid},
		{models.StatusUnpaid, models.StatusPaid},
		{models.StatusPaid, models.StatusPaid},
		{models.StatusShipped, models.StatusShipped},
		{models.StatusCancelled, models.StatusCancelled},
	}
	for _, tt := range tests {
		t.Run(string(tt.from), func(t *testing.T) {
			f := newPaymentFixture(t)
			o := f.seed(t, tt.from, "10.00")
			f.gateway.On("ConfirmPayment", mock.Anything, o.TransactionID, "cs_1").Return(true, nil).Maybe()

			url, err := f.svc.OnPaymentSuccess(context.Background(), o.TransactionID, "cs_1")
			require.NoError(t, err)
			assert.Equal(t, "https://finemed.test/payment-success/"+o.TransactionID, url)
			assert.Equal(t, tt.want, f.orders.status(o.ID))
		})
	}
}

func TestOnPaymentSuccess_UnconfirmedLeavesOrderForNotification(t *testing.T) {
	tests := []struct {
		name      string
		reference string
		confirmed bool
		err       error
	}{
		{"no session reference", "", false, nil},
		{"session not paid", "cs_open", false, nil},
		{"gateway unreachable", "cs_1", false, errors.New("stripe: connection reset")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPaymentFixture(t)
			o := f.seed(t, models.StatusPending, "10.00")
			f.gateway.On("ConfirmPayment", mock.Anything, o.TransactionID, tt.reference).Return(tt.confirmed, tt.err).Once()

			url, err := f.svc.OnPaymentSuccess(context.Background(), o.TransactionID, tt.reference)
			require.NoError(t, err)
			assert.Equal(t, "https://finemed.test/payment-success/"+o.TransactionID, url)
			assert.Equal(t, models.StatusPending, f.orders.status(o.ID))
			f.events.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
			f.gateway.AssertExpectations(t)
		})
	}
}

func TestOnPaymentSuccess_NotifiesOnce(t *testing.T) {
	f := newPaymentFixture(t)
	o := f.seed(t, models.StatusPending, "10.00")
	ctx := context.Background()
	f.gateway.On("ConfirmPayment", mock.Anything, o.TransactionID, "cs_1").Return(true, nil).Once()

	_, err := f.svc.OnPaymentSuccess(ctx, o.TransactionID, "cs_1")
	require.NoError(t, err)
	_, err = f.svc.OnPaymentSuccess(ctx, o.TransactionID, "cs_1")
	require.NoError(t, err)

	f.notifier.AssertNumberOfCalls(t, "Notify", 1)
	f.events.AssertNumberOfCalls(t, "Publish", 1)
	f.events.AssertCalled(t, "Publish", mock.Anything, mock.MatchedBy(func(e models.OrderEvent) bool {
		return e.Status == models.StatusPaid && e.PreviousStatus == models.StatusPending
	}))
}

func TestOnPaymentFailure(t *testing.T) {
	tests := []struct {
		from models.OrderStatus
		want models.OrderStatus
	}{
		{models.StatusPending, models.StatusUnpaid},
		{models.StatusUnpaid, models.StatusUnpaid},
		{models.StatusPaid, models.StatusPaid},
		{models.StatusDelivered, models.StatusDelivered},
	}
	for _, tt := range tests {
		t.Run(string(tt.from), func(t *testing.T) {
			f := newPaymentFixture(t)
			o := f.seed(t, tt.from, "10.00")

			url, err := f.svc.OnPaymentFailure(context.Background(), o.TransactionID)
			require.NoError(t, err)
			assert.Equal(t, "https://finemed.test/payment-fail/"+o.TransactionID, url)
			assert.Equal(t, tt.want, f.orders.status(o.ID))
		})
	}
}

func TestOnPaymentCancel(t *testing.T) {
	f := newPaymentFixture(t)
	unpaid := f.seed(t, models.StatusUnpaid, "10.00")
	paid := f.seed(t, models.StatusPaid, "10.00")
	ctx := context.Background()

	url, err := f.svc.OnPaymentCancel(ctx, unpaid.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, "https://finemed.test/payment-cancel/"+unpaid.TransactionID, url)
	assert.Equal(t, models.StatusPending, f.orders.status(unpaid.ID))

	_, err = f.svc.OnPaymentCancel(ctx, paid.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPaid, f.orders.status(paid.ID))
}

func TestPaymentCallback_UnknownTransaction(t *testing.T) {
	f := newPaymentFixture(t)
	_, err := f.svc.OnPaymentSuccess(context.Background(), "FM-missing", "cs_1")
	assert.ErrorIs(t, err, apperrors.ErrTransactionNotFound)
}

func TestOnPaymentNotify_Processes(t *testing.T) {
	f := newPaymentFixture(t)
	o := f.seed(t, models.StatusPending, "45.50")
	payload, sig := []byte(`{}`), "t=1,v1=x"

	f.gateway.On("ParseNotification", payload, sig).Return(&PaymentNotification{
		EventID: "evt_1", Outcome: PaymentSucceeded, TransactionID: o.TransactionID, AmountMinor: 4550, Currency: "BDT",
	}, nil)
	f.dedup.On("Claim", mock.Anything, "ipn:evt_1", notificationDedupTTL).Return(true, nil).Once()

	res, err := f.svc.OnPaymentNotify(context.Background(), payload, sig)
	require.NoError(t, err)
	assert.Equal(t, NotifyProcessed, res.Status)
	assert.Equal(t, o.ID.String(), res.OrderID)
	assert.Equal(t, models.StatusPaid, f.orders.status(o.ID))
	f.dedup.AssertExpectations(t)
}

func TestOnPaymentNotify_Duplicate(t *testing.T) {
	f := newPaymentFixture(t)
	o := f.seed(t, models.StatusPending, "45.50")
	payload := []byte(`{}`)

	f.gateway.On("ParseNotification", payload, "sig").Return(&PaymentNotification{
		EventID: "evt_1", Outcome: PaymentFailed, TransactionID: o.TransactionID, AmountMinor: 4550, Currency: "bdt",
	}, nil)
	f.dedup.On("Claim", mock.Anything, "ipn:evt_1", mock.Anything).Return(false, nil)

	res, err := f.svc.OnPaymentNotify(context.Background(), payload, "sig")
	require.NoError(t, err)
	assert.Equal(t, NotifyDuplicate, res.Status)
	assert.Equal(t, models.StatusPending, f.orders.status(o.ID))
}

func TestOnPaymentNotify_InvalidSignature(t *testing.T) {
	f := newPaymentFixture(t)
	f.gateway.On("ParseNotification", mock.Anything, "bad").Return(nil, apperrors.ErrInvalidSignature)

	_, err := f.svc.OnPaymentNotify(context.Background(), []byte(`{}`), "bad")
	assert.ErrorIs(t, err, apperrors.ErrInvalidSignature)
	f.dedup.AssertNotCalled(t, "Claim", mock.Anything, mock.Anything, mock.Anything)
}

func TestOnPaymentNotify_Ignored(t *testing.T) {
	f := newPaymentFixture(t)
	f.gateway.On("ParseNotification", mock.Anything, mock.Anything).Return(&PaymentNotification{EventID: "evt_9", Outcome: PaymentIgnored}, nil)

	res, err := f.svc.OnPaymentNotify(context.Background(), []byte(`{}`), "sig")
	require.NoError(t, err)
	assert.Equal(t, NotifyIgnored, res.Status)
	f.dedup.AssertNotCalled(t, "Claim", mock.Anything, mock.Anything, mock.Anything)
}

func TestOnPaymentNotify_AmountMismatchReleasesClaim(t *testing.T) {
	f := newPaymentFixture(t)
	o := f.seed(t, models.StatusPending, "45.50")

	f.gateway.On("ParseNotification", mock.Anything, mock.Anything).Return(&PaymentNotification{
		EventID: "evt_2", Outcome: PaymentSucceeded, TransactionID: o.TransactionID, AmountMinor: 100, Currency: "bdt",
	}, nil)
	f.dedup.On("Claim", mock.Anything, "ipn:evt_2", mock.Anything).Return(true, nil)
	f.dedup.On("Forget", mock.Anything, "ipn:evt_2").Return(nil).Once()

	_, err := f.svc.OnPaymentNotify(context.Background(), []byte(`{}`), "sig")
	assert.Equal(t, apperrors.KindValidation, apperrors.From(err).Kind)
	assert.Equal(t, models.StatusPending, f.orders.status(o.ID))
	f.dedup.AssertExpectations(t)
}

func TestOnPaymentNotify_CurrencyMismatch(t *testing.T) {
	f := newPaymentFixture(t)
	o := f.seed(t, models.StatusPending, "45.50")

	f.gateway.On("ParseNotification", mock.Anything, mock.Anything).Return(&PaymentNotification{
		EventID: "evt_3", Outcome: PaymentSucceeded, TransactionID: o.TransactionID, AmountMinor: 4550, Currency: "usd",
	}, nil)
	f.dedup.On("Claim", mock.Anything, mock.Anything, mock.Anything).Return(true, nil)
	f.dedup.On("Forget", mock.Anything, mock.Anything).Return(nil)

	_, err := f.svc.OnPaymentNotify(context.Background(), []byte(`{}`), "sig")
	assert.Equal(t, apperrors.KindValidation, apperrors.From(err).Kind)
	assert.Equal(t, models.StatusPending, f.orders.status(o.ID))
}

func TestOnPaymentNotify_DedupOutageStillProcesses(t *testing.T) {
	f := newPaymentFixture(t)
	o := f.seed(t, models.StatusUnpaid, "10.00")

	f.gateway.On("ParseNotification", mock.Anything, mock.Anything).Return(&PaymentNotification{
		EventID: "evt_4", Outcome: PaymentSucceeded, TransactionID: o.TransactionID, AmountMinor: 1000, Currency: "bdt",
	}, nil)
	f.dedup.On("Claim", mock.Anything, mock.Anything, mock.Anything).Return(false, errors.New("redis: connection refused"))

	res, err := f.svc.OnPaymentNotify(context.Background(), []byte(`{}`), "sig")
	require.NoError(t, err)
	assert.Equal(t, NotifyProcessed, res.Status)
	assert.Equal(t, models.StatusPaid, f.orders.status(o.ID))
	f.dedup.AssertNotCalled(t, "Forget", mock.Anything, mock.Anything)
}

func TestOnPaymentNotify_MissingTransactionID(t *testing.T) {
	f := newPaymentFixture(t)
	f.svc.dedup = nil
	f.gateway.On("ParseNotification", mock.Anything, mock.Anything).Return(&PaymentNotification{
		EventID: "evt_5", Outcome: PaymentSucceeded,
	}, nil)

	_, err := f.svc.OnPaymentNotify(context.Background(), []byte(`{}`), "sig")
	assert.Equal(t, apperrors.KindValidation, apperrors.From(err).Kind)
}
