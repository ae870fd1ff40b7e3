package controllers_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	apperrors "github.com/aamamun24/FineMed-Server/common/errors"
	"github.com/aamamun24/FineMed-Server/controllers"
	"github.com/aamamun24/FineMed-Server/services"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func paymentRouter(svc *mockPaymentService) *gin.Engine {
	pc := controllers.NewPaymentController(svc)
	r := newRouter("")
	for _, m := range []string{http.MethodGet, http.MethodPost} {
		r.Handle(m, "/orders/payment-success/:transactionId", pc.Success)
		r.Handle(m, "/orders/payment-failed/:transactionId", pc.Failed)
		r.Handle(m, "/orders/payment-cancel/:transactionId", pc.Cancel)
	}
	r.POST("/orders/ipn", pc.Notify)
	return r
}

func TestPaymentRedirects(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		method string
		call   string
		args   []any
		status int
	}{
		{"success via post", "/orders/payment-success/T1", http.MethodPost, "OnPaymentSuccess", []any{"T1", ""}, http.StatusSeeOther},
		{"success via get with session", "/orders/payment-success/T1?session_id=cs_1", http.MethodGet, "OnPaymentSuccess", []any{"T1", "cs_1"}, http.StatusFound},
		{"failure", "/orders/payment-failed/T1", http.MethodPost, "OnPaymentFailure", []any{"T1"}, http.StatusSeeOther},
		{"cancel", "/orders/payment-cancel/T1", http.MethodGet, "OnPaymentCancel", []any{"T1"}, http.StatusFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(mockPaymentService)
			svc.On(tt.call, append([]any{mock.Anything}, tt.args...)...).Return("https://finemed.test/done/T1", nil).Once()

			rec := do(paymentRouter(svc), tt.method, tt.path, "")

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "https://finemed.test/done/T1", rec.Header().Get("Location"))
			svc.AssertExpectations(t)
		})
	}
}

func TestPaymentSuccess_FormPostedSession(t *testing.T) {
	svc := new(mockPaymentService)
	svc.On("OnPaymentSuccess", mock.Anything, "T1", "cs_form").Return("https://finemed.test/done/T1", nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/orders/payment-success/T1", strings.NewReader("session_id=cs_form"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	paymentRouter(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	svc.AssertExpectations(t)
}

func TestPaymentRedirect_UnknownTransaction(t *testing.T) {
	svc := new(mockPaymentService)
	svc.On("OnPaymentSuccess", mock.Anything, "nope", "").Return("", apperrors.ErrTransactionNotFound).Once()

	rec := do(paymentRouter(svc), http.MethodPost, "/orders/payment-success/nope", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, rec.Header().Get("Location"))
}

func TestPaymentNotify(t *testing.T) {
	body := `{"id":"evt_1","type":"checkout.session.completed"}`

	t.Run("passes raw body and signature", func(t *testing.T) {
		svc := new(mockPaymentService)
		svc.On("OnPaymentNotify", mock.Anything, []byte(body), "t=1,v1=abc").
			Return(&services.NotifyResult{Status: services.NotifyProcessed, OrderID: "o1"}, nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/orders/ipn", strings.NewReader(body))
		req.Header.Set("Stripe-Signature", "t=1,v1=abc")
		rec := httptest.NewRecorder()
		paymentRouter(svc).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "processed")
		svc.AssertExpectations(t)
	})

	t.Run("bad signature", func(t *testing.T) {
		svc := new(mockPaymentService)
		svc.On("OnPaymentNotify", mock.Anything, mock.Anything, "").Return(nil, apperrors.ErrInvalidSignature).Once()

		rec := do(paymentRouter(svc), http.MethodPost, "/orders/ipn", body)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
