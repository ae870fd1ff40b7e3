package controllers

import (
	"context"
	"io"
	"net/http"

	apperrors "github.com/aamamun24/FineMed-Server/common/errors"
	"github.com/aamamun24/FineMed-Server/common/response"
	"github.com/aamamun24/FineMed-Server/services"
	"github.com/gin-gonic/gin"
)

const maxNotificationBody = 64 << 10

type PaymentService interface {
	OnPaymentSuccess(ctx context.Context, tranID, reference string) (string, error)
	OnPaymentFailure(ctx context.Context, tranID string) (string, error)
	OnPaymentCancel(ctx context.Context, tranID string) (string, error)
	OnPaymentNotify(ctx context.Context, payload []byte, signature string) (*services.NotifyResult, error)
}

type PaymentController struct {
	payments PaymentService
}

func NewPaymentController(payments PaymentService) *PaymentController {
	return &PaymentController{payments: payments}
}

// Success handles the success redirect. The gateway's session reference comes
// as the session_id query or form value.
func (pc *PaymentController) Success(c *gin.Context) {
	reference := c.Query("session_id")
	if reference == "" {
		reference = c.PostForm("session_id")
	}
	pc.redirect(c, func(ctx context.Context, tranID string) (string, error) {
		return pc.payments.OnPaymentSuccess(ctx, tranID, reference)
	})
}

func (pc *PaymentController) Failed(c *gin.Context) {
	pc.redirect(c, pc.payments.OnPaymentFailure)
}

func (pc *PaymentController) Cancel(c *gin.Context) {
	pc.redirect(c, pc.payments.OnPaymentCancel)
}

// redirect applies a browser callback and sends the browser on to the
// frontend. Form posts get 303 so the follow-up request is a GET.
func (pc *PaymentController) redirect(c *gin.Context, apply func(context.Context, string) (string, error)) {
	url, err := apply(c.Request.Context(), c.Param("transactionId"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	status := http.StatusFound
	if c.Request.Method == http.MethodPost {
		status = http.StatusSeeOther
	}
	c.Redirect(status, url)
}

// Notify handles POST /orders/ipn. The raw body is needed for signature
// verification, so it is read before any binding.
func (pc *PaymentController) Notify(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxNotificationBody))
	if err != nil {
		_ = c.Error(apperrors.Validation("Unable to read notification body").WithErr(err))
		return
	}

	res, err := pc.payments.OnPaymentNotify(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	response.OK(c, "Payment notification "+res.Status, res)
}
