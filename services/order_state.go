package services

import (
	apperrors "github.com/aamamun24/FineMed-Server/common/errors"
	"github.com/aamamun24/FineMed-Server/models"
)

var (
	// awaitingPayment are the statuses a payment callback may move from.
	awaitingPayment = []models.OrderStatus{models.StatusPending, models.StatusUnpaid}

	// cancellable are the statuses an order may be cancelled from.
	cancellable = []models.OrderStatus{
		models.StatusPending,
		models.StatusUnpaid,
		models.StatusPaid,
		models.StatusProcessing,
	}
)

// ValidateTransition returns ErrInvalidStatusTransition when an order may not
// move from one status to the other.
func ValidateTransition(from, to models.OrderStatus) error {
	if models.CanTransition(from, to) {
		return nil
	}
	return apperrors.ErrInvalidStatusTransition.WithMessage("Cannot change order status from %s to %s", from, to)
}
