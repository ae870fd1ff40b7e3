package controllers

import (
	"context"

	"github.com/aamamun24/FineMed-Server/common/response"
	"github.com/aamamun24/FineMed-Server/models"
	"github.com/gin-gonic/gin"
)

type NotificationLogService interface {
	Logs(ctx context.Context, orderID string, page, limit int) ([]models.NotificationLog, models.PaginationMeta, error)
}

type NotificationController struct {
	logs NotificationLogService
}

func NewNotificationController(logs NotificationLogService) *NotificationController {
	return &NotificationController{logs: logs}
}

// Logs handles GET /notifications/logs?orderId=&page=&limit= for admins.
func (nc *NotificationController) Logs(c *gin.Context) {
	logs, meta, err := nc.logs.Logs(c.Request.Context(), c.Query("orderId"), queryInt(c, "page"), queryInt(c, "limit"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	response.Paginated(c, "Notification logs retrieved successfully", logs, meta)
}
