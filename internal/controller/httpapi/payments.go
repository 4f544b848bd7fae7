package httpapi

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/Freeeeeet/marketplace/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// handleIPN принимает серверное уведомление шлюза.
// 200 для обработанных, повторных и неизвестных транзакций; 5xx только при сбое хранилища,
// чтобы шлюз повторил доставку.
func (s *Server) handleIPN(c *gin.Context) {
	if err := c.Request.ParseForm(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed form body"})
		return
	}

	notification := s.parser.ParseNotification(c.Request.PostForm)
	if notification.TransactionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tran_id is required"})
		return
	}

	err := s.payments.HandleGatewayNotification(c.Request.Context(), notification)
	if err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
			return
		}

		s.logger.Error("Failed to handle gateway notification",
			zap.String("transaction_id", notification.TransactionID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "temporary failure, retry later"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "received"})
}

// handleRedirect обрабатывает возврат браузера со страницы шлюза.
// Статус платежа не меняется: источник истины только IPN.
func (s *Server) handleRedirect(outcome string) gin.HandlerFunc {
	return func(c *gin.Context) {
		transactionID := c.Param("tranId")

		status := "unknown"
		payment, err := s.payments.GetPaymentByTransactionID(c.Request.Context(), transactionID)
		switch {
		case err == nil:
			status = string(payment.Status)
		case isNotFound(err):
			s.logger.Debug("Redirect for unknown transaction", zap.String("transaction_id", transactionID))
		default:
			s.logger.Warn("Failed to load payment for redirect",
				zap.String("transaction_id", transactionID),
				zap.Error(err),
			)
		}

		query := url.Values{}
		query.Set("outcome", outcome)
		query.Set("tran_id", transactionID)
		query.Set("status", status)

		c.Redirect(http.StatusSeeOther, s.frontendURL+"/payments/result?"+query.Encode())
	}
}

func isNotFound(err error) bool {
	var nf *service.NotFoundError
	return errors.As(err, &nf)
}
