// controllers/transaction_controller.go
package controllers

import (
	"net/http"
	"strconv"

	"github.com/ExcursionClub/ExCSystem/app"

	"github.com/gin-gonic/gin"
)

type TransactionController struct{ *Srv }

func NewTransactionController(s *Srv) *TransactionController {
	return &TransactionController{Srv: s}
}

// Newest first, paged. The per-gear history lives on the gear endpoint.
func (tc *TransactionController) ListTransactions(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))
	res, err := tc.Repo.ListTransactions(c.Request.Context(), page, size)
	if err != nil {
		c.JSON(http.StatusInternalServerError, app.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}

// Recent door scans, valid and invalid alike.
func (tc *TransactionController) ListRFIDChecks(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	checks, err := tc.Repo.ListRFIDChecks(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, app.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, app.H{"checks": checks})
}
