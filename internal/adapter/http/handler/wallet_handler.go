package handler

import (
	"strconv"

	"ticket-wallet-service/internal/adapter/http/dto"
	"ticket-wallet-service/internal/adapter/http/middleware"
	"ticket-wallet-service/internal/core/domain"
	"ticket-wallet-service/internal/core/ports"
	"ticket-wallet-service/pkg/apperror"
	"ticket-wallet-service/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// WalletHandler handles wallet-related endpoints.
type WalletHandler struct {
	walletSvc ports.WalletService
	topupSvc  ports.TopupService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(walletSvc ports.WalletService, topupSvc ports.TopupService) *WalletHandler {
	return &WalletHandler{
		walletSvc: walletSvc,
		topupSvc:  topupSvc,
	}
}

// Create handles POST /api/v1/wallet. Provisioning is idempotent, so
// a repeat call returns the existing wallet with 200 semantics folded
// into the same envelope.
func (h *WalletHandler) Create(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	wallet, err := h.walletSvc.CreateWallet(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.WalletBalanceResponse{
		WalletID: wallet.ID.String(),
		Balance:  wallet.Balance.Int64(),
		Status:   string(wallet.Status),
	})
}

// GetBalance handles GET /api/v1/wallet/balance.
func (h *WalletHandler) GetBalance(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	wallet, err := h.walletSvc.GetBalance(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.WalletBalanceResponse{
		WalletID: wallet.ID.String(),
		Balance:  wallet.Balance.Int64(),
		Status:   string(wallet.Status),
	})
}

// Topup handles POST /api/v1/wallet/topup.
func (h *WalletHandler) Topup(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.TopupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	result, err := h.topupSvc.RequestTopup(c.Request.Context(), userID, domain.Money(req.Amount))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.FromTopup(result))
}

// ListTransactions handles GET /api/v1/wallet/transactions.
func (h *WalletHandler) ListTransactions(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	query := ports.EntryListQuery{
		Page:     parseIntQuery(c, "page", 1),
		PageSize: parseIntQuery(c, "page_size", 20),
	}
	if s := c.Query("status"); s != "" {
		status := domain.EntryStatus(s)
		query.Status = &status
	}
	if t := c.Query("type"); t != "" {
		typ := domain.EntryType(t)
		query.Type = &typ
	}

	entries, total, err := h.walletSvc.ListEntries(c.Request.Context(), userID, query)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.EntryResponse, 0, len(entries))
	for i := range entries {
		items = append(items, dto.FromEntry(&entries[i]))
	}

	totalPages := int((total + int64(query.PageSize) - 1) / int64(query.PageSize))
	response.OK(c, dto.EntryListResponse{
		Items:      items,
		Total:      total,
		Page:       query.Page,
		PageSize:   query.PageSize,
		TotalPages: totalPages,
	})
}

// GetSummary handles GET /api/v1/wallet/summary.
func (h *WalletHandler) GetSummary(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	summary, err := h.walletSvc.GetSummary(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.SummaryResponse{
		TotalEntries: summary.TotalEntries,
		Successful:   summary.Successful,
		Failed:       summary.Failed,
		Pending:      summary.Pending,
		TotalIn:      summary.TotalIn,
		TotalOut:     summary.TotalOut,
	})
}

// currentUserID extracts the authenticated user from the gin context.
func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	v, exists := c.Get(middleware.CtxUserID)
	if !exists {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

func parseIntQuery(c *gin.Context, name string, fallback int) int {
	v := c.Query(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
