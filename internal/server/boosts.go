package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	boostdomain "github.com/smallbiznis/boostd/internal/boost/domain"
	"github.com/smallbiznis/boostd/pkg/db/pagination"
)

type purchaseBoostRequest struct {
	ListingID string                `json:"listing_id"`
	Tier      string                `json:"tier"`
	Duration  *boostdomain.Duration `json:"duration,omitempty"`
	AutoRenew bool                  `json:"auto_renew"`
}

func (s *Server) PurchaseBoost(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req purchaseBoostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if _, err := parseOptionalSnowflakeID(req.ListingID); err != nil || strings.TrimSpace(req.ListingID) == "" {
		AbortWithError(c, newValidationError("listing_id", "invalid_listing_id", "invalid listing_id"))
		return
	}

	resp, err := s.boostSvc.PurchaseBoost(c.Request.Context(), boostdomain.PurchaseRequest{
		ListingID: strings.TrimSpace(req.ListingID),
		Tier:      boostdomain.Tier(strings.ToLower(strings.TrimSpace(req.Tier))),
		Duration:  req.Duration,
		AutoRenew: req.AutoRenew,
		Actor:     actor,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type confirmBoostPaymentRequest struct {
	PaymentMethod  string `json:"payment_method"`
	TransactionRef string `json:"transaction_ref"`
}

func (s *Server) ConfirmBoostPayment(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	id, err := pathID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req confirmBoostPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	record, err := s.boostSvc.ConfirmBoostPayment(c.Request.Context(), boostdomain.ConfirmPaymentRequest{
		BoostID:        id,
		PaymentMethod:  strings.ToLower(strings.TrimSpace(req.PaymentMethod)),
		TransactionRef: strings.TrimSpace(req.TransactionRef),
		Actor:          actor,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": record})
}

type cancelBoostRequest struct {
	Refund *bool  `json:"refund,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// CancelBoost accepts an optional body; `?refund=false` works as well.
// Refunds default to on.
func (s *Server) CancelBoost(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	id, err := pathID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req cancelBoostRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}
	if req.Refund == nil {
		refund, err := parseOptionalBool(c.Query("refund"))
		if err != nil {
			AbortWithError(c, newValidationError("refund", "invalid_refund", "invalid refund"))
			return
		}
		req.Refund = refund
	}

	resp, err := s.boostSvc.CancelBoost(c.Request.Context(), boostdomain.CancelRequest{
		BoostID: id,
		Refund:  req.Refund,
		Reason:  strings.TrimSpace(req.Reason),
		Actor:   actor,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type setAutoRenewRequest struct {
	Enabled     *bool `json:"enabled"`
	MaxRenewals *int  `json:"max_renewals,omitempty"`
}

func (s *Server) SetAutoRenew(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	id, err := pathID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req setAutoRenewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if req.Enabled == nil {
		AbortWithError(c, newValidationError("enabled", "required", "enabled is required"))
		return
	}

	record, err := s.boostSvc.SetAutoRenew(c.Request.Context(), boostdomain.SetAutoRenewRequest{
		BoostID:     id,
		Enabled:     *req.Enabled,
		MaxRenewals: req.MaxRenewals,
		Actor:       actor,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": record})
}

func (s *Server) GetBoost(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	id, err := pathID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	detail, err := s.boostSvc.GetBoost(c.Request.Context(), id, actor)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": detail})
}

func (s *Server) ListBoosts(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var query struct {
		pagination.Pagination
		SellerID  string `form:"seller_id"`
		ListingID string `form:"listing_id"`
		Status    string `form:"status"`
		Tier      string `form:"tier"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if _, err := parseOptionalSnowflakeID(query.ListingID); err != nil {
		AbortWithError(c, newValidationError("listing_id", "invalid_listing_id", "invalid listing_id"))
		return
	}

	resp, err := s.boostSvc.ListActiveBoosts(c.Request.Context(), boostdomain.ListBoostsRequest{
		SellerID:  strings.TrimSpace(query.SellerID),
		ListingID: strings.TrimSpace(query.ListingID),
		Status:    strings.ToLower(strings.TrimSpace(query.Status)),
		Tier:      strings.ToLower(strings.TrimSpace(query.Tier)),
		PageToken: query.PageToken,
		PageSize:  query.PageSize,
		Actor:     actor,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Boosts, "stats": resp.Stats, "page_info": resp.PageInfo})
}

type grantBoostRequest struct {
	ListingID string                `json:"listing_id"`
	Tier      string                `json:"tier"`
	Duration  *boostdomain.Duration `json:"duration,omitempty"`
}

func (s *Server) GrantBoost(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req grantBoostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if _, err := parseOptionalSnowflakeID(req.ListingID); err != nil || strings.TrimSpace(req.ListingID) == "" {
		AbortWithError(c, newValidationError("listing_id", "invalid_listing_id", "invalid listing_id"))
		return
	}

	record, err := s.boostSvc.GrantBoost(c.Request.Context(), boostdomain.GrantRequest{
		ListingID: strings.TrimSpace(req.ListingID),
		Tier:      boostdomain.Tier(strings.ToLower(strings.TrimSpace(req.Tier))),
		Duration:  req.Duration,
		Actor:     actor,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": record})
}
