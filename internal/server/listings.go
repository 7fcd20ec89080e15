package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/boostd/internal/authorization"
	catalogdomain "github.com/smallbiznis/boostd/internal/catalog/domain"
	"github.com/smallbiznis/boostd/internal/ranking"
)

type rankingSource interface {
	List(ctx context.Context, filter catalogdomain.RankingFilter) ([]catalogdomain.Listing, error)
}

type rankedListing struct {
	catalogdomain.Listing
	Position int    `json:"position"`
	Bucket   string `json:"bucket"`
}

func (s *Server) ListRankedListings(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	if err := s.authzSvc.Authorize(c.Request.Context(), actor, authorization.ObjectListing, authorization.ActionListingRank); err != nil {
		AbortWithError(c, err)
		return
	}

	limit, err := parseOptionalInt64(c.Query("limit"))
	if err != nil || (limit != nil && *limit <= 0) {
		AbortWithError(c, newValidationError("limit", "invalid_limit", "invalid limit"))
		return
	}

	filter := catalogdomain.RankingFilter{SellerID: strings.TrimSpace(c.Query("seller_id"))}
	if limit != nil {
		filter.Limit = int(*limit)
	}

	candidates, err := s.candidates.List(c.Request.Context(), filter)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	now := s.clock.Now()
	ordered := ranking.Rank(candidates, now)
	items := make([]rankedListing, 0, len(ordered))
	for i, listing := range ordered {
		items = append(items, rankedListing{
			Listing:  listing,
			Position: i + 1,
			Bucket:   ranking.BucketOf(listing, now).String(),
		})
	}

	c.JSON(http.StatusOK, gin.H{"data": items})
}
