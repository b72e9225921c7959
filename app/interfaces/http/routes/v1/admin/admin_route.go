package admin

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"solara.ai/insights-gateway/app/domain/budget"
	"solara.ai/insights-gateway/app/domain/subject"
	"solara.ai/insights-gateway/app/infrastructure/cache"
	"solara.ai/insights-gateway/app/infrastructure/lock"
	"solara.ai/insights-gateway/app/interfaces/http/middleware"
	"solara.ai/insights-gateway/app/interfaces/http/responses"
	"solara.ai/insights-gateway/app/utils/logger"
)

// UsageLedger reads the durable spend ledger.
type UsageLedger interface {
	SumByDay(ctx context.Context, day string) (decimal.Decimal, int, error)
}

// AdminRoute exposes operator endpoints for budget, cache and locks.
type AdminRoute struct {
	governor     *budget.Governor
	ledger       UsageLedger
	cacheService cache.CacheService
}

func NewAdminRoute(governor *budget.Governor, ledger UsageLedger, cacheService cache.CacheService) *AdminRoute {
	return &AdminRoute{
		governor:     governor,
		ledger:       ledger,
		cacheService: cacheService,
	}
}

func (route *AdminRoute) RegisterRouter(router gin.IRouter) {
	adminRouter := router.Group("/admin", middleware.AdminKeyMiddleware())
	adminRouter.GET("/budget", route.getBudget)
	adminRouter.POST("/cache/invalidate", route.invalidateSubject)
	adminRouter.DELETE("/locks", route.releaseLock)
}

type BudgetResponse struct {
	Object    string  `json:"object"`
	Day       string  `json:"day"`
	Used      float64 `json:"used_usd"`
	Limit     float64 `json:"limit_usd"`
	Remaining float64 `json:"remaining_usd"`
	Allowed   bool    `json:"allowed"`
	Degraded  bool    `json:"degraded,omitempty"`
	// LedgerUsed is the durable ledger total; it may lag the counter.
	LedgerUsed    string `json:"ledger_used_usd,omitempty"`
	LedgerEntries int    `json:"ledger_entries"`
	PriceVersion  string `json:"price_version"`
}

func (route *AdminRoute) getBudget(reqCtx *gin.Context) {
	ctx := reqCtx.Request.Context()
	status, err := route.governor.CheckBudget(ctx)
	if err != nil {
		logger.GetLogger().Errorf("admin budget: failed to read counter: %v", err)
		reqCtx.AbortWithStatusJSON(http.StatusServiceUnavailable, responses.ErrorResponse{
			Code:  responses.CodeUnavailable,
			Error: "budget store unavailable",
		})
		return
	}
	resp := BudgetResponse{
		Object:       "budget.status",
		Day:          status.Day,
		Used:         status.Used,
		Limit:        status.Limit,
		Remaining:    status.Remaining,
		Allowed:      status.Allowed,
		Degraded:     status.Degraded,
		PriceVersion: route.governor.Pricing().Version,
	}
	if route.ledger != nil {
		total, entries, err := route.ledger.SumByDay(ctx, status.Day)
		if err != nil {
			logger.GetLogger().Warnf("admin budget: failed to read ledger: %v", err)
		} else {
			resp.LedgerUsed = total.String()
			resp.LedgerEntries = entries
		}
	}
	reqCtx.JSON(http.StatusOK, resp)
}

type CacheInvalidateResponse struct {
	Object  string `json:"object"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// invalidateSubject drops every cached content entry of one subject.
// Durable records are untouched.
func (route *AdminRoute) invalidateSubject(reqCtx *gin.Context) {
	subjectID := reqCtx.Query("subject_id")
	if !subject.ValidPublicID(subjectID) {
		reqCtx.AbortWithStatusJSON(http.StatusBadRequest, responses.ErrorResponse{
			Code:  responses.CodeValidation,
			Error: "subject_id is missing or malformed",
		})
		return
	}
	if err := route.cacheService.DeletePattern(reqCtx.Request.Context(), cache.SubjectContentPattern(subjectID)); err != nil {
		logger.GetLogger().Errorf("admin cache: failed to invalidate %s: %v", subjectID, err)
		reqCtx.AbortWithStatusJSON(http.StatusServiceUnavailable, responses.ErrorResponse{
			Code:  responses.CodeUnavailable,
			Error: "failed to invalidate cache",
		})
		return
	}
	reqCtx.JSON(http.StatusOK, CacheInvalidateResponse{
		Object:  "cache.invalidation",
		Status:  responses.ResponseStatusOk,
		Message: "cache invalidated for " + subjectID,
	})
}

func (route *AdminRoute) releaseLock(reqCtx *gin.Context) {
	key := reqCtx.Query("key")
	if !strings.HasPrefix(key, cache.GenerationLockKeyPrefix+":") {
		reqCtx.AbortWithStatusJSON(http.StatusBadRequest, responses.ErrorResponse{
			Code:  responses.CodeValidation,
			Error: "key must be a generation lock key",
		})
		return
	}
	if err := lock.ForceRelease(reqCtx.Request.Context(), route.cacheService, key); err != nil {
		logger.GetLogger().Errorf("admin lock: failed to release %s: %v", key, err)
		reqCtx.AbortWithStatusJSON(http.StatusServiceUnavailable, responses.ErrorResponse{
			Code:  responses.CodeUnavailable,
			Error: "failed to release lock",
		})
		return
	}
	reqCtx.Status(http.StatusNoContent)
}
