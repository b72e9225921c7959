package insights

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"solara.ai/insights-gateway/app/domain/insight"
	"solara.ai/insights-gateway/app/domain/subject"
	"solara.ai/insights-gateway/app/interfaces/http/responses"
)

const (
	SubjectIDHeader   = "X-Subject-ID"
	RequesterIDHeader = "X-Requester-ID"
)

type InsightRoute struct {
	insightService *insight.InsightService
}

func NewInsightRoute(insightService *insight.InsightService) *InsightRoute {
	return &InsightRoute{
		insightService: insightService,
	}
}

func (route *InsightRoute) RegisterRouter(router gin.IRouter) {
	insightRouter := router.Group("/insights")
	insightRouter.GET("", route.listKinds)
	insightRouter.GET("/:kind", route.getInsight)
}

type KindsResponse struct {
	Object string   `json:"object"`
	Data   []string `json:"data"`
}

func (route *InsightRoute) listKinds(reqCtx *gin.Context) {
	reqCtx.JSON(http.StatusOK, KindsResponse{
		Object: "list",
		Data:   route.insightService.Registry().Kinds(),
	})
}

// getInsight
// @Summary Get generated content
// @Description Returns the content of the given kind for the subject in X-Subject-ID, generating it once per fingerprint.
// @Tags Insights
// @Param kind path string true "content kind, or insight with ?timeframe="
// @Param timeframe query string false "day, week, month or year"
// @Param period query string false "explicit period in the timeframe's format"
// @Param partner query string false "partner subject id for relationship_brief"
// @Param spread query string false "tarot spread"
// @Param question query string false "tarot question"
// @Param lang query string false "BCP 47 language override"
// @Success 200 {object} responses.GeneralResponse[insight.Insight]
// @Failure 400 {object} responses.ErrorResponse
// @Failure 429 {object} responses.ErrorResponse
// @Failure 503 {object} responses.ErrorResponse
// @Router /v1/insights/{kind} [get]
func (route *InsightRoute) getInsight(reqCtx *gin.Context) {
	subjectID := reqCtx.GetHeader(SubjectIDHeader)
	if !subject.ValidPublicID(subjectID) {
		reqCtx.AbortWithStatusJSON(http.StatusBadRequest, responses.ErrorResponse{
			Code:  responses.CodeMissingSubjectKey,
			Error: "X-Subject-ID header is missing or malformed",
		})
		return
	}
	requesterID := reqCtx.GetHeader(RequesterIDHeader)
	if requesterID == "" {
		requesterID = subjectID
	}

	result, err := route.insightService.Get(reqCtx.Request.Context(), insight.Query{
		Kind:        reqCtx.Param("kind"),
		SubjectID:   subjectID,
		RequesterID: requesterID,
		Timeframe:   reqCtx.Query("timeframe"),
		Period:      reqCtx.Query("period"),
		PartnerID:   reqCtx.Query("partner"),
		Spread:      reqCtx.Query("spread"),
		Question:    reqCtx.Query("question"),
		Language:    reqCtx.Query("lang"),
	})
	if err != nil {
		responses.AbortWithError(reqCtx, err)
		return
	}
	reqCtx.JSON(http.StatusOK, responses.GeneralResponse[*insight.Insight]{
		Status: responses.ResponseStatusOk,
		Result: result,
	})
}
