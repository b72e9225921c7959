package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"solara.ai/insights-gateway/app/interfaces/http/routes/v1/admin"
	"solara.ai/insights-gateway/app/interfaces/http/routes/v1/insights"
	"solara.ai/insights-gateway/app/interfaces/http/routes/v1/subjects"
	"solara.ai/insights-gateway/config"
)

type V1Route struct {
	insightRoute *insights.InsightRoute
	subjectRoute *subjects.SubjectRoute
	adminRoute   *admin.AdminRoute
}

func NewV1Route(
	insightRoute *insights.InsightRoute,
	subjectRoute *subjects.SubjectRoute,
	adminRoute *admin.AdminRoute,
) *V1Route {
	return &V1Route{
		insightRoute,
		subjectRoute,
		adminRoute,
	}
}

func (v1Route *V1Route) RegisterRouter(router gin.IRouter) {
	v1Router := router.Group("/v1")
	v1Router.GET("/version", GetVersion)
	v1Route.insightRoute.RegisterRouter(v1Router)
	v1Route.subjectRoute.RegisterRouter(v1Router)
	v1Route.adminRoute.RegisterRouter(v1Router)
}

func GetVersion(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"version": config.Version,
	})
}
