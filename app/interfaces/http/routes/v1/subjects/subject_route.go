package subjects

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"solara.ai/insights-gateway/app/domain/subject"
	"solara.ai/insights-gateway/app/interfaces/http/responses"
)

const subjectIDParam = "subject_id"

type SubjectRoute struct {
	subjectService *subject.SubjectService
}

func NewSubjectRoute(subjectService *subject.SubjectService) *SubjectRoute {
	return &SubjectRoute{
		subjectService: subjectService,
	}
}

func (route *SubjectRoute) RegisterRouter(router gin.IRouter) {
	subjectRouter := router.Group("/subjects")
	subjectRouter.POST("", route.createSubject)
	subjectRouter.GET("/:"+subjectIDParam, route.getSubject)
	subjectRouter.PUT("/:"+subjectIDParam, route.updateSubject)
}

type SubjectRequest struct {
	DisplayName string   `json:"display_name"`
	Language    string   `json:"language"`
	Timezone    string   `json:"timezone"`
	BirthDate   string   `json:"birth_date" binding:"required"`
	BirthTime   string   `json:"birth_time"`
	BirthPlace  string   `json:"birth_place"`
	Latitude    *float64 `json:"latitude" binding:"omitempty,gte=-90,lte=90"`
	Longitude   *float64 `json:"longitude" binding:"omitempty,gte=-180,lte=180"`
}

func (r *SubjectRequest) toDomain() *subject.Subject {
	return &subject.Subject{
		DisplayName: r.DisplayName,
		Language:    r.Language,
		Timezone:    r.Timezone,
		BirthDate:   r.BirthDate,
		BirthTime:   r.BirthTime,
		BirthPlace:  r.BirthPlace,
		Latitude:    r.Latitude,
		Longitude:   r.Longitude,
	}
}

type SubjectResponse struct {
	ID          string    `json:"id"`
	Object      string    `json:"object"`
	DisplayName string    `json:"display_name,omitempty"`
	Language    string    `json:"language"`
	Timezone    string    `json:"timezone,omitempty"`
	BirthDate   string    `json:"birth_date"`
	BirthTime   string    `json:"birth_time,omitempty"`
	BirthPlace  string    `json:"birth_place,omitempty"`
	Latitude    *float64  `json:"latitude,omitempty"`
	Longitude   *float64  `json:"longitude,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toResponse(s *subject.Subject) SubjectResponse {
	return SubjectResponse{
		ID:          s.PublicID,
		Object:      "subject",
		DisplayName: s.DisplayName,
		Language:    s.Language,
		Timezone:    s.Timezone,
		BirthDate:   s.BirthDate,
		BirthTime:   s.BirthTime,
		BirthPlace:  s.BirthPlace,
		Latitude:    s.Latitude,
		Longitude:   s.Longitude,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}

func (route *SubjectRoute) createSubject(reqCtx *gin.Context) {
	var req SubjectRequest
	if err := reqCtx.ShouldBindJSON(&req); err != nil {
		reqCtx.AbortWithStatusJSON(http.StatusBadRequest, responses.ErrorResponse{
			Code:  responses.CodeValidation,
			Error: err.Error(),
		})
		return
	}
	created, err := route.subjectService.Register(reqCtx.Request.Context(), req.toDomain())
	if err != nil {
		responses.AbortWithError(reqCtx, err)
		return
	}
	reqCtx.JSON(http.StatusCreated, toResponse(created))
}

func (route *SubjectRoute) getSubject(reqCtx *gin.Context) {
	publicID := reqCtx.Param(subjectIDParam)
	if !subject.ValidPublicID(publicID) {
		responses.AbortWithError(reqCtx, subject.ErrSubjectNotFound)
		return
	}
	found, err := route.subjectService.FindByPublicID(reqCtx.Request.Context(), publicID)
	if err != nil {
		responses.AbortWithError(reqCtx, err)
		return
	}
	reqCtx.JSON(http.StatusOK, toResponse(found))
}

// updateSubject replaces the profile. Changed birth facts change the input
// hash, so previously generated content is regenerated on next read.
func (route *SubjectRoute) updateSubject(reqCtx *gin.Context) {
	publicID := reqCtx.Param(subjectIDParam)
	if !subject.ValidPublicID(publicID) {
		responses.AbortWithError(reqCtx, subject.ErrSubjectNotFound)
		return
	}
	var req SubjectRequest
	if err := reqCtx.ShouldBindJSON(&req); err != nil {
		reqCtx.AbortWithStatusJSON(http.StatusBadRequest, responses.ErrorResponse{
			Code:  responses.CodeValidation,
			Error: err.Error(),
		})
		return
	}
	updated, err := route.subjectService.UpdateProfile(reqCtx.Request.Context(), publicID, req.toDomain())
	if err != nil {
		responses.AbortWithError(reqCtx, err)
		return
	}
	reqCtx.JSON(http.StatusOK, toResponse(updated))
}
