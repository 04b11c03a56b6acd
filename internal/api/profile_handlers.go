package api

import (
	"github.com/gin-gonic/gin"
	"github.com/yourname/sleepcoach/internal/service"
)

func GetProfile(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := app.Profiles().Current(c.Request.Context())
		if err != nil {
			HandleServiceError(c, app.Logger(), err, "Failed to fetch profile")
			return
		}
		HandleSuccess(c, app.Logger(), p, map[string]any{"complete": service.IsComplete(p)})
	}
}

func PutProfile(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body service.ProfileRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			HandleError(c, app.Logger(), err, 400, "Invalid JSON")
			return
		}
		p, err := app.Profiles().Save(c.Request.Context(), &body)
		if err != nil {
			HandleServiceError(c, app.Logger(), err, "Failed to save profile")
			return
		}
		HandleSuccess(c, app.Logger(), p, map[string]any{"complete": service.IsComplete(p)})
	}
}

func GetReference(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		r, err := app.References().Get(c.Request.Context())
		if err != nil {
			HandleServiceError(c, app.Logger(), err, "Failed to fetch reference content")
			return
		}
		HandleSuccess(c, app.Logger(), r, nil)
	}
}

func PutReference(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body service.ReferenceRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			HandleError(c, app.Logger(), err, 400, "Invalid JSON")
			return
		}
		r, err := app.References().Save(c.Request.Context(), &body)
		if err != nil {
			HandleServiceError(c, app.Logger(), err, "Failed to save reference content")
			return
		}
		HandleSuccess(c, app.Logger(), r, nil)
	}
}
