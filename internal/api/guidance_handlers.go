package api

import (
	"errors"
	"io"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yourname/sleepcoach/internal"
	"github.com/yourname/sleepcoach/internal/advice"
	"github.com/yourname/sleepcoach/internal/response"
	"github.com/yourname/sleepcoach/internal/service"
)

type PeriodRequest struct {
	Days  int    `json:"days,omitempty"`
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

func GetGuidanceDates(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		dates, err := app.Advice().LookupAll(c.Request.Context())
		if err != nil {
			HandleServiceError(c, app.Logger(), err, "Failed to fetch guidance dates")
			return
		}
		HandleSuccess(c, app.Logger(), dates, nil)
	}
}

func GetGuidanceHistory(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(advice.DefaultHistoryLimit)))
		if err != nil {
			HandleError(c, app.Logger(), err, 400, "Invalid limit")
			return
		}
		history, err := app.Advice().History(c.Request.Context(), limit)
		if err != nil {
			HandleServiceError(c, app.Logger(), err, "Failed to fetch guidance history")
			return
		}
		HandleSuccess(c, app.Logger(), history, nil)
	}
}

// GetGuidance returns the newest guidance of ?kind= (default session) for a date.
func GetGuidance(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		date := c.Param("date")
		kind := internal.GuidanceKind(c.DefaultQuery("kind", string(internal.GuidanceSession)))
		if kind != internal.GuidanceSession && kind != internal.GuidancePeriod {
			HandleError(c, app.Logger(), internal.Invalid(errors.New(string(kind))), 400, "Unknown guidance kind")
			return
		}
		g, err := app.Advice().LookupKind(c.Request.Context(), date, kind)
		if err != nil {
			HandleServiceError(c, app.Logger(), err, "Failed to fetch guidance")
			return
		}
		if g == nil {
			HandleError(c, app.Logger(), internal.ErrNotFound, 404, "No guidance for "+date)
			return
		}
		HandleSuccess(c, app.Logger(), g, nil)
	}
}

// PostPeriodGuidance summarises either the last N days or an explicit range.
func PostPeriodGuidance(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body PeriodRequest
		// An empty body asks for the default window.
		if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
			HandleError(c, app.Logger(), err, 400, "Invalid JSON")
			return
		}

		var (
			g   *internal.Guidance
			err error
		)
		if body.Start != "" || body.End != "" {
			g, err = app.Periods().RequestAdviceForRange(c.Request.Context(), body.Start, body.End)
		} else {
			days := body.Days
			if days == 0 {
				days = service.WeekDays
			}
			g, err = app.Periods().RequestAdvice(c.Request.Context(), days)
		}
		if errors.Is(err, internal.ErrNoData) {
			app.Logger().Infof("[request_id=%s] no sessions in requested period", c.GetString("request_id"))
			c.JSON(200, response.Info(err.Error()))
			return
		}
		if err != nil {
			HandleServiceError(c, app.Logger(), err, "Failed to generate period guidance")
			return
		}
		HandleSuccess(c, app.Logger(), g, nil)
	}
}
