package api

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yourname/sleepcoach/internal"
	"github.com/yourname/sleepcoach/internal/service"
)

func PostSleepStart(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body service.SleepStartRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			HandleError(c, app.Logger(), err, 400, "Invalid JSON")
			return
		}

		session, err := app.Records().RecordSleepStart(c.Request.Context(), &body)
		if err != nil {
			HandleServiceError(c, app.Logger(), err, "Failed to record sleep")
			return
		}
		HandleSuccess(c, app.Logger(), session, nil)
	}
}

// PostWake completes the session; guidance is generated in the background and
// is later available under /guidance/:date.
func PostWake(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body service.WakeRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			HandleError(c, app.Logger(), err, 400, "Invalid JSON")
			return
		}

		logger := app.Logger()
		requestID := c.GetString("request_id")
		session, err := app.Records().RecordWake(c.Request.Context(), &body, func(g *internal.Guidance, err error) {
			if err == nil {
				logger.Infof("[request_id=%s] guidance %s stored for %s", requestID, g.ID, g.Date)
			}
		})
		if err != nil {
			HandleServiceError(c, logger, err, "Failed to record wake")
			return
		}
		HandleSuccess(c, logger, session, map[string]any{"guidance": "pending"})
	}
}

func GetOpenSession(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, err := app.Records().OpenSession(c.Request.Context())
		if err != nil {
			HandleServiceError(c, app.Logger(), err, "Failed to fetch open session")
			return
		}
		HandleSuccess(c, app.Logger(), session, map[string]any{"open": session != nil})
	}
}

func GetSleep(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		start, end := c.Query("start"), c.Query("end")
		sessions, err := app.Records().ListByDateRange(c.Request.Context(), start, end)
		if err != nil {
			HandleServiceError(c, app.Logger(), err, "Failed to fetch sessions")
			return
		}
		HandleSuccess(c, app.Logger(), sessions, map[string]any{"count": len(sessions)})
	}
}

func DeleteSleep(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := app.Records().Delete(c.Request.Context(), c.Param("id")); err != nil {
			HandleServiceError(c, app.Logger(), err, "Failed to delete session")
			return
		}
		HandleSuccess(c, app.Logger(), nil, map[string]any{"deleted": c.Param("id")})
	}
}

// GetRecent serves the last ?days= days (default 7) joined with guidance.
func GetRecent(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		days, err := strconv.Atoi(c.DefaultQuery("days", strconv.Itoa(service.WeekDays)))
		if err != nil {
			HandleError(c, app.Logger(), err, 400, "Invalid days")
			return
		}
		entries, err := app.Periods().Recent(c.Request.Context(), days)
		if err != nil {
			HandleServiceError(c, app.Logger(), err, "Failed to fetch recent sessions")
			return
		}
		HandleSuccess(c, app.Logger(), entries, map[string]any{"days": days, "count": len(entries)})
	}
}

func GetSleepByDate(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		entries, err := app.Periods().ExactDate(c.Request.Context(), c.Param("date"))
		if err != nil {
			HandleServiceError(c, app.Logger(), err, "Failed to fetch sessions for date")
			return
		}
		HandleSuccess(c, app.Logger(), entries, nil)
	}
}
