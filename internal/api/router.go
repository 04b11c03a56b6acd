package api

import "github.com/gin-gonic/gin"

// NewRouter registers every route on a fresh engine.
func NewRouter(app App) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestIDMiddleware(), AccessLogMiddleware(app.Logger()))

	r.GET("/healthz", func(c *gin.Context) {
		HandleSuccess(c, app.Logger(), gin.H{"status": "ok"}, nil)
	})

	r.POST("/sleep/start", PostSleepStart(app))
	r.POST("/sleep/wake", PostWake(app))
	r.GET("/sleep/open", GetOpenSession(app))
	r.GET("/sleep", GetSleep(app))
	r.GET("/sleep/recent", GetRecent(app))
	r.GET("/sleep/date/:date", GetSleepByDate(app))
	r.DELETE("/sleep/:id", DeleteSleep(app))

	r.GET("/guidance/dates", GetGuidanceDates(app))
	r.GET("/guidance/history", GetGuidanceHistory(app))
	r.GET("/guidance/date/:date", GetGuidance(app))
	r.POST("/guidance/period", PostPeriodGuidance(app))

	r.GET("/profile", GetProfile(app))
	r.PUT("/profile", PutProfile(app))
	r.GET("/reference", GetReference(app))
	r.PUT("/reference", PutReference(app))

	return r
}
