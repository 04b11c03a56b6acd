package api

import (
	"github.com/yourname/sleepcoach/internal"
	"github.com/yourname/sleepcoach/internal/advice"
	"github.com/yourname/sleepcoach/internal/service"
)

type App interface {
	Logger() internal.Logger
	Records() *service.RecordService
	Profiles() *service.ProfileService
	Periods() *service.PeriodService
	References() *service.ReferenceService
	Advice() *advice.Service
}

// Services is the App assembled by the process bootstrap.
type Services struct {
	Log        internal.Logger
	RecordSvc  *service.RecordService
	ProfileSvc *service.ProfileService
	PeriodSvc  *service.PeriodService
	RefSvc     *service.ReferenceService
	AdviceSvc  *advice.Service
}

func (s *Services) Logger() internal.Logger               { return s.Log }
func (s *Services) Records() *service.RecordService       { return s.RecordSvc }
func (s *Services) Profiles() *service.ProfileService     { return s.ProfileSvc }
func (s *Services) Periods() *service.PeriodService       { return s.PeriodSvc }
func (s *Services) References() *service.ReferenceService { return s.RefSvc }
func (s *Services) Advice() *advice.Service               { return s.AdviceSvc }

var _ App = (*Services)(nil)
