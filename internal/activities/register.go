package activities

import "go.temporal.io/sdk/worker"

func Register(w worker.Worker, a *Activities) {
	w.RegisterActivity(a.RunStageActivity)
	w.RegisterActivity(a.AdvanceRunActivity)
	w.RegisterActivity(a.FailRunActivity)
	w.RegisterActivity(a.FinalizeActivity)
}
