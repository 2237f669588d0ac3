package installer

import (
	"context"
	"time"

	"machine-bootstrap/internal/logger"
	"machine-bootstrap/internal/state"
)

// SoftwareStep brackets the whole tool installation pipeline.
const SoftwareStep = "install-software"

// SyncSoftware installs every tool registered for the toolkit's platform,
// bracketed in the install-software step, and records each task's outcome in
// st. Tasks that never started are not recorded.
func SyncSoftware(ctx context.Context, k *Toolkit, st *state.State) ([]TaskResult, error) {
	log := k.Log
	log.StepBegin(SoftwareStep)

	results, err := syncSoftware(ctx, k)

	now := time.Now()
	st.Platform = string(k.Platform)
	st.LastRun = now
	for _, r := range results {
		if r.Status == StatusPending {
			continue
		}
		st.RecordTask(r.Task, string(r.Status), r.Duration, r.Err, now)
	}

	if err != nil {
		log.Error(SoftwareStep, "%v", err)
		log.StepEnd(SoftwareStep, logger.End{OK: false, Error: err.Error()})
		return results, err
	}
	log.StepEnd(SoftwareStep, logger.End{OK: true})
	return results, nil
}

func syncSoftware(ctx context.Context, k *Toolkit) ([]TaskResult, error) {
	if err := k.EnsureBinDir(); err != nil {
		return nil, err
	}
	k.Log.Info(SoftwareStep, "detected platform: %s", k.Platform)

	tasks := For(k.Platform, k)
	k.Log.Debug(SoftwareStep, "%d tasks registered", len(tasks))
	orch := &Orchestrator{Log: k.Log}
	return orch.Run(ctx, tasks)
}
