package web

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"proteindomains.org/protdom/internal/data"
	"proteindomains.org/protdom/internal/pipeline"
)

// cancelRegistry tracks the cancel functions of running jobs.
type cancelRegistry struct {
	mutex   sync.Mutex
	cancels map[string]context.CancelFunc
}

func newCancelRegistry() *cancelRegistry {
	return &cancelRegistry{
		cancels: make(map[string]context.CancelFunc),
	}
}

func (r *cancelRegistry) add(id string, cancel context.CancelFunc) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.cancels[id] = cancel
}

func (r *cancelRegistry) remove(id string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	delete(r.cancels, id)
}

// cancel stops a registered job, reporting whether it was running.
func (r *cancelRegistry) cancel(id string) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	cancel, ok := r.cancels[id]
	if ok {
		cancel()
	}
	return ok
}

func (r *cancelRegistry) cancelAll() {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	for _, cancel := range r.cancels {
		cancel()
	}
}

func (app *application) launchJob(id string) {
	app.background(func() {
		app.executeJob(id)
	})
}

// executeJob drives the pipeline for one stored job, mirroring its
// progress into the job store.
func (app *application) executeJob(id string) {
	job, err := app.Models.Jobs.Get(id)
	if err != nil {
		app.logger.Errorw("cannot load job", "job", id, "error", err)
		return
	}
	if job.Status != data.JobPending {
		app.logger.Warnw("job is not pending, refusing to run it", "job", id, "status", job.Status)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	app.cancels.add(job.ID, cancel)
	defer app.cancels.remove(job.ID)

	job.Status = data.JobRunning
	job.Started = time.Now().UTC()
	job.Message = "starting"
	job.OutputDir = filepath.Join(app.OutputRoot, job.ID)
	// No conflict retry here: losing this update means the job was
	// canceled before the runner picked it up.
	if err = app.Models.Jobs.Update(job); err != nil {
		app.logger.Warnw("cannot mark job as running", "job", id, "error", err)
		return
	}

	p := pipeline.New(app.InterPro, app.UniProt, app.AlphaFold, app.logger)
	p.OnProgress(func(message string, percent float64) {
		job.Message = message
		job.Progress = percent
		if err := app.updateJob(job); err != nil {
			app.logger.Warnw("cannot update job progress", "job", id, "error", err)
		}
	})

	result, err := p.Run(ctx, job.Accessions, pipeline.Options{
		OutputDir:          job.OutputDir,
		Entries:            job.Entries,
		RetrieveFasta:      job.Options.RetrieveFasta,
		DownloadStructures: job.Options.DownloadStructures,
		TrimStructures:     job.Options.TrimStructures,
		AcceptCustomPDBs:   job.Options.AcceptCustomPDBs,
		StrictCustomPDBs:   job.Options.StrictCustomPDBs,
		PDBSourceDir:       job.Options.PDBSourceDir,
	})

	job.Finished = time.Now().UTC()
	templateFile := ""
	switch {
	case err == nil:
		job.Status = data.JobCompleted
		job.Progress = 100
		job.Message = fmt.Sprintf("found %d domains across %d of %d proteins",
			result.Summary.Domains, result.Summary.WithDomains, result.Summary.Proteins)
		templateFile = "job_finished.tmpl"
	case errors.Is(err, data.ErrRunCanceled) || errors.Is(err, context.Canceled):
		job.Status = data.JobCanceled
		job.Message = "run canceled"
	default:
		job.Status = data.JobFailed
		job.Message = "run failed"
		job.Error = err.Error()
		templateFile = "job_failed.tmpl"
	}

	if err := app.updateJob(job); err != nil {
		app.logger.Errorw("cannot finalise job", "job", id, "error", err)
	}
	app.logger.Infow("job finished", "job", id, "status", job.Status)

	if job.Options.NotifyEmail != "" && templateFile != "" {
		if err := app.Mail.SendFromTemplate(job.Options.NotifyEmail, templateFile, job); err != nil {
			app.logger.Errorw("cannot send notification mail", "job", id, "error", err)
		}
	}
}

// updateJob writes the job back, refreshing its version once when a
// concurrent edit got there first.
func (app *application) updateJob(job *data.Job) error {
	err := app.Models.Jobs.Update(job)
	if !errors.Is(err, data.ErrEditConflict) {
		return err
	}

	fresh, err := app.Models.Jobs.Get(job.ID)
	if err != nil {
		return err
	}
	job.Version = fresh.Version
	return app.Models.Jobs.Update(job)
}
