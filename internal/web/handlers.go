package web

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"

	"proteindomains.org/protdom/internal/data"
	"proteindomains.org/protdom/internal/pipeline"
	"proteindomains.org/protdom/internal/utils"
)

const apiVersion = "1.0.1"

type VersionInfo struct {
	Api        string `json:"api"`
	BuildTime  string `json:"build_time"`
	GitVersion string `json:"git_version"`
}

func (app *application) version(c *gin.Context) {
	version_info := VersionInfo{
		Api:        apiVersion,
		BuildTime:  viper.GetString("buildTime"),
		GitVersion: viper.GetString("gitVer"),
	}
	c.JSON(http.StatusOK, &version_info)
}

func (app *application) stats(c *gin.Context) {
	counts, err := app.Models.Jobs.Counts()
	if err != nil {
		app.serverError(c, err)
		return
	}

	c.JSON(http.StatusOK, counts)
}

type jobSubmission struct {
	Name               string   `json:"name"`
	Accessions         []string `json:"accessions"`
	Entries            []string `json:"entries"`
	RetrieveFasta      bool     `json:"retrieve_fasta"`
	DownloadStructures bool     `json:"download_structures"`
	TrimStructures     bool     `json:"trim_structures"`
	AcceptCustomPDBs   bool     `json:"accept_custom_pdbs"`
	StrictCustomPDBs   bool     `json:"custom_pdb_strict"`
	PDBSourceDir       string   `json:"pdb_source_dir"`
	NotifyEmail        string   `json:"notify_email"`
}

func (app *application) submitJob(c *gin.Context) {
	var submission jobSubmission
	if err := c.BindJSON(&submission); err != nil {
		app.clientErrorWithMessage(c, http.StatusBadRequest, err.Error())
		return
	}

	accessions := cleanList(submission.Accessions)
	entries := cleanList(submission.Entries)

	if len(accessions) == 0 {
		app.clientErrorWithMessage(c, http.StatusBadRequest, data.ErrNoAccessions.Error())
		return
	}
	if len(entries) == 0 {
		app.clientErrorWithMessage(c, http.StatusBadRequest, data.ErrNoEntries.Error())
		return
	}

	job := data.Job{
		Name:       submission.Name,
		Accessions: accessions,
		Entries:    entries,
		Options: data.JobOptions{
			RetrieveFasta:      submission.RetrieveFasta,
			DownloadStructures: submission.DownloadStructures,
			TrimStructures:     submission.TrimStructures,
			AcceptCustomPDBs:   submission.AcceptCustomPDBs,
			StrictCustomPDBs:   submission.StrictCustomPDBs,
			PDBSourceDir:       submission.PDBSourceDir,
			NotifyEmail:        submission.NotifyEmail,
		},
	}

	if err := app.Models.Jobs.Insert(&job); err != nil {
		app.serverError(c, err)
		return
	}

	app.launchJob(job.ID)

	c.JSON(http.StatusAccepted, &job)
}

// cleanList trims entries and drops empty strings and duplicates.
func cleanList(items []string) []string {
	var cleaned []string
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		cleaned = append(cleaned, item)
	}
	return utils.Unique(cleaned)
}

func (app *application) listJobs(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if err != nil {
		app.clientErrorWithMessage(c, http.StatusBadRequest, "invalid limit")
		return
	}

	jobs, err := app.Models.Jobs.List(limit)
	if err != nil {
		app.serverError(c, err)
		return
	}
	if jobs == nil {
		jobs = []data.Job{}
	}

	c.JSON(http.StatusOK, jobs)
}

func (app *application) showJob(c *gin.Context) {
	job, err := app.Models.Jobs.Get(c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, data.ErrRecordNotFound):
			app.notFound(c)
		default:
			app.serverError(c, err)
		}
		return
	}

	c.JSON(http.StatusOK, job)
}

func (app *application) jobDomains(c *gin.Context) {
	job, err := app.Models.Jobs.Get(c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, data.ErrRecordNotFound):
			app.notFound(c)
		default:
			app.serverError(c, err)
		}
		return
	}

	if job.Status != data.JobCompleted {
		app.clientErrorWithMessage(c, http.StatusConflict, data.ErrJobNotFinished.Error())
		return
	}

	content, err := os.ReadFile(filepath.Join(job.OutputDir, pipeline.ResultsFile))
	if err != nil {
		switch {
		case errors.Is(err, os.ErrNotExist):
			app.notFound(c)
		default:
			app.serverError(c, err)
		}
		return
	}

	c.Data(http.StatusOK, "application/json", content)
}

func (app *application) cancelJob(c *gin.Context) {
	job, err := app.Models.Jobs.Get(c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, data.ErrRecordNotFound):
			app.notFound(c)
		default:
			app.serverError(c, err)
		}
		return
	}

	if job.Status.Terminal() {
		app.clientErrorWithMessage(c, http.StatusConflict, "job already finished")
		return
	}

	// A running job stops between stages once its context is canceled.
	if app.cancels.cancel(job.ID) {
		c.JSON(http.StatusAccepted, gin.H{"status": "canceling"})
		return
	}

	// Not picked up by a runner yet, cancel it in the store directly.
	job.Status = data.JobCanceled
	job.Message = "canceled before start"
	job.Finished = time.Now().UTC()
	if err := app.Models.Jobs.Update(job); err != nil {
		switch {
		case errors.Is(err, data.ErrEditConflict):
			app.editConflict(c)
		default:
			app.serverError(c, err)
		}
		return
	}

	c.JSON(http.StatusOK, job)
}
