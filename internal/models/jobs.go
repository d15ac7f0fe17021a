package models

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"proteindomains.org/protdom/internal/data"
)

type JobModel interface {
	Ping() error
	Insert(job *data.Job) error
	Get(id string) (*data.Job, error)
	List(limit int) ([]data.Job, error)
	Update(job *data.Job) error
	Counts() (*data.JobCounts, error)
}

type LiveJobModel struct {
	DB *sql.DB
}

func NewJobModel(db *sql.DB) *LiveJobModel {
	return &LiveJobModel{DB: db}
}

func (m *LiveJobModel) Ping() error {
	return m.DB.Ping()
}

func (m *LiveJobModel) Insert(job *data.Job) error {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = data.JobPending
	}

	options, err := json.Marshal(job.Options)
	if err != nil {
		return err
	}

	statement := `INSERT INTO protdom.jobs
(job_id, name, accessions, entries, options, status, message, output_dir)
VALUES
($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING created, version`

	row := m.DB.QueryRow(statement, job.ID, job.Name, pq.Array(job.Accessions),
		pq.Array(job.Entries), options, job.Status, job.Message, job.OutputDir)
	return row.Scan(&job.Created, &job.Version)
}

func (m *LiveJobModel) Get(id string) (*data.Job, error) {
	statement := `SELECT job_id, name, accessions, entries, options, status, progress, message, error, output_dir, created, started, finished, version
FROM protdom.jobs WHERE job_id = $1`

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	var (
		job      data.Job
		options  []byte
		started  sql.NullTime
		finished sql.NullTime
	)

	row := m.DB.QueryRowContext(ctx, statement, id)
	err := row.Scan(&job.ID, &job.Name, pq.Array(&job.Accessions), pq.Array(&job.Entries),
		&options, &job.Status, &job.Progress, &job.Message, &job.Error, &job.OutputDir,
		&job.Created, &started, &finished, &job.Version)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, data.ErrRecordNotFound
		default:
			return nil, err
		}
	}

	if err = json.Unmarshal(options, &job.Options); err != nil {
		return nil, err
	}
	job.Started = started.Time
	job.Finished = finished.Time

	return &job, nil
}

func (m *LiveJobModel) List(limit int) ([]data.Job, error) {
	statement := `SELECT job_id, name, accessions, entries, options, status, progress, message, error, output_dir, created, started, finished, version
FROM protdom.jobs ORDER BY created DESC`
	args := []interface{}{}
	if limit > 0 {
		statement += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := m.DB.Query(statement, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []data.Job
	for rows.Next() {
		var (
			job      data.Job
			options  []byte
			started  sql.NullTime
			finished sql.NullTime
		)
		err := rows.Scan(&job.ID, &job.Name, pq.Array(&job.Accessions), pq.Array(&job.Entries),
			&options, &job.Status, &job.Progress, &job.Message, &job.Error, &job.OutputDir,
			&job.Created, &started, &finished, &job.Version)
		if err != nil {
			return nil, err
		}
		if err = json.Unmarshal(options, &job.Options); err != nil {
			return nil, err
		}
		job.Started = started.Time
		job.Finished = finished.Time

		jobs = append(jobs, job)
	}

	return jobs, rows.Err()
}

func (m *LiveJobModel) Update(job *data.Job) error {
	statement := `UPDATE protdom.jobs SET
status = $1, progress = $2, message = $3, error = $4, output_dir = $5, started = $6, finished = $7, version = version + 1
WHERE job_id = $8 AND version = $9
RETURNING version`

	args := []interface{}{
		job.Status,
		job.Progress,
		job.Message,
		job.Error,
		job.OutputDir,
		nullableTime(job.Started),
		nullableTime(job.Finished),
		job.ID,
		job.Version,
	}

	err := m.DB.QueryRow(statement, args...).Scan(&job.Version)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return data.ErrEditConflict
		default:
			return err
		}
	}
	return nil
}

func (m *LiveJobModel) Counts() (*data.JobCounts, error) {
	statement := `SELECT status, COUNT(1) FROM protdom.jobs GROUP BY status`

	rows, err := m.DB.Query(statement)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts data.JobCounts
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err = rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts.Total += count
		switch data.JobStatus(status) {
		case data.JobPending:
			counts.Pending = count
		case data.JobRunning:
			counts.Running = count
		case data.JobCompleted:
			counts.Completed = count
		case data.JobFailed:
			counts.Failed = count
		case data.JobCanceled:
			counts.Canceled = count
		}
	}

	return &counts, rows.Err()
}

func nullableTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

// MockJobModel keeps jobs in memory, newest last in insertion order.
type MockJobModel struct {
	mutex sync.Mutex
	jobs  map[string]data.Job
	order []string
}

func NewMockJobModel() *MockJobModel {
	return &MockJobModel{
		jobs: make(map[string]data.Job),
	}
}

func (m *MockJobModel) Ping() error {
	return nil
}

func (m *MockJobModel) Insert(job *data.Job) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = data.JobPending
	}
	job.Created = time.Now().UTC()
	job.Version = 1

	m.jobs[job.ID] = *job
	m.order = append(m.order, job.ID)
	return nil
}

func (m *MockJobModel) Get(id string) (*data.Job, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	job, ok := m.jobs[id]
	if !ok {
		return nil, data.ErrRecordNotFound
	}
	return &job, nil
}

func (m *MockJobModel) List(limit int) ([]data.Job, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	var jobs []data.Job
	for i := len(m.order) - 1; i >= 0; i-- {
		if limit > 0 && len(jobs) >= limit {
			break
		}
		jobs = append(jobs, m.jobs[m.order[i]])
	}
	return jobs, nil
}

func (m *MockJobModel) Update(job *data.Job) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	stored, ok := m.jobs[job.ID]
	if !ok || stored.Version != job.Version {
		return data.ErrEditConflict
	}
	job.Version++
	m.jobs[job.ID] = *job
	return nil
}

func (m *MockJobModel) Counts() (*data.JobCounts, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	var counts data.JobCounts
	for _, job := range m.jobs {
		counts.Total++
		switch job.Status {
		case data.JobPending:
			counts.Pending++
		case data.JobRunning:
			counts.Running++
		case data.JobCompleted:
			counts.Completed++
		case data.JobFailed:
			counts.Failed++
		case data.JobCanceled:
			counts.Canceled++
		}
	}
	return &counts, nil
}
