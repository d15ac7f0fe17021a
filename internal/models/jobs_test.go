package models

import (
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/go-cmp/cmp"
	_ "github.com/lib/pq"

	"proteindomains.org/protdom/internal/data"
)

type JobModelTest struct {
	m        *LiveJobModel
	Teardown func()
}

func newJobTestDB(t *testing.T) *JobModelTest {
	mt := JobModelTest{}

	db, err := sql.Open("postgres", "host=localhost port=5432 user=postgres password=secret dbname=protdom_test sslmode=disable")
	if err != nil {
		t.Fatal(err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		t.Fatal(err)
	}
	migration, err := migrate.NewWithDatabaseInstance(
		"file://../../migrations",
		"postgres", driver)
	if err != nil {
		t.Fatal(err)
	}

	err = migration.Up()
	if err != nil {
		t.Fatal(err)
	}

	script, err := os.ReadFile("./testdata/testdata.sql")
	if err != nil {
		migration.Down()
		t.Fatal(err)
	}

	_, err = db.Exec(string(script))
	if err != nil {
		migration.Down()
		t.Fatal(err)
	}
	mt.m = NewJobModel(db)

	mt.Teardown = func() {
		migration.Down()
		db.Close()
	}
	return &mt
}

func TestJobModel(t *testing.T) {
	if testing.Short() {
		t.Skip("postgres: skipping integration test")
	}

	mt := newJobTestDB(t)
	defer mt.Teardown()

	t.Run("Ping", mt.Ping)
	t.Run("Get", mt.Get)
	t.Run("Insert", mt.Insert)
	t.Run("List", mt.List)
	t.Run("Update", mt.Update)
	t.Run("Counts", mt.Counts)
}

func (mt *JobModelTest) Ping(t *testing.T) {
	err := mt.m.Ping()
	if err != nil {
		t.Fatal(err)
	}
}

func (mt *JobModelTest) Get(t *testing.T) {
	expected := &data.Job{
		ID:         "11111111-1111-1111-1111-111111111111",
		Name:       "alpha",
		Accessions: []string{"Q9XLZ3"},
		Entries:    []string{"IPR018159"},
		Options:    data.JobOptions{RetrieveFasta: true},
		Status:     data.JobCompleted,
		Progress:   100,
		Message:    "run complete",
		OutputDir:  "/tmp/protdom-test/alpha",
		Created:    time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		Started:    time.Date(2024, 5, 1, 10, 0, 1, 0, time.UTC),
		Finished:   time.Date(2024, 5, 1, 10, 5, 0, 0, time.UTC),
		Version:    2,
	}

	job, err := mt.m.Get("11111111-1111-1111-1111-111111111111")
	if err != nil {
		t.Fatal(err)
	}

	if !cmp.Equal(expected, job) {
		t.Errorf("Get unexpected results:\n%s", cmp.Diff(expected, job))
	}

	_, err = mt.m.Get("33333333-3333-3333-3333-333333333333")
	if !errors.Is(err, data.ErrRecordNotFound) {
		t.Errorf("Expected ErrRecordNotFound, got %v", err)
	}
}

func (mt *JobModelTest) Insert(t *testing.T) {
	job := data.Job{
		Name:       "gamma",
		Accessions: []string{"P0DTD1"},
		Entries:    []string{"PF00271"},
		Options:    data.JobOptions{DownloadStructures: true},
	}

	err := mt.m.Insert(&job)
	if err != nil {
		t.Fatal(err)
	}

	if job.ID == "" {
		t.Error("Failed to set job ID on Insert")
	}
	if job.Version != 1 {
		t.Errorf("Expected version 1, got %d", job.Version)
	}
	if job.Created.IsZero() {
		t.Error("Failed to set creation time on Insert")
	}
	if job.Status != data.JobPending {
		t.Errorf("Expected status %s, got %s", data.JobPending, job.Status)
	}

	fetched, err := mt.m.Get(job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !cmp.Equal(&job, fetched) {
		t.Errorf("Insert unexpected results:\n%s", cmp.Diff(&job, fetched))
	}
}

func (mt *JobModelTest) List(t *testing.T) {
	jobs, err := mt.m.List(0)
	if err != nil {
		t.Fatal(err)
	}

	if len(jobs) != 3 {
		t.Fatalf("Expected 3 jobs, got %d", len(jobs))
	}

	expectedOrder := []string{"gamma", "beta", "alpha"}
	for i, name := range expectedOrder {
		if jobs[i].Name != name {
			t.Errorf("Expected job %d to be %s, got %s", i, name, jobs[i].Name)
		}
	}

	jobs, err = mt.m.List(1)
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 1 || jobs[0].Name != "gamma" {
		t.Errorf("Expected the newest job only, got %v", jobs)
	}
}

func (mt *JobModelTest) Update(t *testing.T) {
	job, err := mt.m.Get("22222222-2222-2222-2222-222222222222")
	if err != nil {
		t.Fatal(err)
	}

	stale := *job

	job.Status = data.JobRunning
	job.Progress = 25
	job.Message = "processing P12345"
	job.Started = time.Date(2024, 5, 2, 9, 30, 0, 0, time.UTC)

	if err = mt.m.Update(job); err != nil {
		t.Fatal(err)
	}
	if job.Version != 2 {
		t.Errorf("Expected version 2 after update, got %d", job.Version)
	}

	fetched, err := mt.m.Get(job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if fetched.Status != data.JobRunning || fetched.Progress != 25 {
		t.Errorf("Update not persisted: %+v", fetched)
	}

	stale.Message = "racing update"
	if err = mt.m.Update(&stale); !errors.Is(err, data.ErrEditConflict) {
		t.Errorf("Expected ErrEditConflict, got %v", err)
	}
}

func (mt *JobModelTest) Counts(t *testing.T) {
	expected := &data.JobCounts{
		Total:     3,
		Pending:   1,
		Running:   1,
		Completed: 1,
	}

	counts, err := mt.m.Counts()
	if err != nil {
		t.Fatal(err)
	}

	if !cmp.Equal(expected, counts) {
		t.Errorf("Counts unexpected results:\n%s", cmp.Diff(expected, counts))
	}
}

func TestMockJobModel(t *testing.T) {
	m := NewMockJobModel()

	job := data.Job{
		Name:       "alpha",
		Accessions: []string{"Q9XLZ3"},
		Entries:    []string{"IPR018159"},
	}
	if err := m.Insert(&job); err != nil {
		t.Fatal(err)
	}
	if job.ID == "" || job.Version != 1 {
		t.Errorf("Insert did not initialise the job: %+v", job)
	}

	second := data.Job{Name: "beta", Accessions: []string{"P12345"}, Entries: []string{"SSF46966"}}
	if err := m.Insert(&second); err != nil {
		t.Fatal(err)
	}

	fetched, err := m.Get(job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !cmp.Equal(&job, fetched) {
		t.Errorf("Get unexpected results:\n%s", cmp.Diff(&job, fetched))
	}

	if _, err = m.Get("no-such-job"); !errors.Is(err, data.ErrRecordNotFound) {
		t.Errorf("Expected ErrRecordNotFound, got %v", err)
	}

	jobs, err := m.List(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 2 || jobs[0].Name != "beta" {
		t.Errorf("Expected newest first, got %v", jobs)
	}

	stale := job
	job.Status = data.JobRunning
	if err = m.Update(&job); err != nil {
		t.Fatal(err)
	}
	if job.Version != 2 {
		t.Errorf("Expected version 2 after update, got %d", job.Version)
	}
	if err = m.Update(&stale); !errors.Is(err, data.ErrEditConflict) {
		t.Errorf("Expected ErrEditConflict, got %v", err)
	}

	counts, err := m.Counts()
	if err != nil {
		t.Fatal(err)
	}
	expected := &data.JobCounts{Total: 2, Pending: 1, Running: 1}
	if !cmp.Equal(expected, counts) {
		t.Errorf("Counts unexpected results:\n%s", cmp.Diff(expected, counts))
	}
}
