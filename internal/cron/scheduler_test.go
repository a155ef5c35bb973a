package cron

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/erangalds/t-tool-calling-with-llms/internal/schema"
)

// newTestScheduler creates a Scheduler backed by a temp file.
func newTestScheduler(t *testing.T) (*Scheduler, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "schedules.json")
	return NewScheduler(path), path
}

// startScheduler runs s in the background and returns its cancel func.
func startScheduler(t *testing.T, s *Scheduler) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = s.Start(ctx) }()
	time.Sleep(20 * time.Millisecond)
	return cancel
}

func every(d time.Duration) Schedule {
	ms := d.Milliseconds()
	return Schedule{Kind: KindEvery, EveryMs: &ms}
}

func addJob(t *testing.T, s *Scheduler, name string, sched Schedule) Job {
	t.Helper()
	job, err := s.AddJob(JobSpec{Name: name, Scenario: "payment-status", Schedule: sched})
	if err != nil {
		t.Fatalf("AddJob(%s): %v", name, err)
	}
	return job
}

// ─── ParseSchedule ─────────────────────────────────────────────────────────

func TestParseSchedule(t *testing.T) {
	s, err := ParseSchedule(30*time.Second, "", "", "")
	if err != nil || s.Kind != KindEvery || *s.EveryMs != 30000 {
		t.Fatalf("every: got %+v, %v", s, err)
	}

	s, err = ParseSchedule(0, "*/5 * * * *", "UTC", "")
	if err != nil || s.Kind != KindCron || *s.Expr != "*/5 * * * *" || *s.TZ != "UTC" {
		t.Fatalf("cron: got %+v, %v", s, err)
	}

	s, err = ParseSchedule(0, "", "", "2030-01-02T03:04:05Z")
	if err != nil || s.Kind != KindAt {
		t.Fatalf("at: got %+v, %v", s, err)
	}
	if want := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC).UnixMilli(); *s.AtMs != want {
		t.Errorf("at: got %d, want %d", *s.AtMs, want)
	}
}

func TestParseSchedule_Invalid(t *testing.T) {
	cases := []struct {
		name  string
		every time.Duration
		expr  string
		tz    string
		at    string
	}{
		{name: "none"},
		{name: "two", every: time.Second, expr: "* * * * *"},
		{name: "bad expr", expr: "not a cron"},
		{name: "tz without cron", every: time.Second, tz: "UTC"},
		{name: "bad tz", expr: "* * * * *", tz: "Mars/Olympus"},
		{name: "bad at", at: "tomorrow"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseSchedule(tc.every, tc.expr, tc.tz, tc.at)
			if !errors.Is(err, schema.ErrConfiguration) {
				t.Fatalf("expected ErrConfiguration, got %v", err)
			}
		})
	}
}

// ─── AddJob ────────────────────────────────────────────────────────────────

func TestAddJob_Every(t *testing.T) {
	s, _ := newTestScheduler(t)
	job := addJob(t, s, "tick", every(5*time.Second))
	if job.ID == "" {
		t.Fatal("expected non-empty id")
	}
	jobs := s.ListJobs(false)
	if len(jobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(jobs))
	}
	if jobs[0].Scenario != "payment-status" {
		t.Errorf("unexpected scenario %q", jobs[0].Scenario)
	}
	if jobs[0].State.NextRunAtMs == nil {
		t.Error("expected next run to be computed")
	}
}

func TestAddJob_DefaultsNameToScenario(t *testing.T) {
	s, _ := newTestScheduler(t)
	job, err := s.AddJob(JobSpec{Scenario: "web-request", Schedule: every(time.Minute)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job.Name != "web-request" {
		t.Errorf("expected name to default to scenario, got %q", job.Name)
	}
}

func TestAddJob_Rejects(t *testing.T) {
	s, _ := newTestScheduler(t)
	if _, err := s.AddJob(JobSpec{Scenario: "x", Schedule: Schedule{Kind: "weekly"}}); !errors.Is(err, schema.ErrConfiguration) {
		t.Errorf("unknown kind: expected ErrConfiguration, got %v", err)
	}
	if _, err := s.AddJob(JobSpec{Schedule: every(time.Second)}); !errors.Is(err, schema.ErrConfiguration) {
		t.Errorf("missing scenario: expected ErrConfiguration, got %v", err)
	}
}

func TestUpsertJob_ReusesNameAndScenario(t *testing.T) {
	s, path := newTestScheduler(t)
	spec := JobSpec{Scenario: "weather-parallel", Schedule: every(time.Minute)}

	first, created, err := s.UpsertJob(spec)
	if err != nil || !created {
		t.Fatalf("first upsert: created=%v err=%v", created, err)
	}
	if _, ok := s.EnableJob(first.ID, false); !ok {
		t.Fatal("expected EnableJob to find the job")
	}

	spec.Schedule = every(2 * time.Minute)
	spec.Message = "weather in Oslo?"
	second, created, err := s.UpsertJob(spec)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if created {
		t.Error("expected the existing job to be reused")
	}
	if second.ID != first.ID {
		t.Errorf("expected id %s, got %s", first.ID, second.ID)
	}
	if !second.Enabled || second.Message != "weather in Oslo?" || *second.Schedule.EveryMs != 120000 {
		t.Errorf("job not updated: %+v", second)
	}

	if jobs := NewScheduler(path).ListJobs(true); len(jobs) != 1 {
		t.Fatalf("expected 1 stored job, got %d", len(jobs))
	}

	other, created, err := s.UpsertJob(JobSpec{Name: "oslo", Scenario: "weather-parallel", Schedule: every(time.Minute)})
	if err != nil || !created || other.ID == first.ID {
		t.Errorf("a different name should add a job: created=%v err=%v", created, err)
	}
}

// ─── RemoveJob / EnableJob ─────────────────────────────────────────────────

func TestRemoveJob(t *testing.T) {
	s, _ := newTestScheduler(t)
	job := addJob(t, s, "job", every(time.Second))
	if !s.RemoveJob(job.ID) {
		t.Fatal("expected RemoveJob to return true")
	}
	if s.RemoveJob(job.ID) {
		t.Fatal("expected second RemoveJob to return false")
	}
	if len(s.ListJobs(true)) != 0 {
		t.Error("expected empty job list after remove")
	}
}

func TestEnableJob_ToggleDisableEnable(t *testing.T) {
	s, _ := newTestScheduler(t)
	id := addJob(t, s, "j", every(time.Second)).ID

	job, ok := s.EnableJob(id, false)
	if !ok || job.Enabled || job.State.NextRunAtMs != nil {
		t.Fatalf("disable: got %+v ok=%v", job, ok)
	}
	if len(s.ListJobs(false)) != 0 || len(s.ListJobs(true)) != 1 {
		t.Error("disabled job should only be listed with includeDisabled")
	}

	job, ok = s.EnableJob(id, true)
	if !ok || !job.Enabled || job.State.NextRunAtMs == nil {
		t.Fatalf("enable: got %+v ok=%v", job, ok)
	}

	if _, ok := s.EnableJob("ghost", true); ok {
		t.Error("expected ok=false for unknown id")
	}
}

func TestListJobs_SortedByNextRun(t *testing.T) {
	s, _ := newTestScheduler(t)
	addJob(t, s, "slow", every(time.Minute))
	addJob(t, s, "fast", every(time.Second))

	jobs := s.ListJobs(false)
	if len(jobs) != 2 || jobs[0].Name != "fast" {
		t.Fatalf("expected fast first, got %+v", jobs)
	}
}

// ─── Persistence ───────────────────────────────────────────────────────────

func TestPersistence_RoundTrip(t *testing.T) {
	s, path := newTestScheduler(t)
	job, err := s.AddJob(JobSpec{Name: "persist", Scenario: "music-database", Message: "top artists?", Schedule: every(5 * time.Second)})
	if err != nil {
		t.Fatalf("AddJob: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read store: %v", err)
	}
	var store jobStore
	if err := json.Unmarshal(data, &store); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if store.Version != 1 || len(store.Jobs) != 1 || store.Jobs[0].ID != job.ID {
		t.Fatalf("unexpected store: %+v", store)
	}

	reloaded := NewScheduler(path).ListJobs(true)
	if len(reloaded) != 1 || reloaded[0].Message != "top artists?" {
		t.Fatalf("unexpected reload: %+v", reloaded)
	}
}

func TestPersistence_LoadExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schedules.json")
	existing := `{"version":1,"jobs":[{"id":"aabbccdd","name":"loaded","scenario":"weather-forced","enabled":true,
		"schedule":{"kind":"every","everyMs":3000},"state":{},"createdAtMs":1000,"updatedAtMs":1000,"deleteAfterRun":false}]}`
	if err := os.WriteFile(path, []byte(existing), 0o644); err != nil {
		t.Fatal(err)
	}

	jobs := NewScheduler(path).ListJobs(false)
	if len(jobs) != 1 || jobs[0].Name != "loaded" || jobs[0].Scenario != "weather-forced" {
		t.Fatalf("unexpected jobs: %+v", jobs)
	}
}

func TestPersistence_MissingFile(t *testing.T) {
	s, _ := newTestScheduler(t)
	if jobs := s.ListJobs(true); len(jobs) != 0 {
		t.Fatalf("expected 0 jobs from missing file, got %d", len(jobs))
	}
}

// ─── computeNextRun ────────────────────────────────────────────────────────

func TestComputeNextRun(t *testing.T) {
	now := time.Now().UnixMilli()
	future := time.Now().Add(time.Hour).UnixMilli()
	past := time.Now().Add(-time.Hour).UnixMilli()
	zero := int64(0)
	daily, utc := "0 12 * * *", "UTC"
	bad := "not a cron"

	if r := computeNextRun(every(5*time.Second), now); r == nil || *r != now+5000 {
		t.Errorf("every: got %v", r)
	}
	if r := computeNextRun(Schedule{Kind: KindEvery, EveryMs: &zero}, now); r != nil {
		t.Errorf("zero interval: expected nil, got %d", *r)
	}
	if r := computeNextRun(Schedule{Kind: KindAt, AtMs: &future}, now); r == nil || *r != future {
		t.Errorf("future at: got %v", r)
	}
	if r := computeNextRun(Schedule{Kind: KindAt, AtMs: &past}, now); r != nil {
		t.Errorf("past at: expected nil, got %d", *r)
	}
	if r := computeNextRun(Schedule{Kind: KindCron, Expr: &daily, TZ: &utc}, now); r == nil || *r <= now {
		t.Errorf("cron: expected future run, got %v", r)
	}
	if r := computeNextRun(Schedule{Kind: KindCron, Expr: &bad}, now); r != nil {
		t.Error("expected nil for invalid cron expression")
	}
}

// ─── Job execution ─────────────────────────────────────────────────────────

func TestRunJob_UpdatesState(t *testing.T) {
	s, _ := newTestScheduler(t)
	var got atomic.Value
	s.SetOnJob(func(_ context.Context, job Job) (string, error) {
		got.Store(job.Scenario)
		return "01TURN", nil
	})
	id := addJob(t, s, "state", every(10*time.Second)).ID

	if !s.RunJob(context.Background(), id, false) {
		t.Fatal("RunJob returned false")
	}
	if got.Load() != "payment-status" {
		t.Errorf("onJob saw scenario %v", got.Load())
	}

	job := s.ListJobs(false)[0]
	if job.State.LastRunAtMs == nil {
		t.Error("expected LastRunAtMs to be set")
	}
	if job.State.LastStatus == nil || *job.State.LastStatus != "ok" {
		t.Errorf("unexpected status: %v", job.State.LastStatus)
	}
	if job.State.LastTurnID == nil || *job.State.LastTurnID != "01TURN" {
		t.Errorf("unexpected turn id: %v", job.State.LastTurnID)
	}
}

func TestRunJob_RecordsError(t *testing.T) {
	s, _ := newTestScheduler(t)
	s.SetOnJob(func(context.Context, Job) (string, error) { return "", errors.New("provider down") })
	id := addJob(t, s, "err", every(10*time.Second)).ID

	s.RunJob(context.Background(), id, false)
	job := s.ListJobs(false)[0]
	if job.State.LastStatus == nil || *job.State.LastStatus != "error" {
		t.Errorf("unexpected status: %v", job.State.LastStatus)
	}
	if job.State.LastError == nil || *job.State.LastError != "provider down" {
		t.Errorf("unexpected error: %v", job.State.LastError)
	}
}

func TestRunJob_AtDeleteAfterRun(t *testing.T) {
	s, _ := newTestScheduler(t)
	future := time.Now().Add(time.Hour).UnixMilli()
	job, err := s.AddJob(JobSpec{Scenario: "web-request", Schedule: Schedule{Kind: KindAt, AtMs: &future}, DeleteAfterRun: true})
	if err != nil {
		t.Fatal(err)
	}

	s.RunJob(context.Background(), job.ID, true)
	if jobs := s.ListJobs(true); len(jobs) != 0 {
		t.Errorf("expected job deleted after run, got %d jobs", len(jobs))
	}
}

func TestRunJob_DisabledOrMissing(t *testing.T) {
	s, _ := newTestScheduler(t)
	id := addJob(t, s, "j", every(10*time.Second)).ID
	s.EnableJob(id, false)

	if s.RunJob(context.Background(), id, false) {
		t.Error("expected RunJob to refuse a disabled job without force")
	}
	if !s.RunJob(context.Background(), id, true) {
		t.Error("expected forced RunJob to run a disabled job")
	}
	if s.RunJob(context.Background(), "ghost", true) {
		t.Error("expected RunJob to return false for unknown id")
	}
}

// ─── Timer firing ──────────────────────────────────────────────────────────

func TestEveryJob_FiresAfterInterval(t *testing.T) {
	s, _ := newTestScheduler(t)
	var count atomic.Int32
	s.SetOnJob(func(context.Context, Job) (string, error) {
		count.Add(1)
		return "", nil
	})

	addJob(t, s, "fast", every(50*time.Millisecond))
	cancel := startScheduler(t, s)
	defer cancel()

	time.Sleep(180 * time.Millisecond)
	if n := count.Load(); n < 2 {
		t.Errorf("expected at least 2 executions, got %d", n)
	}
}

func TestAddJob_ArmsWhileRunning(t *testing.T) {
	s, _ := newTestScheduler(t)
	var count atomic.Int32
	s.SetOnJob(func(context.Context, Job) (string, error) {
		count.Add(1)
		return "", nil
	})

	cancel := startScheduler(t, s)
	defer cancel()

	at := time.Now().Add(40 * time.Millisecond).UnixMilli()
	if _, err := s.AddJob(JobSpec{Scenario: "payment-status", Schedule: Schedule{Kind: KindAt, AtMs: &at}}); err != nil {
		t.Fatal(err)
	}

	time.Sleep(200 * time.Millisecond)
	if n := count.Load(); n != 1 {
		t.Errorf("expected exactly 1 execution for at-job, got %d", n)
	}
}
