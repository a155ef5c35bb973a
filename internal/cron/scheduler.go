// Package cron re-runs catalog scenarios on a schedule.
//
// Jobs persist to a JSON store:
//
//	{ "version": 1, "jobs": [ { "id":"…", "name":"…", "scenario":"…",
//	    "message":"…", "enabled":true,
//	    "schedule":{"kind":"cron","expr":"*/5 * * * *"},
//	    "state":{"nextRunAtMs":…,"lastRunAtMs":…,"lastStatus":"ok","lastTurnId":"…"},
//	    "createdAtMs":…, "updatedAtMs":…, "deleteAfterRun":false } ] }
package cron

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	robfigcron "github.com/robfig/cron/v3"

	"github.com/erangalds/t-tool-calling-with-llms/internal/schema"
)

// Schedule kinds.
const (
	KindEvery = "every"
	KindCron  = "cron"
	KindAt    = "at"
)

// --------------------------------------------------------------------------
// Data types
// --------------------------------------------------------------------------

type Schedule struct {
	Kind    string  `json:"kind"`
	AtMs    *int64  `json:"atMs,omitempty"`
	EveryMs *int64  `json:"everyMs,omitempty"`
	Expr    *string `json:"expr,omitempty"`
	TZ      *string `json:"tz,omitempty"` // IANA timezone for Expr
}

// String renders the schedule for listings.
func (s Schedule) String() string {
	switch s.Kind {
	case KindEvery:
		if s.EveryMs != nil {
			return "every " + (time.Duration(*s.EveryMs) * time.Millisecond).String()
		}
	case KindCron:
		if s.Expr != nil {
			if s.TZ != nil {
				return *s.Expr + " (" + *s.TZ + ")"
			}
			return *s.Expr
		}
	case KindAt:
		if s.AtMs != nil {
			return "at " + time.UnixMilli(*s.AtMs).Format("2006-01-02 15:04")
		}
	}
	return s.Kind
}

type JobState struct {
	NextRunAtMs *int64  `json:"nextRunAtMs,omitempty"`
	LastRunAtMs *int64  `json:"lastRunAtMs,omitempty"`
	LastStatus  *string `json:"lastStatus,omitempty"`
	LastError   *string `json:"lastError,omitempty"`
	LastTurnID  *string `json:"lastTurnId,omitempty"`
}

// Job is one scheduled scenario run. An empty Message runs the scenario's
// own prompt.
type Job struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Scenario       string   `json:"scenario"`
	Message        string   `json:"message,omitempty"`
	Enabled        bool     `json:"enabled"`
	Schedule       Schedule `json:"schedule"`
	State          JobState `json:"state"`
	CreatedAtMs    int64    `json:"createdAtMs"`
	UpdatedAtMs    int64    `json:"updatedAtMs"`
	DeleteAfterRun bool     `json:"deleteAfterRun"`
}

// JobSpec is the caller-supplied part of a Job.
type JobSpec struct {
	Name           string
	Scenario       string
	Message        string
	Schedule       Schedule
	DeleteAfterRun bool
}

type jobStore struct {
	Version int   `json:"version"`
	Jobs    []Job `json:"jobs"`
}

// ParseSchedule builds a Schedule from exactly one of every, expr or at.
// at accepts RFC 3339 or a local "2006-01-02T15:04:05" timestamp.
func ParseSchedule(every time.Duration, expr, tz, at string) (Schedule, error) {
	set := 0
	for _, ok := range []bool{every > 0, expr != "", at != ""} {
		if ok {
			set++
		}
	}
	if set != 1 {
		return Schedule{}, schema.ConfigurationError("specify exactly one of --every, --cron or --at")
	}
	if tz != "" && expr == "" {
		return Schedule{}, schema.ConfigurationError("--tz can only be used with --cron")
	}

	switch {
	case every > 0:
		ms := every.Milliseconds()
		return Schedule{Kind: KindEvery, EveryMs: &ms}, nil
	case expr != "":
		if _, err := cronParser.Parse(expr); err != nil {
			return Schedule{}, schema.ConfigurationError("invalid cron expression %q: %v", expr, err)
		}
		s := Schedule{Kind: KindCron, Expr: &expr}
		if tz != "" {
			if _, err := time.LoadLocation(tz); err != nil {
				return Schedule{}, schema.ConfigurationError("invalid timezone %q: %v", tz, err)
			}
			s.TZ = &tz
		}
		return s, nil
	default:
		dt, err := time.ParseInLocation("2006-01-02T15:04:05", at, time.Local)
		if err != nil {
			if dt, err = time.Parse(time.RFC3339, at); err != nil {
				return Schedule{}, schema.ConfigurationError("invalid --at value %q: %v", at, err)
			}
		}
		ms := dt.UnixMilli()
		return Schedule{Kind: KindAt, AtMs: &ms}, nil
	}
}

// --------------------------------------------------------------------------
// Scheduler
// --------------------------------------------------------------------------

// RunFunc executes a fired job and returns the turn id of the run.
type RunFunc func(ctx context.Context, job Job) (string, error)

// Scheduler manages scheduled scenario runs.
type Scheduler struct {
	storePath string
	onJob     RunFunc

	mu     sync.Mutex
	store  jobStore
	loaded bool
	runCtx context.Context // set while Start is running

	timers    map[string]*time.Timer
	robfig    *robfigcron.Cron
	robfigIDs map[string]robfigcron.EntryID
}

// NewScheduler creates a Scheduler persisting to storePath.
func NewScheduler(storePath string) *Scheduler {
	return &Scheduler{
		storePath: storePath,
		timers:    make(map[string]*time.Timer),
		robfig:    robfigcron.New(),
		robfigIDs: make(map[string]robfigcron.EntryID),
	}
}

// SetOnJob registers the callback executed when a job fires.
// Must be set before Start().
func (s *Scheduler) SetOnJob(fn RunFunc) { s.onJob = fn }

// Start loads jobs, arms every enabled one, and blocks until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if err := s.loadLocked(); err != nil {
		slog.Warn("cron: load failed, starting empty", "err", err)
	}
	s.recomputeNextRunsLocked()
	s.saveLocked()
	s.runCtx = ctx
	for _, j := range s.store.Jobs {
		if j.Enabled {
			s.armJobLocked(ctx, j)
		}
	}
	s.mu.Unlock()

	s.robfig.Start()
	slog.Info("cron: started", "jobs", len(s.store.Jobs))

	<-ctx.Done()

	<-s.robfig.Stop().Done()
	s.mu.Lock()
	for id := range s.timers {
		s.cancelTimerLocked(id)
	}
	s.runCtx = nil
	s.mu.Unlock()
	return ctx.Err()
}

// AddJob stores a new job and arms it when the scheduler is running.
func (s *Scheduler) AddJob(spec JobSpec) (Job, error) {
	name, err := checkSpec(spec)
	if err != nil {
		return Job{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.loadLocked()
	return s.addLocked(name, spec), nil
}

// UpsertJob is AddJob keyed by name and scenario: when such a job already
// exists it takes spec's message and schedule and is re-enabled instead of
// being duplicated. The bool reports whether a new job was stored.
func (s *Scheduler) UpsertJob(spec JobSpec) (Job, bool, error) {
	name, err := checkSpec(spec)
	if err != nil {
		return Job{}, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.loadLocked()
	for i := range s.store.Jobs {
		j := &s.store.Jobs[i]
		if j.Name != name || j.Scenario != spec.Scenario {
			continue
		}
		now := nowMs()
		j.Message = spec.Message
		j.Schedule = spec.Schedule
		j.DeleteAfterRun = spec.DeleteAfterRun
		j.Enabled = true
		j.UpdatedAtMs = now
		j.State.NextRunAtMs = computeNextRun(spec.Schedule, now)
		s.saveLocked()
		if s.runCtx != nil {
			s.armJobLocked(s.runCtx, *j)
		}
		slog.Info("cron: updated job", "name", j.Name, "id", j.ID, "scenario", j.Scenario, "schedule", j.Schedule.String())
		return *j, false, nil
	}
	return s.addLocked(name, spec), true, nil
}

func checkSpec(spec JobSpec) (name string, err error) {
	if spec.Scenario == "" {
		return "", schema.ConfigurationError("job needs a scenario")
	}
	switch spec.Schedule.Kind {
	case KindEvery, KindCron, KindAt:
	default:
		return "", schema.ConfigurationError("unknown schedule kind %q", spec.Schedule.Kind)
	}
	if spec.Name == "" {
		return spec.Scenario, nil
	}
	return spec.Name, nil
}

func (s *Scheduler) addLocked(name string, spec JobSpec) Job {
	now := nowMs()
	job := Job{
		ID:             shortID(),
		Name:           name,
		Scenario:       spec.Scenario,
		Message:        spec.Message,
		Enabled:        true,
		Schedule:       spec.Schedule,
		State:          JobState{NextRunAtMs: computeNextRun(spec.Schedule, now)},
		CreatedAtMs:    now,
		UpdatedAtMs:    now,
		DeleteAfterRun: spec.DeleteAfterRun,
	}

	s.store.Jobs = append(s.store.Jobs, job)
	s.saveLocked()
	if s.runCtx != nil {
		s.armJobLocked(s.runCtx, job)
	}

	slog.Info("cron: added job", "name", job.Name, "id", job.ID, "scenario", job.Scenario, "schedule", job.Schedule.String())
	return job
}

// ListJobs returns jobs ordered by next run; includeDisabled controls visibility.
func (s *Scheduler) ListJobs(includeDisabled bool) []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.loadLocked()
	var jobs []Job
	for _, j := range s.store.Jobs {
		if includeDisabled || j.Enabled {
			jobs = append(jobs, j)
		}
	}
	sort.SliceStable(jobs, func(i, k int) bool {
		return nextRunOrMax(jobs[i]) < nextRunOrMax(jobs[k])
	})
	return jobs
}

// RemoveJob removes a job by ID and reports whether it existed.
func (s *Scheduler) RemoveJob(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.loadLocked()
	if !s.deleteLocked(id) {
		return false
	}
	s.cancelTimerLocked(id)
	s.saveLocked()
	return true
}

// EnableJob enables or disables a job.
func (s *Scheduler) EnableJob(id string, enabled bool) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.loadLocked()
	for i := range s.store.Jobs {
		j := &s.store.Jobs[i]
		if j.ID != id {
			continue
		}
		j.Enabled = enabled
		j.UpdatedAtMs = nowMs()
		if enabled {
			j.State.NextRunAtMs = computeNextRun(j.Schedule, nowMs())
			if s.runCtx != nil {
				s.armJobLocked(s.runCtx, *j)
			}
		} else {
			j.State.NextRunAtMs = nil
			s.cancelTimerLocked(id)
		}
		s.saveLocked()
		return *j, true
	}
	return Job{}, false
}

// RunJob executes a job immediately; force ignores the disabled flag.
func (s *Scheduler) RunJob(ctx context.Context, id string, force bool) bool {
	s.mu.Lock()
	_ = s.loadLocked()
	var job *Job
	for i := range s.store.Jobs {
		if s.store.Jobs[i].ID == id {
			job = &s.store.Jobs[i]
			break
		}
	}
	if job == nil || (!force && !job.Enabled) {
		s.mu.Unlock()
		return false
	}
	jobCopy := *job
	s.mu.Unlock()

	s.executeJob(ctx, jobCopy)
	return true
}

// --------------------------------------------------------------------------
// Internal scheduling logic
// --------------------------------------------------------------------------

var cronParser = robfigcron.NewParser(
	robfigcron.Minute | robfigcron.Hour | robfigcron.Dom | robfigcron.Month | robfigcron.Dow | robfigcron.Descriptor,
)

func (s *Scheduler) recomputeNextRunsLocked() {
	now := nowMs()
	for i := range s.store.Jobs {
		if s.store.Jobs[i].Enabled {
			s.store.Jobs[i].State.NextRunAtMs = computeNextRun(s.store.Jobs[i].Schedule, now)
		}
	}
}

func (s *Scheduler) armJobLocked(ctx context.Context, job Job) {
	s.cancelTimerLocked(job.ID)

	switch job.Schedule.Kind {
	case KindEvery:
		if job.Schedule.EveryMs == nil || *job.Schedule.EveryMs <= 0 {
			return
		}
		d := time.Duration(*job.Schedule.EveryMs) * time.Millisecond
		s.timers[job.ID] = time.AfterFunc(d, func() {
			s.executeJob(ctx, job)
			s.mu.Lock()
			defer s.mu.Unlock()
			if ctx.Err() != nil {
				return
			}
			for _, j := range s.store.Jobs {
				if j.ID == job.ID && j.Enabled {
					s.armJobLocked(ctx, j)
					break
				}
			}
		})

	case KindAt:
		if job.Schedule.AtMs == nil {
			return
		}
		delay := time.Until(time.UnixMilli(*job.Schedule.AtMs))
		if delay < 0 {
			return
		}
		s.timers[job.ID] = time.AfterFunc(delay, func() { s.executeJob(ctx, job) })

	case KindCron:
		if job.Schedule.Expr == nil {
			return
		}
		sched, err := cronParser.Parse(*job.Schedule.Expr)
		if err != nil {
			slog.Warn("cron: invalid cron expression", "job", job.ID, "expr", *job.Schedule.Expr, "err", err)
			return
		}
		jobCopy := job
		s.robfigIDs[job.ID] = s.robfig.Schedule(
			withLocation(sched, scheduleLocation(job.Schedule)),
			robfigcron.FuncJob(func() { s.executeJob(ctx, jobCopy) }),
		)
	}
}

func (s *Scheduler) cancelTimerLocked(id string) {
	if t, ok := s.timers[id]; ok {
		t.Stop()
		delete(s.timers, id)
	}
	if eid, ok := s.robfigIDs[id]; ok {
		s.robfig.Remove(eid)
		delete(s.robfigIDs, id)
	}
}

func (s *Scheduler) executeJob(ctx context.Context, job Job) {
	startMs := nowMs()
	slog.Info("cron: executing job", "name", job.Name, "id", job.ID, "scenario", job.Scenario)

	status := "ok"
	var lastErr, turnID *string

	if s.onJob != nil {
		id, err := s.onJob(ctx, job)
		if err != nil {
			status = "error"
			e := err.Error()
			lastErr = &e
			slog.Error("cron: job failed", "name", job.Name, "err", err)
		}
		if id != "" {
			turnID = &id
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.store.Jobs {
		j := &s.store.Jobs[i]
		if j.ID != job.ID {
			continue
		}
		now := nowMs()
		j.State.LastRunAtMs = &startMs
		j.State.LastStatus = &status
		j.State.LastError = lastErr
		j.State.LastTurnID = turnID
		j.UpdatedAtMs = now

		switch {
		case job.Schedule.Kind == KindAt && job.DeleteAfterRun:
			s.deleteLocked(job.ID)
		case job.Schedule.Kind == KindAt:
			j.Enabled = false
			j.State.NextRunAtMs = nil
		default:
			j.State.NextRunAtMs = computeNextRun(job.Schedule, now)
		}
		break
	}
	s.saveLocked()
}

func (s *Scheduler) deleteLocked(id string) bool {
	before := len(s.store.Jobs)
	filtered := s.store.Jobs[:0]
	for _, j := range s.store.Jobs {
		if j.ID != id {
			filtered = append(filtered, j)
		}
	}
	s.store.Jobs = filtered
	return len(filtered) < before
}

// --------------------------------------------------------------------------
// Persistence
// --------------------------------------------------------------------------

func (s *Scheduler) loadLocked() error {
	if s.loaded {
		return nil
	}
	s.loaded = true
	data, err := os.ReadFile(s.storePath)
	if os.IsNotExist(err) {
		s.store = jobStore{Version: 1}
		return nil
	}
	if err != nil {
		return err
	}
	var st jobStore
	if err := json.Unmarshal(data, &st); err != nil {
		return fmt.Errorf("parse %s: %w", s.storePath, err)
	}
	if st.Version == 0 {
		st.Version = 1
	}
	s.store = st
	return nil
}

func (s *Scheduler) saveLocked() {
	if s.store.Version == 0 {
		s.store.Version = 1
	}
	if err := os.MkdirAll(filepath.Dir(s.storePath), 0o755); err != nil {
		slog.Warn("cron: mkdir failed", "err", err)
		return
	}
	data, err := json.MarshalIndent(s.store, "", "  ")
	if err != nil {
		slog.Warn("cron: marshal failed", "err", err)
		return
	}
	if err := os.WriteFile(s.storePath, data, 0o644); err != nil {
		slog.Warn("cron: write failed", "err", err)
	}
}

// --------------------------------------------------------------------------
// Utility
// --------------------------------------------------------------------------

func nowMs() int64 { return time.Now().UnixMilli() }

func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

func nextRunOrMax(j Job) int64 {
	if j.State.NextRunAtMs == nil {
		return int64(^uint64(0) >> 1)
	}
	return *j.State.NextRunAtMs
}

func scheduleLocation(s Schedule) *time.Location {
	if s.TZ != nil && *s.TZ != "" {
		if l, err := time.LoadLocation(*s.TZ); err == nil {
			return l
		}
	}
	return time.Local
}

func computeNextRun(sched Schedule, nowMs int64) *int64 {
	switch sched.Kind {
	case KindAt:
		if sched.AtMs != nil && *sched.AtMs > nowMs {
			v := *sched.AtMs
			return &v
		}
	case KindEvery:
		if sched.EveryMs != nil && *sched.EveryMs > 0 {
			v := nowMs + *sched.EveryMs
			return &v
		}
	case KindCron:
		if sched.Expr == nil {
			return nil
		}
		parsed, err := cronParser.Parse(*sched.Expr)
		if err != nil {
			return nil
		}
		v := parsed.Next(time.UnixMilli(nowMs).In(scheduleLocation(sched))).UnixMilli()
		return &v
	}
	return nil
}

// locSchedule evaluates a robfig schedule in a fixed location.
type locSchedule struct {
	inner robfigcron.Schedule
	loc   *time.Location
}

func (l locSchedule) Next(t time.Time) time.Time {
	return l.inner.Next(t.In(l.loc))
}

func withLocation(s robfigcron.Schedule, loc *time.Location) robfigcron.Schedule {
	return locSchedule{inner: s, loc: loc}
}
