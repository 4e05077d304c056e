// Package plan loads test plans: lists of tasks to construct and submit to
// processors at boot.
package plan

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	yaml "github.com/goccy/go-yaml"
	toml "github.com/pelletier/go-toml/v2"

	"ktfsched/internal/job"
	"ktfsched/internal/sched"
)

// Plan mirrors a plan file.
type Plan struct {
	Tasks []TaskSpec `yaml:"tasks" toml:"tasks"`
}

// TaskSpec describes one task.
type TaskSpec struct {
	Name    string `yaml:"name" toml:"name"`
	CPU     uint32 `yaml:"cpu" toml:"cpu"`
	Group   uint32 `yaml:"group" toml:"group"`   // 0 = no group
	Type    string `yaml:"type" toml:"type"`     // kernel (default) or user
	Repeat  string `yaml:"repeat" toml:"repeat"` // once (default), loop, or a count
	Work    string `yaml:"work" toml:"work"`     // sleep, count or lua
	SleepMS int64  `yaml:"sleep_ms" toml:"sleep_ms"`
	Script  string `yaml:"script" toml:"script"`
	Arg     any    `yaml:"arg" toml:"arg"`
}

// Load reads a plan from a YAML or TOML file, chosen by extension.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading plan %s: %w", path, err)
	}
	format := "yaml"
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		format = "toml"
	}
	p, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("plan %s: %w", path, err)
	}
	return p, nil
}

// Parse decodes a plan in the given format ("yaml" or "toml").
func Parse(data []byte, format string) (*Plan, error) {
	var p Plan
	var err error
	switch format {
	case "toml":
		err = toml.Unmarshal(data, &p)
	case "yaml", "yml":
		err = yaml.Unmarshal(data, &p)
	default:
		return nil, fmt.Errorf("unknown plan format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", format, err)
	}
	return &p, nil
}

// ParseRepeat converts "once", "loop" or a positive count.
func ParseRepeat(s string) (sched.Repeat, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	switch v {
	case "", "once":
		return sched.RepeatOnce, nil
	case "loop":
		return sched.RepeatLoop, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("repeat %q: %w", s, sched.ErrInvalidArgument)
	}
	return sched.Repeat(n), nil
}

// ParseType converts "kernel" or "user".
func ParseType(s string) (sched.TaskType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "kernel":
		return sched.TypeKernel, nil
	case "user":
		return sched.TypeUser, nil
	}
	return 0, fmt.Errorf("task type %q: %w", s, sched.ErrInvalidArgument)
}

func (ts TaskSpec) work(counter *job.Counter) (sched.TaskFunc, error) {
	switch strings.ToLower(ts.Work) {
	case "", "count":
		return counter.Work(), nil
	case "sleep":
		return job.SleepWork(ts.SleepMS), nil
	case "lua":
		return job.LuaWork(ts.Name, ts.Script)
	}
	return nil, fmt.Errorf("work %q: %w", ts.Work, sched.ErrInvalidArgument)
}

// Apply constructs and schedules every task in the plan. A task that cannot
// be built or submitted is destroyed and reported; the rest still run.
func (p *Plan) Apply(s *sched.Scheduler, counter *job.Counter) ([]*sched.Task, error) {
	var (
		tasks []*sched.Task
		errs  []error
	)
	for _, ts := range p.Tasks {
		t, err := ts.submit(s, counter)
		if err != nil {
			errs = append(errs, fmt.Errorf("task %s: %w", ts.Name, err))
			continue
		}
		tasks = append(tasks, t)
	}
	return tasks, errors.Join(errs...)
}

func (ts TaskSpec) submit(s *sched.Scheduler, counter *job.Counter) (*sched.Task, error) {
	typ, err := ParseType(ts.Type)
	if err != nil {
		return nil, err
	}
	repeat, err := ParseRepeat(ts.Repeat)
	if err != nil {
		return nil, err
	}
	fn, err := ts.work(counter)
	if err != nil {
		return nil, err
	}

	t, err := s.NewTask(ts.Name, fn, ts.Arg, typ)
	if err != nil {
		return nil, err
	}
	if err := t.SetRepeat(repeat); err != nil {
		s.DestroyTask(t)
		return nil, err
	}
	if err := t.SetGroup(sched.Group(ts.Group)); err != nil {
		s.DestroyTask(t)
		return nil, err
	}
	if err := s.Schedule(t, s.Processor(ts.CPU)); err != nil {
		s.DestroyTask(t)
		return nil, err
	}
	return t, nil
}
