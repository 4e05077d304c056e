package plan

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"ktfsched/internal/job"
	"ktfsched/internal/mm"
	"ktfsched/internal/sched"
	"ktfsched/internal/smp"
)

const yamlPlan = `
tasks:
  - name: counter
    cpu: 1
    group: 2
    repeat: "3"
  - name: script
    cpu: 1
    type: user
    work: lua
    script: "return arg + 1"
    arg: 41
  - name: orphan
    cpu: 9
`

const tomlPlan = `
[[tasks]]
name = "looper"
cpu = 0
repeat = "loop"
work = "sleep"
sleep_ms = 1
`

func TestParse(t *testing.T) {
	p, err := Parse([]byte(yamlPlan), "yaml")
	if err != nil {
		t.Fatalf("Parse(yaml) failed: %v", err)
	}
	if len(p.Tasks) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(p.Tasks))
	}
	if p.Tasks[0].Group != 2 || p.Tasks[0].Repeat != "3" {
		t.Errorf("unexpected first task: %+v", p.Tasks[0])
	}
	if p.Tasks[1].Type != "user" || p.Tasks[1].Script != "return arg + 1" {
		t.Errorf("unexpected second task: %+v", p.Tasks[1])
	}

	p, err = Parse([]byte(tomlPlan), "toml")
	if err != nil {
		t.Fatalf("Parse(toml) failed: %v", err)
	}
	if len(p.Tasks) != 1 || p.Tasks[0].Repeat != "loop" || p.Tasks[0].SleepMS != 1 {
		t.Errorf("unexpected toml plan: %+v", p.Tasks)
	}

	if _, err := Parse([]byte(yamlPlan), "ini"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plan.toml")
	if err := os.WriteFile(path, []byte(tomlPlan), 0o644); err != nil {
		t.Fatal(err)
	}
	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if p.Tasks[0].Name != "looper" {
		t.Errorf("unexpected plan: %+v", p.Tasks)
	}

	if _, err := Load(filepath.Join(dir, "missing.yml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestParseRepeat(t *testing.T) {
	cases := map[string]sched.Repeat{
		"":     sched.RepeatOnce,
		"once": sched.RepeatOnce,
		"LOOP": sched.RepeatLoop,
		"3":    3,
		" 3 ":  3,
	}
	for in, want := range cases {
		got, err := ParseRepeat(in)
		if err != nil || got != want {
			t.Errorf("ParseRepeat(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseRepeat("-2"); !errors.Is(err, sched.ErrInvalidArgument) {
		t.Errorf("ParseRepeat(-2) error = %v", err)
	}
}

// TestApply tests plan submission
// Main test items:
// 1. Valid tasks are constructed with their repeat policy and group
// 2. A task aimed at a missing processor is reported and leaves nothing allocated
// 3. Running the target processor executes the plan
func TestApply(t *testing.T) {
	pages := mm.NewAllocator(0)
	s := sched.New(sched.WithPageAllocator(pages))
	cpus := smp.Boot(2)
	for _, c := range cpus {
		s.AddProcessor(c)
	}

	p, err := Parse([]byte(yamlPlan), "yaml")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	var counter job.Counter
	tasks, err := p.Apply(s, &counter)
	if !errors.Is(err, sched.ErrNoProcessor) {
		t.Fatalf("expected ErrNoProcessor for orphan task, got %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("expected 2 submitted tasks, got %d", len(tasks))
	}
	if tasks[0].Repeat() != 3 || tasks[0].Group() != 2 {
		t.Errorf("counter task: repeat=%v group=%v", tasks[0].Repeat(), tasks[0].Group())
	}
	if pages.InUse() != 1 {
		t.Errorf("expected only the user task to hold a stack, InUse() = %d", pages.InUse())
	}

	script := tasks[1]
	cpus[1].Unblock()
	s.RunTasks(s.Processor(1))
	result := script.Result()

	if counter.Load() != 4 {
		t.Errorf("counter task ran %d times, want 4", counter.Load())
	}
	if result != 42 {
		t.Errorf("lua task result = %d, want 42", result)
	}
	if pages.InUse() != 0 {
		t.Errorf("stack leaked after run, InUse() = %d", pages.InUse())
	}
}
