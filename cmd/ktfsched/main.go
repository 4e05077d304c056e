package main

import (
	"flag"
	"fmt"
	"os"
	"sync"
	"time"

	"ktfsched/internal/job"
	"ktfsched/internal/klog"
	"ktfsched/internal/mm"
	"ktfsched/internal/plan"
	"ktfsched/internal/sched"
	"ktfsched/internal/smp"
	"ktfsched/internal/trace"
	"ktfsched/internal/usermode"
)

func main() {
	var (
		configPath string
		planPath   string
		debug      bool
	)
	flag.StringVar(&configPath, "config", "ktfsched.yml", "Path to configuration file (.yml or .toml)")
	flag.StringVar(&planPath, "plan", "", "Test plan file, overrides the config's plan")
	flag.BoolVar(&debug, "debug", false, "Log every task state transition")
	flag.Parse()

	// Read the configuration
	cfg := sched.Load(configPath)
	if planPath != "" {
		cfg.Plan = planPath
	}
	if debug {
		cfg.Debug = true
	}

	level := klog.LevelInfo
	if cfg.Debug {
		level = klog.LevelDebug
	}
	logger := klog.NewDefaultLogger(nil, level)
	logger.Info("Loaded config", klog.F("config", fmt.Sprintf("%+v", cfg)))

	if err := run(cfg, logger); err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}
}

func run(cfg sched.Config, logger klog.Logger) error {
	clock := sched.NewTickClock()
	clock.Start(time.Duration(cfg.RelaxUS) * time.Microsecond)
	defer clock.Stop()

	opts := []sched.Option{
		sched.WithLogger(logger),
		sched.WithRelaxer(clock),
		sched.WithPageAllocator(mm.NewAllocator(cfg.MaxUserPages)),
		sched.WithTrampoline(usermode.New(logger)),
	}
	if cfg.TraceCSV != "" {
		rec, err := trace.Create(cfg.TraceCSV)
		if err != nil {
			return fmt.Errorf("opening trace: %w", err)
		}
		defer rec.Close()
		logger.Info("Tracing task lifecycle", klog.F("file", cfg.TraceCSV), klog.F("session", rec.Session()))
		opts = append(opts, sched.WithObserver(rec))
	}
	s := sched.New(opts...)

	for _, c := range smp.Boot(cfg.CPUs) {
		s.AddProcessor(c)
	}

	if cfg.Plan == "" {
		return fmt.Errorf("no test plan configured")
	}
	p, err := plan.Load(cfg.Plan)
	if err != nil {
		return err
	}
	var counter job.Counter
	tasks, err := p.Apply(s, &counter)
	if err != nil {
		logger.Warn("Some tasks were not submitted", klog.F("err", err))
	}

	// BSP unblocks every AP, then drains its own queue.
	procs := s.Processors()
	var wg sync.WaitGroup
	for _, ap := range procs[1:] {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.RunTasks(ap)
		}()
		ap.CPU().Unblock()
	}
	s.RunTasks(procs[0])

	for _, proc := range procs {
		if err := s.WaitForGroup(proc, sched.GroupAll); err != nil {
			return err
		}
	}
	wg.Wait()

	for _, t := range tasks {
		fmt.Printf("CPU[%v] %-24s %-6s runs=%d result=%d\n",
			t.Processor().ID(), t.String(), t.Type(), t.ExecCount(), t.Result())
	}
	fmt.Printf("counter tasks ran %d times\n", counter.Load())
	return nil
}
