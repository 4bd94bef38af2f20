package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/15226124477/cggtts"
	"github.com/midbel/cli"
	"github.com/reugn/go-quartz/job"
	"github.com/reugn/go-quartz/quartz"
	log "github.com/sirupsen/logrus"
)

type scheduleCmd struct{}

func (scheduleCmd) Run(args []string) error {
	var (
		g        globals
		set      = cli.NewFlagSet("schedule")
		from     = set.String("from", "", "start time, RFC3339 (default now)")
		to       = set.String("to", "", "end time, RFC3339 (default start + 24h)")
		duration = set.Int("duration", 0, "tracking duration in seconds (default from config)")
		bipm     = set.Bool("bipm", false, "use the BIPM common view calendar")
		follow   = set.Bool("follow", false, "wait and log each window as it starts")
	)
	g.register(set)
	if err := set.Parse(args); err != nil {
		return err
	}
	if err := g.load(); err != nil {
		return err
	}

	cfg := g.cfg.SchedulerConfig()
	if *duration != 0 {
		cfg.TrackingDuration = time.Duration(*duration) * time.Second
	}
	sched, err := cggtts.NewScheduler(cfg)
	if err != nil {
		return err
	}
	useBIPM := *bipm || g.cfg.Schedule.BIPM

	if *follow {
		trigger := sched.Trigger()
		if useBIPM {
			trigger = cggtts.BIPMCalendar.Trigger()
		}
		return followWindows(trigger)
	}

	start, end, err := timeRange(*from, *to)
	if err != nil {
		return err
	}
	if useBIPM {
		for w := cggtts.BIPMCalendar.NextWindow(start); !w.End().After(end); w = cggtts.BIPMCalendar.NextWindow(w.Start.Add(time.Nanosecond)) {
			printWindow(w)
		}
		return nil
	}
	for w := range sched.Windows(start, end) {
		printWindow(w)
	}
	return nil
}

func printWindow(w cggtts.Window) {
	fmt.Printf("%s  MJD %d  %s  %4.0fs\n", w.Start.UTC().Format(time.RFC3339), cggtts.MJD(w.Start), w.Start.UTC().Format("150405"), w.Duration.Seconds())
}

func timeRange(from, to string) (time.Time, time.Time, error) {
	start := time.Now().UTC()
	if from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			return start, start, err
		}
		start = t
	}
	end := start.Add(24 * time.Hour)
	if to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			return start, end, err
		}
		end = t
	}
	if !end.After(start) {
		return start, end, fmt.Errorf("empty range %s - %s", start, end)
	}
	return start, end, nil
}

// followWindows 在每个窗口开始时输出, 直到收到中断
func followWindows(trigger quartz.Trigger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	sched := quartz.NewStdScheduler()
	sched.Start(ctx)

	fn := job.NewFunctionJob(func(_ context.Context) (time.Time, error) {
		now := time.Now().UTC()
		log.Info("窗口开始: MJD ", cggtts.MJD(now), " ", now.Format("15:04:05"))
		return now, nil
	})
	if err := sched.ScheduleJob(quartz.NewJobDetail(fn, quartz.NewJobKey("cggtts-window")), trigger); err != nil {
		return err
	}
	next, _ := trigger.NextFireTime(time.Now().UnixNano())
	log.Info("下一个窗口: ", time.Unix(0, next).UTC().Format(time.RFC3339), " (", trigger.Description(), ")")

	<-ctx.Done()
	sched.Stop()
	sched.Wait(context.Background())
	return nil
}
