package main

import (
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
	"github.com/sirupsen/logrus"

	"github.com/sarchlab/cachesim/sim"
)

// resourceHook logs the memory and CPU use of the simulator at each
// progress notification.
func resourceHook(logger *logrus.Logger) sim.ProgressHook {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		logger.WithError(err).Debug("resource usage unavailable")
		return func(sim.Progress) {}
	}

	return func(p sim.Progress) {
		fields := logrus.Fields{
			"addresses": p.Processed,
			"elapsed":   p.Elapsed.Round(time.Millisecond),
			"hit_rate":  sim.FormatHitRate(p.Stats),
		}

		if mem, err := proc.MemoryInfo(); err == nil {
			fields["rss_mib"] = mem.RSS >> 20
		}

		if cpu, err := proc.CPUPercent(); err == nil {
			fields["cpu_percent"] = cpu
		}

		logger.WithFields(fields).Debug("resource usage")
	}
}
