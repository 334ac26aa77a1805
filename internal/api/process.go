package api

import (
	"os"
	"sync"

	"github.com/shirou/gopsutil/v4/process"
)

// processStats reports resource usage of the running ingest process on the
// debug page.
type processStats struct {
	once sync.Once
	proc *process.Process
	err  error
}

func (p *processStats) get() (*process.Process, error) {
	p.once.Do(func() {
		p.proc, p.err = process.NewProcess(int32(os.Getpid()))
	})
	return p.proc, p.err
}

// RSS returns the resident set size in MiB, or an error string.
func (p *processStats) RSS() any {
	proc, err := p.get()
	if err != nil {
		return err.Error()
	}
	mem, err := proc.MemoryInfo()
	if err != nil {
		return err.Error()
	}
	return float64(mem.RSS) / (1 << 20)
}

// CPUPercent returns CPU usage since process start.
func (p *processStats) CPUPercent() any {
	proc, err := p.get()
	if err != nil {
		return err.Error()
	}
	pct, err := proc.CPUPercent()
	if err != nil {
		return err.Error()
	}
	return pct
}
