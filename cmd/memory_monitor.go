package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

type MemoryMetricEntry struct {
	Timestamp      time.Time `json:"timestamp"`
	HeapAllocBytes uint64    `json:"heap_alloc_bytes"`
	HeapInuseBytes uint64    `json:"heap_inuse_bytes"`
	HeapSysBytes   uint64    `json:"heap_sys_bytes"`
}

// MemoryMonitor samples the process heap while batches stream, so long runs
// over large recordings can be checked for loader-side leaks afterwards.
type MemoryMonitor struct {
	cfg      *Config
	metrics  []MemoryMetricEntry
	mutex    sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	filename string
}

func NewMemoryMonitor(cfg *Config) *MemoryMonitor {
	ctx, cancel := context.WithCancel(context.Background())

	filename := cfg.MemoryFile
	if filename == "" {
		filename = fmt.Sprintf("memory_metrics_%d.json", time.Now().Unix())
	}

	return &MemoryMonitor{
		cfg:      cfg,
		metrics:  make([]MemoryMetricEntry, 0),
		ctx:      ctx,
		cancel:   cancel,
		filename: filename,
	}
}

func (m *MemoryMonitor) Start() {
	if !m.cfg.MemoryMonitoring {
		return
	}

	interval := 5 * time.Second

	log.WithFields(log.Fields{
		"interval": interval,
		"file":     m.filename,
	}).Info("Starting memory monitoring")

	m.wg.Add(1)
	go m.monitorLoop(interval)
}

func (m *MemoryMonitor) Stop() {
	if !m.cfg.MemoryMonitoring {
		return
	}

	m.cancel()
	m.wg.Wait()

	if err := m.writeMetrics(); err != nil {
		log.WithFields(log.Fields{"error": err}).Warn("Failed to write memory metrics")
	}
}

func (m *MemoryMonitor) monitorLoop(interval time.Duration) {
	defer m.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.sample()
	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.sample()
		}
	}
}

func (m *MemoryMonitor) sample() {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)

	m.mutex.Lock()
	m.metrics = append(m.metrics, MemoryMetricEntry{
		Timestamp:      time.Now(),
		HeapAllocBytes: stats.HeapAlloc,
		HeapInuseBytes: stats.HeapInuse,
		HeapSysBytes:   stats.HeapSys,
	})
	m.mutex.Unlock()
}

func (m *MemoryMonitor) writeMetrics() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	data, err := json.MarshalIndent(m.metrics, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(m.filename, data, 0o644)
}
