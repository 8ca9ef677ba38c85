package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/evlabs/seqloader/hdf5rec"
	"github.com/evlabs/seqloader/seqload"
)

var streamCmd = &cobra.Command{
	Use:   "stream",
	Short: "Stream batches from a precomputed dataset",
	Long:  `Drives full epochs of time-windowed batches over one dataset split and reports throughput, padding and per-file error counts`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := globalConfig

		if err := cfg.Validate(); err != nil {
			fatal(err)
		}

		runStream(&cfg)
	},
}

func initStream() {
	rootCmd.AddCommand(streamCmd)
	streamCmd.PersistentFlags().StringVarP(&globalConfig.DatasetPath,
		"dataset", "d", "", "Path to the dataset folder with train/val/test subfolders")
	streamCmd.PersistentFlags().StringVarP(&globalConfig.LabelMapPath,
		"labelMap", "m", "label_map_dictionary.json", "Path or URL of the label map JSON")
	streamCmd.PersistentFlags().StringVarP(&globalConfig.Split,
		"split", "s", "train", "Dataset split to stream, one of [train, val, test]")
	streamCmd.PersistentFlags().IntVarP(&globalConfig.BatchSize,
		"batchSize", "b", 4, "Number of concurrent recording slots per batch")
	streamCmd.PersistentFlags().IntVarP(&globalConfig.NumTBins,
		"tbins", "t", 12, "Number of time bins per chunk")
	streamCmd.PersistentFlags().IntVar(&globalConfig.DeltaTUs,
		"deltaT", 50000, "Duration of one time bin in microseconds")
	streamCmd.PersistentFlags().IntVar(&globalConfig.Channels,
		"channels", 2, "Tensor channels (2 for histograms)")
	streamCmd.PersistentFlags().IntVar(&globalConfig.Height,
		"height", 360, "Tensor height in pixels")
	streamCmd.PersistentFlags().IntVar(&globalConfig.Width,
		"width", 640, "Tensor width in pixels")
	streamCmd.PersistentFlags().StringSliceVarP(&globalConfig.ClassSelection,
		"classes", "c", []string{"pedestrian", "two wheeler", "car"}, "Ordered class selection; index = training id")
	streamCmd.PersistentFlags().Float64Var(&globalConfig.MinBoxDiagonal,
		"minBoxDiag", 60, "Drop boxes with a smaller diagonal")
	streamCmd.PersistentFlags().Float64Var(&globalConfig.MaxIncrPerPixel,
		"maxIncrPerPixel", 5, "Clamp tensor values at this count, 0 to disable")
	streamCmd.PersistentFlags().BoolVar(&globalConfig.Shuffle,
		"shuffle", false, "Shuffle the file queue before each train epoch")
	streamCmd.PersistentFlags().Int64Var(&globalConfig.Seed,
		"seed", 0, "Shuffle seed, 0 picks one from the clock")
	streamCmd.PersistentFlags().IntVarP(&globalConfig.Epochs,
		"epochs", "e", 1, "Number of epochs to stream")
	streamCmd.PersistentFlags().StringVarP(&globalConfig.OutputFormat,
		"format", "f", "text", "Output format, one of [text, json]")
	streamCmd.PersistentFlags().StringVarP(&globalConfig.OutputFile,
		"output", "o", "", "Filename for a JSON results file. If none provided, output to stdout only")
	streamCmd.PersistentFlags().StringVar(&globalConfig.MetricsFile,
		"metricsFile", "", "Write metrics in Prometheus text format to this file")
	streamCmd.PersistentFlags().StringVar(&globalConfig.MetricsPushURL,
		"metricsPush", "", "Push metrics to this Prometheus push gateway URL")
	streamCmd.PersistentFlags().BoolVar(&globalConfig.MemoryMonitoring,
		"memoryMonitoring", false, "Sample process heap usage while streaming")
	streamCmd.PersistentFlags().StringVar(&globalConfig.MemoryFile,
		"memoryFile", "", "Filename for the memory samples JSON")
	streamCmd.PersistentFlags().BoolVar(&globalConfig.InfluxDBConfig.Enabled,
		"influxEnabled", false, "Push the run summary to InfluxDB")
	streamCmd.PersistentFlags().StringVar(&globalConfig.InfluxDBConfig.URL,
		"influxURL", "", "InfluxDB server URL")
	streamCmd.PersistentFlags().StringVar(&globalConfig.InfluxDBConfig.Token,
		"influxToken", "", "InfluxDB auth token")
	streamCmd.PersistentFlags().StringVar(&globalConfig.InfluxDBConfig.Org,
		"influxOrg", "", "InfluxDB organization")
	streamCmd.PersistentFlags().StringVar(&globalConfig.InfluxDBConfig.Bucket,
		"influxBucket", "", "InfluxDB bucket")
}

// ResultsJSONStream is the machine-readable summary of one streaming run.
type ResultsJSONStream struct {
	RunID            string  `json:"run_id"`
	Dataset          string  `json:"dataset_path"`
	Split            string  `json:"split"`
	Epochs           int     `json:"epochs"`
	Batches          int     `json:"batches"`
	Boxes            int     `json:"boxes"`
	PaddedSlots      int     `json:"padded_slots"`
	FilesVisited     int     `json:"files_visited"`
	RetiredForError  int     `json:"retired_for_error"`
	BatchesPerSecond float64 `json:"bps"`
}

func runStream(cfg *Config) {
	runID := uuid.New().String()

	schema, err := loadLabelMap(cfg.LabelMapPath)
	if err != nil {
		fatal(err)
	}

	train, val, test, err := discoverSplits(cfg.DatasetPath)
	if err != nil {
		fatal(err)
	}

	opener := hdf5rec.Opener(hdf5rec.StoreConfig{
		DeltaT:          time.Duration(cfg.DeltaTUs) * time.Microsecond,
		MaxIncrPerPixel: float32(cfg.MaxIncrPerPixel),
	})

	loader, err := seqload.NewDatasetSplitLoader(cfg.loaderConfig(), schema, train, val, test, opener)
	if err != nil {
		fatal(err)
	}

	split := seqload.Split(cfg.Split)
	metrics := NewStreamMetrics(prometheus.Labels{"run_id": runID, "split": cfg.Split})

	monitor := NewMemoryMonitor(cfg)
	monitor.Start()
	defer monitor.Stop()

	results := ResultsJSONStream{
		RunID:   runID,
		Dataset: cfg.DatasetPath,
		Split:   cfg.Split,
		Epochs:  cfg.Epochs,
	}

	startTime := time.Now()
	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		mux, err := loader.Multiplexer(split)
		if err != nil {
			fatal(err)
		}

		epochStart := time.Now()
		for batch := mux.NextBatch(); batch != nil; batch = mux.NextBatch() {
			metrics.ObserveBatch(batch)
			for _, labels := range batch.Labels {
				results.Boxes += len(labels)
			}
		}
		elapsed := time.Since(epochStart)

		stats := mux.Stats()
		metrics.ObserveEpoch(stats, elapsed)
		results.Batches += stats.Batches
		results.PaddedSlots += stats.PaddedSlots
		results.FilesVisited += stats.FilesVisited
		results.RetiredForError += stats.RetiredForError

		log.WithFields(log.Fields{
			"epoch":    epoch,
			"batches":  stats.Batches,
			"files":    stats.FilesVisited,
			"padded":   stats.PaddedSlots,
			"retired":  stats.RetiredForError,
			"duration": elapsed,
		}).Info("Epoch complete")
	}

	totalElapsed := time.Since(startTime)
	if totalElapsed > 0 {
		results.BatchesPerSecond = float64(results.Batches) / totalElapsed.Seconds()
	}

	if cfg.MetricsFile != "" {
		if err := metrics.WriteTextfile(cfg.MetricsFile); err != nil {
			log.WithFields(log.Fields{"file": cfg.MetricsFile, "error": err}).Warn("Failed to write metrics file")
		}
	}
	if cfg.MetricsPushURL != "" {
		metrics.Push(cfg.MetricsPushURL)
	}
	PushResultsToInfluxDB(cfg, &results)

	reportResults(cfg, results)
}

func reportResults(cfg *Config, results ResultsJSONStream) {
	if cfg.OutputFormat == "json" || cfg.OutputFile != "" {
		data, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			fatal(err)
		}
		if cfg.OutputFile != "" {
			if err := os.WriteFile(cfg.OutputFile, data, 0o644); err != nil {
				fatal(err)
			}
		}
		if cfg.OutputFormat == "json" {
			fmt.Println(string(data))
			return
		}
	}

	fmt.Printf("run %s: %d batches over %d files (%d padded slots, %d retired for error), %.1f batches/s\n",
		results.RunID, results.Batches, results.FilesVisited,
		results.PaddedSlots, results.RetiredForError, results.BatchesPerSecond)
}
