package cmd

import (
	"context"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	log "github.com/sirupsen/logrus"
)

// InfluxDBConfig holds configuration for InfluxDB results reporting
type InfluxDBConfig struct {
	Enabled bool
	URL     string
	Token   string
	Org     string
	Bucket  string
}

// PushResultsToInfluxDB pushes the streaming run summary to an InfluxDB
// instance, as a second sink next to the Prometheus push gateway
func PushResultsToInfluxDB(cfg *Config, results *ResultsJSONStream) error {
	if !cfg.InfluxDBConfig.Enabled || cfg.InfluxDBConfig.URL == "" {
		return nil
	}

	client := influxdb2.NewClient(cfg.InfluxDBConfig.URL, cfg.InfluxDBConfig.Token)
	defer client.Close()

	writeAPI := client.WriteAPIBlocking(cfg.InfluxDBConfig.Org, cfg.InfluxDBConfig.Bucket)

	// Create a point and add to batch
	p := influxdb2.NewPointWithMeasurement("seqloader_stream").
		AddTag("run_id", results.RunID).
		AddTag("dataset", results.Dataset).
		AddTag("split", results.Split).
		AddField("epochs", results.Epochs).
		AddField("batches", results.Batches).
		AddField("boxes", results.Boxes).
		AddField("padded_slots", results.PaddedSlots).
		AddField("files_visited", results.FilesVisited).
		AddField("retired_for_error", results.RetiredForError).
		AddField("batches_per_second", results.BatchesPerSecond).
		SetTime(time.Now())

	// Write the point
	if err := writeAPI.WritePoint(context.Background(), p); err != nil {
		log.WithError(err).Error("Failed to push results to InfluxDB")
		return err
	}

	log.WithFields(log.Fields{
		"url":    cfg.InfluxDBConfig.URL,
		"bucket": cfg.InfluxDBConfig.Bucket,
		"run_id": results.RunID,
		"split":  results.Split,
	}).Info("Successfully pushed results to InfluxDB")

	return nil
}
