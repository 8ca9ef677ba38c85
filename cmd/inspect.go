package cmd

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/evlabs/seqloader/hdf5rec"
)

var inspectLabelMap string
var inspectDeltaTUs int

var inspectCmd = &cobra.Command{
	Use:   "inspect <recording.h5> [...]",
	Short: "Summarize recordings",
	Long:  `Prints duration and per-class box counts for each recording file`,
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var schema map[string]int
		if inspectLabelMap != "" {
			loaded, err := loadLabelMap(inspectLabelMap)
			if err != nil {
				fatal(err)
			}
			schema = loaded
		}

		for _, path := range args {
			inspectRecording(path, schema)
		}
	},
}

func initInspect() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.PersistentFlags().StringVarP(&inspectLabelMap,
		"labelMap", "m", "", "Path or URL of the label map JSON, to resolve class names")
	inspectCmd.PersistentFlags().IntVar(&inspectDeltaTUs,
		"deltaT", 50000, "Duration of one time bin in microseconds")
}

func inspectRecording(path string, schema map[string]int) {
	rec, err := hdf5rec.Open(path, hdf5rec.StoreConfig{
		DeltaT: time.Duration(inspectDeltaTUs) * time.Microsecond,
	})
	if err != nil {
		log.WithFields(log.Fields{"file": path, "error": err}).Error("Unreadable recording")
		return
	}
	defer rec.Close()

	boxes, err := rec.Boxes(rec.StartTime(), rec.EndTime())
	if err != nil {
		log.WithFields(log.Fields{"file": path, "error": err}).Error("Unreadable labels")
		return
	}

	counts := make(map[int]int)
	for _, b := range boxes {
		counts[b.ClassID]++
	}

	names := make(map[int]string)
	for name, rawID := range schema {
		names[rawID] = name
	}

	fmt.Printf("%s: %s of data, %d boxes\n",
		path, time.Duration(rec.EndTime()-rec.StartTime())*time.Microsecond, len(boxes))
	for rawID, count := range counts {
		name := names[rawID]
		if name == "" {
			name = fmt.Sprintf("class %d", rawID)
		}
		fmt.Printf("  %-16s %d\n", name, count)
	}
}
