package cmd

import (
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// discoverSplit lists the recordings of one split, <dataset>/<split>/*.h5,
// sorted so that unshuffled epochs replay an identical schedule.
func discoverSplit(datasetPath, split string) ([]string, error) {
	pattern := filepath.Join(datasetPath, split, "*.h5")
	files, err := filepath.Glob(pattern)
	if err != nil {
		return nil, errors.Errorf("globbing %q: %v", pattern, err)
	}
	sort.Strings(files)
	log.WithFields(log.Fields{"split": split, "files": len(files)}).Debug("Discovered recordings")
	return files, nil
}

// discoverSplits resolves all three split file lists. Empty splits are
// allowed; a dataset with no recordings at all is rejected.
func discoverSplits(datasetPath string) (train, val, test []string, err error) {
	if train, err = discoverSplit(datasetPath, "train"); err != nil {
		return nil, nil, nil, err
	}
	if val, err = discoverSplit(datasetPath, "val"); err != nil {
		return nil, nil, nil, err
	}
	if test, err = discoverSplit(datasetPath, "test"); err != nil {
		return nil, nil, nil, err
	}
	if len(train)+len(val)+len(test) == 0 {
		return nil, nil, nil, errors.Errorf("no recordings found under %q", datasetPath)
	}
	return train, val, test, nil
}
