package seqload

import (
	stderrors "errors"

	"github.com/pkg/errors"
)

// ErrConfig marks invalid loader configuration. Configuration errors are
// fatal and surface at construction time, never mid-epoch.
var ErrConfig = stderrors.New("invalid configuration")

// ErrDataCorruption marks an unreadable or malformed recording. Corruption
// is recovered per cursor: the affected slot is retired and backfilled, the
// epoch keeps running.
var ErrDataCorruption = stderrors.New("data corruption")

func configErrorf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrConfig, format, args...)
}

func corruptionErrorf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrDataCorruption, format, args...)
}
