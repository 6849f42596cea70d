package state

import (
	"time"

	"msx/common"
)

// DefaultLocale is used when neither command line nor project record selects one.
const DefaultLocale = "zh"

// newLocalEnv creates a new LocalEnv instance with default values
func newLocalEnv() *LocalEnv {
	return &LocalEnv{
		start:  time.Now(),
		Format: common.OutputFmtPdf,
		Locale: DefaultLocale,
	}
}
