package progress

import (
	"github.com/trebuchet-org/treb-release/internal/usecase"
)

// NewNopSink returns a sink that discards everything, used for --json
// output where stdout must stay machine readable
func NewNopSink() usecase.ProgressSink {
	return usecase.NopProgress{}
}
