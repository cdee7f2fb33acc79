// Package obs holds the process-wide structured logging primitives for the
// provenance service. Every component logs single-line JSON to stdout so the
// collector can ingest entries without a parsing stage.
package obs

import (
	"encoding/json"
	"log"
	"os"
	"sync"
)

var (
	initOnce sync.Once
	shared   *log.Logger
)

// Logger returns the process-wide logger. The first caller initializes it;
// tests may redirect its output with SetOutput.
func Logger() *log.Logger {
	initOnce.Do(func() {
		shared = log.New(os.Stdout, "", 0)
	})
	return shared
}

// LogRequest serializes one request entry as a JSON line. Entries that cannot
// be serialized still produce a well-formed line so log ingestion never sees
// partial output.
func LogRequest(entry map[string]any) {
	data, err := json.Marshal(entry)
	if err != nil {
		Logger().Println(`{"level":"error","service":"foodtrace","msg":"request log entry not serializable"}`)
		return
	}
	Logger().Println(string(data))
}
