// Package version reads the release identity stamped into version.json
// at build time.
package version

import (
	"encoding/json"
	"log"
	"os"
)

const fallback = "0.0.0"

type Info struct {
	Version   string `json:"version"`
	BuildDate string `json:"build_date,omitempty"`
}

// Load reads version.json from the working directory. A missing or
// unreadable file yields the zero version rather than an error so the
// server can still report something on /health.
func Load() Info {
	return loadFrom("version.json")
}

func loadFrom(path string) Info {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("[version] %s unavailable, reporting %s: %v", path, fallback, err)
		return Info{Version: fallback}
	}
	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		log.Printf("[version] %s unparsable, reporting %s: %v", path, fallback, err)
		return Info{Version: fallback}
	}
	if info.Version == "" {
		info.Version = fallback
	}
	return info
}
