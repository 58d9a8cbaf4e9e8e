package capture

import (
	"strconv"

	"github.com/visgrid/framecast/internal/broadcast"
)

// Option keys recognized by Create. Unrecognized keys are ignored, not
// errors, so callers can pass a shared option map to several components.
const (
	OptTargetWidth  = "target_width"
	OptTargetHeight = "target_height"
	OptMaxFPS       = "max_fps"
)

func parseOptions(opts map[string]string, bcast broadcast.Options) Config {
	cfg := Config{Broadcast: bcast}
	for key, value := range opts {
		switch key {
		case OptTargetWidth:
			cfg.TargetWidth = parseOptionInt(key, value)
		case OptTargetHeight:
			cfg.TargetHeight = parseOptionInt(key, value)
		case OptMaxFPS:
			cfg.MaxFPS = parseOptionInt(key, value)
		}
	}
	return cfg
}

// parseOptionInt returns 0 (the "unset" value) for anything that does not
// parse as a positive integer.
func parseOptionInt(key, value string) int {
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		log.Warn("ignoring malformed option", "key", key, "value", value)
		return 0
	}
	return n
}
