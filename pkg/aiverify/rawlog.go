package aiverify

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// RawLogPrefix starts every raw model output file name.
const RawLogPrefix = "model_output_"

// rawLogName formats model_output_<yyyyMMdd_HHmmss_SSS>[_suffix].log.
func rawLogName(t time.Time, suffix string) string {
	name := fmt.Sprintf("%s%s_%03d", RawLogPrefix, t.Format("20060102_150405"), t.Nanosecond()/int(time.Millisecond))
	if suffix != "" {
		name += "_" + suffix
	}

	return name + ".log"
}

func (v *Verifier) writeRawOutput(content, suffix string) {
	if err := os.MkdirAll(v.cfg.LogDir, 0o750); err != nil {
		v.logger.Warn("Failed to create raw output directory", "dir", v.cfg.LogDir, "error", err)

		return
	}

	path := filepath.Join(v.cfg.LogDir, rawLogName(v.now(), suffix))

	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		v.logger.Warn("Failed to write raw output", "path", path, "error", err)

		return
	}

	v.logger.Info("Raw model output saved", "path", path)
}
