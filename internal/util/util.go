package util

import (
	"fmt"
	"math"
	"time"
)

const (
	MicrosPerSecond = 1_000_000
	NanosPerSecond  = 1_000_000_000
)

// ScaleTimestamp returns value*multiplier/divisor, avoiding overflow where
// one factor divides the other and falling back to float math otherwise.
func ScaleTimestamp(value, multiplier, divisor int64) int64 {
	switch {
	case divisor >= multiplier && divisor%multiplier == 0:
		return value / (divisor / multiplier)
	case divisor < multiplier && multiplier%divisor == 0:
		return value * (multiplier / divisor)
	default:
		factor := float64(multiplier) / float64(divisor)
		return int64(float64(value) * factor)
	}
}

func FormatFileSize(size float64, human bool) string {
	if size <= 0 {
		return "0"
	}
	units := []string{"B", "KB", "MB", "GB", "TB", "PB", "EB"}
	group := 0
	if human {
		group = int(math.Log10(size) / math.Log10(1024))
		if group < 0 {
			group = 0
		}
		if group >= len(units) {
			group = len(units) - 1
		}
	}
	return fmt.Sprintf("%.2f %s", size/math.Pow(1024, float64(group)), units[group])
}

// FormatMicros renders a duration given in microseconds as h:mm:ss.mmm.
func FormatMicros(us int64) string {
	d := time.Duration(us) * time.Microsecond
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	ms := int(d.Milliseconds()) % 1000
	return fmt.Sprintf("%d:%02d:%02d.%03d", h, m, s, ms)
}

func FormatBitrate(bps int64) string {
	if bps <= 0 {
		return "n/a"
	}
	return fmt.Sprintf("%d kbps", (bps+500)/1000)
}
