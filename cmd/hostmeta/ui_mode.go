package main

import (
	"fmt"
	"strings"
)

// progressMode is the --ui setting of the query command.
type progressMode string

const (
	progressAuto progressMode = "auto"
	progressOn   progressMode = "on"
	progressOff  progressMode = "off"
)

// minProgressBatch is the smallest batch that auto mode draws the live
// view for. Smaller batches finish before the first frame.
const minProgressBatch = 32

func parseProgressMode(value string) (progressMode, error) {
	switch m := progressMode(strings.TrimSpace(strings.ToLower(value))); m {
	case "":
		return progressAuto, nil
	case progressAuto, progressOn, progressOff:
		return m, nil
	default:
		return "", fmt.Errorf("invalid --ui value %q (expected auto|on|off)", value)
	}
}

// showProgress reports whether a batch of n queries runs under the live
// view. The view and the pretty report share stdout, so auto mode needs a
// terminal and pretty output.
func (m progressMode) showProgress(format string, n int, tty bool) bool {
	switch m {
	case progressOn:
		return true
	case progressOff:
		return false
	default:
		return tty && format == "pretty" && n >= minProgressBatch
	}
}
