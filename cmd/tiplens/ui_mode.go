package main

import (
	"fmt"
	"os"
	"strings"
)

// mode is the value of a tri-state auto|on|off flag.
type mode string

const (
	modeAuto mode = "auto"
	modeOn   mode = "on"
	modeOff  mode = "off"
)

func readMode(flag, value string) (mode, error) {
	switch strings.TrimSpace(strings.ToLower(value)) {
	case "", "auto":
		return modeAuto, nil
	case "on":
		return modeOn, nil
	case "off":
		return modeOff, nil
	default:
		return "", fmt.Errorf("invalid --%s value %q (expected auto|on|off)", flag, value)
	}
}

// resolve turns auto into a decision based on the attached terminals.
func (m mode) resolve(files ...*os.File) bool {
	switch m {
	case modeOn:
		return true
	case modeOff:
		return false
	}
	for _, f := range files {
		if !isTerminal(f) {
			return false
		}
	}
	return true
}

func shouldUseTUI(m mode) bool {
	return m.resolve(os.Stdout, os.Stdin)
}
