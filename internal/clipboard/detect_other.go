//go:build !darwin

package clipboard

import (
	"os"
	"os/exec"
)

// Detect returns the clipboard reader for this system, preferring
// Wayland when a Wayland session is active.
func Detect() (Source, error) {
	if os.Getenv("WAYLAND_DISPLAY") != "" {
		if _, err := exec.LookPath("wl-paste"); err == nil {
			return WaylandSource(), nil
		}
	}
	if _, err := exec.LookPath("xclip"); err == nil {
		return X11Source(), nil
	}
	return nil, ErrUnsupported
}
