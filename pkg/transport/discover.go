package transport

import (
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/golang/glog"
)

// PortPatterns returns the device globs probed on goos when the port
// enumeration of the serial driver finds nothing.
func PortPatterns(goos string) []string {
	switch goos {
	case "linux", "cygwin":
		return []string{"/dev/tty[A-Za-z]*"}
	case "darwin":
		return []string{"/dev/tty.*"}
	case "freebsd", "openbsd", "netbsd":
		return []string{"/dev/cua*", "/dev/tty[A-Za-z]*"}
	}
	return nil
}

func fallbackPorts(goos string, glob func(string) ([]string, error)) []string {
	if goos == "windows" {
		names := make([]string, 0, 256)
		for i := 1; i <= 256; i++ {
			names = append(names, fmt.Sprintf("COM%d", i))
		}
		return names
	}
	var names []string
	for _, pattern := range PortPatterns(goos) {
		matches, err := glob(pattern)
		if err != nil {
			continue
		}
		names = append(names, matches...)
	}
	return names
}

// Discover implements imu.Discoverer. It lists serial ports and keeps those
// which can be opened.
func (c Config) Discover() ([]string, error) {
	names, err := listBugst()
	if err != nil {
		glog.V(2).Infof("list ports: %v", err)
	}
	if len(names) == 0 {
		names = fallbackPorts(runtime.GOOS, filepath.Glob)
	}
	return c.probe(names), nil
}

func (c Config) probe(names []string) []string {
	var found []string
	for _, name := range names {
		t, err := c.Open(name)
		if err != nil {
			glog.V(3).Infof("skip %s: %v", name, err)
			continue
		}
		t.Close()
		found = append(found, name)
	}
	glog.V(2).Infof("ports: %v", found)
	return found
}
