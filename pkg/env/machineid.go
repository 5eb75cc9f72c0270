package env

import (
	"os"

	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"
)

const appID = "robotserial"

// MachineID retrieves an ID identifying the machine, derived from the OS
// machine id so the raw id is never published. It falls back to the host
// name.
func MachineID() string {
	id, err := machineid.ProtectedID(appID)
	if err == nil && len(id) >= 12 {
		return id[:12]
	}
	glog.V(2).Infof("machine id: %v", err)
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return appID
}
