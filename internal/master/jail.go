package master

import (
	"path"
	"strings"
)

// RerootSaveAs re-roots a worker-reported "saveas:" file:/// URL under
// the master's jail directory for this document (spec §4.D.3). URLs
// that aren't file:/// are returned unchanged — the jail only applies
// to paths the worker sees inside its own chroot.
func RerootSaveAs(jailRoot, url string) string {
	const prefix = "file:///"
	if !strings.HasPrefix(url, prefix) {
		return url
	}
	inner := strings.TrimPrefix(url, prefix)
	return "file://" + path.Join(jailRoot, inner)
}
