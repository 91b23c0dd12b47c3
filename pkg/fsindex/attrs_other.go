//go:build !windows

package fsindex

import (
	"io/fs"
	"strings"
	"time"
)

// fileAttributes synthesizes Windows-style attribute bits. Dot files count as
// hidden. Creation time is not tracked portably, so the modification time
// stands in for it.
func fileAttributes(name string, info fs.FileInfo) (uint32, time.Time) {
	var attrs uint32
	if strings.HasPrefix(name, ".") {
		attrs |= AttrHidden
	}
	if info.IsDir() {
		attrs |= AttrDirectory
	}
	if info.Mode().Perm()&0o200 == 0 {
		attrs |= AttrReadOnly
	}
	if info.Mode()&fs.ModeSymlink != 0 {
		attrs |= AttrReparse
	}
	return attrs, info.ModTime()
}
