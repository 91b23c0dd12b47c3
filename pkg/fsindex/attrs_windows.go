//go:build windows

package fsindex

import (
	"io/fs"
	"syscall"
	"time"
)

func fileAttributes(name string, info fs.FileInfo) (uint32, time.Time) {
	if d, ok := info.Sys().(*syscall.Win32FileAttributeData); ok {
		return d.FileAttributes, time.Unix(0, d.CreationTime.Nanoseconds())
	}

	var attrs uint32
	if info.IsDir() {
		attrs |= AttrDirectory
	}
	return attrs, info.ModTime()
}
