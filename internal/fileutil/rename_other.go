//go:build !linux

package fileutil

func renameNoReplace(oldpath, newpath string) error {
	return linkRename(oldpath, newpath)
}
