// Package textutil turns catalog numbers into names that are safe to use as
// file names in a session directory.
package textutil
