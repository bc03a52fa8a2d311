package textutil

import "strings"

// fileNameReplacer maps filesystem-unsafe characters to dashes.
var fileNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "-",
	"\"", "-",
	"<", "-",
	">", "-",
	"|", "-",
	"\x00", "-",
)

// SanitizeFileName replaces filesystem-unsafe characters in name with dashes
// and trims surrounding whitespace. Names that are safe already come back
// unchanged, and a non-blank name never sanitizes to "".
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	name = fileNameReplacer.Replace(name)
	if name == "." || name == ".." {
		return strings.Repeat("-", len(name))
	}
	return name
}
