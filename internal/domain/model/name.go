package model

import "path/filepath"

// SanitizeName reduces an arbitrary value to a single filesystem path element
// suitable as a profile directory name. Non-string input yields "". Strings are
// cleaned for the current platform and only the final element is kept, so
// "../../../etc/passwd" becomes "passwd". Results that would still refer to a
// directory other than a child ("", ".", "..", or a bare separator) yield "".
func SanitizeName(v any) string {
	s, ok := v.(string)
	if !ok || s == "" {
		return ""
	}

	base := filepath.Base(filepath.Clean(filepath.FromSlash(s)))

	switch base {
	case ".", "..", string(filepath.Separator):
		return ""
	}
	if filepath.VolumeName(base) != "" {
		return ""
	}
	return base
}
