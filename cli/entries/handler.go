package entries

import (
	"os"
	"regexp"
	"strings"
)

// handlerRegex splits a handler into an optional folder, a base name, and an
// optional source extension. "src/api/orders.main" -> "src/api/" + "orders".
var handlerRegex = regexp.MustCompile(`^(((?:[^/\n]+/)+)?[^.]+(\.jsx?|\.tsx?)?)`)

// Handler is a parsed function handler specifier
type Handler struct {
	// Key is the handler path without the exported function, e.g. "src/api/orders"
	Key string
	// Folder is the directory part including its trailing slash, possibly empty
	Folder string
	// Base is the file name prefix to look for inside Folder
	Base string
}

// ParseHandler parses a handler specifier. It returns false when no source
// path can be derived from it.
func ParseHandler(handler string) (Handler, bool) {
	match := handlerRegex.FindStringSubmatch(handler)
	if match == nil {
		return Handler{}, false
	}
	key, folder := match[1], match[2]
	return Handler{
		Key:    key,
		Folder: folder,
		Base:   strings.TrimPrefix(key, folder),
	}, true
}

// Dir is the folder without its trailing slash, "." when empty
func (h Handler) Dir() string {
	dir := strings.TrimSuffix(h.Folder, "/")
	if dir == "" {
		return "."
	}
	return dir
}

// SelectFile picks the source file for the handler among the folder's
// entries. Several prefix matches resolve to Base plus the backup extension;
// a single match is used as is.
func (h Handler) SelectFile(entries []os.DirEntry, backupFileType string) (string, bool) {
	var candidates []string
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), h.Base) {
			candidates = append(candidates, entry.Name())
		}
	}

	switch len(candidates) {
	case 0:
		return "", false
	case 1:
		return candidates[0], true
	default:
		return h.Base + "." + strings.TrimPrefix(backupFileType, "."), true
	}
}
