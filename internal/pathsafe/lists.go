package pathsafe

import (
	"github.com/bmatcuk/doublestar/v4"
	mapset "github.com/deckarep/golang-set/v2"
)

// platform thumbnail caches, recycle bins and similar artifacts
var deniedNames = mapset.NewThreadUnsafeSet(
	".DS_Store",
	"Thumbs.db",
	"ehthumbs.db",
	"desktop.ini",
	"$RECYCLE.BIN",
	"System Volume Information",
	".Spotlight-V100",
	".Trashes",
	".fseventsd",
	".AppleDouble",
	"@eaDir",
	".directory",
)

var deniedGlobs = []string{
	"._*",
	".Trash-*",
	"~$*",
}

// folders the application keeps for itself inside the upload root
var reservedNames = mapset.NewThreadUnsafeSet(
	".trash",
	".profile_pictures",
	".chunks",
	".metadata",
)

// IsDenied reports whether name is on the fixed hidden/system deny-list.
func IsDenied(name string) bool {
	if deniedNames.Contains(name) {
		return true
	}

	for _, glob := range deniedGlobs {
		if ok, _ := doublestar.Match(glob, name); ok {
			return true
		}
	}

	return false
}

// IsReserved reports whether name is an application-reserved folder.
func IsReserved(name string) bool {
	return reservedNames.Contains(name)
}

// ReservedNames returns the application-reserved folder names.
func ReservedNames() []string {
	return reservedNames.ToSlice()
}
