package explorer

import "github.com/openmined/sharegate/internal/sharefs"

// indexData contains data for the index template
type indexData struct {
	User     string
	Path     string // "/"-rooted display path, always ends in "/"
	Parent   string // link to the parent folder, empty at the top level
	BasePath string
	Writable bool
	Folders  []*sharefs.Entry
	Files    []*sharefs.Entry
}
