package files

import (
	"time"

	"github.com/dustin/go-humanize"

	"github.com/openmined/sharegate/internal/sharefs"
	"github.com/openmined/sharegate/internal/utils"
)

type PathRequest struct {
	Path string `form:"path"`
}

type RequiredPathRequest struct {
	Path string `form:"path" binding:"required"`
}

type MoveRequest struct {
	From string `form:"from" binding:"required"`
	To   string `form:"to" binding:"required"`
}

type EntryResponse struct {
	Name        string    `json:"name"`
	Path        string    `json:"path"`
	IsDir       bool      `json:"isDir"`
	Size        int64     `json:"size"`
	SizeHuman   string    `json:"sizeHuman"`
	ModTime     time.Time `json:"modTime"`
	ContentType string    `json:"contentType,omitempty"`
	Readable    bool      `json:"readable"`
	Writable    bool      `json:"writable"`
	Locked      bool      `json:"locked"`
}

type ListResponse struct {
	Path     string           `json:"path"`
	Readable bool             `json:"readable"`
	Writable bool             `json:"writable"`
	Entries  []*EntryResponse `json:"entries"`
}

type MeResponse struct {
	User       string `json:"user"`
	Admin      bool   `json:"admin"`
	FolderOnly bool   `json:"folderOnly"`
	ReadOnly   bool   `json:"readOnly"`
	Home       string `json:"home"`
}

func newEntryResponse(e *sharefs.Entry) *EntryResponse {
	resp := &EntryResponse{
		Name:     e.Info.Name(),
		Path:     e.Path,
		IsDir:    e.Info.IsDir(),
		ModTime:  e.Info.ModTime().UTC(),
		Readable: e.Readable,
		Writable: e.Writable,
		Locked:   e.Locked,
	}

	if !resp.IsDir {
		resp.Size = e.Info.Size()
		resp.SizeHuman = humanize.IBytes(uint64(resp.Size))
		resp.ContentType = utils.DetectContentType(resp.Name)
	}

	return resp
}
