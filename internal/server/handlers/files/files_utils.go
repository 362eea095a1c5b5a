package files

import "net/url"

func escapeFilename(name string) string {
	return url.PathEscape(name)
}
