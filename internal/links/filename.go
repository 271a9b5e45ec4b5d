package links

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var ErrNoFileName = errors.New("cannot derive file name from link")

// FileName derives the local file name from a download URL: the last path segment,
// query string removed, percent-decoded. Path separators surviving the decode are
// replaced so the name always stays inside the download directory.
func FileName(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoFileName, err)
	}

	p := strings.TrimRight(u.EscapedPath(), "/")
	seg := p[strings.LastIndex(p, "/")+1:]
	name, err := url.PathUnescape(seg)
	if err != nil {
		// Malformed escapes: keep the raw segment.
		name = seg
	}

	name = strings.NewReplacer("/", "_", "\\", "_", "\x00", "").Replace(strings.TrimSpace(name))
	if name == "" || name == "." || name == ".." {
		return "", fmt.Errorf("%w: %q", ErrNoFileName, rawURL)
	}
	return name, nil
}
