package decryptfs

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/absfs/absfs"
)

// dirFS opens containers below a directory of the host filesystem
type dirFS struct {
	root string
}

// DirFS returns an Opener for the files below root. Names are resolved
// relative to root whether or not they carry a leading slash.
func DirFS(root string) Opener {
	return &dirFS{root: root}
}

func (fs *dirFS) Open(name string) (absfs.File, error) {
	rel := filepath.FromSlash(strings.TrimLeft(name, "/"))
	return os.Open(filepath.Join(fs.root, rel))
}
