package nyaadle

import (
	"context"
	"path/filepath"
)

// NameResolver resolves the file name a download target will be saved as.
type NameResolver interface {
	Resolve(ctx context.Context, target string) (string, error)
}

// ArchiveProber checks whether a target has already been saved to the
// archive directory.
type ArchiveProber struct {
	resolver NameResolver
}

// NewArchiveProber returns a prober using r to resolve file names.
func NewArchiveProber(r NameResolver) *ArchiveProber {
	return &ArchiveProber{resolver: r}
}

// Exists reports whether the file target resolves to is present in
// archiveDir. Resolution costs one network round trip because redirects
// may change the name.
func (p *ArchiveProber) Exists(ctx context.Context, target, archiveDir string) (bool, error) {
	name, err := p.resolver.Resolve(ctx, target)
	if err != nil {
		return false, err
	}
	return NewLocalStorage(filepath.Clean(archiveDir)).Exists(name), nil
}
