package utils

import (
	"context"

	"github.com/hashicorp/go-getter"
)

// Download fetches source into the dst directory. Source can be anything
// go-getter understands: a local path, an archive URL, a git repository.
func Download(ctx context.Context, source string, dst string) error {
	c := getter.Client{
		Ctx:  ctx,
		Src:  source,
		Dst:  dst,
		Mode: getter.ClientModeDir,
	}

	return c.Get()
}
