package infosvc

import (
	"context"

	"github.com/kavyasharma/tormeta/internal/metainfo"
	"golang.org/x/sync/errgroup"
)

// NewBatch constructs one Service per entry of mis concurrently, useful at
// startup when a client resumes many torrents at once. If any construction
// fails, NewBatch returns the first error and closes every Service that
// did succeed.
func NewBatch(ctx context.Context, mis []*metainfo.Metainfo, chunkSize int) ([]*Service, error) {
	services := make([]*Service, len(mis))

	g, _ := errgroup.WithContext(ctx)
	for i, mi := range mis {
		i, mi := i, mi
		g.Go(func() error {
			svc, err := New(mi, chunkSize)
			if err != nil {
				return err
			}
			services[i] = svc
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		for _, svc := range services {
			if svc != nil {
				svc.Close()
			}
		}
		return nil, err
	}

	return services, nil
}
