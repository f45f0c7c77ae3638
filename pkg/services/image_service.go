package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/deploymenttheory/go-unixfs/internal/device"
	"github.com/deploymenttheory/go-unixfs/internal/disk"
	"github.com/deploymenttheory/go-unixfs/internal/services"
	"github.com/deploymenttheory/go-unixfs/pkg/app"
)

// maxPartitionScans bounds the partitions opened at once
const maxPartitionScans = 4

// Handle is an open image with the filesystem found in it
type Handle struct {
	Target   app.ImageTarget
	Image    *device.Image
	Reader   *disk.Reader
	FS       *services.FileSystem
	OpenedAt time.Time
}

// ReadStats counts the reads made through a handle
type ReadStats struct {
	Reads      int64
	BytesRead  int64
	ShortReads int64
}

// ReadStats returns the read counters of the handle's reader
func (h *Handle) ReadStats() ReadStats {
	if h.Reader == nil {
		return ReadStats{}
	}
	reads, n, short := h.Reader.Stats()
	return ReadStats{Reads: reads, BytesRead: n, ShortReads: short}
}

// Close releases the filesystem and the image file
func (h *Handle) Close() error {
	var err error
	if h.FS != nil {
		err = h.FS.Close()
	}
	if h.Image != nil {
		if cerr := h.Image.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// imageService implements the ImageService interface
type imageService struct {
	log     logrus.FieldLogger
	mu      sync.Mutex
	handles map[string]*Handle
}

// NewImageService creates a new image service instance
func NewImageService(log logrus.FieldLogger) ImageService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &imageService{
		log:     log,
		handles: make(map[string]*Handle),
	}
}

func handleKey(target app.ImageTarget) string {
	return fmt.Sprintf("%s|%d|%d|%s", target.Path, target.Offset, target.Partition, target.FsType)
}

// Open opens target or returns the handle opened earlier
func (is *imageService) Open(ctx context.Context, target app.ImageTarget) (*Handle, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	is.mu.Lock()
	defer is.mu.Unlock()

	key := handleKey(target)
	if h, ok := is.handles[key]; ok {
		return h, nil
	}

	h, err := openHandle(target, is.log)
	if err != nil {
		return nil, err
	}
	is.handles[key] = h
	return h, nil
}

func openHandle(target app.ImageTarget, log logrus.FieldLogger) (*Handle, error) {
	img, err := device.OpenImage(target.Path, &device.ImageConfig{
		Offset:    target.Offset,
		Partition: target.Partition,
		FsType:    target.FsType,
	})
	if err != nil {
		return nil, app.NewError(app.ErrCodeRead, fmt.Sprintf("cannot open %s", target.String()), err)
	}

	reader := disk.NewReader(img, img.Offset(), img.Size())
	fs, err := services.Open(reader, services.OpenOptions{
		FsType: target.FsType,
		Logger: log.WithField("image", target.String()),
	})
	if err != nil {
		img.Close()
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"image":  target.String(),
		"fstype": fs.FsType().String(),
		"offset": img.Offset(),
	}).Debug("filesystem opened")

	return &Handle{
		Target:   target,
		Image:    img,
		Reader:   reader,
		FS:       fs,
		OpenedAt: time.Now(),
	}, nil
}

// ListPartitions reads the partition table of path
func (is *imageService) ListPartitions(ctx context.Context, path string) ([]PartitionInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	parts, err := device.ListPartitions(path)
	if err != nil {
		return nil, app.NewError(app.ErrCodeRead, "cannot read partition table", err)
	}

	infos := make([]PartitionInfo, 0, len(parts))
	for _, p := range parts {
		infos = append(infos, PartitionInfo{Index: p.Index, Start: p.Start, Size: p.Size})
	}
	return infos, nil
}

// ScanPartitions opens every partition of path concurrently and records the
// filesystem variant found on each. A partition without a filesystem is not
// an error; its Error field says why.
func (is *imageService) ScanPartitions(ctx context.Context, path, fsType string) ([]PartitionInfo, error) {
	infos, err := is.ListPartitions(ctx, path)
	if err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxPartitionScans)
	for i := range infos {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			target := app.ImageTarget{Path: path, Offset: infos[i].Start, FsType: fsType}
			h, err := openHandle(target, is.log)
			if err != nil {
				infos[i].Error = err.Error()
				is.log.WithError(err).WithField("partition", infos[i].Index).Debug("no filesystem on partition")
				return nil
			}
			infos[i].FsType = h.FS.FsType().String()
			return h.Close()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return infos, nil
}

// Close closes every cached handle and returns the first failure
func (is *imageService) Close() error {
	is.mu.Lock()
	defer is.mu.Unlock()

	var first error
	for key, h := range is.handles {
		st := h.ReadStats()
		is.log.WithFields(logrus.Fields{
			"image":       h.Target.String(),
			"reads":       st.Reads,
			"bytes_read":  st.BytesRead,
			"short_reads": st.ShortReads,
		}).Debug("image closed")
		if err := h.Close(); err != nil && first == nil {
			first = err
		}
		delete(is.handles, key)
	}
	return first
}
