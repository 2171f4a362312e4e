package feeds

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/mub05-dev/monitor-electoral/internal/domain"
	"github.com/mub05-dev/monitor-electoral/internal/ports"
)

// FileSourceName is the registry name of FileSource.
const FileSourceName = "file"

// FileSource reads raw district feeds stored as "<dir>/<district id>.json".
type FileSource struct {
	dir        string
	normalizer *Normalizer
}

var _ ports.ResultSource = (*FileSource)(nil)

// NewFileSource creates a source reading from dir.
func NewFileSource(dir string, normalizer *Normalizer) *FileSource {
	return &FileSource{dir: filepath.Clean(dir), normalizer: normalizer}
}

// Name implements ports.ResultSource.
func (s *FileSource) Name() string { return FileSourceName }

// FetchDistrict implements ports.ResultSource. A missing file is reported
// as ports.ErrNotFound.
func (s *FileSource) FetchDistrict(ctx context.Context, districtID string) (domain.DistrictResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.DistrictResult{}, err
	}
	id, err := NormalizeDistrictID(districtID)
	if err != nil {
		return domain.DistrictResult{}, ports.NewSourceError(s.Name(), districtID, err)
	}

	data, err := os.ReadFile(filepath.Join(s.dir, id+".json"))
	if errors.Is(err, fs.ErrNotExist) {
		return domain.DistrictResult{}, ports.NewSourceError(s.Name(), id, ports.ErrNotFound)
	}
	if err != nil {
		return domain.DistrictResult{}, ports.NewSourceError(s.Name(), id, err)
	}

	var raw RawDistrict
	if err := json.Unmarshal(data, &raw); err != nil {
		return domain.DistrictResult{}, ports.NewSourceError(s.Name(), id,
			fmt.Errorf("%w: %w", ports.ErrInvalidResponse, err))
	}
	if raw.DistrictID == "" {
		raw.DistrictID = id
	}
	if other, err := NormalizeDistrictID(raw.DistrictID); err != nil || other != id {
		return domain.DistrictResult{}, ports.NewSourceError(s.Name(), id,
			fmt.Errorf("%w: file declares district %q", ports.ErrInvalidResponse, raw.DistrictID))
	}

	result, err := s.normalizer.Normalize(raw)
	if err != nil {
		return domain.DistrictResult{}, ports.NewSourceError(s.Name(), id, err)
	}
	return result, nil
}
