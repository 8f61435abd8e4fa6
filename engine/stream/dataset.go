package stream

import (
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/SophHealth/soph-mvp/engine/domain"
)

//go:embed posts.json
var datasetFS embed.FS

// loadDataset reads the demo posts, from path when given, otherwise from the
// bundled copy. Records without an id get one derived from load time and
// their position, so re-loading never collides with earlier ids.
func loadDataset(path string) ([]domain.RawPost, error) {
	var (
		data []byte
		err  error
	)
	if path != "" {
		data, err = os.ReadFile(path)
	} else {
		data, err = datasetFS.ReadFile("posts.json")
	}
	if err != nil {
		return nil, fmt.Errorf("stream: read dataset: %w", err)
	}

	var raws []domain.RawPost
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("stream: parse dataset: %w", err)
	}
	now := time.Now().UnixMilli()
	for i := range raws {
		if raws[i].ID == "" {
			raws[i].ID = fmt.Sprintf("%d-%d", now, i)
		}
	}
	return raws, nil
}
