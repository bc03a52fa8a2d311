package station

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pelletier/go-toml/v2"

	"digistation/internal/fileutil"
)

// ErrNotConfigured reports that no identity file exists at the configured path.
var ErrNotConfigured = errors.New("station identity not configured")

// ErrExists reports that Init would overwrite an existing identity.
var ErrExists = errors.New("station identity already exists")

const header = `# digistation station identity.
# DO NOT share this file between imaging stations.
# The station_uuid must remain unique to each station.
`

// Identity names the physical imaging station.
type Identity struct {
	StationID   string `toml:"station_id"`
	StationUUID string `toml:"station_uuid"`
}

// Load reads the identity at path. A missing file returns ErrNotConfigured.
func Load(path string) (*Identity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotConfigured, path)
		}
		return nil, fmt.Errorf("read station identity: %w", err)
	}

	var id Identity
	if err := toml.Unmarshal(data, &id); err != nil {
		return nil, fmt.Errorf("parse station identity %s: %w", path, err)
	}
	id.StationID = strings.TrimSpace(id.StationID)
	id.StationUUID = strings.TrimSpace(id.StationUUID)
	if id.StationUUID != "" {
		if _, err := uuid.Parse(id.StationUUID); err != nil {
			return nil, fmt.Errorf("station identity %s: invalid station_uuid: %w", path, err)
		}
	}
	return &id, nil
}

// Init creates a new identity for stationID with a fresh uuid and writes it
// to path. An existing file is only replaced when force is set.
func Init(path, stationID string, force bool) (*Identity, error) {
	stationID = strings.TrimSpace(stationID)
	if stationID == "" {
		return nil, errors.New("station id is required")
	}
	if !force {
		exists, err := fileutil.Exists(path)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, fmt.Errorf("%w: %s", ErrExists, path)
		}
	}

	id := &Identity{StationID: stationID, StationUUID: uuid.NewString()}
	body, err := toml.Marshal(id)
	if err != nil {
		return nil, fmt.Errorf("encode station identity: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(header)
	buf.Write(body)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create station directory: %w", err)
	}
	if err := fileutil.AtomicWriteFile(path, buf.Bytes(), 0o644); err != nil {
		return nil, fmt.Errorf("write station identity: %w", err)
	}
	return id, nil
}

// IDPtr returns the station id, or nil for an absent identity or empty value.
func (i *Identity) IDPtr() *string {
	if i == nil || i.StationID == "" {
		return nil
	}
	v := i.StationID
	return &v
}

// UUIDPtr returns the station uuid, or nil for an absent identity or empty value.
func (i *Identity) UUIDPtr() *string {
	if i == nil || i.StationUUID == "" {
		return nil
	}
	v := i.StationUUID
	return &v
}
