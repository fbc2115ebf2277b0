// Package savefix edits the two NBT files a session touches: level.dat of
// the hosted world and the instance's servers.dat.
package savefix

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Tnze/go-mc/nbt"

	"github.com/harupipipipi/mcmultidrive/pkg/errclass"
	"github.com/harupipipipi/mcmultidrive/pkg/fsutil"
	"github.com/harupipipipi/mcmultidrive/pkg/logging"
)

// DefaultLabel names the server list entry written for joiners.
const DefaultLabel = "MC MultiDrive Session"

// FixResult reports what FixLevelDat did.
type FixResult struct {
	// Missing is set when the world has no level.dat yet.
	Missing bool `json:"missing"`
	// Removed is set when a Player tag was stripped.
	Removed bool   `json:"removed"`
	Backup  string `json:"backup,omitempty"`
}

// FixLevelDat strips Data.Player from worldDir/level.dat so the world opens
// with each host's own player data rather than whoever saved it last. The
// original is kept as level.dat.bak. A world without level.dat is left
// alone. Running it twice is harmless.
func FixLevelDat(worldDir string, log *logging.Logger) (FixResult, error) {
	if log == nil {
		log = logging.Global()
	}
	path := filepath.Join(worldDir, "level.dat")
	if !fsutil.Exists(path) {
		log.Info("level.dat not found, assuming a new world", map[string]any{"path": path})
		return FixResult{Missing: true}, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return FixResult{}, fmt.Errorf("read level.dat: %w", err)
	}
	root, err := decodeCompound(raw, true)
	if err != nil {
		return FixResult{}, errclass.ErrInternal.WithMessagef("parse level.dat: %v", err)
	}

	res := FixResult{Backup: path + ".bak"}
	if err := fsutil.CopyFile(path, res.Backup); err != nil {
		return FixResult{}, fmt.Errorf("back up level.dat: %w", err)
	}

	dataTag, ok := root["Data"]
	if !ok {
		log.Warn("level.dat has no Data tag", map[string]any{"path": path})
		return res, nil
	}
	var data map[string]nbt.RawMessage
	if err := dataTag.Unmarshal(&data); err != nil {
		return res, errclass.ErrInternal.WithMessagef("parse level.dat Data: %v", err)
	}
	if _, ok := data["Player"]; !ok {
		log.Debug("level.dat has no Player tag", map[string]any{"path": path})
		return res, nil
	}
	delete(data, "Player")

	out := make(map[string]any, len(root))
	for k, v := range root {
		out[k] = v
	}
	out["Data"] = data

	encoded, err := encodeCompound(out, true)
	if err != nil {
		return res, errclass.ErrInternal.WithMessagef("encode level.dat: %v", err)
	}
	if err := fsutil.AtomicWrite(path, encoded, 0644); err != nil {
		return res, fmt.Errorf("write level.dat: %w", err)
	}
	res.Removed = true
	log.Info("removed Player tag from level.dat", map[string]any{"path": path})
	return res, nil
}

// PublishConnectEntry puts a server entry named label with address at the
// top of the server list in serversFile, replacing any entry with the same
// name. Other entries keep all their fields. The file is created when
// missing.
func PublishConnectEntry(serversFile, address, label string) error {
	if label == "" {
		label = DefaultLabel
	}

	var existing []map[string]nbt.RawMessage
	if raw, err := os.ReadFile(serversFile); err == nil {
		root, err := decodeCompound(raw, false)
		if err != nil {
			return errclass.ErrInternal.WithMessagef("parse servers.dat: %v", err)
		}
		if list, ok := root["servers"]; ok {
			if err := list.Unmarshal(&existing); err != nil {
				return errclass.ErrInternal.WithMessagef("parse servers.dat list: %v", err)
			}
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("read servers.dat: %w", err)
	}

	servers := []map[string]any{{
		"name":           label,
		"ip":             address,
		"acceptTextures": int8(1),
	}}
	for _, entry := range existing {
		var name string
		if tag, ok := entry["name"]; ok {
			_ = tag.Unmarshal(&name)
		}
		if name == label {
			continue
		}
		m := make(map[string]any, len(entry))
		for k, v := range entry {
			m[k] = v
		}
		servers = append(servers, m)
	}

	encoded, err := encodeCompound(map[string]any{"servers": servers}, false)
	if err != nil {
		return errclass.ErrInternal.WithMessagef("encode servers.dat: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(serversFile), 0755); err != nil {
		return fmt.Errorf("create instance dir: %w", err)
	}
	return fsutil.AtomicWrite(serversFile, encoded, 0644)
}

func decodeCompound(raw []byte, gzipped bool) (map[string]nbt.RawMessage, error) {
	var r io.Reader = bytes.NewReader(raw)
	if gzipped || isGzip(raw) {
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		r = zr
	}
	var root map[string]nbt.RawMessage
	if _, err := nbt.NewDecoder(r).Decode(&root); err != nil {
		return nil, err
	}
	return root, nil
}

func encodeCompound(v any, gzipped bool) ([]byte, error) {
	var buf bytes.Buffer
	if !gzipped {
		if err := nbt.NewEncoder(&buf).Encode(v, ""); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	zw := gzip.NewWriter(&buf)
	if err := nbt.NewEncoder(zw).Encode(v, ""); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func isGzip(b []byte) bool {
	return len(b) >= 2 && b[0] == 0x1f && b[1] == 0x8b
}
