package savefix

import "github.com/harupipipipi/mcmultidrive/pkg/logging"

// Editor binds the file edits to a logger.
type Editor struct {
	Log *logging.Logger
}

// FixLevelDat calls FixLevelDat with the editor's logger.
func (e Editor) FixLevelDat(worldDir string) (FixResult, error) {
	return FixLevelDat(worldDir, e.Log)
}

// PublishConnectEntry calls PublishConnectEntry.
func (e Editor) PublishConnectEntry(serversFile, address, label string) error {
	return PublishConnectEntry(serversFile, address, label)
}
