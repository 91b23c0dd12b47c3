// Package fsindex maintains the agent's identifier-addressed view of the
// local filesystem.
//
// The Index is a lazily populated tree. Id 1 is a synthetic root ("This PC"),
// drive nodes hang directly below it and directory and file nodes appear only
// when their parent is expanded by the Scanner. Ids are assigned from a
// monotonic counter and are never reused: collapsing a folder drops its
// descendants from the index, so a stale id held by a remote console fails
// lookups instead of resolving to an unrelated new entry.
//
// Every node carries an internal device path used to build kernel rules. It is
// never part of NodeInfo, the shape handed to administrators.
//
// # Usage
//
//	idx := fsindex.New()
//	scanner := fsindex.NewScanner(idx, volumes, converter, fsindex.ScanConfig{SkipHidden: true}, logger)
//	if _, err := scanner.InitializeDrives(); err != nil {
//	    return err
//	}
//	for _, drive := range idx.Drives() {
//	    n, _ := scanner.Expand(drive.ID)
//	    logger.Info("drive expanded", "drive", drive.Name, "children", n)
//	}
package fsindex
