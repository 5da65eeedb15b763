package relay

import (
	"io/fs"
	"path/filepath"
)

// FolderPlan pairs one remote folder with the local files that belong in it.
type FolderPlan struct {
	LocalDir   string
	RemotePath string
	Files      []string
}

// BuildMirrorPlan walks the staging directory and returns the folders to
// create and the files to upload, in mirroring order: the root first, every
// parent before its children, files grouped under their folder. The traversal
// is pure so it can be tested without any network involvement; execution
// happens separately in the orchestrator.
func BuildMirrorPlan(localRoot, remoteRoot string) ([]FolderPlan, error) {
	var plan []FolderPlan
	index := make(map[string]int)

	err := filepath.WalkDir(localRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			rel, err := filepath.Rel(localRoot, path)
			if err != nil {
				return err
			}
			remote := remoteRoot
			if rel != "." {
				remote = remoteRoot + "/" + filepath.ToSlash(rel)
			}
			index[path] = len(plan)
			plan = append(plan, FolderPlan{LocalDir: path, RemotePath: remote})
			return nil
		}
		i := index[filepath.Dir(path)]
		plan[i].Files = append(plan[i].Files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return plan, nil
}
