package launch

// InstalledMod is one locally installed mod record, as produced by the local
// manifest scanner.
type InstalledMod struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// ResolveDataPaths maps the room's active mods to local data directories, in
// active-mod order. Mods with no local record are skipped; the start-game
// quorum already guarantees the local player has them all, so a miss here
// means the manifests changed underneath us.
func ResolveDataPaths(activeMods []string, installed []InstalledMod) []string {
	byName := make(map[string]string, len(installed))
	for _, m := range installed {
		byName[m.Name] = m.Path
	}
	paths := make([]string, 0, len(activeMods))
	for _, name := range activeMods {
		if path, ok := byName[name]; ok {
			paths = append(paths, path)
		}
	}
	return paths
}
