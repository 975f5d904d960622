package action

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LoadManifest reads action.yml or action.yaml from dir.
func LoadManifest(dir string) (*ActionManifest, error) {
	for _, name := range []string{"action.yml", "action.yaml"} {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, &ErrUnreadableManifest{Dir: dir, Err: err}
		}
		var manifest ActionManifest
		if err := yaml.Unmarshal(data, &manifest); err != nil {
			return nil, &ErrUnreadableManifest{Dir: dir, Err: err}
		}
		return &manifest, nil
	}
	return nil, &ErrUnreadableManifest{Dir: dir, Err: fmt.Errorf("no action.yml or action.yaml found")}
}

// ResolveInputs merges declared `with:` values over action input
// defaults, returning ErrMissingInput for any required input left
// unset.
func ResolveInputs(actionName string, manifest *ActionManifest, with map[string]any) (map[string]string, error) {
	resolved := make(map[string]string, len(manifest.Inputs))
	for name, spec := range manifest.Inputs {
		if v, ok := with[name]; ok {
			resolved[name] = fmt.Sprint(v)
			continue
		}
		if spec.Default != "" {
			resolved[name] = spec.Default
			continue
		}
		if spec.Required {
			return nil, &ErrMissingInput{Action: actionName, Input: name}
		}
	}
	return resolved, nil
}
