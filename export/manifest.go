package export

import (
	"os"

	"gopkg.in/yaml.v3"
)

// ManifestEntry is the YAML form of a finished task.
type ManifestEntry struct {
	ID          string  `yaml:"id"`
	Description string  `yaml:"description"`
	Folder      string  `yaml:"folder"`
	Band        string  `yaml:"band"`
	Scale       float64 `yaml:"scale"`
	CRS         string  `yaml:"crs"`
	MaxPixels   float64 `yaml:"maxPixels"`
	Status      Status  `yaml:"status"`
	Error       string  `yaml:"error,omitempty"`
}

type Manifest struct {
	Jobs []ManifestEntry `yaml:"jobs"`
}

func NewManifest(tasks []*Task) Manifest {
	var m Manifest
	for _, task := range tasks {
		status, err := task.Status()
		entry := ManifestEntry{
			ID:          task.Job.ID,
			Description: task.Job.Description,
			Folder:      task.Job.Folder,
			Scale:       task.Job.Scale,
			CRS:         task.Job.CRS,
			MaxPixels:   task.Job.MaxPixels,
			Status:      status,
		}
		if task.Job.Raster != nil {
			entry.Band = task.Job.Raster.Name
		}
		if err != nil {
			entry.Error = err.Error()
		}
		m.Jobs = append(m.Jobs, entry)
	}
	return m
}

func (m Manifest) Write(path string) error {
	out, err := yaml.Marshal(m)
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0o644)
}

func ReadManifest(path string) (Manifest, error) {
	var m Manifest
	in, err := os.ReadFile(path)
	if err != nil {
		return m, err
	}
	err = yaml.Unmarshal(in, &m)
	return m, err
}
