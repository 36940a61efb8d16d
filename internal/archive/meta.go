package archive

import "time"

// Meta is the `meta.yml` entry: identifying information for the tool that
// produced the archive, written once at creation.
type Meta struct {
	Tool      string    `yaml:"tool"`
	Version   string    `yaml:"version"`
	Timestamp time.Time `yaml:"timestamp"`
}
