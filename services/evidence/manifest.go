package evidence

import (
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Manifest is the signed metadata embedded in an evidence bundle.
type Manifest struct {
	Version          string             `yaml:"version"`
	RunID            uuid.UUID          `yaml:"run_id"`
	CreatedAt        time.Time          `yaml:"created_at"`
	SigningPublicKey string             `yaml:"signing_public_key,omitempty"`
	Signature        string             `yaml:"signature,omitempty"`
	Artifacts        []ManifestArtifact `yaml:"artifacts"`
}

// SigningBytes marshals the manifest without its signature for signing and
// verification.
func (m Manifest) SigningBytes() ([]byte, error) {
	clone := m
	clone.Signature = ""
	return yaml.Marshal(clone)
}

// ManifestArtifact describes a single file within the bundle.
type ManifestArtifact struct {
	Path   string `yaml:"path"`
	Kind   string `yaml:"kind"`
	Size   int64  `yaml:"size"`
	SHA256 string `yaml:"sha256"`
}
