package garmin

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/yapay-ai/garmin-downloader/pkg/model"
	"gopkg.in/yaml.v3"
)

//go:embed endpoints.yaml
var defaultEndpoints []byte

// Endpoints maps each metric kind to its wellness API path.
type Endpoints struct {
	BodyBattery string `yaml:"body_battery"`
	HeartRate   string `yaml:"heart_rate"`
}

// Path returns the endpoint for kind.
func (e *Endpoints) Path(kind model.MetricKind) (string, error) {
	switch kind {
	case model.BodyBattery:
		return e.BodyBattery, nil
	case model.HeartRate:
		return e.HeartRate, nil
	default:
		return "", fmt.Errorf("no endpoint for datatype %q", kind)
	}
}

// DefaultEndpoints returns the built-in Garmin Connect endpoint catalog.
func DefaultEndpoints() *Endpoints {
	e, err := LoadEndpointsFromBytes(defaultEndpoints)
	if err != nil {
		panic(fmt.Sprintf("embedded endpoints.yaml: %v", err))
	}
	return e
}

// LoadEndpoints reads an endpoint catalog from a YAML file. Paths missing
// from the file keep their built-in values.
func LoadEndpoints(path string) (*Endpoints, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read endpoints file %s: %w", path, err)
	}

	e := DefaultEndpoints()
	if err := yaml.Unmarshal(data, e); err != nil {
		return nil, fmt.Errorf("parse endpoints file %s: %w", path, err)
	}
	if err := e.validate(); err != nil {
		return nil, fmt.Errorf("endpoints file %s: %w", path, err)
	}
	return e, nil
}

// LoadEndpointsFromBytes parses a complete endpoint catalog from raw YAML.
func LoadEndpointsFromBytes(data []byte) (*Endpoints, error) {
	var e Endpoints
	if err := yaml.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("parse endpoints: %w", err)
	}
	if err := e.validate(); err != nil {
		return nil, err
	}
	return &e, nil
}

func (e *Endpoints) validate() error {
	if e.BodyBattery == "" {
		return fmt.Errorf("missing body_battery endpoint")
	}
	if e.HeartRate == "" {
		return fmt.Errorf("missing heart_rate endpoint")
	}
	return nil
}
