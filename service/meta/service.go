// Package meta loads declarative configuration (run configs, oracle rule
// sets) from YAML documents addressed by URL, so the same loader works for
// local files and cloud storage.
package meta

import (
	"context"
	"fmt"

	"github.com/viant/afs"
	"github.com/viant/afs/url"
	"gopkg.in/yaml.v3"
)

// Service loads YAML documents relative to a base URL.
type Service struct {
	fs      afs.Service
	baseURL string
}

// New creates a loader rooted at baseURL; an empty base resolves locations
// as-is.
func New(baseURL string) *Service {
	return &Service{fs: afs.New(), baseURL: baseURL}
}

// Load reads the YAML document at location into target.
func (s *Service) Load(ctx context.Context, location string, target interface{}) error {
	if location == "" {
		return fmt.Errorf("location cannot be empty")
	}
	URL := location
	if s.baseURL != "" {
		URL = url.Join(s.baseURL, location)
	}
	data, err := s.fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", URL, err)
	}
	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("failed to decode %s: %w", URL, err)
	}
	return nil
}
