package report

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Branding holds the fixed strings printed on every extract.
type Branding struct {
	Title      string   `yaml:"title"`
	Subtitles  []string `yaml:"subtitles"`
	Issuer     string   `yaml:"issuer"`
	Disclaimer string   `yaml:"disclaimer"`
}

// DefaultBranding returns the stock header and footer text.
func DefaultBranding() Branding {
	return Branding{
		Title:      "EXTRAIT CADASTRAL",
		Subtitles:  []string{"République Française", "Direction Générale des Finances Publiques"},
		Issuer:     "Document généré par Sunlib - Géoservices IGN",
		Disclaimer: "Ce document n'a pas de valeur juridique officielle",
	}
}

// LoadBranding reads a YAML branding file. Fields left empty in the file keep
// their default value. An empty path returns the defaults.
func LoadBranding(path string) (Branding, error) {
	b := DefaultBranding()
	if path == "" {
		return b, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Branding{}, fmt.Errorf("read branding file: %w", err)
	}
	var override Branding
	if err := yaml.Unmarshal(data, &override); err != nil {
		return Branding{}, fmt.Errorf("parse branding file %s: %w", path, err)
	}

	if override.Title != "" {
		b.Title = override.Title
	}
	if override.Subtitles != nil {
		b.Subtitles = override.Subtitles
	}
	if override.Issuer != "" {
		b.Issuer = override.Issuer
	}
	if override.Disclaimer != "" {
		b.Disclaimer = override.Disclaimer
	}
	return b, nil
}
