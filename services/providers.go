package services

import (
	"fmt"

	"activity-sync/config"
	"activity-sync/scraper"
	"activity-sync/scraper/perfectmind"
)

// NewProvider builds the site adapter named by the source's provider key
func NewProvider(src config.SourceConfig) (scraper.Provider, error) {
	switch src.Provider {
	case perfectmind.Name, "":
		p, err := perfectmind.New(src)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", src.ID, err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("source %s: unknown provider %q", src.ID, src.Provider)
	}
}
