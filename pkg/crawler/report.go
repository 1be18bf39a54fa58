package crawler

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// WriteReport writes the YAML report for result to path, creating parent directories
func WriteReport(path string, result *Result, log *logrus.Entry) error {
	if result == nil {
		return fmt.Errorf("nil result")
	}

	log.Debugf("Generating crawl report for %s", path)
	yamlData, err := yaml.Marshal(result.Report())
	if err != nil {
		log.Errorf("Failed to marshal crawl report to YAML: %v", err)
		return fmt.Errorf("marshal report: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create report directory: %w", err)
		}
	}
	if err := os.WriteFile(path, yamlData, 0644); err != nil {
		log.Errorf("Failed to write crawl report file '%s': %v", path, err)
		return fmt.Errorf("write report: %w", err)
	}

	log.WithFields(logrus.Fields{
		"path":       path,
		"downloaded": len(result.Downloaded),
		"errors":     len(result.Errors),
	}).Info("Successfully wrote crawl report")
	return nil
}
