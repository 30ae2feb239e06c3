package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestAllCategoriesLog tests that every category creates a log file when
// debug mode is on.
func TestAllCategoriesLog(t *testing.T) {
	tempDir := t.TempDir()

	CloseAll()
	if err := Initialize(tempDir, true, "debug"); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer CloseAll()

	if !IsDebugMode() {
		t.Error("Expected debug mode to be enabled")
	}

	categories := []Category{
		CategoryBoot,
		CategorySimilarity,
		CategoryCluster,
		CategoryResolver,
		CategoryHarmonize,
		CategoryQuality,
		CategoryOrchestrator,
		CategoryStore,
	}

	for _, cat := range categories {
		logger := Get(cat)
		logger.Info("Test info message for %s", cat)
		logger.Debug("Test debug message for %s", cat)
		logger.Warn("Test warn message for %s", cat)
		logger.Error("Test error message for %s", cat)
	}

	// Also exercise the convenience functions
	Similarity("Convenience similarity log")
	Cluster("Convenience cluster log")
	Resolver("Convenience resolver log")
	Harmonize("Convenience harmonize log")
	Quality("Convenience quality log")
	Orchestrator("Convenience orchestrator log")
	Store("Convenience store log")

	// Close all loggers to flush
	CloseAll()

	logsPath := filepath.Join(tempDir, "logs")
	entries, err := os.ReadDir(logsPath)
	if err != nil {
		t.Fatalf("Failed to read logs dir: %v", err)
	}

	for _, cat := range categories {
		found := false
		for _, entry := range entries {
			if strings.Contains(entry.Name(), string(cat)+".log") {
				found = true
				content, err := os.ReadFile(filepath.Join(logsPath, entry.Name()))
				if err != nil {
					t.Errorf("Failed to read log file for %s: %v", cat, err)
					continue
				}
				if len(content) == 0 {
					t.Errorf("Log file for %s is empty", cat)
				}
				break
			}
		}
		if !found {
			t.Errorf("No log file found for category: %s", cat)
		}
	}
}

// TestDebugModeDisabled tests that no files are created when debug mode
// is off.
func TestDebugModeDisabled(t *testing.T) {
	tempDir := t.TempDir()

	CloseAll()
	if err := Initialize(tempDir, false, "info"); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer CloseAll()

	if IsDebugMode() {
		t.Error("Expected debug mode to be disabled")
	}

	// These should all be silent no-ops
	Get(CategorySimilarity).Info("should not be written")
	Orchestrator("should not be written")
	StartTimer(CategoryCluster, "noop").Stop()

	if _, err := os.Stat(filepath.Join(tempDir, "logs")); !os.IsNotExist(err) {
		t.Errorf("Expected no logs directory, got err=%v", err)
	}
}

// TestLevelFiltering tests that messages below the configured level are
// dropped.
func TestLevelFiltering(t *testing.T) {
	tempDir := t.TempDir()

	CloseAll()
	if err := Initialize(tempDir, true, "warn"); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer CloseAll()

	logger := Get(CategoryQuality)
	logger.Debug("dropped debug")
	logger.Info("dropped info")
	logger.Warn("kept warn")
	logger.Error("kept error")

	CloseAll()

	logsPath := filepath.Join(tempDir, "logs")
	entries, err := os.ReadDir(logsPath)
	if err != nil {
		t.Fatalf("Failed to read logs dir: %v", err)
	}

	var content string
	for _, entry := range entries {
		if strings.Contains(entry.Name(), string(CategoryQuality)+".log") {
			data, err := os.ReadFile(filepath.Join(logsPath, entry.Name()))
			if err != nil {
				t.Fatalf("Failed to read log file: %v", err)
			}
			content = string(data)
		}
	}
	if content == "" {
		t.Fatal("No quality log file written")
	}
	if strings.Contains(content, "dropped") {
		t.Errorf("Filtered messages leaked into log: %s", content)
	}
	if !strings.Contains(content, "kept warn") || !strings.Contains(content, "kept error") {
		t.Errorf("Expected warn and error entries, got: %s", content)
	}
}
