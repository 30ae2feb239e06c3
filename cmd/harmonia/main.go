package main

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"harmonia/internal/abstraction"
	"harmonia/internal/category"
	"harmonia/internal/cluster"
	"harmonia/internal/config"
	"harmonia/internal/logging"
	"harmonia/internal/similarity"
	"harmonia/internal/store"
	"harmonia/internal/types"
)

const version = "1.2.0"

var (
	// Global flags
	configPath string
	dbPath     string
	verbose    bool
	frameworks []string

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "harmonia",
	Short: "harmonia - requirement unification & abstraction engine",
	Long: `harmonia merges overlapping control statements from multiple
regulatory frameworks into a single deduplicated, harmonized set of
requirement statements per topical category, preserving the compliance
obligations of every source statement.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
}

// unifyCmd runs the engine for one or more categories
var unifyCmd = &cobra.Command{
	Use:   "unify [category...]",
	Short: "Unify requirements for the given categories (default: all canonical categories)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if len(frameworks) == 0 {
			return fmt.Errorf("at least one --framework is required")
		}

		orch, corpus, err := buildOrchestrator(cfg)
		if err != nil {
			return err
		}
		defer corpus.Close()

		labels := args
		if len(labels) == 0 {
			cats, err := corpus.LoadCanonicalCategories()
			if err != nil {
				return fmt.Errorf("loading categories: %w", err)
			}
			if len(cats) == 0 {
				cats = cfg.CanonicalCategories()
			}
			for _, cat := range cats {
				labels = append(labels, cat.Name)
			}
		}
		if len(labels) == 0 {
			return fmt.Errorf("no categories to unify; pass labels or seed the category table")
		}

		logger.Info("unifying categories",
			zap.Int("categories", len(labels)),
			zap.Strings("frameworks", frameworks))

		results, err := orch.UnifyAll(context.Background(), frameworks, labels)
		if err != nil {
			return err
		}

		names := make([]string, 0, len(results))
		for name := range results {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			printSet(results[name])
		}
		return nil
	},
}

// resolveCmd debugs a category label through the fallback chain
var resolveCmd = &cobra.Command{
	Use:   "resolve <label>",
	Short: "Show how a category label resolves against the canonical table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		cats, err := loadCategories(cfg)
		if err != nil {
			return err
		}

		resolver := category.NewResolver(cats)
		label := args[0]
		if cat, ok := resolver.Resolve(label); ok {
			fmt.Printf("%q -> %q\n", label, cat.Name)
			return nil
		}
		fmt.Printf("%q -> no canonical category (generic fallback would be used)\n", label)
		return nil
	},
}

// importCmd seeds a corpus database from a YAML fixture
var importCmd = &cobra.Command{
	Use:   "import <fixture.yaml>",
	Short: "Seed the corpus database from a YAML fixture",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading fixture: %w", err)
		}
		var fix store.Fixture
		if err := yaml.Unmarshal(data, &fix); err != nil {
			return fmt.Errorf("parsing fixture: %w", err)
		}

		corpus, err := store.Open(databasePath(cfg))
		if err != nil {
			return err
		}
		defer corpus.Close()

		n, err := corpus.ImportFixture(&fix)
		if err != nil {
			return err
		}
		logger.Info("fixture imported",
			zap.Int("requirements", n),
			zap.String("db", databasePath(cfg)))
		fmt.Printf("imported %d requirements into %s\n", n, databasePath(cfg))
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the harmonia version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("harmonia", version)
	},
}

// =============================================================================
// WIRING
// =============================================================================

func loadConfig() (*config.Config, error) {
	cfg := config.FromEnv()
	if configPath != "" {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return nil, err
		}
	}

	dir := cfg.Logging.Directory
	if dir == "" {
		dir = "."
	}
	if err := logging.Initialize(dir, cfg.Logging.DebugMode, cfg.Logging.Level); err != nil {
		return nil, err
	}
	return cfg, nil
}

func databasePath(cfg *config.Config) string {
	if dbPath != "" {
		return dbPath
	}
	return cfg.Store.DatabasePath
}

func loadCategories(cfg *config.Config) ([]types.UnifiedCategory, error) {
	if len(cfg.Categories) > 0 {
		return cfg.CanonicalCategories(), nil
	}
	corpus, err := store.Open(databasePath(cfg))
	if err != nil {
		return nil, err
	}
	defer corpus.Close()
	return corpus.LoadCanonicalCategories()
}

// fileCategorySource serves the canonical table from the config file.
type fileCategorySource struct {
	cats []types.UnifiedCategory
}

func (f fileCategorySource) LoadCanonicalCategories() ([]types.UnifiedCategory, error) {
	return f.cats, nil
}

// fileTemplateSource serves authored templates from the config file,
// falling back to the corpus store.
type fileTemplateSource struct {
	templates map[string][]string
	fallback  abstraction.TemplateSource
}

func (f fileTemplateSource) LoadAuthoredTemplate(name string) ([]string, bool, error) {
	if lines, ok := f.templates[name]; ok && len(lines) > 0 {
		return lines, true, nil
	}
	if f.fallback != nil {
		return f.fallback.LoadAuthoredTemplate(name)
	}
	return nil, false, nil
}

func buildOrchestrator(cfg *config.Config) (*abstraction.Orchestrator, *store.CorpusStore, error) {
	corpus, err := store.Open(databasePath(cfg))
	if err != nil {
		return nil, nil, err
	}

	var categories abstraction.CategorySource = corpus
	if len(cfg.Categories) > 0 {
		categories = fileCategorySource{cats: cfg.CanonicalCategories()}
	}

	templates := fileTemplateSource{templates: cfg.Templates, fallback: corpus}

	orch, err := abstraction.NewOrchestrator(
		cfg.Abstraction(),
		cluster.NewBuilder(similarity.NewScorer()),
		categories,
		corpus,
		templates,
		abstraction.NewResultCache(256),
	)
	if err != nil {
		corpus.Close()
		return nil, nil, err
	}
	if cfg.Engine.Workers > 0 {
		orch.Workers = cfg.Engine.Workers
	}
	return orch, corpus, nil
}

func printSet(set types.UnifiedRequirementSet) {
	fmt.Printf("\n## %s  [%s]\n", set.CategoryName, set.Mode)
	fmt.Printf("   preservation=%.2f complexity=%.2f clarity=%.2f passed=%v\n",
		set.Quality.CompliancePreservationScore,
		set.Quality.ComplexityRatio,
		set.Quality.ClarityScore,
		set.Quality.Passed)
	for _, sub := range set.SubRequirements {
		fmt.Printf("   %s\n", sub.Text)
		if len(sub.Provenance) > 0 {
			fmt.Printf("      sources:")
			for _, ref := range sub.Provenance {
				fmt.Printf(" %s", ref)
			}
			fmt.Println()
		}
		if sub.ConflictNote != "" {
			fmt.Printf("      conflict: %s\n", sub.ConflictNote)
		}
	}
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to harmonia.yaml")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "path to the corpus database (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	unifyCmd.Flags().StringSliceVarP(&frameworks, "framework", "f", nil, "framework IDs to unify (repeatable)")

	rootCmd.AddCommand(unifyCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
