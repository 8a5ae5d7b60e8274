package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/fsgeek/arbiter/internal/backend"
	"github.com/fsgeek/arbiter/internal/config"
	"github.com/fsgeek/arbiter/internal/ensemble"
	"github.com/fsgeek/arbiter/internal/evaluate"
	"github.com/fsgeek/arbiter/internal/pipeline"
	"github.com/fsgeek/arbiter/internal/registry"
	"github.com/fsgeek/arbiter/internal/rules"
	"github.com/fsgeek/arbiter/internal/scour"
	"github.com/fsgeek/arbiter/internal/storage"
)

var (
	rootCmd = &cobra.Command{
		Use:   "arbiter",
		Short: "Prompt interference detection and conflict evaluation",
	}
	configPath string
	rulesPath  string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to the configuration file")
	rootCmd.PersistentFlags().StringVar(&rulesPath, "rules", "", "Path to a custom rule set (YAML); built-in rules when empty")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(evaluateCmd)
	rootCmd.AddCommand(scourCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(modelsCmd)
}

// loadConfig reads the config file, falling back to defaults when the
// file does not exist.
func loadConfig() *config.Config {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return config.Default()
		}
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func loadRules() *rules.CompiledRuleSet {
	rs := rules.Builtin()
	if rulesPath != "" {
		loaded, err := rules.Load(rulesPath)
		if err != nil {
			log.Fatalf("Failed to load rules: %v", err)
		}
		rs = loaded
	}
	cs, err := rs.Compile()
	if err != nil {
		log.Fatalf("Rule set does not compile: %v", err)
	}
	return cs
}

func initBackends(ctx context.Context, cfg *config.Config) []backend.Client {
	var clients []backend.Client
	for _, bc := range cfg.Backends {
		c, err := backend.New(ctx, backend.Options{
			Provider: bc.Provider,
			Name:     bc.Name,
			APIKey:   bc.APIKey,
			Model:    bc.Model,
			BaseURL:  bc.BaseURL,
		})
		if err != nil {
			log.Fatalf("Failed to create backend %q: %v", bc.Name, err)
		}
		clients = append(clients, c)
	}
	return clients
}

func initStore(cfg *config.Config) *storage.SQLiteStore {
	store, err := storage.NewSQLiteStore(cfg.History.Path)
	if err != nil {
		log.Fatalf("Failed to open history database: %v", err)
	}
	return store
}

var (
	structuralOnly bool
	llmDecompose   bool
	noSave         bool
)

func init() {
	analyzeCmd.Flags().BoolVar(&structuralOnly, "structural-only", false, "Skip backend-judged rules; structural analysis only")
	analyzeCmd.Flags().BoolVar(&llmDecompose, "llm-decompose", false, "Decompose with a backend instead of the heuristic splitter")
	analyzeCmd.Flags().BoolVar(&noSave, "no-save", false, "Do not persist the run to the history database")
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze [file]",
	Short: "Decompose a prompt document and evaluate it for interference",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		cfg := loadConfig()
		cs := loadRules()

		text, err := os.ReadFile(args[0])
		if err != nil {
			log.Fatalf("Failed to read %s: %v", args[0], err)
		}
		source := filepath.Base(args[0])

		analyzer := pipeline.NewAnalyzer(cs,
			evaluate.WithConcurrency(cfg.Analysis.Concurrency),
			evaluate.WithThreshold(cfg.Analysis.ScoreThreshold),
		)

		backends := initBackends(ctx, cfg)
		var completer backend.Client
		if len(backends) > 0 {
			completer = backends[0]
		}

		fmt.Printf("📄 Decomposing %s...\n", source)
		start := time.Now()
		var dc backend.Client
		if llmDecompose {
			if completer == nil {
				log.Fatalf("--llm-decompose requires a configured backend")
			}
			dc = completer
		}
		blocks, err := analyzer.Decompose(ctx, dc, string(text), source)
		if err != nil {
			log.Fatalf("Decomposition failed: %v", err)
		}
		fmt.Printf("✅ %d blocks in %v.\n", len(blocks), time.Since(start))

		var result *pipeline.Result
		if structuralOnly || completer == nil {
			fmt.Println("🔍 Running structural analysis...")
			result = analyzer.AnalyzeStructural(blocks)
		} else {
			fmt.Printf("🧠 Running full analysis via %s...\n", completer.Name())
			result, err = analyzer.Analyze(ctx, blocks, completer)
			if err != nil {
				log.Fatalf("Analysis failed: %v", err)
			}
		}

		fmt.Println(result.Summary)
		fmt.Printf("📊 Interference score: %.2f (%d findings)\n", result.Score, result.Index.Len())

		if !noSave {
			store := initStore(cfg)
			defer store.Close()
			run := result.Run(source)
			if err := store.SaveRun(ctx, run); err != nil {
				log.Fatalf("Failed to save run: %v", err)
			}
			fmt.Printf("💾 Saved run %s to %s\n", run.ID, cfg.History.Path)
		}
	},
}

var (
	systemPath string
	domainPath string
	evalDomain string
	maxModels  int
)

func init() {
	evaluateCmd.Flags().StringVar(&systemPath, "system", "", "System layer YAML file (name + rules)")
	evaluateCmd.Flags().StringVar(&domainPath, "domain-file", "", "Domain layer YAML file (name + entries)")
	evaluateCmd.Flags().StringVar(&evalDomain, "domain", "instruction", "Registry domain for backend selection when no backends are configured")
	evaluateCmd.Flags().IntVar(&maxModels, "max-models", 2, "Ensemble size when selecting from the registry")
	evaluateCmd.MarkFlagRequired("system")
	evaluateCmd.MarkFlagRequired("domain-file")
}

var evaluateCmd = &cobra.Command{
	Use:   "evaluate [query]",
	Short: "Evaluate a query against system and domain layers with a judge ensemble",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		cfg := loadConfig()

		var system ensemble.SystemLayer
		if err := readYAML(systemPath, &system); err != nil {
			log.Fatalf("Failed to read system layer: %v", err)
		}
		var domain ensemble.DomainLayer
		if err := readYAML(domainPath, &domain); err != nil {
			log.Fatalf("Failed to read domain layer: %v", err)
		}

		req, err := ensemble.NewRequest(system, domain, args[0])
		if err != nil {
			log.Fatalf("Request rejected: %v", err)
		}

		var ens *ensemble.Ensemble
		if clients := initBackends(ctx, cfg); len(clients) > 0 {
			backends := make([]backend.Backend, len(clients))
			for i, c := range clients {
				backends[i] = c
			}
			ens, err = ensemble.New(backends)
		} else {
			fmt.Printf("🗂  No backends configured, selecting from registry for domain %q...\n", evalDomain)
			ens, err = registry.WithDefaults().MakeEnsemble(ctx, evalDomain, maxModels, registry.SelectOptions{})
		}
		if err != nil {
			log.Fatalf("Failed to build ensemble: %v", err)
		}

		fmt.Printf("⚖️  Evaluating with %d backend(s)...\n", len(ens.Backends()))
		result, err := ens.Evaluate(ctx, req)
		if err != nil {
			log.Fatalf("Evaluation failed: %v", err)
		}

		for _, be := range result.BackendErrors {
			fmt.Printf("⚠️  Backend failed: %v\n", be)
		}
		if result.Resolved {
			fmt.Println("✅ No conflicts. Resolved output:")
			fmt.Println(result.Output)
			return
		}
		fmt.Printf("🚨 %d conflict(s) detected:\n", len(result.Conflicts))
		for _, c := range result.Conflicts {
			fmt.Printf("  - %s ⟷ %s\n    %s\n", c.Source, c.Target, c.Description)
			if c.ResolutionHint != "" {
				fmt.Printf("    hint: %s\n", c.ResolutionHint)
			}
		}
		os.Exit(2)
	},
}

var scourNoSave bool

func init() {
	scourCmd.Flags().BoolVar(&scourNoSave, "no-save", false, "Do not persist the session to the history database")
}

var scourCmd = &cobra.Command{
	Use:   "scour [file]",
	Short: "Explore a prompt document over multiple passes until convergence",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		cfg := loadConfig()

		text, err := os.ReadFile(args[0])
		if err != nil {
			log.Fatalf("Failed to read %s: %v", args[0], err)
		}

		clients := initBackends(ctx, cfg)
		if len(clients) == 0 {
			log.Fatalf("Scouring requires at least one configured backend")
		}
		completers := make([]scour.Completer, len(clients))
		for i, c := range clients {
			completers[i] = c
		}

		session, err := scour.NewSession(completers,
			scour.WithMaxPasses(cfg.Analysis.MaxPasses),
			scour.WithDeclineThreshold(cfg.Analysis.DeclineThreshold),
		)
		if err != nil {
			log.Fatalf("Failed to create session: %v", err)
		}

		fmt.Printf("🔭 Scouring %s (max %d passes)...\n", args[0], cfg.Analysis.MaxPasses)
		result, err := session.Run(ctx, string(text))
		if result != nil && !scourNoSave && result.Passes > 0 {
			store := initStore(cfg)
			defer store.Close()
			sess := &storage.ScourSession{
				ID:        uuid.NewString(),
				Source:    filepath.Base(args[0]),
				Outcome:   result.Outcome,
				CreatedAt: time.Now().UTC(),
				State:     result.State,
			}
			if serr := store.SaveScourSession(ctx, sess); serr != nil {
				log.Printf("Warning: failed to save session: %v", serr)
			} else {
				fmt.Printf("💾 Saved session %s to %s\n", sess.ID, cfg.History.Path)
			}
		}
		if err != nil {
			log.Fatalf("Scour failed after %d pass(es): %v", result.Passes, err)
		}

		switch result.Outcome {
		case scour.OutcomeConverged:
			fmt.Printf("✅ Converged after %d pass(es).\n", result.Passes)
		case scour.OutcomeBudgetExhausted:
			fmt.Printf("⏳ Pass budget exhausted after %d pass(es); exploration may be incomplete.\n", result.Passes)
		}

		for _, f := range result.State.AllFindings() {
			fmt.Printf("  [%s/%s] %s\n", f.Category, f.Confidence, f.Description)
		}
		if unexplored := result.State.LatestUnexplored(); len(unexplored) > 0 {
			fmt.Println("🗺  Still unexplored:")
			for _, u := range unexplored {
				fmt.Printf("  - %s\n", u.Description)
			}
		}
	},
}

var historyLimit int

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum entries to list")
}

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "List past analysis runs and scour sessions, or show one run",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		cfg := loadConfig()
		store := initStore(cfg)
		defer store.Close()

		if len(args) == 1 {
			run, err := store.GetRun(ctx, args[0])
			if err != nil {
				log.Fatalf("Failed to load run: %v", err)
			}
			fmt.Printf("Run %s (%s, %s)\n", run.ID, run.Source, run.CreatedAt.Format(time.RFC3339))
			fmt.Println(run.Summary)
			return
		}

		runs, err := store.ListRuns(ctx, historyLimit)
		if err != nil {
			log.Fatalf("Failed to list runs: %v", err)
		}
		fmt.Printf("📜 %d run(s):\n", len(runs))
		for _, r := range runs {
			fmt.Printf("  %s  %-24s score=%.2f  %s\n", r.CreatedAt.Format("2006-01-02 15:04"), r.Source, r.Score, r.ID)
		}

		sessions, err := store.ListScourSessions(ctx, historyLimit)
		if err != nil {
			log.Fatalf("Failed to list scour sessions: %v", err)
		}
		fmt.Printf("🔭 %d scour session(s):\n", len(sessions))
		for _, s := range sessions {
			fmt.Printf("  %s  %-24s %s  %s\n", s.CreatedAt.Format("2006-01-02 15:04"), s.Source, s.Outcome, s.ID)
		}
	},
}

var modelsDomain string

func init() {
	modelsCmd.Flags().StringVar(&modelsDomain, "domain", "", "Rank profiles for a specific domain")
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the built-in model profiles, optionally ranked for a domain",
	Run: func(cmd *cobra.Command, args []string) {
		reg := registry.WithDefaults()
		profiles := reg.Profiles()
		if modelsDomain != "" {
			profiles = reg.Select(modelsDomain, registry.SelectOptions{IncludeDisqualified: true})
		}
		for _, p := range profiles {
			status := ""
			if p.Disqualified {
				status = "  ❌ disqualified"
			}
			fmt.Printf("%-30s provider=%-12s%s\n", p.Name, p.Provider, status)
			if modelsDomain != "" {
				if score, ok := p.DomainScores[modelsDomain]; ok {
					fmt.Printf("    %s: detection=%.0f%% fp=%.0f%% (n=%d)\n",
						modelsDomain, score.DetectionRate*100, score.FalsePositiveRate*100, score.Trials)
				} else {
					fmt.Printf("    %s: unmeasured\n", modelsDomain)
				}
			}
			if cost, ok := p.EstimatedCostPerCall(); ok {
				fmt.Printf("    est. cost/call: $%.5f\n", cost)
			}
		}
	},
}

func readYAML(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, v)
}
