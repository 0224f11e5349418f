// modrun - inspection tooling for the Calyx module runtime
//
// Runs the capability detector over guest source, validates catalog and
// rule files, and inspects persistent module stores.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/calyx-run/modrun/capability"
	"github.com/calyx-run/modrun/config"
	"github.com/calyx-run/modrun/modcache"
)

func main() {
	detectFile := flag.String("detect", "", "Run capability detection over a source file")
	catalogFile := flag.String("catalog", "", "Catalog TOML file (default: from modrun.toml, else built-in)")
	rulesFile := flag.String("rules", "", "Detection rule TOML file (default: from modrun.toml, else built-in)")
	validate := flag.Bool("validate", false, "Validate the catalog and rule files and exit")
	storePath := flag.String("store", "", "Inspect a persistent module store")
	cleanup := flag.Duration("cleanup", 0, "With -store, delete modules older than this duration")
	verbose := flag.Bool("v", false, "Verbose output")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: modrun [options]\n\n")
		fmt.Fprintf(os.Stderr, "Inspection tooling for the Calyx module runtime.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  modrun -detect handler.src            # What capabilities does this code need?\n")
		fmt.Fprintf(os.Stderr, "  modrun -catalog caps.toml -validate   # Check a catalog file for cycles\n")
		fmt.Fprintf(os.Stderr, "  modrun -store modules.db              # Show persistent store stats\n")
		fmt.Fprintf(os.Stderr, "  modrun -store modules.db -cleanup 720h\n")
	}
	flag.Parse()

	verbosity := 0
	if *verbose {
		verbosity = 1
	}
	commonlog.Configure(verbosity, nil)

	// A modrun.toml in or above the working directory supplies defaults;
	// explicit flags win.
	cfg, err := config.FindAndLoad(".")
	if err != nil {
		fail(err)
	}
	if cfg != nil {
		if *catalogFile == "" {
			*catalogFile = resolveAgainst(cfg.Dir, cfg.Catalog.CatalogFile)
		}
		if *rulesFile == "" {
			*rulesFile = resolveAgainst(cfg.Dir, cfg.Catalog.RulesFile)
		}
		if *storePath == "" && *cleanup == 0 && !*validate && *detectFile == "" {
			*storePath = cfg.StorePath()
		}
	}

	catalog, rules, err := loadCatalogAndRules(*catalogFile, *rulesFile)
	if err != nil {
		fail(err)
	}

	switch {
	case *validate:
		fmt.Printf("catalog ok: %d capabilities, %d rules\n", catalog.Len(), len(rules))

	case *detectFile != "":
		source, err := os.ReadFile(*detectFile)
		if err != nil {
			fail(err)
		}
		printDetection(capability.NewDetector(catalog, rules).Detect(string(source)))

	case *storePath != "":
		if err := inspectStore(*storePath, *cleanup); err != nil {
			fail(err)
		}

	default:
		flag.Usage()
		os.Exit(2)
	}
}

func loadCatalogAndRules(catalogFile, rulesFile string) (*capability.Catalog, []capability.Rule, error) {
	catalog := capability.BuiltinCatalog()
	rules := capability.DefaultRules()
	var err error
	if catalogFile != "" {
		if catalog, err = capability.LoadCatalogFile(catalogFile); err != nil {
			return nil, nil, err
		}
	}
	if rulesFile != "" {
		if rules, err = capability.LoadRulesFile(rulesFile); err != nil {
			return nil, nil, err
		}
	}
	return catalog, rules, nil
}

func printDetection(result capability.DetectionResult) {
	fmt.Printf("confidence: %.2f  (analysis took %s)\n", result.Confidence, result.AnalysisTime)
	fmt.Println("required:")
	for _, cap := range result.Required {
		fmt.Printf("  %-14s %s\n", cap.ID, cap.Name)
	}
	if len(result.Unavailable) > 0 {
		fmt.Println("unavailable (privileged, requires operator grant):")
		for _, cap := range result.Unavailable {
			fmt.Printf("  %-14s %s\n", cap.ID, cap.Name)
		}
	}
	for _, det := range result.Details {
		fmt.Printf("  %s: %s at", det.Capability, det.Reason)
		for _, loc := range det.Locations {
			fmt.Printf(" %d:%d", loc.Line, loc.Column)
		}
		fmt.Println()
	}
}

func inspectStore(path string, cleanup time.Duration) error {
	store, err := modcache.OpenSQLiteStore(path)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	if cleanup > 0 {
		removed, err := store.Cleanup(ctx, cleanup)
		if err != nil {
			return err
		}
		fmt.Printf("removed %d modules older than %s\n", removed, cleanup)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("modules: %d  total size: %d bytes\n", stats.Modules, stats.TotalSize)

	hashes, err := store.List(ctx)
	if err != nil {
		return err
	}
	for _, hash := range hashes {
		m, err := store.Load(ctx, hash)
		if err != nil {
			return err
		}
		fmt.Printf("  %s  %s@%s  %d bytes  %s\n",
			hash[:12], m.Name, m.Version, m.Size, m.CreatedAt.Format(time.RFC3339))
	}
	return nil
}

func resolveAgainst(dir, path string) string {
	if path == "" || filepath.IsAbs(path) || dir == "" {
		return path
	}
	return filepath.Join(dir, path)
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "modrun: %v\n", err)
	os.Exit(1)
}
