package main

import (
	"fmt"
	"os"
	"strings"

	"media-library/config"
	"media-library/importer"
	"media-library/library"
	"media-library/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()

	var (
		configPath, dbPath string
		reset              bool
	)
	cmd := &cobra.Command{
		Use:          "import_media [dir]",
		Short:        "Load books.csv, dvds.csv, magazines.csv and members.csv into the library",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "data"
			if len(args) == 1 {
				dir = args[0]
			}

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if dbPath != "" {
				cfg.Database.Path = dbPath
			}
			logger.Initialize(cfg.Log.Level, cfg.Log.Format)

			if reset {
				removeDatabase(cfg.Database.Path)
			}
			return run(cfg, dir)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", os.Getenv("LIBRARY_CONFIG"), "path to YAML config file")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path (overrides config)")
	cmd.Flags().BoolVar(&reset, "reset", false, "delete the existing database before importing")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func removeDatabase(path string) {
	fmt.Println("Cleaning up existing database files...")
	for _, file := range []string{path, path + "-shm", path + "-wal"} {
		if err := os.Remove(file); err != nil && !os.IsNotExist(err) {
			fmt.Printf("Warning: Could not remove %s: %v\n", file, err)
		}
	}
}

func run(cfg *config.Config, dir string) error {
	manager, err := cfg.OpenManager(logger.WithComponent("library"))
	if err != nil {
		return fmt.Errorf("error opening database: %w", err)
	}
	defer manager.Close()

	fmt.Printf("Importing media from %s directory...\n", dir)

	var res importer.Result
	err = manager.Batch(func(lib *library.Library) error {
		var importErr error
		res, importErr = importer.New(lib, logger.WithComponent("importer")).ImportDir(dir)
		return importErr
	})

	fmt.Printf("\nImport complete!\n")
	fmt.Printf("Successfully imported: %d items, %d members\n", res.Items, res.Members)
	fmt.Printf("Errors: %d\n", len(res.Skipped))
	for _, skipped := range res.Skipped {
		fmt.Printf("  %v\n", skipped)
	}
	if err != nil {
		return err
	}

	if res.Items > 0 {
		fmt.Println("\nCatalogue:")
		fmt.Printf("%-9s %-50s %-5s\n", "Kind", "Title", "Year")
		fmt.Println(strings.Repeat("-", 66))
		for _, item := range manager.SearchMedia("") {
			fmt.Printf("%-9s %-50s %-5d\n", item.Kind, truncateString(item.Title, 50), item.Year)
		}
	}
	return nil
}

func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
