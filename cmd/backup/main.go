package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"familytree/internal/config"
	"familytree/internal/database"
	"familytree/internal/logging"
	"familytree/internal/repository"
	"familytree/internal/service"
)

// cliActor is recorded as the author of history and snapshots
const cliActor = "cli"

func main() {
	exportCmd := flag.NewFlagSet("export", flag.ExitOnError)
	importCmd := flag.NewFlagSet("import", flag.ExitOnError)
	snapshotCmd := flag.NewFlagSet("snapshot", flag.ExitOnError)

	exportOutput := exportCmd.String("output", "", "Output file path (default: familytree_backup_YYYYMMDD_HHMMSS.json)")

	importInput := importCmd.String("input", "", "Input file path (required)")
	importClear := importCmd.Bool("clear", false, "Replace the existing tree (a safety snapshot is taken first)")
	importYes := importCmd.Bool("yes", false, "Do not ask for confirmation with -clear")

	snapshotName := snapshotCmd.String("name", "", "Snapshot name (required)")
	snapshotDescription := snapshotCmd.String("description", "", "Snapshot description")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg := config.Load()
	logging.Setup(cfg.LogLevel)

	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		fatal("Failed to initialize database", err)
	}
	defer db.Close()

	// Run migrations to ensure schema is up to date
	if err := db.RunMigrations(); err != nil {
		fatal("Failed to run migrations", err)
	}

	memberRepo := repository.NewMemberRepository(db)
	flagService := service.NewFeatureFlagService(repository.NewFeatureFlagRepository(db))
	snapshotService := service.NewSnapshotService(repository.NewSnapshotRepository(db), memberRepo)
	backupService := service.NewBackupService(memberRepo, snapshotService, flagService)

	switch os.Args[1] {
	case "export":
		exportCmd.Parse(os.Args[2:])
		handleExport(backupService, *exportOutput)

	case "import":
		importCmd.Parse(os.Args[2:])
		if *importInput == "" {
			fmt.Println("Error: -input flag is required")
			importCmd.PrintDefaults()
			os.Exit(1)
		}
		handleImport(backupService, *importInput, *importClear, *importYes)

	case "snapshot":
		snapshotCmd.Parse(os.Args[2:])
		if *snapshotName == "" {
			fmt.Println("Error: -name flag is required")
			snapshotCmd.PrintDefaults()
			os.Exit(1)
		}
		handleSnapshot(snapshotService, *snapshotName, *snapshotDescription)

	default:
		printUsage()
		os.Exit(1)
	}
}

func fatal(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}

func handleExport(backupService *service.BackupService, outputPath string) {
	if outputPath == "" {
		outputPath = fmt.Sprintf("familytree_backup_%s.json", time.Now().Format("20060102_150405"))
	}

	dir := filepath.Dir(outputPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			fatal("Failed to create output directory", err)
		}
	}

	slog.Info("Exporting tree", "output", outputPath)
	if err := backupService.Export(outputPath); err != nil {
		fatal("Export failed", err)
	}

	if info, err := os.Stat(outputPath); err == nil {
		slog.Info("Export complete", "size_kb", info.Size()/1024)
	}
}

func handleImport(backupService *service.BackupService, inputPath string, clearData, assumeYes bool) {
	if _, err := os.Stat(inputPath); os.IsNotExist(err) {
		fatal("Input file does not exist", err)
	}

	if clearData && !assumeYes {
		fmt.Print("WARNING: This will replace every member in the tree. Type 'yes' to confirm: ")
		var confirmation string
		fmt.Scanln(&confirmation)
		if confirmation != "yes" {
			slog.Info("Import cancelled")
			return
		}
	}

	slog.Info("Importing tree", "input", inputPath, "clear", clearData)
	if err := backupService.Import(inputPath, clearData, cliActor); err != nil {
		fatal("Import failed", err)
	}
	slog.Info("Import complete")
}

func handleSnapshot(snapshotService *service.SnapshotService, name, description string) {
	snap, err := snapshotService.Create(name, description, cliActor)
	if err != nil {
		fatal("Snapshot failed", err)
	}
	slog.Info("Snapshot created", "id", snap.ID, "name", snap.Name, "members", snap.MemberCount)
}

func printUsage() {
	fmt.Println("Family Tree Backup Tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  backup export [options]      Export the tree to a JSON file")
	fmt.Println("  backup import [options]      Import the tree from a JSON file")
	fmt.Println("  backup snapshot [options]    Store a named snapshot in the database")
	fmt.Println()
	fmt.Println("Export Options:")
	fmt.Println("  -output <file>         Output file path (default: familytree_backup_YYYYMMDD_HHMMSS.json)")
	fmt.Println()
	fmt.Println("Import Options:")
	fmt.Println("  -input <file>          Input file path (required)")
	fmt.Println("  -clear                 Replace the existing tree (a safety snapshot is taken first)")
	fmt.Println("  -yes                   Skip the confirmation prompt")
	fmt.Println()
	fmt.Println("Snapshot Options:")
	fmt.Println("  -name <name>           Snapshot name (required)")
	fmt.Println("  -description <text>    Snapshot description")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  DATABASE_TYPE    Database type: sqlite, postgres, or mysql (default: sqlite)")
	fmt.Println("  DB_PATH          SQLite database path (default: ./familytree.db)")
	fmt.Println("  DATABASE_URL     PostgreSQL or MySQL connection URL")
}
