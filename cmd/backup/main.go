// Command backup exports and imports the document store as a JSON file.
// It speaks plain database/sql so it can run against the database without
// the engine.
package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	_ "github.com/lib/pq"

	"github.com/scribblestars/scribble-engine/internal/config"
)

type backupDocument struct {
	Collection string          `json:"collection"`
	ID         string          `json:"id"`
	Data       json.RawMessage `json:"data"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

type backupFile struct {
	ExportedAt time.Time        `json:"exported_at"`
	Documents  []backupDocument `json:"documents"`
}

func main() {
	exportCmd := flag.NewFlagSet("export", flag.ExitOnError)
	importCmd := flag.NewFlagSet("import", flag.ExitOnError)

	exportOutput := exportCmd.String("output", "", "Output file path (default: backup_YYYYMMDD_HHMMSS.json)")

	importInput := importCmd.String("input", "", "Input file path (required)")
	importClear := importCmd.Bool("clear", false, "Clear existing documents before import (WARNING: destructive)")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Database.DSN == "" {
		log.Fatal("DATABASE_DSN is required for backup")
	}

	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	switch os.Args[1] {
	case "export":
		exportCmd.Parse(os.Args[2:])
		handleExport(db, *exportOutput)

	case "import":
		importCmd.Parse(os.Args[2:])
		if *importInput == "" {
			fmt.Println("Error: -input flag is required")
			importCmd.PrintDefaults()
			os.Exit(1)
		}
		handleImport(db, *importInput, *importClear)

	default:
		printUsage()
		os.Exit(1)
	}
}

func handleExport(db *sql.DB, outputPath string) {
	if outputPath == "" {
		timestamp := time.Now().Format("20060102_150405")
		outputPath = fmt.Sprintf("backup_%s.json", timestamp)
	}

	rows, err := db.Query(`SELECT collection, id, data, created_at, updated_at FROM documents ORDER BY collection, created_at`)
	if err != nil {
		log.Fatalf("Failed to read documents: %v", err)
	}
	defer rows.Close()

	backup := backupFile{ExportedAt: time.Now().UTC()}

	for rows.Next() {
		var doc backupDocument
		if err := rows.Scan(&doc.Collection, &doc.ID, &doc.Data, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
			log.Fatalf("Failed to scan document: %v", err)
		}
		backup.Documents = append(backup.Documents, doc)
	}
	if err := rows.Err(); err != nil {
		log.Fatalf("Failed to read documents: %v", err)
	}

	out, err := os.Create(outputPath)
	if err != nil {
		log.Fatalf("Failed to create output file: %v", err)
	}
	defer out.Close()

	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(backup); err != nil {
		log.Fatalf("Failed to write backup: %v", err)
	}

	fmt.Printf("Exported %d documents to %s\n", len(backup.Documents), outputPath)
}

func handleImport(db *sql.DB, inputPath string, clear bool) {
	raw, err := os.ReadFile(inputPath)
	if err != nil {
		log.Fatalf("Failed to read input file: %v", err)
	}

	var backup backupFile
	if err := json.Unmarshal(raw, &backup); err != nil {
		log.Fatalf("Failed to parse backup file: %v", err)
	}

	tx, err := db.Begin()
	if err != nil {
		log.Fatalf("Failed to begin transaction: %v", err)
	}
	defer tx.Rollback()

	if clear {
		if _, err := tx.Exec(`DELETE FROM documents`); err != nil {
			log.Fatalf("Failed to clear documents: %v", err)
		}
		fmt.Println("Cleared existing documents")
	}

	const upsert = `
		INSERT INTO documents (collection, id, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (collection, id)
		DO UPDATE SET data = $3, updated_at = $5
	`

	for _, doc := range backup.Documents {
		if _, err := tx.Exec(upsert, doc.Collection, doc.ID, []byte(doc.Data), doc.CreatedAt, doc.UpdatedAt); err != nil {
			log.Fatalf("Failed to import document %s/%s: %v", doc.Collection, doc.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		log.Fatalf("Failed to commit import: %v", err)
	}

	fmt.Printf("Imported %d documents from %s (exported at %s)\n",
		len(backup.Documents), inputPath, backup.ExportedAt.Format(time.RFC3339))
}

func printUsage() {
	fmt.Println("Usage: backup <command> [flags]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  export    Export all documents to a JSON file")
	fmt.Println("  import    Import documents from a JSON file")
}
