// Command changectl is a small inspection CLI over a changecontrold
// database, grounded on the teacher's dbctl tool: open the SQLite file
// directly and print one record or table as JSON, no HTTP round-trip.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/projectcore/changecontrol/internal/store"
)

func main() {
	dbPath := flag.String("db", "data/changecontrol.db", "path to the SQLite database")
	action := flag.String("action", "", "health | get-project | get-task | get-draft | get-audit | list-projects")
	id := flag.String("id", "", "entity id, required for get-* actions")
	flag.Parse()

	if *action == "" {
		fmt.Fprintf(os.Stderr, "Usage: changectl -db <path> -action <action> [-id <id>]\n")
		fmt.Fprintf(os.Stderr, "Actions: health, get-project, get-task, get-draft, get-audit, list-projects\n")
		os.Exit(1)
	}

	s, err := store.Open(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer s.Close()

	var result interface{}
	switch *action {
	case "health":
		result, err = s.Health(*dbPath)
	case "get-project":
		result, err = requireID(*id, func(id string) (interface{}, error) { return s.GetProject(id) })
	case "get-task":
		result, err = requireID(*id, func(id string) (interface{}, error) { return s.GetTask(id) })
	case "get-draft":
		result, err = requireID(*id, func(id string) (interface{}, error) { return s.GetDraft(id) })
	case "get-audit":
		result, err = requireID(*id, func(id string) (interface{}, error) { return s.GetAuditLog(id) })
	case "list-projects":
		result, err = s.ListProjects()
	default:
		fmt.Fprintf(os.Stderr, "Unknown action: %s\n", *action)
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "%s failed: %v\n", *action, err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode result: %v\n", err)
		os.Exit(1)
	}
}

func requireID(id string, fn func(string) (interface{}, error)) (interface{}, error) {
	if id == "" {
		return nil, errors.New("-id is required for this action")
	}
	return fn(id)
}
