// Command inspect dumps the durable store as a table, read-only, for
// debugging a stopped or live server from the shell.
//
//	go run ./cmd/inspect -db /var/lib/chat-relay -prefix msg:
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/olekukonko/tablewriter"
)

func main() {
	dbPath := flag.String("db", "", "Path to badger DB")
	prefix := flag.String("prefix", "msg:", "Key prefix to scan (msg:, user:, chat:, ...)")
	flag.Parse()

	if *dbPath == "" {
		log.Fatal("missing -db path")
	}

	db, err := openReadOnly(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Kind", "Value"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			key := string(item.Key())
			if err := item.Value(func(v []byte) error {
				table.Append([]string{key, kindOf(key), renderValue(v)})
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}

	table.Render()
}

// kindOf classifies a key by its namespace prefix.
func kindOf(key string) string {
	switch {
	case strings.HasPrefix(key, "msg:"):
		return "MESSAGE"
	case strings.HasPrefix(key, "msgix:"):
		return "MSG-INDEX"
	case strings.HasPrefix(key, "chat:pair:"):
		return "CHAT"
	case strings.HasPrefix(key, "chatix:"):
		return "CHAT-INDEX"
	case strings.HasPrefix(key, "user:id:"):
		return "USER"
	case strings.HasPrefix(key, "user:email:"):
		return "EMAIL-INDEX"
	default:
		return "RAW"
	}
}

// renderValue compacts JSON documents onto one line; index entries hold
// raw keys and are printed as-is.
func renderValue(v []byte) string {
	var compact map[string]any
	if err := json.Unmarshal(v, &compact); err != nil {
		return string(v)
	}
	delete(compact, "passwordHash")
	out, err := json.Marshal(compact)
	if err != nil {
		return string(v)
	}
	return string(out)
}

func openReadOnly(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open failed: %w", err)
	}
	return db, nil
}
