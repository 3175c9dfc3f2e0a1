// ledgerctl inspects and maintains the processed-ticket ledger file
// without stopping the resolver.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"time"

	"shipment-ticket-resolver/internal/ledger"
	"shipment-ticket-resolver/internal/models"
)

func main() {
	ledgerPath := flag.String("ledger", "./data/processed_tickets.json", "path to the ledger file")
	failureLog := flag.String("failure-log", "./data/ledger_failures.log", "path to the ledger failure side-log")
	list := flag.Bool("list", false, "print every ledger entry, oldest first")
	check := flag.String("check", "", "report whether the given ticket id is in the ledger")
	pruneBefore := flag.String("prune-before", "", "remove entries processed before this date (2006-01-02)")
	export := flag.String("export", "", "write the ledger as JSON to this path")
	flag.Parse()

	led := ledger.NewFileLedger(*ledgerPath, *failureLog)
	ctx := context.Background()

	switch {
	case *check != "":
		entries := led.Load(ctx)
		entry, ok := entries[*check]
		if !ok {
			fmt.Printf("%s: not in ledger\n", *check)
			os.Exit(1)
		}
		fmt.Printf("%s: processed %s (%s)\n", *check, entry.ProcessedTime, entry.URL)

	case *pruneBefore != "":
		cutoff, err := time.ParseInLocation("2006-01-02", *pruneBefore, time.Local)
		if err != nil {
			log.Fatalf("invalid -prune-before date: %v", err)
		}
		removed, err := led.Prune(cutoff)
		if err != nil {
			log.Fatalf("prune: %v", err)
		}
		fmt.Printf("removed %d entries processed before %s\n", removed, *pruneBefore)

	case *export != "":
		entries := led.Load(ctx)
		data, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			log.Fatalf("marshal ledger: %v", err)
		}
		if err := os.WriteFile(*export, data, 0o644); err != nil {
			log.Fatalf("write export: %v", err)
		}
		fmt.Printf("exported %d entries to %s\n", len(entries), *export)

	case *list:
		entries := led.Load(ctx)
		type row struct {
			id    string
			entry models.LedgerEntry
		}
		rows := make([]row, 0, len(entries))
		for id, e := range entries {
			rows = append(rows, row{id, e})
		}
		sort.Slice(rows, func(i, j int) bool {
			if rows[i].entry.ProcessedTime != rows[j].entry.ProcessedTime {
				return rows[i].entry.ProcessedTime < rows[j].entry.ProcessedTime
			}
			return rows[i].id < rows[j].id
		})
		for _, r := range rows {
			fmt.Printf("%s  %s  %s\n", r.id, r.entry.ProcessedTime, r.entry.URL)
		}
		fmt.Printf("%d entries\n", len(rows))

	default:
		flag.Usage()
		os.Exit(2)
	}
}
