// Command inspect normalizes a saved getWthrDataList JSON response offline
// and writes the resulting rows as CSV. A summary of the derived categories
// is printed to stderr.
//
// Usage:
//
//	go run ./cmd/inspect -in testdata/2024.json -updated-at "2024-06-02 09:00:00" > rows.csv
//	curl -s "$URL" | go run ./cmd/inspect -raw-text
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"time"
	_ "time/tzdata"

	"github.com/OIYJJ/weather-data-automation/internal/adapter/kma"
	"github.com/OIYJJ/weather-data-automation/internal/domain"
	"github.com/jonboulle/clockwork"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	fs.SetOutput(stderr)
	in := fs.String("in", "-", "response JSON file, - for stdin")
	rawText := fs.Bool("raw-text", false, "store the phenomenon text without cleaning")
	header := fs.Bool("header", true, "write a header row")
	tz := fs.String("tz", "Asia/Seoul", "time zone of the updated_at column")
	updatedAt := fs.String("updated-at", "", "fixed updated_at value ("+domain.TimestampLayout+") for reproducible output")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	loc, err := time.LoadLocation(*tz)
	if err != nil {
		fmt.Fprintf(stderr, "invalid -tz: %v\n", err)
		return 2
	}

	if *updatedAt != "" {
		at, err := time.ParseInLocation(domain.TimestampLayout, *updatedAt, loc)
		if err != nil {
			fmt.Fprintf(stderr, "invalid -updated-at: %v\n", err)
			return 2
		}
		domain.SetClock(clockwork.NewFakeClockAt(at))
		defer domain.SetClock(nil)
	}

	src := stdin
	if *in != "-" {
		f, err := os.Open(*in)
		if err != nil {
			fmt.Fprintf(stderr, "open input: %v\n", err)
			return 1
		}
		defer f.Close()
		src = f
	}

	items, err := kma.DecodeResponse(src)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 1
	}

	opts := domain.Options{ApplyTextCleaning: !*rawText, Location: loc}
	records := make([]domain.NormalizedRecord, len(items))
	for i := range items {
		records[i] = domain.Normalize(items[i], opts)
	}

	if err := writeCSV(stdout, records, *header); err != nil {
		fmt.Fprintf(stderr, "write csv: %v\n", err)
		return 1
	}
	printSummary(stderr, records)
	return 0
}

func writeCSV(w io.Writer, records []domain.NormalizedRecord, header bool) error {
	cw := csv.NewWriter(w)
	if header {
		if err := cw.Write(domain.Columns); err != nil {
			return err
		}
	}
	for i := range records {
		if err := cw.Write(records[i].Strings()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// printSummary reports row count, date span and category frequencies.
func printSummary(w io.Writer, records []domain.NormalizedRecord) {
	fmt.Fprintf(w, "rows: %d\n", len(records))
	if len(records) == 0 {
		return
	}
	fmt.Fprintf(w, "dates: %s .. %s\n", records[0].Date, records[len(records)-1].Date)

	precip := map[string]int{}
	primary := map[string]int{}
	missingDI := 0
	for i := range records {
		precip[string(records[i].PrecipType)]++
		primary[string(records[i].PrimaryTag)]++
		if !records[i].DiscomfortIndex.Valid {
			missingDI++
		}
	}
	fmt.Fprintf(w, "precip_type: %s\n", formatCounts(precip))
	fmt.Fprintf(w, "primary_tag: %s\n", formatCounts(primary))
	fmt.Fprintf(w, "missing discomfort_index: %d\n", missingDI)
}

func formatCounts(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := ""
	for i, k := range keys {
		if i > 0 {
			out += " "
		}
		out += fmt.Sprintf("%s=%d", k, counts[k])
	}
	return out
}
