package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/stupiduntilnot/kontempo/internal/portfolio"
	"github.com/stupiduntilnot/kontempo/internal/record"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("[summarize] ")

	var (
		path    string
		revenue string
	)
	flag.StringVar(&path, "f", "-", "dataset JSON file ('-' reads stdin)")
	flag.StringVar(&revenue, "revenue", envOrDefault("REVENUE_POLICY", string(portfolio.RevenueAllPayouts)), "revenue policy: all or completed")
	flag.Parse()

	policy, err := portfolio.ParseRevenuePolicy(revenue)
	if err != nil {
		log.Fatalf("%v", err)
	}

	in := os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			log.Fatalf("open dataset: %v", err)
		}
		defer f.Close()
		in = f
	}

	if err := run(in, os.Stdout, policy); err != nil {
		log.Fatalf("%v", err)
	}
}

// run reads one dataset and writes its summary. Only unreadable input is an
// error; bad records show up in the summary itself.
func run(r io.Reader, w io.Writer, policy portfolio.RevenuePolicy) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read dataset: %w", err)
	}
	var ds record.Dataset
	if err := json.Unmarshal(data, &ds); err != nil {
		return fmt.Errorf("decode dataset: %w", err)
	}
	_, err = fmt.Fprint(w, portfolio.Summarize(ds, portfolio.Options{Revenue: policy}))
	return err
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
