package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/pharmyrus/pharmyrus/internal/pipeline"
	"github.com/pharmyrus/pharmyrus/internal/report"
)

func main() {
	inputPath := flag.String("input", "", "Path to saved pipeline report JSON")
	outputPath := flag.String("output", "", "Path to write rebuilt markdown (defaults to stdout)")
	pdfPath := flag.String("pdf", "", "Optional path to render the report as PDF")
	flag.Parse()

	if *inputPath == "" {
		log.Fatal("missing required -input")
	}

	in, err := os.ReadFile(*inputPath)
	if err != nil {
		log.Fatalf("read input: %v", err)
	}

	var result pipeline.Report
	if err := json.Unmarshal(in, &result); err != nil {
		log.Fatalf("decode input JSON: %v", err)
	}

	markdown := report.BuildReportMarkdown(result)
	if err := writeMarkdown(*outputPath, markdown); err != nil {
		log.Fatalf("write markdown: %v", err)
	}
	if *pdfPath != "" {
		pdf, err := report.NewPDFRenderer().Render(context.Background(), markdown)
		if err != nil {
			log.Fatalf("render pdf: %v", err)
		}
		if err := os.WriteFile(*pdfPath, pdf, 0o644); err != nil {
			log.Fatalf("write pdf: %v", err)
		}
	}
}

func writeMarkdown(outputPath, markdown string) error {
	if outputPath == "" {
		_, err := fmt.Print(markdown)
		return err
	}
	return os.WriteFile(outputPath, []byte(markdown), 0o644)
}
