package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"dconnresample/pkg/config"
	"dconnresample/pkg/job"
	"dconnresample/pkg/logging"
	"dconnresample/pkg/matio"
	"dconnresample/pkg/resample"
)

func main() {
	// Parse command line arguments
	configPath := flag.String("config", "dconnresample.yaml", "Configuration file (YAML, or TOML with a .toml extension)")
	jobPath := flag.String("job", "", "Job file describing the matrix, spaces and resampling inputs")
	numCores := flag.Int("cores", 0, "Number of CPU cores to use (default: from config)")
	verbose := flag.Bool("verbose", false, "Enable debug logging")
	validateOnly := flag.Bool("validate", false, "Check the job and exit without reading the matrix")
	writeConfig := flag.String("write-config", "", "Write a default configuration file to this path and exit")
	flag.Parse()

	if *writeConfig != "" {
		if err := config.CreateDefaultConfigFile(*writeConfig); err != nil {
			log.Fatalf("Failed to write config: %v", err)
		}
		fmt.Printf("Default configuration written to: %s\n", *writeConfig)
		return
	}

	// Validate inputs
	if *jobPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *numCores > 0 {
		cfg.Processing.NumCores = *numCores
	}
	if *verbose {
		cfg.Logging.Verbose = true
	}
	logger := logging.New(&cfg.Logging)
	defer logger.Shutdown()

	fmt.Println("================================")
	fmt.Println("DENSE CONNECTIVITY RESAMPLING")
	fmt.Println("================================")

	j, err := job.Load(*jobPath)
	if err != nil {
		log.Fatalf("Failed to load job: %v", err)
	}
	spaces, err := j.BuildSpaces()
	if err != nil {
		log.Fatalf("Failed to build spaces: %v", err)
	}
	rowConfigs, colConfigs, err := j.BuildConfigs(cfg)
	if err != nil {
		log.Fatalf("Failed to read resampling inputs: %v", err)
	}
	opts := cfg.Options(logger, func(completed, total int, message string) {
		fmt.Printf("[%d/%d] %s\n", completed, total, message)
	})

	if *validateOnly {
		colErr := resample.Validate(spaces.Columns, spaces.ColumnTemplate, resample.Column, colConfigs, opts)
		rowErr := resample.Validate(spaces.Rows, spaces.RowTemplate, resample.Row, rowConfigs, opts)
		if err := errors.Join(colErr, rowErr); err != nil {
			log.Fatalf("Job is invalid:\n%v", err)
		}
		fmt.Println("Job is valid.")
		return
	}

	fmt.Printf("Reading matrix from: %s\n", j.Path(j.Input))
	data, err := matio.ReadDense(j.Path(j.Input))
	if err != nil {
		log.Fatalf("Failed to read matrix: %v", err)
	}
	m, err := resample.NewMatrix(data, spaces.Rows, spaces.Columns)
	if err != nil {
		log.Fatalf("Matrix does not match the source spaces: %v", err)
	}

	fmt.Printf("Resampling with %d cores...\n", cfg.Processing.NumCores)
	startTime := time.Now()
	res, err := resample.ResampleBothAxes(m, spaces.RowTemplate, spaces.ColumnTemplate, rowConfigs, colConfigs, opts)
	if err != nil {
		log.Fatalf("Resampling failed: %v", err)
	}
	processingTime := time.Since(startTime)

	outputPath := j.Path(j.Output)
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}
	if err := matio.WriteDense(outputPath, res.Data); err != nil {
		log.Fatalf("Failed to write matrix: %v", err)
	}
	if j.Stats != "" {
		if err := job.WriteStats(j.Path(j.Stats), res); err != nil {
			log.Printf("Warning: Failed to write stats: %v", err)
		}
	}

	r, c := res.Data.Dims()
	fmt.Printf("\nResampling completed successfully in %.2f seconds!\n", processingTime.Seconds())
	fmt.Printf("Output %dx%d matrix (%s) saved to: %s\n\n", r, c, humanize.Bytes(uint64(8*r*c)), outputPath)

	for _, pass := range []struct {
		name  string
		stats []resample.StructureStats
	}{
		{"Column pass", res.ColumnStats},
		{"Row pass", res.RowStats},
	} {
		fmt.Printf("%s:\n", pass.name)
		for _, st := range pass.stats {
			fmt.Printf("- %-24s %-18s %8s elements, %d dilated, %d unfilled\n",
				st.Structure, st.Strategy, humanize.Comma(int64(st.Elements)), st.Dilated, st.Unfilled)
		}
	}
}
