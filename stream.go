package main

/* stream runs out-of-core raster jobs. Each job pulls its source region
   one sub-region at a time through a splitter and pushes the pieces to
   the job's output: a raw float32 raster, a stitched PNG or statistics
   only. Jobs come from config.json/config.yaml files under -conf, or
   from the command line flags when no config is given.
   Large jobs can be spread over the region service workers listed in
   service_config.worker_nodes with a grpc source, or over several
   processes with -shard/-num_shards. */

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"

	"github.com/nci/gstream/metrics"
	"github.com/nci/gstream/region"
	"github.com/nci/gstream/utils"
)

var (
	confPath       = flag.String("conf", "", "Job config file, or a directory searched for config.json/config.yaml.")
	dataDir        = flag.String("data_dir", utils.DataDir, "Data directory holding the report templates.")
	logDir         = flag.String("log_dir", "", "Metrics log directory, - for stdout.")
	validateConfig = flag.Bool("check_conf", false, "Validate job config files.")
	dumpConfig     = flag.Bool("dump_conf", false, "Dump job config files.")
	watch          = flag.Bool("watch", false, "Keep running and re-run the jobs when SIGHUP reloads the config.")
	verbose        = flag.Bool("v", false, "Verbose mode: log progress and print a report per job.")

	expression = flag.String("expr", "", "Pixel expression over x, y (and z) for a job built from flags.")
	value      = flag.Float64("value", 0, "Constant pixel value when -expr is not given.")
	size       = flag.String("size", "", "Source size of a job built from flags, e.g. 4096x4096.")
	tileHint   = flag.String("tile", "", "Source tile size hint, e.g. 256x256.")
	noData     = flag.Float64("nodata", -1, "Nodata value.")
	output     = flag.String("o", "", "Output: .raw, .png or .stats, optionally followed by ?&streaming:...&box=... options.")
	ramHint    = flag.Int("ram", 0, "Memory budget per split in MB.")
	shard      = flag.Int("shard", 0, "Shard index of this process.")
	numShards  = flag.Int("num_shards", 1, "Number of processes sharing the job.")
	nodes      = flag.String("nodes", "", "Comma separated region service workers; evaluates -expr remotely.")
)

var (
	Error *log.Logger
	Info  *log.Logger
)

var confDir bool

func parseSize(s string) ([]int, error) {
	var out []int
	for _, p := range strings.Split(s, "x") {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("%w: size %q: %v", region.ErrInvalidArgument, s, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// flagConfig builds a single job config from the command line.
func flagConfig() (*utils.Config, error) {
	if len(*size) == 0 {
		return nil, fmt.Errorf("%w: -size is required without -conf", region.ErrInvalidArgument)
	}
	sz, err := parseSize(*size)
	if err != nil {
		return nil, err
	}

	job := utils.Job{
		Name:      "cli",
		Output:    *output,
		Streaming: utils.StreamingConfig{AvailableRAM: *ramHint},
		Shard:     *shard,
		NumShards: *numShards,
		Source: utils.SourceConfig{
			Type:       "constant",
			Size:       sz,
			Value:      float32(*value),
			Expression: *expression,
			NoData:     *noData,
		},
	}
	if len(*tileHint) > 0 {
		if job.Source.TileHint, err = parseSize(*tileHint); err != nil {
			return nil, err
		}
	}

	config := &utils.Config{}
	if len(*expression) > 0 {
		job.Source.Type = "expr"
		if len(*nodes) > 0 {
			job.Source.Type = "grpc"
			config.ServiceConfig.WorkerNodes = strings.Split(*nodes, ",")
		}
	}
	config.Jobs = []utils.Job{job}
	return config, config.Validate()
}

func loadConfigs() (map[string]*utils.Config, error) {
	if len(*confPath) == 0 {
		config, err := flagConfig()
		if err != nil {
			return nil, err
		}
		return map[string]*utils.Config{".": config}, nil
	}

	info, err := os.Stat(*confPath)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		utils.EtcDir = *confPath
		confDir = true
		return utils.LoadAllConfigFiles(*confPath)
	}

	config := &utils.Config{}
	if err := config.LoadConfigFile(*confPath); err != nil {
		return nil, err
	}
	return map[string]*utils.Config{".": config}, nil
}

func newMetricsLogger() metrics.Logger {
	if len(*logDir) == 0 {
		return nil
	}
	if *logDir == "-" {
		return metrics.NewStdoutLogger()
	}

	maxLogFileSize := int64(0)
	if val, ok := os.LookupEnv("GSTREAM_MAX_LOG_FILE_SIZE"); ok {
		valInt, e := strconv.ParseInt(val, 10, 64)
		if e == nil {
			maxLogFileSize = valInt
		} else {
			Error.Printf("invalid GSTREAM_MAX_LOG_FILE_SIZE: %v", e)
		}
	}

	maxLogFiles := -1
	if val, ok := os.LookupEnv("GSTREAM_MAX_LOG_FILES"); ok {
		valInt, e := strconv.ParseInt(val, 10, 32)
		if e == nil {
			maxLogFiles = int(valInt)
		} else {
			Error.Printf("invalid GSTREAM_MAX_LOG_FILES: %v", e)
		}
	}

	return metrics.NewFileLogger(*logDir, maxLogFileSize, maxLogFiles, *verbose)
}

// runAll runs the jobs of every namespace in name order and returns the
// number of failed jobs.
func runAll(ctx context.Context, configMap map[string]*utils.Config, metricsLogger metrics.Logger) int {
	namespaces := make([]string, 0, len(configMap))
	for ns := range configMap {
		namespaces = append(namespaces, ns)
	}
	sort.Strings(namespaces)

	failed := 0
	for _, ns := range namespaces {
		config := configMap[ns]
		runner := &jobRunner{
			Service:       config.ServiceConfig,
			MetricsLogger: metricsLogger,
			Verbose:       *verbose,
			Info:          Info,
			Error:         Error,
		}

		for i := range config.Jobs {
			if ctx.Err() != nil {
				return failed + len(config.Jobs) - i
			}
			job := &config.Jobs[i]
			report, err := runner.Run(ctx, job)
			if err != nil {
				failed++
				Error.Printf("%s/%s: %v", ns, job.Name, err)
			}
			if *verbose {
				out, e := utils.RenderReport(utils.DataDir, report)
				if e != nil {
					Error.Printf("Error in rendering report: %v", e)
					continue
				}
				fmt.Print(out)
			}
		}
	}
	return failed
}

func main() {
	Error = log.New(os.Stderr, "STREAM: ", log.Ldate|log.Ltime|log.Lshortfile)
	Info = log.New(os.Stdout, "STREAM: ", log.Ldate|log.Ltime|log.Lshortfile)

	flag.Parse()
	utils.DataDir = *dataDir

	configMap, err := loadConfigs()
	if err != nil {
		Error.Printf("Error in loading config files: %v\n", err)
		os.Exit(2)
	}

	if *validateConfig {
		os.Exit(0)
	}

	if *dumpConfig {
		configJson, err := utils.DumpConfig(configMap)
		if err != nil {
			Error.Printf("Error in dumping configs: %v\n", err)
		} else {
			log.Print(configJson)
		}
		os.Exit(0)
	}

	metricsLogger := newMetricsLogger()
	if fl, ok := metricsLogger.(*metrics.FileLogger); ok {
		defer fl.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	failed := runAll(ctx, configMap, metricsLogger)

	if *watch && confDir {
		reloaded := utils.WatchConfig(Info, Error, &configMap)
		for {
			Info.Printf("waiting for SIGHUP to re-run jobs")
			select {
			case <-ctx.Done():
				return
			case <-reloaded:
				if n := runAll(ctx, configMap, metricsLogger); n > 0 {
					Error.Printf("%d jobs failed", n)
				}
			}
		}
	}

	if failed > 0 {
		stop()
		if fl, ok := metricsLogger.(*metrics.FileLogger); ok {
			fl.Close()
		}
		os.Exit(1)
	}
}
