package utils

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/nci/gstream/region"
	"gopkg.in/yaml.v2"
)

var EtcDir = "."

const (
	DefaultAvailableRAM = 256 // MB
	DefaultRecvMsgSize  = 10 * 1024 * 1024
	RAMHintEnv          = "GSTREAM_MAX_RAM_HINT"
	DefaultStatsTable   = "gstream_splits"
)

type ServiceConfig struct {
	WorkerNodes     []string `json:"worker_nodes" yaml:"worker_nodes"`
	MemcacheAddress string   `json:"memcache_address" yaml:"memcache_address"`
	PostgresDSN     string   `json:"postgres_dsn" yaml:"postgres_dsn"`
	StatsTable      string   `json:"stats_table" yaml:"stats_table"`
}

// StreamingConfig selects a splitter and a split count the way the
// streaming:* options of an extended output filename do.
type StreamingConfig struct {
	Type         string  `json:"type" yaml:"type"`
	SizeMode     string  `json:"size_mode" yaml:"size_mode"`
	SizeValue    int     `json:"size_value" yaml:"size_value"`
	AvailableRAM int     `json:"available_ram" yaml:"available_ram"`
	Bias         float64 `json:"bias" yaml:"bias"`
}

// RAM returns the memory budget in MB for one split: the configured value,
// else the GSTREAM_MAX_RAM_HINT environment variable, else 256.
func (cfg StreamingConfig) RAM() int {
	if cfg.AvailableRAM > 0 {
		return cfg.AvailableRAM
	}
	if env := strings.TrimSpace(os.Getenv(RAMHintEnv)); len(env) > 0 {
		v, err := strconv.Atoi(env)
		if err == nil && v > 0 {
			return v
		}
		log.Printf("config: invalid %s=%q, using %d MB", RAMHintEnv, env, DefaultAvailableRAM)
	}
	return DefaultAvailableRAM
}

// SourceConfig describes where the pixels of a job come from.
//
// Type is one of constant, expr, raw or grpc. Origin and Size give the
// full region for every type but raw, which reads it from the file header.
type SourceConfig struct {
	Type               string  `json:"type" yaml:"type"`
	Origin             []int   `json:"origin" yaml:"origin"`
	Size               []int   `json:"size" yaml:"size"`
	Value              float32 `json:"value" yaml:"value"`
	Expression         string  `json:"expression" yaml:"expression"`
	Path               string  `json:"path" yaml:"path"`
	NoData             float64 `json:"nodata" yaml:"nodata"`
	TileHint           []int   `json:"tile_hint" yaml:"tile_hint"`
	Concurrency        int     `json:"concurrency" yaml:"concurrency"`
	MaxGrpcRecvMsgSize int     `json:"max_grpc_recv_msg_size" yaml:"max_grpc_recv_msg_size"`
}

func (s *SourceConfig) Region() (region.Region, error) {
	origin := s.Origin
	if len(origin) == 0 {
		origin = make([]int, len(s.Size))
	}
	return region.MakeRegion(origin, s.Size)
}

// Job is one streamed computation: a source, an output and how to split.
type Job struct {
	Name      string          `json:"name" yaml:"name"`
	Source    SourceConfig    `json:"source" yaml:"source"`
	Output    string          `json:"output" yaml:"output"`
	Palette   *Palette        `json:"palette" yaml:"palette"`
	Streaming StreamingConfig `json:"streaming" yaml:"streaming"`
	Shard     int             `json:"shard" yaml:"shard"`
	NumShards int             `json:"num_shards" yaml:"num_shards"`
}

type Config struct {
	ServiceConfig ServiceConfig `json:"service_config" yaml:"service_config"`
	Jobs          []Job         `json:"jobs" yaml:"jobs"`
}

var configFileNames = map[string]bool{"config.json": true, "config.yaml": true, "config.yml": true}

func LoadAllConfigFiles(rootDir string) (map[string]*Config, error) {
	configMap := make(map[string]*Config)
	err := filepath.Walk(rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if !info.IsDir() && configFileNames[info.Name()] {
			relPath, _ := filepath.Rel(rootDir, filepath.Dir(path))
			log.Printf("Loading config file: %s under namespace: %s\n", path, relPath)

			config := &Config{}
			e := config.LoadConfigFile(path)
			if e != nil {
				return e
			}
			if _, found := configMap[relPath]; found {
				return fmt.Errorf("more than one config file under namespace %s", relPath)
			}
			configMap[relPath] = config
		}
		return nil
	})

	if err == nil && len(configMap) == 0 {
		err = fmt.Errorf("No config file found")
	}

	return configMap, err
}

// LoadConfigFile reads a JSON or YAML config document, chosen by the file
// extension, and validates the jobs it declares.
func (config *Config) LoadConfigFile(configFile string) error {
	*config = Config{}
	cfg, err := os.ReadFile(configFile)
	if err != nil {
		return fmt.Errorf("Error while reading config file: %s. Error: %v", configFile, err)
	}

	switch strings.ToLower(filepath.Ext(configFile)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(cfg, config)
		if err != nil {
			return fmt.Errorf("Error at YAML parsing config document: %s. Error: %v", configFile, err)
		}
	default:
		err = json.Unmarshal(cfg, config)
		if err != nil {
			return fmt.Errorf("Error at JSON parsing config document: %s. Error: %v", configFile, err)
		}
	}

	if err := config.Validate(); err != nil {
		return fmt.Errorf("%s: %w", configFile, err)
	}
	return nil
}

func (config *Config) Validate() error {
	if len(config.ServiceConfig.StatsTable) == 0 {
		config.ServiceConfig.StatsTable = DefaultStatsTable
	}
	for i := range config.Jobs {
		job := &config.Jobs[i]
		if len(job.Name) == 0 {
			job.Name = fmt.Sprintf("job%d", i)
		}
		if len(job.Output) == 0 {
			return fmt.Errorf("%w: job %s has no output", region.ErrInvalidArgument, job.Name)
		}

		switch strings.ToLower(job.Source.Type) {
		case "constant", "expr", "grpc":
			if _, err := job.Source.Region(); err != nil {
				return fmt.Errorf("job %s: %w", job.Name, err)
			}
			if len(job.Source.Size) == 0 {
				return fmt.Errorf("%w: job %s has no source size", region.ErrInvalidArgument, job.Name)
			}
		case "raw":
			if len(job.Source.Path) == 0 {
				return fmt.Errorf("%w: job %s has no raw source path", region.ErrInvalidArgument, job.Name)
			}
		default:
			return fmt.Errorf("%w: job %s has unknown source type %q", region.ErrInvalidArgument, job.Name, job.Source.Type)
		}

		if job.Source.MaxGrpcRecvMsgSize <= 0 {
			job.Source.MaxGrpcRecvMsgSize = DefaultRecvMsgSize
		}
		if job.NumShards > 1 && (job.Shard < 0 || job.Shard >= job.NumShards) {
			return fmt.Errorf("%w: job %s shard %d of %d", region.ErrInvalidArgument, job.Name, job.Shard, job.NumShards)
		}
		if job.Palette != nil && job.Palette.Interpolate && len(job.Palette.Colours) < 2 {
			return fmt.Errorf("The colour palette must contain at least 2 colours.")
		}
	}
	return nil
}

// DumpConfig renders the config map as indented JSON.
func DumpConfig(configs map[string]*Config) (string, error) {
	out, err := json.MarshalIndent(configs, "", "  ")
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// WatchConfig reloads configMap from EtcDir on SIGHUP. The returned channel
// receives a value after every successful reload.
func WatchConfig(infoLog, errLog *log.Logger, configMap *map[string]*Config) <-chan struct{} {
	// Catch SIGHUP to automatically reload cache
	sighup := make(chan os.Signal, 1)
	signal.Notify(sighup, syscall.SIGHUP)
	reloaded := make(chan struct{}, 1)
	go func() {
		for range sighup {
			infoLog.Println("Caught SIGHUP, reloading config...")
			confMap, err := LoadAllConfigFiles(EtcDir)
			if err != nil {
				errLog.Printf("Error in loading config files: %v\n", err)
				continue
			}

			for k := range *configMap {
				delete(*configMap, k)
			}

			for k := range confMap {
				(*configMap)[k] = confMap[k]
			}

			select {
			case reloaded <- struct{}{}:
			default:
			}
		}
	}()
	return reloaded
}
