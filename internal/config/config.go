package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds application level configuration aggregated from env/config files.
type Config struct {
	Server struct {
		Addr string
	}
	Download struct {
		DataDir    string // save root for job payloads
		TorrentDir string // retained descriptor artifacts
		TempDir    string // cached download archives
	}
	Engine struct {
		ListenPort         int
		MaxConnsPerJob     int
		Seed               bool
		DisableDHT         bool
		PeerTurnoverCutoff int
	}
	Monitor struct {
		IntervalMS int
	}
}

// Load reads configuration from environment variables and optional config files.
func Load() (Config, error) {
	loadDotEnv()

	v := viper.New()
	v.SetEnvPrefix("TORRENTFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", "0.0.0.0:8080")
	v.SetDefault("download.datadir", "data/downloads")
	v.SetDefault("download.torrentdir", "data/torrents")
	v.SetDefault("download.tempdir", "data/temp")
	v.SetDefault("engine.listenport", 6881)
	v.SetDefault("engine.maxconnsperjob", 300)
	v.SetDefault("engine.seed", false)
	v.SetDefault("engine.disabledht", false)
	v.SetDefault("engine.peerturnovercutoff", 90)
	v.SetDefault("monitor.intervalms", 500)

	v.SetConfigName("config")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // optional file

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

func loadDotEnv() {
	file, err := os.Open(".env")
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		partsIndex := strings.Index(line, "=")
		if partsIndex <= 0 {
			continue
		}

		key := strings.TrimSpace(line[:partsIndex])
		value := strings.TrimSpace(line[partsIndex+1:])
		value = strings.Trim(value, `"'`)
		if key == "" {
			continue
		}

		if _, exists := os.LookupEnv(key); !exists {
			_ = os.Setenv(key, value)
		}
	}
}
