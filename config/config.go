package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/rwe-net/lobby-server/globals"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	defaultAddr            = "localhost:5000"
	defaultMaxRoomCapacity = 10
	defaultAdvertiseCron   = "@every 1m"
)

// Config is the global configuration object which is filled via the
// configuration file, environment (LSLOBBY_ prefix) and command-line flags.
type Config struct {
	ServerConfig    ServerConfig    `mapstructure:"server"`
	DirectoryConfig DirectoryConfig `mapstructure:"directory"`
	LogLevel        string          `mapstructure:"log_level"`
}

// ServerConfig configures the websocket listener. ReverseProxy makes the
// server take the client address from x-forwarded-for instead of the socket.
type ServerConfig struct {
	Addr            string `mapstructure:"addr"`
	SSLCert         string `mapstructure:"ssl_cert"`
	SSLKey          string `mapstructure:"ssl_key"`
	ReverseProxy    bool   `mapstructure:"reverse_proxy"`
	MaxRoomCapacity int    `mapstructure:"max_room_capacity"`
}

// DirectoryConfig configures the master directory service. Filter is an expr
// expression over the advertisement environment (Id, Description, Players,
// MaxPlayers); games not matching it are not advertised. AdvertiseCron is the
// schedule on which each live room re-publishes its directory entry.
type DirectoryConfig struct {
	Filter        string `mapstructure:"filter"`
	AdvertiseCron string `mapstructure:"advertise_cron"`
}

func GetFlagSet() *pflag.FlagSet {
	flagSet := pflag.NewFlagSet("configuration", pflag.ContinueOnError)
	flagSet.String("server.addr", defaultAddr, "ws service address (including port)")
	flagSet.String("server.ssl-cert", "", "SSL cert for websocket (optional)")
	flagSet.String("server.ssl-key", "", "SSL key for websocket (optional)")
	flagSet.Bool("server.reverse-proxy", false, "trust x-forwarded-for for client addresses")
	return flagSet
}

// wordSepNormalizeFunc allows for normalization of the flag names (which use - as a separator)
func wordSepNormalizeFunc(f *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.Replace(name, "-", "_", -1))
}

// ReadConfiguration reads and parses the configuration located at configPath,
// which can either point to a single TOML file or to a directory, in which
// case all *.toml files in this directory are concatenated. It returns a
// Config object.
func ReadConfiguration(configPath string, flagSet *pflag.FlagSet) (*Config, error) {
	cfg := Config{}
	flagSet.SetNormalizeFunc(wordSepNormalizeFunc)
	viper.SetDefault("server.addr", defaultAddr)
	viper.SetDefault("server.max_room_capacity", defaultMaxRoomCapacity)
	viper.SetDefault("directory.advertise_cron", defaultAdvertiseCron)
	viper.SetDefault("log_level", "INFO")
	err := viper.BindPFlags(flagSet)
	if err != nil {
		globals.AppLogger.Error("could not bind flags (ignored)", "error", err)
	}
	viper.SetEnvPrefix("LSLOBBY")
	viper.AutomaticEnv()
	if configPath != "" {
		fi, err := os.Stat(configPath)
		if err != nil {
			return nil, err
		}
		contents := make([]byte, 0)
		files := []string{configPath}
		if fi.IsDir() {
			files, err = filepath.Glob(filepath.Join(configPath, "*.toml"))
			if err != nil {
				return nil, err
			}
		}
		for _, configFile := range files {
			fileContents, err := os.ReadFile(configFile)
			if err != nil {
				return nil, err
			}
			contents = append(contents, fileContents...)
			contents = append(contents, '\n')
		}
		viper.SetConfigType("toml")
		err = viper.ReadConfig(bytes.NewBuffer(contents))
		if err != nil {
			globals.AppLogger.Error("could not read config:", "error", err)
		}
	}
	err = viper.Unmarshal(&cfg)
	if err != nil {
		globals.AppLogger.Error("could not unmarshal config:", "error", err)
	}

	globals.AppLogger.Info("config", "cfg", cfg)
	return &cfg, nil
}
