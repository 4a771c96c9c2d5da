// Package config builds the registry options. Values are applied in
// increasing priority: defaults, JSON config file, command-line flags and
// environment variables. A .env file, when present, is loaded into the
// environment first without overriding variables that are already set.
package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// S3Options configures the object storage used for profile images.
type S3Options struct {
	Endpoint        string `json:"endpoint" env:"ENDPOINT"`
	Region          string `json:"region" env:"REGION"`
	Bucket          string `json:"bucket" env:"BUCKET"`
	Prefix          string `json:"prefix" env:"PREFIX"`
	AccessKeyID     string `json:"access_key_id" env:"ACCESS_KEY_ID"`
	SecretAccessKey string `json:"secret_access_key" env:"SECRET_ACCESS_KEY"`
}

// Options holds the configuration values for the application.
type Options struct {
	// Address is the server listening address (ip:port).
	Address string `json:"server_address" env:"SERVER_ADDRESS"`

	// FilePath is the users document on disk. Ignored when DatabaseDSN is set.
	FilePath string `json:"file_storage_path" env:"FILE_STORAGE_PATH"`

	// UploadDir holds profile images unless an S3 bucket is configured.
	UploadDir string `json:"upload_dir" env:"UPLOAD_DIR"`

	// DatabaseDSN switches the users document to PostgreSQL.
	DatabaseDSN string `json:"database_dsn" env:"DATABASE_DSN"`

	S3 S3Options `json:"s3" envPrefix:"S3_"`

	// CORSOrigins lists allowed browser origins. Empty allows any.
	CORSOrigins []string `json:"cors_origins" env:"CORS_ORIGINS" envSeparator:","`

	// TrustedSubnet is the CIDR allowed to call internal routes.
	TrustedSubnet string `json:"trusted_subnet" env:"TRUSTED_SUBNET"`

	LogLevel string `json:"log_level" env:"LOG_LEVEL"`

	// EnablePprof starts the profiler on localhost:6060.
	EnablePprof bool `json:"enable_pprof" env:"ENABLE_PPROF"`

	// EnableHTTPS serves TLS with autocert certificates.
	EnableHTTPS bool `json:"enable_https" env:"ENABLE_HTTPS"`

	// Config is the path of the JSON config file.
	Config string `json:"-" env:"CONFIG"`
}

// dotenvPath is the optional env file read before parsing.
var dotenvPath = ".env"

func defaults() Options {
	return Options{
		Address:   "localhost:8080",
		FilePath:  "users.json",
		UploadDir: "uploads",
		LogLevel:  "info",
	}
}

// Parse builds the options from args (without the program name) and the
// process environment.
func Parse(args []string) (*Options, error) {
	if err := godotenv.Load(dotenvPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", dotenvPath, err)
	}

	opts := defaults()
	var origins string

	fset := flag.NewFlagSet("registry", flag.ContinueOnError)
	fset.StringVar(&opts.Address, "a", opts.Address, "run on ip:port server")
	fset.StringVar(&opts.FilePath, "f", opts.FilePath, "path to users document")
	fset.StringVar(&opts.UploadDir, "u", opts.UploadDir, "directory for profile images")
	fset.StringVar(&opts.DatabaseDSN, "d", opts.DatabaseDSN, "db address")
	fset.StringVar(&opts.S3.Bucket, "b", opts.S3.Bucket, "s3 bucket for profile images")
	fset.StringVar(&origins, "o", "", "comma separated CORS origins")
	fset.StringVar(&opts.TrustedSubnet, "t", opts.TrustedSubnet, "trusted subnet CIDR")
	fset.StringVar(&opts.LogLevel, "l", opts.LogLevel, "log level")
	fset.BoolVar(&opts.EnablePprof, "p", opts.EnablePprof, "enable pprof")
	fset.BoolVar(&opts.EnableHTTPS, "s", opts.EnableHTTPS, "enable https")
	fset.StringVar(&opts.Config, "c", opts.Config, "path to JSON config file")

	if err := fset.Parse(args); err != nil {
		return nil, err
	}

	set := make(map[string]bool)
	fset.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if set["o"] {
		opts.CORSOrigins = splitList(origins)
	}

	cfgPath := opts.Config
	if v, ok := os.LookupEnv("CONFIG"); ok && v != "" {
		cfgPath = v
	}
	if cfgPath != "" {
		file, err := readFile(cfgPath)
		if err != nil {
			return nil, err
		}
		merge(&opts, file, set)
	}

	if err := env.Parse(&opts); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	return &opts, nil
}

func readFile(p string) (*Options, error) {
	b, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", p, err)
	}

	var o Options
	if err := json.Unmarshal(b, &o); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", p, err)
	}
	return &o, nil
}

// merge copies the values present in the config file that were not given
// on the command line.
func merge(dst *Options, file *Options, set map[string]bool) {
	str := func(flagName string, d *string, v string) {
		if v != "" && !set[flagName] {
			*d = v
		}
	}
	boolean := func(flagName string, d *bool, v bool) {
		if v && !set[flagName] {
			*d = v
		}
	}

	str("a", &dst.Address, file.Address)
	str("f", &dst.FilePath, file.FilePath)
	str("u", &dst.UploadDir, file.UploadDir)
	str("d", &dst.DatabaseDSN, file.DatabaseDSN)
	str("b", &dst.S3.Bucket, file.S3.Bucket)
	str("t", &dst.TrustedSubnet, file.TrustedSubnet)
	str("l", &dst.LogLevel, file.LogLevel)
	boolean("p", &dst.EnablePprof, file.EnablePprof)
	boolean("s", &dst.EnableHTTPS, file.EnableHTTPS)

	str("", &dst.S3.Endpoint, file.S3.Endpoint)
	str("", &dst.S3.Region, file.S3.Region)
	str("", &dst.S3.Prefix, file.S3.Prefix)
	str("", &dst.S3.AccessKeyID, file.S3.AccessKeyID)
	str("", &dst.S3.SecretAccessKey, file.S3.SecretAccessKey)

	if len(file.CORSOrigins) > 0 && !set["o"] {
		dst.CORSOrigins = file.CORSOrigins
	}
}

func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
