package main

import (
	"flag"
	"log/slog"
	"os"

	"github.com/brensch/modlog/config"
	"gopkg.in/yaml.v3"
)

// Writes a config file with every key present and empty values, as a starting
// point for /etc/modlog/config.yaml.
func main() {
	out := flag.String("out", "./config.example.yaml", "where to write the blank config")
	flag.Parse()

	slog.Info("generating empty config", "out", *out)
	var emptyConf config.AppConfig

	confYAML, err := yaml.Marshal(emptyConf)
	if err != nil {
		slog.Error("failed to marshal empty yaml", "err", err)
		os.Exit(1)
	}

	err = os.WriteFile(*out, confYAML, 0644)
	if err != nil {
		slog.Error("failed to write blank conf to file", "err", err)
		os.Exit(1)
	}
}
