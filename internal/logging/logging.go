package logging

import (
	"io"
	"os"
	"strings"

	"learnflow/internal/config"

	"github.com/natefinch/lumberjack"
	log "github.com/sirupsen/logrus"
)

// Init configures the process-wide logrus logger from cfg.
func Init(cfg config.Config) {
	level, err := log.ParseLevel(strings.TrimSpace(cfg.LogLevel))
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)

	if strings.EqualFold(cfg.LogFormat, "json") {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	var out io.Writer = os.Stderr
	if cfg.LogFile != "" {
		out = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    50,
			MaxBackups: 5,
			MaxAge:     28,
			Compress:   true,
		})
	}
	log.SetOutput(out)
}

// ForProject returns an entry tagged with the project id.
func ForProject(projectID string) *log.Entry {
	return log.WithField("project_id", projectID)
}
