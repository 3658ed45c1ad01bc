package logx

import (
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorBlue   = "\033[34m"
)

const (
	defaultLogFile   = "./logs/powchain.log"
	defaultMaxSizeMB = 100
	defaultMaxAge    = 7
)

var (
	lumberjackLogger = &lumberjack.Logger{
		Filename: getLogFilename(),
		MaxSize:  getMaxSize(), // megabytes
		MaxAge:   getMaxAge(),  // days
	}

	mu     sync.RWMutex
	logger = log.New(lumberjackLogger, "", log.Ldate|log.Ltime|log.Lmicroseconds)
)

func getLogFilename() string {
	if logFile := os.Getenv("LOGFILE"); logFile != "" {
		return "./logs/" + logFile
	}
	return defaultLogFile
}

func getMaxSize() int {
	return envInt("LOGFILE_MAX_SIZE_MB", defaultMaxSizeMB)
}

func getMaxAge() int {
	return envInt("LOGFILE_MAX_AGE_DAYS", defaultMaxAge)
}

func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		fmt.Fprintf(os.Stderr, "invalid value %q for %s, using %d\n", raw, name, fallback)
		return fallback
	}
	return v
}

// SetOutput redirects all log output, e.g. to stderr or to a test buffer.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	logger.SetOutput(w)
}

// Tee writes to the rotating log file and w at the same time.
func Tee(w io.Writer) {
	SetOutput(io.MultiWriter(lumberjackLogger, w))
}

// Close flushes and closes the rotating log file.
func Close() error {
	return lumberjackLogger.Close()
}

func write(level, color, category string, content ...interface{}) {
	message := fmt.Sprint(content...)
	coloredCategory := fmt.Sprintf("%s[%s][%s]%s", color, level, category, ColorReset)
	mu.RLock()
	defer mu.RUnlock()
	logger.Printf("%s: %s", coloredCategory, message)
}

func Info(category string, content ...interface{}) {
	write("INFO", ColorGreen, category, content...)
}

func Error(category string, content ...interface{}) {
	write("ERROR", ColorRed, category, content...)
}

func Warn(category string, content ...interface{}) {
	write("WARN", ColorYellow, category, content...)
}

func Debug(category string, content ...interface{}) {
	write("DEBUG", ColorBlue, category, content...)
}

// Errorf logs an error message and returns a formatted error
func Errorf(format string, args ...interface{}) error {
	err := fmt.Errorf(format, args...)
	Error("ERROR", err.Error())
	return err
}
