package internal

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	DEBUG = "Debug"
	INFO  = "Info"
	WARN  = "Warn"
	ERROR = "Error"
)

var (
	logWriter     *os.File
	logWriterOnce sync.Once
	logFileBase   string
	logMu         sync.Mutex
	logLevel      = INFO
)

// InitLogWriter sets up the log file writer. Call once at startup.
func InitLogWriter(logPath string) {
	logWriterOnce.Do(func() {
		logFileBase = logPath
		openLogFile()
	})
}

// SetLogLevel sets the minimum level that gets written.
func SetLogLevel(level string) {
	logMu.Lock()
	logLevel = level
	logMu.Unlock()
}

func openLogFile() {
	if logWriter != nil {
		logWriter.Close()
	}
	f, err := os.OpenFile(logFileBase, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err == nil {
		logWriter = f
	}
}

// Logf writes a leveled, component-tagged log line to stdout and the log file.
func Logf(level, component, message string, args ...interface{}) {
	if !shouldLog(level) {
		return
	}
	msg := fmt.Sprintf(message, args...)
	now := time.Now()
	timestamp := now.Format("2006-01-02 15:04:05")
	ms := now.Nanosecond() / 1e8 // tenths of a second
	logLine := fmt.Sprintf("%s.%d|%s|%s|%s\n", timestamp, ms, level, component, msg)
	fmt.Fprint(os.Stdout, logLine)
	logMu.Lock()
	defer logMu.Unlock()
	if logWriter == nil {
		return
	}
	logWriter.Write([]byte(logLine))
	logWriter.Sync()
	fi, err := os.Stat(logFileBase)
	if err == nil && fi.Size() > 1024*1024 {
		rotateLogFile()
	}
}

// rotateLogFile shifts imvid.txt to imvid-1.txt, imvid-1.txt to imvid-2.txt, etc.
func rotateLogFile() {
	logWriter.Close()
	ext := filepath.Ext(logFileBase)
	base := logFileBase[:len(logFileBase)-len(ext)]
	files, _ := filepath.Glob(fmt.Sprintf("%s-*%s", base, ext))
	type rotated struct {
		path string
		num  int
	}
	var olds []rotated
	for _, f := range files {
		var n int
		fmt.Sscanf(f, base+"-%d"+ext, &n)
		if n > 0 {
			olds = append(olds, rotated{f, n})
		}
	}
	for i := len(olds) - 1; i >= 0; i-- {
		os.Rename(olds[i].path, fmt.Sprintf("%s-%d%s", base, olds[i].num+1, ext))
	}
	os.Rename(logFileBase, fmt.Sprintf("%s-1%s", base, ext))
	openLogFile()
}

// CheckErrLog logs the error with context and returns it for propagation.
func CheckErrLog(level, component, context string, err error) error {
	if err != nil {
		Logf(level, component, "%s: %v", context, err)
	}
	return err
}

func shouldLog(level string) bool {
	levels := map[string]int{DEBUG: 1, INFO: 2, WARN: 3, ERROR: 4}
	logMu.Lock()
	cur := levels[logLevel]
	logMu.Unlock()
	return levels[level] >= cur
}
