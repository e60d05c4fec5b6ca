package logger

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// AsyncFileWriter decouples log emission from disk writes. Lines are handed
// off through a buffered channel and flushed periodically; under pressure it
// drops lines rather than stalling request handlers.
type AsyncFileWriter struct {
	writer  *bufio.Writer
	file    *os.File
	mu      sync.Mutex
	logChan chan []byte
	done    chan struct{}

	errOut     io.Writer
	reportOnce sync.Once
}

func NewAsyncFileWriter(logFile string, bufferSize int) (*AsyncFileWriter, error) {
	file, err := os.OpenFile(filepath.Clean(logFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, err
	}

	aw := &AsyncFileWriter{
		writer:  bufio.NewWriterSize(file, bufferSize),
		file:    file,
		logChan: make(chan []byte, 1000),
		done:    make(chan struct{}),
		errOut:  os.Stderr,
	}
	go aw.processLogs()
	return aw, nil
}

func (aw *AsyncFileWriter) Write(p []byte) (n int, err error) {
	select {
	case aw.logChan <- append([]byte{}, p...):
		return len(p), nil
	default:
		return 0, nil
	}
}

const flushInterval = 2 * time.Second

func (aw *AsyncFileWriter) processLogs() {
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()
	for {
		select {
		case line := <-aw.logChan:
			aw.mu.Lock()
			_, err := aw.writer.Write(line)
			aw.mu.Unlock()
			if err != nil {
				aw.reportFailure(err)
			}

		case <-ticker.C:
			aw.mu.Lock()
			err := aw.writer.Flush()
			aw.mu.Unlock()
			if err != nil {
				aw.reportFailure(err)
			}

		case <-aw.done:
			aw.mu.Lock()
			_ = aw.writer.Flush()
			aw.mu.Unlock()
			return
		}
	}
}

// reportFailure announces the first disk failure on stderr. The log file is
// the failing sink, so stderr is the only channel left; repeats are
// suppressed to avoid flooding the console.
func (aw *AsyncFileWriter) reportFailure(err error) {
	aw.reportOnce.Do(func() {
		fmt.Fprintf(aw.errOut, "iobridge: log file write failed, suppressing further reports: %v\n", err)
	})
}

func (aw *AsyncFileWriter) Close() {
	close(aw.done)
	_ = aw.file.Close()
}
