// Package visitlog records visitor metadata as newline-delimited JSON in an
// append-only file, optionally forwarding every entry to Kafka.
package visitlog

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"
)

var ErrNoLogs = errors.New("no logs")

const (
	ActionInventoryView   = "inventory_view"
	ActionInventoryUpload = "inventory_upload"

	unknown = "unknown"
)

// Entry is one line of the visitor log. Raw holds the original line when it
// could not be decoded.
type Entry struct {
	Time      time.Time `json:"time"`
	IP        string    `json:"ip"`
	UserAgent string    `json:"userAgent,omitempty"`
	Path      string    `json:"path,omitempty"`
	Action    string    `json:"action,omitempty"`
	Target    string    `json:"target,omitempty"`
	Host      string    `json:"host,omitempty"`
	RequestID string    `json:"requestId,omitempty"`

	Raw string `json:"-"`
}

// Publisher is satisfied by *kafka.Writer.
type Publisher interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type Logger struct {
	mu   sync.Mutex
	path string
	pub  Publisher
}

// New returns a logger appending to the file at path. The parent directory
// is created if needed. pub may be nil.
func New(path string, pub Publisher) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir for %s: %w", path, err)
	}

	return &Logger{path: path, pub: pub}, nil
}

func (l *Logger) Path() string {
	return l.path
}

// FromRequest fills IP, user agent, path and time from r.
func FromRequest(r *http.Request) Entry {
	return Entry{
		Time:      time.Now().UTC(),
		IP:        ClientIP(r),
		UserAgent: UserAgent(r),
		Path:      r.URL.Path,
	}
}

// Record appends e to the log. Failures are logged and swallowed so the
// request being served is never affected.
func (l *Logger) Record(ctx context.Context, e Entry) {
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}

	line, err := json.Marshal(e)
	if err != nil {
		log.Errorf("[visitlog] failed to marshal entry: %v", err)
		return
	}

	if err := l.append(line); err != nil {
		log.Errorf("[visitlog] failed to write log: %v", err)
	}

	if l.pub != nil {
		if err := l.pub.WriteMessages(ctx, kafka.Message{Key: []byte(e.IP), Value: line}); err != nil {
			log.Errorf("[visitlog] failed to write log to Kafka: %v", err)
			return
		}
		log.Debugf("[visitlog] log entry sent to Kafka path:%s", e.Path)
	}
}

func (l *Logger) append(line []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}

	_, err = f.Write(append(line, '\n'))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

// Entries returns every logged entry, newest first.
func (l *Logger) Entries() ([]Entry, error) {
	l.mu.Lock()
	raw, err := os.ReadFile(l.path)
	l.mu.Unlock()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoLogs
		}
		return nil, fmt.Errorf("read log file: %w", err)
	}

	var entries []Entry
	sc := bufio.NewScanner(bytes.NewReader(raw))
	sc.Buffer(make([]byte, 0, 64*1024), len(raw)+1)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var e Entry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			e = Entry{Raw: line}
		}
		entries = append(entries, e)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan log file: %w", err)
	}

	if len(entries) == 0 {
		return nil, ErrNoLogs
	}

	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// Open opens the raw log file for reading. The caller closes it.
func (l *Logger) Open() (*os.File, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoLogs
		}
		return nil, fmt.Errorf("open log file: %w", err)
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat log file: %w", err)
	}
	if fi.Size() == 0 {
		f.Close()
		return nil, ErrNoLogs
	}
	return f, nil
}

// ClientIP prefers the first X-Forwarded-For entry and falls back to the
// socket address without its port.
func ClientIP(r *http.Request) string {
	ip := ""
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		ip = strings.TrimSpace(first)
	}
	if ip == "" {
		ip = r.RemoteAddr
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			ip = host
		}
	}
	return normalizeIP(ip)
}

func normalizeIP(ip string) string {
	ip = strings.TrimPrefix(ip, "::ffff:")
	if ip == "" {
		return unknown
	}
	return ip
}

func UserAgent(r *http.Request) string {
	if ua := r.UserAgent(); ua != "" {
		return ua
	}
	return unknown
}
