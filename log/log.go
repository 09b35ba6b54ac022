package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kjk/common/siser"
	"github.com/toon-format/toon-go"
)

var (
	log       *WriteDaily
	errorsLog *WriteDaily
	eventsLog *WriteDaily

	// if true, Verbosef() will log messages
	Verbose bool

	// where Logf() prints, in addition to log files
	Stdout io.Writer = os.Stdout

	onLog func(s string)
	mu    sync.Mutex
)

// WriteDaily writes to a file named YYYY-MM-DD.txt in Dir, a new file every day
type WriteDaily struct {
	Dir         string
	currentDate int // YYYYMMDD format
	file        *os.File
	mu          sync.Mutex
}

func NewWriteDaily(dir string) *WriteDaily {
	return &WriteDaily{
		Dir: dir,
	}
}

func dayFromTime(t time.Time) int {
	return t.Year()*10000 + int(t.Month())*100 + t.Day()
}

// Path returns path of the file for a given day
func (w *WriteDaily) Path(t time.Time) string {
	return filepath.Join(w.Dir, t.UTC().Format("2006-01-02")+".txt")
}

// must be called with w.mu held
func (w *WriteDaily) reopenIfNeeded(now time.Time) error {
	today := dayFromTime(now)
	if w.file != nil && w.currentDate == today {
		return nil
	}
	if err := w.close(); err != nil {
		return err
	}
	if err := os.MkdirAll(w.Dir, 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.Path(now), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	w.file = f
	w.currentDate = today
	return nil
}

// Write writes data to today's log file
// it's safe to call on nil receiver
func (w *WriteDaily) Write(d []byte) error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.reopenIfNeeded(time.Now().UTC()); err != nil {
		return err
	}
	_, err := w.file.Write(d)
	return err
}

// WriteString writes a string to the daily log file
// it's safe to call on nil receiver
func (w *WriteDaily) WriteString(s string) error {
	return w.Write([]byte(s))
}

func (w *WriteDaily) close() error {
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	w.currentDate = 0
	return err
}

// Close closes the daily log file
// it's safe to call on nil receiver
func (w *WriteDaily) Close() error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file != nil {
		_ = w.file.Sync()
	}
	return w.close()
}

type Config struct {
	// directory where log files are stored
	// each log type (regular, error, event) has its own subdirectory
	// if empty, we only log to Stdout
	Dir string
	// called for every Logf() call
	OnLog func(s string)
}

// Init initializes the logging system
func Init(config *Config) {
	Close()
	mu.Lock()
	defer mu.Unlock()
	onLog = config.OnLog
	dir := config.Dir
	if dir == "" {
		return
	}
	// those don't create files until first write
	log = NewWriteDaily(filepath.Join(dir, "log"))
	errorsLog = NewWriteDaily(filepath.Join(dir, "errors"))
	eventsLog = NewWriteDaily(filepath.Join(dir, "events"))
}

func closeWriteDaily(wd **WriteDaily) {
	_ = (*wd).Close()
	*wd = nil
}

// Close closes log files. Logging after Close only prints to Stdout.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	closeWriteDaily(&log)
	closeWriteDaily(&errorsLog)
	closeWriteDaily(&eventsLog)
	onLog = nil
}

func Logf(s string, args ...any) {
	if len(args) > 0 {
		s = fmt.Sprintf(s, args...)
	}
	mu.Lock()
	l, fn := log, onLog
	mu.Unlock()
	if Stdout != nil {
		fmt.Fprint(Stdout, s)
	}
	_ = l.WriteString(s)
	if fn != nil {
		fn(s)
	}
}

func Verbosef(format string, args ...any) {
	if !Verbose {
		return
	}
	Logf(format, args...)
}

func GetCallstackFrames(skip int) []string {
	var callers [32]uintptr
	n := runtime.Callers(skip+1, callers[:])
	frames := runtime.CallersFrames(callers[:n])
	var cs []string
	for {
		frame, more := frames.Next()
		cs = append(cs, frame.File+":"+strconv.Itoa(frame.Line))
		if !more {
			break
		}
	}
	return cs
}

func GetCallstack(skip int) string {
	frames := GetCallstackFrames(skip + 1)
	return strings.Join(frames, "\n")
}

// Errorf logs an error message along with the callstack
func Errorf(s string, args ...any) {
	if len(args) > 0 {
		s = fmt.Sprintf(s, args...)
	}
	cs := GetCallstack(2)
	s = fmt.Sprintf("%s\n%s\n", s, cs)
	mu.Lock()
	el := errorsLog
	mu.Unlock()
	_ = el.WriteString(s)
	Logf("%s", s)
}

// if err != nil, log and return true
// IfErrf(err) => logs err.Error()
// IfErrf(err, "error is: %v", err) => logs message formatted
func IfErrf(err error, a ...any) bool {
	if err == nil {
		return false
	}
	if len(a) == 0 {
		Errorf("%s", err.Error())
		return true
	}
	s, ok := a[0].(string)
	if !ok {
		s = fmt.Sprintf("%s", a[0])
	}
	if len(a) > 1 {
		s = fmt.Sprintf(s, a[1:]...)
	}
	Errorf("%s", s)
	return true
}

func panicIf(cond bool, msg string) {
	if cond {
		panic(msg)
	}
}

// keys must be simple types
func keyToStr(v any) string {
	kind := reflect.TypeOf(v).Kind()
	switch kind {
	case reflect.Array, reflect.Slice, reflect.Struct, reflect.Map, reflect.Chan, reflect.Interface, reflect.Pointer, reflect.Func:
		panic(fmt.Sprintf("keyToStr: key is of kind %v", kind))
	case reflect.String:
		return v.(string)
	}
	return fmt.Sprint(v)
}

// MarshalEvent serializes event as siser record, key/values encoded in toon format
func MarshalEvent(name string, t time.Time, vals ...any) ([]byte, error) {
	n := len(vals)
	panicIf(n%2 != 0, "vals must be key/value pairs")
	if strings.ContainsAny(name, " \t\r\n") {
		return nil, fmt.Errorf("event name '%s' can't contain whitespace", name)
	}
	var d []byte
	if n > 0 {
		m := map[string]any{}
		for i := 0; i < n; i += 2 {
			m[keyToStr(vals[i])] = vals[i+1]
		}
		var err error
		d, err = toon.Marshal(m)
		if err != nil {
			return nil, err
		}
	}
	return siser.MarshalLine(name, t, d, nil), nil
}

// Event logs event with key/value pairs to events log
func Event(name string, vals ...any) {
	d, err := MarshalEvent(name, time.Now(), vals...)
	if IfErrf(err, "log.Event('%s'): %v", name, err) {
		return
	}
	mu.Lock()
	el := eventsLog
	mu.Unlock()
	_ = el.Write(d)
}

func EventWithDuration(name string, dur time.Duration, vals ...any) {
	vals = append(vals, "durmicro", dur.Microseconds())
	Event(name, vals...)
}
