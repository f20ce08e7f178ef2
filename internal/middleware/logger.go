package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/fatih/color"

	"imagevault/internal/metrics"
)

// statusWriter captures the status code and body size.
type statusWriter struct {
	http.ResponseWriter
	statusCode int
	length     int
}

func (w *statusWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.length += len(b)
	return w.ResponseWriter.Write(b)
}

var (
	// Method colors
	cGet     = color.New(color.FgHiCyan, color.Bold).SprintFunc()
	cPost    = color.New(color.FgHiGreen, color.Bold).SprintFunc()
	cDelete  = color.New(color.FgHiRed, color.Bold).SprintFunc()
	cOptions = color.New(color.FgHiMagenta, color.Bold).SprintFunc()
	cDefault = color.New(color.FgWhite, color.Bold).SprintFunc()

	c200 = color.New(color.FgGreen, color.Bold).SprintFunc()
	c400 = color.New(color.FgYellow, color.Bold).SprintFunc()
	c500 = color.New(color.FgRed, color.Bold).SprintFunc()

	cTime = color.New(color.FgHiBlack).SprintFunc()
	cPath = color.New(color.FgWhite).SprintFunc()
)

// Logger prints one colored line per request and records its duration under
// the matched route pattern. m may be nil.
func Logger(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := &statusWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(ww, r)

			duration := time.Since(start)
			code := ww.statusCode

			route := r.Pattern
			if route == "" {
				route = "unmatched"
			}
			m.ObserveRequest(r.Method, route, strconv.Itoa(code), duration.Seconds())

			var statusStr string
			switch {
			case code >= 500:
				statusStr = c500(code)
			case code >= 400:
				statusStr = c400(code)
			default:
				statusStr = c200(code)
			}

			label := fmt.Sprintf("%-9s", "["+r.Method+"]")
			var methodStr string
			switch r.Method {
			case http.MethodGet:
				methodStr = cGet(label)
			case http.MethodPost:
				methodStr = cPost(label)
			case http.MethodDelete:
				methodStr = cDelete(label)
			case http.MethodOptions:
				methodStr = cOptions(label)
			default:
				methodStr = cDefault(label)
			}

			fmt.Printf("%s %s %s %s %s %s\n",
				cTime(start.Format("2006-01-02 15:04:05")),
				methodStr,
				cPath(r.RequestURI),
				statusStr,
				cTime("|"),
				cTime(duration.String()),
			)
		})
	}
}
