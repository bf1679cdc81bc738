package session

import (
	"net/http"

	"github.com/rendis/flowbridge/internal/dispatch"
)

// commitWriter runs commit right before the response status goes out. When
// commit fails the handler's response is replaced by the error and anything
// it writes afterwards is dropped.
type commitWriter struct {
	http.ResponseWriter
	commit    func() error
	committed bool
	failed    bool
}

func (w *commitWriter) WriteHeader(code int) {
	if w.committed {
		if !w.failed {
			w.ResponseWriter.WriteHeader(code)
		}
		return
	}
	w.committed = true
	if err := w.commit(); err != nil {
		w.failed = true
		w.Header().Del("Content-Length")
		dispatch.WriteError(w.ResponseWriter, err)
		return
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *commitWriter) Write(b []byte) (int, error) {
	if !w.committed {
		w.WriteHeader(http.StatusOK)
	}
	if w.failed {
		return len(b), nil
	}
	return w.ResponseWriter.Write(b)
}

func (w *commitWriter) Flush() {
	if !w.committed {
		w.WriteHeader(http.StatusOK)
	}
	if f, ok := w.ResponseWriter.(http.Flusher); ok && !w.failed {
		f.Flush()
	}
}

func (w *commitWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }
