// Package server exposes the exporter's three read-only HTTP endpoints.
// Every request runs an independent fetch → parse → build pipeline against
// dependencies injected at construction; there is no shared cache, no global
// metric registry, and no state surviving a request.
package server

import (
	"bytes"
	"context"
	"net/http"

	"github.com/prometheus/common/expfmt"
	"k8s.io/klog/v2"

	"github.com/marcan/pacemaker-exporter/pkg/collector"
	"github.com/marcan/pacemaker-exporter/pkg/crmmon"
)

// StatusSource produces the raw cluster status reports on demand.
type StatusSource interface {
	XML(ctx context.Context) ([]byte, error)
	HTML(ctx context.Context) ([]byte, error)
}

// Server holds the request pipeline dependencies.
type Server struct {
	source  StatusSource
	builder *collector.Builder
}

func New(source StatusSource, builder *collector.Builder) *Server {
	return &Server{source: source, builder: builder}
}

// Handler returns the route table: / for the human-readable status page,
// /xml for the raw status document, /metrics for the metric catalog, and
// 404 for everything else.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/xml", s.handleXML)
	mux.HandleFunc("/metrics", s.handleMetrics)
	return mux
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	page, err := s.source.HTML(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/html")
	if _, err := w.Write(rewriteStatusPage(page)); err != nil {
		klog.V(2).Infof("Failed to write status page: %v", err)
	}
}

func (s *Server) handleXML(w http.ResponseWriter, r *http.Request) {
	raw, err := s.source.XML(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/xml")
	if _, err := w.Write(raw); err != nil {
		klog.V(2).Infof("Failed to write status document: %v", err)
	}
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	raw, err := s.source.XML(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}

	result, err := crmmon.Parse(raw)
	if err != nil {
		s.fail(w, err)
		return
	}

	// The snapshot is gathered in full before the first byte is written, so
	// a failing pass yields a 500 with zero metric lines, never a truncated
	// exposition.
	families, err := s.builder.Build(result)
	if err != nil {
		s.fail(w, err)
		return
	}

	format := expfmt.NewFormat(expfmt.TypeTextPlain)
	w.Header().Set("Content-Type", string(format))
	encoder := expfmt.NewEncoder(w, format)
	for _, family := range families {
		if err := encoder.Encode(family); err != nil {
			klog.V(2).Infof("Failed to encode metric family %s: %v", family.GetName(), err)
			return
		}
	}
}

// fail renders a request-scoped pipeline failure. The error never terminates
// the server process or affects concurrent requests.
func (s *Server) fail(w http.ResponseWriter, err error) {
	klog.Errorf("Request failed: %v", err)
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

var (
	headClose = []byte("</head>")
	bodyClose = []byte("</body>")
	styleRule = []byte("<style>body { font-family: sans-serif; }</style></head>")
	navLinks  = []byte(`<p><a href="/metrics">Metrics</a> <a href="/xml">XML</a></p>` + "\n</body>")
)

// rewriteStatusPage drops the CGI-style header block crm_mon emits in web
// mode and injects a minimal style rule plus navigation links to the other
// endpoints.
func rewriteStatusPage(page []byte) []byte {
	if _, body, found := bytes.Cut(page, []byte("\n\n")); found {
		page = body
	}
	page = bytes.Replace(page, headClose, styleRule, 1)
	page = bytes.Replace(page, bodyClose, navLinks, 1)
	return page
}
