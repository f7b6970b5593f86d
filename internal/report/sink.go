package report

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Chart is a rendered-ready line chart: title, axis captions, x labels and
// one or more named series of equal length.
type Chart struct {
	Title  string
	XLabel string
	YLabel string
	Labels []string
	Series []LineChartSeries
}

// SVG renders the chart with cfg.
func (c Chart) SVG(cfg ChartConfig) string {
	cfg.Title = c.Title
	cfg.XLabel = c.XLabel
	cfg.YLabel = c.YLabel
	return LineChart(c.Series, c.Labels, cfg)
}

// Sink receives charts for display.
type Sink interface {
	Render(ctx context.Context, c Chart) error
}

// Format selects what a FileSink writes.
type Format string

const (
	FormatHTML Format = "html"
	FormatSVG  Format = "svg"
)

// FileSinkConfig controls where and how charts are written.
type FileSinkConfig struct {
	Dir    string      // output directory (created if missing)
	Format Format      // html (default) or svg
	Open   bool        // open each written file with the system viewer
	Chart  ChartConfig // rendering parameters
}

// FileSink writes each chart to its own file named after the chart title.
type FileSink struct {
	cfg    FileSinkConfig
	log    *zap.Logger
	opener func(ctx context.Context, path string) error

	mu      sync.Mutex
	written []string
}

// NewFileSink creates a FileSink. A nil logger disables logging.
func NewFileSink(cfg FileSinkConfig, log *zap.Logger) *FileSink {
	if cfg.Dir == "" {
		cfg.Dir = "charts"
	}
	if cfg.Format == "" {
		cfg.Format = FormatHTML
	}
	if cfg.Chart.Width == 0 {
		cfg.Chart = DefaultChartConfig()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &FileSink{cfg: cfg, log: log, opener: openInViewer}
}

// Render writes the chart and optionally opens it.
func (s *FileSink) Render(ctx context.Context, c Chart) error {
	if err := os.MkdirAll(s.cfg.Dir, 0o755); err != nil {
		return fmt.Errorf("create chart dir: %w", err)
	}

	svg := c.SVG(s.cfg.Chart)
	var (
		content []byte
		err     error
	)
	switch s.cfg.Format {
	case FormatSVG:
		content = []byte(svg)
	case FormatHTML:
		content, err = renderPage(c.Title, svg)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown chart format %q", s.cfg.Format)
	}

	path := filepath.Join(s.cfg.Dir, Slug(c.Title)+"."+string(s.cfg.Format))
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("write chart %s: %w", path, err)
	}
	s.mu.Lock()
	s.written = append(s.written, path)
	s.mu.Unlock()
	s.log.Info("chart written", zap.String("title", c.Title), zap.String("path", path))

	if s.cfg.Open {
		if err := s.opener(ctx, path); err != nil {
			return fmt.Errorf("open chart %s: %w", path, err)
		}
	}
	return nil
}

// Written returns the paths written so far.
func (s *FileSink) Written() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.written...)
}

// MemorySink keeps rendered charts in memory.
type MemorySink struct {
	mu     sync.Mutex
	Charts []Chart
}

// Render records the chart.
func (m *MemorySink) Render(_ context.Context, c Chart) error {
	m.mu.Lock()
	m.Charts = append(m.Charts, c)
	m.mu.Unlock()
	return nil
}

// Last returns the most recently rendered chart.
func (m *MemorySink) Last() (Chart, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Charts) == 0 {
		return Chart{}, false
	}
	return m.Charts[len(m.Charts)-1], true
}

// Slug turns a chart title into a file name.
func Slug(title string) string {
	var sb strings.Builder
	dash := false
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
			dash = false
		case !dash && sb.Len() > 0:
			sb.WriteByte('-')
			dash = true
		}
	}
	out := strings.TrimSuffix(sb.String(), "-")
	if out == "" {
		return "chart"
	}
	return out
}

var pageTemplate = template.Must(template.New("chart").Parse(ChartPageTemplate))

func renderPage(title, svg string) ([]byte, error) {
	var buf bytes.Buffer
	err := pageTemplate.Execute(&buf, struct {
		Title string
		SVG   template.HTML
	}{title, template.HTML(svg)})
	if err != nil {
		return nil, fmt.Errorf("render chart page: %w", err)
	}
	return buf.Bytes(), nil
}

func openInViewer(ctx context.Context, path string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.CommandContext(ctx, "open", path)
	case "windows":
		cmd = exec.CommandContext(ctx, "rundll32", "url.dll,FileProtocolHandler", path)
	default:
		cmd = exec.CommandContext(ctx, "xdg-open", path)
	}
	return cmd.Start()
}
