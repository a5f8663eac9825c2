package bootstrap

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/kbukum/extkit/extension"
	"github.com/kbukum/extkit/version"
)

// Summary is a snapshot of the catalog for the startup display.
type Summary struct {
	Name            string         `json:"name,omitempty"`
	Version         string         `json:"version"`
	StartupDuration time.Duration  `json:"-"`
	Points          []PointSummary `json:"points"`
	ServerAddr      string         `json:"server_addr,omitempty"`
}

// PointSummary describes one registered point and its extensions.
type PointSummary struct {
	Key        string             `json:"key"`
	Singleton  bool               `json:"singleton"`
	Capability string             `json:"capability,omitempty"`
	Extensions []ExtensionSummary `json:"extensions"`
}

// ExtensionSummary describes one registered extension.
type ExtensionSummary struct {
	Key          string `json:"key"`
	Version      string `json:"version"`
	Preloaded    bool   `json:"preloaded"`
	Instantiated bool   `json:"instantiated"`
}

// Summary snapshots the store.
func (a *App) Summary(startup time.Duration) Summary {
	s := SummarizeStore(a.Store)
	s.Name = a.Cfg.Name
	s.StartupDuration = startup
	if a.Server != nil {
		s.ServerAddr = a.Server.Addr()
	}
	return s
}

// SummarizeStore snapshots the points and extensions of store.
func SummarizeStore(store *extension.Store) Summary {
	s := Summary{Version: version.Short(), Points: []PointSummary{}}
	for _, key := range store.Types().Keys() {
		policy, err := store.Types().Get(key)
		if err != nil {
			continue
		}
		ps := PointSummary{
			Key:        key,
			Singleton:  policy.Singleton,
			Capability: policy.RequiredCapability,
			Extensions: []ExtensionSummary{},
		}
		for _, rec := range store.Registry().OfType(key) {
			ps.Extensions = append(ps.Extensions, ExtensionSummary{
				Key:          rec.Key(),
				Version:      rec.Version(),
				Preloaded:    rec.Preloaded(),
				Instantiated: store.Instantiated(rec.Key()),
			})
		}
		s.Points = append(s.Points, ps)
	}
	return s
}

// Display writes the summary as a tree.
func (s Summary) Display(w io.Writer) {
	fmt.Fprintf(w, "\n🚀 %s %s started in %.2fs\n\n", s.Name, s.Version, s.StartupDuration.Seconds())
	s.DisplayPoints(w)
	if s.ServerAddr != "" {
		fmt.Fprintf(w, "🌐 Catalog: http://%s\n\n", s.ServerAddr)
	}
}

// DisplayPoints writes only the point tree.
func (s Summary) DisplayPoints(w io.Writer) {
	if len(s.Points) == 0 {
		fmt.Fprintf(w, "🧩 No extension points registered\n\n")
		return
	}

	fmt.Fprintf(w, "🧩 Extension points\n")
	for i, p := range s.Points {
		last := i == len(s.Points)-1
		fmt.Fprintf(w, "   %s %s%s\n", branch(last), p.Key, pointTraits(p))

		indent := "│   "
		if last {
			indent = "    "
		}
		for j, e := range p.Extensions {
			fmt.Fprintf(w, "   %s%s %s %s %s%s\n", indent, branch(j == len(p.Extensions)-1),
				statusIcon(e.Instantiated), e.Key, e.Version, extensionTraits(e))
		}
	}
	fmt.Fprintf(w, "\n")
}

func branch(last bool) string {
	if last {
		return "└──"
	}
	return "├──"
}

func statusIcon(instantiated bool) string {
	if instantiated {
		return "✅"
	}
	return "⚪"
}

func pointTraits(p PointSummary) string {
	var traits []string
	if p.Singleton {
		traits = append(traits, "singleton")
	}
	if p.Capability != "" {
		traits = append(traits, "requires "+p.Capability)
	}
	if len(traits) == 0 {
		return ""
	}
	return " (" + strings.Join(traits, ", ") + ")"
}

func extensionTraits(e ExtensionSummary) string {
	if e.Preloaded {
		return " (preloaded)"
	}
	return ""
}
