// The staticlint command bundles standard toolchain analyzers, selected
// third-party analyzers and a project-specific analyzer into a single
// multichecker binary.
//
// An optional config.json next to the binary narrows the staticcheck
// analyzer set; without it, every SA analyzer is enabled.
package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/multichecker"
	"golang.org/x/tools/go/analysis/passes/copylock"
	"golang.org/x/tools/go/analysis/passes/loopclosure"
	"golang.org/x/tools/go/analysis/passes/lostcancel"
	"golang.org/x/tools/go/analysis/passes/printf"
	"golang.org/x/tools/go/analysis/passes/structtag"
	"golang.org/x/tools/go/analysis/passes/unmarshal"
	"golang.org/x/tools/go/analysis/passes/unreachable"
	"honnef.co/go/tools/staticcheck"

	"github.com/gordonklaus/ineffassign/pkg/ineffassign"
	"github.com/gostaticanalysis/nilerr"

	"github.com/tinylink-dev/tinylink/cmd/staticlint/noosexit"
)

// configFileName is looked up next to the staticlint binary.
const configFileName = `config.json`

// configData lists the staticcheck analyzers to enable, e.g. "SA1000".
type configData struct {
	Staticcheck []string
}

func loadStaticcheckFilter() (map[string]bool, bool) {
	appfile, err := os.Executable()
	if err != nil {
		return nil, false
	}
	data, err := os.ReadFile(filepath.Join(filepath.Dir(appfile), configFileName))
	if err != nil {
		return nil, false
	}
	var cfg configData
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, false
	}

	enabled := make(map[string]bool, len(cfg.Staticcheck))
	for _, name := range cfg.Staticcheck {
		enabled[name] = true
	}
	return enabled, true
}

func main() {
	checks := []*analysis.Analyzer{
		copylock.Analyzer,
		loopclosure.Analyzer,
		lostcancel.Analyzer,
		printf.Analyzer,
		structtag.Analyzer,
		unmarshal.Analyzer,
		unreachable.Analyzer,

		ineffassign.Analyzer,
		nilerr.Analyzer,

		noosexit.Analyzer,
	}

	filter, hasFilter := loadStaticcheckFilter()
	for _, v := range staticcheck.Analyzers {
		if hasFilter {
			if filter[v.Analyzer.Name] {
				checks = append(checks, v.Analyzer)
			}
			continue
		}
		if strings.HasPrefix(v.Analyzer.Name, "SA") {
			checks = append(checks, v.Analyzer)
		}
	}

	multichecker.Main(checks...)
}
