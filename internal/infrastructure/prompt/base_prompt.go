// Package prompt assembles the Conversation Driver's system prompt: a
// single fixed template plus the dynamic Catalog tool list (§4.1), in
// place of the teacher's hot-pluggable multi-layer discovery engine.
package prompt

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	domaintool "github.com/kubeagent/core/internal/domain/tool"
)

const baseTemplate = `You are kubeagent, an operations assistant with direct access to a Kubernetes cluster and a host shell. You investigate issues, explain what you find, and only change cluster or host state through your tools — never by asserting that you did.

Rules:
- Prefer the most specific read tool for the question asked before reaching for a broader one.
- State what a dangerous tool call will do before making it; its approval gate may suspend the turn until a human decides.
- If a tool call fails or is rejected, say so plainly and suggest the next step — do not retry silently.
- Keep replies concise. Lead with the answer, follow with supporting detail only if useful.

## Runtime

- Host: %s/%s on %s
- Time: %s
- Model: %s
- Default namespace: %s
`

// Options supplies the runtime facts the template is filled with.
type Options struct {
	ModelName        string
	DefaultNamespace string
}

// Build renders the fixed system prompt, followed by the dynamic list
// of tools available in this turn's Catalog.
func Build(opts Options, tools []domaintool.Definition) string {
	hostname, _ := os.Hostname()
	model := opts.ModelName
	if model == "" {
		model = "unknown"
	}
	ns := opts.DefaultNamespace
	if ns == "" {
		ns = "default"
	}

	var b strings.Builder
	fmt.Fprintf(&b, baseTemplate,
		runtime.GOOS, runtime.GOARCH, hostname,
		time.Now().Format("2006-01-02 15:04:05 MST"),
		model, ns,
	)

	if len(tools) > 0 {
		b.WriteString("\n## Tools\n\n")
		for _, t := range tools {
			fmt.Fprintf(&b, "- %s (%s): %s\n", t.Name, t.Classification, t.Description)
		}
	}
	return b.String()
}
