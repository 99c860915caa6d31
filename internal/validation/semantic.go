package validation

import (
	"fmt"
	"sort"

	"github.com/rendis/flowlite/pkg/schema"
)

// validateSemantic performs the checks JSON Schema cannot express: key
// uniqueness, document and agent references, agent kinds and step ordering.
func validateSemantic(t *schema.WorkflowTemplate) *schema.ValidationReport {
	report := &schema.ValidationReport{}

	docKeys := uniqueKeys(report, "documents", len(t.Documents), func(i int) string { return t.Documents[i].Key })
	agentKeys := uniqueKeys(report, "agents", len(t.Agents), func(i int) string { return t.Agents[i].Key })
	uniqueKeys(report, "steps", len(t.Steps), func(i int) string { return t.Steps[i].Key })

	for i, a := range t.Agents {
		if _, err := schema.ParseAgentKind(a.Kind); err != nil {
			report.Errorf(fmt.Sprintf("agents[%d].kind", i), "unknown agent kind %q", a.Kind)
		}
	}

	usedDocs := make(map[string]bool, len(docKeys))
	usedAgents := make(map[string]bool, len(agentKeys))
	for i, s := range t.Steps {
		path := fmt.Sprintf("steps[%d]", i)
		for j, ref := range s.Documents {
			if !docKeys[ref] {
				report.Errorf(fmt.Sprintf("%s.documents[%d]", path, j), "references undeclared document %q", ref)
			}
			usedDocs[ref] = true
		}
		for j, ref := range s.Agents {
			if !agentKeys[ref] {
				report.Errorf(fmt.Sprintf("%s.agents[%d]", path, j), "references undeclared agent %q", ref)
			}
			usedAgents[ref] = true
		}
	}

	for i, d := range t.Documents {
		if !usedDocs[d.Key] {
			report.Warnf(fmt.Sprintf("documents[%d]", i), "document %q is not needed by any step", d.Key)
		}
	}
	for i, a := range t.Agents {
		if !usedAgents[a.Key] {
			report.Warnf(fmt.Sprintf("agents[%d]", i), "agent %q is not assigned to any step", a.Key)
		}
	}

	checkOrdering(report, t.Steps)
	return report
}

// uniqueKeys records an error for every repeated key and returns the key set.
func uniqueKeys(report *schema.ValidationReport, section string, n int, key func(int) string) map[string]bool {
	seen := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		k := key(i)
		if seen[k] {
			report.Errorf(fmt.Sprintf("%s[%d].key", section, i), "duplicate key %q", k)
			continue
		}
		seen[k] = true
	}
	return seen
}

// checkOrdering warns about shared orders and gaps. Neither blocks an import,
// but both affect run ordering and document suggestions.
func checkOrdering(report *schema.ValidationReport, steps []schema.StepTemplate) {
	byOrder := make(map[int][]string)
	for _, s := range steps {
		byOrder[s.Order] = append(byOrder[s.Order], s.Key)
	}
	orders := make([]int, 0, len(byOrder))
	for o := range byOrder {
		orders = append(orders, o)
	}
	sort.Ints(orders)

	for i, o := range orders {
		if keys := byOrder[o]; len(keys) > 1 {
			report.Warnf("steps", "steps %v share order %d; their relative position is unspecified", keys, o)
		}
		if i > 0 && o-orders[i-1] > 1 {
			report.Warnf("steps", "gap between order %d and %d; suggestions do not cross it", orders[i-1], o)
		}
	}
}
