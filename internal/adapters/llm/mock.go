package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/mvaldesr/tabletalk/internal/domain"
)

// MockGenerator is a deterministic stand-in for local development: chart-ish
// prompts become a bar chart over the first two columns, everything else
// becomes the identity transformation.
type MockGenerator struct{}

func NewMockGenerator() *MockGenerator {
	return &MockGenerator{}
}

func (m *MockGenerator) GenerateScript(
	_ context.Context,
	prompt string,
	columns []string,
	_ map[string]any,
) (*domain.Generation, error) {
	lower := strings.ToLower(prompt)
	wantsChart := strings.Contains(lower, "chart") ||
		strings.Contains(lower, "plot") ||
		strings.Contains(lower, "graph")

	if wantsChart && len(columns) >= 2 {
		return &domain.Generation{
			Intent:      domain.IntentVisualUpdate,
			Script:      fmt.Sprintf("output = bar(input, %q, %q)", columns[0], columns[1]),
			Explanation: fmt.Sprintf("bar chart of %s by %s", columns[1], columns[0]),
		}, nil
	}

	return &domain.Generation{
		Intent:      domain.IntentDataMutation,
		Script:      "output = input",
		Explanation: "mock oracle: data left unchanged",
	}, nil
}
