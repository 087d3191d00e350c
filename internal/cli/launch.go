package cli

import (
	"errors"
	"strings"

	"tandem/internal/config"
)

// RequireResults validates the results root every child receives from
// the launch contract.
func RequireResults(raw string) (string, error) {
	root := strings.TrimSpace(raw)
	if root == "" {
		return "", errors.New("--results is required")
	}
	return root, nil
}

// LoadRun reads the run configuration the orchestrator published at
// the root of the results tree.
func LoadRun(root string) (config.Run, config.Tree, error) {
	tree := config.NewTree(root)
	run, err := config.Load(tree.ConfigPath())
	if err != nil {
		return config.Run{}, tree, err
	}
	return run, tree, nil
}
