package hookengine

import "os"

// readFileContent reads a small text file for mutation-class
// classification. Errors are non-fatal to the caller — classify
// falls back to AST_REFACTOR on empty content.
func readFileContent(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
