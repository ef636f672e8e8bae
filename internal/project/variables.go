package project

import (
	"fmt"
	"regexp"
	"strings"
)

// variablePattern matches `${{ var }}` (or `${{var}}`) references.
var variablePattern = regexp.MustCompile(`\$\{\{ ?([A-Za-z][A-Za-z0-9._-]+) ?\}\}`)

// VariablesIn returns every `${{ ... }}` reference in the string, full
// match form.
func VariablesIn(s string) []string {
	return variablePattern.FindAllString(s, -1)
}

// variableNamesIn returns the dotted names inside each reference.
func variableNamesIn(s string) []string {
	matches := variablePattern.FindAllStringSubmatch(s, -1)
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, m[1])
	}
	return names
}

// parseVariable validates a reference of the form
// `${{ needs.<action>.outputs.<name> }}` and returns the action id and
// output name.
func parseVariable(ref string) (actionID, outputName string, err error) {
	name := ref
	if m := variablePattern.FindStringSubmatch(ref); m != nil {
		name = m[1]
	}

	parts := strings.Split(name, ".")
	if len(parts) != 4 || parts[0] != "needs" || parts[2] != "outputs" {
		return "", "", fmt.Errorf("unsupported variable %q: expected needs.<action>.outputs.<name>", ref)
	}
	return parts[1], parts[3], nil
}
