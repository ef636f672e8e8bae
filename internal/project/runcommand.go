package project

import (
	"fmt"
	"strings"
)

// SplitRun splits a run command of the form "token:version args..." into
// its parts. The version defaults to "latest". Spaces inside ${{ ... }}
// references are removed first so the splitter treats each reference as a
// single word.
func SplitRun(run string) (token, version string, args []string, err error) {
	for _, ref := range VariablesIn(run) {
		run = strings.ReplaceAll(run, ref, strings.ReplaceAll(ref, " ", ""))
	}

	words, err := splitWords(run)
	if err != nil {
		return "", "", nil, err
	}
	if len(words) == 0 {
		return "", "", nil, fmt.Errorf("empty run command")
	}

	token = words[0]
	version = "latest"
	if name, v, ok := strings.Cut(words[0], ":"); ok {
		if name == "" || v == "" {
			return "", "", nil, fmt.Errorf("malformed run token %q", words[0])
		}
		token, version = name, v
	}

	return token, version, words[1:], nil
}

// splitWords splits a command line on whitespace, honouring single and
// double quotes the way a POSIX shell tokeniser does (without expansions).
func splitWords(s string) ([]string, error) {
	var (
		words   []string
		current strings.Builder
		inWord  bool
		quote   rune
	)

	for _, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				current.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote = r
			inWord = true
		case r == ' ' || r == '\t':
			if inWord {
				words = append(words, current.String())
				current.Reset()
				inWord = false
			}
		default:
			current.WriteRune(r)
			inWord = true
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("unbalanced quote in %q", s)
	}
	if inWord {
		words = append(words, current.String())
	}

	return words, nil
}
