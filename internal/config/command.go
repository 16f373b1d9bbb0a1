package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

// parseCommand splits a shell-like launcher command into argv. Quotes group
// words, a backslash escapes the next rune, and a leading "~/" in the program
// expands to the user's home. A blank or "#"-commented command disables the
// launcher.
func parseCommand(raw string) (CommandConfig, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return CommandConfig{Raw: raw}, nil
	}

	words, err := splitWords(trimmed)
	if err != nil {
		return CommandConfig{}, err
	}
	if len(words) > 0 {
		words[0] = expandHome(words[0])
	}
	return CommandConfig{Raw: raw, Argv: words}, nil
}

func mustParseCommand(raw string) CommandConfig {
	cmd, err := parseCommand(raw)
	if err != nil {
		panic(err)
	}
	return cmd
}

func splitWords(input string) ([]string, error) {
	var (
		words   []string
		word    strings.Builder
		inWord  bool
		quote   rune
		escaped bool
	)

	for _, r := range input {
		if escaped {
			word.WriteRune(r)
			escaped = false
			continue
		}
		if quote != 0 {
			if r == quote {
				quote = 0
			} else {
				word.WriteRune(r)
			}
			continue
		}

		switch {
		case r == '\\':
			escaped, inWord = true, true
		case r == '\'' || r == '"':
			quote, inWord = r, true
		case unicode.IsSpace(r):
			if inWord {
				words = append(words, word.String())
				word.Reset()
				inWord = false
			}
		default:
			word.WriteRune(r)
			inWord = true
		}
	}

	switch {
	case escaped:
		return nil, fmt.Errorf("trailing backslash in command %q", input)
	case quote != 0:
		return nil, fmt.Errorf("unterminated %c quote in command %q", quote, input)
	}
	if inWord {
		words = append(words, word.String())
	}
	return words, nil
}

func expandHome(program string) string {
	rest, ok := strings.CutPrefix(program, "~/")
	if !ok {
		return program
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return program
	}
	return filepath.Join(home, rest)
}
