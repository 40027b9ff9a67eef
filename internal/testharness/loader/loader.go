package loader

import (
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParseTestCase parses a test case from YAML bytes.
func ParseTestCase(data []byte) (*TestCase, error) {
	var tc TestCase
	if err := yaml.Unmarshal(data, &tc); err != nil {
		le := &LoadError{
			Message: "failed to parse YAML",
			Cause:   err,
		}
		var te *yaml.TypeError
		if !errors.As(err, &te) {
			le.Line = yamlErrorLine(err)
		}
		return nil, le
	}

	// Validate required fields
	if tc.ID == "" {
		return nil, &LoadError{
			Message: "test case ID is required",
		}
	}

	if len(tc.Steps) == 0 {
		return nil, &LoadError{
			Message: "test case must have at least one step",
		}
	}

	for i, step := range tc.Steps {
		if step.Action == "" {
			return nil, &LoadError{
				Message: "step " + strconv.Itoa(i+1) + " has no action",
			}
		}
	}

	return &tc, nil
}

// LoadTestCase loads a test case from a file.
func LoadTestCase(path string) (*TestCase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{
			File:    path,
			Message: "failed to read file",
			Cause:   err,
		}
	}
	return parseFile(path, data)
}

func parseFile(name string, data []byte) (*TestCase, error) {
	tc, err := ParseTestCase(data)
	if err != nil {
		if le, ok := err.(*LoadError); ok {
			le.File = name
			return nil, le
		}
		return nil, &LoadError{
			File:    name,
			Message: err.Error(),
		}
	}
	return tc, nil
}

// LoadDirectory loads all test cases from a directory.
// Only files with .yaml or .yml extensions are loaded.
func LoadDirectory(dir string) ([]*TestCase, error) {
	return LoadFS(os.DirFS(dir), ".")
}

// LoadFS loads all test cases from dir within fsys, in file name order.
// It is used for the scenarios embedded in the binary.
func LoadFS(fsys fs.FS, dir string) ([]*TestCase, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, &LoadError{
			File:    dir,
			Message: "failed to read directory",
			Cause:   err,
		}
	}

	var cases []*TestCase
	for _, entry := range entries {
		if entry.IsDir() || !isYAML(entry.Name()) {
			continue
		}

		name := path.Join(dir, entry.Name())
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, &LoadError{
				File:    name,
				Message: "failed to read file",
				Cause:   err,
			}
		}

		tc, err := parseFile(name, data)
		if err != nil {
			return nil, err
		}
		cases = append(cases, tc)
	}

	return cases, nil
}

// LoadDirectoryRecursive loads all test cases from a directory and subdirectories.
func LoadDirectoryRecursive(dir string) ([]*TestCase, error) {
	var cases []*TestCase

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isYAML(path) {
			return nil
		}

		tc, err := LoadTestCase(path)
		if err != nil {
			return err
		}

		cases = append(cases, tc)
		return nil
	})

	if err != nil {
		return nil, err
	}

	return cases, nil
}

// FilterByTags returns the test cases carrying at least one of tags.
// An empty tag list returns cases unchanged.
func FilterByTags(cases []*TestCase, tags []string) []*TestCase {
	if len(tags) == 0 {
		return cases
	}
	var out []*TestCase
	for _, tc := range cases {
		for _, tag := range tags {
			if tc.HasTag(tag) {
				out = append(out, tc)
				break
			}
		}
	}
	return out
}

// FilterByID returns the test cases whose ID matches one of the patterns.
// Patterns use path.Match syntax, e.g. "TC-ORDER-*".
func FilterByID(cases []*TestCase, patterns []string) []*TestCase {
	if len(patterns) == 0 {
		return cases
	}
	var out []*TestCase
	for _, tc := range cases {
		for _, p := range patterns {
			if ok, _ := path.Match(p, tc.ID); ok {
				out = append(out, tc)
				break
			}
		}
	}
	return out
}

// SortByID orders test cases by ID.
func SortByID(cases []*TestCase) {
	sort.Slice(cases, func(i, j int) bool {
		return cases[i].ID < cases[j].ID
	})
}

func isYAML(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}

// yamlErrorLine extracts the line number from a yaml.v3 syntax error
// ("yaml: line 3: ...").
func yamlErrorLine(err error) int {
	msg := err.Error()
	const prefix = "yaml: line "
	if !strings.HasPrefix(msg, prefix) {
		return 0
	}
	n := 0
	for _, c := range msg[len(prefix):] {
		if c < '0' || c > '9' {
			break
		}
		n = n*10 + int(c-'0')
	}
	return n
}
