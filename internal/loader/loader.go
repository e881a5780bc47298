// Package loader implements the document loader (C2): it clones or opens a
// repository, honors .gitignore, and walks the tree into a filtered,
// classified sequence of Documents.
package loader

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
	"github.com/google/uuid"

	"codewiki/internal/domain"
	"codewiki/internal/logging"
)

// Policy is the include/exclude policy a loader applies while walking a
// repository (spec §4.1).
type Policy struct {
	IncludedExtensions []string
	ExcludedDirs       []string
	ExcludedFiles      []string
	MaxFiles           *int
	MaxFileSizeBytes   *int64
}

// languageByExt maps a file extension to a language tag (spec §4.1).
var languageByExt = map[string]string{
	".rs": "rust", ".py": "python", ".js": "javascript", ".ts": "typescript",
	".java": "java", ".cpp": "cpp", ".cc": "cpp", ".c": "c", ".h": "c",
	".go": "go", ".cs": "csharp", ".rb": "ruby", ".php": "php",
}

var docExts = map[string]bool{".md": true, ".txt": true, ".rst": true}
var configExts = map[string]bool{".yaml": true, ".yml": true, ".json": true, ".toml": true, ".ini": true}

func classify(ext string) domain.FileType {
	switch {
	case docExts[ext]:
		return domain.FileTypeDocumentation
	case configExts[ext]:
		return domain.FileTypeConfiguration
	case languageByExt[ext] != "":
		return domain.FileTypeCode
	default:
		return domain.FileTypeOther
	}
}

func languageOf(ext string) string {
	if ext == ".md" {
		return "markdown"
	}
	return languageByExt[ext]
}

// Load opens (cloning if necessary) the repository at url/localPath and
// returns the filtered, classified Document sequence.
//
// For a "local" repo_type, url IS the repository root (localPath is not
// used) and no clone is attempted. Otherwise url is cloned into localPath if it does not yet
// exist, mirroring the teacher's clone-or-open convention.
func Load(repoType domain.RepoType, url, localPath string, policy Policy) ([]domain.Document, error) {
	root := localPath
	if repoType != domain.RepoTypeLocal {
		if _, err := os.Stat(localPath); os.IsNotExist(err) {
			logging.Log.WithField("url", url).WithField("path", localPath).Info("cloning repository")
			if _, err := git.PlainClone(localPath, false, &git.CloneOptions{URL: url}); err != nil {
				return nil, fmt.Errorf("clone %s: %w", url, err)
			}
		}
	} else {
		root = url
		if _, err := os.Stat(root); err != nil {
			return nil, fmt.Errorf("local repository path %s: %w", root, err)
		}
	}

	matcher := loadGitignore(root)

	var docs []domain.Document
	excludedDirSet := make(map[string]bool, len(policy.ExcludedDirs))
	for _, d := range policy.ExcludedDirs {
		excludedDirSet[d] = true
	}
	extSet := make(map[string]bool, len(policy.IncludedExtensions))
	for _, e := range policy.IncludedExtensions {
		extSet[e] = true
	}

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		relPath, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		if info.IsDir() {
			if relPath != "." && excludedDirSet[filepath.Base(path)] {
				return filepath.SkipDir
			}
			return nil
		}

		for _, part := range strings.Split(relPath, string(os.PathSeparator)) {
			if excludedDirSet[part] {
				return nil
			}
		}

		if matcher != nil {
			parts := strings.Split(relPath, string(os.PathSeparator))
			if matcher.Match(parts, false) {
				return nil
			}
		}

		if matchesAny(policy.ExcludedFiles, filepath.Base(path)) {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		if len(extSet) > 0 && !extSet[ext] {
			return nil
		}

		if policy.MaxFileSizeBytes != nil && info.Size() > *policy.MaxFileSizeBytes {
			return nil
		}

		data, readErr := os.ReadFile(path)
		if readErr != nil {
			logging.Log.WithError(readErr).WithField("path", path).Warn("failed to read file, skipping")
			return nil
		}

		docs = append(docs, domain.Document{
			ID:       uuid.NewString(),
			Content:  string(data),
			FilePath: relPath,
			FileType: classify(ext),
			Language: languageOf(ext),
			FileSize: info.Size(),
		})

		if policy.MaxFiles != nil && len(docs) >= *policy.MaxFiles {
			return errStopWalk
		}
		return nil
	})
	if err != nil && err != errStopWalk {
		return nil, err
	}

	if policy.MaxFiles != nil && len(docs) > *policy.MaxFiles {
		docs = docs[:*policy.MaxFiles]
	}

	return docs, nil
}

var errStopWalk = fmt.Errorf("loader: max_files reached")

func matchesAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if ok, _ := filepath.Match(p, name); ok {
			return true
		}
	}
	return false
}

func loadGitignore(root string) gitignore.Matcher {
	f, err := os.Open(filepath.Join(root, ".gitignore"))
	if err != nil {
		return nil
	}
	defer f.Close()

	var patterns []gitignore.Pattern
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" || strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		patterns = append(patterns, gitignore.ParsePattern(line, nil))
	}
	if len(patterns) == 0 {
		return nil
	}
	return gitignore.NewMatcher(patterns)
}
