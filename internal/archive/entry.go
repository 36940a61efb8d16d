// Package archive implements the fuzzer's on-disk run artifact: a tarball
// compressed with zstd, whose entries are labelled by path and parsed by
// kind, exactly as spec.md §6 describes. Entry iteration is lazy and
// preserves tar order; an entry whose path does not match a recognized
// kind is skipped rather than failing the whole archive, so a newer writer
// and an older reader can still interoperate.
package archive

import (
	"path"
	"strings"
)

// Kind classifies one archive entry by its path.
type Kind int

const (
	KindUnknown Kind = iota
	KindMeta
	KindStaticConfig
	KindTargetConfigPath
	KindModels
	KindCmdline
	KindFilemap
	KindFileStorage
	KindSeed
	KindStatisticsExecutions
	KindStatisticsInputSize
	KindCorpusInput
)

const (
	PathMeta                 = "meta.yml"
	PathStaticConfig         = "config/config.txt"
	PathTargetConfigPath     = "config/target-config.txt"
	PathModels               = "config/models.yml.zst"
	PathCmdline              = "config/cmdline.yml"
	PathFilemap              = "config/filemap.yml"
	PathFileStoragePrefix    = "config/file-storage/"
	PathSeed                 = "config/seed.bin"
	PathStatisticsExecutions = "statistics/executions.bin"
	PathStatisticsInputSize  = "statistics/input-size.bin"
	PathCorpusInputPrefix    = "corpus/input-"
	PathCorpusInputSuffix    = ".bin"
)

// ClassifyPath maps a tar entry path to its Kind.
func ClassifyPath(p string) Kind {
	switch {
	case p == PathMeta:
		return KindMeta
	case p == PathStaticConfig:
		return KindStaticConfig
	case p == PathTargetConfigPath:
		return KindTargetConfigPath
	case p == PathModels:
		return KindModels
	case p == PathCmdline:
		return KindCmdline
	case p == PathFilemap:
		return KindFilemap
	case strings.HasPrefix(p, PathFileStoragePrefix):
		return KindFileStorage
	case p == PathSeed:
		return KindSeed
	case p == PathStatisticsExecutions:
		return KindStatisticsExecutions
	case p == PathStatisticsInputSize:
		return KindStatisticsInputSize
	case strings.HasPrefix(p, PathCorpusInputPrefix) && path.Ext(p) == PathCorpusInputSuffix:
		return KindCorpusInput
	default:
		return KindUnknown
	}
}

// CorpusInputPath returns the archive path for the input with the given ID.
func CorpusInputPath(id string) string {
	return PathCorpusInputPrefix + id + PathCorpusInputSuffix
}

// FileStoragePath returns the archive path an original config file at
// logicalPath is stored under.
func FileStoragePath(logicalPath string) string {
	return PathFileStoragePrefix + logicalPath
}
