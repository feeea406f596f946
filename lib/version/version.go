package version

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"sync"

	"go.uber.org/zap"
)

type Info struct {
	Module      string
	GoVersion   string
	CommitHash  string
	CommitTime  string
	DirtyCommit bool
	BinaryHash  string
}

func shorten(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// String is the commit (with a binary hash when the commit is missing or
// dirty), or "unknown".
func (v Info) String() string {
	var rv string
	if v.CommitHash != "" {
		rv = shorten(v.CommitHash, 16)
		if v.DirtyCommit {
			rv += "-dirty"
		}
	}

	if (rv == "" || v.DirtyCommit) && v.BinaryHash != "" {
		if rv != "" {
			rv += "@"
		}
		rv += "sha256:" + shorten(v.BinaryHash, 8)
	}

	if rv == "" {
		return "unknown"
	}
	return rv
}

func (v Info) LogFields() []zap.Field {
	return []zap.Field{
		zap.String("version", v.String()),
		zap.String("go_version", v.GoVersion),
	}
}

var (
	globalVersion    *Info
	globalVersionErr error
	globalOnce       sync.Once

	ForceHash bool = false
)

func GetInfo() (*Info, error) {
	globalOnce.Do(func() {
		globalVersion, globalVersionErr = computeVersionInfo(ForceHash)
	})
	return globalVersion, globalVersionErr
}

func fromBuildInfo(info *debug.BuildInfo) Info {
	rv := Info{
		Module:    info.Main.Path,
		GoVersion: info.GoVersion,
	}

	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			rv.CommitHash = setting.Value
		case "vcs.modified":
			rv.DirtyCommit = setting.Value == "true"
		case "vcs.time":
			rv.CommitTime = setting.Value
		}
	}

	return rv
}

func hashFile(filename string) (string, error) {
	file, err := os.Open(filename)
	if err != nil {
		return "", err
	}
	defer file.Close()

	h := sha256.New()
	if _, err := io.Copy(h, file); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

func computeVersionInfo(forceHash bool) (*Info, error) {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return nil, errors.New("failed to read build info")
	}

	rv := fromBuildInfo(info)

	if rv.CommitHash == "" || rv.DirtyCommit || forceHash {
		execPath, err := os.Executable()
		if err != nil {
			return nil, err
		}
		digest, err := hashFile(execPath)
		if err != nil {
			return nil, err
		}
		rv.BinaryHash = digest
	}

	return &rv, nil
}
