package files

import (
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/BioHazard786/Roomdrop/internal/transfer"
)

// FileInfo holds information about a file to be offered
type FileInfo struct {
	// Path is the absolute path to the file or directory
	Path string

	// Name is what the peer sees; directories get a .zip suffix
	Name string

	// Size is the file size in bytes, or the summed size of a directory
	Size int64

	// Type is the MIME type of the file (e.g., "application/pdf", "text/plain")
	Type string

	// IsDir marks a directory that is archived before it is offered
	IsDir bool
}

// ValidateFiles checks that every path exists and is readable.
// All failures are reported together.
func ValidateFiles(filePaths []string) ([]FileInfo, error) {
	if len(filePaths) == 0 {
		return nil, fmt.Errorf("no files specified")
	}

	var fileInfos []FileInfo
	var problems []string

	for _, path := range filePaths {
		fileInfo, err := validateSingleFile(path)
		if err != nil {
			problems = append(problems, err.Error())
			continue
		}
		fileInfos = append(fileInfos, fileInfo)
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf("file validation failed:\n  - %s", strings.Join(problems, "\n  - "))
	}

	return fileInfos, nil
}

func validateSingleFile(path string) (FileInfo, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return FileInfo{}, fmt.Errorf("%s: failed to get absolute path: %w", path, err)
	}

	stat, err := os.Stat(absPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return FileInfo{}, fmt.Errorf("%s: file does not exist", path)
		}
		return FileInfo{}, fmt.Errorf("%s: failed to stat file: %w", path, err)
	}

	if stat.IsDir() {
		size, err := dirSize(absPath)
		if err != nil {
			return FileInfo{}, fmt.Errorf("%s: cannot read directory: %w", path, err)
		}
		if size == 0 {
			return FileInfo{}, fmt.Errorf("%s: directory is empty", path)
		}
		return FileInfo{
			Path:  absPath,
			Name:  filepath.Base(absPath) + ".zip",
			Size:  size,
			Type:  "application/zip",
			IsDir: true,
		}, nil
	}

	if stat.Size() == 0 {
		return FileInfo{}, fmt.Errorf("%s: file is empty", path)
	}

	file, err := os.Open(absPath)
	if err != nil {
		return FileInfo{}, fmt.Errorf("%s: cannot open file (check permissions): %w", path, err)
	}
	file.Close()

	mimeType := mime.TypeByExtension(filepath.Ext(absPath))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	return FileInfo{
		Path: absPath,
		Name: filepath.Base(absPath),
		Size: stat.Size(),
		Type: mimeType,
	}, nil
}

func dirSize(root string) (int64, error) {
	var total int64
	err := filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			info, err := d.Info()
			if err != nil {
				return err
			}
			total += info.Size()
		}
		return nil
	})
	return total, err
}

// GetTotalSize returns the total size of all files
func GetTotalSize(fileInfos []FileInfo) int64 {
	var total int64
	for _, file := range fileInfos {
		total += file.Size
	}
	return total
}

// Sources turns validated files into transfer sources. Directories are
// archived into tempDir first, and the archive size replaces the summed
// directory size.
func Sources(fileInfos []FileInfo, tempDir string) ([]transfer.FileSource, error) {
	sources := make([]transfer.FileSource, 0, len(fileInfos))
	for _, f := range fileInfos {
		if !f.IsDir {
			sources = append(sources, transfer.PathSource(f.Path, f.Name, f.Size))
			continue
		}

		target := filepath.Join(tempDir, f.Name)
		if err := ZipDirectory(f.Path, target); err != nil {
			return nil, transfer.NewFileError("archive", f.Path, err)
		}
		stat, err := os.Stat(target)
		if err != nil {
			return nil, transfer.NewFileError("stat", target, err)
		}
		sources = append(sources, transfer.PathSource(target, f.Name, stat.Size()))
	}
	return sources, nil
}
