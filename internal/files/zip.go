package files

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zip"
)

// ZipDirectory writes every regular file under source into a new archive
// at target. Entry names are relative to source and use forward slashes.
func ZipDirectory(source, target string) error {
	zipFile, err := os.Create(target)
	if err != nil {
		return err
	}

	archive := zip.NewWriter(zipFile)
	walkErr := filepath.WalkDir(source, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == source || path == target {
			return nil
		}
		return addEntry(archive, source, path, d)
	})

	closeErr := archive.Close()
	if err := zipFile.Close(); closeErr == nil {
		closeErr = err
	}
	if walkErr != nil {
		os.Remove(target)
		return walkErr
	}
	return closeErr
}

func addEntry(archive *zip.Writer, base, path string, d fs.DirEntry) error {
	info, err := d.Info()
	if err != nil {
		return err
	}
	if !info.IsDir() && !info.Mode().IsRegular() {
		return nil
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	relPath, err := filepath.Rel(base, path)
	if err != nil {
		return err
	}
	header.Name = filepath.ToSlash(relPath)

	if info.IsDir() {
		header.Name += "/"
		_, err := archive.CreateHeader(header)
		return err
	}
	header.Method = zip.Deflate

	writer, err := archive.CreateHeader(header)
	if err != nil {
		return err
	}
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	_, err = io.Copy(writer, file)
	return err
}
