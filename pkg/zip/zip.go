package zip

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
)

// Entry is one file to place in an archive. Path is read from disk.
type Entry struct {
	Name string
	Path string
}

// WriteArchive streams entries into a zip archive written to w. Video
// payloads are already compressed, so entries are stored without deflate.
func WriteArchive(w io.Writer, entries []Entry) error {
	zw := zip.NewWriter(w)
	for _, entry := range entries {
		if err := addFile(zw, entry); err != nil {
			_ = zw.Close()
			return err
		}
	}
	return zw.Close()
}

func addFile(zw *zip.Writer, entry Entry) error {
	f, err := os.Open(entry.Path)
	if err != nil {
		return fmt.Errorf("zip: open %s: %w", entry.Name, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("zip: stat %s: %w", entry.Name, err)
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("zip: header %s: %w", entry.Name, err)
	}
	header.Name = entry.Name
	header.Method = zip.Store

	dst, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("zip: create %s: %w", entry.Name, err)
	}
	if _, err := io.Copy(dst, f); err != nil {
		return fmt.Errorf("zip: write %s: %w", entry.Name, err)
	}
	return nil
}
