package parser

import (
	"bytes"
	"os"
)

type FileType string

const (
	FileTypeFIT     FileType = "fit"
	FileTypeTCX     FileType = "tcx"
	FileTypeGPX     FileType = "gpx"
	FileTypeUnknown FileType = "unknown"
)

// DetectFileType sniffs the first 512 bytes of a file.
func DetectFileType(path string) (FileType, error) {
	file, err := os.Open(path)
	if err != nil {
		return FileTypeUnknown, err
	}
	defer file.Close()

	header := make([]byte, 512)
	n, err := file.Read(header)
	if err != nil && n == 0 {
		return FileTypeUnknown, err
	}

	return DetectFileTypeFromData(header[:n]), nil
}

// DetectFileTypeFromData identifies a route file format from its leading
// bytes. FIT files carry ".FIT" at offset 8 of the header; the XML formats
// are told apart by their root element.
func DetectFileTypeFromData(data []byte) FileType {
	if len(data) >= 12 && bytes.Equal(data[8:12], []byte(".FIT")) {
		return FileTypeFIT
	}

	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	if bytes.Contains(head, []byte("<gpx")) || bytes.Contains(head, []byte("topografix.com/GPX")) {
		return FileTypeGPX
	}
	if bytes.Contains(head, []byte("TrainingCenterDatabase")) {
		return FileTypeTCX
	}

	return FileTypeUnknown
}
