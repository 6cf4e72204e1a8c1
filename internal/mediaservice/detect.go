package mediaservice

import (
	"net/http"
	"path/filepath"
	"strings"
)

// sniffed maps what http.DetectContentType reports to the type we store.
var sniffed = map[string]string{
	"image/jpeg":      "image/jpeg",
	"image/png":       "image/png",
	"image/gif":       "image/gif",
	"image/webp":      "image/webp",
	"audio/mpeg":      "audio/mpeg",
	"audio/wave":      "audio/wav",
	"application/ogg": "audio/ogg",
}

// detectContentType sniffs the leading bytes and falls back to the file extension for
// formats the sniffer does not recognise, such as MP3 files without an ID3 tag.
func detectContentType(data []byte, filename string) string {
	ct := http.DetectContentType(data)
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}

	if t, ok := sniffed[ct]; ok {
		return t
	}

	// M4A audio and MP4 video share a container; only the extension tells them apart.
	if ct == "video/mp4" && strings.EqualFold(filepath.Ext(filename), ".m4a") {
		return "audio/mp4"
	}

	if ct == "application/octet-stream" {
		return mimeTypeFromExtension(filename)
	}

	return ct
}

func mimeTypeFromExtension(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".mp3":
		return "audio/mpeg"
	case ".m4a":
		return "audio/mp4"
	default:
		return "application/octet-stream"
	}
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "audio/mpeg":
		return ".mp3"
	case "audio/wav":
		return ".wav"
	case "audio/ogg":
		return ".ogg"
	case "audio/mp4":
		return ".m4a"
	default:
		return ".bin"
	}
}

var filenameReplacer = strings.NewReplacer(
	" ", "-",
	"'", "",
	"\"", "",
	"<", "",
	">", "",
	"&", "",
	"#", "",
	"?", "",
	"%", "",
	"+", "",
	"\\", "",
)

// sanitizeFilename keeps the base name safe for use in a URL path and makes sure the
// extension matches the detected content type.
func sanitizeFilename(filename, contentType string) string {
	filename = filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	if filename == "." || filename == "/" {
		filename = ""
	}

	filename = filenameReplacer.Replace(filename)
	name := strings.TrimSuffix(filename, filepath.Ext(filename))
	name = strings.Trim(name, ".-")

	if n := []rune(name); len(n) > 80 {
		name = string(n[:80])
	}

	if name == "" {
		name = "file"
	}

	return name + extensionFor(contentType)
}
