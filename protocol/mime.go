package protocol

import "strings"

// staticMime is the extension -> content-type table backing
// Response.ServeFile, grounded on spec.md's own "Static mime map"
// component and filled out per SPEC_FULL.md's supplement of it.
var staticMime = map[string]string{
	".html": "text/html;charset=utf-8",
	".htm":  "text/html;charset=utf-8",
	".css":  "text/css;charset=utf-8",
	".js":   "application/javascript;charset=utf-8",
	".mjs":  "application/javascript;charset=utf-8",
	".json": "application/json",
	".xml":  "application/xml",
	".txt":  "text/plain;charset=utf-8",
	".csv":  "text/csv",

	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".svg":  "image/svg+xml",
	".ico":  "image/x-icon",
	".webp": "image/webp",
	".bmp":  "image/bmp",

	".woff":  "font/woff",
	".woff2": "font/woff2",
	".ttf":   "font/ttf",
	".otf":   "font/otf",
	".eot":   "application/vnd.ms-fontobject",

	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".ogg":  "audio/ogg",

	".pdf":  "application/pdf",
	".zip":  "application/zip",
	".gz":   "application/gzip",
	".tar":  "application/x-tar",
	".wasm": "application/wasm",
}

// ContentTypeFor guesses a content-type from path's extension, defaulting
// to application/octet-stream for anything unrecognized.
func ContentTypeFor(path string) string {
	ext := extOf(path)
	if ct, ok := staticMime[ext]; ok {
		return ct
	}
	return "application/octet-stream"
}

func extOf(path string) string {
	dot := strings.LastIndexByte(path, '.')
	slash := strings.LastIndexByte(path, '/')
	if dot == -1 || dot < slash {
		return ""
	}
	return strings.ToLower(path[dot:])
}
