package extract

import (
	"context"
	"fmt"
	"os"

	"code.sajari.com/docconv"
)

// mime types accepted by docconv.Convert, keyed by extension.
var docconvMimes = map[string]string{
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	".odt":  "application/vnd.oasis.opendocument.text",
	".rtf":  "application/rtf",
	".html": "text/html",
	".htm":  "text/html",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
}

type docconvExtractor struct {
	mimeType    string
	readability bool
}

func init() {
	for ext, mime := range docconvMimes {
		Register(ext, &docconvExtractor{
			mimeType:    mime,
			readability: mime == "text/html",
		})
	}
}

func (e *docconvExtractor) Extract(ctx context.Context, path string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	res, err := docconv.Convert(f, e.mimeType, e.readability)
	if err != nil {
		return nil, fmt.Errorf("convert %s: %w", e.mimeType, err)
	}
	meta := map[string]string{}
	if title, ok := res.Meta["Title"]; ok {
		meta["title"] = title
	}
	if pages, ok := res.Meta["Pages"]; ok {
		meta["pages"] = pages
	}
	return &Result{Text: res.Body, Meta: meta}, nil
}
