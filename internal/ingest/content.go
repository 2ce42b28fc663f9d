package ingest

import (
	"strings"
	"unicode/utf8"

	"github.com/h2non/filetype"
	"github.com/wgsim/controller/internal/hub"
)

// sniff classifies a received file by its magic bytes. Anything that is not
// a recognised image is decoded as text, replacing invalid UTF-8.
func sniff(data []byte) hub.ContentItem {
	if filetype.IsImage(data) {
		item := hub.ContentItem{
			Name: "Image",
			Kind: hub.ContentImage,
			Data: append([]byte(nil), data...),
		}
		if kind, err := filetype.Match(data); err == nil {
			item.MIME = kind.MIME.Value
		}
		return item
	}
	text := string(data)
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, string(utf8.RuneError))
	}
	return hub.ContentItem{
		Name: "Text",
		Kind: hub.ContentText,
		MIME: "text/plain",
		Text: text,
	}
}
