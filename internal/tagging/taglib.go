package tagging

import (
	"context"
	"fmt"
	"time"

	"go.senan.xyz/taglib"
)

// TaglibTagger writes tags in place with TagLib.
type TaglibTagger struct{}

// NewTaglibTagger creates a TagLib tagger.
func NewTaglibTagger() *TaglibTagger {
	return &TaglibTagger{}
}

// TagMap converts meta to TagLib's property map, omitting empty values.
func TagMap(meta Metadata) map[string][]string {
	tags := make(map[string][]string, 4)
	for key, value := range map[string]string{
		taglib.Title:   meta.Title,
		taglib.Artist:  meta.Artist,
		taglib.Album:   meta.Album,
		taglib.Comment: meta.Comment,
	} {
		if value != "" {
			tags[key] = []string{value}
		}
	}
	return tags
}

func (t *TaglibTagger) Write(ctx context.Context, path string, meta Metadata) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := taglib.WriteTags(path, TagMap(meta), 0); err != nil {
		return fmt.Errorf("taglib write tags: %w", err)
	}
	if len(meta.Cover) > 0 {
		if err := taglib.WriteImage(path, meta.Cover); err != nil {
			return fmt.Errorf("taglib write image: %w", err)
		}
	}
	return nil
}

// Properties are the audio properties of a finalized file.
type Properties struct {
	Length      time.Duration
	BitrateKbps int
}

// PropertyReader reads audio properties of a file.
type PropertyReader interface {
	ReadProperties(path string) (Properties, error)
}

// TaglibReader reads properties with TagLib.
type TaglibReader struct{}

func (TaglibReader) ReadProperties(path string) (Properties, error) {
	props, err := taglib.ReadProperties(path)
	if err != nil {
		return Properties{}, fmt.Errorf("read properties %s: %w", path, err)
	}
	return Properties{Length: props.Length, BitrateKbps: int(props.Bitrate)}, nil
}
