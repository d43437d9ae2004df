package source

import (
	"path/filepath"
	"strings"

	"github.com/bogem/id3v2/v2"
	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/meta"
)

// Metadata holds track information.
type Metadata struct {
	Title  string
	Artist string
	Album  string
}

// Display returns "Artist - Title", or just the title.
func (m Metadata) Display() string {
	if m.Artist == "" {
		return m.Title
	}
	return m.Artist + " - " + m.Title
}

// ReadMetadata reads ID3v2 tags from MP3 files and Vorbis comments from FLAC
// files, falling back to the filename.
func ReadMetadata(path string) Metadata {
	var m Metadata
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		m = readID3(path)
	case ".flac":
		m = readVorbisComment(path)
	}
	if m.Title != "" {
		return m
	}

	base := filepath.Base(path)
	return Metadata{Title: strings.TrimSuffix(base, filepath.Ext(base))}
}

func readID3(path string) Metadata {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return Metadata{}
	}
	defer tag.Close()
	return Metadata{
		Title:  strings.TrimSpace(tag.Title()),
		Artist: strings.TrimSpace(tag.Artist()),
		Album:  strings.TrimSpace(tag.Album()),
	}
}

func readVorbisComment(path string) Metadata {
	stream, err := flac.ParseFile(path)
	if err != nil {
		return Metadata{}
	}
	defer stream.Close()

	var m Metadata
	for _, block := range stream.Blocks {
		vc, ok := block.Body.(*meta.VorbisComment)
		if !ok {
			continue
		}
		for _, tag := range vc.Tags {
			v := strings.TrimSpace(tag[1])
			switch strings.ToUpper(tag[0]) {
			case "TITLE":
				m.Title = v
			case "ARTIST":
				m.Artist = v
			case "ALBUM":
				m.Album = v
			}
		}
	}
	return m
}
