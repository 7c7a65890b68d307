package render

import (
	"fmt"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
)

// fontSet lazily parses the embedded fonts and caches one face per size.
// The regular face is used for labels and free text, the mono face for
// digit readouts so that changing values do not wobble horizontally.
type fontSet struct {
	regularFont *truetype.Font
	monoFont    *truetype.Font
	faces       map[faceKey]font.Face
}

type faceKey struct {
	mono bool
	size float64
}

func (f *fontSet) regular(size float64) (font.Face, error) {
	if f.regularFont == nil {
		parsed, err := truetype.Parse(goregular.TTF)
		if err != nil {
			return nil, fmt.Errorf("parsing font: %w", err)
		}
		f.regularFont = parsed
	}
	return f.face(f.regularFont, faceKey{mono: false, size: size}), nil
}

func (f *fontSet) mono(size float64) (font.Face, error) {
	if f.monoFont == nil {
		parsed, err := truetype.Parse(gomono.TTF)
		if err != nil {
			return nil, fmt.Errorf("parsing font: %w", err)
		}
		f.monoFont = parsed
	}
	return f.face(f.monoFont, faceKey{mono: true, size: size}), nil
}

func (f *fontSet) face(fnt *truetype.Font, key faceKey) font.Face {
	if f.faces == nil {
		f.faces = make(map[faceKey]font.Face)
	}
	if face, ok := f.faces[key]; ok {
		return face
	}
	face := truetype.NewFace(fnt, &truetype.Options{Size: key.size})
	f.faces[key] = face
	return face
}
