package manuscript

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

var (
	anchorKeys = []string{"paragraphIndex", "paragraph_index", "anchorIndex", "anchor"}
	imageKeys  = []string{"image", "imageUrl", "url", "path", "dataUrl"}
)

// Reasons for dropping input elements.
const (
	DropMalformed = "malformed JSON"
	DropNotArray  = "not an array"
	DropNotObject = "not an object"
	DropNoImage   = "no image"
	DropExcluded  = "excluded"
)

// Dropped describes single input element ignored while building the model.
// Pos is -1 when the whole field was ignored.
type Dropped struct {
	Chapter string `yaml:"chapter,omitempty"`
	Field   string `yaml:"field"`
	Pos     int    `yaml:"pos"`
	ID      string `yaml:"id,omitempty"`
	Reason  string `yaml:"reason"`
}

// dropper logs ignored elements of one JSON field and passes them on.
type dropper struct {
	log     *zap.Logger
	chapter string
	field   string
	sink    func(Dropped)
}

func (d *dropper) drop(pos int, id, reason string) {
	d.log.Debug("Dropping input element", zap.String("field", d.field), zap.Int("pos", pos), zap.String("id", id), zap.String("reason", reason))
	if d.sink != nil {
		d.sink(Dropped{Chapter: d.chapter, Field: d.field, Pos: pos, ID: id, Reason: reason})
	}
}

// decodeArray decodes loosely typed JSON array. Anything else is treated as
// empty list.
func decodeArray(data string, d *dropper) []any {
	data = strings.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(data)))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		d.drop(-1, "", DropMalformed)
		return nil
	}
	arr, ok := v.([]any)
	if !ok {
		if v != nil {
			d.drop(-1, "", DropNotArray)
		}
		return nil
	}
	return arr
}

func stringField(obj map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := obj[k].(type) {
		case string:
			if s := strings.TrimSpace(v); len(s) > 0 {
				return s
			}
		case json.Number:
			return v.String()
		}
	}
	return ""
}

func boolField(obj map[string]any, key string) bool {
	switch v := obj[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(strings.TrimSpace(v))
		return b
	}
	return false
}

// anchorField returns raw anchor index or 1 when absent or unparsable.
func anchorField(obj map[string]any) int {
	for _, k := range anchorKeys {
		var (
			f   float64
			err error
		)
		switch v := obj[k].(type) {
		case json.Number:
			f, err = v.Float64()
		case string:
			f, err = strconv.ParseFloat(strings.TrimSpace(v), 64)
		default:
			continue
		}
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 1
		}
		return int(math.Max(math.Min(math.Trunc(f), math.MaxInt32), math.MinInt32))
	}
	return 1
}

func imageFrom(obj map[string]any) (Image, bool) {
	img := Image{
		ID:     stringField(obj, "id"),
		Name:   stringField(obj, "name", "title"),
		Source: stringField(obj, imageKeys...),
		Prompt: stringField(obj, "prompt"),
	}
	return img, len(img.Source) > 0
}

// clampAnchor keeps anchor inside [1, max(1, paragraphs)].
func clampAnchor(anchor, paragraphs int) int {
	return max(1, min(anchor, max(1, paragraphs)))
}

// parseIllustrations returns anchored illustrations and optional chapter
// cover. Malformed entries are dropped one by one.
func parseIllustrations(data string, paragraphs int, exclude map[string]struct{}, d *dropper) ([]Illustration, *Image) {
	var (
		res   []Illustration
		cover *Image
	)
	for i, el := range decodeArray(data, d) {
		obj, ok := el.(map[string]any)
		if !ok {
			d.drop(i, "", DropNotObject)
			continue
		}
		img, ok := imageFrom(obj)
		if !ok {
			d.drop(i, img.ID, DropNoImage)
			continue
		}
		if _, excluded := exclude[img.ID]; excluded && len(img.ID) > 0 {
			d.drop(i, img.ID, DropExcluded)
			continue
		}
		if stringField(obj, "role") == "cover" || boolField(obj, "isCover") {
			if cover == nil {
				cover = &img
			}
			continue
		}
		res = append(res, Illustration{
			ID:     img.ID,
			Anchor: clampAnchor(anchorField(obj), paragraphs),
			Image:  img,
		})
	}
	return res, cover
}

// parseCovers returns all cover images and selects default one.
func parseCovers(data, defaultID string, d *dropper) ([]Image, *Image) {
	var (
		covers   []Image
		flagged  = -1
		selected = -1
	)
	for i, el := range decodeArray(data, d) {
		obj, ok := el.(map[string]any)
		if !ok {
			d.drop(i, "", DropNotObject)
			continue
		}
		img, ok := imageFrom(obj)
		if !ok {
			d.drop(i, img.ID, DropNoImage)
			continue
		}
		if selected < 0 && len(defaultID) > 0 && img.ID == defaultID {
			selected = len(covers)
		}
		if flagged < 0 && boolField(obj, "isDefault") {
			flagged = len(covers)
		}
		covers = append(covers, img)
	}
	if selected < 0 {
		selected = flagged
	}
	if selected < 0 {
		return covers, nil
	}
	cover := covers[selected]
	return covers, &cover
}
